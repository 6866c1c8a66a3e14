package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

// Configはアプリ全体の設定
type Config struct {
	Port     string `envconfig:"PORT" default:"8080"`
	GoEnv    string `envconfig:"GO_ENV" default:"dev"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// あれば POSTGRES_* より優先
	DatabaseURL      string `envconfig:"DATABASE_URL"`
	PostgresUser     string `envconfig:"POSTGRES_USER" default:"postgres"`
	PostgresPassword string `envconfig:"POSTGRES_PASSWORD" default:"postgres"`
	PostgresDB       string `envconfig:"POSTGRES_DB" default:"shopcore"`
	PostgresHost     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	PostgresPort     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	PostgresSSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`

	// ロック待ち・長いクエリはこの時間で失敗させる（再試行可能エラー）
	DBLockTimeout      time.Duration `envconfig:"DB_LOCK_TIMEOUT" default:"5s"`
	DBStatementTimeout time.Duration `envconfig:"DB_STATEMENT_TIMEOUT" default:"30s"`
	DBMaxOpenConns     int           `envconfig:"DB_MAX_OPEN_CONNS" default:"20"`

	JWTSecret      string        `envconfig:"JWT_SECRET" required:"true"`
	AccessTokenTTL time.Duration `envconfig:"ACCESS_TOKEN_TTL" default:"1h"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// カンマ区切り。空ならイベントはログに出すだけ。
	KafkaBrokers            string `envconfig:"KAFKA_BROKERS"`
	KafkaTopicOrderPlaced   string `envconfig:"KAFKA_TOPIC_ORDER_PLACED" default:"order.placed"`
	KafkaTopicOrderCanceled string `envconfig:"KAFKA_TOPIC_ORDER_CANCELLED" default:"order.cancelled"`

	InitialWalletBalance decimal.Decimal `envconfig:"INITIAL_WALLET_BALANCE" default:"1000.00"`
	WalletTopUpLimit     decimal.Decimal `envconfig:"WALLET_TOPUP_LIMIT" default:"10000"`
}

// Loadは環境変数から読む
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	//必須チェック
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.InitialWalletBalance.IsNegative() {
		return Config{}, fmt.Errorf("INITIAL_WALLET_BALANCE must not be negative")
	}
	if !cfg.WalletTopUpLimit.IsPositive() {
		return Config{}, fmt.Errorf("WALLET_TOPUP_LIMIT must be positive")
	}

	return cfg, nil
}

func (c Config) IsProd() bool {
	return c.GoEnv == "prod"
}

func (c Config) Addr() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

func (c Config) KafkaBrokerList() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
