package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"shopcore/internal/config"
	"shopcore/internal/handler"
	"shopcore/internal/infra/cache"
	"shopcore/internal/infra/db"
	"shopcore/internal/infra/messaging"
	infraRepo "shopcore/internal/infra/repository"
	"shopcore/internal/logger"
	"shopcore/internal/server"
	"shopcore/internal/usecase"
	"shopcore/internal/validator"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	//.envは任意（本番は環境変数だけ）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	lg, err := logger.New(cfg.GoEnv, cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = lg.Sync() }()

	if err := run(cfg, lg); err != nil {
		lg.Error("server stopped with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg config.Config, lg *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//DB接続
	gormDB, err := db.Connect(cfg)
	if err != nil {
		return err
	}
	if err := db.Migrate(gormDB); err != nil {
		return err
	}
	if sqlDB, err := gormDB.DB(); err == nil {
		defer sqlDB.Close()
	}

	//ログアウト済みjtiの保存先
	rdb, err := cache.NewRedisClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer rdb.Close()

	//ブローカー未設定ならログに出すだけ
	var publisher messaging.Publisher
	if brokers := cfg.KafkaBrokerList(); len(brokers) > 0 {
		publisher = messaging.NewKafkaPublisher(brokers)
		lg.Info("kafka publisher enabled", zap.Strings("brokers", brokers))
	} else {
		publisher = messaging.NewLogPublisher(lg)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			lg.Warn("failed to close publisher", zap.Error(err))
		}
	}()

	//Repository（GORM実装）生成
	userRepo := infraRepo.NewUserGormRepository(gormDB)
	productRepo := infraRepo.NewProductGormRepository(gormDB)
	cartRepo := infraRepo.NewCartItemGormRepository(gormDB)
	addressRepo := infraRepo.NewAddressGormRepository(gormDB)
	auditRepo := infraRepo.NewAuditLogGormRepository(gormDB)
	txm := infraRepo.NewTxManagerGorm(gormDB)

	clock := usecase.SystemClock{}
	topics := usecase.OrderEventTopics{
		Placed:    cfg.KafkaTopicOrderPlaced,
		Cancelled: cfg.KafkaTopicOrderCanceled,
	}

	//Usecase生成
	authUC := usecase.NewAuthUsecase(cfg, txm, userRepo, validator.NewAuthValidator(userRepo),
		cache.NewRevokedTokenStore(rdb), clock, lg.Named("auth"))
	productUC := usecase.NewProductUsecase(productRepo, txm, clock)
	cartUC := usecase.NewCartUsecase(cartRepo, productRepo, lg.Named("cart"))
	orderUC := usecase.NewOrderUsecase(txm, clock, publisher, topics, lg.Named("order"))
	couponUC := usecase.NewCouponUsecase(txm, clock)
	walletUC := usecase.NewWalletUsecase(txm, cfg.WalletTopUpLimit, clock, lg.Named("wallet"))
	addressUC := usecase.NewAddressUsecase(addressRepo, clock)
	adminOrderUC := usecase.NewAdminOrderUsecase(txm, clock, publisher, topics, lg.Named("admin_order"))
	auditUC := usecase.NewAuditLogUsecase(auditRepo)

	e := server.New(lg)
	server.RegisterRoutes(e, cfg, authUC, server.Handlers{
		Auth:         handler.NewAuthHandler(authUC),
		Product:      handler.NewProductHandler(productUC),
		Cart:         handler.NewCartHandler(cartUC),
		Order:        handler.NewOrderHandler(orderUC, couponUC),
		Wallet:       handler.NewWalletHandler(walletUC),
		Address:      handler.NewAddressHandler(addressUC),
		AdminOrder:   handler.NewAdminOrderHandler(adminOrderUC),
		AdminProduct: handler.NewAdminProductHandler(productUC),
		AdminCoupon:  handler.NewAdminCouponHandler(couponUC, auditUC),
		AdminUser:    handler.NewAdminUserHandler(authUC),
	})

	//Server起動
	return server.Run(ctx, e, cfg.Addr(), lg)
}
