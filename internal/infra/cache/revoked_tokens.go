package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedKeyPrefix = "auth:revoked:"

// ログアウト済みトークン（jti）をトークンの残り寿命だけ保持する
type RevokedTokenStore struct {
	client redis.Cmdable
}

func NewRevokedTokenStore(client redis.Cmdable) *RevokedTokenStore {
	return &RevokedTokenStore{client: client}
}

func (s *RevokedTokenStore) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return errors.New("empty jti")
	}
	// 期限切れ済みなら保存不要
	if ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, revokedKeyPrefix+jti, 1, ttl).Err()
}

func (s *RevokedTokenStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	n, err := s.client.Exists(ctx, revokedKeyPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
