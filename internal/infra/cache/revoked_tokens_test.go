package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// 使うコマンドだけ差し替える（それ以外はnilのまま）
type cmdableMock struct {
	redis.Cmdable
	mock.Mock
}

func (m *cmdableMock) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	args := m.Called(key, value, ttl)
	cmd := redis.NewStatusCmd(ctx)
	if err := args.Error(0); err != nil {
		cmd.SetErr(err)
	} else {
		cmd.SetVal("OK")
	}
	return cmd
}

func (m *cmdableMock) Exists(ctx context.Context, keys ...string) *redis.IntCmd {
	args := m.Called(keys)
	cmd := redis.NewIntCmd(ctx)
	if err := args.Error(1); err != nil {
		cmd.SetErr(err)
	} else {
		cmd.SetVal(args.Get(0).(int64))
	}
	return cmd
}

func TestRevoke_StoresJTIWithTTL(t *testing.T) {
	m := new(cmdableMock)
	m.On("Set", "auth:revoked:abc", 1, 15*time.Minute).Return(nil).Once()
	s := NewRevokedTokenStore(m)

	require.NoError(t, s.Revoke(context.Background(), "abc", 15*time.Minute))
	m.AssertExpectations(t)
}

func TestRevoke_SkipsExpiredAndRejectsEmpty(t *testing.T) {
	m := new(cmdableMock)
	s := NewRevokedTokenStore(m)

	require.NoError(t, s.Revoke(context.Background(), "abc", 0))
	require.Error(t, s.Revoke(context.Background(), "", time.Minute))
	m.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything)
}

func TestIsRevoked(t *testing.T) {
	m := new(cmdableMock)
	m.On("Exists", []string{"auth:revoked:gone"}).Return(int64(1), nil).Once()
	m.On("Exists", []string{"auth:revoked:live"}).Return(int64(0), nil).Once()
	m.On("Exists", []string{"auth:revoked:down"}).Return(int64(0), errors.New("connection refused")).Once()
	s := NewRevokedTokenStore(m)
	ctx := context.Background()

	revoked, err := s.IsRevoked(ctx, "gone")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = s.IsRevoked(ctx, "live")
	require.NoError(t, err)
	assert.False(t, revoked)

	_, err = s.IsRevoked(ctx, "down")
	assert.Error(t, err)

	// 空のjtiは問い合わせない
	revoked, err = s.IsRevoked(ctx, "")
	require.NoError(t, err)
	assert.False(t, revoked)

	m.AssertExpectations(t)
}
