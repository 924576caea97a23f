//go:build !integration

package postgres

import (
	"context"
	"time"

	"telegram-smm-autoboost/internal/domain/model"
	"telegram-smm-autoboost/internal/domain/ports/repository"
	red "telegram-smm-autoboost/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerConfigRepo mocks the database repository that the decorator wraps.
type mockInnerConfigRepo struct {
	GetFunc             func(ctx context.Context, tx repository.Tx, userID int64) (*model.UserConfig, error)
	SaveFunc            func(ctx context.Context, tx repository.Tx, cfg *model.UserConfig) error
	FindSubscribersFunc func(ctx context.Context, tx repository.Tx, ref model.ChannelRef) ([]model.Subscriber, error)
	StatsFunc           func(ctx context.Context, tx repository.Tx) (repository.ConfigStats, error)
}

func (m *mockInnerConfigRepo) Get(ctx context.Context, tx repository.Tx, userID int64) (*model.UserConfig, error) {
	return m.GetFunc(ctx, tx, userID)
}
func (m *mockInnerConfigRepo) Save(ctx context.Context, tx repository.Tx, cfg *model.UserConfig) error {
	return m.SaveFunc(ctx, tx, cfg)
}
func (m *mockInnerConfigRepo) FindSubscribers(ctx context.Context, tx repository.Tx, ref model.ChannelRef) ([]model.Subscriber, error) {
	return m.FindSubscribersFunc(ctx, tx, ref)
}
func (m *mockInnerConfigRepo) Stats(ctx context.Context, tx repository.Tx) (repository.ConfigStats, error) {
	return m.StatsFunc(ctx, tx)
}

// mockRedisClient mocks our Redis client wrapper.
type mockRedisClient struct {
	GetFunc        func(ctx context.Context, key string) (string, error)
	SetFunc        func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	SetNXFunc      func(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	DelFunc        func(ctx context.Context, keys ...string) error
	PingFunc       func(ctx context.Context) error
	IncrWindowFunc func(ctx context.Context, key string, window time.Duration) (int64, error)
	CloseFunc      func() error
}

var _ red.RedisClient = &mockRedisClient{}

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	return m.GetFunc(ctx, key)
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if m.SetFunc == nil {
		return nil
	}
	return m.SetFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	return m.SetNXFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	if m.DelFunc == nil {
		return nil
	}
	return m.DelFunc(ctx, keys...)
}
func (m *mockRedisClient) Ping(ctx context.Context) error { return m.PingFunc(ctx) }
func (m *mockRedisClient) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	return m.IncrWindowFunc(ctx, key, window)
}
func (m *mockRedisClient) Close() error { return m.CloseFunc() }
