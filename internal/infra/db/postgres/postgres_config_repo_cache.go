package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"telegram-smm-autoboost/internal/domain/model"
	"telegram-smm-autoboost/internal/domain/ports/repository"
	"telegram-smm-autoboost/internal/infra/metrics"
	red "telegram-smm-autoboost/internal/infra/redis"
	"telegram-smm-autoboost/internal/infra/security"
)

var _ repository.ConfigRepository = (*configRepoCacheDecorator)(nil)

// configRepoCacheDecorator is a read-through cache for Get. Reads inside a
// transaction bypass the cache so row locks still apply; every Save drops
// the cached entry. FindSubscribers and Stats always hit the database.
type configRepoCacheDecorator struct {
	inner  repository.ConfigRepository
	cache  red.RedisClient
	cipher security.SecretCipher
	ttl    time.Duration
	logger *zerolog.Logger
}

// cachedConfig is the Redis form of a UserConfig. The api key stays sealed.
type cachedConfig struct {
	UserID          int64     `json:"user_id"`
	APIURL          *string   `json:"api_url,omitempty"`
	APIKey          *string   `json:"api_key,omitempty"`
	ServiceID       *string   `json:"service_id,omitempty"`
	DefaultQuantity *int      `json:"default_quantity,omitempty"`
	Channels        []string  `json:"channels"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func NewConfigRepoCacheDecorator(inner repository.ConfigRepository, cache red.RedisClient, cipher security.SecretCipher, ttl time.Duration, logger *zerolog.Logger) repository.ConfigRepository {
	if cipher == nil {
		cipher = security.PlainText{}
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &configRepoCacheDecorator{inner: inner, cache: cache, cipher: cipher, ttl: ttl, logger: logger}
}

func configCacheKey(userID int64) string { return fmt.Sprintf("user_config:%d", userID) }

func (d *configRepoCacheDecorator) Get(ctx context.Context, tx repository.Tx, userID int64) (*model.UserConfig, error) {
	if tx != nil {
		metrics.IncCacheRequest("user_config", "bypass")
		return d.inner.Get(ctx, tx, userID)
	}
	key := configCacheKey(userID)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		if cfg, derr := d.decode(val); derr == nil {
			metrics.IncCacheRequest("user_config", "hit")
			return cfg, nil
		}
		_ = d.cache.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		d.logger.Warn().Err(err).Str("key", key).Msg("config cache read failed")
	}

	metrics.IncCacheRequest("user_config", "miss")
	cfg, err := d.inner.Get(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if b, err := d.encode(cfg); err == nil {
		_ = d.cache.Set(ctx, key, b, d.ttl)
	}
	return cfg, nil
}

func (d *configRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, cfg *model.UserConfig) error {
	key := configCacheKey(cfg.UserID)
	_ = d.cache.Del(ctx, key)
	if err := d.inner.Save(ctx, tx, cfg); err != nil {
		return err
	}
	// a reader may refill the entry from the old row until the tx commits
	repository.AfterCommit(ctx, func() {
		_ = d.cache.Del(context.WithoutCancel(ctx), key)
	})
	return nil
}

func (d *configRepoCacheDecorator) FindSubscribers(ctx context.Context, tx repository.Tx, ref model.ChannelRef) ([]model.Subscriber, error) {
	return d.inner.FindSubscribers(ctx, tx, ref)
}

func (d *configRepoCacheDecorator) Stats(ctx context.Context, tx repository.Tx) (repository.ConfigStats, error) {
	return d.inner.Stats(ctx, tx)
}

func (d *configRepoCacheDecorator) encode(cfg *model.UserConfig) ([]byte, error) {
	c := cachedConfig{
		UserID:          cfg.UserID,
		APIURL:          cfg.APIURL,
		ServiceID:       cfg.ServiceID,
		DefaultQuantity: cfg.DefaultQuantity,
		Channels:        make([]string, 0, len(cfg.Channels)),
		CreatedAt:       cfg.CreatedAt,
		UpdatedAt:       cfg.UpdatedAt,
	}
	if cfg.APIKey != nil {
		sealed, err := d.cipher.Encrypt(*cfg.APIKey)
		if err != nil {
			return nil, err
		}
		c.APIKey = &sealed
	}
	for _, ch := range cfg.Channels {
		c.Channels = append(c.Channels, ch.String())
	}
	return json.Marshal(c)
}

func (d *configRepoCacheDecorator) decode(val string) (*model.UserConfig, error) {
	var c cachedConfig
	if err := json.Unmarshal([]byte(val), &c); err != nil {
		return nil, err
	}
	cfg := &model.UserConfig{
		UserID:          c.UserID,
		APIURL:          c.APIURL,
		ServiceID:       c.ServiceID,
		DefaultQuantity: c.DefaultQuantity,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
	if c.APIKey != nil {
		plain, err := d.cipher.Decrypt(*c.APIKey)
		if err != nil {
			return nil, err
		}
		cfg.APIKey = &plain
	}
	for _, raw := range c.Channels {
		ref, err := model.ParseChannelRef(raw)
		if err != nil {
			return nil, err
		}
		cfg.Channels = append(cfg.Channels, ref)
	}
	return cfg, nil
}
