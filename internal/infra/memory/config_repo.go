package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/jackc/pgx/v4"

	"telegram-smm-autoboost/internal/domain/model"
	"telegram-smm-autoboost/internal/domain/ports/repository"
)

var (
	_ repository.ConfigRepository   = (*ConfigRepo)(nil)
	_ repository.TransactionManager = (*ConfigRepo)(nil)
)

// ConfigRepo is an in-memory ConfigRepository for development and tests.
// Save swaps the whole record under the lock, which makes the channel
// replace-all atomic. It doubles as its own TransactionManager: WithTx
// serializes fn against other transactions.
type ConfigRepo struct {
	mu      sync.RWMutex
	txMu    sync.Mutex
	configs map[int64]*model.UserConfig
}

func NewConfigRepo() *ConfigRepo {
	return &ConfigRepo{configs: make(map[int64]*model.UserConfig)}
}

func (r *ConfigRepo) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()
	return fn(ctx, repository.NoTX)
}

func (r *ConfigRepo) Get(ctx context.Context, _ repository.Tx, userID int64) (*model.UserConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.configs[userID]; ok {
		return c.Clone(), nil
	}
	return model.NewUserConfig(userID), nil
}

func (r *ConfigRepo) Save(ctx context.Context, _ repository.Tx, cfg *model.UserConfig) error {
	cp := cfg.Clone()
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.configs[cfg.UserID]; ok {
		cp.CreatedAt = old.CreatedAt
	}
	r.configs[cfg.UserID] = cp
	return nil
}

func (r *ConfigRepo) FindSubscribers(ctx context.Context, _ repository.Tx, ref model.ChannelRef) ([]model.Subscriber, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.Subscriber
	for id, c := range r.configs {
		if c.HasCredential() && c.HasChannel(ref) {
			out = append(out, model.Subscriber{UserID: id, Config: c.Clone()})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (r *ConfigRepo) Stats(ctx context.Context, _ repository.Tx) (repository.ConfigStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var st repository.ConfigStats
	for _, c := range r.configs {
		st.Users++
		if c.HasCredential() {
			st.ConfiguredUsers++
		}
		st.Channels += len(c.Channels)
	}
	return st, nil
}
