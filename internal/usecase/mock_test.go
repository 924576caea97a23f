//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sort"
	"sync"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"telegram-smm-autoboost/internal/domain/model"
	"telegram-smm-autoboost/internal/domain/ports/adapter"
	"telegram-smm-autoboost/internal/domain/ports/repository"
	"telegram-smm-autoboost/internal/infra/worker"
)

// =============================
// Adapters
// =============================

// ---- Mock TelegramBotAdapter ----

type MockTelegramBot struct {
	mu     sync.Mutex
	Sent   []adapter.SendMessageParams
	Edited []adapter.EditMessageParams

	SendMessageFunc func(ctx context.Context, params adapter.SendMessageParams) error
	EditMessageFunc func(ctx context.Context, params adapter.EditMessageParams) error
}

var _ adapter.TelegramBotAdapter = (*MockTelegramBot)(nil)

func (m *MockTelegramBot) SendMessage(ctx context.Context, params adapter.SendMessageParams) error {
	if m.SendMessageFunc != nil {
		return m.SendMessageFunc(ctx, params)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, params)
	return nil
}

func (m *MockTelegramBot) EditMessage(ctx context.Context, params adapter.EditMessageParams) error {
	if m.EditMessageFunc != nil {
		return m.EditMessageFunc(ctx, params)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Edited = append(m.Edited, params)
	return nil
}

func (m *MockTelegramBot) SentTo() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int64, 0, len(m.Sent))
	for _, p := range m.Sent {
		out = append(out, p.ChatID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ---- Mock SMMPanel ----

type PlaceOrderCall struct {
	Credential model.Credential
	Link       string
	Quantity   int
}

type MockSMMPanel struct {
	mu           sync.Mutex
	BalanceCalls []model.Credential
	OrderCalls   []PlaceOrderCall

	CheckBalanceFunc func(ctx context.Context, cred model.Credential) (model.Balance, error)
	PlaceOrderFunc   func(ctx context.Context, cred model.Credential, link string, quantity int) (model.OrderReceipt, error)
}

var _ adapter.SMMPanel = (*MockSMMPanel)(nil)

func (m *MockSMMPanel) CheckBalance(ctx context.Context, cred model.Credential) (model.Balance, error) {
	m.mu.Lock()
	m.BalanceCalls = append(m.BalanceCalls, cred)
	m.mu.Unlock()
	if m.CheckBalanceFunc != nil {
		return m.CheckBalanceFunc(ctx, cred)
	}
	return model.Balance{Currency: "USD"}, nil
}

func (m *MockSMMPanel) PlaceOrder(ctx context.Context, cred model.Credential, link string, quantity int) (model.OrderReceipt, error) {
	m.mu.Lock()
	m.OrderCalls = append(m.OrderCalls, PlaceOrderCall{Credential: cred, Link: link, Quantity: quantity})
	m.mu.Unlock()
	if m.PlaceOrderFunc != nil {
		return m.PlaceOrderFunc(ctx, cred, link, quantity)
	}
	return model.OrderReceipt{OrderID: "1"}, nil
}

func (m *MockSMMPanel) Orders() []PlaceOrderCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PlaceOrderCall(nil), m.OrderCalls...)
}

// =============================
// Repositories
// =============================

// ---- Mock ConfigRepository ----

type MockConfigRepo struct {
	mu      sync.Mutex
	configs map[int64]*model.UserConfig
	Saves   int

	GetFunc             func(ctx context.Context, tx repository.Tx, userID int64) (*model.UserConfig, error)
	SaveFunc            func(ctx context.Context, tx repository.Tx, cfg *model.UserConfig) error
	FindSubscribersFunc func(ctx context.Context, tx repository.Tx, ref model.ChannelRef) ([]model.Subscriber, error)
	StatsFunc           func(ctx context.Context, tx repository.Tx) (repository.ConfigStats, error)
}

var _ repository.ConfigRepository = (*MockConfigRepo)(nil)

func NewMockConfigRepo() *MockConfigRepo {
	return &MockConfigRepo{configs: map[int64]*model.UserConfig{}}
}

func (r *MockConfigRepo) Seed(cfg *model.UserConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[cfg.UserID] = cfg.Clone()
}

func (r *MockConfigRepo) Get(ctx context.Context, tx repository.Tx, userID int64) (*model.UserConfig, error) {
	if r.GetFunc != nil {
		return r.GetFunc(ctx, tx, userID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.configs[userID]; ok {
		return c.Clone(), nil
	}
	return model.NewUserConfig(userID), nil
}

func (r *MockConfigRepo) Save(ctx context.Context, tx repository.Tx, cfg *model.UserConfig) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, cfg)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Saves++
	r.configs[cfg.UserID] = cfg.Clone()
	return nil
}

func (r *MockConfigRepo) FindSubscribers(ctx context.Context, tx repository.Tx, ref model.ChannelRef) ([]model.Subscriber, error) {
	if r.FindSubscribersFunc != nil {
		return r.FindSubscribersFunc(ctx, tx, ref)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Subscriber
	for id, c := range r.configs {
		if c.HasCredential() && c.HasChannel(ref) {
			out = append(out, model.Subscriber{UserID: id, Config: c.Clone()})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (r *MockConfigRepo) Stats(ctx context.Context, tx repository.Tx) (repository.ConfigStats, error) {
	if r.StatsFunc != nil {
		return r.StatsFunc(ctx, tx)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
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

func (r *MockConfigRepo) Stored(userID int64) *model.UserConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.configs[userID]; ok {
		return c.Clone()
	}
	return nil
}

// ---- Mock TransactionManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs fn immediately with NoTX unless WithTxFunc is set.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// =============================
// Misc
// =============================

// inlineSubmitter runs each task before Go returns.
type inlineSubmitter struct{}

func (inlineSubmitter) Go(task worker.Task) error {
	return task(context.Background())
}

type mockDeduper struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (d *mockDeduper) FirstSeen(ctx context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen == nil {
		d.seen = map[string]bool{}
	}
	if d.seen[key] {
		return false, nil
	}
	d.seen[key] = true
	return true, nil
}

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func strPtr(s string) *string { return &s }
