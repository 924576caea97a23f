package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"telegram-smm-autoboost/internal/domain"
	"telegram-smm-autoboost/internal/domain/model"
	"telegram-smm-autoboost/internal/domain/ports/repository"
	"telegram-smm-autoboost/internal/infra/security"
)

var (
	_ repository.ConfigRepository   = (*ConfigRepo)(nil)
	_ repository.TransactionManager = (*TxManager)(nil)
)

// TxManager runs fn in a GORM transaction and hands the *gorm.DB to it.
// SQLite has a single writer, so transactions are serialized up front
// instead of failing with SQLITE_BUSY on lock upgrade.
type TxManager struct {
	db *gorm.DB
	mu sync.Mutex
}

func NewTxManager(db *gorm.DB) *TxManager { return &TxManager{db: db} }

func (m *TxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	hctx, runHooks := repository.WithCommitHooks(ctx)
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(hctx, tx)
	})
	if err == nil {
		runHooks()
	}
	return err
}

type ConfigRepo struct {
	db     *gorm.DB
	cipher security.SecretCipher
}

func NewConfigRepo(db *gorm.DB, cipher security.SecretCipher) *ConfigRepo {
	if cipher == nil {
		cipher = security.PlainText{}
	}
	return &ConfigRepo{db: db, cipher: cipher}
}

func (r *ConfigRepo) conn(ctx context.Context, tx repository.Tx) (*gorm.DB, error) {
	if tx == nil {
		return r.db.WithContext(ctx), nil
	}
	if g, ok := tx.(*gorm.DB); ok {
		return g.WithContext(ctx), nil
	}
	return nil, fmt.Errorf("sqlite: unsupported tx %T: %w", tx, domain.ErrInvalidExecContext)
}

func (r *ConfigRepo) Get(ctx context.Context, tx repository.Tx, userID int64) (*model.UserConfig, error) {
	db, err := r.conn(ctx, tx)
	if err != nil {
		return nil, err
	}
	var row userConfigRow
	err = db.Where("user_id = ?", userID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.NewUserConfig(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user config: %w", err)
	}
	cfg, err := r.toModel(row)
	if err != nil {
		return nil, err
	}
	chans, err := loadChannels(db, []int64{userID})
	if err != nil {
		return nil, err
	}
	cfg.Channels = chans[userID]
	return cfg, nil
}

// Save upserts the scalar fields and rewrites the channel rows in one
// transaction, joining the caller's when there is one.
func (r *ConfigRepo) Save(ctx context.Context, tx repository.Tx, cfg *model.UserConfig) error {
	db, err := r.conn(ctx, tx)
	if err != nil {
		return err
	}
	if tx != nil {
		return r.save(db, cfg)
	}
	return db.Transaction(func(inner *gorm.DB) error { return r.save(inner, cfg) })
}

func (r *ConfigRepo) save(db *gorm.DB, cfg *model.UserConfig) error {
	row := userConfigRow{
		UserID:          cfg.UserID,
		APIURL:          cfg.APIURL,
		ServiceID:       cfg.ServiceID,
		DefaultQuantity: cfg.DefaultQuantity,
		CreatedAt:       cfg.CreatedAt,
		UpdatedAt:       cfg.UpdatedAt,
	}
	now := time.Now().UTC()
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = now
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = row.UpdatedAt
	}
	if cfg.APIKey != nil {
		sealed, err := r.cipher.Encrypt(*cfg.APIKey)
		if err != nil {
			return fmt.Errorf("seal api key: %w", err)
		}
		row.APIKey = &sealed
	}

	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"api_url", "api_key", "service_id", "default_quantity", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert user config: %w", err)
	}

	if err := db.Where("user_id = ?", cfg.UserID).Delete(&userChannelRow{}).Error; err != nil {
		return fmt.Errorf("clear channels: %w", err)
	}
	if len(cfg.Channels) == 0 {
		return nil
	}
	rows := make([]userChannelRow, 0, len(cfg.Channels))
	seen := make(map[string]struct{}, len(cfg.Channels))
	for i, ch := range cfg.Channels {
		name := ch.String()
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		rows = append(rows, userChannelRow{UserID: cfg.UserID, Channel: name, Position: i + 1, AddedAt: now})
	}
	if err := db.Create(&rows).Error; err != nil {
		return fmt.Errorf("insert channels: %w", err)
	}
	return nil
}

func (r *ConfigRepo) FindSubscribers(ctx context.Context, tx repository.Tx, ref model.ChannelRef) ([]model.Subscriber, error) {
	db, err := r.conn(ctx, tx)
	if err != nil {
		return nil, err
	}
	var rows []userConfigRow
	err = db.Table("user_configs AS c").
		Select("c.*").
		Joins("JOIN user_channels ch ON ch.user_id = c.user_id").
		Where("lower(ch.channel) = ?", strings.ToLower(ref.String())).
		Where("coalesce(c.api_url, '') <> '' AND coalesce(c.api_key, '') <> '' AND coalesce(c.service_id, '') <> ''").
		Order("c.user_id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("find subscribers: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.UserID)
	}
	chans, err := loadChannels(db, ids)
	if err != nil {
		return nil, err
	}
	out := make([]model.Subscriber, 0, len(rows))
	for _, row := range rows {
		cfg, err := r.toModel(row)
		if err != nil {
			return nil, err
		}
		cfg.Channels = chans[cfg.UserID]
		if !cfg.HasCredential() {
			continue
		}
		out = append(out, model.Subscriber{UserID: cfg.UserID, Config: cfg})
	}
	return out, nil
}

func (r *ConfigRepo) Stats(ctx context.Context, tx repository.Tx) (repository.ConfigStats, error) {
	var st repository.ConfigStats
	db, err := r.conn(ctx, tx)
	if err != nil {
		return st, err
	}
	var users, configured, channels int64
	if err := db.Model(&userConfigRow{}).Count(&users).Error; err != nil {
		return st, fmt.Errorf("count users: %w", err)
	}
	if err := db.Model(&userConfigRow{}).
		Where("coalesce(api_url, '') <> '' AND coalesce(api_key, '') <> '' AND coalesce(service_id, '') <> ''").
		Count(&configured).Error; err != nil {
		return st, fmt.Errorf("count configured: %w", err)
	}
	if err := db.Model(&userChannelRow{}).Count(&channels).Error; err != nil {
		return st, fmt.Errorf("count channels: %w", err)
	}
	st.Users, st.ConfiguredUsers, st.Channels = int(users), int(configured), int(channels)
	return st, nil
}

func loadChannels(db *gorm.DB, ids []int64) (map[int64][]model.ChannelRef, error) {
	var rows []userChannelRow
	if err := db.Where("user_id IN ?", ids).Order("user_id, position").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load channels: %w", err)
	}
	out := make(map[int64][]model.ChannelRef, len(ids))
	for _, row := range rows {
		ref, err := model.ParseChannelRef(row.Channel)
		if err != nil {
			continue
		}
		out[row.UserID] = append(out[row.UserID], ref)
	}
	return out, nil
}

func (r *ConfigRepo) toModel(row userConfigRow) (*model.UserConfig, error) {
	cfg := &model.UserConfig{
		UserID:          row.UserID,
		APIURL:          row.APIURL,
		ServiceID:       row.ServiceID,
		DefaultQuantity: row.DefaultQuantity,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
	if row.APIKey != nil {
		plain, err := r.cipher.Decrypt(*row.APIKey)
		if err != nil {
			return nil, fmt.Errorf("open api key for user %d: %w", row.UserID, err)
		}
		cfg.APIKey = &plain
	}
	return cfg, nil
}
