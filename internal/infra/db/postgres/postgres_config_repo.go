package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-smm-autoboost/internal/domain"
	"telegram-smm-autoboost/internal/domain/model"
	"telegram-smm-autoboost/internal/domain/ports/repository"
	"telegram-smm-autoboost/internal/infra/security"
)

var _ repository.ConfigRepository = (*PostgresConfigRepo)(nil)

type PostgresConfigRepo struct {
	pool   *pgxpool.Pool
	cipher security.SecretCipher
}

// NewPostgresConfigRepo stores api keys through cipher (security.PlainText when nil).
func NewPostgresConfigRepo(pool *pgxpool.Pool, cipher security.SecretCipher) *PostgresConfigRepo {
	if cipher == nil {
		cipher = security.PlainText{}
	}
	return &PostgresConfigRepo{pool: pool, cipher: cipher}
}

const selectConfigCols = `user_id, api_url, api_key, service_id, default_quantity, created_at, updated_at`

// Get returns the stored config or an empty one. Inside a transaction the
// row is locked until commit so read-modify-write cycles do not interleave.
func (r *PostgresConfigRepo) Get(ctx context.Context, qx repository.Tx, userID int64) (*model.UserConfig, error) {
	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return nil, err
	}
	q := `SELECT ` + selectConfigCols + ` FROM user_configs WHERE user_id=$1`
	if _, inTx := qx.(pgx.Tx); inTx {
		q += ` FOR UPDATE`
	}
	cfg, err := r.scanConfig(ex.QueryRow(ctx, q, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.NewUserConfig(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user config: %w", err)
	}
	chans, err := r.loadChannels(ctx, ex, []int64{userID})
	if err != nil {
		return nil, err
	}
	cfg.Channels = chans[userID]
	return cfg, nil
}

// Save upserts the scalar fields and replaces the channel rows in the same
// transaction. Without a caller transaction it opens its own.
func (r *PostgresConfigRepo) Save(ctx context.Context, qx repository.Tx, cfg *model.UserConfig) error {
	if tx, ok := qx.(pgx.Tx); ok {
		return r.save(ctx, tx, cfg)
	}
	if qx != nil {
		return fmt.Errorf("save user config: replace-all needs a transaction, got %T: %w", qx, domain.ErrInvalidExecContext)
	}
	return r.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		return r.save(ctx, tx, cfg)
	})
}

func (r *PostgresConfigRepo) save(ctx context.Context, tx pgx.Tx, cfg *model.UserConfig) error {
	var apiKey *string
	if cfg.APIKey != nil {
		sealed, err := r.cipher.Encrypt(*cfg.APIKey)
		if err != nil {
			return fmt.Errorf("seal api key: %w", err)
		}
		apiKey = &sealed
	}
	if cfg.UpdatedAt.IsZero() {
		cfg.UpdatedAt = time.Now()
	}
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = cfg.UpdatedAt
	}

	const upsert = `
INSERT INTO user_configs (user_id, api_url, api_key, service_id, default_quantity, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (user_id) DO UPDATE SET
  api_url=EXCLUDED.api_url, api_key=EXCLUDED.api_key, service_id=EXCLUDED.service_id,
  default_quantity=EXCLUDED.default_quantity, updated_at=EXCLUDED.updated_at;`
	if _, err := tx.Exec(ctx, upsert, cfg.UserID, cfg.APIURL, apiKey, cfg.ServiceID, cfg.DefaultQuantity, cfg.CreatedAt, cfg.UpdatedAt); err != nil {
		return fmt.Errorf("upsert user config: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM user_channels WHERE user_id=$1`, cfg.UserID); err != nil {
		return fmt.Errorf("clear channels: %w", err)
	}
	if len(cfg.Channels) == 0 {
		return nil
	}
	names := make([]string, 0, len(cfg.Channels))
	for _, ch := range cfg.Channels {
		names = append(names, ch.String())
	}
	const insert = `
INSERT INTO user_channels (user_id, channel, position)
SELECT $1, c, ord FROM unnest($2::text[]) WITH ORDINALITY AS t(c, ord)
ON CONFLICT (user_id, channel) DO NOTHING;`
	if _, err := tx.Exec(ctx, insert, cfg.UserID, names); err != nil {
		return fmt.Errorf("insert channels: %w", err)
	}
	return nil
}

// FindSubscribers matches on the canonical channel string; handles are
// stored lower-cased and compared with lower() on both sides.
func (r *PostgresConfigRepo) FindSubscribers(ctx context.Context, qx repository.Tx, ref model.ChannelRef) ([]model.Subscriber, error) {
	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return nil, err
	}
	const q = `
SELECT c.user_id, c.api_url, c.api_key, c.service_id, c.default_quantity, c.created_at, c.updated_at
  FROM user_configs c
  JOIN user_channels ch ON ch.user_id = c.user_id
 WHERE lower(ch.channel) = lower($1)
   AND coalesce(c.api_url, '') <> ''
   AND coalesce(c.api_key, '') <> ''
   AND coalesce(c.service_id, '') <> ''
 ORDER BY c.user_id;`
	rows, err := ex.Query(ctx, q, ref.String())
	if err != nil {
		return nil, fmt.Errorf("find subscribers: %w", err)
	}
	var (
		configs []*model.UserConfig
		ids     []int64
	)
	for rows.Next() {
		cfg, err := r.scanConfig(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		configs = append(configs, cfg)
		ids = append(ids, cfg.UserID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find subscribers: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	chans, err := r.loadChannels(ctx, ex, ids)
	if err != nil {
		return nil, err
	}
	out := make([]model.Subscriber, 0, len(configs))
	for _, cfg := range configs {
		cfg.Channels = chans[cfg.UserID]
		if !cfg.HasCredential() {
			continue
		}
		out = append(out, model.Subscriber{UserID: cfg.UserID, Config: cfg})
	}
	return out, nil
}

func (r *PostgresConfigRepo) Stats(ctx context.Context, qx repository.Tx) (repository.ConfigStats, error) {
	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return repository.ConfigStats{}, err
	}
	const q = `
SELECT
  (SELECT count(*) FROM user_configs),
  (SELECT count(*) FROM user_configs
    WHERE coalesce(api_url,'') <> '' AND coalesce(api_key,'') <> '' AND coalesce(service_id,'') <> ''),
  (SELECT count(*) FROM user_channels);`
	var st repository.ConfigStats
	if err := ex.QueryRow(ctx, q).Scan(&st.Users, &st.ConfiguredUsers, &st.Channels); err != nil {
		return st, fmt.Errorf("config stats: %w", err)
	}
	return st, nil
}

func (r *PostgresConfigRepo) loadChannels(ctx context.Context, ex executor, ids []int64) (map[int64][]model.ChannelRef, error) {
	rows, err := ex.Query(ctx, `SELECT user_id, channel FROM user_channels WHERE user_id = ANY($1) ORDER BY user_id, position`, ids)
	if err != nil {
		return nil, fmt.Errorf("load channels: %w", err)
	}
	defer rows.Close()
	out := make(map[int64][]model.ChannelRef, len(ids))
	for rows.Next() {
		var (
			uid int64
			raw string
		)
		if err := rows.Scan(&uid, &raw); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		ref, err := model.ParseChannelRef(raw)
		if err != nil {
			continue // rows written by hand; nothing to match on
		}
		out[uid] = append(out[uid], ref)
	}
	return out, rows.Err()
}

func (r *PostgresConfigRepo) scanConfig(row pgx.Row) (*model.UserConfig, error) {
	var (
		cfg model.UserConfig
		qty *int32
	)
	if err := row.Scan(&cfg.UserID, &cfg.APIURL, &cfg.APIKey, &cfg.ServiceID, &qty, &cfg.CreatedAt, &cfg.UpdatedAt); err != nil {
		return nil, err
	}
	if qty != nil {
		q := int(*qty)
		cfg.DefaultQuantity = &q
	}
	if cfg.APIKey != nil {
		plain, err := r.cipher.Decrypt(*cfg.APIKey)
		if err != nil {
			return nil, fmt.Errorf("open api key for user %d: %w", cfg.UserID, err)
		}
		cfg.APIKey = &plain
	}
	return &cfg, nil
}
