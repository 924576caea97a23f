package usecase

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"telegram-smm-autoboost/internal/domain/model"
	"telegram-smm-autoboost/internal/domain/ports/repository"
	"telegram-smm-autoboost/internal/infra/logging"
)

// Compile-time check
var _ SettingsUseCase = (*settingsUC)(nil)

// SettingsUseCase owns every mutation of a UserConfig. Each mutation is a
// read-modify-write inside one transaction.
type SettingsUseCase interface {
	Get(ctx context.Context, userID int64) (*model.UserConfig, error)
	Ensure(ctx context.Context, userID int64) (*model.UserConfig, error)
	SaveCredential(ctx context.Context, userID int64, cred model.Credential, quantity int) error
	UpdateField(ctx context.Context, userID int64, field model.CredentialField, value string) error
	RemoveCredential(ctx context.Context, userID int64) (bool, error)
	AddChannel(ctx context.Context, userID int64, ref model.ChannelRef) (bool, error)
	RemoveChannel(ctx context.Context, userID int64, ref model.ChannelRef) (bool, error)
}

type settingsUC struct {
	configs repository.ConfigRepository
	tm      repository.TransactionManager
	log     *zerolog.Logger
}

func NewSettingsUseCase(configs repository.ConfigRepository, tm repository.TransactionManager, logger *zerolog.Logger) *settingsUC {
	return &settingsUC{configs: configs, tm: tm, log: orNop(logger)}
}

func (s *settingsUC) Get(ctx context.Context, userID int64) (*model.UserConfig, error) {
	return s.configs.Get(ctx, repository.NoTX, userID)
}

// Ensure creates the empty record on first contact. Existing records are
// written back unchanged, which only refreshes updated_at.
func (s *settingsUC) Ensure(ctx context.Context, userID int64) (*model.UserConfig, error) {
	defer logging.TraceDuration(s.log, "SettingsUC.Ensure")()
	var out *model.UserConfig
	err := s.mutate(ctx, userID, func(cfg *model.UserConfig) bool {
		cfg.Touch()
		out = cfg.Clone()
		return true
	})
	return out, err
}

func (s *settingsUC) SaveCredential(ctx context.Context, userID int64, cred model.Credential, quantity int) error {
	defer logging.TraceDuration(s.log, "SettingsUC.SaveCredential")()
	err := s.mutate(ctx, userID, func(cfg *model.UserConfig) bool {
		cfg.SetCredential(cred.APIURL, cred.APIKey, cred.ServiceID, quantity)
		return true
	})
	if err != nil {
		return err
	}
	logging.With(ctx, s.log).Info().
		Str("api_url", cred.APIURL).
		Str("api_key", logging.Redact(cred.APIKey, false)).
		Str("service_id", cred.ServiceID).
		Msg("panel credential saved")
	return nil
}

func (s *settingsUC) UpdateField(ctx context.Context, userID int64, field model.CredentialField, value string) error {
	defer logging.TraceDuration(s.log, "SettingsUC.UpdateField")()
	var setErr error
	err := s.mutate(ctx, userID, func(cfg *model.UserConfig) bool {
		setErr = cfg.SetField(field, value)
		return setErr == nil
	})
	if err != nil {
		return err
	}
	return setErr
}

func (s *settingsUC) RemoveCredential(ctx context.Context, userID int64) (bool, error) {
	defer logging.TraceDuration(s.log, "SettingsUC.RemoveCredential")()
	var had bool
	err := s.mutate(ctx, userID, func(cfg *model.UserConfig) bool {
		had = cfg.HasAnyCredentialField()
		if had {
			cfg.ClearCredential()
		}
		return had
	})
	return had, err
}

func (s *settingsUC) AddChannel(ctx context.Context, userID int64, ref model.ChannelRef) (bool, error) {
	defer logging.TraceDuration(s.log, "SettingsUC.AddChannel")()
	var added bool
	err := s.mutate(ctx, userID, func(cfg *model.UserConfig) bool {
		added = cfg.AddChannel(ref)
		return added
	})
	return added, err
}

func (s *settingsUC) RemoveChannel(ctx context.Context, userID int64, ref model.ChannelRef) (bool, error) {
	defer logging.TraceDuration(s.log, "SettingsUC.RemoveChannel")()
	var removed bool
	err := s.mutate(ctx, userID, func(cfg *model.UserConfig) bool {
		removed = cfg.RemoveChannel(ref)
		return removed
	})
	return removed, err
}

// mutate loads the config, applies fn and saves when fn reports a change.
func (s *settingsUC) mutate(ctx context.Context, userID int64, fn func(cfg *model.UserConfig) bool) error {
	return s.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		cfg, err := s.configs.Get(ctx, tx, userID)
		if err != nil {
			return err
		}
		if !fn(cfg) {
			return nil
		}
		return s.configs.Save(ctx, tx, cfg)
	})
}
