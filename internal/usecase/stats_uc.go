package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"telegram-smm-autoboost/internal/domain/ports/repository"
	"telegram-smm-autoboost/internal/infra/metrics"
	"telegram-smm-autoboost/internal/infra/scheduler"
)

// Compile-time checks
var (
	_ StatsUseCase  = (*statsUC)(nil)
	_ scheduler.Job = (*statsUC)(nil)
)

type StatsUseCase interface {
	Totals(ctx context.Context) (repository.ConfigStats, error)
}

// statsUC also runs as a scheduler job that refreshes the user and channel gauges.
type statsUC struct {
	configs repository.ConfigRepository
	log     *zerolog.Logger
}

func NewStatsUseCase(configs repository.ConfigRepository, logger *zerolog.Logger) *statsUC {
	return &statsUC{configs: configs, log: orNop(logger)}
}

func (s *statsUC) Totals(ctx context.Context) (repository.ConfigStats, error) {
	return s.configs.Stats(ctx, repository.NoTX)
}

func (s *statsUC) Name() string { return "config_stats" }

func (s *statsUC) Run(ctx context.Context) error {
	st, err := s.Totals(ctx)
	if err != nil {
		return err
	}
	metrics.SetUserTotals(st.Users, st.ConfiguredUsers)
	metrics.SetMonitoredChannels(st.Channels)
	s.log.Debug().Int("users", st.Users).Int("configured", st.ConfiguredUsers).Int("channels", st.Channels).Msg("stats refreshed")
	return nil
}
