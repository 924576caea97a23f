package repository

import (
	"context"

	"telegram-smm-autoboost/internal/domain/model"
)

// ConfigStats is a snapshot used by the stats job.
type ConfigStats struct {
	Users           int
	ConfiguredUsers int
	Channels        int
}

// ConfigRepository persists UserConfig records.
//
// Get never fails for an unknown user: it returns an empty config.
// Save upserts the scalar fields and replaces the user's channel set in one
// atomic step; a concurrent reader sees either the old or the new set.
// FindSubscribers returns users who monitor ref and have a complete credential.
type ConfigRepository interface {
	Get(ctx context.Context, tx Tx, userID int64) (*model.UserConfig, error)
	Save(ctx context.Context, tx Tx, cfg *model.UserConfig) error
	FindSubscribers(ctx context.Context, tx Tx, ref model.ChannelRef) ([]model.Subscriber, error)
	Stats(ctx context.Context, tx Tx) (ConfigStats, error)
}
