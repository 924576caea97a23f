package repository

import (
	"context"

	"telegram-smm-autoboost/internal/domain/model"
)

// StateRepository stores at most one in-progress conversation per user.
// GetState returns (nil, nil) when the user has no active flow.
type StateRepository interface {
	SetState(ctx context.Context, userID int64, state *model.ConversationState) error
	GetState(ctx context.Context, userID int64) (*model.ConversationState, error)
	ClearState(ctx context.Context, userID int64) error
}
