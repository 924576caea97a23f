package application

import (
	"context"

	"telegram-smm-autoboost/internal/domain/model"
)

// EventHandler is what the chat transport feeds classified updates into.
// Implementations answer the user themselves; a returned error has already
// been reported and is for logging only.
type EventHandler interface {
	HandleCommand(ctx context.Context, ev model.CommandEvent) error
	HandleButton(ctx context.Context, ev model.ButtonEvent) error
	HandleText(ctx context.Context, ev model.TextEvent) error
	HandleChannelPost(ctx context.Context, ev model.ChannelPostEvent) error
}

var _ EventHandler = (*BotFacade)(nil)
