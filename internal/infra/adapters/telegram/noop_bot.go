package telegram

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-smm-autoboost/internal/domain/ports/adapter"
)

var _ adapter.TelegramBotAdapter = (*NoopBotAdapter)(nil)

// NoopBotAdapter logs outbound messages instead of calling Telegram. Used in
// dev runs without a token.
type NoopBotAdapter struct {
	delay time.Duration
	log   *zerolog.Logger
}

func NewNoopBotAdapter(logger *zerolog.Logger) *NoopBotAdapter {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &NoopBotAdapter{delay: 50 * time.Millisecond, log: logger}
}

func (b *NoopBotAdapter) SendMessage(ctx context.Context, p adapter.SendMessageParams) error {
	if err := b.wait(ctx); err != nil {
		return err
	}
	b.log.Info().Int64("chat_id", p.ChatID).Int("button_rows", len(p.Buttons)).Str("text", p.Text).Msg("noop telegram send")
	return nil
}

func (b *NoopBotAdapter) EditMessage(ctx context.Context, p adapter.EditMessageParams) error {
	if err := b.wait(ctx); err != nil {
		return err
	}
	b.log.Info().Int64("chat_id", p.ChatID).Int("message_id", p.MessageID).Str("text", p.Text).Msg("noop telegram edit")
	return nil
}

func (b *NoopBotAdapter) wait(ctx context.Context) error {
	select {
	case <-time.After(b.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
