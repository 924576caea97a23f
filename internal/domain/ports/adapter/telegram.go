// File: internal/domain/ports/adapter/telegram.go
package adapter

import "context"

type InlineButton struct {
	Text string
	Data string
	URL  string
}

// SendMessageParams describes an outbound message. Buttons may be nil.
type SendMessageParams struct {
	ChatID  int64
	Text    string
	Buttons [][]InlineButton
}

// EditMessageParams replaces the text and keyboard of an earlier bot message.
type EditMessageParams struct {
	ChatID    int64
	MessageID int
	Text      string
	Buttons   [][]InlineButton
}

type TelegramBotAdapter interface {
	SendMessage(ctx context.Context, params SendMessageParams) error
	EditMessage(ctx context.Context, params EditMessageParams) error
}
