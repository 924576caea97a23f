package application

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/rs/zerolog"

	"telegram-smm-autoboost/internal/domain/model"
	"telegram-smm-autoboost/internal/domain/ports/adapter"
	"telegram-smm-autoboost/internal/infra/logging"
	"telegram-smm-autoboost/internal/infra/metrics"
	"telegram-smm-autoboost/internal/usecase"
)

// Commands the bot answers.
const (
	CommandStart  = "start"
	CommandCancel = "cancel"
	CommandStatus = "status"
)

// BotFacade routes classified transport events to the use cases and sends
// their replies back. One user's failure never leaves this type: errors and
// panics become a generic reply for that user only.
type BotFacade struct {
	Conv     usecase.ConversationUseCase
	Dispatch usecase.DispatchUseCase
	Bot      adapter.TelegramBotAdapter
	T        usecase.Translator
	log      *zerolog.Logger
}

func NewBotFacade(conv usecase.ConversationUseCase, dispatch usecase.DispatchUseCase, bot adapter.TelegramBotAdapter, t usecase.Translator, logger *zerolog.Logger) *BotFacade {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &BotFacade{Conv: conv, Dispatch: dispatch, Bot: bot, T: t, log: logger}
}

func (b *BotFacade) HandleCommand(ctx context.Context, ev model.CommandEvent) error {
	cmd := strings.ToLower(strings.TrimPrefix(ev.Command, "/"))
	metrics.IncTelegramCommand(cmd)
	return b.respond(ctx, ev.ChatID, 0, "command:"+cmd, func() (model.Reply, error) {
		switch cmd {
		case CommandStart:
			return b.Conv.Start(ctx, ev.UserID)
		case CommandCancel:
			return b.Conv.Cancel(ctx, ev.UserID)
		case CommandStatus:
			return b.Conv.Status(ctx, ev.UserID)
		default:
			return model.Reply{Text: b.T.T("idle_hint")}, nil
		}
	})
}

// HandleButton parses the payload once; unknown payloads get a hint instead
// of an error. The reply replaces the message that carried the button.
func (b *BotFacade) HandleButton(ctx context.Context, ev model.ButtonEvent) error {
	action, err := model.ParseAction(ev.Payload)
	if err != nil {
		metrics.IncTelegramCallback("unknown")
		return b.respond(ctx, ev.ChatID, ev.MessageID, "button:unknown", func() (model.Reply, error) {
			return model.Reply{Text: b.T.T("unknown_action")}, nil
		})
	}
	metrics.IncTelegramCallback(actionLabel(action))
	return b.respond(ctx, ev.ChatID, ev.MessageID, "button:"+actionLabel(action), func() (model.Reply, error) {
		return b.Conv.HandleAction(ctx, ev.UserID, action)
	})
}

func (b *BotFacade) HandleText(ctx context.Context, ev model.TextEvent) error {
	return b.respond(ctx, ev.ChatID, 0, "text", func() (model.Reply, error) {
		return b.Conv.HandleText(ctx, ev.UserID, ev.Text)
	})
}

// HandleChannelPost never answers anyone directly; subscribers are notified
// by the dispatch tasks.
func (b *BotFacade) HandleChannelPost(ctx context.Context, ev model.ChannelPostEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logging.With(ctx, b.log).Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("channel post handler panicked")
			err = fmt.Errorf("channel post handler panicked: %v", r)
		}
	}()
	n, err := b.Dispatch.HandleChannelPost(ctx, ev)
	if err != nil {
		logging.With(ctx, b.log).Error().Err(err).Str("post_link", ev.PostLink).Msg("auto dispatch failed")
		return err
	}
	logging.With(ctx, b.log).Debug().Int("orders", n).Str("post_link", ev.PostLink).Msg("channel post dispatched")
	return nil
}

// respond runs fn and delivers its reply to chatID, editing messageID when
// it is set. Errors and panics are logged and answered with error_generic.
func (b *BotFacade) respond(ctx context.Context, chatID int64, messageID int, op string, fn func() (model.Reply, error)) (err error) {
	log := logging.With(ctx, b.log)
	reply, err := b.safeCall(fn)
	if err != nil {
		log.Error().Err(err).Str("op", op).Msg("handler failed")
		reply = model.Reply{Text: b.T.T("error_generic")}
	}
	if sendErr := b.deliver(ctx, chatID, messageID, reply); sendErr != nil {
		log.Warn().Err(sendErr).Str("op", op).Msg("reply not delivered")
		if err == nil {
			err = sendErr
		}
	}
	return err
}

func (b *BotFacade) safeCall(fn func() (model.Reply, error)) (reply model.Reply, err error) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("handler panicked")
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return fn()
}

func (b *BotFacade) deliver(ctx context.Context, chatID int64, messageID int, reply model.Reply) error {
	if reply.Text == "" {
		return nil
	}
	buttons := ToInlineButtons(reply.Buttons)
	if messageID != 0 {
		err := b.Bot.EditMessage(ctx, adapter.EditMessageParams{ChatID: chatID, MessageID: messageID, Text: reply.Text, Buttons: buttons})
		if err == nil {
			return nil
		}
		// messages older than 48h cannot be edited; send a new one instead
		logging.With(ctx, b.log).Debug().Err(err).Int("message_id", messageID).Msg("edit failed, sending instead")
	}
	return b.Bot.SendMessage(ctx, adapter.SendMessageParams{ChatID: chatID, Text: reply.Text, Buttons: buttons})
}

// ToInlineButtons converts a reply menu into transport buttons.
func ToInlineButtons(rows [][]model.Button) [][]adapter.InlineButton {
	if len(rows) == 0 {
		return nil
	}
	out := make([][]adapter.InlineButton, 0, len(rows))
	for _, row := range rows {
		r := make([]adapter.InlineButton, 0, len(row))
		for _, btn := range row {
			ib := adapter.InlineButton{Text: btn.Text, URL: btn.URL}
			if btn.Action != nil {
				ib.Data = btn.Action.Payload()
			}
			r = append(r, ib)
		}
		out = append(out, r)
	}
	return out
}

// actionLabel is a low-cardinality metric label for an action.
func actionLabel(a model.Action) string {
	switch v := a.(type) {
	case model.EditField:
		return "edit_" + string(v.Field)
	case model.RemoveChannel:
		return "remove_channel_item"
	default:
		return a.Payload()
	}
}
