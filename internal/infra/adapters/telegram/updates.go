package telegram

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-smm-autoboost/internal/domain/model"
)

type eventKind int

const (
	kindNone eventKind = iota
	kindCommand
	kindButton
	kindText
	kindChannelPost
)

func (k eventKind) String() string {
	switch k {
	case kindCommand:
		return "command"
	case kindButton:
		return "button"
	case kindText:
		return "text"
	case kindChannelPost:
		return "channel_post"
	default:
		return "none"
	}
}

// inbound is one classified update. key decides the worker shard so that a
// single user (or channel) is always served in order.
type inbound struct {
	kind       eventKind
	key        int64
	callbackID string

	command model.CommandEvent
	button  model.ButtonEvent
	text    model.TextEvent
	post    model.ChannelPostEvent
}

// classify maps a raw update to an event. Anything the bot does not act on
// (edits, service messages, text typed inside channels or groups) is kindNone.
func classify(up tgbotapi.Update) inbound {
	switch {
	case up.CallbackQuery != nil:
		return classifyCallback(up.CallbackQuery)
	case up.ChannelPost != nil:
		return classifyChannelPost(up.ChannelPost)
	case up.Message != nil:
		return classifyMessage(up.Message)
	}
	return inbound{}
}

func classifyCallback(q *tgbotapi.CallbackQuery) inbound {
	if q.From == nil || q.Message == nil || q.Message.Chat == nil {
		return inbound{}
	}
	return inbound{
		kind:       kindButton,
		key:        q.From.ID,
		callbackID: q.ID,
		button: model.ButtonEvent{
			UserID:    q.From.ID,
			ChatID:    q.Message.Chat.ID,
			MessageID: q.Message.MessageID,
			Payload:   q.Data,
		},
	}
}

func classifyMessage(m *tgbotapi.Message) inbound {
	if m.From == nil || m.Chat == nil || !m.Chat.IsPrivate() {
		return inbound{}
	}
	if m.IsCommand() {
		return inbound{
			kind: kindCommand,
			key:  m.From.ID,
			command: model.CommandEvent{
				UserID:   m.From.ID,
				ChatID:   m.Chat.ID,
				Username: m.From.UserName,
				Command:  m.Command(),
				Args:     m.CommandArguments(),
			},
		}
	}
	if strings.TrimSpace(m.Text) == "" {
		return inbound{}
	}
	return inbound{
		kind: kindText,
		key:  m.From.ID,
		text: model.TextEvent{UserID: m.From.ID, ChatID: m.Chat.ID, Text: m.Text},
	}
}

func classifyChannelPost(m *tgbotapi.Message) inbound {
	if m.Chat == nil || !m.Chat.IsChannel() {
		return inbound{}
	}
	return inbound{
		kind: kindChannelPost,
		key:  m.Chat.ID,
		post: channelPostEvent(m.Chat.ID, m.Chat.UserName, m.MessageID),
	}
}

// channelPostEvent names the channel by its public handle when it has one and
// keeps the numeric id as an alias, so users who registered either form match.
func channelPostEvent(chatID int64, username string, messageID int) model.ChannelPostEvent {
	if username != "" {
		return model.ChannelPostEvent{
			Channel:   model.PublicChannel(username),
			Aliases:   []model.ChannelRef{model.PrivateChannel(chatID)},
			PostLink:  fmt.Sprintf("https://t.me/%s/%d", username, messageID),
			MessageID: messageID,
		}
	}
	return model.ChannelPostEvent{
		Channel:   model.PrivateChannel(chatID),
		PostLink:  privatePostLink(chatID, messageID),
		MessageID: messageID,
	}
}

// privatePostLink builds the t.me/c/ form, which uses the chat id without
// the "-100" supergroup prefix.
func privatePostLink(chatID int64, messageID int) string {
	id := strconv.FormatInt(chatID, 10)
	if strings.HasPrefix(id, "-100") {
		id = id[len("-100"):]
	} else {
		id = strings.TrimPrefix(id, "-")
	}
	return fmt.Sprintf("https://t.me/c/%s/%d", id, messageID)
}

func shardFor(key int64, n int) int {
	if n <= 1 {
		return 0
	}
	return int(uint64(key) % uint64(n))
}
