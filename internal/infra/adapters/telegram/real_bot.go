package telegram

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"telegram-smm-autoboost/internal/application"
	"telegram-smm-autoboost/internal/config"
	"telegram-smm-autoboost/internal/domain/ports/adapter"
	"telegram-smm-autoboost/internal/infra/logging"
	"telegram-smm-autoboost/internal/infra/metrics"
	red "telegram-smm-autoboost/internal/infra/redis"
	"telegram-smm-autoboost/internal/usecase"
)

var _ adapter.TelegramBotAdapter = (*RealTelegramBotAdapter)(nil)

const shardQueue = 64

// botAPI is the part of *tgbotapi.BotAPI used for outbound calls.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Limiter is the inbound per-user budget. Nil disables limiting.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RealTelegramBotAdapter long-polls Telegram and feeds classified updates to
// an EventHandler. It is also the outbound message port.
type RealTelegramBotAdapter struct {
	bot         *tgbotapi.BotAPI
	api         botAPI
	cfg         *config.BotConfig
	rateLimiter Limiter
	sendLimiter *rate.Limiter
	t           usecase.Translator
	log         *zerolog.Logger

	mu            sync.Mutex
	cancelPolling context.CancelFunc
}

func NewRealTelegramBotAdapter(cfg *config.BotConfig, rateLimiter Limiter, t usecase.Translator, logger *zerolog.Logger) (*RealTelegramBotAdapter, error) {
	if cfg == nil {
		return nil, errors.New("bot config is nil")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", err)
	}
	r := newAdapter(bot, cfg, rateLimiter, t, logger)
	r.bot = bot
	r.log.Info().Str("username", bot.Self.UserName).Msg("telegram bot authorized")
	return r, nil
}

func newAdapter(api botAPI, cfg *config.BotConfig, rateLimiter Limiter, t usecase.Translator, logger *zerolog.Logger) *RealTelegramBotAdapter {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "telegram").Logger()
	sendRate, burst := rate.Limit(cfg.SendRate), cfg.SendBurst
	if cfg.SendRate <= 0 {
		sendRate = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &RealTelegramBotAdapter{
		api:         api,
		cfg:         cfg,
		rateLimiter: rateLimiter,
		sendLimiter: rate.NewLimiter(sendRate, burst),
		t:           t,
		log:         &l,
	}
}

// StartPolling blocks until ctx is cancelled or StopPolling is called.
func (r *RealTelegramBotAdapter) StartPolling(ctx context.Context, h application.EventHandler) error {
	if h == nil {
		return errors.New("event handler is nil")
	}
	if r.bot == nil {
		return errors.New("polling needs a live bot")
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	u.AllowedUpdates = []string{"message", "callback_query", "channel_post"}
	updates := r.bot.GetUpdatesChan(u)

	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancelPolling = cancel
	r.mu.Unlock()
	defer r.bot.StopReceivingUpdates()

	return r.consume(ctx, h, updates)
}

func (r *RealTelegramBotAdapter) StopPolling() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancelPolling != nil {
		r.cancelPolling()
	}
}

// consume fans updates out to a fixed set of workers keyed by user (or
// channel) id, so one user's events are handled in arrival order while
// different users proceed in parallel.
func (r *RealTelegramBotAdapter) consume(ctx context.Context, h application.EventHandler, updates <-chan tgbotapi.Update) error {
	workers := r.cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	shards := make([]chan inbound, workers)
	var wg sync.WaitGroup
	for i := range shards {
		shards[i] = make(chan inbound, shardQueue)
		wg.Add(1)
		go func(id int, in <-chan inbound) {
			defer wg.Done()
			for ev := range in {
				if ctx.Err() != nil {
					continue
				}
				if err := r.handle(ctx, h, ev); err != nil {
					r.log.Debug().Err(err).Int("worker", id).Str("kind", ev.kind.String()).Msg("update handler returned error")
				}
			}
		}(i, shards[i])
	}
	defer func() {
		for _, c := range shards {
			close(c)
		}
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			ev := classify(up)
			if ev.kind == kindNone {
				continue
			}
			select {
			case shards[shardFor(ev.key, workers)] <- ev:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (r *RealTelegramBotAdapter) handle(ctx context.Context, h application.EventHandler, ev inbound) (err error) {
	ctx = logging.WithTraceID(ctx, uuid.NewString())
	defer func() {
		if rec := recover(); rec != nil {
			logging.With(ctx, r.log).Error().Interface("panic", rec).Bytes("stack", debug.Stack()).Msg("update handler panicked")
			err = fmt.Errorf("update handler panicked: %v", rec)
		}
	}()

	if ev.kind == kindChannelPost {
		ctx = logging.WithChannel(ctx, ev.post.Channel.String())
		return h.HandleChannelPost(ctx, ev.post)
	}

	ctx = logging.WithTgID(ctx, ev.key)
	if ev.kind == kindButton {
		r.answerCallback(ctx, ev.callbackID)
	}
	if !r.allow(ctx, ev) {
		metrics.IncRateLimitTriggered()
		return r.SendMessage(ctx, adapter.SendMessageParams{ChatID: chatOf(ev), Text: r.t.T("rate_limited")})
	}

	switch ev.kind {
	case kindCommand:
		return h.HandleCommand(ctx, ev.command)
	case kindButton:
		return h.HandleButton(ctx, ev.button)
	case kindText:
		return h.HandleText(ctx, ev.text)
	}
	return nil
}

// allow fails open: a broken limiter store must not lock users out.
func (r *RealTelegramBotAdapter) allow(ctx context.Context, ev inbound) bool {
	if r.rateLimiter == nil {
		return true
	}
	ok, err := r.rateLimiter.Allow(ctx, red.UserCommandKey(ev.key, ev.kind.String()), r.cfg.RateLimit, r.cfg.RateWindow)
	if err != nil {
		logging.With(ctx, r.log).Warn().Err(err).Msg("rate limiter unavailable")
		return true
	}
	return ok
}

func (r *RealTelegramBotAdapter) answerCallback(ctx context.Context, id string) {
	if id == "" {
		return
	}
	if _, err := r.api.Request(tgbotapi.NewCallback(id, "")); err != nil {
		metrics.IncTelegramSendError("answer_callback")
		logging.With(ctx, r.log).Debug().Err(err).Msg("answer callback failed")
	}
}

func chatOf(ev inbound) int64 {
	switch ev.kind {
	case kindCommand:
		return ev.command.ChatID
	case kindButton:
		return ev.button.ChatID
	case kindText:
		return ev.text.ChatID
	}
	return 0
}

func (r *RealTelegramBotAdapter) SendMessage(ctx context.Context, p adapter.SendMessageParams) error {
	msg := tgbotapi.NewMessage(p.ChatID, p.Text)
	if kb, ok := keyboard(p.Buttons); ok {
		msg.ReplyMarkup = kb
	}
	if err := r.sendLimiter.Wait(ctx); err != nil {
		return err
	}
	if _, err := r.api.Send(msg); err != nil {
		metrics.IncTelegramSendError("send")
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// EditMessage treats "message is not modified" as success: the user pressed
// a button whose answer is already on screen.
func (r *RealTelegramBotAdapter) EditMessage(ctx context.Context, p adapter.EditMessageParams) error {
	var edit tgbotapi.EditMessageTextConfig
	if kb, ok := keyboard(p.Buttons); ok {
		edit = tgbotapi.NewEditMessageTextAndMarkup(p.ChatID, p.MessageID, p.Text, kb)
	} else {
		edit = tgbotapi.NewEditMessageText(p.ChatID, p.MessageID, p.Text)
	}
	if err := r.sendLimiter.Wait(ctx); err != nil {
		return err
	}
	if _, err := r.api.Request(edit); err != nil {
		if strings.Contains(err.Error(), "message is not modified") {
			return nil
		}
		metrics.IncTelegramSendError("edit")
		return fmt.Errorf("telegram edit: %w", err)
	}
	return nil
}

func keyboard(rows [][]adapter.InlineButton) (tgbotapi.InlineKeyboardMarkup, bool) {
	var out [][]tgbotapi.InlineKeyboardButton
	for _, row := range rows {
		var btns []tgbotapi.InlineKeyboardButton
		for _, b := range row {
			if b.URL != "" {
				btns = append(btns, tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL))
			} else {
				btns = append(btns, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
			}
		}
		if len(btns) > 0 {
			out = append(out, btns)
		}
	}
	if len(out) == 0 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
	return tgbotapi.NewInlineKeyboardMarkup(out...), true
}
