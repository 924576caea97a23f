package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"telegram-smm-autoboost/internal/domain/model"
	"telegram-smm-autoboost/internal/domain/ports/adapter"
	"telegram-smm-autoboost/internal/domain/ports/repository"
	derror "telegram-smm-autoboost/internal/error"
	"telegram-smm-autoboost/internal/infra/logging"
	"telegram-smm-autoboost/internal/infra/metrics"
	"telegram-smm-autoboost/internal/infra/worker"
)

// Compile-time check
var _ DispatchUseCase = (*dispatchUC)(nil)

// DispatchUseCase places one order per subscriber for every new channel post.
type DispatchUseCase interface {
	// HandleChannelPost schedules the orders and returns how many were
	// scheduled. Order outcomes are only logged.
	HandleChannelPost(ctx context.Context, ev model.ChannelPostEvent) (int, error)
}

// TaskSubmitter starts a task without blocking the caller and without
// queueing it behind other tasks; it refuses when saturated. *worker.Pool
// implements it.
type TaskSubmitter interface {
	Go(task worker.Task) error
}

// PostDeduper remembers dispatched posts so a redelivered update does not
// order twice.
type PostDeduper interface {
	FirstSeen(ctx context.Context, key string) (bool, error)
}

type DispatchOptions struct {
	// PerOrderTimeout bounds one subscriber's panel call plus notification.
	PerOrderTimeout time.Duration
}

type dispatchUC struct {
	configs repository.ConfigRepository
	panel   adapter.SMMPanel
	bot     adapter.TelegramBotAdapter
	tasks   TaskSubmitter
	dedupe  PostDeduper
	t       Translator
	opts    DispatchOptions
	log     *zerolog.Logger
}

// NewDispatchUseCase wires the engine. dedupe may be nil.
func NewDispatchUseCase(configs repository.ConfigRepository, panel adapter.SMMPanel, bot adapter.TelegramBotAdapter, tasks TaskSubmitter, dedupe PostDeduper, t Translator, opts DispatchOptions, logger *zerolog.Logger) *dispatchUC {
	if opts.PerOrderTimeout <= 0 {
		opts.PerOrderTimeout = 20 * time.Second
	}
	return &dispatchUC{configs: configs, panel: panel, bot: bot, tasks: tasks, dedupe: dedupe, t: t, opts: opts, log: orNop(logger)}
}

func (d *dispatchUC) HandleChannelPost(ctx context.Context, ev model.ChannelPostEvent) (int, error) {
	defer logging.TraceDuration(d.log, "DispatchUC.HandleChannelPost")()
	refs := ev.Refs()
	if len(refs) == 0 || ev.PostLink == "" {
		metrics.IncChannelPost("unresolvable")
		return 0, nil
	}
	ctx = logging.WithChannel(ctx, refs[0].String())
	log := logging.With(ctx, d.log)

	if d.dedupe != nil {
		first, err := d.dedupe.FirstSeen(ctx, refs[0].String()+":"+strconv.Itoa(ev.MessageID))
		if err != nil {
			// better to risk a duplicate than to drop the post
			log.Warn().Err(err).Msg("post dedupe unavailable")
		} else if !first {
			metrics.IncChannelPost("duplicate")
			return 0, nil
		}
	}
	metrics.IncChannelPost("new")

	subs, err := d.subscribers(ctx, refs)
	if err != nil {
		return 0, err
	}
	metrics.ObserveMatchedSubscribers(len(subs))
	if len(subs) == 0 {
		log.Debug().Str("post_link", ev.PostLink).Msg("no subscribers for channel post")
		return 0, nil
	}

	scheduled := 0
	for _, sub := range subs {
		sub := sub
		traceID := logging.TraceIDFrom(ctx)
		err := d.tasks.Go(func(taskCtx context.Context) error {
			taskCtx = logging.WithChannel(logging.WithTraceID(taskCtx, traceID), refs[0].String())
			d.placeFor(taskCtx, refs[0], ev.PostLink, sub)
			return nil
		})
		if err != nil {
			metrics.IncDispatchDropped()
			log.Error().Err(err).Int64("tg_id", sub.UserID).Str("post_link", ev.PostLink).Msg("auto order not scheduled")
			continue
		}
		scheduled++
	}
	return scheduled, nil
}

// subscribers merges the matches of every ref, one entry per user. A failed
// lookup for one alias does not hide the matches of the others.
func (d *dispatchUC) subscribers(ctx context.Context, refs []model.ChannelRef) ([]model.Subscriber, error) {
	var (
		out  []model.Subscriber
		seen = make(map[int64]struct{})
		errs []error
	)
	for _, ref := range refs {
		found, err := d.configs.FindSubscribers(ctx, repository.NoTX, ref)
		if err != nil {
			errs = append(errs, fmt.Errorf("find subscribers of %s: %w", ref, err))
			continue
		}
		for _, s := range found {
			if _, dup := seen[s.UserID]; dup {
				continue
			}
			seen[s.UserID] = struct{}{}
			out = append(out, s)
		}
	}
	if len(out) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	for _, err := range errs {
		logging.With(ctx, d.log).Warn().Err(err).Msg("partial subscriber lookup")
	}
	return out, nil
}

// placeFor is one subscriber's attempt. Nothing it does may reach another
// subscriber: failures and panics end here.
func (d *dispatchUC) placeFor(ctx context.Context, channel model.ChannelRef, link string, sub model.Subscriber) {
	ctx, cancel := context.WithTimeout(logging.WithTgID(ctx, sub.UserID), d.opts.PerOrderTimeout)
	defer cancel()
	log := logging.With(ctx, d.log)
	defer func() {
		if r := recover(); r != nil {
			metrics.IncOrder(string(model.SourceAuto), "panic")
			log.Error().Interface("panic", r).Str("post_link", link).Msg("auto order panicked")
		}
	}()

	cred, err := sub.Config.Credential()
	if err != nil {
		metrics.IncOrder(string(model.SourceAuto), "no_credential")
		return
	}
	qty := sub.Config.OrderQuantity()

	receipt, err := d.panel.PlaceOrder(ctx, cred, link, qty)
	if err != nil {
		metrics.IncOrder(string(model.SourceAuto), "failed")
		ev := log.Warn().Err(err).Str("post_link", link).Int("quantity", qty)
		if pe, ok := derror.AsPanelError(err); ok {
			ev = ev.Str("kind", string(pe.Kind)).Int("status", pe.StatusCode)
		}
		ev.Msg("auto order failed")
		return
	}
	metrics.IncOrder(string(model.SourceAuto), "placed")
	log.Info().Str("order_id", receipt.OrderID).Str("post_link", link).Int("quantity", qty).Msg("auto order placed")

	price := d.t.T("price_unknown")
	if receipt.Price != nil {
		price = model.FormatAmount(*receipt.Price)
	}
	err = d.bot.SendMessage(ctx, adapter.SendMessageParams{
		ChatID: sub.UserID,
		Text:   d.t.T("auto_order_placed", channel.String(), link, qty, receipt.OrderID, price),
	})
	if err != nil {
		log.Warn().Err(err).Str("order_id", receipt.OrderID).Msg("auto order notification failed")
	}
}
