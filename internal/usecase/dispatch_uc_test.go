//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"telegram-smm-autoboost/internal/domain/model"
	"telegram-smm-autoboost/internal/domain/ports/adapter"
	"telegram-smm-autoboost/internal/domain/ports/repository"
	derror "telegram-smm-autoboost/internal/error"
	"telegram-smm-autoboost/internal/infra/i18n"
	"telegram-smm-autoboost/internal/infra/worker"
	"telegram-smm-autoboost/internal/usecase"
)

func subscriber(id int64, qty *int, channels ...model.ChannelRef) *model.UserConfig {
	cfg := model.NewUserConfig(id)
	cfg.APIURL = strPtr(fmt.Sprintf("http://panel-%d/api", id))
	cfg.APIKey = strPtr(fmt.Sprintf("key-%d-abcdef", id))
	cfg.ServiceID = strPtr("7")
	cfg.DefaultQuantity = qty
	for _, ch := range channels {
		cfg.AddChannel(ch)
	}
	return cfg
}

func newsPost() model.ChannelPostEvent {
	return model.ChannelPostEvent{
		Channel:   model.PublicChannel("news"),
		Aliases:   []model.ChannelRef{model.PrivateChannel(-100555)},
		PostLink:  "https://t.me/news/42",
		MessageID: 42,
	}
}

func TestDispatch_DefaultQuantityFallback(t *testing.T) {
	ctx := context.Background()
	configs := NewMockConfigRepo()
	configs.Seed(subscriber(1, nil, model.PublicChannel("news")))
	panel := &MockSMMPanel{}
	bot := &MockTelegramBot{}

	uc := usecase.NewDispatchUseCase(configs, panel, bot, inlineSubmitter{}, nil, i18n.MustDefault(), usecase.DispatchOptions{}, newTestLogger())
	n, err := uc.HandleChannelPost(ctx, newsPost())
	if err != nil {
		t.Fatalf("HandleChannelPost: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 scheduled order, got %d", n)
	}
	calls := panel.Orders()
	if len(calls) != 1 || calls[0].Quantity != model.DefaultOrderQuantity || calls[0].Link != "https://t.me/news/42" {
		t.Fatalf("unexpected order calls %+v", calls)
	}
	if calls[0].Credential.APIURL != "http://panel-1/api" {
		t.Errorf("order used the wrong credential %+v", calls[0].Credential)
	}
}

func TestDispatch_BatchIsolation(t *testing.T) {
	ctx := context.Background()
	tr := i18n.MustDefault()
	qty := 300

	cases := map[string]func() (model.OrderReceipt, error){
		"timeout": func() (model.OrderReceipt, error) {
			return model.OrderReceipt{}, &derror.PanelError{Kind: derror.PanelTimeout}
		},
		"missing order id": func() (model.OrderReceipt, error) {
			return model.OrderReceipt{}, &derror.PanelError{Kind: derror.PanelMissingOrderID}
		},
		"panic": func() (model.OrderReceipt, error) {
			panic("panel exploded")
		},
	}

	for name, failure := range cases {
		t.Run(name, func(t *testing.T) {
			configs := NewMockConfigRepo()
			for id := int64(1); id <= 3; id++ {
				configs.Seed(subscriber(id, &qty, model.PublicChannel("news")))
			}
			price := decimal.RequireFromString("1.50")
			panel := &MockSMMPanel{
				PlaceOrderFunc: func(ctx context.Context, cred model.Credential, link string, q int) (model.OrderReceipt, error) {
					if cred.APIURL == "http://panel-2/api" {
						return failure()
					}
					return model.OrderReceipt{OrderID: "ord-" + cred.APIURL[13:14], Price: &price}, nil
				},
			}
			bot := &MockTelegramBot{}

			uc := usecase.NewDispatchUseCase(configs, panel, bot, inlineSubmitter{}, nil, tr, usecase.DispatchOptions{}, newTestLogger())
			if _, err := uc.HandleChannelPost(ctx, newsPost()); err != nil {
				t.Fatalf("HandleChannelPost: %v", err)
			}

			if got := len(panel.Orders()); got != 3 {
				t.Errorf("every subscriber must get an attempt, got %d", got)
			}
			sent := bot.SentTo()
			if len(sent) != 2 || sent[0] != 1 || sent[1] != 3 {
				t.Fatalf("expected notifications for users 1 and 3 only, got %v", sent)
			}
			want := tr.T("auto_order_placed", "@news", "https://t.me/news/42", 300, "ord-1", "1.50")
			found := false
			for _, m := range bot.Sent {
				if m.Text == want {
					found = true
				}
			}
			if !found {
				t.Errorf("notification text mismatch, want %q in %+v", want, bot.Sent)
			}
		})
	}
}

func TestDispatch_HungSubscribersDoNotDelayOthers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// more hung panels than workers
	configs := NewMockConfigRepo()
	for id := int64(1); id <= 6; id++ {
		configs.Seed(subscriber(id, nil, model.PublicChannel("news")))
	}
	release := make(chan struct{})
	healthy := make(chan time.Time, 1)
	panel := &MockSMMPanel{
		PlaceOrderFunc: func(ctx context.Context, cred model.Credential, link string, q int) (model.OrderReceipt, error) {
			if cred.APIURL == "http://panel-6/api" {
				healthy <- time.Now()
				return model.OrderReceipt{OrderID: "x"}, nil
			}
			select {
			case <-release:
			case <-ctx.Done():
			}
			return model.OrderReceipt{}, &derror.PanelError{Kind: derror.PanelTimeout}
		},
	}
	pool := worker.NewPool(2, 16, newTestLogger())
	pool.Start(ctx)
	defer pool.Stop()
	defer close(release)

	uc := usecase.NewDispatchUseCase(configs, panel, &MockTelegramBot{}, pool, nil, i18n.MustDefault(),
		usecase.DispatchOptions{PerOrderTimeout: 10 * time.Second}, newTestLogger())
	start := time.Now()
	n, err := uc.HandleChannelPost(ctx, newsPost())
	if err != nil || n != 6 {
		t.Fatalf("expected 6 scheduled orders, got %d, %v", n, err)
	}

	select {
	case at := <-healthy:
		if d := at.Sub(start); d > time.Second {
			t.Fatalf("subscriber 6 waited %s behind hung panels", d)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber 6 was held up by hung panels")
	}
}

func TestDispatch_SaturatedPoolDropsInsteadOfBlocking(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	configs := NewMockConfigRepo()
	for id := int64(1); id <= 4; id++ {
		configs.Seed(subscriber(id, nil, model.PublicChannel("news")))
	}
	release := make(chan struct{})
	panel := &MockSMMPanel{
		PlaceOrderFunc: func(ctx context.Context, cred model.Credential, link string, q int) (model.OrderReceipt, error) {
			select {
			case <-release:
			case <-ctx.Done():
			}
			return model.OrderReceipt{}, &derror.PanelError{Kind: derror.PanelTimeout}
		},
	}
	// one worker plus one extra goroutine at most
	pool := worker.NewPool(1, 1, newTestLogger())
	pool.Start(ctx)
	defer pool.Stop()
	defer close(release)

	uc := usecase.NewDispatchUseCase(configs, panel, &MockTelegramBot{}, pool, nil, i18n.MustDefault(),
		usecase.DispatchOptions{PerOrderTimeout: 10 * time.Second}, newTestLogger())

	start := time.Now()
	n, err := uc.HandleChannelPost(ctx, newsPost())
	if err != nil {
		t.Fatalf("HandleChannelPost: %v", err)
	}
	if d := time.Since(start); d > 500*time.Millisecond {
		t.Fatalf("HandleChannelPost blocked for %s on a saturated pool", d)
	}
	if n < 1 || n > 2 {
		t.Errorf("expected 1 or 2 scheduled orders and the rest dropped, got %d", n)
	}
}

func TestDispatch_AliasesMatchOncePerUser(t *testing.T) {
	ctx := context.Background()
	configs := NewMockConfigRepo()
	// user 1 registered both forms of the same channel
	configs.Seed(subscriber(1, nil, model.PublicChannel("news"), model.PrivateChannel(-100555)))
	// user 2 only knows the numeric id
	configs.Seed(subscriber(2, nil, model.PrivateChannel(-100555)))
	// user 3 has no credential
	partial := model.NewUserConfig(3)
	partial.AddChannel(model.PublicChannel("news"))
	configs.Seed(partial)

	panel := &MockSMMPanel{}
	uc := usecase.NewDispatchUseCase(configs, panel, &MockTelegramBot{}, inlineSubmitter{}, nil, i18n.MustDefault(), usecase.DispatchOptions{}, newTestLogger())
	n, err := uc.HandleChannelPost(ctx, newsPost())
	if err != nil {
		t.Fatalf("HandleChannelPost: %v", err)
	}
	if n != 2 || len(panel.Orders()) != 2 {
		t.Errorf("expected one order each for users 1 and 2, got n=%d calls=%d", n, len(panel.Orders()))
	}
}

func TestDispatch_RedeliveredPostIsIgnored(t *testing.T) {
	ctx := context.Background()
	configs := NewMockConfigRepo()
	configs.Seed(subscriber(1, nil, model.PublicChannel("news")))
	panel := &MockSMMPanel{}
	uc := usecase.NewDispatchUseCase(configs, panel, &MockTelegramBot{}, inlineSubmitter{}, &mockDeduper{}, i18n.MustDefault(), usecase.DispatchOptions{}, newTestLogger())

	for i := 0; i < 2; i++ {
		if _, err := uc.HandleChannelPost(ctx, newsPost()); err != nil {
			t.Fatalf("HandleChannelPost: %v", err)
		}
	}
	if got := len(panel.Orders()); got != 1 {
		t.Errorf("expected a single order for a redelivered post, got %d", got)
	}
}

func TestDispatch_EdgeCases(t *testing.T) {
	ctx := context.Background()

	t.Run("unresolvable channel is ignored", func(t *testing.T) {
		configs := NewMockConfigRepo()
		configs.FindSubscribersFunc = func(ctx context.Context, tx repository.Tx, ref model.ChannelRef) ([]model.Subscriber, error) {
			t.Error("lookup must not run for a post without a channel")
			return nil, nil
		}
		uc := usecase.NewDispatchUseCase(configs, &MockSMMPanel{}, &MockTelegramBot{}, inlineSubmitter{}, nil, i18n.MustDefault(), usecase.DispatchOptions{}, newTestLogger())
		n, err := uc.HandleChannelPost(ctx, model.ChannelPostEvent{PostLink: "https://t.me/c/1/2", MessageID: 2})
		if n != 0 || err != nil {
			t.Errorf("expected no-op, got %d, %v", n, err)
		}
	})

	t.Run("lookup failure is returned when nothing matched", func(t *testing.T) {
		configs := NewMockConfigRepo()
		configs.FindSubscribersFunc = func(ctx context.Context, tx repository.Tx, ref model.ChannelRef) ([]model.Subscriber, error) {
			return nil, errors.New("db down")
		}
		uc := usecase.NewDispatchUseCase(configs, &MockSMMPanel{}, &MockTelegramBot{}, inlineSubmitter{}, nil, i18n.MustDefault(), usecase.DispatchOptions{}, newTestLogger())
		if _, err := uc.HandleChannelPost(ctx, newsPost()); err == nil {
			t.Error("expected the lookup error")
		}
	})

	t.Run("notification failure is only logged", func(t *testing.T) {
		configs := NewMockConfigRepo()
		configs.Seed(subscriber(1, nil, model.PublicChannel("news")))
		configs.Seed(subscriber(2, nil, model.PublicChannel("news")))
		panel := &MockSMMPanel{}
		var attempts atomic.Int32
		bot := &MockTelegramBot{SendMessageFunc: func(ctx context.Context, p adapter.SendMessageParams) error {
			attempts.Add(1)
			return errors.New("bot was blocked by the user")
		}}
		uc := usecase.NewDispatchUseCase(configs, panel, bot, inlineSubmitter{}, nil, i18n.MustDefault(), usecase.DispatchOptions{}, newTestLogger())
		n, err := uc.HandleChannelPost(ctx, newsPost())
		if err != nil || n != 2 {
			t.Fatalf("expected 2 scheduled, got %d, %v", n, err)
		}
		if attempts.Load() != 2 || len(panel.Orders()) != 2 {
			t.Errorf("a failed notification must not stop the batch")
		}
	})

	t.Run("saturated pool drops the order", func(t *testing.T) {
		configs := NewMockConfigRepo()
		configs.Seed(subscriber(1, nil, model.PublicChannel("news")))
		panel := &MockSMMPanel{}
		uc := usecase.NewDispatchUseCase(configs, panel, &MockTelegramBot{}, rejectingSubmitter{}, nil, i18n.MustDefault(), usecase.DispatchOptions{}, newTestLogger())
		n, err := uc.HandleChannelPost(ctx, newsPost())
		if err != nil || n != 0 || len(panel.Orders()) != 0 {
			t.Errorf("expected dropped order, got n=%d err=%v", n, err)
		}
	})
}

type rejectingSubmitter struct{}

func (rejectingSubmitter) Go(task worker.Task) error {
	return worker.ErrQueueFull
}

func TestStatsUseCase_RunPublishesTotals(t *testing.T) {
	configs := NewMockConfigRepo()
	configs.Seed(subscriber(1, nil, model.PublicChannel("a"), model.PublicChannel("b")))
	configs.Seed(model.NewUserConfig(2))

	uc := usecase.NewStatsUseCase(configs, newTestLogger())
	st, err := uc.Totals(context.Background())
	if err != nil {
		t.Fatalf("Totals: %v", err)
	}
	if st.Users != 2 || st.ConfiguredUsers != 1 || st.Channels != 2 {
		t.Errorf("unexpected totals %+v", st)
	}
	if err := uc.Run(context.Background()); err != nil {
		t.Errorf("Run: %v", err)
	}
	if uc.Name() == "" {
		t.Error("job needs a name")
	}
}
