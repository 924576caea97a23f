//go:build !integration

package memory

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v4"

	"telegram-smm-autoboost/internal/domain/model"
	"telegram-smm-autoboost/internal/domain/ports/repository"
)

func TestStateRepo_IsolatedAndCloned(t *testing.T) {
	ctx := context.Background()
	backing := map[int64]*model.ConversationState{}
	repo := NewStateRepoWithMap(backing)

	st := model.NewConversationState(model.FlowAddCredential)
	if err := repo.SetState(ctx, 1, st); err != nil {
		t.Fatalf("SetState: %v", err)
	}
	st.Advance(model.CollectedAPIURL, "mutated after set")

	got, _ := repo.GetState(ctx, 1)
	if got.Step != 0 || len(got.Collected) != 0 {
		t.Errorf("store shares memory with the caller: %+v", got)
	}
	if other, _ := repo.GetState(ctx, 2); other != nil {
		t.Errorf("user 2 should see nothing, got %+v", other)
	}
	if len(backing) != 1 {
		t.Errorf("expected backing map to hold one entry, got %d", len(backing))
	}

	_ = repo.ClearState(ctx, 1)
	if got, _ := repo.GetState(ctx, 1); got != nil || repo.Len() != 0 {
		t.Errorf("expected cleared state, got %+v", got)
	}
}

func TestConfigRepo_GetMissingReturnsEmpty(t *testing.T) {
	repo := NewConfigRepo()
	cfg, err := repo.Get(context.Background(), repository.NoTX, 99)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if cfg.UserID != 99 || cfg.HasAnyCredentialField() || len(cfg.Channels) != 0 {
		t.Errorf("expected empty config, got %+v", cfg)
	}
}

func TestConfigRepo_ReplaceAllChannels(t *testing.T) {
	ctx := context.Background()
	repo := NewConfigRepo()
	cfg := model.NewUserConfig(1)
	cfg.AddChannel(model.PublicChannel("a"))
	cfg.AddChannel(model.PublicChannel("b"))
	_ = repo.Save(ctx, nil, cfg)

	next := model.NewUserConfig(1)
	next.AddChannel(model.PublicChannel("c"))
	_ = repo.Save(ctx, nil, next)

	got, _ := repo.Get(ctx, nil, 1)
	if len(got.Channels) != 1 || got.Channels[0].Handle != "c" {
		t.Errorf("expected exactly {@c}, got %v", got.Channels)
	}
}

func TestConfigRepo_FindSubscribersRequiresCredential(t *testing.T) {
	ctx := context.Background()
	repo := NewConfigRepo()

	full := model.NewUserConfig(1)
	full.SetCredential("http://x/api", "abcdefghij", "123", 10)
	full.AddChannel(model.PublicChannel("News"))

	partial := model.NewUserConfig(2)
	_ = partial.SetField(model.FieldURL, "http://x/api")
	_ = partial.SetField(model.FieldKey, "abcdefghij")
	partial.AddChannel(model.PublicChannel("news"))

	private := model.NewUserConfig(3)
	private.SetCredential("http://y/api", "abcdefghij", "7", 10)
	private.AddChannel(model.PrivateChannel(-100500))

	for _, c := range []*model.UserConfig{full, partial, private} {
		_ = repo.Save(ctx, nil, c)
	}

	subs, _ := repo.FindSubscribers(ctx, nil, model.PublicChannel("NEWS"))
	if len(subs) != 1 || subs[0].UserID != 1 {
		t.Errorf("expected only user 1, got %+v", subs)
	}
	subs, _ = repo.FindSubscribers(ctx, nil, model.PrivateChannel(-100500))
	if len(subs) != 1 || subs[0].UserID != 3 {
		t.Errorf("expected only user 3, got %+v", subs)
	}

	st, _ := repo.Stats(ctx, nil)
	if st.Users != 3 || st.ConfiguredUsers != 2 || st.Channels != 3 {
		t.Errorf("unexpected stats %+v", st)
	}
}

func TestConfigRepo_WithTxPropagatesError(t *testing.T) {
	repo := NewConfigRepo()
	want := context.Canceled
	err := repo.WithTx(context.Background(), pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		return want
	})
	if err != want {
		t.Errorf("expected fn error to be returned, got %v", err)
	}
}

func TestPostDeduper_ExpiresAfterTTL(t *testing.T) {
	d := NewPostDeduper(time.Minute)
	clock := time.Unix(0, 0)
	d.now = func() time.Time { return clock }

	ctx := context.Background()
	if ok, _ := d.FirstSeen(ctx, "k"); !ok {
		t.Fatal("first claim should win")
	}
	if ok, _ := d.FirstSeen(ctx, "k"); ok {
		t.Fatal("second claim within ttl should lose")
	}
	clock = clock.Add(2 * time.Minute)
	if ok, _ := d.FirstSeen(ctx, "k"); !ok {
		t.Error("claim after ttl should win again")
	}
}
