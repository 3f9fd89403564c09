package subscriptions

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/videotube/backend/internal/apperror"
	"github.com/videotube/backend/internal/memstore"
	"github.com/videotube/backend/internal/models"
	"github.com/videotube/backend/internal/repositories"
)

const (
	aliceID = "11111111-1111-1111-1111-111111111111"
	bobID   = "22222222-2222-2222-2222-222222222222"
	carolID = "33333333-3333-3333-3333-333333333333"
)

func newTestEngine(t *testing.T) (*Engine, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	for id, name := range map[string]string{aliceID: "alice", bobID: "bob", carolID: "carol"} {
		user := models.User{
			ID:        id,
			Username:  name,
			Email:     name + "@example.com",
			FullName:  name,
			Avatar:    "https://cdn.example.com/" + name + ".png",
			CreatedAt: time.Now().UTC(),
		}
		if err := store.Users().Create(context.Background(), user); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}
	return NewEngine(store.Users(), store.Subscriptions()), store
}

func TestToggleSubscribesThenUnsubscribes(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	first, err := engine.Toggle(ctx, bobID, "alice")
	if err != nil {
		t.Fatalf("first toggle: %v", err)
	}
	if first.Action != ActionSubscribed || first.Subscription == nil {
		t.Fatalf("expected subscribed with edge, got %+v", first)
	}
	if first.Subscription.SubscriberID != bobID || first.Subscription.ChannelID != aliceID {
		t.Fatalf("unexpected edge: %+v", first.Subscription)
	}

	if n, _ := store.Subscriptions().CountSubscribers(ctx, aliceID); n != 1 {
		t.Fatalf("expected 1 subscriber, got %d", n)
	}

	second, err := engine.Toggle(ctx, bobID, aliceID)
	if err != nil {
		t.Fatalf("second toggle: %v", err)
	}
	if second.Action != ActionUnsubscribed || second.Subscription != nil {
		t.Fatalf("expected unsubscribed, got %+v", second)
	}

	if n, _ := store.Subscriptions().CountSubscribers(ctx, aliceID); n != 0 {
		t.Fatalf("expected no subscribers, got %d", n)
	}
}

func TestToggleResolvesUsernameCaseInsensitively(t *testing.T) {
	engine, _ := newTestEngine(t)

	result, err := engine.Toggle(context.Background(), bobID, "ALICE")
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if result.Subscription == nil || result.Subscription.ChannelID != aliceID {
		t.Fatalf("expected edge to alice, got %+v", result)
	}
}

func TestToggleRejectsSelfAndUnknown(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	for _, ref := range []string{aliceID, "alice", "Alice"} {
		_, err := engine.Toggle(ctx, aliceID, ref)
		if kind := apperror.KindOf(err); kind != apperror.KindInvalidInput {
			t.Fatalf("expected invalid input for self toggle via %q, got %v", ref, err)
		}
	}

	_, err := engine.Toggle(ctx, bobID, "nobody")
	if kind := apperror.KindOf(err); kind != apperror.KindNotFound {
		t.Fatalf("expected not found for unknown username, got %v", err)
	}

	_, err = engine.Toggle(ctx, bobID, "44444444-4444-4444-4444-444444444444")
	if kind := apperror.KindOf(err); kind != apperror.KindNotFound {
		t.Fatalf("expected not found for unknown id, got %v", err)
	}
}

func TestConcurrentTogglesNeverDuplicateEdges(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Interleavings may surface a lost delete as an error; only the edge invariant matters here.
			_, _ = engine.Toggle(ctx, bobID, aliceID)
		}()
	}
	wg.Wait()

	n, _ := store.Subscriptions().CountSubscribers(ctx, aliceID)
	if n != 0 && n != 1 {
		t.Fatalf("edge count must be 0 or 1, got %d", n)
	}
}

type racingEdges struct {
	repositories.SubscriptionRepository
	mu        sync.Mutex
	conflicts int
}

func (r *racingEdges) Create(ctx context.Context, sub models.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conflicts == 0 {
		r.conflicts++
		// Simulate another request inserting the same edge first.
		_ = r.SubscriptionRepository.Create(ctx, sub)
		return repositories.ErrConflict
	}
	return r.SubscriptionRepository.Create(ctx, sub)
}

func TestToggleRedecidesAfterConflict(t *testing.T) {
	_, store := newTestEngine(t)
	edges := &racingEdges{SubscriptionRepository: store.Subscriptions()}
	engine := NewEngine(store.Users(), edges)

	result, err := engine.Toggle(context.Background(), bobID, aliceID)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if result.Action != ActionUnsubscribed {
		t.Fatalf("expected the retried toggle to remove the raced edge, got %+v", result)
	}
}

type failingDelete struct {
	repositories.SubscriptionRepository
}

func (failingDelete) Exists(context.Context, string, string) (bool, error) { return true, nil }

func (failingDelete) Delete(context.Context, string, string) error { return repositories.ErrNotFound }

func TestToggleDeleteAffectingNothingIsInternal(t *testing.T) {
	_, store := newTestEngine(t)
	engine := NewEngine(store.Users(), failingDelete{store.Subscriptions()})

	_, err := engine.Toggle(context.Background(), bobID, aliceID)
	appErr := apperror.From(err)
	if appErr == nil || appErr.Kind != apperror.KindInternal || appErr.Message != "Unable to unsubscribe" {
		t.Fatalf("expected internal unsubscribe error, got %v", err)
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		t.Fatalf("expected cause to be preserved, got %v", err)
	}
}

func TestListSubscribersAndSubscriptions(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	for _, viewer := range []string{bobID, carolID} {
		if _, err := engine.Toggle(ctx, viewer, aliceID); err != nil {
			t.Fatalf("toggle: %v", err)
		}
	}
	if _, err := engine.Toggle(ctx, aliceID, carolID); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	subscribers, err := engine.ListSubscribers(ctx, aliceID)
	if err != nil {
		t.Fatalf("list subscribers: %v", err)
	}
	if len(subscribers) != 2 {
		t.Fatalf("expected 2 subscribers, got %+v", subscribers)
	}
	seen := map[string]bool{}
	for _, s := range subscribers {
		seen[s.Username] = true
	}
	if !seen["bob"] || !seen["carol"] {
		t.Fatalf("unexpected subscribers: %+v", subscribers)
	}

	channels, err := engine.ListSubscriptions(ctx, aliceID)
	if err != nil {
		t.Fatalf("list subscriptions: %v", err)
	}
	if len(channels) != 1 || channels[0].ID != carolID {
		t.Fatalf("unexpected subscriptions: %+v", channels)
	}

	if _, err := engine.ListSubscribers(ctx, "not-a-uuid"); apperror.KindOf(err) != apperror.KindInvalidInput {
		t.Fatalf("expected invalid input for malformed channel id, got %v", err)
	}
	if _, err := engine.ListSubscriptions(ctx, "not-a-uuid"); apperror.KindOf(err) != apperror.KindInvalidInput {
		t.Fatalf("expected invalid input for malformed subscriber id, got %v", err)
	}
}
