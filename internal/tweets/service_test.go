package tweets

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/videotube/backend/internal/apperror"
	"github.com/videotube/backend/internal/memstore"
	"github.com/videotube/backend/internal/models"
)

const (
	aliceID = "11111111-1111-1111-1111-111111111111"
	bobID   = "22222222-2222-2222-2222-222222222222"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	store := memstore.New()
	for id, name := range map[string]string{aliceID: "alice", bobID: "bob"} {
		user := models.User{ID: id, Username: name, Email: name + "@example.com", FullName: name, Avatar: name + ".png"}
		if err := store.Users().Create(context.Background(), user); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}

	svc := NewService(store.Users(), store.Tweets())
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return svc
}

func requireKind(t *testing.T, err error, kind apperror.Kind) {
	t.Helper()
	if got := apperror.KindOf(err); got != kind {
		t.Fatalf("expected %s, got %v", kind, err)
	}
}

func TestCreateValidatesContent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	tweet, err := svc.Create(ctx, aliceID, "  hello world  ")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if tweet.Content != "hello world" || tweet.Owner.Username != "alice" {
		t.Fatalf("unexpected tweet: %+v", tweet)
	}

	_, err = svc.Create(ctx, aliceID, "   ")
	requireKind(t, err, apperror.KindInvalidInput)

	_, err = svc.Create(ctx, aliceID, strings.Repeat("a", MaxContentLength+1))
	requireKind(t, err, apperror.KindInvalidInput)

	if _, err := svc.Create(ctx, aliceID, strings.Repeat("é", MaxContentLength)); err != nil {
		t.Fatalf("expected multi-byte content at the limit to be accepted: %v", err)
	}
}

func TestListByUserPaginates(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		if _, err := svc.Create(ctx, aliceID, "tweet "+string(rune('a'+i))); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	first, err := svc.ListByUser(ctx, "alice", 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(first.Tweets) != DefaultLimit || first.Tweets[0].Content != "tweet g" {
		t.Fatalf("unexpected first page: %+v", first.Tweets)
	}
	p := first.Pagination
	if p.Page != 1 || p.TotalItems != 7 || p.TotalPages != 2 || !p.HasNextPage || p.HasPrevPage {
		t.Fatalf("unexpected pagination: %+v", p)
	}

	second, err := svc.ListByUser(ctx, aliceID, 2, 5)
	if err != nil {
		t.Fatalf("list second page: %v", err)
	}
	if len(second.Tweets) != 2 || second.Pagination.HasNextPage || !second.Pagination.HasPrevPage {
		t.Fatalf("unexpected second page: %+v", second)
	}

	for _, bad := range [][2]int{{-1, 5}, {1, -1}, {1, MaxLimit + 1}, {math.MaxInt/5 + 1, 5}, {math.MaxInt, MaxLimit}} {
		_, err := svc.ListByUser(ctx, aliceID, bad[0], bad[1])
		requireKind(t, err, apperror.KindInvalidInput)
	}

	_, err = svc.ListByUser(ctx, "nobody", 1, 5)
	requireKind(t, err, apperror.KindNotFound)
}

func TestUpdateAndDeleteEnforceOwnership(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	tweet, err := svc.Create(ctx, aliceID, "original")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = svc.Update(ctx, bobID, tweet.ID, "hijacked")
	requireKind(t, err, apperror.KindForbidden)

	err = svc.Delete(ctx, bobID, tweet.ID)
	requireKind(t, err, apperror.KindForbidden)

	updated, err := svc.Update(ctx, aliceID, tweet.ID, "edited")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Content != "edited" || !updated.UpdatedAt.After(tweet.UpdatedAt) || updated.Owner.Username != "alice" {
		t.Fatalf("unexpected updated tweet: %+v", updated)
	}

	if err := svc.Delete(ctx, aliceID, tweet.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	err = svc.Delete(ctx, aliceID, tweet.ID)
	requireKind(t, err, apperror.KindNotFound)

	err = svc.Delete(ctx, aliceID, "not-a-uuid")
	requireKind(t, err, apperror.KindInvalidInput)
}
