package accounts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/videotube/backend/internal/apperror"
	"github.com/videotube/backend/internal/auth"
	"github.com/videotube/backend/internal/memstore"
	"github.com/videotube/backend/internal/storage"
)

type fakeMediaStore struct {
	keys []string
	err  error
}

func (f *fakeMediaStore) Save(_ context.Context, key, _ string, r io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	f.keys = append(f.keys, key)
	return "https://cdn.example.com/" + key, nil
}

func newTestService(media MediaStore) (*Service, *memstore.Store) {
	store := memstore.New()
	return NewService(store.Users(), auth.BcryptHasher{Cost: bcrypt.MinCost}, media), store
}

func validInput() RegisterInput {
	return RegisterInput{
		Username: " Alice ",
		Email:    "Alice@Example.com",
		FullName: "Alice Example",
		Password: "correct-horse",
		Avatar:   Media{URL: "https://cdn.example.com/alice.png"},
	}
}

func assertKind(t *testing.T, err error, kind apperror.Kind) {
	t.Helper()
	if got := apperror.KindOf(err); got != kind {
		t.Fatalf("expected %s, got %v", kind, err)
	}
}

func TestRegisterStoresNormalisedIdentity(t *testing.T) {
	svc, store := newTestService(nil)
	ctx := context.Background()

	user, err := svc.Register(ctx, validInput())
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Username != "alice" || user.Email != "alice@example.com" {
		t.Fatalf("expected lower-cased identifiers, got %+v", user)
	}

	stored, err := store.Users().FindByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("find stored user: %v", err)
	}
	if stored.Password == "correct-horse" {
		t.Fatal("expected password to be hashed")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("correct-horse")); err != nil {
		t.Fatalf("stored hash does not verify: %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService(nil)
	ctx := context.Background()

	cases := map[string]func(*RegisterInput){
		"missing username": func(in *RegisterInput) { in.Username = "  " },
		"missing password": func(in *RegisterInput) { in.Password = "" },
		"bad email":        func(in *RegisterInput) { in.Email = "not-an-email" },
		"short password":   func(in *RegisterInput) { in.Password = "short" },
		"missing avatar":   func(in *RegisterInput) { in.Avatar = Media{} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := validInput()
			mutate(&in)
			_, err := svc.Register(ctx, in)
			assertKind(t, err, apperror.KindInvalidInput)
		})
	}
}

func TestRegisterConflicts(t *testing.T) {
	svc, _ := newTestService(nil)
	ctx := context.Background()

	if _, err := svc.Register(ctx, validInput()); err != nil {
		t.Fatalf("register: %v", err)
	}

	sameUsername := validInput()
	sameUsername.Email = "other@example.com"
	_, err := svc.Register(ctx, sameUsername)
	assertKind(t, err, apperror.KindConflict)

	sameEmail := validInput()
	sameEmail.Username = "other"
	_, err = svc.Register(ctx, sameEmail)
	assertKind(t, err, apperror.KindConflict)
}

func TestRegisterUploadsMedia(t *testing.T) {
	media := &fakeMediaStore{}
	svc, _ := newTestService(media)

	in := validInput()
	in.Avatar = Media{File: bytes.NewBufferString("png"), Filename: "me.png", ContentType: "image/png"}
	in.CoverImage = Media{File: bytes.NewBufferString("jpg"), Filename: "cover.jpg"}

	user, err := svc.Register(context.Background(), in)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(media.keys) != 2 {
		t.Fatalf("expected two uploads, got %v", media.keys)
	}
	if !strings.HasPrefix(user.Avatar, "https://cdn.example.com/avatars/"+user.ID+"/") {
		t.Fatalf("unexpected avatar location %q", user.Avatar)
	}
	if !strings.HasPrefix(user.CoverImage, "https://cdn.example.com/covers/"+user.ID+"/") {
		t.Fatalf("unexpected cover location %q", user.CoverImage)
	}
}

func TestRegisterUploadFailures(t *testing.T) {
	in := validInput()
	in.Avatar = Media{File: bytes.NewBufferString("png"), Filename: "me.png"}

	svc, _ := newTestService(nil)
	_, err := svc.Register(context.Background(), in)
	assertKind(t, err, apperror.KindInvalidInput)

	in.Avatar = Media{File: bytes.NewBufferString("png"), Filename: "me.png"}
	svc, _ = newTestService(&fakeMediaStore{err: errors.New("bucket offline")})
	_, err = svc.Register(context.Background(), in)
	assertKind(t, err, apperror.KindInternal)

	in.Avatar = Media{File: bytes.NewBufferString("text"), Filename: "notes.txt"}
	svc, _ = newTestService(&fakeMediaStore{err: fmt.Errorf("%w: text/plain", storage.ErrUnsupportedMedia)})
	_, err = svc.Register(context.Background(), in)
	assertKind(t, err, apperror.KindInvalidInput)
}

func TestAccountUpdates(t *testing.T) {
	svc, _ := newTestService(nil)
	ctx := context.Background()

	alice, err := svc.Register(ctx, validInput())
	if err != nil {
		t.Fatalf("register alice: %v", err)
	}
	bobInput := validInput()
	bobInput.Username = "bob"
	bobInput.Email = "bob@example.com"
	if _, err := svc.Register(ctx, bobInput); err != nil {
		t.Fatalf("register bob: %v", err)
	}

	updated, err := svc.UpdateAccount(ctx, alice.ID, "Alice Cooper", "ALICE@cooper.dev")
	if err != nil {
		t.Fatalf("update account: %v", err)
	}
	if updated.FullName != "Alice Cooper" || updated.Email != "alice@cooper.dev" {
		t.Fatalf("unexpected account: %+v", updated)
	}

	_, err = svc.UpdateAccount(ctx, alice.ID, "Alice", "bob@example.com")
	assertKind(t, err, apperror.KindConflict)

	_, err = svc.UpdateAccount(ctx, alice.ID, "", "alice@cooper.dev")
	assertKind(t, err, apperror.KindInvalidInput)

	withAvatar, err := svc.UpdateAvatar(ctx, alice.ID, Media{URL: "https://cdn.example.com/new.png"})
	if err != nil {
		t.Fatalf("update avatar: %v", err)
	}
	if withAvatar.Avatar != "https://cdn.example.com/new.png" {
		t.Fatalf("unexpected avatar %q", withAvatar.Avatar)
	}

	_, err = svc.UpdateCoverImage(ctx, alice.ID, Media{})
	assertKind(t, err, apperror.KindInvalidInput)

	current, err := svc.CurrentUser(ctx, alice.ID)
	if err != nil {
		t.Fatalf("current user: %v", err)
	}
	if current.Avatar != withAvatar.Avatar {
		t.Fatalf("expected current user to reflect avatar update, got %+v", current)
	}

	_, err = svc.CurrentUser(ctx, "missing")
	assertKind(t, err, apperror.KindNotFound)
}
