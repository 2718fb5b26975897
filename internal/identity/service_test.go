package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/unlockpay/backend/internal/logging"
)

type recordingOpener struct {
	opened []string
}

func (r *recordingOpener) EnsureAccount(_ context.Context, userID string) error {
	r.opened = append(r.opened, userID)
	return nil
}

func TestRegisterAndAuthenticate(t *testing.T) {
	repo := NewMemoryRepository()
	opener := &recordingOpener{}
	svc := NewService(repo, opener, logging.Discard())

	ctx := context.Background()
	user, err := svc.Register(ctx, Registration{Username: "budi", Password: "secret123", FullName: "Budi Santoso"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Role != RoleUser {
		t.Fatalf("expected role user, got %s", user.Role)
	}
	if len(opener.opened) != 1 || opener.opened[0] != user.ID {
		t.Fatalf("expected balance account to be opened, got %v", opener.opened)
	}

	authed, err := svc.Authenticate(ctx, Credentials{Username: "budi", Password: "secret123"})
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if authed.ID != user.ID {
		t.Fatalf("expected %s, got %s", user.ID, authed.ID)
	}
}

func TestAuthenticateWrongPassword(t *testing.T) {
	svc := NewService(NewMemoryRepository(), nil, logging.Discard())
	ctx := context.Background()

	if _, err := svc.Register(ctx, Registration{Username: "sari", Password: "secret123"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Authenticate(ctx, Credentials{Username: "sari", Password: "nope"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, Credentials{Username: "ghost", Password: "secret123"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown user, got %v", err)
	}
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	svc := NewService(NewMemoryRepository(), nil, logging.Discard())
	ctx := context.Background()

	if _, err := svc.Register(ctx, Registration{Username: "sari", Password: "secret123"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Register(ctx, Registration{Username: "sari", Password: "another1"}); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected duplicate username error, got %v", err)
	}
}

func TestClearPushTokenOnlyWhenCurrent(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo, nil, logging.Discard())
	ctx := context.Background()

	user, err := svc.Register(ctx, Registration{Username: "dewi", Password: "secret123"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := svc.SetPushToken(ctx, user.ID, "token-new"); err != nil {
		t.Fatalf("set token: %v", err)
	}

	if err := repo.ClearPushToken(ctx, user.ID, "token-old"); err != nil {
		t.Fatalf("clear stale: %v", err)
	}
	got, _ := repo.FindByID(ctx, user.ID)
	if got.PushToken != "token-new" {
		t.Fatalf("current token was cleared")
	}

	if err := repo.ClearPushToken(ctx, user.ID, "token-new"); err != nil {
		t.Fatalf("clear current: %v", err)
	}
	got, _ = repo.FindByID(ctx, user.ID)
	if got.PushToken != "" {
		t.Fatalf("expected token cleared, got %q", got.PushToken)
	}
}
