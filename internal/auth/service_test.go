package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/unlockpay/backend/internal/config"
	"github.com/unlockpay/backend/internal/identity"
	"github.com/unlockpay/backend/internal/logging"
)

func newTestService(t *testing.T) (*Service, identity.User) {
	t.Helper()
	cfg := config.Config{
		JWTSecret:       "access-secret",
		RefreshSecret:   "refresh-secret",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
	}
	repo := identity.NewMemoryRepository()
	ids := identity.NewService(repo, nil, logging.Discard())
	user, err := ids.Register(context.Background(), identity.Registration{Username: "budi", Password: "secret123"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return NewService(cfg, repo), user
}

func TestLoginVerifyAndRefresh(t *testing.T) {
	svc, user := newTestService(t)
	ctx := context.Background()

	pair, err := svc.Login(user)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if pair.ExpiresIn != int64(time.Hour.Seconds()) {
		t.Fatalf("unexpected expiry %d", pair.ExpiresIn)
	}

	got, err := svc.Verify(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("expected %s got %s", user.ID, got.ID)
	}

	if _, err := svc.Verify(ctx, pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("refresh token must not pass as access token, got %v", err)
	}

	access, _, err := svc.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if _, err := svc.Verify(ctx, access); err != nil {
		t.Fatalf("verify refreshed: %v", err)
	}
}

func TestLogoutRevokesTokens(t *testing.T) {
	svc, user := newTestService(t)
	ctx := context.Background()

	pair, err := svc.Login(user)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := svc.Logout(ctx, user.ID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := svc.Verify(ctx, pair.AccessToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected revoked access token, got %v", err)
	}
	if _, _, err := svc.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected revoked refresh token, got %v", err)
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	token, _, err := Sign("user-1", identity.RoleUser, 0, []byte("secret"), time.Minute, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := Parse(token, []byte("secret")); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}
}
