package services

import (
	stderrors "errors"
	"testing"
	"time"

	"github.com/spegrid/execreview-backend/internal/pkg/errors"
)

func testAuthService(t *testing.T, ttl time.Duration) AuthService {
	t.Helper()
	return NewAuthService(testLogger(t), "admin@spe.example", "hunter2", "test-secret", ttl)
}

func TestAuthLoginAndParse(t *testing.T) {
	as := testAuthService(t, time.Hour)

	token, err := as.Login("admin@spe.example", "hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	user, err := as.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if user.Email != "admin@spe.example" || user.Role != "admin" {
		t.Fatalf("unexpected identity: %+v", user)
	}
}

func TestAuthLoginRejectsBadCredentials(t *testing.T) {
	as := testAuthService(t, time.Hour)

	if _, err := as.Login("admin@spe.example", "wrong"); !stderrors.Is(err, errors.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := as.Login("someone@else.example", "hunter2"); !stderrors.Is(err, errors.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestAuthParseRejectsForeignToken(t *testing.T) {
	as := testAuthService(t, time.Hour)
	other := NewAuthService(testLogger(t), "admin@spe.example", "hunter2", "another-secret", time.Hour)

	token, err := other.Login("admin@spe.example", "hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := as.ParseToken(token); err == nil {
		t.Fatalf("expected rejection of token signed with a different key")
	}
}

func TestAuthParseRejectsExpiredToken(t *testing.T) {
	as := testAuthService(t, -time.Minute)

	token, err := as.Login("admin@spe.example", "hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := as.ParseToken(token); err == nil {
		t.Fatalf("expected expired token rejection")
	}
}
