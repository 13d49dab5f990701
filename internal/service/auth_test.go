package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/troyapi/troy/internal/model"
	"github.com/troyapi/troy/internal/store"
)

func newTestAuth(t *testing.T) (*AuthService, *store.Store) {
	t.Helper()
	st, err := store.New("")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	auth := NewAuthService(st, "test-secret-key-for-jwt", logger)
	return auth, st
}

func TestRegisterAndLogin(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	acct, err := auth.Register(ctx, "alice", "secret123")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if acct.ID == 0 {
		t.Error("expected non-zero account ID")
	}
	if acct.PasswordHash == "secret123" {
		t.Fatal("password stored in clear")
	}

	got, err := auth.Login(ctx, "alice", "secret123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if got.ID != acct.ID {
		t.Errorf("ID: got %d, want %d", got.ID, acct.ID)
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	if _, err := auth.Register(ctx, "alice", "secret123"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, err := auth.Register(ctx, "alice", "othersecret")
	if !errors.Is(err, ErrDuplicateUsername) {
		t.Fatalf("expected ErrDuplicateUsername, got %v", err)
	}
}

func TestLoginFailureIndistinguishable(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	if _, err := auth.Register(ctx, "alice", "secret123"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	// Wrong password and unknown user must produce the same error value.
	_, errWrongPass := auth.Login(ctx, "alice", "wrongpassword")
	_, errNoUser := auth.Login(ctx, "mallory", "wrongpassword")

	if !errors.Is(errWrongPass, ErrInvalidCredentials) {
		t.Errorf("wrong password: expected ErrInvalidCredentials, got %v", errWrongPass)
	}
	if !errors.Is(errNoUser, ErrInvalidCredentials) {
		t.Errorf("unknown user: expected ErrInvalidCredentials, got %v", errNoUser)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	acct, err := auth.Register(ctx, "alice", "secret123")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	token, err := auth.IssueToken(acct, 1*time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	got, err := auth.ValidateToken(ctx, token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if got.Username != "alice" {
		t.Errorf("Username: got %q, want %q", got.Username, "alice")
	}
}

func TestTokenExpired(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	acct, err := auth.Register(ctx, "alice", "secret123")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	token, err := auth.IssueToken(acct, -1*time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if _, err := auth.ValidateToken(ctx, token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestTokenGarbage(t *testing.T) {
	auth, _ := newTestAuth(t)

	if _, err := auth.ValidateToken(context.Background(), "garbage.token.here"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestTokenForDeletedAccountFailsClosed(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	// A token signed with the right secret but whose subject was never
	// registered must be rejected at subject lookup.
	ghost := &model.Account{Username: "ghost"}
	token, err := auth.IssueToken(ghost, 1*time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if _, err := auth.ValidateToken(ctx, token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for unknown subject, got %v", err)
	}
}

func TestCreateKeyShape(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	acct, err := auth.Register(ctx, "alice", "secret123")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	plaintext, key, err := auth.CreateKey(ctx, acct.ID, "ci")
	if err != nil {
		t.Fatalf("CreateKey: %v", err)
	}
	if !strings.HasPrefix(plaintext, "troy_") {
		t.Errorf("plaintext missing prefix: %q", plaintext)
	}
	// "troy_" plus a hex-encoded 32-byte token.
	if len(plaintext) != len("troy_")+64 {
		t.Errorf("plaintext length: got %d, want %d", len(plaintext), len("troy_")+64)
	}
	if key.KeyPrefix != plaintext[:KeyPrefixLen] {
		t.Errorf("prefix: got %q, want %q", key.KeyPrefix, plaintext[:KeyPrefixLen])
	}
	if key.KeyHash == plaintext {
		t.Error("key stored in clear")
	}
}

func TestValidateAPIKey(t *testing.T) {
	auth, st := newTestAuth(t)
	ctx := context.Background()

	acct, err := auth.Register(ctx, "alice", "secret123")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	plaintext, key, err := auth.CreateKey(ctx, acct.ID, "")
	if err != nil {
		t.Fatalf("CreateKey: %v", err)
	}

	got, err := auth.ValidateAPIKey(ctx, plaintext)
	if err != nil {
		t.Fatalf("ValidateAPIKey: %v", err)
	}
	if got.ID != key.ID {
		t.Errorf("key ID: got %d, want %d", got.ID, key.ID)
	}

	// Usage is recorded asynchronously; poll until it lands.
	waitForUsage(t, st, key.KeyHash, 1)

	// Unknown key.
	if _, err := auth.ValidateAPIKey(ctx, "troy_not_a_real_key"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("expected ErrInvalidKey for unknown key, got %v", err)
	}

	// Revoked key fails with the same error as an unknown one.
	if err := st.ToggleKey(ctx, acct.ID, key.ID); err != nil {
		t.Fatalf("ToggleKey: %v", err)
	}
	if _, err := auth.ValidateAPIKey(ctx, plaintext); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("expected ErrInvalidKey for revoked key, got %v", err)
	}
}

func waitForUsage(t *testing.T, st *store.Store, keyHash string, want int64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		key, err := st.GetKeyByHash(context.Background(), keyHash)
		if err == nil && key.UsageCount >= want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("usage count never reached %d", want)
}
