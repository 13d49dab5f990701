package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/troyapi/troy/internal/service"
	"github.com/troyapi/troy/internal/store"
)

func newTestAuth(t *testing.T) *service.AuthService {
	t.Helper()
	st, err := store.New("")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return service.NewAuthService(st, "middleware-test-secret", logger)
}

// ---------------------------------------------------------------------------
// RequestID middleware tests
// ---------------------------------------------------------------------------

func TestRequestIDGeneratesUUID(t *testing.T) {
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := GetRequestID(r.Context())
		if id == "" {
			t.Error("expected non-empty request ID in context")
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	respID := rr.Header().Get("X-Request-ID")
	if respID == "" {
		t.Error("expected X-Request-ID in response header")
	}
	// UUID v7 format check: 36 chars with dashes
	if len(respID) != 36 {
		t.Errorf("expected UUID-length request ID, got %q (len=%d)", respID, len(respID))
	}
}

func TestRequestIDPreservesClientID(t *testing.T) {
	clientID := "my-custom-trace-id-123"

	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := GetRequestID(r.Context())
		if id != clientID {
			t.Errorf("expected context ID %q, got %q", clientID, id)
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-Request-ID", clientID)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	respID := rr.Header().Get("X-Request-ID")
	if respID != clientID {
		t.Errorf("expected response X-Request-ID %q, got %q", clientID, respID)
	}
}

func TestGetRequestIDEmptyContext(t *testing.T) {
	id := GetRequestID(context.Background())
	if id != "" {
		t.Errorf("expected empty string from bare context, got %q", id)
	}
}

// ---------------------------------------------------------------------------
// RequireSession middleware tests
// ---------------------------------------------------------------------------

func TestRequireSessionAllowsValidToken(t *testing.T) {
	authSvc := newTestAuth(t)
	ctx := context.Background()
	acct, err := authSvc.Register(ctx, "alice", "correct-horse")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	token, err := authSvc.IssueToken(acct, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := GetAccount(r.Context())
		if got == nil {
			t.Fatal("expected account in context")
		}
		if got.Username != "alice" {
			t.Errorf("expected account alice, got %q", got.Username)
		}
		w.WriteHeader(http.StatusOK)
	})

	handler := RequireSession(authSvc)(inner)

	req := httptest.NewRequest("GET", "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rr.Code)
	}
}

func TestRequireSessionBlocksMissingHeader(t *testing.T) {
	authSvc := newTestAuth(t)
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("inner handler should not be called without credentials")
	})

	handler := RequireSession(authSvc)(inner)

	req := httptest.NewRequest("GET", "/api/v1/me", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON error body, got Content-Type %q", ct)
	}
}

func TestRequireSessionBlocksGarbageToken(t *testing.T) {
	authSvc := newTestAuth(t)
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("inner handler should not be called for a bad token")
	})

	handler := RequireSession(authSvc)(inner)

	req := httptest.NewRequest("GET", "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer not.a.jwt")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rr.Code)
	}
}

func TestRequireSessionRejectsAPIKey(t *testing.T) {
	authSvc := newTestAuth(t)
	ctx := context.Background()
	acct, err := authSvc.Register(ctx, "alice", "correct-horse")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	plaintext, _, err := authSvc.CreateKey(ctx, acct.ID, "ci")
	if err != nil {
		t.Fatalf("CreateKey: %v", err)
	}

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("API keys must not open a session")
	})

	handler := RequireSession(authSvc)(inner)

	req := httptest.NewRequest("GET", "/api/v1/me", nil)
	req.Header.Set("X-API-Key", plaintext)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rr.Code)
	}
}

// ---------------------------------------------------------------------------
// RequireAPIKey middleware tests
// ---------------------------------------------------------------------------

func TestRequireAPIKeyAllowsValidKey(t *testing.T) {
	authSvc := newTestAuth(t)
	ctx := context.Background()
	acct, err := authSvc.Register(ctx, "alice", "correct-horse")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	plaintext, created, err := authSvc.CreateKey(ctx, acct.ID, "ci")
	if err != nil {
		t.Fatalf("CreateKey: %v", err)
	}

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := GetAPIKey(r.Context())
		if got == nil {
			t.Fatal("expected API key record in context")
		}
		if got.ID != created.ID {
			t.Errorf("expected key %d, got %d", created.ID, got.ID)
		}
		w.WriteHeader(http.StatusOK)
	})

	handler := RequireAPIKey(authSvc)(inner)

	req := httptest.NewRequest("GET", "/api/v1/prices/gold", nil)
	req.Header.Set("X-API-Key", plaintext)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rr.Code)
	}
}

func TestRequireAPIKeyBlocksUnknownKey(t *testing.T) {
	authSvc := newTestAuth(t)
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("inner handler should not be called for an unknown key")
	})

	handler := RequireAPIKey(authSvc)(inner)

	req := httptest.NewRequest("GET", "/api/v1/prices/gold", nil)
	req.Header.Set("X-API-Key", "troy_0000000000000000")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rr.Code)
	}
}

func TestRequireAPIKeyRejectsBearerToken(t *testing.T) {
	authSvc := newTestAuth(t)
	ctx := context.Background()
	acct, err := authSvc.Register(ctx, "alice", "correct-horse")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	token, err := authSvc.IssueToken(acct, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("sessions must not grant price access")
	})

	handler := RequireAPIKey(authSvc)(inner)

	req := httptest.NewRequest("GET", "/api/v1/prices/gold", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rr.Code)
	}
}

// ---------------------------------------------------------------------------
// Context accessor tests
// ---------------------------------------------------------------------------

func TestGetAccountWithoutValue(t *testing.T) {
	if got := GetAccount(context.Background()); got != nil {
		t.Error("expected nil account from bare context")
	}
}

func TestGetAPIKeyWithoutValue(t *testing.T) {
	if got := GetAPIKey(context.Background()); got != nil {
		t.Error("expected nil key from bare context")
	}
}
