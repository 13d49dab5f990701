package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/troyapi/troy/internal/model"
	"github.com/troyapi/troy/internal/service"
)

type contextKeyAuth string

const (
	// AccountKey is the context key for the authenticated account.
	AccountKey contextKeyAuth = "auth_account"
	// APIKeyKey is the context key for the validated API key record.
	APIKeyKey contextKeyAuth = "auth_api_key"
)

// RequireSession returns an HTTP middleware that validates the Authorization
// Bearer token and attaches the owning account to the request context. On
// failure, a 401 JSON error response is returned. API keys are not accepted
// here; account and key management always require a session.
func RequireSession(authSvc *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				writeAuthError(w, http.StatusUnauthorized,
					"Authentication required. Provide an Authorization: Bearer token.")
				return
			}
			token := strings.TrimPrefix(header, "Bearer ")
			acct, err := authSvc.ValidateToken(r.Context(), token)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}
			ctx := context.WithValue(r.Context(), AccountKey, acct)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAPIKey returns an HTTP middleware that validates the X-API-Key
// header and attaches the key record to the request context. On failure,
// a 401 JSON error response is returned. Bearer tokens are not accepted
// here; price data is consumed with an API key only.
func RequireAPIKey(authSvc *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawKey := r.Header.Get("X-API-Key")
			if rawKey == "" {
				writeAuthError(w, http.StatusUnauthorized,
					"Authentication required. Provide an X-API-Key header.")
				return
			}
			key, err := authSvc.ValidateAPIKey(r.Context(), rawKey)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "Invalid API key")
				return
			}
			ctx := context.WithValue(r.Context(), APIKeyKey, key)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAccount extracts the authenticated account from the context. Returns
// nil if no session is present.
func GetAccount(ctx context.Context) *model.Account {
	if a, ok := ctx.Value(AccountKey).(*model.Account); ok {
		return a
	}
	return nil
}

// GetAPIKey extracts the validated API key record from the context. Returns
// nil if the request was not authenticated with an API key.
func GetAPIKey(ctx context.Context) *model.APIKey {
	if k, ok := ctx.Value(APIKeyKey).(*model.APIKey); ok {
		return k
	}
	return nil
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Manually construct JSON to avoid import cycle with handler package
	w.Write([]byte(`{"error":{"code":` + httpStatusString(status) + `,"message":"` + message + `"}}`))
}

func httpStatusString(code int) string {
	switch code {
	case 401:
		return "401"
	case 403:
		return "403"
	case 429:
		return "429"
	default:
		return "500"
	}
}
