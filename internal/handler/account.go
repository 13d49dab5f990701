package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/troyapi/troy/internal/server/middleware"
	"github.com/troyapi/troy/internal/service"
)

// DefaultSessionTTL is how long an issued session token stays valid.
const DefaultSessionTTL = 24 * time.Hour

// AccountHandler serves registration, login, and the current-account view.
type AccountHandler struct {
	authSvc    *service.AuthService
	sessionTTL time.Duration
	logger     *slog.Logger
}

// NewAccountHandler creates a new AccountHandler. A non-positive sessionTTL
// falls back to DefaultSessionTTL.
func NewAccountHandler(authSvc *service.AuthService, sessionTTL time.Duration, logger *slog.Logger) *AccountHandler {
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	return &AccountHandler{authSvc: authSvc, sessionTTL: sessionTTL, logger: logger}
}

// registerRequest is the expected payload for the Register endpoint.
type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register creates a new account.
// POST /api/v1/accounts
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "Username is required")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "Password must be at least 8 characters")
		return
	}

	acct, err := h.authSvc.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrDuplicateUsername) {
			writeError(w, http.StatusConflict, "Username already taken: "+req.Username)
			return
		}
		h.logger.Error("register failed", "username", req.Username, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create account")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":         acct.ID,
		"username":   acct.Username,
		"created_at": acct.CreatedAt,
	})
}

// loginRequest is the expected payload for the Login endpoint.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse is the response payload for a successful login.
type loginResponse struct {
	Token     string `json:"session_token"`
	TokenType string `json:"token_type"`
	ExpiresIn int    `json:"expires_in"`
	Username  string `json:"username"`
}

// Login authenticates an account and returns a JWT session token.
// POST /api/v1/session
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	acct, err := h.authSvc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		h.logger.Error("login failed", "username", req.Username, "error", err)
		writeError(w, http.StatusInternalServerError, "Authentication error")
		return
	}

	token, err := h.authSvc.IssueToken(acct, h.sessionTTL)
	if err != nil {
		h.logger.Error("issue token failed", "username", req.Username, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		TokenType: "bearer",
		ExpiresIn: int(h.sessionTTL.Seconds()),
		Username:  acct.Username,
	})
}

// Me returns the authenticated account's summary.
// GET /api/v1/me
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	acct := middleware.GetAccount(r.Context())
	if acct == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":         acct.ID,
		"username":   acct.Username,
		"created_at": acct.CreatedAt,
	})
}
