package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/troyapi/troy/internal/model"
	"github.com/troyapi/troy/internal/server/middleware"
	"github.com/troyapi/troy/internal/service"
	"github.com/troyapi/troy/internal/store"
)

// KeyHandler manages the authenticated account's API keys. All routes are
// session-gated; a key belonging to another account is indistinguishable
// from a key that does not exist.
type KeyHandler struct {
	store   *store.Store
	authSvc *service.AuthService
	logger  *slog.Logger
}

// NewKeyHandler creates a new KeyHandler.
func NewKeyHandler(st *store.Store, authSvc *service.AuthService, logger *slog.Logger) *KeyHandler {
	return &KeyHandler{store: st, authSvc: authSvc, logger: logger}
}

// List returns all of the account's API keys, oldest first, without the
// plaintext or the stored hash.
// GET /api/v1/keys
func (h *KeyHandler) List(w http.ResponseWriter, r *http.Request) {
	acct := middleware.GetAccount(r.Context())
	if acct == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	keys, err := h.store.ListKeys(r.Context(), acct.ID)
	if err != nil {
		h.logger.Error("list keys failed", "account_id", acct.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list API keys")
		return
	}

	resources := make([]map[string]interface{}, 0, len(keys))
	for i := range keys {
		resources = append(resources, keyToMap(&keys[i]))
	}

	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: resources,
		Meta: &model.ResponseMeta{
			Count: len(resources),
		},
	})
}

// createKeyRequest is the expected payload for Create.
type createKeyRequest struct {
	Label string `json:"label"`
}

// createKeyResponse includes the plaintext key (shown once only).
type createKeyResponse struct {
	ID        int64     `json:"id"`
	Key       string    `json:"api_key"` // Plaintext, shown ONCE.
	KeyPrefix string    `json:"key_prefix"`
	Label     string    `json:"label"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Create generates a new API key for the account and returns the plaintext
// exactly once.
// POST /api/v1/keys
func (h *KeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	acct := middleware.GetAccount(r.Context())
	if acct == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req createKeyRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	plaintext, key, err := h.authSvc.CreateKey(r.Context(), acct.ID, req.Label)
	if err != nil {
		h.logger.Error("create key failed", "account_id", acct.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create API key")
		return
	}

	writeJSON(w, http.StatusCreated, createKeyResponse{
		ID:        key.ID,
		Key:       plaintext,
		KeyPrefix: key.KeyPrefix,
		Label:     key.Label,
		IsActive:  key.IsActive,
		CreatedAt: key.CreatedAt,
	})
}

// Stats returns aggregate usage numbers for the account's keys.
// GET /api/v1/keys/stats
func (h *KeyHandler) Stats(w http.ResponseWriter, r *http.Request) {
	acct := middleware.GetAccount(r.Context())
	if acct == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	stats, err := h.store.KeyStats(r.Context(), acct.ID)
	if err != nil {
		h.logger.Error("key stats failed", "account_id", acct.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to compute key stats")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// Toggle flips a key's active state. 404 when the key does not exist or
// belongs to someone else.
// POST /api/v1/keys/{keyID}/toggle
func (h *KeyHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	acct := middleware.GetAccount(r.Context())
	if acct == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	idStr := chi.URLParam(r, "keyID")
	keyID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid key ID: "+idStr)
		return
	}

	if err := h.store.ToggleKey(r.Context(), acct.ID, keyID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "API key not found: "+idStr)
			return
		}
		h.logger.Error("toggle key failed", "account_id", acct.ID, "key_id", keyID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to toggle API key")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "API key toggled",
	})
}

// Delete removes a key permanently. 404 when the key does not exist or
// belongs to someone else.
// DELETE /api/v1/keys/{keyID}
func (h *KeyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	acct := middleware.GetAccount(r.Context())
	if acct == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	idStr := chi.URLParam(r, "keyID")
	keyID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid key ID: "+idStr)
		return
	}

	if err := h.store.DeleteKey(r.Context(), acct.ID, keyID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "API key not found: "+idStr)
			return
		}
		h.logger.Error("delete key failed", "account_id", acct.ID, "key_id", keyID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to delete API key")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "API key deleted",
	})
}

// keyToMap serializes a key for listings without exposing the hash.
func keyToMap(key *model.APIKey) map[string]interface{} {
	m := map[string]interface{}{
		"id":          key.ID,
		"key_prefix":  key.KeyPrefix,
		"label":       key.Label,
		"is_active":   key.IsActive,
		"usage_count": key.UsageCount,
		"created_at":  key.CreatedAt,
	}
	if key.LastUsed != nil {
		m["last_used"] = key.LastUsed
	}
	return m
}
