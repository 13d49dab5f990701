package openapi

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
)

// Handler serves the generated OpenAPI document. The document depends only
// on the configured commodity list, so it is rendered once per base URL and
// cached.
type Handler struct {
	commodities []string

	mu    sync.Mutex
	cache map[string][]byte
}

// NewHandler creates a Handler for the given commodity list.
func NewHandler(commodities []string) *Handler {
	return &Handler{
		commodities: commodities,
		cache:       make(map[string][]byte),
	}
}

// ServeSpec renders the OpenAPI document as JSON.
// GET /openapi.json
func (h *Handler) ServeSpec(w http.ResponseWriter, r *http.Request) {
	baseURL := baseURLFromRequest(r)

	h.mu.Lock()
	body, ok := h.cache[baseURL]
	if !ok {
		doc := GenerateSpec(baseURL, h.commodities)
		var err error
		body, err = json.Marshal(doc)
		if err != nil {
			h.mu.Unlock()
			http.Error(w, `{"error":{"code":500,"message":"Failed to render OpenAPI spec"}}`,
				http.StatusInternalServerError)
			return
		}
		h.cache[baseURL] = body
	}
	h.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// Document returns the parsed document for a fixed base URL. Used by tests
// and the MCP surface.
func (h *Handler) Document(baseURL string) *openapi3.T {
	return GenerateSpec(baseURL, h.commodities)
}

func baseURLFromRequest(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
