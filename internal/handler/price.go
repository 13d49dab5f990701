package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/troyapi/troy/internal/model"
	"github.com/troyapi/troy/internal/price"
)

// PriceHandler serves spot prices out of the cache. All routes are
// API-key-gated.
type PriceHandler struct {
	cache  *price.Cache
	logger *slog.Logger
}

// NewPriceHandler creates a new PriceHandler.
func NewPriceHandler(cache *price.Cache, logger *slog.Logger) *PriceHandler {
	return &PriceHandler{cache: cache, logger: logger}
}

// GetPrice returns the current spot quote for one commodity.
// GET /api/v1/prices/{commodity}
func (h *PriceHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	commodity := chi.URLParam(r, "commodity")

	quote, err := h.cache.GetPrice(r.Context(), commodity)
	if err != nil {
		switch {
		case errors.Is(err, price.ErrUnknownCommodity):
			writeError(w, http.StatusNotFound, "Unknown commodity: "+commodity, map[string]interface{}{
				"known": h.cache.Commodities(),
			})
		case errors.Is(err, price.ErrSourceUnavailable):
			writeError(w, http.StatusServiceUnavailable, "Price source unavailable for "+commodity)
		default:
			h.logger.Error("get price failed", "commodity", commodity, "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to fetch price")
		}
		return
	}

	writeJSON(w, http.StatusOK, quote)
}

// ListCommodities returns the commodities this deployment quotes.
// GET /api/v1/commodities
func (h *PriceHandler) ListCommodities(w http.ResponseWriter, r *http.Request) {
	names := h.cache.Commodities()

	resources := make([]map[string]interface{}, 0, len(names))
	for _, name := range names {
		resources = append(resources, map[string]interface{}{"commodity": name})
	}

	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: resources,
		Meta: &model.ResponseMeta{
			Count: len(resources),
		},
	})
}
