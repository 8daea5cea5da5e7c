package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/kozaktomas/photo-moments/internal/database"
)

// AssetsHandler serves single assets.
type AssetsHandler struct {
	store database.Store
}

// NewAssetsHandler creates a new assets handler
func NewAssetsHandler(store database.Store) *AssetsHandler {
	return &AssetsHandler{store: store}
}

// Get returns the clustering state of one asset
func (h *AssetsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var asset *database.AssetRecord
	err := h.store.ReadTx(r.Context(), func(tx database.Reader) error {
		var err error
		asset, err = tx.GetAsset(r.Context(), id)
		return err
	})
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusNotFound, "asset not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("asset", sanitizeForLog(id)).Msg("failed to load asset")
		respondError(w, http.StatusInternalServerError, "failed to load asset")
		return
	}
	respondJSON(w, http.StatusOK, assetResponse(asset))
}
