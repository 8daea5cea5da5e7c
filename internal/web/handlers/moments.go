package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/kozaktomas/photo-moments/internal/database"
	"github.com/kozaktomas/photo-moments/internal/geo"
)

// MomentsHandler serves macro clusters and their located clusters.
type MomentsHandler struct {
	store database.Store
}

// NewMomentsHandler creates a new moments handler
func NewMomentsHandler(store database.Store) *MomentsHandler {
	return &MomentsHandler{store: store}
}

// MomentSummary is one entry of the moments listing.
type MomentSummary struct {
	ID            string     `json:"id"`
	Start         *time.Time `json:"start,omitempty"`
	End           *time.Time `json:"end,omitempty"`
	AssetCount    int        `json:"asset_count"`
	LocatedStatus string     `json:"located_status"`
}

// MomentsListResponse is the paginated moments listing.
type MomentsListResponse struct {
	Moments []MomentSummary `json:"moments"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// PlaceResponse is one located cluster of a moment.
type PlaceResponse struct {
	ID             string          `json:"id"`
	Location       *geo.Coordinate `json:"location,omitempty"`
	Place          *database.Place `json:"place,omitempty"`
	LocationStatus string          `json:"location_status"`
	AssetIDs       []string        `json:"asset_ids"`
}

// MomentResponse is a moment with its places and members.
type MomentResponse struct {
	MomentSummary
	Places []PlaceResponse `json:"places"`
	Assets []AssetResponse `json:"assets"`
}

// List returns moments, newest first
func (h *MomentsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	var summaries []database.MacroClusterSummary
	err := h.store.ReadTx(r.Context(), func(tx database.Reader) error {
		var err error
		summaries, err = tx.ListMacroClusters(r.Context(), limit, offset)
		return err
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to list moments")
		respondError(w, http.StatusInternalServerError, "failed to list moments")
		return
	}

	resp := MomentsListResponse{
		Moments: make([]MomentSummary, len(summaries)),
		Limit:   limit,
		Offset:  offset,
	}
	for i, s := range summaries {
		resp.Moments[i] = MomentSummary{
			ID:            s.ID,
			Start:         s.Start,
			End:           s.End,
			AssetCount:    s.MemberCount,
			LocatedStatus: string(s.LocatedClusterStatus),
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

// Get returns one moment with its places and member assets
func (h *MomentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	var resp MomentResponse
	err := h.store.ReadTx(ctx, func(tx database.Reader) error {
		cluster, err := tx.GetMacroCluster(ctx, id)
		if err != nil {
			return err
		}
		members, err := tx.AssetsByMacroCluster(ctx, id)
		if err != nil {
			return err
		}
		located, err := tx.LocatedClustersByMacroCluster(ctx, id)
		if err != nil {
			return err
		}

		resp = MomentResponse{
			MomentSummary: MomentSummary{
				ID:            cluster.ID,
				AssetCount:    len(members),
				LocatedStatus: string(cluster.LocatedClusterStatus),
			},
			Places: make([]PlaceResponse, 0, len(located)),
			Assets: make([]AssetResponse, 0, len(members)),
		}

		byPlace := make(map[string][]string)
		for _, a := range members {
			resp.Assets = append(resp.Assets, assetResponse(a))
			if a.LocatedClusterID != "" {
				byPlace[a.LocatedClusterID] = append(byPlace[a.LocatedClusterID], a.ID)
			}
			if a.TakenAt == nil {
				continue
			}
			if resp.Start == nil || a.TakenAt.Before(*resp.Start) {
				resp.Start = a.TakenAt
			}
			if resp.End == nil || a.TakenAt.After(*resp.End) {
				resp.End = a.TakenAt
			}
		}

		for _, l := range located {
			p := PlaceResponse{
				ID:             l.ID,
				Location:       l.Location,
				LocationStatus: string(l.LocationStatus),
				AssetIDs:       byPlace[l.ID],
			}
			if p.AssetIDs == nil {
				p.AssetIDs = []string{}
			}
			if !l.Place.IsZero() {
				place := l.Place
				p.Place = &place
			}
			resp.Places = append(resp.Places, p)
		}
		return nil
	})
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusNotFound, "moment not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("moment", sanitizeForLog(id)).Msg("failed to load moment")
		respondError(w, http.StatusInternalServerError, "failed to load moment")
		return
	}
	respondJSON(w, http.StatusOK, resp)
}
