package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kozaktomas/photo-moments/internal/database"
)

const statsCacheTTL = 30 * time.Second

// statsCache holds cached stats with expiry
type statsCache struct {
	mu        sync.RWMutex
	data      *StatsResponse
	expiresAt time.Time
	now       func() time.Time
}

func (c *statsCache) get() (*StatsResponse, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.data == nil || c.now().After(c.expiresAt) {
		return nil, false
	}
	return c.data, true
}

func (c *statsCache) set(data *StatsResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = data
	c.expiresAt = c.now().Add(statsCacheTTL)
}

func (c *statsCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = nil
}

// StatsHandler handles statistics endpoints
type StatsHandler struct {
	store database.Store
	cache statsCache
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(store database.Store) *StatsHandler {
	return &StatsHandler{
		store: store,
		cache: statsCache{now: time.Now},
	}
}

// InvalidateCache clears the cached stats so the next request reads fresh data
func (h *StatsHandler) InvalidateCache() {
	h.cache.invalidate()
}

// StatsResponse represents the statistics response
type StatsResponse struct {
	TotalAssets     int            `json:"total_assets"`
	AssetsByStatus  map[string]int `json:"assets_by_status"`
	PendingWork     int            `json:"pending_work"`
	Moments         int            `json:"moments"`
	PendingMoments  int            `json:"pending_moments"`
	PendingGeocodes int            `json:"pending_geocodes"`
}

func (h *StatsHandler) compute(ctx context.Context) (*StatsResponse, error) {
	stats := &StatsResponse{AssetsByStatus: make(map[string]int)}
	err := h.store.ReadTx(ctx, func(tx database.Reader) error {
		counts, err := tx.CountAssetsByStatus(ctx)
		if err != nil {
			return err
		}
		for status, n := range counts {
			stats.AssetsByStatus[string(status)] = n
			stats.TotalAssets += n
		}
		stats.PendingWork = counts[database.StatusPending] + counts[database.StatusDeletePending]

		located, err := tx.MacroClustersByLocatedStatus(ctx, database.LocatedStatusLocated)
		if err != nil {
			return err
		}
		pending, err := tx.MacroClustersByLocatedStatus(ctx, database.LocatedStatusPending)
		if err != nil {
			return err
		}
		stats.Moments = len(located) + len(pending)
		stats.PendingMoments = len(pending)

		geocodes, err := tx.LocatedClustersByStatus(ctx, database.LocationPending, 0)
		if err != nil {
			return err
		}
		stats.PendingGeocodes = len(geocodes)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// Get returns clustering statistics
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	if cached, ok := h.cache.get(); ok {
		respondJSON(w, http.StatusOK, cached)
		return
	}

	stats, err := h.compute(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to compute stats")
		respondError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}

	h.cache.set(stats)
	respondJSON(w, http.StatusOK, stats)
}
