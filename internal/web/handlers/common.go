package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kozaktomas/photo-moments/internal/constants"
	"github.com/kozaktomas/photo-moments/internal/database"
	"github.com/kozaktomas/photo-moments/internal/geo"
)

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// parsePagination reads the limit and offset query parameters.
// Invalid values fall back to the defaults; limit is capped.
func parsePagination(r *http.Request) (limit, offset int) {
	limit = constants.DefaultHandlerPageSize
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = min(v, constants.MaxHandlerPageSize)
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}

// AssetResponse is the JSON form of an asset.
type AssetResponse struct {
	ID               string          `json:"id"`
	TakenAt          *time.Time      `json:"taken_at,omitempty"`
	Location         *geo.Coordinate `json:"location,omitempty"`
	Status           string          `json:"status"`
	MacroClusterID   string          `json:"moment_id,omitempty"`
	LocatedClusterID string          `json:"place_id,omitempty"`
}

func assetResponse(a *database.AssetRecord) AssetResponse {
	return AssetResponse{
		ID:               a.ID,
		TakenAt:          a.TakenAt,
		Location:         a.Location,
		Status:           string(a.Status),
		MacroClusterID:   a.MacroClusterID,
		LocatedClusterID: a.LocatedClusterID,
	}
}
