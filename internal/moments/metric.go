package moments

import (
	"math"

	"github.com/kozaktomas/photo-moments/internal/database"
	"github.com/kozaktomas/photo-moments/internal/geo"
)

// Distance is the normalized spatio-temporal distance between two assets.
// Time and space are each divided by their normalization factor and combined
// euclidean-style; when either asset has no location only time counts.
// A missing capture time yields math.MaxFloat64, so the pair is never adjacent.
func Distance(p Params, a, b *database.AssetRecord) float64 {
	if a.TakenAt == nil || b.TakenAt == nil {
		return math.MaxFloat64
	}

	dt := math.Abs(float64(a.TakenAt.Sub(*b.TakenAt))) / float64(p.TimeNormalizationFactor)
	if a.Location == nil || b.Location == nil {
		return dt
	}

	dd := geo.Distance(*a.Location, *b.Location) / p.DistanceNormalizationFactor
	return math.Sqrt(dt*dt + dd*dd)
}

// Adjacent reports whether two assets are within MaxDistance of each other.
func Adjacent(p Params, a, b *database.AssetRecord) bool {
	return Distance(p, a, b) < p.MaxDistance
}
