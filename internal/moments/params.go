// Package moments groups timestamped, optionally geolocated assets into
// moments. A MacroCluster is a density-connected run of assets in time and
// space; each MacroCluster is subdivided by location into LocatedClusters
// that can be reverse geocoded.
//
// The package is incremental: the driver hands it one changed asset at a
// time and the Engine applies the insert or delete transition plus any
// pending location subdivision inside a single store transaction. Neighbor
// reclassification never recurses; affected assets are flagged pending and
// the driver keeps calling the Engine until nothing is pending.
package moments

import (
	"time"

	"github.com/kozaktomas/photo-moments/internal/constants"
)

// Params holds the clustering parameters.
type Params struct {
	// MinClusterableAssetCount is the self-inclusive neighbor count that
	// makes an asset a core point. Location groups smaller than this are
	// folded back into the unlocated set.
	MinClusterableAssetCount int
	// MaxDistance is the normalized adjacency threshold (strictly less).
	MaxDistance float64
	// TimeNormalizationFactor is one unit of normalized distance in time.
	TimeNormalizationFactor time.Duration
	// DistanceNormalizationFactor is one unit of normalized distance in meters.
	DistanceNormalizationFactor float64
	// LocationInvalidationDistance in meters.
	LocationInvalidationDistance float64
	// MeanShiftDistanceNormalizationFactor is the kernel bandwidth in meters.
	MeanShiftDistanceNormalizationFactor float64
	// ConvergenceThreshold in meters.
	ConvergenceThreshold float64
	MeanShiftMaxIterations int
}

// DefaultParams returns the built-in parameters.
func DefaultParams() Params {
	return Params{
		MinClusterableAssetCount:             constants.MinClusterableAssetCount,
		MaxDistance:                          constants.MaxDistance,
		TimeNormalizationFactor:              constants.TimeNormalizationFactor,
		DistanceNormalizationFactor:          constants.DistanceNormalizationFactor,
		LocationInvalidationDistance:         constants.LocationInvalidationDistance,
		MeanShiftDistanceNormalizationFactor: constants.MeanShiftDistanceNormalizationFactor,
		ConvergenceThreshold:                 constants.ConvergenceThreshold,
		MeanShiftMaxIterations:               constants.MeanShiftMaxIterations,
	}
}

// window is the half-width of the capture-time range that can hold neighbors.
func (p Params) window() time.Duration {
	return time.Duration(p.MaxDistance * float64(p.TimeNormalizationFactor))
}
