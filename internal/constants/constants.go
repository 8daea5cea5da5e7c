// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Macro clustering constants
const (
	// MinClusterableAssetCount is the minimum neighbor-set size, including the
	// asset itself, for an asset to qualify as a core point
	MinClusterableAssetCount = 3

	// MaxDistance is the normalized distance below which two assets are adjacent
	MaxDistance = 2.0

	// TimeNormalizationFactor divides the capture time difference before it is
	// combined with the spatial difference
	TimeNormalizationFactor = 3 * time.Hour

	// DistanceNormalizationFactor divides the spatial difference in meters
	DistanceNormalizationFactor = 1000.0
)

// Location clustering constants
const (
	// LocationInvalidationDistance is how far (meters) a resolved location may
	// move before it has to be geocoded again
	LocationInvalidationDistance = 5.0

	// MeanShiftDistanceNormalizationFactor is the mean-shift kernel bandwidth in meters
	MeanShiftDistanceNormalizationFactor = 100.0

	// ConvergenceThreshold is the mean-shift convergence tolerance in meters
	ConvergenceThreshold = 5.0

	// MeanShiftMaxIterations bounds the mean-shift loop
	MeanShiftMaxIterations = 100
)

// Processing constants
const (
	// DefaultBatchSize is the number of pending asset IDs fetched per driver round
	DefaultBatchSize = 500

	// DefaultMaxRetries is how many times the driver retries a failed unit of work
	DefaultMaxRetries = 3

	// DefaultPageSize is the default number of items to fetch per API page
	DefaultPageSize = 1000
)

// Geocoding constants
const (
	// DefaultGeocoderURL is the public Nominatim endpoint
	DefaultGeocoderURL = "https://nominatim.openstreetmap.org"

	// DefaultGeocoderRequestsPerSecond honours the Nominatim usage policy
	DefaultGeocoderRequestsPerSecond = 1

	// DefaultGeocodeLimit is the default number of located clusters resolved per run
	DefaultGeocodeLimit = 100
)
