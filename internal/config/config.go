package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kozaktomas/photo-moments/internal/constants"
)

//go:embed clustering.yaml
var clusteringYAML []byte

// ErrInvalidClustering is returned when clustering parameters are out of range.
var ErrInvalidClustering = errors.New("invalid clustering config")

type Config struct {
	PhotoPrism     PhotoPrismConfig
	Database       DatabaseConfig
	Geocoder       GeocoderConfig
	Clustering     ClusteringConfig
	ClusteringFile string // optional YAML file overriding the embedded clustering.yaml
	Log            LogConfig
}

type PhotoPrismConfig struct {
	URL         string
	Username    string
	Password    string
	Domain      string // public domain for generating photo links (e.g., https://photos.example.com)
	DatabaseURL string // MariaDB DSN for direct database access (e.g., photoprism:photoprism@tcp(mariadb:3306)/photoprism)
}

// PhotoURL returns an OSC 8 hyperlink for terminal emulators (iTerm2, etc.)
// Displays the UID but makes it clickable to open the photo in PhotoPrism
// Returns empty string if Domain is not set
func (c *PhotoPrismConfig) PhotoURL(uid string) string {
	if c.Domain == "" {
		return ""
	}
	url := c.Domain + "/library/browse?view=cards&order=oldest&q=uid:" + uid
	// OSC 8 hyperlink format: \e]8;;URL\e\\TEXT\e]8;;\e\\
	return "\x1b]8;;" + url + "\x1b\\" + uid + "\x1b]8;;\x1b\\"
}

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL or sqlite:<path>
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

// Driver returns the backend selected by URL.
func (c *DatabaseConfig) Driver() string {
	if strings.HasPrefix(c.URL, "sqlite:") {
		return DriverSQLite
	}
	return DriverPostgres
}

type GeocoderConfig struct {
	URL               string  // defaults to https://nominatim.openstreetmap.org
	UserAgent         string  // Nominatim requires an identifying User-Agent
	RequestsPerSecond float64 // defaults to 1 (Nominatim usage policy)
	Language          string  // Accept-Language for place names
}

type ClusteringConfig struct {
	MinClusterableAssetCount    int           `yaml:"min_clusterable_asset_count"`
	MaxDistance                 float64       `yaml:"max_distance"`
	TimeNormalization           time.Duration `yaml:"time_normalization"`
	DistanceNormalizationMeters float64       `yaml:"distance_normalization_meters"`
	LocationInvalidationMeters  float64       `yaml:"location_invalidation_meters"`
	MeanShiftBandwidthMeters    float64       `yaml:"mean_shift_bandwidth_meters"`
	ConvergenceThresholdMeters  float64       `yaml:"convergence_threshold_meters"`
	MeanShiftMaxIterations      int           `yaml:"mean_shift_max_iterations"`
}

// Validate checks that every parameter is usable.
func (c *ClusteringConfig) Validate() error {
	switch {
	case c.MinClusterableAssetCount < 1:
		return fmt.Errorf("%w: min_clusterable_asset_count must be at least 1", ErrInvalidClustering)
	case c.MaxDistance <= 0:
		return fmt.Errorf("%w: max_distance must be positive", ErrInvalidClustering)
	case c.TimeNormalization <= 0:
		return fmt.Errorf("%w: time_normalization must be positive", ErrInvalidClustering)
	case c.DistanceNormalizationMeters <= 0:
		return fmt.Errorf("%w: distance_normalization_meters must be positive", ErrInvalidClustering)
	case c.LocationInvalidationMeters < 0:
		return fmt.Errorf("%w: location_invalidation_meters must not be negative", ErrInvalidClustering)
	case c.MeanShiftBandwidthMeters <= 0:
		return fmt.Errorf("%w: mean_shift_bandwidth_meters must be positive", ErrInvalidClustering)
	case c.ConvergenceThresholdMeters <= 0:
		return fmt.Errorf("%w: convergence_threshold_meters must be positive", ErrInvalidClustering)
	case c.MeanShiftMaxIterations < 1:
		return fmt.Errorf("%w: mean_shift_max_iterations must be at least 1", ErrInvalidClustering)
	}
	return nil
}

type LogConfig struct {
	Level  string // zerolog level name (default info)
	Format string // console or json (default console)
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat is envInt for positive floats.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// DefaultClustering returns the embedded clustering parameters.
func DefaultClustering() ClusteringConfig {
	var c ClusteringConfig
	if err := yaml.Unmarshal(clusteringYAML, &c); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded clustering.yaml: " + err.Error())
	}
	return c
}

// LoadClusteringFile reads a YAML file on top of the embedded defaults.
// Keys missing from the file keep their default values.
func LoadClusteringFile(path string) (ClusteringConfig, error) {
	c := DefaultClustering()
	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("read clustering config: %w", err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("parse clustering config %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

func Load() *Config {
	return &Config{
		PhotoPrism: PhotoPrismConfig{
			URL:         os.Getenv("PHOTOPRISM_URL"),
			Username:    os.Getenv("PHOTOPRISM_USERNAME"),
			Password:    os.Getenv("PHOTOPRISM_PASSWORD"),
			Domain:      os.Getenv("PHOTOPRISM_DOMAIN"),
			DatabaseURL: os.Getenv("PHOTOPRISM_DATABASE_URL"),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Geocoder: GeocoderConfig{
			URL:               envString("GEOCODER_URL", constants.DefaultGeocoderURL),
			UserAgent:         envString("GEOCODER_USER_AGENT", "photo-moments"),
			RequestsPerSecond: envFloat("GEOCODER_REQUESTS_PER_SECOND", constants.DefaultGeocoderRequestsPerSecond),
			Language:          os.Getenv("GEOCODER_LANGUAGE"),
		},
		Clustering:     DefaultClustering(),
		ClusteringFile: os.Getenv("CLUSTERING_CONFIG"),
		Log: LogConfig{
			Level:  envString("LOG_LEVEL", "info"),
			Format: envString("LOG_FORMAT", "console"),
		},
	}
}
