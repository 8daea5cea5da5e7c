package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestPhotoURL_EmptyDomain(t *testing.T) {
	cfg := PhotoPrismConfig{
		Domain: "",
	}

	result := cfg.PhotoURL("photo123")

	if result != "" {
		t.Errorf("expected empty string for empty domain, got '%s'", result)
	}
}

func TestPhotoURL_WithDomain(t *testing.T) {
	cfg := PhotoPrismConfig{
		Domain: "https://photos.example.com",
	}

	result := cfg.PhotoURL("pt8abc123xyz")

	expectedURL := "https://photos.example.com/library/browse?view=cards&order=oldest&q=uid:pt8abc123xyz"
	if !strings.Contains(result, expectedURL) {
		t.Errorf("expected result to contain %q, got %q", expectedURL, result)
	}
	if !strings.HasPrefix(result, "\x1b]8;;") {
		t.Error("expected result to start with OSC 8 escape sequence")
	}
	if !strings.Contains(result, "\x1b\\pt8abc123xyz\x1b]8;;") {
		t.Error("expected UID as visible link text")
	}
}

func TestDatabaseConfig_Driver(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"postgres://u:p@localhost:5432/moments?sslmode=disable", DriverPostgres},
		{"sqlite:moments.db", DriverSQLite},
		{"sqlite:///var/lib/moments.db", DriverSQLite},
		{"", DriverPostgres},
	}
	for _, tt := range tests {
		cfg := DatabaseConfig{URL: tt.url}
		if got := cfg.Driver(); got != tt.want {
			t.Errorf("Driver(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestDefaultClustering(t *testing.T) {
	c := DefaultClustering()

	if c.MinClusterableAssetCount != 3 {
		t.Errorf("expected min count 3, got %d", c.MinClusterableAssetCount)
	}
	if c.MaxDistance != 2.0 {
		t.Errorf("expected max distance 2.0, got %f", c.MaxDistance)
	}
	if c.TimeNormalization != 3*time.Hour {
		t.Errorf("expected time normalization 3h, got %s", c.TimeNormalization)
	}
	if c.DistanceNormalizationMeters != 1000 {
		t.Errorf("expected distance normalization 1000, got %f", c.DistanceNormalizationMeters)
	}
	if c.LocationInvalidationMeters != 5 {
		t.Errorf("expected invalidation distance 5, got %f", c.LocationInvalidationMeters)
	}
	if c.MeanShiftBandwidthMeters != 100 {
		t.Errorf("expected bandwidth 100, got %f", c.MeanShiftBandwidthMeters)
	}
	if c.ConvergenceThresholdMeters != 5 {
		t.Errorf("expected convergence threshold 5, got %f", c.ConvergenceThresholdMeters)
	}
	if c.MeanShiftMaxIterations != 100 {
		t.Errorf("expected 100 iterations, got %d", c.MeanShiftMaxIterations)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("embedded config should be valid: %v", err)
	}
}

func TestLoadClusteringFile_PartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clustering.yaml")
	content := "max_distance: 1.5\ntime_normalization: 90m\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	c, err := LoadClusteringFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.MaxDistance != 1.5 {
		t.Errorf("expected max distance 1.5, got %f", c.MaxDistance)
	}
	if c.TimeNormalization != 90*time.Minute {
		t.Errorf("expected 90m, got %s", c.TimeNormalization)
	}
	if c.MinClusterableAssetCount != 3 {
		t.Errorf("expected default min count to be kept, got %d", c.MinClusterableAssetCount)
	}
}

func TestLoadClusteringFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clustering.yaml")
	if err := os.WriteFile(path, []byte("max_distance: -1\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := LoadClusteringFile(path)
	if !errors.Is(err, ErrInvalidClustering) {
		t.Errorf("expected ErrInvalidClustering, got %v", err)
	}
}

func TestLoadClusteringFile_Missing(t *testing.T) {
	_, err := LoadClusteringFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestClusteringConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *ClusteringConfig)
	}{
		{"zero min count", func(c *ClusteringConfig) { c.MinClusterableAssetCount = 0 }},
		{"zero max distance", func(c *ClusteringConfig) { c.MaxDistance = 0 }},
		{"zero time normalization", func(c *ClusteringConfig) { c.TimeNormalization = 0 }},
		{"zero distance normalization", func(c *ClusteringConfig) { c.DistanceNormalizationMeters = 0 }},
		{"negative invalidation", func(c *ClusteringConfig) { c.LocationInvalidationMeters = -1 }},
		{"zero bandwidth", func(c *ClusteringConfig) { c.MeanShiftBandwidthMeters = 0 }},
		{"zero convergence", func(c *ClusteringConfig) { c.ConvergenceThresholdMeters = 0 }},
		{"zero iterations", func(c *ClusteringConfig) { c.MeanShiftMaxIterations = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultClustering()
			tt.mutate(&c)
			if err := c.Validate(); !errors.Is(err, ErrInvalidClustering) {
				t.Errorf("expected ErrInvalidClustering, got %v", err)
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	os.Unsetenv("DATABASE_MAX_OPEN_CONNS")
	os.Unsetenv("GEOCODER_URL")
	os.Unsetenv("GEOCODER_REQUESTS_PER_SECOND")
	os.Unsetenv("LOG_LEVEL")

	cfg := Load()

	if cfg.Database.MaxOpenConns != 25 {
		t.Errorf("expected default max open conns 25, got %d", cfg.Database.MaxOpenConns)
	}
	if cfg.Geocoder.URL != "https://nominatim.openstreetmap.org" {
		t.Errorf("expected Nominatim default URL, got '%s'", cfg.Geocoder.URL)
	}
	if cfg.Geocoder.RequestsPerSecond != 1 {
		t.Errorf("expected 1 request per second, got %f", cfg.Geocoder.RequestsPerSecond)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected log level info, got '%s'", cfg.Log.Level)
	}
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	t.Setenv("DATABASE_MAX_OPEN_CONNS", "invalid")
	t.Setenv("DATABASE_MAX_IDLE_CONNS", "-3")
	t.Setenv("GEOCODER_REQUESTS_PER_SECOND", "0")

	cfg := Load()

	if cfg.Database.MaxOpenConns != 25 {
		t.Errorf("expected default 25 for invalid input, got %d", cfg.Database.MaxOpenConns)
	}
	if cfg.Database.MaxIdleConns != 5 {
		t.Errorf("expected default 5 for negative input, got %d", cfg.Database.MaxIdleConns)
	}
	if cfg.Geocoder.RequestsPerSecond != 1 {
		t.Errorf("expected default rate for zero input, got %f", cfg.Geocoder.RequestsPerSecond)
	}
}

func TestLoad_PhotoPrismConfig(t *testing.T) {
	t.Setenv("PHOTOPRISM_URL", "https://photos.test.com")
	t.Setenv("PHOTOPRISM_USERNAME", "testuser")
	t.Setenv("PHOTOPRISM_PASSWORD", "testpass")
	t.Setenv("PHOTOPRISM_DATABASE_URL", "photoprism:photoprism@tcp(mariadb:3306)/photoprism")

	cfg := Load()

	if cfg.PhotoPrism.URL != "https://photos.test.com" {
		t.Errorf("expected URL 'https://photos.test.com', got '%s'", cfg.PhotoPrism.URL)
	}
	if cfg.PhotoPrism.Username != "testuser" {
		t.Errorf("expected username 'testuser', got '%s'", cfg.PhotoPrism.Username)
	}
	if cfg.PhotoPrism.Password != "testpass" {
		t.Errorf("expected password 'testpass', got '%s'", cfg.PhotoPrism.Password)
	}
	if cfg.PhotoPrism.DatabaseURL != "photoprism:photoprism@tcp(mariadb:3306)/photoprism" {
		t.Errorf("unexpected database URL '%s'", cfg.PhotoPrism.DatabaseURL)
	}
}

func TestLoad_ClusteringFileAndGeocoder(t *testing.T) {
	t.Setenv("CLUSTERING_CONFIG", "/etc/moments/clustering.yaml")
	t.Setenv("GEOCODER_URL", "http://nominatim.local")
	t.Setenv("GEOCODER_REQUESTS_PER_SECOND", "2.5")
	t.Setenv("GEOCODER_LANGUAGE", "cs")

	cfg := Load()

	if cfg.ClusteringFile != "/etc/moments/clustering.yaml" {
		t.Errorf("unexpected clustering file '%s'", cfg.ClusteringFile)
	}
	if cfg.Geocoder.URL != "http://nominatim.local" {
		t.Errorf("unexpected geocoder URL '%s'", cfg.Geocoder.URL)
	}
	if cfg.Geocoder.RequestsPerSecond != 2.5 {
		t.Errorf("expected 2.5 requests per second, got %f", cfg.Geocoder.RequestsPerSecond)
	}
	if cfg.Geocoder.Language != "cs" {
		t.Errorf("expected language cs, got '%s'", cfg.Geocoder.Language)
	}
}
