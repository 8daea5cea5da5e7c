package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/kozaktomas/photo-moments/internal/config"
	"github.com/kozaktomas/photo-moments/internal/database"
	"github.com/kozaktomas/photo-moments/internal/database/postgres"
	"github.com/kozaktomas/photo-moments/internal/database/sqlite"
	"github.com/kozaktomas/photo-moments/internal/moments"
)

// openStore initializes the backend selected by DATABASE_URL and returns its store.
func openStore(ctx context.Context, cfg *config.Config) (database.Store, error) {
	if cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}

	switch cfg.Database.Driver() {
	case config.DriverSQLite:
		if err := sqlite.Initialize(sqlite.PathFromURL(cfg.Database.URL)); err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite: %w", err)
		}
	default:
		if err := postgres.Initialize(&cfg.Database); err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
	}
	log.Debug().Str("backend", database.BackendName()).Msg("store initialized")

	return database.GetStore(ctx)
}

// loadParams resolves the clustering parameters, applying CLUSTERING_CONFIG when set.
func loadParams(cfg *config.Config) (moments.Params, error) {
	clustering := cfg.Clustering
	if cfg.ClusteringFile != "" {
		var err error
		clustering, err = config.LoadClusteringFile(cfg.ClusteringFile)
		if err != nil {
			return moments.Params{}, err
		}
		log.Debug().Str("file", cfg.ClusteringFile).Msg("loaded clustering config")
	}
	if err := clustering.Validate(); err != nil {
		return moments.Params{}, err
	}
	return clusteringParams(clustering), nil
}

func clusteringParams(c config.ClusteringConfig) moments.Params {
	return moments.Params{
		MinClusterableAssetCount:             c.MinClusterableAssetCount,
		MaxDistance:                          c.MaxDistance,
		TimeNormalizationFactor:              c.TimeNormalization,
		DistanceNormalizationFactor:          c.DistanceNormalizationMeters,
		LocationInvalidationDistance:         c.LocationInvalidationMeters,
		MeanShiftDistanceNormalizationFactor: c.MeanShiftBandwidthMeters,
		ConvergenceThreshold:                 c.ConvergenceThresholdMeters,
		MeanShiftMaxIterations:               c.MeanShiftMaxIterations,
	}
}
