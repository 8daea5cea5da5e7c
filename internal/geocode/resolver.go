package geocode

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/kozaktomas/photo-moments/internal/constants"
	"github.com/kozaktomas/photo-moments/internal/database"
	"github.com/kozaktomas/photo-moments/internal/geo"
)

// ResolveResult counts the outcome of a Resolver run.
type ResolveResult struct {
	Located    int `json:"located"`
	NoLocation int `json:"no_location"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"` // Changed or removed while the lookup ran
}

// Resolver geocodes located clusters whose location status is pending.
type Resolver struct {
	store    database.Store
	geocoder Geocoder
}

// NewResolver creates a Resolver.
func NewResolver(store database.Store, geocoder Geocoder) *Resolver {
	return &Resolver{store: store, geocoder: geocoder}
}

// Run resolves up to limit pending located clusters. Lookups happen outside
// any transaction; each result is written in its own transaction after
// checking that the cluster is still pending at the same location.
func (r *Resolver) Run(ctx context.Context, limit int) (ResolveResult, error) {
	if limit <= 0 {
		limit = constants.DefaultGeocodeLimit
	}

	var pending []*database.LocatedCluster
	err := r.store.ReadTx(ctx, func(tx database.Reader) error {
		var err error
		pending, err = tx.LocatedClustersByStatus(ctx, database.LocationPending, limit)
		return err
	})
	if err != nil {
		return ResolveResult{}, fmt.Errorf("list pending located clusters: %w", err)
	}

	var res ResolveResult
	for _, c := range pending {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		var (
			place     database.Place
			status    = database.LocationNoLocation
			lookupErr error
		)
		if c.Location != nil {
			place, lookupErr = r.geocoder.Reverse(ctx, *c.Location)
			switch {
			case lookupErr == nil:
				status = database.LocationLocated
			case ctx.Err() != nil:
				return res, ctx.Err()
			default:
				status = database.LocationFailed
				level := log.Warn()
				if errors.Is(lookupErr, ErrNoResult) {
					level = log.Debug()
				}
				level.Err(lookupErr).Str("located_cluster", c.ID).Msg("reverse geocoding failed")
			}
		}

		applied, err := r.apply(ctx, c, place, status)
		if err != nil {
			return res, err
		}
		if !applied {
			res.Skipped++
			continue
		}
		switch status {
		case database.LocationLocated:
			res.Located++
		case database.LocationNoLocation:
			res.NoLocation++
		default:
			res.Failed++
		}
	}
	return res, nil
}

// apply stores the lookup result unless the cluster changed meanwhile.
func (r *Resolver) apply(ctx context.Context, looked *database.LocatedCluster, place database.Place, status database.LocationStatus) (bool, error) {
	applied := false
	err := r.store.WithTx(ctx, func(tx database.Tx) error {
		applied = false

		current, err := tx.GetLocatedCluster(ctx, looked.ID)
		if errors.Is(err, database.ErrNotFound) {
			log.Debug().Str("located_cluster", looked.ID).Msg("located cluster removed during geocoding")
			return nil
		}
		if err != nil {
			return err
		}
		if current.LocationStatus != database.LocationPending || !geo.Equal(current.Location, looked.Location) {
			log.Debug().Str("located_cluster", looked.ID).Msg("located cluster changed during geocoding")
			return nil
		}

		current.Place = place
		current.LocationStatus = status
		if err := tx.SaveLocatedCluster(ctx, current); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("store geocoding result for %s: %w", looked.ID, err)
	}
	return applied, nil
}
