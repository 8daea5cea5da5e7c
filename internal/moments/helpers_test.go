package moments

import (
	"context"
	"math"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/photo-moments/internal/database"
	"github.com/kozaktomas/photo-moments/internal/database/memory"
	"github.com/kozaktomas/photo-moments/internal/geo"
)

var base = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// metersPerDegree of latitude on the haversine sphere.
var metersPerDegree = geo.EarthRadiusMeters * math.Pi / 180

func at(minutes int) *time.Time {
	t := base.Add(time.Duration(minutes) * time.Minute)
	return &t
}

// located returns a pending asset at lat/lng taken minutes after base.
func located(id string, minutes int, lat, lng float64) *database.AssetRecord {
	return &database.AssetRecord{
		ID:       id,
		TakenAt:  at(minutes),
		Location: &geo.Coordinate{Latitude: lat, Longitude: lng},
		Status:   database.StatusPending,
	}
}

// unlocated returns a pending asset without coordinates.
func unlocated(id string, minutes int) *database.AssetRecord {
	return &database.AssetRecord{ID: id, TakenAt: at(minutes), Status: database.StatusPending}
}

// north offsets a latitude by the given meters.
func north(lat, meters float64) float64 {
	return lat + meters/metersPerDegree
}

func newStore(t *testing.T, assets ...*database.AssetRecord) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	save(t, store, assets...)
	return store
}

func save(t *testing.T, store database.Store, assets ...*database.AssetRecord) {
	t.Helper()
	err := store.WithTx(context.Background(), func(tx database.Tx) error {
		for _, a := range assets {
			if err := tx.SaveAsset(context.Background(), a); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

// drain runs the engine until no asset is pending or delete pending.
func drain(t *testing.T, store database.Store, engine *Engine) {
	t.Helper()
	ctx := context.Background()
	statuses := []database.MacroClusterStatus{database.StatusPending, database.StatusDeletePending}

	for round := 0; round < 100; round++ {
		var ids []string
		require.NoError(t, store.ReadTx(ctx, func(tx database.Reader) error {
			var err error
			ids, err = tx.AssetIDsByStatus(ctx, statuses, 0)
			return err
		}))
		if len(ids) == 0 {
			return
		}
		for _, id := range ids {
			_, err := engine.Process(ctx, id)
			require.NoError(t, err)
		}
	}
	t.Fatal("engine did not reach a fixed point")
}

func getAsset(t *testing.T, store database.Store, id string) *database.AssetRecord {
	t.Helper()
	var a *database.AssetRecord
	require.NoError(t, store.ReadTx(context.Background(), func(tx database.Reader) error {
		var err error
		a, err = tx.GetAsset(context.Background(), id)
		return err
	}))
	return a
}

func macroClusters(t *testing.T, store database.Store) []database.MacroClusterSummary {
	t.Helper()
	var list []database.MacroClusterSummary
	require.NoError(t, store.ReadTx(context.Background(), func(tx database.Reader) error {
		var err error
		list, err = tx.ListMacroClusters(context.Background(), 0, 0)
		return err
	}))
	return list
}

// membership maps each located cluster ID of a macro cluster to its sorted member IDs.
func membership(t *testing.T, store database.Store, macroID string) map[string][]string {
	t.Helper()
	out := make(map[string][]string)
	require.NoError(t, store.ReadTx(context.Background(), func(tx database.Reader) error {
		ctx := context.Background()
		clusters, err := tx.LocatedClustersByMacroCluster(ctx, macroID)
		if err != nil {
			return err
		}
		for _, c := range clusters {
			members, err := tx.AssetsByLocatedCluster(ctx, c.ID)
			if err != nil {
				return err
			}
			ids := make([]string, 0, len(members))
			for _, m := range members {
				ids = append(ids, m.ID)
			}
			sort.Strings(ids)
			out[c.ID] = ids
		}
		return nil
	}))
	return out
}

func locatedClusters(t *testing.T, store database.Store, macroID string) []*database.LocatedCluster {
	t.Helper()
	var clusters []*database.LocatedCluster
	require.NoError(t, store.ReadTx(context.Background(), func(tx database.Reader) error {
		var err error
		clusters, err = tx.LocatedClustersByMacroCluster(context.Background(), macroID)
		return err
	}))
	return clusters
}
