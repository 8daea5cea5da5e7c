package moments

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/photo-moments/internal/database"
	"github.com/kozaktomas/photo-moments/internal/geo"
)

// twoSpots is one macro cluster with four photos at a castle, three at a
// bridge 500 m away and one photo without GPS taken in between.
func twoSpots() []*database.AssetRecord {
	castle, bridge := 50.0900, north(50.0900, 500)
	return []*database.AssetRecord{
		located("c1", 0, castle, 14.4000),
		located("c2", 5, north(castle, 2), 14.4000),
		located("c3", 10, castle, 14.40002),
		located("c4", 15, north(castle, 1), 14.40001),
		unlocated("n1", 20),
		located("b1", 60, bridge, 14.4000),
		located("b2", 65, north(bridge, 3), 14.4000),
		located("b3", 70, bridge, 14.40003),
	}
}

func clusteredStore(t *testing.T, assets ...*database.AssetRecord) (*Engine, database.Store, string) {
	t.Helper()
	store := newStore(t, assets...)
	engine := NewEngine(store, DefaultParams())
	drain(t, store, engine)

	clusters := macroClusters(t, store)
	require.Len(t, clusters, 1)
	return engine, store, clusters[0].ID
}

// markLocated simulates the geocoder resolving every located cluster.
func markLocated(t *testing.T, store database.Store, macroID string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.WithTx(ctx, func(tx database.Tx) error {
		clusters, err := tx.LocatedClustersByMacroCluster(ctx, macroID)
		if err != nil {
			return err
		}
		for _, c := range clusters {
			c.LocationStatus = database.LocationLocated
			c.Place = database.Place{Name: "somewhere"}
			if err := tx.SaveLocatedCluster(ctx, c); err != nil {
				return err
			}
		}
		return nil
	}))
}

func resubdivide(t *testing.T, store database.Store, macroID string) SubdivisionResult {
	t.Helper()
	ctx := context.Background()
	s := NewSubdivider(DefaultParams())
	var result SubdivisionResult
	require.NoError(t, store.WithTx(ctx, func(tx database.Tx) error {
		cluster, err := tx.GetMacroCluster(ctx, macroID)
		if err != nil {
			return err
		}
		result, err = s.Subdivide(ctx, tx, cluster)
		return err
	}))
	return result
}

func TestSubdivide_TwoSpots(t *testing.T) {
	_, store, macroID := clusteredStore(t, twoSpots()...)

	groups := membership(t, store, macroID)
	require.Len(t, groups, 2)

	var sets [][]string
	for _, ids := range groups {
		sets = append(sets, ids)
	}
	assert.ElementsMatch(t, [][]string{
		{"c1", "c2", "c3", "c4", "n1"},
		{"b1", "b2", "b3"},
	}, sets)

	for _, c := range locatedClusters(t, store, macroID) {
		assert.Equal(t, database.LocationPending, c.LocationStatus)
		require.NotNil(t, c.Location)
	}
}

func TestSubdivide_Idempotent(t *testing.T) {
	_, store, macroID := clusteredStore(t, twoSpots()...)
	markLocated(t, store, macroID)

	before := membership(t, store, macroID)
	beforeClusters := locatedClusters(t, store, macroID)

	result := resubdivide(t, store, macroID)
	assert.Equal(t, SubdivisionResult{}, result)

	after := membership(t, store, macroID)
	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("membership changed (-before +after):\n%s", diff)
	}

	afterClusters := locatedClusters(t, store, macroID)
	require.Len(t, afterClusters, len(beforeClusters))
	for i := range afterClusters {
		assert.Equal(t, database.LocationLocated, afterClusters[i].LocationStatus)
		assert.Equal(t, beforeClusters[i].Place, afterClusters[i].Place)
		assert.True(t, geo.Equal(beforeClusters[i].Location, afterClusters[i].Location))
	}
}

// driftStore holds one located cluster of three assets at spot whose stored
// location sits the given meters north of it.
func driftStore(t *testing.T, offsetMeters float64) database.Store {
	t.Helper()
	spot := 50.0
	assets := []*database.AssetRecord{
		located("a", 0, spot, 14),
		located("b", 1, spot, 14),
		located("c", 2, spot, 14),
	}
	for _, a := range assets {
		a.Status = database.StatusCore
		a.MacroClusterID = "m"
		a.LocatedClusterID = "l"
	}
	store := newStore(t, assets...)

	ctx := context.Background()
	require.NoError(t, store.WithTx(ctx, func(tx database.Tx) error {
		if err := tx.SaveMacroCluster(ctx, &database.MacroCluster{ID: "m", LocatedClusterStatus: database.LocatedStatusPending}); err != nil {
			return err
		}
		return tx.SaveLocatedCluster(ctx, &database.LocatedCluster{
			ID:             "l",
			MacroClusterID: "m",
			Location:       &geo.Coordinate{Latitude: north(spot, offsetMeters), Longitude: 14},
			Place:          database.Place{Name: "Old Town"},
			LocationStatus: database.LocationLocated,
		})
	}))
	return store
}

func TestSubdivide_InvalidationOnDrift(t *testing.T) {
	tests := []struct {
		name        string
		offset      float64
		wantStatus  database.LocationStatus
		invalidated int
	}{
		{"small drift keeps geocoding", 2, database.LocationLocated, 0},
		{"just under threshold", 4.9, database.LocationLocated, 0},
		{"just over threshold", 5.01, database.LocationPending, 1},
		{"large drift", 10, database.LocationPending, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := driftStore(t, tt.offset)
			result := resubdivide(t, store, "m")
			assert.Equal(t, tt.invalidated, result.Invalidated)

			clusters := locatedClusters(t, store, "m")
			require.Len(t, clusters, 1)
			l := clusters[0]
			assert.Equal(t, "l", l.ID, "existing cluster is reused")
			assert.Equal(t, tt.wantStatus, l.LocationStatus)
			require.NotNil(t, l.Location)
			assert.InDelta(t, 50.0, l.Location.Latitude, 1e-9, "location follows the members")
			if tt.wantStatus == database.LocationPending {
				assert.True(t, l.Place.IsZero())
			} else {
				assert.Equal(t, "Old Town", l.Place.Name)
			}
		})
	}
}

func TestSubdivide_LocationLostInvalidates(t *testing.T) {
	ctx := context.Background()
	store := driftStore(t, 0)
	require.NoError(t, store.WithTx(ctx, func(tx database.Tx) error {
		for _, id := range []string{"a", "b", "c"} {
			a, err := tx.GetAsset(ctx, id)
			if err != nil {
				return err
			}
			a.Location = nil
			if err := tx.SaveAsset(ctx, a); err != nil {
				return err
			}
		}
		return nil
	}))

	result := resubdivide(t, store, "m")
	assert.Equal(t, 1, result.Invalidated)

	clusters := locatedClusters(t, store, "m")
	require.Len(t, clusters, 1)
	assert.Nil(t, clusters[0].Location)
	assert.Equal(t, database.LocationPending, clusters[0].LocationStatus)
}

func TestSubdivide_NoLocatedMembers(t *testing.T) {
	_, store, macroID := clusteredStore(t,
		unlocated("a", 0),
		unlocated("b", 10),
		unlocated("c", 20),
	)

	clusters := locatedClusters(t, store, macroID)
	require.Len(t, clusters, 1)
	assert.Nil(t, clusters[0].Location)
	assert.Equal(t, []string{"a", "b", "c"}, membership(t, store, macroID)[clusters[0].ID])
}

func TestSubdivide_SmallSpotsFallBackToMean(t *testing.T) {
	// Two spots of two photos each: neither is big enough for its own group.
	_, store, macroID := clusteredStore(t,
		located("a", 0, 50.0, 14),
		located("b", 1, 50.0, 14),
		located("c", 2, north(50.0, 400), 14),
		located("d", 3, north(50.0, 400), 14),
	)

	clusters := locatedClusters(t, store, macroID)
	require.Len(t, clusters, 1)
	require.NotNil(t, clusters[0].Location)
	assert.InDelta(t, north(50.0, 200), clusters[0].Location.Latitude, 1e-9)
	assert.Len(t, membership(t, store, macroID)[clusters[0].ID], 4)
}

func TestSubdivide_FarUnlocatedMembersGetOwnGroup(t *testing.T) {
	// u3 and n are clustered through the time-only chain but more than
	// MaxDistance from every located photo.
	_, store, macroID := clusteredStore(t,
		located("a", 0, 50.0, 14),
		located("b", 1, 50.0, 14),
		located("c", 2, 50.0, 14),
		unlocated("u1", 200),
		unlocated("u2", 300),
		unlocated("u3", 400),
		unlocated("n", 420),
	)

	groups := membership(t, store, macroID)
	var sets [][]string
	for _, ids := range groups {
		sets = append(sets, ids)
	}
	assert.ElementsMatch(t, [][]string{
		{"a", "b", "c", "u1", "u2"},
		{"n", "u3"},
	}, sets)
}

func TestSubdivide_MembersLeavingAreDetached(t *testing.T) {
	engine, store, macroID := clusteredStore(t, twoSpots()...)

	for _, id := range []string{"b1", "b2", "b3"} {
		a := getAsset(t, store, id)
		a.Status = database.StatusDeletePending
		save(t, store, a)
	}
	drain(t, store, engine)

	groups := membership(t, store, macroID)
	require.Len(t, groups, 1)
	for _, ids := range groups {
		assert.Equal(t, []string{"c1", "c2", "c3", "c4", "n1"}, ids)
	}
}

func TestMeanShift_ConvergesToModes(t *testing.T) {
	points := []geo.Coordinate{
		{Latitude: 50.0, Longitude: 14.0},
		{Latitude: north(50.0, 3), Longitude: 14.0},
		{Latitude: north(50.0, 6), Longitude: 14.0},
		{Latitude: north(50.0, 1000), Longitude: 14.0},
	}
	modes := meanShift(points, 100, 0.01, 100)
	require.Len(t, modes, 4)

	assert.InDelta(t, 0, geo.Distance(modes[0], modes[1]), 0.1)
	assert.InDelta(t, 0, geo.Distance(modes[1], modes[2]), 0.1)
	assert.InDelta(t, north(50.0, 3), modes[0].Latitude, 1e-6)
	assert.InDelta(t, points[3].Latitude, modes[3].Latitude, 1e-9, "isolated point stays put")
}

func TestGroupByProximity_Chaining(t *testing.T) {
	points := []geo.Coordinate{
		{Latitude: 50.0, Longitude: 14.0},
		{Latitude: north(50.0, 25), Longitude: 14.0},
		{Latitude: north(50.0, 8), Longitude: 14.0},
		{Latitude: north(50.0, 16), Longitude: 14.0},
	}
	// Point 1 is not within 10 m of point 0 when it is checked, so the
	// single greedy pass leaves it out even though 3 later bridges the gap.
	groups := groupByProximity(points, 10)
	assert.Equal(t, [][]int{{0, 2, 3}, {1}}, groups)
}
