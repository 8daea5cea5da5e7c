// Package storetest holds a conformance suite shared by every database.Store
// backend.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/kozaktomas/photo-moments/internal/database"
	"github.com/kozaktomas/photo-moments/internal/geo"
)

// Suite exercises a database.Store. NewStore must return an empty store.
type Suite struct {
	suite.Suite

	NewStore func(t *testing.T) database.Store

	ctx   context.Context
	store database.Store
}

// Run runs the suite against stores produced by newStore.
func Run(t *testing.T, newStore func(t *testing.T) database.Store) {
	suite.Run(t, &Suite{NewStore: newStore})
}

func (s *Suite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.NewStore(s.T())
}

func (s *Suite) TearDownTest() {
	s.NoError(s.store.Close())
}

// at returns a fixed instant shifted by the given minutes.
func at(minutes int) *time.Time {
	t := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(minutes) * time.Minute)
	return &t
}

func (s *Suite) write(fn func(tx database.Tx)) {
	s.Require().NoError(s.store.WithTx(s.ctx, func(tx database.Tx) error {
		fn(tx)
		return nil
	}))
}

func (s *Suite) read(fn func(tx database.Reader)) {
	s.Require().NoError(s.store.ReadTx(s.ctx, func(tx database.Reader) error {
		fn(tx)
		return nil
	}))
}

func (s *Suite) saveAssets(assets ...*database.AssetRecord) {
	s.write(func(tx database.Tx) {
		for _, a := range assets {
			s.Require().NoError(tx.SaveAsset(s.ctx, a))
		}
	})
}

func ids(assets []*database.AssetRecord) []string {
	out := make([]string, len(assets))
	for i, a := range assets {
		out[i] = a.ID
	}
	return out
}

func (s *Suite) TestAssetRoundTrip() {
	s.saveAssets(
		&database.AssetRecord{
			ID:               "located",
			TakenAt:          at(0),
			Location:         &geo.Coordinate{Latitude: 50.087, Longitude: 14.421},
			Status:           database.StatusCore,
			MacroClusterID:   "m1",
			LocatedClusterID: "l1",
		},
		&database.AssetRecord{ID: "bare", Status: database.StatusInvalidForClustering},
	)

	s.read(func(tx database.Reader) {
		a, err := tx.GetAsset(s.ctx, "located")
		s.Require().NoError(err)
		s.True(at(0).Equal(*a.TakenAt))
		s.Require().NotNil(a.Location)
		s.InDelta(50.087, a.Location.Latitude, 1e-9)
		s.InDelta(14.421, a.Location.Longitude, 1e-9)
		s.Equal(database.StatusCore, a.Status)
		s.Equal("m1", a.MacroClusterID)
		s.Equal("l1", a.LocatedClusterID)
		s.False(a.UpdatedAt.IsZero())

		b, err := tx.GetAsset(s.ctx, "bare")
		s.Require().NoError(err)
		s.Nil(b.TakenAt)
		s.Nil(b.Location)
		s.Empty(b.MacroClusterID)

		_, err = tx.GetAsset(s.ctx, "missing")
		s.ErrorIs(err, database.ErrNotFound)

		all, err := tx.AllAssets(s.ctx)
		s.Require().NoError(err)
		s.Equal([]string{"bare", "located"}, ids(all))
	})

	s.write(func(tx database.Tx) {
		a, err := tx.GetAsset(s.ctx, "located")
		s.Require().NoError(err)
		a.Location = nil
		a.MacroClusterID = ""
		a.LocatedClusterID = ""
		a.Status = database.StatusPending
		s.Require().NoError(tx.SaveAsset(s.ctx, a))
		s.Require().NoError(tx.DeleteAsset(s.ctx, "bare"))
	})

	s.read(func(tx database.Reader) {
		a, err := tx.GetAsset(s.ctx, "located")
		s.Require().NoError(err)
		s.Nil(a.Location)
		s.Equal(database.StatusPending, a.Status)
		s.Empty(a.MacroClusterID)

		_, err = tx.GetAsset(s.ctx, "bare")
		s.ErrorIs(err, database.ErrNotFound)
	})
}

func (s *Suite) TestAssetsInWindow() {
	s.saveAssets(
		&database.AssetRecord{ID: "b", TakenAt: at(10), Status: database.StatusCore},
		&database.AssetRecord{ID: "a", TakenAt: at(10), Status: database.StatusOrphan},
		&database.AssetRecord{ID: "c", TakenAt: at(0), Status: database.StatusPending},
		&database.AssetRecord{ID: "d", TakenAt: at(30), Status: database.StatusEdge},
		&database.AssetRecord{ID: "e", TakenAt: at(5), Status: database.StatusDeletePending},
		&database.AssetRecord{ID: "f", Status: database.StatusInvalidForClustering},
	)

	s.read(func(tx database.Reader) {
		got, err := tx.AssetsInWindow(s.ctx, *at(0), *at(10), []database.MacroClusterStatus{
			database.StatusDeletePending, database.StatusInvalidForClustering,
		})
		s.Require().NoError(err)
		s.Equal([]string{"c", "a", "b"}, ids(got))

		got, err = tx.AssetsInWindow(s.ctx, *at(0), *at(60), nil)
		s.Require().NoError(err)
		s.Equal([]string{"c", "e", "a", "b", "d"}, ids(got))
	})
}

func (s *Suite) TestClusterMembership() {
	s.saveAssets(
		&database.AssetRecord{ID: "2", TakenAt: at(5), Status: database.StatusCore, MacroClusterID: "m", LocatedClusterID: "l"},
		&database.AssetRecord{ID: "1", TakenAt: at(5), Status: database.StatusEdge, MacroClusterID: "m"},
		&database.AssetRecord{ID: "0", TakenAt: at(1), Status: database.StatusCore, MacroClusterID: "m", LocatedClusterID: "l"},
		&database.AssetRecord{ID: "x", TakenAt: at(2), Status: database.StatusCore, MacroClusterID: "other"},
	)

	s.read(func(tx database.Reader) {
		members, err := tx.AssetsByMacroCluster(s.ctx, "m")
		s.Require().NoError(err)
		s.Equal([]string{"0", "1", "2"}, ids(members))

		located, err := tx.AssetsByLocatedCluster(s.ctx, "l")
		s.Require().NoError(err)
		s.Equal([]string{"0", "2"}, ids(located))

		none, err := tx.AssetsByMacroCluster(s.ctx, "")
		s.Require().NoError(err)
		s.Empty(none)

		n, err := tx.CountMacroClusterMembers(s.ctx, "m")
		s.Require().NoError(err)
		s.Equal(3, n)
	})
}

func (s *Suite) TestAssetIDsByStatus() {
	s.saveAssets(
		&database.AssetRecord{ID: "late", TakenAt: at(20), Status: database.StatusPending},
		&database.AssetRecord{ID: "early", TakenAt: at(0), Status: database.StatusPending},
		&database.AssetRecord{ID: "gone", TakenAt: at(10), Status: database.StatusDeletePending},
		&database.AssetRecord{ID: "timeless", Status: database.StatusDeletePending},
		&database.AssetRecord{ID: "done", TakenAt: at(5), Status: database.StatusCore},
	)
	statuses := []database.MacroClusterStatus{database.StatusPending, database.StatusDeletePending}

	s.read(func(tx database.Reader) {
		got, err := tx.AssetIDsByStatus(s.ctx, statuses, 0)
		s.Require().NoError(err)
		s.Equal([]string{"early", "gone", "late", "timeless"}, got)

		got, err = tx.AssetIDsByStatus(s.ctx, statuses, 2)
		s.Require().NoError(err)
		s.Equal([]string{"early", "gone"}, got)

		counts, err := tx.CountAssetsByStatus(s.ctx)
		s.Require().NoError(err)
		s.Equal(map[database.MacroClusterStatus]int{
			database.StatusPending:       2,
			database.StatusDeletePending: 2,
			database.StatusCore:          1,
		}, counts)
	})
}

func (s *Suite) TestMacroClusters() {
	s.write(func(tx database.Tx) {
		for _, id := range []string{"b", "a", "c"} {
			s.Require().NoError(tx.SaveMacroCluster(s.ctx, &database.MacroCluster{
				ID:                   id,
				LocatedClusterStatus: database.LocatedStatusPending,
			}))
		}
	})

	var created time.Time
	s.write(func(tx database.Tx) {
		m, err := tx.GetMacroCluster(s.ctx, "c")
		s.Require().NoError(err)
		created = m.CreatedAt
		m.LocatedClusterStatus = database.LocatedStatusLocated
		s.Require().NoError(tx.SaveMacroCluster(s.ctx, m))
	})

	s.read(func(tx database.Reader) {
		m, err := tx.GetMacroCluster(s.ctx, "c")
		s.Require().NoError(err)
		s.Equal(database.LocatedStatusLocated, m.LocatedClusterStatus)
		s.True(created.Equal(m.CreatedAt))

		pending, err := tx.MacroClustersByLocatedStatus(s.ctx, database.LocatedStatusPending)
		s.Require().NoError(err)
		s.Require().Len(pending, 2)
		s.Equal("a", pending[0].ID)
		s.Equal("b", pending[1].ID)

		_, err = tx.GetMacroCluster(s.ctx, "missing")
		s.ErrorIs(err, database.ErrNotFound)
	})

	s.write(func(tx database.Tx) {
		s.Require().NoError(tx.DeleteMacroCluster(s.ctx, "a"))
	})
	s.read(func(tx database.Reader) {
		_, err := tx.GetMacroCluster(s.ctx, "a")
		s.ErrorIs(err, database.ErrNotFound)
	})
}

func (s *Suite) TestListMacroClusters() {
	s.write(func(tx database.Tx) {
		for _, id := range []string{"old", "new", "empty"} {
			s.Require().NoError(tx.SaveMacroCluster(s.ctx, &database.MacroCluster{
				ID:                   id,
				LocatedClusterStatus: database.LocatedStatusLocated,
			}))
		}
		for _, a := range []*database.AssetRecord{
			{ID: "1", TakenAt: at(0), Status: database.StatusCore, MacroClusterID: "old"},
			{ID: "2", TakenAt: at(30), Status: database.StatusCore, MacroClusterID: "old"},
			{ID: "3", TakenAt: at(600), Status: database.StatusCore, MacroClusterID: "new"},
			{ID: "4", TakenAt: at(900), Status: database.StatusOrphan},
		} {
			s.Require().NoError(tx.SaveAsset(s.ctx, a))
		}
	})

	s.read(func(tx database.Reader) {
		list, err := tx.ListMacroClusters(s.ctx, 0, 0)
		s.Require().NoError(err)
		s.Require().Len(list, 3)
		s.Equal("new", list[0].ID)
		s.Equal(1, list[0].MemberCount)
		s.Equal("old", list[1].ID)
		s.Equal(2, list[1].MemberCount)
		s.True(at(0).Equal(*list[1].Start))
		s.True(at(30).Equal(*list[1].End))
		s.Equal("empty", list[2].ID)
		s.Zero(list[2].MemberCount)
		s.Nil(list[2].Start)

		page, err := tx.ListMacroClusters(s.ctx, 1, 1)
		s.Require().NoError(err)
		s.Require().Len(page, 1)
		s.Equal("old", page[0].ID)

		past, err := tx.ListMacroClusters(s.ctx, 10, 10)
		s.Require().NoError(err)
		s.Empty(past)
	})
}

func (s *Suite) TestLocatedClusters() {
	s.write(func(tx database.Tx) {
		s.Require().NoError(tx.SaveLocatedCluster(s.ctx, &database.LocatedCluster{
			ID:             "l2",
			MacroClusterID: "m",
			Location:       &geo.Coordinate{Latitude: 49.19, Longitude: 16.6},
			LocationStatus: database.LocationPending,
		}))
		s.Require().NoError(tx.SaveLocatedCluster(s.ctx, &database.LocatedCluster{
			ID:             "l1",
			MacroClusterID: "m",
			LocationStatus: database.LocationNoLocation,
		}))
		s.Require().NoError(tx.SaveLocatedCluster(s.ctx, &database.LocatedCluster{
			ID:             "l3",
			MacroClusterID: "other",
			Location:       &geo.Coordinate{Latitude: 1, Longitude: 2},
			LocationStatus: database.LocationPending,
		}))
	})

	s.write(func(tx database.Tx) {
		l, err := tx.GetLocatedCluster(s.ctx, "l2")
		s.Require().NoError(err)
		l.Place = database.Place{Name: "Špilberk", Locality: "Brno", Country: "Czechia", DisplayName: "Špilberk, Brno, Czechia"}
		l.LocationStatus = database.LocationLocated
		s.Require().NoError(tx.SaveLocatedCluster(s.ctx, l))
	})

	s.read(func(tx database.Reader) {
		l, err := tx.GetLocatedCluster(s.ctx, "l2")
		s.Require().NoError(err)
		s.Equal("Brno", l.Place.Locality)
		s.Equal("Špilberk, Brno, Czechia", l.Place.DisplayName)
		s.Equal(database.LocationLocated, l.LocationStatus)
		s.Require().NotNil(l.Location)
		s.InDelta(16.6, l.Location.Longitude, 1e-9)

		byMacro, err := tx.LocatedClustersByMacroCluster(s.ctx, "m")
		s.Require().NoError(err)
		s.Require().Len(byMacro, 2)
		s.Equal("l1", byMacro[0].ID)
		s.Nil(byMacro[0].Location)
		s.Equal("l2", byMacro[1].ID)

		pending, err := tx.LocatedClustersByStatus(s.ctx, database.LocationPending, 10)
		s.Require().NoError(err)
		s.Require().Len(pending, 1)
		s.Equal("l3", pending[0].ID)

		_, err = tx.GetLocatedCluster(s.ctx, "missing")
		s.ErrorIs(err, database.ErrNotFound)
	})

	s.write(func(tx database.Tx) {
		s.Require().NoError(tx.DeleteLocatedCluster(s.ctx, "l1"))
	})
	s.read(func(tx database.Reader) {
		byMacro, err := tx.LocatedClustersByMacroCluster(s.ctx, "m")
		s.Require().NoError(err)
		s.Len(byMacro, 1)
	})
}

func (s *Suite) TestRollback() {
	s.saveAssets(&database.AssetRecord{ID: "a", TakenAt: at(0), Status: database.StatusPending})

	boom := errors.New("boom")
	err := s.store.WithTx(s.ctx, func(tx database.Tx) error {
		a, err := tx.GetAsset(s.ctx, "a")
		s.Require().NoError(err)
		a.Status = database.StatusOrphan
		s.Require().NoError(tx.SaveAsset(s.ctx, a))
		s.Require().NoError(tx.SaveMacroCluster(s.ctx, &database.MacroCluster{ID: "m", LocatedClusterStatus: database.LocatedStatusPending}))
		return boom
	})
	s.ErrorIs(err, boom)

	s.read(func(tx database.Reader) {
		a, err := tx.GetAsset(s.ctx, "a")
		s.Require().NoError(err)
		s.Equal(database.StatusPending, a.Status)
		_, err = tx.GetMacroCluster(s.ctx, "m")
		s.ErrorIs(err, database.ErrNotFound)
	})
}
