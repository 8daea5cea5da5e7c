package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/photo-moments/internal/database"
	"github.com/kozaktomas/photo-moments/internal/database/storetest"
	"github.com/kozaktomas/photo-moments/internal/geo"
)

func ts(minutes int) *time.Time {
	t := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(minutes) * time.Minute)
	return &t
}

func seed(t *testing.T, s *Store, assets ...*database.AssetRecord) {
	t.Helper()
	err := s.WithTx(context.Background(), func(tx database.Tx) error {
		for _, a := range assets {
			if err := tx.SaveAsset(context.Background(), a); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) database.Store {
		return NewStore()
	})
}

func TestStore_ReturnedRecordsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seed(t, s, &database.AssetRecord{ID: "a", TakenAt: ts(0), Location: &geo.Coordinate{Latitude: 1, Longitude: 2}, Status: database.StatusPending})

	require.NoError(t, s.ReadTx(ctx, func(tx database.Reader) error {
		a, err := tx.GetAsset(ctx, "a")
		require.NoError(t, err)
		a.Location.Latitude = 99
		a.Status = database.StatusCore
		return nil
	}))

	require.NoError(t, s.ReadTx(ctx, func(tx database.Reader) error {
		a, err := tx.GetAsset(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, 1.0, a.Location.Latitude)
		assert.Equal(t, database.StatusPending, a.Status)
		return nil
	}))
}

func TestStore_TimestampsAndInjection(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return clock })

	require.NoError(t, s.WithTx(ctx, func(tx database.Tx) error {
		return tx.SaveLocatedCluster(ctx, &database.LocatedCluster{ID: "l", MacroClusterID: "m", LocationStatus: database.LocationPending})
	}))
	clock = clock.Add(time.Hour)
	require.NoError(t, s.WithTx(ctx, func(tx database.Tx) error {
		l, err := tx.GetLocatedCluster(ctx, "l")
		require.NoError(t, err)
		l.LocationStatus = database.LocationNoLocation
		return tx.SaveLocatedCluster(ctx, l)
	}))
	require.NoError(t, s.ReadTx(ctx, func(tx database.Reader) error {
		l, err := tx.GetLocatedCluster(ctx, "l")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), l.CreatedAt)
		assert.Equal(t, clock, l.UpdatedAt)

		byStatus, err := tx.LocatedClustersByStatus(ctx, database.LocationNoLocation, 10)
		require.NoError(t, err)
		assert.Len(t, byStatus, 1)
		return nil
	}))

	injected := errors.New("injected")
	s.FailNextTx(1, injected)
	called := false
	err := s.WithTx(ctx, func(tx database.Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, injected)
	assert.False(t, called)
	assert.NoError(t, s.WithTx(ctx, func(tx database.Tx) error { return nil }))
}
