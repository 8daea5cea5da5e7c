package library

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/photo-moments/internal/constants"
	"github.com/kozaktomas/photo-moments/internal/database/mariadb"
	"github.com/kozaktomas/photo-moments/internal/geo"
	"github.com/kozaktomas/photo-moments/internal/photoprism"
)

type fakeLister struct {
	active   []photoprism.Photo
	archived []photoprism.Photo
	err      error
	pageSize int
}

func (f *fakeLister) GetAllPhotos(_ context.Context, pageSize int, q photoprism.PhotoQuery) ([]photoprism.Photo, error) {
	f.pageSize = pageSize
	if f.err != nil {
		return nil, f.err
	}
	if q.Archived {
		return f.archived, nil
	}
	return f.active, nil
}

type fakeRows struct {
	rows []mariadb.PhotoRow
	err  error
}

func (f *fakeRows) Photos(context.Context) ([]mariadb.PhotoRow, error) {
	return f.rows, f.err
}

func TestCoordinate(t *testing.T) {
	tests := []struct {
		name     string
		lat, lng float64
		want     *geo.Coordinate
	}{
		{"regular", 49.1951, 16.6068, &geo.Coordinate{Latitude: 49.1951, Longitude: 16.6068}},
		{"null island means no gps", 0, 0, nil},
		{"equator is fine", 0, 16.6, &geo.Coordinate{Latitude: 0, Longitude: 16.6}},
		{"out of range", 91, 16.6, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, coordinate(tt.lat, tt.lng))
		})
	}
}

func TestAPISource_Photos(t *testing.T) {
	lister := &fakeLister{
		active: []photoprism.Photo{
			{UID: "p1", TakenAt: "2024-01-15T10:30:00Z", Year: 2024, Lat: 49.2, Lng: 16.6},
			{UID: "p2", TakenAt: "2024-01-15T10:35:00Z", Year: photoprism.UnknownYear},
		},
		archived: []photoprism.Photo{
			{UID: "p3", TakenAt: "2024-01-15T10:40:00Z", Year: 2024, DeletedAt: "2024-02-01T00:00:00Z"},
		},
	}

	photos, err := NewAPISource(lister, 0).Photos(context.Background())
	require.NoError(t, err)
	assert.Equal(t, constants.DefaultPageSize, lister.pageSize)
	require.Len(t, photos, 3)

	want := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	assert.Equal(t, "p1", photos[0].UID)
	require.NotNil(t, photos[0].TakenAt)
	assert.True(t, photos[0].TakenAt.Equal(want))
	assert.Equal(t, &geo.Coordinate{Latitude: 49.2, Longitude: 16.6}, photos[0].Location)
	assert.False(t, photos[0].Archived)

	assert.Nil(t, photos[1].TakenAt)
	assert.Nil(t, photos[1].Location)

	assert.Equal(t, "p3", photos[2].UID)
	assert.True(t, photos[2].Archived)
}

func TestAPISource_Error(t *testing.T) {
	errAPI := errors.New("status 500")
	_, err := NewAPISource(&fakeLister{err: errAPI}, 10).Photos(context.Background())
	require.ErrorIs(t, err, errAPI)
}

func TestDBSource_Photos(t *testing.T) {
	taken := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	rows := &fakeRows{rows: []mariadb.PhotoRow{
		{UID: "p1", TakenAt: &taken, Lat: 49.2, Lng: 16.6},
		{UID: "p2", TakenAt: &taken, Archived: true},
		{UID: "p3"},
	}}

	photos, err := NewDBSource(rows).Photos(context.Background())
	require.NoError(t, err)
	require.Len(t, photos, 3)

	assert.Equal(t, SourcePhoto{UID: "p1", TakenAt: &taken, Location: &geo.Coordinate{Latitude: 49.2, Longitude: 16.6}}, photos[0])
	assert.Equal(t, SourcePhoto{UID: "p2", TakenAt: &taken, Archived: true}, photos[1])
	assert.Equal(t, SourcePhoto{UID: "p3"}, photos[2])
}

func TestDBSource_Error(t *testing.T) {
	errDB := errors.New("connection refused")
	_, err := NewDBSource(&fakeRows{err: errDB}).Photos(context.Background())
	require.ErrorIs(t, err, errDB)
}
