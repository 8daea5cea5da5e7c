// Package library mirrors the PhotoPrism photo index into the clustering
// store. Photos become assets; changes to capture time or location and
// removals are turned into pending work for the clustering driver.
package library

import (
	"context"
	"fmt"
	"time"

	"github.com/kozaktomas/photo-moments/internal/constants"
	"github.com/kozaktomas/photo-moments/internal/database/mariadb"
	"github.com/kozaktomas/photo-moments/internal/geo"
	"github.com/kozaktomas/photo-moments/internal/photoprism"
)

// SourcePhoto is the clustering-relevant view of one library photo.
type SourcePhoto struct {
	UID      string
	TakenAt  *time.Time
	Location *geo.Coordinate
	Archived bool
}

// Source lists every photo of the library.
type Source interface {
	Photos(ctx context.Context) ([]SourcePhoto, error)
}

// coordinate converts PhotoPrism's lat/lng pair. PhotoPrism stores 0/0 for
// photos without GPS data.
func coordinate(lat, lng float64) *geo.Coordinate {
	if lat == 0 && lng == 0 {
		return nil
	}
	c := geo.Coordinate{Latitude: lat, Longitude: lng}
	if !c.Valid() {
		return nil
	}
	return &c
}

// PhotoLister is the part of the PhotoPrism API client used by APISource.
type PhotoLister interface {
	GetAllPhotos(ctx context.Context, pageSize int, q photoprism.PhotoQuery) ([]photoprism.Photo, error)
}

// APISource reads the library through the PhotoPrism REST API.
type APISource struct {
	client   PhotoLister
	pageSize int
}

// NewAPISource creates an APISource. A pageSize <= 0 selects the default.
func NewAPISource(client PhotoLister, pageSize int) *APISource {
	if pageSize <= 0 {
		pageSize = constants.DefaultPageSize
	}
	return &APISource{client: client, pageSize: pageSize}
}

// Photos returns the active photos followed by the archived ones.
func (s *APISource) Photos(ctx context.Context) ([]SourcePhoto, error) {
	active, err := s.client.GetAllPhotos(ctx, s.pageSize, photoprism.PhotoQuery{Order: "oldest"})
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	archived, err := s.client.GetAllPhotos(ctx, s.pageSize, photoprism.PhotoQuery{Order: "oldest", Archived: true})
	if err != nil {
		return nil, fmt.Errorf("list archived photos: %w", err)
	}

	photos := make([]SourcePhoto, 0, len(active)+len(archived))
	for _, p := range active {
		photos = append(photos, fromAPIPhoto(p, false))
	}
	for _, p := range archived {
		photos = append(photos, fromAPIPhoto(p, true))
	}
	return photos, nil
}

func fromAPIPhoto(p photoprism.Photo, archived bool) SourcePhoto {
	return SourcePhoto{
		UID:      p.UID,
		TakenAt:  p.CaptureTime(),
		Location: coordinate(p.Lat, p.Lng),
		Archived: archived || p.Archived(),
	}
}

// PhotoRowReader is the part of the PhotoPrism database pool used by DBSource.
type PhotoRowReader interface {
	Photos(ctx context.Context) ([]mariadb.PhotoRow, error)
}

// DBSource reads the library straight from the PhotoPrism MariaDB database.
type DBSource struct {
	db PhotoRowReader
}

// NewDBSource creates a DBSource.
func NewDBSource(db PhotoRowReader) *DBSource {
	return &DBSource{db: db}
}

// Photos returns every photo row including archived ones.
func (s *DBSource) Photos(ctx context.Context) ([]SourcePhoto, error) {
	rows, err := s.db.Photos(ctx)
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}

	photos := make([]SourcePhoto, len(rows))
	for i, r := range rows {
		photos[i] = SourcePhoto{
			UID:      r.UID,
			TakenAt:  r.TakenAt,
			Location: coordinate(r.Lat, r.Lng),
			Archived: r.Archived,
		}
	}
	return photos, nil
}
