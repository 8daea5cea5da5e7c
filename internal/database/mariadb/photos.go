package mariadb

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// unknownYear is PhotoPrism's photo_year marker for an unknown capture date.
const unknownYear = -1

// PhotoRow is the clustering-relevant projection of a PhotoPrism photo.
type PhotoRow struct {
	UID      string
	TakenAt  *time.Time
	Lat      float64
	Lng      float64
	Archived bool
}

// Photos returns every primary photo in the index ordered by UID.
// Archived photos are included with Archived set.
func (p *Pool) Photos(ctx context.Context) ([]PhotoRow, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT photo_uid, taken_at, photo_year, photo_lat, photo_lng, deleted_at IS NOT NULL
		FROM photos
		ORDER BY photo_uid
	`)
	if err != nil {
		return nil, fmt.Errorf("query photos: %w", err)
	}
	defer rows.Close()

	var photos []PhotoRow
	for rows.Next() {
		var (
			row     PhotoRow
			takenAt sql.NullTime
			year    int
		)
		if err := rows.Scan(&row.UID, &takenAt, &year, &row.Lat, &row.Lng, &row.Archived); err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		if takenAt.Valid && year != unknownYear {
			t := takenAt.Time.UTC()
			row.TakenAt = &t
		}
		photos = append(photos, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate photos: %w", err)
	}
	return photos, nil
}
