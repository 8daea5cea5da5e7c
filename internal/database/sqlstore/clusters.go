package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/kozaktomas/photo-moments/internal/database"
	"github.com/kozaktomas/photo-moments/internal/geo"
)

const macroColumns = `id, located_status, created_at, updated_at`

func scanMacro(row rowScanner) (*database.MacroCluster, error) {
	var (
		m                    database.MacroCluster
		status               string
		createdAt, updatedAt int64
	)
	if err := row.Scan(&m.ID, &status, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	m.LocatedClusterStatus = database.LocatedClusterStatus(status)
	m.CreatedAt = fromMillis(createdAt)
	m.UpdatedAt = fromMillis(updatedAt)
	return &m, nil
}

func (t *tx) GetMacroCluster(ctx context.Context, id string) (*database.MacroCluster, error) {
	m, err := scanMacro(t.queryRow(ctx, `SELECT `+macroColumns+` FROM macro_clusters WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("macro cluster %s: %w", id, database.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query macro cluster %s: %w", id, err)
	}
	return m, nil
}

func (t *tx) CountMacroClusterMembers(ctx context.Context, id string) (int, error) {
	var n int
	if err := t.queryRow(ctx, `SELECT COUNT(*) FROM assets WHERE macro_cluster_id = ?`, id).Scan(&n); err != nil {
		return 0, fmt.Errorf("count macro cluster %s members: %w", id, err)
	}
	return n, nil
}

func (t *tx) MacroClustersByLocatedStatus(ctx context.Context, status database.LocatedClusterStatus) ([]*database.MacroCluster, error) {
	rows, err := t.query(ctx, `SELECT `+macroColumns+` FROM macro_clusters WHERE located_status = ? ORDER BY id`, string(status))
	if err != nil {
		return nil, fmt.Errorf("query macro clusters by status: %w", err)
	}
	defer rows.Close()

	var clusters []*database.MacroCluster
	for rows.Next() {
		m, err := scanMacro(rows)
		if err != nil {
			return nil, fmt.Errorf("scan macro cluster: %w", err)
		}
		clusters = append(clusters, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate macro clusters: %w", err)
	}
	return clusters, nil
}

func (t *tx) ListMacroClusters(ctx context.Context, limit, offset int) ([]database.MacroClusterSummary, error) {
	if limit <= 0 {
		limit = math.MaxInt32
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := t.query(ctx, `
		SELECT m.id, m.located_status, m.created_at, m.updated_at,
			COUNT(a.id), MIN(a.taken_at), MAX(a.taken_at)
		FROM macro_clusters m
		LEFT JOIN assets a ON a.macro_cluster_id = m.id
		GROUP BY m.id, m.located_status, m.created_at, m.updated_at
		ORDER BY MIN(a.taken_at) IS NULL, MIN(a.taken_at) DESC, m.id
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list macro clusters: %w", err)
	}
	defer rows.Close()

	var summaries []database.MacroClusterSummary
	for rows.Next() {
		var (
			s                    database.MacroClusterSummary
			status               string
			createdAt, updatedAt int64
			start, end           sql.NullInt64
		)
		if err := rows.Scan(&s.ID, &status, &createdAt, &updatedAt, &s.MemberCount, &start, &end); err != nil {
			return nil, fmt.Errorf("scan macro cluster summary: %w", err)
		}
		s.LocatedClusterStatus = database.LocatedClusterStatus(status)
		s.CreatedAt = fromMillis(createdAt)
		s.UpdatedAt = fromMillis(updatedAt)
		s.Start = timeFromNull(start)
		s.End = timeFromNull(end)
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate macro cluster summaries: %w", err)
	}
	return summaries, nil
}

func (t *tx) SaveMacroCluster(ctx context.Context, cluster *database.MacroCluster) error {
	if t.readOnly {
		return errors.New("write in read-only transaction")
	}
	now := toMillis(t.now())
	created := now
	if !cluster.CreatedAt.IsZero() {
		created = toMillis(cluster.CreatedAt)
	}

	var storedCreated int64
	err := t.queryRow(ctx, `
		INSERT INTO macro_clusters (`+macroColumns+`)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			located_status = excluded.located_status,
			updated_at = excluded.updated_at
		RETURNING created_at
	`, cluster.ID, string(cluster.LocatedClusterStatus), created, now).Scan(&storedCreated)
	if err != nil {
		return fmt.Errorf("save macro cluster %s: %w", cluster.ID, err)
	}
	cluster.CreatedAt = fromMillis(storedCreated)
	cluster.UpdatedAt = fromMillis(now)
	return nil
}

func (t *tx) DeleteMacroCluster(ctx context.Context, id string) error {
	if err := t.exec(ctx, `DELETE FROM macro_clusters WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete macro cluster %s: %w", id, err)
	}
	return nil
}

const locatedColumns = `id, macro_cluster_id, latitude, longitude, place_name, place_locality,
	place_country, place_display_name, location_status, created_at, updated_at`

func scanLocated(row rowScanner) (*database.LocatedCluster, error) {
	var (
		l                    database.LocatedCluster
		lat, lng             sql.NullFloat64
		status               string
		createdAt, updatedAt int64
	)
	err := row.Scan(&l.ID, &l.MacroClusterID, &lat, &lng, &l.Place.Name, &l.Place.Locality,
		&l.Place.Country, &l.Place.DisplayName, &status, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if lat.Valid && lng.Valid {
		l.Location = &geo.Coordinate{Latitude: lat.Float64, Longitude: lng.Float64}
	}
	l.LocationStatus = database.LocationStatus(status)
	l.CreatedAt = fromMillis(createdAt)
	l.UpdatedAt = fromMillis(updatedAt)
	return &l, nil
}

func (t *tx) queryLocated(ctx context.Context, query string, args ...any) ([]*database.LocatedCluster, error) {
	rows, err := t.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clusters []*database.LocatedCluster
	for rows.Next() {
		l, err := scanLocated(rows)
		if err != nil {
			return nil, fmt.Errorf("scan located cluster: %w", err)
		}
		clusters = append(clusters, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate located clusters: %w", err)
	}
	return clusters, nil
}

func (t *tx) GetLocatedCluster(ctx context.Context, id string) (*database.LocatedCluster, error) {
	l, err := scanLocated(t.queryRow(ctx, `SELECT `+locatedColumns+` FROM located_clusters WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("located cluster %s: %w", id, database.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query located cluster %s: %w", id, err)
	}
	return l, nil
}

func (t *tx) LocatedClustersByMacroCluster(ctx context.Context, macroClusterID string) ([]*database.LocatedCluster, error) {
	clusters, err := t.queryLocated(ctx, `SELECT `+locatedColumns+` FROM located_clusters WHERE macro_cluster_id = ? ORDER BY id`, macroClusterID)
	if err != nil {
		return nil, fmt.Errorf("query located clusters of %s: %w", macroClusterID, err)
	}
	return clusters, nil
}

func (t *tx) LocatedClustersByStatus(ctx context.Context, status database.LocationStatus, limit int) ([]*database.LocatedCluster, error) {
	query := `SELECT ` + locatedColumns + ` FROM located_clusters WHERE location_status = ? ORDER BY id`
	args := []any{string(status)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	clusters, err := t.queryLocated(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query located clusters by status: %w", err)
	}
	return clusters, nil
}

func (t *tx) SaveLocatedCluster(ctx context.Context, cluster *database.LocatedCluster) error {
	if t.readOnly {
		return errors.New("write in read-only transaction")
	}
	var lat, lng sql.NullFloat64
	if cluster.Location != nil {
		lat = sql.NullFloat64{Float64: cluster.Location.Latitude, Valid: true}
		lng = sql.NullFloat64{Float64: cluster.Location.Longitude, Valid: true}
	}
	now := toMillis(t.now())
	created := now
	if !cluster.CreatedAt.IsZero() {
		created = toMillis(cluster.CreatedAt)
	}

	var storedCreated int64
	err := t.queryRow(ctx, `
		INSERT INTO located_clusters (`+locatedColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			macro_cluster_id = excluded.macro_cluster_id,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			place_name = excluded.place_name,
			place_locality = excluded.place_locality,
			place_country = excluded.place_country,
			place_display_name = excluded.place_display_name,
			location_status = excluded.location_status,
			updated_at = excluded.updated_at
		RETURNING created_at
	`, cluster.ID, cluster.MacroClusterID, lat, lng, cluster.Place.Name, cluster.Place.Locality,
		cluster.Place.Country, cluster.Place.DisplayName, string(cluster.LocationStatus), created, now).Scan(&storedCreated)
	if err != nil {
		return fmt.Errorf("save located cluster %s: %w", cluster.ID, err)
	}
	cluster.CreatedAt = fromMillis(storedCreated)
	cluster.UpdatedAt = fromMillis(now)
	return nil
}

func (t *tx) DeleteLocatedCluster(ctx context.Context, id string) error {
	if err := t.exec(ctx, `DELETE FROM located_clusters WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete located cluster %s: %w", id, err)
	}
	return nil
}
