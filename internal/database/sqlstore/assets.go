package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/photo-moments/internal/database"
	"github.com/kozaktomas/photo-moments/internal/geo"
)

const assetColumns = `id, taken_at, latitude, longitude, status, macro_cluster_id, located_cluster_id, updated_at`

// assetOrder sorts by capture time with missing times last, then ID.
const assetOrder = ` ORDER BY taken_at IS NULL, taken_at, id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAsset(row rowScanner) (*database.AssetRecord, error) {
	var (
		a         database.AssetRecord
		takenAt   sql.NullInt64
		lat, lng  sql.NullFloat64
		status    string
		updatedAt int64
	)
	if err := row.Scan(&a.ID, &takenAt, &lat, &lng, &status, &a.MacroClusterID, &a.LocatedClusterID, &updatedAt); err != nil {
		return nil, err
	}
	a.TakenAt = timeFromNull(takenAt)
	if lat.Valid && lng.Valid {
		a.Location = &geo.Coordinate{Latitude: lat.Float64, Longitude: lng.Float64}
	}
	a.Status = database.MacroClusterStatus(status)
	a.UpdatedAt = fromMillis(updatedAt)
	return &a, nil
}

func (t *tx) queryAssets(ctx context.Context, query string, args ...any) ([]*database.AssetRecord, error) {
	rows, err := t.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []*database.AssetRecord
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		assets = append(assets, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assets: %w", err)
	}
	return assets, nil
}

func (t *tx) GetAsset(ctx context.Context, id string) (*database.AssetRecord, error) {
	a, err := scanAsset(t.queryRow(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("asset %s: %w", id, database.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query asset %s: %w", id, err)
	}
	return a, nil
}

func (t *tx) AssetsInWindow(ctx context.Context, from, to time.Time, exclude []database.MacroClusterStatus) ([]*database.AssetRecord, error) {
	query := `SELECT ` + assetColumns + ` FROM assets WHERE taken_at IS NOT NULL AND taken_at >= ? AND taken_at <= ?`
	args := []any{toMillis(from), toMillis(to)}
	if len(exclude) > 0 {
		query += ` AND status NOT IN (` + placeholders(len(exclude)) + `)`
		args = append(args, statusArgs(exclude)...)
	}
	assets, err := t.queryAssets(ctx, query+assetOrder, args...)
	if err != nil {
		return nil, fmt.Errorf("query assets in window: %w", err)
	}
	return assets, nil
}

func (t *tx) AssetsByMacroCluster(ctx context.Context, clusterID string) ([]*database.AssetRecord, error) {
	if clusterID == "" {
		return nil, nil
	}
	assets, err := t.queryAssets(ctx, `SELECT `+assetColumns+` FROM assets WHERE macro_cluster_id = ?`+assetOrder, clusterID)
	if err != nil {
		return nil, fmt.Errorf("query macro cluster %s members: %w", clusterID, err)
	}
	return assets, nil
}

func (t *tx) AssetsByLocatedCluster(ctx context.Context, clusterID string) ([]*database.AssetRecord, error) {
	if clusterID == "" {
		return nil, nil
	}
	assets, err := t.queryAssets(ctx, `SELECT `+assetColumns+` FROM assets WHERE located_cluster_id = ?`+assetOrder, clusterID)
	if err != nil {
		return nil, fmt.Errorf("query located cluster %s members: %w", clusterID, err)
	}
	return assets, nil
}

func (t *tx) AssetIDsByStatus(ctx context.Context, statuses []database.MacroClusterStatus, limit int) ([]string, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	query := `SELECT id FROM assets WHERE status IN (` + placeholders(len(statuses)) + `)` + assetOrder
	args := statusArgs(statuses)
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := t.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query asset ids by status: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan asset id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate asset ids: %w", err)
	}
	return ids, nil
}

func (t *tx) AllAssets(ctx context.Context) ([]*database.AssetRecord, error) {
	assets, err := t.queryAssets(ctx, `SELECT `+assetColumns+` FROM assets ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query all assets: %w", err)
	}
	return assets, nil
}

func (t *tx) CountAssetsByStatus(ctx context.Context) (map[database.MacroClusterStatus]int, error) {
	rows, err := t.query(ctx, `SELECT status, COUNT(*) FROM assets GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count assets by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[database.MacroClusterStatus]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[database.MacroClusterStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}
	return counts, nil
}

func (t *tx) SaveAsset(ctx context.Context, asset *database.AssetRecord) error {
	var lat, lng sql.NullFloat64
	if asset.Location != nil {
		lat = sql.NullFloat64{Float64: asset.Location.Latitude, Valid: true}
		lng = sql.NullFloat64{Float64: asset.Location.Longitude, Valid: true}
	}
	updatedAt := t.now()

	err := t.exec(ctx, `
		INSERT INTO assets (`+assetColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			taken_at = excluded.taken_at,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			status = excluded.status,
			macro_cluster_id = excluded.macro_cluster_id,
			located_cluster_id = excluded.located_cluster_id,
			updated_at = excluded.updated_at
	`, asset.ID, nullMillis(asset.TakenAt), lat, lng, string(asset.Status),
		asset.MacroClusterID, asset.LocatedClusterID, toMillis(updatedAt))
	if err != nil {
		return fmt.Errorf("save asset %s: %w", asset.ID, err)
	}
	asset.UpdatedAt = fromMillis(toMillis(updatedAt))
	return nil
}

func (t *tx) DeleteAsset(ctx context.Context, id string) error {
	if err := t.exec(ctx, `DELETE FROM assets WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete asset %s: %w", id, err)
	}
	return nil
}
