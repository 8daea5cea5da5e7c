package database

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when an entity does not exist in the store.
var ErrNotFound = errors.New("not found")

// Store is a transactional entity store for assets and clusters.
type Store interface {
	// WithTx runs fn inside a read-write transaction. The transaction is
	// committed when fn returns nil and rolled back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	// ReadTx runs fn inside a read-only transaction.
	ReadTx(ctx context.Context, fn func(tx Reader) error) error
	// Close releases the underlying resources.
	Close() error
}

// Reader provides read access to the entity store
type Reader interface {
	// GetAsset returns the asset with the given ID or ErrNotFound
	GetAsset(ctx context.Context, id string) (*AssetRecord, error)
	// AssetsInWindow returns assets taken within [from, to] whose status is not in exclude
	AssetsInWindow(ctx context.Context, from, to time.Time, exclude []MacroClusterStatus) ([]*AssetRecord, error)
	// AssetsByMacroCluster returns the members of a macro cluster ordered by capture time, then ID
	AssetsByMacroCluster(ctx context.Context, clusterID string) ([]*AssetRecord, error)
	// AssetsByLocatedCluster returns the members of a located cluster ordered by capture time, then ID
	AssetsByLocatedCluster(ctx context.Context, clusterID string) ([]*AssetRecord, error)
	// AssetIDsByStatus returns up to limit asset IDs with one of the statuses, oldest first.
	// A limit <= 0 means no limit.
	AssetIDsByStatus(ctx context.Context, statuses []MacroClusterStatus, limit int) ([]string, error)
	// AllAssets returns every asset ordered by ID
	AllAssets(ctx context.Context) ([]*AssetRecord, error)
	// CountAssetsByStatus returns the number of assets per status
	CountAssetsByStatus(ctx context.Context) (map[MacroClusterStatus]int, error)

	// GetMacroCluster returns the macro cluster with the given ID or ErrNotFound
	GetMacroCluster(ctx context.Context, id string) (*MacroCluster, error)
	// CountMacroClusterMembers returns the number of assets assigned to a macro cluster
	CountMacroClusterMembers(ctx context.Context, id string) (int, error)
	// MacroClustersByLocatedStatus returns macro clusters with the given located status ordered by ID
	MacroClustersByLocatedStatus(ctx context.Context, status LocatedClusterStatus) ([]*MacroCluster, error)
	// ListMacroClusters returns summaries ordered by start time, newest first
	ListMacroClusters(ctx context.Context, limit, offset int) ([]MacroClusterSummary, error)

	// GetLocatedCluster returns the located cluster with the given ID or ErrNotFound
	GetLocatedCluster(ctx context.Context, id string) (*LocatedCluster, error)
	// LocatedClustersByMacroCluster returns the located clusters of a macro cluster ordered by ID
	LocatedClustersByMacroCluster(ctx context.Context, macroClusterID string) ([]*LocatedCluster, error)
	// LocatedClustersByStatus returns up to limit located clusters with the given status ordered by ID
	LocatedClustersByStatus(ctx context.Context, status LocationStatus, limit int) ([]*LocatedCluster, error)
}

// Tx provides read-write access within one transaction
type Tx interface {
	Reader

	// SaveAsset inserts or updates an asset
	SaveAsset(ctx context.Context, asset *AssetRecord) error
	// DeleteAsset removes an asset
	DeleteAsset(ctx context.Context, id string) error

	// SaveMacroCluster inserts or updates a macro cluster
	SaveMacroCluster(ctx context.Context, cluster *MacroCluster) error
	// DeleteMacroCluster removes a macro cluster. Member references are not touched.
	DeleteMacroCluster(ctx context.Context, id string) error

	// SaveLocatedCluster inserts or updates a located cluster
	SaveLocatedCluster(ctx context.Context, cluster *LocatedCluster) error
	// DeleteLocatedCluster removes a located cluster. Member references are not touched.
	DeleteLocatedCluster(ctx context.Context, id string) error
}
