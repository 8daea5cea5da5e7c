package library

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kozaktomas/photo-moments/internal/database"
	"github.com/kozaktomas/photo-moments/internal/geo"
)

var errDryRun = errors.New("dry run")

// SyncOptions configures a sync.
type SyncOptions struct {
	DryRun bool // Compute the result without writing anything
}

// SyncResult counts what a sync changed.
type SyncResult struct {
	Added     int `json:"added"`     // New assets
	Updated   int `json:"updated"`   // Unclustered assets updated in place
	Requeued  int `json:"requeued"`  // Clustered assets whose photo changed, flagged for deletion
	Removed   int `json:"removed"`   // Assets whose photo is gone or archived, flagged for deletion
	Unchanged int `json:"unchanged"` // Assets matching their photo
	Invalid   int `json:"invalid"`   // Added or updated assets without a capture time
}

// Changed returns the number of assets the sync wrote.
func (r SyncResult) Changed() int {
	return r.Added + r.Updated + r.Requeued + r.Removed
}

// Syncer reconciles the asset store with a photo Source.
type Syncer struct {
	store database.Store
}

// NewSyncer creates a Syncer writing to store.
func NewSyncer(store database.Store) *Syncer {
	return &Syncer{store: store}
}

// Sync reads every photo from src and applies the differences to the store
// in one transaction:
//   - a new photo becomes a pending asset, or an invalid one without capture time
//   - a missing or archived photo flags its asset delete pending
//   - a changed photo updates an unclustered asset in place and flags it
//     pending, while a clustered asset is flagged delete pending and comes
//     back as a new asset on the next sync
func (s *Syncer) Sync(ctx context.Context, src Source, opts SyncOptions) (SyncResult, error) {
	photos, err := src.Photos(ctx)
	if err != nil {
		return SyncResult{}, err
	}

	byUID := make(map[string]SourcePhoto, len(photos))
	order := make([]string, 0, len(photos))
	for _, p := range photos {
		p.TakenAt = normalizeTime(p.TakenAt)
		if prev, ok := byUID[p.UID]; ok {
			// An active listing wins over an archived duplicate.
			if !prev.Archived {
				continue
			}
		} else {
			order = append(order, p.UID)
		}
		byUID[p.UID] = p
	}

	var res SyncResult
	err = s.store.WithTx(ctx, func(tx database.Tx) error {
		res = SyncResult{}

		assets, err := tx.AllAssets(ctx)
		if err != nil {
			return fmt.Errorf("load assets: %w", err)
		}
		known := make(map[string]*database.AssetRecord, len(assets))
		for _, a := range assets {
			known[a.ID] = a
		}

		for _, uid := range order {
			photo := byUID[uid]
			asset, ok := known[uid]
			switch {
			case !ok && photo.Archived:
			case !ok:
				if err := s.add(ctx, tx, photo, &res); err != nil {
					return err
				}
			case photo.Archived:
				if err := s.remove(ctx, tx, asset, &res); err != nil {
					return err
				}
			default:
				if err := s.reconcile(ctx, tx, asset, photo, &res); err != nil {
					return err
				}
			}
		}

		for _, a := range assets {
			if _, ok := byUID[a.ID]; ok {
				continue
			}
			if err := s.remove(ctx, tx, a, &res); err != nil {
				return err
			}
		}

		if opts.DryRun {
			return errDryRun
		}
		return nil
	})
	if errors.Is(err, errDryRun) {
		err = nil
	}
	if err != nil {
		return SyncResult{}, err
	}

	log.Debug().
		Int("added", res.Added).
		Int("updated", res.Updated).
		Int("requeued", res.Requeued).
		Int("removed", res.Removed).
		Bool("dry_run", opts.DryRun).
		Msg("library sync finished")
	return res, nil
}

func initialStatus(takenAt *time.Time) database.MacroClusterStatus {
	if takenAt == nil {
		return database.StatusInvalidForClustering
	}
	return database.StatusPending
}

func (s *Syncer) add(ctx context.Context, tx database.Tx, photo SourcePhoto, res *SyncResult) error {
	asset := &database.AssetRecord{
		ID:       photo.UID,
		TakenAt:  photo.TakenAt,
		Location: photo.Location,
		Status:   initialStatus(photo.TakenAt),
	}
	if err := tx.SaveAsset(ctx, asset); err != nil {
		return fmt.Errorf("add asset %s: %w", photo.UID, err)
	}
	res.Added++
	if asset.Status == database.StatusInvalidForClustering {
		res.Invalid++
	}
	return nil
}

func (s *Syncer) remove(ctx context.Context, tx database.Tx, asset *database.AssetRecord, res *SyncResult) error {
	if asset.Status == database.StatusDeletePending {
		return nil
	}
	asset.Status = database.StatusDeletePending
	if err := tx.SaveAsset(ctx, asset); err != nil {
		return fmt.Errorf("remove asset %s: %w", asset.ID, err)
	}
	log.Debug().Str("asset", asset.ID).Msg("photo no longer in library")
	res.Removed++
	return nil
}

func (s *Syncer) reconcile(ctx context.Context, tx database.Tx, asset *database.AssetRecord, photo SourcePhoto, res *SyncResult) error {
	if timesEqual(asset.TakenAt, photo.TakenAt) && geo.Equal(asset.Location, photo.Location) {
		res.Unchanged++
		return nil
	}

	switch {
	case asset.Status == database.StatusDeletePending:
		// Re-imported once the deletion has been processed.
		return nil

	case clustered(asset):
		asset.Status = database.StatusDeletePending
		if err := tx.SaveAsset(ctx, asset); err != nil {
			return fmt.Errorf("requeue asset %s: %w", asset.ID, err)
		}
		log.Debug().Str("asset", asset.ID).Msg("clustered photo changed, flagged for deletion")
		res.Requeued++
		return nil

	default:
		asset.TakenAt = photo.TakenAt
		asset.Location = photo.Location
		asset.Status = initialStatus(photo.TakenAt)
		asset.MacroClusterID = ""
		asset.LocatedClusterID = ""
		if err := tx.SaveAsset(ctx, asset); err != nil {
			return fmt.Errorf("update asset %s: %w", asset.ID, err)
		}
		res.Updated++
		if asset.Status == database.StatusInvalidForClustering {
			res.Invalid++
		}
		return nil
	}
}

// clustered reports whether the asset belongs to a MacroCluster, including
// pending members that were flagged for reprocessing.
func clustered(a *database.AssetRecord) bool {
	return a.Status == database.StatusCore || a.Status == database.StatusEdge || a.MacroClusterID != ""
}

// normalizeTime matches the millisecond UTC precision of the stores.
func normalizeTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	n := t.UTC().Truncate(time.Millisecond)
	return &n
}

func timesEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
