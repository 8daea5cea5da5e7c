package moments

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/kozaktomas/photo-moments/internal/database"
)

// Transition is the state change Engine.Process applied to an asset.
type Transition string

const (
	TransitionInserted Transition = "inserted"
	TransitionDeleted  Transition = "deleted"
	TransitionSkipped  Transition = "skipped"
)

// Engine runs one asset's clustering work as a single transaction.
type Engine struct {
	store      database.Store
	macro      *MacroClusterer
	subdivider *Subdivider
}

// NewEngine creates an Engine over store.
func NewEngine(store database.Store, params Params) *Engine {
	return &Engine{
		store:      store,
		macro:      NewMacroClusterer(params),
		subdivider: NewSubdivider(params),
	}
}

// Process applies the insert or delete transition for the asset with the
// given ID according to its status, then subdivides every MacroCluster whose
// located clusters are pending. Everything commits together or not at all.
// ErrAssetNotFound is returned when the asset no longer exists.
func (e *Engine) Process(ctx context.Context, assetID string) (Transition, error) {
	transition := TransitionSkipped
	err := e.store.WithTx(ctx, func(tx database.Tx) error {
		transition = TransitionSkipped

		asset, err := tx.GetAsset(ctx, assetID)
		if errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrAssetNotFound, assetID)
		}
		if err != nil {
			return err
		}

		switch asset.Status {
		case database.StatusPending:
			if err := e.macro.ProcessPendingAsset(ctx, tx, asset); err != nil {
				return fmt.Errorf("insert %s: %w", assetID, err)
			}
			transition = TransitionInserted
		case database.StatusDeletePending:
			if err := e.macro.ProcessDeletedAsset(ctx, tx, asset); err != nil {
				return fmt.Errorf("delete %s: %w", assetID, err)
			}
			transition = TransitionDeleted
		default:
			log.Debug().Str("asset", assetID).Str("status", string(asset.Status)).
				Msg("asset has no pending transition")
		}

		_, err = e.subdividePending(ctx, tx)
		return err
	})
	return transition, err
}

// SubdividePending subdivides every MacroCluster flagged pending and returns
// how many were processed.
func (e *Engine) SubdividePending(ctx context.Context) (int, error) {
	var n int
	err := e.store.WithTx(ctx, func(tx database.Tx) error {
		var err error
		n, err = e.subdividePending(ctx, tx)
		return err
	})
	return n, err
}

func (e *Engine) subdividePending(ctx context.Context, tx database.Tx) (int, error) {
	clusters, err := tx.MacroClustersByLocatedStatus(ctx, database.LocatedStatusPending)
	if err != nil {
		return 0, err
	}
	for _, c := range clusters {
		if _, err := e.subdivider.Subdivide(ctx, tx, c); err != nil {
			return 0, fmt.Errorf("subdivide %s: %w", c.ID, err)
		}
	}
	return len(clusters), nil
}
