// Package pipeline drives the clustering engine over every asset that has
// pending work until the store reaches a fixed point.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"github.com/kozaktomas/photo-moments/internal/constants"
	"github.com/kozaktomas/photo-moments/internal/database"
	"github.com/kozaktomas/photo-moments/internal/moments"
)

var workStatuses = []database.MacroClusterStatus{database.StatusPending, database.StatusDeletePending}

// ProgressInfo contains progress information for callbacks
type ProgressInfo struct {
	Phase   string // "clustering", "subdividing"
	Round   int
	Current int
	Total   int
	AssetID string
}

// Options configures a Driver.
type Options struct {
	BatchSize  int                // Asset IDs fetched per round
	MaxRetries int                // Retries per unit of work after the first attempt
	OnProgress func(ProgressInfo) // Optional progress callback

	// NewBackOff builds the retry schedule for one unit of work.
	// Defaults to an exponential backoff starting at 100ms.
	NewBackOff func() backoff.BackOff
}

// Result summarizes one Run.
type Result struct {
	Rounds     int      `json:"rounds"`
	Inserted   int      `json:"inserted"`
	Deleted    int      `json:"deleted"`
	Skipped    int      `json:"skipped"`
	NotFound   int      `json:"not_found"`
	Subdivided int      `json:"subdivided"`
	Failed     []string `json:"failed,omitempty"`
}

// Processed returns the number of units that applied a transition.
func (r *Result) Processed() int {
	return r.Inserted + r.Deleted
}

// Driver feeds pending assets to the engine one transaction at a time.
type Driver struct {
	store  database.Store
	engine *moments.Engine
	opts   Options
}

// NewDriver creates a Driver over store.
func NewDriver(store database.Store, params moments.Params, opts Options) *Driver {
	if opts.BatchSize <= 0 {
		opts.BatchSize = constants.DefaultBatchSize
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.NewBackOff == nil {
		opts.NewBackOff = defaultBackOff
	}
	return &Driver{
		store:  store,
		engine: moments.NewEngine(store, params),
		opts:   opts,
	}
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	return b
}

// Run processes pending and delete pending assets, oldest first, until none
// is left, then subdivides macro clusters still flagged pending. Units that
// keep failing after MaxRetries are reported in Result.Failed and not tried
// again during this run.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	res := &Result{}
	failed := make(map[string]struct{})

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		ids, err := d.nextBatch(ctx, failed)
		if err != nil {
			return res, err
		}
		if len(ids) == 0 {
			break
		}
		res.Rounds++

		for i, id := range ids {
			d.progress(ProgressInfo{Phase: "clustering", Round: res.Rounds, Current: i + 1, Total: len(ids), AssetID: id})

			var transition moments.Transition
			err := d.retry(ctx, func() error {
				var err error
				transition, err = d.engine.Process(ctx, id)
				return err
			})

			switch {
			case err == nil:
				switch transition {
				case moments.TransitionInserted:
					res.Inserted++
				case moments.TransitionDeleted:
					res.Deleted++
				default:
					res.Skipped++
				}
			case errors.Is(err, moments.ErrAssetNotFound):
				log.Warn().Str("asset", id).Msg("asset disappeared before processing, skipping")
				res.NotFound++
			case ctx.Err() != nil:
				return res, ctx.Err()
			default:
				log.Error().Err(err).Str("asset", id).Msg("giving up on asset for this run")
				failed[id] = struct{}{}
				res.Failed = append(res.Failed, id)
			}
		}
	}

	d.progress(ProgressInfo{Phase: "subdividing", Round: res.Rounds})
	err := d.retry(ctx, func() error {
		n, err := d.engine.SubdividePending(ctx)
		res.Subdivided = n
		return err
	})
	if err != nil {
		return res, fmt.Errorf("subdivide pending macro clusters: %w", err)
	}

	log.Debug().
		Int("rounds", res.Rounds).
		Int("inserted", res.Inserted).
		Int("deleted", res.Deleted).
		Int("failed", len(res.Failed)).
		Int("subdivided", res.Subdivided).
		Msg("clustering run finished")
	return res, nil
}

// Watch calls Run every interval until ctx is cancelled. Run errors are
// logged and the next tick tries again.
func (d *Driver) Watch(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		res, err := d.Run(ctx)
		switch {
		case ctx.Err() != nil:
			return nil
		case err != nil:
			log.Error().Err(err).Msg("clustering run failed")
		case res.Processed() > 0 || res.Subdivided > 0 || len(res.Failed) > 0:
			log.Info().
				Int("inserted", res.Inserted).
				Int("deleted", res.Deleted).
				Int("failed", len(res.Failed)).
				Int("subdivided", res.Subdivided).
				Msg("clustering run applied changes")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// nextBatch returns up to BatchSize IDs with pending work, leaving out the
// IDs that already failed in this run.
func (d *Driver) nextBatch(ctx context.Context, failed map[string]struct{}) ([]string, error) {
	var ids []string
	err := d.store.ReadTx(ctx, func(tx database.Reader) error {
		var err error
		ids, err = tx.AssetIDsByStatus(ctx, workStatuses, d.opts.BatchSize+len(failed))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list pending assets: %w", err)
	}

	batch := ids[:0]
	for _, id := range ids {
		if _, ok := failed[id]; ok {
			continue
		}
		batch = append(batch, id)
		if len(batch) == d.opts.BatchSize {
			break
		}
	}
	return batch, nil
}

func (d *Driver) retry(ctx context.Context, op func() error) error {
	b := backoff.WithContext(backoff.WithMaxRetries(d.opts.NewBackOff(), uint64(d.opts.MaxRetries)), ctx)
	return backoff.RetryNotify(func() error {
		err := op()
		if errors.Is(err, moments.ErrAssetNotFound) {
			return backoff.Permanent(err)
		}
		return err
	}, b, func(err error, wait time.Duration) {
		log.Warn().Err(err).Dur("retry_in", wait).Msg("unit of work failed, retrying")
	})
}

func (d *Driver) progress(info ProgressInfo) {
	if d.opts.OnProgress != nil {
		d.opts.OnProgress(info)
	}
}
