package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/photo-moments/internal/config"
	"github.com/kozaktomas/photo-moments/internal/database/mariadb"
	"github.com/kozaktomas/photo-moments/internal/library"
	"github.com/kozaktomas/photo-moments/internal/photoprism"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Mirror the PhotoPrism library into the moments store",
	Long: `Read every photo of the PhotoPrism library and record its capture time
and location as an asset. New photos are queued for clustering, removed or
archived photos are queued for deletion, and changed photos are re-queued.

The library is read through the PhotoPrism API (--source api, default) or
straight from its MariaDB database (--source db, PHOTOPRISM_DATABASE_URL).`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().String("source", "api", "Library source: api or db")
	syncCmd.Flags().Int("page-size", 0, "Photos per API page (0 = default)")
	syncCmd.Flags().Bool("dry-run", false, "Preview changes without applying them")
	syncCmd.Flags().Bool("json", false, "Output as JSON")
}

// openSource connects to the selected library source. The returned func
// releases it.
func openSource(ctx context.Context, cfg *config.Config, name string, pageSize int) (library.Source, func(), error) {
	switch name {
	case "api":
		if cfg.PhotoPrism.URL == "" {
			return nil, nil, errors.New("PHOTOPRISM_URL environment variable is required")
		}
		pp, err := photoprism.NewPhotoPrismWithCapture(ctx,
			cfg.PhotoPrism.URL,
			cfg.PhotoPrism.Username,
			cfg.PhotoPrism.Password,
			captureDir,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to PhotoPrism: %w", err)
		}
		release := func() {
			if err := pp.Logout(context.Background()); err != nil {
				log.Warn().Err(err).Msg("PhotoPrism logout failed")
			}
		}
		return library.NewAPISource(pp, pageSize), release, nil
	case "db":
		if cfg.PhotoPrism.DatabaseURL == "" {
			return nil, nil, errors.New("PHOTOPRISM_DATABASE_URL environment variable is required")
		}
		pool, err := mariadb.NewPool(cfg.PhotoPrism.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to PhotoPrism database: %w", err)
		}
		release := func() {
			if err := pool.Close(); err != nil {
				log.Warn().Err(err).Msg("closing PhotoPrism database failed")
			}
		}
		return library.NewDBSource(pool), release, nil
	default:
		return nil, nil, fmt.Errorf("unknown source %q: use api or db", name)
	}
}

func runSync(cmd *cobra.Command, args []string) error {
	sourceName := mustGetString(cmd, "source")
	pageSize := mustGetInt(cmd, "page-size")
	dryRun := mustGetBool(cmd, "dry-run")
	jsonOutput := mustGetBool(cmd, "json")

	ctx := cmd.Context()
	cfg := config.Load()
	startTime := time.Now()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if !jsonOutput {
		fmt.Printf("Reading library from %s...\n", sourceName)
	}
	src, release, err := openSource(ctx, cfg, sourceName, pageSize)
	if err != nil {
		return err
	}
	defer release()

	result, err := library.NewSyncer(store).Sync(ctx, src, library.SyncOptions{DryRun: dryRun})
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	if jsonOutput {
		return outputJSON(struct {
			library.SyncResult
			DryRun     bool   `json:"dry_run"`
			DurationMs int64  `json:"duration_ms"`
			Source     string `json:"source"`
		}{result, dryRun, time.Since(startTime).Milliseconds(), sourceName})
	}

	if dryRun {
		fmt.Println("\n[DRY RUN] No changes were written.")
	}
	fmt.Printf("\nSync complete in %s\n", formatDuration(time.Since(startTime)))
	fmt.Printf("  Added:     %d\n", result.Added)
	fmt.Printf("  Updated:   %d\n", result.Updated)
	fmt.Printf("  Requeued:  %d\n", result.Requeued)
	fmt.Printf("  Removed:   %d\n", result.Removed)
	fmt.Printf("  Unchanged: %d\n", result.Unchanged)
	if result.Invalid > 0 {
		fmt.Printf("  Without capture time: %d\n", result.Invalid)
	}
	if result.Changed() > 0 && !dryRun {
		fmt.Println("\nRun 'photo-moments cluster' to update moments.")
	}
	return nil
}
