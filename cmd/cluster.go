package cmd

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/photo-moments/internal/config"
	"github.com/kozaktomas/photo-moments/internal/constants"
	"github.com/kozaktomas/photo-moments/internal/pipeline"
)

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Update moments from pending assets",
	Long: `Process every asset queued by sync until no work is left: new assets
join, extend or merge moments, removed assets shrink or split them. Moments
that changed are then split into places.

With --watch the command keeps running and repeats this every interval.`,
	RunE: runCluster,
}

func init() {
	rootCmd.AddCommand(clusterCmd)

	clusterCmd.Flags().Duration("watch", 0, "Repeat every interval until interrupted (0 = run once)")
	clusterCmd.Flags().Int("batch-size", constants.DefaultBatchSize, "Assets fetched per round")
	clusterCmd.Flags().Int("retries", constants.DefaultMaxRetries, "Retries per asset after a failed attempt")
	clusterCmd.Flags().Bool("json", false, "Output as JSON")
}

// clusterProgress renders driver progress on a progress bar that is reset
// at the start of every round.
func clusterProgress(jsonOutput bool) (func(pipeline.ProgressInfo), func()) {
	var (
		bar   *progressbar.ProgressBar
		round int
	)
	finish := func() {
		if bar != nil {
			_ = bar.Finish()
			bar = nil
		}
	}
	return func(info pipeline.ProgressInfo) {
		switch info.Phase {
		case "clustering":
			if bar == nil || info.Round != round {
				finish()
				round = info.Round
				bar = newProgressBar(info.Total, fmt.Sprintf("Clustering (round %d)", round), "assets", jsonOutput)
			}
			_ = bar.Set(info.Current)
		case "subdividing":
			finish()
			if !jsonOutput {
				fmt.Println("Subdividing moments by location...")
			}
		}
	}, finish
}

func runCluster(cmd *cobra.Command, args []string) error {
	watch := mustGetDuration(cmd, "watch")
	batchSize := mustGetInt(cmd, "batch-size")
	retries := mustGetInt(cmd, "retries")
	jsonOutput := mustGetBool(cmd, "json")

	cfg := config.Load()
	params, err := loadParams(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	opts := pipeline.Options{BatchSize: batchSize, MaxRetries: retries}

	if watch > 0 {
		if !jsonOutput {
			fmt.Printf("Watching for pending assets every %s (Ctrl+C to stop)\n", watch)
		}
		return pipeline.NewDriver(store, params, opts).Watch(ctx, watch)
	}

	onProgress, finish := clusterProgress(jsonOutput)
	opts.OnProgress = onProgress
	startTime := time.Now()

	res, err := pipeline.NewDriver(store, params, opts).Run(ctx)
	finish()
	if err != nil {
		return fmt.Errorf("clustering failed: %w", err)
	}

	if jsonOutput {
		return outputJSON(struct {
			*pipeline.Result
			DurationMs int64 `json:"duration_ms"`
		}{res, time.Since(startTime).Milliseconds()})
	}

	fmt.Printf("\nClustering complete in %s (%d rounds)\n", formatDuration(time.Since(startTime)), res.Rounds)
	fmt.Printf("  Inserted:   %d\n", res.Inserted)
	fmt.Printf("  Deleted:    %d\n", res.Deleted)
	fmt.Printf("  Skipped:    %d\n", res.Skipped)
	if res.NotFound > 0 {
		fmt.Printf("  Vanished:   %d\n", res.NotFound)
	}
	fmt.Printf("  Subdivided: %d moments\n", res.Subdivided)
	if len(res.Failed) > 0 {
		fmt.Printf("\n%d assets failed and stay queued:\n", len(res.Failed))
		for _, id := range res.Failed {
			fmt.Printf("  %s\n", id)
		}
	}
	return nil
}
