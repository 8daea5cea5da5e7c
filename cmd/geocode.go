package cmd

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/photo-moments/internal/config"
	"github.com/kozaktomas/photo-moments/internal/constants"
	"github.com/kozaktomas/photo-moments/internal/geocode"
)

var geocodeCmd = &cobra.Command{
	Use:   "geocode",
	Short: "Reverse geocode places waiting for a name",
	Long: `Look up a place name for every place whose location changed since it was
last geocoded. Requests are rate limited (GEOCODER_REQUESTS_PER_SECOND) to
respect the Nominatim usage policy.`,
	RunE: runGeocode,
}

func init() {
	rootCmd.AddCommand(geocodeCmd)

	geocodeCmd.Flags().Int("limit", constants.DefaultGeocodeLimit, "Maximum number of places to resolve")
	geocodeCmd.Flags().Bool("json", false, "Output as JSON")
}

func runGeocode(cmd *cobra.Command, args []string) error {
	limit := mustGetInt(cmd, "limit")
	jsonOutput := mustGetBool(cmd, "json")

	cfg := config.Load()
	startTime := time.Now()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	geocoder, err := geocode.NewNominatim(geocode.NominatimConfig{
		URL:               cfg.Geocoder.URL,
		UserAgent:         cfg.Geocoder.UserAgent,
		Language:          cfg.Geocoder.Language,
		RequestsPerSecond: cfg.Geocoder.RequestsPerSecond,
	})
	if err != nil {
		return fmt.Errorf("failed to create geocoder: %w", err)
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if !jsonOutput {
		fmt.Printf("Resolving up to %d places via %s...\n", limit, cfg.Geocoder.URL)
	}

	res, err := geocode.NewResolver(store, geocoder).Run(ctx, limit)
	if err != nil {
		return fmt.Errorf("geocoding failed: %w", err)
	}

	if jsonOutput {
		return outputJSON(struct {
			geocode.ResolveResult
			DurationMs int64 `json:"duration_ms"`
		}{res, time.Since(startTime).Milliseconds()})
	}

	fmt.Printf("\nGeocoding complete in %s\n", formatDuration(time.Since(startTime)))
	fmt.Printf("  Located:     %d\n", res.Located)
	fmt.Printf("  No location: %d\n", res.NoLocation)
	fmt.Printf("  Failed:      %d\n", res.Failed)
	if res.Skipped > 0 {
		fmt.Printf("  Skipped:     %d (changed during lookup)\n", res.Skipped)
	}
	return nil
}
