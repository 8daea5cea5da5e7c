package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kozaktomas/photo-moments/internal/config"
	"github.com/kozaktomas/photo-moments/internal/constants"
	"github.com/kozaktomas/photo-moments/internal/pipeline"
	"github.com/kozaktomas/photo-moments/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the moments API server",
	Long: `Start the read-only JSON API over the moments store.
With --cluster-every the server also keeps clustering pending assets in
the background.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().Duration("cluster-every", 0, "Cluster pending assets at this interval (0 = disabled)")
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (int, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		if p, err := strconv.Atoi(envPort); err == nil && p > 0 {
			port = p
		}
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return port, host
}

func runServe(cmd *cobra.Command, args []string) error {
	clusterEvery := mustGetDuration(cmd, "cluster-every")
	cfg := config.Load()
	params, err := loadParams(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	port, host := resolveServeHostPort(cmd)
	server := web.NewServer(store, port, host)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if clusterEvery > 0 {
		driver := pipeline.NewDriver(store, params, pipeline.Options{MaxRetries: constants.DefaultMaxRetries})
		g.Go(func() error {
			return driver.Watch(gctx, clusterEvery)
		})
		log.Info().Dur("interval", clusterEvery).Msg("background clustering enabled")
	}

	fmt.Printf("Starting Photo Moments API on http://%s\n", server.Addr())
	fmt.Println("Press Ctrl+C to stop")

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server stopped: %w", err)
	}
	return nil
}
