package commands

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/scrypster/refmatch/internal/engine"
	"github.com/scrypster/refmatch/internal/server"
)

var (
	serveHost string
	servePort int
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API until interrupted.

When REFMATCH_REFRESH_INTERVAL is set, composite personalities are also
regenerated on that schedule.`,
		RunE: runServe,
	}

	cmd.Flags().StringVar(&serveHost, "host", "", "Listen host (overrides REFMATCH_HOST)")
	cmd.Flags().IntVar(&servePort, "port", 0, "Listen port (overrides REFMATCH_PORT)")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if serveHost != "" {
		cfg.Server.Host = serveHost
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}

	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := engine.NewMetrics(reg)

	eng, err := buildEngine(cfg, store, metrics)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.Start(ctx, cfg, server.NewHandler(cfg, eng, reg))
	if err != nil {
		return err
	}
	log.Printf("refmatch API running at http://%s", srv.Addr())

	if cfg.Server.RefreshOnStartup {
		go func() {
			if _, err := eng.Refresher.RefreshAll(ctx); err != nil && ctx.Err() == nil {
				log.Printf("Startup personality refresh failed: %v", err)
			}
		}()
	}
	if cfg.Personality.RefreshInterval > 0 {
		if err := eng.Refresher.Start(ctx, cfg.Personality.RefreshInterval); err != nil {
			stop()
			<-srv.Done()
			return err
		}
	}

	<-srv.Done()
	log.Println("Shutting down gracefully...")

	if err := eng.Refresher.Stop(); err != nil {
		log.Printf("Error stopping personality refresher: %v", err)
	}
	return nil
}

// runContext returns the command context, or Background when unset.
func runContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
