package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/ripple-dev/ripple/internal/config"
	"github.com/ripple-dev/ripple/pkg/devtool"
	"github.com/ripple-dev/ripple/pkg/ripple"
	"github.com/ripple-dev/ripple/pkg/telemetry"
)

func serveCmd() *cobra.Command {
	var (
		addr        string
		interval    time.Duration
		withMetrics bool
		configDir   string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a demo graph behind the inspection server",
		Long: `Run a small reactive graph that ticks on an interval and serve the
cell inspection API over HTTP:

  GET /cells      all registered cells
  GET /cells/{id} one cell
  GET /stats      counts by kind
  GET /stream     live cell events over websocket
  GET /metrics    Prometheus metrics (with --metrics)

Use "ripple watch" against the same address to tail the event stream.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configDir)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Serve.Address
			}
			if interval == 0 {
				interval = cfg.Serve.TickInterval()
			}
			withMetrics = withMetrics || cfg.Serve.Metrics

			return runServe(cmd.Context(), addr, interval, withMetrics)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from ripple.json)")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Tick interval for the demo counter")
	cmd.Flags().BoolVar(&withMetrics, "metrics", false, "Expose Prometheus metrics at /metrics")
	cmd.Flags().StringVar(&configDir, "config-dir", ".", "Directory containing ripple.json")

	return cmd
}

func runServe(parent context.Context, addr string, interval time.Duration, withMetrics bool) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := devtool.NewRegistry()
	detach := registry.Attach()
	defer detach()

	if withMetrics {
		telemetry.Enable()
	}

	counter := ripple.New(0, ripple.WithKey[int]("demo.counter"))
	squared := ripple.Derive(func() (int, error) {
		v, err := counter.Use()
		return v * v, err
	}, ripple.WithKey[int]("demo.squared"))

	eff := ripple.NewEffect(func() (ripple.Cleanup, error) {
		v, err := squared.Use()
		if err != nil {
			return nil, err
		}
		telemetry.RecordEffectRun()
		info("counter² = %d", v)
		return nil, nil
	}, ripple.EffectKey("demo.log"))
	defer eff.Dispose()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				counter.Update(func(v int) int { return v + 1 })
				telemetry.RecordWrite()
			}
		}
	}()

	ds := devtool.NewServer(registry, &devtool.ServerConfig{Address: addr})

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if withMetrics {
		r.Handle("/metrics", promhttp.Handler())
	}
	r.Mount("/", ds.Handler())

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	printBanner()
	success("inspection server listening on http://%s", addr)
	info("tick interval %s", interval)
	if withMetrics {
		info("metrics at http://%s/metrics", addr)
	}
	info("press Ctrl+C to stop")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := ds.Shutdown(shutdownCtx); err != nil {
		warn("stream shutdown: %s", err)
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}

	success("shut down cleanly")
	return nil
}
