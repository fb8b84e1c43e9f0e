package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/aretw0/yol"
	"github.com/aretw0/yol/internal/cli"
	"github.com/aretw0/yol/pkg/host"
	"github.com/aretw0/yol/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve runner status and run the configured runners on the first request",
	Long: `Start an HTTP server exposing /health, /runners and /metrics.

The configured runners execute once, on the first request the server receives,
the way an embedding web application runs them. Pass --eager to run them at
startup instead.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, stores, logger, err := openStores(cmd)
		if err != nil {
			return err
		}
		defer stores.Close()

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics := observability.NewMetrics(reg)

		registry, err := cli.BuildRegistry(cfg, stores, logger, yol.WithLifecycleHooks(metrics.Hooks()))
		if err != nil {
			return err
		}

		handler := host.NewHandler(registry, host.WithGatherer(reg), host.WithLogger(logger))
		if eager, _ := cmd.Flags().GetBool("eager"); eager {
			if err := registry.ExecuteAll(cmd.Context()); err != nil {
				logger.Error("Runners failed", "err", err)
			}
		} else {
			handler = host.Middleware(registry, logger)(handler)
		}

		addr, _ := cmd.Flags().GetString("addr")
		srv := &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("Starting server", "addr", addr, "runners", len(registry.Runners()))
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err

		case <-cmd.Context().Done():
			logger.Info("Shutting down server")
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				logger.Warn("Graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
				return srv.Close()
			}
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "Address to listen on")
	serveCmd.Flags().Bool("eager", false, "Run the runners at startup instead of on the first request")
}
