package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/research-hours/internal/core/metrics"
	"github.com/frahmantamala/research-hours/internal/transport/openapi"
	"github.com/frahmantamala/research-hours/internal/transport/rest"

	"github.com/go-chi/chi"
	"github.com/spf13/cobra"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := startHTTPServer(); err != nil {
			fmt.Fprintf(os.Stderr, "server: %v\n", err)
			os.Exit(1)
		}
	},
}

func startHTTPServer() error {
	ctx := context.Background()

	deps, err := initializeDependencies(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer deps.Close()

	app := buildApplication(deps)
	cfg := deps.Config

	if cfg.Regulation.BootstrapEmpty {
		table, err := app.Rules.Bootstrap(ctx, cfg.Regulation.RulesFile)
		if err != nil {
			return fmt.Errorf("failed to bootstrap rule table: %w", err)
		}
		deps.Logger.Info("rule table ready", "version", table.Version, "name", table.Name)
	}

	opts := rest.RouterOptions{AllowedOrigins: cfg.Server.AllowedOrigins}
	if cfg.Observability.Metrics.Enabled {
		metrics.Init()
		opts.MetricsPath = cfg.Observability.Metrics.Path
		opts.MetricsHandler = metrics.Handler()
	}
	if cfg.Server.OpenAPIPath != "" {
		doc, err := openapi.Load(ctx, cfg.Server.OpenAPIPath)
		if err != nil {
			// the API works without its docs
			deps.Logger.Warn("openapi document not served", "path", cfg.Server.OpenAPIPath, "error", err)
		} else {
			opts.OpenAPI = doc
		}
	}

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, app.Handlers, opts, deps.Logger)

	var handler http.Handler = router
	if cfg.Server.RequestTimeout > 0 {
		handler = http.TimeoutHandler(router, cfg.Server.RequestTimeout, `{"error":{"type":"INTERNAL_ERROR","code":"TIMEOUT","message":"request timed out"}}`)
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		deps.Logger.Info("starting HTTP server", "address", addr)
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("received signal, shutting down", "signal", sig)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			deps.Logger.Error("server shutdown error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	deps.Logger.Info("server stopped")
	return nil
}
