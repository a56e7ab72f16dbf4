package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/johnwards/dealerhub/internal/api"
	"github.com/johnwards/dealerhub/internal/api/admin"
	"github.com/johnwards/dealerhub/internal/api/collections"
	"github.com/johnwards/dealerhub/internal/api/console"
	"github.com/johnwards/dealerhub/internal/api/exports"
	"github.com/johnwards/dealerhub/internal/api/records"
	"github.com/johnwards/dealerhub/internal/api/ui"
	"github.com/johnwards/dealerhub/internal/client"
	"github.com/johnwards/dealerhub/internal/config"
	"github.com/johnwards/dealerhub/internal/database"
	"github.com/johnwards/dealerhub/internal/metrics"
	"github.com/johnwards/dealerhub/internal/seed"
	"github.com/johnwards/dealerhub/internal/store"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := database.Migrate(ctx, db); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	if err := seed.Seed(ctx, db, cfg.Seed); err != nil {
		return fmt.Errorf("seed data: %w", err)
	}

	s := store.New(db)
	m := metrics.New("dealerhub")
	sessions := console.NewSessions(cfg.Sessions, cfg.SessionTTL)
	defer sessions.Close()

	mux := http.NewServeMux()

	// Dealer API routes
	exports.RegisterRoutes(mux, s, m)
	collections.RegisterRoutes(mux, s)
	records.RegisterRoutes(mux, s, m)

	// Console
	src := client.New(cfg.APIURL, client.WithToken(cfg.AuthToken))
	console.RegisterRoutes(mux, sessions, src, console.Options{
		AlertTTL: cfg.AlertTTL,
		PageSize: cfg.PageSize,
		Metrics:  m,
		Logger:   slog.Default(),
	})

	// Admin API. A reset invalidates every console screen.
	admin.RegisterRoutes(mux, db, cfg.Seed, sessions.Close)

	// Web UI and metrics
	ui.RegisterRoutes(mux)
	mux.Handle("GET /metrics", m.Handler())

	// Catch-all: return 404 in the API error format.
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		corrID := api.CorrelationID(r.Context())
		api.WriteError(w, http.StatusNotFound, api.NewNotFoundError(
			fmt.Sprintf("No route found for %s %s", r.Method, r.URL.Path),
			corrID,
		))
	})

	handler := api.Chain(mux,
		api.Recovery(),
		api.RequestID(),
		api.Auth(cfg.AuthToken),
		api.Actor(),
		api.JSONContentType(),
		api.Logging(),
		api.RequestLog(db),
		api.Metrics(m),
	)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		slog.Info("shutting down server")
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("starting dealerhub server", "addr", cfg.Addr, "api", cfg.APIURL)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen: %w", err)
	}

	return nil
}
