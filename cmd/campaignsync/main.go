package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	rdadapter "github.com/troia/campaignsync/internal/adapter/driven/rdstation"
	sqliteadapter "github.com/troia/campaignsync/internal/adapter/driven/sqlite"
	httphandler "github.com/troia/campaignsync/internal/adapter/driving/http"
	"github.com/troia/campaignsync/internal/application"
	"github.com/troia/campaignsync/internal/config"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on malformed env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"rd_base_url", cfg.RDBaseURL,
		"sync_interval", cfg.SyncInterval,
		"sync_lookback", cfg.SyncLookback,
		"oauth_app", cfg.HasOAuthApp(),
		"dashboard_secret", cfg.DashboardSecret != "",
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection, then bring a credential table
	// created by an older deployment up to the current shape.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	credentialStore := sqliteadapter.NewCredentialRepo(db)
	if err := credentialStore.EnsureSchema(ctx); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire adapters.
	campaignStore := sqliteadapter.NewCampaignRepo(db)
	syncRunStore := sqliteadapter.NewSyncRunRepo(db)
	funnelStore := sqliteadapter.NewFunnelRepo(db)

	oauthClient := rdadapter.NewOAuthClient(cfg.RDBaseURL, cfg.RDClientID, cfg.RDClientSecret, cfg.RDRedirectURI,
		&http.Client{Timeout: 30 * time.Second})
	tokenSvc := application.NewTokenService(credentialStore, oauthClient)

	var authURLs httphandler.AuthURLBuilder
	if cfg.HasOAuthApp() {
		authURLs = oauthClient
	} else {
		slog.Warn("no provider OAuth application configured, authorization endpoints disabled")
	}

	rdClient, err := rdadapter.NewClient(cfg.RDBaseURL, tokenSvc)
	if err != nil {
		return err
	}

	// 6. Create and start sync service.
	reconciler := application.NewReconciler(rdClient, campaignStore, cfg.ListPageSize, cfg.ListMaxPages)
	syncSvc := application.NewSyncService(reconciler, syncRunStore, cfg.SyncInterval, cfg.SyncLookback)
	if cfg.StaleRunAfter > 0 {
		if _, err := syncSvc.SweepAbandoned(ctx, cfg.StaleRunAfter); err != nil {
			return err
		}
	}
	syncDone := make(chan struct{})
	go func() {
		defer close(syncDone)
		syncSvc.Start(ctx)
	}()

	// 7. Create read-side services.
	statusSvc := application.NewStatusService(syncRunStore, campaignStore, credentialStore)
	funnelSvc := application.NewFunnelService(funnelStore, campaignStore)

	// 8. Create HTTP handler and register routes with middleware.
	apiHandler := httphandler.NewHandler(tokenSvc, authURLs, syncSvc, statusSvc, funnelSvc, campaignStore, slog.Default())
	handler := httphandler.NewServeMux(apiHandler, cfg.DashboardSecret, slog.Default())

	// WriteTimeout covers a synchronous run-now, which pages the provider.
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	slog.Info("campaignsync started",
		"listen_addr", cfg.ListenAddr,
		"sync_interval", cfg.SyncInterval,
	)

	// 9. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	// 10. Graceful shutdown with 10s timeout for HTTP server drain and the
	// in-flight sync run, which must record its outcome before the database
	// closes.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	select {
	case <-syncDone:
	case <-shutdownCtx.Done():
		slog.Warn("sync service did not stop before shutdown timeout")
	}

	slog.Info("shutdown complete")
	return nil
}
