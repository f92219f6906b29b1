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

	githubadapter "github.com/ericfisherdev/marginalia/internal/adapter/driven/github"
	sqliteadapter "github.com/ericfisherdev/marginalia/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/marginalia/internal/adapter/driving/http"
	"github.com/ericfisherdev/marginalia/internal/application"
	"github.com/ericfisherdev/marginalia/internal/config"
	"github.com/ericfisherdev/marginalia/internal/domain/model"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"repo", cfg.Repo,
		"file", cfg.FilePath,
		"base_branch", cfg.BaseBranch,
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"poll_interval", cfg.PollInterval,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire driven adapters.
	commentStore := sqliteadapter.NewCommentRepo(db)
	ghClient := githubadapter.NewClient(cfg.GitHubToken, cfg.GitHubUsername)

	// 6. Session state container for this document view.
	user := model.Author{
		UID:              cfg.GitHubUsername,
		DisplayName:      cfg.GitHubUsername,
		ExternalUsername: cfg.GitHubUsername,
	}
	session := application.NewSession(cfg.Repo, cfg.FilePath, cfg.BaseBranch, user)

	// 7. Application services. The comment service and outbound sync client
	// reference each other, so the syncer is attached after construction.
	bridge := application.NewIdentityBridge(func(ctx context.Context, localID string) int64 {
		c, err := commentStore.Get(ctx, localID)
		if err != nil || c == nil {
			return 0
		}
		return c.RemoteID
	})
	commentSvc := application.NewCommentService(commentStore, session)
	syncSvc := application.NewSyncService(ghClient, ghClient, bridge, session, commentSvc)
	commentSvc.AttachSyncer(syncSvc)

	pollSvc := application.NewPollService(ghClient, commentSvc, bridge, session, cfg.PollInterval)
	go pollSvc.Start(ctx)

	saveSvc := application.NewSaveService(ghClient, ghClient, ghClient, session, commentSvc, application.SaveConfig{
		Strategy:      cfg.SaveStrategy,
		AutoPR:        cfg.AutoPR,
		Debounce:      cfg.Debounce,
		StatusDisplay: cfg.StatusDisplay,
		BaseBranch:    cfg.BaseBranch,
		BranchPrefix:  "marginalia",
		CommitMessage: "Update " + cfg.FilePath,
	})

	// 8. Initial document load: records the blob SHA, detects an open PR for
	// the branch, and runs the first orphan sweep. Non-fatal; the UI can
	// retry via GET /document.
	if _, err := saveSvc.LoadDocument(ctx); err != nil {
		slog.Warn("initial document load failed", "error", err)
	}

	// 9. HTTP driving adapter.
	apiHandler := httphandler.NewHandler(commentSvc, saveSvc, pollSvc, session, slog.Default())
	handler := httphandler.NewServeMux(apiHandler, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	slog.Info("marginalia started",
		"repo", cfg.Repo,
		"file", cfg.FilePath,
		"listen_addr", cfg.ListenAddr,
	)

	// 10. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
