package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lemmylink/internal/config"
	"lemmylink/internal/constants"
	"lemmylink/internal/database"
	apperrors "lemmylink/internal/errors"
	"lemmylink/internal/models"
	"lemmylink/internal/platform"
	"lemmylink/internal/retry"
	"lemmylink/internal/service"
	"lemmylink/internal/tracing"
	"lemmylink/pkg/lemmy"
	"lemmylink/pkg/reddit"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the trigger listener and the reconciliation loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts)
		},
	}
}

// loadConfig reads the .env file and the JSON configuration
func loadConfig(opts *rootOptions) (*models.Config, error) {
	if err := config.LoadEnvFile(opts.envFile); err != nil {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// openDatabase opens the mapping store, retrying with exponential backoff
func openDatabase(ctx context.Context, cfg *models.Config, logger *logrus.Logger) (*database.Database, error) {
	backoffConfig := retry.FromRetryConfig(cfg.Retry)
	backoffConfig.MaxAttempts = constants.DefaultDatabaseRetryAttempts

	var db *database.Database
	err := retry.NewBackoff(backoffConfig).Retry(ctx, func() error {
		var initErr error
		db, initErr = database.New(cfg.Database.Path, cfg.Database.BusyTimeoutMs)
		if initErr != nil {
			logger.Warnf("Failed to initialize database: %v", initErr)
		}
		return initErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database after retries: %w", err)
	}
	return db, nil
}

func run(ctx context.Context, opts *rootOptions) error {
	logger := newLogger()

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	applyLogLevel(logger, cfg.LogLevel, opts.verbose)

	logger.WithFields(logrus.Fields{
		"version":   Version,
		"build":     BuildTime,
		"commit":    GitCommit,
		"subreddit": cfg.Reddit.Subreddit,
		"lemmy":     cfg.Lemmy.BaseURL,
	}).Info("Starting LemmyLink")

	tracingManager := tracing.NewTracingManager(cfg.Tracing, logger)
	if err := tracingManager.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := tracingManager.Shutdown(context.Background()); err != nil {
			logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	db, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close database")
		}
	}()

	redditClient := reddit.NewClient(reddit.Config{
		ClientID:          cfg.Reddit.ClientID,
		ClientSecret:      cfg.Reddit.ClientSecret,
		Username:          cfg.Reddit.Username,
		Password:          cfg.Reddit.Password,
		UserAgent:         cfg.Reddit.UserAgent,
		APIBaseURL:        cfg.Reddit.APIBaseURL,
		AuthURL:           cfg.Reddit.AuthURL,
		WebBaseURL:        cfg.Reddit.WebBaseURL,
		RequestsPerMinute: cfg.Reddit.RequestsPerMinute,
	}, &http.Client{Timeout: time.Duration(cfg.Reddit.TimeoutSec) * time.Second}, logger)

	lemmyClient := lemmy.NewClient(lemmy.Config{
		BaseURL:           cfg.Lemmy.BaseURL,
		Username:          cfg.Lemmy.Username,
		Password:          cfg.Lemmy.Password,
		RequestsPerSecond: cfg.Lemmy.RequestsPerSecond,
	}, &http.Client{Timeout: time.Duration(cfg.Lemmy.TimeoutSec) * time.Second}, logger)

	origin := platform.NewReddit(redditClient, cfg.Reddit.Subreddit, reddit.StreamOptions{
		PollInterval: time.Duration(cfg.Reddit.PollIntervalSec) * time.Second,
		SkipExisting: cfg.Sync.ShouldSkipExisting(),
	}, logger)
	mirror := platform.NewLemmy(lemmyClient, logger)

	backoff := retry.NewBackoff(retry.FromRetryConfig(cfg.Retry))
	if err := backoff.RetryWithPredicate(ctx, func() error { return origin.Authenticate(ctx) }, apperrors.IsRetryable); err != nil {
		return fmt.Errorf("failed to authenticate with reddit: %w", err)
	}
	if err := backoff.RetryWithPredicate(ctx, func() error { return mirror.Login(ctx) }, apperrors.IsRetryable); err != nil {
		return fmt.Errorf("failed to log in to lemmy: %w", err)
	}

	serviceCtx := service.WithVerbose(ctx, opts.verbose)

	initiator := service.NewInitiator(origin, mirror, db, cfg.Lemmy.CommunityID, logger)
	listener := service.NewTriggerListener(origin, initiator, cfg.Sync.TriggerPhrase, logger)
	reconciler := service.NewReconciler(origin, mirror, db,
		service.ReconcilerConfigFrom(cfg.Sync, origin.SelfHandle(), mirror.SelfHandle()), logger)

	watcher := config.NewConfigWatcher(opts.configPath, logger)
	watcher.OnConfigChange(func(c *models.Config) {
		listener.SetTriggerPhrase(c.Sync.TriggerPhrase)
		applyLogLevel(logger, c.LogLevel, opts.verbose)
	})
	go func() {
		if err := watcher.Start(ctx); err != nil {
			logger.WithError(err).Warn("Configuration watcher stopped")
		}
	}()

	listenerCtx, stopListener := context.WithCancel(serviceCtx)
	defer stopListener()
	listenerDone := make(chan struct{})
	go func() {
		defer close(listenerDone)
		listener.Run(listenerCtx)
	}()

	if err := reconciler.Start(serviceCtx); err != nil {
		stopListener()
		<-listenerDone
		return fmt.Errorf("failed to start reconciler: %w", err)
	}

	var server *Server
	serverErrCh := make(chan error, 1)
	if cfg.Server.Enabled {
		server = NewServer(db, reconciler, logger)
		go func() {
			if err := server.Start(cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErrCh <- err
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-serverErrCh:
		runErr = fmt.Errorf("server error: %w", err)
		logger.Error(runErr)
	case <-listenerDone:
		runErr = errors.New("trigger listener stopped unexpectedly")
		logger.Error(runErr)
	}

	stopListener()
	<-listenerDone
	reconciler.Stop()

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(constants.DefaultGracefulShutdownSec)*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("Failed to shutdown server gracefully")
		}
	}

	logger.Info("LemmyLink stopped")
	return runErr
}
