package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gaetan-warin/LearnREST/internal/app"
	"github.com/gaetan-warin/LearnREST/internal/catalog"
	"github.com/gaetan-warin/LearnREST/internal/config"
	"github.com/gaetan-warin/LearnREST/internal/identity"
	"github.com/gaetan-warin/LearnREST/internal/journal"
	"github.com/gaetan-warin/LearnREST/internal/logging"
	"github.com/gaetan-warin/LearnREST/internal/progress"
	"github.com/gaetan-warin/LearnREST/internal/session"
	"github.com/gaetan-warin/LearnREST/internal/store"
)

func main() {
	configPath := flag.String("config", os.Getenv("REST_QUEST_CONFIG"), "optional JSON config file applied over the environment")
	flag.Parse()

	cfg := config.Load()
	if *configPath != "" {
		loaded, err := config.LoadFile(cfg, *configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	if err := run(cfg, logger); err != nil {
		logger.Error(context.Background(), "REST Quest API stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger logging.Logger) error {
	ctx := context.Background()

	blobs, closeBlobs, err := openBlobs(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeBlobs()

	var history *journal.Journal
	if cfg.JournalDir != "" {
		history, err = journal.Open(cfg.JournalDir, blobs, logger)
		if err != nil {
			return fmt.Errorf("journal: %w", err)
		}
		blobs = history
		logger.Info(ctx, "document journal enabled", "dir", cfg.JournalDir)
	}

	booksDoc := catalog.NewDocument(blobs, cfg.BooksDocument, logger)
	progressDoc := progress.NewDocument(blobs, cfg.ProgressDocument, logger)
	if err := booksDoc.Ensure(ctx); err != nil {
		return fmt.Errorf("initialize %s: %w", cfg.BooksDocument, err)
	}
	if err := progressDoc.Ensure(ctx); err != nil {
		return fmt.Errorf("initialize %s: %w", cfg.ProgressDocument, err)
	}

	service := app.New(cfg, catalog.NewService(booksDoc, logger), progress.NewTracker(progressDoc, logger), logger)
	service.AddReadinessCheck("documents", blobs)
	if history != nil {
		service.WithHistory(history)
	}

	var resolver identity.Resolver = identity.AddressResolver{}
	if cfg.IdentityStrategy == config.IdentitySession {
		sessions, err := openSessions(cfg)
		if err != nil {
			return err
		}
		defer sessions.Close()
		service.AddReadinessCheck("sessions", sessions)

		resolver = identity.NewSessionResolver(sessions, identity.SessionOptions{
			CookieName: cfg.SessionCookie,
			Secret:     []byte(cfg.SessionSecret),
			TTL:        cfg.SessionTTL,
		}, logger)
		logger.Info(ctx, "session identity enabled", "backend", cfg.SessionBackend)
	}

	httpServer := app.NewHTTPServer(service, resolver, logger)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info(ctx, "REST Quest API listening", "addr", cfg.Addr, "store", cfg.StoreBackend, "identity", cfg.IdentityStrategy)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info(ctx, "signal caught, shutting down", "signal", sig.String())
	case err, ok := <-serveErr:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn(ctx, "shutdown error", "error", err)
	}
	return nil
}

func openBlobs(ctx context.Context, cfg config.Config, logger logging.Logger) (store.Blobs, func(), error) {
	noop := func() {}

	switch cfg.StoreBackend {
	case config.BackendPostgres, config.BackendSQLite:
		driver, dsn, dialect := store.DriverPostgres, cfg.DatabaseURL, store.DialectPostgres
		if cfg.StoreBackend == config.BackendSQLite {
			driver, dsn, dialect = store.DriverSQLite, cfg.SQLitePath, store.DialectSQLite
			if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
				return nil, noop, fmt.Errorf("sqlite dir: %w", err)
			}
		}
		db, err := store.Open(ctx, driver, dsn)
		if err != nil {
			return nil, noop, fmt.Errorf("database connection failed: %w", err)
		}
		if err := store.ApplyMigrations(ctx, db, dialect); err != nil {
			_ = db.Close()
			return nil, noop, fmt.Errorf("migrations failed: %w", err)
		}
		sqlStore := store.NewSQLStore(db)
		logger.Info(ctx, "using database document store", "driver", driver)
		return sqlStore, func() { _ = sqlStore.Close() }, nil

	case config.BackendS3:
		s3Store, err := store.NewS3Store(ctx, store.S3Options{
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			BaseEndpoint: cfg.S3BaseEndpoint,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			Prefix:       cfg.S3Prefix,
		})
		if err != nil {
			return nil, noop, fmt.Errorf("s3 store: %w", err)
		}
		logger.Info(ctx, "using s3 document store", "bucket", cfg.S3Bucket)
		return s3Store, noop, nil

	default:
		fileStore := store.NewFileStore(cfg.DataDir)
		if err := fileStore.Ping(ctx); err != nil {
			return nil, noop, fmt.Errorf("data dir: %w", err)
		}
		logger.Info(ctx, "using file document store", "dir", fileStore.Dir())
		return fileStore, noop, nil
	}
}

func openSessions(cfg config.Config) (session.Store, error) {
	if cfg.SessionBackend == config.SessionRedis {
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis connection failed: %w", err)
		}
		return redisStore, nil
	}
	return session.NewMemoryStore(), nil
}
