// Package app initializes and holds long-lived application services,
// acting as a dependency injection container.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/clipvault/extractor/internal/api"
	"github.com/clipvault/extractor/internal/archive"
	archivegcs "github.com/clipvault/extractor/internal/archive/gcs"
	archivelocal "github.com/clipvault/extractor/internal/archive/local"
	archivemem "github.com/clipvault/extractor/internal/archive/memory"
	"github.com/clipvault/extractor/internal/browser"
	"github.com/clipvault/extractor/internal/clock/system"
	"github.com/clipvault/extractor/internal/config"
	"github.com/clipvault/extractor/internal/events"
	"github.com/clipvault/extractor/internal/extract"
	"github.com/clipvault/extractor/internal/headless"
	"github.com/clipvault/extractor/internal/logging"
	"github.com/clipvault/extractor/internal/metrics"
	"github.com/clipvault/extractor/internal/proxy"
	"github.com/clipvault/extractor/internal/queue"
)

// App holds all the shared, long-lived services for the application.
// It is initialized once at startup and handed to the command layer.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	browser   *browser.Manager
	tasks     *queue.Queue
	publisher events.Publisher
	server    *api.Server
}

// NewApp creates and wires every service from configuration. It fails
// fast if any critical service cannot be initialized; the browser
// itself launches lazily on first use.
func NewApp(ctx context.Context, cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	logger.Info("initializing services")

	metrics.Init()

	snapshots, err := newSnapshotStore(ctx, cfg.Archive, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize snapshot archive: %w", err)
	}

	publisher, err := newPublisher(ctx, cfg.Events, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize event publisher: %w", err)
	}

	mgr := browser.NewManager(browser.Config{
		ExecPath:     cfg.Browser.ExecPath,
		UserAgent:    cfg.Browser.UserAgent,
		IdleClose:    cfg.Browser.IdleClose(),
		RecycleAfter: cfg.Browser.RecycleAfter,
	}, system.New(), logger)

	tasks := queue.New(cfg.Queue.Concurrency, cfg.Queue.TaskTimeout(), logger)

	runner := headless.NewChromeRunner(mgr, logger)
	fast := extract.NewFastpath(cfg.Fastpath, logger)
	metadata := headless.NewMetadataExtractor(runner, logger)
	reader := headless.NewReaderExtractor(runner, cfg.Reader, snapshots, logger)
	orchestrator := extract.NewOrchestrator(fast, metadata, reader, tasks, publisher, logger)

	images := proxy.NewImage(cfg.Proxy, logger)
	server := api.NewServer(orchestrator, images, logger)

	logger.Info("services initialized",
		zap.Int("queue_concurrency", cfg.Queue.Concurrency),
		zap.String("archive_provider", cfg.Archive.Provider),
		zap.String("events_provider", cfg.Events.Provider),
	)

	return &App{
		cfg:       cfg,
		logger:    logger,
		browser:   mgr,
		tasks:     tasks,
		publisher: publisher,
		server:    server,
	}, nil
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config {
	return a.cfg
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Server returns the HTTP server wiring.
func (a *App) Server() *api.Server {
	return a.server
}

// Close shuts down long-lived services. The browser is closed even if
// tasks are still draining; callers should stop the HTTP server first.
func (a *App) Close() {
	a.browser.Close()
	if err := a.publisher.Close(); err != nil {
		a.logger.Warn("event publisher close failed", zap.Error(err))
	}
	_ = a.logger.Sync()
}

func newSnapshotStore(ctx context.Context, cfg config.ArchiveConfig, logger *zap.Logger) (archive.Store, error) {
	switch cfg.Provider {
	case "gcs":
		logger.Info("using GCS snapshot archive", zap.String("bucket", cfg.GCSBucket))
		return archivegcs.New(ctx, cfg.GCSBucket, logger)
	case "local":
		logger.Info("using local snapshot archive", zap.String("dir", cfg.LocalDir))
		return archivelocal.New(cfg.LocalDir)
	case "memory":
		return archivemem.New(), nil
	case "none", "":
		logger.Info("snapshot archiving disabled")
		return archive.NoopStore{}, nil
	default:
		return nil, fmt.Errorf("unknown archive provider: %s", cfg.Provider)
	}
}

func newPublisher(ctx context.Context, cfg config.EventsConfig, logger *zap.Logger) (events.Publisher, error) {
	switch cfg.Provider {
	case "pubsub":
		logger.Info("publishing outcomes to Pub/Sub", zap.String("topic", cfg.TopicName))
		return events.NewPubSubPublisher(ctx, cfg.ProjectID, cfg.TopicName, logger)
	case "none", "":
		logger.Info("outcome publishing disabled")
		return events.NoopPublisher{}, nil
	default:
		return nil, fmt.Errorf("unknown events provider: %s", cfg.Provider)
	}
}
