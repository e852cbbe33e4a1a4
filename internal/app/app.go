// Package app initializes and holds long-lived application services, acting
// as a dependency injection container for the CLI commands.
package app

import (
	"context"
	"fmt"
	"net/http"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/ttstats/rrimport/internal/api"
	"github.com/ttstats/rrimport/internal/archive"
	archivegcs "github.com/ttstats/rrimport/internal/archive/gcs"
	archivelocal "github.com/ttstats/rrimport/internal/archive/local"
	"github.com/ttstats/rrimport/internal/config"
	"github.com/ttstats/rrimport/internal/fetcher"
	"github.com/ttstats/rrimport/internal/importer"
	"github.com/ttstats/rrimport/internal/index"
	"github.com/ttstats/rrimport/internal/logging"
	"github.com/ttstats/rrimport/internal/metrics"
	"github.com/ttstats/rrimport/internal/parser"
	"github.com/ttstats/rrimport/internal/resolver"
	"github.com/ttstats/rrimport/internal/rr"
	"github.com/ttstats/rrimport/internal/store/postgres"
)

// App holds the shared, long-lived services the commands run against. It is
// initialized once at startup and torn down by a Cobra hook afterwards.
type App struct {
	Config   config.Config
	Logger   *zap.Logger
	Store    *postgres.Store
	Fetcher  rr.Fetcher
	Index    rr.Index
	Parser   *parser.Parser
	Importer *importer.Importer
	Archive  archive.Store

	gcsClient *storage.Client
}

// New creates and initializes an App from configuration. It fails fast when
// any critical service cannot be initialized.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	metrics.Init()

	store, err := postgres.New(ctx, postgres.Config{
		DSN:             cfg.DB.DSN,
		MaxConns:        cfg.DB.MaxConns,
		MinConns:        cfg.DB.MinConns,
		MaxConnLifetime: cfg.ConnLifetime(),
	})
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	f := fetcher.New(fetcher.Config{
		BaseURL:           cfg.Source.BaseURL,
		UserAgent:         cfg.HTTP.UserAgent,
		Timeout:           cfg.HTTPTimeout(),
		MaxRetries:        cfg.HTTP.MaxRetries,
		RequestsPerSecond: cfg.HTTP.RequestsPerSecond,
	}, logger)

	p := parser.New(logger)
	res := resolver.New(store, logger)
	imp := importer.New(p, res, store, store, cfg.Import.MatchThreshold, logger)
	idx := index.New(f, cfg.Source.ResultsPage, logger)

	a := &App{
		Config:   cfg,
		Logger:   logger,
		Store:    store,
		Fetcher:  f,
		Index:    idx,
		Parser:   p,
		Importer: imp,
	}

	a.Archive, err = a.newArchive(ctx, cfg.Archive)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("init archive: %w", err)
	}

	if cfg.Ops.Addr != "" {
		go serveOps(cfg.Ops.Addr, store, logger)
	}

	return a, nil
}

func (a *App) newArchive(ctx context.Context, cfg config.ArchiveConfig) (archive.Store, error) {
	switch cfg.Provider {
	case "", "none":
		return archive.NoOp{}, nil
	case "local":
		return archivelocal.New(archivelocal.Config{BaseDir: cfg.Dir})
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs client: %w", err)
		}
		a.gcsClient = client
		return archivegcs.New(client, archivegcs.Config{Bucket: cfg.Bucket})
	default:
		return nil, fmt.Errorf("unknown archive provider %q", cfg.Provider)
	}
}

// serveOps exposes health, readiness and metrics for the lifetime of the
// process. Sync runs are short, so scrape coverage is best-effort.
func serveOps(addr string, db api.Pinger, logger *zap.Logger) {
	srv := api.NewServer(db, logger)
	logger.Info("ops endpoint up", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		logger.Warn("ops server stopped", zap.Error(err))
	}
}

// Close gracefully shuts down all services in the App container.
func (a *App) Close() {
	if a.gcsClient != nil {
		_ = a.gcsClient.Close()
	}
	if a.Store != nil {
		a.Store.Close()
	}
	if a.Logger != nil {
		// Best-effort flush; stderr sync failures are expected on some
		// platforms.
		_ = a.Logger.Sync()
	}
}
