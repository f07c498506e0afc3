// Package app initializes and orchestrates the main components of the
// living-docs pipeline. It wires together configuration, the database, the
// orchestrator's worker pool, and the HTTP server, following the reference
// implementation's app.go construction shape.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/livingdocs/pipeline/internal/config"
	"github.com/livingdocs/pipeline/internal/core"
	"github.com/livingdocs/pipeline/internal/db"
	"github.com/livingdocs/pipeline/internal/delivery"
	"github.com/livingdocs/pipeline/internal/gitutil"
	"github.com/livingdocs/pipeline/internal/orchestrator"
	"github.com/livingdocs/pipeline/internal/parse"
	"github.com/livingdocs/pipeline/internal/providerauth"
	"github.com/livingdocs/pipeline/internal/server"
	"github.com/livingdocs/pipeline/internal/sourcefetch"
	"github.com/livingdocs/pipeline/internal/store"
)

// App holds the main application components for the orchestrator's HTTP
// server (§4.9): the job dispatcher, the artifact store, and the bound HTTP
// server.
type App struct {
	Store      *store.Store
	Dispatcher core.JobDispatcher
	Statuses   *orchestrator.StatusTracker
	Cfg        *config.Config

	logger *slog.Logger
	server *server.Server
}

// NewApp sets up the application with all its dependencies: relational
// index, object store, git/fetch/parse/delivery components, the pipeline
// job, the worker-pool dispatcher, and the HTTP router.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, func(), error) {
	logger.Info("initializing living-docs application",
		"server_port", cfg.Server.Port,
		"max_workers", cfg.Server.MaxWorkers,
	)

	dbConn, dbCleanup, err := db.NewDatabase(&cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	objClient, err := store.NewObjectClient(ctx, cfg.Storage)
	if err != nil {
		dbCleanup()
		return nil, nil, fmt.Errorf("failed to build object store client: %w", err)
	}

	indexStore := store.NewIndexStore(dbConn.DB)
	objStore := store.New(objClient, indexStore, cfg.Storage.Bucket)

	gitClient := gitutil.NewClient(logger.With("component", "gitutil"))
	fetcher := sourcefetch.New(gitClient, logger.With("component", "sourcefetch"))
	parsers := parse.NewRegistry()

	prcFactory := func(ctx context.Context, token string) (delivery.PRClient, error) {
		return delivery.NewPRClient(providerauth.ClientForToken(ctx, token)), nil
	}
	deliveryAgent := delivery.New(gitClient, prcFactory)

	statuses := orchestrator.NewStatusTracker()
	pipeline := orchestrator.NewPipeline(cfg, gitClient, fetcher, parsers, objStore, deliveryAgent, statuses, logger.With("component", "pipeline"))

	dispatcher := orchestrator.NewDispatcher(ctx, pipeline, cfg.Server.MaxWorkers, logger.With("component", "dispatcher"))
	httpServer := server.NewServer(cfg, dispatcher, objStore, logger.With("component", "server"))

	logger.Info("living-docs application initialized successfully")
	return &App{
			Store:      objStore,
			Dispatcher: dispatcher,
			Statuses:   statuses,
			Cfg:        cfg,
			logger:     logger,
			server:     httpServer,
		}, func() {
			dbCleanup()
		}, nil
}

// Start runs the HTTP server. It blocks until the server stops or errors.
func (a *App) Start() error {
	a.logger.Info("starting living-docs", "server_port", a.Cfg.Server.Port, "max_workers", a.Cfg.Server.MaxWorkers)
	if err := a.server.Start(); err != nil {
		a.logger.Error("failed to start HTTP server", "error", err)
		return err
	}
	return nil
}

// Stop shuts down the application cleanly: drains the dispatcher's
// in-flight pipeline runs, then stops accepting new HTTP connections.
func (a *App) Stop() error {
	var shutdownErr error
	a.logger.Info("shutting down living-docs services")

	if stopper, ok := a.Dispatcher.(interface{ Stop() }); ok {
		stopper.Stop()
	}

	if a.server != nil {
		if err := a.server.Stop(); err != nil {
			a.logger.Error("error during HTTP server shutdown", "error", err)
			shutdownErr = errors.Join(shutdownErr, err)
		}
	}

	if shutdownErr != nil {
		a.logger.Error("living-docs stopped with errors", "error", shutdownErr)
	} else {
		a.logger.Info("living-docs stopped successfully")
	}
	return shutdownErr
}
