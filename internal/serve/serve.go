package serve

import (
	"context"
	"fmt"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/ninjapay/payments-reconciler/db"
	"github.com/ninjapay/payments-reconciler/internal/crashtracker"
	"github.com/ninjapay/payments-reconciler/internal/data"
	"github.com/ninjapay/payments-reconciler/internal/monitor"
	"github.com/ninjapay/payments-reconciler/internal/serve/httperror"
	"github.com/ninjapay/payments-reconciler/internal/serve/httphandler"
	"github.com/ninjapay/payments-reconciler/internal/serve/middleware"
)

const ServiceID = "serve"

type ServeOptions struct {
	AppName            string
	Environment        string
	GitCommit          string
	Version            string
	Port               int
	DatabaseDSN        string
	CorsAllowedOrigins []string
	HealthAuthBearer   string
	MonitorService     monitor.MonitorServiceInterface
	CrashTrackerClient crashtracker.CrashTrackerClient
	Models             *data.Models
	dbConnectionPool   db.DBConnectionPool
}

// SetupDependencies uses the serve options to setup the dependencies for the server.
func (opts *ServeOptions) SetupDependencies() error {
	// Set crash tracker LogAndReportErrors as DefaultReportErrorFunc
	httperror.SetDefaultReportErrorFunc(opts.CrashTrackerClient.LogAndReportErrors)

	ctx := context.Background()

	dbConnectionPool, err := db.OpenDBConnectionPoolWithMetrics(ctx, opts.DatabaseDSN, opts.MonitorService)
	if err != nil {
		return fmt.Errorf("error connecting to the database: %w", err)
	}
	opts.Models, err = data.NewModels(dbConnectionPool)
	if err != nil {
		return fmt.Errorf("error creating models for Serve: %w", err)
	}
	opts.dbConnectionPool = dbConnectionPool

	err = opts.Models.RuntimeEvents.Insert(ctx, dbConnectionPool, data.StartupRuntimeEvent, map[string]any{"app": opts.AppName})
	if err != nil {
		log.Warnf("error recording startup event: %s", err.Error())
	}

	return nil
}

func Serve(opts ServeOptions, httpServer HTTPServerInterface) error {
	err := opts.SetupDependencies()
	if err != nil {
		return fmt.Errorf("error starting dependencies: %w", err)
	}

	// Start the server
	listenAddr := fmt.Sprintf(":%d", opts.Port)
	serverConfig := HTTPServerConfig{
		ListenAddr:          listenAddr,
		Handler:             handleHTTP(opts),
		ShutdownGracePeriod: time.Second * 50,
		ReadTimeout:         time.Second * 5,
		WriteTimeout:        time.Second * 35,
		IdleTimeout:         time.Minute * 2,
		OnStarting: func() {
			log.Infof("Starting %s Admin Server", opts.AppName)
			log.Infof("Listening on %s", listenAddr)
		},
		OnStopping: func() {
			shutdownCtx := context.Background()
			err := opts.Models.RuntimeEvents.Insert(shutdownCtx, opts.dbConnectionPool, data.ShutdownRuntimeEvent, map[string]any{"app": opts.AppName})
			if err != nil {
				log.Warnf("error recording shutdown event: %s", err.Error())
			}

			log.Info("Closing the database connection...")
			err = opts.dbConnectionPool.Close()
			if err != nil {
				log.Errorf("error closing database connection: %s", err.Error())
			}

			log.Infof("Stopping %s Admin Server", opts.AppName)
		},
	}
	httpServer.Run(serverConfig)
	return nil
}

func handleHTTP(o ServeOptions) *chi.Mux {
	mux := chi.NewMux()

	// Middleware
	mux.Use(middleware.CorsMiddleware(o.CorsAllowedOrigins))
	mux.Use(chimiddleware.RequestID)
	mux.Use(chimiddleware.RealIP)
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.RecoverHandler)
	mux.Use(middleware.MetricsRequestHandler(o.MonitorService))

	mux.Get("/health", httphandler.HealthHandler{}.ServeHTTP)

	mux.Group(func(r chi.Router) {
		r.Use(middleware.BearerTokenMiddleware(o.HealthAuthBearer))

		r.Get("/api/v1/health/metrics", httphandler.HealthMetricsHandler{
			AppName:   o.AppName,
			Version:   o.Version,
			GitCommit: o.GitCommit,
			Models:    o.Models,
		}.ServeHTTP)
	})

	return mux
}
