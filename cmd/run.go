package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"stakehouse/application"
	"stakehouse/config"
	"stakehouse/database"
	"stakehouse/domain/services"
	"stakehouse/infrastructure"
	"stakehouse/infrastructure/kv"
	"stakehouse/infrastructure/observability"
	httptransport "stakehouse/transport/http"

	log "github.com/sirupsen/logrus"
)

// Run initializes and starts the stake engine service
func Run(ctx context.Context) error {
	cfg := config.Get()
	ConfigureLogging(cfg)

	log.WithField("environment", cfg.Environment).Info("Starting stakehouse...")

	if err := observability.InitializeGlobalMetrics(ctx, cfg); err != nil {
		log.WithError(err).Warn("Failed to initialize metrics, continuing without them")
	}

	// Initialize database connection
	log.Info("Connecting to database...")
	db, err := database.NewConnectionWithOptions(ctx, cfg.GetDatabaseURL(), cfg.PoolOptions())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	log.Info("Database connection established successfully")

	// Initialize NATS for events and key-value state
	log.WithField("servers", cfg.NATSServers).Info("Connecting to NATS...")
	natsClient := infrastructure.NewNATSClient(cfg.NATSServers, cfg.NATSName)
	if err := natsClient.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer func() {
		if err := natsClient.Close(); err != nil {
			log.WithError(err).Error("Error closing NATS client")
		}
	}()

	identityStore, err := openStore(natsClient, cfg.IdentityBucket)
	if err != nil {
		return err
	}
	draftStore, err := openStore(natsClient, cfg.DraftBucket)
	if err != nil {
		return err
	}
	directoryStore, err := openStore(natsClient, cfg.DirectoryBucket)
	if err != nil {
		return err
	}
	directory := kv.NewStakerDirectory(directoryStore)

	subjectMapper := infrastructure.NewEventSubjectMapper()
	eventPublisher := infrastructure.NewNATSEventPublisher(natsClient, subjectMapper, cfg.NATSName)
	if err := eventPublisher.EnsureDomainEventStreams(natsClient); err != nil {
		return fmt.Errorf("failed to ensure event streams: %w", err)
	}

	uowFactory := infrastructure.NewUnitOfWorkFactory(db, eventPublisher)
	identities := services.NewSessionIdentityResolver(identityStore, time.Now)
	engine := application.NewStakeEngine(uowFactory, identities, draftStore, directory)

	eventSubscriber := infrastructure.NewNATSEventSubscriber(natsClient, subjectMapper)
	if err := application.RegisterApplicationSubscriptions(eventSubscriber, engine); err != nil {
		return fmt.Errorf("failed to register event subscriptions: %w", err)
	}

	var worker *application.DraftSyncWorker
	if cfg.DraftSyncEnabled {
		worker = application.NewDraftSyncWorker(engine, cfg.DraftSyncInterval)
		if err := worker.Start(ctx); err != nil {
			return fmt.Errorf("failed to start draft sync worker: %w", err)
		}
	}

	router := httptransport.NewRouter(engine, directory)
	httptransport.LogRoutes(router)
	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			log.WithError(err).Error("HTTP server stopped unexpectedly")
		}
	}

	// Cleanup resources
	log.Info("Shutting down stakehouse...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Error shutting down HTTP server")
	}
	if worker != nil {
		if err := worker.Stop(); err != nil {
			log.WithError(err).Error("Error stopping draft sync worker")
		}
	}
	if err := observability.ShutdownGlobalMetrics(shutdownCtx); err != nil {
		log.WithError(err).Error("Error shutting down metrics")
	}

	log.Info("Shutdown completed")
	return nil
}

func openStore(client *infrastructure.NATSClient, bucket string) (*kv.NATSStore, error) {
	kvBucket, err := client.KeyValue(bucket, 0)
	if err != nil {
		return nil, err
	}
	return kv.NewNATSStore(kvBucket), nil
}

// ConfigureLogging applies the configured level and format to the standard logger
func ConfigureLogging(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("Unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if cfg.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
		return
	}
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
}
