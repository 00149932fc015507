// Command server wires every subsystem together and runs the record
// repository API's HTTP surface.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/recordkeeper/api/internal/auth"
	"github.com/recordkeeper/api/internal/cache"
	"github.com/recordkeeper/api/internal/config"
	"github.com/recordkeeper/api/internal/csvexport"
	"github.com/recordkeeper/api/internal/db"
	"github.com/recordkeeper/api/internal/entitlement"
	"github.com/recordkeeper/api/internal/events"
	"github.com/recordkeeper/api/internal/handlers"
	"github.com/recordkeeper/api/internal/ingest"
	"github.com/recordkeeper/api/internal/logger"
	"github.com/recordkeeper/api/internal/prune"
	"github.com/recordkeeper/api/internal/query"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger.Initialize(cfg.LogLevel, cfg.LogPretty)
	log := logger.GetLogger()
	log.Info().Msg("starting record repository API")

	database, err := db.NewDatabase(cfg.DatabaseURL, db.PoolConfig{
		MinConns:              cfg.DBPoolMinConns,
		MaxConns:              cfg.DBPoolMaxConns,
		AcquireTimeoutSeconds: cfg.DBAcquireTimeoutSeconds,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	if err := database.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	redisCache, err := newCache(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	publisher, err := newPublisher(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to nats")
	}
	defer publisher.Close()

	signingKey, err := auth.LoadSigningKey(cfg.Ed25519SigningKey)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load signing key")
	}
	signer := auth.NewSigner(signingKey)

	sqlDB := database.DB()
	userDB := db.NewUserDB(sqlDB)
	apiKeyDB := db.NewApiKeyDB(sqlDB)
	formatDB := db.NewFormatDB(sqlDB)
	entitlementDB := db.NewEntitlementDB(sqlDB)
	uploadSessionDB := db.NewUploadSessionDB(sqlDB)
	recordDB := db.NewRecordDB(sqlDB)

	resolver := entitlement.NewResolver(entitlementDB, redisCache, time.Duration(cfg.EntitlementCacheTTLSeconds)*time.Second, cfg.TemporalDeleteHours)
	ingestPipeline := ingest.NewPipeline(database, formatDB, uploadSessionDB, recordDB, publisher, cfg.BulkInsertChunkSize)
	queryEngine := query.NewEngine(recordDB, cfg.MaxPaginationSize, cfg.DefaultPaginationSize)
	csvPipeline := csvexport.NewPipeline(recordDB, cfg.CSVStreamWorkers, cfg.CSVTransformWorkers, cfg.CSVWorkerQueueDepth)
	streamCap := csvexport.NewStreamCounter(redisCache, cfg.MaxStreamsPerUser)

	h := handlers.New(handlers.Deps{
		Config:          cfg,
		UserDB:          userDB,
		ApiKeyDB:        apiKeyDB,
		FormatDB:        formatDB,
		EntitlementDB:   entitlementDB,
		UploadSessionDB: uploadSessionDB,
		RecordDB:        recordDB,
		Signer:          signer,
		Resolver:        resolver,
		Ingest:          ingestPipeline,
		Query:           queryEngine,
		CSV:             csvPipeline,
		StreamCap:       streamCap,
	})
	router := h.NewRouter(signer, apiKeyDB)

	var pruneJob *prune.Job
	if cfg.EnablePruneJob {
		pruneJob = prune.NewJob(
			uploadSessionDB,
			publisher,
			time.Duration(cfg.PruneJobRunIntervalSeconds)*time.Second,
			time.Duration(cfg.PruneJobTimeoutSeconds)*time.Second,
			time.Duration(cfg.PruneRetentionHours)*time.Hour,
		)
		pruneJob.Start()
		log.Info().Msg("prune job started")
	}

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      0, // CSV streaming responses can run far longer than a fixed write deadline
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server forced to shut down")
	}
	if pruneJob != nil {
		pruneJob.Stop()
	}
	if err := database.Close(); err != nil {
		log.Error().Err(err).Msg("error closing database")
	}
	if err := redisCache.Close(); err != nil {
		log.Error().Err(err).Msg("error closing redis cache")
	}
	log.Info().Msg("shutdown complete")
}

func newCache(cfg *config.Config) (*cache.Cache, error) {
	if !cfg.CacheEnabled {
		return cache.NewCache(cache.Config{Enabled: false})
	}
	host, port, err := net.SplitHostPort(cfg.RedisAddr)
	if err != nil {
		return nil, fmt.Errorf("REDIS_ADDR: %w", err)
	}
	return cache.NewCache(cache.Config{
		Host:     host,
		Port:     port,
		Password: cfg.RedisPassword,
		Enabled:  true,
	})
}

func newPublisher(cfg *config.Config) (*events.Publisher, error) {
	if !cfg.EventsEnabled {
		return events.NewPublisher("")
	}
	return events.NewPublisher(cfg.NATSUrl)
}
