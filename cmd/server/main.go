package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/example/meetpoint/internal/config"
	"github.com/example/meetpoint/internal/dispatch"
	httpapi "github.com/example/meetpoint/internal/http"
	"github.com/example/meetpoint/internal/ingest"
	"github.com/example/meetpoint/internal/logging"
	"github.com/example/meetpoint/internal/maps"
	"github.com/example/meetpoint/internal/places"
	"github.com/example/meetpoint/internal/planner"
	"github.com/example/meetpoint/internal/ranking"
	"github.com/example/meetpoint/internal/storage"
	"github.com/example/meetpoint/internal/travel"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadServerConfig()
	logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if cfg.PGDSN != "" && cfg.RunMigrations {
		if err := runMigrations(cfg.PGDSN); err != nil {
			logger.Error("migration failed", "error", err)
			os.Exit(1)
		}
		logger.Info("migrations applied")
	}

	store, cleanup, err := buildStore(cfg)
	if err != nil {
		logger.Error("storage init failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	gc := maps.NewGoogleClient(cfg.MapsAPIKey)
	if cfg.MapsBaseURL != "" {
		gc.BaseURL = cfg.MapsBaseURL
	}

	var cache travel.CostCache
	if cfg.RedisAddr != "" {
		rc := travel.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.TravelCacheTTL)
		defer rc.Close()
		cache = rc
		logger.Info("travel cache backed by redis", "addr", cfg.RedisAddr)
	} else {
		cache = travel.NewMemoryCache(cfg.TravelCacheTTL)
	}

	search := places.NewService(gc, logging.Component(logger, "places"))
	estimator := travel.NewEstimator(gc, cache, logging.Component(logger, "travel"))
	estimator.Workers = cfg.MatrixWorkers
	ranker := &ranking.Engine{Strategy: ranking.ParseStrategy(cfg.RankingStrategy)}

	p := planner.New(store, search, estimator, ranker, logging.Component(logger, "planner"))
	p.SearchRadiusMeters = cfg.SearchRadiusMeters

	if len(cfg.KafkaBrokers) > 0 {
		kp := ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		p.Events = kp
		logger.Info("room events published to kafka", "topic", cfg.KafkaTopic)
	}

	wsreg := dispatch.NewWSRegistry()
	p.Notifier = wsreg

	srv := httpapi.NewServer(p, gc, wsreg, cfg.TopN, logging.Component(logger, "http"))

	httpSrv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("meetpoint listening", "addr", cfg.HTTPAddr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "error", err)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

// buildStore prefers Mongo, then Postgres, then in-memory.
func buildStore(cfg config.ServerConfig) (storage.RoomStore, func(), error) {
	if cfg.MongoURI != "" {
		ms, err := storage.NewMongoStore(cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, nil, err
		}
		return ms, func() { _ = ms.Close(context.Background()) }, nil
	}
	if cfg.PGDSN != "" {
		ps, err := storage.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			return nil, nil, err
		}
		return ps, func() { _ = ps.Close() }, nil
	}
	return storage.NewMemoryStore(), func() {}, nil
}

func runMigrations(dsn string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	b, err := os.ReadFile(filepath.Join("migrations", "001_create_rooms.sql"))
	if err != nil {
		return err
	}
	_, err = db.Exec(string(b))
	return err
}
