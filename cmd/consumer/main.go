package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/example/meetpoint/internal/config"
	"github.com/example/meetpoint/internal/logging"
	"github.com/example/meetpoint/internal/models"
)

var (
	eventsConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_room_events_consumed_total",
		Help: "Total room events consumed",
	})
	eventsInvalid = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_room_events_invalid_total",
		Help: "Total undecodable room events",
	})
	snapshotUpdates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_snapshot_updates_total",
		Help: "Total successful tally snapshot updates",
	})
	snapshotErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_snapshot_errors_total",
		Help: "Total snapshot update failures",
	})
)

func init() {
	prometheus.MustRegister(eventsConsumed, eventsInvalid, snapshotUpdates, snapshotErrors)
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConsumerConfig()
	logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	rc := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	store := &redisSnapshots{c: rc, ttl: cfg.SnapshotTTL}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ok"))
		})
		mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			if err := rc.Ping(r.Context()).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
		})
		logger.Info("metrics listening", "addr", cfg.MetricsAddr)
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			logger.Error("metrics server stopped", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.KafkaTopic,
		GroupID: cfg.KafkaGroupID,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})
	defer func() {
		_ = r.Close()
		_ = rc.Close()
	}()

	logger.Info("consumer listening", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers, "group", cfg.KafkaGroupID)

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("shutting down consumer")
				return
			}
			logger.Warn("kafka read error", "error", err, "backoff", backoff)
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second
		eventsConsumed.Inc()

		var event models.RoomEvent
		if err := json.Unmarshal(m.Value, &event); err != nil {
			eventsInvalid.Inc()
			logger.Warn("invalid room event", "error", err)
			continue
		}

		if err := applyEventWithRetry(ctx, store, event, 3, 200*time.Millisecond); err != nil {
			snapshotErrors.Inc()
			logger.Error("snapshot update failed", "room", event.RoomCode, "type", event.Type, "error", err)
			continue
		}
		snapshotUpdates.Inc()
	}
}

// SnapshotStore is the subset of redis operations the consumer needs,
// kept small so tests can fake it.
type SnapshotStore interface {
	RecordTally(ctx context.Context, code, placeID string, tally int) error
	MarkFinalized(ctx context.Context, code, placeID string) error
}

type redisSnapshots struct {
	c   *redis.Client
	ttl time.Duration
}

func (r *redisSnapshots) RecordTally(ctx context.Context, code, placeID string, tally int) error {
	key := "room:tally:" + code
	if err := r.c.HSet(ctx, key, placeID, tally).Err(); err != nil {
		return err
	}
	return r.c.Expire(ctx, key, r.ttl).Err()
}

func (r *redisSnapshots) MarkFinalized(ctx context.Context, code, placeID string) error {
	return r.c.Set(ctx, "room:final:"+code, placeID, r.ttl).Err()
}

// applyEventWithRetry writes the event's snapshot with exponential backoff.
func applyEventWithRetry(ctx context.Context, store SnapshotStore, event models.RoomEvent, attempts int, delay time.Duration) error {
	var lastErr error
	for i := 0; i < attempts; i++ {
		if lastErr = applyEvent(ctx, store, event); lastErr == nil {
			return nil
		}
		if i < attempts-1 {
			time.Sleep(delay)
			delay *= 2
		}
	}
	return lastErr
}

func applyEvent(ctx context.Context, store SnapshotStore, event models.RoomEvent) error {
	switch event.Type {
	case models.EventVoteCast, models.EventVoteRetracted:
		return store.RecordTally(ctx, event.RoomCode, event.PlaceID, event.Tally)
	case models.EventRoomFinalized:
		if err := store.RecordTally(ctx, event.RoomCode, event.PlaceID, event.Tally); err != nil {
			return err
		}
		return store.MarkFinalized(ctx, event.RoomCode, event.PlaceID)
	default:
		// Unknown types are skipped rather than retried.
		return nil
	}
}
