// Package delivery keeps a ledger of webhook deliveries. Slack redelivers an
// event when the first attempt fails or times out; the ledger counts those
// attempts for operators. It never decides whether an event gets handled.
package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"mooai/internal/config"
	"mooai/internal/metrics"
	"mooai/internal/models"
	"mooai/internal/redis"
	"mooai/internal/storage"
)

// Store persists delivery attempts and reports how many times an event id has
// been seen, including this one.
type Store interface {
	Record(ctx context.Context, d models.Delivery) (int64, error)
	Close() error
}

// Ledger records deliveries in a Store and reports redeliveries.
type Ledger struct {
	store   Store
	metrics *metrics.Metrics
	log     *slog.Logger
}

func NewLedger(store Store, m *metrics.Metrics, log *slog.Logger) *Ledger {
	if log == nil {
		log = slog.Default()
	}
	return &Ledger{store: store, metrics: m, log: log}
}

// Open builds the ledger for the configured backend.
func Open(ctx context.Context, cfg *config.Config, m *metrics.Metrics, log *slog.Logger) (*Ledger, error) {
	backend := strings.ToLower(cfg.Delivery.Backend)
	var store Store
	switch backend {
	case "", "none":
		store = nopStore{}
	case "redis":
		client, err := redis.NewRedisClient(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("open redis ledger: %w", err)
		}
		store = NewRedisStore(client, time.Duration(cfg.Delivery.TTL)*time.Second)
	case "sqlite", "sqlite3", "mysql":
		db, err := storage.Open(backend, cfg)
		if err != nil {
			return nil, fmt.Errorf("open %s ledger: %w", backend, err)
		}
		if err := storage.Migrate(db, backend); err != nil {
			db.Close()
			return nil, err
		}
		store = NewSQLStore(db, backend)
	default:
		return nil, fmt.Errorf("unsupported delivery backend: %s", cfg.Delivery.Backend)
	}
	return NewLedger(store, m, log), nil
}

// Record stores d and returns the number of attempts seen for its event id.
func (l *Ledger) Record(ctx context.Context, d models.Delivery) (int64, error) {
	if d.EventID == "" {
		return 0, nil
	}
	attempts, err := l.store.Record(ctx, d)
	if err != nil {
		return 0, fmt.Errorf("record delivery %s: %w", d.EventID, err)
	}
	if attempts > 1 {
		l.metrics.ObserveRedelivery(d.Kind)
		l.log.Warn("event delivered more than once",
			"event_id", d.EventID,
			"kind", d.Kind,
			"attempts", attempts,
			"retry_num", d.RetryNum,
			"outcome", d.Outcome,
		)
	}
	return attempts, nil
}

func (l *Ledger) Close() error {
	if l == nil || l.store == nil {
		return nil
	}
	return l.store.Close()
}

type nopStore struct{}

func (nopStore) Record(context.Context, models.Delivery) (int64, error) { return 1, nil }
func (nopStore) Close() error                                           { return nil }
