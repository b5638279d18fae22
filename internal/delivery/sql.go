package delivery

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"mooai/internal/models"
)

type SQLStore struct {
	db     *sql.DB
	upsert string
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	upsert := `INSERT INTO deliveries (event_id, kind, attempts, retry_num, last_outcome, last_duration_ms, created_at, updated_at)
		VALUES (?, ?, 1, ?, ?, ?, ?, ?)
		ON CONFLICT(event_id) DO UPDATE SET
			attempts = attempts + 1,
			retry_num = excluded.retry_num,
			last_outcome = excluded.last_outcome,
			last_duration_ms = excluded.last_duration_ms,
			updated_at = excluded.updated_at`
	if strings.EqualFold(driver, "mysql") {
		upsert = `INSERT INTO deliveries (event_id, kind, attempts, retry_num, last_outcome, last_duration_ms, created_at, updated_at)
		VALUES (?, ?, 1, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			attempts = attempts + 1,
			retry_num = VALUES(retry_num),
			last_outcome = VALUES(last_outcome),
			last_duration_ms = VALUES(last_duration_ms),
			updated_at = VALUES(updated_at)`
	}
	return &SQLStore{db: db, upsert: upsert}
}

func (s *SQLStore) Record(ctx context.Context, d models.Delivery) (int64, error) {
	received := d.ReceivedAt
	if received.IsZero() {
		received = time.Now()
	}
	received = received.UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.upsert,
		d.EventID, d.Kind, d.RetryNum, string(d.Outcome), d.Duration.Milliseconds(), received, received,
	); err != nil {
		return 0, fmt.Errorf("upsert delivery: %w", err)
	}
	var attempts int64
	if err := tx.QueryRowContext(ctx, `SELECT attempts FROM deliveries WHERE event_id = ?`, d.EventID).Scan(&attempts); err != nil {
		return 0, fmt.Errorf("read attempts: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit delivery: %w", err)
	}
	return attempts, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
