package syncer

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	// defaultRetention is how many pass reports the store keeps.
	defaultRetention = 200

	// startedAtLayout has fixed width so started_at sorts as text.
	startedAtLayout = "2006-01-02T15:04:05.000000000Z"
)

// PassStore persists pass reports in the sync_passes table. It is a
// Reporter, so it is registered like the others.
type PassStore struct {
	db        *sql.DB
	retention int
}

// NewPassStore creates a store on an open, migrated connection.
func NewPassStore(db *sql.DB) *PassStore {
	return &PassStore{db: db, retention: defaultRetention}
}

// ReportPass stores r and prunes reports beyond the retention limit.
func (s *PassStore) ReportPass(ctx context.Context, r Report) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshalling pass report: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sync_passes (pass_id, started_at, duration_ms, report)
		VALUES (?, ?, ?, ?)`,
		r.PassID, r.StartedAt.UTC().Format(startedAtLayout), r.Duration.Milliseconds(), string(payload))
	if err != nil {
		return fmt.Errorf("inserting pass report: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		DELETE FROM sync_passes
		WHERE pass_id NOT IN (
			SELECT pass_id FROM sync_passes ORDER BY started_at DESC LIMIT ?
		)`, s.retention)
	if err != nil {
		return fmt.Errorf("pruning pass reports: %w", err)
	}
	return nil
}

// Last returns the most recent stored report; false when none exists.
func (s *PassStore) Last(ctx context.Context) (Report, bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `
		SELECT report FROM sync_passes ORDER BY started_at DESC LIMIT 1`).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return Report{}, false, nil
	}
	if err != nil {
		return Report{}, false, fmt.Errorf("querying last pass report: %w", err)
	}

	var r Report
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return Report{}, false, fmt.Errorf("decoding pass report: %w", err)
	}
	return r, true, nil
}

// Recent returns up to limit reports, newest first.
func (s *PassStore) Recent(ctx context.Context, limit int) ([]Report, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT report FROM sync_passes ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying pass reports: %w", err)
	}
	defer rows.Close()

	var out []Report
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scanning pass report: %w", err)
		}
		var r Report
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			return nil, fmt.Errorf("decoding pass report: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pass reports: %w", err)
	}
	return out, nil
}
