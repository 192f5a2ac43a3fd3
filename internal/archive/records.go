package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const recordColumns = "id, correlation_id, entity_id, final_state, failure_reason, urgency, retry_count, error_count, created_at, completed_at, duration_seconds, history_json, context_json"

// Save inserts a terminal record and fills in its row id. Re-archiving the
// same correlation id is an error; retirement happens exactly once.
func (s *Store) Save(ctx context.Context, rec *Record) error {
	if rec == nil {
		return errors.New("record is nil")
	}
	if rec.CorrelationID == "" || rec.EntityID == "" {
		return errors.New("record missing correlation or entity id")
	}
	if rec.CompletedAt.IsZero() {
		rec.CompletedAt = time.Now().UTC()
	}

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO workflow_records (
            correlation_id, entity_id, final_state, failure_reason, urgency,
            retry_count, error_count, created_at, completed_at, duration_seconds,
            history_json, context_json
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.CorrelationID,
		rec.EntityID,
		rec.FinalState,
		nullableString(rec.FailureReason),
		nullableString(rec.Urgency),
		rec.RetryCount,
		rec.ErrorCount,
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		rec.CompletedAt.UTC().Format(time.RFC3339Nano),
		rec.Duration.Seconds(),
		nullableString(rec.HistoryJSON),
		nullableString(rec.ContextJSON),
	)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	rec.ID = id
	return nil
}

// GetByCorrelationID fetches one record, or nil when it was never archived.
func (s *Store) GetByCorrelationID(ctx context.Context, correlationID string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM workflow_records WHERE correlation_id = ?`, correlationID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

// ListByEntity returns an entity's retired workflows, newest first.
func (s *Store) ListByEntity(ctx context.Context, entityID string, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM workflow_records
         WHERE entity_id = ? ORDER BY completed_at DESC, id DESC LIMIT ?`,
		entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("list by entity: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

// List returns the most recently retired workflows across all entities.
func (s *Store) List(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM workflow_records
         ORDER BY completed_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

// CountByState groups archived records by their final state.
func (s *Store) CountByState(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT final_state, COUNT(1) FROM workflow_records GROUP BY final_state`)
	if err != nil {
		return nil, fmt.Errorf("archive stats: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, err
		}
		counts[state] = count
	}
	return counts, rows.Err()
}

// DeleteOlderThan prunes records retired before the cutoff and reports how
// many were removed.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`DELETE FROM workflow_records WHERE completed_at < ?`,
		cutoff.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("prune records: %w", err)
	}
	return res.RowsAffected()
}

func collectRecords(rows *sql.Rows) ([]*Record, error) {
	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*Record, error) {
	var (
		id            int64
		correlationID string
		entityID      string
		finalState    string
		failureReason sql.NullString
		urgency       sql.NullString
		retryCount    int
		errorCount    int
		createdRaw    sql.NullString
		completedRaw  sql.NullString
		durationSecs  sql.NullFloat64
		historyJSON   sql.NullString
		contextJSON   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&correlationID,
		&entityID,
		&finalState,
		&failureReason,
		&urgency,
		&retryCount,
		&errorCount,
		&createdRaw,
		&completedRaw,
		&durationSecs,
		&historyJSON,
		&contextJSON,
	); err != nil {
		return nil, err
	}

	rec := &Record{
		ID:            id,
		CorrelationID: correlationID,
		EntityID:      entityID,
		FinalState:    finalState,
		FailureReason: failureReason.String,
		Urgency:       urgency.String,
		RetryCount:    retryCount,
		ErrorCount:    errorCount,
		Duration:      time.Duration(durationSecs.Float64 * float64(time.Second)),
		HistoryJSON:   historyJSON.String,
		ContextJSON:   contextJSON.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		rec.CreatedAt = created
	}
	if completed, err := parseTimeString(completedRaw.String); err == nil {
		rec.CompletedAt = completed
	}
	return rec, nil
}
