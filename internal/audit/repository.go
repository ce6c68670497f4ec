// Package audit records every routed command for operator review.
//
// The trail stores command dispatches (who asked which entry to do what,
// and how it went), not device state. It hangs off the router as an
// observer, so routing never depends on audit being enabled.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Record is one routed command in the audit trail.
type Record struct {
	ID          string         `json:"id"`
	EntryID     string         `json:"entry_id"`
	AdapterType string         `json:"adapter_type,omitempty"`
	Operation   string         `json:"operation"`
	Outcome     string         `json:"outcome"`
	Params      map[string]any `json:"params,omitempty"`
	DurationMS  int64          `json:"duration_ms"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Filter controls which records to return.
type Filter struct {
	EntryID   string // optional: filter by entry id
	Operation string // optional: filter by operation name
	Outcome   string // optional: filter by outcome ("success" or a failure kind)
	Limit     int    // default 50, max 200
	Offset    int    // pagination offset
}

// ListResult contains the paginated audit results.
type ListResult struct {
	Records []Record `json:"records"`
	Total   int      `json:"total"`
	Limit   int      `json:"limit"`
	Offset  int      `json:"offset"`
}

// Repository defines the interface for audit trail operations.
type Repository interface {
	Create(ctx context.Context, rec *Record) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository stores command records in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new audit repository and ensures its schema
// exists. The table is owned by this package; the database package only
// owns the connection.
func NewSQLiteRepository(ctx context.Context, db *sql.DB) (*SQLiteRepository, error) {
	const schema = `
		CREATE TABLE IF NOT EXISTS command_log (
			id           TEXT PRIMARY KEY,
			entry_id     TEXT NOT NULL,
			adapter_type TEXT,
			operation    TEXT NOT NULL,
			outcome      TEXT NOT NULL,
			params       TEXT,
			duration_ms  INTEGER NOT NULL,
			created_at   TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_command_log_entry ON command_log(entry_id);
		CREATE INDEX IF NOT EXISTS idx_command_log_created ON command_log(created_at);`

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("ensuring audit schema: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

// Create inserts a new command record. ID and CreatedAt are generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		rec.ID = "cmd-" + uuid.NewString()[:8]
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	var paramsJSON *string
	if rec.Params != nil {
		b, err := json.Marshal(rec.Params)
		if err != nil {
			return fmt.Errorf("marshalling command params: %w", err)
		}
		s := string(b)
		paramsJSON = &s
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO command_log (id, entry_id, adapter_type, operation, outcome, params, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.EntryID, nullableString(rec.AdapterType),
		rec.Operation, rec.Outcome, paramsJSON,
		rec.DurationMS, rec.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting command record: %w", err)
	}

	return nil
}

// nullableString returns nil for empty strings, used for nullable TEXT columns.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns command records matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	// Clamp limit.
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 200 {
		filter.Limit = 200
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any
	if filter.EntryID != "" {
		conditions = append(conditions, "entry_id = ?")
		args = append(args, filter.EntryID)
	}
	if filter.Operation != "" {
		conditions = append(conditions, "operation = ?")
		args = append(args, filter.Operation)
	}
	if filter.Outcome != "" {
		conditions = append(conditions, "outcome = ?")
		args = append(args, filter.Outcome)
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM command_log"+where, args...,
	).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting command records: %w", err)
	}

	query := `SELECT id, entry_id, adapter_type, operation, outcome, params, duration_ms, created_at
		FROM command_log` + where + ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("querying command records: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only cursor

	records := make([]Record, 0, filter.Limit)
	for rows.Next() {
		var (
			rec         Record
			adapterType sql.NullString
			paramsJSON  sql.NullString
			createdAt   string
		)
		if err := rows.Scan(&rec.ID, &rec.EntryID, &adapterType, &rec.Operation,
			&rec.Outcome, &paramsJSON, &rec.DurationMS, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning command record: %w", err)
		}
		rec.AdapterType = adapterType.String
		if paramsJSON.Valid {
			if err := json.Unmarshal([]byte(paramsJSON.String), &rec.Params); err != nil {
				return nil, fmt.Errorf("decoding command params: %w", err)
			}
		}
		if ts, err := time.Parse(time.RFC3339, createdAt); err == nil {
			rec.CreatedAt = ts
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating command records: %w", err)
	}

	return &ListResult{
		Records: records,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}
