package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Investigation statuses.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

var ErrNotFound = errors.New("not found")

type Investigation struct {
	ID        uuid.UUID       `json:"id"`
	Kind      string          `json:"kind"`
	Subject   string          `json:"subject"`
	Question  string          `json:"question"`
	Status    string          `json:"status"`
	Params    json.RawMessage `json:"params,omitempty"`
	State     json.RawMessage `json:"state,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Report    *string         `json:"report,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type LogEntry struct {
	ID        int             `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Level     string          `json:"level"`
	Message   string          `json:"message"`
	Metadata  json.RawMessage `json:"metadata"`
}

const investigationColumns = `id, kind, subject, question, status, params, state, result, report, created_at, updated_at`

func scanInvestigation(row pgx.Row) (*Investigation, error) {
	inv := &Investigation{}
	err := row.Scan(&inv.ID, &inv.Kind, &inv.Subject, &inv.Question, &inv.Status,
		&inv.Params, &inv.State, &inv.Result, &inv.Report, &inv.CreatedAt, &inv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return inv, err
}

func (db *PostgresDB) CreateInvestigation(ctx context.Context, kind, subject, question string, params any) (*Investigation, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}
	row := db.Pool.QueryRow(ctx, `
		INSERT INTO investigations (id, kind, subject, question, status, params)
		VALUES ($1, $2, $3, $4, 'pending', $5)
		RETURNING `+investigationColumns,
		uuid.New(), kind, subject, question, paramsJSON)
	inv, err := scanInvestigation(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create investigation: %w", err)
	}
	return inv, nil
}

func (db *PostgresDB) GetInvestigation(ctx context.Context, id uuid.UUID) (*Investigation, error) {
	row := db.Pool.QueryRow(ctx, `SELECT `+investigationColumns+` FROM investigations WHERE id = $1`, id)
	inv, err := scanInvestigation(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get investigation: %w", err)
	}
	return inv, nil
}

func (db *PostgresDB) ListInvestigations(ctx context.Context, limit int) ([]Investigation, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT `+investigationColumns+` FROM investigations
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list investigations: %w", err)
	}
	defer rows.Close()

	var out []Investigation
	for rows.Next() {
		inv, err := scanInvestigation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan investigation: %w", err)
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

func (db *PostgresDB) SetInvestigationStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := db.Pool.Exec(ctx,
		"UPDATE investigations SET status = $2, updated_at = NOW() WHERE id = $1", id, status)
	return err
}

func (db *PostgresDB) SaveInvestigationState(ctx context.Context, id uuid.UUID, state any) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	_, err = db.Pool.Exec(ctx,
		"UPDATE investigations SET state = $2, updated_at = NOW() WHERE id = $1", id, stateJSON)
	return err
}

// CompleteInvestigation stores the result and the rendered report and marks
// the investigation completed.
func (db *PostgresDB) CompleteInvestigation(ctx context.Context, id uuid.UUID, result any, report string) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	_, err = db.Pool.Exec(ctx, `
		UPDATE investigations
		SET status = 'completed', result = $2, report = $3, updated_at = NOW()
		WHERE id = $1`, id, resultJSON, report)
	return err
}

func (db *PostgresDB) InsertLog(ctx context.Context, id uuid.UUID, ts time.Time, level, message string, metadata []byte) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO investigation_logs (investigation_id, timestamp, level, message, metadata)
		VALUES ($1, $2, $3, $4, $5)`, id, ts, level, message, metadata)
	return err
}

func (db *PostgresDB) GetLogs(ctx context.Context, id uuid.UUID) ([]LogEntry, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, timestamp, level, message, metadata
		FROM investigation_logs
		WHERE investigation_id = $1
		ORDER BY id ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get logs: %w", err)
	}
	defer rows.Close()

	var logs []LogEntry
	for rows.Next() {
		var l LogEntry
		if err := rows.Scan(&l.ID, &l.Timestamp, &l.Level, &l.Message, &l.Metadata); err != nil {
			return nil, fmt.Errorf("failed to scan log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
