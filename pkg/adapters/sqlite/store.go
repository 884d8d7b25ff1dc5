// Package sqlite persists traces, assessment history and flow documents in
// a single SQLite database using the pure-Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aretw0/quorum/pkg/domain"
	"github.com/aretw0/quorum/pkg/flow"
	"github.com/aretw0/quorum/pkg/ports"

	_ "modernc.org/sqlite"
)

// nowUTC returns the current UTC time as an RFC 3339 string.
func nowUTC() string { return time.Now().UTC().Format(time.RFC3339Nano) }

// nullStr converts a sql.NullString to a plain string (empty if null).
func nullStr(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// Store implements ports.TraceStore, ports.AssessmentRecorder and
// ports.FlowRepository with SQLite.
type Store struct {
	db *sql.DB
}

// Open opens or creates a SQLite DB at path and runs migrations.
// Creates the parent directory if it does not exist.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite allows a single writer; serializing connections avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	var tableCount int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableCount)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableCount == 0 {
		return s.freshInstall()
	}

	var v int
	err = s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return s.freshInstall()
	}
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if v != currentSchemaVersion {
		return fmt.Errorf("unknown schema version %d", v)
	}
	return nil
}

func (s *Store) freshInstall() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(schemaV1); err != nil {
		return fmt.Errorf("create v1 schema: %w", err)
	}
	if _, err := tx.Exec("INSERT INTO schema_version(version) VALUES(?)", currentSchemaVersion); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	return tx.Commit()
}

// SaveTrace stores the full result as JSON next to a few queryable columns.
func (s *Store) SaveTrace(ctx context.Context, result *domain.ExecutionResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal trace: %w", err)
	}
	var kind string
	if result.Error != nil {
		kind = string(result.Error.Kind)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO traces(instance_id, flow_id, flow_version, status, error_kind, final_node, started_at, finished_at, data)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(instance_id) DO UPDATE SET
		   flow_id=excluded.flow_id, flow_version=excluded.flow_version, status=excluded.status,
		   error_kind=excluded.error_kind, final_node=excluded.final_node,
		   started_at=excluded.started_at, finished_at=excluded.finished_at, data=excluded.data`,
		result.InstanceID, result.FlowID, result.FlowVersion, string(result.Status), kind, result.FinalNodeID,
		result.StartedAt.UTC().Format(time.RFC3339Nano), result.FinishedAt.UTC().Format(time.RFC3339Nano), string(data),
	)
	if err != nil {
		return fmt.Errorf("save trace: %w", err)
	}
	return nil
}

// LoadTrace reads a stored result.
func (s *Store) LoadTrace(ctx context.Context, instanceID string) (*domain.ExecutionResult, error) {
	var data string
	err := s.db.QueryRowContext(ctx, "SELECT data FROM traces WHERE instance_id = ?", instanceID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrTraceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load trace: %w", err)
	}
	var res domain.ExecutionResult
	if err := json.Unmarshal([]byte(data), &res); err != nil {
		return nil, fmt.Errorf("unmarshal trace: %w", err)
	}
	return &res, nil
}

// ListTraces returns instance ids, oldest run first.
func (s *Store) ListTraces(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT instance_id FROM traces ORDER BY started_at, instance_id")
	if err != nil {
		return nil, fmt.Errorf("list traces: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan trace id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RecordAssessment inserts one history row.
func (s *Store) RecordAssessment(ctx context.Context, rec domain.AssessmentRecord) error {
	recordedAt := rec.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now()
	}
	a := rec.Assessment
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO assessments(instance_id, flow_id, node_id, level, recommended_path, rationale, provider, recorded_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.InstanceID, rec.FlowID, rec.NodeID, string(a.Level), a.RecommendedPath, a.Rationale, a.Provider,
		recordedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record assessment: %w", err)
	}
	return nil
}

// ListAssessments returns history rows in insertion order.
func (s *Store) ListAssessments(ctx context.Context, instanceID string) ([]domain.AssessmentRecord, error) {
	query := `SELECT instance_id, flow_id, node_id, level, recommended_path, rationale, provider, recorded_at
	          FROM assessments`
	var args []any
	if instanceID != "" {
		query += " WHERE instance_id = ?"
		args = append(args, instanceID)
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	defer rows.Close()

	out := []domain.AssessmentRecord{}
	for rows.Next() {
		var (
			rec                       domain.AssessmentRecord
			level, recordedAt         string
			path, rationale, provider sql.NullString
		)
		if err := rows.Scan(&rec.InstanceID, &rec.FlowID, &rec.NodeID, &level, &path, &rationale, &provider, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan assessment: %w", err)
		}
		rec.Assessment = domain.RiskAssessment{
			Level:           domain.RiskLevel(level),
			RecommendedPath: nullStr(path),
			Rationale:       nullStr(rationale),
			Provider:        nullStr(provider),
		}
		if t, err := time.Parse(time.RFC3339Nano, recordedAt); err == nil {
			rec.RecordedAt = t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SaveGraph upserts a flow document.
func (s *Store) SaveGraph(ctx context.Context, flowID, version string, data []byte, format flow.Format) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO flows(flow_id, version, format, data, updated_at) VALUES(?, ?, ?, ?, ?)
		 ON CONFLICT(flow_id, version) DO UPDATE SET format=excluded.format, data=excluded.data, updated_at=excluded.updated_at`,
		flowID, version, string(format), data, nowUTC(),
	)
	if err != nil {
		return fmt.Errorf("save flow: %w", err)
	}
	return nil
}

// LoadGraph reads a flow document.
func (s *Store) LoadGraph(ctx context.Context, flowID, version string) ([]byte, flow.Format, error) {
	var (
		data   []byte
		format string
	)
	err := s.db.QueryRowContext(ctx, "SELECT data, format FROM flows WHERE flow_id = ? AND version = ?", flowID, version).Scan(&data, &format)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", domain.ErrFlowNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("load flow: %w", err)
	}
	return data, flow.Format(format), nil
}

// ListFlows returns every stored ref ordered by id and version.
func (s *Store) ListFlows(ctx context.Context) ([]ports.FlowRef, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT flow_id, version FROM flows ORDER BY flow_id, version")
	if err != nil {
		return nil, fmt.Errorf("list flows: %w", err)
	}
	defer rows.Close()

	refs := []ports.FlowRef{}
	for rows.Next() {
		var ref ports.FlowRef
		if err := rows.Scan(&ref.FlowID, &ref.Version); err != nil {
			return nil, fmt.Errorf("scan flow ref: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}
