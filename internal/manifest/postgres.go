package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/aodgrid/internal/gridding"
)

var migrations = []string{`
CREATE TABLE IF NOT EXISTS grid_runs (
	id              UUID PRIMARY KEY,
	run_date        DATE NOT NULL,
	product         TEXT NOT NULL,
	status          TEXT NOT NULL,
	config_hash     TEXT NOT NULL DEFAULT '',
	files_ok        JSONB NOT NULL DEFAULT '[]',
	files_failed    JSONB NOT NULL DEFAULT '[]',
	pixels_total    BIGINT NOT NULL DEFAULT 0,
	pixels_accepted BIGINT NOT NULL DEFAULT 0,
	cells_filled    INTEGER NOT NULL DEFAULT 0,
	output_path     TEXT NOT NULL DEFAULT '',
	error           TEXT NOT NULL DEFAULT '',
	started_at      TIMESTAMPTZ NOT NULL,
	finished_at     TIMESTAMPTZ,
	UNIQUE (run_date, product)
)`,
	`CREATE INDEX IF NOT EXISTS grid_runs_started_at_idx ON grid_runs (started_at DESC)`,
}

const selectColumns = `
	id, run_date, product, status, config_hash, files_ok, files_failed,
	pixels_total, pixels_accepted, cells_filled, output_path, error,
	started_at, finished_at
`

// PostgresStore handles run history persistence
// ⭐ SSOT: grid_runs 테이블 접근은 이 저장소에서만
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new run history repository
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the grid_runs table when missing
func (s *PostgresStore) Migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate grid_runs: %w", err)
		}
	}
	return nil
}

// Save implements Store
func (s *PostgresStore) Save(ctx context.Context, r *Record) error {
	filesOK, err := json.Marshal(nonNil(r.FilesOK))
	if err != nil {
		return fmt.Errorf("marshal files_ok: %w", err)
	}
	failed := r.FilesFailed
	if failed == nil {
		failed = []gridding.FileFailure{}
	}
	filesFailed, err := json.Marshal(failed)
	if err != nil {
		return fmt.Errorf("marshal files_failed: %w", err)
	}

	query := `
		INSERT INTO grid_runs (
			id, run_date, product, status, config_hash, files_ok, files_failed,
			pixels_total, pixels_accepted, cells_filled, output_path, error,
			started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (run_date, product) DO UPDATE SET
			status = EXCLUDED.status,
			config_hash = EXCLUDED.config_hash,
			files_ok = EXCLUDED.files_ok,
			files_failed = EXCLUDED.files_failed,
			pixels_total = EXCLUDED.pixels_total,
			pixels_accepted = EXCLUDED.pixels_accepted,
			cells_filled = EXCLUDED.cells_filled,
			output_path = EXCLUDED.output_path,
			error = EXCLUDED.error,
			started_at = EXCLUDED.started_at,
			finished_at = EXCLUDED.finished_at
		RETURNING id
	`

	err = s.pool.QueryRow(ctx, query,
		r.ID,
		r.RunDate,
		r.Product,
		string(r.Status),
		r.ConfigHash,
		filesOK,
		filesFailed,
		r.PixelsTotal,
		r.PixelsAccepted,
		r.CellsFilled,
		r.OutputPath,
		r.Error,
		r.StartedAt,
		r.FinishedAt,
	).Scan(&r.ID)
	if err != nil {
		return fmt.Errorf("save grid run: %w", err)
	}
	return nil
}

// Get implements Store
func (s *PostgresStore) Get(ctx context.Context, date time.Time, product string) (*Record, error) {
	query := `SELECT ` + selectColumns + ` FROM grid_runs WHERE run_date = $1 AND product = $2`

	rec, err := scanRecord(s.pool.QueryRow(ctx, query, date, product))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get grid run: %w", err)
	}
	return rec, nil
}

// List implements Store
func (s *PostgresStore) List(ctx context.Context, from, to time.Time) ([]*Record, error) {
	query := `SELECT ` + selectColumns + `
		FROM grid_runs
		WHERE run_date BETWEEN $1 AND $2
		ORDER BY run_date, product`

	return s.query(ctx, query, from, to)
}

// Recent implements Store
func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + selectColumns + `
		FROM grid_runs
		ORDER BY started_at DESC
		LIMIT $1`

	return s.query(ctx, query, limit)
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...interface{}) ([]*Record, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query grid runs: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan grid run: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanRecord(row pgx.Row) (*Record, error) {
	var (
		rec         Record
		id          uuid.UUID
		status      string
		filesOK     []byte
		filesFailed []byte
	)
	err := row.Scan(
		&id,
		&rec.RunDate,
		&rec.Product,
		&status,
		&rec.ConfigHash,
		&filesOK,
		&filesFailed,
		&rec.PixelsTotal,
		&rec.PixelsAccepted,
		&rec.CellsFilled,
		&rec.OutputPath,
		&rec.Error,
		&rec.StartedAt,
		&rec.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.ID = id
	rec.Status = Status(status)
	if err := json.Unmarshal(filesOK, &rec.FilesOK); err != nil {
		return nil, fmt.Errorf("decode files_ok: %w", err)
	}
	if err := json.Unmarshal(filesFailed, &rec.FilesFailed); err != nil {
		return nil, fmt.Errorf("decode files_failed: %w", err)
	}
	return &rec, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
