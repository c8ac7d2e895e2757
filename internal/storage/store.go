// Package storage persists verified reference labels, the approved texts
// that production extractions are compared against.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/verilabel-ai/verilabel/internal/config"
)

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// LabelStatus values accepted for a verified label.
const (
	StatusVerified = "verified"
	StatusRejected = "rejected"
)

// VerifiedLabel is an approved reference text for one pharmaceutical label.
type VerifiedLabel struct {
	ID           uuid.UUID `json:"id"`
	ControlName  string    `json:"control_name"`
	VerifiedText string    `json:"verified_text"`
	Status       string    `json:"status"`
	ApprovedAt   time.Time `json:"approved_at"`
}

const schema = `
CREATE TABLE IF NOT EXISTS verified_labels (
	id            TEXT PRIMARY KEY,
	control_name  TEXT NOT NULL,
	verified_text TEXT NOT NULL,
	status        TEXT NOT NULL,
	approved_at   TIMESTAMP NOT NULL
)`

// Store provides verified-label CRUD over database/sql. Both the sqlite and
// postgres drivers are supported; numbered placeholders work on either.
type Store struct {
	db *sql.DB
}

// Open connects to the configured database and ensures the schema exists.
func Open(cfg config.StorageConfig) (*Store, error) {
	driver := cfg.Driver
	dsn := cfg.Postgres.DSN
	if driver == "sqlite" {
		driver = "sqlite3"
		dsn = cfg.SQLite.Path
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if cfg.Driver == "postgres" {
		db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.Postgres.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Create inserts a new verified label, assigning its ID and approval time.
func (s *Store) Create(ctx context.Context, label *VerifiedLabel) error {
	if label.ID == uuid.Nil {
		label.ID = uuid.New()
	}
	if label.Status == "" {
		label.Status = StatusVerified
	}
	label.ApprovedAt = time.Now().UTC()

	query := `
		INSERT INTO verified_labels (id, control_name, verified_text, status, approved_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.ExecContext(ctx, query,
		label.ID.String(), label.ControlName, label.VerifiedText, label.Status, label.ApprovedAt,
	)
	return err
}

// Get retrieves a verified label by ID.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*VerifiedLabel, error) {
	query := `
		SELECT id, control_name, verified_text, status, approved_at
		FROM verified_labels WHERE id = $1
	`
	return s.scanOne(s.db.QueryRowContext(ctx, query, id.String()))
}

// List returns verified labels newest first.
func (s *Store) List(ctx context.Context, limit, offset int) ([]*VerifiedLabel, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, control_name, verified_text, status, approved_at
		FROM verified_labels
		ORDER BY approved_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	labels := make([]*VerifiedLabel, 0)
	for rows.Next() {
		label, err := scanLabel(rows.Scan)
		if err != nil {
			return nil, err
		}
		labels = append(labels, label)
	}
	return labels, rows.Err()
}

// Update rewrites a verified label's mutable fields.
func (s *Store) Update(ctx context.Context, label *VerifiedLabel) error {
	query := `
		UPDATE verified_labels
		SET control_name = $1, verified_text = $2, status = $3
		WHERE id = $4
	`
	result, err := s.db.ExecContext(ctx, query,
		label.ControlName, label.VerifiedText, label.Status, label.ID.String(),
	)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

// Delete removes a verified label.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM verified_labels WHERE id = $1`, id.String())
	if err != nil {
		return err
	}
	return checkAffected(result)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) scanOne(row *sql.Row) (*VerifiedLabel, error) {
	label, err := scanLabel(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return label, nil
}

func scanLabel(scan func(dest ...any) error) (*VerifiedLabel, error) {
	var label VerifiedLabel
	var id string
	if err := scan(&id, &label.ControlName, &label.VerifiedText, &label.Status, &label.ApprovedAt); err != nil {
		return nil, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("corrupt label id %q: %w", id, err)
	}
	label.ID = parsed
	return &label, nil
}

func checkAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
