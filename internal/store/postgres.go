package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/knotbyt/BF6-application/internal/clan"
)

// PostgresStore keeps each clan as one JSONB document. It implements the
// same whole-collection contract as the file store: Save replaces the
// entire table in one transaction.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the clans table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS clans (
			id         TEXT PRIMARY KEY,
			doc        JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure clans schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context) ([]clan.Clan, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT doc FROM clans ORDER BY updated_at`)
	if err != nil {
		return nil, fmt.Errorf("%w: query clans: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	clans := []clan.Clan{}
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("%w: scan clan: %v", ErrUnavailable, err)
		}
		var c clan.Clan
		if err := json.Unmarshal(doc, &c); err != nil {
			return nil, fmt.Errorf("%w: decode clan doc: %v", ErrUnavailable, err)
		}
		clans = append(clans, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate clans: %v", ErrUnavailable, err)
	}
	return clans, nil
}

func (s *PostgresStore) Save(ctx context.Context, clans []clan.Clan) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", ErrWriteFailed, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM clans`); err != nil {
		return fmt.Errorf("%w: clear clans: %v", ErrWriteFailed, err)
	}
	for _, c := range clans {
		doc, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("%w: encode clan %s: %v", ErrWriteFailed, c.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO clans (id, doc, updated_at) VALUES ($1, $2, NOW())
		`, c.ID, doc); err != nil {
			return fmt.Errorf("%w: insert clan %s: %v", ErrWriteFailed, c.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrWriteFailed, err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
