package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps records in the analysis_sessions table (see
// database.Schema).
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore returns a store backed by db.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Load(ctx context.Context, endpoint string) (Record, error) {
	query := `
		SELECT analysis_id, analyses_version, updated_at
		FROM analysis_sessions
		WHERE endpoint = $1
	`

	var rec Record
	err := s.db.QueryRow(ctx, query, endpoint).Scan(&rec.AnalysisID, &rec.AnalysesVersion, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("query session: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) Save(ctx context.Context, endpoint string, rec Record) error {
	query := `
		INSERT INTO analysis_sessions (endpoint, analysis_id, analyses_version, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (endpoint) DO UPDATE SET
			analysis_id = EXCLUDED.analysis_id,
			analyses_version = EXCLUDED.analyses_version,
			updated_at = EXCLUDED.updated_at
	`

	if _, err := s.db.Exec(ctx, query, endpoint, rec.AnalysisID, rec.AnalysesVersion, rec.UpdatedAt); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}
