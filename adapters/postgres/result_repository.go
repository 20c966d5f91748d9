package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"ramplab/domain/analysis"
	"ramplab/domain/core"
	"ramplab/ports"
)

// Schema is the DDL for the analysis results store. Results are stored as a
// JSONB document keyed by the content-derived ID, with the provenance fields
// lifted into columns for querying.
const Schema = `
CREATE TABLE IF NOT EXISTS analysis_results (
	id                  TEXT PRIMARY KEY,
	session_id          TEXT NOT NULL,
	session_fingerprint TEXT NOT NULL,
	config_hash         TEXT NOT NULL,
	algorithm_version   TEXT NOT NULL,
	document            JSONB NOT NULL,
	created_at          TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_analysis_results_session
	ON analysis_results (session_id, created_at DESC);
`

// ResultRepositoryImpl implements ResultRepository for PostgreSQL
type ResultRepositoryImpl struct {
	db *sqlx.DB
}

// NewResultRepository creates a new PostgreSQL result repository
func NewResultRepository(db *sqlx.DB) ports.ResultRepository {
	return &ResultRepositoryImpl{db: db}
}

// EnsureSchema creates the results table if it does not exist
func (r *ResultRepositoryImpl) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, Schema)
	return err
}

// Save stores an analysis result as a JSONB document. The ID is derived from
// the inputs, so a unique violation means the identical result is already
// stored and the save is treated as a no-op.
func (r *ResultRepositoryImpl) Save(ctx context.Context, result *analysis.AnalysisResult) error {
	doc, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encoding analysis result: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO analysis_results (id, session_id, session_fingerprint, config_hash, algorithm_version, document, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, result.ID.String(), result.Provenance.SessionID.String(),
		result.Provenance.SessionFingerprint.String(), result.Provenance.ConfigHash.String(),
		result.Provenance.AlgorithmVersion, doc, time.Now().UTC())

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return nil
	}
	return err
}

// Get retrieves a result by its ID
func (r *ResultRepositoryImpl) Get(ctx context.Context, id core.AnalysisID) (*analysis.AnalysisResult, error) {
	var doc []byte
	err := r.db.GetContext(ctx, &doc, `
		SELECT document FROM analysis_results WHERE id = $1
	`, id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", core.ErrAnalysisNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return decodeResult(doc)
}

// ListBySession returns all results recorded for a session, newest first
func (r *ResultRepositoryImpl) ListBySession(ctx context.Context, sessionID core.SessionID, limit int) ([]*analysis.AnalysisResult, error) {
	query := `
		SELECT document FROM analysis_results
		WHERE session_id = $1
		ORDER BY created_at DESC
	`
	args := []interface{}{sessionID.String()}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	var docs [][]byte
	if err := r.db.SelectContext(ctx, &docs, query, args...); err != nil {
		return nil, err
	}

	results := make([]*analysis.AnalysisResult, 0, len(docs))
	for _, doc := range docs {
		result, err := decodeResult(doc)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

// Delete removes a result by its ID
func (r *ResultRepositoryImpl) Delete(ctx context.Context, id core.AnalysisID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM analysis_results WHERE id = $1`, id.String())
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", core.ErrAnalysisNotFound, id)
	}
	return nil
}

func decodeResult(doc []byte) (*analysis.AnalysisResult, error) {
	var result analysis.AnalysisResult
	if err := json.Unmarshal(doc, &result); err != nil {
		return nil, fmt.Errorf("decoding analysis result: %w", err)
	}
	return &result, nil
}
