package ports

import (
	"context"

	"ramplab/domain/analysis"
	"ramplab/domain/core"
)

// ResultRepository defines persistence for analysis results
type ResultRepository interface {
	// Save stores an analysis result. Saving the same ID twice is a no-op:
	// results are content-addressed, so a duplicate ID means identical content.
	Save(ctx context.Context, result *analysis.AnalysisResult) error

	// Get retrieves a result by its ID
	Get(ctx context.Context, id core.AnalysisID) (*analysis.AnalysisResult, error)

	// ListBySession returns all results recorded for a session, newest first
	ListBySession(ctx context.Context, sessionID core.SessionID, limit int) ([]*analysis.AnalysisResult, error)

	// Delete removes a result by its ID
	Delete(ctx context.Context, id core.AnalysisID) error
}
