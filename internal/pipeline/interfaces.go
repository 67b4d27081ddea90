package pipeline

import (
	"context"

	"cloud.google.com/go/civil"
	infra "github.com/dvloznov/expense-tracker/internal/infra/bigquery"
	"github.com/dvloznov/expense-tracker/internal/notionsync"
)

// RunTracker records extraction runs.
type RunTracker interface {
	StartExtractionRun(ctx context.Context, documentID, model string) (string, error)
	StoreRunOutput(ctx context.Context, runID, raw string, structured bool, txCount int) error
	MarkRunSucceeded(ctx context.Context, runID string) error
	MarkRunFailed(ctx context.Context, runID string, err error)
}

// DocumentStatusUpdater records a document's processing state.
type DocumentStatusUpdater interface {
	UpdateDocumentStatus(ctx context.Context, documentID, status string, start, end *civil.Date) error
}

// Fetcher reads uploaded files by URI.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// ReconciledWriter stores reconciled rows.
type ReconciledWriter interface {
	InsertReconciled(ctx context.Context, rows []*infra.ReconciledRow) error
}

// BatchExporter mirrors reconciled rows to an external system.
type BatchExporter interface {
	Export(ctx context.Context, rows []*infra.ReconciledRow) (notionsync.Stats, error)
}
