package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/expense-tracker/internal/logger"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
)

// Extraction run statuses.
const (
	RunRunning = "RUNNING"
	RunSuccess = "SUCCESS"
	RunFailed  = "FAILED"
)

// ExtractionRunRow tracks one model call over a document.
type ExtractionRunRow struct {
	RunID      string                 `bigquery:"run_id"`
	DocumentID string                 `bigquery:"document_id"`
	StartedAt  time.Time              `bigquery:"started_ts"`
	FinishedAt bigquery.NullTimestamp `bigquery:"finished_ts"`

	Model  string `bigquery:"model"`
	Status string `bigquery:"status"`

	ErrorMessage bigquery.NullString `bigquery:"error_message"`
	RawOutput    bigquery.NullString `bigquery:"raw_output"`
	Structured   bigquery.NullBool   `bigquery:"structured"`
	TxCount      bigquery.NullInt64  `bigquery:"transaction_count"`
}

// StartExtractionRun inserts a RUNNING row and returns its id.
func (r *Repository) StartExtractionRun(ctx context.Context, documentID, model string) (string, error) {
	runID := uuid.NewString()

	err := r.exec(ctx, "StartExtractionRun", fmt.Sprintf(`
		INSERT %s (run_id, document_id, started_ts, model, status)
		VALUES (@run_id, @document_id, @started_ts, @model, @status)
	`, r.tableRef(extractionRunsTable)), []bigquery.QueryParameter{
		{Name: "run_id", Value: runID},
		{Name: "document_id", Value: documentID},
		{Name: "started_ts", Value: time.Now()},
		{Name: "model", Value: model},
		{Name: "status", Value: RunRunning},
	})
	if err != nil {
		return "", err
	}
	return runID, nil
}

// StoreRunOutput records the raw model reply of a run.
func (r *Repository) StoreRunOutput(ctx context.Context, runID, raw string, structured bool, txCount int) error {
	return r.exec(ctx, "StoreRunOutput", fmt.Sprintf(`
		UPDATE %s
		SET raw_output = @raw_output,
		    structured = @structured,
		    transaction_count = @transaction_count
		WHERE run_id = @run_id
	`, r.tableRef(extractionRunsTable)), []bigquery.QueryParameter{
		{Name: "raw_output", Value: raw},
		{Name: "structured", Value: structured},
		{Name: "transaction_count", Value: txCount},
		{Name: "run_id", Value: runID},
	})
}

// MarkRunSucceeded sets status=SUCCESS and finished_ts.
func (r *Repository) MarkRunSucceeded(ctx context.Context, runID string) error {
	return r.exec(ctx, "MarkRunSucceeded", fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = NULL
		WHERE run_id = @run_id
	`, r.tableRef(extractionRunsTable)), []bigquery.QueryParameter{
		{Name: "status", Value: RunSuccess},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "run_id", Value: runID},
	})
}

// MarkRunFailed sets status=FAILED with the error message. Failures to record
// the failure are logged, not returned.
func (r *Repository) MarkRunFailed(ctx context.Context, runID string, runErr error) {
	err := r.exec(ctx, "MarkRunFailed", fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = @error_message
		WHERE run_id = @run_id
	`, r.tableRef(extractionRunsTable)), []bigquery.QueryParameter{
		{Name: "status", Value: RunFailed},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "error_message", Value: truncateError(runErr)},
		{Name: "run_id", Value: runID},
	})
	if err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Str("run_id", runID).Msg("MarkRunFailed: update failed")
	}
}

// ListExtractionRuns returns the runs of a document, newest first.
func (r *Repository) ListExtractionRuns(ctx context.Context, documentID string) ([]*ExtractionRunRow, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT run_id, document_id, started_ts, finished_ts, model, status,
		       error_message, raw_output, structured, transaction_count
		FROM %s
		WHERE document_id = @document_id
		ORDER BY started_ts DESC
	`, r.tableRef(extractionRunsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "document_id", Value: documentID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListExtractionRuns: query read: %w", err)
	}
	var rows []*ExtractionRunRow
	for {
		var row ExtractionRunRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListExtractionRuns: iter next: %w", err)
		}
		rows = append(rows, &row)
	}
	return rows, nil
}
