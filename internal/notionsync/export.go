// Package notionsync mirrors persisted expense batches into a Notion
// database.
package notionsync

import (
	"context"
	"fmt"

	infra "github.com/dvloznov/expense-tracker/internal/infra/bigquery"
	"github.com/dvloznov/expense-tracker/internal/logger"
	"github.com/jomei/notionapi"
)

// Stats counts the outcome of one export.
type Stats struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Exporter creates one Notion page per reconciled transaction.
type Exporter struct {
	svc        NotionService
	databaseID string
	dryRun     bool
}

// NewExporter creates an exporter writing to databaseID.
func NewExporter(svc NotionService, databaseID string) *Exporter {
	return &Exporter{svc: svc, databaseID: databaseID}
}

// WithDryRun makes Export log what it would create without creating it.
func (e *Exporter) WithDryRun(dryRun bool) *Exporter {
	e.dryRun = dryRun
	return e
}

// Export writes rows that the database does not hold yet. Rows of one batch
// are looked up by Batch ID first, so a retried export skips what an earlier
// attempt created. Any page that fails to create makes Export return an error
// after the remaining rows were tried.
func (e *Exporter) Export(ctx context.Context, rows []*infra.ReconciledRow) (Stats, error) {
	log := logger.FromContext(ctx)
	var stats Stats
	if len(rows) == 0 {
		return stats, nil
	}

	existing := make(map[string]bool)
	for _, batchID := range batchIDs(rows) {
		pages, err := e.queryBatch(ctx, batchID)
		if err != nil {
			return stats, fmt.Errorf("Export: %w", err)
		}
		for _, p := range pages {
			if id := extractTransactionID(p); id != "" {
				existing[id] = true
			}
		}
	}

	for _, row := range rows {
		if existing[row.InsertID()] {
			stats.Skipped++
			continue
		}
		if e.dryRun {
			log.Info().Str("transaction_id", row.InsertID()).Msg("[DRY RUN] Would create Notion page")
			stats.Created++
			continue
		}
		page, err := e.svc.CreatePage(ctx, e.databaseID, ReconciledToNotionProperties(row))
		if err != nil {
			log.Warn().Err(err).Str("transaction_id", row.InsertID()).Msg("Failed to create Notion page")
			stats.Failed++
			continue
		}
		log.Debug().
			Str("transaction_id", row.InsertID()).
			Str("page_id", string(page.ID)).
			Msg("Created Notion page")
		stats.Created++
	}

	log.Info().
		Int("created", stats.Created).
		Int("skipped", stats.Skipped).
		Int("failed", stats.Failed).
		Msg("Notion export completed")

	if stats.Failed > 0 {
		return stats, fmt.Errorf("Export: %d of %d pages failed", stats.Failed, len(rows))
	}
	return stats, nil
}

func (e *Exporter) queryBatch(ctx context.Context, batchID string) ([]notionapi.Page, error) {
	var all []notionapi.Page
	var cursor notionapi.Cursor
	for {
		req := &notionapi.DatabaseQueryRequest{
			Filter: notionapi.PropertyFilter{
				Property: PropBatchID,
				RichText: &notionapi.TextFilterCondition{Equals: batchID},
			},
			PageSize: 100,
		}
		if cursor != "" {
			req.StartCursor = cursor
		}
		resp, err := e.svc.QueryDatabase(ctx, e.databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryBatch: %w", err)
		}
		all = append(all, resp.Results...)
		if !resp.HasMore {
			return all, nil
		}
		cursor = resp.NextCursor
	}
}

func batchIDs(rows []*infra.ReconciledRow) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range rows {
		if !seen[r.BatchID] {
			seen[r.BatchID] = true
			out = append(out, r.BatchID)
		}
	}
	return out
}
