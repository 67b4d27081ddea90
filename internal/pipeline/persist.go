package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/expense-tracker/internal/domain"
	infra "github.com/dvloznov/expense-tracker/internal/infra/bigquery"
	"github.com/dvloznov/expense-tracker/internal/logger"
	"github.com/dvloznov/expense-tracker/internal/wizard"
)

// ErrNoBatch is returned when the persist pipeline runs without a batch.
var ErrNoBatch = errors.New("no batch to persist")

// PersistDeps are the collaborators of the persist pipeline. Exporter and
// Documents may be nil.
type PersistDeps struct {
	Writer    ReconciledWriter
	Documents DocumentStatusUpdater
	Exporter  BatchExporter
	Now       func() time.Time
}

// NewPersistPipeline builds BuildRows -> InsertReconciled -> MarkDocument ->
// ExportNotion.
func NewPersistPipeline(deps PersistDeps) *Pipeline {
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	steps := []PipelineStep{
		Step("build_rows", func(ctx context.Context, s *PipelineState) error {
			if s.Batch == nil {
				return ErrNoBatch
			}
			rows, err := ReconciledRows(*s.Batch, now())
			if err != nil {
				return err
			}
			s.Rows = rows
			return nil
		}),
		Step("insert_reconciled", func(ctx context.Context, s *PipelineState) error {
			return deps.Writer.InsertReconciled(ctx, s.Rows)
		}),
	}
	if deps.Documents != nil {
		steps = append(steps, Step("mark_document", func(ctx context.Context, s *PipelineState) error {
			if s.Batch.DocumentID == "" {
				return nil
			}
			if err := deps.Documents.UpdateDocumentStatus(ctx, s.Batch.DocumentID, infra.DocumentReconciled, nil, nil); err != nil {
				log := logger.FromContext(ctx)
				log.Warn().Err(err).Str("document_id", s.Batch.DocumentID).Msg("update document status")
			}
			return nil
		}))
	}
	if deps.Exporter != nil {
		steps = append(steps, Step("export_notion", func(ctx context.Context, s *PipelineState) error {
			stats, err := deps.Exporter.Export(ctx, s.Rows)
			s.Exported = stats
			return err
		}))
	}
	return NewPipeline(steps...)
}

// PersistBatch runs the persist pipeline for one saved batch.
func PersistBatch(ctx context.Context, p *Pipeline, batch wizard.Batch) (*PipelineState, error) {
	state := &PipelineState{Batch: &batch, DocumentID: batch.DocumentID}
	if err := p.Execute(ctx, state); err != nil {
		return state, fmt.Errorf("PersistBatch: %w", err)
	}
	return state, nil
}

// ReconciledRows maps the committed items of a batch to reporting rows. An
// item without a category is stored as Uncategorized.
func ReconciledRows(batch wizard.Batch, insertedAt time.Time) ([]*infra.ReconciledRow, error) {
	rows := make([]*infra.ReconciledRow, 0, len(batch.Items))
	for _, it := range batch.Items {
		tx := it.Transaction
		date, err := tx.ParsedDate()
		if err != nil {
			return nil, fmt.Errorf("ReconciledRows: item %s: date %q: %w", it.ID, tx.Date, err)
		}

		category := tx.Category()
		if !tx.HasCategory() {
			category = domain.UncategorizedTitle
		}

		row := &infra.ReconciledRow{
			BatchID:         batch.ID,
			ItemID:          it.ID,
			WizardID:        batch.WizardID,
			Owner:           batch.Owner,
			DocumentID:      batch.DocumentID,
			TransactionDate: civil.DateOf(date),
			Description:     tx.Description,
			Amount:          tx.Amount.Rat(),
			Category:        category,
			CounterAccount:  nullString(tx.CounterAccountNumber),
			InsertedAt:      insertedAt,
		}
		if d := tx.TransactionDetails; d != nil {
			row.Location = nullString(d.Location)
			row.Name = nullString(d.Name)
			row.VariableSymbol = nullString(d.VariableSymbol)
			row.ConstantSymbol = nullString(d.ConstantSymbol)
			row.SpecificSymbol = nullString(d.SpecificSymbol)
			row.Details = nullString(d.Description)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func nullString(s *string) bigquery.NullString {
	if s == nil {
		return bigquery.NullString{}
	}
	return bigquery.NullString{StringVal: *s, Valid: true}
}
