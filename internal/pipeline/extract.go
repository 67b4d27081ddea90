package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/expense-tracker/internal/domain"
	"github.com/dvloznov/expense-tracker/internal/extraction"
	infra "github.com/dvloznov/expense-tracker/internal/infra/bigquery"
	"github.com/dvloznov/expense-tracker/internal/logger"
)

// ErrNoPDF is returned when the fetched object is empty.
var ErrNoPDF = errors.New("uploaded file is empty")

// ExtractionDeps are the collaborators of the extraction pipeline. Runs and
// Documents may be nil, which skips run tracking and status updates.
type ExtractionDeps struct {
	Runs      RunTracker
	Documents DocumentStatusUpdater
	Files     Fetcher
	Gateway   extraction.Gateway
	Catalog   extraction.CatalogSource
	Model     string
}

// NewExtractionPipeline builds StartRun -> FetchPDF -> Extract ->
// NormalizeCategories -> StoreOutput -> MarkSuccess. A failure marks the run
// and the document FAILED.
func NewExtractionPipeline(deps ExtractionDeps) *Pipeline {
	return NewPipeline(
		Step("start_run", func(ctx context.Context, s *PipelineState) error {
			s.Model = deps.Model
			if deps.Runs == nil {
				return nil
			}
			runID, err := deps.Runs.StartExtractionRun(ctx, s.DocumentID, deps.Model)
			if err != nil {
				return err
			}
			s.RunID = runID
			return nil
		}),
		Step("fetch_pdf", func(ctx context.Context, s *PipelineState) error {
			data, err := deps.Files.Fetch(ctx, s.ObjectURI)
			if err != nil {
				return err
			}
			if len(data) == 0 {
				return ErrNoPDF
			}
			s.PDF = data
			return nil
		}),
		Step("extract", func(ctx context.Context, s *PipelineState) error {
			res, err := deps.Gateway.Extract(ctx, s.PDF)
			if err != nil {
				return err
			}
			s.Result = res
			return nil
		}),
		Step("normalize_categories", func(ctx context.Context, s *PipelineState) error {
			if deps.Catalog == nil || s.Result.Statement == nil {
				return nil
			}
			cats, err := deps.Catalog.ListCategories(ctx)
			if err != nil {
				log := logger.FromContext(ctx)
				log.Warn().Err(err).Msg("category catalog unavailable, keeping model categories")
				return nil
			}
			unknown := NewCategoryNormalizer(cats).Normalize(s.Result.Statement)
			if len(unknown) > 0 {
				log := logger.FromContext(ctx)
				log.Info().Strs("unknown_categories", unknown).Msg("model used categories outside the catalog")
			}
			return nil
		}),
		Step("store_output", func(ctx context.Context, s *PipelineState) error {
			if deps.Runs == nil {
				return nil
			}
			n := 0
			if s.Result.Statement != nil {
				n = len(s.Result.Statement.Transactions)
			}
			return deps.Runs.StoreRunOutput(ctx, s.RunID, s.Result.Raw, s.Result.Structured(), n)
		}),
		Step("mark_success", func(ctx context.Context, s *PipelineState) error {
			if deps.Runs != nil {
				if err := deps.Runs.MarkRunSucceeded(ctx, s.RunID); err != nil {
					return err
				}
			}
			if deps.Documents == nil {
				return nil
			}
			status := infra.DocumentUnstructured
			var start, end *civil.Date
			if st := s.Result.Statement; st != nil {
				status = infra.DocumentParsed
				start = parseCivil(st.Period.StartDate)
				end = parseCivil(st.Period.EndDate)
			}
			if err := deps.Documents.UpdateDocumentStatus(ctx, s.DocumentID, status, start, end); err != nil {
				// The extraction itself succeeded; a stale status is not worth failing the run.
				log := logger.FromContext(ctx)
				log.Warn().Err(err).Str("document_id", s.DocumentID).Msg("update document status")
			}
			return nil
		}),
	).OnFailure(func(ctx context.Context, s *PipelineState, err error) {
		if deps.Runs != nil && s.RunID != "" {
			deps.Runs.MarkRunFailed(ctx, s.RunID, err)
		}
		if deps.Documents != nil && s.DocumentID != "" {
			if uerr := deps.Documents.UpdateDocumentStatus(ctx, s.DocumentID, infra.DocumentFailed, nil, nil); uerr != nil {
				log := logger.FromContext(ctx)
				log.Warn().Err(uerr).Str("document_id", s.DocumentID).Msg("update document status")
			}
		}
	})
}

// ExtractDocument runs the extraction pipeline for one stored file.
func ExtractDocument(ctx context.Context, p *Pipeline, documentID, objectURI string) (extraction.Result, error) {
	state := &PipelineState{DocumentID: documentID, ObjectURI: objectURI}
	if err := p.Execute(ctx, state); err != nil {
		return extraction.Result{}, fmt.Errorf("ExtractDocument: %w", err)
	}
	return state.Result, nil
}

func parseCivil(s string) *civil.Date {
	t, err := time.Parse(domain.SourceDateLayout, s)
	if err != nil {
		return nil
	}
	d := civil.DateOf(t)
	return &d
}
