package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/expense-tracker/internal/jobs"
	"github.com/dvloznov/expense-tracker/internal/logger"
	"github.com/dvloznov/expense-tracker/internal/wizard"
)

// ErrSessionGone is returned when the wizard a job belongs to no longer exists.
var ErrSessionGone = errors.New("wizard session no longer exists")

// Sessions finds and drops wizard sessions by id.
type Sessions interface {
	Lookup(id string) (*wizard.Wizard, bool)
	Remove(id string)
}

// Processor runs queued jobs against the pipelines and hands results back to
// the wizard sessions that asked for them.
type Processor struct {
	sessions Sessions
	extract  *Pipeline
	persist  *Pipeline
}

// NewProcessor creates a processor.
func NewProcessor(sessions Sessions, extract, persist *Pipeline) *Processor {
	return &Processor{sessions: sessions, extract: extract, persist: persist}
}

// Register binds the processor's handlers on mux.
func (p *Processor) Register(mux *jobs.Mux) {
	mux.Handle(jobs.JobTypeExtractStatement, p.HandleExtract)
	mux.Handle(jobs.JobTypePersistBatch, p.HandlePersist)
}

// HandleExtract extracts the job's document and completes the wizard's
// import stage with the outcome, failure included.
func (p *Processor) HandleExtract(ctx context.Context, job *jobs.Job) error {
	log := logger.FromContext(ctx)

	res, runErr := ExtractDocument(ctx, p.extract, job.DocumentID, job.ObjectURI)

	w, ok := p.sessions.Lookup(job.WizardID)
	if !ok {
		log.Warn().Str("wizard_id", job.WizardID).Msg("extraction finished for a closed wizard")
		if runErr != nil {
			return runErr
		}
		return ErrSessionGone
	}
	outcome, err := w.CompleteImport(job.DocumentID, res, runErr)
	if err != nil {
		log.Warn().Err(err).Str("wizard_id", job.WizardID).Msg("extraction result discarded")
	} else {
		log.Info().Str("outcome", string(outcome)).Msg("import completed")
	}
	return runErr
}

// HandlePersist stores the wizard's saved batch and closes the session once
// the batch is safely written.
func (p *Processor) HandlePersist(ctx context.Context, job *jobs.Job) error {
	w, ok := p.sessions.Lookup(job.WizardID)
	if !ok {
		return ErrSessionGone
	}
	batch, ok := w.SavedBatch()
	if !ok {
		return fmt.Errorf("HandlePersist: %w", wizard.ErrNoBatch)
	}
	if job.BatchID != "" && batch.ID != job.BatchID {
		return fmt.Errorf("HandlePersist: batch %s does not match saved batch %s", job.BatchID, batch.ID)
	}

	state, err := PersistBatch(ctx, p.persist, batch)
	if err != nil {
		return err
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("batch_id", batch.ID).
		Int("rows", len(state.Rows)).
		Int("notion_created", state.Exported.Created).
		Int("notion_skipped", state.Exported.Skipped).
		Msg("batch persisted")
	p.sessions.Remove(job.WizardID)
	return nil
}
