// Package wizard sequences the Import, Review and Save steps of adding
// expenses and owns the per-session state of each step.
package wizard

import (
	"errors"
	"sync"
	"time"

	"github.com/dvloznov/expense-tracker/internal/domain"
	"github.com/dvloznov/expense-tracker/internal/extraction"
	"github.com/dvloznov/expense-tracker/internal/importer"
	"github.com/dvloznov/expense-tracker/internal/reconcile"
	"github.com/dvloznov/expense-tracker/internal/review"
	"github.com/google/uuid"
)

var (
	ErrStepLocked  = errors.New("wizard: step change not allowed")
	ErrInvalidStep = errors.New("wizard: invalid step")
	ErrNoBatch     = errors.New("wizard: nothing committed")
	ErrSaved       = errors.New("wizard: already saved")
	ErrNotFound    = errors.New("wizard: not found")
	ErrForbidden   = errors.New("wizard: belongs to another user")
)

// Step is a wizard step index.
type Step int

const (
	StepImport Step = iota
	StepReview
	StepSave
)

// LastStep is the final step index.
const LastStep = StepSave

func (s Step) String() string {
	switch s {
	case StepImport:
		return "import"
	case StepReview:
		return "review"
	case StepSave:
		return "save"
	}
	return "unknown"
}

// Valid reports whether s is a known step.
func (s Step) Valid() bool {
	return s >= StepImport && s <= LastStep
}

// StepChangeFunc observes step transitions.
type StepChangeFunc func(wizardID string, from, to Step)

// Batch is the committed subset handed over for persistence.
type Batch struct {
	ID         string           `json:"id"`
	WizardID   string           `json:"wizardId"`
	Owner      string           `json:"owner"`
	DocumentID string           `json:"documentId"`
	Items      []reconcile.Item `json:"items"`
	CreatedAt  time.Time        `json:"createdAt"`
}

// Wizard is one add-expenses session. All methods are safe for concurrent use.
type Wizard struct {
	mu sync.Mutex

	id      string
	owner   string
	created time.Time
	touched time.Time
	now     func() time.Time

	step         Step
	onStepChange StepChangeFunc

	importer   *importer.Stage
	uploaded   bool
	processing bool
	statement  *domain.Statement

	table     *reconcile.Table
	committed []reconcile.Item
	batch     *Batch
}

// Option configures a Wizard.
type Option func(*Wizard)

// WithStepChange registers a hook called after every step transition.
func WithStepChange(fn StepChangeFunc) Option {
	return func(w *Wizard) { w.onStepChange = fn }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(w *Wizard) { w.now = now }
}

// WithInitialStep starts the wizard at step s instead of Import.
func WithInitialStep(s Step) Option {
	return func(w *Wizard) {
		if s.Valid() {
			w.step = s
		}
	}
}

// New creates a wizard for owner.
func New(owner string, opts ...Option) *Wizard {
	w := &Wizard{
		id:    uuid.NewString(),
		owner: owner,
		now:   time.Now,
		table: reconcile.New(nil),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.importer = importer.NewStage(w.onImportStatus)
	w.created = w.now()
	w.touched = w.created
	return w
}

// onImportStatus receives the import relay. It runs with w.mu held.
func (w *Wizard) onImportStatus(processed bool, st *domain.Statement, processing bool) {
	w.uploaded = processed
	w.processing = processing
	if st == w.statement {
		return
	}
	w.statement = st
	var txs []domain.Transaction
	if st != nil {
		txs = st.Transactions
	}
	w.table = reconcile.New(txs)
	w.committed = nil
}

func (w *Wizard) ID() string    { return w.id }
func (w *Wizard) Owner() string { return w.owner }

func (w *Wizard) touch() {
	w.touched = w.now()
}

// LastActive returns when the wizard was last used.
func (w *Wizard) LastActive() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.touched
}

// Step returns the current step.
func (w *Wizard) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

func (w *Wizard) setStep(to Step) {
	from := w.step
	w.step = to
	if w.onStepChange != nil && from != to {
		w.onStepChange(w.id, from, to)
	}
}

func (w *Wizard) canNext() bool {
	return w.batch == nil && w.step < LastStep && w.uploaded && !w.processing
}

func (w *Wizard) canPrevious() bool {
	return w.batch == nil && w.step == LastStep
}

func (w *Wizard) canSave() bool {
	return w.batch == nil && w.step == LastStep && len(w.committed) > 0
}

// Next moves one step forward. It needs an uploaded file and no extraction
// in flight.
func (w *Wizard) Next() (Step, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touch()
	if w.batch != nil {
		return w.step, ErrSaved
	}
	if !w.canNext() {
		return w.step, ErrStepLocked
	}
	w.setStep(w.step + 1)
	return w.step, nil
}

// Previous moves back one step. Only the last step offers going back.
func (w *Wizard) Previous() (Step, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touch()
	if w.batch != nil {
		return w.step, ErrSaved
	}
	if !w.canPrevious() {
		return w.step, ErrStepLocked
	}
	w.setStep(w.step - 1)
	return w.step, nil
}

// SetStep jumps to s when the step index is driven from outside.
func (w *Wizard) SetStep(s Step) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touch()
	if !s.Valid() {
		return ErrInvalidStep
	}
	if w.batch != nil {
		return ErrSaved
	}
	w.setStep(s)
	return nil
}

// SelectFile makes f the import file, discarding earlier results.
func (w *Wizard) SelectFile(f importer.File) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touch()
	if w.batch != nil {
		return ErrSaved
	}
	return w.importer.Select(f)
}

// ClearFile drops the import file.
func (w *Wizard) ClearFile() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touch()
	if w.batch != nil {
		return ErrSaved
	}
	return w.importer.Clear()
}

// BeginImport marks the current file's extraction as started.
func (w *Wizard) BeginImport() (importer.File, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touch()
	if w.batch != nil {
		return importer.File{}, ErrSaved
	}
	return w.importer.Begin()
}

// CompleteImport records an extraction result. A new statement rebuilds the
// reconciliation table from scratch.
func (w *Wizard) CompleteImport(documentID string, res extraction.Result, err error) (importer.Outcome, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touch()
	return w.importer.Complete(documentID, res, err)
}

// ImportStatus returns the import stage snapshot.
func (w *Wizard) ImportStatus() importer.Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.importer.Status()
}

// Review builds the review report for the current statement.
func (w *Wizard) Review() review.Report {
	w.mu.Lock()
	defer w.mu.Unlock()
	return review.Build(w.statement, w.now())
}

// Save hands over the committed batch and freezes the wizard.
func (w *Wizard) Save() (Batch, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touch()
	if w.batch != nil {
		return Batch{}, ErrSaved
	}
	if w.step != LastStep {
		return Batch{}, ErrStepLocked
	}
	if len(w.committed) == 0 {
		return Batch{}, ErrNoBatch
	}
	docID := ""
	if f, ok := w.importer.File(); ok {
		docID = f.DocumentID
	}
	w.batch = &Batch{
		ID:         uuid.NewString(),
		WizardID:   w.id,
		Owner:      w.owner,
		DocumentID: docID,
		Items:      cloneItems(w.committed),
		CreatedAt:  w.now(),
	}
	return *w.batch, nil
}

// SavedBatch returns the batch produced by Save, if any.
func (w *Wizard) SavedBatch() (Batch, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.batch == nil {
		return Batch{}, false
	}
	b := *w.batch
	b.Items = cloneItems(b.Items)
	return b, true
}

func cloneItems(items []reconcile.Item) []reconcile.Item {
	out := make([]reconcile.Item, len(items))
	copy(out, items)
	for i := range out {
		out[i].Transaction = out[i].Transaction.Clone()
	}
	return out
}
