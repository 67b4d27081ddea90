package wizard

import (
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/expense-tracker/internal/domain"
	"github.com/dvloznov/expense-tracker/internal/extraction"
	"github.com/dvloznov/expense-tracker/internal/importer"
	"github.com/dvloznov/expense-tracker/internal/reconcile"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func tx(amount, category string) domain.Transaction {
	t := domain.Transaction{
		Date:        "03-02-2025",
		Description: "card payment",
		Amount:      decimal.RequireFromString(amount),
	}
	if category != "" {
		t.TransactionDetails = &domain.TransactionDetails{Category: strPtr(category)}
	}
	return t
}

func sampleStatement() *domain.Statement {
	return &domain.Statement{
		Period: domain.Period{StartDate: "01-02-2025", EndDate: "28-02-2025"},
		Transactions: []domain.Transaction{
			tx("-12.50", "Groceries"),
			tx("0", "Groceries"),
			tx("2500.00", "Salary"),
			tx("-40.10", ""),
		},
	}
}

// imported returns a wizard whose import step completed with st.
func imported(t *testing.T, st *domain.Statement, opts ...Option) *Wizard {
	t.Helper()
	w := New("ann@example.com", opts...)
	require.NoError(t, w.SelectFile(importer.File{DocumentID: "doc-1", Name: "feb.pdf"}))
	_, err := w.BeginImport()
	require.NoError(t, err)
	res := extraction.Result{Statement: st, Raw: "{}"}
	if st == nil {
		res = extraction.Result{Raw: "not json"}
	}
	_, err = w.CompleteImport("doc-1", res, nil)
	require.NoError(t, err)
	return w
}

func TestNewWizardStartsAtImport(t *testing.T) {
	w := New("ann@example.com")
	assert.NotEmpty(t, w.ID())
	assert.Equal(t, "ann@example.com", w.Owner())
	assert.Equal(t, StepImport, w.Step())

	st := w.State()
	assert.False(t, st.CanNext)
	assert.False(t, st.CanPrevious)
	assert.False(t, st.CanSave)
	assert.Equal(t, "import", st.StepName)
}

func TestNextNeedsUploadedFile(t *testing.T) {
	w := New("ann@example.com")
	_, err := w.Next()
	assert.ErrorIs(t, err, ErrStepLocked)

	require.NoError(t, w.SelectFile(importer.File{DocumentID: "doc-1"}))
	_, err = w.BeginImport()
	require.NoError(t, err)

	_, err = w.Next()
	assert.ErrorIs(t, err, ErrStepLocked, "processing blocks next")

	_, err = w.CompleteImport("doc-1", extraction.Result{Statement: sampleStatement()}, nil)
	require.NoError(t, err)

	step, err := w.Next()
	require.NoError(t, err)
	assert.Equal(t, StepReview, step)
}

func TestUnstructuredResultStillUnlocksNext(t *testing.T) {
	w := imported(t, nil)
	assert.Equal(t, importer.OutcomeUnstructured, w.ImportStatus().Outcome)

	step, err := w.Next()
	require.NoError(t, err)
	assert.Equal(t, StepReview, step)
	assert.True(t, w.Review().Empty)
	assert.Zero(t, w.Table().Summary.ItemCount)
}

func TestFailedExtractionKeepsNextLocked(t *testing.T) {
	w := New("ann@example.com")
	require.NoError(t, w.SelectFile(importer.File{DocumentID: "doc-1"}))
	_, err := w.BeginImport()
	require.NoError(t, err)
	out, err := w.CompleteImport("doc-1", extraction.Result{}, errors.New("model down"))
	require.NoError(t, err)
	assert.Equal(t, importer.OutcomeFailed, out)

	_, err = w.Next()
	assert.ErrorIs(t, err, ErrStepLocked)
}

func TestPreviousOnlyFromLastStep(t *testing.T) {
	w := imported(t, sampleStatement())

	_, err := w.Previous()
	assert.ErrorIs(t, err, ErrStepLocked)

	_, err = w.Next()
	require.NoError(t, err)
	_, err = w.Previous()
	assert.ErrorIs(t, err, ErrStepLocked, "review offers no previous")

	step, err := w.Next()
	require.NoError(t, err)
	assert.Equal(t, StepSave, step)

	_, err = w.Next()
	assert.ErrorIs(t, err, ErrStepLocked, "no step past save")

	step, err = w.Previous()
	require.NoError(t, err)
	assert.Equal(t, StepReview, step)
}

func TestSetStep(t *testing.T) {
	w := New("ann@example.com")
	assert.ErrorIs(t, w.SetStep(Step(7)), ErrInvalidStep)
	assert.ErrorIs(t, w.SetStep(Step(-1)), ErrInvalidStep)
	require.NoError(t, w.SetStep(StepSave))
	assert.Equal(t, StepSave, w.Step())
}

func TestStepChangeHook(t *testing.T) {
	var seen [][2]Step
	w := imported(t, sampleStatement(), WithStepChange(func(id string, from, to Step) {
		seen = append(seen, [2]Step{from, to})
	}))

	_, err := w.Next()
	require.NoError(t, err)
	_, err = w.Next()
	require.NoError(t, err)
	_, err = w.Previous()
	require.NoError(t, err)

	assert.Equal(t, [][2]Step{
		{StepImport, StepReview},
		{StepReview, StepSave},
		{StepSave, StepReview},
	}, seen)
}

func TestImportBuildsTable(t *testing.T) {
	w := imported(t, sampleStatement())

	view := w.Table()
	assert.Equal(t, 3, view.Summary.ItemCount, "zero amount dropped")
	assert.Equal(t, []string{"transaction-2"}, view.Disabled)
	assert.Equal(t, "2447.40", view.Summary.Total)

	report := w.Review()
	assert.False(t, report.Empty)
	require.Len(t, report.Credit, 2)
	assert.Equal(t, "Groceries", report.Credit[0].Name)
	assert.Equal(t, domain.UncategorizedTitle, report.Credit[1].Name)
}

func TestNewFileResetsTable(t *testing.T) {
	w := imported(t, sampleStatement())
	_, err := w.Select(nil, true)
	require.NoError(t, err)
	_, err = w.Commit()
	require.NoError(t, err)

	require.NoError(t, w.SelectFile(importer.File{DocumentID: "doc-2"}))
	assert.Zero(t, w.Table().Summary.ItemCount)
	assert.Zero(t, w.State().Committed)
	assert.False(t, w.State().Uploaded)
}

func TestTableActions(t *testing.T) {
	w := imported(t, sampleStatement())

	changed, view, err := w.Apply("transaction-2", reconcile.ActionEditCategory, "Transport")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Empty(t, view.Disabled)

	changed, _, err = w.Apply("transaction-0", reconcile.ActionMarkDeleted, "")
	require.NoError(t, err)
	assert.True(t, changed)

	view, err = w.Select(nil, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"transaction-1", "transaction-2"}, view.Selected)

	_, _, err = w.Apply("transaction-0", reconcile.ActionMarkDeleted, "")
	assert.ErrorIs(t, err, reconcile.ErrActionNotAllowed)

	_, _, err = w.Apply("transaction-9", reconcile.ActionRestore, "")
	assert.ErrorIs(t, err, reconcile.ErrUnknownItem)

	actions := w.ItemActions()
	assert.Equal(t, []reconcile.Action{reconcile.ActionRestore}, actions["transaction-0"])
}

func TestPaging(t *testing.T) {
	w := imported(t, sampleStatement())

	_, err := w.SetPageSize(7)
	assert.ErrorIs(t, err, reconcile.ErrInvalidPageSize)

	view, err := w.SetPageSize(25)
	require.NoError(t, err)
	assert.Equal(t, 25, view.Page.Size)

	_, err = w.SetPage(2)
	assert.ErrorIs(t, err, reconcile.ErrPageOutOfRange)
}

func TestCommitAndSave(t *testing.T) {
	w := imported(t, sampleStatement())
	_, err := w.Next()
	require.NoError(t, err)
	_, err = w.Next()
	require.NoError(t, err)

	_, err = w.Save()
	assert.ErrorIs(t, err, ErrNoBatch)

	_, err = w.Commit()
	assert.ErrorIs(t, err, reconcile.ErrEmptySelection)

	_, err = w.Select([]string{"transaction-0"}, false)
	require.NoError(t, err)
	items, err := w.Commit()
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, w.State().CanSave)

	batch, err := w.Save()
	require.NoError(t, err)
	assert.NotEmpty(t, batch.ID)
	assert.Equal(t, w.ID(), batch.WizardID)
	assert.Equal(t, "doc-1", batch.DocumentID)
	assert.Equal(t, "ann@example.com", batch.Owner)
	require.Len(t, batch.Items, 1)
	assert.Equal(t, "transaction-0", batch.Items[0].ID)

	saved, ok := w.SavedBatch()
	require.True(t, ok)
	assert.Equal(t, batch.ID, saved.ID)

	st := w.State()
	assert.True(t, st.Saved)
	assert.False(t, st.CanSave)
	assert.False(t, st.CanPrevious)
}

func TestSavedWizardIsFrozen(t *testing.T) {
	w := imported(t, sampleStatement())
	require.NoError(t, w.SetStep(StepSave))
	_, err := w.Select(nil, true)
	require.NoError(t, err)
	_, err = w.Commit()
	require.NoError(t, err)
	_, err = w.Save()
	require.NoError(t, err)

	_, err = w.Save()
	assert.ErrorIs(t, err, ErrSaved)
	_, err = w.Previous()
	assert.ErrorIs(t, err, ErrSaved)
	assert.ErrorIs(t, w.SetStep(StepImport), ErrSaved)
	assert.ErrorIs(t, w.SelectFile(importer.File{DocumentID: "doc-2"}), ErrSaved)
	_, _, err = w.Apply("transaction-0", reconcile.ActionMarkDeleted, "")
	assert.ErrorIs(t, err, ErrSaved)
	_, err = w.Select(nil, false)
	assert.ErrorIs(t, err, ErrSaved)
}

func TestSaveRequiresLastStep(t *testing.T) {
	w := imported(t, sampleStatement())
	_, err := w.Select(nil, true)
	require.NoError(t, err)
	_, err = w.Commit()
	require.NoError(t, err)

	_, err = w.Save()
	assert.ErrorIs(t, err, ErrStepLocked)
}

func TestBatchIsACopy(t *testing.T) {
	w := imported(t, sampleStatement())
	require.NoError(t, w.SetStep(StepSave))
	_, err := w.Select([]string{"transaction-0"}, false)
	require.NoError(t, err)
	items, err := w.Commit()
	require.NoError(t, err)

	items[0].Transaction.TransactionDetails.Category = strPtr("Mutated")

	batch, err := w.Save()
	require.NoError(t, err)
	assert.Equal(t, "Groceries", batch.Items[0].Transaction.Category())
}

func TestClockDrivesActivity(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	w := New("ann@example.com", WithClock(func() time.Time { return now }))
	assert.Equal(t, now, w.LastActive())

	now = now.Add(time.Minute)
	_, _ = w.Next()
	assert.Equal(t, now, w.LastActive())
}
