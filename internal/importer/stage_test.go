package importer

import (
	"errors"
	"testing"

	"github.com/dvloznov/expense-tracker/internal/domain"
	"github.com/dvloznov/expense-tracker/internal/extraction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type relay struct {
	processed  bool
	statement  *domain.Statement
	processing bool
}

func recordingStage() (*Stage, *[]relay) {
	var got []relay
	s := NewStage(func(processed bool, st *domain.Statement, processing bool) {
		got = append(got, relay{processed, st, processing})
	})
	return s, &got
}

func TestHappyPath(t *testing.T) {
	s, got := recordingStage()
	st := &domain.Statement{BankName: "Fio"}

	require.NoError(t, s.Select(File{DocumentID: "d1", Name: "march.pdf"}))
	f, err := s.Begin()
	require.NoError(t, err)
	assert.Equal(t, "d1", f.DocumentID)
	assert.True(t, s.Processing())

	outcome, err := s.Complete("d1", extraction.Result{Statement: st}, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)

	assert.Equal(t, []relay{
		{false, nil, false},
		{false, nil, true},
		{true, st, false},
	}, *got)

	status := s.Status()
	assert.True(t, status.Processed)
	assert.Same(t, st, status.Statement)
	assert.Equal(t, "march.pdf", status.File.Name)
}

func TestFailure(t *testing.T) {
	s, got := recordingStage()
	require.NoError(t, s.Select(File{DocumentID: "d1"}))
	_, err := s.Begin()
	require.NoError(t, err)

	outcome, err := s.Complete("d1", extraction.Result{}, errors.New("gateway down"))
	require.NoError(t, err)

	assert.Equal(t, OutcomeFailed, outcome)
	assert.Equal(t, relay{false, nil, false}, (*got)[len(*got)-1])
	assert.Equal(t, "gateway down", s.Status().Error)

	// a failed file can be retried
	_, err = s.Begin()
	assert.NoError(t, err)
}

func TestRawOnlyResult(t *testing.T) {
	s, got := recordingStage()
	require.NoError(t, s.Select(File{DocumentID: "d1"}))
	_, _ = s.Begin()

	outcome, err := s.Complete("d1", extraction.Result{Raw: "garbage"}, nil)
	require.NoError(t, err)

	assert.Equal(t, OutcomeUnstructured, outcome)
	assert.Equal(t, relay{true, nil, false}, (*got)[len(*got)-1])
}

func TestSingleFlight(t *testing.T) {
	s := NewStage(nil)

	_, err := s.Begin()
	assert.ErrorIs(t, err, ErrNoFile)

	require.NoError(t, s.Select(File{DocumentID: "d1"}))
	_, err = s.Begin()
	require.NoError(t, err)

	_, err = s.Begin()
	assert.ErrorIs(t, err, ErrProcessing)
	assert.ErrorIs(t, s.Select(File{DocumentID: "d2"}), ErrProcessing)
	assert.ErrorIs(t, s.Clear(), ErrProcessing)

	_, err = s.Complete("d1", extraction.Result{Statement: &domain.Statement{}}, nil)
	require.NoError(t, err)

	_, err = s.Begin()
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
}

func TestSelectDiscardsPreviousResult(t *testing.T) {
	s := NewStage(nil)
	require.NoError(t, s.Select(File{DocumentID: "d1"}))
	_, _ = s.Begin()
	_, _ = s.Complete("d1", extraction.Result{Statement: &domain.Statement{}}, nil)

	require.NoError(t, s.Select(File{DocumentID: "d2"}))

	status := s.Status()
	assert.False(t, status.Processed)
	assert.Nil(t, status.Statement)
	assert.Equal(t, OutcomeNone, status.Outcome)
	assert.Equal(t, "d2", status.File.DocumentID)
}

func TestStaleCompletion(t *testing.T) {
	s := NewStage(nil)
	require.NoError(t, s.Select(File{DocumentID: "d1"}))
	_, _ = s.Begin()

	_, err := s.Complete("other", extraction.Result{}, nil)
	assert.ErrorIs(t, err, ErrStale)
	assert.True(t, s.Processing())

	_, err = s.Complete("d1", extraction.Result{Raw: "x"}, nil)
	require.NoError(t, err)

	_, err = s.Complete("d1", extraction.Result{Raw: "x"}, nil)
	assert.ErrorIs(t, err, ErrStale, "second completion is ignored")
}

func TestClear(t *testing.T) {
	s, got := recordingStage()
	require.NoError(t, s.Select(File{DocumentID: "d1"}))

	require.NoError(t, s.Clear())

	_, ok := s.File()
	assert.False(t, ok)
	assert.Len(t, *got, 2)
}
