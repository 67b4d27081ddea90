// Package importer tracks the single-file import step: which statement file
// is selected, whether its extraction is in flight, and what came back.
package importer

import (
	"errors"
	"time"

	"github.com/dvloznov/expense-tracker/internal/domain"
	"github.com/dvloznov/expense-tracker/internal/extraction"
)

var (
	ErrNoFile           = errors.New("importer: no file selected")
	ErrProcessing       = errors.New("importer: extraction already in progress")
	ErrAlreadyProcessed = errors.New("importer: file already processed")
	ErrStale            = errors.New("importer: completion for a replaced file")
)

// Outcome describes where the import stage ended up.
type Outcome string

const (
	OutcomeNone         Outcome = ""
	OutcomeProcessing   Outcome = "processing"
	OutcomeProcessed    Outcome = "processed"
	OutcomeUnstructured Outcome = "unstructured"
	OutcomeFailed       Outcome = "failed"
)

// File is an uploaded statement file.
type File struct {
	DocumentID  string    `json:"documentId"`
	Name        string    `json:"name"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	ObjectURI   string    `json:"objectUri"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

// Listener receives every status change as (processed, statement, processing).
type Listener func(processed bool, statement *domain.Statement, processing bool)

// Status is a snapshot of the stage.
type Status struct {
	File       *File             `json:"file,omitempty"`
	Processing bool              `json:"processing"`
	Processed  bool              `json:"processed"`
	Statement  *domain.Statement `json:"statement,omitempty"`
	Outcome    Outcome           `json:"outcome"`
	Error      string            `json:"error,omitempty"`
}

// Stage is the import state machine. It is not safe for concurrent use.
type Stage struct {
	file       *File
	processing bool
	processed  bool
	statement  *domain.Statement
	outcome    Outcome
	errMsg     string
	listener   Listener
}

// NewStage returns an empty stage relaying to l, which may be nil.
func NewStage(l Listener) *Stage {
	return &Stage{listener: l}
}

// OnStatus replaces the listener.
func (s *Stage) OnStatus(l Listener) {
	s.listener = l
}

func (s *Stage) relay() {
	if s.listener != nil {
		s.listener(s.processed, s.statement, s.processing)
	}
}

func (s *Stage) reset() {
	s.processed = false
	s.statement = nil
	s.outcome = OutcomeNone
	s.errMsg = ""
}

// Select replaces the current file and discards any previous result.
func (s *Stage) Select(f File) error {
	if s.processing {
		return ErrProcessing
	}
	s.file = &f
	s.reset()
	s.relay()
	return nil
}

// Clear drops the current file and result.
func (s *Stage) Clear() error {
	if s.processing {
		return ErrProcessing
	}
	s.file = nil
	s.reset()
	s.relay()
	return nil
}

// Begin marks extraction of the current file as in flight and returns it.
// Only one extraction per file is allowed.
func (s *Stage) Begin() (File, error) {
	switch {
	case s.file == nil:
		return File{}, ErrNoFile
	case s.processing:
		return File{}, ErrProcessing
	case s.processed:
		return File{}, ErrAlreadyProcessed
	}
	s.processing = true
	s.errMsg = ""
	s.outcome = OutcomeProcessing
	s.relay()
	return *s.file, nil
}

// Complete records the extraction result for documentID. Results for a file
// that has since been replaced are dropped with ErrStale.
func (s *Stage) Complete(documentID string, res extraction.Result, err error) (Outcome, error) {
	if s.file == nil || s.file.DocumentID != documentID || !s.processing {
		return OutcomeNone, ErrStale
	}
	s.processing = false

	switch {
	case err != nil:
		s.processed = false
		s.statement = nil
		s.outcome = OutcomeFailed
		s.errMsg = err.Error()
	case !res.Structured():
		s.processed = true
		s.statement = nil
		s.outcome = OutcomeUnstructured
	default:
		s.processed = true
		s.statement = res.Statement
		s.outcome = OutcomeProcessed
	}
	s.relay()
	return s.outcome, nil
}

// File returns the selected file, if any.
func (s *Stage) File() (File, bool) {
	if s.file == nil {
		return File{}, false
	}
	return *s.file, true
}

// Processing reports whether an extraction is in flight.
func (s *Stage) Processing() bool {
	return s.processing
}

// Status returns a snapshot of the stage.
func (s *Stage) Status() Status {
	st := Status{
		Processing: s.processing,
		Processed:  s.processed,
		Statement:  s.statement,
		Outcome:    s.outcome,
		Error:      s.errMsg,
	}
	if s.file != nil {
		f := *s.file
		st.File = &f
	}
	return st
}
