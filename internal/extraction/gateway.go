// Package extraction turns bank-statement PDFs into structured statements by
// delegating to a large-language-model API.
package extraction

import (
	"context"
	"errors"

	"github.com/dvloznov/expense-tracker/internal/domain"
)

// ErrEmptyResponse is returned when the model answers with no text at all.
var ErrEmptyResponse = errors.New("extraction: empty response from model")

// Result is what one extraction produced. Statement is nil when the model
// reply could not be read as a statement; Raw always holds the reply text.
type Result struct {
	Statement *domain.Statement `json:"statement,omitempty"`
	Raw       string            `json:"raw,omitempty"`
}

// Structured reports whether the result carries a statement.
func (r Result) Structured() bool {
	return r.Statement != nil
}

// Gateway extracts a statement from PDF bytes.
type Gateway interface {
	Extract(ctx context.Context, pdf []byte) (Result, error)
}

// CatalogSource supplies the category titles the model may assign.
type CatalogSource interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
}
