package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SourceDateLayout is the DD-MM-YYYY layout dates arrive in from extraction.
const SourceDateLayout = "02-01-2006"

// Transaction represents one ledger entry extracted from a statement.
// Only the nested category is ever changed after extraction.
type Transaction struct {
	Date                 string              `json:"date"`
	Description          string              `json:"description"`
	Amount               decimal.Decimal     `json:"amount"`                         // negative = debit, positive = credit
	CounterAccountNumber *string             `json:"counterAccountNumber,omitempty"` // e.g. "3566980339/0800"
	TransactionDetails   *TransactionDetails `json:"transactionDetails,omitempty"`
}

// TransactionDetails carries the optional per-transaction extras.
type TransactionDetails struct {
	Location       *string `json:"location,omitempty"`
	Name           *string `json:"name,omitempty"`
	VariableSymbol *string `json:"variableSymbol,omitempty"`
	ConstantSymbol *string `json:"constantSymbol,omitempty"`
	SpecificSymbol *string `json:"specificSymbol,omitempty"`
	Description    *string `json:"description,omitempty"`
	Category       *string `json:"category,omitempty"`
}

// Category returns the assigned category, or "" when there is none.
func (t Transaction) Category() string {
	if t.TransactionDetails == nil || t.TransactionDetails.Category == nil {
		return ""
	}
	return *t.TransactionDetails.Category
}

// HasCategory reports whether a non-blank category is assigned.
func (t Transaction) HasCategory() bool {
	return strings.TrimSpace(t.Category()) != ""
}

// WithCategory returns a copy of t whose details carry the given category.
// The receiver is left untouched.
func (t Transaction) WithCategory(category string) Transaction {
	out := t.Clone()
	if out.TransactionDetails == nil {
		out.TransactionDetails = &TransactionDetails{}
	}
	c := category
	out.TransactionDetails.Category = &c
	return out
}

// Clone returns a deep copy of t.
func (t Transaction) Clone() Transaction {
	out := t
	out.CounterAccountNumber = cloneString(t.CounterAccountNumber)
	if t.TransactionDetails != nil {
		d := *t.TransactionDetails
		d.Location = cloneString(d.Location)
		d.Name = cloneString(d.Name)
		d.VariableSymbol = cloneString(d.VariableSymbol)
		d.ConstantSymbol = cloneString(d.ConstantSymbol)
		d.SpecificSymbol = cloneString(d.SpecificSymbol)
		d.Description = cloneString(d.Description)
		d.Category = cloneString(d.Category)
		out.TransactionDetails = &d
	}
	return out
}

// ParsedDate parses Date using SourceDateLayout.
func (t Transaction) ParsedDate() (time.Time, error) {
	return time.Parse(SourceDateLayout, strings.TrimSpace(t.Date))
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
