package reconcile

import (
	"fmt"

	"github.com/dvloznov/expense-tracker/internal/domain"
)

// Item wraps an extracted transaction with its workflow state.
type Item struct {
	ID              string             `json:"id"`
	Transaction     domain.Transaction `json:"transaction"`
	MarkedAsDeleted bool               `json:"markedAsDeleted"`
}

func itemID(n int) string {
	return fmt.Sprintf("transaction-%d", n)
}

// HasCategory reports whether the wrapped transaction carries a category.
func (i Item) HasCategory() bool {
	return i.Transaction.HasCategory()
}

// Eligible reports whether the item may be part of the selection.
func (i Item) Eligible() bool {
	return !i.MarkedAsDeleted && i.HasCategory()
}

// Allows reports whether action a may be applied to the item right now.
func (i Item) Allows(a Action) bool {
	switch a {
	case ActionEditCategory:
		return !i.MarkedAsDeleted
	case ActionMarkDeleted:
		return !i.MarkedAsDeleted && i.HasCategory()
	case ActionRestore:
		return i.MarkedAsDeleted
	}
	return false
}

// AllowedActions lists the actions Allows accepts, in display order.
func (i Item) AllowedActions() []Action {
	out := make([]Action, 0, len(Actions))
	for _, a := range Actions {
		if i.Allows(a) {
			out = append(out, a)
		}
	}
	return out
}

func (i Item) clone() Item {
	i.Transaction = i.Transaction.Clone()
	return i
}
