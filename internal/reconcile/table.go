// Package reconcile holds the reconciliation table: the working list of
// extracted transactions together with selection, soft-deletion and
// category edits, and the committed subset it hands back.
package reconcile

import (
	"strings"

	"github.com/dvloznov/expense-tracker/internal/domain"
	"github.com/shopspring/decimal"
)

// DefaultPageSize is the page size of a freshly built table.
const DefaultPageSize = 10

// PageSizes are the page sizes SetPageSize accepts.
var PageSizes = []int{10, 25, 50}

// Table is the reconciliation state machine. It is not safe for concurrent
// use; callers serialize access.
type Table struct {
	items    []Item
	index    map[string]int
	selected map[string]struct{}
	disabled map[string]struct{}
	pageSize int
	page     int
}

// New builds a table from a transaction list. Zero-amount transactions are
// dropped and ids are assigned from the position in the filtered list.
func New(transactions []domain.Transaction) *Table {
	t := &Table{
		index:    make(map[string]int),
		selected: make(map[string]struct{}),
		disabled: make(map[string]struct{}),
		pageSize: DefaultPageSize,
		page:     1,
	}
	for _, tx := range transactions {
		if tx.Amount.IsZero() {
			continue
		}
		item := Item{ID: itemID(len(t.items)), Transaction: tx.Clone()}
		t.index[item.ID] = len(t.items)
		t.items = append(t.items, item)
		t.syncDisabled(item.ID)
	}
	return t
}

// Len returns the number of items.
func (t *Table) Len() int {
	return len(t.items)
}

// Items returns a copy of every item in list order.
func (t *Table) Items() []Item {
	out := make([]Item, len(t.items))
	for i, it := range t.items {
		out[i] = it.clone()
	}
	return out
}

// Item returns a copy of the item with the given id.
func (t *Table) Item(id string) (Item, error) {
	pos, ok := t.index[id]
	if !ok {
		return Item{}, ErrUnknownItem
	}
	return t.items[pos].clone(), nil
}

func (t *Table) lookup(id string) (*Item, error) {
	pos, ok := t.index[id]
	if !ok {
		return nil, ErrUnknownItem
	}
	return &t.items[pos], nil
}

// syncDisabled recomputes disabled membership for one id.
func (t *Table) syncDisabled(id string) {
	it := t.items[t.index[id]]
	if it.Eligible() {
		delete(t.disabled, id)
		return
	}
	t.disabled[id] = struct{}{}
}

// Apply dispatches action a to the item. category is only read by
// ActionEditCategory. The boolean reports whether state changed.
func (t *Table) Apply(id string, a Action, category string) (bool, error) {
	switch a {
	case ActionEditCategory:
		return t.EditCategory(id, category)
	case ActionMarkDeleted:
		if err := t.MarkDeleted(id); err != nil {
			return false, err
		}
		return true, nil
	case ActionRestore:
		if err := t.Restore(id); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, ErrUnknownAction
}

// EditCategory replaces the item's category. An empty category is a no-op
// and reports false. Selection and deletion state are left alone.
func (t *Table) EditCategory(id, category string) (bool, error) {
	it, err := t.lookup(id)
	if err != nil {
		return false, err
	}
	if !it.Allows(ActionEditCategory) {
		return false, ErrActionNotAllowed
	}
	if strings.TrimSpace(category) == "" {
		return false, nil
	}
	it.Transaction = it.Transaction.WithCategory(category)
	t.syncDisabled(id)
	return true, nil
}

// MarkDeleted soft-deletes a categorized item and drops it from the selection.
func (t *Table) MarkDeleted(id string) error {
	it, err := t.lookup(id)
	if err != nil {
		return err
	}
	if !it.Allows(ActionMarkDeleted) {
		return ErrActionNotAllowed
	}
	it.MarkedAsDeleted = true
	delete(t.selected, id)
	t.syncDisabled(id)
	return nil
}

// Restore clears the soft-delete flag. The item is not reselected.
func (t *Table) Restore(id string) error {
	it, err := t.lookup(id)
	if err != nil {
		return err
	}
	if !it.Allows(ActionRestore) {
		return ErrActionNotAllowed
	}
	it.MarkedAsDeleted = false
	t.syncDisabled(id)
	return nil
}

// Select replaces the selection with ids, silently dropping unknown and
// disabled ones. It returns the accepted ids in list order.
func (t *Table) Select(ids []string) []string {
	t.selected = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := t.index[id]; !ok {
			continue
		}
		if _, off := t.disabled[id]; off {
			continue
		}
		t.selected[id] = struct{}{}
	}
	return t.Selected()
}

// SelectAll selects every item that is currently eligible, evaluated from
// item state rather than the disabled set.
func (t *Table) SelectAll() []string {
	t.selected = make(map[string]struct{}, len(t.items))
	for _, it := range t.items {
		if it.Eligible() {
			t.selected[it.ID] = struct{}{}
		}
	}
	return t.Selected()
}

// ClearSelection empties the selection.
func (t *Table) ClearSelection() {
	t.selected = make(map[string]struct{})
}

// Selected returns the selected ids in list order.
func (t *Table) Selected() []string {
	return t.filterIDs(t.selected)
}

// Disabled returns the ids not eligible for selection, in list order.
func (t *Table) Disabled() []string {
	return t.filterIDs(t.disabled)
}

// IsSelected reports selection membership.
func (t *Table) IsSelected(id string) bool {
	_, ok := t.selected[id]
	return ok
}

// IsDisabled reports disabled-set membership.
func (t *Table) IsDisabled(id string) bool {
	_, ok := t.disabled[id]
	return ok
}

func (t *Table) filterIDs(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for _, it := range t.items {
		if _, ok := set[it.ID]; ok {
			out = append(out, it.ID)
		}
	}
	return out
}

// Commit returns copies of the selected items in list order. The table keeps
// its items and selection afterwards.
func (t *Table) Commit() ([]Item, error) {
	if len(t.selected) == 0 {
		return nil, ErrEmptySelection
	}
	out := make([]Item, 0, len(t.selected))
	for _, it := range t.items {
		if _, ok := t.selected[it.ID]; ok {
			out = append(out, it.clone())
		}
	}
	return out, nil
}

// Total sums the amount of every item, soft-deleted ones included.
func (t *Table) Total() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range t.items {
		sum = sum.Add(it.Transaction.Amount)
	}
	return sum
}

// SelectedTotal sums the amount of the selected items.
func (t *Table) SelectedTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range t.items {
		if _, ok := t.selected[it.ID]; ok {
			sum = sum.Add(it.Transaction.Amount)
		}
	}
	return sum
}

// DeletedCount returns the number of soft-deleted items.
func (t *Table) DeletedCount() int {
	n := 0
	for _, it := range t.items {
		if it.MarkedAsDeleted {
			n++
		}
	}
	return n
}
