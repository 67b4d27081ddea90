package wizard

import "github.com/dvloznov/expense-tracker/internal/reconcile"

// TableView is a snapshot of the reconciliation table for rendering.
type TableView struct {
	Page      reconcile.Page    `json:"page"`
	Summary   reconcile.Summary `json:"summary"`
	Selected  []string          `json:"selected"`
	Disabled  []string          `json:"disabled"`
	Committed int               `json:"committed"`
}

func (w *Wizard) view() TableView {
	return TableView{
		Page:      w.table.Page(),
		Summary:   w.table.Summary(),
		Selected:  w.table.Selected(),
		Disabled:  w.table.Disabled(),
		Committed: len(w.committed),
	}
}

// Table returns the current table snapshot.
func (w *Wizard) Table() TableView {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.view()
}

// mutate runs fn on the table unless the wizard is frozen.
func (w *Wizard) mutate(fn func(t *reconcile.Table) error) (TableView, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touch()
	if w.batch != nil {
		return w.view(), ErrSaved
	}
	if err := fn(w.table); err != nil {
		return w.view(), err
	}
	return w.view(), nil
}

// Apply runs a row action and reports whether anything changed.
func (w *Wizard) Apply(itemID string, action reconcile.Action, category string) (bool, TableView, error) {
	var changed bool
	v, err := w.mutate(func(t *reconcile.Table) error {
		var err error
		changed, err = t.Apply(itemID, action, category)
		return err
	})
	return changed, v, err
}

// Select replaces the selection. all selects every eligible item instead.
func (w *Wizard) Select(ids []string, all bool) (TableView, error) {
	return w.mutate(func(t *reconcile.Table) error {
		if all {
			t.SelectAll()
			return nil
		}
		t.Select(ids)
		return nil
	})
}

// SetPageSize changes the table page size.
func (w *Wizard) SetPageSize(size int) (TableView, error) {
	return w.mutate(func(t *reconcile.Table) error {
		return t.SetPageSize(size)
	})
}

// SetPage moves the table to page n.
func (w *Wizard) SetPage(n int) (TableView, error) {
	return w.mutate(func(t *reconcile.Table) error {
		return t.SetPage(n)
	})
}

// Commit stores the selected items as the pending batch, replacing any
// earlier commit.
func (w *Wizard) Commit() ([]reconcile.Item, error) {
	var items []reconcile.Item
	_, err := w.mutate(func(t *reconcile.Table) error {
		var err error
		items, err = t.Commit()
		if err != nil {
			return err
		}
		w.committed = items
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cloneItems(items), nil
}

// ItemActions lists, per item id on the current page, the actions allowed.
func (w *Wizard) ItemActions() map[string][]reconcile.Action {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[string][]reconcile.Action)
	for _, it := range w.table.Page().Items {
		out[it.ID] = it.AllowedActions()
	}
	return out
}
