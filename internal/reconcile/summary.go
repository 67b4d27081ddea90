package reconcile

// Summary carries the derived figures shown around the table.
type Summary struct {
	ItemCount     int    `json:"itemCount"`
	DeletedCount  int    `json:"deletedCount"`
	DisabledCount int    `json:"disabledCount"`
	SelectedCount int    `json:"selectedCount"`
	AllSelected   bool   `json:"allSelected"`
	Total         string `json:"total"`
	SelectedTotal string `json:"selectedTotal"`
}

// Summary computes the current derived figures. Totals are rounded to two
// decimal places.
func (t *Table) Summary() Summary {
	return Summary{
		ItemCount:     len(t.items),
		DeletedCount:  t.DeletedCount(),
		DisabledCount: len(t.disabled),
		SelectedCount: len(t.selected),
		AllSelected:   len(t.selected) == len(t.items),
		Total:         t.Total().StringFixed(2),
		SelectedTotal: t.SelectedTotal().StringFixed(2),
	}
}
