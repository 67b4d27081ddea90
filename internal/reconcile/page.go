package reconcile

import "slices"

// Page is one view slice of the item list.
type Page struct {
	Number     int    `json:"number"`
	Size       int    `json:"size"`
	TotalPages int    `json:"totalPages"`
	TotalItems int    `json:"totalItems"`
	Items      []Item `json:"items"`
}

// PageSize returns the current page size.
func (t *Table) PageSize() int {
	return t.pageSize
}

// SetPageSize changes the page size and resets to page 1.
func (t *Table) SetPageSize(size int) error {
	if !slices.Contains(PageSizes, size) {
		return ErrInvalidPageSize
	}
	t.pageSize = size
	t.page = 1
	return nil
}

// TotalPages returns the number of pages; an empty table has one empty page.
func (t *Table) TotalPages() int {
	if len(t.items) == 0 {
		return 1
	}
	return (len(t.items) + t.pageSize - 1) / t.pageSize
}

// SetPage moves to page n (1-based).
func (t *Table) SetPage(n int) error {
	if n < 1 || n > t.TotalPages() {
		return ErrPageOutOfRange
	}
	t.page = n
	return nil
}

// Page returns the current page. Paging never touches selection or
// eligibility state.
func (t *Table) Page() Page {
	start := (t.page - 1) * t.pageSize
	end := min(start+t.pageSize, len(t.items))
	items := make([]Item, 0, max(end-start, 0))
	for _, it := range t.items[min(start, len(t.items)):end] {
		items = append(items, it.clone())
	}
	return Page{
		Number:     t.page,
		Size:       t.pageSize,
		TotalPages: t.TotalPages(),
		TotalItems: len(t.items),
		Items:      items,
	}
}
