package domain

// Category is one entry of the fixed expense-category catalog.
type Category struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// UncategorizedTitle is the label used when a transaction carries no category.
const UncategorizedTitle = "Uncategorized"
