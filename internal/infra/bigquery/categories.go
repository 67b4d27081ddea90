package bigquery

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/expense-tracker/internal/domain"
	"google.golang.org/api/iterator"
)

var (
	// ErrDuplicateCategory is returned when a category title already exists.
	ErrDuplicateCategory = errors.New("category already exists")
	// ErrEmptyCategory is returned for a blank category title.
	ErrEmptyCategory = errors.New("category title is empty")
)

// CategoryRow is one entry of the category catalog.
type CategoryRow struct {
	ID       int64  `bigquery:"id"`
	Title    string `bigquery:"title"`
	IsActive bool   `bigquery:"is_active"`
}

// ListCategories returns the active catalog ordered by id.
func (r *Repository) ListCategories(ctx context.Context) ([]domain.Category, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT id, title, is_active
		FROM %s
		WHERE is_active = TRUE
		ORDER BY id
	`, r.tableRef(categoriesTable)))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListCategories: query read: %w", err)
	}

	var out []domain.Category
	for {
		var row CategoryRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListCategories: iter next: %w", err)
		}
		out = append(out, domain.Category{ID: row.ID, Title: row.Title})
	}
	return out, nil
}

// CreateCategory appends a title to the catalog with the next free id.
func (r *Repository) CreateCategory(ctx context.Context, title string) (domain.Category, error) {
	existing, err := r.ListCategories(ctx)
	if err != nil {
		return domain.Category{}, fmt.Errorf("CreateCategory: %w", err)
	}
	c, err := NextCategory(existing, title)
	if err != nil {
		return domain.Category{}, fmt.Errorf("CreateCategory: %w", err)
	}

	err = r.exec(ctx, "CreateCategory", fmt.Sprintf(`
		INSERT %s (id, title, is_active)
		VALUES (@id, @title, TRUE)
	`, r.tableRef(categoriesTable)), []bigquery.QueryParameter{
		{Name: "id", Value: c.ID},
		{Name: "title", Value: c.Title},
	})
	if err != nil {
		return domain.Category{}, err
	}
	return c, nil
}

// NextCategory validates title against the catalog and assigns max(id)+1.
// Titles compare case-insensitively.
func NextCategory(existing []domain.Category, title string) (domain.Category, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.Category{}, ErrEmptyCategory
	}
	var maxID int64
	for _, c := range existing {
		if strings.EqualFold(c.Title, title) {
			return domain.Category{}, fmt.Errorf("%q: %w", title, ErrDuplicateCategory)
		}
		maxID = max(maxID, c.ID)
	}
	return domain.Category{ID: maxID + 1, Title: title}, nil
}
