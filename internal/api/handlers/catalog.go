package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dvloznov/expense-tracker/internal/api/middleware"
	"github.com/dvloznov/expense-tracker/internal/domain"
	"github.com/dvloznov/expense-tracker/internal/locale"
	"github.com/dvloznov/expense-tracker/internal/logger"
)

// Catalog reads and extends the category catalog.
type Catalog interface {
	CategoryLister
	CreateCategory(ctx context.Context, title string) (domain.Category, error)
}

const categoryKeys = "expenseCategories.categories."

// CategoriesHandler handles category-related endpoints.
type CategoriesHandler struct {
	catalog  Catalog
	resolver *locale.Resolver
}

// NewCategoriesHandler creates a new categories handler.
func NewCategoriesHandler(catalog Catalog, resolver *locale.Resolver) *CategoriesHandler {
	return &CategoriesHandler{catalog: catalog, resolver: resolver}
}

// translations maps category ids to their names in the request locale.
// Categories added at runtime have no entry and keep their title.
func (h *CategoriesHandler) translations(ctx context.Context, categories []domain.Category) map[string]string {
	loc := middleware.LocaleFromContext(ctx)
	if loc == "" {
		loc = h.resolver.Default()
	}
	out := make(map[string]string, len(categories))
	for _, c := range categories {
		id := strconv.FormatInt(c.ID, 10)
		name := h.resolver.Lookup(loc, categoryKeys+id)
		if name == categoryKeys+id {
			name = c.Title
		}
		out[id] = name
	}
	return out
}

// ListCategories handles GET /api/categories
func (h *CategoriesHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.ListCategories(r.Context())
	if err != nil {
		writeErr(w, r, err, "Failed to list categories")
		return
	}
	if categories == nil {
		categories = []domain.Category{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categories":   categories,
		"translations": h.translations(r.Context(), categories),
		"count":        len(categories),
	})
}

// CreateCategory handles POST /api/categories
func (h *CategoriesHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if !decode(w, r, &req) {
		return
	}
	c, err := h.catalog.CreateCategory(r.Context(), req.Title)
	if err != nil {
		writeErr(w, r, err, "Failed to create category")
		return
	}
	log := logger.FromContext(r.Context())
	log.Info().Int64("category_id", c.ID).Str("title", c.Title).Msg("Category created")
	middleware.WriteJSON(w, http.StatusCreated, c)
}
