package pipeline

import (
	"sort"
	"strings"

	"github.com/dvloznov/expense-tracker/internal/domain"
)

// CategoryNormalizer maps model-assigned categories onto catalog titles.
type CategoryNormalizer struct {
	titles map[string]string // normalized -> catalog spelling
}

// NewCategoryNormalizer indexes the catalog.
func NewCategoryNormalizer(categories []domain.Category) *CategoryNormalizer {
	n := &CategoryNormalizer{titles: make(map[string]string, len(categories))}
	for _, c := range categories {
		n.titles[normalizeCategory(c.Title)] = c.Title
	}
	return n
}

func normalizeCategory(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Normalize rewrites categories that match a catalog title up to case and
// spacing to the catalog spelling. Unknown categories are kept as the model
// wrote them; their distinct titles are returned sorted.
func (n *CategoryNormalizer) Normalize(st *domain.Statement) []string {
	if st == nil {
		return nil
	}
	unknown := make(map[string]bool)
	for i := range st.Transactions {
		tx := &st.Transactions[i]
		if !tx.HasCategory() {
			continue
		}
		if title, ok := n.titles[normalizeCategory(tx.Category())]; ok {
			*tx = tx.WithCategory(title)
			continue
		}
		unknown[tx.Category()] = true
	}

	out := make([]string, 0, len(unknown))
	for c := range unknown {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
