package extraction

import (
	"encoding/json"
	"strings"

	"github.com/dvloznov/expense-tracker/internal/domain"
)

// ParseResponse reads a model reply. Replies that are not a statement object
// come back as raw-only results rather than errors.
func ParseResponse(text string) Result {
	res := Result{Raw: text}

	var env domain.StatementEnvelope
	if err := json.Unmarshal([]byte(cleanModelJSON(text)), &env); err != nil {
		return res
	}
	if env.AccountStatement == nil {
		return res
	}

	normalizeCategories(env.AccountStatement)
	res.Statement = env.AccountStatement
	return res
}

// normalizeCategories turns blank categories into absent ones.
func normalizeCategories(st *domain.Statement) {
	for i := range st.Transactions {
		d := st.Transactions[i].TransactionDetails
		if d == nil || d.Category == nil {
			continue
		}
		c := strings.TrimSpace(*d.Category)
		if c == "" {
			d.Category = nil
			continue
		}
		d.Category = &c
	}
}

func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	// Keep only the outermost object if there is chatter around it.
	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
