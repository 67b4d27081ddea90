// Package review derives the read-only figures shown while reviewing an
// extracted statement: per-category credit and debit sums, headline
// balances and the statement period.
package review

import (
	"time"

	"github.com/dvloznov/expense-tracker/internal/domain"
	"github.com/shopspring/decimal"
)

// CategorySum is one slice of a grouping.
type CategorySum struct {
	Name  string          `json:"name"`
	Value decimal.Decimal `json:"value"`
}

// Balance is one labelled headline figure. Key is the locale key of its label.
type Balance struct {
	Key   string          `json:"key"`
	Value decimal.Decimal `json:"value"`
}

// Period is the statement date range. Missing or unreadable dates fall back
// to the day the report was built.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Report is everything the review step renders.
type Report struct {
	Empty    bool          `json:"empty"`
	Credit   []CategorySum `json:"credit"`
	Debit    []CategorySum `json:"debit"`
	Balances []Balance     `json:"balances"`
	Period   Period        `json:"period"`
}

// Credit groups outgoing transactions (amount < 0) by category and sums
// their absolute values, in order of first appearance.
func Credit(st *domain.Statement) []CategorySum {
	return group(st, func(a decimal.Decimal) (decimal.Decimal, bool) {
		if !a.IsNegative() {
			return decimal.Zero, false
		}
		return a.Abs(), true
	})
}

// Debit groups incoming transactions (amount > 0) by category.
func Debit(st *domain.Statement) []CategorySum {
	return group(st, func(a decimal.Decimal) (decimal.Decimal, bool) {
		return a, a.IsPositive()
	})
}

func group(st *domain.Statement, pick func(decimal.Decimal) (decimal.Decimal, bool)) []CategorySum {
	out := []CategorySum{}
	if st == nil {
		return out
	}
	pos := make(map[string]int)
	for _, tx := range st.Transactions {
		v, ok := pick(tx.Amount)
		if !ok {
			continue
		}
		name := domain.UncategorizedTitle
		if tx.HasCategory() {
			name = tx.Category()
		}
		i, seen := pos[name]
		if !seen {
			pos[name] = len(out)
			out = append(out, CategorySum{Name: name, Value: v})
			continue
		}
		out[i].Value = out[i].Value.Add(v)
	}
	return out
}

// Balances lists the six account-data figures in display order.
func Balances(st *domain.Statement) []Balance {
	if st == nil {
		return []Balance{}
	}
	d := st.BasicAccountData
	return []Balance{
		{Key: "addExpenses.reviewStep.initialBalance", Value: d.InitialBalance},
		{Key: "addExpenses.reviewStep.totalRecieved", Value: d.TotalReceived},
		{Key: "addExpenses.reviewStep.totalWithdrawn", Value: d.TotalWithdrawn},
		{Key: "addExpenses.reviewStep.finalBalance", Value: d.FinalBalance},
		{Key: "addExpenses.reviewStep.reservationOfFunds", Value: d.ReservationOfFunds},
		{Key: "addExpenses.reviewStep.availableBalance", Value: d.AvailableBalance},
	}
}

// StatementPeriod parses the DD-MM-YYYY period, using today for either bound
// that is absent or malformed.
func StatementPeriod(st *domain.Statement, now time.Time) Period {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	p := Period{Start: today, End: today}
	if st == nil {
		return p
	}
	if t, err := time.Parse(domain.SourceDateLayout, st.Period.StartDate); err == nil {
		p.Start = t
	}
	if t, err := time.Parse(domain.SourceDateLayout, st.Period.EndDate); err == nil {
		p.End = t
	}
	return p
}

// Build assembles the full report. A nil statement yields an empty report.
func Build(st *domain.Statement, now time.Time) Report {
	return Report{
		Empty:    st == nil || len(st.Transactions) == 0,
		Credit:   Credit(st),
		Debit:    Debit(st),
		Balances: Balances(st),
		Period:   StatementPeriod(st, now),
	}
}
