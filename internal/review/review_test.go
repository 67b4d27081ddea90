package review

import (
	"testing"
	"time"

	"github.com/dvloznov/expense-tracker/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tx(amount string, category string) domain.Transaction {
	t := domain.Transaction{Amount: decimal.RequireFromString(amount)}
	if category != "" {
		t.TransactionDetails = &domain.TransactionDetails{Category: &category}
	}
	return t
}

func sums(groups []CategorySum) map[string]string {
	out := make(map[string]string, len(groups))
	for _, g := range groups {
		out[g.Name] = g.Value.String()
	}
	return out
}

func fixture() *domain.Statement {
	return &domain.Statement{
		Period: domain.Period{StartDate: "01-03-2025", EndDate: "31-03-2025"},
		BasicAccountData: domain.BasicAccountData{
			InitialBalance: decimal.RequireFromString("1000"),
			TotalReceived:  decimal.RequireFromString("2500"),
		},
		Transactions: []domain.Transaction{
			tx("-12.50", "Food"),
			tx("2500", "Income"),
			tx("-7.50", "Food"),
			tx("-30", ""),
			tx("0", "Food"),
			tx("15", ""),
		},
	}
}

func TestCredit(t *testing.T) {
	got := Credit(fixture())

	require.Len(t, got, 2)
	assert.Equal(t, "Food", got[0].Name, "first appearance order")
	assert.Equal(t, map[string]string{"Food": "20", "Uncategorized": "30"}, sums(got))
}

func TestDebit(t *testing.T) {
	got := Debit(fixture())

	assert.Equal(t, map[string]string{"Income": "2500", "Uncategorized": "15"}, sums(got))
}

func TestDoesNotMutateSource(t *testing.T) {
	st := fixture()
	before := st.Transactions[0].Amount

	_ = Credit(st)

	assert.True(t, before.Equal(st.Transactions[0].Amount))
	assert.True(t, st.Transactions[0].Amount.IsNegative())
}

func TestNilStatement(t *testing.T) {
	now := time.Date(2025, 4, 9, 15, 4, 0, 0, time.UTC)
	r := Build(nil, now)

	assert.True(t, r.Empty)
	assert.Empty(t, r.Credit)
	assert.Empty(t, r.Debit)
	assert.Empty(t, r.Balances)
	assert.Equal(t, time.Date(2025, 4, 9, 0, 0, 0, 0, time.UTC), r.Period.Start)
	assert.Equal(t, r.Period.Start, r.Period.End)
}

func TestBuild(t *testing.T) {
	r := Build(fixture(), time.Now())

	assert.False(t, r.Empty)
	require.Len(t, r.Balances, 6)
	assert.Equal(t, "addExpenses.reviewStep.totalRecieved", r.Balances[1].Key)
	assert.Equal(t, "2500", r.Balances[1].Value.String())
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), r.Period.Start)
	assert.Equal(t, time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC), r.Period.End)
}

func TestPeriodFallback(t *testing.T) {
	now := time.Date(2025, 4, 9, 0, 0, 0, 0, time.UTC)
	st := &domain.Statement{Period: domain.Period{StartDate: "2025-03-01", EndDate: "31-03-2025"}}

	p := StatementPeriod(st, now)

	assert.Equal(t, now, p.Start)
	assert.Equal(t, time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC), p.End)
}
