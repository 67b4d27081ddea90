package bigquery

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/iterator"
)

// ReconciledRow is one transaction the user committed in a saved batch.
type ReconciledRow struct {
	BatchID    string `bigquery:"batch_id"`
	ItemID     string `bigquery:"item_id"`
	WizardID   string `bigquery:"wizard_id"`
	Owner      string `bigquery:"owner"`
	DocumentID string `bigquery:"document_id"`

	TransactionDate civil.Date `bigquery:"transaction_date"`
	Description     string     `bigquery:"description"`
	Amount          *big.Rat   `bigquery:"amount"` // NUMERIC
	Category        string     `bigquery:"category"`

	CounterAccount bigquery.NullString `bigquery:"counter_account"`
	Location       bigquery.NullString `bigquery:"location"`
	Name           bigquery.NullString `bigquery:"name"`
	VariableSymbol bigquery.NullString `bigquery:"variable_symbol"`
	ConstantSymbol bigquery.NullString `bigquery:"constant_symbol"`
	SpecificSymbol bigquery.NullString `bigquery:"specific_symbol"`
	Details        bigquery.NullString `bigquery:"details"`

	InsertedAt time.Time `bigquery:"inserted_ts"`
}

// InsertID is the streaming dedup key: retries of the same batch item
// collapse to one row.
func (r *ReconciledRow) InsertID() string {
	return r.BatchID + "/" + r.ItemID
}

// Save implements bigquery.ValueSaver.
func (r *ReconciledRow) Save() (map[string]bigquery.Value, string, error) {
	return map[string]bigquery.Value{
		"batch_id":         r.BatchID,
		"item_id":          r.ItemID,
		"wizard_id":        r.WizardID,
		"owner":            r.Owner,
		"document_id":      r.DocumentID,
		"transaction_date": r.TransactionDate,
		"description":      r.Description,
		"amount":           r.Amount,
		"category":         r.Category,
		"counter_account":  r.CounterAccount,
		"location":         r.Location,
		"name":             r.Name,
		"variable_symbol":  r.VariableSymbol,
		"constant_symbol":  r.ConstantSymbol,
		"specific_symbol":  r.SpecificSymbol,
		"details":          r.Details,
		"inserted_ts":      r.InsertedAt,
	}, r.InsertID(), nil
}

var _ bigquery.ValueSaver = (*ReconciledRow)(nil)

// InsertReconciled streams the rows of a saved batch.
func (r *Repository) InsertReconciled(ctx context.Context, rows []*ReconciledRow) error {
	if len(rows) == 0 {
		return nil
	}
	if err := r.table(reconciledTable).Inserter().Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertReconciled: inserting rows: %w", err)
	}
	return nil
}

// CategoryTotal is the summed amount of one category over a date range.
type CategoryTotal struct {
	Category string   `bigquery:"category"`
	Total    *big.Rat `bigquery:"total"`
	Count    int64    `bigquery:"count"`
}

// SumByCategory totals the owner's reconciled transactions per category
// between start and end inclusive.
func (r *Repository) SumByCategory(ctx context.Context, owner string, start, end civil.Date) ([]CategoryTotal, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT category, SUM(amount) AS total, COUNT(*) AS count
		FROM %s
		WHERE owner = @owner
		  AND transaction_date BETWEEN @start AND @end
		GROUP BY category
		ORDER BY category
	`, r.tableRef(reconciledTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "owner", Value: owner},
		{Name: "start", Value: start},
		{Name: "end", Value: end},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("SumByCategory: query read: %w", err)
	}
	var out []CategoryTotal
	for {
		var row CategoryTotal
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("SumByCategory: iter next: %w", err)
		}
		out = append(out, row)
	}
	return out, nil
}

// ListReconciled returns reconciled rows dated between start and end
// inclusive, oldest first. An empty owner matches every owner.
func (r *Repository) ListReconciled(ctx context.Context, owner string, start, end civil.Date) ([]*ReconciledRow, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT *
		FROM %s
		WHERE (@owner = '' OR owner = @owner)
		  AND transaction_date BETWEEN @start AND @end
		ORDER BY transaction_date, batch_id, item_id
	`, r.tableRef(reconciledTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "owner", Value: owner},
		{Name: "start", Value: start},
		{Name: "end", Value: end},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListReconciled: query read: %w", err)
	}
	var out []*ReconciledRow
	for {
		var row ReconciledRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListReconciled: iter next: %w", err)
		}
		out = append(out, &row)
	}
	return out, nil
}
