package notionsync

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	infra "github.com/dvloznov/expense-tracker/internal/infra/bigquery"
	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotion struct {
	existing []notionapi.Page
	created  []notionapi.Properties
	failOn   string
	queries  []*notionapi.DatabaseQueryRequest
}

func (f *fakeNotion) CreatePage(ctx context.Context, databaseID string, props notionapi.Properties) (*notionapi.Page, error) {
	id := props[PropTransactionID].(notionapi.RichTextProperty).RichText[0].Text.Content
	if id == f.failOn {
		return nil, errors.New("rate limited")
	}
	f.created = append(f.created, props)
	return &notionapi.Page{ID: notionapi.ObjectID("page-" + id)}, nil
}

func (f *fakeNotion) QueryDatabase(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	f.queries = append(f.queries, req)
	return &notionapi.DatabaseQueryResponse{Results: f.existing}, nil
}

func pageWithTransactionID(id string) notionapi.Page {
	return notionapi.Page{
		Properties: notionapi.Properties{
			PropTransactionID: &notionapi.RichTextProperty{
				RichText: []notionapi.RichText{{PlainText: id}},
			},
		},
	}
}

func row(item string) *infra.ReconciledRow {
	return &infra.ReconciledRow{
		BatchID:         "b1",
		ItemID:          item,
		Owner:           "ann@example.com",
		TransactionDate: civil.Date{Year: 2025, Month: 2, Day: 3},
		Description:     "card payment " + item,
		Amount:          big.NewRat(-1250, 100),
		Category:        "Groceries",
		Name:            bigquery.NullString{StringVal: "Albert", Valid: true},
	}
}

func TestReconciledToNotionProperties(t *testing.T) {
	props := ReconciledToNotionProperties(row("transaction-0"))

	title := props[PropDescription].(notionapi.TitleProperty)
	assert.Equal(t, "card payment transaction-0", title.Title[0].Text.Content)
	assert.Equal(t, -12.5, props[PropAmount].(notionapi.NumberProperty).Number)
	assert.Equal(t, "Groceries", props[PropCategory].(notionapi.SelectProperty).Select.Name)
	assert.Equal(t, "b1/transaction-0", props[PropTransactionID].(notionapi.RichTextProperty).RichText[0].Text.Content)
	assert.Equal(t, "Albert", props[PropCounterparty].(notionapi.RichTextProperty).RichText[0].Text.Content)
	assert.NotContains(t, props, PropLocation)

	date := props[PropDate].(notionapi.DateProperty)
	require.NotNil(t, date.Date.Start)
}

func TestExportSkipsExisting(t *testing.T) {
	svc := &fakeNotion{existing: []notionapi.Page{pageWithTransactionID("b1/transaction-0")}}
	e := NewExporter(svc, "db")

	stats, err := e.Export(context.Background(), []*infra.ReconciledRow{row("transaction-0"), row("transaction-1")})
	require.NoError(t, err)
	assert.Equal(t, Stats{Created: 1, Skipped: 1}, stats)
	require.Len(t, svc.created, 1)
	require.Len(t, svc.queries, 1)
}

func TestExportReportsFailures(t *testing.T) {
	svc := &fakeNotion{failOn: "b1/transaction-0"}
	e := NewExporter(svc, "db")

	stats, err := e.Export(context.Background(), []*infra.ReconciledRow{row("transaction-0"), row("transaction-1")})
	assert.Error(t, err)
	assert.Equal(t, Stats{Created: 1, Failed: 1}, stats)
}

func TestExportDryRun(t *testing.T) {
	svc := &fakeNotion{}
	e := NewExporter(svc, "db").WithDryRun(true)

	stats, err := e.Export(context.Background(), []*infra.ReconciledRow{row("transaction-0")})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Created)
	assert.Empty(t, svc.created)
}

func TestExportEmpty(t *testing.T) {
	svc := &fakeNotion{}
	stats, err := NewExporter(svc, "db").Export(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, stats)
	assert.Empty(t, svc.queries)
}
