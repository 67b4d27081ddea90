package notionsync

import (
	"time"

	"cloud.google.com/go/bigquery"
	infra "github.com/dvloznov/expense-tracker/internal/infra/bigquery"
	"github.com/jomei/notionapi"
)

// Property names of the expenses database.
const (
	PropDescription   = "Description"
	PropTransactionID = "Transaction ID"
	PropBatchID       = "Batch ID"
	PropDate          = "Date"
	PropAmount        = "Amount"
	PropCategory      = "Category"
	PropCounterparty  = "Counterparty"
	PropLocation      = "Location"
	PropOwner         = "Owner"
)

func richText(s string) notionapi.RichTextProperty {
	return notionapi.RichTextProperty{
		RichText: []notionapi.RichText{
			{
				Type: notionapi.ObjectTypeText,
				Text: &notionapi.Text{Content: s},
			},
		},
	}
}

// ReconciledToNotionProperties maps a reconciled transaction row to a page of
// the expenses database. Transaction ID carries the row's insert id and is
// what makes exports idempotent.
func ReconciledToNotionProperties(row *infra.ReconciledRow) notionapi.Properties {
	title := row.Description
	if title == "" {
		title = row.ItemID
	}

	props := notionapi.Properties{
		PropDescription: notionapi.TitleProperty{
			Title: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{Content: title},
				},
			},
		},
		PropTransactionID: richText(row.InsertID()),
		PropBatchID:       richText(row.BatchID),
		PropOwner:         richText(row.Owner),
		PropCategory: notionapi.SelectProperty{
			Select: notionapi.Option{Name: row.Category},
		},
	}

	if row.Amount != nil {
		f, _ := row.Amount.Float64()
		props[PropAmount] = notionapi.NumberProperty{Number: f}
	}

	if row.TransactionDate.IsValid() {
		d := notionapi.Date(time.Date(
			row.TransactionDate.Year,
			row.TransactionDate.Month,
			row.TransactionDate.Day,
			0, 0, 0, 0, time.UTC,
		))
		props[PropDate] = notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: &d},
		}
	}

	if s, ok := nullString(row.Name); ok {
		props[PropCounterparty] = richText(s)
	} else if s, ok := nullString(row.CounterAccount); ok {
		props[PropCounterparty] = richText(s)
	}
	if s, ok := nullString(row.Location); ok {
		props[PropLocation] = richText(s)
	}

	return props
}

func nullString(v bigquery.NullString) (string, bool) {
	return v.StringVal, v.Valid && v.StringVal != ""
}

// extractTransactionID reads the Transaction ID property of a page.
func extractTransactionID(page notionapi.Page) string {
	prop, ok := page.Properties[PropTransactionID]
	if !ok {
		return ""
	}
	if rt, ok := prop.(*notionapi.RichTextProperty); ok && len(rt.RichText) > 0 {
		return rt.RichText[0].PlainText
	}
	return ""
}
