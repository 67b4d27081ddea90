package bigquery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/iterator"
)

// Document parsing statuses.
const (
	DocumentPending      = "PENDING"
	DocumentParsed       = "PARSED"
	DocumentUnstructured = "UNSTRUCTURED"
	DocumentFailed       = "FAILED"
	DocumentReconciled   = "RECONCILED"
)

// ErrDocumentNotFound is returned when no document row matches.
var ErrDocumentNotFound = errors.New("document not found")

// DocumentRow is one uploaded statement file.
type DocumentRow struct {
	DocumentID string `bigquery:"document_id"` // REQUIRED
	Owner      string `bigquery:"owner"`       // REQUIRED
	ObjectURI  string `bigquery:"object_uri"`  // REQUIRED

	OriginalFilename string `bigquery:"original_filename"`
	FileMimeType     string `bigquery:"file_mime_type"`
	SizeBytes        int64  `bigquery:"size_bytes"`
	ChecksumSHA256   string `bigquery:"checksum_sha256"`

	StatementStartDate bigquery.NullDate `bigquery:"statement_start_date"`
	StatementEndDate   bigquery.NullDate `bigquery:"statement_end_date"`

	UploadTS    time.Time              `bigquery:"upload_ts"` // REQUIRED
	ProcessedTS bigquery.NullTimestamp `bigquery:"processed_ts"`

	ParsingStatus string `bigquery:"parsing_status"`
}

const documentColumns = `
	document_id, owner, object_uri, original_filename, file_mime_type,
	size_bytes, checksum_sha256, statement_start_date, statement_end_date,
	upload_ts, processed_ts, parsing_status`

// InsertDocument streams a single document row.
func (r *Repository) InsertDocument(ctx context.Context, row *DocumentRow) error {
	if err := r.table(documentsTable).Inserter().Put(ctx, row); err != nil {
		return fmt.Errorf("InsertDocument: inserting row: %w", err)
	}
	return nil
}

// GetDocument returns the document with the given id.
func (r *Repository) GetDocument(ctx context.Context, documentID string) (*DocumentRow, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE document_id = @document_id
		LIMIT 1
	`, documentColumns, r.tableRef(documentsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "document_id", Value: documentID},
	}

	rows, err := readDocuments(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("GetDocument: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("GetDocument: %s: %w", documentID, ErrDocumentNotFound)
	}
	return rows[0], nil
}

// FindDocumentByChecksum returns the owner's document with the given
// checksum, or nil when there is none.
func (r *Repository) FindDocumentByChecksum(ctx context.Context, owner, checksum string) (*DocumentRow, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE owner = @owner AND checksum_sha256 = @checksum
		ORDER BY upload_ts DESC
		LIMIT 1
	`, documentColumns, r.tableRef(documentsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "owner", Value: owner},
		{Name: "checksum", Value: checksum},
	}

	rows, err := readDocuments(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("FindDocumentByChecksum: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// ListDocuments returns the owner's documents, newest first.
func (r *Repository) ListDocuments(ctx context.Context, owner string, limit int) ([]*DocumentRow, error) {
	if limit <= 0 {
		limit = 50
	}
	q := r.client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE owner = @owner
		ORDER BY upload_ts DESC
		LIMIT @limit
	`, documentColumns, r.tableRef(documentsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "owner", Value: owner},
		{Name: "limit", Value: limit},
	}

	rows, err := readDocuments(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("ListDocuments: %w", err)
	}
	return rows, nil
}

// UpdateDocumentStatus sets the parsing status and processed timestamp. A
// non-nil period also records the statement dates.
func (r *Repository) UpdateDocumentStatus(ctx context.Context, documentID, status string, start, end *civil.Date) error {
	params := []bigquery.QueryParameter{
		{Name: "status", Value: status},
		{Name: "processed_ts", Value: time.Now()},
		{Name: "document_id", Value: documentID},
		{Name: "start_date", Value: nullDate(start)},
		{Name: "end_date", Value: nullDate(end)},
	}
	return r.exec(ctx, "UpdateDocumentStatus", fmt.Sprintf(`
		UPDATE %s
		SET parsing_status = @status,
		    processed_ts = @processed_ts,
		    statement_start_date = COALESCE(@start_date, statement_start_date),
		    statement_end_date = COALESCE(@end_date, statement_end_date)
		WHERE document_id = @document_id
	`, r.tableRef(documentsTable)), params)
}

func nullDate(d *civil.Date) bigquery.NullDate {
	if d == nil {
		return bigquery.NullDate{}
	}
	return bigquery.NullDate{Date: *d, Valid: true}
}

func readDocuments(ctx context.Context, q *bigquery.Query) ([]*DocumentRow, error) {
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("query read: %w", err)
	}

	var rows []*DocumentRow
	for {
		var row DocumentRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iter next: %w", err)
		}
		rows = append(rows, &row)
	}
	return rows, nil
}
