package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
)

const (
	documentsTable      = "documents"
	extractionRunsTable = "extraction_runs"
	categoriesTable     = "categories"
	reconciledTable     = "reconciled_transactions"
)

// Repository is the BigQuery store behind documents, extraction runs, the
// category catalog and reconciled transactions. It holds a shared client.
type Repository struct {
	client  *bigquery.Client
	project string
	dataset string
}

// NewRepository creates a repository with its own client.
func NewRepository(ctx context.Context, project, dataset string) (*Repository, error) {
	client, err := bigquery.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating client: %w", err)
	}
	return NewRepositoryWithClient(client, dataset), nil
}

// NewRepositoryWithClient wraps an existing client.
func NewRepositoryWithClient(client *bigquery.Client, dataset string) *Repository {
	return &Repository{
		client:  client,
		project: client.Project(),
		dataset: dataset,
	}
}

// Close closes the BigQuery client connection.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// tableRef returns the backquoted, fully qualified table name for SQL.
func (r *Repository) tableRef(table string) string {
	return qualify(r.project, r.dataset, table)
}

func qualify(project, dataset, table string) string {
	return fmt.Sprintf("`%s.%s.%s`", project, dataset, table)
}

func (r *Repository) table(name string) *bigquery.Table {
	return r.client.DatasetInProject(r.project, r.dataset).Table(name)
}

// exec runs a DML statement and waits for it. op prefixes error messages.
func (r *Repository) exec(ctx context.Context, op, sql string, params []bigquery.QueryParameter) error {
	q := r.client.Query(sql)
	q.Parameters = params

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("%s: running query: %w", op, err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("%s: waiting for job: %w", op, err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("%s: job error: %w", op, err)
	}
	return nil
}

// truncateError caps an error message to what the error_message column keeps.
func truncateError(err error) string {
	if err == nil {
		return ""
	}
	const maxLen = 2000
	msg := err.Error()
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return msg
}
