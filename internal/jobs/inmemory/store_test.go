package inmemory

import (
	"context"
	"testing"
	"time"

	"github.com/dvloznov/expense-tracker/internal/jobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreCopies(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	started := time.Now()
	job := &jobs.Job{JobID: "j1", Status: jobs.JobStatusRunning, StartedAt: &started}
	require.NoError(t, s.SaveJob(ctx, job))

	job.Status = jobs.JobStatusFailed
	got, err := s.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusRunning, got.Status)
	assert.NotSame(t, job.StartedAt, got.StartedAt)
}

func TestStoreErrors(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	assert.Error(t, s.SaveJob(ctx, &jobs.Job{}))
	_, err := s.GetJob(ctx, "nope")
	assert.ErrorIs(t, err, jobs.ErrJobNotFound)
	assert.ErrorIs(t, s.UpdateJobStatus(ctx, "nope", jobs.JobStatusFailed, "x"), jobs.ErrJobNotFound)
}

func TestStoreListFilters(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	for i, j := range []*jobs.Job{
		{JobID: "a", Owner: "ann", WizardID: "w1", Type: jobs.JobTypeExtractStatement, Status: jobs.JobStatusCompleted},
		{JobID: "b", Owner: "ann", WizardID: "w1", Type: jobs.JobTypePersistBatch, Status: jobs.JobStatusPending},
		{JobID: "c", Owner: "bob", WizardID: "w2", Type: jobs.JobTypeExtractStatement, Status: jobs.JobStatusFailed},
	} {
		j.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.SaveJob(ctx, j))
	}

	ids := func(list []*jobs.Job) []string {
		out := make([]string, len(list))
		for i, j := range list {
			out[i] = j.JobID
		}
		return out
	}

	tests := []struct {
		name   string
		filter jobs.JobFilter
		want   []string
	}{
		{"all newest first", jobs.JobFilter{}, []string{"c", "b", "a"}},
		{"owner", jobs.JobFilter{Owner: "ann"}, []string{"b", "a"}},
		{"type", jobs.JobFilter{Type: jobs.JobTypeExtractStatement}, []string{"c", "a"}},
		{"status", jobs.JobFilter{Status: jobs.JobStatusFailed}, []string{"c"}},
		{"wizard", jobs.JobFilter{WizardID: "w2"}, []string{"c"}},
		{"limit", jobs.JobFilter{Limit: 2}, []string{"c", "b"}},
		{"offset", jobs.JobFilter{Offset: 1, Limit: 1}, []string{"b"}},
		{"offset past end", jobs.JobFilter{Offset: 5}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListJobs(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}

	require.NoError(t, s.UpdateJobStatus(ctx, "b", jobs.JobStatusFailed, "boom"))
	got, err := s.GetJob(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusFailed, got.Status)
	assert.Equal(t, "boom", got.Error)
}
