package handlers

import (
	"net/http"
	"strconv"

	"github.com/dvloznov/expense-tracker/internal/api/middleware"
	"github.com/dvloznov/expense-tracker/internal/jobs"
)

// JobsHandler handles job-related endpoints. Non-admin callers only see
// their own jobs.
type JobsHandler struct {
	store jobs.JobStore
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore) *JobsHandler {
	return &JobsHandler{store: store}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		writeErr(w, r, err, "Failed to get job")
		return
	}
	if c := claims(r); !c.IsAdmin() && job.Owner != c.Email {
		// Someone else's job is reported as missing.
		writeErr(w, r, jobs.ErrJobNotFound, "Job belongs to another user")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		WizardID:   query.Get("wizard_id"),
		DocumentID: query.Get("document_id"),
		Type:       jobs.JobType(query.Get("type")),
		Status:     jobs.JobStatus(query.Get("status")),
	}
	if c := claims(r); !c.IsAdmin() {
		filter.Owner = c.Email
	} else {
		filter.Owner = query.Get("owner")
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		writeErr(w, r, err, "Failed to list jobs")
		return
	}
	if jobsList == nil {
		jobsList = []*jobs.Job{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
