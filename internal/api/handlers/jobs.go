package handlers

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/ametsa/bachat-core/internal/api/middleware"
	"github.com/ametsa/bachat-core/internal/jobs"
)

// JobsHandler serves job status queries.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{store: store, log: log}
}

// Get handles GET /api/jobs/{id}.
func (h *JobsHandler) Get(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "job not found")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, job)
}

// List handles GET /api/jobs with optional type/status/statement_id/
// account_id filters.
func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		Type:        jobs.JobType(query.Get("type")),
		StatementID: query.Get("statement_id"),
		AccountID:   query.Get("account_id"),
		Status:      jobs.JobStatus(query.Get("status")),
	}
	if s := query.Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			filter.Limit = n
		}
	}
	if s := query.Get("offset"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			filter.Offset = n
		}
	}

	list, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  list,
		"count": len(list),
	})
}
