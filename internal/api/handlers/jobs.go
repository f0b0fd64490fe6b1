package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/wonny/aodgrid/internal/scheduler"
	"github.com/wonny/aodgrid/pkg/logger"
)

// JobRunner is the part of the scheduler exposed over HTTP
type JobRunner interface {
	Stats() []scheduler.JobStats
	History(name string, n int) ([]scheduler.JobResult, error)
	Trigger(name string) error
}

// JobsHandler exposes scheduled jobs
type JobsHandler struct {
	runner JobRunner
	logger *logger.Logger
}

// NewJobsHandler creates a jobs handler
func NewJobsHandler(runner JobRunner, log *logger.Logger) *JobsHandler {
	return &JobsHandler{runner: runner, logger: log}
}

// List returns per-job statistics
// GET /api/jobs
func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, h.runner.Stats())
}

// History returns recent results of one job
// GET /api/jobs/{name}/history?limit=N
func (h *JobsHandler) History(w http.ResponseWriter, r *http.Request) {
	n := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 {
			RespondError(w, http.StatusBadRequest, "Invalid 'limit'")
			return
		}
		n = v
	}

	results, err := h.runner.History(mux.Vars(r)["name"], n)
	if errors.Is(err, scheduler.ErrJobNotFound) {
		RespondError(w, http.StatusNotFound, "Job not found")
		return
	}
	if err != nil {
		RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	RespondJSON(w, http.StatusOK, results)
}

// Run starts a job outside its schedule
// POST /api/jobs/{name}/run
func (h *JobsHandler) Run(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := h.runner.Trigger(name); err != nil {
		if errors.Is(err, scheduler.ErrJobNotFound) {
			RespondError(w, http.StatusNotFound, "Job not found")
			return
		}
		h.logger.WithError(err).Error("Failed to trigger job")
		RespondError(w, http.StatusInternalServerError, "Failed to trigger job")
		return
	}

	h.logger.WithField("job", name).Info("Job triggered via API")
	RespondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "job": name})
}
