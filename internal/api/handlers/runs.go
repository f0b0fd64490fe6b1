package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/aodgrid/internal/manifest"
	"github.com/wonny/aodgrid/internal/pipeline"
	"github.com/wonny/aodgrid/internal/runconfig"
	"github.com/wonny/aodgrid/pkg/logger"
)

const (
	defaultRecent = 50
	maxRecent     = 500
	maxRangeDays  = 366
)

// DayProcessor grids one day
type DayProcessor interface {
	ProcessDay(ctx context.Context, date time.Time) (*pipeline.DayResult, error)
}

// RunsHandler serves run history and on-demand gridding
// ⭐ SSOT: 실행 이력 API는 이 구조체에서만
type RunsHandler struct {
	store     manifest.Store
	processor DayProcessor // nil disables POST /api/grid
	baseCtx   context.Context
	logger    *logger.Logger
}

// NewRunsHandler creates a runs handler. Triggered days run on baseCtx so they
// outlive the request but stop with the process.
func NewRunsHandler(baseCtx context.Context, store manifest.Store, p DayProcessor, log *logger.Logger) *RunsHandler {
	return &RunsHandler{
		store:     store,
		processor: p,
		baseCtx:   baseCtx,
		logger:    log,
	}
}

// List returns run records
// GET /api/runs?from=YYYYMMDD&to=YYYYMMDD  (date range)
// GET /api/runs?limit=N                    (most recent)
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if q.Get("from") != "" || q.Get("to") != "" {
		from, err := runconfig.ParseDate(q.Get("from"))
		if err != nil {
			RespondError(w, http.StatusBadRequest, "Invalid 'from' date (expected YYYYMMDD)")
			return
		}
		to, err := runconfig.ParseDate(q.Get("to"))
		if err != nil {
			RespondError(w, http.StatusBadRequest, "Invalid 'to' date (expected YYYYMMDD)")
			return
		}
		if to.Before(from) || to.Sub(from) > maxRangeDays*24*time.Hour {
			RespondError(w, http.StatusBadRequest, "Date range must be ascending and at most 366 days")
			return
		}

		records, err := h.store.List(r.Context(), from, to)
		if err != nil {
			h.logger.WithError(err).Error("Failed to list runs")
			RespondError(w, http.StatusInternalServerError, "Failed to retrieve runs")
			return
		}
		RespondJSON(w, http.StatusOK, nonNilRecords(records))
		return
	}

	limit := defaultRecent
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			RespondError(w, http.StatusBadRequest, "Invalid 'limit'")
			return
		}
		limit = min(n, maxRecent)
	}

	records, err := h.store.Recent(r.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list recent runs")
		RespondError(w, http.StatusInternalServerError, "Failed to retrieve runs")
		return
	}
	RespondJSON(w, http.StatusOK, nonNilRecords(records))
}

// GetDay returns every product record of one day
// GET /api/runs/{date}
func (h *RunsHandler) GetDay(w http.ResponseWriter, r *http.Request) {
	date, err := runconfig.ParseDate(mux.Vars(r)["date"])
	if err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid date (expected YYYYMMDD)")
		return
	}

	records, err := h.store.List(r.Context(), date, date)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list runs")
		RespondError(w, http.StatusInternalServerError, "Failed to retrieve runs")
		return
	}
	if len(records) == 0 {
		RespondError(w, http.StatusNotFound, "No runs for this day")
		return
	}
	RespondJSON(w, http.StatusOK, records)
}

// Get returns one run record
// GET /api/runs/{date}/{product}
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	date, err := runconfig.ParseDate(vars["date"])
	if err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid date (expected YYYYMMDD)")
		return
	}

	rec, err := h.store.Get(r.Context(), date, vars["product"])
	if errors.Is(err, manifest.ErrNotFound) {
		RespondError(w, http.StatusNotFound, "Run not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to get run")
		RespondError(w, http.StatusInternalServerError, "Failed to retrieve run")
		return
	}
	RespondJSON(w, http.StatusOK, rec)
}

// TriggerRequest asks for one day to be gridded
type TriggerRequest struct {
	Date string `json:"date"` // YYYYMMDD
}

// TriggerResponse acknowledges a triggered day
type TriggerResponse struct {
	Status string `json:"status"`
	Date   string `json:"date"`
}

// Trigger grids one day in the background; progress is streamed on /api/stream
// POST /api/grid
func (h *RunsHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	if h.processor == nil {
		RespondError(w, http.StatusServiceUnavailable, "Gridding is not enabled on this server")
		return
	}

	var req TriggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	date, err := runconfig.ParseDate(req.Date)
	if err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid date (expected YYYYMMDD)")
		return
	}

	log := h.logger.WithField("date", req.Date)
	log.Info("Gridding triggered via API")

	go func() {
		res, err := h.processor.ProcessDay(h.baseCtx, date)
		switch {
		case errors.Is(err, pipeline.ErrDayLocked):
			log.Warn("Triggered day already in progress")
		case err != nil:
			log.WithError(err).Error("Triggered gridding failed")
		default:
			log.WithField("outputs", len(res.Outputs)).Info("Triggered gridding finished")
		}
	}()

	RespondJSON(w, http.StatusAccepted, TriggerResponse{Status: "accepted", Date: req.Date})
}

func nonNilRecords(r []*manifest.Record) []*manifest.Record {
	if r == nil {
		return []*manifest.Record{}
	}
	return r
}
