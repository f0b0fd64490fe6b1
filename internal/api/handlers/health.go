package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"
)

// Pinger checks one dependency
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports process and dependency health
type HealthHandler struct {
	service string
	checks  map[string]Pinger
	timeout time.Duration
}

// NewHealthHandler creates a health handler. checks may be empty.
func NewHealthHandler(service string, checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{service: service, checks: checks, timeout: 3 * time.Second}
}

// Check returns 200 when every dependency answers, 503 otherwise
// GET /health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	deps := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name].Ping(ctx); err != nil {
			deps[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	body := map[string]interface{}{
		"status":  "ok",
		"service": h.service,
	}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	if len(deps) > 0 {
		body["dependencies"] = deps
	}
	RespondJSON(w, status, body)
}
