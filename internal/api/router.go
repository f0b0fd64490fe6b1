package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/aodgrid/internal/api/handlers"
	"github.com/wonny/aodgrid/internal/api/stream"
	"github.com/wonny/aodgrid/pkg/logger"
)

// Handlers groups everything the router mounts. Jobs is nil when the
// process runs without a scheduler.
type Handlers struct {
	Health *handlers.HealthHandler
	Runs   *handlers.RunsHandler
	Jobs   *handlers.JobsHandler
	Stream *stream.Hub
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(h Handlers, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", h.Health.Check).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	// Run history
	api.HandleFunc("/runs", h.Runs.List).Methods(http.MethodGet)
	api.HandleFunc("/runs/{date:[0-9]{8}}", h.Runs.GetDay).Methods(http.MethodGet)
	api.HandleFunc("/runs/{date:[0-9]{8}}/{product}", h.Runs.Get).Methods(http.MethodGet)
	api.HandleFunc("/grid", h.Runs.Trigger).Methods(http.MethodPost)

	// Scheduler
	if h.Jobs != nil {
		api.HandleFunc("/jobs", h.Jobs.List).Methods(http.MethodGet)
		api.HandleFunc("/jobs/{name}/history", h.Jobs.History).Methods(http.MethodGet)
		api.HandleFunc("/jobs/{name}/run", h.Jobs.Run).Methods(http.MethodPost)
	}

	// Live progress
	if h.Stream != nil {
		api.Handle("/stream", h.Stream).Methods(http.MethodGet)
	}

	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// statusRecorder captures the response status for logging
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// 웹소켓 업그레이드는 Hijacker가 필요하므로 래핑하지 않음
			if r.Header.Get("Upgrade") != "" {
				next.ServeHTTP(w, r)
				return
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rec.status,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					handlers.RespondError(w, http.StatusInternalServerError, "Internal server error")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
