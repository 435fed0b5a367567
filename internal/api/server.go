// Package api exposes the agent over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/Divas-Gupta30/oceanus-agent/internal/agent"
	"github.com/Divas-Gupta30/oceanus-agent/internal/metrics"
	"github.com/Divas-Gupta30/oceanus-agent/internal/models"
	"github.com/Divas-Gupta30/oceanus-agent/internal/storage"
)

// Store is the storage surface the API reads and writes.
type Store interface {
	Ping(ctx context.Context) error
	CreateException(ctx context.Context, req *models.DiagnosisRequest) (*models.ExceptionRecord, error)
	GetException(ctx context.Context, id int64) (*models.ExceptionRecord, error)
	ListExceptions(ctx context.Context, f storage.ExceptionFilter) ([]*models.ExceptionRecord, error)
	Stats(ctx context.Context) ([]storage.CollectionStats, error)
}

// BatchRunner runs one diagnosis batch on demand.
type BatchRunner interface {
	RunBatch(ctx context.Context) agent.BatchSummary
}

type Server struct {
	store   Store
	batches BatchRunner
	env     string
	logger  *zap.Logger
}

func NewServer(store Store, batches BatchRunner, env string, logger *zap.Logger) *Server {
	return &Server{store: store, batches: batches, env: env, logger: logger}
}

// Handler returns the instrumented router.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.Use(instrument)

	v1 := router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/health", s.health).Methods("GET")
	v1.HandleFunc("/ready", s.ready).Methods("GET")
	v1.HandleFunc("/exceptions", s.createException).Methods("POST")
	v1.HandleFunc("/exceptions", s.listExceptions).Methods("GET")
	v1.HandleFunc("/exceptions/{id:[0-9]+}", s.getException).Methods("GET")
	v1.HandleFunc("/batches", s.runBatch).Methods("POST")
	v1.HandleFunc("/knowledge/stats", s.knowledgeStats).Methods("GET")

	router.Handle("/metrics", promhttp.Handler())

	return otelhttp.NewHandler(router, "oceanus-api")
}

// instrument records request counts and latency by route template.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				path = tmpl
			}
		}
		status := "success"
		if rec.status >= 400 {
			status = "error"
		}
		metrics.APIRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		metrics.APIRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func writeJSONResponse(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(data)
}

// writeError mirrors the {"detail": ...} body the original API returned.
func writeError(w http.ResponseWriter, code int, detail string) {
	writeJSONResponse(w, code, map[string]string{"detail": detail})
}
