package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/Divas-Gupta30/oceanus-agent/internal/config"
	"github.com/Divas-Gupta30/oceanus-agent/internal/models"
	"github.com/Divas-Gupta30/oceanus-agent/internal/storage"
)

type healthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Environment string `json:"environment"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, healthResponse{
		Status:      "healthy",
		Version:     config.Version,
		Environment: s.env,
	})
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Warn("readiness check failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "Database not ready: "+err.Error())
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) createException(w http.ResponseWriter, r *http.Request) {
	var req models.DiagnosisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	var missing []string
	if strings.TrimSpace(req.JobID) == "" {
		missing = append(missing, "job_id")
	}
	if strings.TrimSpace(req.ErrorMessage) == "" {
		missing = append(missing, "error_message")
	}
	if len(missing) > 0 {
		writeError(w, http.StatusBadRequest, "Missing required fields: "+strings.Join(missing, ", "))
		return
	}

	rec, err := s.store.CreateException(r.Context(), &req)
	if err != nil {
		s.logger.Error("failed to create exception", zap.String("job_id", req.JobID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to create exception")
		return
	}
	s.logger.Info("exception submitted", zap.Int64("exception_id", rec.ID), zap.String("job_id", rec.JobID))
	writeJSONResponse(w, http.StatusCreated, rec)
}

func (s *Server) listExceptions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := storage.ExceptionFilter{
		Status: models.DiagnosisStatus(q.Get("status")),
		JobID:  q.Get("job_id"),
	}
	if f.Status != "" && !f.Status.Valid() {
		writeError(w, http.StatusBadRequest, "Invalid status: "+string(f.Status))
		return
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit: "+raw)
			return
		}
		f.Limit = limit
	}

	recs, err := s.store.ListExceptions(r.Context(), f)
	if err != nil {
		s.logger.Error("failed to list exceptions", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to list exceptions")
		return
	}
	if recs == nil {
		recs = []*models.ExceptionRecord{}
	}
	writeJSONResponse(w, http.StatusOK, recs)
}

func (s *Server) getException(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid exception id")
		return
	}
	rec, err := s.store.GetException(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Exception not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to get exception", zap.Int64("exception_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to get exception")
		return
	}
	writeJSONResponse(w, http.StatusOK, rec.Response())
}

func (s *Server) runBatch(w http.ResponseWriter, r *http.Request) {
	if s.batches == nil {
		writeError(w, http.StatusServiceUnavailable, "Batch runner not configured")
		return
	}
	// Claimed rows must finish even if the client goes away.
	summary := s.batches.RunBatch(context.WithoutCancel(r.Context()))
	code := http.StatusOK
	if summary.Skipped {
		code = http.StatusConflict
	}
	writeJSONResponse(w, code, summary)
}

func (s *Server) knowledgeStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.logger.Error("failed to read knowledge stats", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to read knowledge stats")
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"collections": stats})
}
