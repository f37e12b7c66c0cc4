package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/franz/photo-janitor/internal/analyze"
	"github.com/franz/photo-janitor/internal/report"
	"github.com/franz/photo-janitor/internal/session"
	"github.com/franz/photo-janitor/internal/util"
)

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
}

type analyzeResponse struct {
	Fingerprint string `json:"library_fingerprint"`
	TotalPhotos int    `json:"total_photos"`
	Started     bool   `json:"started"`
}

type filterRequest struct {
	ClusterIDs []string `json:"cluster_ids"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		util.ErrorLog("failed to encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:   "ok",
		Sessions: len(s.cache.Fingerprints()),
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	fps := s.cache.Fingerprints()
	s.writeJSON(w, http.StatusOK, map[string][]string{"fingerprints": fps})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	fp := chi.URLParam(r, "fingerprint")
	sess, err := s.cache.Get(fp)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "no session for fingerprint")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	fp := chi.URLParam(r, "fingerprint")
	if _, err := s.cache.Get(fp); err != nil {
		s.writeError(w, http.StatusNotFound, "no session for fingerprint")
		return
	}
	if err := s.cache.Delete(fp); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	fp := chi.URLParam(r, "fingerprint")
	sess, err := s.cache.Get(fp)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "no session for fingerprint")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	summary := report.BuildSummary(sess, s.cfg.NoiseThreshold, 0)
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleSaveFiltered(w http.ResponseWriter, r *http.Request) {
	fp := chi.URLParam(r, "fingerprint")

	var req filterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	filtered, err := s.cache.DeriveFiltered(fp, req.ClusterIDs)
	if err != nil {
		var verr *session.ValidationError
		switch {
		case errors.As(err, &verr):
			s.writeError(w, http.StatusUnprocessableEntity, verr.Reason)
		case errors.Is(err, util.ErrNotFound):
			s.writeError(w, http.StatusNotFound, "no session for fingerprint")
		default:
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	if s.logger != nil {
		s.logger.LogFilter(filtered.SessionID, len(filtered.Clusters), filtered.PhotoCount())
	}
	s.writeJSON(w, http.StatusOK, filtered)
}

// handleAnalyze lists the library synchronously, then runs analysis in
// the background. Only one run may be in flight.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.writeError(w, http.StatusConflict, "analysis already in progress")
		return
	}
	s.running = true
	s.mu.Unlock()

	records, err := s.library.ListPhotos(r.Context())
	if err != nil {
		s.finishRun()
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	fp := s.cfg.LibraryFingerprint(records)

	sched, err := analyze.New(&analyze.SchedulerConfig{
		Library: s.library,
		Logger:  s.logger,
		Config:  s.cfg,
	})
	if err != nil {
		s.finishRun()
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	go func() {
		defer s.finishRun()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Hour)
		defer cancel()

		sess, err := sched.Run(ctx, records, nil)
		if err != nil {
			util.ErrorLog("analysis run failed: %v", err)
			return
		}
		if err := s.cache.Publish(sess); err != nil {
			util.ErrorLog("failed to publish session: %v", err)
			return
		}
		util.SuccessLog("Analysis complete: session %s (%d photos, %d clusters)",
			sess.ID, sess.TotalPhotos, len(sess.Clusters))
	}()

	s.writeJSON(w, http.StatusAccepted, analyzeResponse{
		Fingerprint: fp,
		TotalPhotos: len(records),
		Started:     true,
	})
}

func (s *Server) finishRun() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}
