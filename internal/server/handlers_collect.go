package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/recruit-ops/resume-collector/internal/collector"
)

// handleCollect handles POST /api/resumes/collect. The run outlives a
// disconnected client; its summary is kept for /api/resumes/collect/last.
func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Debug("could not lift write deadline", zap.Error(err))
	}

	s.logger.Info("collection requested", zap.String("client", s.extractClientID(r)))
	res, err := s.deps.Collector.Run(context.WithoutCancel(r.Context()))
	switch {
	case errors.Is(err, collector.ErrRunInProgress):
		s.fail(w, r, err)
	case err != nil && res != nil:
		s.logger.Error("collection failed", zap.Error(err))
		s.jsonResponse(w, http.StatusInternalServerError, res)
	case err != nil:
		s.fail(w, r, err)
	default:
		s.jsonResponse(w, http.StatusOK, res)
	}
}

// handleLastCollect handles GET /api/resumes/collect/last
func (s *Server) handleLastCollect(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Collector.LastResult(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if res == nil {
		s.jsonResponse(w, http.StatusOK, envelope{Success: true})
		return
	}
	s.dataResponse(w, res)
}
