package server

import (
	"net/http"
	"time"
)

const (
	defaultLogLimit   = 100
	heartbeatInterval = 30 * time.Second
)

// handleLogs handles GET /api/logs
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultLogLimit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.dataResponse(w, s.deps.Logs.Recent(limit))
}

// handleClearLogs handles DELETE /api/logs
func (s *Server) handleClearLogs(w http.ResponseWriter, _ *http.Request) {
	s.deps.Logs.Clear()
	s.jsonResponse(w, http.StatusOK, envelope{Success: true})
}

// handleLogStream handles GET /api/logs/stream. Each new entry is sent as
// an unnamed event until the client goes away.
func (s *Server) handleLogStream(w http.ResponseWriter, r *http.Request) {
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Debug("could not lift write deadline")
	}

	entries, cancel := s.deps.Logs.Subscribe()
	defer cancel()

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := sse.WriteComment("connected"); err != nil {
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case e, ok := <-entries:
			if !ok {
				return
			}
			if err := sse.WriteData(e); err != nil {
				return
			}
		case <-heartbeat.C:
			if err := sse.WriteComment("ping"); err != nil {
				return
			}
		}
	}
}
