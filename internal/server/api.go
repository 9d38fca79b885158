package server

import (
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"

	"github.com/alexwday/web-research/internal/research"
	"github.com/alexwday/web-research/session"
)

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// turnCollector buffers a turn's events so the REST surface can answer
// with the final outcome only.
type turnCollector struct {
	mu       sync.Mutex
	complete *research.CompleteData
	errMsg   string
}

func (tc *turnCollector) Emit(ev research.Event) error {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	switch ev.Type {
	case research.EventComplete:
		tc.complete = ev.Data
	case research.EventError:
		tc.errMsg = ev.Message
	}
	return nil
}

// handleChat runs a full turn synchronously and returns the finalized
// answer. Streaming clients should use /ws instead.
func (s *Server) handleChat(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}

	sess, err := s.store.EnsureSession(req.SessionID, s.cfg.General.SessionTTL)
	if err != nil {
		return err
	}

	collector := &turnCollector{}
	if err := s.engine.ProcessMessage(c.Request().Context(), sess, req.Message, collector); err != nil {
		return err
	}
	if collector.errMsg != "" {
		return c.JSON(http.StatusOK, map[string]any{
			"error":      collector.errMsg,
			"session_id": sess.ID(),
		})
	}
	if collector.complete == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "turn produced no result")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"response":    collector.complete.Response,
		"sources":     collector.complete.Sources,
		"notes_count": len(sess.Notes()),
		"session_id":  sess.ID(),
	})
}

func (s *Server) handleSources(c echo.Context) error {
	sess := s.store.GetSession(c.Param("session_id"))
	if sess == nil {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	sources := sess.Sources()
	if sources == nil {
		sources = []session.Source{}
	}
	return c.JSON(http.StatusOK, map[string]any{"sources": sources})
}

func (s *Server) handleNotes(c echo.Context) error {
	sess := s.store.GetSession(c.Param("session_id"))
	if sess == nil {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	notes := sess.Notes()
	if notes == nil {
		notes = []session.Note{}
	}
	return c.JSON(http.StatusOK, map[string]any{"notes": notes})
}

func (s *Server) handleReset(c echo.Context) error {
	sess := s.store.GetSession(c.Param("session_id"))
	if sess == nil {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	if err := sess.Clear(); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"message": "Conversation reset",
	})
}
