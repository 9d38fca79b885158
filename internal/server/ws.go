package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/alexwday/web-research/internal/research"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsRequest struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

// handleWS owns one client connection: one session per connection, one
// in-flight turn at a time. All writes happen from this goroutine so
// events reach the client in generation order; a separate read pump
// detects disconnects and cancels in-flight work.
func (s *Server) handleWS(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	sess, err := s.store.EnsureSession("", s.cfg.General.SessionTTL)
	if err != nil {
		s.logger.Printf("session init failed: %v", err)
		return nil
	}
	s.logger.Printf("ws connected, session %s", sess.ID())

	connCtx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	msgs := make(chan wsRequest)
	go func() {
		defer close(msgs)
		defer cancel()
		for {
			var req wsRequest
			if err := ws.ReadJSON(&req); err != nil {
				return
			}
			select {
			case msgs <- req:
			case <-connCtx.Done():
				return
			}
		}
	}()

	sink := research.EventFunc(func(ev research.Event) error {
		return ws.WriteJSON(ev)
	})

	for req := range msgs {
		switch req.Type {
		case "chat":
			if strings.TrimSpace(req.Message) == "" {
				if err := ws.WriteJSON(research.Event{Type: research.EventError, Message: "message is required"}); err != nil {
					return nil
				}
				continue
			}
			turnCtx, turnCancel := context.WithTimeout(connCtx, s.cfg.Agent.TurnTimeout)
			err := s.engine.ProcessMessage(turnCtx, sess, req.Message, sink)
			turnCancel()
			if err != nil {
				s.logger.Printf("turn aborted for session %s: %v", sess.ID(), err)
				return nil
			}
		case "clear":
			if err := sess.Clear(); err != nil {
				s.logger.Printf("clear failed for session %s: %v", sess.ID(), err)
				if err := ws.WriteJSON(research.Event{Type: research.EventError, Message: "failed to clear session"}); err != nil {
					return nil
				}
				continue
			}
			if err := ws.WriteJSON(research.Event{Type: research.EventCleared}); err != nil {
				return nil
			}
		default:
			if err := ws.WriteJSON(research.Event{Type: research.EventError, Message: "unknown message type"}); err != nil {
				return nil
			}
		}
	}

	s.logger.Printf("ws disconnected, session %s", sess.ID())
	return nil
}
