package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alexwday/web-research/config"
	"github.com/alexwday/web-research/internal/research"
	"github.com/alexwday/web-research/session"
)

// Engine runs one research turn against a session, emitting lifecycle
// events to the sink. Satisfied by research.Engine; narrowed here so
// handlers can be tested against a stub.
type Engine interface {
	ProcessMessage(ctx context.Context, sess *session.Session, message string, sink research.EventSink) error
}

// Server wires the research engine, session store and HTTP surface
// together.
type Server struct {
	cfg    config.Config
	engine Engine
	store  *session.Store
	logger *log.Logger
}

func New(cfg config.Config, engine Engine, store *session.Store) *Server {
	return &Server{
		cfg:    cfg,
		engine: engine,
		store:  store,
		logger: log.New(log.Writer(), "[HTTP] ", log.LstdFlags),
	}
}

// Run blocks serving HTTP until the listener fails or ctx is done.
func (s *Server) Run(ctx context.Context) error {
	e := s.buildEcho()

	go s.reapLoop(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = e.Shutdown(shutdownCtx)
	}()

	s.logger.Printf("listening on %s", s.cfg.Server.Address)
	if err := e.Start(s.cfg.Server.Address); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) buildEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		s.logger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if s.cfg.Telemetry.Enabled {
		e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}

	e.GET("/ws", s.handleWS)

	api := e.Group("/api")
	api.POST("/chat", s.handleChat)
	api.GET("/sources/:session_id", s.handleSources)
	api.GET("/notes/:session_id", s.handleNotes)
	api.POST("/reset/:session_id", s.handleReset)

	return e
}

func (s *Server) reapLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.store.Reap(); n > 0 {
				s.logger.Printf("reaped %d expired sessions", n)
			}
		}
	}
}
