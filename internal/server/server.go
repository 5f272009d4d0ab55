// Package server exposes the Twilio WhatsApp webhook and the JSON job
// APIs over a single echo instance.
package server

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/postpilot/postpilot/internal/dispatch"
	"github.com/postpilot/postpilot/internal/flows"
	"github.com/postpilot/postpilot/internal/orchestrator"
	"github.com/postpilot/postpilot/internal/recordstore"
)

// Server holds the handler dependencies. ReplyTimeout caps how long the
// webhook waits on the orchestrator before answering with the fixed
// "took too long" message.
type Server struct {
	Tables       *recordstore.Tables
	Orch         *orchestrator.Orchestrator
	Flows        *flows.Service
	Dispatch     *dispatch.Dispatcher
	ReplyTimeout time.Duration

	logger *log.Logger
}

func New(tables *recordstore.Tables, orch *orchestrator.Orchestrator, fl *flows.Service, d *dispatch.Dispatcher, replyTimeout time.Duration) *Server {
	if replyTimeout <= 0 {
		replyTimeout = 20 * time.Second
	}
	return &Server{
		Tables:       tables,
		Orch:         orch,
		Flows:        fl,
		Dispatch:     d,
		ReplyTimeout: replyTimeout,
		logger:       log.New(log.Writer(), "[HTTP] ", log.LstdFlags),
	}
}

// Echo builds the configured echo instance with all routes registered.
func (s *Server) Echo() *echo.Echo {
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

	e.GET("/", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "postpilot webhook running"})
	})
	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	e.POST("/whatsapp", s.handleWhatsApp)

	api := e.Group("/api/jobs")
	api.POST("/submit_idea", s.handleSubmitIdea)
	api.POST("/curate", s.handleCurate)
	api.POST("/curate_all", s.handleCurateAll)
	api.POST("/publish", s.handlePublish)
	api.POST("/publish_all", s.handlePublishAll)

	return e
}

// Run starts the server and blocks.
func (s *Server) Run(addr string) error {
	e := s.Echo()
	s.logger.Printf("listening on %s", addr)
	return e.Start(addr)
}
