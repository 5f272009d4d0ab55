package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/postpilot/postpilot/internal/dispatch"
)

type submitIdeaRequest struct {
	ClientID string `json:"client_id"`
	IdeaText string `json:"idea_text"`
	ImageURL string `json:"image_url,omitempty"`
}

type clientJobRequest struct {
	ClientID string `json:"client_id"`
	Limit    int    `json:"limit,omitempty"`
}

type allJobRequest struct {
	MaxClients int `json:"max_clients,omitempty"`
	Limit      int `json:"limit,omitempty"`
}

// handleSubmitIdea files a client idea synchronously (used by external
// intake forms) and returns the drafted post.
func (s *Server) handleSubmitIdea(c echo.Context) error {
	var req submitIdeaRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.ClientID == "" || req.IdeaText == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "client_id and idea_text are required")
	}

	res, err := s.Flows.SubmitIdea(c.Request().Context(), req.ClientID, req.IdeaText, req.ImageURL)
	if err != nil {
		return err
	}
	return c.JSON(200, map[string]interface{}{
		"status":  "ok",
		"idea_id": res.IdeaID,
		"post_id": res.PostID,
		"channel": res.Channel,
		"score":   res.Score,
	})
}

func (s *Server) handleCurate(c echo.Context) error {
	var req clientJobRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.ClientID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "client_id is required")
	}

	taskID := s.Dispatch.Submit(dispatch.Task{
		Kind:     "curate",
		ClientID: req.ClientID,
		Run: func(ctx context.Context) error {
			verdicts, err := s.Flows.CurateIdeas(ctx, req.ClientID, req.Limit)
			if err != nil {
				return err
			}
			s.logger.Printf("curate %s: %d ideas scored", req.ClientID, len(verdicts))
			return nil
		},
	})
	return c.JSON(200, map[string]interface{}{"status": "queued", "task_id": taskID, "client_id": req.ClientID})
}

func (s *Server) handleCurateAll(c echo.Context) error {
	var req allJobRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	taskID := s.Dispatch.Submit(dispatch.Task{
		Kind: "curate_all",
		Run:  func(ctx context.Context) error { return s.forEachClient(ctx, req.MaxClients, s.curateOne(req.Limit)) },
	})
	return c.JSON(200, map[string]interface{}{"status": "queued", "task_id": taskID, "clients": "all"})
}

func (s *Server) handlePublish(c echo.Context) error {
	var req clientJobRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.ClientID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "client_id is required")
	}

	taskID := s.Dispatch.Submit(dispatch.Task{
		Kind:     "publish_sweep",
		ClientID: req.ClientID,
		Run: func(ctx context.Context) error {
			report, err := s.Flows.PublishReady(ctx, req.ClientID, time.Now())
			if err != nil {
				return err
			}
			s.logger.Printf("publish %s: %d published, %d failed", req.ClientID, len(report.Published), len(report.Failed))
			return nil
		},
	})
	return c.JSON(200, map[string]interface{}{"status": "queued", "task_id": taskID, "client_id": req.ClientID})
}

func (s *Server) handlePublishAll(c echo.Context) error {
	var req allJobRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	taskID := s.Dispatch.Submit(dispatch.Task{
		Kind: "publish_all",
		Run: func(ctx context.Context) error {
			return s.forEachClient(ctx, req.MaxClients, func(ctx context.Context, clientID string) error {
				_, err := s.Flows.PublishReady(ctx, clientID, time.Now())
				return err
			})
		},
	})
	return c.JSON(200, map[string]interface{}{"status": "queued", "task_id": taskID, "clients": "all"})
}

func (s *Server) curateOne(limit int) func(ctx context.Context, clientID string) error {
	return func(ctx context.Context, clientID string) error {
		_, err := s.Flows.CurateIdeas(ctx, clientID, limit)
		return err
	}
}

// forEachClient runs fn over the active client list, continuing past
// per-client failures so one broken account never stalls the fleet.
func (s *Server) forEachClient(ctx context.Context, maxClients int, fn func(ctx context.Context, clientID string) error) error {
	clients, err := s.Tables.ActiveClients(ctx)
	if err != nil {
		return fmt.Errorf("list active clients: %w", err)
	}
	if maxClients > 0 && len(clients) > maxClients {
		clients = clients[:maxClients]
	}

	var failed int
	for _, rec := range clients {
		if err := fn(ctx, rec.ID); err != nil {
			failed++
			s.logger.Printf("client %s failed: %v", rec.ID, err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d clients failed", failed, len(clients))
	}
	return nil
}
