package gameserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/storyloom/backend/internal/game/story"
)

// StoryHandler serves the single-player story adventure endpoints.
type StoryHandler struct {
	stories *story.Service
	logger  *zap.Logger
}

// NewStoryHandler creates a StoryHandler.
//
// Precondition: stories and logger must be non-nil.
func NewStoryHandler(stories *story.Service, logger *zap.Logger) *StoryHandler {
	return &StoryHandler{stories: stories, logger: logger}
}

type startStoryRequest struct {
	Genre string `json:"genre"`
	Model string `json:"model"`
}

type continueStoryRequest struct {
	SessionID    string `json:"session_id"`
	Choice       int    `json:"choice"`
	CustomAction string `json:"custom_action"`
}

// Start handles POST /api/games/story/start.
func (h *StoryHandler) Start(c echo.Context) error {
	var req startStoryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Genre == "" {
		req.Genre = "fantasy"
	}

	res := h.stories.Start(c.Request().Context(), req.Genre, req.Model)
	return c.JSON(http.StatusOK, res)
}

// StartStream handles POST /api/games/story/start/stream as
// server-sent events.
func (h *StoryHandler) StartStream(c echo.Context) error {
	var req startStoryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Genre == "" {
		req.Genre = "fantasy"
	}

	sse := beginSSE(c)
	res, err := h.stories.StartStream(c.Request().Context(), req.Genre, req.Model, func(chunk string) {
		sse.emit(map[string]any{"chunk": chunk})
	})
	if err != nil {
		sse.emit(map[string]any{"error": "story generation failed"})
		return nil
	}
	sse.emit(map[string]any{"done": true, "session_id": res.SessionID})
	return nil
}

// Continue handles POST /api/games/story/continue.
func (h *StoryHandler) Continue(c echo.Context) error {
	var req continueStoryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	res, err := h.stories.Continue(c.Request().Context(), req.SessionID, req.Choice, req.CustomAction)
	if err != nil {
		return storyHTTPError(err)
	}
	return c.JSON(http.StatusOK, res)
}

// ContinueStream handles POST /api/games/story/continue/stream.
func (h *StoryHandler) ContinueStream(c echo.Context) error {
	var req continueStoryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	sse := beginSSE(c)
	res, err := h.stories.ContinueStream(c.Request().Context(), req.SessionID, req.Choice, req.CustomAction,
		func(chunk string) {
			sse.emit(map[string]any{"chunk": chunk})
		})
	if err != nil {
		sse.emit(map[string]any{"error": "story generation failed"})
		return nil
	}
	sse.emit(map[string]any{"done": true, "session_id": res.SessionID})
	return nil
}

// Summary handles GET /api/games/story/:session_id/summary.
func (h *StoryHandler) Summary(c echo.Context) error {
	summary, err := h.stories.Summarize(c.Param("session_id"))
	if err != nil {
		return storyHTTPError(err)
	}
	return c.JSON(http.StatusOK, summary)
}

func storyHTTPError(err error) error {
	if errors.Is(err, story.ErrSessionNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "story generation failed")
}

// sseWriter streams server-sent events over an echo response.
type sseWriter struct {
	c echo.Context
}

func beginSSE(c echo.Context) *sseWriter {
	h := c.Response().Header()
	h.Set(echo.HeaderContentType, "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	c.Response().WriteHeader(http.StatusOK)
	return &sseWriter{c: c}
}

// emit writes one event frame and flushes it to the client.
func (w *sseWriter) emit(payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w.c.Response(), "data: %s\n\n", data)
	w.c.Response().Flush()
}
