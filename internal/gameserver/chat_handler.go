package gameserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/storyloom/backend/internal/game/narration"
)

// ChatHandler serves the free-form streaming chat endpoint, a thin
// pass-through to the generation bridge.
type ChatHandler struct {
	bridge *narration.Bridge
	logger *zap.Logger
}

// NewChatHandler creates a ChatHandler.
//
// Precondition: bridge and logger must be non-nil.
func NewChatHandler(bridge *narration.Bridge, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{bridge: bridge, logger: logger}
}

type chatRequest struct {
	Message string              `json:"message"`
	History []narration.Message `json:"history"`
	Model   string              `json:"model"`
}

// Stream handles POST /api/chat/stream as server-sent events.
func (h *ChatHandler) Stream(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message must not be empty")
	}

	sse := beginSSE(c)
	err := h.bridge.ChatStream(c.Request().Context(), req.Message, req.History, req.Model,
		func(chunk string) {
			sse.emit(map[string]any{"chunk": chunk})
		})
	if err != nil {
		h.logger.Warn("chat stream failed", zap.Error(err))
		sse.emit(map[string]any{"error": "generation failed"})
		return nil
	}
	sse.emit(map[string]any{"done": true})
	return nil
}
