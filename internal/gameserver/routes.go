package gameserver

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// upgrader accepts any origin; the protocol carries no credentials and
// rooms are addressed by unguessable tokens.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// RegisterRoutes wires the WebSocket endpoint and the REST surface onto
// the echo instance.
//
// Precondition: all handlers must be non-nil.
func RegisterRoutes(e *echo.Echo, d *Dispatcher, stories *StoryHandler, chat *ChatHandler, logger *zap.Logger) {
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.GET("/ws/:player_id", func(c echo.Context) error {
		playerID := c.Param("player_id")
		ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			logger.Warn("websocket upgrade failed",
				zap.String("participant", playerID),
				zap.Error(err),
			)
			return err
		}
		d.HandleConnection(ws, playerID)
		return nil
	})

	e.GET("/ws/rooms", d.DebugRooms)

	games := e.Group("/api/games")
	games.POST("/story/start", stories.Start)
	games.POST("/story/start/stream", stories.StartStream)
	games.POST("/story/continue", stories.Continue)
	games.POST("/story/continue/stream", stories.ContinueStream)
	games.GET("/story/:session_id/summary", stories.Summary)

	e.POST("/api/chat/stream", chat.Stream)
}

// DebugRooms reports live connection and room counts.
func (d *Dispatcher) DebugRooms(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"active_connections": d.registry.ConnCount(),
		"active_rooms":       d.rooms.Count(),
	})
}
