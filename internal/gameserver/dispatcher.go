package gameserver

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/storyloom/backend/internal/game/room"
	"github.com/storyloom/backend/internal/game/turn"
	"github.com/storyloom/backend/internal/hub"
)

// Dispatcher decodes inbound protocol messages, validates them against
// the sender's current room and turn state, invokes the room store and
// turn engine, and fans the resulting events out through the registry.
//
// Operation errors go only to the originating connection; successful
// transitions broadcast the new snapshot to the whole room, originator
// included.
type Dispatcher struct {
	registry *hub.Registry
	rooms    *room.Store
	engine   *turn.Engine
	logger   *zap.Logger
}

// NewDispatcher creates a Dispatcher and installs itself as the
// registry's implicit-disconnect handler.
//
// Precondition: all dependencies must be non-nil.
func NewDispatcher(registry *hub.Registry, rooms *room.Store, engine *turn.Engine, logger *zap.Logger) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		rooms:    rooms,
		engine:   engine,
		logger:   logger,
	}
	registry.SetDropHandler(d.HandleDisconnect)
	return d
}

// HandleConnection owns one participant's read loop: it registers the
// connection, reads inbound messages serially until the transport
// fails, and runs the disconnect cascade on the way out.
func (d *Dispatcher) HandleConnection(ws *websocket.Conn, playerID string) {
	d.registry.Connect(playerID, ws)
	defer d.HandleDisconnect(playerID)

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				d.logger.Warn("websocket read failed",
					zap.String("participant", playerID),
					zap.Error(err),
				)
			}
			return
		}

		var msg Inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			d.sendError(playerID, "malformed message")
			continue
		}
		d.dispatch(playerID, msg)
	}
}

// dispatch routes one decoded message.
func (d *Dispatcher) dispatch(playerID string, msg Inbound) {
	switch msg.Type {
	case TypeCreateRoom:
		d.handleCreateRoom(playerID, msg)
	case TypeJoinRoom:
		d.handleJoinRoom(playerID, msg)
	case TypeStartGame:
		d.handleStartGame(playerID)
	case TypeSubmitTurn:
		d.handleSubmitTurn(playerID, msg)
	case TypeLeaveRoom:
		d.handleLeaveRoom(playerID)
	case TypeGetRoomInfo:
		d.handleGetRoomInfo(playerID)
	case TypeHeartbeat:
		d.registry.Send(playerID, heartbeatResponseEvent{
			Type:      TypeHeartbeatResponse,
			Timestamp: msg.Timestamp,
		})
	default:
		d.sendError(playerID, "unknown message type")
	}
}

func (d *Dispatcher) handleCreateRoom(playerID string, msg Inbound) {
	if _, ok := d.registry.RoomOf(playerID); ok {
		d.sendError(playerID, "you are already in a room")
		return
	}

	settings := room.Settings{}
	if msg.GameSettings != nil {
		settings = room.Settings{Genre: msg.GameSettings.Genre, Model: msg.GameSettings.Model}
	}

	snap, err := d.rooms.CreateRoom(playerID, msg.PlayerName, settings)
	if err != nil {
		d.sendError(playerID, errorMessage(err))
		return
	}
	if err := d.registry.BindRoom(playerID, snap.RoomID); err != nil {
		d.sendError(playerID, errorMessage(err))
		return
	}

	d.registry.Send(playerID, roomCreatedEvent{
		Type:     TypeRoomCreated,
		RoomID:   snap.RoomID,
		RoomInfo: roomInfoOf(snap),
	})
}

func (d *Dispatcher) handleJoinRoom(playerID string, msg Inbound) {
	if _, ok := d.registry.RoomOf(playerID); ok {
		d.sendError(playerID, "you are already in a room")
		return
	}

	snap, err := d.rooms.JoinRoom(playerID, msg.PlayerName, msg.RoomID)
	if err != nil {
		d.sendError(playerID, errorMessage(err))
		return
	}
	if err := d.registry.BindRoom(playerID, snap.RoomID); err != nil {
		d.sendError(playerID, errorMessage(err))
		return
	}

	d.registry.Send(playerID, roomJoinedEvent{
		Type:     TypeRoomJoined,
		RoomInfo: roomInfoOf(snap),
	})
	d.registry.Broadcast(snap.RoomID, playerJoinedEvent{
		Type:       TypePlayerJoined,
		PlayerID:   playerID,
		PlayerName: msg.PlayerName,
		RoomInfo:   roomInfoOf(snap),
	}, playerID)
}

func (d *Dispatcher) handleStartGame(playerID string) {
	roomID, ok := d.registry.RoomOf(playerID)
	if !ok {
		d.sendError(playerID, "you are not in a room")
		return
	}

	snap, err := d.engine.Start(context.Background(), playerID, roomID)
	if err != nil {
		d.sendError(playerID, errorMessage(err))
		return
	}

	d.registry.Broadcast(roomID, storyEvent{
		Type:         TypeGameStarted,
		RoomInfo:     roomInfoOf(snap),
		StoryContent: storyContentOf(snap),
	}, "")
}

func (d *Dispatcher) handleSubmitTurn(playerID string, msg Inbound) {
	roomID, ok := d.registry.RoomOf(playerID)
	if !ok {
		d.sendError(playerID, "you are not in a room")
		return
	}

	err := d.engine.Submit(context.Background(), playerID, roomID, msg.Text,
		func(phase turn.Phase, snap *room.Snapshot) {
			eventType := TypeTurnSubmitted
			if phase == turn.PhaseAICompleted {
				eventType = TypeAITurnCompleted
			}
			d.registry.Broadcast(roomID, storyEvent{
				Type:         eventType,
				RoomInfo:     roomInfoOf(snap),
				StoryContent: storyContentOf(snap),
			}, "")
		})
	if err != nil {
		d.sendError(playerID, errorMessage(err))
	}
}

func (d *Dispatcher) handleLeaveRoom(playerID string) {
	d.leave(playerID, TypePlayerLeft)
}

func (d *Dispatcher) handleGetRoomInfo(playerID string) {
	roomID, ok := d.registry.RoomOf(playerID)
	if !ok {
		d.sendError(playerID, "you are not in a room")
		return
	}

	snap, err := d.rooms.Snapshot(roomID)
	if err != nil {
		d.sendError(playerID, errorMessage(err))
		return
	}
	d.registry.Send(playerID, roomInfoEvent{
		Type:     TypeRoomInfo,
		RoomInfo: roomInfoOf(snap),
	})
}

// HandleDisconnect runs the cleanup cascade for a departed connection:
// the connection is deregistered and, if the participant occupied a
// room, the departure is applied under that room's lock and the
// remaining members are notified.
func (d *Dispatcher) HandleDisconnect(playerID string) {
	d.registry.Disconnect(playerID)
	d.leave(playerID, TypePlayerDisconnected)
}

// leave removes the participant from their current room (if any) and
// broadcasts the given departure event to the survivors.
func (d *Dispatcher) leave(playerID, eventType string) {
	roomID, ok := d.registry.RoomOf(playerID)
	if !ok {
		return
	}
	d.registry.UnbindRoom(playerID)

	res, err := d.rooms.LeaveRoom(playerID, roomID)
	if err != nil {
		d.logger.Warn("leave failed",
			zap.String("participant", playerID),
			zap.String("room_id", roomID),
			zap.Error(err),
		)
		return
	}
	if res.Deleted {
		return
	}

	d.registry.Broadcast(roomID, playerGoneEvent{
		Type:     eventType,
		PlayerID: playerID,
		RoomInfo: roomInfoOf(res.Snapshot),
	}, playerID)
}

func (d *Dispatcher) sendError(playerID, message string) {
	d.registry.Send(playerID, errorEvent{Type: TypeError, Message: message})
}

// errorMessage maps operation errors onto user-facing protocol text.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, room.ErrRoomNotFound):
		return "room not found"
	case errors.Is(err, room.ErrRoomFull):
		return "the room is full"
	case errors.Is(err, room.ErrRoomStarted):
		return "the game has already started"
	case errors.Is(err, room.ErrNotMember):
		return "you are not in that room"
	case errors.Is(err, turn.ErrNotHost):
		return "only the host can start the game"
	case errors.Is(err, turn.ErrNotPlaying):
		return "the game is not in progress"
	case errors.Is(err, turn.ErrNotYourTurn):
		return "it is not your turn"
	default:
		return "internal error"
	}
}
