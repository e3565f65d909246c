// Package gameserver routes protocol messages between connected
// participants and the room, turn, and story services, and registers
// the server's HTTP surface.
package gameserver

import (
	"time"

	"github.com/storyloom/backend/internal/game/room"
)

// Inbound message types.
const (
	TypeCreateRoom  = "create_room"
	TypeJoinRoom    = "join_room"
	TypeStartGame   = "start_game"
	TypeSubmitTurn  = "submit_turn"
	TypeLeaveRoom   = "leave_room"
	TypeGetRoomInfo = "get_room_info"
	TypeHeartbeat   = "heartbeat"
)

// Outbound event types.
const (
	TypeRoomCreated        = "room_created"
	TypeRoomJoined         = "room_joined"
	TypeError              = "error"
	TypePlayerJoined       = "player_joined"
	TypeGameStarted        = "game_started"
	TypeTurnSubmitted      = "turn_submitted"
	TypeAITurnCompleted    = "ai_turn_completed"
	TypePlayerLeft         = "player_left"
	TypePlayerDisconnected = "player_disconnected"
	TypeRoomInfo           = "room_info"
	TypeHeartbeatResponse  = "heartbeat_response"
)

// GameSettings is the opaque game configuration carried on create_room.
type GameSettings struct {
	Genre string `json:"genre"`
	Model string `json:"model"`
}

// Inbound is the envelope for every client message, keyed by Type; the
// remaining fields are populated per message type.
type Inbound struct {
	Type         string        `json:"type"`
	PlayerName   string        `json:"player_name,omitempty"`
	RoomID       string        `json:"room_id,omitempty"`
	Text         string        `json:"text,omitempty"`
	Timestamp    int64         `json:"timestamp,omitempty"`
	GameSettings *GameSettings `json:"game_settings,omitempty"`
}

// PlayerInfo is the wire projection of one room member.
type PlayerInfo struct {
	Name     string `json:"name"`
	IsHost   bool   `json:"is_host"`
	IsOnline bool   `json:"is_online"`
	IsAI     bool   `json:"is_ai"`
	JoinedAt string `json:"joined_at"`
}

// RoomInfo is the wire projection of a room snapshot.
type RoomInfo struct {
	RoomID       string                `json:"room_id"`
	Host         string                `json:"host"`
	Players      map[string]PlayerInfo `json:"players"`
	GameState    string                `json:"game_state"`
	GameSettings GameSettings          `json:"game_settings"`
	CurrentTurn  string                `json:"current_turn,omitempty"`
	PlayerCount  int                   `json:"player_count"`
}

// StoryEntry is the wire projection of one history turn.
type StoryEntry struct {
	Player    string `json:"player"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// roomInfoOf projects a snapshot onto the wire shape.
func roomInfoOf(snap *room.Snapshot) *RoomInfo {
	if snap == nil {
		return nil
	}
	players := make(map[string]PlayerInfo, len(snap.Players))
	for id, p := range snap.Players {
		players[id] = PlayerInfo{
			Name:     p.Name,
			IsHost:   p.IsHost,
			IsOnline: p.IsOnline,
			IsAI:     p.IsAI,
			JoinedAt: p.JoinedAt.Format(time.RFC3339),
		}
	}
	return &RoomInfo{
		RoomID:       snap.RoomID,
		Host:         snap.Host,
		Players:      players,
		GameState:    string(snap.State),
		GameSettings: GameSettings{Genre: snap.Settings.Genre, Model: snap.Settings.Model},
		CurrentTurn:  snap.CurrentTurn,
		PlayerCount:  snap.PlayerCount,
	}
}

// storyContentOf projects the snapshot history onto the wire shape.
func storyContentOf(snap *room.Snapshot) []StoryEntry {
	entries := make([]StoryEntry, 0, len(snap.History))
	for _, t := range snap.History {
		entries = append(entries, StoryEntry{
			Player:    t.AuthorName,
			Text:      t.Text,
			Timestamp: t.Timestamp.Format(time.RFC3339),
		})
	}
	return entries
}

// Outbound event payloads.

type roomCreatedEvent struct {
	Type     string    `json:"type"`
	RoomID   string    `json:"room_id"`
	RoomInfo *RoomInfo `json:"room_info"`
}

type roomJoinedEvent struct {
	Type     string    `json:"type"`
	RoomInfo *RoomInfo `json:"room_info"`
}

type errorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type playerJoinedEvent struct {
	Type       string    `json:"type"`
	PlayerID   string    `json:"player_id"`
	PlayerName string    `json:"player_name"`
	RoomInfo   *RoomInfo `json:"room_info"`
}

type storyEvent struct {
	Type         string       `json:"type"`
	RoomInfo     *RoomInfo    `json:"room_info"`
	StoryContent []StoryEntry `json:"story_content"`
}

type playerGoneEvent struct {
	Type     string    `json:"type"`
	PlayerID string    `json:"player_id"`
	RoomInfo *RoomInfo `json:"room_info"`
}

type roomInfoEvent struct {
	Type     string    `json:"type"`
	RoomInfo *RoomInfo `json:"room_info"`
}

type heartbeatResponseEvent struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}
