package room

import "time"

// PlayerInfo is the per-participant slice of a Snapshot.
type PlayerInfo struct {
	Name     string
	IsHost   bool
	IsOnline bool
	IsAI     bool
	JoinedAt time.Time
}

// Snapshot is an immutable projection of a room's state, safe to share
// with broadcast fan-out after the room lock is released.
type Snapshot struct {
	RoomID      string
	Host        string
	Players     map[string]PlayerInfo
	Order       []string
	State       State
	Settings    Settings
	CurrentTurn string
	PlayerCount int
	History     []Turn
}

// Snapshot captures the room's current state.
//
// Precondition: the caller holds the room lock via Store.Update.
func (r *Room) Snapshot() *Snapshot {
	players := make(map[string]PlayerInfo, len(r.Participants))
	order := make([]string, 0, len(r.Participants))
	for _, p := range r.Participants {
		players[p.ID] = PlayerInfo{
			Name:     p.Name,
			IsHost:   p.Host,
			IsOnline: p.Online,
			IsAI:     p.Kind == KindAI,
			JoinedAt: p.JoinedAt,
		}
		order = append(order, p.ID)
	}
	history := make([]Turn, len(r.History))
	copy(history, r.History)

	return &Snapshot{
		RoomID:      r.ID,
		Host:        r.Host,
		Players:     players,
		Order:       order,
		State:       r.State,
		Settings:    r.Settings,
		CurrentTurn: r.CurrentTurn,
		PlayerCount: len(r.Participants),
		History:     history,
	}
}
