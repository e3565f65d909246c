// Package room provides the in-memory room table and the room aggregate
// for cooperative story sessions: participants, settings, and the
// append-only story history.
package room

import (
	"strings"
	"sync"
	"time"
)

// State is a room's lifecycle state.
type State string

const (
	// StateWaiting is the initial state; players may still join.
	StateWaiting State = "waiting"
	// StatePlaying means the story is in progress and turn order is fixed.
	StatePlaying State = "playing"
	// StateFinished is terminal; a finished room never resumes.
	StateFinished State = "finished"
)

// Kind distinguishes human participants from the AI storyteller.
type Kind string

const (
	KindHuman Kind = "human"
	KindAI    Kind = "ai"
)

// Participant is one member of a room. A participant belongs to at most
// one room at any instant.
type Participant struct {
	// ID is the opaque connection identity, unique per participant.
	ID string
	// Name is the display name shown to other players.
	Name string
	// Kind tags the participant as human or AI.
	Kind Kind
	// Host reports whether this participant controls game start.
	Host bool
	// Online reports whether the participant's connection is live.
	Online bool
	// JoinedAt is the time the participant entered the room.
	JoinedAt time.Time
}

// Settings is the opaque game configuration passed through to narration.
type Settings struct {
	Genre string
	Model string
}

// Turn is one appended contribution to the story. Turns are immutable
// once appended; the history is a write-once log.
type Turn struct {
	// Author is the contributing participant's ID.
	Author string
	// AuthorName is the display name recorded at append time.
	AuthorName string
	// Text is the story contribution.
	Text string
	// Timestamp is the append time.
	Timestamp time.Time
}

// Room is a shared story session. All fields are guarded by the room's
// mutex; mutate only inside Store.Update, which holds it for the full
// state transition.
type Room struct {
	mu sync.Mutex

	// ID is the short human-typeable room token.
	ID string
	// Host is the participant ID of the current host.
	Host string
	// Participants is the member list in insertion order.
	Participants []*Participant
	// State is the lifecycle state.
	State State
	// Settings is the game configuration chosen at creation.
	Settings Settings
	// History is the append-only story log.
	History []Turn
	// TurnOrder is the cyclic participant order fixed at game start.
	TurnOrder []string
	// CurrentTurn is the ID of the participant whose turn it is; empty
	// until the game starts.
	CurrentTurn string
	// TurnStarted is when the current turn began.
	TurnStarted time.Time
	// CreatedAt is the room creation time.
	CreatedAt time.Time

	// gone is set when the room has been removed from the store; any
	// operation arriving after that observes a missing room.
	gone bool
}

// Participant returns the member with the given ID.
func (r *Room) Participant(id string) (*Participant, bool) {
	for _, p := range r.Participants {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// HasAI reports whether the room already contains an AI participant.
func (r *Room) HasAI() bool {
	for _, p := range r.Participants {
		if p.Kind == KindAI {
			return true
		}
	}
	return false
}

// HumanCount returns the number of human participants still present.
func (r *Room) HumanCount() int {
	n := 0
	for _, p := range r.Participants {
		if p.Kind == KindHuman {
			n++
		}
	}
	return n
}

// AddParticipant appends a member to the room.
//
// Precondition: the caller holds the room lock via Store.Update.
func (r *Room) AddParticipant(id, name string, kind Kind, host bool, now time.Time) *Participant {
	p := &Participant{
		ID:       id,
		Name:     name,
		Kind:     kind,
		Host:     host,
		Online:   true,
		JoinedAt: now,
	}
	r.Participants = append(r.Participants, p)
	return p
}

// RemoveParticipant removes the member with the given ID, preserving the
// order of the remaining members. Returns false if the ID is not present.
func (r *Room) RemoveParticipant(id string) bool {
	for i, p := range r.Participants {
		if p.ID == id {
			r.Participants = append(r.Participants[:i], r.Participants[i+1:]...)
			return true
		}
	}
	return false
}

// BeginPlaying fixes the turn order as the participant list at this
// instant, sets the first entrant as the active participant, and moves
// the room to StatePlaying.
//
// Precondition: the room has at least one participant.
func (r *Room) BeginPlaying(now time.Time) {
	order := make([]string, 0, len(r.Participants))
	for _, p := range r.Participants {
		order = append(order, p.ID)
	}
	r.TurnOrder = order
	r.State = StatePlaying
	r.CurrentTurn = order[0]
	r.TurnStarted = now
}

// Append records a new turn in the story history.
func (r *Room) Append(author, authorName, text string, now time.Time) Turn {
	t := Turn{
		Author:     author,
		AuthorName: authorName,
		Text:       text,
		Timestamp:  now,
	}
	r.History = append(r.History, t)
	return t
}

// Advance moves CurrentTurn to the next entry of the fixed cyclic order
// whose participant is still present, wrapping after the last entry. A
// sole survivor receives the turn again. Returns the new active ID.
//
// Precondition: the room is playing and has at least one participant.
func (r *Room) Advance(now time.Time) string {
	r.CurrentTurn = r.nextPresent(r.CurrentTurn, false)
	r.TurnStarted = now
	return r.CurrentTurn
}

// ResolveDeparture repairs CurrentTurn after the given participant left
// while holding the turn. The pointer moves to the next still-present
// human participant; the AI never inherits a turn from a departure, it
// only plays after an accepted submission.
func (r *Room) ResolveDeparture(departed string, now time.Time) string {
	if r.State != StatePlaying || r.CurrentTurn != departed {
		return r.CurrentTurn
	}
	r.CurrentTurn = r.nextPresent(departed, true)
	r.TurnStarted = now
	return r.CurrentTurn
}

// nextPresent walks the fixed cyclic order starting after `from` and
// returns the first ID still present in the live participant list.
// When humansOnly is set, AI entries are skipped as well. Falls back to
// the first live participant if the order yields no candidate.
func (r *Room) nextPresent(from string, humansOnly bool) string {
	start := 0
	for i, id := range r.TurnOrder {
		if id == from {
			start = i
			break
		}
	}
	for step := 1; step <= len(r.TurnOrder); step++ {
		id := r.TurnOrder[(start+step)%len(r.TurnOrder)]
		p, ok := r.Participant(id)
		if !ok {
			continue
		}
		if humansOnly && p.Kind != KindHuman {
			continue
		}
		return id
	}
	for _, p := range r.Participants {
		if !humansOnly || p.Kind == KindHuman {
			return p.ID
		}
	}
	return ""
}

// StoryText returns the history joined into one prompt-ready block.
func (r *Room) StoryText() string {
	parts := make([]string, 0, len(r.History))
	for _, t := range r.History {
		parts = append(parts, t.Text)
	}
	return strings.Join(parts, "\n")
}
