// Package turn implements the state machine governing a room's story
// progression: who holds the turn, how submissions advance it, and when
// the AI storyteller plays.
package turn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/storyloom/backend/internal/game/room"
)

// Sentinel errors for turn operations.
var (
	// ErrNotHost means a non-host tried to start the game.
	ErrNotHost = errors.New("only the host can start the game")
	// ErrNotPlaying means the room is not in the playing state.
	ErrNotPlaying = errors.New("game is not in progress")
	// ErrNotYourTurn means the submitter does not hold the turn.
	ErrNotYourTurn = errors.New("not your turn")
)

// AIName is the display name of the injected AI participant.
const AIName = "AI Storyteller"

// Generator produces narrative text. Implementations never fail the
// pipeline: on upstream trouble they return deterministic fallback text.
type Generator interface {
	// Seed produces the opening narration for a fresh story.
	Seed(ctx context.Context, genre, model string) string
	// Continue produces the next AI contribution given the story so far.
	Continue(ctx context.Context, story, genre, model string) string
}

// Phase identifies which part of a submission transition a snapshot
// belongs to.
type Phase int

const (
	// PhaseSubmitted follows the human turn being appended.
	PhaseSubmitted Phase = iota
	// PhaseAICompleted follows an automatic AI turn.
	PhaseAICompleted
)

// Notify receives intermediate snapshots during a submission, so
// callers can fan out the human turn before the (slow) AI turn lands.
// Snapshots are immutable; pushing them from inside the transition is
// safe because per-connection sends never block.
type Notify func(phase Phase, snap *room.Snapshot)

// Engine drives room state transitions. All transitions run under the
// owning room's lock via the store, including the synchronous narration
// calls, so the next submission is only accepted once the AI turn has
// completed or fallen back.
type Engine struct {
	rooms  *room.Store
	gen    Generator
	logger *zap.Logger
	now    func() time.Time
}

// NewEngine creates a turn Engine.
//
// Precondition: rooms, gen, and logger must be non-nil.
func NewEngine(rooms *room.Store, gen Generator, logger *zap.Logger) *Engine {
	return &Engine{
		rooms:  rooms,
		gen:    gen,
		logger: logger,
		now:    time.Now,
	}
}

// Start moves a waiting room to playing. Only the host may trigger it.
// If no AI participant is present, one is injected before the turn
// order is fixed, so every room has a participant that can always play.
// The opening narration is seeded as the first history entry, authored
// by the AI participant.
//
// Postcondition: on success the returned snapshot is playing, its
// current turn names a present participant, and the history holds
// exactly one entry.
func (e *Engine) Start(ctx context.Context, hostID, roomID string) (*room.Snapshot, error) {
	var snap *room.Snapshot
	err := e.rooms.Update(roomID, func(r *room.Room) error {
		if r.Host != hostID {
			return ErrNotHost
		}
		if r.State != room.StateWaiting {
			return room.ErrRoomStarted
		}

		if !r.HasAI() {
			r.AddParticipant(aiID(roomID), AIName, room.KindAI, false, e.now())
		}
		r.BeginPlaying(e.now())

		opening := e.gen.Seed(ctx, r.Settings.Genre, r.Settings.Model)
		r.Append(aiID(roomID), AIName, opening, e.now())

		snap = r.Snapshot()
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("game started",
		zap.String("room_id", roomID),
		zap.String("current_turn", snap.CurrentTurn),
		zap.Int("participants", snap.PlayerCount),
	)
	return snap, nil
}

// Submit appends a participant's turn and advances the cyclic order by
// exactly one step, skipping departed identities. If the newly active
// participant is the AI, its turn is generated and appended before
// Submit returns, and the pointer advances once more, so a human never
// waits on a dangling AI turn. notify may be nil.
func (e *Engine) Submit(ctx context.Context, participantID, roomID, text string, notify Notify) error {
	if notify == nil {
		notify = func(Phase, *room.Snapshot) {}
	}

	err := e.rooms.Update(roomID, func(r *room.Room) error {
		if r.State != room.StatePlaying {
			return ErrNotPlaying
		}
		if r.CurrentTurn != participantID {
			return ErrNotYourTurn
		}
		p, ok := r.Participant(participantID)
		if !ok {
			return room.ErrNotMember
		}

		r.Append(p.ID, p.Name, text, e.now())
		next := r.Advance(e.now())
		notify(PhaseSubmitted, r.Snapshot())

		if ai, ok := r.Participant(next); ok && ai.Kind == room.KindAI {
			e.playAITurn(ctx, r, ai)
			notify(PhaseAICompleted, r.Snapshot())
		}
		return nil
	})
	if err != nil {
		return err
	}

	e.logger.Debug("turn submitted",
		zap.String("room_id", roomID),
		zap.String("participant", participantID),
	)
	return nil
}

// playAITurn generates and appends the AI contribution, then advances
// the pointer past it. Runs inside the room transition; generation
// failure degrades to fallback text inside the Generator, never here.
func (e *Engine) playAITurn(ctx context.Context, r *room.Room, ai *room.Participant) {
	text := e.gen.Continue(ctx, r.StoryText(), r.Settings.Genre, r.Settings.Model)
	r.Append(ai.ID, ai.Name, text, e.now())
	r.Advance(e.now())
}

// aiID derives the injected AI participant's identity from the room
// token.
func aiID(roomID string) string {
	return fmt.Sprintf("ai_%s", roomID)
}
