// Package story manages single-player story adventure sessions: a
// volatile table of sessions, each an alternating log of narration and
// player actions driven by the same generation bridge the multiplayer
// rooms use.
package story

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrSessionNotFound means the session ID names no live session.
var ErrSessionNotFound = errors.New("story session not found")

// Narrator is the generation surface the service consumes. The
// cooperative bridge satisfies it.
type Narrator interface {
	SoloSeed(ctx context.Context, genre, model string) string
	SoloContinue(ctx context.Context, story, action, genre, model string) string
	SoloSeedStream(ctx context.Context, genre, model string, emit func(chunk string)) (string, error)
	SoloContinueStream(ctx context.Context, story, action, genre, model string, emit func(chunk string)) (string, error)
}

// EntryKind tags a history entry as narration or a player action.
type EntryKind string

const (
	EntryStory  EntryKind = "story"
	EntryAction EntryKind = "action"
)

// Entry is one element of a session's history.
type Entry struct {
	Kind    EntryKind `json:"kind"`
	Content string    `json:"content"`
}

// Session is one single-player adventure. State is volatile; nothing
// survives process restart.
type Session struct {
	ID        string
	Genre     string
	Model     string
	History   []Entry
	Turn      int
	CreatedAt time.Time
}

// storyText joins the session's narration and actions into one prompt
// context block.
func (s *Session) storyText() string {
	text := ""
	for _, e := range s.History {
		if text != "" {
			text += "\n"
		}
		text += e.Content
	}
	return text
}

// Service owns the session table. Safe for concurrent use.
type Service struct {
	mu       sync.Mutex
	sessions map[string]*Session
	narrator Narrator
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates an empty story Service.
//
// Precondition: narrator and logger must be non-nil.
func NewService(narrator Narrator, logger *zap.Logger) *Service {
	return &Service{
		sessions: make(map[string]*Session),
		narrator: narrator,
		logger:   logger,
		now:      time.Now,
	}
}

// Result is the outcome of starting or continuing a session.
type Result struct {
	SessionID string `json:"session_id"`
	Story     string `json:"story"`
	Turn      int    `json:"turn"`
	Genre     string `json:"genre"`
}

// Start opens a fresh session and generates its opening narration.
func (s *Service) Start(ctx context.Context, genre, model string) *Result {
	opening := s.narrator.SoloSeed(ctx, genre, model)
	return s.record(uuid.NewString(), genre, model, opening)
}

// StartStream is Start with incremental delivery; the session is only
// recorded once the stream completes.
func (s *Service) StartStream(ctx context.Context, genre, model string, emit func(chunk string)) (*Result, error) {
	sessionID := uuid.NewString()
	opening, err := s.narrator.SoloSeedStream(ctx, genre, model, emit)
	if err != nil {
		return nil, err
	}
	return s.record(sessionID, genre, model, opening), nil
}

func (s *Service) record(sessionID, genre, model, opening string) *Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := &Session{
		ID:        sessionID,
		Genre:     genre,
		Model:     model,
		History:   []Entry{{Kind: EntryStory, Content: opening}},
		Turn:      1,
		CreatedAt: s.now(),
	}
	s.sessions[sessionID] = sess

	s.logger.Info("story session started",
		zap.String("session_id", sessionID),
		zap.String("genre", genre),
	)
	return &Result{SessionID: sessionID, Story: opening, Turn: 1, Genre: genre}
}

// Continue advances a session from a numbered choice or a custom action.
func (s *Service) Continue(ctx context.Context, sessionID string, choice int, custom string) (*Result, error) {
	pre, err := s.prepare(sessionID, choice, custom)
	if err != nil {
		return nil, err
	}

	next := s.narrator.SoloContinue(ctx, pre.story, pre.action, pre.genre, pre.model)
	return s.advance(sessionID, pre.action, next)
}

// ContinueStream is Continue with incremental delivery.
func (s *Service) ContinueStream(ctx context.Context, sessionID string, choice int, custom string, emit func(chunk string)) (*Result, error) {
	pre, err := s.prepare(sessionID, choice, custom)
	if err != nil {
		return nil, err
	}

	next, err := s.narrator.SoloContinueStream(ctx, pre.story, pre.action, pre.genre, pre.model, emit)
	if err != nil {
		return nil, err
	}
	return s.advance(sessionID, pre.action, next)
}

// prepared carries the immutable inputs for one continuation, copied
// out under the lock so generation runs without holding it.
type prepared struct {
	story  string
	action string
	genre  string
	model  string
}

// prepare resolves the session and formats the player action text.
func (s *Service) prepare(sessionID string, choice int, custom string) (prepared, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return prepared{}, ErrSessionNotFound
	}

	action := custom
	if action == "" {
		action = fmt.Sprintf("The player chooses option %d.", choice)
	}
	return prepared{
		story:  sess.storyText(),
		action: action,
		genre:  sess.Genre,
		model:  sess.Model,
	}, nil
}

// advance appends the action and narration and bumps the turn counter.
func (s *Service) advance(sessionID, action, next string) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	sess.History = append(sess.History,
		Entry{Kind: EntryAction, Content: action},
		Entry{Kind: EntryStory, Content: next},
	)
	sess.Turn++

	return &Result{SessionID: sessionID, Story: next, Turn: sess.Turn, Genre: sess.Genre}, nil
}

// Summary is a read-only view of a session's history.
type Summary struct {
	SessionID string  `json:"session_id"`
	Genre     string  `json:"genre"`
	Turn      int     `json:"turn"`
	History   []Entry `json:"history"`
}

// Summarize returns the session's history.
func (s *Service) Summarize(sessionID string) (*Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	history := make([]Entry, len(sess.History))
	copy(history, sess.History)

	return &Summary{
		SessionID: sess.ID,
		Genre:     sess.Genre,
		Turn:      sess.Turn,
		History:   history,
	}, nil
}

// Count returns the number of live sessions.
func (s *Service) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
