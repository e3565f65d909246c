package room

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// tokenLength is the length of the human-typeable room token.
const tokenLength = 8

// Store is the in-memory table of live rooms. The table mutex guards
// only the map; every state transition on an individual room runs under
// that room's own lock via Update, so rooms stay independent of each
// other.
type Store struct {
	mu       sync.RWMutex
	rooms    map[string]*Room
	capacity int
	logger   *zap.Logger
	now      func() time.Time
}

// NewStore creates an empty Store.
//
// Precondition: logger must be non-nil; capacity must be >= 1.
func NewStore(capacity int, logger *zap.Logger) *Store {
	return &Store{
		rooms:    make(map[string]*Room),
		capacity: capacity,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateRoom creates a room with the host as sole participant and
// returns its snapshot. The token is collision-checked against the live
// table.
//
// Precondition: hostID and hostName must be non-empty.
func (s *Store) CreateRoom(hostID, hostName string, settings Settings) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, err := s.newToken()
	if err != nil {
		return nil, err
	}

	now := s.now()
	r := &Room{
		ID:        token,
		Host:      hostID,
		State:     StateWaiting,
		Settings:  settings,
		CreatedAt: now,
	}
	r.AddParticipant(hostID, hostName, KindHuman, true, now)
	s.rooms[token] = r

	s.logger.Info("room created",
		zap.String("room_id", token),
		zap.String("host", hostID),
		zap.String("genre", settings.Genre),
	)
	return r.Snapshot(), nil
}

// JoinRoom appends a participant to a waiting room.
//
// Postcondition: returns ErrRoomNotFound, ErrRoomFull, or ErrRoomStarted
// without modifying any state, or the post-join snapshot on success.
func (s *Store) JoinRoom(id, name, roomID string) (*Snapshot, error) {
	var snap *Snapshot
	err := s.Update(roomID, func(r *Room) error {
		if len(r.Participants) >= s.capacity {
			return ErrRoomFull
		}
		if r.State != StateWaiting {
			return ErrRoomStarted
		}
		r.AddParticipant(id, name, KindHuman, false, s.now())
		snap = r.Snapshot()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("participant joined",
		zap.String("room_id", roomID),
		zap.String("participant", id),
	)
	return snap, nil
}

// LeaveResult describes the outcome of a departure.
type LeaveResult struct {
	// Snapshot is the post-departure state; nil when the room was deleted.
	Snapshot *Snapshot
	// Deleted reports that the last human left and the room is gone.
	Deleted bool
	// NewHost is the promoted host's ID when the departing participant
	// was host; empty otherwise.
	NewHost string
}

// LeaveRoom removes a participant. The first remaining human (list
// order) inherits the host role; if the departing participant held the
// turn, the pointer is repaired to a still-present participant. A room
// with no human participants left is deleted synchronously.
func (s *Store) LeaveRoom(id, roomID string) (*LeaveResult, error) {
	res := &LeaveResult{}
	err := s.Update(roomID, func(r *Room) error {
		if !r.RemoveParticipant(id) {
			return ErrNotMember
		}

		if r.HumanCount() == 0 {
			r.gone = true
			res.Deleted = true
			return nil
		}

		if r.Host == id {
			for _, p := range r.Participants {
				if p.Kind == KindHuman {
					p.Host = true
					r.Host = p.ID
					res.NewHost = p.ID
					break
				}
			}
		}
		r.ResolveDeparture(id, s.now())
		res.Snapshot = r.Snapshot()
		return nil
	})
	if err != nil {
		return nil, err
	}

	if res.Deleted {
		s.mu.Lock()
		delete(s.rooms, roomID)
		s.mu.Unlock()
		s.logger.Info("room deleted", zap.String("room_id", roomID))
	} else {
		s.logger.Info("participant left",
			zap.String("room_id", roomID),
			zap.String("participant", id),
			zap.String("new_host", res.NewHost),
		)
	}
	return res, nil
}

// Snapshot returns a read-only projection of the room.
func (s *Store) Snapshot(roomID string) (*Snapshot, error) {
	var snap *Snapshot
	err := s.Update(roomID, func(r *Room) error {
		snap = r.Snapshot()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Update runs fn under the room's lock. The lock is held for the whole
// transition, including any narration call made inside fn, so two
// concurrent submissions can never advance the turn pointer from the
// same prior state. The table lock is NOT held while fn runs.
func (s *Store) Update(roomID string, fn func(*Room) error) error {
	s.mu.RLock()
	r, ok := s.rooms[roomID]
	s.mu.RUnlock()
	if !ok {
		return ErrRoomNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gone {
		return ErrRoomNotFound
	}
	return fn(r)
}

// Count returns the number of live rooms.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// newToken generates a fresh room token. Caller holds the table lock.
func (s *Store) newToken() (string, error) {
	for attempt := 0; attempt < 16; attempt++ {
		token := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:tokenLength])
		if _, exists := s.rooms[token]; !exists {
			return token, nil
		}
	}
	return "", fmt.Errorf("could not generate a unique room token")
}
