package room

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"
)

func newTestStore(t *testing.T) *Store {
	return NewStore(4, zaptest.NewLogger(t))
}

func TestCreateRoom(t *testing.T) {
	s := newTestStore(t)
	snap, err := s.CreateRoom("u1", "Alice", Settings{Genre: "fantasy", Model: "claude"})
	require.NoError(t, err)

	assert.Len(t, snap.RoomID, 8)
	assert.Equal(t, "u1", snap.Host)
	assert.Equal(t, StateWaiting, snap.State)
	assert.Equal(t, 1, snap.PlayerCount)
	assert.True(t, snap.Players["u1"].IsHost)
	assert.Equal(t, "fantasy", snap.Settings.Genre)
	assert.Equal(t, 1, s.Count())
}

func TestJoinRoom(t *testing.T) {
	s := newTestStore(t)
	created, err := s.CreateRoom("u1", "Alice", Settings{})
	require.NoError(t, err)

	snap, err := s.JoinRoom("u2", "Bob", created.RoomID)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.PlayerCount)
	assert.False(t, snap.Players["u2"].IsHost)
	assert.Equal(t, []string{"u1", "u2"}, snap.Order)
}

func TestJoinRoomNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.JoinRoom("u1", "Alice", "NOPE1234")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestJoinRoomFull(t *testing.T) {
	s := newTestStore(t)
	created, err := s.CreateRoom("u1", "Alice", Settings{})
	require.NoError(t, err)

	for i := 2; i <= 4; i++ {
		_, err := s.JoinRoom(fmt.Sprintf("u%d", i), fmt.Sprintf("P%d", i), created.RoomID)
		require.NoError(t, err)
	}

	_, err = s.JoinRoom("u5", "Eve", created.RoomID)
	assert.ErrorIs(t, err, ErrRoomFull)

	snap, err := s.Snapshot(created.RoomID)
	require.NoError(t, err)
	assert.Equal(t, 4, snap.PlayerCount)
}

func TestJoinRoomFullConcurrent(t *testing.T) {
	s := newTestStore(t)
	created, err := s.CreateRoom("u1", "Alice", Settings{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.JoinRoom(fmt.Sprintf("j%d", i), "P", created.RoomID)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	accepted := 0
	for err := range errs {
		if err == nil {
			accepted++
		} else {
			assert.ErrorIs(t, err, ErrRoomFull)
		}
	}
	assert.Equal(t, 3, accepted, "capacity 4 minus the host")

	snap, err := s.Snapshot(created.RoomID)
	require.NoError(t, err)
	assert.Equal(t, 4, snap.PlayerCount)
}

func TestJoinRoomAlreadyStarted(t *testing.T) {
	s := newTestStore(t)
	created, err := s.CreateRoom("u1", "Alice", Settings{})
	require.NoError(t, err)

	require.NoError(t, s.Update(created.RoomID, func(r *Room) error {
		r.BeginPlaying(s.now())
		return nil
	}))

	_, err = s.JoinRoom("u2", "Bob", created.RoomID)
	assert.ErrorIs(t, err, ErrRoomStarted)
}

func TestLeaveRoomPromotesHost(t *testing.T) {
	s := newTestStore(t)
	created, err := s.CreateRoom("u1", "Alice", Settings{})
	require.NoError(t, err)
	_, err = s.JoinRoom("u2", "Bob", created.RoomID)
	require.NoError(t, err)

	res, err := s.LeaveRoom("u1", created.RoomID)
	require.NoError(t, err)
	require.False(t, res.Deleted)
	assert.Equal(t, "u2", res.NewHost)
	assert.Equal(t, "u2", res.Snapshot.Host)
	assert.True(t, res.Snapshot.Players["u2"].IsHost)
}

func TestLeaveRoomDeletesEmptyRoom(t *testing.T) {
	s := newTestStore(t)
	created, err := s.CreateRoom("u1", "Alice", Settings{})
	require.NoError(t, err)

	res, err := s.LeaveRoom("u1", created.RoomID)
	require.NoError(t, err)
	assert.True(t, res.Deleted)
	assert.Nil(t, res.Snapshot)
	assert.Equal(t, 0, s.Count())

	_, err = s.Snapshot(created.RoomID)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestLeaveRoomDeletesWhenOnlyAIRemains(t *testing.T) {
	s := newTestStore(t)
	created, err := s.CreateRoom("u1", "Alice", Settings{})
	require.NoError(t, err)

	require.NoError(t, s.Update(created.RoomID, func(r *Room) error {
		r.AddParticipant("ai_x", "AI Storyteller", KindAI, false, s.now())
		r.BeginPlaying(s.now())
		return nil
	}))

	res, err := s.LeaveRoom("u1", created.RoomID)
	require.NoError(t, err)
	assert.True(t, res.Deleted)
	assert.Equal(t, 0, s.Count())
}

func TestLeaveRoomNotMember(t *testing.T) {
	s := newTestStore(t)
	created, err := s.CreateRoom("u1", "Alice", Settings{})
	require.NoError(t, err)

	_, err = s.LeaveRoom("ghost", created.RoomID)
	assert.ErrorIs(t, err, ErrNotMember)
}

func TestSnapshotIsDetached(t *testing.T) {
	s := newTestStore(t)
	created, err := s.CreateRoom("u1", "Alice", Settings{})
	require.NoError(t, err)

	snap, err := s.Snapshot(created.RoomID)
	require.NoError(t, err)

	_, err = s.JoinRoom("u2", "Bob", created.RoomID)
	require.NoError(t, err)

	// The earlier snapshot must not observe the later join.
	assert.Equal(t, 1, snap.PlayerCount)
	_, ok := snap.Players["u2"]
	assert.False(t, ok)
}

func TestRoomTokensAreUnique(t *testing.T) {
	s := newTestStore(t)
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		snap, err := s.CreateRoom(fmt.Sprintf("h%d", i), "Host", Settings{})
		require.NoError(t, err)
		assert.False(t, seen[snap.RoomID], "token %s issued twice", snap.RoomID)
		seen[snap.RoomID] = true
	}
}

// TestStoreInvariants drives random join/leave sequences and checks the
// structural invariants hold throughout: membership never exceeds
// capacity, the host is always a present human, and the room is deleted
// exactly when its last human departs.
func TestStoreInvariants(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s := NewStore(4, zaptest.NewLogger(t))
		created, err := s.CreateRoom("u0", "Host", Settings{})
		if err != nil {
			rt.Fatalf("create: %v", err)
		}
		roomID := created.RoomID

		present := map[string]bool{"u0": true}
		nextID := 1
		deleted := false

		steps := rapid.IntRange(1, 40).Draw(rt, "steps")
		for i := 0; i < steps && !deleted; i++ {
			if rapid.Bool().Draw(rt, "join") {
				id := fmt.Sprintf("u%d", nextID)
				nextID++
				_, err := s.JoinRoom(id, "P", roomID)
				if err == nil {
					present[id] = true
				} else if len(present) < 4 {
					rt.Fatalf("join rejected below capacity: %v", err)
				}
			} else {
				var id string
				for cand := range present {
					id = cand
					break
				}
				res, err := s.LeaveRoom(id, roomID)
				if err != nil {
					rt.Fatalf("leave: %v", err)
				}
				delete(present, id)
				deleted = res.Deleted
			}

			if deleted {
				if len(present) != 0 {
					rt.Fatalf("room deleted with %d humans present", len(present))
				}
				continue
			}
			snap, err := s.Snapshot(roomID)
			if err != nil {
				rt.Fatalf("snapshot: %v", err)
			}
			if snap.PlayerCount > 4 {
				rt.Fatalf("membership %d exceeds capacity", snap.PlayerCount)
			}
			if snap.PlayerCount != len(present) {
				rt.Fatalf("membership %d, expected %d", snap.PlayerCount, len(present))
			}
			host, ok := snap.Players[snap.Host]
			if !ok || !host.IsHost {
				rt.Fatalf("host %q not a present host", snap.Host)
			}
		}
	})
}
