// Package rooms is the server side of the game: an in-memory room store keyed
// by short code, the HTTP API in front of it, and a websocket feed of room
// changes.
//
// The store is deliberately a plain map with a lock. Writes replace the whole
// room document and the last write wins; there is no version token and no
// conflict resolution. Rooms are never closed by players, only reaped after
// sitting idle.
package rooms

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/horriblebox/horriblebox/game"
)

var (
	ErrNotFound = errors.New("room not found")
	ErrExists   = errors.New("room code already in use")
)

type entry struct {
	room       game.Room
	lastActive time.Time
}

type Store struct {
	mu    sync.Mutex
	rooms map[string]*entry
	clock clockwork.Clock
}

func NewStore(clock clockwork.Clock) *Store {
	return &Store{
		rooms: make(map[string]*entry),
		clock: clock,
	}
}

// clone detaches a room from the store's copy so callers can't mutate shared
// slices behind the lock.
func clone(r game.Room) game.Room {
	out := r
	out.Players = append([]game.Player(nil), r.Players...)
	out.Submissions = append([]game.Submission(nil), r.Submissions...)
	return out
}

// Create stores a new room document. Room codes collide often enough at six
// characters that duplicates are rejected instead of overwritten; callers
// regenerate and retry.
func (s *Store) Create(code string, room game.Room) (game.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[code]; ok {
		return game.Room{}, ErrExists
	}
	room.Code = code
	s.rooms[code] = &entry{room: clone(room), lastActive: s.clock.Now()}
	return room, nil
}

func (s *Store) Get(code string) (game.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.rooms[code]
	if !ok {
		return game.Room{}, ErrNotFound
	}
	return clone(e.room), nil
}

// Update replaces the whole room document. Last write wins.
func (s *Store) Update(code string, room game.Room) (game.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.rooms[code]
	if !ok {
		return game.Room{}, ErrNotFound
	}
	room.Code = code
	e.room = clone(room)
	e.lastActive = s.clock.Now()
	return room, nil
}

// Join appends a player to an existing room.
func (s *Store) Join(code string, player game.Player) (game.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.rooms[code]
	if !ok {
		return game.Room{}, ErrNotFound
	}
	if err := e.room.AddPlayer(player); err != nil {
		return game.Room{}, err
	}
	e.lastActive = s.clock.Now()
	return clone(e.room), nil
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}

// Reap removes rooms idle for longer than idle and reports how many went.
func (s *Store) Reap(idle time.Duration) int {
	cutoff := s.clock.Now().Add(-idle)

	s.mu.Lock()
	defer s.mu.Unlock()

	reaped := 0
	for code, e := range s.rooms {
		if e.lastActive.Before(cutoff) {
			delete(s.rooms, code)
			reaped++
		}
	}
	return reaped
}

// RunReaper periodically reaps idle rooms until ctx is cancelled. Abandoned
// rooms are the only cleanup path; players never delete anything.
func (s *Store) RunReaper(ctx context.Context, idle time.Duration, logf func(format string, args ...any)) {
	ticker := s.clock.NewTicker(idle / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if n := s.Reap(idle); n > 0 && logf != nil {
				logf("ROOMS: Reaped %d idle room(s)", n)
			}
		}
	}
}
