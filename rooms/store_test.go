package rooms

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/horriblebox/horriblebox/game"
)

func testRoom(t *testing.T, code string) (game.Room, game.Player) {
	t.Helper()
	host, err := game.NewPlayer("Alice")
	if err != nil {
		t.Fatalf("new player: %v", err)
	}
	room, err := game.NewRoom(code, host, game.ModeClassic, 10)
	if err != nil {
		t.Fatalf("new room: %v", err)
	}
	return room, host
}

func TestStoreCreateGet(t *testing.T) {
	store := NewStore(clockwork.NewFakeClock())
	room, host := testRoom(t, "AAAAAA")

	created, err := store.Create("AAAAAA", room)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Code != "AAAAAA" {
		t.Fatalf("expected code AAAAAA, got %q", created.Code)
	}

	got, err := store.Get("AAAAAA")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Players) != 1 || got.Players[0].ID != host.ID {
		t.Fatalf("expected host as sole player, got %+v", got.Players)
	}

	if _, err := store.Create("AAAAAA", room); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists on duplicate create, got %v", err)
	}
}

func TestStoreGetNotFound(t *testing.T) {
	store := NewStore(clockwork.NewFakeClock())
	if _, err := store.Get("NOPE"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreUpdate(t *testing.T) {
	store := NewStore(clockwork.NewFakeClock())
	room, _ := testRoom(t, "AAAAAA")

	if _, err := store.Update("AAAAAA", room); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound before create, got %v", err)
	}

	if _, err := store.Create("AAAAAA", room); err != nil {
		t.Fatalf("create: %v", err)
	}

	guest, _ := game.NewPlayer("Bob")
	room.Players = append(room.Players, guest)
	if err := room.Start("prompt"); err != nil {
		t.Fatalf("start: %v", err)
	}

	updated, err := store.Update("AAAAAA", room)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Phase != game.PhasePlaying {
		t.Fatalf("expected playing, got %q", updated.Phase)
	}

	got, err := store.Get("AAAAAA")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Phase != game.PhasePlaying || got.CurrentRound != 1 {
		t.Fatalf("update not persisted: %+v", got)
	}
}

func TestStoreJoin(t *testing.T) {
	store := NewStore(clockwork.NewFakeClock())
	room, _ := testRoom(t, "AAAAAA")
	if _, err := store.Create("AAAAAA", room); err != nil {
		t.Fatalf("create: %v", err)
	}

	guest, _ := game.NewPlayer("Bob")
	joined, err := store.Join("AAAAAA", guest)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if len(joined.Players) != 2 {
		t.Fatalf("expected 2 players, got %d", len(joined.Players))
	}

	if _, err := store.Join("AAAAAA", guest); !errors.Is(err, game.ErrDuplicatePlayer) {
		t.Fatalf("expected ErrDuplicatePlayer, got %v", err)
	}
	if _, err := store.Join("NOPE", guest); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// Returned rooms must be detached copies; mutating one must not leak into the
// store.
func TestStoreReturnsCopies(t *testing.T) {
	store := NewStore(clockwork.NewFakeClock())
	room, _ := testRoom(t, "AAAAAA")
	if _, err := store.Create("AAAAAA", room); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, _ := store.Get("AAAAAA")
	got.Players[0].Score = 99

	again, _ := store.Get("AAAAAA")
	if again.Players[0].Score != 0 {
		t.Fatalf("store copy was mutated through a returned room")
	}
}

func TestStoreReap(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := NewStore(clock)

	stale, _ := testRoom(t, "STALE1")
	if _, err := store.Create("STALE1", stale); err != nil {
		t.Fatalf("create: %v", err)
	}

	clock.Advance(30 * time.Minute)

	fresh, _ := testRoom(t, "FRESH1")
	if _, err := store.Create("FRESH1", fresh); err != nil {
		t.Fatalf("create: %v", err)
	}

	if n := store.Reap(time.Hour); n != 0 {
		t.Fatalf("expected nothing reaped yet, got %d", n)
	}

	clock.Advance(45 * time.Minute)

	if n := store.Reap(time.Hour); n != 1 {
		t.Fatalf("expected 1 room reaped, got %d", n)
	}
	if _, err := store.Get("STALE1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected stale room gone, got %v", err)
	}
	if _, err := store.Get("FRESH1"); err != nil {
		t.Fatalf("fresh room should survive: %v", err)
	}
}

func TestStoreUpdateRefreshesIdleClock(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := NewStore(clock)

	room, _ := testRoom(t, "AAAAAA")
	if _, err := store.Create("AAAAAA", room); err != nil {
		t.Fatalf("create: %v", err)
	}

	clock.Advance(50 * time.Minute)
	if _, err := store.Update("AAAAAA", room); err != nil {
		t.Fatalf("update: %v", err)
	}
	clock.Advance(50 * time.Minute)

	if n := store.Reap(time.Hour); n != 0 {
		t.Fatalf("recently updated room must not be reaped, got %d", n)
	}
}

func TestRunReaper(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := NewStore(clock)

	room, _ := testRoom(t, "AAAAAA")
	if _, err := store.Create("AAAAAA", room); err != nil {
		t.Fatalf("create: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		store.RunReaper(ctx, time.Hour, nil)
	}()

	clock.BlockUntil(1)
	clock.Advance(2 * time.Hour)

	deadline := time.After(2 * time.Second)
	for store.Len() != 0 {
		select {
		case <-deadline:
			t.Fatal("reaper never removed the idle room")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reaper did not stop on cancellation")
	}
}
