package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/julienschmidt/httprouter"

	"github.com/horriblebox/horriblebox/game"
	"github.com/horriblebox/horriblebox/rooms"
)

func newClient(t *testing.T) *Client {
	t.Helper()

	store := rooms.NewStore(clockwork.NewFakeClock())
	srv := rooms.NewServer(store, game.DefaultDecks(), nil)

	mux := httprouter.New()
	srv.Register("", mux)

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	return New(ts.URL)
}

func newRoom(t *testing.T, code string) (game.Room, game.Player) {
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

func TestCreateAndGetRoom(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()
	room, host := newRoom(t, "AAAAAA")

	created, err := c.CreateRoom(ctx, "AAAAAA", room)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Code != "AAAAAA" || created.HostID != host.ID {
		t.Fatalf("unexpected created room: %+v", created)
	}

	got, err := c.GetRoom(ctx, "AAAAAA")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Players) != 1 || got.Players[0].Score != 0 {
		t.Fatalf("unexpected players: %+v", got.Players)
	}
}

func TestCreateRoomCollision(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	room, _ := newRoom(t, "AAAAAA")
	if _, err := c.CreateRoom(ctx, "AAAAAA", room); err != nil {
		t.Fatalf("create: %v", err)
	}

	other, _ := newRoom(t, "AAAAAA")
	if _, err := c.CreateRoom(ctx, "AAAAAA", other); !errors.Is(err, ErrRoomExists) {
		t.Fatalf("expected ErrRoomExists, got %v", err)
	}
}

func TestGetRoomNotFound(t *testing.T) {
	c := newClient(t)

	if _, err := c.GetRoom(context.Background(), "NOSUCH"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestJoinRoom(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	room, _ := newRoom(t, "AAAAAA")
	if _, err := c.CreateRoom(ctx, "AAAAAA", room); err != nil {
		t.Fatalf("create: %v", err)
	}

	guest, _ := game.NewPlayer("Bob")
	joined, err := c.JoinRoom(ctx, "AAAAAA", guest)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if len(joined.Players) != 2 {
		t.Fatalf("expected 2 players, got %d", len(joined.Players))
	}

	if _, err := c.JoinRoom(ctx, "NOSUCH", guest); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateRoom(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	room, _ := newRoom(t, "AAAAAA")
	if _, err := c.CreateRoom(ctx, "AAAAAA", room); err != nil {
		t.Fatalf("create: %v", err)
	}

	guest, _ := game.NewPlayer("Bob")
	if err := room.AddPlayer(guest); err != nil {
		t.Fatalf("add player: %v", err)
	}
	if err := room.Start("prompt"); err != nil {
		t.Fatalf("start: %v", err)
	}

	updated, err := c.UpdateRoom(ctx, "AAAAAA", room)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Phase != game.PhasePlaying {
		t.Fatalf("expected playing, got %q", updated.Phase)
	}

	if _, err := c.UpdateRoom(ctx, "NOSUCH", room); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDecks(t *testing.T) {
	c := newClient(t)

	decks, err := c.Decks(context.Background())
	if err != nil {
		t.Fatalf("decks: %v", err)
	}
	if len(decks.Conditions) == 0 || len(decks.Actions) < game.HandSize {
		t.Fatalf("unexpected decks: %+v", decks)
	}
}

func TestPersistenceErrorOnServerFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
	}))
	t.Cleanup(ts.Close)

	c := New(ts.URL)
	room, _ := newRoom(t, "AAAAAA")

	_, err := c.UpdateRoom(context.Background(), "AAAAAA", room)
	var perr *PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
	if perr.Status != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", perr.Status)
	}
}

func TestPersistenceErrorOnUnreachableServer(t *testing.T) {
	c := New("http://127.0.0.1:1")

	_, err := c.GetRoom(context.Background(), "AAAAAA")
	var perr *PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
}
