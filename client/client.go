// Package client is a thin room-store client over the HTTP JSON API. It maps
// transport outcomes onto a small error taxonomy and always hands back the
// server's canonical room document, which callers adopt as local truth.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/horriblebox/horriblebox/game"
)

var (
	// ErrNotFound means the room code resolves to nothing. Callers redirect
	// the user, never crash.
	ErrNotFound = errors.New("room not found")
	// ErrRoomExists means a create collided with an existing code; generate a
	// fresh code and retry.
	ErrRoomExists = errors.New("room code already in use")
)

// PersistenceError covers every other non-success outcome of a store call.
type PersistenceError struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *PersistenceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Message)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

type request struct {
	Action string       `json:"action"`
	Code   string       `json:"code"`
	Room   *game.Room   `json:"room,omitempty"`
	Player *game.Player `json:"player,omitempty"`
}

type Client struct {
	baseURL string
	httpc   *http.Client
}

// New builds a client for the room API rooted at baseURL (scheme://host[/prefix]).
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: 10 * time.Second},
	}
}

// CreateRoom persists a freshly built room under code.
func (c *Client) CreateRoom(ctx context.Context, code string, room game.Room) (game.Room, error) {
	return c.mutate(ctx, "create room", request{Action: "create", Code: code, Room: &room})
}

// GetRoom fetches the current room document for code.
func (c *Client) GetRoom(ctx context.Context, code string) (game.Room, error) {
	const op = "get room"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/rooms?code="+url.QueryEscape(code), nil)
	if err != nil {
		return game.Room{}, &PersistenceError{Op: op, Err: err}
	}
	return c.do(op, req)
}

// UpdateRoom replaces the whole room document. Last write wins; there is no
// version token, so two clients updating inside the same poll window race.
func (c *Client) UpdateRoom(ctx context.Context, code string, room game.Room) (game.Room, error) {
	return c.mutate(ctx, "update room", request{Action: "update", Code: code, Room: &room})
}

// JoinRoom appends player to the room's roster server-side.
func (c *Client) JoinRoom(ctx context.Context, code string, player game.Player) (game.Room, error) {
	return c.mutate(ctx, "join room", request{Action: "join", Code: code, Player: &player})
}

// Decks fetches the card pool the server is playing with.
func (c *Client) Decks(ctx context.Context) (*game.Decks, error) {
	const op = "get decks"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/decks", nil)
	if err != nil {
		return nil, &PersistenceError{Op: op, Err: err}
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, &PersistenceError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &PersistenceError{Op: op, Status: resp.StatusCode}
	}

	var decks game.Decks
	if err := json.NewDecoder(resp.Body).Decode(&decks); err != nil {
		return nil, &PersistenceError{Op: op, Err: err}
	}
	return &decks, nil
}

func (c *Client) mutate(ctx context.Context, op string, body request) (game.Room, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return game.Room{}, &PersistenceError{Op: op, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/rooms", bytes.NewReader(payload))
	if err != nil {
		return game.Room{}, &PersistenceError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(op, req)
}

func (c *Client) do(op string, req *http.Request) (game.Room, error) {
	resp, err := c.httpc.Do(req)
	if err != nil {
		return game.Room{}, &PersistenceError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	var out struct {
		Room  *game.Room `json:"room,omitempty"`
		Error string     `json:"error,omitempty"`
	}
	// Bodies of error responses still carry {"error": ...}; decode failures on
	// them are ignored in favor of the status code.
	decodeErr := json.NewDecoder(resp.Body).Decode(&out)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return game.Room{}, ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		return game.Room{}, ErrRoomExists
	case resp.StatusCode != http.StatusOK:
		return game.Room{}, &PersistenceError{Op: op, Status: resp.StatusCode, Message: out.Error}
	case decodeErr != nil:
		return game.Room{}, &PersistenceError{Op: op, Err: decodeErr}
	case out.Room == nil:
		return game.Room{}, &PersistenceError{Op: op, Status: resp.StatusCode, Message: "response without room"}
	}

	return *out.Room, nil
}
