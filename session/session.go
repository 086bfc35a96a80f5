// Package session drives one player's view of a game: it owns the phase
// transitions, the per-round local state (hand, selection, vote), and the
// polling loop that reconciles the local room snapshot with the store.
//
// The controller is an explicit session context: the current room and the
// acting player live on the struct and nowhere else. Mutations build a new
// room value, push the whole document to the store, and adopt the server's
// canonical copy; the next poll does the same for everyone else's writes.
// Writes are last-write-wins, so two players acting within the same poll
// window can overwrite each other. That limitation is inherited knowingly.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/horriblebox/horriblebox/client"
	"github.com/horriblebox/horriblebox/game"
)

// RoomStore is the transport the controller talks to. client.Client satisfies
// it; tests substitute scripted fakes.
type RoomStore interface {
	CreateRoom(ctx context.Context, code string, room game.Room) (game.Room, error)
	GetRoom(ctx context.Context, code string) (game.Room, error)
	UpdateRoom(ctx context.Context, code string, room game.Room) (game.Room, error)
	JoinRoom(ctx context.Context, code string, player game.Player) (game.Room, error)
}

var (
	ErrNoRoom        = errors.New("no active room")
	ErrNotHost       = errors.New("only the host can start the game")
	ErrAlreadyVoted  = errors.New("already voted this round")
	ErrCardNotInHand = errors.New("card is not in your hand")
	ErrPolling       = errors.New("polling already started")
)

// How many fresh codes to try when creates collide.
const createAttempts = 5

const (
	defaultPollInterval = 2 * time.Second
	defaultCountdown    = 15
)

type Config struct {
	Store RoomStore

	// Clock defaults to the real clock; tests inject a fake one and advance
	// it to drive polling and the countdown deterministically.
	Clock clockwork.Clock

	// Decks defaults to the embedded card pool.
	Decks *game.Decks

	PollInterval     time.Duration
	CountdownSeconds int

	// OnRoom observes every adopted room snapshot (local mutations and polls
	// alike). OnError observes background poll failures; polling continues
	// regardless. Both may be nil.
	OnRoom  func(game.Room)
	OnError func(error)
}

type Controller struct {
	store     RoomStore
	clock     clockwork.Clock
	decks     *game.Decks
	interval  time.Duration
	countdown int
	onRoom    func(game.Room)
	onError   func(error)

	mu          sync.Mutex
	room        *game.Room
	player      game.Player
	hand        []string
	selected    string
	votedFor    string
	secondsLeft int
	stopPolling context.CancelFunc
}

func New(cfg Config) (*Controller, error) {
	if cfg.Store == nil {
		return nil, errors.New("session: Store is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Decks == nil {
		cfg.Decks = game.DefaultDecks()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.CountdownSeconds <= 0 {
		cfg.CountdownSeconds = defaultCountdown
	}
	return &Controller{
		store:       cfg.Store,
		clock:       cfg.Clock,
		decks:       cfg.Decks,
		interval:    cfg.PollInterval,
		countdown:   cfg.CountdownSeconds,
		onRoom:      cfg.OnRoom,
		onError:     cfg.OnError,
		secondsLeft: cfg.CountdownSeconds,
	}, nil
}

// CreateRoom builds a one-player lobby and persists it under a fresh code,
// regenerating on the rare collision.
func (c *Controller) CreateRoom(ctx context.Context, playerName string, mode game.GameMode, maxScore int) (game.Room, error) {
	player, err := game.NewPlayer(playerName)
	if err != nil {
		return game.Room{}, err
	}

	for i := 0; i < createAttempts; i++ {
		code := game.NewRoomCode()
		room, err := game.NewRoom(code, player, mode, maxScore)
		if err != nil {
			return game.Room{}, err
		}

		canonical, err := c.store.CreateRoom(ctx, code, room)
		if errors.Is(err, client.ErrRoomExists) {
			continue
		}
		if err != nil {
			return game.Room{}, err
		}

		c.mu.Lock()
		c.player = player
		snap := c.adoptLocked(canonical)
		c.mu.Unlock()
		c.notify(snap)
		return canonical, nil
	}

	return game.Room{}, fmt.Errorf("could not allocate a room code after %d attempts", createAttempts)
}

// JoinRoom enters an existing room as a new player. A missing room surfaces
// as client.ErrNotFound for the caller to redirect on.
func (c *Controller) JoinRoom(ctx context.Context, playerName, code string) (game.Room, error) {
	code = game.NormalizeCode(code)
	if code == "" {
		return game.Room{}, game.ErrCodeRequired
	}
	player, err := game.NewPlayer(playerName)
	if err != nil {
		return game.Room{}, err
	}

	canonical, err := c.store.JoinRoom(ctx, code, player)
	if err != nil {
		return game.Room{}, err
	}

	c.mu.Lock()
	c.player = player
	snap := c.adoptLocked(canonical)
	c.mu.Unlock()
	c.notify(snap)
	return canonical, nil
}

// StartGame moves the lobby into round one. Host-only, and only with at
// least two players; a refused start leaves the room untouched.
func (c *Controller) StartGame(ctx context.Context) error {
	c.mu.Lock()
	if c.room == nil {
		c.mu.Unlock()
		return ErrNoRoom
	}
	if c.player.ID != c.room.HostID {
		c.mu.Unlock()
		return ErrNotHost
	}

	next := *c.room
	next.Players = append([]game.Player(nil), c.room.Players...)
	if err := next.Start(c.decks.RandomCondition()); err != nil {
		c.mu.Unlock()
		return err
	}

	canonical, err := c.store.UpdateRoom(ctx, next.Code, next)
	if err != nil {
		c.mu.Unlock()
		return err
	}

	snap := c.adoptLocked(canonical)
	c.mu.Unlock()
	c.notify(snap)
	return nil
}

// SubmitCard plays a card from the local hand into the shared submission
// list: at most once per round. On a failed write the optimistic selection is
// rolled back so the player can retry.
func (c *Controller) SubmitCard(ctx context.Context, card string) error {
	c.mu.Lock()
	if c.room == nil {
		c.mu.Unlock()
		return ErrNoRoom
	}
	if c.selected != "" || c.room.HasSubmitted(c.player.ID) {
		c.mu.Unlock()
		return game.ErrAlreadySubmitted
	}
	if !contains(c.hand, card) {
		c.mu.Unlock()
		return ErrCardNotInHand
	}

	next := *c.room
	next.Submissions = append([]game.Submission(nil), c.room.Submissions...)
	if err := next.Submit(game.Submission{PlayerID: c.player.ID, ActionCard: card}); err != nil {
		c.mu.Unlock()
		return err
	}

	c.selected = card

	canonical, err := c.store.UpdateRoom(ctx, next.Code, next)
	if err != nil {
		c.selected = ""
		c.mu.Unlock()
		return err
	}

	snap := c.adoptLocked(canonical)
	c.mu.Unlock()
	c.notify(snap)
	return nil
}

// CastVote awards the round to targetPlayerID and advances the game: one
// vote per player per round, tracked only locally. The final round's vote
// finishes the game.
func (c *Controller) CastVote(ctx context.Context, targetPlayerID string) error {
	c.mu.Lock()
	if c.room == nil {
		c.mu.Unlock()
		return ErrNoRoom
	}
	if c.votedFor != "" {
		c.mu.Unlock()
		return ErrAlreadyVoted
	}

	next := *c.room
	next.Players = append([]game.Player(nil), c.room.Players...)
	next.Submissions = append([]game.Submission(nil), c.room.Submissions...)
	if err := next.Vote(targetPlayerID, c.decks.RandomCondition()); err != nil {
		c.mu.Unlock()
		return err
	}

	c.votedFor = targetPlayerID

	canonical, err := c.store.UpdateRoom(ctx, next.Code, next)
	if err != nil {
		c.votedFor = ""
		c.mu.Unlock()
		return err
	}

	snap := c.adoptLocked(canonical)
	c.mu.Unlock()
	c.notify(snap)
	return nil
}

// Refresh re-fetches the room once and adopts the result.
func (c *Controller) Refresh(ctx context.Context) (game.Room, error) {
	c.mu.Lock()
	if c.room == nil {
		c.mu.Unlock()
		return game.Room{}, ErrNoRoom
	}
	code := c.room.Code
	c.mu.Unlock()

	canonical, err := c.store.GetRoom(ctx, code)
	if err != nil {
		return game.Room{}, err
	}

	c.mu.Lock()
	snap := c.adoptLocked(canonical)
	c.mu.Unlock()
	c.notify(snap)
	return canonical, nil
}

// Start performs the initial fetch and then keeps the local snapshot fresh on
// a fixed cadence until Stop (or ctx cancellation). The initial failure is
// returned so the caller can leave the room view; background failures go to
// OnError and never stop the loop. A second task ticks the advisory countdown
// once per second.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.room == nil {
		c.mu.Unlock()
		return ErrNoRoom
	}
	if c.stopPolling != nil {
		c.mu.Unlock()
		return ErrPolling
	}
	c.mu.Unlock()

	if _, err := c.Refresh(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	c.stopPolling = cancel
	c.mu.Unlock()

	runEvery(ctx, c.clock, c.interval, func() {
		if _, err := c.Refresh(ctx); err != nil && c.onError != nil {
			c.onError(err)
		}
	})
	runEvery(ctx, c.clock, time.Second, c.tickCountdown)

	return nil
}

// Stop tears down the polling and countdown tasks. Safe to call more than
// once.
func (c *Controller) Stop() {
	c.mu.Lock()
	cancel := c.stopPolling
	c.stopPolling = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (c *Controller) tickCountdown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.room == nil || c.room.Phase != game.PhasePlaying {
		return
	}
	if c.selected == "" && c.secondsLeft > 0 {
		c.secondsLeft--
	}
}

// adoptLocked replaces the local snapshot with the server's canonical room.
// Crossing into a new round (whether through our own vote or someone else's,
// seen via poll) resets the per-round local state and refreshes the hand.
func (c *Controller) adoptLocked(r game.Room) game.Room {
	prevRound, prevPhase := -1, game.Phase("")
	if c.room != nil {
		prevRound, prevPhase = c.room.CurrentRound, c.room.Phase
	}

	if p, ok := r.Player(c.player.ID); ok {
		c.player = p
	}
	c.room = &r

	if r.Phase == game.PhasePlaying {
		if prevPhase != game.PhasePlaying || r.CurrentRound != prevRound {
			c.refillHandLocked() // reads the just-played card, so refill first
			c.selected = ""
			c.votedFor = ""
			c.secondsLeft = c.countdown
		}
	}

	return r
}

// refillHandLocked deals the hand for a new round. Random mode redeals from
// scratch every round; classic keeps unplayed cards and tops the hand back up
// to size.
func (c *Controller) refillHandLocked() {
	if c.room.GameMode == game.ModeRandom || len(c.hand) == 0 {
		c.hand = c.decks.Deal(game.HandSize)
		return
	}

	kept := make([]string, 0, game.HandSize)
	for _, card := range c.hand {
		if card != c.selected {
			kept = append(kept, card)
		}
	}
	for _, card := range c.decks.Deal(game.HandSize) {
		if len(kept) >= game.HandSize {
			break
		}
		if !contains(kept, card) {
			kept = append(kept, card)
		}
	}
	c.hand = kept
}

func (c *Controller) notify(r game.Room) {
	if c.onRoom != nil {
		c.onRoom(r)
	}
}

// Room returns the current snapshot, if the controller has entered one.
func (c *Controller) Room() (game.Room, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.room == nil {
		return game.Room{}, false
	}
	return *c.room, true
}

func (c *Controller) Player() game.Player {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.player
}

func (c *Controller) Hand() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.hand...)
}

func (c *Controller) IsHost() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room != nil && c.room.HostID == c.player.ID
}

func (c *Controller) HasSubmitted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected != "" || (c.room != nil && c.room.HasSubmitted(c.player.ID))
}

func (c *Controller) HasVoted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.votedFor != ""
}

// SecondsLeft reports the advisory per-round countdown. Nothing is enforced
// when it reaches zero.
func (c *Controller) SecondsLeft() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.secondsLeft
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
