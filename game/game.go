// Package game holds the shared room document and the rules that mutate it.
//
// A Room is the aggregate every client reads and writes as a whole; the
// transitions here are pure so that both the session controller and the
// server-side tests can exercise them without a transport underneath.
package game

import (
	"crypto/rand"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

type GameMode string

const (
	ModeClassic GameMode = "classic"
	ModeRandom  GameMode = "random"
)

type Phase string

const (
	PhaseLobby   Phase = "lobby"
	PhasePlaying Phase = "playing"
	// Voting and Results are declared for a future split of the voting step
	// out of Playing; the current flow folds voting into PhasePlaying.
	PhaseVoting   Phase = "voting"
	PhaseResults  Phase = "results"
	PhaseFinished Phase = "finished"
)

// Target score bounds, as offered by the create-room form.
const (
	MinMaxScore = 5
	MaxMaxScore = 50
)

// ScorePerVote is awarded to the player whose card wins the round.
const ScorePerVote = 2

type Player struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Avatar       string `json:"avatar"`
	Score        int    `json:"score"`
	IsReady      bool   `json:"isReady,omitempty"`
	SelectedCard string `json:"selectedCard,omitempty"`
}

type Submission struct {
	PlayerID   string `json:"playerId"`
	ActionCard string `json:"actionCard"`
}

type Room struct {
	Code             string       `json:"code"`
	HostID           string       `json:"hostId"`
	Players          []Player     `json:"players"`
	GameMode         GameMode     `json:"gameMode"`
	MaxScore         int          `json:"maxScore"`
	CurrentRound     int          `json:"currentRound"`
	CurrentCondition string       `json:"currentCondition,omitempty"`
	Phase            Phase        `json:"phase"`
	Submissions      []Submission `json:"submissions"`
}

var (
	ErrNameRequired     = errors.New("player name must not be blank")
	ErrCodeRequired     = errors.New("room code must not be blank")
	ErrMaxScoreRange    = fmt.Errorf("max score must be between %d and %d", MinMaxScore, MaxMaxScore)
	ErrGameModeUnknown  = errors.New("unknown game mode")
	ErrNotEnoughPlayers = errors.New("at least two players are needed to start")
	ErrNotInLobby       = errors.New("game has already started")
	ErrNotPlaying       = errors.New("no round in progress")
	ErrAlreadySubmitted = errors.New("player already submitted a card this round")
	ErrUnknownPlayer    = errors.New("player is not in this room")
	ErrDuplicatePlayer  = errors.New("player id already present in room")
)

const codeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// NewRoomCode returns a 6-character uppercase base-36 code. Codes are short
// enough to collide; the store rejects duplicates and callers retry.
func NewRoomCode() string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		panic("crypto/rand failure: " + err.Error())
	}
	out := make([]byte, len(buf))
	for i := range out {
		out[i] = codeAlphabet[int(buf[i])%len(codeAlphabet)]
	}
	return string(out)
}

// NormalizeCode uppercases a human-typed room code for use as a store key.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// AvatarURL derives a deterministic avatar reference for a player name.
// Only the URL is stored; fetching the image is the display layer's problem.
func AvatarURL(name string) string {
	return "https://api.dicebear.com/7.x/avataaars/svg?seed=" + url.QueryEscape(name)
}

// NewPlayer builds a zero-score player with a random id. Random ids keep
// players unique across leave/rejoin cycles, unlike positional schemes.
func NewPlayer(name string) (Player, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Player{}, ErrNameRequired
	}
	return Player{
		ID:     uuid.NewString(),
		Name:   name,
		Avatar: AvatarURL(name),
	}, nil
}

// NewRoom builds a lobby room with the given player as host.
func NewRoom(code string, host Player, mode GameMode, maxScore int) (Room, error) {
	if code == "" {
		return Room{}, ErrCodeRequired
	}
	if mode != ModeClassic && mode != ModeRandom {
		return Room{}, ErrGameModeUnknown
	}
	if maxScore < MinMaxScore || maxScore > MaxMaxScore {
		return Room{}, ErrMaxScoreRange
	}
	return Room{
		Code:        NormalizeCode(code),
		HostID:      host.ID,
		Players:     []Player{host},
		GameMode:    mode,
		MaxScore:    maxScore,
		Phase:       PhaseLobby,
		Submissions: []Submission{},
	}, nil
}

// FinalRound is the round whose vote ends the game: integer maxScore / 2.
func (r *Room) FinalRound() int {
	return r.MaxScore / 2
}

func (r *Room) Player(id string) (Player, bool) {
	for _, p := range r.Players {
		if p.ID == id {
			return p, true
		}
	}
	return Player{}, false
}

func (r *Room) HasSubmitted(playerID string) bool {
	for _, s := range r.Submissions {
		if s.PlayerID == playerID {
			return true
		}
	}
	return false
}

// AddPlayer appends a joining player. Ids must stay unique within the room.
func (r *Room) AddPlayer(p Player) error {
	if _, ok := r.Player(p.ID); ok {
		return ErrDuplicatePlayer
	}
	r.Players = append(r.Players, p)
	return nil
}

// Start moves the lobby into the first round with the given condition.
func (r *Room) Start(condition string) error {
	if r.Phase != PhaseLobby {
		return ErrNotInLobby
	}
	if len(r.Players) < 2 {
		return ErrNotEnoughPlayers
	}
	r.Phase = PhasePlaying
	r.CurrentRound = 1
	r.CurrentCondition = condition
	r.Submissions = []Submission{}
	return nil
}

// Submit records a player's card for the current round. At most one
// submission per player, and never more submissions than players.
func (r *Room) Submit(s Submission) error {
	if r.Phase != PhasePlaying {
		return ErrNotPlaying
	}
	if _, ok := r.Player(s.PlayerID); !ok {
		return ErrUnknownPlayer
	}
	if r.HasSubmitted(s.PlayerID) {
		return ErrAlreadySubmitted
	}
	r.Submissions = append(r.Submissions, s)
	return nil
}

// Vote awards the round to playerID and advances the game: the winner gains
// ScorePerVote, submissions are cleared, and the round counter moves up by
// exactly one. The vote cast in the final round finishes the game; otherwise
// nextCondition becomes the new prompt.
func (r *Room) Vote(playerID, nextCondition string) error {
	if r.Phase != PhasePlaying {
		return ErrNotPlaying
	}
	voted := false
	for i := range r.Players {
		if r.Players[i].ID == playerID {
			r.Players[i].Score += ScorePerVote
			voted = true
			break
		}
	}
	if !voted {
		return ErrUnknownPlayer
	}

	if r.CurrentRound >= r.FinalRound() {
		r.Phase = PhaseFinished
		r.CurrentCondition = ""
	} else {
		r.CurrentCondition = nextCondition
	}
	r.CurrentRound++
	r.Submissions = []Submission{}
	return nil
}

// Winner returns the highest-scoring player. Ties resolve to the earliest
// joiner, matching the order players appear in the room.
func (r *Room) Winner() (Player, bool) {
	if len(r.Players) == 0 {
		return Player{}, false
	}
	best := r.Players[0]
	for _, p := range r.Players[1:] {
		if p.Score > best.Score {
			best = p
		}
	}
	return best, true
}
