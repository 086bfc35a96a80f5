package rooms

import "github.com/horriblebox/horriblebox/game"

// Mutations arrive as a single POST with an action discriminator; reads are
// GETs with a ?code= query parameter.
const (
	ActionCreate = "create"
	ActionJoin   = "join"
	ActionUpdate = "update"
)

type Request struct {
	Action string       `json:"action"`
	Code   string       `json:"code"`
	Room   *game.Room   `json:"room,omitempty"`
	Player *game.Player `json:"player,omitempty"`
}

type Response struct {
	Room  *game.Room `json:"room,omitempty"`
	Error string     `json:"error,omitempty"`
}
