package game

import (
	_ "embed"
	"fmt"
	"math/rand/v2"
	"os"

	"gopkg.in/yaml.v3"
)

// HandSize is how many action cards a player holds at once.
const HandSize = 5

// Decks is the card pool for a game: condition prompts and action cards.
type Decks struct {
	Conditions []string `yaml:"conditions" json:"conditions"`
	Actions    []string `yaml:"actions" json:"actions"`
}

//go:embed decks.yaml
var defaultDecksYAML []byte

// DefaultDecks parses the embedded card pool. The embedded file is part of
// the build, so a parse failure is a programming error.
func DefaultDecks() *Decks {
	d, err := ParseDecks(defaultDecksYAML)
	if err != nil {
		panic("embedded decks.yaml: " + err.Error())
	}
	return d
}

// LoadDecks reads a card pool from a YAML file, for servers that want to
// swap in their own prompts.
func LoadDecks(path string) (*Decks, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read decks: %w", err)
	}
	return ParseDecks(data)
}

func ParseDecks(data []byte) (*Decks, error) {
	var d Decks
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse decks: %w", err)
	}
	if len(d.Conditions) == 0 {
		return nil, fmt.Errorf("decks: no condition cards")
	}
	if len(d.Actions) < HandSize {
		return nil, fmt.Errorf("decks: need at least %d action cards, have %d", HandSize, len(d.Actions))
	}
	return &d, nil
}

// RandomCondition picks the prompt for a round. Prompts may repeat across
// rounds; the pool is not consumed.
func (d *Decks) RandomCondition() string {
	return d.Conditions[rand.IntN(len(d.Conditions))]
}

// Deal samples n action cards without replacement within the draw. Cards may
// still repeat across separate deals.
func (d *Decks) Deal(n int) []string {
	if n > len(d.Actions) {
		n = len(d.Actions)
	}
	idx := rand.Perm(len(d.Actions))
	hand := make([]string, n)
	for i := range hand {
		hand[i] = d.Actions[idx[i]]
	}
	return hand
}
