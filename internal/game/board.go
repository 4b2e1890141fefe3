package game

import (
	"fmt"
	"math/rand"
	"time"
)

// symbolPool is the fixed alphabet boards draw from. A board of N pairs uses
// the first N symbols before shuffling positions, so every symbol appears on
// exactly two cards.
var symbolPool = [...]string{
	"anchor", "balloon", "cactus", "dolphin", "ember", "falcon",
	"guitar", "harbor", "iceberg", "jackal", "kettle", "lantern",
	"meteor", "nutmeg", "octopus", "pyramid", "quartz", "rocket",
	"saddle", "tulip", "umbrella", "violin", "walnut", "zeppelin",
}

// MaxPairs is the largest board the symbol alphabet supports.
const MaxPairs = len(symbolPool)

// Card is one face-down slot on the board. Position doubles as the index
// into Board.Cards.
type Card struct {
	Position int    `json:"position"`
	Symbol   string `json:"-"`
	Flipped  bool   `json:"flipped"`
	Matched  bool   `json:"matched"`
}

type Board struct {
	Cards        []Card
	Pairs        int
	MatchedPairs int
}

// NewBoard deals a shuffled board of pairs symbols. Each symbol lands on
// exactly two positions.
func NewBoard(pairs int) (*Board, error) {
	if pairs < 2 || pairs > MaxPairs {
		return nil, fmt.Errorf("pairs must be between 2 and %d, got %d", MaxPairs, pairs)
	}
	cards := make([]Card, 0, pairs*2)
	for i := 0; i < pairs; i++ {
		cards = append(cards, Card{Symbol: symbolPool[i]}, Card{Symbol: symbolPool[i]})
	}
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	rnd.Shuffle(len(cards), func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})
	for i := range cards {
		cards[i].Position = i
	}
	return &Board{Cards: cards, Pairs: pairs}, nil
}

// Flip turns the card at pos face up.
func (b *Board) Flip(pos int) error {
	if pos < 0 || pos >= len(b.Cards) {
		return ErrInvalidPosition
	}
	c := &b.Cards[pos]
	if c.Matched || c.Flipped {
		return ErrCardUnavailable
	}
	c.Flipped = true
	return nil
}

// Unflip turns a face-up, unmatched card back down.
func (b *Board) Unflip(pos int) {
	if pos < 0 || pos >= len(b.Cards) {
		return
	}
	if !b.Cards[pos].Matched {
		b.Cards[pos].Flipped = false
	}
}

// MarkMatched removes a revealed pair from play. Matched cards stay face up.
func (b *Board) MarkMatched(p1, p2 int) {
	b.Cards[p1].Matched = true
	b.Cards[p2].Matched = true
	b.MatchedPairs++
}

func (b *Board) SymbolAt(pos int) string {
	return b.Cards[pos].Symbol
}

// FlippedUnmatched returns positions currently face up but not yet matched.
// The turn cycle keeps this at 0, 1 or 2.
func (b *Board) FlippedUnmatched() []int {
	out := []int{}
	for _, c := range b.Cards {
		if c.Flipped && !c.Matched {
			out = append(out, c.Position)
		}
	}
	return out
}

// SelectablePositions returns every position a current turn may legally pick.
func (b *Board) SelectablePositions() []int {
	out := []int{}
	for _, c := range b.Cards {
		if !c.Flipped && !c.Matched {
			out = append(out, c.Position)
		}
	}
	return out
}

func (b *Board) AllMatched() bool {
	return b.MatchedPairs == b.Pairs
}

func (b *Board) PairsLeft() int {
	return b.Pairs - b.MatchedPairs
}

// CardView is the client-facing projection of a card: the symbol is only
// disclosed while the card is face up or matched.
type CardView struct {
	Position int    `json:"position"`
	Flipped  bool   `json:"flipped"`
	Matched  bool   `json:"matched"`
	Symbol   string `json:"symbol,omitempty"`
}

func (b *Board) View() []CardView {
	out := make([]CardView, len(b.Cards))
	for i, c := range b.Cards {
		v := CardView{Position: c.Position, Flipped: c.Flipped, Matched: c.Matched}
		if c.Flipped || c.Matched {
			v.Symbol = c.Symbol
		}
		out[i] = v
	}
	return out
}
