package bot

import "math/rand"

// Memory is what one synthetic seat can recall of the board: symbols it has
// actually seen revealed, keyed by position. It is fed exclusively from
// card_revealed events, never from raw board state, so the bot earns
// information the same way a human watching the table does.
type Memory struct {
	known map[int]string
}

func NewMemory() *Memory {
	return &Memory{known: map[int]string{}}
}

// Observe records one revealed card, own turn or opponent's.
func (m *Memory) Observe(pos int, symbol string) {
	m.known[pos] = symbol
}

// Prune drops positions that left the game as a matched pair.
func (m *Memory) Prune(positions ...int) {
	for _, pos := range positions {
		delete(m.known, pos)
	}
}

// Decay forgets each remembered card independently with the given chance.
func (m *Memory) Decay(rnd *rand.Rand, chance float64) {
	if chance <= 0 {
		return
	}
	for pos := range m.known {
		if rnd.Float64() < chance {
			delete(m.known, pos)
		}
	}
}

// PartnerOf returns a remembered position holding symbol, other than exclude.
func (m *Memory) PartnerOf(symbol string, exclude int) (int, bool) {
	for pos, sym := range m.known {
		if sym == symbol && pos != exclude {
			return pos, true
		}
	}
	return 0, false
}

func (m *Memory) Len() int {
	return len(m.known)
}
