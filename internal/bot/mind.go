package bot

import (
	"math/rand"
	"time"
)

// Mind is the per-session decision state of one synthetic seat: memory,
// mistake budget and the archetype's tuning. It is pure logic; the driver
// feeds it events and asks it for picks.
type Mind struct {
	strat  Strategy
	rnd    *rand.Rand
	memory *Memory
	budget *Budget
}

func NewMind(strat Strategy, pairs int, rnd *rand.Rand) *Mind {
	return &Mind{
		strat:  strat,
		rnd:    rnd,
		memory: NewMemory(),
		budget: NewBudget(strat.TargetMistakes, pairs),
	}
}

// ThinkDelay draws a uniform delay from the archetype's thinking range.
func (m *Mind) ThinkDelay() time.Duration {
	lo, hi := m.strat.ThinkMin, m.strat.ThinkMax
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(m.rnd.Int63n(int64(hi-lo)))
}

// ObserveReveal feeds one revealed card into memory.
func (m *Mind) ObserveReveal(pos int, symbol string) {
	m.memory.Observe(pos, symbol)
}

// ObserveMatch drops a matched pair from memory; those positions are out of
// the game.
func (m *Mind) ObserveMatch(positions [2]int) {
	m.memory.Prune(positions[0], positions[1])
}

// BeginTurn applies recall decay and counts the turn for mistake spacing.
// Call once per own turn, before picking.
func (m *Mind) BeginTurn() {
	m.memory.Decay(m.rnd, m.strat.ForgetChance)
	m.budget.NoteTurn()
}

// FirstPick chooses uniformly among the selectable positions. Memory never
// steers the first flip; information is only cashed in on the second.
func (m *Mind) FirstPick(selectable []int) (int, bool) {
	if len(selectable) == 0 {
		return 0, false
	}
	return selectable[m.rnd.Intn(len(selectable))], true
}

// SecondPick plays the remembered partner of the revealed symbol when one
// exists and the mistake policy stays quiet. A fired mistake picks uniformly
// among the legal positions that are not the partner; no memory at all picks
// uniformly among everything selectable.
func (m *Mind) SecondPick(firstPos int, symbol string, selectable []int, matchedPairs int) (int, bool) {
	if len(selectable) == 0 {
		return 0, false
	}
	partner, remembered := m.memory.PartnerOf(symbol, firstPos)
	if remembered && !containsPos(selectable, partner) {
		// Stale entry; treat as forgotten.
		m.memory.Prune(partner)
		remembered = false
	}
	if !remembered {
		return selectable[m.rnd.Intn(len(selectable))], true
	}
	others := make([]int, 0, len(selectable))
	for _, pos := range selectable {
		if pos != partner {
			others = append(others, pos)
		}
	}
	if len(others) > 0 && m.budget.Allow(m.rnd, m.strat.MistakeChance, matchedPairs) {
		metricMistakesSpent.Add(1)
		return others[m.rnd.Intn(len(others))], true
	}
	metricPairsRecalled.Add(1)
	return partner, true
}

// Recalled is the number of positions currently held in memory.
func (m *Mind) Recalled() int {
	return m.memory.Len()
}

func containsPos(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
