package bot

import "math/rand"

// mistakePhases splits one session into early, mid and late thirds by
// matched-pair progress.
const mistakePhases = 3

// minTurnGap is the number of the bot's own turns that must pass between two
// deliberate mistakes.
const minTurnGap = 2

// Budget rations deliberate mistakes so they land spread across the session
// instead of clustering where a human would notice the pattern.
type Budget struct {
	perPhase  [mistakePhases]int
	used      [mistakePhases]int
	sinceLast int
	pairs     int
}

// NewBudget splits target mistakes across the phases, front-loading the
// remainder. The first opportunity is not blocked by spacing.
func NewBudget(target, pairs int) *Budget {
	if target < 0 {
		target = 0
	}
	b := &Budget{sinceLast: minTurnGap, pairs: pairs}
	for i := range b.perPhase {
		b.perPhase[i] = target / mistakePhases
	}
	for i := 0; i < target%mistakePhases; i++ {
		b.perPhase[i]++
	}
	return b
}

// NoteTurn counts one of the bot's own turns for mistake spacing.
func (b *Budget) NoteTurn() {
	b.sinceLast++
}

func (b *Budget) phase(matchedPairs int) int {
	if b.pairs <= 0 {
		return 0
	}
	ph := matchedPairs * mistakePhases / b.pairs
	if ph >= mistakePhases {
		ph = mistakePhases - 1
	}
	return ph
}

// Allow reports whether a deliberate mistake may be spent right now, and
// spends it: the current phase must have budget left, at least minTurnGap of
// the bot's turns must have passed since the previous mistake, and the
// archetype's probability roll must hit.
func (b *Budget) Allow(rnd *rand.Rand, chance float64, matchedPairs int) bool {
	ph := b.phase(matchedPairs)
	if b.used[ph] >= b.perPhase[ph] {
		return false
	}
	if b.sinceLast < minTurnGap {
		return false
	}
	if rnd.Float64() >= chance {
		return false
	}
	b.used[ph]++
	b.sinceLast = 0
	return true
}

// Spent is the number of mistakes burned so far.
func (b *Budget) Spent() int {
	n := 0
	for _, u := range b.used {
		n += u
	}
	return n
}
