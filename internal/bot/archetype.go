package bot

import "time"

// Archetype keys the strategy table. The set is closed: identities are seeded
// from Archetypes and an unknown value coming back from storage leaves the
// seat idle rather than guessing a play style.
type Archetype string

const (
	// ArchetypeShark is the house-favored profile: long analytical thinking,
	// sticky memory, mistakes spent almost never.
	ArchetypeShark Archetype = "shark"
	// ArchetypeCasual plays like a distractable human: snappier picks, leaky
	// recall, a real mistake budget.
	ArchetypeCasual Archetype = "casual"
)

// Strategy tunes one archetype: how long it pretends to think, how leaky its
// recall is and how many deliberate mistakes it spends per session.
type Strategy struct {
	ThinkMin time.Duration
	ThinkMax time.Duration
	// ForgetChance is rolled independently per remembered card at the start
	// of each of the bot's own turns.
	ForgetChance float64
	// MistakeChance gates each mistake opportunity once the phase budget and
	// turn spacing allow one.
	MistakeChance float64
	// TargetMistakes is the per-session mistake budget, spread across the
	// early, mid and late phases of the board.
	TargetMistakes int
}

var strategies = map[Archetype]Strategy{
	ArchetypeShark: {
		ThinkMin:       1200 * time.Millisecond,
		ThinkMax:       3500 * time.Millisecond,
		ForgetChance:   0.02,
		MistakeChance:  0.05,
		TargetMistakes: 1,
	},
	ArchetypeCasual: {
		ThinkMin:       500 * time.Millisecond,
		ThinkMax:       1800 * time.Millisecond,
		ForgetChance:   0.18,
		MistakeChance:  0.55,
		TargetMistakes: 4,
	},
}

// StrategyFor resolves the strategy table. The second return is false for
// values outside the closed set.
func StrategyFor(a Archetype) (Strategy, bool) {
	s, ok := strategies[a]
	return s, ok
}

// Archetypes lists the closed set in seeding order: the majority archetype
// first.
func Archetypes() []Archetype {
	return []Archetype{ArchetypeShark, ArchetypeCasual}
}

func ValidArchetype(s string) bool {
	_, ok := strategies[Archetype(s)]
	return ok
}
