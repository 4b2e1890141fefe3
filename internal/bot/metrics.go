package bot

import "expvar"

var (
	metricSeatsActive    = expvar.NewInt("bot_seats_active")
	metricTurnsPlayed    = expvar.NewInt("bot_turns_played_total")
	metricTurnsAbandoned = expvar.NewInt("bot_turns_abandoned_total")
	metricPairsRecalled  = expvar.NewInt("bot_pairs_recalled_total")
	metricMistakesSpent  = expvar.NewInt("bot_mistakes_spent_total")
)
