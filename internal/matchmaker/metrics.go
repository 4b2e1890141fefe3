package matchmaker

import "expvar"

var (
	metricJoins              = expvar.NewInt("match_queue_joins_total")
	metricLeaves             = expvar.NewInt("match_queue_leaves_total")
	metricExpired            = expvar.NewInt("match_queue_expired_total")
	metricTicks              = expvar.NewInt("match_ticks_total")
	metricTicksSkipped       = expvar.NewInt("match_ticks_skipped_total")
	metricHumanSessions      = expvar.NewInt("match_sessions_human_total")
	metricBackfillSessions   = expvar.NewInt("match_sessions_backfill_total")
	metricGuaranteedSessions = expvar.NewInt("match_sessions_guaranteed_total")
	metricPromotionConflicts = expvar.NewInt("match_promotion_conflicts_total")
	metricGuaranteeStalls    = expvar.NewInt("match_guarantee_stalls_total")
)
