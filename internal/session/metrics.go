package session

import "expvar"

var (
	metricSessionsStarted    = expvar.NewInt("session_started_total")
	metricSessionsFinished   = expvar.NewInt("session_finished_total")
	metricSessionsCancelled  = expvar.NewInt("session_cancelled_total")
	metricSelectionsAccepted = expvar.NewInt("session_selection_accepted_total")
	metricSelectionsRejected = expvar.NewInt("session_selection_rejected_total")
	metricPairsMatched       = expvar.NewInt("session_pairs_matched_total")
	metricTurnTimeouts       = expvar.NewInt("session_turn_timeout_total")
	metricQuits              = expvar.NewInt("session_quit_total")
	metricDisconnects        = expvar.NewInt("session_disconnect_total")
)
