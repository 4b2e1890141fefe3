package settlement

import "expvar"

var (
	metricSettleAppliedTotal   = expvar.NewInt("settlement_applied_total")
	metricSettleDuplicateTotal = expvar.NewInt("settlement_duplicate_total")
	metricSettleFailedTotal    = expvar.NewInt("settlement_failed_total")
	metricSettleAnomalyTotal   = expvar.NewInt("settlement_anomaly_total")
	metricSweepRecoveredTotal  = expvar.NewInt("settlement_sweep_recovered_total")
)
