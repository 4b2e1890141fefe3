package botpool

import "expvar"

var (
	metricAcquired = expvar.NewInt("botpool_acquired_total")
	metricCreated  = expvar.NewInt("botpool_created_total")
	metricReleased = expvar.NewInt("botpool_released_total")
)
