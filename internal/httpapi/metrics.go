package httpapi

import "expvar"

var (
	metricAuthFailures   = expvar.NewInt("api_auth_failures_total")
	metricSessionStreams = expvar.NewInt("api_session_streams_active")
	metricLobbyStreams   = expvar.NewInt("api_lobby_streams_active")
)
