package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"pairduel/internal/events"
)

var ssePingInterval = 15 * time.Second

// SessionEventsHandler streams the session ring to a participant. A
// Last-Event-ID header replays everything the client missed; connecting and
// disconnecting feed the reconnect-grace machinery.
func (a *API) SessionEventsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		player := PlayerFrom(r.Context())
		sessionID := chi.URLParam(r, "session_id")
		if !a.Registry.ParticipantIn(sessionID, player.ID) {
			writeErr(w, http.StatusNotFound, "session_not_found")
			return
		}
		buf := a.Registry.Buffer(sessionID)
		if buf == nil {
			writeErr(w, http.StatusNotFound, "session_not_found")
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeErr(w, http.StatusInternalServerError, "stream_not_supported")
			return
		}
		events.SetSSEHeaders(w)

		a.Registry.StreamOpened(sessionID, player.ID)
		defer a.Registry.StreamClosed(sessionID, player.ID)
		metricSessionStreams.Add(1)
		defer metricSessionStreams.Add(-1)

		for _, ev := range buf.ReplayAfter(r.Header.Get("Last-Event-ID")) {
			if err := events.WriteSSE(w, ev); err != nil {
				return
			}
		}
		flusher.Flush()

		ch := buf.Subscribe()
		defer buf.Unsubscribe(ch)
		ticker := time.NewTicker(ssePingInterval)
		defer ticker.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case ev, open := <-ch:
				if !open {
					return
				}
				if err := events.WriteSSE(w, ev); err != nil {
					return
				}
				flusher.Flush()
			case <-ticker.C:
				if err := events.WriteSSE(w, pingEvent(sessionID)); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}

// LobbyEventsHandler streams admission events for the caller only. The lobby
// ring is shared, so events are filtered to the caller's stream id.
func (a *API) LobbyEventsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		player := PlayerFrom(r.Context())
		buf := a.Match.Lobby().Buffer()
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeErr(w, http.StatusInternalServerError, "stream_not_supported")
			return
		}
		events.SetSSEHeaders(w)

		metricLobbyStreams.Add(1)
		defer metricLobbyStreams.Add(-1)

		for _, ev := range buf.ReplayAfter(r.Header.Get("Last-Event-ID")) {
			if ev.StreamID != player.ID {
				continue
			}
			if err := events.WriteSSE(w, ev); err != nil {
				return
			}
		}
		flusher.Flush()

		ch := buf.Subscribe()
		defer buf.Unsubscribe(ch)
		ticker := time.NewTicker(ssePingInterval)
		defer ticker.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case ev, open := <-ch:
				if !open {
					return
				}
				if ev.StreamID != player.ID {
					continue
				}
				if err := events.WriteSSE(w, ev); err != nil {
					return
				}
				flusher.Flush()
			case <-ticker.C:
				if err := events.WriteSSE(w, pingEvent(player.ID)); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}

func pingEvent(streamID string) events.StreamEvent {
	now := time.Now().UnixMilli()
	return events.StreamEvent{
		Event:    "ping",
		StreamID: streamID,
		ServerTS: now,
		Data:     map[string]any{"ts": now},
	}
}
