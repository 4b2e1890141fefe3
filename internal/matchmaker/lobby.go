package matchmaker

import (
	"time"

	"pairduel/internal/events"
	"pairduel/internal/session"
)

const lobbyBufferSize = 500

// Lobby is the pre-admission event stream. All players share one ring buffer;
// the stream id on each event is the player id, so a lobby connection filters
// and replays only its own events.
type Lobby struct {
	buf *events.Buffer
}

func NewLobby() *Lobby {
	return &Lobby{buf: events.NewBuffer(lobbyBufferSize)}
}

func (l *Lobby) Buffer() *events.Buffer { return l.buf }

// PublishMatched tells a waiting player which session admitted them and where
// to attach.
func (l *Lobby) PublishMatched(participantID, sessionID, gameType string, stakeCC int64) {
	l.buf.Append(session.EventSessionMatched, participantID, session.SessionMatchedPayload{
		SessionID: sessionID,
		GameType:  gameType,
		StakeCC:   stakeCC,
		StreamURL: "/api/sessions/" + sessionID + "/events",
	})
}

// PublishQueueTimeout reports an expired entry and the refunded stake.
func (l *Lobby) PublishQueueTimeout(participantID, entryID string, waited time.Duration, refundedCC int64) {
	l.buf.Append(session.EventQueueTimeout, participantID, session.QueueTimeoutPayload{
		EntryID:    entryID,
		WaitedMS:   waited.Milliseconds(),
		RefundedCC: refundedCC,
	})
}

func (l *Lobby) Close() { l.buf.Close() }
