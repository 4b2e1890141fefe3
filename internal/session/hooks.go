package session

import "pairduel/internal/events"

// Meta is the immutable identity of a live session.
type Meta struct {
	SessionID   string
	GameType    string
	StakeCC     int64
	PrizePoolCC int64
	// Synthetic maps each synthetic participant id to its archetype.
	Synthetic map[string]string
}

// LifecycleObserver is notified when sessions start and end. OnSessionStarted
// runs before the session_started event is appended, so a subscriber attached
// during the callback sees the stream from its first event.
type LifecycleObserver interface {
	OnSessionStarted(meta Meta, buf *events.Buffer)
	OnSessionEnded(sessionID string)
}

func (r *Registry) SetLifecycleObserver(obs LifecycleObserver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observer = obs
}

// SetReleaseHook installs the callback that returns synthetic identities to
// the pool when their session terminates.
func (r *Registry) SetReleaseHook(fn func(botIDs []string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.releaseBots = fn
}
