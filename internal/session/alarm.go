package session

import (
	"sync"
	"time"
)

type alarmKind int

const (
	alarmTurn alarmKind = iota
	alarmReveal
	alarmReconnect
)

// alarmKey identifies one pending timer. participantID is empty for the
// session-wide kinds (turn, reveal); reconnect alarms are per seat.
type alarmKey struct {
	sessionID     string
	kind          alarmKind
	participantID string
}

// AlarmSet holds every pending timer for live sessions. Arming a key that
// already has a timer replaces it. Stop cannot win against a callback already
// in flight, so callbacks must re-check state under the runtime lock; the
// epoch counters on Runtime exist for that.
type AlarmSet struct {
	mu     sync.Mutex
	timers map[alarmKey]*time.Timer
}

func NewAlarmSet() *AlarmSet {
	return &AlarmSet{timers: map[alarmKey]*time.Timer{}}
}

func (a *AlarmSet) Arm(key alarmKey, d time.Duration, fn func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if t, ok := a.timers[key]; ok {
		t.Stop()
	}
	a.timers[key] = time.AfterFunc(d, func() {
		a.mu.Lock()
		delete(a.timers, key)
		a.mu.Unlock()
		fn()
	})
}

func (a *AlarmSet) Cancel(key alarmKey) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if t, ok := a.timers[key]; ok {
		t.Stop()
		delete(a.timers, key)
	}
}

// CancelSession drops every timer the session still holds.
func (a *AlarmSet) CancelSession(sessionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for key, t := range a.timers {
		if key.sessionID == sessionID {
			t.Stop()
			delete(a.timers, key)
		}
	}
}

// Pending reports how many timers are armed, across all sessions.
func (a *AlarmSet) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.timers)
}
