package events

import (
	"strconv"
	"sync"
	"time"
)

// StreamEvent is one entry on an event stream. StreamID names the stream the
// event belongs to: a game session id for session streams, a player id for
// lobby streams.
type StreamEvent struct {
	EventID  string `json:"event_id"`
	Event    string `json:"event"`
	StreamID string `json:"stream_id"`
	ServerTS int64  `json:"server_ts"`
	Data     any    `json:"data"`
}

// Buffer is a bounded in-memory event ring with fan-out to subscribers.
// Events keep a monotonically increasing id so a reconnecting client can
// resume with ReplayAfter.
type Buffer struct {
	mu       sync.Mutex
	nextID   int64
	max      int
	events   []StreamEvent
	watchers map[chan StreamEvent]struct{}
	closed   bool
}

func NewBuffer(max int) *Buffer {
	if max <= 0 {
		max = 500
	}
	return &Buffer{
		max:      max,
		watchers: map[chan StreamEvent]struct{}{},
	}
}

// Append records the event and delivers it to every subscriber. Slow
// subscribers with a full channel miss the event; they can recover via
// ReplayAfter on reconnect.
func (b *Buffer) Append(event, streamID string, data any) StreamEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return StreamEvent{}
	}
	b.nextID++
	ev := StreamEvent{
		EventID:  strconv.FormatInt(b.nextID, 10),
		Event:    event,
		StreamID: streamID,
		ServerTS: time.Now().UnixMilli(),
		Data:     data,
	}
	b.events = append(b.events, ev)
	if len(b.events) > b.max {
		b.events = b.events[len(b.events)-b.max:]
	}
	for ch := range b.watchers {
		select {
		case ch <- ev:
		default:
		}
	}
	return ev
}

// ReplayAfter returns buffered events with an id greater than lastEventID.
// An empty or malformed lastEventID replays everything still buffered.
func (b *Buffer) ReplayAfter(lastEventID string) []StreamEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.events) == 0 {
		return nil
	}
	if lastEventID == "" {
		out := make([]StreamEvent, len(b.events))
		copy(out, b.events)
		return out
	}
	last, err := strconv.ParseInt(lastEventID, 10, 64)
	if err != nil {
		out := make([]StreamEvent, len(b.events))
		copy(out, b.events)
		return out
	}
	out := make([]StreamEvent, 0, len(b.events))
	for _, ev := range b.events {
		id, _ := strconv.ParseInt(ev.EventID, 10, 64)
		if id > last {
			out = append(out, ev)
		}
	}
	return out
}

func (b *Buffer) Subscribe() chan StreamEvent {
	ch := make(chan StreamEvent, 32)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.watchers[ch] = struct{}{}
	return ch
}

func (b *Buffer) Unsubscribe(ch chan StreamEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.watchers[ch]; ok {
		delete(b.watchers, ch)
		close(ch)
	}
}

// Close ends the stream: subscriber channels are closed and further Appends
// are dropped.
func (b *Buffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.watchers {
		close(ch)
		delete(b.watchers, ch)
	}
}
