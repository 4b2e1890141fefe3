package events

import "testing"

func TestBufferOrderAndReplay(t *testing.T) {
	buf := NewBuffer(10)
	ev1 := buf.Append("a", "s1", map[string]any{"n": 1})
	ev2 := buf.Append("b", "s1", map[string]any{"n": 2})
	ev3 := buf.Append("c", "s1", map[string]any{"n": 3})

	if ev1.EventID != "1" || ev2.EventID != "2" || ev3.EventID != "3" {
		t.Fatalf("unexpected event ids: %s %s %s", ev1.EventID, ev2.EventID, ev3.EventID)
	}

	replay := buf.ReplayAfter("1")
	if len(replay) != 2 {
		t.Fatalf("expected 2 replay events, got %d", len(replay))
	}
	if replay[0].EventID != "2" || replay[1].EventID != "3" {
		t.Fatalf("unexpected replay order: %+v", replay)
	}
}

func TestBufferReplayAfterBadIDReturnsAll(t *testing.T) {
	buf := NewBuffer(10)
	buf.Append("a", "s1", nil)
	buf.Append("b", "s1", nil)

	if got := buf.ReplayAfter("not-a-number"); len(got) != 2 {
		t.Fatalf("expected full replay, got %d events", len(got))
	}
	if got := buf.ReplayAfter(""); len(got) != 2 {
		t.Fatalf("expected full replay for empty id, got %d events", len(got))
	}
}

func TestBufferEvictsOldestBeyondMax(t *testing.T) {
	buf := NewBuffer(3)
	for i := 0; i < 5; i++ {
		buf.Append("e", "s1", i)
	}
	got := buf.ReplayAfter("")
	if len(got) != 3 {
		t.Fatalf("expected 3 buffered events, got %d", len(got))
	}
	if got[0].EventID != "3" || got[2].EventID != "5" {
		t.Fatalf("unexpected window: %+v", got)
	}
}

func TestBufferSubscribeDeliversAndCloseEndsStream(t *testing.T) {
	buf := NewBuffer(10)
	ch := buf.Subscribe()
	buf.Append("a", "s1", nil)

	ev, ok := <-ch
	if !ok || ev.Event != "a" {
		t.Fatalf("expected live event a, got %+v ok=%v", ev, ok)
	}

	buf.Close()
	if _, ok := <-ch; ok {
		t.Fatal("expected channel closed after buffer close")
	}
	if ev := buf.Append("b", "s1", nil); ev.EventID != "" {
		t.Fatalf("expected append after close to be dropped, got %+v", ev)
	}
}

func TestBufferUnsubscribeStopsDelivery(t *testing.T) {
	buf := NewBuffer(10)
	ch := buf.Subscribe()
	buf.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatal("expected channel closed after unsubscribe")
	}
}
