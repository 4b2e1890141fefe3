package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"pairduel/internal/events"
)

type parsedSSE struct {
	ID    string
	Event string
	Data  string
}

func readEventWithTimeout(t *testing.T, rd *bufio.Reader, timeout time.Duration) parsedSSE {
	t.Helper()
	ch := make(chan parsedSSE, 1)
	errCh := make(chan error, 1)
	go func() {
		ev, err := readEvent(rd)
		if err != nil {
			errCh <- err
			return
		}
		ch <- ev
	}()
	select {
	case ev := <-ch:
		return ev
	case err := <-errCh:
		t.Fatalf("read event: %v", err)
	case <-time.After(timeout):
		t.Fatal("timeout waiting for sse event")
	}
	return parsedSSE{}
}

func readEvent(rd *bufio.Reader) (parsedSSE, error) {
	ev := parsedSSE{}
	for {
		line, err := rd.ReadString('\n')
		if err != nil {
			return ev, err
		}
		line = strings.TrimRight(line, "\n")
		if line == "" {
			return ev, nil
		}
		if strings.HasPrefix(line, "id: ") {
			ev.ID = strings.TrimPrefix(line, "id: ")
		}
		if strings.HasPrefix(line, "event: ") {
			ev.Event = strings.TrimPrefix(line, "event: ")
		}
		if strings.HasPrefix(line, "data: ") {
			ev.Data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func openStream(t *testing.T, ctx context.Context, url, apiKey, lastEventID string) (*http.Response, *bufio.Reader) {
	t.Helper()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	req.Header.Set("Authorization", "Bearer "+apiKey)
	if lastEventID != "" {
		req.Header.Set("Last-Event-ID", lastEventID)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open sse: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp, bufio.NewReader(resp.Body)
}

func payload(t *testing.T, ev parsedSSE) map[string]any {
	t.Helper()
	var envelope struct {
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal([]byte(ev.Data), &envelope); err != nil {
		t.Fatalf("decode event data %q: %v", ev.Data, err)
	}
	return envelope.Data
}

func TestSessionEventsSSEReplayAndEnd(t *testing.T) {
	ts := setupStack(t)
	router := ts.router()
	sessionID, turnKey, otherKey := matchTwo(t, ts, router)

	srv := httptest.NewServer(router)
	defer srv.Close()
	streamURL := srv.URL + "/api/sessions/" + sessionID + "/events"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	resp, rd := openStream(t, ctx, streamURL, turnKey, "")
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected text/event-stream, got %q", ct)
	}

	ev1 := readEventWithTimeout(t, rd, time.Second)
	if ev1.Event != "session_started" {
		t.Fatalf("expected session_started first, got %q", ev1.Event)
	}
	started := payload(t, ev1)
	if started["session_id"] != sessionID || started["first_turn_id"] == "" {
		t.Fatalf("unexpected session_started payload: %v", started)
	}

	code, body := doJSON(t, router, http.MethodPost, "/api/sessions/"+sessionID+"/cards", turnKey,
		`{"request_id":"req-sse","position":2}`)
	if code != http.StatusOK {
		t.Fatalf("select: expected 200, got %d %v", code, body)
	}
	ev2 := readEventWithTimeout(t, rd, time.Second)
	if ev2.Event != "card_revealed" {
		t.Fatalf("expected card_revealed, got %q", ev2.Event)
	}
	revealed := payload(t, ev2)
	if revealed["position"] != float64(2) {
		t.Fatalf("unexpected card_revealed payload: %v", revealed)
	}
	id1, _ := strconv.Atoi(ev1.ID)
	id2, _ := strconv.Atoi(ev2.ID)
	if !(id2 > id1) {
		t.Fatalf("event ids not increasing: %s then %s", ev1.ID, ev2.ID)
	}

	// A reconnect with Last-Event-ID resumes after the acknowledged event.
	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()
	_, rd2 := openStream(t, ctx2, streamURL, turnKey, ev1.ID)
	evResumed := readEventWithTimeout(t, rd2, time.Second)
	if evResumed.ID != ev2.ID || evResumed.Event != "card_revealed" {
		t.Fatalf("expected replay to resume at %s, got %s %s", ev2.ID, evResumed.ID, evResumed.Event)
	}

	// Ending the session pushes session_ended and closes the stream.
	code, body = doJSON(t, router, http.MethodPost, "/api/sessions/"+sessionID+"/quit", otherKey, "")
	if code != http.StatusOK {
		t.Fatalf("quit: expected 200, got %d %v", code, body)
	}
	var sawEnded bool
	for i := 0; i < 10; i++ {
		ev := readEventWithTimeout(t, rd, time.Second)
		if ev.Event == "session_ended" {
			ended := payload(t, ev)
			if ended["reason"] != "opponent_quit" || ended["winner_id"] == "" {
				t.Fatalf("unexpected session_ended payload: %v", ended)
			}
			sawEnded = true
			break
		}
	}
	if !sawEnded {
		t.Fatal("expected session_ended event")
	}
}

func TestSessionEventsSSEHeartbeat(t *testing.T) {
	prev := ssePingInterval
	ssePingInterval = 20 * time.Millisecond
	defer func() { ssePingInterval = prev }()

	ts := setupStack(t)
	router := ts.router()
	sessionID, turnKey, otherKey := matchTwo(t, ts, router)

	srv := httptest.NewServer(router)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, rd := openStream(t, ctx, srv.URL+"/api/sessions/"+sessionID+"/events", turnKey, "")

	var sawPing bool
	for i := 0; i < 10; i++ {
		ev := readEventWithTimeout(t, rd, time.Second)
		if ev.Event == "ping" {
			if ev.ID != "" {
				t.Fatalf("pings must not carry an event id, got %q", ev.ID)
			}
			sawPing = true
			break
		}
	}
	if !sawPing {
		t.Fatal("expected ping event")
	}

	doJSON(t, router, http.MethodPost, "/api/sessions/"+sessionID+"/quit", otherKey, "")
}

func TestSessionEventsSSERejectsStrangers(t *testing.T) {
	ts := setupStack(t)
	router := ts.router()
	sessionID, _, _ := matchTwo(t, ts, router)
	createPlayer(t, ts.store, "Eve", "key-eve", 1000)

	code, body := doJSON(t, router, http.MethodGet, "/api/sessions/"+sessionID+"/events", "key-eve", "")
	if code != http.StatusNotFound || body["error"] != "session_not_found" {
		t.Fatalf("expected 404 for a stranger, got %d %v", code, body)
	}
}

func TestLobbyEventsSSEMatchedReplay(t *testing.T) {
	prev := ssePingInterval
	ssePingInterval = 20 * time.Millisecond
	defer func() { ssePingInterval = prev }()

	ts := setupStack(t)
	router := ts.router()
	sessionID, turnKey, _ := matchTwo(t, ts, router)

	srv := httptest.NewServer(router)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, rd := openStream(t, ctx, srv.URL+"/api/lobby/events", turnKey, "")

	ev := readEventWithTimeout(t, rd, time.Second)
	if ev.Event != "session_matched" {
		t.Fatalf("expected session_matched replay, got %q", ev.Event)
	}
	matched := payload(t, ev)
	if matched["session_id"] != sessionID || matched["stake_cc"] != float64(1000) {
		t.Fatalf("unexpected session_matched payload: %v", matched)
	}
	if matched["stream_url"] != "/api/sessions/"+sessionID+"/events" {
		t.Fatalf("unexpected stream url: %v", matched["stream_url"])
	}

	// The other player's matched event belongs to their stream, not ours.
	// With pings this fast, anything else buffered would arrive first.
	next := readEventWithTimeout(t, rd, time.Second)
	if next.Event != "ping" {
		t.Fatalf("expected only our own lobby events, got %q", next.Event)
	}
}

func TestWriteSSEFormat(t *testing.T) {
	w := httptest.NewRecorder()
	err := events.WriteSSE(w, events.StreamEvent{
		EventID:  "7",
		Event:    "session_matched",
		StreamID: "player-1",
		ServerTS: 1700000000000,
		Data:     map[string]any{"session_id": "s1"},
	})
	if err != nil {
		t.Fatalf("write sse: %v", err)
	}
	out := w.Body.String()
	if !strings.HasPrefix(out, "id: 7\nevent: session_matched\ndata: {") {
		t.Fatalf("unexpected frame: %q", out)
	}
	if !strings.HasSuffix(out, "\n\n") {
		t.Fatalf("frame must end with a blank line: %q", out)
	}

	w = httptest.NewRecorder()
	if err := events.WriteSSE(w, pingEvent("player-1")); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	if strings.Contains(w.Body.String(), "id: ") {
		t.Fatalf("ping frames must not carry an id: %q", w.Body.String())
	}
}
