package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"pairduel/internal/settlement"
	"pairduel/internal/store"
)

func TestTimeoutsDrainLifelinesAndEliminate(t *testing.T) {
	cfg := testSessionConfig()
	cfg.TurnTimeout = 25 * time.Millisecond
	r, settler := newTestRegistry(t, cfg)
	rt := startTestSession(t, r, "p0", "p1")

	// Nobody acts: p0 and p1 alternate charges until p0 runs dry first.
	waitFor(t, 2*time.Second, "elimination settlement", func() bool {
		return len(settler.requests()) == 1
	})
	req := settler.requests()[0]
	if req.Reason != settlement.ReasonOpponentEliminated || req.WinnerID != "p1" {
		t.Fatalf("unexpected settlement request: %+v", req)
	}

	lost := eventsNamed(rt.buffer, EventLifelineLost)
	if len(lost) != 3 {
		t.Fatalf("expected 3 lifeline_lost events, got %d", len(lost))
	}
	eliminated := eventsNamed(rt.buffer, EventParticipantEliminated)
	if len(eliminated) != 1 {
		t.Fatalf("expected 1 participant_eliminated event, got %d", len(eliminated))
	}
	ep := eliminated[0].Data.(ParticipantEliminatedPayload)
	if ep.ParticipantID != "p0" || ep.Voluntary {
		t.Fatalf("unexpected elimination payload: %+v", ep)
	}
	ended := eventsNamed(rt.buffer, EventSessionEnded)
	if len(ended) != 1 {
		t.Fatalf("expected 1 session_ended event, got %d", len(ended))
	}
	if p := ended[0].Data.(SessionEndedPayload); p.Reason != settlement.ReasonOpponentEliminated || p.WinnerID != "p1" {
		t.Fatalf("unexpected session_ended payload: %+v", p)
	}

	waitFor(t, time.Second, "runtime eviction", func() bool {
		return r.Live() == 0
	})
	if r.alarms.Pending() != 0 {
		t.Fatalf("eliminated session left %d alarms armed", r.alarms.Pending())
	}
}

func TestQuitHandsVictoryToLastStanding(t *testing.T) {
	cfg := testSessionConfig()
	cfg.TurnTimeout = time.Second
	r, settler := newTestRegistry(t, cfg)
	rt := startTestSession(t, r, "p0", "p1")

	if err := r.Quit(context.Background(), "sess-1", "p1"); err != nil {
		t.Fatalf("Quit: %v", err)
	}

	reqs := settler.requests()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 settlement request, got %d", len(reqs))
	}
	if reqs[0].Reason != settlement.ReasonOpponentQuit || reqs[0].WinnerID != "p0" {
		t.Fatalf("unexpected settlement request: %+v", reqs[0])
	}
	eliminated := eventsNamed(rt.buffer, EventParticipantEliminated)
	if len(eliminated) != 1 {
		t.Fatalf("expected 1 participant_eliminated event, got %d", len(eliminated))
	}
	if p := eliminated[0].Data.(ParticipantEliminatedPayload); p.ParticipantID != "p1" || !p.Voluntary {
		t.Fatalf("quit should mark the elimination voluntary: %+v", p)
	}
	if r.Live() != 0 {
		t.Fatalf("quit-terminated session still live")
	}
	if err := r.Quit(context.Background(), "sess-1", "p0"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("quit after finish: got %v", err)
	}
}

func TestQuitByTurnHolderPassesTurn(t *testing.T) {
	cfg := testSessionConfig()
	cfg.TurnTimeout = time.Second
	r, settler := newTestRegistry(t, cfg)
	rt := startTestSession(t, r, "p0", "p1", "p2")

	if err := r.Quit(context.Background(), "sess-1", "p0"); err != nil {
		t.Fatalf("Quit: %v", err)
	}
	if got := currentTurnID(rt); got != "p1" {
		t.Fatalf("turn should pass to the next seat, current is %q", got)
	}
	if len(settler.requests()) != 0 {
		t.Fatalf("session with 2 seats left should keep playing")
	}
	turns := eventsNamed(rt.buffer, EventTurnChanged)
	if len(turns) == 0 {
		t.Fatalf("expected a turn_changed event after the quit")
	}
	if p := turns[len(turns)-1].Data.(TurnChangedPayload); p.ParticipantID != "p1" {
		t.Fatalf("unexpected turn_changed payload: %+v", p)
	}

	if err := r.Quit(context.Background(), "sess-1", "p1"); err != nil {
		t.Fatalf("second Quit: %v", err)
	}
	reqs := settler.requests()
	if len(reqs) != 1 || reqs[0].WinnerID != "p2" || reqs[0].Reason != settlement.ReasonOpponentQuit {
		t.Fatalf("expected p2 to win by forfeit, got %+v", reqs)
	}
}

func TestDisconnectGraceExpiryCancelsSession(t *testing.T) {
	cfg := testSessionConfig()
	cfg.TurnTimeout = time.Second
	cfg.ReconnectGrace = 30 * time.Millisecond
	r, settler := newTestRegistry(t, cfg)
	rt := startTestSession(t, r, "p0", "p1")

	r.StreamOpened("sess-1", "p0")
	r.StreamClosed("sess-1", "p0")

	waitFor(t, time.Second, "grace expiry settlement", func() bool {
		return len(settler.requests()) == 1
	})
	req := settler.requests()[0]
	if req.Reason != settlement.ReasonNetworkIssue || req.WinnerID != "" {
		t.Fatalf("unexpected settlement request: %+v", req)
	}
	if len(req.Shares) != 2 {
		t.Fatalf("expected both stakes in the refund, got %d shares", len(req.Shares))
	}
	ended := eventsNamed(rt.buffer, EventSessionEnded)
	if len(ended) != 1 {
		t.Fatalf("expected 1 session_ended event, got %d", len(ended))
	}
	if p := ended[0].Data.(SessionEndedPayload); p.Status != StatusCancelled || p.Reason != settlement.ReasonNetworkIssue {
		t.Fatalf("unexpected session_ended payload: %+v", p)
	}
}

func TestReconnectWithinGraceKeepsSessionAlive(t *testing.T) {
	cfg := testSessionConfig()
	cfg.TurnTimeout = time.Second
	cfg.ReconnectGrace = 30 * time.Millisecond
	r, settler := newTestRegistry(t, cfg)
	startTestSession(t, r, "p0", "p1")

	r.StreamOpened("sess-1", "p0")
	r.StreamClosed("sess-1", "p0")
	r.StreamOpened("sess-1", "p0")

	time.Sleep(90 * time.Millisecond)
	if r.Live() != 1 {
		t.Fatalf("session terminated despite reconnect inside grace")
	}
	if len(settler.requests()) != 0 {
		t.Fatalf("unexpected settlement after reconnect")
	}
}

func TestSyntheticSeatsNeverTriggerDisconnectGrace(t *testing.T) {
	cfg := testSessionConfig()
	cfg.TurnTimeout = time.Second
	cfg.ReconnectGrace = 20 * time.Millisecond
	r, settler := newTestRegistry(t, cfg)
	_, err := r.StartSession(context.Background(), store.GameSession{
		ID: "sess-1", GameType: "memory", StakeCC: 1000, PrizePoolCC: 2000, Status: StatusWaiting,
	}, []Seat{
		{ParticipantID: "p0", DisplayName: "human"},
		{ParticipantID: "b0", DisplayName: "bot", IsSynthetic: true, Archetype: "shark"},
	})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	r.StreamOpened("sess-1", "p0")

	r.StreamOpened("sess-1", "b0")
	r.StreamClosed("sess-1", "b0")

	time.Sleep(60 * time.Millisecond)
	if r.Live() != 1 {
		t.Fatalf("bot stream churn terminated the session")
	}
	if len(settler.requests()) != 0 {
		t.Fatalf("unexpected settlement: %+v", settler.requests())
	}
}

func TestCancelSessionRefundsWithServerError(t *testing.T) {
	cfg := testSessionConfig()
	cfg.TurnTimeout = time.Second
	r, settler := newTestRegistry(t, cfg)
	startTestSession(t, r, "p0", "p1")

	if err := r.CancelSession(context.Background(), "sess-1", ""); err != nil {
		t.Fatalf("CancelSession: %v", err)
	}
	reqs := settler.requests()
	if len(reqs) != 1 || reqs[0].Reason != settlement.ReasonServerError {
		t.Fatalf("unexpected settlement: %+v", reqs)
	}
	if r.Live() != 0 {
		t.Fatalf("cancelled session still live")
	}
	if err := r.CancelSession(context.Background(), "sess-1", ""); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("second cancel: got %v", err)
	}
}

func TestCancelSessionKeepsExplicitReason(t *testing.T) {
	cfg := testSessionConfig()
	cfg.TurnTimeout = time.Second
	r, settler := newTestRegistry(t, cfg)
	rt := startTestSession(t, r, "p0", "p1")

	if err := r.CancelSession(context.Background(), "sess-1", settlement.ReasonInvalidSession); err != nil {
		t.Fatalf("CancelSession: %v", err)
	}
	if reqs := settler.requests(); reqs[0].Reason != settlement.ReasonInvalidSession {
		t.Fatalf("explicit reason dropped: %+v", reqs[0])
	}
	ended := eventsNamed(rt.buffer, EventSessionEnded)
	if p := ended[0].Data.(SessionEndedPayload); p.Status != StatusCancelled {
		t.Fatalf("unexpected session_ended payload: %+v", p)
	}
}
