package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"pairduel/internal/game"
	"pairduel/internal/settlement"
	"pairduel/internal/store"
)

type SelectRequest struct {
	SessionID     string
	ParticipantID string
	RequestID     string
	Position      int
}

type SelectResponse struct {
	Accepted  bool   `json:"accepted"`
	RequestID string `json:"request_id"`
	Position  int    `json:"position"`
	Symbol    string `json:"symbol,omitempty"`
	Ordinal   int    `json:"ordinal,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// SelectCard flips one card for the caller. Idempotent by (sessionID,
// requestID): a retry replays the stored response without touching the board.
// The first flip of a turn restarts the turn alarm; the second freezes the
// turn and schedules the reveal evaluation.
func (r *Registry) SelectCard(ctx context.Context, req SelectRequest) (*SelectResponse, error) {
	if len(req.RequestID) < 1 || len(req.RequestID) > 64 {
		return nil, ErrInvalidRequestID
	}
	prev, err := r.replayResponse(ctx, req)
	if err != nil {
		return nil, err
	}
	if prev != nil {
		return prev, nil
	}

	rt := r.get(req.SessionID)
	if rt == nil {
		return nil, ErrSessionNotFound
	}

	rt.mu.Lock()
	if rt.status != StatusPlaying {
		rt.mu.Unlock()
		return r.rejectSelection(ctx, req, ErrSessionNotActive)
	}
	if err := game.ValidateSelection(rt.engine.State, req.ParticipantID, req.Position); err != nil {
		rt.mu.Unlock()
		return r.rejectSelection(ctx, req, err)
	}
	sel, err := rt.engine.Select(req.ParticipantID, req.Position)
	if err != nil {
		rt.mu.Unlock()
		return r.rejectSelection(ctx, req, err)
	}

	rt.buffer.Append(EventCardRevealed, req.SessionID, CardRevealedPayload{
		ParticipantID: req.ParticipantID,
		Position:      sel.Position,
		Symbol:        sel.Symbol,
		Ordinal:       sel.Ordinal,
	})
	switch sel.Ordinal {
	case 1:
		r.armTurnLocked(rt)
	case 2:
		// A frozen turn has no deadline; the reveal alarm takes over.
		rt.turnEpoch++
		rt.turnDeadline = time.Time{}
		r.alarms.Cancel(alarmKey{sessionID: req.SessionID, kind: alarmTurn})
		rt.revealEpoch++
		epoch := rt.revealEpoch
		sessionID := req.SessionID
		r.alarms.Arm(alarmKey{sessionID: sessionID, kind: alarmReveal}, r.cfg.RevealDelay, func() {
			r.onReveal(sessionID, epoch)
		})
	}
	rt.mu.Unlock()

	res := &SelectResponse{
		Accepted:  true,
		RequestID: req.RequestID,
		Position:  sel.Position,
		Symbol:    sel.Symbol,
		Ordinal:   sel.Ordinal,
	}
	r.saveResponse(ctx, req, res)
	metricSelectionsAccepted.Add(1)
	return res, nil
}

func (r *Registry) rejectSelection(ctx context.Context, req SelectRequest, cause error) (*SelectResponse, error) {
	res := &SelectResponse{
		Accepted:  false,
		RequestID: req.RequestID,
		Position:  req.Position,
		Reason:    cause.Error(),
	}
	r.saveResponse(ctx, req, res)
	metricSelectionsRejected.Add(1)
	return res, cause
}

// onReveal evaluates a completed two-card selection once the reveal window
// has elapsed.
func (r *Registry) onReveal(sessionID string, epoch int64) {
	rt := r.get(sessionID)
	if rt == nil {
		return
	}
	rt.mu.Lock()
	if rt.status != StatusPlaying || rt.revealEpoch != epoch {
		rt.mu.Unlock()
		return
	}
	out, ok := rt.engine.ResolveReveal()
	if !ok {
		rt.mu.Unlock()
		return
	}
	if out.Matched {
		rt.buffer.Append(EventCardsMatched, sessionID, CardsMatchedPayload{
			ParticipantID: out.ParticipantID,
			Positions:     out.Positions,
			Symbol:        out.Symbol,
			NewScore:      out.NewScore,
			PairsLeft:     out.PairsLeft,
		})
		metricPairsMatched.Add(1)
		if out.Completed {
			winnerID, draw := rt.engine.Winner()
			var plan *finishPlan
			if rt.engine.State.ActiveCount() < 2 {
				plan = r.finishLocked(rt, StatusCancelled, settlement.ReasonInvalidSession, "", false)
			} else {
				plan = r.finishLocked(rt, StatusFinished, settlement.ReasonGameCompleted, winnerID, draw)
			}
			rt.mu.Unlock()
			r.finalize(context.Background(), plan)
			return
		}
	} else {
		rt.buffer.Append(EventCardsMismatched, sessionID, CardsMismatchedPayload{
			ParticipantID: out.ParticipantID,
			Positions:     out.Positions,
		})
	}
	deadline := r.armTurnLocked(rt)
	rt.buffer.Append(EventTurnChanged, sessionID, TurnChangedPayload{
		ParticipantID: out.NextTurnID,
		TurnDeadline:  deadline.UnixMilli(),
	})
	rt.mu.Unlock()
}

func (r *Registry) replayResponse(ctx context.Context, req SelectRequest) (*SelectResponse, error) {
	if r.Store == nil {
		return nil, nil
	}
	rec, err := r.Store.GetActionRecord(ctx, req.SessionID, req.RequestID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var res SelectResponse
	if err := json.Unmarshal(rec.Response, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *Registry) saveResponse(ctx context.Context, req SelectRequest, res *SelectResponse) {
	if r.Store == nil {
		return
	}
	body, err := json.Marshal(res)
	if err != nil {
		return
	}
	rec := store.ActionRecord{
		SessionID:     req.SessionID,
		RequestID:     req.RequestID,
		ParticipantID: req.ParticipantID,
		Response:      body,
	}
	if _, err := r.Store.InsertActionRecord(ctx, rec); err != nil {
		log.Warn().
			Err(err).
			Str("session_id", req.SessionID).
			Str("request_id", req.RequestID).
			Msg("saving action record failed")
	}
}
