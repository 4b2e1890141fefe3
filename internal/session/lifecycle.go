package session

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"pairduel/internal/settlement"
	"pairduel/internal/store"
)

// onTurnTimeout fires when the current participant let the turn window lapse:
// any half-finished selection is reverted, one lifeline is charged, and the
// turn rotates. At zero lifelines the seat is eliminated.
func (r *Registry) onTurnTimeout(sessionID string, epoch int64) {
	rt := r.get(sessionID)
	if rt == nil {
		return
	}
	rt.mu.Lock()
	if rt.status != StatusPlaying || rt.turnEpoch != epoch {
		rt.mu.Unlock()
		return
	}
	out, ok := rt.engine.ApplyTimeout()
	if !ok {
		rt.mu.Unlock()
		return
	}
	metricTurnTimeouts.Add(1)
	rt.buffer.Append(EventLifelineLost, sessionID, LifelineLostPayload{
		ParticipantID:     out.ParticipantID,
		Remaining:         out.Lifelines,
		RevertedPositions: out.Reverted,
	})
	if out.Eliminated {
		rt.buffer.Append(EventParticipantEliminated, sessionID, ParticipantEliminatedPayload{
			ParticipantID: out.ParticipantID,
		})
		if out.LastStandingID != "" {
			plan := r.finishLocked(rt, StatusFinished, settlement.ReasonOpponentEliminated, out.LastStandingID, false)
			rt.mu.Unlock()
			r.finalize(context.Background(), plan)
			return
		}
	}
	deadline := r.armTurnLocked(rt)
	rt.buffer.Append(EventTurnChanged, sessionID, TurnChangedPayload{
		ParticipantID: out.NextTurnID,
		TurnDeadline:  deadline.UnixMilli(),
	})
	rt.mu.Unlock()
}

// Quit removes the participant voluntarily. The last seat left standing wins
// the session under opponent_quit.
func (r *Registry) Quit(ctx context.Context, sessionID, participantID string) error {
	rt := r.get(sessionID)
	if rt == nil {
		return ErrSessionNotFound
	}
	rt.mu.Lock()
	if rt.status != StatusPlaying {
		rt.mu.Unlock()
		return ErrSessionNotActive
	}
	out, err := rt.engine.RemoveParticipant(participantID)
	if err != nil {
		rt.mu.Unlock()
		return err
	}
	metricQuits.Add(1)
	rt.buffer.Append(EventParticipantEliminated, sessionID, ParticipantEliminatedPayload{
		ParticipantID: participantID,
		Voluntary:     true,
	})
	if out.LastStandingID != "" {
		plan := r.finishLocked(rt, StatusFinished, settlement.ReasonOpponentQuit, out.LastStandingID, false)
		rt.mu.Unlock()
		r.finalize(ctx, plan)
		return nil
	}
	if out.TurnPassed {
		// The quitter held the turn; whatever was pending on it is void.
		rt.revealEpoch++
		r.alarms.Cancel(alarmKey{sessionID: sessionID, kind: alarmReveal})
		deadline := r.armTurnLocked(rt)
		rt.buffer.Append(EventTurnChanged, sessionID, TurnChangedPayload{
			ParticipantID: out.NextTurnID,
			TurnDeadline:  deadline.UnixMilli(),
		})
	}
	rt.mu.Unlock()
	return nil
}

// StreamOpened records a live event stream for the participant and cancels
// any reconnect grace pending on the seat.
func (r *Registry) StreamOpened(sessionID, participantID string) {
	rt := r.get(sessionID)
	if rt == nil {
		return
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.streams[participantID]++
	rt.graceEpochs[participantID]++
	r.alarms.Cancel(alarmKey{sessionID: sessionID, kind: alarmReconnect, participantID: participantID})
}

// StreamClosed drops one stream. A human seat with no streams left is
// presumed disconnected and gets a reconnect grace alarm; expiry terminates
// the session as a network loss with every stake refunded.
func (r *Registry) StreamClosed(sessionID, participantID string) {
	rt := r.get(sessionID)
	if rt == nil {
		return
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.streams[participantID] > 0 {
		rt.streams[participantID]--
	}
	if rt.streams[participantID] > 0 || rt.status != StatusPlaying {
		return
	}
	if _, synthetic := rt.meta.Synthetic[participantID]; synthetic {
		return
	}
	rt.graceEpochs[participantID]++
	epoch := rt.graceEpochs[participantID]
	metricDisconnects.Add(1)
	r.alarms.Arm(alarmKey{sessionID: sessionID, kind: alarmReconnect, participantID: participantID}, r.cfg.ReconnectGrace, func() {
		r.onReconnectExpired(sessionID, participantID, epoch)
	})
}

func (r *Registry) onReconnectExpired(sessionID, participantID string, epoch int64) {
	rt := r.get(sessionID)
	if rt == nil {
		return
	}
	rt.mu.Lock()
	if rt.status != StatusPlaying || rt.graceEpochs[participantID] != epoch || rt.streams[participantID] > 0 {
		rt.mu.Unlock()
		return
	}
	log.Warn().
		Str("session_id", sessionID).
		Str("participant_id", participantID).
		Dur("grace", r.cfg.ReconnectGrace).
		Msg("reconnect grace expired")
	plan := r.finishLocked(rt, StatusCancelled, settlement.ReasonNetworkIssue, "", false)
	rt.mu.Unlock()
	r.finalize(context.Background(), plan)
}

// CancelSession force-terminates a live session; every stake is refunded.
func (r *Registry) CancelSession(ctx context.Context, sessionID, reason string) error {
	rt := r.get(sessionID)
	if rt == nil {
		return ErrSessionNotFound
	}
	if reason == "" {
		reason = settlement.ReasonServerError
	}
	rt.mu.Lock()
	plan := r.finishLocked(rt, StatusCancelled, reason, "", false)
	rt.mu.Unlock()
	if plan == nil {
		return ErrSessionNotActive
	}
	r.finalize(ctx, plan)
	return nil
}

type finishPlan struct {
	meta     Meta
	status   string
	reason   string
	winnerID string
	draw     bool
	scores   map[string]int
	shares   []settlement.Share
	botIDs   []string
}

// finishLocked terminates the session in memory: terminal status, alarms
// dropped, session_ended appended, stream closed. Returns nil when the
// session was already terminated. Callers hold rt.mu and must run finalize
// with the plan after unlocking.
func (r *Registry) finishLocked(rt *Runtime, status, reason, winnerID string, draw bool) *finishPlan {
	if rt.status == StatusFinished || rt.status == StatusCancelled {
		return nil
	}
	rt.status = status
	rt.reason = reason
	rt.turnDeadline = time.Time{}
	rt.turnEpoch++
	rt.revealEpoch++
	r.alarms.CancelSession(rt.meta.SessionID)

	plan := &finishPlan{
		meta:     rt.meta,
		status:   status,
		reason:   reason,
		winnerID: winnerID,
		draw:     draw,
		scores:   rt.engine.Scores(),
	}
	participants := rt.engine.State.Participants
	leaderboard := make([]LeaderboardEntry, 0, len(participants))
	for _, p := range participants {
		leaderboard = append(leaderboard, LeaderboardEntry{
			ParticipantID: p.ID,
			DisplayName:   p.DisplayName,
			Score:         p.Score,
			IsSynthetic:   p.IsSynthetic,
		})
		plan.shares = append(plan.shares, settlement.Share{OwnerID: p.ID, StakeCC: rt.meta.StakeCC})
		if p.IsSynthetic {
			plan.botIDs = append(plan.botIDs, p.ID)
		}
	}
	sort.SliceStable(leaderboard, func(i, j int) bool {
		return leaderboard[i].Score > leaderboard[j].Score
	})
	rt.buffer.Append(EventSessionEnded, rt.meta.SessionID, SessionEndedPayload{
		SessionID:   rt.meta.SessionID,
		Status:      status,
		Reason:      reason,
		WinnerID:    winnerID,
		Draw:        draw,
		Leaderboard: leaderboard,
	})
	rt.buffer.Close()
	return plan
}

// finalize persists and settles a terminated session, releases its synthetic
// identities and evicts the runtime. Runs without rt.mu held; the durable row
// outlives the eviction.
func (r *Registry) finalize(ctx context.Context, plan *finishPlan) {
	if plan == nil {
		return
	}
	if r.Store != nil {
		if err := r.Store.FinishGameSession(ctx, plan.meta.SessionID, plan.status, plan.reason, plan.winnerID, plan.scores); err != nil {
			log.Error().Err(err).Str("session_id", plan.meta.SessionID).Msg("persisting session end failed")
		}
	}
	if r.settler != nil {
		err := r.settler.Settle(ctx, settlement.Request{
			SessionID:   plan.meta.SessionID,
			WinnerID:    plan.winnerID,
			Reason:      plan.reason,
			PrizePoolCC: plan.meta.PrizePoolCC,
			Shares:      plan.shares,
		})
		if err != nil && !errors.Is(err, store.ErrAlreadySettled) {
			log.Error().Err(err).Str("session_id", plan.meta.SessionID).Msg("settlement failed, sweep will retry")
		}
	}

	r.mu.Lock()
	releaseBots := r.releaseBots
	observer := r.observer
	delete(r.sessions, plan.meta.SessionID)
	for _, sh := range plan.shares {
		if held := r.byPlayer[sh.OwnerID]; held != nil && held.meta.SessionID == plan.meta.SessionID {
			delete(r.byPlayer, sh.OwnerID)
		}
	}
	r.mu.Unlock()

	if releaseBots != nil && len(plan.botIDs) > 0 {
		releaseBots(plan.botIDs)
	}
	if observer != nil {
		observer.OnSessionEnded(plan.meta.SessionID)
	}

	switch plan.status {
	case StatusFinished:
		metricSessionsFinished.Add(1)
	case StatusCancelled:
		metricSessionsCancelled.Add(1)
	}
	log.Info().
		Str("session_id", plan.meta.SessionID).
		Str("status", plan.status).
		Str("reason", plan.reason).
		Str("winner_id", plan.winnerID).
		Bool("draw", plan.draw).
		Msg("session ended")
}
