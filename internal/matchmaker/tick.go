package matchmaker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"pairduel/internal/session"
	"pairduel/internal/store"
)

// Tick runs one admission pass: expire stale entries, then the tiers in
// strict priority, stopping at the first tier that admitted a session. The
// in-flight guard drops a tick that fires while the previous one still runs,
// so two passes never contend for the same entries.
func (s *Service) Tick(ctx context.Context) {
	if !s.inFlight.CompareAndSwap(false, true) {
		metricTicksSkipped.Add(1)
		return
	}
	defer s.inFlight.Store(false)
	metricTicks.Add(1)

	entries, err := s.store.ListQueueEntries(ctx)
	if err != nil {
		log.Error().Err(err).Msg("listing queue entries")
		return
	}
	entries = s.expire(ctx, entries)
	if len(entries) == 0 {
		return
	}

	if n := s.admitHumanGroups(ctx, entries); n > 0 {
		metricHumanSessions.Add(int64(n))
		return
	}
	if n := s.backfill(ctx, entries, s.cfg.HumanWindow, false); n > 0 {
		metricBackfillSessions.Add(int64(n))
		return
	}
	if n := s.backfill(ctx, entries, s.cfg.GuaranteeWindow, true); n > 0 {
		metricGuaranteedSessions.Add(int64(n))
	}
}

// expire refunds and drops entries older than QueueTTL, returning the
// survivors. A concurrent leave already refunded its entry, so a missing row
// is skipped without a second refund.
func (s *Service) expire(ctx context.Context, entries []store.QueueEntry) []store.QueueEntry {
	now := time.Now()
	kept := entries[:0]
	for _, e := range entries {
		waited := now.Sub(e.EnqueuedAt)
		if waited < s.cfg.QueueTTL {
			kept = append(kept, e)
			continue
		}
		gone, err := s.store.DeleteQueueEntry(ctx, e.ParticipantID)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				log.Error().Err(err).Str("participant_id", e.ParticipantID).Msg("expiring queue entry")
			}
			continue
		}
		if _, err := s.wallet.RefundEscrow(ctx, gone.ParticipantID, gone.ID, gone.StakeCC); err != nil {
			log.Error().Err(err).
				Str("participant_id", gone.ParticipantID).
				Str("entry_id", gone.ID).
				Msg("refunding expired queue entry")
		}
		s.lobby.PublishQueueTimeout(gone.ParticipantID, gone.ID, waited, gone.StakeCC)
		metricExpired.Add(1)
		log.Info().
			Str("participant_id", gone.ParticipantID).
			Dur("waited", waited).
			Int64("refunded_cc", gone.StakeCC).
			Msg("queue entry expired")
	}
	return kept
}

// admitHumanGroups is the priority tier: entries grouped by (game type,
// player count, stake), each group drained FIFO while it holds a full table.
// Wait time never matters here; humans match humans whenever enough of them
// want the same game.
func (s *Service) admitHumanGroups(ctx context.Context, entries []store.QueueEntry) int {
	type groupKey struct {
		gameType    string
		playerCount int
		stakeCC     int64
	}
	groups := map[groupKey][]store.QueueEntry{}
	var order []groupKey
	for _, e := range entries {
		k := groupKey{e.GameType, e.PlayerCount, e.StakeCC}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], e)
	}

	sessions := 0
	for _, k := range order {
		g := groups[k]
		for len(g) >= k.playerCount {
			batch := g[:k.playerCount]
			g = g[k.playerCount:]
			if err := s.promote(ctx, batch, nil); err != nil {
				s.logPromoteFailure(err, false)
				break
			}
			sessions++
		}
	}
	return sessions
}

// backfill completes the table of every entry aged past window with synthetic
// opponents. The guaranteed flag only raises the noise level: past the
// guarantee window a pool failure is an invariant violation, not a hiccup.
func (s *Service) backfill(ctx context.Context, entries []store.QueueEntry, window time.Duration, guaranteed bool) int {
	now := time.Now()
	sessions := 0
	for _, e := range entries {
		if now.Sub(e.EnqueuedAt) < window {
			continue
		}

		bots, err := s.acquireOpponents(ctx, e)
		if err != nil {
			evt := log.Warn()
			if guaranteed {
				evt = log.Error()
				metricGuaranteeStalls.Add(1)
			}
			evt.Err(err).
				Str("participant_id", e.ParticipantID).
				Str("game_type", e.GameType).
				Int64("stake_cc", e.StakeCC).
				Msg("acquiring synthetic opponents")
			continue
		}
		if err := s.promote(ctx, []store.QueueEntry{e}, bots); err != nil {
			s.releaseBots(ctx, bots)
			s.logPromoteFailure(err, guaranteed)
			continue
		}
		sessions++
	}
	return sessions
}

// acquireOpponents checks out one synthetic identity per empty seat, skipping
// identities the player met recently. A partial checkout is rolled back.
func (s *Service) acquireOpponents(ctx context.Context, e store.QueueEntry) ([]*store.BotProfile, error) {
	excluding := s.pool.RecentOpponents(ctx, []string{e.ParticipantID})
	needed := e.PlayerCount - 1
	bots := make([]*store.BotProfile, 0, needed)
	for i := 0; i < needed; i++ {
		b, err := s.pool.Acquire(ctx, e.GameType, e.StakeCC, excluding)
		if err != nil {
			s.releaseBots(ctx, bots)
			return nil, err
		}
		bots = append(bots, b)
	}
	return bots, nil
}

// promote turns one full table into a session: synthetic stakes debited
// against the new session id, then one serializable transaction deletes the
// queue rows and inserts session + participants, then the registry takes
// over. Any failure puts the money back where it was; the caller puts the
// identities back.
func (s *Service) promote(ctx context.Context, humans []store.QueueEntry, bots []*store.BotProfile) error {
	lead := humans[0]
	sessionID := store.NewID()

	seats := make([]session.Seat, 0, len(humans)+len(bots))
	entryIDs := make([]string, 0, len(humans))
	for _, h := range humans {
		p, err := s.store.GetPlayer(ctx, h.ParticipantID)
		if err != nil {
			return fmt.Errorf("loading player %s: %w", h.ParticipantID, err)
		}
		seats = append(seats, session.Seat{ParticipantID: p.ID, DisplayName: p.DisplayName})
		entryIDs = append(entryIDs, h.ID)
	}
	for _, b := range bots {
		seats = append(seats, session.Seat{
			ParticipantID: b.ID,
			DisplayName:   b.DisplayName,
			IsSynthetic:   true,
			Archetype:     b.Archetype,
		})
	}
	parts := make([]store.SessionParticipant, 0, len(seats))
	for i, seat := range seats {
		parts = append(parts, store.SessionParticipant{
			SessionID:     sessionID,
			ParticipantID: seat.ParticipantID,
			Seat:          i,
			DisplayName:   seat.DisplayName,
			IsSynthetic:   seat.IsSynthetic,
			Archetype:     seat.Archetype,
			Lifelines:     s.sessCfg.Lifelines,
		})
	}

	var staked []*store.BotProfile
	for _, b := range bots {
		if _, err := s.wallet.StakeSession(ctx, b.ID, sessionID, lead.StakeCC); err != nil {
			s.refundBotStakes(ctx, sessionID, staked, lead.StakeCC)
			return fmt.Errorf("staking synthetic %s: %w", b.ID, err)
		}
		staked = append(staked, b)
	}

	sess := store.GameSession{
		ID:          sessionID,
		GameType:    lead.GameType,
		PlayerCount: len(seats),
		StakeCC:     lead.StakeCC,
		PrizePoolCC: lead.StakeCC * int64(len(seats)),
		Status:      session.StatusWaiting,
	}
	if err := s.store.PromoteQueueEntries(ctx, sess, parts, entryIDs); err != nil {
		s.refundBotStakes(ctx, sessionID, staked, lead.StakeCC)
		return err
	}

	if _, err := s.starter.StartSession(ctx, sess, seats); err != nil {
		// A failed start cancels the session and refunds every share,
		// humans and synthetics alike; only the bench return remains.
		return fmt.Errorf("starting session %s: %w", sessionID, err)
	}

	for _, h := range humans {
		s.lobby.PublishMatched(h.ParticipantID, sessionID, lead.GameType, lead.StakeCC)
	}
	log.Info().
		Str("session_id", sessionID).
		Str("game_type", lead.GameType).
		Int64("stake_cc", lead.StakeCC).
		Int("humans", len(humans)).
		Int("synthetics", len(bots)).
		Msg("session admitted")
	return nil
}

func (s *Service) logPromoteFailure(err error, guaranteed bool) {
	if errors.Is(err, store.ErrPromotionConflict) {
		// A participant left between the list and the transaction. The
		// survivors are still queued and the next tick retries them.
		metricPromotionConflicts.Add(1)
		log.Info().Msg("promotion raced a queue leave, retrying next tick")
		return
	}
	evt := log.Warn()
	if guaranteed {
		evt = log.Error()
	}
	evt.Err(err).Msg("promoting queue entries")
}

func (s *Service) releaseBots(ctx context.Context, bots []*store.BotProfile) {
	for _, b := range bots {
		if err := s.pool.Release(ctx, b.ID); err != nil {
			log.Error().Err(err).Str("bot_id", b.ID).Msg("returning synthetic opponent to bench")
		}
	}
}

func (s *Service) refundBotStakes(ctx context.Context, sessionID string, bots []*store.BotProfile, stakeCC int64) {
	for _, b := range bots {
		if _, err := s.wallet.RefundSessionStake(ctx, b.ID, sessionID, stakeCC); err != nil {
			log.Error().Err(err).
				Str("bot_id", b.ID).
				Str("session_id", sessionID).
				Msg("refunding synthetic stake")
		}
	}
}
