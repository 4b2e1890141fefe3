package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"

	"pairduel/internal/store"
)

const sweepBatchSize = 50

// RegisterSweep schedules the reconciliation job: every interval it looks for
// terminated sessions older than grace with no settlements row and settles
// them from their persisted participant shares. Singleton mode keeps a slow
// sweep from stacking behind itself.
func (s *Settler) RegisterSweep(sched gocron.Scheduler, interval, grace time.Duration) error {
	_, err := sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			s.Sweep(context.Background(), grace)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	return err
}

// Sweep settles every terminated-but-unsettled session older than grace. A
// session that fails stays unsettled and is retried on the next pass; one
// that was settled concurrently is skipped.
func (s *Settler) Sweep(ctx context.Context, grace time.Duration) {
	sessions, err := s.store.ListUnsettledSessions(ctx, time.Now().Add(-grace), sweepBatchSize)
	if err != nil {
		log.Warn().Err(err).Msg("settlement sweep: listing unsettled sessions failed")
		return
	}
	for _, sess := range sessions {
		parts, err := s.store.SessionParticipants(ctx, sess.ID)
		if err != nil {
			log.Warn().Err(err).Str("session_id", sess.ID).Msg("settlement sweep: loading participants failed")
			continue
		}
		shares := make([]Share, 0, len(parts))
		for _, p := range parts {
			shares = append(shares, Share{OwnerID: p.ParticipantID, StakeCC: sess.StakeCC})
		}
		err = s.Settle(ctx, Request{
			SessionID:   sess.ID,
			WinnerID:    sess.WinnerID,
			Reason:      sess.Reason,
			PrizePoolCC: sess.PrizePoolCC,
			Shares:      shares,
		})
		switch {
		case err == nil:
			metricSweepRecoveredTotal.Add(1)
			log.Info().Str("session_id", sess.ID).Str("reason", sess.Reason).Msg("settlement recovered by sweep")
		case errors.Is(err, store.ErrAlreadySettled):
		default:
			log.Warn().Err(err).Str("session_id", sess.ID).Msg("settlement sweep: settle failed")
		}
	}
}
