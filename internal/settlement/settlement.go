package settlement

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"pairduel/internal/store"
)

// Termination reasons. Which side of the decision table a session lands on is
// decided entirely by its reason and winner.
const (
	ReasonGameCompleted      = "game_completed"
	ReasonOpponentQuit       = "opponent_quit"
	ReasonOpponentEliminated = "opponent_eliminated"
	ReasonNetworkIssue       = "network_issue"
	ReasonServerError        = "server_error"
	ReasonInvalidSession     = "invalid_session"
)

const (
	EffectNone         = "none"
	EffectWinnerCredit = "winner_credit"
	EffectRefund       = "refund"
)

// Share is one participant's claim on a session's money.
type Share struct {
	OwnerID string
	StakeCC int64
}

// Request describes one terminated session to settle.
type Request struct {
	SessionID   string
	WinnerID    string
	Reason      string
	PrizePoolCC int64
	Shares      []Share
}

// Store is the slice of the durable store the settler uses.
type Store interface {
	ApplySettlement(ctx context.Context, rec store.Settlement, effects []store.SettlementEffect) error
	ListUnsettledSessions(ctx context.Context, before time.Time, limit int) ([]store.GameSession, error)
	SessionParticipants(ctx context.Context, sessionID string) ([]store.SessionParticipant, error)
}

// Settler applies the money outcome of terminated sessions exactly once. Two
// guards stack: an in-process done set absorbs same-process retries cheaply,
// and the settlements row inside store.ApplySettlement survives restarts.
type Settler struct {
	store      Store
	feePercent int

	mu   sync.Mutex
	done map[string]struct{}
}

func New(st Store, feePercent int) *Settler {
	return &Settler{
		store:      st,
		feePercent: feePercent,
		done:       map[string]struct{}{},
	}
}

// Payout is the winner's cut of the pool after the platform fee. Integer
// division leaves the odd cents with the house.
func Payout(poolCC int64, feePercent int) int64 {
	return poolCC * int64(100-feePercent) / 100
}

// Settle applies the session's outcome. A session already settled, by this
// process or any earlier one, returns store.ErrAlreadySettled and moves no
// money. Any other failure releases the in-process claim so the caller or the
// sweep can retry.
func (s *Settler) Settle(ctx context.Context, req Request) error {
	s.mu.Lock()
	if _, ok := s.done[req.SessionID]; ok {
		s.mu.Unlock()
		return store.ErrAlreadySettled
	}
	s.done[req.SessionID] = struct{}{}
	s.mu.Unlock()

	rec, effects := s.Decide(req)
	if err := s.store.ApplySettlement(ctx, rec, effects); err != nil {
		if errors.Is(err, store.ErrAlreadySettled) {
			metricSettleDuplicateTotal.Add(1)
			return err
		}
		s.mu.Lock()
		delete(s.done, req.SessionID)
		s.mu.Unlock()
		metricSettleFailedTotal.Add(1)
		return err
	}

	if rec.Effect == EffectNone {
		metricSettleAnomalyTotal.Add(1)
		log.Error().
			Str("session_id", req.SessionID).
			Str("reason", req.Reason).
			Str("winner_id", req.WinnerID).
			Msg("settlement had no applicable effect")
	} else {
		log.Info().
			Str("session_id", req.SessionID).
			Str("effect", rec.Effect).
			Str("reason", req.Reason).
			Str("winner_id", rec.WinnerID).
			Int64("amount_cc", rec.AmountCC).
			Int("refund_count", rec.RefundCount).
			Msg("session settled")
	}
	metricSettleAppliedTotal.Add(1)
	return nil
}

// Decide maps a request onto the settlement record and the credits to apply.
// Pure; the durable write happens in Settle.
func (s *Settler) Decide(req Request) (store.Settlement, []store.SettlementEffect) {
	rec := store.Settlement{SessionID: req.SessionID, Reason: req.Reason}
	switch req.Reason {
	case ReasonNetworkIssue, ReasonServerError, ReasonInvalidSession:
		return refundShares(rec, req.Shares)
	case ReasonGameCompleted, ReasonOpponentQuit, ReasonOpponentEliminated:
		if req.WinnerID == "" {
			if req.Reason == ReasonGameCompleted {
				// Drawn board: nobody won, everybody gets the stake back.
				return refundShares(rec, req.Shares)
			}
			rec.Effect = EffectNone
			return rec, nil
		}
		rec.Effect = EffectWinnerCredit
		rec.WinnerID = req.WinnerID
		rec.AmountCC = Payout(req.PrizePoolCC, s.feePercent)
		return rec, []store.SettlementEffect{{
			OwnerID:   req.WinnerID,
			AmountCC:  rec.AmountCC,
			EntryType: "prize_credit",
		}}
	default:
		rec.Effect = EffectNone
		return rec, nil
	}
}

func refundShares(rec store.Settlement, shares []Share) (store.Settlement, []store.SettlementEffect) {
	rec.Effect = EffectRefund
	effects := make([]store.SettlementEffect, 0, len(shares))
	for _, sh := range shares {
		rec.AmountCC += sh.StakeCC
		effects = append(effects, store.SettlementEffect{
			OwnerID:   sh.OwnerID,
			AmountCC:  sh.StakeCC,
			EntryType: "stake_refund",
		})
	}
	rec.RefundCount = len(shares)
	return rec, effects
}
