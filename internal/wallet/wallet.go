package wallet

import (
	"context"

	"github.com/google/uuid"

	"pairduel/internal/store"
)

// Service wraps the store's balance operations with the entry types the rest
// of the service settles money under. Every movement writes a ledger entry in
// the same transaction as the balance change.
type Service struct {
	Store *store.Store
}

func New(s *store.Store) *Service {
	return &Service{Store: s}
}

// Grant credits a freshly registered player's starting balance.
func (w *Service) Grant(ctx context.Context, ownerID string, amountCC int64) (int64, error) {
	return w.Store.Credit(ctx, ownerID, amountCC, "signup_grant", "grant", uuid.NewString())
}

// EscrowStake debits a queue stake against the entry that holds it.
func (w *Service) EscrowStake(ctx context.Context, ownerID, entryID string, amountCC int64) (int64, error) {
	return w.Store.Debit(ctx, ownerID, amountCC, "stake_escrow", "queue_entry", entryID)
}

// RefundEscrow returns an escrowed stake after a queue exit, voluntary or
// expired.
func (w *Service) RefundEscrow(ctx context.Context, ownerID, entryID string, amountCC int64) (int64, error) {
	return w.Store.Credit(ctx, ownerID, amountCC, "stake_refund", "queue_entry", entryID)
}

// StakeSession debits a synthetic participant's buy-in against the session it
// is being deployed into.
func (w *Service) StakeSession(ctx context.Context, ownerID, sessionID string, amountCC int64) (int64, error) {
	return w.Store.Debit(ctx, ownerID, amountCC, "session_stake", "session", sessionID)
}

// RefundSessionStake compensates a synthetic buy-in when the promotion that
// required it aborts.
func (w *Service) RefundSessionStake(ctx context.Context, ownerID, sessionID string, amountCC int64) (int64, error) {
	return w.Store.Credit(ctx, ownerID, amountCC, "session_stake_refund", "session", sessionID)
}

// FloatUpTo raises a synthetic identity's balance to the working float before
// deployment.
func (w *Service) FloatUpTo(ctx context.Context, ownerID string, target int64) (int64, error) {
	return w.Store.TopUpTo(ctx, ownerID, target, "bot", ownerID)
}

func (w *Service) Balance(ctx context.Context, ownerID string) (int64, error) {
	return w.Store.GetAccountBalance(ctx, ownerID)
}

func (w *Service) History(ctx context.Context, f store.LedgerFilter, limit, offset int) ([]store.LedgerEntry, error) {
	return w.Store.ListLedgerEntries(ctx, f, limit, offset)
}
