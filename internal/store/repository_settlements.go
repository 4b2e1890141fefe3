package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// ApplySettlement records the settlement and applies every balance effect in
// one transaction. The settlements primary key is the durable exactly-once
// guard: if a record for the session already exists nothing is applied and
// ErrAlreadySettled is returned, so a retried or concurrent settlement can
// never pay twice.
func (s *Store) ApplySettlement(ctx context.Context, rec Settlement, effects []SettlementEffect) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO settlements (session_id, effect, winner_id, amount_cc, refund_count, reason)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (session_id) DO NOTHING
	`, rec.SessionID, rec.Effect, rec.WinnerID, rec.AmountCC, rec.RefundCount, rec.Reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadySettled
	}

	for _, ef := range effects {
		if ef.AmountCC < 0 {
			return errors.New("settlement effects must be credits")
		}
		tag, err := tx.Exec(ctx, `
			UPDATE accounts SET balance_cc = balance_cc + $1, updated_at = now() WHERE owner_id = $2
		`, ef.AmountCC, ef.OwnerID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		if err := recordLedgerEntry(ctx, tx, ef.OwnerID, ef.EntryType, ef.AmountCC, "session", rec.SessionID); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) GetSettlement(ctx context.Context, sessionID string) (*Settlement, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT session_id, effect, winner_id, amount_cc, refund_count, reason, created_at
		FROM settlements WHERE session_id = $1
	`, sessionID)
	var rec Settlement
	if err := row.Scan(&rec.SessionID, &rec.Effect, &rec.WinnerID, &rec.AmountCC, &rec.RefundCount, &rec.Reason, &rec.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (s *Store) ListSettlements(ctx context.Context, limit, offset int) ([]Settlement, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT session_id, effect, winner_id, amount_cc, refund_count, reason, created_at
		FROM settlements ORDER BY created_at DESC LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Settlement{}
	for rows.Next() {
		var rec Settlement
		if err := rows.Scan(&rec.SessionID, &rec.Effect, &rec.WinnerID, &rec.AmountCC, &rec.RefundCount, &rec.Reason, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
