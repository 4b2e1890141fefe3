package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

func (s *Store) EnsureAccount(ctx context.Context, ownerID string, initial int64) error {
	_, err := s.Pool.Exec(ctx, `INSERT INTO accounts (owner_id, balance_cc) VALUES ($1,$2) ON CONFLICT (owner_id) DO NOTHING`, ownerID, initial)
	return err
}

func (s *Store) GetAccountBalance(ctx context.Context, ownerID string) (int64, error) {
	row := s.Pool.QueryRow(ctx, `SELECT balance_cc FROM accounts WHERE owner_id = $1`, ownerID)
	var bal int64
	if err := row.Scan(&bal); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return bal, nil
}

// Debit removes amount from the owner's balance and records a ledger entry in
// the same transaction. Fails with ErrInsufficientBalance without touching the
// account when the balance does not cover the amount.
func (s *Store) Debit(ctx context.Context, ownerID string, amount int64, entryType, refType, refID string) (int64, error) {
	if amount < 0 {
		return 0, errors.New("amount must be positive")
	}
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var bal int64
	row := tx.QueryRow(ctx, `SELECT balance_cc FROM accounts WHERE owner_id = $1 FOR UPDATE`, ownerID)
	if err := row.Scan(&bal); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	if bal < amount {
		return 0, ErrInsufficientBalance
	}
	newBal := bal - amount
	if _, err := tx.Exec(ctx, `UPDATE accounts SET balance_cc = $1, updated_at = now() WHERE owner_id = $2`, newBal, ownerID); err != nil {
		return 0, err
	}
	if err := recordLedgerEntry(ctx, tx, ownerID, entryType, -amount, refType, refID); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return newBal, nil
}

func (s *Store) Credit(ctx context.Context, ownerID string, amount int64, entryType, refType, refID string) (int64, error) {
	if amount < 0 {
		return 0, errors.New("amount must be positive")
	}
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var bal int64
	row := tx.QueryRow(ctx, `SELECT balance_cc FROM accounts WHERE owner_id = $1 FOR UPDATE`, ownerID)
	if err := row.Scan(&bal); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	newBal := bal + amount
	if _, err := tx.Exec(ctx, `UPDATE accounts SET balance_cc = $1, updated_at = now() WHERE owner_id = $2`, newBal, ownerID); err != nil {
		return 0, err
	}
	if err := recordLedgerEntry(ctx, tx, ownerID, entryType, amount, refType, refID); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return newBal, nil
}

// TopUpTo raises the owner's balance to at least target, crediting the
// difference. Returns the amount credited (zero when the balance already
// covers target).
func (s *Store) TopUpTo(ctx context.Context, ownerID string, target int64, refType, refID string) (int64, error) {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var bal int64
	row := tx.QueryRow(ctx, `SELECT balance_cc FROM accounts WHERE owner_id = $1 FOR UPDATE`, ownerID)
	if err := row.Scan(&bal); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	if bal >= target {
		return 0, tx.Commit(ctx)
	}
	delta := target - bal
	if _, err := tx.Exec(ctx, `UPDATE accounts SET balance_cc = $1, updated_at = now() WHERE owner_id = $2`, target, ownerID); err != nil {
		return 0, err
	}
	if err := recordLedgerEntry(ctx, tx, ownerID, "bot_topup", delta, refType, refID); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return delta, nil
}

func recordLedgerEntry(ctx context.Context, tx pgx.Tx, ownerID, entryType string, amount int64, refType, refID string) error {
	_, err := tx.Exec(ctx, `INSERT INTO ledger_entries (id, owner_id, type, amount_cc, ref_type, ref_id) VALUES ($1,$2,$3,$4,$5,$6)`,
		NewID(), ownerID, entryType, amount, refType, refID)
	return err
}

type LedgerFilter struct {
	OwnerID   string
	SessionID string
}

func (s *Store) ListLedgerEntries(ctx context.Context, f LedgerFilter, limit, offset int) ([]LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT id, owner_id, type, amount_cc, ref_type, ref_id, created_at FROM ledger_entries WHERE 1=1`
	args := []any{}
	if f.OwnerID != "" {
		args = append(args, f.OwnerID)
		q += ` AND owner_id = $1`
	}
	if f.SessionID != "" {
		args = append(args, f.SessionID)
		if f.OwnerID != "" {
			q += ` AND ref_type = 'session' AND ref_id = $2`
		} else {
			q += ` AND ref_type = 'session' AND ref_id = $1`
		}
	}
	switch len(args) {
	case 0:
		q += ` ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	case 1:
		q += ` ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	case 2:
		q += ` ORDER BY created_at DESC LIMIT $3 OFFSET $4`
	}
	args = append(args, limit, offset)
	rows, err := s.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []LedgerEntry{}
	for rows.Next() {
		var e LedgerEntry
		if err := rows.Scan(&e.ID, &e.OwnerID, &e.Type, &e.AmountCC, &e.RefType, &e.RefID, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
