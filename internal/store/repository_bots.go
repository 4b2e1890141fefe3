package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// AcquireIdleBot claims one idle, cooled-down synthetic identity not in
// excluding and marks it deployed. SKIP LOCKED keeps concurrent ticks from
// fighting over the same row. ErrNotFound means no identity qualifies.
func (s *Store) AcquireIdleBot(ctx context.Context, excluding []string) (*BotProfile, error) {
	if excluding == nil {
		excluding = []string{}
	}
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		SELECT id, display_name, archetype, status, cooldown_until, created_at
		FROM bot_profiles
		WHERE status = 'idle' AND cooldown_until <= now() AND id <> ALL($1)
		ORDER BY cooldown_until ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`, excluding)
	var b BotProfile
	if err := row.Scan(&b.ID, &b.DisplayName, &b.Archetype, &b.Status, &b.CooldownUntil, &b.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if _, err := tx.Exec(ctx, `UPDATE bot_profiles SET status = 'deployed' WHERE id = $1`, b.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	b.Status = "deployed"
	return &b, nil
}

func (s *Store) CreateBotProfile(ctx context.Context, displayName, archetype, status string) (string, error) {
	id := NewID()
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO bot_profiles (id, display_name, archetype, status) VALUES ($1,$2,$3,$4)
	`, id, displayName, archetype, status)
	return id, err
}

func (s *Store) ReleaseBot(ctx context.Context, id string, cooldownUntil time.Time) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE bot_profiles SET status = 'idle', cooldown_until = $2 WHERE id = $1
	`, id, cooldownUntil)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) GetBotProfile(ctx context.Context, id string) (*BotProfile, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT id, display_name, archetype, status, cooldown_until, created_at
		FROM bot_profiles WHERE id = $1
	`, id)
	var b BotProfile
	if err := row.Scan(&b.ID, &b.DisplayName, &b.Archetype, &b.Status, &b.CooldownUntil, &b.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (s *Store) CountBotsByArchetype(ctx context.Context) (map[string]int, error) {
	rows, err := s.Pool.Query(ctx, `SELECT archetype, COUNT(1) FROM bot_profiles GROUP BY archetype`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var archetype string
		var n int
		if err := rows.Scan(&archetype, &n); err != nil {
			return nil, err
		}
		out[archetype] = n
	}
	return out, rows.Err()
}

func (s *Store) CountIdleBots(ctx context.Context) (int, error) {
	row := s.Pool.QueryRow(ctx, `SELECT COUNT(1) FROM bot_profiles WHERE status = 'idle' AND cooldown_until <= now()`)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) ListBotProfiles(ctx context.Context, limit, offset int) ([]BotProfile, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT id, display_name, archetype, status, cooldown_until, created_at
		FROM bot_profiles ORDER BY created_at ASC LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []BotProfile{}
	for rows.Next() {
		var b BotProfile
		if err := rows.Scan(&b.ID, &b.DisplayName, &b.Archetype, &b.Status, &b.CooldownUntil, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
