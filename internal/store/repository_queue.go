package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// InsertQueueEntry adds a waiting entry. A participant can hold at most one
// entry; a second insert fails with ErrAlreadyQueued.
func (s *Store) InsertQueueEntry(ctx context.Context, e QueueEntry) error {
	tag, err := s.Pool.Exec(ctx, `
		INSERT INTO queue_entries (id, participant_id, game_type, player_count, stake_cc)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (participant_id) DO NOTHING
	`, e.ID, e.ParticipantID, e.GameType, e.PlayerCount, e.StakeCC)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyQueued
	}
	return nil
}

// DeleteQueueEntry removes and returns the participant's entry so callers can
// refund the right stake.
func (s *Store) DeleteQueueEntry(ctx context.Context, participantID string) (*QueueEntry, error) {
	row := s.Pool.QueryRow(ctx, `
		DELETE FROM queue_entries WHERE participant_id = $1
		RETURNING id, participant_id, game_type, player_count, stake_cc, enqueued_at
	`, participantID)
	var e QueueEntry
	if err := row.Scan(&e.ID, &e.ParticipantID, &e.GameType, &e.PlayerCount, &e.StakeCC, &e.EnqueuedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (s *Store) GetQueueEntry(ctx context.Context, participantID string) (*QueueEntry, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT id, participant_id, game_type, player_count, stake_cc, enqueued_at
		FROM queue_entries WHERE participant_id = $1
	`, participantID)
	var e QueueEntry
	if err := row.Scan(&e.ID, &e.ParticipantID, &e.GameType, &e.PlayerCount, &e.StakeCC, &e.EnqueuedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

// ListQueueEntries returns the whole queue oldest first, the order the
// admission tiers consume it in.
func (s *Store) ListQueueEntries(ctx context.Context) ([]QueueEntry, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, participant_id, game_type, player_count, stake_cc, enqueued_at
		FROM queue_entries ORDER BY enqueued_at ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []QueueEntry{}
	for rows.Next() {
		var e QueueEntry
		if err := rows.Scan(&e.ID, &e.ParticipantID, &e.GameType, &e.PlayerCount, &e.StakeCC, &e.EnqueuedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) CountQueueEntries(ctx context.Context) (int, error) {
	row := s.Pool.QueryRow(ctx, `SELECT COUNT(1) FROM queue_entries`)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
