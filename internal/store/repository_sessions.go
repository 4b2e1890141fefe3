package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// PromoteQueueEntries converts a batch of queue entries into a session in one
// serializable transaction: the chosen entries are deleted, the session row
// and its participants inserted. If any entry id is already gone (the
// participant left, or another tick claimed it) the whole transaction aborts
// with ErrPromotionConflict and nothing is created.
func (s *Store) PromoteQueueEntries(ctx context.Context, sess GameSession, parts []SessionParticipant, entryIDs []string) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if len(entryIDs) > 0 {
		tag, err := tx.Exec(ctx, `DELETE FROM queue_entries WHERE id = ANY($1)`, entryIDs)
		if err != nil {
			return err
		}
		if int(tag.RowsAffected()) != len(entryIDs) {
			return ErrPromotionConflict
		}
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO game_sessions (id, game_type, player_count, stake_cc, prize_pool_cc, status)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, sess.ID, sess.GameType, sess.PlayerCount, sess.StakeCC, sess.PrizePoolCC, sess.Status); err != nil {
		return err
	}
	for _, p := range parts {
		if _, err := tx.Exec(ctx, `
			INSERT INTO session_participants (session_id, participant_id, seat, display_name, is_synthetic, archetype, score, lifelines)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, sess.ID, p.ParticipantID, p.Seat, p.DisplayName, p.IsSynthetic, p.Archetype, p.Score, p.Lifelines); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) GetGameSession(ctx context.Context, id string) (*GameSession, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT id, game_type, player_count, stake_cc, prize_pool_cc, status, reason, winner_id, created_at, started_at, finished_at
		FROM game_sessions WHERE id = $1
	`, id)
	var g GameSession
	if err := row.Scan(&g.ID, &g.GameType, &g.PlayerCount, &g.StakeCC, &g.PrizePoolCC, &g.Status, &g.Reason, &g.WinnerID, &g.CreatedAt, &g.StartedAt, &g.FinishedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &g, nil
}

func (s *Store) MarkSessionPlaying(ctx context.Context, id string) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE game_sessions SET status = 'playing', started_at = now()
		WHERE id = $1 AND status = 'waiting'
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FinishGameSession writes the terminal state and the final per-participant
// scores in one transaction.
func (s *Store) FinishGameSession(ctx context.Context, id, status, reason, winnerID string, scores map[string]int) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE game_sessions SET status = $2, reason = $3, winner_id = $4, finished_at = now()
		WHERE id = $1 AND finished_at IS NULL
	`, id, status, reason, winnerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	for pid, score := range scores {
		if _, err := tx.Exec(ctx, `
			UPDATE session_participants SET score = $3 WHERE session_id = $1 AND participant_id = $2
		`, id, pid, score); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) SessionParticipants(ctx context.Context, sessionID string) ([]SessionParticipant, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT session_id, participant_id, seat, display_name, is_synthetic, archetype, score, lifelines
		FROM session_participants WHERE session_id = $1 ORDER BY seat ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []SessionParticipant{}
	for rows.Next() {
		var p SessionParticipant
		if err := rows.Scan(&p.SessionID, &p.ParticipantID, &p.Seat, &p.DisplayName, &p.IsSynthetic, &p.Archetype, &p.Score, &p.Lifelines); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) ListSessionsByStatus(ctx context.Context, status string, limit, offset int) ([]GameSession, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT id, game_type, player_count, stake_cc, prize_pool_cc, status, reason, winner_id, created_at, started_at, finished_at
		FROM game_sessions WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, status, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []GameSession{}
	for rows.Next() {
		var g GameSession
		if err := rows.Scan(&g.ID, &g.GameType, &g.PlayerCount, &g.StakeCC, &g.PrizePoolCC, &g.Status, &g.Reason, &g.WinnerID, &g.CreatedAt, &g.StartedAt, &g.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// ListUnsettledSessions returns terminal sessions older than before that have
// no settlement record, the work list for the reconciliation sweep.
func (s *Store) ListUnsettledSessions(ctx context.Context, before time.Time, limit int) ([]GameSession, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT g.id, g.game_type, g.player_count, g.stake_cc, g.prize_pool_cc, g.status, g.reason, g.winner_id, g.created_at, g.started_at, g.finished_at
		FROM game_sessions g
		WHERE g.status IN ('finished','cancelled')
		  AND g.finished_at < $1
		  AND NOT EXISTS (SELECT 1 FROM settlements st WHERE st.session_id = g.id)
		ORDER BY g.finished_at ASC LIMIT $2
	`, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []GameSession{}
	for rows.Next() {
		var g GameSession
		if err := rows.Scan(&g.ID, &g.GameType, &g.PlayerCount, &g.StakeCC, &g.PrizePoolCC, &g.Status, &g.Reason, &g.WinnerID, &g.CreatedAt, &g.StartedAt, &g.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// RecentSyntheticOpponents lists synthetic identities the participant has
// faced since the given time, used to exclude them from pool acquisition.
func (s *Store) RecentSyntheticOpponents(ctx context.Context, participantID string, since time.Time) ([]string, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT DISTINCT sp2.participant_id
		FROM session_participants sp1
		JOIN session_participants sp2
		  ON sp2.session_id = sp1.session_id AND sp2.participant_id <> sp1.participant_id
		JOIN game_sessions g ON g.id = sp1.session_id
		WHERE sp1.participant_id = $1 AND sp2.is_synthetic AND g.created_at >= $2
	`, participantID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
