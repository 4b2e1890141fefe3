package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// InsertActionRecord stores the response for a (session, request) pair.
// Returns false when a record already exists; the stored response wins.
func (s *Store) InsertActionRecord(ctx context.Context, rec ActionRecord) (bool, error) {
	tag, err := s.Pool.Exec(ctx, `
		INSERT INTO action_requests (session_id, request_id, participant_id, response)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (session_id, request_id) DO NOTHING
	`, rec.SessionID, rec.RequestID, rec.ParticipantID, rec.Response)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) GetActionRecord(ctx context.Context, sessionID, requestID string) (*ActionRecord, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT session_id, request_id, participant_id, response, created_at
		FROM action_requests WHERE session_id = $1 AND request_id = $2
	`, sessionID, requestID)
	var rec ActionRecord
	if err := row.Scan(&rec.SessionID, &rec.RequestID, &rec.ParticipantID, &rec.Response, &rec.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}
