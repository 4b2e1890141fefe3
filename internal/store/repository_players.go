package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

func (s *Store) CreatePlayer(ctx context.Context, displayName, apiKey string) (string, error) {
	id := NewID()
	hash := HashAPIKey(apiKey)
	_, err := s.Pool.Exec(ctx, `INSERT INTO players (id, display_name, api_key_hash) VALUES ($1,$2,$3)`, id, displayName, hash)
	return id, err
}

func (s *Store) GetPlayerByAPIKey(ctx context.Context, apiKey string) (*Player, error) {
	hash := HashAPIKey(apiKey)
	row := s.Pool.QueryRow(ctx, `SELECT id, display_name, api_key_hash, created_at FROM players WHERE api_key_hash = $1`, hash)
	var p Player
	if err := row.Scan(&p.ID, &p.DisplayName, &p.APIKeyHash, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) GetPlayer(ctx context.Context, id string) (*Player, error) {
	row := s.Pool.QueryRow(ctx, `SELECT id, display_name, api_key_hash, created_at FROM players WHERE id = $1`, id)
	var p Player
	if err := row.Scan(&p.ID, &p.DisplayName, &p.APIKeyHash, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) ListPlayers(ctx context.Context, limit, offset int) ([]Player, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.Pool.Query(ctx, `SELECT id, display_name, api_key_hash, created_at FROM players ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Player{}
	for rows.Next() {
		var p Player
		if err := rows.Scan(&p.ID, &p.DisplayName, &p.APIKeyHash, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
