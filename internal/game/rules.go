package game

import "errors"

var (
	ErrNotYourTurn       = errors.New("not_your_turn")
	ErrInvalidPosition   = errors.New("invalid_position")
	ErrCardUnavailable   = errors.New("card_unavailable")
	ErrEvaluationPending = errors.New("evaluation_pending")
	ErrTooManySelections = errors.New("too_many_selections")
	ErrUnknownPlayer     = errors.New("unknown_player")
	ErrPlayerEliminated  = errors.New("player_eliminated")
)

// ValidateSelection checks whether participantID may flip pos right now.
// Order matters: turn ownership first, then the single-writer evaluation
// lock, then per-card availability.
func ValidateSelection(s *State, participantID string, pos int) error {
	p := s.participant(participantID)
	if p == nil {
		return ErrUnknownPlayer
	}
	if p.Eliminated {
		return ErrPlayerEliminated
	}
	if s.Current() == nil || s.Current().ID != participantID {
		return ErrNotYourTurn
	}
	if s.Evaluating {
		return ErrEvaluationPending
	}
	if len(s.Pending) >= 2 {
		return ErrTooManySelections
	}
	if pos < 0 || pos >= len(s.Board.Cards) {
		return ErrInvalidPosition
	}
	c := s.Board.Cards[pos]
	if c.Flipped || c.Matched {
		return ErrCardUnavailable
	}
	return nil
}
