package game

// Engine applies the turn cycle to one session's State. It is purely
// in-memory and synchronous; the session runtime layers timers, persistence
// and event publication on top.
type Engine struct {
	State       *State
	MatchPoints int
}

// NewEngine deals a fresh board and seats the participants in the given
// order; seat 0 holds the first turn.
func NewEngine(sessionID string, pairs int, participants []*Participant, matchPoints int) (*Engine, error) {
	board, err := NewBoard(pairs)
	if err != nil {
		return nil, err
	}
	return &Engine{
		State: &State{
			SessionID:    sessionID,
			Board:        board,
			Participants: participants,
			Pending:      []int{},
		},
		MatchPoints: matchPoints,
	}, nil
}

// SelectResult reports one accepted flip.
type SelectResult struct {
	Position int
	Symbol   string
	// Ordinal is 1 for the first flip of a turn, 2 for the second. The
	// second flip starts the reveal evaluation window.
	Ordinal int
}

// Select flips one card for the current participant. After the second flip
// the state is frozen (Evaluating) until ResolveReveal runs.
func (e *Engine) Select(participantID string, pos int) (SelectResult, error) {
	s := e.State
	if err := ValidateSelection(s, participantID, pos); err != nil {
		return SelectResult{}, err
	}
	if err := s.Board.Flip(pos); err != nil {
		return SelectResult{}, err
	}
	s.Pending = append(s.Pending, pos)
	res := SelectResult{Position: pos, Symbol: s.Board.SymbolAt(pos), Ordinal: len(s.Pending)}
	if len(s.Pending) == 2 {
		s.Evaluating = true
	}
	return res, nil
}

// RevealOutcome is the result of evaluating a completed two-card selection.
type RevealOutcome struct {
	ParticipantID string
	Positions     [2]int
	Symbol        string
	Matched       bool
	NewScore      int
	PairsLeft     int
	// Completed is set when the match cleared the final pair.
	Completed bool
	// NextTurnID is the participant holding the turn after the evaluation:
	// the same participant after a match, the next in rotation otherwise.
	NextTurnID string
}

// ResolveReveal evaluates the two pending cards: a match removes them, scores
// MatchPoints and keeps the turn; a mismatch flips them back and rotates the
// turn. No-op unless an evaluation is actually pending.
func (e *Engine) ResolveReveal() (RevealOutcome, bool) {
	s := e.State
	if !s.Evaluating || len(s.Pending) != 2 {
		return RevealOutcome{}, false
	}
	cur := s.Current()
	p1, p2 := s.Pending[0], s.Pending[1]
	out := RevealOutcome{
		ParticipantID: cur.ID,
		Positions:     [2]int{p1, p2},
		Symbol:        s.Board.SymbolAt(p1),
	}
	if s.Board.SymbolAt(p1) == s.Board.SymbolAt(p2) {
		s.Board.MarkMatched(p1, p2)
		cur.Score += e.MatchPoints
		out.Matched = true
		out.NewScore = cur.Score
		out.Completed = s.Board.AllMatched()
	} else {
		s.Board.Unflip(p1)
		s.Board.Unflip(p2)
		s.advanceTurn()
	}
	out.PairsLeft = s.Board.PairsLeft()
	s.Pending = []int{}
	s.Evaluating = false
	if next := s.Current(); next != nil {
		out.NextTurnID = next.ID
	}
	return out, true
}

// TimeoutOutcome is the result of the current participant missing the turn
// window.
type TimeoutOutcome struct {
	ParticipantID string
	Reverted      []int
	Lifelines     int
	Eliminated    bool
	// LastStandingID is set when the elimination left exactly one
	// participant; the session terminates in their favor.
	LastStandingID string
	NextTurnID     string
}

// ApplyTimeout reverts any half-finished selection, charges one lifeline and
// rotates the turn. At zero lifelines the participant is eliminated. Ignored
// while an evaluation is pending: a frozen turn has no deadline.
func (e *Engine) ApplyTimeout() (TimeoutOutcome, bool) {
	s := e.State
	if s.Evaluating {
		return TimeoutOutcome{}, false
	}
	cur := s.Current()
	if cur == nil || cur.Eliminated {
		return TimeoutOutcome{}, false
	}
	out := TimeoutOutcome{ParticipantID: cur.ID}
	for _, pos := range s.Pending {
		s.Board.Unflip(pos)
		out.Reverted = append(out.Reverted, pos)
	}
	s.Pending = []int{}
	cur.Lifelines--
	out.Lifelines = cur.Lifelines
	if cur.Lifelines <= 0 {
		cur.Eliminated = true
		out.Eliminated = true
		if last := s.LastActive(); last != nil {
			out.LastStandingID = last.ID
			return out, true
		}
	}
	s.advanceTurn()
	if next := s.Current(); next != nil {
		out.NextTurnID = next.ID
	}
	return out, true
}

// RemoveOutcome is the result of a voluntary exit or a lost connection.
type RemoveOutcome struct {
	ParticipantID  string
	Reverted       []int
	LastStandingID string
	NextTurnID     string
	// TurnPassed is set when the removed participant held the turn and the
	// rotation moved on.
	TurnPassed bool
}

// RemoveParticipant drops a participant from the rotation mid-game. Any
// selection they had in flight is reverted. With one participant left the
// caller terminates the session.
func (e *Engine) RemoveParticipant(participantID string) (RemoveOutcome, error) {
	s := e.State
	p := s.participant(participantID)
	if p == nil {
		return RemoveOutcome{}, ErrUnknownPlayer
	}
	if p.Eliminated {
		return RemoveOutcome{}, ErrPlayerEliminated
	}
	out := RemoveOutcome{ParticipantID: participantID}
	heldTurn := s.Current() != nil && s.Current().ID == participantID
	if heldTurn {
		for _, pos := range s.Pending {
			s.Board.Unflip(pos)
			out.Reverted = append(out.Reverted, pos)
		}
		s.Pending = []int{}
		s.Evaluating = false
	}
	p.Eliminated = true
	if last := s.LastActive(); last != nil {
		out.LastStandingID = last.ID
		return out, nil
	}
	if heldTurn {
		s.advanceTurn()
		out.TurnPassed = true
	}
	if next := s.Current(); next != nil {
		out.NextTurnID = next.ID
	}
	return out, nil
}

// Winner resolves a completed board: the highest score wins; equal top
// scores are a draw and no winner is declared.
func (e *Engine) Winner() (string, bool) {
	best := -1
	winnerID := ""
	draw := false
	for _, p := range e.State.Participants {
		if p.Eliminated {
			continue
		}
		switch {
		case p.Score > best:
			best = p.Score
			winnerID = p.ID
			draw = false
		case p.Score == best:
			draw = true
		}
	}
	if draw {
		return "", true
	}
	return winnerID, false
}

// Scores returns the final score per participant id, eliminated seats
// included.
func (e *Engine) Scores() map[string]int {
	out := make(map[string]int, len(e.State.Participants))
	for _, p := range e.State.Participants {
		out[p.ID] = p.Score
	}
	return out
}
