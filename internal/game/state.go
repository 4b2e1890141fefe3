package game

// Participant is a seat in one session: a human player or a deployed
// synthetic identity. Lifelines only decrease; at zero the participant is
// eliminated and skipped by the rotation.
type Participant struct {
	ID          string
	DisplayName string
	Seat        int
	Score       int
	Lifelines   int
	IsSynthetic bool
	Archetype   string
	Eliminated  bool
}

// State is the full authoritative board-game state for one session. It is
// pure data: persistence, timers and money live with the caller.
type State struct {
	SessionID    string
	Board        *Board
	Participants []*Participant
	TurnIndex    int
	// Pending holds positions flipped this turn, in flip order. The second
	// flip freezes the turn until the reveal evaluation resolves.
	Pending    []int
	Evaluating bool
}

func (s *State) Current() *Participant {
	if len(s.Participants) == 0 {
		return nil
	}
	return s.Participants[s.TurnIndex]
}

func (s *State) participant(id string) *Participant {
	for _, p := range s.Participants {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// ActiveCount is the number of participants still in the rotation.
func (s *State) ActiveCount() int {
	n := 0
	for _, p := range s.Participants {
		if !p.Eliminated {
			n++
		}
	}
	return n
}

// LastActive returns the sole remaining participant, if exactly one is left.
func (s *State) LastActive() *Participant {
	var last *Participant
	for _, p := range s.Participants {
		if p.Eliminated {
			continue
		}
		if last != nil {
			return nil
		}
		last = p
	}
	return last
}

// advanceTurn moves the rotation to the next non-eliminated participant.
// With everyone eliminated the index stays put; callers terminate first.
func (s *State) advanceTurn() {
	for i := 1; i <= len(s.Participants); i++ {
		idx := (s.TurnIndex + i) % len(s.Participants)
		if !s.Participants[idx].Eliminated {
			s.TurnIndex = idx
			return
		}
	}
}

// ParticipantView is the client-facing projection of a seat.
type ParticipantView struct {
	ID          string `json:"participant_id"`
	DisplayName string `json:"display_name"`
	Seat        int    `json:"seat"`
	Score       int    `json:"score"`
	Lifelines   int    `json:"lifelines"`
	IsSynthetic bool   `json:"is_synthetic"`
	Eliminated  bool   `json:"eliminated"`
}

// Snapshot is the full session view sent to clients on demand. Unrevealed
// symbols are withheld; everything else is public to all seats.
type Snapshot struct {
	SessionID     string            `json:"session_id"`
	Cards         []CardView        `json:"cards"`
	Pairs         int               `json:"pairs"`
	PairsLeft     int               `json:"pairs_left"`
	Participants  []ParticipantView `json:"participants"`
	CurrentTurnID string            `json:"current_turn_id"`
	Pending       []int             `json:"pending"`
	Evaluating    bool              `json:"evaluating"`
}

func (s *State) Snapshot() Snapshot {
	parts := make([]ParticipantView, 0, len(s.Participants))
	for _, p := range s.Participants {
		parts = append(parts, ParticipantView{
			ID:          p.ID,
			DisplayName: p.DisplayName,
			Seat:        p.Seat,
			Score:       p.Score,
			Lifelines:   p.Lifelines,
			IsSynthetic: p.IsSynthetic,
			Eliminated:  p.Eliminated,
		})
	}
	currentID := ""
	if cur := s.Current(); cur != nil {
		currentID = cur.ID
	}
	pending := make([]int, len(s.Pending))
	copy(pending, s.Pending)
	return Snapshot{
		SessionID:     s.SessionID,
		Cards:         s.Board.View(),
		Pairs:         s.Board.Pairs,
		PairsLeft:     s.Board.PairsLeft(),
		Participants:  parts,
		CurrentTurnID: currentID,
		Pending:       pending,
		Evaluating:    s.Evaluating,
	}
}
