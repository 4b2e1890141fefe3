package session

import "pairduel/internal/game"

// Session stream events, in the order a client can expect them. Every event
// goes to the session's shared buffer; there is no per-seat stream because no
// payload is private.
const (
	EventSessionStarted        = "session_started"
	EventCardRevealed          = "card_revealed"
	EventCardsMatched          = "cards_matched"
	EventCardsMismatched       = "cards_mismatched"
	EventTurnChanged           = "turn_changed"
	EventLifelineLost          = "lifeline_lost"
	EventParticipantEliminated = "participant_eliminated"
	EventSessionEnded          = "session_ended"
)

// Lobby stream events, delivered on the per-player lobby stream while the
// player waits for admission.
const (
	EventSessionMatched = "session_matched"
	EventQueueTimeout   = "queue_timeout"
)

type SessionStartedPayload struct {
	SessionID    string                 `json:"session_id"`
	GameType     string                 `json:"game_type"`
	StakeCC      int64                  `json:"stake_cc"`
	PrizePoolCC  int64                  `json:"prize_pool_cc"`
	Pairs        int                    `json:"pairs"`
	Cards        []game.CardView        `json:"cards"`
	Participants []game.ParticipantView `json:"participants"`
	FirstTurnID  string                 `json:"first_turn_id"`
	TurnDeadline int64                  `json:"turn_deadline_ts"`
}

type CardRevealedPayload struct {
	ParticipantID string `json:"participant_id"`
	Position      int    `json:"position"`
	Symbol        string `json:"symbol"`
	// Ordinal is 1 for the turn's first reveal, 2 for the second.
	Ordinal int `json:"ordinal"`
}

type CardsMatchedPayload struct {
	ParticipantID string `json:"participant_id"`
	Positions     [2]int `json:"positions"`
	Symbol        string `json:"symbol"`
	NewScore      int    `json:"new_score"`
	PairsLeft     int    `json:"pairs_left"`
}

type CardsMismatchedPayload struct {
	ParticipantID string `json:"participant_id"`
	Positions     [2]int `json:"positions"`
}

type TurnChangedPayload struct {
	ParticipantID string `json:"participant_id"`
	TurnDeadline  int64  `json:"turn_deadline_ts"`
}

type LifelineLostPayload struct {
	ParticipantID     string `json:"participant_id"`
	Remaining         int    `json:"remaining"`
	RevertedPositions []int  `json:"reverted_positions,omitempty"`
}

type ParticipantEliminatedPayload struct {
	ParticipantID string `json:"participant_id"`
	// Voluntary marks a quit rather than a lifeline elimination.
	Voluntary bool `json:"voluntary,omitempty"`
}

type LeaderboardEntry struct {
	ParticipantID string `json:"participant_id"`
	DisplayName   string `json:"display_name"`
	Score         int    `json:"score"`
	IsSynthetic   bool   `json:"is_synthetic"`
}

type SessionEndedPayload struct {
	SessionID   string             `json:"session_id"`
	Status      string             `json:"status"`
	Reason      string             `json:"reason"`
	WinnerID    string             `json:"winner_id,omitempty"`
	Draw        bool               `json:"draw,omitempty"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
}

// SessionMatchedPayload lands on the lobby stream of each admitted player.
type SessionMatchedPayload struct {
	SessionID string `json:"session_id"`
	GameType  string `json:"game_type"`
	StakeCC   int64  `json:"stake_cc"`
	StreamURL string `json:"stream_url"`
}

type QueueTimeoutPayload struct {
	EntryID    string `json:"entry_id"`
	WaitedMS   int64  `json:"waited_ms"`
	RefundedCC int64  `json:"refunded_cc"`
}
