package store

import "time"

type Player struct {
	ID          string
	DisplayName string
	APIKeyHash  string
	CreatedAt   time.Time
}

type Account struct {
	OwnerID   string
	BalanceCC int64
	UpdatedAt time.Time
}

type LedgerEntry struct {
	ID        string
	OwnerID   string
	Type      string
	AmountCC  int64
	RefType   string
	RefID     string
	CreatedAt time.Time
}

// QueueEntry is a participant waiting for admission. At most one row per
// participant exists at any time.
type QueueEntry struct {
	ID            string
	ParticipantID string
	GameType      string
	PlayerCount   int
	StakeCC       int64
	EnqueuedAt    time.Time
}

type GameSession struct {
	ID          string
	GameType    string
	PlayerCount int
	StakeCC     int64
	PrizePoolCC int64
	Status      string
	Reason      string
	WinnerID    string
	CreatedAt   time.Time
	StartedAt   *time.Time
	FinishedAt  *time.Time
}

type SessionParticipant struct {
	SessionID     string
	ParticipantID string
	Seat          int
	DisplayName   string
	IsSynthetic   bool
	Archetype     string
	Score         int
	Lifelines     int
}

type BotProfile struct {
	ID            string
	DisplayName   string
	Archetype     string
	Status        string
	CooldownUntil time.Time
	CreatedAt     time.Time
}

// ActionRecord stores the response served for a (session, request) pair so a
// retried card selection replays the original outcome.
type ActionRecord struct {
	SessionID     string
	RequestID     string
	ParticipantID string
	Response      []byte
	CreatedAt     time.Time
}

type Settlement struct {
	SessionID   string
	Effect      string
	WinnerID    string
	AmountCC    int64
	RefundCount int
	Reason      string
	CreatedAt   time.Time
}

// SettlementEffect is one balance movement applied together with the
// settlement record.
type SettlementEffect struct {
	OwnerID   string
	AmountCC  int64
	EntryType string
}
