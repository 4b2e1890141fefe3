package matchmaker

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"pairduel/internal/config"
	"pairduel/internal/session"
	"pairduel/internal/store"
)

// GameTypeMemory is the one game the engine currently runs. The queue still
// keys on the game type so further games slot in without schema changes.
const GameTypeMemory = "memory"

var supportedGameTypes = map[string]bool{
	GameTypeMemory: true,
}

const (
	minPlayers = 2
	maxPlayers = 4
)

var (
	ErrUnknownGameType    = errors.New("unknown_game_type")
	ErrInvalidPlayerCount = errors.New("invalid_player_count")
	ErrInvalidStake       = errors.New("invalid_stake")
	ErrInLiveSession      = errors.New("in_live_session")
	ErrNotQueued          = errors.New("not_queued")
)

// Store is the queue and promotion surface the matchmaker needs from the
// database layer.
type Store interface {
	InsertQueueEntry(ctx context.Context, e store.QueueEntry) error
	DeleteQueueEntry(ctx context.Context, participantID string) (*store.QueueEntry, error)
	GetQueueEntry(ctx context.Context, participantID string) (*store.QueueEntry, error)
	ListQueueEntries(ctx context.Context) ([]store.QueueEntry, error)
	PromoteQueueEntries(ctx context.Context, sess store.GameSession, parts []store.SessionParticipant, entryIDs []string) error
	GetPlayer(ctx context.Context, id string) (*store.Player, error)
}

// Wallet moves stakes in and out of escrow. Implemented by wallet.Service.
type Wallet interface {
	EscrowStake(ctx context.Context, ownerID, entryID string, amountCC int64) (int64, error)
	RefundEscrow(ctx context.Context, ownerID, entryID string, amountCC int64) (int64, error)
	StakeSession(ctx context.Context, ownerID, sessionID string, amountCC int64) (int64, error)
	RefundSessionStake(ctx context.Context, ownerID, sessionID string, amountCC int64) (int64, error)
}

// OpponentSource hands out rested synthetic identities and takes them back.
// Implemented by botpool.Pool.
type OpponentSource interface {
	Acquire(ctx context.Context, gameType string, stakeCC int64, excluding []string) (*store.BotProfile, error)
	Release(ctx context.Context, botID string) error
	RecentOpponents(ctx context.Context, humanIDs []string) []string
}

// SessionStarter owns the live sessions admitted entries are handed to.
// Implemented by session.Registry.
type SessionStarter interface {
	StartSession(ctx context.Context, sess store.GameSession, seats []session.Seat) (*session.Runtime, error)
	InLiveSession(participantID string) bool
	FindByPlayer(participantID string) (string, bool)
}

// Service is the admission layer: queue membership on the synchronous side,
// the tiered scheduler tick on the asynchronous side.
type Service struct {
	store   Store
	wallet  Wallet
	pool    OpponentSource
	starter SessionStarter
	lobby   *Lobby

	cfg     config.MatchConfig
	sessCfg config.SessionConfig

	inFlight atomic.Bool
}

func New(st Store, w Wallet, pool OpponentSource, starter SessionStarter, cfg config.MatchConfig, sessCfg config.SessionConfig) *Service {
	return &Service{
		store:   st,
		wallet:  w,
		pool:    pool,
		starter: starter,
		lobby:   NewLobby(),
		cfg:     cfg,
		sessCfg: sessCfg,
	}
}

// Lobby exposes the pre-admission stream for the HTTP layer.
func (s *Service) Lobby() *Lobby { return s.lobby }

// JoinQueue escrows the stake and parks the player in the queue. The escrow
// happens before the insert; an insert conflict hands it straight back.
func (s *Service) JoinQueue(ctx context.Context, participantID, gameType string, playerCount int, stakeCC int64) (*store.QueueEntry, error) {
	if !supportedGameTypes[gameType] {
		return nil, ErrUnknownGameType
	}
	if playerCount < minPlayers || playerCount > maxPlayers {
		return nil, ErrInvalidPlayerCount
	}
	if stakeCC <= 0 {
		return nil, ErrInvalidStake
	}
	if s.starter.InLiveSession(participantID) {
		return nil, ErrInLiveSession
	}

	entry := store.QueueEntry{
		ID:            store.NewID(),
		ParticipantID: participantID,
		GameType:      gameType,
		PlayerCount:   playerCount,
		StakeCC:       stakeCC,
		EnqueuedAt:    time.Now(),
	}
	if _, err := s.wallet.EscrowStake(ctx, participantID, entry.ID, stakeCC); err != nil {
		return nil, err
	}
	if err := s.store.InsertQueueEntry(ctx, entry); err != nil {
		if _, rerr := s.wallet.RefundEscrow(ctx, participantID, entry.ID, stakeCC); rerr != nil {
			log.Error().Err(rerr).
				Str("participant_id", participantID).
				Str("entry_id", entry.ID).
				Msg("refunding escrow after failed queue insert")
		}
		return nil, err
	}

	metricJoins.Add(1)
	log.Info().
		Str("participant_id", participantID).
		Str("game_type", gameType).
		Int("player_count", playerCount).
		Int64("stake_cc", stakeCC).
		Msg("player queued")
	return &entry, nil
}

// LeaveQueue drops the player's entry and refunds the escrowed stake.
func (s *Service) LeaveQueue(ctx context.Context, participantID string) error {
	entry, err := s.store.DeleteQueueEntry(ctx, participantID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotQueued
		}
		return err
	}
	if _, err := s.wallet.RefundEscrow(ctx, participantID, entry.ID, entry.StakeCC); err != nil {
		log.Error().Err(err).
			Str("participant_id", participantID).
			Str("entry_id", entry.ID).
			Msg("refunding escrow after queue leave")
		return err
	}

	metricLeaves.Add(1)
	log.Info().
		Str("participant_id", participantID).
		Int64("refunded_cc", entry.StakeCC).
		Msg("player left queue")
	return nil
}

const (
	StateIdle    = "idle"
	StateWaiting = "waiting"
	StateMatched = "matched"
)

// Status is the player's view of where they stand with admission.
type Status struct {
	State     string `json:"state"`
	SessionID string `json:"session_id,omitempty"`
	GameType  string `json:"game_type,omitempty"`
	StakeCC   int64  `json:"stake_cc,omitempty"`
	WaitedMS  int64  `json:"waited_ms,omitempty"`
}

// QueueStatus reports matched before waiting: a just-promoted player may
// still see their entry deleted and the session registered in either order,
// and the session is the answer that matters.
func (s *Service) QueueStatus(ctx context.Context, participantID string) (*Status, error) {
	if sessionID, ok := s.starter.FindByPlayer(participantID); ok {
		return &Status{State: StateMatched, SessionID: sessionID}, nil
	}
	entry, err := s.store.GetQueueEntry(ctx, participantID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &Status{State: StateIdle}, nil
		}
		return nil, err
	}
	return &Status{
		State:    StateWaiting,
		GameType: entry.GameType,
		StakeCC:  entry.StakeCC,
		WaitedMS: time.Since(entry.EnqueuedAt).Milliseconds(),
	}, nil
}
