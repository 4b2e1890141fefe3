package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"pairduel/internal/config"
	"pairduel/internal/events"
	"pairduel/internal/game"
	"pairduel/internal/settlement"
	"pairduel/internal/store"
)

const (
	StatusWaiting   = "waiting"
	StatusPlaying   = "playing"
	StatusFinished  = "finished"
	StatusCancelled = "cancelled"
)

const eventBufferSize = 500

var (
	ErrSessionNotFound  = errors.New("session_not_found")
	ErrSessionNotActive = errors.New("session_not_active")
	ErrInvalidRequestID = errors.New("invalid_request_id")

	errInvalidSeats = errors.New("invalid_session")
)

// Settler applies the money outcome of a terminated session.
type Settler interface {
	Settle(ctx context.Context, req settlement.Request) error
}

// Runtime is one live session: the engine state plus the turn machinery
// around it. rt.mu guards everything below it; the registry lock is never
// held while rt.mu is taken.
type Runtime struct {
	mu     sync.Mutex
	meta   Meta
	engine *game.Engine
	status string
	reason string
	buffer *events.Buffer

	turnDeadline time.Time

	// Epochs version the pending timers. A callback firing with a stale
	// epoch belongs to a turn that no longer exists and is dropped.
	turnEpoch   int64
	revealEpoch int64

	// streams counts open event streams per participant. A human seat that
	// drops to zero mid-game gets a reconnect grace alarm; graceEpochs
	// versions those.
	streams     map[string]int
	graceEpochs map[string]int64
}

// Registry owns every live session runtime. Store may be nil in pure-logic
// tests; persistence is skipped and the turn cycle runs unchanged.
type Registry struct {
	Store   *store.Store
	settler Settler
	cfg     config.SessionConfig
	alarms  *AlarmSet

	mu          sync.Mutex
	sessions    map[string]*Runtime
	byPlayer    map[string]*Runtime
	observer    LifecycleObserver
	releaseBots func(botIDs []string)
}

func NewRegistry(st *store.Store, settler Settler, cfg config.SessionConfig) *Registry {
	return &Registry{
		Store:    st,
		settler:  settler,
		cfg:      cfg,
		alarms:   NewAlarmSet(),
		sessions: map[string]*Runtime{},
		byPlayer: map[string]*Runtime{},
	}
}

// Seat is one admitted participant. Slice order fixes the seat numbers and
// the turn rotation: index 0 holds the first turn.
type Seat struct {
	ParticipantID string
	DisplayName   string
	IsSynthetic   bool
	Archetype     string
}

// StartSession builds the board and takes the session from its persisted
// waiting row to playing: runtime registered, observer notified,
// session_started on the stream, first turn alarm armed.
func (r *Registry) StartSession(ctx context.Context, sess store.GameSession, seats []Seat) (*Runtime, error) {
	if err := validSeats(seats); err != nil {
		r.cancelUnstarted(ctx, sess, seats, err)
		return nil, err
	}

	parts := make([]*game.Participant, 0, len(seats))
	synthetic := map[string]string{}
	for i, seat := range seats {
		parts = append(parts, &game.Participant{
			ID:          seat.ParticipantID,
			DisplayName: seat.DisplayName,
			Seat:        i,
			Lifelines:   r.cfg.Lifelines,
			IsSynthetic: seat.IsSynthetic,
			Archetype:   seat.Archetype,
		})
		if seat.IsSynthetic {
			synthetic[seat.ParticipantID] = seat.Archetype
		}
	}
	engine, err := game.NewEngine(sess.ID, r.cfg.Pairs, parts, r.cfg.MatchPoints)
	if err != nil {
		r.cancelUnstarted(ctx, sess, seats, err)
		return nil, err
	}

	if r.Store != nil {
		if err := r.Store.MarkSessionPlaying(ctx, sess.ID); err != nil {
			return nil, err
		}
	}

	rt := &Runtime{
		meta: Meta{
			SessionID:   sess.ID,
			GameType:    sess.GameType,
			StakeCC:     sess.StakeCC,
			PrizePoolCC: sess.PrizePoolCC,
			Synthetic:   synthetic,
		},
		engine:      engine,
		status:      StatusPlaying,
		buffer:      events.NewBuffer(eventBufferSize),
		streams:     map[string]int{},
		graceEpochs: map[string]int64{},
	}

	r.mu.Lock()
	r.sessions[sess.ID] = rt
	for _, seat := range seats {
		r.byPlayer[seat.ParticipantID] = rt
	}
	observer := r.observer
	r.mu.Unlock()

	// Subscribers attached here see the stream from session_started onward.
	if observer != nil {
		observer.OnSessionStarted(rt.meta, rt.buffer)
	}

	rt.mu.Lock()
	first := rt.engine.State.Current()
	deadline := r.armTurnLocked(rt)
	rt.buffer.Append(EventSessionStarted, sess.ID, SessionStartedPayload{
		SessionID:    sess.ID,
		GameType:     sess.GameType,
		StakeCC:      sess.StakeCC,
		PrizePoolCC:  sess.PrizePoolCC,
		Pairs:        r.cfg.Pairs,
		Cards:        rt.engine.State.Board.View(),
		Participants: rt.engine.State.Snapshot().Participants,
		FirstTurnID:  first.ID,
		TurnDeadline: deadline.UnixMilli(),
	})
	rt.mu.Unlock()

	metricSessionsStarted.Add(1)
	log.Info().
		Str("session_id", sess.ID).
		Str("game_type", sess.GameType).
		Int64("stake_cc", sess.StakeCC).
		Int("seats", len(seats)).
		Msg("session started")
	return rt, nil
}

func validSeats(seats []Seat) error {
	if len(seats) < 2 {
		return errInvalidSeats
	}
	seen := map[string]struct{}{}
	for _, s := range seats {
		if s.ParticipantID == "" {
			return errInvalidSeats
		}
		if _, ok := seen[s.ParticipantID]; ok {
			return errInvalidSeats
		}
		seen[s.ParticipantID] = struct{}{}
	}
	return nil
}

// cancelUnstarted terminates a promoted session whose runtime never came up:
// the row flips to cancelled and every stake is refunded.
func (r *Registry) cancelUnstarted(ctx context.Context, sess store.GameSession, seats []Seat, cause error) {
	log.Error().
		Err(cause).
		Str("session_id", sess.ID).
		Int("seats", len(seats)).
		Msg("session failed integrity check before start")
	if r.Store != nil {
		if err := r.Store.FinishGameSession(ctx, sess.ID, StatusCancelled, settlement.ReasonInvalidSession, "", nil); err != nil {
			log.Error().Err(err).Str("session_id", sess.ID).Msg("persisting cancelled session failed")
		}
	}
	if r.settler != nil {
		shares := make([]settlement.Share, 0, len(seats))
		for _, s := range seats {
			shares = append(shares, settlement.Share{OwnerID: s.ParticipantID, StakeCC: sess.StakeCC})
		}
		_ = r.settler.Settle(ctx, settlement.Request{
			SessionID:   sess.ID,
			Reason:      settlement.ReasonInvalidSession,
			PrizePoolCC: sess.PrizePoolCC,
			Shares:      shares,
		})
	}
	metricSessionsCancelled.Add(1)
}

// armTurnLocked re-arms the turn alarm for the current participant and
// returns the new deadline. Callers hold rt.mu.
func (r *Registry) armTurnLocked(rt *Runtime) time.Time {
	rt.turnEpoch++
	epoch := rt.turnEpoch
	deadline := time.Now().Add(r.cfg.TurnTimeout)
	rt.turnDeadline = deadline
	sessionID := rt.meta.SessionID
	r.alarms.Arm(alarmKey{sessionID: sessionID, kind: alarmTurn}, r.cfg.TurnTimeout, func() {
		r.onTurnTimeout(sessionID, epoch)
	})
	return deadline
}

func (r *Registry) get(sessionID string) *Runtime {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[sessionID]
}

// Buffer returns the live session's event stream, or nil.
func (r *Registry) Buffer(sessionID string) *events.Buffer {
	rt := r.get(sessionID)
	if rt == nil {
		return nil
	}
	return rt.buffer
}

func (r *Registry) ParticipantIn(sessionID, participantID string) bool {
	rt := r.get(sessionID)
	if rt == nil {
		return false
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	for _, p := range rt.engine.State.Participants {
		if p.ID == participantID {
			return true
		}
	}
	return false
}

// FindByPlayer returns the id of the live session holding the participant.
func (r *Registry) FindByPlayer(participantID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rt := r.byPlayer[participantID]
	if rt == nil {
		return "", false
	}
	return rt.meta.SessionID, true
}

func (r *Registry) InLiveSession(participantID string) bool {
	_, ok := r.FindByPlayer(participantID)
	return ok
}

// Live is the number of sessions currently running in this process.
func (r *Registry) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// View is the on-demand projection of a live session.
type View struct {
	game.Snapshot
	GameType     string `json:"game_type"`
	Status       string `json:"status"`
	Reason       string `json:"reason,omitempty"`
	StakeCC      int64  `json:"stake_cc"`
	PrizePoolCC  int64  `json:"prize_pool_cc"`
	TurnDeadline int64  `json:"turn_deadline_ts,omitempty"`
}

func (r *Registry) Snapshot(sessionID string) (*View, error) {
	rt := r.get(sessionID)
	if rt == nil {
		return nil, ErrSessionNotFound
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	v := &View{
		Snapshot:    rt.engine.State.Snapshot(),
		GameType:    rt.meta.GameType,
		Status:      rt.status,
		Reason:      rt.reason,
		StakeCC:     rt.meta.StakeCC,
		PrizePoolCC: rt.meta.PrizePoolCC,
	}
	if rt.status == StatusPlaying && !rt.turnDeadline.IsZero() {
		v.TurnDeadline = rt.turnDeadline.UnixMilli()
	}
	return v, nil
}
