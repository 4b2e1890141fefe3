package matchmaker

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"pairduel/internal/config"
	"pairduel/internal/events"
	"pairduel/internal/session"
	"pairduel/internal/store"
)

type promotion struct {
	sess     store.GameSession
	parts    []store.SessionParticipant
	entryIDs []string
}

type fakeStore struct {
	mu         sync.Mutex
	entries    []store.QueueEntry
	players    map[string]store.Player
	promoted   []promotion
	promoteErr error
	listCalls  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{players: map[string]store.Player{}}
}

func (f *fakeStore) addPlayer(id, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.players[id] = store.Player{ID: id, DisplayName: name}
}

func (f *fakeStore) addEntry(id, participantID, gameType string, playerCount int, stakeCC int64, age time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, store.QueueEntry{
		ID:            id,
		ParticipantID: participantID,
		GameType:      gameType,
		PlayerCount:   playerCount,
		StakeCC:       stakeCC,
		EnqueuedAt:    time.Now().Add(-age),
	})
}

func (f *fakeStore) hasEntry(participantID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.ParticipantID == participantID {
			return true
		}
	}
	return false
}

func (f *fakeStore) promotions() []promotion {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]promotion(nil), f.promoted...)
}

func (f *fakeStore) InsertQueueEntry(ctx context.Context, e store.QueueEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, have := range f.entries {
		if have.ParticipantID == e.ParticipantID {
			return store.ErrAlreadyQueued
		}
	}
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeStore) DeleteQueueEntry(ctx context.Context, participantID string) (*store.QueueEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, e := range f.entries {
		if e.ParticipantID == participantID {
			f.entries = append(f.entries[:i], f.entries[i+1:]...)
			return &e, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) GetQueueEntry(ctx context.Context, participantID string) (*store.QueueEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.ParticipantID == participantID {
			out := e
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) ListQueueEntries(ctx context.Context) ([]store.QueueEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	out := append([]store.QueueEntry(nil), f.entries...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].EnqueuedAt.Before(out[j].EnqueuedAt) })
	return out, nil
}

func (f *fakeStore) PromoteQueueEntries(ctx context.Context, sess store.GameSession, parts []store.SessionParticipant, entryIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.promoteErr != nil {
		err := f.promoteErr
		f.promoteErr = nil
		return err
	}
	for _, id := range entryIDs {
		found := false
		for _, e := range f.entries {
			if e.ID == id {
				found = true
				break
			}
		}
		if !found {
			return store.ErrPromotionConflict
		}
	}
	kept := f.entries[:0]
	for _, e := range f.entries {
		gone := false
		for _, id := range entryIDs {
			if e.ID == id {
				gone = true
				break
			}
		}
		if !gone {
			kept = append(kept, e)
		}
	}
	f.entries = kept
	f.promoted = append(f.promoted, promotion{sess: sess, parts: parts, entryIDs: entryIDs})
	return nil
}

func (f *fakeStore) GetPlayer(ctx context.Context, id string) (*store.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.players[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

type walletCall struct {
	op      string
	ownerID string
	ref     string
	amount  int64
}

type fakeWallet struct {
	mu        sync.Mutex
	calls     []walletCall
	escrowErr error
	stakeErr  error
}

func (f *fakeWallet) record(op, ownerID, ref string, amount int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, walletCall{op: op, ownerID: ownerID, ref: ref, amount: amount})
}

func (f *fakeWallet) ops(op string) []walletCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []walletCall{}
	for _, c := range f.calls {
		if c.op == op {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeWallet) EscrowStake(ctx context.Context, ownerID, entryID string, amountCC int64) (int64, error) {
	f.mu.Lock()
	err := f.escrowErr
	f.mu.Unlock()
	if err != nil {
		return 0, err
	}
	f.record("escrow", ownerID, entryID, amountCC)
	return amountCC, nil
}

func (f *fakeWallet) RefundEscrow(ctx context.Context, ownerID, entryID string, amountCC int64) (int64, error) {
	f.record("refund_escrow", ownerID, entryID, amountCC)
	return amountCC, nil
}

func (f *fakeWallet) StakeSession(ctx context.Context, ownerID, sessionID string, amountCC int64) (int64, error) {
	f.mu.Lock()
	err := f.stakeErr
	f.mu.Unlock()
	if err != nil {
		return 0, err
	}
	f.record("stake", ownerID, sessionID, amountCC)
	return amountCC, nil
}

func (f *fakeWallet) RefundSessionStake(ctx context.Context, ownerID, sessionID string, amountCC int64) (int64, error) {
	f.record("refund_stake", ownerID, sessionID, amountCC)
	return amountCC, nil
}

type fakePool struct {
	mu           sync.Mutex
	bench        []*store.BotProfile
	acquireErr   error
	acquireCalls int
	released     []string
	recent       []string
}

func (f *fakePool) stock(id, archetype string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bench = append(f.bench, &store.BotProfile{ID: id, DisplayName: "Bot " + id, Archetype: archetype, Status: "idle"})
}

func (f *fakePool) Acquire(ctx context.Context, gameType string, stakeCC int64, excluding []string) (*store.BotProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acquireCalls++
	if f.acquireErr != nil {
		return nil, f.acquireErr
	}
	if len(f.bench) == 0 {
		return nil, errors.New("no idle identity")
	}
	b := f.bench[0]
	f.bench = f.bench[1:]
	return b, nil
}

func (f *fakePool) Release(ctx context.Context, botID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, botID)
	return nil
}

func (f *fakePool) RecentOpponents(ctx context.Context, humanIDs []string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.recent...)
}

type startedSession struct {
	sess  store.GameSession
	seats []session.Seat
}

type fakeStarter struct {
	mu       sync.Mutex
	live     map[string]string
	started  []startedSession
	startErr error
}

func newFakeStarter() *fakeStarter {
	return &fakeStarter{live: map[string]string{}}
}

func (f *fakeStarter) StartSession(ctx context.Context, sess store.GameSession, seats []session.Seat) (*session.Runtime, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		err := f.startErr
		f.startErr = nil
		return nil, err
	}
	f.started = append(f.started, startedSession{sess: sess, seats: seats})
	for _, seat := range seats {
		f.live[seat.ParticipantID] = sess.ID
	}
	return nil, nil
}

func (f *fakeStarter) InLiveSession(participantID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.live[participantID]
	return ok
}

func (f *fakeStarter) FindByPlayer(participantID string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.live[participantID]
	return id, ok
}

func (f *fakeStarter) sessions() []startedSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]startedSession(nil), f.started...)
}

func newTestService(t *testing.T) (*Service, *fakeStore, *fakeWallet, *fakePool, *fakeStarter) {
	t.Helper()
	st := newFakeStore()
	w := &fakeWallet{}
	pool := &fakePool{}
	starter := newFakeStarter()
	cfg := config.MatchConfig{
		TickInterval:    time.Second,
		HumanWindow:     10 * time.Second,
		GuaranteeWindow: 30 * time.Second,
		QueueTTL:        120 * time.Second,
	}
	svc := New(st, w, pool, starter, cfg, config.SessionConfig{Pairs: 8, Lifelines: 2})
	t.Cleanup(svc.Lobby().Close)
	return svc, st, w, pool, starter
}

func lobbyEvents(svc *Service, event, participantID string) []events.StreamEvent {
	out := []events.StreamEvent{}
	for _, ev := range svc.Lobby().Buffer().ReplayAfter("") {
		if ev.Event == event && ev.StreamID == participantID {
			out = append(out, ev)
		}
	}
	return out
}
