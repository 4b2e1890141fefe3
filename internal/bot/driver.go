package bot

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"pairduel/internal/events"
	"pairduel/internal/session"
)

// Driver animates synthetic seats. It is the session registry's lifecycle
// observer: when a session starts it spawns one goroutine per synthetic
// participant, each consuming the session's event stream and flipping cards
// through the same selection path human clients use.
type Driver struct {
	registry *session.Registry
}

func NewDriver(registry *session.Registry) *Driver {
	return &Driver{registry: registry}
}

func (d *Driver) OnSessionStarted(meta session.Meta, buf *events.Buffer) {
	for pid, archetype := range meta.Synthetic {
		strat, ok := StrategyFor(Archetype(archetype))
		if !ok {
			log.Error().
				Str("session_id", meta.SessionID).
				Str("participant_id", pid).
				Str("archetype", archetype).
				Msg("unknown archetype, seat will idle")
			continue
		}
		ch := buf.Subscribe()
		metricSeatsActive.Add(1)
		go d.run(meta.SessionID, pid, strat, ch, buf)
	}
}

// OnSessionEnded is a no-op: the registry closes the session's event buffer
// on finish, which unwinds every seat goroutine through its channel.
func (d *Driver) OnSessionEnded(sessionID string) {}

func (d *Driver) run(sessionID, pid string, strat Strategy, ch chan events.StreamEvent, buf *events.Buffer) {
	defer func() {
		buf.Unsubscribe(ch)
		metricSeatsActive.Add(-1)
	}()
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))

	var mind *Mind
	for ev := range ch {
		switch ev.Event {
		case session.EventSessionStarted:
			p, ok := ev.Data.(session.SessionStartedPayload)
			if !ok {
				continue
			}
			mind = NewMind(strat, p.Pairs, rnd)
			if p.FirstTurnID == pid {
				d.playTurn(sessionID, pid, mind)
			}
		case session.EventCardRevealed:
			p, ok := ev.Data.(session.CardRevealedPayload)
			if !ok || mind == nil {
				continue
			}
			mind.ObserveReveal(p.Position, p.Symbol)
		case session.EventCardsMatched:
			p, ok := ev.Data.(session.CardsMatchedPayload)
			if !ok || mind == nil {
				continue
			}
			mind.ObserveMatch(p.Positions)
		case session.EventTurnChanged:
			p, ok := ev.Data.(session.TurnChangedPayload)
			if !ok || mind == nil {
				continue
			}
			if p.ParticipantID == pid {
				d.playTurn(sessionID, pid, mind)
			}
		case session.EventSessionEnded:
			return
		}
	}
}

// playTurn makes both flips of one turn. Every read goes through the public
// snapshot and every write through SelectCard, so the driver can never act on
// information a client could not see.
func (d *Driver) playTurn(sessionID, pid string, mind *Mind) {
	mind.BeginTurn()
	time.Sleep(mind.ThinkDelay())

	view, err := d.registry.Snapshot(sessionID)
	if err != nil || view.Status != session.StatusPlaying || view.CurrentTurnID != pid {
		return
	}
	first, ok := mind.FirstPick(selectablePositions(view))
	if !ok {
		return
	}
	res, err := d.registry.SelectCard(context.Background(), session.SelectRequest{
		SessionID:     sessionID,
		ParticipantID: pid,
		RequestID:     uuid.NewString(),
		Position:      first,
	})
	if err != nil {
		metricTurnsAbandoned.Add(1)
		return
	}
	mind.ObserveReveal(res.Position, res.Symbol)

	time.Sleep(mind.ThinkDelay())
	view, err = d.registry.Snapshot(sessionID)
	if err != nil || view.Status != session.StatusPlaying || view.CurrentTurnID != pid {
		return
	}
	second, ok := mind.SecondPick(res.Position, res.Symbol, selectablePositions(view), view.Pairs-view.PairsLeft)
	if !ok {
		return
	}
	if _, err := d.registry.SelectCard(context.Background(), session.SelectRequest{
		SessionID:     sessionID,
		ParticipantID: pid,
		RequestID:     uuid.NewString(),
		Position:      second,
	}); err != nil {
		metricTurnsAbandoned.Add(1)
		return
	}
	metricTurnsPlayed.Add(1)
}

func selectablePositions(v *session.View) []int {
	out := make([]int, 0, len(v.Cards))
	for _, c := range v.Cards {
		if !c.Flipped && !c.Matched {
			out = append(out, c.Position)
		}
	}
	return out
}
