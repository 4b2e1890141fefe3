package botpool

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"

	"pairduel/internal/bot"
	"pairduel/internal/config"
	"pairduel/internal/store"
	"pairduel/internal/wallet"
)

// displayNames is the alias pool synthetic identities draw from. Collisions
// are allowed; humans share first names too.
var displayNames = []string{
	"Iris", "Mateo", "Lena", "Ravi", "Sofia", "Dmitri", "Aiko", "Tomas",
	"Freya", "Jonas", "Priya", "Oskar", "Maya", "Elio", "Nadia", "Kofi",
	"Selma", "Arash", "Greta", "Luan", "Zara", "Piotr", "Anya", "Theo",
}

// Pool hands out synthetic identities: idle-first behind a cooldown, creation
// under the archetype ratio when the bench runs dry, balance floated before
// every deployment.
type Pool struct {
	Store  *store.Store
	Wallet *wallet.Service
	cfg    config.PoolConfig
}

func New(st *store.Store, w *wallet.Service, cfg config.PoolConfig) *Pool {
	return &Pool{Store: st, Wallet: w, cfg: cfg}
}

// Acquire claims one identity able to cover stakeCC, skipping everything in
// excluding. An identity is never handed out with a balance below the stake.
func (p *Pool) Acquire(ctx context.Context, gameType string, stakeCC int64, excluding []string) (*store.BotProfile, error) {
	prof, err := p.Store.AcquireIdleBot(ctx, excluding)
	if errors.Is(err, store.ErrNotFound) {
		prof, err = p.create(ctx, "deployed")
	}
	if err != nil {
		return nil, err
	}
	if _, err := p.Wallet.FloatUpTo(ctx, prof.ID, stakeCC); err != nil {
		// Bench it again without cooldown; the next acquire retries the float.
		if relErr := p.Store.ReleaseBot(ctx, prof.ID, time.Now()); relErr != nil {
			log.Error().
				Err(relErr).
				Str("bot_id", prof.ID).
				Msg("benching unfunded identity failed")
		}
		return nil, err
	}
	metricAcquired.Add(1)
	log.Debug().
		Str("bot_id", prof.ID).
		Str("archetype", prof.Archetype).
		Str("game_type", gameType).
		Int64("stake_cc", stakeCC).
		Msg("synthetic identity deployed")
	return prof, nil
}

func (p *Pool) create(ctx context.Context, status string) (*store.BotProfile, error) {
	counts, err := p.Store.CountBotsByArchetype(ctx)
	if err != nil {
		return nil, err
	}
	archetype := p.nextArchetype(counts)
	name := displayNames[rand.Intn(len(displayNames))]
	id, err := p.Store.CreateBotProfile(ctx, name, string(archetype), status)
	if err != nil {
		return nil, err
	}
	if err := p.Store.EnsureAccount(ctx, id, 0); err != nil {
		return nil, err
	}
	metricCreated.Add(1)
	log.Info().
		Str("bot_id", id).
		Str("archetype", string(archetype)).
		Str("display_name", name).
		Msg("synthetic identity created")
	return p.Store.GetBotProfile(ctx, id)
}

// nextArchetype keeps the shark share of the whole roster at or above the
// configured percent.
func (p *Pool) nextArchetype(counts map[string]int) bot.Archetype {
	total := 0
	for _, n := range counts {
		total += n
	}
	sharks := counts[string(bot.ArchetypeShark)]
	if total == 0 || sharks*100 < p.cfg.SharkPercent*(total+1) {
		return bot.ArchetypeShark
	}
	return bot.ArchetypeCasual
}

// Release benches the identity behind the configured cooldown.
func (p *Pool) Release(ctx context.Context, botID string) error {
	if err := p.Store.ReleaseBot(ctx, botID, time.Now().Add(p.cfg.Cooldown)); err != nil {
		return err
	}
	metricReleased.Add(1)
	return nil
}

// ReleaseAll is wired as the session registry's release hook.
func (p *Pool) ReleaseAll(botIDs []string) {
	ctx := context.Background()
	for _, id := range botIDs {
		if err := p.Release(ctx, id); err != nil {
			log.Error().Err(err).Str("bot_id", id).Msg("releasing identity failed")
		}
	}
}

// Seed grows the roster to MinIdle identities at the configured ratio. Runs
// at startup; an existing roster is left alone.
func (p *Pool) Seed(ctx context.Context) error {
	counts, err := p.Store.CountBotsByArchetype(ctx)
	if err != nil {
		return err
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	for total < p.cfg.MinIdle {
		if _, err := p.create(ctx, "idle"); err != nil {
			return err
		}
		total++
	}
	return nil
}

// RecentOpponents unions the synthetic identities the given humans faced
// inside the recent window. Acquire skips them so nobody keeps drawing the
// same table companion.
func (p *Pool) RecentOpponents(ctx context.Context, humanIDs []string) []string {
	since := time.Now().Add(-p.cfg.RecentWindow)
	seen := map[string]struct{}{}
	out := []string{}
	for _, id := range humanIDs {
		ops, err := p.Store.RecentSyntheticOpponents(ctx, id, since)
		if err != nil {
			log.Warn().Err(err).Str("participant_id", id).Msg("recent opponent lookup failed")
			continue
		}
		for _, op := range ops {
			if _, dup := seen[op]; dup {
				continue
			}
			seen[op] = struct{}{}
			out = append(out, op)
		}
	}
	return out
}
