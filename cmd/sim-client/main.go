package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"pairduel/internal/config"
	"pairduel/internal/logging"
)

const (
	matchWaitLimit   = 2 * time.Minute
	streamRetryLimit = 3
	flipPacing       = 300 * time.Millisecond
)

var errQueueTimeout = errors.New("queue timed out")

type registerResponse struct {
	PlayerID  string `json:"player_id"`
	APIKey    string `json:"api_key"`
	BalanceCC int64  `json:"balance_cc"`
}

type balanceResponse struct {
	BalanceCC int64 `json:"balance_cc"`
}

// streamEvent is the envelope every data line carries; the id and event lines
// repeat what is already inside it.
type streamEvent struct {
	EventID string          `json:"event_id"`
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data"`
}

type matchedPayload struct {
	SessionID string `json:"session_id"`
	StakeCC   int64  `json:"stake_cc"`
	StreamURL string `json:"stream_url"`
}

type endedPayload struct {
	Status   string `json:"status"`
	Reason   string `json:"reason"`
	WinnerID string `json:"winner_id"`
	Draw     bool   `json:"draw"`
}

type cardView struct {
	Position int  `json:"position"`
	Flipped  bool `json:"flipped"`
	Matched  bool `json:"matched"`
}

type sessionView struct {
	Status        string     `json:"status"`
	CurrentTurnID string     `json:"current_turn_id"`
	Evaluating    bool       `json:"evaluating"`
	Cards         []cardView `json:"cards"`
}

type selectResponse struct {
	Accepted bool   `json:"accepted"`
	Symbol   string `json:"symbol"`
	Ordinal  int    `json:"ordinal"`
	Reason   string `json:"reason"`
}

func main() {
	_ = godotenv.Load()
	logCfg, err := config.LoadLog()
	if err != nil {
		panic(err)
	}
	logging.Init(logCfg)
	cfg, err := config.LoadClient()
	if err != nil {
		log.Fatal().Err(err).Msg("load config failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("base_url", cfg.BaseURL).Int("players", cfg.Players).
		Int("rounds", cfg.Rounds).Msg("sim client starting")

	var wg sync.WaitGroup
	for i := 0; i < cfg.Players; i++ {
		wg.Add(1)
		go func(seat int) {
			defer wg.Done()
			runPlayer(ctx, cfg, seat)
		}(i)
	}
	wg.Wait()
}

func runPlayer(ctx context.Context, cfg config.ClientConfig, seat int) {
	c := newClient(cfg.BaseURL, time.Now().UnixNano()+int64(seat))
	name := fmt.Sprintf("sim-%d-%s", seat, uuid.NewString()[:8])

	reg, err := c.register(ctx, name)
	if err != nil {
		log.Error().Err(err).Str("name", name).Msg("registration failed")
		return
	}
	c.logger = log.With().Str("player_id", reg.PlayerID).Str("name", name).Logger()
	c.logger.Info().Int64("balance_cc", reg.BalanceCC).Msg("registered")

	for round := 0; cfg.Rounds == 0 || round < cfg.Rounds; round++ {
		if ctx.Err() != nil {
			return
		}
		if err := c.playOnce(ctx, cfg); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn().Err(err).Int("round", round).Msg("round failed")
			sleepJitter(ctx, c.rnd, 2*time.Second)
		}
	}

	var bal balanceResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/balance", nil, &bal); err == nil {
		c.logger.Info().Int64("balance_cc", bal.BalanceCC).Msg("sim player done")
	}
}

type client struct {
	base     string
	http     *http.Client
	stream   *http.Client
	rnd      *rand.Rand
	apiKey   string
	playerID string
	logger   zerolog.Logger
}

func newClient(base string, seed int64) *client {
	return &client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 10 * time.Second},
		// no timeout: event streams outlive any sane request deadline
		stream: &http.Client{},
		rnd:    rand.New(rand.NewSource(seed)),
		logger: log.Logger,
	}
}

func (c *client) register(ctx context.Context, name string) (registerResponse, error) {
	var out registerResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/register", map[string]any{"display_name": name}, &out)
	if err == nil {
		c.apiKey = out.APIKey
		c.playerID = out.PlayerID
	}
	return out, err
}

// playOnce runs one queue-to-settlement cycle. A queue timeout is a normal
// outcome: the server already refunded the stake, so the next round rejoins.
func (c *client) playOnce(ctx context.Context, cfg config.ClientConfig) error {
	if err := c.joinQueue(ctx, cfg); err != nil {
		return err
	}
	c.logger.Info().Int64("stake_cc", cfg.StakeCC).Str("game_type", cfg.GameType).Msg("queued")

	m, err := c.awaitMatch(ctx)
	if err != nil {
		if errors.Is(err, errQueueTimeout) {
			c.logger.Info().Msg("queue timed out, stake refunded")
			return nil
		}
		c.leaveQueueQuietly()
		return err
	}
	c.logger.Info().Str("session_id", m.SessionID).Int64("stake_cc", m.StakeCC).Msg("matched")
	return c.playSession(ctx, m)
}

func (c *client) joinQueue(ctx context.Context, cfg config.ClientConfig) error {
	err := c.doJSON(ctx, http.MethodPost, "/api/queue", map[string]any{
		"game_type":    cfg.GameType,
		"player_count": 2,
		"stake_cc":     cfg.StakeCC,
	}, nil)
	if apiCode(err) == "already_queued" {
		return nil
	}
	return err
}

// leaveQueueQuietly runs on a fresh context: the caller's may already be
// cancelled and the escrowed stake should still come back.
func (c *client) leaveQueueQuietly() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = c.doJSON(ctx, http.MethodDelete, "/api/queue", nil, nil)
}

func (c *client) awaitMatch(ctx context.Context) (matchedPayload, error) {
	ctx, cancel := context.WithTimeout(ctx, matchWaitLimit)
	defer cancel()
	var m matchedPayload
	err := c.watchStream(ctx, c.base+"/api/lobby/events", func(ev streamEvent) (bool, error) {
		switch ev.Event {
		case "session_matched":
			return true, json.Unmarshal(ev.Data, &m)
		case "queue_timeout":
			return true, errQueueTimeout
		}
		return false, nil
	})
	return m, err
}

// playSession follows the session stream and treats every event, pings
// included, as a cue to look at the board and maybe flip a card. A stale cue
// costs one snapshot fetch, a lost one is recovered by the next ping.
func (c *client) playSession(ctx context.Context, m matchedPayload) error {
	var end endedPayload
	err := c.watchStream(ctx, c.base+m.StreamURL, func(ev streamEvent) (bool, error) {
		if ev.Event == "session_ended" {
			return true, json.Unmarshal(ev.Data, &end)
		}
		if err := c.maybeFlip(ctx, m.SessionID); err != nil {
			c.logger.Debug().Err(err).Msg("flip attempt failed")
		}
		return false, nil
	})
	if err != nil {
		if apiCode(err) == "session_not_found" {
			// evicted before the stream caught up; the ending already settled
			c.logger.Info().Str("session_id", m.SessionID).Msg("session already settled")
			return nil
		}
		return err
	}

	outcome := "lost"
	switch {
	case end.Draw:
		outcome = "draw"
	case end.WinnerID == c.playerID:
		outcome = "won"
	case end.WinnerID == "":
		outcome = end.Reason
	}
	c.logger.Info().Str("session_id", m.SessionID).Str("status", end.Status).
		Str("reason", end.Reason).Str("outcome", outcome).Msg("session ended")
	return nil
}

// maybeFlip flips a random face-down card when it is our turn. Rejections are
// expected: the turn clock or the opponent can win the race at any time.
func (c *client) maybeFlip(ctx context.Context, sessionID string) error {
	var view sessionView
	if err := c.doJSON(ctx, http.MethodGet, "/api/sessions/"+sessionID, nil, &view); err != nil {
		return err
	}
	if view.Status != "playing" || view.CurrentTurnID != c.playerID || view.Evaluating {
		return nil
	}
	candidates := make([]int, 0, len(view.Cards))
	for _, card := range view.Cards {
		if !card.Flipped && !card.Matched {
			candidates = append(candidates, card.Position)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	sleepJitter(ctx, c.rnd, flipPacing)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	pick := candidates[c.rnd.Intn(len(candidates))]
	var res selectResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/sessions/"+sessionID+"/cards", map[string]any{
		"request_id": uuid.NewString(),
		"position":   pick,
	}, &res)
	switch apiCode(err) {
	case "not_your_turn", "invalid_position", "session_not_found":
		return nil
	}
	if err != nil {
		return err
	}
	if res.Accepted {
		c.logger.Debug().Str("session_id", sessionID).Int("position", pick).
			Str("symbol", res.Symbol).Int("ordinal", res.Ordinal).Msg("card flipped")
	}
	return nil
}

// watchStream follows an event stream, reconnecting with Last-Event-ID when
// the connection drops. handle returns true to stop watching. A definitive
// HTTP rejection is returned as-is; only transport failures are retried.
func (c *client) watchStream(ctx context.Context, url string, handle func(streamEvent) (bool, error)) error {
	lastID := ""
	retries := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		resp, err := c.openStream(ctx, url, lastID)
		if err != nil {
			var ae *apiError
			if errors.As(err, &ae) || retries >= streamRetryLimit {
				return err
			}
			retries++
			sleepJitter(ctx, c.rnd, time.Second)
			continue
		}
		sr := newSSEReader(resp.Body)
		for {
			ev, err := sr.next()
			if err != nil {
				resp.Body.Close()
				if retries >= streamRetryLimit || ctx.Err() != nil {
					return err
				}
				retries++
				sleepJitter(ctx, c.rnd, time.Second)
				break
			}
			if ev.EventID != "" {
				lastID = ev.EventID
			}
			done, err := handle(ev)
			if done || err != nil {
				resp.Body.Close()
				return err
			}
		}
	}
}

func (c *client) openStream(ctx context.Context, url, lastEventID string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "text/event-stream")
	if lastEventID != "" {
		req.Header.Set("Last-Event-ID", lastEventID)
	}
	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, decodeAPIError(resp)
	}
	return resp, nil
}

func (c *client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type apiError struct {
	Status int
	Code   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("api %d %s", e.Status, e.Code)
}

func apiCode(err error) string {
	var ae *apiError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

func decodeAPIError(resp *http.Response) error {
	var e struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&e); err == nil && e.Error != "" {
		return &apiError{Status: resp.StatusCode, Code: e.Error}
	}
	return &apiError{Status: resp.StatusCode, Code: "unexpected_status"}
}

type sseReader struct {
	r *bufio.Reader
}

func newSSEReader(r io.Reader) *sseReader {
	return &sseReader{r: bufio.NewReader(r)}
}

// next reads one event. The data line carries the whole envelope, so the id
// and event lines only frame it.
func (s *sseReader) next() (streamEvent, error) {
	var ev streamEvent
	sawData := false
	for {
		line, err := s.r.ReadString('\n')
		if err != nil {
			return streamEvent{}, err
		}
		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "":
			if sawData {
				return ev, nil
			}
		case strings.HasPrefix(line, "data: "):
			sawData = true
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
				return streamEvent{}, err
			}
		}
	}
}

func sleepJitter(ctx context.Context, rnd *rand.Rand, base time.Duration) {
	d := base/2 + time.Duration(rnd.Int63n(int64(base)))
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
