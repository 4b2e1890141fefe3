package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type SessionConfig struct {
	Pairs       int `env:"SESSION_PAIRS" envDefault:"8"`
	MatchPoints int `env:"SESSION_MATCH_POINTS" envDefault:"10"`
	Lifelines   int `env:"SESSION_LIFELINES" envDefault:"3"`

	TurnTimeout    time.Duration `env:"SESSION_TURN_TIMEOUT" envDefault:"15s"`
	RevealDelay    time.Duration `env:"SESSION_REVEAL_DELAY" envDefault:"1s"`
	ReconnectGrace time.Duration `env:"SESSION_RECONNECT_GRACE" envDefault:"30s"`

	// FeePercent of the pot is retained by the platform; the winner is paid
	// the remainder.
	FeePercent int `env:"SESSION_FEE_PERCENT" envDefault:"10"`
}

func LoadSession() (SessionConfig, error) {
	var cfg SessionConfig
	err := env.Parse(&cfg)
	return cfg, err
}
