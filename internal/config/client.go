package config

import "github.com/caarlos0/env/v11"

// ClientConfig configures cmd/sim-client.
type ClientConfig struct {
	BaseURL  string `env:"BASE_URL" envDefault:"http://localhost:8080"`
	Players  int    `env:"SIM_PLAYERS" envDefault:"1"`
	GameType string `env:"SIM_GAME_TYPE" envDefault:"memory"`
	StakeCC  int64  `env:"SIM_STAKE_CC" envDefault:"1000"`
	// Rounds is the number of sessions each simulated player finishes before
	// exiting; 0 keeps playing until interrupted.
	Rounds int `env:"SIM_ROUNDS" envDefault:"1"`
}

func LoadClient() (ClientConfig, error) {
	var cfg ClientConfig
	err := env.Parse(&cfg)
	return cfg, err
}
