package config

import "github.com/caarlos0/env/v11"

type ServerConfig struct {
	PostgresDSN string `env:"POSTGRES_DSN,required,notEmpty"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`

	AdminAPIKey string `env:"ADMIN_API_KEY"`

	// StartingBalanceCC is credited to every freshly registered player so the
	// demo economy can run without an external deposit flow.
	StartingBalanceCC int64 `env:"STARTING_BALANCE_CC" envDefault:"100000"`
	SeedDemoPlayers   bool  `env:"SEED_DEMO_PLAYERS" envDefault:"false"`
}

func LoadServer() (ServerConfig, error) {
	var cfg ServerConfig
	err := env.Parse(&cfg)
	return cfg, err
}
