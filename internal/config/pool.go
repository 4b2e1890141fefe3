package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type PoolConfig struct {
	Cooldown     time.Duration `env:"POOL_COOLDOWN" envDefault:"5m"`
	MinIdle      int           `env:"POOL_MIN_IDLE" envDefault:"4"`
	SharkPercent int           `env:"POOL_SHARK_PERCENT" envDefault:"70"`

	// RecentWindow bounds the lookback used to avoid re-deploying an identity
	// against a human it faced recently.
	RecentWindow time.Duration `env:"POOL_RECENT_WINDOW" envDefault:"30m"`
}

func LoadPool() (PoolConfig, error) {
	var cfg PoolConfig
	err := env.Parse(&cfg)
	return cfg, err
}
