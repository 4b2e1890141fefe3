package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// MatchConfig drives the admission scheduler. HumanWindow and GuaranteeWindow
// are the wait thresholds for the backfill and guaranteed tiers; QueueTTL is
// the point at which a waiting entry is refunded and dropped.
type MatchConfig struct {
	TickInterval    time.Duration `env:"MATCH_TICK_INTERVAL" envDefault:"1s"`
	HumanWindow     time.Duration `env:"MATCH_HUMAN_WINDOW" envDefault:"10s"`
	GuaranteeWindow time.Duration `env:"MATCH_GUARANTEE_WINDOW" envDefault:"30s"`
	QueueTTL        time.Duration `env:"MATCH_QUEUE_TTL" envDefault:"120s"`

	SettleSweepInterval time.Duration `env:"SETTLE_SWEEP_INTERVAL" envDefault:"30s"`
	SettleSweepGrace    time.Duration `env:"SETTLE_SWEEP_GRACE" envDefault:"10s"`
}

func LoadMatch() (MatchConfig, error) {
	var cfg MatchConfig
	err := env.Parse(&cfg)
	return cfg, err
}
