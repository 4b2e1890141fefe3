package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"pairduel/internal/config"
)

var (
	mu     sync.Mutex
	writer io.Writer = os.Stdout
)

// Init configures the global zerolog logger from cfg. Safe to call more than
// once; the last call wins.
func Init(cfg config.LogConfig) {
	mu.Lock()
	defer mu.Unlock()

	level := zerolog.InfoLevel
	if parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level))); err == nil && cfg.Level != "" {
		level = parsed
	}
	zerolog.SetGlobalLevel(level)

	writer = os.Stdout
	if cfg.File != "" {
		if fw, err := newSizeLimitedWriter(cfg.File, cfg.MaxMB); err == nil {
			writer = io.MultiWriter(os.Stdout, fw)
		}
	}

	out := writer
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: writer}
	}

	logger := zerolog.New(out).With().Timestamp().Logger()
	if cfg.SampleEvery > 1 {
		logger = logger.Sample(&zerolog.BasicSampler{N: uint32(cfg.SampleEvery)})
	}
	log.Logger = logger
}

// Writer returns the destination Init configured, for collaborators that
// bypass zerolog (the HTTP request logger writes slog JSON lines here).
func Writer() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	return writer
}
