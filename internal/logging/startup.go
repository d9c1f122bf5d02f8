package logging

import (
	"runtime"
	"time"

	"github.com/rs/zerolog/log"
)

// StartupLogger collects binary identity and configuration, then emits a
// single structured zerolog event summarising the startup state.
type StartupLogger struct {
	name         string
	initDuration time.Duration
	config       map[string]string
}

// NewStartupLogger creates a StartupLogger for the given binary name
// (e.g. "edit-web", "edit-cli").
func NewStartupLogger(name string) *StartupLogger {
	return &StartupLogger{
		name:   name,
		config: make(map[string]string),
	}
}

// Config registers a configuration value resolved at startup.
func (s *StartupLogger) Config(key, value string) *StartupLogger {
	s.config[key] = value
	return s
}

// InitDuration sets the measured startup duration.
func (s *StartupLogger) InitDuration(d time.Duration) *StartupLogger {
	s.initDuration = d
	return s
}

// Emit writes the collected startup state as one structured log event.
func (s *StartupLogger) Emit() {
	ev := log.Info().
		Str("binary", s.name).
		Str("go_version", runtime.Version()).
		Str("os_arch", runtime.GOOS+"/"+runtime.GOARCH)

	if s.initDuration > 0 {
		ev = ev.Dur("init_duration", s.initDuration)
	}
	for k, v := range s.config {
		ev = ev.Str("cfg_"+k, v)
	}
	ev.Msg("Startup complete")
}
