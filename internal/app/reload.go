package app

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Tunables are the settings safe to change while the pipeline runs.
type Tunables struct {
	// MaxAge is the transient capture retention window.
	MaxAge time.Duration
	// CaptureOnly skips classification for subsequent cycles.
	CaptureOnly bool
	// FallbackIP replaces unknown or wildcard flow sources.
	FallbackIP string
}

// RuntimeConfig publishes hot-reloadable tunables through an atomic pointer,
// so readers on the capture and query paths never take a lock. A config file
// change that fails validation is rejected and the current values stand.
type RuntimeConfig struct {
	current atomic.Pointer[Tunables]

	// mu serializes reloads; readers go through the pointer alone.
	mu sync.Mutex
}

// NewRuntimeConfig seeds the runtime tunables.
func NewRuntimeConfig(initial Tunables) *RuntimeConfig {
	r := &RuntimeConfig{}
	r.current.Store(&initial)
	return r
}

// Current returns the live tunables.
func (r *RuntimeConfig) Current() Tunables {
	return *r.current.Load()
}

// StartWatching re-reads tunables whenever the config file changes.
func (r *RuntimeConfig) StartWatching() {
	viper.OnConfigChange(func(e fsnotify.Event) {
		log.Info().
			Str("file", e.Name).
			Str("op", e.Op.String()).
			Msg("Config file changed, reloading tunables")
		r.reload()
	})
	viper.WatchConfig()
	log.Debug().Msg("Config hot-reload watching started")
}

func (r *RuntimeConfig) reload() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := viper.ReadInConfig(); err != nil {
		log.Error().Err(err).Msg("Failed to re-read config, keeping current tunables")
		return
	}

	next := TunablesFromViper()
	if err := next.Validate(); err != nil {
		log.Error().Err(err).Msg("Invalid tunables, rejecting reload")
		return
	}

	r.current.Store(&next)
	log.Info().
		Dur("max_age", next.MaxAge).
		Bool("capture_only", next.CaptureOnly).
		Msg("Tunables hot-reloaded")
}

// TunablesFromViper reads the hot-reloadable subset of the config surface.
func TunablesFromViper() Tunables {
	return Tunables{
		MaxAge:      time.Duration(viper.GetInt("capture.max_age_minutes")) * time.Minute,
		CaptureOnly: viper.GetBool("capture.capture_only"),
		FallbackIP:  viper.GetString("classify.fallback_src_ip"),
	}
}

// Validate rejects tunable values the pipeline cannot run with.
func (t Tunables) Validate() error {
	if t.MaxAge < time.Minute {
		return fmt.Errorf("capture.max_age_minutes must be at least 1, got %v", t.MaxAge)
	}
	if t.FallbackIP == "" {
		return fmt.Errorf("classify.fallback_src_ip must not be empty")
	}
	return nil
}
