package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nvdai/suriwatch/internal/domain"
	"github.com/nvdai/suriwatch/internal/ports"
)

// DefaultCaptureDuration is how long each capture cycle records traffic.
const DefaultCaptureDuration = 30 * time.Second

// CaptureLoopConfig tunes the capture cycle.
type CaptureLoopConfig struct {
	// Duration is the fixed length of each capture window.
	Duration time.Duration
	// CaptureOnly skips classification, leaving capture files for offline use.
	CaptureOnly bool
}

// CaptureLoop drives the timed capture -> classify -> blacklist cycle.
// Each cycle records traffic for a fixed window, flushes the capture, and
// feeds the resulting flows through the classifier; malicious verdicts land
// in the blacklist. The loop runs until its context is cancelled, and a
// failing cycle never takes the loop down with it.
type CaptureLoop struct {
	store      *CaptureStore
	capturer   ports.FlowCapturer
	loader     ports.FlowLoader
	classifier ports.Classifier
	blacklist  *Blacklist
	metrics    ports.MetricsCollector
	runtime    *RuntimeConfig
	config     CaptureLoopConfig

	now func() time.Time
}

func NewCaptureLoop(
	store *CaptureStore,
	capturer ports.FlowCapturer,
	loader ports.FlowLoader,
	classifier ports.Classifier,
	blacklist *Blacklist,
	config CaptureLoopConfig,
) *CaptureLoop {
	if config.Duration <= 0 {
		config.Duration = DefaultCaptureDuration
	}
	return &CaptureLoop{
		store:      store,
		capturer:   capturer,
		loader:     loader,
		classifier: classifier,
		blacklist:  blacklist,
		config:     config,
		now:        time.Now,
	}
}

// SetMetrics attaches an optional metrics collector.
func (l *CaptureLoop) SetMetrics(m ports.MetricsCollector) {
	l.metrics = m
}

// SetRuntime attaches hot-reloadable tunables; when present they override
// the static CaptureOnly setting on each cycle.
func (l *CaptureLoop) SetRuntime(r *RuntimeConfig) {
	l.runtime = r
}

func (l *CaptureLoop) captureOnly() bool {
	if l.runtime != nil {
		return l.runtime.Current().CaptureOnly
	}
	return l.config.CaptureOnly
}

// Run loops capture cycles until ctx is cancelled. Cancellation during a
// cycle stops the capture early but still lets it flush, so buffered flow
// data survives shutdown.
func (l *CaptureLoop) Run(ctx context.Context) {
	log.Info().
		Dur("duration", l.config.Duration).
		Bool("capture_only", l.config.CaptureOnly).
		Msg("Capture loop started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Capture loop stopped")
			return
		default:
		}

		if err := l.Cycle(ctx); err != nil {
			l.observeCycle("error")
			log.Error().Err(err).Msg("Capture cycle failed, continuing")
		}
	}
}

// Cycle runs one capture window end to end.
func (l *CaptureLoop) Cycle(ctx context.Context) error {
	start := l.now()
	name := domain.CaptureFileName(start)
	path := l.store.TransientPath(name)
	cycleID := uuid.NewString()

	log.Info().
		Str("cycle", cycleID).
		Str("file", name).
		Dur("duration", l.config.Duration).
		Msg("Capture cycle started")

	if err := l.capturer.Capture(ctx, path, l.config.Duration); err != nil {
		return fmt.Errorf("capture: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		// Expected during idle network periods, not a failure.
		log.Warn().Str("cycle", cycleID).Str("file", name).
			Msg("Capture output missing or empty, skipping classification")
		l.observeCycle("empty")
		return nil
	}

	if l.captureOnly() {
		log.Info().Str("cycle", cycleID).Str("file", name).
			Msg("Capture-only mode, skipping classification")
		l.observeCycle("capture_only")
		return nil
	}

	rows, err := l.loader(path)
	if err != nil {
		return fmt.Errorf("load flows from %s: %w", name, err)
	}
	if len(rows) == 0 {
		log.Warn().Str("cycle", cycleID).Str("file", name).
			Msg("Capture has no parseable rows, skipping classification")
		l.observeCycle("empty")
		return nil
	}

	verdicts, err := l.classifier.Classify(ctx, rows)
	if err != nil {
		return fmt.Errorf("classify %s: %w", name, err)
	}

	malicious := 0
	for i, class := range verdicts {
		if i >= len(rows) {
			break
		}
		if !class.Malicious() {
			continue
		}
		malicious++

		addr := rows[i].SrcIP
		log.Warn().
			Str("cycle", cycleID).
			Str("class", string(class)).
			Str("src_ip", addr).
			Msg("Malicious traffic detected")

		added, err := l.blacklist.Add(ctx, addr)
		if err != nil {
			log.Error().Err(err).Str("addr", addr).Msg("Blacklist insertion failed")
			continue
		}
		if added && l.metrics != nil {
			l.metrics.BlacklistInsert()
		}
	}

	log.Info().
		Str("cycle", cycleID).
		Int("flows", len(rows)).
		Int("malicious", malicious).
		Msg("Capture cycle classified")
	l.observeCycle("classified")
	return nil
}

func (l *CaptureLoop) observeCycle(result string) {
	if l.metrics != nil {
		l.metrics.CycleCompleted(result)
	}
}
