// Package capture runs the external flow-capture engine for time-boxed
// windows. The engine itself (packet sniffing, flow feature extraction) is an
// external capability; this adapter only owns process lifetime and the flush
// at the end of each window.
package capture

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultFlushGrace is how long a stopped capture process gets to flush its
// buffered flows before it is killed.
const DefaultFlushGrace = 10 * time.Second

// CICFlowCapturer drives a cicflowmeter-compatible binary: started per
// cycle, interrupted after the capture window, given a grace period to flush
// incomplete flows to the output CSV.
type CICFlowCapturer struct {
	Binary     string
	Interface  string
	FlushGrace time.Duration
}

func NewCICFlowCapturer(binary, iface string) *CICFlowCapturer {
	if binary == "" {
		binary = "cicflowmeter"
	}
	return &CICFlowCapturer{
		Binary:     binary,
		Interface:  iface,
		FlushGrace: DefaultFlushGrace,
	}
}

// Capture records traffic on the configured interface for the given duration
// and writes per-flow features to outPath. Cancelling ctx ends the window
// early; either way the engine is interrupted, not killed, so it flushes
// buffered flows before exiting.
func (c *CICFlowCapturer) Capture(ctx context.Context, outPath string, duration time.Duration) error {
	cmd := exec.Command(c.Binary, "-i", c.Interface, "-c", outPath)
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start capture engine: %w", err)
	}

	log.Debug().
		Str("binary", c.Binary).
		Str("iface", c.Interface).
		Str("out", outPath).
		Dur("duration", duration).
		Msg("Capture engine started")

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case err := <-done:
		// The engine exiting before the window ends is a capture failure
		// even on exit status 0; the window was cut short.
		return fmt.Errorf("capture engine exited early: %w", coalesce(err))
	case <-ctx.Done():
	case <-timer.C:
	}

	// Interrupt triggers the engine's own flow flush on shutdown.
	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		_ = cmd.Process.Kill()
		<-done
		return fmt.Errorf("interrupt capture engine: %w", err)
	}

	grace := c.FlushGrace
	if grace <= 0 {
		grace = DefaultFlushGrace
	}
	select {
	case <-done:
	case <-time.After(grace):
		log.Warn().Str("binary", c.Binary).Msg("Capture engine ignored interrupt, killing")
		_ = cmd.Process.Kill()
		<-done
	}
	return nil
}

func coalesce(err error) error {
	if err == nil {
		return fmt.Errorf("exited with status 0")
	}
	return err
}
