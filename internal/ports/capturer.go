// Package ports defines the interfaces between the core pipeline and the
// external capabilities it drives: packet capture, flow classification, and
// the detection engine's rule reload channel. Implementations live in
// internal/adapters/.
package ports

import (
	"context"
	"time"
)

// FlowCapturer runs the external capture engine for a bounded duration and
// writes per-flow features to outPath as CSV.
//
// Contract:
//   - MUST block for roughly the requested duration, then flush any
//     buffered-but-incomplete flow data before returning so nothing is lost
//     at the cycle boundary.
//   - MUST honor ctx cancellation by stopping early, still flushing.
//   - An empty or absent output file is not an error; idle networks produce
//     empty captures.
type FlowCapturer interface {
	Capture(ctx context.Context, outPath string, duration time.Duration) error
}
