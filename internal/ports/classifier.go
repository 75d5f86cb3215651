package ports

import (
	"context"

	"github.com/nvdai/suriwatch/internal/domain"
)

// Classifier assigns a traffic class to each captured flow.
//
// Implementations wrap the actual model (out of process, out of scope here);
// the pipeline only depends on this contract.
//
// Contract:
//   - MUST return exactly one verdict per input row, in order.
//   - MUST NOT modify the rows.
//   - MUST be safe for concurrent calls.
type Classifier interface {
	Classify(ctx context.Context, rows []domain.FlowRecord) ([]domain.TrafficClass, error)
}

// FlowLoader reads a capture CSV into classifier-ready rows. Missing feature
// columns are zero-filled rather than rejected; unresolvable source
// addresses come back as the configured fallback.
type FlowLoader func(path string) ([]domain.FlowRecord, error)
