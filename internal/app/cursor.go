// Package app implements the ingestion, deduplication, retention, and
// capture-orchestration pipeline.
package app

import (
	"encoding/json"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/nvdai/suriwatch/pkg/atomicfile"
)

// Cursor persists the byte offset up to which the event log has been
// consumed. The offset is only ever saved at a fully-consumed record
// boundary; EveTailer owns the save-after-process ordering.
type Cursor struct {
	path string
}

type cursorState struct {
	Position int64 `json:"position"`
}

func NewCursor(path string) *Cursor {
	return &Cursor{path: path}
}

// Load returns the persisted offset, or 0 when the cursor file is absent or
// unreadable. A lost cursor means a full replay, which the fingerprint store
// absorbs; it never crashes the pipeline.
func (c *Cursor) Load() int64 {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("file", c.path).Msg("Cursor unreadable, replaying from start")
		}
		return 0
	}

	var state cursorState
	if err := json.Unmarshal(data, &state); err != nil {
		log.Warn().Err(err).Str("file", c.path).Msg("Cursor corrupt, replaying from start")
		return 0
	}
	if state.Position < 0 {
		return 0
	}
	return state.Position
}

// Save durably records the offset. Write-then-rename keeps concurrent
// readers from ever seeing a partial cursor file.
func (c *Cursor) Save(offset int64) error {
	data, err := json.Marshal(cursorState{Position: offset})
	if err != nil {
		return err
	}
	return atomicfile.WriteFile(c.path, data, 0644)
}

// Reset removes the persisted cursor so the next drain starts from offset 0.
func (c *Cursor) Reset() error {
	err := os.Remove(c.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
