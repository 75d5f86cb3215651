package app

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nvdai/suriwatch/internal/domain"
)

// EveTailer drains new bytes from the append-only event log into the alert
// store, resuming from the persisted cursor. Idle between invocations; each
// Drain reads from the cursor to end-of-file in one batch.
//
// Drains are serialized by an internal mutex so concurrent invocations never
// process the same byte range twice.
type EveTailer struct {
	logPath string
	cursor  *Cursor
	store   *AlertStore

	mu  sync.Mutex
	now func() time.Time
}

func NewEveTailer(logPath string, cursor *Cursor, store *AlertStore) *EveTailer {
	return &EveTailer{
		logPath: logPath,
		cursor:  cursor,
		store:   store,
		now:     time.Now,
	}
}

// Drain reads the event log from the cursor to end-of-file and stores every
// new, non-duplicate alerting record. Returns the count of newly stored
// alerts.
//
// One malformed line never aborts the batch. The cursor is advanced only
// after the batch is durably written, so a crash in between replays records
// that the fingerprint store then rejects: reprocessing is safe, loss is not
// possible.
func (t *EveTailer) Drain() (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	file, err := os.Open(t.logPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	defer file.Close()

	offset := t.cursor.Load()
	if info, err := file.Stat(); err == nil && offset > info.Size() {
		log.Warn().
			Int64("cursor", offset).
			Int64("size", info.Size()).
			Msg("Event log shrank below cursor, replaying from start")
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return 0, err
	}

	reader := bufio.NewReader(file)
	stored := 0
	skipped := 0
	consumed := offset

	for {
		line, err := reader.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return stored, err
		}
		atEOF := err == io.EOF

		if atEOF && len(line) > 0 {
			// Partial trailing record, still being written. Leave it for the
			// next drain; the cursor must never split a record.
			break
		}
		if len(line) > 0 {
			consumed += int64(len(line))
			if s := t.ingestLine(line); s {
				stored++
			} else {
				skipped++
			}
		}
		if atEOF {
			break
		}
	}

	if stored > 0 {
		if err := t.store.Sync(); err != nil {
			// Keep the old cursor so the batch replays on the next drain.
			log.Warn().Err(err).Msg("Alert history write failed, cursor not advanced")
			return stored, nil
		}
	}
	if consumed != offset {
		if err := t.cursor.Save(consumed); err != nil {
			log.Warn().Err(err).Msg("Cursor write failed, batch will reprocess on restart")
		}
	}

	if stored > 0 || skipped > 0 {
		log.Debug().
			Int("stored", stored).
			Int("skipped", skipped).
			Int64("offset", consumed).
			Msg("Event log drained")
	}
	return stored, nil
}

// Clear empties the alert history and resets the cursor, serialized against
// Drain. Without the shared mutex an in-flight drain could save its
// end-of-batch offset after the reset, stranding that byte range behind a
// stale cursor over an empty history.
func (t *EveTailer) Clear() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.Clear()
}

// ingestLine parses one event log line and records it if it is a new
// alerting event. Returns true when a new alert was stored.
func (t *EveTailer) ingestLine(line []byte) bool {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return false
	}

	event, err := domain.ParseEvent(line)
	if err != nil {
		log.Debug().Err(err).Msg("Skipping malformed event log line")
		return false
	}
	if !event.HasAlert() {
		return false
	}

	fp := domain.FingerprintOf(event)
	if t.store.Contains(fp) {
		return false
	}

	t.store.Record(&domain.StoredAlert{
		Event:       event,
		StoredAt:    t.now(),
		Fingerprint: fp,
	})
	return true
}
