package app

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nvdai/suriwatch/internal/domain"
	"github.com/nvdai/suriwatch/pkg/atomicfile"
)

// DefaultHistoryCap bounds how many alerts are retained before the oldest
// are evicted.
const DefaultHistoryCap = 10000

// AlertStore is the deduplicated, retention-bounded alert history. Insertion
// order is arrival order; once the cap is exceeded the oldest entries are
// evicted FIFO and their fingerprints forgotten with them, so an evicted
// alert is allowed to reappear later. Bounded memory is deliberately favored
// over perfect historical dedup.
//
// The on-disk form is a single JSON array rewritten wholesale on Sync.
type AlertStore struct {
	path   string
	cap    int
	cursor *Cursor

	mu     sync.Mutex
	alerts []*domain.StoredAlert
	seen   map[string]struct{}
}

// NewAlertStore opens the history at path, loading whatever is already
// persisted. An absent, empty, or corrupt file yields an empty history.
func NewAlertStore(path string, capacity int, cursor *Cursor) *AlertStore {
	if capacity <= 0 {
		capacity = DefaultHistoryCap
	}
	s := &AlertStore{
		path:   path,
		cap:    capacity,
		cursor: cursor,
		seen:   make(map[string]struct{}),
	}
	s.load()
	return s
}

func (s *AlertStore) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("file", s.path).Msg("Alert history unreadable, starting empty")
		}
		return
	}
	if len(data) == 0 {
		return
	}

	var alerts []*domain.StoredAlert
	if err := json.Unmarshal(data, &alerts); err != nil {
		log.Warn().Err(err).Str("file", s.path).Msg("Alert history corrupt, starting empty")
		return
	}

	if len(alerts) > s.cap {
		alerts = alerts[len(alerts)-s.cap:]
	}
	s.alerts = alerts
	for _, a := range alerts {
		if a.Fingerprint != "" {
			s.seen[a.Fingerprint] = struct{}{}
		}
	}
	log.Debug().Int("count", len(alerts)).Msg("Alert history loaded")
}

// Contains reports whether an alert with this fingerprint is already stored.
func (s *AlertStore) Contains(fingerprint string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[fingerprint]
	return ok
}

// Record appends an alert and registers its fingerprint, evicting the oldest
// entries once the cap is exceeded. In-memory only; call Sync to persist.
func (s *AlertStore) Record(alert *domain.StoredAlert) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.alerts = append(s.alerts, alert)
	if alert.Fingerprint != "" {
		s.seen[alert.Fingerprint] = struct{}{}
	}

	for len(s.alerts) > s.cap {
		evicted := s.alerts[0]
		s.alerts[0] = nil
		s.alerts = s.alerts[1:]
		// Keep the dedup set consistent with what is actually retained.
		delete(s.seen, evicted.Fingerprint)
	}
}

// Sync rewrites the persisted history wholesale. A write failure is reported
// but the in-memory state stands; restart-time reprocessing is the recovery
// path.
func (s *AlertStore) Sync() error {
	s.mu.Lock()
	alerts := s.alerts
	if alerts == nil {
		alerts = []*domain.StoredAlert{}
	}
	data, err := json.MarshalIndent(alerts, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return atomicfile.WriteFile(s.path, data, 0644)
}

// Recent returns up to limit of the most recently stored alerts, oldest
// first within the returned slice.
func (s *AlertStore) Recent(limit int) []*domain.StoredAlert {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 || limit > len(s.alerts) {
		limit = len(s.alerts)
	}
	out := make([]*domain.StoredAlert, limit)
	copy(out, s.alerts[len(s.alerts)-limit:])
	return out
}

// Len returns the number of retained alerts.
func (s *AlertStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.alerts)
}

// HistoryStats summarizes the retained history.
type HistoryStats struct {
	Total      int            `json:"total"`
	BySeverity map[string]int `json:"by_severity"`
	Recent24h  int            `json:"recent_24h"`
}

// Stats aggregates the retained alerts by severity and counts those stored
// within the last 24 hours.
func (s *AlertStore) Stats() HistoryStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := HistoryStats{
		Total:      len(s.alerts),
		BySeverity: make(map[string]int),
	}
	dayAgo := time.Now().Add(-24 * time.Hour)
	for _, a := range s.alerts {
		stats.BySeverity[a.Severity()]++
		if a.StoredAt.After(dayAgo) {
			stats.Recent24h++
		}
	}
	return stats
}

// Clear empties the history and the fingerprint set, removes the persisted
// document, and resets the cursor, leaving the pipeline exactly as a fresh
// start would. Without the cursor reset, future records would be skipped
// against an empty history.
func (s *AlertStore) Clear() error {
	s.mu.Lock()
	s.alerts = nil
	s.seen = make(map[string]struct{})
	s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	if s.cursor != nil {
		if err := s.cursor.Reset(); err != nil {
			return err
		}
	}
	return nil
}
