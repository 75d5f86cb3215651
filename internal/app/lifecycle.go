package app

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"

	"github.com/nvdai/suriwatch/internal/domain"
)

// DefaultMaxAge is how long transient capture files live before cleanup.
const DefaultMaxAge = 10 * time.Minute

const headCacheSize = 64

// CaptureStore manages capture CSV files across two locations: the transient
// directory, whose files are deleted once they age out, and the preserved
// directory, whose files are kept until explicitly removed.
//
// Listing and deletion are decoupled: List hides expired transient files
// without touching them, Cleanup actually deletes.
type CaptureStore struct {
	csvDir   string
	savedDir string
	now      func() time.Time

	// Capture files never change after the cycle that wrote them ends, so
	// head rows are cached keyed by (name, mtime, size, limit).
	headCache *lru.Cache[headKey, []map[string]string]
}

type headKey struct {
	path  string
	mtime int64
	size  int64
	limit int
}

// NewCaptureStore creates both directories if needed. Failure here is the
// one startup error worth dying for; nothing downstream works without the
// output directories.
func NewCaptureStore(csvDir, savedDir string) (*CaptureStore, error) {
	if err := os.MkdirAll(csvDir, 0755); err != nil {
		return nil, fmt.Errorf("create capture dir: %w", err)
	}
	if err := os.MkdirAll(savedDir, 0755); err != nil {
		return nil, fmt.Errorf("create preserved dir: %w", err)
	}

	cache, err := lru.New[headKey, []map[string]string](headCacheSize)
	if err != nil {
		return nil, err
	}

	return &CaptureStore{
		csvDir:    csvDir,
		savedDir:  savedDir,
		now:       time.Now,
		headCache: cache,
	}, nil
}

// TransientPath returns where a capture cycle should write the named file.
func (s *CaptureStore) TransientPath(name string) string {
	return filepath.Join(s.csvDir, name)
}

// List returns capture files newest-first. Transient files older than maxAge
// are excluded (but not deleted); preserved files are always listed when
// includeSaved is set, regardless of age.
func (s *CaptureStore) List(includeSaved bool, maxAge time.Duration) []domain.CaptureFile {
	now := s.now()
	cutoff := now.Add(-maxAge)

	var files []domain.CaptureFile
	for _, f := range s.scanDir(s.csvDir, false, now) {
		if f.ModTime.Before(cutoff) {
			continue
		}
		files = append(files, f)
	}
	if includeSaved {
		files = append(files, s.scanDir(s.savedDir, true, now)...)
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].ModTime.After(files[j].ModTime)
	})
	return files
}

func (s *CaptureStore) scanDir(dir string, saved bool, now time.Time) []domain.CaptureFile {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var files []domain.CaptureFile
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".csv") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, domain.CaptureFile{
			Name:       entry.Name(),
			Size:       info.Size(),
			ModTime:    info.ModTime(),
			Saved:      saved,
			AgeMinutes: now.Sub(info.ModTime()).Minutes(),
		})
	}
	return files
}

// Cleanup deletes every transient capture file strictly older than maxAge.
// A file exactly at the cutoff survives. Preserved files are never touched.
// Returns the number of files deleted.
func (s *CaptureStore) Cleanup(maxAge time.Duration) int {
	cutoff := s.now().Add(-maxAge)
	deleted := 0

	for _, f := range s.scanDir(s.csvDir, false, s.now()) {
		if !f.ModTime.Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.csvDir, f.Name)); err != nil {
			log.Warn().Err(err).Str("file", f.Name).Msg("Failed to delete expired capture")
			continue
		}
		deleted++
	}

	if deleted > 0 {
		log.Info().Int("deleted", deleted).Msg("Expired captures cleaned up")
	}
	return deleted
}

// Save copies a transient capture into preserved storage, exempting it from
// cleanup. Saving an already-preserved file is a no-op success.
func (s *CaptureStore) Save(name string) error {
	if err := validateName(name); err != nil {
		return err
	}

	target := filepath.Join(s.savedDir, name)
	if _, err := os.Stat(target); err == nil {
		return nil
	}

	source := filepath.Join(s.csvDir, name)
	data, err := os.ReadFile(source)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("capture %s: %w", name, domain.ErrNotFound)
		}
		return err
	}
	return os.WriteFile(target, data, 0644)
}

// Unsave removes a capture from preserved storage only; the transient copy,
// if any, is unaffected.
func (s *CaptureStore) Unsave(name string) error {
	if err := validateName(name); err != nil {
		return err
	}

	err := os.Remove(filepath.Join(s.savedDir, name))
	if os.IsNotExist(err) {
		return fmt.Errorf("preserved capture %s: %w", name, domain.ErrNotFound)
	}
	return err
}

// ReadHead returns up to limit data rows of a named capture file, checking
// transient then preserved storage. Rows are keyed by header column. Partial
// or malformed files yield whatever rows could be read, never an error;
// only a missing file is ErrNotFound.
func (s *CaptureStore) ReadHead(name string, limit int) (rows []map[string]string, saved bool, err error) {
	if err := validateName(name); err != nil {
		return nil, false, err
	}

	path := filepath.Join(s.csvDir, name)
	info, statErr := os.Stat(path)
	if statErr != nil {
		path = filepath.Join(s.savedDir, name)
		info, statErr = os.Stat(path)
		if statErr != nil {
			return nil, false, fmt.Errorf("capture %s: %w", name, domain.ErrNotFound)
		}
		saved = true
	}

	key := headKey{path: path, mtime: info.ModTime().UnixNano(), size: info.Size(), limit: limit}
	if cached, ok := s.headCache.Get(key); ok {
		return cached, saved, nil
	}

	rows = readCSVHead(path, limit)
	s.headCache.Add(key, rows)
	return rows, saved, nil
}

// LatestNonEmpty scans transient captures newest-first for the first file
// with data rows. With skipNewest set the single newest file is passed over,
// since an in-flight capture may still be writing it. Returns an empty name
// when no candidate has rows; that is a normal answer, not an error.
func (s *CaptureStore) LatestNonEmpty(limit int, skipNewest bool) (string, []map[string]string) {
	files := s.List(false, DefaultMaxAge)
	if skipNewest && len(files) > 1 {
		files = files[1:]
	}

	for _, f := range files {
		if f.Size == 0 {
			continue
		}
		rows := readCSVHead(filepath.Join(s.csvDir, f.Name), limit)
		if len(rows) > 0 {
			return f.Name, rows
		}
	}
	return "", nil
}

func readCSVHead(path string, limit int) []map[string]string {
	file, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil
	}

	var rows []map[string]string
	for limit <= 0 || len(rows) < limit {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Malformed row, skip and keep reading.
			continue
		}
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func validateName(name string) error {
	if name == "" || name != filepath.Base(name) || strings.Contains(name, "..") {
		return fmt.Errorf("capture name %q: %w", name, domain.ErrNotFound)
	}
	return nil
}
