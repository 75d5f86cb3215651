package domain

import (
	"errors"
	"time"
)

// ErrNotFound marks operations against a file or entry that does not exist.
// Query layers translate it into an explicit "not found" instead of a failure.
var ErrNotFound = errors.New("not found")

// CaptureFile describes one capture output as seen on disk. Saved files live
// in preserved storage and are exempt from age-based deletion.
type CaptureFile struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModTime    time.Time `json:"-"`
	Saved      bool      `json:"saved"`
	AgeMinutes float64   `json:"age_minutes"`
}

// CaptureFileName derives the output filename for a capture cycle from its
// start time. Second resolution; back-to-back cycles never collide at the
// cadence captures run at.
func CaptureFileName(start time.Time) string {
	return start.Format("15-04-05-02-01-2006") + ".csv"
}
