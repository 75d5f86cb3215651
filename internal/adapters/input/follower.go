// Package input provides live event log following for the watch command.
// The history pipeline does not use this; it drains in cursor-resumed
// batches. Following is for eyes on a terminal.
package input

import (
	"context"
	"io"
	"sync"

	"github.com/nxadm/tail"
	"github.com/rs/zerolog/log"

	"github.com/nvdai/suriwatch/internal/domain"
)

// EveFollower streams alerting events from the event log as the detection
// engine appends them, starting at the current end of file.
type EveFollower struct {
	filepath   string
	bufferSize int
	alertsOnly bool

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	tail     *tail.Tail
}

func NewEveFollower(filepath string, bufferSize int, alertsOnly bool) *EveFollower {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	return &EveFollower{
		filepath:   filepath,
		bufferSize: bufferSize,
		alertsOnly: alertsOnly,
		stopChan:   make(chan struct{}),
	}
}

// Start begins following the event log. Events arrive on the returned
// channel until ctx is cancelled or Stop is called.
func (f *EveFollower) Start(ctx context.Context) (<-chan *domain.Event, <-chan error) {
	eventChan := make(chan *domain.Event, f.bufferSize)
	errChan := make(chan error, 10)

	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		close(eventChan)
		return eventChan, errChan
	}
	f.running = true
	f.stopChan = make(chan struct{})
	f.mu.Unlock()

	go func() {
		defer close(eventChan)
		defer close(errChan)

		config := tail.Config{
			Follow:    true,
			ReOpen:    true,
			MustExist: false,
			Location:  &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd},
		}

		var err error
		f.tail, err = tail.TailFile(f.filepath, config)
		if err != nil {
			log.Error().Err(err).Str("file", f.filepath).Msg("Failed to follow event log")
			errChan <- err
			return
		}

		log.Info().Str("file", f.filepath).Msg("Following event log")

		for {
			select {
			case <-ctx.Done():
				return
			case <-f.stopChan:
				return
			case line, ok := <-f.tail.Lines:
				if !ok {
					return
				}
				if line.Err != nil {
					log.Warn().Err(line.Err).Msg("Error reading event log line")
					errChan <- line.Err
					continue
				}
				if line.Text == "" {
					continue
				}

				event, err := domain.ParseEvent([]byte(line.Text))
				if err != nil {
					log.Debug().Err(err).Msg("Skipping malformed event log line")
					continue
				}
				if f.alertsOnly && !event.HasAlert() {
					continue
				}

				select {
				case eventChan <- event:
				case <-ctx.Done():
					return
				case <-f.stopChan:
					return
				}
			}
		}
	}()

	return eventChan, errChan
}

// Stop ends the follow.
func (f *EveFollower) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.running {
		return nil
	}
	close(f.stopChan)
	f.running = false

	if f.tail != nil {
		return f.tail.Stop()
	}
	return nil
}
