package app

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nvdai/suriwatch/internal/ports"
)

// DefaultReloadTimeout bounds the rule reload round-trip so a hung engine
// can never stall future blacklist insertions.
const DefaultReloadTimeout = 10 * time.Second

// Blacklist is the set of blocked addresses, backed by an append-only file
// the detection engine reads. One lock guards the membership check, the file
// append, and the in-memory insert, in that order: an address is only ever
// marked present in memory after it was durably appended, so memory and file
// cannot diverge in the "present" direction.
//
// The reload notification to the engine runs outside the lock with a bounded
// timeout. It is best effort; the persisted file is authoritative on the
// engine's next full reload.
type Blacklist struct {
	path          string
	reloader      ports.RuleReloader
	reloadTimeout time.Duration

	mu    sync.Mutex
	addrs map[string]struct{}
}

func NewBlacklist(path string, reloader ports.RuleReloader) *Blacklist {
	return &Blacklist{
		path:          path,
		reloader:      reloader,
		reloadTimeout: DefaultReloadTimeout,
		addrs:         make(map[string]struct{}),
	}
}

// Load seeds the in-memory set from the persisted file. A missing file means
// an empty blacklist. Plain text, one address per line, # comments allowed.
func (b *Blacklist) Load() error {
	file, err := os.Open(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	b.mu.Lock()
	defer b.mu.Unlock()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		b.addrs[line] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	log.Info().Int("count", len(b.addrs)).Str("file", b.path).Msg("Blacklist loaded")
	return nil
}

// Add blacklists an address. Idempotent: an already-present address is a
// no-op observable only as a duplicate notice, never a second file write.
// Returns true when the address was newly inserted.
func (b *Blacklist) Add(ctx context.Context, addr string) (bool, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return false, fmt.Errorf("empty blacklist address")
	}

	b.mu.Lock()
	if _, ok := b.addrs[addr]; ok {
		b.mu.Unlock()
		log.Debug().Str("addr", addr).Msg("Address already blacklisted")
		return false, nil
	}

	if err := b.appendLocked(addr); err != nil {
		b.mu.Unlock()
		return false, fmt.Errorf("persist blacklist entry: %w", err)
	}
	b.addrs[addr] = struct{}{}
	b.mu.Unlock()

	log.Info().Str("addr", addr).Str("file", b.path).Msg("Address blacklisted")
	b.notifyReload(ctx, addr)
	return true, nil
}

func (b *Blacklist) appendLocked(addr string) error {
	file, err := os.OpenFile(b.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	if _, err := file.WriteString(addr + "\n"); err != nil {
		file.Close()
		return err
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// notifyReload tells the engine to pick up the new entry. Failures are
// logged, never propagated: the insertion stands either way.
func (b *Blacklist) notifyReload(ctx context.Context, addr string) {
	if b.reloader == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, b.reloadTimeout)
	defer cancel()

	if err := b.reloader.Reload(ctx); err != nil {
		log.Warn().Err(err).Str("addr", addr).
			Msg("Rule reload failed, entry applies on next engine restart")
	}
}

// Contains reports whether an address is blacklisted.
func (b *Blacklist) Contains(addr string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.addrs[addr]
	return ok
}

// Count returns the number of blacklisted addresses.
func (b *Blacklist) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.addrs)
}
