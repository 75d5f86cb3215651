package ports

import "context"

// RuleReloader tells the detection engine to re-read its rule set after the
// blacklist changes. Best effort: callers log failures and move on, the
// persisted blacklist is authoritative on the engine's next full reload.
type RuleReloader interface {
	Reload(ctx context.Context) error
}
