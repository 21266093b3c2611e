// Package dedup suppresses repeated notifications inside a sliding time window.
//
// Keys are a hash of (kind, ticket, trimmed content). Two different contents
// that hash alike are treated as duplicates; no collision resolution is done.
package dedup

import (
	"context"
	"encoding/hex"
	"strings"
	"time"

	"github.com/zeebo/blake3"
	"go.uber.org/zap"
)

// DefaultWindow is used when no window is configured.
const DefaultWindow = 30 * time.Second

// Backend stores dedup entries.
type Backend interface {
	// Seen reports whether key was recorded within window of now. When it was
	// not, the backend records now under key before returning.
	Seen(ctx context.Context, key string, now time.Time, window time.Duration) (bool, error)
	// Forget removes key so the next Seen records it afresh.
	Forget(ctx context.Context, key string) error
}

// Window is the duplicate detector shared by the webhook and poll paths.
type Window struct {
	backend Backend
	window  time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

// NewWindow builds a Window over backend.
func NewWindow(backend Backend, window time.Duration, logger *zap.Logger) *Window {
	if window <= 0 {
		window = DefaultWindow
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Window{backend: backend, window: window, logger: logger, now: time.Now}
}

// IsDuplicate reports whether the same event was seen recently and records it
// otherwise. Backend failures are logged and treated as "not a duplicate":
// losing dedup state may repeat a notification but never blocks one.
func (w *Window) IsDuplicate(ctx context.Context, kind, ticketID, content string) bool {
	dup, err := w.backend.Seen(ctx, Key(kind, ticketID, content), w.now(), w.window)
	if err != nil {
		w.logger.Warn("dedup backend unavailable",
			zap.String("kind", kind),
			zap.String("ticket_id", ticketID),
			zap.Error(err))
		return false
	}
	return dup
}

// Release drops the entry recorded by IsDuplicate, for events whose handling
// was refused and will be delivered again.
func (w *Window) Release(ctx context.Context, kind, ticketID, content string) {
	if err := w.backend.Forget(ctx, Key(kind, ticketID, content)); err != nil {
		w.logger.Warn("dedup release failed",
			zap.String("kind", kind),
			zap.String("ticket_id", ticketID),
			zap.Error(err))
	}
}

// Window returns the configured suppression span.
func (w *Window) Window() time.Duration {
	return w.window
}

// Key derives the composite dedup key.
func Key(kind, ticketID, content string) string {
	sum := blake3.Sum256([]byte(kind + "\x00" + ticketID + "\x00" + strings.TrimSpace(content)))
	return hex.EncodeToString(sum[:16])
}
