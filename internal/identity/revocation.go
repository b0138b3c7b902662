package identity

import (
	"context"
	"sync"
	"time"

	"github.com/bndy-dev/bndy-portal/internal/log"
)

// DenyList tracks revoked session IDs. An entry only needs to live as long
// as the cookie it revokes: once the cookie would have expired on its own
// the entry is dead weight, so IsRevoked ignores stale entries and the
// cleanup loop drops them.
type DenyList struct {
	mu      sync.RWMutex
	entries map[string]time.Time // session ID -> cookie expiry
}

func NewDenyList() *DenyList {
	return &DenyList{
		entries: make(map[string]time.Time),
	}
}

// Add marks a session ID as revoked until expiresAt
func (d *DenyList) Add(sessionID string, expiresAt time.Time) {
	d.mu.Lock()
	d.entries[sessionID] = expiresAt
	d.mu.Unlock()
}

// IsRevoked reports whether the session ID was revoked and its cookie has
// not yet aged out
func (d *DenyList) IsRevoked(sessionID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	exp, ok := d.entries[sessionID]
	if !ok {
		return false
	}
	return time.Now().Before(exp)
}

// Cleanup drops entries whose cookies have expired and returns how many
// were removed
func (d *DenyList) Cleanup() int {
	now := time.Now()
	removed := 0
	d.mu.Lock()
	for sessionID, exp := range d.entries {
		if now.After(exp) {
			delete(d.entries, sessionID)
			removed++
		}
	}
	d.mu.Unlock()
	return removed
}

// StartCleanup runs Cleanup on the given interval until ctx is cancelled
func (d *DenyList) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := d.Cleanup(); n > 0 {
					log.LogInfoWithFields("identity", "dropped expired deny list entries", map[string]any{
						"count": n,
					})
				}
			}
		}
	}()
}
