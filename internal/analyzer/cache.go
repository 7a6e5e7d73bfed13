package analyzer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
)

// Cached memoizes a Service per (item identity, item content, configuration).
// Re-analyzing an unchanged item returns the previous result without a remote
// call; entries are dropped explicitly when the item they belong to is
// replaced or the session resets.
type Cached struct {
	inner       Service
	fingerprint string

	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	itemID string
	result Result
}

// NewCached wraps inner with a memo table. The fingerprint must change
// whenever the analyzer configuration changes.
func NewCached(inner Service, fingerprint string) *Cached {
	return &Cached{
		inner:       inner,
		fingerprint: fingerprint,
		entries:     make(map[string]cacheEntry),
	}
}

// Analyze returns the cached result for an unchanged item, or delegates to
// the wrapped service and remembers a successful outcome. Failures are never
// cached; a retry is the caller's decision.
func (c *Cached) Analyze(ctx context.Context, item Item) (Result, error) {
	key := c.key(item)

	c.mu.Lock()
	if entry, ok := c.entries[key]; ok {
		c.mu.Unlock()
		return entry.result, nil
	}
	c.mu.Unlock()

	result, err := c.inner.Analyze(ctx, item)
	if err != nil {
		return Result{}, err
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{itemID: item.ID, result: result}
	c.mu.Unlock()
	return result, nil
}

// Invalidate drops every cached result for the given item identity.
func (c *Cached) Invalidate(itemID string) {
	if itemID == "" {
		return
	}
	c.mu.Lock()
	for key, entry := range c.entries {
		if entry.itemID == itemID {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
}

func (c *Cached) key(item Item) string {
	sum := sha256.Sum256(item.Data)
	return fmt.Sprintf("%s|%s|%s", item.ID, hex.EncodeToString(sum[:]), c.fingerprint)
}
