package multiplex

import "sync/atomic"

// blobCache is an atomic reference to an immutable byte slice plus a
// pending-to-transmit marker. Writers swap the whole slice; readers take a
// reference, never mutate in place. This keeps the multiplexer lock-free
// around cache replacement (spec design note: avoid locking around the
// whole multiplexer).
type blobCache struct {
	blob    atomic.Pointer[[]byte]
	pending atomic.Bool
}

// set replaces the cached blob with a copy of payload and marks it
// pending-to-transmit.
func (c *blobCache) set(payload []byte) {
	cp := make([]byte, len(payload))
	copy(cp, payload)
	c.blob.Store(&cp)
	c.pending.Store(true)
}

// get returns the current cached blob, or nil if never set.
func (c *blobCache) get() []byte {
	p := c.blob.Load()
	if p == nil {
		return nil
	}
	return *p
}

// cached reports whether a blob has ever been set.
func (c *blobCache) cached() bool {
	return c.blob.Load() != nil
}

// takePending returns the cached blob and clears the pending marker, only
// if it was pending. Returns ok=false if nothing is pending (including the
// case where no blob has ever been set).
func (c *blobCache) takePending() (payload []byte, ok bool) {
	if !c.pending.CompareAndSwap(true, false) {
		return nil, false
	}
	return c.get(), true
}

// clearPending drops the pending marker without transmitting, used by
// resetSession: caches stay intact but are re-sent fresh to the next
// session via the accept-time replay rather than a leftover pending flag.
func (c *blobCache) clearPending() {
	c.pending.Store(false)
}
