package multiplex

import "sync"

// frame is one queued live video or audio payload, tagged key for video
// (always false for audio, which has no key-frame concept at this layer).
type frame struct {
	payload []byte
	isKey   bool
}

// boundedQueue is a single-producer/single-consumer FIFO with a fixed
// capacity and a non-blocking offer. Locking is limited to the short
// critical section around the backing slice, never around I/O.
type boundedQueue struct {
	mu       sync.Mutex
	items    []frame
	capacity int
}

func newBoundedQueue(capacity int) *boundedQueue {
	return &boundedQueue{capacity: capacity, items: make([]frame, 0, capacity)}
}

// offerAudio implements the audio overflow policy: on full, drop the oldest
// frame and enqueue the new one. Always succeeds. payload is copied so the
// queue owns its bytes independently of the caller's buffer (spec design
// note: writers swap/copy, readers never alias a caller-owned slice).
func (q *boundedQueue) offerAudio(payload []byte) (dropped bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) >= q.capacity {
		q.items = q.items[1:]
		dropped = true
	}
	q.items = append(q.items, frame{payload: cloneBytes(payload)})
	return dropped
}

// offerVideo implements the video overflow policy (spec §4.1.3):
//   - on full, drop the oldest non-key frame and enqueue the incoming frame;
//   - if every queued frame is a key frame, drop the incoming frame if it is
//     non-key (preserve the cached recovery point);
//   - if the incoming frame is itself a key frame and no non-key frame can
//     be evicted, drop the oldest key frame instead — the new key frame
//     supersedes it as the recovery point.
//
// dropReason is one of "", "oldest_non_key", "incoming", "oldest_key" and is
// used purely for metrics labeling. payload is copied so the queue owns its
// bytes independently of the caller's buffer (spec design note: writers
// swap/copy, readers never alias a caller-owned slice) — this lets the
// caller safely return its buffer to a pool as soon as Submit returns.
func (q *boundedQueue) offerVideo(payload []byte, isKey bool) (dropped bool, dropReason string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) < q.capacity {
		q.items = append(q.items, frame{payload: cloneBytes(payload), isKey: isKey})
		return false, ""
	}

	if idx := firstNonKeyIndex(q.items); idx >= 0 {
		q.items = append(q.items[:idx], q.items[idx+1:]...)
		q.items = append(q.items, frame{payload: cloneBytes(payload), isKey: isKey})
		return true, "oldest_non_key"
	}

	// Every queued frame is a key frame.
	if !isKey {
		return true, "incoming"
	}
	q.items = append(q.items[1:], frame{payload: cloneBytes(payload), isKey: isKey})
	return true, "oldest_key"
}

func firstNonKeyIndex(items []frame) int {
	for i, f := range items {
		if !f.isKey {
			return i
		}
	}
	return -1
}

func cloneBytes(b []byte) []byte {
	cp := make([]byte, len(b))
	copy(cp, b)
	return cp
}

// takeUpTo removes and returns up to n frames from the front of the queue,
// in order.
func (q *boundedQueue) takeUpTo(n int) []frame {
	q.mu.Lock()
	defer q.mu.Unlock()
	if n > len(q.items) {
		n = len(q.items)
	}
	if n == 0 {
		return nil
	}
	out := make([]frame, n)
	copy(out, q.items[:n])
	q.items = q.items[n:]
	return out
}

// clear empties the queue, used by resetSession.
func (q *boundedQueue) clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = q.items[:0]
}

// len returns the current depth, for metrics/diagnostics.
func (q *boundedQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
