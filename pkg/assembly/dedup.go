package assembly

import (
	"crypto/sha256"
	"sync"
)

// DefaultDedupWindow is the number of recent frame hashes a Deduper
// remembers. The arms mirror traffic with millisecond offsets, so a
// small window is enough.
const DefaultDedupWindow = 128

// Deduper suppresses duplicate frames delivered by both arm radios.
// Frames are compared by SHA-256 of their raw bytes over a bounded
// window of recent frames. Safe for concurrent use.
type Deduper struct {
	mu     sync.Mutex
	window int
	seen   map[[sha256.Size]byte]struct{}
	ring   [][sha256.Size]byte
	pos    int
}

// NewDeduper creates a Deduper remembering the last window frames.
// A window of 0 or less uses DefaultDedupWindow.
func NewDeduper(window int) *Deduper {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &Deduper{
		window: window,
		seen:   make(map[[sha256.Size]byte]struct{}, window),
		ring:   make([][sha256.Size]byte, 0, window),
	}
}

// Seen reports whether raw was already delivered within the window, and
// records it otherwise.
func (d *Deduper) Seen(raw []byte) bool {
	h := sha256.Sum256(raw)

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[h]; ok {
		return true
	}

	if len(d.ring) < d.window {
		d.ring = append(d.ring, h)
	} else {
		delete(d.seen, d.ring[d.pos])
		d.ring[d.pos] = h
		d.pos = (d.pos + 1) % d.window
	}
	d.seen[h] = struct{}{}
	return false
}

// Reset forgets all recorded frames.
func (d *Deduper) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen = make(map[[sha256.Size]byte]struct{}, d.window)
	d.ring = d.ring[:0]
	d.pos = 0
}
