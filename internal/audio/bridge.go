// Package audio bridges a push-style decode pipeline and a pull-style
// voice transport across two independently scheduled threads.
package audio

import "sync"

// DefaultCapacity is the buffer ceiling. The lower the value, the less
// latency; too low of a value results in jittery audio.
const DefaultCapacity = 64 * 1024

// Bridge is a bounded FIFO byte buffer shared between the decode
// callback (write side) and the voice transport (read side).
//
// Writers block while the buffer is full. Readers never block: an empty
// buffer yields synthesized silence so the transport can keep its
// fixed cadence while the producer catches up.
type Bridge struct {
	mu   sync.Mutex
	cond *sync.Cond
	buf  []byte
	cap  int
}

func NewBridge(capacity int) *Bridge {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	b := &Bridge{cap: capacity}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Read copies up to len(p) buffered bytes into p, FIFO order. When the
// buffer is empty it fills p with zeroes instead and returns
// immediately. Every call wakes blocked writers.
func (b *Bridge) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.buf) == 0 {
		for i := range p {
			p[i] = 0
		}
		b.cond.Broadcast()
		return len(p), nil
	}

	n := copy(p, b.buf)
	b.buf = b.buf[:copy(b.buf, b.buf[n:])]
	b.cond.Broadcast()

	return n, nil
}

// Write appends p to the buffer, blocking while the result would
// exceed the capacity ceiling. Data is never dropped or truncated.
func (b *Bridge) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for len(b.buf)+len(p) > b.cap {
		b.cond.Wait()
	}

	b.buf = append(b.buf, p...)
	b.cond.Broadcast()

	return len(p), nil
}

// Flush clears the buffer and wakes all waiters. Used on pause/stop so
// stale audio does not keep playing after the transport stopped.
func (b *Bridge) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buf = b.buf[:0]
	b.cond.Broadcast()
}

// Buffered reports the number of bytes currently held.
func (b *Bridge) Buffered() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf)
}
