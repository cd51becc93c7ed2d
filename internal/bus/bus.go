// Package bus is a lossy, bounded fan-out queue. Publishers never block;
// each subscriber reads at its own pace and skips ahead when it falls more
// than the buffer capacity behind.
package bus

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Cursor.Next once the bus has been closed.
var ErrClosed = errors.New("bus closed")

// Message is one published payload as seen by a cursor. Missed counts the
// messages dropped for this cursor immediately before this one.
type Message struct {
	Seq    uint64
	Data   []byte
	Missed uint64
}

// Bus is a ring buffer of the last capacity messages.
type Bus struct {
	mu     sync.Mutex
	ring   [][]byte
	next   uint64 // sequence number of the next publish
	notify chan struct{}
	closed bool
	subs   int
}

// New creates a bus retaining capacity messages. Capacities below one are
// raised to one.
func New(capacity int) *Bus {
	if capacity < 1 {
		capacity = 1
	}
	return &Bus{
		ring:   make([][]byte, capacity),
		notify: make(chan struct{}),
	}
}

// Capacity returns the number of retained messages.
func (b *Bus) Capacity() int {
	return len(b.ring)
}

// Publish appends data and wakes every waiting cursor. It returns the
// sequence number assigned to data. Publishing to a closed bus is a no-op
// and returns the current tail.
func (b *Bus) Publish(data []byte) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return b.next
	}
	seq := b.next
	b.ring[seq%uint64(len(b.ring))] = data
	b.next++
	close(b.notify)
	b.notify = make(chan struct{})
	return seq
}

// Subscribe returns a cursor positioned at the current tail, so it only
// observes messages published after this call.
func (b *Bus) Subscribe() *Cursor {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs++
	return &Cursor{bus: b, pos: b.next}
}

// Subscribers returns the number of open cursors.
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subs
}

// Close wakes every cursor with ErrClosed. Safe to call more than once.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.notify)
}

// Cursor is a single subscriber's read position. A cursor must not be used
// from more than one goroutine at a time.
type Cursor struct {
	bus    *Bus
	pos    uint64
	closed bool
}

// Next blocks until a message is available, the bus is closed, or ctx is
// done. A cursor that lagged past the retained window resumes at the
// oldest retained message and reports the gap in Message.Missed.
func (c *Cursor) Next(ctx context.Context) (Message, error) {
	b := c.bus
	for {
		b.mu.Lock()
		if b.closed || c.closed {
			b.mu.Unlock()
			return Message{}, ErrClosed
		}
		if c.pos < b.next {
			var missed uint64
			capacity := uint64(len(b.ring))
			if oldest := oldestRetained(b.next, capacity); c.pos < oldest {
				missed = oldest - c.pos
				c.pos = oldest
			}
			msg := Message{Seq: c.pos, Data: b.ring[c.pos%capacity], Missed: missed}
			c.pos++
			b.mu.Unlock()
			return msg, nil
		}
		wait := b.notify
		b.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return Message{}, ctx.Err()
		}
	}
}

// Close detaches the cursor from the bus. Later calls to Next return
// ErrClosed.
func (c *Cursor) Close() {
	b := c.bus
	b.mu.Lock()
	defer b.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	b.subs--
}

func oldestRetained(next, capacity uint64) uint64 {
	if next <= capacity {
		return 0
	}
	return next - capacity
}
