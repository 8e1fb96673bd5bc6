// Package buffer decouples event producers from the session loop.
package buffer

import "log"

// Pipe returns the two ends of an unbounded channel: sends never
// block, no matter how slowly the receiver drains. Connection read
// loops and timers feed the session loop through one of these, so a
// stalled session cannot back-pressure its way into a deadlock.
//
// limit caps the backlog. A backlog that deep means the receiver is
// gone; the oldest event is dropped and the drop is logged, since
// losing the newest control event (a quit, a timeout) would be worse.
//
// Close the write end to shut the pipe down; the read end closes once
// the backlog has drained.
func Pipe[T any](limit int) (chan<- T, <-chan T) {
	in := make(chan T, 8)
	out := make(chan T, 8)

	go run(in, out, limit)

	return in, out
}

func run[T any](in chan T, out chan T, limit int) {
	defer close(out)

	var b backlog[T]

	for {
		// Nothing buffered: block on the producer alone.
		if b.empty() {
			v, ok := <-in
			if !ok {
				return
			}
			b.push(v, limit)
			continue
		}

		select {
		case v, ok := <-in:
			if !ok {
				// Producer done; hand over what is left.
				for !b.empty() {
					out <- b.pop()
				}
				return
			}
			b.push(v, limit)

		case out <- b.peek():
			b.pop()
		}
	}
}

// backlog is a head-indexed queue. Popping advances the head instead
// of reslicing; the dead prefix is compacted away once it dominates
// the backing array.
type backlog[T any] struct {
	items []T
	head  int
}

func (b *backlog[T]) empty() bool {
	return b.head == len(b.items)
}

func (b *backlog[T]) peek() T {
	return b.items[b.head]
}

func (b *backlog[T]) pop() T {
	v := b.items[b.head]
	var zero T
	b.items[b.head] = zero
	b.head++

	if b.head > 64 && b.head*2 > len(b.items) {
		n := copy(b.items, b.items[b.head:])
		b.items = b.items[:n]
		b.head = 0
	}
	return v
}

func (b *backlog[T]) push(v T, limit int) {
	if len(b.items)-b.head >= limit {
		log.Printf("[buffer] backlog at limit (%d), dropping oldest event", limit)
		b.pop()
	}
	b.items = append(b.items, v)
}
