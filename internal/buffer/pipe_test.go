package buffer

import (
	"testing"
	"time"
)

func TestPipeOrder(t *testing.T) {
	in, out := Pipe[int](1000)

	for i := 0; i < 500; i++ {
		in <- i
	}
	close(in)

	i := 0
	for v := range out {
		if v != i {
			t.Fatalf("received %d, want %d", v, i)
		}
		i++
	}
	if i != 500 {
		t.Fatalf("received %d values, want 500", i)
	}
}

func TestPipeNeverBlocksProducer(t *testing.T) {
	in, out := Pipe[int](100000)

	// Nobody reads while everything is written.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10000; i++ {
			in <- i
		}
		close(in)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("producer blocked on an unbounded pipe")
	}

	n := 0
	for range out {
		n++
	}
	if n != 10000 {
		t.Fatalf("received %d values, want 10000", n)
	}
}

func TestPipeDropsOldestAtLimit(t *testing.T) {
	const limit = 50
	in, out := Pipe[int](limit)

	for i := 0; i < 500; i++ {
		in <- i
	}
	close(in)

	var got []int
	for v := range out {
		got = append(got, v)
	}

	// The small channel buffers hold a handful of early values; the
	// backlog keeps only the newest `limit`. Whatever survives must be
	// in order and end with the final value.
	if len(got) > limit+16 {
		t.Fatalf("received %d values, want at most %d", len(got), limit+16)
	}
	for i := 1; i < len(got); i++ {
		if got[i] <= got[i-1] {
			t.Fatalf("out of order at %d: %d after %d", i, got[i], got[i-1])
		}
	}
	if len(got) == 0 || got[len(got)-1] != 499 {
		t.Fatalf("newest value lost: tail %v", got)
	}
}

func TestBacklogCompaction(t *testing.T) {
	var b backlog[int]
	for i := 0; i < 1000; i++ {
		b.push(i, 1<<30)
	}
	for i := 0; i < 1000; i++ {
		if b.empty() {
			t.Fatal("backlog empty early")
		}
		if v := b.pop(); v != i {
			t.Fatalf("pop = %d, want %d", v, i)
		}
	}
	if !b.empty() {
		t.Fatal("backlog not empty after draining")
	}
}
