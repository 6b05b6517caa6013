package ring

import "testing"

func TestRingBasics(t *testing.T) {
	b := New[uint32](4)

	if !b.Empty() {
		t.Error("new buffer should be empty")
	}
	if b.Full() {
		t.Error("new buffer should not be full")
	}
	if b.Cap() != 4 {
		t.Errorf("expected cap 4, got %d", b.Cap())
	}
	if b.Count() != 0 {
		t.Errorf("expected count 0, got %d", b.Count())
	}

	for i := uint32(1); i <= 4; i++ {
		b.Enqueue(i)
	}

	if !b.Full() {
		t.Error("buffer should be full after 4 enqueues")
	}
	if b.Count() != 4 {
		t.Errorf("expected count 4, got %d", b.Count())
	}

	for i := uint32(1); i <= 4; i++ {
		got := b.Dequeue()
		if got != i {
			t.Errorf("expected %d, got %d", i, got)
		}
	}

	if !b.Empty() {
		t.Error("buffer should be empty after draining")
	}
}

func TestRingWrapAround(t *testing.T) {
	b := New[uint32](3)

	// Cycle enough times to wrap head and tail through the backing array
	// repeatedly.
	next := uint32(100)
	b.Enqueue(next)
	for i := 0; i < 20; i++ {
		b.Enqueue(next + 1)
		got := b.Dequeue()
		if got != next {
			t.Fatalf("cycle %d: expected %d, got %d", i, next, got)
		}
		next++
	}
	if b.Count() != 1 {
		t.Errorf("expected count 1, got %d", b.Count())
	}
}

func TestRingPeek(t *testing.T) {
	b := New[uint32](5)
	// Offset the tail so peek has to wrap.
	b.Enqueue(0)
	b.Enqueue(0)
	b.Dequeue()
	b.Dequeue()

	for i := uint32(10); i < 15; i++ {
		b.Enqueue(i)
	}
	for i := 0; i < 5; i++ {
		got := b.Peek(i)
		if got != uint32(10+i) {
			t.Errorf("peek(%d): expected %d, got %d", i, 10+i, got)
		}
	}
	// Peek must not consume.
	if b.Count() != 5 {
		t.Errorf("expected count 5 after peeks, got %d", b.Count())
	}
	if got := b.Dequeue(); got != 10 {
		t.Errorf("expected 10, got %d", got)
	}
}

func TestRingContractViolations(t *testing.T) {
	expectPanic := func(name string, f func()) {
		defer func() {
			if recover() == nil {
				t.Errorf("%s: expected panic", name)
			}
		}()
		f()
	}

	expectPanic("zero capacity", func() { New[uint32](0) })

	b := New[uint32](1)
	expectPanic("dequeue empty", func() { b.Dequeue() })
	expectPanic("peek empty", func() { b.Peek(0) })

	b.Enqueue(1)
	expectPanic("enqueue full", func() { b.Enqueue(2) })
	expectPanic("peek out of range", func() { b.Peek(1) })
}

func TestRingCountAfterInterleaving(t *testing.T) {
	b := New[uint32](8)
	want := 0
	for i := 0; i < 100; i++ {
		b.Enqueue(uint32(i))
		want++
		if i%3 == 0 || want == 8 {
			b.Dequeue()
			want--
		}
		if b.Count() != want {
			t.Fatalf("step %d: expected count %d, got %d", i, want, b.Count())
		}
	}
}
