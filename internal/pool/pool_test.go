package pool

import (
	"strings"
	"testing"

	"github.com/Comanx/go-fetch/internal/interfaces"
)

func nopCallback(*interfaces.Response) {}

func TestIDComposition(t *testing.T) {
	id := MakeID(7, 3)
	if Index(id) != 7 {
		t.Errorf("expected index 7, got %d", Index(id))
	}
	if Generation(id) != 3 {
		t.Errorf("expected generation 3, got %d", Generation(id))
	}
	if uint32(id) != 3<<16|7 {
		t.Errorf("unexpected composite value %#x", uint32(id))
	}
}

func TestAllocFillsItem(t *testing.T) {
	p := New(4)

	buf := make([]byte, 16)
	id := p.Alloc(Desc{
		Channel:  2,
		Path:     "assets/data.bin",
		Callback: nopCallback,
		Buffer:   buf,
		UserData: []byte{1, 2, 3},
	})
	if id == 0 {
		t.Fatal("alloc returned invalid id")
	}

	it := p.Lookup(id)
	if it == nil {
		t.Fatal("lookup failed for fresh id")
	}
	if it.Handle != id {
		t.Errorf("expected handle %#x, got %#x", uint32(id), uint32(it.Handle))
	}
	if it.State != StateAllocated {
		t.Errorf("expected state allocated, got %v", it.State)
	}
	if it.Channel != 2 {
		t.Errorf("expected channel 2, got %d", it.Channel)
	}
	if it.Lane != LaneNone {
		t.Errorf("expected no lane, got %d", it.Lane)
	}
	if it.PathString() != "assets/data.bin" {
		t.Errorf("expected path round trip, got %q", it.PathString())
	}
	if len(it.Buffer) != 16 {
		t.Errorf("expected buffer of 16, got %d", len(it.Buffer))
	}
	if it.User.DataLen != 3 || it.User.Data[0] != 1 || it.User.Data[2] != 3 {
		t.Error("user data not copied")
	}
	if p.Live() != 1 {
		t.Errorf("expected 1 live, got %d", p.Live())
	}
}

func TestAllocExhaustion(t *testing.T) {
	p := New(2)
	desc := Desc{Path: "x", Callback: nopCallback}

	a := p.Alloc(desc)
	b := p.Alloc(desc)
	if a == 0 || b == 0 {
		t.Fatal("expected two successful allocs")
	}
	if c := p.Alloc(desc); c != 0 {
		t.Errorf("expected exhaustion, got %#x", uint32(c))
	}

	p.Free(a)
	if d := p.Alloc(desc); d == 0 {
		t.Error("expected alloc to succeed after free")
	}
}

func TestStaleLookupFailsAfterReuse(t *testing.T) {
	p := New(1)
	desc := Desc{Path: "x", Callback: nopCallback}

	first := p.Alloc(desc)
	p.Free(first)
	second := p.Alloc(desc)

	if Index(first) != Index(second) {
		t.Fatal("expected the single slot to be reused")
	}
	if first == second {
		t.Fatal("expected a different generation on reuse")
	}
	if p.Lookup(first) != nil {
		t.Error("stale id must not resolve")
	}
	if p.Lookup(second) == nil {
		t.Error("live id must resolve")
	}
}

func TestLookupInvalid(t *testing.T) {
	p := New(2)
	if p.Lookup(0) != nil {
		t.Error("id 0 must not resolve")
	}
	if p.Lookup(MakeID(5, 1)) != nil {
		t.Error("out-of-range index must not resolve")
	}
	if p.Lookup(MakeID(1, 9)) != nil {
		t.Error("never-allocated slot must not resolve")
	}
}

func TestFreeZeroesSlot(t *testing.T) {
	p := New(1)
	id := p.Alloc(Desc{Path: "x", Callback: nopCallback, UserData: []byte{42}})
	it := p.Lookup(id)
	it.User.Finished = true
	it.IO.ContentOffset = 99

	p.Free(id)
	if it.Handle != 0 || it.State != StateInitial || it.IO.ContentOffset != 0 || it.User.Finished {
		t.Error("free must zero the slot")
	}
	if p.Live() != 0 {
		t.Errorf("expected 0 live, got %d", p.Live())
	}
}

func TestDoubleFreePanics(t *testing.T) {
	p := New(1)
	id := p.Alloc(Desc{Path: "x", Callback: nopCallback})
	p.Free(id)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on double free")
		}
	}()
	p.Free(id)
}

func TestPathTruncation(t *testing.T) {
	p := New(1)
	long := strings.Repeat("p", 4096)
	id := p.Alloc(Desc{Path: long, Callback: nopCallback})
	it := p.Lookup(id)
	if it.PathLen != len(it.Path) {
		t.Errorf("expected inline capacity %d, got %d", len(it.Path), it.PathLen)
	}
}

func TestEach(t *testing.T) {
	p := New(4)
	desc := Desc{Path: "x", Callback: nopCallback}
	a := p.Alloc(desc)
	b := p.Alloc(desc)
	p.Free(a)

	seen := map[interfaces.Handle]bool{}
	p.Each(func(id interfaces.Handle, it *Item) {
		seen[id] = true
	})
	if len(seen) != 1 || !seen[b] {
		t.Errorf("expected only %#x live, got %v", uint32(b), seen)
	}
}

func TestGenerationWrap(t *testing.T) {
	p := New(1)
	desc := Desc{Path: "x", Callback: nopCallback}
	var last interfaces.Handle
	for i := 0; i < 70000; i++ {
		id := p.Alloc(desc)
		if id == 0 {
			t.Fatal("alloc failed")
		}
		if id == last {
			t.Fatal("generation did not advance")
		}
		last = id
		p.Free(id)
	}
}
