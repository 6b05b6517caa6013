// Package pool implements the fixed-size request pool. Slots are handed
// out as composite ids carrying the slot index in the low 16 bits and a
// per-slot generation counter in the high 16 bits, so stale ids fail
// lookup cleanly instead of aliasing a reused slot.
package pool

import (
	"fmt"

	"github.com/cloudwego/gopkg/unsafex"

	"github.com/Comanx/go-fetch/internal/constants"
	"github.com/Comanx/go-fetch/internal/interfaces"
)

// State is the lifecycle state of a request item.
type State int32

const (
	// StateInitial is the zero value of a freshly zeroed slot. It is never
	// observed outside the pool.
	StateInitial State = iota
	// StateAllocated is set by Alloc and kept until the first dispatch.
	StateAllocated
	// StateOpening means the I/O side is resolving the path.
	StateOpening
	// StateOpened means the content size is known and no buffer was bound.
	StateOpened
	// StateFetching means the I/O side is loading a chunk.
	StateFetching
	// StateFetched means a chunk was delivered and more may remain.
	StateFetched
	// StatePaused parks the request until a continue request arrives.
	StatePaused
	// StateFailed is terminal.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "initial"
	case StateAllocated:
		return "allocated"
	case StateOpening:
		return "opening"
	case StateOpened:
		return "opened"
	case StateFetching:
		return "fetching"
	case StateFetched:
		return "fetched"
	case StatePaused:
		return "paused"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// LaneNone marks an item that has not been admitted to a lane yet.
const LaneNone = -1

// UserSide is the half of an item owned by the caller side of the engine.
type UserSide struct {
	// Requested transitions, applied in flag order on the next pass.
	Pause    bool
	Continue bool
	Cancel   bool

	// Cancelled records that Cancel was the reason the item failed.
	Cancelled bool
	// Finished marks the item for release after its final callback.
	Finished bool

	// Mirrors of the io-side progress, copied during the outgoing drain.
	ContentSize   int64
	ContentOffset int64
	FetchedSize   int64

	DataLen int
	Data    [constants.MaxUserData]byte
}

// IOSide is the half of an item owned by the I/O side of the engine.
type IOSide struct {
	// Res is the provider resource, nil before open and after close.
	Res interfaces.Resource

	// ReadLen is the length of the range read currently in flight. Only
	// used on the asynchronous path, where the completion cannot see the
	// request window otherwise.
	ReadLen int

	Failed   bool
	Finished bool

	ContentSize   int64
	ContentOffset int64
	FetchedSize   int64
}

// Item is one request record. There is no per-item lock: which half may be
// touched at any moment is decided by the queue its id currently sits in,
// and queue movement is what transfers ownership between the caller side
// and the I/O side.
type Item struct {
	// Handle is the current composite id, 0 while the slot is free.
	Handle interfaces.Handle

	// State is mutated only by the side that currently owns the item.
	State State

	// Channel is fixed at send time.
	Channel int

	// Lane is LaneNone until admission and fixed afterwards.
	Lane int

	Callback interfaces.Callback

	// Buffer is caller-owned; the item only borrows it.
	Buffer []byte

	PathLen int
	Path    [constants.MaxPath]byte

	User UserSide
	IO   IOSide
}

// PathString lends the stored path as a string without copying. The result
// is only valid while the slot stays allocated.
func (it *Item) PathString() string {
	return unsafex.BinaryToString(it.Path[:it.PathLen])
}

// Desc carries the validated fields Send copies into a fresh slot.
type Desc struct {
	Channel  int
	Path     string
	Callback interfaces.Callback
	Buffer   []byte
	UserData []byte
}

// Pool is the fixed-size request pool. Element 0 of the backing array is
// reserved so the invalid id 0 never resolves.
type Pool struct {
	items []Item
	free  []uint16 // stack of free indices
	gen   []uint16 // per-index generation counters
}

// New creates a pool with capacity maxRequests. No further allocation
// happens after this call.
func New(maxRequests int) *Pool {
	if maxRequests <= 0 || maxRequests > 0xFFFF-1 {
		panic(fmt.Sprintf("pool: invalid capacity %d", maxRequests))
	}
	p := &Pool{
		items: make([]Item, maxRequests+1),
		free:  make([]uint16, 0, maxRequests),
		gen:   make([]uint16, maxRequests+1),
	}
	for i := maxRequests; i >= 1; i-- {
		p.free = append(p.free, uint16(i))
	}
	return p
}

// Cap returns the number of allocatable slots.
func (p *Pool) Cap() int {
	return len(p.items) - 1
}

// Live returns the number of slots currently allocated.
func (p *Pool) Live() int {
	return p.Cap() - len(p.free)
}

// Alloc takes a free slot, advances its generation and fills it from desc.
// It returns 0 when the pool is exhausted.
func (p *Pool) Alloc(desc Desc) interfaces.Handle {
	if len(p.free) == 0 {
		return 0
	}
	idx := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	p.gen[idx]++
	id := MakeID(idx, p.gen[idx])

	it := &p.items[idx]
	it.Handle = id
	it.State = StateAllocated
	it.Channel = desc.Channel
	it.Lane = LaneNone
	it.Callback = desc.Callback
	it.Buffer = desc.Buffer
	it.PathLen = copy(it.Path[:], desc.Path)
	it.User.DataLen = copy(it.User.Data[:], desc.UserData)
	return id
}

// Free validates id, zeroes the slot and returns its index to the stack.
// Freeing a stale or already-free id is a caller bug.
func (p *Pool) Free(id interfaces.Handle) {
	idx := Index(id)
	if idx == 0 || int(idx) >= len(p.items) || p.items[idx].Handle != id {
		panic(fmt.Sprintf("pool: free of invalid or stale id %#x", uint32(id)))
	}
	p.items[idx] = Item{}
	p.free = append(p.free, idx)
}

// Lookup returns the item for id, or nil when id is zero, out of range or
// stale. It never mutates pool state, so the I/O side may call it for ids
// it currently owns.
func (p *Pool) Lookup(id interfaces.Handle) *Item {
	idx := Index(id)
	if idx == 0 || int(idx) >= len(p.items) {
		return nil
	}
	it := &p.items[idx]
	if it.Handle != id {
		return nil
	}
	return it
}

// Each calls f for every live item.
func (p *Pool) Each(f func(id interfaces.Handle, it *Item)) {
	for i := 1; i < len(p.items); i++ {
		if p.items[i].Handle != 0 {
			f(p.items[i].Handle, &p.items[i])
		}
	}
}

// MakeID composes a slot id from index and generation.
func MakeID(index, gen uint16) interfaces.Handle {
	return interfaces.Handle(uint32(gen)<<16 | uint32(index))
}

// Index extracts the slot index from id.
func Index(id interfaces.Handle) uint16 {
	return uint16(id)
}

// Generation extracts the generation counter from id.
func Generation(id interfaces.Handle) uint16 {
	return uint16(id >> 16)
}
