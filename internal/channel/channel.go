// Package channel implements the per-channel request pipeline: lane
// admission, the caller-side state machine, the hand-off to the worker (or
// to an asynchronous provider), and the drain pass that delivers response
// callbacks.
package channel

import (
	"time"

	"github.com/Comanx/go-fetch/internal/interfaces"
	"github.com/Comanx/go-fetch/internal/pool"
	"github.com/Comanx/go-fetch/internal/ring"
)

// Config describes one channel.
type Config struct {
	Index       int
	Lanes       int
	MaxRequests int // capacity of the sent queue
	Pool        *pool.Pool

	// Exactly one of Provider and Async is set. With Provider the channel
	// starts a worker goroutine; with Async it handles items inline and
	// expects completions through the Completions entry points.
	Provider interfaces.Provider
	Async    interfaces.AsyncProvider

	Logger   interfaces.Logger
	Observer interfaces.Observer
}

// Channel is one ordered I/O pipeline. All methods except the Completions
// entry points are called from the engine goroutine; the entry points must
// be called from that goroutine too, which asynchronous hosts guarantee by
// construction.
type Channel struct {
	index int
	lanes int

	sent         *ring.Buffer[interfaces.Handle]
	freeLanes    *ring.Buffer[uint32]
	userIncoming *ring.Buffer[interfaces.Handle]
	userOutgoing *ring.Buffer[interfaces.Handle]

	pool     *pool.Pool
	provider interfaces.Provider
	async    interfaces.AsyncProvider
	worker   *worker

	logger   interfaces.Logger
	observer interfaces.Observer

	// resp is the snapshot handed to callbacks, reused so that delivering
	// a callback does not allocate.
	resp interfaces.Response
}

// New creates a channel and, when cfg.Provider is set, starts its worker.
func New(cfg Config) *Channel {
	c := &Channel{
		index:        cfg.Index,
		lanes:        cfg.Lanes,
		sent:         ring.New[interfaces.Handle](cfg.MaxRequests),
		freeLanes:    ring.New[uint32](cfg.Lanes),
		userIncoming: ring.New[interfaces.Handle](cfg.Lanes),
		userOutgoing: ring.New[interfaces.Handle](cfg.Lanes),
		pool:         cfg.Pool,
		provider:     cfg.Provider,
		async:        cfg.Async,
		logger:       cfg.Logger,
		observer:     cfg.Observer,
	}
	for lane := 0; lane < cfg.Lanes; lane++ {
		c.freeLanes.Enqueue(uint32(lane))
	}
	if cfg.Provider != nil {
		c.worker = newWorker(c, cfg.Lanes)
	}
	return c
}

// Index returns the channel's position in the engine's channel array.
func (c *Channel) Index() int {
	return c.index
}

// Push admits a freshly sent id into the sent queue. It reports false when
// the queue is full; the caller then releases the slot.
func (c *Channel) Push(id interfaces.Handle) bool {
	if c.sent.Full() {
		return false
	}
	c.sent.Enqueue(id)
	return true
}

// Dowork runs one pass of the pipeline. The engine runs two passes per
// public dowork call so a streaming item that just came back from the
// worker can be re-issued without waiting for the next call.
func (c *Channel) Dowork() {
	c.admit()
	c.transition()
	c.dispatch()
	if c.worker != nil {
		c.worker.dequeueOutgoing(c.userOutgoing)
	}
	c.drain()
}

// Shutdown stops the worker, if any. Pending items are not delivered.
func (c *Channel) Shutdown() {
	if c.worker != nil {
		c.worker.join()
	}
}

// ReleaseLive closes provider state still attached to live items on this
// channel. Called during engine shutdown, after the worker has stopped.
func (c *Channel) ReleaseLive() {
	c.pool.Each(func(id interfaces.Handle, it *pool.Item) {
		if it.Channel != c.index {
			return
		}
		if c.async != nil {
			c.async.Cancel(id)
			return
		}
		if it.IO.Res != nil {
			c.provider.Close(it.IO.Res)
			it.IO.Res = nil
		}
	})
}

// admit moves sent items into user-incoming while lanes are free. Admitted
// items keep their state; the lane stays theirs until the slot is freed.
func (c *Channel) admit() {
	n := c.sent.Count()
	if free := c.freeLanes.Count(); free < n {
		n = free
	}
	for i := 0; i < n; i++ {
		id := c.sent.Dequeue()
		lane := c.freeLanes.Dequeue()
		it := c.pool.Lookup(id)
		if it == nil {
			// Stale id in the sent queue; give the lane back.
			c.freeLanes.Enqueue(lane)
			continue
		}
		it.Lane = int(lane)
		c.userIncoming.Enqueue(id)
	}
	if c.observer != nil {
		c.observer.ObserveLaneOccupancy(uint32(c.lanes - c.freeLanes.Count()))
	}
}

// transition applies the caller-side flags and the state map, in place, to
// every item waiting in user-incoming.
//
// Flag order matters: a pause and a continue arriving in the same window
// cancel out, and a cancel overrides both.
func (c *Channel) transition() {
	n := c.userIncoming.Count()
	for i := 0; i < n; i++ {
		it := c.pool.Lookup(c.userIncoming.Peek(i))
		if it == nil {
			continue
		}
		if it.User.Pause {
			it.State = pool.StatePaused
			it.User.Pause = false
		}
		if it.User.Continue {
			if it.State == pool.StatePaused {
				it.State = pool.StateFetched
			}
			it.User.Continue = false
		}
		if it.User.Cancel {
			it.State = pool.StateFailed
			it.User.Finished = true
			it.User.Cancelled = true
			it.User.Cancel = false
		}
		switch it.State {
		case pool.StateAllocated:
			it.State = pool.StateOpening
		case pool.StateOpened, pool.StateFetched:
			it.State = pool.StateFetching
		}
	}
}

// dispatch hands the transitioned items to the I/O side: the worker inbox
// when threaded, the asynchronous provider otherwise.
func (c *Channel) dispatch() {
	if c.worker != nil {
		c.worker.enqueueIncoming(c.userIncoming)
		return
	}
	n := c.userIncoming.Count()
	for i := 0; i < n; i++ {
		c.startAsync(c.userIncoming.Dequeue())
	}
}

// startAsync issues one item to the asynchronous provider. Items with
// nothing to do on the I/O side go straight to user-outgoing, mirroring the
// worker's pass-through.
func (c *Channel) startAsync(id interfaces.Handle) {
	it := c.pool.Lookup(id)
	if it == nil {
		return
	}
	switch {
	case it.IO.Failed || it.State == pool.StatePaused || it.State == pool.StateFailed:
		c.userOutgoing.Enqueue(id)
	case it.State == pool.StateOpening:
		c.async.Open(id, it.PathString(), c)
	case it.State == pool.StateFetching:
		if it.Buffer == nil {
			it.IO.Failed = true
			it.IO.Finished = true
			c.userOutgoing.Enqueue(id)
			return
		}
		c.asyncRead(it, id)
	default:
		c.userOutgoing.Enqueue(id)
	}
}

// asyncRead computes the next chunk window and starts a range read.
func (c *Channel) asyncRead(it *pool.Item, id interfaces.Handle) {
	want := chunkLen(it.Buffer, it.IO.ContentSize, it.IO.ContentOffset)
	it.IO.ReadLen = want
	c.async.Read(id, it.IO.ContentOffset, it.Buffer[:want], c)
}

// chunkLen bounds the next read by the bound buffer and, when the total is
// known, by the remaining content.
func chunkLen(buf []byte, size, offset int64) int {
	want := len(buf)
	if size > 0 && size-offset < int64(want) {
		want = int(size - offset)
	}
	return want
}

// OnHeadResponse is the completion entry point for AsyncProvider.Open.
func (c *Channel) OnHeadResponse(id interfaces.Handle, contentSize int64) {
	it := c.pool.Lookup(id)
	if it == nil {
		return
	}
	it.IO.ContentSize = contentSize
	if it.Buffer != nil {
		// A pre-bound buffer lets the first chunk start right away
		// instead of waiting for an opened callback round trip.
		c.asyncRead(it, id)
		return
	}
	c.userOutgoing.Enqueue(id)
}

// OnRangeResponse is the completion entry point for AsyncProvider.Read.
func (c *Channel) OnRangeResponse(id interfaces.Handle, bytesRead int) {
	it := c.pool.Lookup(id)
	if it == nil {
		return
	}
	it.IO.FetchedSize = int64(bytesRead)
	it.IO.ContentOffset += int64(bytesRead)
	if it.IO.ContentSize > 0 && it.IO.ContentOffset >= it.IO.ContentSize {
		it.IO.Finished = true
	}
	if it.IO.ContentSize == 0 && bytesRead < it.IO.ReadLen {
		// Unknown total; a short read is the end of the content.
		it.IO.Finished = true
	}
	c.userOutgoing.Enqueue(id)
}

// OnFailed is the failure entry point for either provider operation.
func (c *Channel) OnFailed(id interfaces.Handle) {
	it := c.pool.Lookup(id)
	if it == nil {
		return
	}
	it.IO.Failed = true
	it.IO.Finished = true
	c.userOutgoing.Enqueue(id)
}

// process runs the I/O side of one item. On threaded channels it executes
// on the worker goroutine; the item is owned by the worker between inbox
// dequeue and outbox enqueue, and only the io-side half is touched.
func (c *Channel) process(id interfaces.Handle) {
	it := c.pool.Lookup(id)
	if it == nil || it.IO.Failed {
		// Stale or already failed; pass through unchanged.
		return
	}
	switch it.State {
	case pool.StateOpening:
		if !c.open(it) {
			return
		}
		if it.Buffer == nil {
			return
		}
		// A pre-bound buffer lets the first chunk load in the same pass.
		c.fetch(it)
	case pool.StateFetching:
		c.fetch(it)
	case pool.StateFailed:
		// Cancelled while a resource was open; release it before the
		// caller side frees the slot.
		if it.IO.Res != nil {
			c.provider.Close(it.IO.Res)
			it.IO.Res = nil
		}
	}
}

// open resolves the path and records the content size.
func (c *Channel) open(it *pool.Item) bool {
	var start time.Time
	if c.observer != nil {
		start = time.Now()
	}
	res, size, err := c.provider.OpenAndSize(it.PathString())
	if c.observer != nil {
		c.observer.ObserveOpen(uint64(time.Since(start).Nanoseconds()), err == nil)
	}
	if err != nil {
		if c.logger != nil {
			c.logger.Debugf("channel %d: open %q failed: %v", c.index, it.PathString(), err)
		}
		it.IO.Failed = true
		it.IO.Finished = true
		return false
	}
	it.IO.Res = res
	it.IO.ContentSize = size
	return true
}

// fetch reads the next chunk into the bound buffer and closes the resource
// once the content is exhausted or the read failed.
func (c *Channel) fetch(it *pool.Item) {
	if it.Buffer == nil {
		it.IO.Failed = true
	} else {
		want := chunkLen(it.Buffer, it.IO.ContentSize, it.IO.ContentOffset)
		var start time.Time
		if c.observer != nil {
			start = time.Now()
		}
		n, err := c.provider.ReadRange(it.IO.Res, it.IO.ContentOffset, it.Buffer[:want])
		if c.observer != nil {
			c.observer.ObserveRead(uint64(n), uint64(time.Since(start).Nanoseconds()), err == nil)
		}
		switch {
		case err != nil:
			if c.logger != nil {
				c.logger.Debugf("channel %d: read %q at %d failed: %v",
					c.index, it.PathString(), it.IO.ContentOffset, err)
			}
			it.IO.Failed = true
		case it.IO.ContentSize > 0 && n != want:
			// Short read against a known total.
			it.IO.Failed = true
		default:
			it.IO.FetchedSize = int64(n)
			it.IO.ContentOffset += int64(n)
			if it.IO.ContentSize == 0 && n < want {
				it.IO.Finished = true
			}
		}
	}
	if it.IO.Failed || it.IO.Finished ||
		(it.IO.ContentSize > 0 && it.IO.ContentOffset >= it.IO.ContentSize) {
		if it.IO.Res != nil {
			c.provider.Close(it.IO.Res)
			it.IO.Res = nil
		}
		it.IO.Finished = true
	}
}

// drain copies I/O results back to the caller side, derives the next
// state, invokes the callback, and either recycles the item for another
// pass or releases its lane and slot.
func (c *Channel) drain() {
	n := c.userOutgoing.Count()
	for i := 0; i < n; i++ {
		id := c.userOutgoing.Dequeue()
		it := c.pool.Lookup(id)
		if it == nil {
			continue
		}

		it.User.ContentSize = it.IO.ContentSize
		it.User.ContentOffset = it.IO.ContentOffset
		it.User.FetchedSize = it.IO.FetchedSize
		if it.IO.Finished {
			it.User.Finished = true
		}

		switch {
		case it.IO.Failed:
			it.State = pool.StateFailed
		case it.State == pool.StateOpening:
			if it.IO.ContentOffset > 0 {
				// The first chunk was loaded in the open pass.
				it.State = pool.StateFetched
			} else {
				it.State = pool.StateOpened
			}
		case it.State == pool.StateFetching:
			it.State = pool.StateFetched
		}

		c.invoke(id, it)

		if it.User.Finished {
			if c.observer != nil {
				c.observer.ObserveFinish(it.State == pool.StateFailed, it.User.Cancelled)
			}
			if it.Lane != pool.LaneNone {
				c.freeLanes.Enqueue(uint32(it.Lane))
			}
			c.pool.Free(id)
		} else {
			c.userIncoming.Enqueue(id)
		}
	}
}

// invoke builds the immutable response snapshot and calls into user code.
// The reported content offset is the start of the chunk delivered by this
// callback, not the stored read position.
func (c *Channel) invoke(id interfaces.Handle, it *pool.Item) {
	if it.Callback == nil {
		return
	}
	c.resp = interfaces.Response{
		Handle:        id,
		Channel:       c.index,
		Lane:          it.Lane,
		Opened:        it.State == pool.StateOpened,
		Fetched:       it.State == pool.StateFetched,
		Paused:        it.State == pool.StatePaused,
		Failed:        it.State == pool.StateFailed,
		Finished:      it.User.Finished,
		Cancelled:     it.User.Cancelled,
		Path:          it.PathString(),
		UserData:      it.User.Data[:it.User.DataLen],
		ContentSize:   it.User.ContentSize,
		ContentOffset: it.User.ContentOffset - it.User.FetchedSize,
		FetchedSize:   it.User.FetchedSize,
		Buffer:        it.Buffer,
	}
	it.Callback(&c.resp)
}

// Compile-time check: the channel is the engine-side completion sink for
// asynchronous providers.
var _ interfaces.Completions = (*Channel)(nil)
