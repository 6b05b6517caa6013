// Package interfaces provides internal interface and contract definitions
// for go-fetch. These are separate from the public interfaces to avoid
// circular imports between the main package and internal packages.
package interfaces

// Handle identifies one in-flight request. The low half is a slot index in
// the request pool, the high half a per-slot generation counter. Handle 0
// is never valid.
type Handle uint32

// Resource is an opaque per-request value owned by a Provider. It is
// returned by OpenAndSize and passed back to ReadRange and Close.
type Resource = any

// Provider is the blocking I/O backend. Each channel worker calls it
// sequentially, so implementations only need to be safe for concurrent use
// when they are shared across channels.
type Provider interface {
	// OpenAndSize resolves path and reports the total content size in
	// bytes. A size of zero means the provider cannot vouch for the
	// total; the engine then fetches until a short read.
	OpenAndSize(path string) (Resource, int64, error)

	// ReadRange reads up to len(dst) bytes starting at offset. It returns
	// the number of bytes read; returning fewer than len(dst) without an
	// error is only valid at end of content.
	ReadRange(res Resource, offset int64, dst []byte) (int, error)

	// Close releases the resource. Called exactly once per successful
	// OpenAndSize.
	Close(res Resource)
}

// Completions is the completion half of the asynchronous provider
// contract. It is implemented by the engine; AsyncProvider implementations
// invoke exactly one method per started operation, on the goroutine that
// drives the engine.
type Completions interface {
	// OnHeadResponse reports the content size obtained for h.
	OnHeadResponse(h Handle, contentSize int64)

	// OnRangeResponse reports a completed range read of bytesRead bytes.
	OnRangeResponse(h Handle, bytesRead int)

	// OnFailed reports that the pending operation for h failed.
	OnFailed(h Handle)
}

// AsyncProvider is the non-blocking backend used when the engine runs
// without channel workers. Calls return immediately; completions arrive
// later through the Completions value.
type AsyncProvider interface {
	Open(h Handle, path string, done Completions)
	Read(h Handle, offset int64, dst []byte, done Completions)

	// Cancel discards any provider state held for h. No completion is
	// delivered afterwards.
	Cancel(h Handle)
}

// Logger interface for optional logging.
type Logger interface {
	Printf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// Observer interface for metrics collection.
// Implementations must be thread-safe as methods are called from channel
// workers.
type Observer interface {
	ObserveOpen(latencyNs uint64, success bool)
	ObserveRead(bytes uint64, latencyNs uint64, success bool)
	ObserveFinish(failed, cancelled bool)
	ObserveLaneOccupancy(occupied uint32)
}

// Response is the snapshot passed to a response callback. It is read-only
// apart from UserData and valid only for the duration of the call.
type Response struct {
	Handle  Handle
	Channel int
	Lane    int

	// At most one of Opened, Fetched, Paused and Failed is true. Finished
	// and Cancelled combine with Failed.
	Opened    bool
	Fetched   bool
	Paused    bool
	Failed    bool
	Finished  bool
	Cancelled bool

	// Path borrows the request's stored path. Do not retain it past the
	// callback.
	Path string

	// UserData is a read/write view of the request's inline user data.
	UserData []byte

	// ContentSize is the total size of the content, or 0 when unknown.
	ContentSize int64

	// ContentOffset is the start of the chunk delivered by this callback.
	ContentOffset int64

	// FetchedSize is the length of the delivered chunk.
	FetchedSize int64

	Buffer []byte
}

// Callback is the caller-provided response function. It always runs on the
// goroutine that drives the engine.
type Callback func(*Response)
