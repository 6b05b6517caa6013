package fetch

import (
	"github.com/Comanx/go-fetch/internal/interfaces"
)

// Handle identifies an in-flight request. Handles are opaque, cheap to
// copy, and generation-checked: a handle kept past its request's final
// callback fails every lookup instead of aliasing a reused slot.
type Handle = interfaces.Handle

// InvalidHandle is the zero handle. It is returned by failed sends and
// never validates.
const InvalidHandle Handle = 0

// Resource is an opaque per-request value owned by a Provider.
type Resource = any

// Provider is the blocking I/O backend consumed by channel workers. See
// the provider directory for implementations.
type Provider interface {
	OpenAndSize(path string) (Resource, int64, error)
	ReadRange(res Resource, offset int64, dst []byte) (int, error)
	Close(res Resource)
}

// Completions is implemented by the engine; asynchronous providers call it
// from the engine's goroutine when an operation finishes.
type Completions = interfaces.Completions

// AsyncProvider is the non-blocking backend used when the engine runs
// without workers, for hosts whose I/O completes through an event loop on
// the engine's own goroutine. Calls return immediately; the provider later
// invokes exactly one Completions method per started operation.
type AsyncProvider = interfaces.AsyncProvider

// Logger interface for optional logging.
type Logger interface {
	Printf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// Response is the snapshot passed to a response callback. It is valid only
// for the duration of the call; UserData is the one writable view.
type Response = interfaces.Response

// ResponseCallback is the caller-provided response function. It always
// runs on the goroutine that drives the engine's Dowork.
type ResponseCallback = interfaces.Callback

// Request describes one fetch. Buffer and UserData are optional; a request
// without a buffer delivers an opened callback first so one can be bound.
type Request struct {
	// Channel selects the pipeline; fixed for the request's lifetime.
	Channel int

	// Path is the file path or URL, at most MaxPath-1 bytes.
	Path string

	// Callback receives every caller-visible state change. Required.
	Callback ResponseCallback

	// Buffer is the caller-owned chunk destination. While the request is
	// in flight outside a callback, the caller must not mutate or free it.
	Buffer []byte

	// UserData is copied inline into the request, at most MaxUserData
	// bytes, and lent back through every response snapshot.
	UserData []byte
}
