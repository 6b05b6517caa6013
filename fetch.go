// Package fetch provides the main API for the asynchronous file/URL
// fetching engine: handle-based requests, bounded concurrent streaming
// into caller-owned buffers, and response callbacks delivered on the
// caller's own goroutine.
package fetch

import (
	"github.com/Comanx/go-fetch/internal/channel"
	"github.com/Comanx/go-fetch/internal/constants"
	"github.com/Comanx/go-fetch/internal/interfaces"
	"github.com/Comanx/go-fetch/internal/pool"
)

// Params contains parameters for creating an engine. Zero values mean
// defaults.
type Params struct {
	// MaxRequests is the request pool size shared by all channels
	// (default: 128).
	MaxRequests int

	// NumChannels is the number of independent pipelines (default: 1,
	// at most MaxChannels).
	NumChannels int

	// NumLanes bounds the in-flight requests per channel (default: 1).
	// Overflow waits in the sent queue.
	NumLanes int

	// Provider is the blocking I/O backend; each channel gets one worker
	// goroutine that calls it. Exactly one of Provider and AsyncProvider
	// must be set.
	Provider Provider

	// AsyncProvider is the non-blocking backend; no workers are started
	// and completions run inline on the engine goroutine.
	AsyncProvider AsyncProvider

	// Logger for debug/info messages (if nil, no logging)
	Logger Logger

	// Observer for metrics collection (if nil, records to the engine's
	// built-in Metrics)
	Observer Observer
}

// DefaultParams returns default engine parameters over the given provider.
func DefaultParams(provider Provider) Params {
	return Params{
		MaxRequests: constants.DefaultMaxRequests,
		NumChannels: constants.DefaultNumChannels,
		NumLanes:    constants.DefaultNumLanes,
		Provider:    provider,
	}
}

// Engine is one fetch engine instance. An engine belongs to the goroutine
// that called Setup: every public method and every response callback runs
// there. Independent engines on other goroutines do not share state.
type Engine struct {
	valid      bool
	inCallback bool

	pool     *pool.Pool
	channels []*channel.Channel

	provider interfaces.Provider
	async    interfaces.AsyncProvider
	logger   interfaces.Logger
	observer interfaces.Observer
	metrics  *Metrics
}

// Setup creates an engine. All pool and queue memory is allocated here;
// Send and Dowork never allocate afterwards, except to report errors.
func Setup(params Params) (*Engine, error) {
	if (params.Provider == nil) == (params.AsyncProvider == nil) {
		return nil, NewError("setup", ErrCodeInvalidParameters,
			"exactly one of Provider and AsyncProvider must be set")
	}
	if params.MaxRequests < 0 || params.NumChannels < 0 || params.NumLanes < 0 {
		return nil, NewError("setup", ErrCodeInvalidParameters, "negative sizes")
	}

	maxRequests := params.MaxRequests
	if maxRequests == 0 {
		maxRequests = constants.DefaultMaxRequests
	}
	numChannels := params.NumChannels
	if numChannels == 0 {
		numChannels = constants.DefaultNumChannels
	}
	if numChannels > constants.MaxChannels {
		numChannels = constants.MaxChannels
	}
	numLanes := params.NumLanes
	if numLanes == 0 {
		numLanes = constants.DefaultNumLanes
	}

	metrics := NewMetrics()
	var observer interfaces.Observer
	if params.Observer != nil {
		observer = params.Observer
	} else {
		observer = NewMetricsObserver(metrics)
	}

	e := &Engine{
		valid:    true,
		pool:     pool.New(maxRequests),
		provider: params.Provider,
		async:    params.AsyncProvider,
		logger:   params.Logger,
		observer: observer,
		metrics:  metrics,
	}
	e.channels = make([]*channel.Channel, numChannels)
	for i := range e.channels {
		e.channels[i] = channel.New(channel.Config{
			Index:       i,
			Lanes:       numLanes,
			MaxRequests: maxRequests,
			Pool:        e.pool,
			Provider:    e.provider,
			Async:       e.async,
			Logger:      e.logger,
			Observer:    observer,
		})
	}

	if e.logger != nil {
		e.logger.Printf("engine ready: %d channels, %d lanes, %d request slots",
			numChannels, numLanes, maxRequests)
	}
	return e, nil
}

// Shutdown joins the channel workers, closes provider state still attached
// to live requests, and invalidates the engine. Callbacks for in-flight
// items are not invoked. Shutdown must not be called from inside a
// response callback.
func (e *Engine) Shutdown() {
	if e == nil || !e.valid {
		return
	}
	e.valid = false
	for _, c := range e.channels {
		c.Shutdown()
	}
	for _, c := range e.channels {
		c.ReleaseLive()
	}
	e.metrics.Stop()
	e.channels = nil
	e.pool = nil
	if e.logger != nil {
		e.logger.Printf("engine shut down")
	}
}

// Valid reports whether the engine is between Setup and Shutdown.
func (e *Engine) Valid() bool {
	return e != nil && e.valid
}

// Send validates req, allocates a request slot and queues it on its
// channel. On any failure it returns InvalidHandle and an error; no
// callback will ever fire for a failed send.
func (e *Engine) Send(req Request) (Handle, error) {
	if !e.Valid() {
		return InvalidHandle, NewError("send", ErrCodeEngineClosed, "engine is shut down")
	}
	if req.Callback == nil {
		return InvalidHandle, NewError("send", ErrCodeInvalidParameters, "callback is required")
	}
	if req.Path == "" {
		return InvalidHandle, NewError("send", ErrCodeInvalidParameters, "path is empty")
	}
	if len(req.Path) > constants.MaxPath-1 {
		return InvalidHandle, NewError("send", ErrCodeInvalidParameters, "path too long")
	}
	if req.Channel < 0 || req.Channel >= len(e.channels) {
		return InvalidHandle, NewChannelError("send", req.Channel,
			ErrCodeInvalidParameters, "channel index out of range")
	}
	if len(req.UserData) > constants.MaxUserData {
		return InvalidHandle, NewError("send", ErrCodeInvalidParameters, "user data too large")
	}

	h := e.pool.Alloc(pool.Desc{
		Channel:  req.Channel,
		Path:     req.Path,
		Callback: req.Callback,
		Buffer:   req.Buffer,
		UserData: req.UserData,
	})
	if h == 0 {
		return InvalidHandle, NewError("send", ErrCodePoolExhausted, "request pool exhausted")
	}
	if !e.channels[req.Channel].Push(h) {
		e.pool.Free(h)
		return InvalidHandle, NewChannelError("send", req.Channel,
			ErrCodeQueueFull, "sent queue is full")
	}
	return h, nil
}

// Dowork runs two passes over every channel: admits sent requests to free
// lanes, applies pause/continue/cancel, exchanges items with the workers,
// and delivers response callbacks on the calling goroutine. The second
// pass lets a streaming chunk that just came back re-enter the worker in
// the same call.
func (e *Engine) Dowork() error {
	if !e.Valid() {
		return NewError("dowork", ErrCodeEngineClosed, "engine is shut down")
	}
	e.inCallback = true
	for pass := 0; pass < 2; pass++ {
		for _, c := range e.channels {
			c.Dowork()
		}
	}
	e.inCallback = false
	return nil
}

// HandleValid reports whether h refers to a live request.
func (e *Engine) HandleValid(h Handle) bool {
	return e.Valid() && h != InvalidHandle && e.pool.Lookup(h) != nil
}

// Cancel asks the request to stop. It takes effect on the next Dowork: the
// final callback fires once with Failed, Cancelled and Finished set.
// Cancelling an unknown or finished handle is a no-op.
func (e *Engine) Cancel(h Handle) {
	if it := e.lookup(h); it != nil {
		it.User.Cancel = true
	}
}

// Pause parks the request after its current chunk. While paused, each
// Dowork delivers a callback with Paused set.
func (e *Engine) Pause(h Handle) {
	if it := e.lookup(h); it != nil {
		it.User.Pause = true
	}
}

// Continue resumes a paused request. On a request that is not paused it
// has no effect.
func (e *Engine) Continue(h Handle) {
	if it := e.lookup(h); it != nil {
		it.User.Continue = true
	}
}

// BindBuffer attaches buf as the request's chunk destination. It may only
// be called from inside a response callback, and only while no buffer is
// bound.
func (e *Engine) BindBuffer(h Handle, buf []byte) error {
	it, err := e.callbackItem("bind_buffer", h)
	if err != nil {
		return err
	}
	if it.Buffer != nil {
		return NewHandleError("bind_buffer", h, ErrCodeBufferBound, "a buffer is already bound")
	}
	it.Buffer = buf
	return nil
}

// UnbindBuffer detaches and returns the currently bound buffer, or nil if
// none was bound. Like BindBuffer it is only valid inside a response
// callback.
func (e *Engine) UnbindBuffer(h Handle) ([]byte, error) {
	it, err := e.callbackItem("unbind_buffer", h)
	if err != nil {
		return nil, err
	}
	prev := it.Buffer
	it.Buffer = nil
	return prev, nil
}

// Metrics returns the engine's built-in metrics.
func (e *Engine) Metrics() *Metrics {
	if e == nil {
		return nil
	}
	return e.metrics
}

// MetricsSnapshot returns a point-in-time snapshot of the engine metrics.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) lookup(h Handle) *pool.Item {
	if !e.Valid() || h == InvalidHandle {
		return nil
	}
	return e.pool.Lookup(h)
}

// callbackItem resolves h for the buffer operations, which are only legal
// while a Dowork callback is executing.
func (e *Engine) callbackItem(op string, h Handle) (*pool.Item, error) {
	if !e.Valid() {
		return nil, NewError(op, ErrCodeEngineClosed, "engine is shut down")
	}
	if !e.inCallback {
		return nil, NewHandleError(op, h, ErrCodeNotInCallback,
			"only valid inside a response callback")
	}
	it := e.pool.Lookup(h)
	if it == nil {
		return nil, NewHandleError(op, h, ErrCodeNotFound, "unknown or stale handle")
	}
	return it, nil
}
