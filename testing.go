package fetch

import "sync"

// MockProvider provides an in-memory Provider for testing. It tracks
// method calls and supports injected failures per path.
type MockProvider struct {
	mu      sync.RWMutex
	files   map[string][]byte
	openErr map[string]error
	readErr map[string]error

	openCalls  int
	readCalls  int
	closeCalls int
}

// NewMockProvider creates an empty mock provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		files:   make(map[string][]byte),
		openErr: make(map[string]error),
		readErr: make(map[string]error),
	}
}

// Register stores data under path.
func (m *MockProvider) Register(path string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = data
}

// SetOpenError makes OpenAndSize fail for path.
func (m *MockProvider) SetOpenError(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openErr[path] = err
}

// SetReadError makes ReadRange fail for path.
func (m *MockProvider) SetReadError(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErr[path] = err
}

// OpenAndSize implements the Provider interface. The resource is the path
// itself, so reads can observe errors injected after open.
func (m *MockProvider) OpenAndSize(path string) (Resource, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.openCalls++
	if err := m.openErr[path]; err != nil {
		return nil, 0, err
	}
	data, ok := m.files[path]
	if !ok {
		return nil, 0, NewError("open", ErrCodeNotFound, "no such entry: "+path)
	}
	return path, int64(len(data)), nil
}

// ReadRange implements the Provider interface.
func (m *MockProvider) ReadRange(res Resource, offset int64, dst []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.readCalls++
	path := res.(string)
	if err := m.readErr[path]; err != nil {
		return 0, err
	}
	data := m.files[path]
	if offset >= int64(len(data)) {
		return 0, nil
	}
	return copy(dst, data[offset:]), nil
}

// Close implements the Provider interface.
func (m *MockProvider) Close(Resource) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeCalls++
}

// CallCounts returns the number of times each method has been called.
func (m *MockProvider) CallCounts() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return map[string]int{
		"open":  m.openCalls,
		"read":  m.readCalls,
		"close": m.closeCalls,
	}
}

// AsyncMockProvider adapts a MockProvider to the asynchronous provider
// contract. Operations queue up and complete when Flush is called, the way
// an event-loop host delivers completions between engine passes.
type AsyncMockProvider struct {
	src     *MockProvider
	open    map[Handle]*asyncEntry
	pending []func()
}

type asyncEntry struct {
	res  Resource
	size int64
}

// NewAsyncMockProvider wraps src in the asynchronous contract.
func NewAsyncMockProvider(src *MockProvider) *AsyncMockProvider {
	return &AsyncMockProvider{
		src:  src,
		open: make(map[Handle]*asyncEntry),
	}
}

// Open implements the AsyncProvider interface.
func (m *AsyncMockProvider) Open(h Handle, path string, done Completions) {
	m.pending = append(m.pending, func() {
		res, size, err := m.src.OpenAndSize(path)
		if err != nil {
			done.OnFailed(h)
			return
		}
		m.open[h] = &asyncEntry{res: res, size: size}
		done.OnHeadResponse(h, size)
	})
}

// Read implements the AsyncProvider interface.
func (m *AsyncMockProvider) Read(h Handle, offset int64, dst []byte, done Completions) {
	m.pending = append(m.pending, func() {
		ent, ok := m.open[h]
		if !ok {
			done.OnFailed(h)
			return
		}
		n, err := m.src.ReadRange(ent.res, offset, dst)
		if err != nil {
			m.release(h)
			done.OnFailed(h)
			return
		}
		if n < len(dst) || (ent.size > 0 && offset+int64(n) >= ent.size) {
			// End of content; nothing further will be read.
			m.release(h)
		}
		done.OnRangeResponse(h, n)
	})
}

// Cancel implements the AsyncProvider interface. It closes and forgets the
// resource held for h; completions already queued for h are not withdrawn
// and still run on the next Flush.
func (m *AsyncMockProvider) Cancel(h Handle) {
	m.release(h)
}

// Flush delivers the completions queued so far. Operations started by
// those completions wait for the next Flush. Call it from the goroutine
// that drives the engine.
func (m *AsyncMockProvider) Flush() {
	n := len(m.pending)
	for i := 0; i < n; i++ {
		m.pending[i]()
	}
	m.pending = m.pending[n:]
}

// Pending returns the number of queued completions.
func (m *AsyncMockProvider) Pending() int {
	return len(m.pending)
}

func (m *AsyncMockProvider) release(h Handle) {
	if ent, ok := m.open[h]; ok {
		m.src.Close(ent.res)
		delete(m.open, h)
	}
}

// Compile-time interface checks
var (
	_ Provider      = (*MockProvider)(nil)
	_ AsyncProvider = (*AsyncMockProvider)(nil)
)
