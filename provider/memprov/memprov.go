// Package memprov provides an in-memory fetch provider. It backs demos
// and tests that want real engine behavior without touching the file
// system or the network.
package memprov

import (
	"fmt"
	"sync"

	fetch "github.com/Comanx/go-fetch"
)

// Provider serves registered byte blobs by path. It is safe for use from
// multiple channel workers.
type Provider struct {
	mu    sync.RWMutex
	files map[string][]byte
}

// New creates an empty provider.
func New() *Provider {
	return &Provider{files: make(map[string][]byte)}
}

// Register stores data under path, replacing any previous entry.
func (p *Provider) Register(path string, data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.files[path] = data
}

// Unregister removes path. In-flight requests against it fail on their
// next read.
func (p *Provider) Unregister(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.files, path)
}

// OpenAndSize implements the provider interface. The resource is the path
// itself; the blob is resolved again per read so Unregister takes effect
// mid-stream.
func (p *Provider) OpenAndSize(path string) (any, int64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	data, ok := p.files[path]
	if !ok {
		return nil, 0, fmt.Errorf("memprov: no such entry: %s", path)
	}
	return path, int64(len(data)), nil
}

// ReadRange implements the provider interface.
func (p *Provider) ReadRange(res any, offset int64, dst []byte) (int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	path := res.(string)
	data, ok := p.files[path]
	if !ok {
		return 0, fmt.Errorf("memprov: entry removed: %s", path)
	}
	if offset >= int64(len(data)) {
		return 0, nil
	}
	return copy(dst, data[offset:]), nil
}

// Close implements the provider interface.
func (p *Provider) Close(any) {}

// Compile-time interface check
var _ fetch.Provider = (*Provider)(nil)
