// Package fsprov implements the local file system provider. On unix
// platforms it reads with positioned pread calls so one descriptor serves
// a whole streaming request without seeking; elsewhere it falls back to
// the portable os API.
package fsprov

import (
	fetch "github.com/Comanx/go-fetch"
)

// Provider reads local files. The zero value is ready to use.
type Provider struct{}

// New creates a file system provider.
func New() *Provider {
	return &Provider{}
}

// Compile-time interface check
var _ fetch.Provider = (*Provider)(nil)
