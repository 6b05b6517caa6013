//go:build !unix

package fsprov

import (
	"fmt"
	"io"
	"os"
)

// OpenAndSize opens path read-only and reports its size from stat.
func (p *Provider) OpenAndSize(path string) (any, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("fsprov: open %s: %w", path, err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, fmt.Errorf("fsprov: stat %s: %w", path, err)
	}
	return f, st.Size(), nil
}

// ReadRange fills dst from the given offset.
func (p *Provider) ReadRange(res any, offset int64, dst []byte) (int, error) {
	f := res.(*os.File)
	n, err := f.ReadAt(dst, offset)
	if err == io.EOF {
		return n, nil
	}
	if err != nil {
		return n, fmt.Errorf("fsprov: read at %d: %w", offset, err)
	}
	return n, nil
}

// Close releases the file.
func (p *Provider) Close(res any) {
	_ = res.(*os.File).Close()
}
