//go:build unix

package fsprov

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// OpenAndSize opens path read-only and reports its size from fstat.
func (p *Provider) OpenAndSize(path string) (any, int64, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, 0, fmt.Errorf("fsprov: open %s: %w", path, err)
	}
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		_ = unix.Close(fd)
		return nil, 0, fmt.Errorf("fsprov: fstat %s: %w", path, err)
	}
	return fd, st.Size, nil
}

// ReadRange fills dst from the given offset. It loops over pread so a
// partial read from the kernel does not surface as a short chunk.
func (p *Provider) ReadRange(res any, offset int64, dst []byte) (int, error) {
	fd := res.(int)
	total := 0
	for total < len(dst) {
		n, err := unix.Pread(fd, dst[total:], offset+int64(total))
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return total, fmt.Errorf("fsprov: pread at %d: %w", offset+int64(total), err)
		}
		if n == 0 {
			break
		}
		total += n
	}
	return total, nil
}

// Close releases the descriptor.
func (p *Provider) Close(res any) {
	_ = unix.Close(res.(int))
}
