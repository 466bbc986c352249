package bytecode

import (
	"bytes"
	"fmt"
	"io"
	"slices"
	"sync"

	"golang.org/x/exp/constraints"
)

// DefaultAlignment is the blob alignment of the default arena. It keeps
// SPIR-V words naturally aligned.
const DefaultAlignment = 8

// Sink receives archived blobs.
//
// Append stores p and returns the offset at which it can be read back with
// ReadAt. Implementations must be safe for concurrent use. A failed Append
// must not invalidate previously returned offsets.
type Sink interface {
	io.ReaderAt
	Append(p []byte) (off int64, err error)
}

// Arena is an in-memory Sink that places every blob at an aligned offset.
//
// Arena is safe for concurrent use.
type Arena struct {
	mu    sync.RWMutex
	buf   []byte
	align int
}

// NewArena returns an empty arena. align must be a power of two; values
// below 1 select DefaultAlignment.
func NewArena(align int) *Arena {
	if align < 1 {
		align = DefaultAlignment
	}
	if align&(align-1) != 0 {
		panic(fmt.Sprintf("bytecode: arena alignment %d is not a power of two", align))
	}
	return &Arena{align: align}
}

// Append copies p to the next aligned offset.
func (a *Arena) Append(p []byte) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	off := alignUp(len(a.buf), a.align)
	a.buf = slices.Grow(a.buf, off-len(a.buf)+len(p))
	a.buf = a.buf[:off]
	a.buf = append(a.buf, p...)
	return int64(off), nil
}

// ReadAt implements io.ReaderAt.
func (a *Arena) ReadAt(p []byte, off int64) (int, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if off < 0 || off > int64(len(a.buf)) {
		return 0, io.EOF
	}
	n := copy(p, a.buf[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// equal reports whether the arena holds p at off.
func (a *Arena) equal(off int64, p []byte) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if off < 0 || off+int64(len(p)) > int64(len(a.buf)) {
		return false
	}
	return bytes.Equal(a.buf[off:off+int64(len(p))], p)
}

// Size returns the number of bytes in the arena, padding included.
func (a *Arena) Size() int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return int64(len(a.buf))
}

// Bytes returns a copy of the arena contents.
func (a *Arena) Bytes() []byte {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return slices.Clone(a.buf)
}

// alignUp rounds v up to a multiple of align. align must be a power of two.
func alignUp[T constraints.Integer](v, align T) T {
	return (v + align - 1) &^ (align - 1)
}
