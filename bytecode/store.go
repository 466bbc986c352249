// Package bytecode archives compiled shader blobs and hands out stable,
// deduplicated indices.
//
// A Store is shared by all pipelines of an archive. Adding a blob that is
// already present for the same backend and stage returns the existing index
// without storing it again, so pipelines that share shaders share entries.
// Blobs are found by a digest of their content and confirmed by comparing
// against the bytes in the sink, which holds the only copy.
package bytecode

import (
	"bytes"
	"errors"
	"fmt"
	"hash/maphash"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/psoarchive/internal/dedup"
)

// Index identifies an archived blob. Indices are assigned in insertion order
// starting at zero and never change.
type Index uint32

// Store errors.
var (
	// ErrStoreWrite is wrapped by every *StoreError.
	ErrStoreWrite = errors.New("bytecode: failed to write blob")

	// ErrEmptyBlob is returned when adding zero-length code.
	ErrEmptyBlob = errors.New("bytecode: empty blob")

	// ErrInvalidIndex is returned for an index the store never handed out.
	ErrInvalidIndex = errors.New("bytecode: invalid blob index")
)

// StoreError reports a blob the sink could not accept.
type StoreError struct {
	Backend gputypes.Backend
	Stage   gputypes.ShaderStage
	Size    int
	Err     error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%v: %s %s blob of %d bytes: %v", ErrStoreWrite, e.Backend, e.Stage, e.Size, e.Err)
}

// Unwrap returns ErrStoreWrite and the sink error.
func (e *StoreError) Unwrap() []error { return []error{ErrStoreWrite, e.Err} }

// Entry describes an archived blob.
type Entry struct {
	Backend gputypes.Backend
	Stage   gputypes.ShaderStage
	Offset  int64
	Size    int
}

// Stats contains store statistics.
type Stats struct {
	// Blobs is the number of unique blobs.
	Blobs int
	// Bytes is the total size of the unique blobs, padding excluded.
	Bytes int64
	// Hits is the number of Add calls that returned an existing index.
	Hits uint64
	// Misses is the number of Add calls that stored a new blob.
	Misses uint64
	// Collisions is the number of stored blobs whose digest matched a
	// different blob.
	Collisions uint64
}

// Store is a deduplicating blob store.
//
// Store is safe for concurrent use.
type Store struct {
	sink   Sink
	digest func([]byte) uint64
	table  *dedup.Table[blobKey, Index]

	mu      sync.RWMutex
	entries []Entry
	bytes   int64
}

// NewStore returns a store writing to sink. A nil sink selects an Arena with
// DefaultAlignment.
func NewStore(sink Sink) *Store {
	if sink == nil {
		sink = NewArena(DefaultAlignment)
	}
	seed := maphash.MakeSeed()
	return &Store{
		sink:   sink,
		digest: func(b []byte) uint64 { return maphash.Bytes(seed, b) },
		table:  dedup.New[blobKey, Index](),
	}
}

// Sink returns the sink the store writes to.
func (s *Store) Sink() Sink { return s.sink }

// blobKey is the dedup key of a blob.
type blobKey struct {
	backend gputypes.Backend
	stage   gputypes.ShaderStage
	size    int
	sum     uint64
}

func (s *Store) key(backend gputypes.Backend, stage gputypes.ShaderStage, code []byte) blobKey {
	return blobKey{backend: backend, stage: stage, size: len(code), sum: s.digest(code)}
}

// holds reports whether blob i is code.
func (s *Store) holds(i Index, code []byte) (bool, error) {
	e, err := s.Entry(i)
	if err != nil {
		return false, err
	}
	if e.Size != len(code) {
		return false, nil
	}
	if a, ok := s.sink.(*Arena); ok {
		return a.equal(e.Offset, code), nil
	}
	buf := make([]byte, e.Size)
	if _, err := s.sink.ReadAt(buf, e.Offset); err != nil {
		return false, fmt.Errorf("bytecode: read blob %d: %w", i, err)
	}
	return bytes.Equal(buf, code), nil
}

// Add archives code for backend and stage and returns its index.
//
// Identical (backend, stage, code) triples always yield the same index, also
// under concurrent calls. A sink failure is returned as *StoreError; the
// store is unchanged and earlier indices stay valid.
func (s *Store) Add(backend gputypes.Backend, stage gputypes.ShaderStage, code []byte) (Index, error) {
	if len(code) == 0 {
		return 0, fmt.Errorf("%w: %s %s", ErrEmptyBlob, backend, stage)
	}

	match := func(i Index) (bool, error) { return s.holds(i, code) }
	idx, found, err := s.table.GetOrCreate(s.key(backend, stage, code), match, func() (Index, error) {
		off, err := s.sink.Append(code)
		if err != nil {
			return 0, &StoreError{Backend: backend, Stage: stage, Size: len(code), Err: err}
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		idx := Index(len(s.entries))
		s.entries = append(s.entries, Entry{Backend: backend, Stage: stage, Offset: off, Size: len(code)})
		s.bytes += int64(len(code))
		return idx, nil
	})
	if err != nil {
		slogger().Warn("bytecode: add failed", "backend", backend, "stage", stage, "size", len(code), "err", err)
		return 0, err
	}

	slogger().Debug("bytecode: add", "backend", backend, "stage", stage, "index", idx, "size", len(code), "dedup", found)
	return idx, nil
}

// Entry returns the description of blob i.
func (s *Store) Entry(i Index) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if int(i) >= len(s.entries) {
		return Entry{}, fmt.Errorf("%w %d", ErrInvalidIndex, i)
	}
	return s.entries[i], nil
}

// Blob returns a copy of blob i.
func (s *Store) Blob(i Index) ([]byte, error) {
	e, err := s.Entry(i)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, e.Size)
	if _, err := s.sink.ReadAt(buf, e.Offset); err != nil {
		return nil, fmt.Errorf("bytecode: read blob %d: %w", i, err)
	}
	return buf, nil
}

// Len returns the number of unique blobs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}

// Size returns the total size of the unique blobs.
func (s *Store) Size() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.bytes
}

// Stats returns store statistics.
func (s *Store) Stats() Stats {
	t := s.table.Stats()

	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		Blobs:      len(s.entries),
		Bytes:      s.bytes,
		Hits:       t.Hits,
		Misses:     t.Misses,
		Collisions: t.Collisions,
	}
}
