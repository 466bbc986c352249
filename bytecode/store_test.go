package bytecode

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/gogpu/gputypes"
)

const (
	vs = gputypes.ShaderStageVertex
	fs = gputypes.ShaderStageFragment
)

// =============================================================================
// Store
// =============================================================================

func TestStore_AddDeduplicates(t *testing.T) {
	s := NewStore(nil)
	code := []byte{1, 2, 3, 4, 5}

	i1, err := s.Add(gputypes.BackendVulkan, vs, code)
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	i2, err := s.Add(gputypes.BackendVulkan, vs, bytes.Clone(code))
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if i1 != i2 {
		t.Errorf("identical blobs got indices %d and %d", i1, i2)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}

	st := s.Stats()
	if st.Hits != 1 || st.Misses != 1 || st.Bytes != 5 {
		t.Errorf("Stats() = %+v, want 1 hit, 1 miss, 5 bytes", st)
	}
}

func TestStore_KeyIncludesBackendAndStage(t *testing.T) {
	s := NewStore(nil)
	code := []byte{9, 9, 9, 9}

	a, _ := s.Add(gputypes.BackendVulkan, vs, code)
	b, _ := s.Add(gputypes.BackendVulkan, fs, code)
	c, _ := s.Add(gputypes.BackendGL, vs, code)

	if a != 0 || b != 1 || c != 2 {
		t.Errorf("indices = %d, %d, %d; want 0, 1, 2", a, b, c)
	}
	if s.Len() != 3 {
		t.Errorf("Len() = %d, want 3", s.Len())
	}
}

func TestStore_Blob(t *testing.T) {
	s := NewStore(NewArena(16))
	blobs := [][]byte{{1}, {2, 2, 2}, {3, 3, 3, 3, 3, 3, 3, 3, 3, 3, 3, 3, 3, 3, 3, 3, 3}}

	var idx []Index
	for _, b := range blobs {
		i, err := s.Add(gputypes.BackendVulkan, fs, b)
		if err != nil {
			t.Fatal(err)
		}
		idx = append(idx, i)
	}

	for k, i := range idx {
		got, err := s.Blob(i)
		if err != nil {
			t.Fatalf("Blob(%d) error = %v", i, err)
		}
		if !bytes.Equal(got, blobs[k]) {
			t.Errorf("Blob(%d) = %v, want %v", i, got, blobs[k])
		}
		e, _ := s.Entry(i)
		if e.Offset%16 != 0 {
			t.Errorf("blob %d offset %d is not 16-byte aligned", i, e.Offset)
		}
	}

	if _, err := s.Blob(99); !errors.Is(err, ErrInvalidIndex) {
		t.Errorf("Blob(99) error = %v, want ErrInvalidIndex", err)
	}
}

func TestStore_Empty(t *testing.T) {
	s := NewStore(nil)
	if _, err := s.Add(gputypes.BackendVulkan, vs, nil); !errors.Is(err, ErrEmptyBlob) {
		t.Errorf("Add(nil) error = %v, want ErrEmptyBlob", err)
	}
}

func TestStore_Concurrent(t *testing.T) {
	s := NewStore(nil)
	codes := [][]byte{{1, 1}, {2, 2}, {3, 3}, {4, 4}}

	var wg sync.WaitGroup
	got := make([][]Index, 16)
	for g := range got {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, c := range codes {
				i, err := s.Add(gputypes.BackendVulkan, vs, c)
				if err != nil {
					t.Error(err)
					return
				}
				got[g] = append(got[g], i)
			}
		}()
	}
	wg.Wait()

	if s.Len() != len(codes) {
		t.Fatalf("Len() = %d, want %d", s.Len(), len(codes))
	}
	for g := range got {
		for k := range codes {
			if got[g][k] != got[0][k] {
				t.Errorf("goroutine %d got index %d for blob %d, want %d", g, got[g][k], k, got[0][k])
			}
		}
	}
}

// failingSink fails every Append after the first n.
type failingSink struct {
	*Arena
	n int
}

func TestStore_DigestCollision(t *testing.T) {
	s := NewStore(nil)
	s.digest = func([]byte) uint64 { return 7 }

	a, _ := s.Add(gputypes.BackendVulkan, vs, []byte{1, 2, 3, 4})
	b, _ := s.Add(gputypes.BackendVulkan, vs, []byte{5, 6, 7, 8})
	again, _ := s.Add(gputypes.BackendVulkan, vs, []byte{5, 6, 7, 8})

	if a == b {
		t.Fatalf("different blobs with equal digests share index %d", a)
	}
	if again != b {
		t.Errorf("re-adding the second blob gave %d, want %d", again, b)
	}
	if st := s.Stats(); st.Blobs != 2 || st.Collisions != 1 || st.Hits != 1 {
		t.Errorf("Stats() = %+v, want 2 blobs, 1 collision, 1 hit", st)
	}
	if got, _ := s.Blob(b); !bytes.Equal(got, []byte{5, 6, 7, 8}) {
		t.Errorf("Blob(%d) = %v", b, got)
	}
}

func TestStore_DedupThroughReaderAt(t *testing.T) {
	// A sink other than *Arena is compared through ReadAt.
	s := NewStore(&failingSink{Arena: NewArena(0), n: 2})
	s.digest = func([]byte) uint64 { return 0 }

	a, err := s.Add(gputypes.BackendGL, fs, []byte{1, 1, 1, 1})
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.Add(gputypes.BackendGL, fs, []byte{1, 1, 1, 1})
	if err != nil || a != b {
		t.Errorf("Add() = %d, %v; want %d", b, err, a)
	}
	c, err := s.Add(gputypes.BackendGL, fs, []byte{2, 2, 2, 2})
	if err != nil || c == a {
		t.Errorf("Add(other) = %d, %v; want a new index", c, err)
	}
}

var errDiskFull = errors.New("disk full")

func (f *failingSink) Append(p []byte) (int64, error) {
	if f.n == 0 {
		return 0, errDiskFull
	}
	f.n--
	return f.Arena.Append(p)
}

func TestStore_SinkFailure(t *testing.T) {
	s := NewStore(&failingSink{Arena: NewArena(0), n: 1})

	first, err := s.Add(gputypes.BackendVulkan, vs, []byte{1, 2, 3, 4})
	if err != nil {
		t.Fatal(err)
	}

	_, err = s.Add(gputypes.BackendVulkan, vs, []byte{5, 6, 7, 8})
	if !errors.Is(err, ErrStoreWrite) || !errors.Is(err, errDiskFull) {
		t.Fatalf("Add() error = %v, want ErrStoreWrite wrapping the sink error", err)
	}
	var se *StoreError
	if !errors.As(err, &se) || se.Size != 4 || se.Stage != vs {
		t.Errorf("StoreError = %+v", se)
	}

	if s.Len() != 1 {
		t.Errorf("Len() = %d after failure, want 1", s.Len())
	}
	if b, err := s.Blob(first); err != nil || !bytes.Equal(b, []byte{1, 2, 3, 4}) {
		t.Errorf("earlier blob damaged: %v, %v", b, err)
	}
}

// =============================================================================
// Arena
// =============================================================================

func TestArena_Alignment(t *testing.T) {
	a := NewArena(8)
	off1, _ := a.Append([]byte{1, 2, 3})
	off2, _ := a.Append([]byte{4})
	if off1 != 0 || off2 != 8 {
		t.Errorf("offsets = %d, %d; want 0, 8", off1, off2)
	}
	if a.Size() != 9 {
		t.Errorf("Size() = %d, want 9", a.Size())
	}
	if want := []byte{1, 2, 3, 0, 0, 0, 0, 0, 4}; !bytes.Equal(a.Bytes(), want) {
		t.Errorf("Bytes() = %v, want %v", a.Bytes(), want)
	}
}

func TestArena_BadAlignmentPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("NewArena(3) did not panic")
		}
	}()
	NewArena(3)
}

func TestAlignUp(t *testing.T) {
	tests := []struct{ v, align, want int }{
		{0, 8, 0}, {1, 8, 8}, {8, 8, 8}, {9, 4, 12}, {5, 1, 5},
	}
	for _, tt := range tests {
		if got := alignUp(tt.v, tt.align); got != tt.want {
			t.Errorf("alignUp(%d, %d) = %d, want %d", tt.v, tt.align, got, tt.want)
		}
	}
	if got := alignUp(uint32(13), 16); got != 16 {
		t.Errorf("alignUp(uint32) = %d, want 16", got)
	}
}
