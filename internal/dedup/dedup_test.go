package dedup

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func matchAll(int) (bool, error) { return true, nil }

func TestTable_GetOrCreate(t *testing.T) {
	tab := New[string, int]()

	calls := 0
	create := func() (int, error) {
		calls++
		return 42, nil
	}

	v, found, err := tab.GetOrCreate("key", matchAll, create)
	if err != nil || found || v != 42 {
		t.Fatalf("first GetOrCreate = %d, %v, %v; want 42, false, nil", v, found, err)
	}
	v, found, err = tab.GetOrCreate("key", matchAll, create)
	if err != nil || !found || v != 42 {
		t.Fatalf("second GetOrCreate = %d, %v, %v; want 42, true, nil", v, found, err)
	}
	if calls != 1 {
		t.Errorf("create called %d times, want 1", calls)
	}

	st := tab.Stats()
	if st.Len != 1 || st.Hits != 1 || st.Misses != 1 || st.Collisions != 0 {
		t.Errorf("Stats() = %+v, want len 1, 1 hit, 1 miss", st)
	}
}

func TestTable_Collision(t *testing.T) {
	// Every content hashes to key 0; the match function tells them apart.
	tab := New[int, string]()
	add := func(content string) (string, bool) {
		v, found, err := tab.GetOrCreate(0,
			func(c string) (bool, error) { return c == content, nil },
			func() (string, error) { return content, nil })
		if err != nil {
			t.Fatal(err)
		}
		return v, found
	}

	if v, found := add("a"); v != "a" || found {
		t.Errorf("add(a) = %q, %v", v, found)
	}
	if v, found := add("b"); v != "b" || found {
		t.Errorf("add(b) = %q, %v; want a new value despite the shared key", v, found)
	}
	if v, found := add("a"); v != "a" || !found {
		t.Errorf("add(a) again = %q, %v; want the existing value", v, found)
	}

	st := tab.Stats()
	if st.Len != 2 || st.Collisions != 1 || st.Hits != 1 {
		t.Errorf("Stats() = %+v, want 2 values, 1 collision, 1 hit", st)
	}
}

func TestTable_Errors(t *testing.T) {
	tab := New[string, int]()
	boom := errors.New("boom")

	_, _, err := tab.GetOrCreate("k", matchAll, func() (int, error) { return 0, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("GetOrCreate error = %v, want boom", err)
	}
	if tab.Len() != 0 {
		t.Errorf("Len() = %d after failed create, want 0", tab.Len())
	}
	if st := tab.Stats(); st.Misses != 0 {
		t.Errorf("failed create counted as miss: %+v", st)
	}

	if _, _, err := tab.GetOrCreate("k", matchAll, func() (int, error) { return 1, nil }); err != nil {
		t.Fatal(err)
	}
	_, _, err = tab.GetOrCreate("k",
		func(int) (bool, error) { return false, boom },
		func() (int, error) { t.Error("create ran after a match error"); return 0, nil })
	if !errors.Is(err, boom) {
		t.Errorf("GetOrCreate error = %v, want the match error", err)
	}
}

func TestTable_ConcurrentSingleCreation(t *testing.T) {
	tab := New[string, int]()
	var created atomic.Int32

	var wg sync.WaitGroup
	results := make([]int, 32)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, _, _ := tab.GetOrCreate("shared", matchAll, func() (int, error) {
				return int(created.Add(1)), nil
			})
			results[i] = v
		}()
	}
	wg.Wait()

	if created.Load() != 1 {
		t.Errorf("create ran %d times, want 1", created.Load())
	}
	for i, v := range results {
		if v != 1 {
			t.Errorf("results[%d] = %d, want 1", i, v)
		}
	}
}
