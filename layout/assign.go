package layout

import (
	"fmt"

	"github.com/gogpu/psoarchive/signature"
)

// GroupSets lists the descriptor sets assigned to one binding group.
type GroupSets struct {
	// Base is the value of the running set counter when the group was
	// reached. Resource set indices are relative to Base.
	Base uint32

	// Sets holds the assigned descriptor set indices; only the first Count
	// entries are valid.
	Sets [signature.NumClasses]uint32

	// Count is the number of descriptor sets the group uses.
	Count uint8
}

// Mapping maps binding groups to descriptor sets.
//
// Mapping contains only fixed-size arrays, so two mappings can be compared
// with ==.
type Mapping struct {
	// Groups is indexed by binding index. Empty groups are zero.
	Groups [MaxBindingGroups]GroupSets

	// SetCount is the total number of descriptor sets.
	SetCount uint32
}

// Assign hands out descriptor set indices to the signatures in arr.
//
// Slots [0, count) are visited in increasing order and empty slots are
// skipped. For every present signature the running counter becomes the
// group's base entry, then one set is appended per mutability class the rule
// keeps in a separate set. The visiting order alone defines the numbering, so
// the result is reproducible for the same input.
//
// Assign panics if the counter exceeds 2*MaxBindingGroups, which would mean
// the signature array itself is corrupt.
func Assign(arr SignatureArray, count uint32, rule Rule) Mapping {
	var m Mapping
	var counter uint32

	for i := uint32(0); i < count && i < MaxBindingGroups; i++ {
		sig := arr[i]
		if sig == nil {
			continue
		}
		if sig.BindingIndex() != i {
			panic(fmt.Sprintf("layout: signature %q at slot %d has binding index %d", sig.Name(), i, sig.BindingIndex()))
		}

		g := &m.Groups[i]
		g.Base = counter

		_, n := rule.classSets(sig)
		for k := uint32(0); k < n; k++ {
			g.Sets[g.Count] = counter
			g.Count++
			counter++
		}
	}

	if counter > maxTotalSets {
		panic(fmt.Sprintf("layout: %d descriptor sets exceed the %d set bound", counter, maxTotalSets))
	}
	m.SetCount = counter
	return m
}
