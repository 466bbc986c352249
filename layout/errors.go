package layout

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
)

// Configuration errors.
var (
	// ErrDuplicateBindingIndex is returned when two signatures claim the same binding group.
	ErrDuplicateBindingIndex = errors.New("layout: duplicate signature binding index")

	// ErrBindingIndexOutOfRange is returned when a binding index exceeds MaxBindingGroups-1.
	ErrBindingIndexOutOfRange = errors.New("layout: signature binding index out of range")

	// ErrTooManyDescriptorSets is returned when a layout needs more descriptor
	// sets than the backend supports.
	ErrTooManyDescriptorSets = errors.New("layout: too many descriptor sets")

	// ErrNoRule is returned when the rule table has no entry for a backend.
	ErrNoRule = errors.New("layout: no layout rule for backend")
)

// Resolution errors.
var (
	// ErrResourceNotFound is returned when no visible signature declares a resource.
	ErrResourceNotFound = errors.New("layout: resource not declared by any visible signature")

	// ErrAmbiguousResource is returned when more than one visible signature declares a resource.
	ErrAmbiguousResource = errors.New("layout: resource declared by more than one visible signature")
)

// ConfigError reports an invalid signature set.
type ConfigError struct {
	// Index is the offending binding index.
	Index uint32

	// Signature is the name of the signature that was rejected.
	Signature string

	// Existing is the name of the signature already occupying Index, if any.
	Existing string

	// Err is ErrDuplicateBindingIndex or ErrBindingIndexOutOfRange.
	Err error
}

func (e *ConfigError) Error() string {
	if e.Existing != "" {
		return fmt.Sprintf("%v: %q and %q both use index %d", e.Err, e.Existing, e.Signature, e.Index)
	}
	return fmt.Sprintf("%v: %q uses index %d", e.Err, e.Signature, e.Index)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// CapacityError reports a layout the backend cannot express.
type CapacityError struct {
	Backend gputypes.Backend
	Sets    uint32
	Max     uint32
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%v: %s layout needs %d sets, limit is %d", ErrTooManyDescriptorSets, e.Backend, e.Sets, e.Max)
}

func (e *CapacityError) Unwrap() error { return ErrTooManyDescriptorSets }
