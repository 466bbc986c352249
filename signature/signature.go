// Package signature describes pipeline resource signatures: named, immutable
// groups of shader-visible resources bound at a caller-chosen binding group.
//
// A signature is backend independent. How its resources land in descriptor
// sets and binding slots is decided by the layout package from a per-backend
// rule.
package signature

import (
	"errors"
	"fmt"
	"slices"

	"github.com/gogpu/gputypes"
)

// MaxBindingGroups is the number of binding groups a pipeline can use.
// Signature binding indices must be in [0, MaxBindingGroups).
const MaxBindingGroups = 8

// ErrInvalidDesc is returned when a signature description fails validation.
var ErrInvalidDesc = errors.New("signature: invalid description")

// ResourceKind identifies the type of a shader-visible resource.
type ResourceKind uint8

// Resource kinds.
const (
	KindUnknown ResourceKind = iota
	KindUniformBuffer
	KindStorageBuffer
	KindReadOnlyStorageBuffer
	KindSampledTexture
	KindStorageTexture
	KindSampler
)

// String returns the kind name.
func (k ResourceKind) String() string {
	switch k {
	case KindUniformBuffer:
		return "UniformBuffer"
	case KindStorageBuffer:
		return "StorageBuffer"
	case KindReadOnlyStorageBuffer:
		return "ReadOnlyStorageBuffer"
	case KindSampledTexture:
		return "SampledTexture"
	case KindStorageTexture:
		return "StorageTexture"
	case KindSampler:
		return "Sampler"
	default:
		return "Unknown"
	}
}

// IsBuffer reports whether the kind is a buffer binding.
func (k ResourceKind) IsBuffer() bool {
	return k == KindUniformBuffer || k == KindStorageBuffer || k == KindReadOnlyStorageBuffer
}

// VariableType is the update frequency of a resource binding.
type VariableType uint8

// Variable types, ordered from least to most frequently updated.
const (
	// VarStatic resources are bound once per signature.
	VarStatic VariableType = iota
	// VarMutable resources are bound once per resource binding object.
	VarMutable
	// VarDynamic resources may change between draws.
	VarDynamic
)

// String returns the variable type name.
func (v VariableType) String() string {
	switch v {
	case VarStatic:
		return "Static"
	case VarMutable:
		return "Mutable"
	case VarDynamic:
		return "Dynamic"
	default:
		return "Unknown"
	}
}

// Class returns the mutability class of the variable type.
func (v VariableType) Class() MutabilityClass {
	if v == VarDynamic {
		return ClassDynamic
	}
	return ClassStaticMutable
}

// MutabilityClass groups variable types that share a descriptor set.
type MutabilityClass uint8

// Mutability classes, in descriptor set order.
const (
	ClassStaticMutable MutabilityClass = iota
	ClassDynamic

	// NumClasses is the number of mutability classes.
	NumClasses = 2
)

// String returns the class name.
func (c MutabilityClass) String() string {
	switch c {
	case ClassStaticMutable:
		return "StaticMutable"
	case ClassDynamic:
		return "Dynamic"
	default:
		return "Unknown"
	}
}

// ResourceDesc describes one resource of a signature.
type ResourceDesc struct {
	// Name is the shader variable name. Unique within the signature.
	Name string

	// Kind is the resource type.
	Kind ResourceKind

	// Stages is the set of shader stages that can access the resource.
	Stages gputypes.ShaderStages

	// ArraySize is the number of array elements. Zero is treated as one.
	ArraySize uint32

	// VarType is the update frequency of the binding.
	VarType VariableType
}

// Elements returns the array size, treating zero as one.
func (d ResourceDesc) Elements() uint32 {
	if d.ArraySize == 0 {
		return 1
	}
	return d.ArraySize
}

// Desc describes a resource signature.
type Desc struct {
	// Name is an optional debug name.
	Name string

	// BindingIndex is the binding group the signature occupies in a pipeline.
	BindingIndex uint32

	// Resources lists the shader-visible resources.
	Resources []ResourceDesc
}

// ResourceSignature is an immutable, validated signature.
//
// ResourceSignature is safe for concurrent use.
type ResourceSignature struct {
	name         string
	bindingIndex uint32
	resources    []ResourceDesc
	stages       gputypes.ShaderStages
	classes      [NumClasses]int
}

// New validates desc and returns a signature.
//
// Resources are stably reordered by variable type (static, mutable, dynamic),
// so resources sharing a descriptor set are contiguous.
func New(desc Desc) (*ResourceSignature, error) {
	if desc.BindingIndex >= MaxBindingGroups {
		return nil, fmt.Errorf("%w: %q binding index %d exceeds maximum %d",
			ErrInvalidDesc, desc.Name, desc.BindingIndex, MaxBindingGroups-1)
	}

	seen := make(map[string]struct{}, len(desc.Resources))
	resources := slices.Clone(desc.Resources)
	s := &ResourceSignature{
		name:         desc.Name,
		bindingIndex: desc.BindingIndex,
	}

	for i := range resources {
		r := &resources[i]
		if r.Name == "" {
			return nil, fmt.Errorf("%w: %q resource %d has no name", ErrInvalidDesc, desc.Name, i)
		}
		if _, dup := seen[r.Name]; dup {
			return nil, fmt.Errorf("%w: %q declares resource %q more than once", ErrInvalidDesc, desc.Name, r.Name)
		}
		seen[r.Name] = struct{}{}

		if r.Kind == KindUnknown || r.Kind > KindSampler {
			return nil, fmt.Errorf("%w: %q resource %q has unknown kind %d", ErrInvalidDesc, desc.Name, r.Name, r.Kind)
		}
		if r.Stages == gputypes.ShaderStageNone {
			return nil, fmt.Errorf("%w: %q resource %q is not visible to any stage", ErrInvalidDesc, desc.Name, r.Name)
		}
		if r.VarType > VarDynamic {
			return nil, fmt.Errorf("%w: %q resource %q has unknown variable type %d", ErrInvalidDesc, desc.Name, r.Name, r.VarType)
		}

		s.stages |= r.Stages
		s.classes[r.VarType.Class()]++
	}

	slices.SortStableFunc(resources, func(a, b ResourceDesc) int {
		return int(a.VarType) - int(b.VarType)
	})
	s.resources = resources

	return s, nil
}

// MustNew is like New but panics on error.
func MustNew(desc Desc) *ResourceSignature {
	s, err := New(desc)
	if err != nil {
		panic(err)
	}
	return s
}

// Name returns the debug name.
func (s *ResourceSignature) Name() string { return s.name }

// BindingIndex returns the binding group index.
func (s *ResourceSignature) BindingIndex() uint32 { return s.bindingIndex }

// NumResources returns the number of resources.
func (s *ResourceSignature) NumResources() int { return len(s.resources) }

// Resource returns the i-th resource in variable-type order.
func (s *ResourceSignature) Resource(i int) ResourceDesc { return s.resources[i] }

// Resources returns a copy of the resource list in variable-type order.
func (s *ResourceSignature) Resources() []ResourceDesc { return slices.Clone(s.resources) }

// Stages returns the union of all resource stage masks.
func (s *ResourceSignature) Stages() gputypes.ShaderStages { return s.stages }

// HasClass reports whether the signature declares any resource of class c.
func (s *ResourceSignature) HasClass(c MutabilityClass) bool { return s.classes[c] > 0 }

// Find returns the index of the resource named name, or -1.
func (s *ResourceSignature) Find(name string) int {
	return slices.IndexFunc(s.resources, func(r ResourceDesc) bool { return r.Name == name })
}

// String returns a short description for logs.
func (s *ResourceSignature) String() string {
	return fmt.Sprintf("%s@%d(%d resources)", s.name, s.bindingIndex, len(s.resources))
}
