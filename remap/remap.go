// Package remap rewrites the resource bindings of compiled shader stages to
// match a pipeline layout.
//
// Each backend bytecode format has its own Remapper. A remapper looks up every
// resource the stage uses through a Resolver (normally a *layout.Pipeline)
// and patches the descriptor set and binding in a private copy of the
// bytecode. Declarations the stage does not use are left untouched. The input
// is never modified.
//
// Stages remaps all stages of a pipeline for one backend and either returns
// every result or a single error.
package remap

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/psoarchive/layout"
	"github.com/gogpu/psoarchive/signature"
)

// Resolver finds the pipeline binding of a named shader resource.
type Resolver interface {
	// Resolve returns the binding of name as seen from stage. Exactly one
	// signature visible to stage must declare the resource.
	Resolve(name string, stage gputypes.ShaderStage) (layout.PipelineResourceBinding, error)
}

// Options controls remapping.
type Options struct {
	// StripReflection removes names, source text and line information that
	// are not needed at runtime. The result is smaller than the input.
	StripReflection bool
}

// Remapper patches resource bindings in one bytecode format.
//
// Implementations must be safe for concurrent use.
type Remapper interface {
	// Backend returns the backend whose bytecode the remapper handles.
	Backend() gputypes.Backend

	// Remap returns a copy of s.Code with the binding of every resource the
	// stage uses rewritten. Resolution failures are returned as
	// *ResolutionError.
	Remap(s Stage, r Resolver, opts Options) ([]byte, error)
}

// Binding is a resource a stage uses, at the group and binding the stage was
// compiled with.
type Binding struct {
	Name    string
	Group   uint32
	Binding uint32
}

// Stage is one compiled shader stage for one backend.
type Stage struct {
	// Name is the shader name used in errors and logs.
	Name string

	// Stage is the pipeline stage.
	Stage gputypes.ShaderStage

	// Backend is the backend the code was compiled for.
	Backend gputypes.Backend

	// Code is the bytecode. SPIR-V is little-endian words; WGSL is UTF-8 text.
	Code []byte

	// Resources lists the resources the stage uses. Declarations in Code are
	// matched by their original group and binding. When nil, every resource
	// declaration is remapped and resolved by its debug name.
	Resources []Binding
}

// used returns the index in Resources of the resource compiled at group and
// binding, or -1.
func (s Stage) used(group, binding uint32) int {
	for i, r := range s.Resources {
		if r.Group == group && r.Binding == binding {
			return i
		}
	}
	return -1
}

// unmatched reports the first used resource whose declaration was not found.
func (s Stage) unmatched(seen []bool) error {
	for i, ok := range seen {
		if !ok {
			return &ResolutionError{
				Shader:   s.Name,
				Stage:    s.Stage,
				Resource: s.Resources[i].Name,
				Reason: fmt.Errorf("%w: no declaration at group %d binding %d",
					ErrMissingDecoration, s.Resources[i].Group, s.Resources[i].Binding),
			}
		}
	}
	return nil
}

// kindUse is how a shader declares a resource, derived from its bytecode.
type kindUse uint8

const (
	useUnknown kindUse = iota
	useUniformBuffer
	useStorageBuffer
	useSampledTexture
	useStorageTexture
	useSampler
)

func (u kindUse) String() string {
	switch u {
	case useUniformBuffer:
		return "uniform buffer"
	case useStorageBuffer:
		return "storage buffer"
	case useSampledTexture:
		return "sampled texture"
	case useStorageTexture:
		return "storage texture"
	case useSampler:
		return "sampler"
	default:
		return "unknown"
	}
}

// compatible reports whether a shader use is valid for a declared kind.
// useUnknown is accepted for any kind.
func (u kindUse) compatible(k signature.ResourceKind) bool {
	switch u {
	case useUniformBuffer:
		return k == signature.KindUniformBuffer
	case useStorageBuffer:
		return k == signature.KindStorageBuffer || k == signature.KindReadOnlyStorageBuffer
	case useSampledTexture:
		return k == signature.KindSampledTexture
	case useStorageTexture:
		return k == signature.KindStorageTexture
	case useSampler:
		return k == signature.KindSampler
	default:
		return true
	}
}
