package remap

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/psoarchive/layout"
)

// Resolution errors.
var (
	// ErrUnresolvedResource is wrapped by every *ResolutionError.
	ErrUnresolvedResource = errors.New("remap: unresolved shader resource")

	// ErrAmbiguousResource is returned when more than one visible signature
	// declares a shader resource.
	ErrAmbiguousResource = layout.ErrAmbiguousResource

	// ErrKindMismatch is returned when the shader uses a resource as a
	// different kind than the signature declares.
	ErrKindMismatch = errors.New("remap: resource kind mismatch")

	// ErrMissingDecoration is returned when a SPIR-V resource variable has no
	// DescriptorSet or Binding decoration to patch.
	ErrMissingDecoration = errors.New("remap: resource has no set/binding decoration")

	// ErrUnnamedResource is returned when a resource variable carries no name
	// to resolve by.
	ErrUnnamedResource = errors.New("remap: resource has no name")
)

// Bytecode and configuration errors.
var (
	// ErrMalformedBytecode is returned when shader bytecode cannot be parsed.
	ErrMalformedBytecode = errors.New("remap: malformed bytecode")

	// ErrNoRemapper is returned when no remapper is registered for a backend.
	ErrNoRemapper = errors.New("remap: no remapper for backend")
)

// ResolutionError reports a shader resource that could not be bound.
type ResolutionError struct {
	// Shader is the name of the shader being remapped.
	Shader string

	// Stage is the shader stage.
	Stage gputypes.ShaderStage

	// Resource is the resource name as written in the shader.
	Resource string

	// Reason is the underlying cause, such as layout.ErrResourceNotFound,
	// ErrAmbiguousResource or ErrKindMismatch.
	Reason error
}

func (e *ResolutionError) Error() string {
	shader := e.Shader
	if shader == "" {
		shader = "<unnamed>"
	}
	return fmt.Sprintf("remap: shader %q (%s stage): resource %q: %v", shader, e.Stage, e.Resource, e.Reason)
}

// Unwrap returns ErrUnresolvedResource and the reason, so errors.Is matches
// either.
func (e *ResolutionError) Unwrap() []error {
	return []error{ErrUnresolvedResource, e.Reason}
}
