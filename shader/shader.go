// Package shader compiles WGSL shader stages for the archive backends and
// reflects the resources their entry points use.
//
// Compile produces SPIR-V for Vulkan and GL through naga and keeps the WGSL
// text for browser WebGPU. naga does not name global variables in SPIR-V, so
// the remapper identifies a resource by the group and binding it was
// compiled with and takes its name from Resources.
package shader

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/spirv"
	"github.com/gogpu/psoarchive/signature"
)

// Shader errors.
var (
	// ErrCompile is wrapped by parse, lowering and validation failures.
	ErrCompile = errors.New("shader: compilation failed")

	// ErrEntryPoint is returned when the requested entry point does not exist
	// or cannot be chosen unambiguously.
	ErrEntryPoint = errors.New("shader: entry point not found")

	// ErrUnsupportedBackend is returned for backends without a bytecode format.
	ErrUnsupportedBackend = errors.New("shader: unsupported backend")

	// ErrUnsupportedStage is returned for stages other than vertex, fragment
	// and compute.
	ErrUnsupportedStage = errors.New("shader: unsupported stage")
)

// DefaultBackends are the backends Compile targets when none are given.
var DefaultBackends = []gputypes.Backend{
	gputypes.BackendVulkan,
	gputypes.BackendGL,
	gputypes.BackendBrowserWebGPU,
}

// Desc describes a WGSL shader stage.
type Desc struct {
	// Name is a debug name.
	Name string

	// Source is the WGSL source.
	Source string

	// EntryPoint selects the entry point by name. When empty, the entry point
	// is chosen by Stage, or the only entry point is used.
	EntryPoint string

	// Stage selects the entry point by stage when EntryPoint is empty.
	Stage gputypes.ShaderStage
}

// Resource is a resource declared by a shader.
type Resource struct {
	Name    string
	Kind    signature.ResourceKind
	Group   uint32
	Binding uint32

	// ArraySize is the binding array size, 0 for a single binding.
	ArraySize uint32
}

// Shader is a compiled shader stage.
//
// Shader is immutable and safe for concurrent use.
type Shader struct {
	name       string
	stage      gputypes.ShaderStage
	entryPoint string
	resources  []Resource
	code       map[gputypes.Backend][]byte
}

// New wraps precompiled bytecode. code maps backends to their blobs: SPIR-V
// for Vulkan and GL, WGSL text for browser WebGPU.
//
// resources lists what the stage uses with the bindings in code. A nil
// resources leaves every declaration in code to be resolved by its debug
// name at archive time.
func New(name string, stage gputypes.ShaderStage, resources []Resource, code map[gputypes.Backend][]byte) (*Shader, error) {
	if _, err := irStage(stage); err != nil {
		return nil, err
	}
	c := make(map[gputypes.Backend][]byte, len(code))
	for b, blob := range code {
		c[b] = slices.Clone(blob)
	}
	return &Shader{
		name:      name,
		stage:     stage,
		resources: slices.Clone(resources),
		code:      c,
	}, nil
}

// Compile compiles desc for every backend in backends, or DefaultBackends
// when none are given.
func Compile(desc Desc, backends ...gputypes.Backend) (*Shader, error) {
	if len(backends) == 0 {
		backends = DefaultBackends
	}

	ast, err := naga.Parse(desc.Source)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrCompile, desc.Name, err)
	}
	module, err := naga.LowerWithSource(ast, desc.Source)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrCompile, desc.Name, err)
	}
	verrs, err := naga.Validate(module)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrCompile, desc.Name, err)
	}
	if len(verrs) > 0 {
		return nil, fmt.Errorf("%w: %q: %w", ErrCompile, desc.Name, &verrs[0])
	}

	ep, err := selectEntryPoint(module, desc)
	if err != nil {
		return nil, err
	}
	stage, err := gpuStage(ep.Stage)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", desc.Name, err)
	}

	s := &Shader{
		name:       desc.Name,
		stage:      stage,
		entryPoint: ep.Name,
		resources:  Reflect(module, ep),
		code:       make(map[gputypes.Backend][]byte, len(backends)),
	}

	var spv []byte
	for _, b := range backends {
		switch b {
		case gputypes.BackendVulkan, gputypes.BackendGL:
			if spv == nil {
				spv, err = naga.GenerateSPIRV(module, spirv.Options{Version: spirv.Version1_3, Debug: true})
				if err != nil {
					return nil, fmt.Errorf("%w: %q: %w", ErrCompile, desc.Name, err)
				}
			}
			s.code[b] = slices.Clone(spv)
		case gputypes.BackendBrowserWebGPU:
			s.code[b] = []byte(desc.Source)
		default:
			return nil, fmt.Errorf("%w %s", ErrUnsupportedBackend, b)
		}
	}
	return s, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(desc Desc, backends ...gputypes.Backend) *Shader {
	s, err := Compile(desc, backends...)
	if err != nil {
		panic(err)
	}
	return s
}

func selectEntryPoint(m *ir.Module, desc Desc) (*ir.EntryPoint, error) {
	if desc.EntryPoint != "" {
		for i := range m.EntryPoints {
			if m.EntryPoints[i].Name == desc.EntryPoint {
				return &m.EntryPoints[i], nil
			}
		}
		return nil, fmt.Errorf("%w: %q in %q", ErrEntryPoint, desc.EntryPoint, desc.Name)
	}

	if desc.Stage != gputypes.ShaderStageNone {
		want, err := irStage(desc.Stage)
		if err != nil {
			return nil, err
		}
		for i := range m.EntryPoints {
			if m.EntryPoints[i].Stage == want {
				return &m.EntryPoints[i], nil
			}
		}
		return nil, fmt.Errorf("%w: no %s entry point in %q", ErrEntryPoint, desc.Stage, desc.Name)
	}

	if len(m.EntryPoints) != 1 {
		return nil, fmt.Errorf("%w: %q has %d entry points, name one", ErrEntryPoint, desc.Name, len(m.EntryPoints))
	}
	return &m.EntryPoints[0], nil
}

func gpuStage(s ir.ShaderStage) (gputypes.ShaderStage, error) {
	switch s {
	case ir.StageVertex:
		return gputypes.ShaderStageVertex, nil
	case ir.StageFragment:
		return gputypes.ShaderStageFragment, nil
	case ir.StageCompute:
		return gputypes.ShaderStageCompute, nil
	default:
		return gputypes.ShaderStageNone, fmt.Errorf("%w %d", ErrUnsupportedStage, s)
	}
}

func irStage(s gputypes.ShaderStage) (ir.ShaderStage, error) {
	switch s {
	case gputypes.ShaderStageVertex:
		return ir.StageVertex, nil
	case gputypes.ShaderStageFragment:
		return ir.StageFragment, nil
	case gputypes.ShaderStageCompute:
		return ir.StageCompute, nil
	default:
		return 0, fmt.Errorf("%w %s", ErrUnsupportedStage, s)
	}
}

// Name returns the debug name.
func (s *Shader) Name() string { return s.name }

// Stage returns the pipeline stage.
func (s *Shader) Stage() gputypes.ShaderStage { return s.stage }

// EntryPoint returns the entry point name, empty for precompiled shaders.
func (s *Shader) EntryPoint() string { return s.entryPoint }

// Resources returns the resources the stage uses in declaration order. It is
// nil only for a precompiled shader created without resources.
func (s *Shader) Resources() []Resource { return slices.Clone(s.resources) }

// Code returns the bytecode for backend b. The caller must not modify it.
func (s *Shader) Code(b gputypes.Backend) ([]byte, bool) {
	c, ok := s.code[b]
	return c, ok
}

// Backends returns the backends the shader has bytecode for, in ascending
// order.
func (s *Shader) Backends() []gputypes.Backend {
	return slices.Sorted(maps.Keys(s.code))
}

func (s *Shader) String() string {
	return fmt.Sprintf("%s(%s)", s.name, s.stage)
}
