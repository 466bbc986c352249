package remap

import (
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// Registry selects the remapper for a backend.
//
// Registered backends are ranked Vulkan, browser WebGPU, GL, then the rest;
// Preferred returns the highest ranked one.
//
// Registry is safe for concurrent use.
type Registry struct {
	r *gpucontext.Registry[Remapper]
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		r: gpucontext.NewRegistry[Remapper](gpucontext.WithPriority(
			gputypes.BackendVulkan.String(),
			gputypes.BackendBrowserWebGPU.String(),
			gputypes.BackendGL.String(),
		)),
	}
}

// DefaultRegistry returns a registry with the built-in remappers: SPIR-V for
// Vulkan and GL, WGSL for browser WebGPU.
func DefaultRegistry() *Registry {
	reg := NewRegistry()
	reg.Register(NewSPIRV(gputypes.BackendVulkan))
	reg.Register(NewSPIRV(gputypes.BackendGL))
	reg.Register(NewWGSL())
	return reg
}

// Register adds m, replacing any remapper for the same backend.
func (g *Registry) Register(m Remapper) {
	g.r.Register(m.Backend().String(), func() Remapper { return m })
}

// Lookup returns the remapper for backend b.
func (g *Registry) Lookup(b gputypes.Backend) (Remapper, error) {
	m := g.r.Get(b.String())
	if m == nil {
		return nil, fmt.Errorf("%w %s", ErrNoRemapper, b)
	}
	return m, nil
}

// Preferred returns the highest ranked backend with a registered remapper.
// ok is false for an empty registry.
func (g *Registry) Preferred() (b gputypes.Backend, ok bool) {
	m := g.r.Best()
	if m == nil {
		return 0, false
	}
	return m.Backend(), true
}

// Has reports whether a remapper is registered for backend b.
func (g *Registry) Has(b gputypes.Backend) bool {
	return g.r.Has(b.String())
}

// Count returns the number of registered remappers.
func (g *Registry) Count() int {
	return g.r.Count()
}
