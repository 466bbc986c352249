// Package psoarchive builds backend-specialized pipeline archives.
//
// # Overview
//
// A pipeline is described by a set of resource signatures and its compiled
// shader stages. For every target backend, psoarchive sorts the signatures
// into binding groups, assigns descriptor sets and binding slots, rewrites
// the shader bytecode to match, and stores the result in a deduplicating
// bytecode store. The returned PipelineRecord lists the store index of every
// stage per backend.
//
// The same layout can be computed without archiving:
//
//	bindings, err := psoarchive.PipelineResourceBindings(psoarchive.BindingAttribs{
//	    Backend:      gputypes.BackendVulkan,
//	    Signatures:   sigs,
//	    ShaderStages: gputypes.ShaderStageFragment,
//	})
//
// Both paths share layout.Build, so the reported bindings are exactly the
// ones burnt into the archived bytecode.
//
// # Quick Start
//
//	vs := shader.MustCompile(shader.Desc{Name: "vs", Source: src, Stage: gputypes.ShaderStageVertex})
//	fs := shader.MustCompile(shader.Desc{Name: "fs", Source: src, Stage: gputypes.ShaderStageFragment})
//
//	a := psoarchive.New()
//	defer a.Close()
//
//	rec, err := a.ArchivePipeline(&psoarchive.PipelineDesc{
//	    Name:       "sprite",
//	    Signatures: sigs,
//	    Shaders:    []*shader.Shader{vs, fs},
//	})
//
// # Architecture
//
// The module is organized into:
//   - signature: resource signature descriptions
//   - layout: signature sorting, descriptor set assignment, binding queries
//   - remap: per-backend bytecode remappers (SPIR-V, WGSL)
//   - bytecode: the deduplicating blob store
//   - shader: WGSL compilation and reflection through naga
//   - pipelinelayout: HAL bind group and pipeline layout creation
//
// When a pipeline has no signatures, a default signature is synthesized at
// binding group 0 from the resources the shaders declare.
package psoarchive

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0
)
