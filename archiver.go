package psoarchive

import (
	"fmt"
	"slices"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/psoarchive/bytecode"
	"github.com/gogpu/psoarchive/internal/parallel"
	"github.com/gogpu/psoarchive/layout"
	"github.com/gogpu/psoarchive/remap"
	"github.com/gogpu/psoarchive/shader"
	"github.com/gogpu/psoarchive/signature"
)

// PipelineDesc describes a pipeline to archive.
type PipelineDesc struct {
	// Name is the pipeline name used in records, errors and logs.
	Name string

	// Signatures are the resource signatures of the pipeline. Nil entries
	// are ignored. When none are given, a default signature is synthesized
	// from the shaders.
	Signatures []*signature.ResourceSignature

	// Shaders are the pipeline stages, at most one per stage.
	Shaders []*shader.Shader

	// ResourceLayout sets variable types for a default signature.
	ResourceLayout ResourceLayout
}

// StageIndex locates one archived shader stage.
type StageIndex struct {
	Stage  gputypes.ShaderStage
	Shader string
	Index  bytecode.Index
}

// PipelineRecord is the archive record of one pipeline.
type PipelineRecord struct {
	// Name is the pipeline name.
	Name string

	// Signatures are the signatures the layout was built from, including a
	// synthesized default signature.
	Signatures []*signature.ResourceSignature

	// Shaders lists the archived stages per backend in PipelineDesc order.
	Shaders map[gputypes.Backend][]StageIndex
}

// Archiver archives pipelines for a fixed set of backends into a bytecode
// store.
//
// Archiver is safe for concurrent use. Calls in progress when Close is
// called still complete; later calls fail with ErrClosed.
type Archiver struct {
	opts     options
	registry *remap.Registry
	store    *bytecode.Store
	pool     *parallel.WorkerPool // nil when remapping sequentially
	closed   atomic.Bool
}

// New creates an archiver.
//
// Example:
//
//	a := psoarchive.New(psoarchive.WithBackends(gputypes.BackendVulkan))
//	defer a.Close()
func New(opts ...Option) *Archiver {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	a := &Archiver{
		opts:     o,
		registry: o.registry,
		store:    o.store,
	}
	if a.registry == nil {
		a.registry = remap.DefaultRegistry()
	}
	if a.store == nil {
		a.store = bytecode.NewStore(nil)
	}
	if o.workers > 1 {
		a.pool = parallel.NewWorkerPool(o.workers)
	}
	return a
}

// Store returns the bytecode store.
func (a *Archiver) Store() *bytecode.Store { return a.store }

// Backends returns the target backends.
func (a *Archiver) Backends() []gputypes.Backend { return slices.Clone(a.opts.backends) }

// Close stops the remap workers. Close is safe to call multiple times.
func (a *Archiver) Close() {
	if !a.closed.CompareAndSwap(false, true) {
		return
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

// ArchivePipeline remaps the shaders of desc for every target backend and
// adds the results to the store.
//
// The pipeline is archived atomically with respect to layout and remapping:
// if any backend or stage fails, nothing is added to the store. A store
// write failure leaves the blobs added before it in place; they stay valid
// and are reused by a later attempt.
func (a *Archiver) ArchivePipeline(desc *PipelineDesc) (*PipelineRecord, error) {
	if a.closed.Load() {
		return nil, ErrClosed
	}
	if desc == nil || len(desc.Shaders) == 0 {
		return nil, ErrNoShaders
	}

	rec, err := a.archive(desc)
	if err != nil {
		slogger().Warn("psoarchive: pipeline rejected", "pipeline", desc.Name, "err", err)
		return nil, err
	}

	slogger().Info("psoarchive: pipeline archived",
		"pipeline", desc.Name,
		"backends", len(a.opts.backends),
		"stages", len(desc.Shaders))
	return rec, nil
}

func (a *Archiver) archive(desc *PipelineDesc) (*PipelineRecord, error) {
	var seen gputypes.ShaderStages
	for i, sh := range desc.Shaders {
		if sh == nil {
			return nil, fmt.Errorf("%w: pipeline %q shader %d is nil", ErrNoShaders, desc.Name, i)
		}
		if seen&sh.Stage() != 0 {
			return nil, fmt.Errorf("%w: pipeline %q has two %s shaders", ErrDuplicateStage, desc.Name, sh.Stage())
		}
		seen |= sh.Stage()
	}

	sigs, err := a.signatures(desc)
	if err != nil {
		return nil, fmt.Errorf("psoarchive: pipeline %q: %w", desc.Name, err)
	}

	opts := remap.Options{StripReflection: a.opts.strip}
	remapped := make([][]remap.Stage, len(a.opts.backends))
	for i, b := range a.opts.backends {
		p, err := buildLayout(b, sigs, a.opts.rules)
		if err != nil {
			return nil, fmt.Errorf("psoarchive: pipeline %q (%s): %w", desc.Name, b, err)
		}

		stages, err := compiledStages(desc.Shaders, b)
		if err != nil {
			return nil, fmt.Errorf("psoarchive: pipeline %q: %w", desc.Name, err)
		}

		out, err := remap.Stages(stages, p, a.registry, opts, a.pool)
		if err != nil {
			return nil, fmt.Errorf("psoarchive: pipeline %q (%s): %w", desc.Name, b, err)
		}
		remapped[i] = out
	}

	rec := &PipelineRecord{
		Name:       desc.Name,
		Signatures: sigs,
		Shaders:    make(map[gputypes.Backend][]StageIndex, len(a.opts.backends)),
	}
	for i, b := range a.opts.backends {
		for _, s := range remapped[i] {
			idx, err := a.store.Add(b, s.Stage, s.Code)
			if err != nil {
				return nil, fmt.Errorf("psoarchive: pipeline %q: %w", desc.Name, err)
			}
			rec.Shaders[b] = append(rec.Shaders[b], StageIndex{Stage: s.Stage, Shader: s.Name, Index: idx})
		}
	}
	return rec, nil
}

// signatures returns the non-nil signatures of desc, or a synthesized
// default signature when there are none.
func (a *Archiver) signatures(desc *PipelineDesc) ([]*signature.ResourceSignature, error) {
	sigs := slices.DeleteFunc(slices.Clone(desc.Signatures), func(s *signature.ResourceSignature) bool {
		return s == nil
	})
	if len(sigs) > 0 {
		return sigs, nil
	}

	sig, err := synthesizeDefaultSignature(desc.Name, desc.Shaders, desc.ResourceLayout)
	if err != nil {
		return nil, err
	}
	return []*signature.ResourceSignature{sig}, nil
}

// compiledStages collects the bytecode of every shader for backend b.
func compiledStages(shaders []*shader.Shader, b gputypes.Backend) ([]remap.Stage, error) {
	stages := make([]remap.Stage, len(shaders))
	for i, sh := range shaders {
		code, ok := sh.Code(b)
		if !ok {
			return nil, fmt.Errorf("%w: shader %q, backend %s", ErrMissingBytecode, sh.Name(), b)
		}
		stages[i] = remap.Stage{Name: sh.Name(), Stage: sh.Stage(), Backend: b, Code: code, Resources: usedBindings(sh)}
	}
	return stages, nil
}

// usedBindings lists the resources sh uses for the remapper. It is nil when
// sh carries no resource list.
func usedBindings(sh *shader.Shader) []remap.Binding {
	res := sh.Resources()
	if res == nil {
		return nil
	}
	out := make([]remap.Binding, len(res))
	for i, r := range res {
		out[i] = remap.Binding{Name: r.Name, Group: r.Group, Binding: r.Binding}
	}
	return out
}

// Layout computes the pipeline layout of sigs for backend b with the
// archiver's rule table. The result can be passed to pipelinelayout.Create.
func (a *Archiver) Layout(b gputypes.Backend, sigs []*signature.ResourceSignature) (*layout.Pipeline, error) {
	return buildLayout(b, sigs, a.opts.rules)
}

// buildLayout looks up the rule for b and builds the layout of sigs.
func buildLayout(b gputypes.Backend, sigs []*signature.ResourceSignature, rules layout.RuleTable) (*layout.Pipeline, error) {
	rule, err := rules.Lookup(b)
	if err != nil {
		return nil, err
	}
	p, err := layout.Build(b, sigs, rule)
	if err != nil {
		return nil, err
	}

	slogger().Debug("psoarchive: layout",
		"backend", b,
		"groups", p.GroupCount(),
		"sets", p.SetCount())
	return p, nil
}
