package layout

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/psoarchive/signature"
)

// PipelineResourceBinding is the final location of one signature resource.
type PipelineResourceBinding struct {
	// Name is the resource name.
	Name string

	// Kind is the resource type.
	Kind signature.ResourceKind

	// Stages is the resource stage mask.
	Stages gputypes.ShaderStages

	// ArraySize is the number of array elements (at least 1).
	ArraySize uint32

	// VarType is the update frequency declared by the signature.
	VarType signature.VariableType

	// BindingGroup is the binding index of the declaring signature.
	BindingGroup uint32

	// DescriptorSet is the pipeline-wide descriptor set index.
	DescriptorSet uint32

	// Binding is the slot within DescriptorSet.
	Binding uint32
}

// resourceAttribs locates a resource relative to its signature.
type resourceAttribs struct {
	set     uint32 // relative to GroupSets.Base
	binding uint32
}

// Pipeline is the complete layout of one pipeline for one backend.
//
// Pipeline is immutable and safe for concurrent use.
type Pipeline struct {
	backend    gputypes.Backend
	rule       Rule
	signatures SignatureArray
	count      uint32
	mapping    Mapping
	attribs    [MaxBindingGroups][]resourceAttribs
}

// Build sorts sigs, assigns descriptor sets with rule and computes every
// resource's binding. The backend is only used for error reporting.
func Build(backend gputypes.Backend, sigs []*signature.ResourceSignature, rule Rule) (*Pipeline, error) {
	arr, count, err := Sort(sigs)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		backend:    backend,
		rule:       rule,
		signatures: arr,
		count:      count,
		mapping:    Assign(arr, count, rule),
	}
	if p.mapping.SetCount > rule.maxSets() {
		return nil, &CapacityError{Backend: backend, Sets: p.mapping.SetCount, Max: rule.maxSets()}
	}

	for i := uint32(0); i < count; i++ {
		if sig := arr[i]; sig != nil {
			p.attribs[i] = signatureAttribs(sig, rule)
		}
	}
	return p, nil
}

// signatureAttribs assigns relative sets and binding slots to the resources
// of sig in resource order. Slots restart at zero in every set.
func signatureAttribs(sig *signature.ResourceSignature, rule Rule) []resourceAttribs {
	rel, _ := rule.classSets(sig)
	var next [signature.NumClasses]uint32

	attribs := make([]resourceAttribs, sig.NumResources())
	for i := range attribs {
		r := sig.Resource(i)
		set := rel[r.VarType.Class()]
		attribs[i] = resourceAttribs{set: set, binding: next[set]}
		next[set] += rule.slots(r)
	}
	return attribs
}

// Backend returns the backend the layout was built for.
func (p *Pipeline) Backend() gputypes.Backend { return p.backend }

// Rule returns the layout rule.
func (p *Pipeline) Rule() Rule { return p.rule }

// Signatures returns the sorted signature array.
func (p *Pipeline) Signatures() SignatureArray { return p.signatures }

// GroupCount returns the highest used binding index plus one.
func (p *Pipeline) GroupCount() uint32 { return p.count }

// Mapping returns the binding group to descriptor set mapping.
func (p *Pipeline) Mapping() Mapping { return p.mapping }

// SetCount returns the number of descriptor sets.
func (p *Pipeline) SetCount() uint32 { return p.mapping.SetCount }

// binding builds the record for resource r of the signature at group.
func (p *Pipeline) binding(group uint32, r int) PipelineResourceBinding {
	desc := p.signatures[group].Resource(r)
	attr := p.attribs[group][r]
	return PipelineResourceBinding{
		Name:          desc.Name,
		Kind:          desc.Kind,
		Stages:        desc.Stages,
		ArraySize:     desc.Elements(),
		VarType:       desc.VarType,
		BindingGroup:  group,
		DescriptorSet: p.mapping.Groups[group].Base + attr.set,
		Binding:       attr.binding,
	}
}

// Bindings returns the binding of every resource whose stage mask
// intersects stages, ordered by binding group and then by resource order.
// A zero stages value selects all stages.
func (p *Pipeline) Bindings(stages gputypes.ShaderStages) []PipelineResourceBinding {
	if stages == gputypes.ShaderStageNone {
		stages = ^gputypes.ShaderStageNone
	}

	var out []PipelineResourceBinding
	for g := uint32(0); g < p.count; g++ {
		sig := p.signatures[g]
		if sig == nil {
			continue
		}
		for r := 0; r < sig.NumResources(); r++ {
			if sig.Resource(r).Stages&stages == 0 {
				continue
			}
			out = append(out, p.binding(g, r))
		}
	}
	return out
}

// Resolve returns the binding of the resource named name as seen from stage.
//
// Exactly one signature visible to stage must declare the resource;
// otherwise Resolve returns an error wrapping ErrResourceNotFound or
// ErrAmbiguousResource.
func (p *Pipeline) Resolve(name string, stage gputypes.ShaderStage) (PipelineResourceBinding, error) {
	var found PipelineResourceBinding
	var owner *signature.ResourceSignature

	for g := uint32(0); g < p.count; g++ {
		sig := p.signatures[g]
		if sig == nil {
			continue
		}
		r := sig.Find(name)
		if r < 0 || sig.Resource(r).Stages&stage == 0 {
			continue
		}
		if owner != nil {
			return PipelineResourceBinding{}, fmt.Errorf("%w: %q in %q and %q",
				ErrAmbiguousResource, name, owner.Name(), sig.Name())
		}
		owner = sig
		found = p.binding(g, r)
	}

	if owner == nil {
		return PipelineResourceBinding{}, fmt.Errorf("%w: %q (%s stage)", ErrResourceNotFound, name, stage)
	}
	return found, nil
}

// DescriptorSets groups all bindings by descriptor set. The result has
// exactly SetCount entries; entry i lists the bindings of set i in slot order.
func (p *Pipeline) DescriptorSets() [][]PipelineResourceBinding {
	sets := make([][]PipelineResourceBinding, p.mapping.SetCount)
	for _, b := range p.Bindings(gputypes.ShaderStageNone) {
		sets[b.DescriptorSet] = append(sets[b.DescriptorSet], b)
	}
	return sets
}
