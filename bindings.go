package psoarchive

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/psoarchive/layout"
	"github.com/gogpu/psoarchive/signature"
)

// BindingAttribs selects the bindings PipelineResourceBindings reports.
type BindingAttribs struct {
	// Backend selects the layout rule.
	Backend gputypes.Backend

	// Signatures are the pipeline signatures, as passed to PipelineDesc.
	// Nil entries are ignored.
	Signatures []*signature.ResourceSignature

	// ShaderStages filters resources by stage visibility. Zero selects all.
	ShaderStages gputypes.ShaderStages

	// Rules overrides the layout rule table. Nil selects
	// layout.DefaultRules(), or the archiver's table for
	// (*Archiver).PipelineResourceBindings.
	Rules layout.RuleTable
}

// PipelineResourceBindings returns the final binding of every resource
// visible to attribs.ShaderStages, without remapping or archiving anything.
//
// The result is ordered by binding group and then by resource order, and is
// identical to the bindings ArchivePipeline writes into the bytecode for the
// same signatures and backend.
func PipelineResourceBindings(attribs BindingAttribs) ([]layout.PipelineResourceBinding, error) {
	rules := attribs.Rules
	if rules == nil {
		rules = layout.DefaultRules()
	}
	p, err := buildLayout(attribs.Backend, attribs.Signatures, rules)
	if err != nil {
		return nil, err
	}
	return p.Bindings(attribs.ShaderStages), nil
}

// PipelineResourceBindings is like the package-level function but defaults
// to the archiver's rule table.
func (a *Archiver) PipelineResourceBindings(attribs BindingAttribs) ([]layout.PipelineResourceBinding, error) {
	if attribs.Rules == nil {
		attribs.Rules = a.opts.rules
	}
	return PipelineResourceBindings(attribs)
}
