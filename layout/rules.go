package layout

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/psoarchive/signature"
)

// Rule describes how a backend maps signature resources to descriptor sets.
type Rule struct {
	// SeparateDynamicSet places dynamic resources in their own descriptor set.
	// When false, every resource of a signature shares one set.
	SeparateDynamicSet bool

	// ArraysUseSlots makes an array resource occupy one binding slot per
	// element. When false, an array takes a single binding.
	ArraysUseSlots bool

	// MaxDescriptorSets is the backend limit on descriptor sets per pipeline.
	// Zero means 2*MaxBindingGroups.
	MaxDescriptorSets uint32
}

// maxSets returns the effective descriptor set limit.
func (r Rule) maxSets() uint32 {
	if r.MaxDescriptorSets == 0 {
		return maxTotalSets
	}
	return r.MaxDescriptorSets
}

// slots returns the number of binding slots d occupies.
func (r Rule) slots(d signature.ResourceDesc) uint32 {
	if r.ArraysUseSlots {
		return d.Elements()
	}
	return 1
}

// classSets returns the set each mutability class of sig uses, relative to
// the signature's first set, and the number of sets the signature needs.
func (r Rule) classSets(sig *signature.ResourceSignature) (rel [signature.NumClasses]uint32, n uint32) {
	if !r.SeparateDynamicSet {
		if sig.NumResources() > 0 {
			n = 1
		}
		return rel, n
	}
	for c := signature.MutabilityClass(0); c < signature.NumClasses; c++ {
		if sig.HasClass(c) {
			rel[c] = n
			n++
		}
	}
	return rel, n
}

// RuleTable maps backends to their layout rule.
type RuleTable map[gputypes.Backend]Rule

// Lookup returns the rule for backend b.
func (t RuleTable) Lookup(b gputypes.Backend) (Rule, error) {
	r, ok := t[b]
	if !ok {
		return Rule{}, fmt.Errorf("%w %s", ErrNoRule, b)
	}
	return r, nil
}

// DefaultRules returns the built-in rule table.
//
// Vulkan and WebGPU keep dynamic resources in a separate set so that
// static/mutable sets can be bound once. GL has no descriptor sets, so both
// classes share one set and arrays consume a slot per element. Metal and DX12
// use the GL rule for reporting only.
func DefaultRules() RuleTable {
	return RuleTable{
		gputypes.BackendVulkan: {
			SeparateDynamicSet: true,
		},
		gputypes.BackendBrowserWebGPU: {
			SeparateDynamicSet: true,
			ArraysUseSlots:     true,
			MaxDescriptorSets:  gputypes.DefaultLimits().MaxBindGroups,
		},
		gputypes.BackendGL: {
			ArraysUseSlots: true,
		},
		gputypes.BackendMetal: {
			ArraysUseSlots: true,
		},
		gputypes.BackendDX12: {
			ArraysUseSlots: true,
		},
	}
}
