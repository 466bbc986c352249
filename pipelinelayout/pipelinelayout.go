// Package pipelinelayout creates HAL bind group and pipeline layouts from a
// computed pipeline binding layout.
//
// Descriptor set i of the layout becomes bind group layout i. Resource
// signatures carry no texture dimension or format, so textures are described
// as 2D float views and storage textures as read-write RGBA8.
//
// Bind group layout entries have no element count. An array resource is
// described by one entry per element when the backend rule gives every
// element its own slot, and rejected with ErrArrayBinding otherwise.
package pipelinelayout

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/psoarchive/layout"
	"github.com/gogpu/psoarchive/signature"
	"github.com/gogpu/wgpu/hal"
)

// ErrArrayBinding is returned for an array resource on a backend whose
// rule binds the whole array at one slot.
var ErrArrayBinding = errors.New("pipelinelayout: array resource needs an element count")

// Descriptors returns one bind group layout descriptor per descriptor set of
// p, in set order. Empty sets get a descriptor without entries.
func Descriptors(p *layout.Pipeline, label string) ([]hal.BindGroupLayoutDescriptor, error) {
	sets := p.DescriptorSets()
	slotsPerElement := p.Rule().ArraysUseSlots

	out := make([]hal.BindGroupLayoutDescriptor, len(sets))
	for i, set := range sets {
		out[i].Label = fmt.Sprintf("%s set %d", label, i)
		for _, b := range set {
			n := uint32(1)
			if b.ArraySize > 1 {
				if !slotsPerElement {
					return nil, fmt.Errorf("%w: %q has %d elements on %s", ErrArrayBinding, b.Name, b.ArraySize, p.Backend())
				}
				n = b.ArraySize
			}
			for k := range n {
				out[i].Entries = append(out[i].Entries, entry(b, b.Binding+k))
			}
		}
	}
	return out, nil
}

// entry describes one binding slot of b.
func entry(b layout.PipelineResourceBinding, slot uint32) gputypes.BindGroupLayoutEntry {
	e := gputypes.BindGroupLayoutEntry{
		Binding:    slot,
		Visibility: b.Stages,
	}
	dynamic := b.VarType == signature.VarDynamic

	switch b.Kind {
	case signature.KindUniformBuffer:
		e.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform, HasDynamicOffset: dynamic}
	case signature.KindStorageBuffer:
		e.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage, HasDynamicOffset: dynamic}
	case signature.KindReadOnlyStorageBuffer:
		e.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage, HasDynamicOffset: dynamic}
	case signature.KindSampledTexture:
		e.Texture = &gputypes.TextureBindingLayout{
			SampleType:    gputypes.TextureSampleTypeFloat,
			ViewDimension: gputypes.TextureViewDimension2D,
		}
	case signature.KindStorageTexture:
		e.StorageTexture = &gputypes.StorageTextureBindingLayout{
			Access:        gputypes.StorageTextureAccessReadWrite,
			Format:        gputypes.TextureFormatRGBA8Unorm,
			ViewDimension: gputypes.TextureViewDimension2D,
		}
	case signature.KindSampler:
		e.Sampler = &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering}
	}
	return e
}

// Layout holds the HAL objects created for a pipeline.
type Layout struct {
	device hal.Device

	// BindGroupLayouts has one entry per descriptor set.
	BindGroupLayouts []hal.BindGroupLayout

	// PipelineLayout references BindGroupLayouts in set order.
	PipelineLayout hal.PipelineLayout
}

// Create creates the bind group layouts and the pipeline layout for p.
// On failure every object created so far is destroyed.
func Create(device hal.Device, p *layout.Pipeline, label string) (*Layout, error) {
	descs, err := Descriptors(p, label)
	if err != nil {
		return nil, err
	}

	l := &Layout{device: device}
	for i, desc := range descs {
		bgl, err := device.CreateBindGroupLayout(&desc)
		if err != nil {
			l.Destroy()
			return nil, fmt.Errorf("pipelinelayout: create bind group layout %d: %w", i, err)
		}
		l.BindGroupLayouts = append(l.BindGroupLayouts, bgl)
	}

	pl, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            label,
		BindGroupLayouts: l.BindGroupLayouts,
	})
	if err != nil {
		l.Destroy()
		return nil, fmt.Errorf("pipelinelayout: create pipeline layout: %w", err)
	}
	l.PipelineLayout = pl
	return l, nil
}

// Destroy releases the pipeline layout and then the bind group layouts.
// Destroy is safe to call more than once.
func (l *Layout) Destroy() {
	if l.device == nil {
		return
	}
	if l.PipelineLayout != nil {
		l.device.DestroyPipelineLayout(l.PipelineLayout)
		l.PipelineLayout = nil
	}
	for _, bgl := range l.BindGroupLayouts {
		if bgl != nil {
			l.device.DestroyBindGroupLayout(bgl)
		}
	}
	l.BindGroupLayouts = nil
}
