package psoarchive

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/psoarchive/remap"
	"github.com/gogpu/psoarchive/shader"
	"github.com/gogpu/psoarchive/signature"
)

// VariableDesc sets the variable type of shader resources in a default
// signature.
type VariableDesc struct {
	// Name is the resource name.
	Name string

	// Stages limits the entry to resources used by these stages.
	// Zero matches every stage.
	Stages gputypes.ShaderStages

	// Type is the variable type.
	Type signature.VariableType
}

// ResourceLayout assigns variable types to the resources of a default
// signature. It is ignored when a pipeline supplies signatures.
type ResourceLayout struct {
	// DefaultVariableType applies to resources without a matching variable.
	DefaultVariableType signature.VariableType

	// Variables lists per-resource overrides. The first match wins.
	Variables []VariableDesc
}

// variableType returns the type of the resource named name used by stages.
func (l ResourceLayout) variableType(name string, stages gputypes.ShaderStages) signature.VariableType {
	for _, v := range l.Variables {
		if v.Name != name {
			continue
		}
		if v.Stages == gputypes.ShaderStageNone || v.Stages&stages != 0 {
			return v.Type
		}
	}
	return l.DefaultVariableType
}

// synthesizeDefaultSignature builds the signature of a pipeline that supplies
// none. Every resource the shaders declare becomes one signature resource at
// binding group 0, visible to all stages that declare it. Shaders declaring
// the same name must agree on its kind and array size.
func synthesizeDefaultSignature(name string, shaders []*shader.Shader, rl ResourceLayout) (*signature.ResourceSignature, error) {
	var resources []signature.ResourceDesc
	index := make(map[string]int)

	for _, sh := range shaders {
		for _, r := range sh.Resources() {
			i, ok := index[r.Name]
			if !ok {
				index[r.Name] = len(resources)
				resources = append(resources, signature.ResourceDesc{
					Name:      r.Name,
					Kind:      r.Kind,
					Stages:    sh.Stage(),
					ArraySize: r.ArraySize,
				})
				continue
			}

			d := &resources[i]
			if d.Kind != r.Kind {
				return nil, &remap.ResolutionError{
					Shader:   sh.Name(),
					Stage:    sh.Stage(),
					Resource: r.Name,
					Reason:   fmt.Errorf("%w: declared as %s and %s", ErrDefaultSignature, d.Kind, r.Kind),
				}
			}
			if d.ArraySize != r.ArraySize {
				return nil, &remap.ResolutionError{
					Shader:   sh.Name(),
					Stage:    sh.Stage(),
					Resource: r.Name,
					Reason:   fmt.Errorf("%w: array sizes %d and %d differ", ErrDefaultSignature, d.ArraySize, r.ArraySize),
				}
			}
			d.Stages |= sh.Stage()
		}
	}

	for i := range resources {
		resources[i].VarType = rl.variableType(resources[i].Name, resources[i].Stages)
	}

	sig, err := signature.New(signature.Desc{
		Name:         name + " default signature",
		BindingIndex: 0,
		Resources:    resources,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDefaultSignature, err)
	}

	slogger().Debug("psoarchive: default signature", "pipeline", name, "resources", len(resources))
	return sig, nil
}

// DefaultSignature returns the signature ArchivePipeline synthesizes for a
// pipeline named name that supplies no signatures.
func DefaultSignature(name string, shaders []*shader.Shader, rl ResourceLayout) (*signature.ResourceSignature, error) {
	return synthesizeDefaultSignature(name, shaders, rl)
}
