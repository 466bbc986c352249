package shader

import (
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/psoarchive/signature"
)

// Reflect lists the bound global variables of m in declaration order.
//
// When ep is not nil only the globals ep references are listed, directly or
// through the functions it calls. The result is never nil.
func Reflect(m *ir.Module, ep *ir.EntryPoint) []Resource {
	used := usedGlobals(m, ep)
	out := []Resource{}
	for h, g := range m.GlobalVariables {
		if g.Binding == nil || (used != nil && !used[h]) {
			continue
		}
		kind, size := resourceKind(m, g)
		out = append(out, Resource{
			Name:      g.Name,
			Kind:      kind,
			Group:     g.Binding.Group,
			Binding:   g.Binding.Binding,
			ArraySize: size,
		})
	}
	return out
}

// usedGlobals marks the globals reachable from ep. It returns nil for a nil
// ep.
func usedGlobals(m *ir.Module, ep *ir.EntryPoint) []bool {
	if ep == nil {
		return nil
	}
	used := make([]bool, len(m.GlobalVariables))
	called := make([]bool, len(m.Functions))

	var trace func(f *ir.Function)
	trace = func(f *ir.Function) {
		for _, e := range f.Expressions {
			if gv, ok := e.Kind.(ir.ExprGlobalVariable); ok && int(gv.Variable) < len(used) {
				used[gv.Variable] = true
			}
		}
		walkCalls(f.Body, func(h ir.FunctionHandle) {
			if int(h) < len(called) && !called[h] {
				called[h] = true
				trace(&m.Functions[h])
			}
		})
	}
	trace(&ep.Function)
	return used
}

// walkCalls reports every function called from block, including nested
// blocks.
func walkCalls(block ir.Block, fn func(ir.FunctionHandle)) {
	for _, st := range block {
		switch s := st.Kind.(type) {
		case ir.StmtCall:
			fn(s.Function)
		case ir.StmtBlock:
			walkCalls(s.Block, fn)
		case ir.StmtIf:
			walkCalls(s.Accept, fn)
			walkCalls(s.Reject, fn)
		case ir.StmtSwitch:
			for _, c := range s.Cases {
				walkCalls(c.Body, fn)
			}
		case ir.StmtLoop:
			walkCalls(s.Body, fn)
			walkCalls(s.Continuing, fn)
		}
	}
}

func resourceKind(m *ir.Module, g ir.GlobalVariable) (signature.ResourceKind, uint32) {
	switch g.Space {
	case ir.SpaceUniform:
		return signature.KindUniformBuffer, 0
	case ir.SpaceStorage:
		if g.Access == ir.StorageRead {
			return signature.KindReadOnlyStorageBuffer, 0
		}
		return signature.KindStorageBuffer, 0
	case ir.SpaceHandle:
	default:
		return signature.KindUnknown, 0
	}

	var size uint32
	t := g.Type
	if int(t) < len(m.Types) {
		if ba, ok := m.Types[t].Inner.(ir.BindingArrayType); ok {
			if ba.Size != nil {
				size = *ba.Size
			}
			t = ba.Base
		}
	}
	if int(t) >= len(m.Types) {
		return signature.KindUnknown, size
	}

	switch inner := m.Types[t].Inner.(type) {
	case ir.SamplerType:
		return signature.KindSampler, size
	case ir.ImageType:
		if inner.Class == ir.ImageClassStorage {
			return signature.KindStorageTexture, size
		}
		return signature.KindSampledTexture, size
	default:
		return signature.KindUnknown, size
	}
}
