package remap

import (
	"encoding/binary"
	"fmt"
	"slices"
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga/spirv"
	"honnef.co/go/safeish"
)

// Opcodes and decorations naga/spirv does not export.
const (
	opSourceContinued  spirv.OpCode = 2
	opSourceExtension  spirv.OpCode = 4
	opLine             spirv.OpCode = 8
	opTypeImage        spirv.OpCode = 25
	opTypeSampler      spirv.OpCode = 26
	opTypeSampledImage spirv.OpCode = 27
	opNoLine           spirv.OpCode = 317
	opModuleProcessed  spirv.OpCode = 330

	decorationBufferBlock spirv.Decoration = 3
)

// headerWords is the size of the SPIR-V module header.
const headerWords = 5

// debugInfoImport prefixes extended instruction sets that reference OpString.
const debugInfoImport = "NonSemantic.Shader.DebugInfo"

// SPIRV remaps SPIR-V modules.
//
// Resource variables are found by storage class (UniformConstant, Uniform
// and StorageBuffer) and matched to the stage's resources by their original
// DescriptorSet and Binding decorations. Without a resource list they are
// resolved by OpName, falling back to the name of the pointee type. The
// decoration literals are patched in place, so remapping alone never changes
// the module size.
type SPIRV struct {
	backend gputypes.Backend
}

// NewSPIRV returns a SPIR-V remapper serving backend.
func NewSPIRV(backend gputypes.Backend) *SPIRV {
	return &SPIRV{backend: backend}
}

// Backend returns the backend the remapper serves.
func (s *SPIRV) Backend() gputypes.Backend { return s.backend }

// Remap returns a copy of st.Code with the binding of every used resource
// rewritten.
func (s *SPIRV) Remap(st Stage, r Resolver, opts Options) ([]byte, error) {
	m, err := parseSPIRV(st.Code)
	if err != nil {
		return nil, err
	}
	fail := func(resource string, reason error) error {
		return &ResolutionError{Shader: st.Name, Stage: st.Stage, Resource: resource, Reason: reason}
	}

	seen := make([]bool, len(st.Resources))
	for _, v := range m.vars {
		d := m.decor[v.id]
		decorated := d != nil && d.set >= 0 && d.binding >= 0

		var name string
		if st.Resources != nil {
			if !decorated {
				continue
			}
			i := st.used(m.words[d.set], m.words[d.binding])
			if i < 0 {
				continue
			}
			seen[i] = true
			name = st.Resources[i].Name
		}
		if name == "" {
			name = m.name(v)
		}
		if name == "" {
			return nil, fail(fmt.Sprintf("%%%d", v.id), ErrUnnamedResource)
		}

		b, err := r.Resolve(name, st.Stage)
		if err != nil {
			return nil, fail(name, err)
		}
		if use := m.use(v); !use.compatible(b.Kind) {
			return nil, fail(name, fmt.Errorf("%w: shader uses a %s, signature declares %s", ErrKindMismatch, use, b.Kind))
		}
		if !decorated {
			return nil, fail(name, ErrMissingDecoration)
		}
		m.words[d.set] = b.DescriptorSet
		m.words[d.binding] = b.Binding

		slogger().Debug("remap: spirv binding",
			"backend", s.backend, "shader", st.Name, "stage", st.Stage, "resource", name,
			"set", b.DescriptorSet, "binding", b.Binding)
	}
	if err := st.unmatched(seen); err != nil {
		return nil, err
	}

	words := m.words
	if opts.StripReflection {
		words = m.strip()
	}
	return encodeWords(words), nil
}

// spvVar is a resource variable declaration.
type spvVar struct {
	id      uint32
	ptrType uint32
	class   spirv.StorageClass
}

// spvDecor records word offsets of decoration literals for one id.
type spvDecor struct {
	set         int // -1 if absent
	binding     int // -1 if absent
	bufferBlock bool
}

// spvModule is a decoded SPIR-V module with the tables remapping needs.
type spvModule struct {
	words     []uint32
	names     map[uint32]string
	decor     map[uint32]*spvDecor
	pointers  map[uint32]uint32 // pointer type -> pointee type
	elements  map[uint32]uint32 // array type -> element type
	handles   map[uint32]kindUse
	vars      []spvVar
	debugInfo bool
}

// parseSPIRV decodes code into a private word slice and indexes it.
func parseSPIRV(code []byte) (*spvModule, error) {
	if len(code)%4 != 0 || len(code) < headerWords*4 {
		return nil, fmt.Errorf("%w: SPIR-V size %d is not a valid word count", ErrMalformedBytecode, len(code))
	}

	words := make([]uint32, len(code)/4)
	if littleEndian {
		copy(safeish.SliceCast[[]byte](words), code)
	} else {
		for i := range words {
			words[i] = binary.LittleEndian.Uint32(code[i*4:])
		}
	}
	if words[0] != spirv.MagicNumber {
		return nil, fmt.Errorf("%w: bad SPIR-V magic %#08x", ErrMalformedBytecode, words[0])
	}

	m := &spvModule{
		words:    words,
		names:    make(map[uint32]string),
		decor:    make(map[uint32]*spvDecor),
		pointers: make(map[uint32]uint32),
		elements: make(map[uint32]uint32),
		handles:  make(map[uint32]kindUse),
	}

	for pos := headerWords; pos < len(words); {
		n := int(words[pos] >> 16)
		if n == 0 || pos+n > len(words) {
			return nil, fmt.Errorf("%w: bad instruction length %d at word %d", ErrMalformedBytecode, n, pos)
		}
		m.record(spirv.OpCode(words[pos]&0xffff), words[pos+1:pos+n], pos+1)
		pos += n
	}
	return m, nil
}

// record indexes one instruction. base is the word offset of ops[0].
func (m *spvModule) record(op spirv.OpCode, ops []uint32, base int) {
	switch op {
	case spirv.OpName:
		if len(ops) >= 1 {
			m.names[ops[0]] = decodeString(ops[1:])
		}

	case spirv.OpDecorate:
		if len(ops) < 2 {
			return
		}
		switch spirv.Decoration(ops[1]) {
		case spirv.DecorationDescriptorSet:
			if len(ops) >= 3 {
				m.decoration(ops[0]).set = base + 2
			}
		case spirv.DecorationBinding:
			if len(ops) >= 3 {
				m.decoration(ops[0]).binding = base + 2
			}
		case decorationBufferBlock:
			m.decoration(ops[0]).bufferBlock = true
		}

	case spirv.OpTypePointer:
		if len(ops) >= 3 {
			m.pointers[ops[0]] = ops[2]
		}

	case spirv.OpTypeArray, spirv.OpTypeRuntimeArray:
		if len(ops) >= 2 {
			m.elements[ops[0]] = ops[1]
		}

	case opTypeSampler:
		if len(ops) >= 1 {
			m.handles[ops[0]] = useSampler
		}

	case opTypeSampledImage:
		if len(ops) >= 1 {
			m.handles[ops[0]] = useSampledTexture
		}

	case opTypeImage:
		// result, sampled type, dim, depth, arrayed, ms, sampled, format
		if len(ops) >= 7 {
			if ops[6] == 2 {
				m.handles[ops[0]] = useStorageTexture
			} else {
				m.handles[ops[0]] = useSampledTexture
			}
		}

	case spirv.OpVariable:
		if len(ops) < 3 {
			return
		}
		switch class := spirv.StorageClass(ops[2]); class {
		case spirv.StorageClassUniformConstant, spirv.StorageClassUniform, spirv.StorageClassStorageBuffer:
			m.vars = append(m.vars, spvVar{id: ops[1], ptrType: ops[0], class: class})
		}

	case spirv.OpExtInstImport:
		if len(ops) >= 2 && strings.HasPrefix(decodeString(ops[1:]), debugInfoImport) {
			m.debugInfo = true
		}
	}
}

func (m *spvModule) decoration(id uint32) *spvDecor {
	d := m.decor[id]
	if d == nil {
		d = &spvDecor{set: -1, binding: -1}
		m.decor[id] = d
	}
	return d
}

// baseType returns the pointee type of v with array wrappers removed.
func (m *spvModule) baseType(v spvVar) uint32 {
	t := m.pointers[v.ptrType]
	for {
		e, ok := m.elements[t]
		if !ok {
			return t
		}
		t = e
	}
}

// name returns the variable name, or the pointee type name for anonymous
// block variables.
func (m *spvModule) name(v spvVar) string {
	if n := m.names[v.id]; n != "" {
		return n
	}
	return m.names[m.baseType(v)]
}

// use classifies how the shader declares v.
func (m *spvModule) use(v spvVar) kindUse {
	base := m.baseType(v)
	switch v.class {
	case spirv.StorageClassStorageBuffer:
		return useStorageBuffer
	case spirv.StorageClassUniform:
		if d := m.decor[base]; d != nil && d.bufferBlock {
			return useStorageBuffer
		}
		return useUniformBuffer
	default:
		return m.handles[base]
	}
}

// strip returns the module without debug and reflection instructions.
func (m *spvModule) strip() []uint32 {
	out := make([]uint32, 0, len(m.words))
	out = append(out, m.words[:headerWords]...)
	for pos := headerWords; pos < len(m.words); {
		n := int(m.words[pos] >> 16)
		if !m.stripped(spirv.OpCode(m.words[pos] & 0xffff)) {
			out = append(out, m.words[pos:pos+n]...)
		}
		pos += n
	}
	return out
}

func (m *spvModule) stripped(op spirv.OpCode) bool {
	switch op {
	case spirv.OpSource, opSourceContinued, opSourceExtension,
		spirv.OpName, spirv.OpMemberName,
		opLine, opNoLine, opModuleProcessed:
		return true
	case spirv.OpString:
		return !m.debugInfo
	default:
		return false
	}
}

// decodeString reads a nul-terminated literal string packed into words.
func decodeString(ws []uint32) string {
	var sb strings.Builder
	for _, w := range ws {
		for k := 0; k < 4; k++ {
			c := byte(w >> (8 * k))
			if c == 0 {
				return sb.String()
			}
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

// littleEndian reports whether host words have SPIR-V file byte order.
var littleEndian = binary.NativeEndian.Uint16([]byte{1, 0}) == 1

func encodeWords(words []uint32) []byte {
	if littleEndian {
		return slices.Clone(safeish.SliceCast[[]byte](words))
	}
	out := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(out[i*4:], w)
	}
	return out
}
