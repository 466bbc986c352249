package remap

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
)

var (
	// wgslVarDecl matches a module-scope resource declaration: a run of
	// attributes, `var`, an optional address space, the name and the type.
	wgslVarDecl = regexp.MustCompile(`((?:@[A-Za-z_]\w*\s*(?:\([^)]*\))?\s*)+)var\s*(<[^>]*>)?\s*([A-Za-z_]\w*)\s*:\s*([^;=]+)`)

	// wgslBindAttr matches @group(N) and @binding(N) inside an attribute run.
	wgslBindAttr = regexp.MustCompile(`@(group|binding)\s*\(\s*(0[xX][0-9A-Fa-f]+|\d+)[iu]?\s*\)`)
)

// WGSL remaps WGSL source for browser WebGPU.
//
// Module-scope `var` declarations carrying @group and @binding attributes are
// matched to the stage's resources by their original attribute values, or
// all taken when the stage has no resource list. Each is resolved by name and
// its attribute values are rewritten. The result is parsed and lowered with
// naga before it is returned.
type WGSL struct{}

// NewWGSL returns a WGSL remapper.
func NewWGSL() *WGSL { return &WGSL{} }

// Backend returns gputypes.BackendBrowserWebGPU.
func (*WGSL) Backend() gputypes.Backend { return gputypes.BackendBrowserWebGPU }

// wgslEdit replaces src[start:end] with text.
type wgslEdit struct {
	start, end int
	text       string
}

// Remap returns a copy of st.Code with the @group/@binding pair of every
// used resource rewritten.
func (*WGSL) Remap(st Stage, r Resolver, opts Options) ([]byte, error) {
	src := string(st.Code)
	scan := blankComments(src)
	fail := func(resource string, reason error) error {
		return &ResolutionError{Shader: st.Name, Stage: st.Stage, Resource: resource, Reason: reason}
	}

	var edits []wgslEdit
	seen := make([]bool, len(st.Resources))
	for _, m := range wgslVarDecl.FindAllStringSubmatchIndex(scan, -1) {
		attrStart, attrEnd := m[2], m[3]
		attrs := wgslBindAttr.FindAllStringSubmatchIndex(scan[attrStart:attrEnd], -1)
		if len(attrs) == 0 {
			continue
		}

		name := scan[m[6]:m[7]]
		space := ""
		if m[4] >= 0 {
			space = scan[m[4]:m[5]]
		}
		typ := strings.TrimSpace(scan[m[8]:m[9]])

		var group, binding int64 = -1, -1
		for _, a := range attrs {
			v, err := parseAttrValue(scan[attrStart+a[4] : attrStart+a[5]])
			if err != nil {
				return nil, fmt.Errorf("%w: %q: %w", ErrMalformedBytecode, name, err)
			}
			if scan[attrStart+a[2]:attrStart+a[3]] == "group" {
				group = int64(v)
			} else {
				binding = int64(v)
			}
		}

		if st.Resources != nil {
			if group < 0 || binding < 0 {
				continue
			}
			i := st.used(uint32(group), uint32(binding))
			if i < 0 {
				continue
			}
			seen[i] = true
			if n := st.Resources[i].Name; n != "" {
				name = n
			}
		}

		b, err := r.Resolve(name, st.Stage)
		if err != nil {
			return nil, fail(name, err)
		}
		if use := wgslUse(space, typ); !use.compatible(b.Kind) {
			return nil, fail(name, fmt.Errorf("%w: shader uses a %s, signature declares %s", ErrKindMismatch, use, b.Kind))
		}
		if group < 0 || binding < 0 {
			return nil, fail(name, ErrMissingDecoration)
		}

		for _, a := range attrs {
			value := b.Binding
			if scan[attrStart+a[2]:attrStart+a[3]] == "group" {
				value = b.DescriptorSet
			}
			edits = append(edits, wgslEdit{
				start: attrStart + a[4],
				end:   attrStart + a[5],
				text:  strconv.FormatUint(uint64(value), 10),
			})
		}

		slogger().Debug("remap: wgsl binding",
			"shader", st.Name, "stage", st.Stage, "resource", name,
			"group", b.DescriptorSet, "binding", b.Binding)
	}
	if err := st.unmatched(seen); err != nil {
		return nil, err
	}

	out := applyEdits(src, edits)
	if opts.StripReflection {
		out = stripComments(out)
	}

	ast, err := naga.Parse(out)
	if err != nil {
		return nil, fmt.Errorf("%w: remapped WGSL: %w", ErrMalformedBytecode, err)
	}
	if _, err := naga.LowerWithSource(ast, out); err != nil {
		return nil, fmt.Errorf("%w: remapped WGSL: %w", ErrMalformedBytecode, err)
	}
	return []byte(out), nil
}

// parseAttrValue parses a decimal or hexadecimal attribute literal without
// its suffix.
func parseAttrValue(lit string) (uint32, error) {
	if hex, ok := strings.CutPrefix(strings.ToLower(lit), "0x"); ok {
		v, err := strconv.ParseUint(hex, 16, 32)
		return uint32(v), err
	}
	v, err := strconv.ParseUint(lit, 10, 32)
	return uint32(v), err
}

// wgslUse classifies a declaration by address space and type.
func wgslUse(space, typ string) kindUse {
	space = strings.TrimSpace(strings.Trim(space, "<>"))
	switch {
	case space == "uniform":
		return useUniformBuffer
	case strings.HasPrefix(space, "storage"):
		return useStorageBuffer
	}

	// binding_array<T, N> takes the kind of T.
	if inner, ok := strings.CutPrefix(typ, "binding_array"); ok {
		typ = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(inner), "<"))
	}
	switch {
	case strings.HasPrefix(typ, "texture_storage_"):
		return useStorageTexture
	case strings.HasPrefix(typ, "texture_"):
		return useSampledTexture
	case strings.HasPrefix(typ, "sampler"):
		return useSampler
	default:
		return useUnknown
	}
}

func applyEdits(src string, edits []wgslEdit) string {
	if len(edits) == 0 {
		return src
	}
	var sb strings.Builder
	sb.Grow(len(src))
	last := 0
	for _, e := range edits {
		sb.WriteString(src[last:e.start])
		sb.WriteString(e.text)
		last = e.end
	}
	sb.WriteString(src[last:])
	return sb.String()
}

// blankComments returns src with every comment replaced by spaces, keeping
// byte offsets and newlines intact. Block comments nest.
func blankComments(src string) string {
	b := []byte(src)
	for _, c := range commentSpans(src) {
		for i := c[0]; i < c[1]; i++ {
			if b[i] != '\n' {
				b[i] = ' '
			}
		}
	}
	return string(b)
}

// stripComments removes every comment from src.
func stripComments(src string) string {
	spans := commentSpans(src)
	if len(spans) == 0 {
		return src
	}
	var sb strings.Builder
	last := 0
	for _, c := range spans {
		sb.WriteString(src[last:c[0]])
		if strings.Contains(src[c[0]:c[1]], "\n") {
			sb.WriteByte('\n')
		} else {
			sb.WriteByte(' ')
		}
		last = c[1]
	}
	sb.WriteString(src[last:])
	return sb.String()
}

// commentSpans returns the [start, end) byte ranges of the comments in src.
// Line comments end before the newline.
func commentSpans(src string) [][2]int {
	var spans [][2]int
	for i := 0; i+1 < len(src); {
		switch {
		case src[i] == '/' && src[i+1] == '/':
			end := strings.IndexByte(src[i:], '\n')
			if end < 0 {
				end = len(src) - i
			}
			spans = append(spans, [2]int{i, i + end})
			i += end

		case src[i] == '/' && src[i+1] == '*':
			depth, j := 1, i+2
			for j < len(src) && depth > 0 {
				switch {
				case j+1 < len(src) && src[j] == '/' && src[j+1] == '*':
					depth++
					j += 2
				case j+1 < len(src) && src[j] == '*' && src[j+1] == '/':
					depth--
					j += 2
				default:
					j++
				}
			}
			spans = append(spans, [2]int{i, j})
			i = j

		default:
			i++
		}
	}
	return spans
}
