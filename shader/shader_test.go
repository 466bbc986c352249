package shader

import (
	"bytes"
	"errors"
	"slices"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/naga/spirv"
	"github.com/gogpu/psoarchive/signature"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

const fragmentSource = `
struct Params {
    tint: vec4<f32>,
}

@group(0) @binding(0) var tex0: texture_2d<f32>;
@group(0) @binding(1) var samp0: sampler;
@group(1) @binding(0) var<uniform> params: Params;
@group(1) @binding(1) var<storage, read> weights: array<f32>;

@fragment
fn fs_main(@location(0) uv: vec2<f32>) -> @location(0) vec4<f32> {
    return textureSample(tex0, samp0, uv) * params.tint * weights[0];
}
`

const computeSource = `
@group(0) @binding(0) var<storage, read_write> data: array<u32>;
@group(0) @binding(1) var img: texture_storage_2d<rgba8unorm, write>;

@compute @workgroup_size(1)
fn cs_main(@builtin(global_invocation_id) id: vec3<u32>) {
    data[id.x] = data[id.x] + 1u;
    textureStore(img, vec2<i32>(0, 0), vec4<f32>(1.0));
}
`

// =============================================================================
// Compile
// =============================================================================

func TestCompile_Fragment(t *testing.T) {
	s, err := Compile(Desc{Name: "lit", Source: fragmentSource})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if s.Stage() != gputypes.ShaderStageFragment || s.EntryPoint() != "fs_main" {
		t.Errorf("stage/entry = %s/%s, want Fragment/fs_main", s.Stage(), s.EntryPoint())
	}

	want := []Resource{
		{Name: "tex0", Kind: signature.KindSampledTexture, Group: 0, Binding: 0},
		{Name: "samp0", Kind: signature.KindSampler, Group: 0, Binding: 1},
		{Name: "params", Kind: signature.KindUniformBuffer, Group: 1, Binding: 0},
		{Name: "weights", Kind: signature.KindReadOnlyStorageBuffer, Group: 1, Binding: 1},
	}
	got := s.Resources()
	if len(got) != len(want) {
		t.Fatalf("Resources() = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Resources()[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}

	vk, ok := s.Code(gputypes.BackendVulkan)
	if !ok {
		t.Fatal("no Vulkan code")
	}
	words, err := Words(vk)
	if err != nil || words[0] != spirv.MagicNumber {
		t.Errorf("Vulkan code is not SPIR-V: %v", err)
	}
	gl, _ := s.Code(gputypes.BackendGL)
	if !bytes.Equal(vk, gl) {
		t.Error("Vulkan and GL SPIR-V differ")
	}
	web, _ := s.Code(gputypes.BackendBrowserWebGPU)
	if string(web) != fragmentSource {
		t.Error("WebGPU code is not the WGSL source")
	}
	if len(s.Backends()) != 3 {
		t.Errorf("Backends() = %v, want 3 entries", s.Backends())
	}
}

func TestCompile_Compute(t *testing.T) {
	s, err := Compile(Desc{Name: "inc", Source: computeSource}, gputypes.BackendVulkan)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if s.Stage() != gputypes.ShaderStageCompute {
		t.Errorf("Stage() = %s, want Compute", s.Stage())
	}
	res := s.Resources()
	if len(res) != 2 || res[0].Kind != signature.KindStorageBuffer || res[1].Kind != signature.KindStorageTexture {
		t.Errorf("Resources() = %+v, want storage buffer and storage texture", res)
	}
	if _, ok := s.Code(gputypes.BackendBrowserWebGPU); ok {
		t.Error("code present for a backend that was not requested")
	}
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name     string
		desc     Desc
		backends []gputypes.Backend
		want     error
	}{
		{"syntax", Desc{Source: "fn ("}, nil, ErrCompile},
		{"missing entry point", Desc{Source: fragmentSource, EntryPoint: "vs_main"}, nil, ErrEntryPoint},
		{"missing stage", Desc{Source: fragmentSource, Stage: gputypes.ShaderStageVertex}, nil, ErrEntryPoint},
		{"metal", Desc{Source: fragmentSource}, []gputypes.Backend{gputypes.BackendMetal}, ErrUnsupportedBackend},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Compile(tt.desc, tt.backends...); !errors.Is(err, tt.want) {
				t.Errorf("Compile() error = %v, want %v", err, tt.want)
			}
		})
	}
}

const combinedSource = `
struct Camera {
    view_proj: mat4x4<f32>,
}

@group(0) @binding(0) var tex0: texture_2d<f32>;
@group(0) @binding(1) var samp0: sampler;
@group(1) @binding(0) var<uniform> camera: Camera;
@group(2) @binding(0) var unused: texture_2d<f32>;

fn shade(uv: vec2<f32>) -> vec4<f32> {
    return textureSample(tex0, samp0, uv);
}

@vertex
fn vs_main(@location(0) pos: vec3<f32>) -> @builtin(position) vec4<f32> {
    return camera.view_proj * vec4<f32>(pos, 1.0);
}

@fragment
fn fs_main(@location(0) uv: vec2<f32>) -> @location(0) vec4<f32> {
    return shade(uv);
}
`

func TestReflect_PerEntryPoint(t *testing.T) {
	tests := []struct {
		stage gputypes.ShaderStage
		want  []string
	}{
		{gputypes.ShaderStageVertex, []string{"camera"}},
		{gputypes.ShaderStageFragment, []string{"tex0", "samp0"}},
	}
	for _, tt := range tests {
		t.Run(tt.stage.String(), func(t *testing.T) {
			s, err := Compile(Desc{Name: "combined", Source: combinedSource, Stage: tt.stage})
			if err != nil {
				t.Fatalf("Compile() error = %v", err)
			}
			res := s.Resources()
			var got []string
			for _, r := range res {
				got = append(got, r.Name)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("Resources() names = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReflect_AllGlobals(t *testing.T) {
	ast, err := naga.Parse(combinedSource)
	if err != nil {
		t.Fatal(err)
	}
	m, err := naga.LowerWithSource(ast, combinedSource)
	if err != nil {
		t.Fatal(err)
	}
	if res := Reflect(m, nil); len(res) != 4 {
		t.Errorf("Reflect(nil) = %+v, want 4 resources", res)
	}
}

func TestReflect_NoResources(t *testing.T) {
	src := `
@vertex
fn vs_main() -> @builtin(position) vec4<f32> {
    return vec4<f32>(0.0);
}
`
	s := MustCompile(Desc{Name: "plain", Source: src})
	if res := s.Resources(); res == nil || len(res) != 0 {
		t.Errorf("Resources() = %#v, want empty non-nil", res)
	}
}

func TestReflect_BindingArray(t *testing.T) {
	src := `
@group(0) @binding(0) var textures: binding_array<texture_2d<f32>, 4>;
@group(0) @binding(1) var samp: sampler;

@fragment
fn main() -> @location(0) vec4<f32> {
    return textureSample(textures[0], samp, vec2<f32>(0.5));
}
`
	ast, err := naga.Parse(src)
	if err != nil {
		t.Skipf("binding arrays not supported by parser: %v", err)
	}
	m, err := naga.LowerWithSource(ast, src)
	if err != nil {
		t.Skipf("binding arrays not supported by lowering: %v", err)
	}

	res := Reflect(m, &m.EntryPoints[0])
	if len(res) != 2 {
		t.Fatalf("Reflect() = %+v, want 2 resources", res)
	}
	if res[0].Kind != signature.KindSampledTexture || res[0].ArraySize != 4 {
		t.Errorf("textures = %+v, want sampled texture array of 4", res[0])
	}
}

// =============================================================================
// New / Words / CreateModule
// =============================================================================

func TestNew_CopiesInput(t *testing.T) {
	code := map[gputypes.Backend][]byte{gputypes.BackendVulkan: {1, 2, 3, 4}}
	s, err := New("pre", gputypes.ShaderStageVertex, nil, code)
	if err != nil {
		t.Fatal(err)
	}
	code[gputypes.BackendVulkan][0] = 9

	got, _ := s.Code(gputypes.BackendVulkan)
	if got[0] != 1 {
		t.Error("New() aliases the caller's code")
	}

	if _, err := New("bad", gputypes.ShaderStageNone, nil, nil); !errors.Is(err, ErrUnsupportedStage) {
		t.Errorf("New(None) error = %v, want ErrUnsupportedStage", err)
	}
}

func TestWords(t *testing.T) {
	w, err := Words([]byte{0x03, 0x02, 0x23, 0x07, 1, 0, 0, 0})
	if err != nil {
		t.Fatal(err)
	}
	if len(w) != 2 || w[0] != 0x07230203 || w[1] != 1 {
		t.Errorf("Words() = %#x", w)
	}
	if _, err := Words([]byte{1, 2, 3}); err == nil {
		t.Error("Words() accepted a partial word")
	}
}

func createNoopDevice(t *testing.T) (hal.Device, func()) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	return openDev.Device, func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
}

func TestCreateModule(t *testing.T) {
	device, cleanup := createNoopDevice(t)
	defer cleanup()

	s := MustCompile(Desc{Name: "lit", Source: fragmentSource})
	for _, b := range s.Backends() {
		code, _ := s.Code(b)
		m, err := CreateModule(device, s.Name(), b, code)
		if err != nil {
			t.Errorf("CreateModule(%s) error = %v", b, err)
			continue
		}
		device.DestroyShaderModule(m)
	}

	if _, err := CreateModule(device, "x", gputypes.BackendDX12, []byte{0}); !errors.Is(err, ErrUnsupportedBackend) {
		t.Errorf("CreateModule(DX12) error = %v, want ErrUnsupportedBackend", err)
	}
}
