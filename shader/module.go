package shader

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Words converts little-endian SPIR-V bytes to words.
func Words(code []byte) ([]uint32, error) {
	if len(code)%4 != 0 {
		return nil, fmt.Errorf("shader: SPIR-V size %d is not a multiple of 4", len(code))
	}
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	return words, nil
}

// CreateModule creates a HAL shader module from code compiled for backend.
// SPIR-V backends pass words, browser WebGPU passes WGSL text.
func CreateModule(device hal.Device, label string, backend gputypes.Backend, code []byte) (hal.ShaderModule, error) {
	var src hal.ShaderSource
	switch backend {
	case gputypes.BackendVulkan, gputypes.BackendGL:
		words, err := Words(code)
		if err != nil {
			return nil, err
		}
		src.SPIRV = words
	case gputypes.BackendBrowserWebGPU:
		src.WGSL = string(code)
	default:
		return nil, fmt.Errorf("%w %s", ErrUnsupportedBackend, backend)
	}

	m, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: src,
	})
	if err != nil {
		return nil, fmt.Errorf("shader: create module %q: %w", label, err)
	}
	return m, nil
}
