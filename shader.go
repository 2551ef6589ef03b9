package scopvk

import (
	"os"

	"github.com/cockroachdb/errors"

	"github.com/andewx/scopvk/driver"
)

//CoreShader is one compiled SPIR-V module for a single stage. The blob is
//opaque here; modules can be destroyed once every pipeline using them is built.
type CoreShader struct {
	device *CoreDevice
	module driver.ShaderModule
	stage  driver.ShaderStage
	name   string
}

func NewCoreShader(device *CoreDevice, code []byte, stage driver.ShaderStage) (*CoreShader, error) {
	module, err := device.gpu.CreateShaderModule(code)
	if err != nil {
		return nil, setupError(err, "shader", stage.String()+" module")
	}
	return &CoreShader{device: device, module: module, stage: stage}, nil
}

//LoadCoreShader reads a SPIR-V file from disk
func LoadCoreShader(device *CoreDevice, path string, stage driver.ShaderStage) (*CoreShader, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, setupError(errors.Wrapf(err, "reading %s", path), "shader", stage.String()+" module")
	}
	s, err := NewCoreShader(device, code, stage)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s", path)
	}
	s.name = path
	device.log.Debug("shader loaded", "path", path, "stage", stage.String(), "bytes", len(code))
	return s, nil
}

func (s *CoreShader) Stage() driver.ShaderStage   { return s.stage }
func (s *CoreShader) Module() driver.ShaderModule { return s.module }

func (s *CoreShader) stageInfo() driver.ShaderStageInfo {
	return driver.ShaderStageInfo{Stage: s.stage, Module: s.module, Entry: "main"}
}

func (s *CoreShader) Destroy() {
	s.device.gpu.DestroyShaderModule(s.module)
}
