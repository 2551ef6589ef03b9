package scopvk

import (
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/andewx/scopvk/driver"
	"github.com/andewx/scopvk/driver/simdriver"
)

func newTestPass(t *testing.T, device *CoreDevice) *CoreRenderPass {
	t.Helper()
	display, err := NewCoreDisplay(device, driver.Extent{Width: 800, Height: 600}, driver.PresentFifo)
	if err != nil {
		t.Fatal(err)
	}
	pass, err := NewCoreRenderPass(device, display)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(pass.Destroy)
	return pass
}

func TestPipelineMissingStage(t *testing.T) {
	device, gpu := newTestDevice(t, simdriver.DefaultOptions())
	pass := newTestPass(t, device)
	vert, frag := testShaders(t, device)

	_, err := NewPipelineBuilder(device).Shader(vert).RenderPass(pass).Build()
	if !errors.Is(err, ErrShaderStageMissing) {
		t.Errorf("vertex only: %v", err)
	}
	_, err = NewPipelineBuilder(device).Shader(frag).RenderPass(pass).Build()
	if !errors.Is(err, ErrShaderStageMissing) {
		t.Errorf("fragment only: %v", err)
	}
	if n := gpu.Live()["pipeline-layout"]; n != 0 {
		t.Errorf("%d pipeline layouts created for rejected builds", n)
	}
}

func TestPipelineRejected(t *testing.T) {
	opts := simdriver.DefaultOptions()
	opts.RejectPipelines = true
	device, gpu := newTestDevice(t, opts)
	pass := newTestPass(t, device)
	vert, frag := testShaders(t, device)

	_, err := NewPipelineBuilder(device).Shader(vert).Shader(frag).RenderPass(pass).Build()
	if !errors.Is(err, ErrPipelineCompilationFailed) || !errors.Is(err, driver.ErrPipelineRejected) {
		t.Errorf("rejected pipeline: %v", err)
	}
	if n := gpu.Live()["pipeline-layout"]; n != 0 {
		t.Errorf("rejected pipeline left %d layouts", n)
	}
}

func TestPipelineDefaults(t *testing.T) {
	device, gpu := newTestDevice(t, simdriver.DefaultOptions())
	pass := newTestPass(t, device)
	vert, frag := testShaders(t, device)
	layout := textureLayout(t, device)
	defer layout.Destroy()

	p, err := NewPipelineBuilder(device).Shader(frag).Shader(vert).RenderPass(pass).SetLayouts(layout).Build()
	if err != nil {
		t.Fatal(err)
	}
	defer p.Destroy()

	info := gpu.PipelineInfo(p.Handle())
	if !info.DynamicViewport || info.Topology != driver.TopologyTriangleList || info.Polygon != driver.PolygonFill {
		t.Errorf("input state %+v", info)
	}
	if info.Cull != driver.CullNone || info.FrontFace != driver.FrontCounterClockwise || info.Blend {
		t.Errorf("raster state cull %d front %d blend %v", info.Cull, info.FrontFace, info.Blend)
	}
	if !info.DepthTest || !info.DepthWrite || info.DepthCompare != driver.CompareLess {
		t.Errorf("depth state test %v write %v compare %d", info.DepthTest, info.DepthWrite, info.DepthCompare)
	}
	if len(info.Stages) != 2 || info.Stages[0].Stage != driver.ShaderVertex || info.Stages[1].Entry != "main" {
		t.Errorf("stages %+v", info.Stages)
	}
	bindings, attributes := VertexBindings()
	if len(info.VertexBindings) != len(bindings) || len(info.VertexAttributes) != len(attributes) {
		t.Errorf("vertex input %+v", info.VertexBindings)
	}
	if info.Layout != p.Layout() || info.RenderPass != pass.Handle() {
		t.Error("pipeline built against another layout or pass")
	}
	if p.push_stages != driver.ShaderVertex|driver.ShaderFragment || p.set_count != 1 {
		t.Errorf("push stages %s, %d sets", p.push_stages, p.set_count)
	}

	culled, err := NewPipelineBuilder(device).Shader(vert).Shader(frag).RenderPass(pass).
		Cull(driver.CullBack, driver.FrontClockwise).
		Depth(true, false, driver.CompareLessOrEqual).
		Blend(true).
		Build()
	if err != nil {
		t.Fatal(err)
	}
	defer culled.Destroy()
	info = gpu.PipelineInfo(culled.Handle())
	if info.Cull != driver.CullBack || info.FrontFace != driver.FrontClockwise || info.DepthWrite || !info.Blend {
		t.Errorf("overrides lost: %+v", info)
	}
}
