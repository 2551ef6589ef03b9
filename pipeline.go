package scopvk

import (
	"github.com/cockroachdb/errors"

	"github.com/andewx/scopvk/driver"
)

//PipelineBuilder accumulates fixed function state for one graphics pipeline.
//Defaults: triangle list, fill, no culling, counter clockwise front faces,
//depth test and write with LESS, no color blending, dynamic viewport and
//scissor, the Vertex input layout and a vertex|fragment push constant range.
type PipelineBuilder struct {
	device      *CoreDevice
	shaders     map[driver.ShaderStage]*CoreShader
	info        driver.GraphicsPipelineInfo
	set_layouts []*CoreDescriptorSetLayout
	push        []driver.PushConstantRange
}

func NewPipelineBuilder(device *CoreDevice) *PipelineBuilder {
	bindings, attributes := VertexBindings()
	return &PipelineBuilder{
		device:  device,
		shaders: make(map[driver.ShaderStage]*CoreShader, 2),
		info: driver.GraphicsPipelineInfo{
			VertexBindings:   bindings,
			VertexAttributes: attributes,
			Topology:         driver.TopologyTriangleList,
			Polygon:          driver.PolygonFill,
			Cull:             driver.CullNone,
			FrontFace:        driver.FrontCounterClockwise,
			LineWidth:        1.0,
			DepthTest:        true,
			DepthWrite:       true,
			DepthCompare:     driver.CompareLess,
			DynamicViewport:  true,
		},
		push: []driver.PushConstantRange{{Stages: driver.ShaderVertex | driver.ShaderFragment, Size: PushConstantSize}},
	}
}

func (b *PipelineBuilder) Shader(s *CoreShader) *PipelineBuilder {
	b.shaders[s.stage] = s
	return b
}

//SetLayouts sets the descriptor set layouts in set index order
func (b *PipelineBuilder) SetLayouts(layouts ...*CoreDescriptorSetLayout) *PipelineBuilder {
	b.set_layouts = layouts
	return b
}

func (b *PipelineBuilder) RenderPass(rp *CoreRenderPass) *PipelineBuilder {
	b.info.RenderPass = rp.pass
	return b
}

func (b *PipelineBuilder) Cull(mode driver.CullMode, front driver.FrontFace) *PipelineBuilder {
	b.info.Cull, b.info.FrontFace = mode, front
	return b
}

func (b *PipelineBuilder) Polygon(mode driver.PolygonMode) *PipelineBuilder {
	b.info.Polygon = mode
	return b
}

func (b *PipelineBuilder) Depth(test, write bool, compare driver.CompareOp) *PipelineBuilder {
	b.info.DepthTest, b.info.DepthWrite, b.info.DepthCompare = test, write, compare
	return b
}

func (b *PipelineBuilder) Blend(enabled bool) *PipelineBuilder {
	b.info.Blend = enabled
	return b
}

//StaticViewport bakes vp into the pipeline instead of setting it per frame
func (b *PipelineBuilder) StaticViewport(vp driver.Viewport, scissor driver.Rect) *PipelineBuilder {
	b.info.DynamicViewport = false
	b.info.Viewport, b.info.Scissor = vp, scissor
	return b
}

func (b *PipelineBuilder) PushConstants(ranges ...driver.PushConstantRange) *PipelineBuilder {
	b.push = ranges
	return b
}

//Build creates the pipeline layout and the pipeline. Vertex and fragment
//stages are both required. A rejected pipeline releases its layout.
func (b *PipelineBuilder) Build() (*CorePipeline, error) {
	for _, stage := range []driver.ShaderStage{driver.ShaderVertex, driver.ShaderFragment} {
		if b.shaders[stage] == nil {
			return nil, errors.Wrapf(ErrShaderStageMissing, "%s stage", stage)
		}
	}
	assertf(b.info.RenderPass != 0, "pipeline built without a render pass")

	gpu := b.device.gpu
	layouts := make([]driver.DescriptorSetLayout, len(b.set_layouts))
	for i, l := range b.set_layouts {
		layouts[i] = l.layout
	}
	layout, err := gpu.CreatePipelineLayout(driver.PipelineLayoutInfo{SetLayouts: layouts, PushConstants: b.push})
	if err != nil {
		return nil, setupError(err, "pipeline", "layout")
	}

	info := b.info
	info.Layout = layout
	info.Stages = []driver.ShaderStageInfo{
		b.shaders[driver.ShaderVertex].stageInfo(),
		b.shaders[driver.ShaderFragment].stageInfo(),
	}
	pipeline, err := gpu.CreateGraphicsPipeline(info)
	if err != nil {
		gpu.DestroyPipelineLayout(layout)
		return nil, errors.Mark(errors.Wrap(err, "creating graphics pipeline"), ErrPipelineCompilationFailed)
	}
	var stages driver.ShaderStage
	for _, r := range b.push {
		stages |= r.Stages
	}
	return &CorePipeline{
		device:      b.device,
		pipeline:    pipeline,
		layout:      layout,
		push_stages: stages,
		set_count:   uint32(len(layouts)),
	}, nil
}

//CorePipeline is a built graphics pipeline with its layout
type CorePipeline struct {
	device      *CoreDevice
	pipeline    driver.Pipeline
	layout      driver.PipelineLayout
	push_stages driver.ShaderStage
	set_count   uint32
}

func (p *CorePipeline) Handle() driver.Pipeline       { return p.pipeline }
func (p *CorePipeline) Layout() driver.PipelineLayout { return p.layout }

func (p *CorePipeline) Bind(cb *CommandBuffer) {
	cb.BindPipeline(p.pipeline)
}

//BindDescriptorSets binds sets starting at set index first
func (p *CorePipeline) BindDescriptorSets(cb *CommandBuffer, first uint32, sets ...driver.DescriptorSet) {
	assertf(first+uint32(len(sets)) <= p.set_count, "binding sets [%d,%d) on a layout with %d sets", first, first+uint32(len(sets)), p.set_count)
	cb.BindDescriptorSets(p.layout, first, sets...)
}

func (p *CorePipeline) PushConstants(cb *CommandBuffer, data []byte) {
	cb.PushConstants(p.layout, p.push_stages, 0, data)
}

func (p *CorePipeline) Destroy() {
	p.device.gpu.DestroyPipeline(p.pipeline)
	p.device.gpu.DestroyPipelineLayout(p.layout)
}
