package vkdriver

import (
	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/scopvk/driver"
)

func (g *GPU) CreateShaderModule(code []byte) (driver.ShaderModule, error) {
	var module vk.ShaderModule
	ret := vk.CreateShaderModule(g.device, &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    sliceUint32(code),
	}, nil, &module)
	if err := newError(ret, "creating shader module"); err != nil {
		return 0, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return driver.ShaderModule(g.shaders.put(module)), nil
}

func (g *GPU) DestroyShaderModule(m driver.ShaderModule) {
	g.mu.Lock()
	module := g.shaders.take(uint64(m))
	g.mu.Unlock()
	vk.DestroyShaderModule(g.device, module, nil)
}

func (g *GPU) CreatePipelineLayout(info driver.PipelineLayoutInfo) (driver.PipelineLayout, error) {
	g.mu.Lock()
	layouts := make([]vk.DescriptorSetLayout, len(info.SetLayouts))
	for i, l := range info.SetLayouts {
		layouts[i] = g.setLayouts.get(uint64(l))
	}
	g.mu.Unlock()
	ranges := make([]vk.PushConstantRange, len(info.PushConstants))
	for i, r := range info.PushConstants {
		ranges[i] = vk.PushConstantRange{
			StageFlags: toShaderStages(r.Stages),
			Offset:     r.Offset,
			Size:       r.Size,
		}
	}
	var layout vk.PipelineLayout
	ret := vk.CreatePipelineLayout(g.device, &vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         uint32(len(layouts)),
		PSetLayouts:            layouts,
		PushConstantRangeCount: uint32(len(ranges)),
		PPushConstantRanges:    ranges,
	}, nil, &layout)
	if err := newError(ret, "creating pipeline layout"); err != nil {
		return 0, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return driver.PipelineLayout(g.pipeLayouts.put(layout)), nil
}

func (g *GPU) DestroyPipelineLayout(l driver.PipelineLayout) {
	g.mu.Lock()
	layout := g.pipeLayouts.take(uint64(l))
	g.mu.Unlock()
	vk.DestroyPipelineLayout(g.device, layout, nil)
}

//CreateGraphicsPipeline marks any failure with driver.ErrPipelineRejected
func (g *GPU) CreateGraphicsPipeline(info driver.GraphicsPipelineInfo) (driver.Pipeline, error) {
	g.mu.Lock()
	stages := make([]vk.PipelineShaderStageCreateInfo, len(info.Stages))
	for i, s := range info.Stages {
		entry := s.Entry
		if entry == "" {
			entry = "main"
		}
		stages[i] = vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  toShaderStageBits(s.Stage),
			Module: g.shaders.get(uint64(s.Module)),
			PName:  safeString(entry),
		}
	}
	layout := g.pipeLayouts.get(uint64(info.Layout))
	pass := g.renderPasses.get(uint64(info.RenderPass))
	g.mu.Unlock()

	bindings := make([]vk.VertexInputBindingDescription, len(info.VertexBindings))
	for i, b := range info.VertexBindings {
		bindings[i] = vk.VertexInputBindingDescription{
			Binding:   b.Binding,
			Stride:    b.Stride,
			InputRate: vk.VertexInputRateVertex,
		}
	}
	attrs := make([]vk.VertexInputAttributeDescription, len(info.VertexAttributes))
	for i, a := range info.VertexAttributes {
		attrs[i] = vk.VertexInputAttributeDescription{
			Location: a.Location,
			Binding:  a.Binding,
			Format:   toVertexFormat(a.Format),
			Offset:   a.Offset,
		}
	}
	vertexInput := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(bindings)),
		PVertexBindingDescriptions:      bindings,
		VertexAttributeDescriptionCount: uint32(len(attrs)),
		PVertexAttributeDescriptions:    attrs,
	}
	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology: toTopology(info.Topology),
	}
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}
	var dynamic *vk.PipelineDynamicStateCreateInfo
	if info.DynamicViewport {
		states := []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}
		dynamic = &vk.PipelineDynamicStateCreateInfo{
			SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
			DynamicStateCount: uint32(len(states)),
			PDynamicStates:    states,
		}
	} else {
		viewportState.PViewports = []vk.Viewport{toViewport(info.Viewport)}
		viewportState.PScissors = []vk.Rect2D{toRect(info.Scissor)}
	}
	lineWidth := info.LineWidth
	if lineWidth == 0 {
		lineWidth = 1
	}
	raster := vk.PipelineRasterizationStateCreateInfo{
		SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode: toPolygonMode(info.Polygon),
		CullMode:    toCullMode(info.Cull),
		FrontFace:   toFrontFace(info.FrontFace),
		LineWidth:   lineWidth,
	}
	multisample := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vk.SampleCount1Bit,
		MinSampleShading:     1,
	}
	depth := vk.PipelineDepthStencilStateCreateInfo{
		SType:            vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:  toBool(info.DepthTest),
		DepthWriteEnable: toBool(info.DepthWrite),
		DepthCompareOp:   toCompareOp(info.DepthCompare),
	}
	blend := vk.PipelineColorBlendAttachmentState{
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit | vk.ColorComponentBBit | vk.ColorComponentABit),
	}
	if info.Blend {
		blend.BlendEnable = vk.True
		blend.SrcColorBlendFactor = vk.BlendFactorSrcAlpha
		blend.DstColorBlendFactor = vk.BlendFactorOneMinusSrcAlpha
		blend.ColorBlendOp = vk.BlendOpAdd
		blend.SrcAlphaBlendFactor = vk.BlendFactorOne
		blend.DstAlphaBlendFactor = vk.BlendFactorZero
		blend.AlphaBlendOp = vk.BlendOpAdd
	}
	colorBlend := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{blend},
	}

	pipelines := make([]vk.Pipeline, 1)
	ret := vk.CreateGraphicsPipelines(g.device, vk.PipelineCache(vk.NullHandle), 1, []vk.GraphicsPipelineCreateInfo{{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &raster,
		PMultisampleState:   &multisample,
		PDepthStencilState:  &depth,
		PColorBlendState:    &colorBlend,
		PDynamicState:       dynamic,
		Layout:              layout,
		RenderPass:          pass,
		Subpass:             info.Subpass,
	}}, nil, pipelines)
	if err := newError(ret, "creating graphics pipeline"); err != nil {
		return 0, errors.Mark(err, driver.ErrPipelineRejected)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return driver.Pipeline(g.pipelines.put(pipelines[0])), nil
}

func (g *GPU) DestroyPipeline(p driver.Pipeline) {
	g.mu.Lock()
	pipeline := g.pipelines.take(uint64(p))
	g.mu.Unlock()
	vk.DestroyPipeline(g.device, pipeline, nil)
}

func toAttachment(a driver.AttachmentInfo) vk.AttachmentDescription {
	return vk.AttachmentDescription{
		Format:         toFormat(a.Format),
		Samples:        vk.SampleCount1Bit,
		LoadOp:         toLoadOp(a.Load),
		StoreOp:        toStoreOp(a.Store),
		StencilLoadOp:  toLoadOp(a.StencilLoad),
		StencilStoreOp: toStoreOp(a.StencilStore),
		InitialLayout:  toLayout(a.InitialLayout),
		FinalLayout:    toLayout(a.FinalLayout),
	}
}

//CreateRenderPass builds one subpass with an external dependency so the
//attachments are not written before the acquired image is released and the
//previous frame's depth writes are done.
func (g *GPU) CreateRenderPass(info driver.RenderPassInfo) (driver.RenderPass, error) {
	attachments := []vk.AttachmentDescription{toAttachment(info.Color)}
	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: 1,
		PColorAttachments: []vk.AttachmentReference{{
			Attachment: 0,
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		}},
	}
	srcStages := vk.PipelineStageColorAttachmentOutputBit
	dstStages := vk.PipelineStageColorAttachmentOutputBit
	dstAccess := vk.AccessColorAttachmentWriteBit
	if info.Depth != nil {
		attachments = append(attachments, toAttachment(*info.Depth))
		subpass.PDepthStencilAttachment = &vk.AttachmentReference{
			Attachment: 1,
			Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
		}
		srcStages |= vk.PipelineStageLateFragmentTestsBit
		dstStages |= vk.PipelineStageEarlyFragmentTestsBit
		dstAccess |= vk.AccessDepthStencilAttachmentWriteBit
	}
	dependencies := []vk.SubpassDependency{{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(srcStages),
		DstStageMask:  vk.PipelineStageFlags(dstStages),
		SrcAccessMask: 0,
		DstAccessMask: vk.AccessFlags(dstAccess),
	}}
	var pass vk.RenderPass
	ret := vk.CreateRenderPass(g.device, &vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: uint32(len(dependencies)),
		PDependencies:   dependencies,
	}, nil, &pass)
	if err := newError(ret, "creating render pass"); err != nil {
		return 0, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return driver.RenderPass(g.renderPasses.put(pass)), nil
}

func (g *GPU) DestroyRenderPass(rp driver.RenderPass) {
	g.mu.Lock()
	pass := g.renderPasses.take(uint64(rp))
	g.mu.Unlock()
	vk.DestroyRenderPass(g.device, pass, nil)
}

func (g *GPU) CreateFramebuffer(info driver.FramebufferInfo) (driver.Framebuffer, error) {
	g.mu.Lock()
	pass := g.renderPasses.get(uint64(info.RenderPass))
	views := make([]vk.ImageView, len(info.Attachments))
	for i, v := range info.Attachments {
		views[i] = g.views.get(uint64(v))
	}
	g.mu.Unlock()
	var fb vk.Framebuffer
	ret := vk.CreateFramebuffer(g.device, &vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      pass,
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           info.Extent.Width,
		Height:          info.Extent.Height,
		Layers:          1,
	}, nil, &fb)
	if err := newError(ret, "creating framebuffer"); err != nil {
		return 0, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return driver.Framebuffer(g.framebuffers.put(fb)), nil
}

func (g *GPU) DestroyFramebuffer(fb driver.Framebuffer) {
	g.mu.Lock()
	framebuffer := g.framebuffers.take(uint64(fb))
	g.mu.Unlock()
	vk.DestroyFramebuffer(g.device, framebuffer, nil)
}
