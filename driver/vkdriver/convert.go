package vkdriver

import (
	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/scopvk/driver"
)

var formats = map[driver.Format]vk.Format{
	driver.FormatUndefined:       vk.FormatUndefined,
	driver.FormatRGBA8Unorm:      vk.FormatR8g8b8a8Unorm,
	driver.FormatRGBA8SRGB:       vk.FormatR8g8b8a8Srgb,
	driver.FormatBGRA8Unorm:      vk.FormatB8g8r8a8Unorm,
	driver.FormatBGRA8SRGB:       vk.FormatB8g8r8a8Srgb,
	driver.FormatD16Unorm:        vk.FormatD16Unorm,
	driver.FormatD32Sfloat:       vk.FormatD32Sfloat,
	driver.FormatD32SfloatS8Uint: vk.FormatD32SfloatS8Uint,
	driver.FormatD24UnormS8Uint:  vk.FormatD24UnormS8Uint,
}

func toFormat(f driver.Format) vk.Format {
	if v, ok := formats[f]; ok {
		return v
	}
	return vk.FormatUndefined
}

//fromFormat returns FormatUndefined for formats the core never asks for
func fromFormat(f vk.Format) driver.Format {
	for k, v := range formats {
		if v == f {
			return k
		}
	}
	return driver.FormatUndefined
}

func toLayout(l driver.Layout) vk.ImageLayout {
	switch l {
	case driver.LayoutGeneral:
		return vk.ImageLayoutGeneral
	case driver.LayoutColorAttachment:
		return vk.ImageLayoutColorAttachmentOptimal
	case driver.LayoutDepthStencilAttachment:
		return vk.ImageLayoutDepthStencilAttachmentOptimal
	case driver.LayoutShaderReadOnly:
		return vk.ImageLayoutShaderReadOnlyOptimal
	case driver.LayoutTransferSrc:
		return vk.ImageLayoutTransferSrcOptimal
	case driver.LayoutTransferDst:
		return vk.ImageLayoutTransferDstOptimal
	case driver.LayoutPresentSrc:
		return vk.ImageLayoutPresentSrc
	}
	return vk.ImageLayoutUndefined
}

func toAccess(a driver.Access) vk.AccessFlags {
	var out vk.AccessFlagBits
	bits := []struct {
		from driver.Access
		to   vk.AccessFlagBits
	}{
		{driver.AccessTransferRead, vk.AccessTransferReadBit},
		{driver.AccessTransferWrite, vk.AccessTransferWriteBit},
		{driver.AccessShaderRead, vk.AccessShaderReadBit},
		{driver.AccessColorAttachmentRead, vk.AccessColorAttachmentReadBit},
		{driver.AccessColorAttachmentWrite, vk.AccessColorAttachmentWriteBit},
		{driver.AccessDepthStencilRead, vk.AccessDepthStencilAttachmentReadBit},
		{driver.AccessDepthStencilWrite, vk.AccessDepthStencilAttachmentWriteBit},
		{driver.AccessHostWrite, vk.AccessHostWriteBit},
	}
	for _, b := range bits {
		if a&b.from != 0 {
			out |= b.to
		}
	}
	return vk.AccessFlags(out)
}

func toStageBits(s driver.PipelineStage) vk.PipelineStageFlagBits {
	var out vk.PipelineStageFlagBits
	bits := []struct {
		from driver.PipelineStage
		to   vk.PipelineStageFlagBits
	}{
		{driver.StageTopOfPipe, vk.PipelineStageTopOfPipeBit},
		{driver.StageVertexShader, vk.PipelineStageVertexShaderBit},
		{driver.StageFragmentShader, vk.PipelineStageFragmentShaderBit},
		{driver.StageEarlyFragmentTests, vk.PipelineStageEarlyFragmentTestsBit},
		{driver.StageLateFragmentTests, vk.PipelineStageLateFragmentTestsBit},
		{driver.StageColorAttachmentOutput, vk.PipelineStageColorAttachmentOutputBit},
		{driver.StageTransfer, vk.PipelineStageTransferBit},
		{driver.StageBottomOfPipe, vk.PipelineStageBottomOfPipeBit},
		{driver.StageHost, vk.PipelineStageHostBit},
	}
	for _, b := range bits {
		if s&b.from != 0 {
			out |= b.to
		}
	}
	return out
}

func toStages(s driver.PipelineStage) vk.PipelineStageFlags {
	return vk.PipelineStageFlags(toStageBits(s))
}

func toAspect(a driver.Aspect) vk.ImageAspectFlags {
	var out vk.ImageAspectFlagBits
	if a&driver.AspectColor != 0 {
		out |= vk.ImageAspectColorBit
	}
	if a&driver.AspectDepth != 0 {
		out |= vk.ImageAspectDepthBit
	}
	if a&driver.AspectStencil != 0 {
		out |= vk.ImageAspectStencilBit
	}
	return vk.ImageAspectFlags(out)
}

func toBufferUsage(u driver.BufferUsage) vk.BufferUsageFlags {
	var out vk.BufferUsageFlagBits
	bits := []struct {
		from driver.BufferUsage
		to   vk.BufferUsageFlagBits
	}{
		{driver.BufferTransferSrc, vk.BufferUsageTransferSrcBit},
		{driver.BufferTransferDst, vk.BufferUsageTransferDstBit},
		{driver.BufferUniform, vk.BufferUsageUniformBufferBit},
		{driver.BufferStorage, vk.BufferUsageStorageBufferBit},
		{driver.BufferVertex, vk.BufferUsageVertexBufferBit},
		{driver.BufferIndex, vk.BufferUsageIndexBufferBit},
	}
	for _, b := range bits {
		if u&b.from != 0 {
			out |= b.to
		}
	}
	return vk.BufferUsageFlags(out)
}

func toImageUsage(u driver.ImageUsage) vk.ImageUsageFlags {
	var out vk.ImageUsageFlagBits
	bits := []struct {
		from driver.ImageUsage
		to   vk.ImageUsageFlagBits
	}{
		{driver.ImageTransferSrc, vk.ImageUsageTransferSrcBit},
		{driver.ImageTransferDst, vk.ImageUsageTransferDstBit},
		{driver.ImageSampled, vk.ImageUsageSampledBit},
		{driver.ImageColorAttachment, vk.ImageUsageColorAttachmentBit},
		{driver.ImageDepthStencilAttachment, vk.ImageUsageDepthStencilAttachmentBit},
	}
	for _, b := range bits {
		if u&b.from != 0 {
			out |= b.to
		}
	}
	return vk.ImageUsageFlags(out)
}

func fromMemoryFlags(f vk.MemoryPropertyFlags) driver.MemoryFlags {
	var out driver.MemoryFlags
	if f&vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit) != 0 {
		out |= driver.MemoryDeviceLocal
	}
	if f&vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit) != 0 {
		out |= driver.MemoryHostVisible
	}
	if f&vk.MemoryPropertyFlags(vk.MemoryPropertyHostCoherentBit) != 0 {
		out |= driver.MemoryHostCoherent
	}
	if f&vk.MemoryPropertyFlags(vk.MemoryPropertyHostCachedBit) != 0 {
		out |= driver.MemoryHostCached
	}
	return out
}

func fromQueueFlags(f vk.QueueFlags) driver.QueueFlags {
	var out driver.QueueFlags
	if f&vk.QueueFlags(vk.QueueGraphicsBit) != 0 {
		out |= driver.QueueGraphics
	}
	if f&vk.QueueFlags(vk.QueueComputeBit) != 0 {
		out |= driver.QueueCompute
	}
	if f&vk.QueueFlags(vk.QueueTransferBit) != 0 {
		out |= driver.QueueTransfer
	}
	return out
}

func fromDeviceType(t vk.PhysicalDeviceType) driver.DeviceKind {
	switch t {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return driver.DeviceIntegrated
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return driver.DeviceDiscrete
	case vk.PhysicalDeviceTypeVirtualGpu:
		return driver.DeviceVirtual
	case vk.PhysicalDeviceTypeCpu:
		return driver.DeviceCPU
	}
	return driver.DeviceOther
}

func toFormatFeature(f driver.FormatFeature) vk.FormatFeatureFlags {
	var out vk.FormatFeatureFlagBits
	if f&driver.FeatureSampledImage != 0 {
		out |= vk.FormatFeatureSampledImageBit
	}
	if f&driver.FeatureColorAttachment != 0 {
		out |= vk.FormatFeatureColorAttachmentBit
	}
	if f&driver.FeatureDepthStencilAttachment != 0 {
		out |= vk.FormatFeatureDepthStencilAttachmentBit
	}
	return vk.FormatFeatureFlags(out)
}

func toShaderStages(s driver.ShaderStage) vk.ShaderStageFlags {
	return vk.ShaderStageFlags(toShaderStageBits(s))
}

func toShaderStageBits(s driver.ShaderStage) vk.ShaderStageFlagBits {
	var out vk.ShaderStageFlagBits
	if s&driver.ShaderVertex != 0 {
		out |= vk.ShaderStageVertexBit
	}
	if s&driver.ShaderFragment != 0 {
		out |= vk.ShaderStageFragmentBit
	}
	if s&driver.ShaderCompute != 0 {
		out |= vk.ShaderStageComputeBit
	}
	return out
}

func toDescriptorType(k driver.DescriptorKind) vk.DescriptorType {
	switch k {
	case driver.DescriptorStorageBuffer:
		return vk.DescriptorTypeStorageBuffer
	case driver.DescriptorCombinedImageSampler:
		return vk.DescriptorTypeCombinedImageSampler
	}
	return vk.DescriptorTypeUniformBuffer
}

func toFilter(f driver.Filter) vk.Filter {
	if f == driver.FilterLinear {
		return vk.FilterLinear
	}
	return vk.FilterNearest
}

func toAddressMode(m driver.AddressMode) vk.SamplerAddressMode {
	switch m {
	case driver.AddressMirroredRepeat:
		return vk.SamplerAddressModeMirroredRepeat
	case driver.AddressClampToEdge:
		return vk.SamplerAddressModeClampToEdge
	}
	return vk.SamplerAddressModeRepeat
}

func toVertexFormat(f driver.VertexFormat) vk.Format {
	switch f {
	case driver.VertexFloat2:
		return vk.FormatR32g32Sfloat
	case driver.VertexFloat3:
		return vk.FormatR32g32b32Sfloat
	}
	return vk.FormatR32g32b32a32Sfloat
}

func toTopology(t driver.Topology) vk.PrimitiveTopology {
	switch t {
	case driver.TopologyTriangleStrip:
		return vk.PrimitiveTopologyTriangleStrip
	case driver.TopologyLineList:
		return vk.PrimitiveTopologyLineList
	case driver.TopologyPointList:
		return vk.PrimitiveTopologyPointList
	}
	return vk.PrimitiveTopologyTriangleList
}

func toPolygonMode(m driver.PolygonMode) vk.PolygonMode {
	switch m {
	case driver.PolygonLine:
		return vk.PolygonModeLine
	case driver.PolygonPoint:
		return vk.PolygonModePoint
	}
	return vk.PolygonModeFill
}

func toCullMode(c driver.CullMode) vk.CullModeFlags {
	switch c {
	case driver.CullFront:
		return vk.CullModeFlags(vk.CullModeFrontBit)
	case driver.CullBack:
		return vk.CullModeFlags(vk.CullModeBackBit)
	}
	return vk.CullModeFlags(vk.CullModeNone)
}

func toFrontFace(f driver.FrontFace) vk.FrontFace {
	if f == driver.FrontClockwise {
		return vk.FrontFaceClockwise
	}
	return vk.FrontFaceCounterClockwise
}

func toCompareOp(c driver.CompareOp) vk.CompareOp {
	switch c {
	case driver.CompareNever:
		return vk.CompareOpNever
	case driver.CompareEqual:
		return vk.CompareOpEqual
	case driver.CompareLessOrEqual:
		return vk.CompareOpLessOrEqual
	case driver.CompareGreater:
		return vk.CompareOpGreater
	case driver.CompareAlways:
		return vk.CompareOpAlways
	}
	return vk.CompareOpLess
}

func toLoadOp(l driver.LoadOp) vk.AttachmentLoadOp {
	switch l {
	case driver.LoadClear:
		return vk.AttachmentLoadOpClear
	case driver.LoadLoad:
		return vk.AttachmentLoadOpLoad
	}
	return vk.AttachmentLoadOpDontCare
}

func toStoreOp(s driver.StoreOp) vk.AttachmentStoreOp {
	if s == driver.StoreStore {
		return vk.AttachmentStoreOpStore
	}
	return vk.AttachmentStoreOpDontCare
}

func toIndexType(t driver.IndexType) vk.IndexType {
	if t == driver.IndexUint16 {
		return vk.IndexTypeUint16
	}
	return vk.IndexTypeUint32
}

func toPresentMode(m driver.PresentMode) vk.PresentMode {
	switch m {
	case driver.PresentMailbox:
		return vk.PresentModeMailbox
	case driver.PresentImmediate:
		return vk.PresentModeImmediate
	}
	return vk.PresentModeFifo
}

func toBool(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}

func toExtent(e driver.Extent) vk.Extent2D {
	return vk.Extent2D{Width: e.Width, Height: e.Height}
}

func fromExtent(e vk.Extent2D) driver.Extent {
	return driver.Extent{Width: e.Width, Height: e.Height}
}

func toRect(r driver.Rect) vk.Rect2D {
	return vk.Rect2D{
		Offset: vk.Offset2D{X: r.X, Y: r.Y},
		Extent: toExtent(r.Extent),
	}
}

func toViewport(v driver.Viewport) vk.Viewport {
	return vk.Viewport{
		X:        v.X,
		Y:        v.Y,
		Width:    v.Width,
		Height:   v.Height,
		MinDepth: v.MinDepth,
		MaxDepth: v.MaxDepth,
	}
}
