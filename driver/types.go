package driver

//Opaque handles. Zero is never a valid handle.
type (
	Buffer              uint64
	Memory              uint64
	Image               uint64
	ImageView           uint64
	Sampler             uint64
	CommandPool         uint64
	CommandBuffer       uint64
	Semaphore           uint64
	Fence               uint64
	DescriptorSetLayout uint64
	DescriptorPool      uint64
	DescriptorSet       uint64
	ShaderModule        uint64
	PipelineLayout      uint64
	Pipeline            uint64
	RenderPass          uint64
	Framebuffer         uint64
	Swapchain           uint64
	Queue               uint64
)

//Infinite blocks a fence wait or acquire until it completes.
const Infinite = ^uint64(0)

//WholeSize selects the remainder of a mapping or flush range.
const WholeSize = ^uint64(0)

type DeviceKind int

const (
	DeviceOther DeviceKind = iota
	DeviceIntegrated
	DeviceDiscrete
	DeviceVirtual
	DeviceCPU
)

func (k DeviceKind) String() string {
	switch k {
	case DeviceIntegrated:
		return "integrated"
	case DeviceDiscrete:
		return "discrete"
	case DeviceVirtual:
		return "virtual"
	case DeviceCPU:
		return "cpu"
	}
	return "other"
}

type Limits struct {
	MinUniformBufferOffsetAlignment uint64
	NonCoherentAtomSize             uint64
	MaxPushConstantsSize            uint32
	MaxBoundDescriptorSets          uint32
	//MaxAllocationSize bounds a single buffer. Zero means unbounded.
	MaxAllocationSize uint64
}

type Properties struct {
	Name   string
	Kind   DeviceKind
	Limits Limits
}

type QueueFlags uint32

const (
	QueueGraphics QueueFlags = 1 << iota
	QueueCompute
	QueueTransfer
)

//QueueFamily describes one queue family of the physical device.
type QueueFamily struct {
	Index   uint32
	Flags   QueueFlags
	Count   uint32
	Present bool
}

type MemoryFlags uint32

const (
	MemoryDeviceLocal MemoryFlags = 1 << iota
	MemoryHostVisible
	MemoryHostCoherent
	MemoryHostCached
)

type MemoryType struct {
	Flags MemoryFlags
	Heap  uint32
}

type MemoryRequirements struct {
	Size      uint64
	Alignment uint64
	TypeBits  uint32
}

type BufferUsage uint32

const (
	BufferTransferSrc BufferUsage = 1 << iota
	BufferTransferDst
	BufferUniform
	BufferStorage
	BufferVertex
	BufferIndex
)

type ImageUsage uint32

const (
	ImageTransferSrc ImageUsage = 1 << iota
	ImageTransferDst
	ImageSampled
	ImageColorAttachment
	ImageDepthStencilAttachment
)

type Format uint32

const (
	FormatUndefined Format = iota
	FormatRGBA8Unorm
	FormatRGBA8SRGB
	FormatBGRA8Unorm
	FormatBGRA8SRGB
	FormatD16Unorm
	FormatD32Sfloat
	FormatD32SfloatS8Uint
	FormatD24UnormS8Uint
)

//Size returns the texel size in bytes.
func (f Format) Size() int {
	switch f {
	case FormatD16Unorm:
		return 2
	case FormatD32SfloatS8Uint:
		return 8
	case FormatUndefined:
		return 0
	}
	return 4
}

func (f Format) IsDepth() bool {
	switch f {
	case FormatD16Unorm, FormatD32Sfloat, FormatD32SfloatS8Uint, FormatD24UnormS8Uint:
		return true
	}
	return false
}

func (f Format) HasStencil() bool {
	return f == FormatD32SfloatS8Uint || f == FormatD24UnormS8Uint
}

func (f Format) String() string {
	switch f {
	case FormatRGBA8Unorm:
		return "R8G8B8A8_UNORM"
	case FormatRGBA8SRGB:
		return "R8G8B8A8_SRGB"
	case FormatBGRA8Unorm:
		return "B8G8R8A8_UNORM"
	case FormatBGRA8SRGB:
		return "B8G8R8A8_SRGB"
	case FormatD16Unorm:
		return "D16_UNORM"
	case FormatD32Sfloat:
		return "D32_SFLOAT"
	case FormatD32SfloatS8Uint:
		return "D32_SFLOAT_S8_UINT"
	case FormatD24UnormS8Uint:
		return "D24_UNORM_S8_UINT"
	}
	return "UNDEFINED"
}

type FormatFeature uint32

const (
	FeatureSampledImage FormatFeature = 1 << iota
	FeatureColorAttachment
	FeatureDepthStencilAttachment
)

type ColorSpace uint32

const ColorSpaceSRGBNonlinear ColorSpace = 0

type Layout uint32

const (
	LayoutUndefined Layout = iota
	LayoutGeneral
	LayoutColorAttachment
	LayoutDepthStencilAttachment
	LayoutShaderReadOnly
	LayoutTransferSrc
	LayoutTransferDst
	LayoutPresentSrc
)

func (l Layout) String() string {
	switch l {
	case LayoutGeneral:
		return "General"
	case LayoutColorAttachment:
		return "ColorAttachmentOptimal"
	case LayoutDepthStencilAttachment:
		return "DepthStencilAttachmentOptimal"
	case LayoutShaderReadOnly:
		return "ShaderReadOnlyOptimal"
	case LayoutTransferSrc:
		return "TransferSrcOptimal"
	case LayoutTransferDst:
		return "TransferDstOptimal"
	case LayoutPresentSrc:
		return "PresentSrc"
	}
	return "Undefined"
}

type Access uint32

const (
	AccessNone Access = 0
	AccessTransferRead Access = 1 << iota
	AccessTransferWrite
	AccessShaderRead
	AccessColorAttachmentRead
	AccessColorAttachmentWrite
	AccessDepthStencilRead
	AccessDepthStencilWrite
	AccessHostWrite
)

type PipelineStage uint32

const (
	StageTopOfPipe PipelineStage = 1 << iota
	StageVertexShader
	StageFragmentShader
	StageEarlyFragmentTests
	StageLateFragmentTests
	StageColorAttachmentOutput
	StageTransfer
	StageBottomOfPipe
	StageHost
)

type Aspect uint32

const (
	AspectColor Aspect = 1 << iota
	AspectDepth
	AspectStencil
)

type ImageInfo struct {
	Format      Format
	Width       uint32
	Height      uint32
	MipLevels   uint32
	ArrayLayers uint32
	Usage       ImageUsage
}

type ImageViewInfo struct {
	Image  Image
	Format Format
	Aspect Aspect
}

type ImageBarrier struct {
	Image     Image
	OldLayout Layout
	NewLayout Layout
	SrcAccess Access
	DstAccess Access
	Aspect    Aspect
	MipLevels uint32
	Layers    uint32
}

type BufferCopy struct {
	SrcOffset uint64
	DstOffset uint64
	Size      uint64
}

type BufferImageCopy struct {
	BufferOffset uint64
	Aspect       Aspect
	Width        uint32
	Height       uint32
}

type Filter uint32

const (
	FilterNearest Filter = iota
	FilterLinear
)

type AddressMode uint32

const (
	AddressRepeat AddressMode = iota
	AddressMirroredRepeat
	AddressClampToEdge
)

type SamplerInfo struct {
	MagFilter     Filter
	MinFilter     Filter
	AddressMode   AddressMode
	MaxAnisotropy float32
}

type ShaderStage uint32

const (
	ShaderVertex ShaderStage = 1 << iota
	ShaderFragment
	ShaderCompute
)

func (s ShaderStage) String() string {
	switch s {
	case ShaderVertex:
		return "vertex"
	case ShaderFragment:
		return "fragment"
	case ShaderCompute:
		return "compute"
	case ShaderVertex | ShaderFragment:
		return "vertex|fragment"
	}
	return "unknown"
}

type DescriptorKind uint32

const (
	DescriptorUniformBuffer DescriptorKind = iota
	DescriptorStorageBuffer
	DescriptorCombinedImageSampler
)

func (k DescriptorKind) String() string {
	switch k {
	case DescriptorUniformBuffer:
		return "uniform-buffer"
	case DescriptorStorageBuffer:
		return "storage-buffer"
	case DescriptorCombinedImageSampler:
		return "combined-image-sampler"
	}
	return "unknown"
}

//IsBuffer reports whether the descriptor references a buffer range.
func (k DescriptorKind) IsBuffer() bool {
	return k == DescriptorUniformBuffer || k == DescriptorStorageBuffer
}

type DescriptorBinding struct {
	Binding uint32
	Kind    DescriptorKind
	Count   uint32
	Stages  ShaderStage
}

type DescriptorPoolSize struct {
	Kind  DescriptorKind
	Count uint32
}

type DescriptorBufferInfo struct {
	Buffer Buffer
	Offset uint64
	Range  uint64
}

type DescriptorImageInfo struct {
	Sampler Sampler
	View    ImageView
	Layout  Layout
}

//DescriptorWrite updates one binding of one set. Exactly one of Buffer and
//Image is set, matching Kind.
type DescriptorWrite struct {
	Set     DescriptorSet
	Binding uint32
	Kind    DescriptorKind
	Buffer  *DescriptorBufferInfo
	Image   *DescriptorImageInfo
}

type PushConstantRange struct {
	Stages ShaderStage
	Offset uint32
	Size   uint32
}

type VertexFormat uint32

const (
	VertexFloat2 VertexFormat = iota
	VertexFloat3
	VertexFloat4
)

type VertexBinding struct {
	Binding uint32
	Stride  uint32
}

type VertexAttribute struct {
	Location uint32
	Binding  uint32
	Format   VertexFormat
	Offset   uint32
}

type ShaderStageInfo struct {
	Stage  ShaderStage
	Module ShaderModule
	Entry  string
}

type Topology uint32

const (
	TopologyTriangleList Topology = iota
	TopologyTriangleStrip
	TopologyLineList
	TopologyPointList
)

type PolygonMode uint32

const (
	PolygonFill PolygonMode = iota
	PolygonLine
	PolygonPoint
)

type CullMode uint32

const (
	CullNone CullMode = iota
	CullFront
	CullBack
)

type FrontFace uint32

const (
	FrontCounterClockwise FrontFace = iota
	FrontClockwise
)

type CompareOp uint32

const (
	CompareNever CompareOp = iota
	CompareLess
	CompareEqual
	CompareLessOrEqual
	CompareGreater
	CompareAlways
)

type Viewport struct {
	X, Y          float32
	Width, Height float32
	MinDepth      float32
	MaxDepth      float32
}

type Extent struct {
	Width, Height uint32
}

type Rect struct {
	X, Y   int32
	Extent Extent
}

type PipelineLayoutInfo struct {
	SetLayouts    []DescriptorSetLayout
	PushConstants []PushConstantRange
}

type GraphicsPipelineInfo struct {
	Stages           []ShaderStageInfo
	VertexBindings   []VertexBinding
	VertexAttributes []VertexAttribute
	Topology         Topology
	Polygon          PolygonMode
	Cull             CullMode
	FrontFace        FrontFace
	LineWidth        float32
	DepthTest        bool
	DepthWrite       bool
	DepthCompare     CompareOp
	Blend            bool
	//DynamicViewport leaves viewport and scissor to CmdSetViewport and
	//CmdSetScissor; Viewport and Scissor are ignored when set.
	DynamicViewport bool
	Viewport        Viewport
	Scissor         Rect
	Layout          PipelineLayout
	RenderPass      RenderPass
	Subpass         uint32
}

type LoadOp uint32

const (
	LoadDontCare LoadOp = iota
	LoadClear
	LoadLoad
)

type StoreOp uint32

const (
	StoreDontCare StoreOp = iota
	StoreStore
)

type AttachmentInfo struct {
	Format        Format
	Load          LoadOp
	Store         StoreOp
	StencilLoad   LoadOp
	StencilStore  StoreOp
	InitialLayout Layout
	FinalLayout   Layout
}

//RenderPassInfo describes a single-subpass pass with one color attachment
//and an optional depth attachment.
type RenderPassInfo struct {
	Color AttachmentInfo
	Depth *AttachmentInfo
}

type FramebufferInfo struct {
	RenderPass  RenderPass
	Attachments []ImageView
	Extent      Extent
}

type ClearValue struct {
	Color   [4]float32
	Depth   float32
	Stencil uint32
}

type RenderPassBegin struct {
	RenderPass  RenderPass
	Framebuffer Framebuffer
	Area        Rect
	Clear       []ClearValue
}

type IndexType uint32

const (
	IndexUint16 IndexType = iota
	IndexUint32
)

type SubmitInfo struct {
	Wait           []Semaphore
	WaitStages     []PipelineStage
	CommandBuffers []CommandBuffer
	Signal         []Semaphore
}

type SurfaceCapabilities struct {
	MinImageCount uint32
	//MaxImageCount of zero means no upper bound.
	MaxImageCount uint32
	//CurrentExtent of {0xFFFFFFFF, 0xFFFFFFFF} lets the swapchain pick.
	CurrentExtent Extent
	MinExtent     Extent
	MaxExtent     Extent
}

type SurfaceFormat struct {
	Format     Format
	ColorSpace ColorSpace
}

type PresentMode uint32

const (
	PresentFifo PresentMode = iota
	PresentMailbox
	PresentImmediate
)

func (m PresentMode) String() string {
	switch m {
	case PresentMailbox:
		return "mailbox"
	case PresentImmediate:
		return "immediate"
	}
	return "fifo"
}

type SwapchainInfo struct {
	MinImageCount uint32
	Format        SurfaceFormat
	Extent        Extent
	PresentMode   PresentMode
	Old           Swapchain
}
