//Package driver defines the explicit-submission GPU interface the core is
//written against. Implementations own the translation to a concrete graphics
//API; the core never sees API handles directly.
//
//Every Create* call must be paired with the matching Destroy* call and the
//device itself is destroyed last, after WaitIdle.
package driver

//GPU is a logical device together with its physical device, surface and
//queues.
type GPU interface {
	Properties() Properties
	MemoryTypes() []MemoryType
	QueueFamilies() []QueueFamily
	Queue(family, index uint32) Queue
	FormatSupported(f Format, feature FormatFeature) bool

	CreateBuffer(size uint64, usage BufferUsage) (Buffer, error)
	DestroyBuffer(b Buffer)
	BufferRequirements(b Buffer) MemoryRequirements
	AllocateMemory(size uint64, memoryType uint32) (Memory, error)
	FreeMemory(m Memory)
	BindBufferMemory(b Buffer, m Memory, offset uint64) error
	//MapMemory returns a host view of [offset, offset+size). The slice
	//aliases device memory until UnmapMemory.
	MapMemory(m Memory, offset, size uint64) ([]byte, error)
	UnmapMemory(m Memory)
	FlushMemory(m Memory, offset, size uint64) error
	InvalidateMemory(m Memory, offset, size uint64) error

	CreateImage(info ImageInfo) (Image, error)
	DestroyImage(img Image)
	ImageRequirements(img Image) MemoryRequirements
	BindImageMemory(img Image, m Memory, offset uint64) error
	CreateImageView(info ImageViewInfo) (ImageView, error)
	DestroyImageView(v ImageView)
	CreateSampler(info SamplerInfo) (Sampler, error)
	DestroySampler(s Sampler)

	CreateCommandPool(family uint32, resettable bool) (CommandPool, error)
	DestroyCommandPool(p CommandPool)
	AllocateCommandBuffers(p CommandPool, n int) ([]CommandBuffer, error)
	FreeCommandBuffers(p CommandPool, cbs []CommandBuffer)
	BeginCommandBuffer(cb CommandBuffer, oneTime bool) error
	EndCommandBuffer(cb CommandBuffer) error
	ResetCommandBuffer(cb CommandBuffer) error

	CmdPipelineBarrier(cb CommandBuffer, src, dst PipelineStage, barriers []ImageBarrier)
	CmdCopyBuffer(cb CommandBuffer, src, dst Buffer, regions []BufferCopy)
	CmdCopyBufferToImage(cb CommandBuffer, src Buffer, dst Image, layout Layout, regions []BufferImageCopy)
	CmdCopyImageToBuffer(cb CommandBuffer, src Image, layout Layout, dst Buffer, regions []BufferImageCopy)
	CmdBeginRenderPass(cb CommandBuffer, begin RenderPassBegin)
	CmdEndRenderPass(cb CommandBuffer)
	CmdBindPipeline(cb CommandBuffer, p Pipeline)
	CmdBindDescriptorSets(cb CommandBuffer, layout PipelineLayout, firstSet uint32, sets []DescriptorSet)
	CmdPushConstants(cb CommandBuffer, layout PipelineLayout, stages ShaderStage, offset uint32, data []byte)
	CmdBindVertexBuffers(cb CommandBuffer, first uint32, buffers []Buffer, offsets []uint64)
	CmdBindIndexBuffer(cb CommandBuffer, b Buffer, offset uint64, t IndexType)
	CmdDraw(cb CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32)
	CmdDrawIndexed(cb CommandBuffer, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32)
	CmdSetViewport(cb CommandBuffer, vp Viewport)
	CmdSetScissor(cb CommandBuffer, r Rect)

	//QueueSubmit returns once the work is queued; fence (may be zero) is
	//signaled when it completes.
	QueueSubmit(q Queue, submits []SubmitInfo, fence Fence) error
	QueueWaitIdle(q Queue) error
	WaitIdle() error

	CreateSemaphore() (Semaphore, error)
	DestroySemaphore(s Semaphore)
	CreateFence(signaled bool) (Fence, error)
	DestroyFence(f Fence)
	WaitForFences(fences []Fence, waitAll bool, timeout uint64) error
	ResetFences(fences []Fence) error
	FenceSignaled(f Fence) bool

	CreateDescriptorSetLayout(bindings []DescriptorBinding) (DescriptorSetLayout, error)
	DestroyDescriptorSetLayout(l DescriptorSetLayout)
	CreateDescriptorPool(maxSets uint32, sizes []DescriptorPoolSize) (DescriptorPool, error)
	DestroyDescriptorPool(p DescriptorPool)
	AllocateDescriptorSet(p DescriptorPool, l DescriptorSetLayout) (DescriptorSet, error)
	UpdateDescriptorSets(writes []DescriptorWrite)

	CreateShaderModule(code []byte) (ShaderModule, error)
	DestroyShaderModule(m ShaderModule)
	CreatePipelineLayout(info PipelineLayoutInfo) (PipelineLayout, error)
	DestroyPipelineLayout(l PipelineLayout)
	CreateGraphicsPipeline(info GraphicsPipelineInfo) (Pipeline, error)
	DestroyPipeline(p Pipeline)
	CreateRenderPass(info RenderPassInfo) (RenderPass, error)
	DestroyRenderPass(rp RenderPass)
	CreateFramebuffer(info FramebufferInfo) (Framebuffer, error)
	DestroyFramebuffer(fb Framebuffer)

	SurfaceCapabilities() (SurfaceCapabilities, error)
	SurfaceFormats() ([]SurfaceFormat, error)
	CreateSwapchain(info SwapchainInfo) (Swapchain, error)
	DestroySwapchain(sc Swapchain)
	SwapchainImages(sc Swapchain) ([]Image, error)
	//AcquireNextImage signals sem when the image is ready. A suboptimal
	//swapchain returns a valid index together with ErrSuboptimal.
	AcquireNextImage(sc Swapchain, timeout uint64, sem Semaphore) (uint32, error)
	QueuePresent(q Queue, sc Swapchain, index uint32, wait []Semaphore) error

	//Destroy releases the logical device, surface and instance.
	Destroy()
}
