package vkdriver

import (
	"unsafe"

	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/scopvk/driver"
)

type commandBuffer struct {
	cb   vk.CommandBuffer
	pool driver.CommandPool
}

func (g *GPU) CreateCommandPool(family uint32, resettable bool) (driver.CommandPool, error) {
	var flags vk.CommandPoolCreateFlagBits
	if resettable {
		flags = vk.CommandPoolCreateResetCommandBufferBit
	}
	var pool vk.CommandPool
	ret := vk.CreateCommandPool(g.device, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(flags),
		QueueFamilyIndex: family,
	}, nil, &pool)
	if err := newError(ret, "creating command pool"); err != nil {
		return 0, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return driver.CommandPool(g.cmdPools.put(pool)), nil
}

//DestroyCommandPool also forgets the buffers allocated from p
func (g *GPU) DestroyCommandPool(p driver.CommandPool) {
	g.mu.Lock()
	pool := g.cmdPools.take(uint64(p))
	g.cmds.drop(func(c commandBuffer) bool { return c.pool == p })
	g.mu.Unlock()
	vk.DestroyCommandPool(g.device, pool, nil)
}

func (g *GPU) AllocateCommandBuffers(p driver.CommandPool, n int) ([]driver.CommandBuffer, error) {
	g.mu.Lock()
	pool := g.cmdPools.get(uint64(p))
	g.mu.Unlock()
	cbs := make([]vk.CommandBuffer, n)
	ret := vk.AllocateCommandBuffers(g.device, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: uint32(n),
	}, cbs)
	if err := newError(ret, "allocating command buffers"); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]driver.CommandBuffer, n)
	for i, cb := range cbs {
		out[i] = driver.CommandBuffer(g.cmds.put(commandBuffer{cb: cb, pool: p}))
	}
	return out, nil
}

func (g *GPU) FreeCommandBuffers(p driver.CommandPool, cbs []driver.CommandBuffer) {
	if len(cbs) == 0 {
		return
	}
	g.mu.Lock()
	pool := g.cmdPools.get(uint64(p))
	list := make([]vk.CommandBuffer, len(cbs))
	for i, h := range cbs {
		list[i] = g.cmds.take(uint64(h)).cb
	}
	g.mu.Unlock()
	vk.FreeCommandBuffers(g.device, pool, uint32(len(list)), list)
}

func (g *GPU) cmd(cb driver.CommandBuffer) vk.CommandBuffer {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cmds.get(uint64(cb)).cb
}

func (g *GPU) BeginCommandBuffer(cb driver.CommandBuffer, oneTime bool) error {
	var flags vk.CommandBufferUsageFlagBits
	if oneTime {
		flags = vk.CommandBufferUsageOneTimeSubmitBit
	}
	ret := vk.BeginCommandBuffer(g.cmd(cb), &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(flags),
	})
	return newError(ret, "beginning command buffer")
}

func (g *GPU) EndCommandBuffer(cb driver.CommandBuffer) error {
	return newError(vk.EndCommandBuffer(g.cmd(cb)), "ending command buffer")
}

func (g *GPU) ResetCommandBuffer(cb driver.CommandBuffer) error {
	return newError(vk.ResetCommandBuffer(g.cmd(cb), 0), "resetting command buffer")
}

func (g *GPU) CmdPipelineBarrier(cb driver.CommandBuffer, src, dst driver.PipelineStage, barriers []driver.ImageBarrier) {
	list := make([]vk.ImageMemoryBarrier, len(barriers))
	for i, b := range barriers {
		mips, layers := b.MipLevels, b.Layers
		if mips == 0 {
			mips = 1
		}
		if layers == 0 {
			layers = 1
		}
		list[i] = vk.ImageMemoryBarrier{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       toAccess(b.SrcAccess),
			DstAccessMask:       toAccess(b.DstAccess),
			OldLayout:           toLayout(b.OldLayout),
			NewLayout:           toLayout(b.NewLayout),
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               g.image(b.Image),
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: toAspect(b.Aspect),
				LevelCount: mips,
				LayerCount: layers,
			},
		}
	}
	vk.CmdPipelineBarrier(g.cmd(cb), toStages(src), toStages(dst), 0, 0, nil, 0, nil, uint32(len(list)), list)
}

func (g *GPU) CmdCopyBuffer(cb driver.CommandBuffer, src, dst driver.Buffer, regions []driver.BufferCopy) {
	list := make([]vk.BufferCopy, len(regions))
	for i, r := range regions {
		list[i] = vk.BufferCopy{
			SrcOffset: vk.DeviceSize(r.SrcOffset),
			DstOffset: vk.DeviceSize(r.DstOffset),
			Size:      vk.DeviceSize(r.Size),
		}
	}
	vk.CmdCopyBuffer(g.cmd(cb), g.buffer(src), g.buffer(dst), uint32(len(list)), list)
}

func toImageCopies(regions []driver.BufferImageCopy) []vk.BufferImageCopy {
	list := make([]vk.BufferImageCopy, len(regions))
	for i, r := range regions {
		list[i] = vk.BufferImageCopy{
			BufferOffset: vk.DeviceSize(r.BufferOffset),
			ImageSubresource: vk.ImageSubresourceLayers{
				AspectMask: toAspect(r.Aspect),
				LayerCount: 1,
			},
			ImageExtent: vk.Extent3D{Width: r.Width, Height: r.Height, Depth: 1},
		}
	}
	return list
}

func (g *GPU) CmdCopyBufferToImage(cb driver.CommandBuffer, src driver.Buffer, dst driver.Image, layout driver.Layout, regions []driver.BufferImageCopy) {
	list := toImageCopies(regions)
	vk.CmdCopyBufferToImage(g.cmd(cb), g.buffer(src), g.image(dst), toLayout(layout), uint32(len(list)), list)
}

func (g *GPU) CmdCopyImageToBuffer(cb driver.CommandBuffer, src driver.Image, layout driver.Layout, dst driver.Buffer, regions []driver.BufferImageCopy) {
	list := toImageCopies(regions)
	vk.CmdCopyImageToBuffer(g.cmd(cb), g.image(src), toLayout(layout), g.buffer(dst), uint32(len(list)), list)
}

func (g *GPU) CmdBeginRenderPass(cb driver.CommandBuffer, begin driver.RenderPassBegin) {
	clear := make([]vk.ClearValue, len(begin.Clear))
	for i, c := range begin.Clear {
		if i == 0 {
			clear[i].SetColor(c.Color[:])
		} else {
			clear[i].SetDepthStencil(c.Depth, c.Stencil)
		}
	}
	g.mu.Lock()
	pass := g.renderPasses.get(uint64(begin.RenderPass))
	fb := g.framebuffers.get(uint64(begin.Framebuffer))
	g.mu.Unlock()
	vk.CmdBeginRenderPass(g.cmd(cb), &vk.RenderPassBeginInfo{
		SType:           vk.StructureTypeRenderPassBeginInfo,
		RenderPass:      pass,
		Framebuffer:     fb,
		RenderArea:      toRect(begin.Area),
		ClearValueCount: uint32(len(clear)),
		PClearValues:    clear,
	}, vk.SubpassContentsInline)
}

func (g *GPU) CmdEndRenderPass(cb driver.CommandBuffer) {
	vk.CmdEndRenderPass(g.cmd(cb))
}

func (g *GPU) CmdBindPipeline(cb driver.CommandBuffer, p driver.Pipeline) {
	g.mu.Lock()
	pipeline := g.pipelines.get(uint64(p))
	g.mu.Unlock()
	vk.CmdBindPipeline(g.cmd(cb), vk.PipelineBindPointGraphics, pipeline)
}

func (g *GPU) CmdBindDescriptorSets(cb driver.CommandBuffer, layout driver.PipelineLayout, firstSet uint32, sets []driver.DescriptorSet) {
	g.mu.Lock()
	pl := g.pipeLayouts.get(uint64(layout))
	list := make([]vk.DescriptorSet, len(sets))
	for i, s := range sets {
		list[i] = g.sets.get(uint64(s)).set
	}
	g.mu.Unlock()
	vk.CmdBindDescriptorSets(g.cmd(cb), vk.PipelineBindPointGraphics, pl, firstSet, uint32(len(list)), list, 0, nil)
}

func (g *GPU) CmdPushConstants(cb driver.CommandBuffer, layout driver.PipelineLayout, stages driver.ShaderStage, offset uint32, data []byte) {
	if len(data) == 0 {
		return
	}
	g.mu.Lock()
	pl := g.pipeLayouts.get(uint64(layout))
	g.mu.Unlock()
	vk.CmdPushConstants(g.cmd(cb), pl, toShaderStages(stages), offset, uint32(len(data)), unsafe.Pointer(&data[0]))
}

func (g *GPU) CmdBindVertexBuffers(cb driver.CommandBuffer, first uint32, buffers []driver.Buffer, offsets []uint64) {
	list := make([]vk.Buffer, len(buffers))
	offs := make([]vk.DeviceSize, len(buffers))
	for i, b := range buffers {
		list[i] = g.buffer(b)
		if i < len(offsets) {
			offs[i] = vk.DeviceSize(offsets[i])
		}
	}
	vk.CmdBindVertexBuffers(g.cmd(cb), first, uint32(len(list)), list, offs)
}

func (g *GPU) CmdBindIndexBuffer(cb driver.CommandBuffer, b driver.Buffer, offset uint64, t driver.IndexType) {
	vk.CmdBindIndexBuffer(g.cmd(cb), g.buffer(b), vk.DeviceSize(offset), toIndexType(t))
}

func (g *GPU) CmdDraw(cb driver.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	vk.CmdDraw(g.cmd(cb), vertexCount, instanceCount, firstVertex, firstInstance)
}

func (g *GPU) CmdDrawIndexed(cb driver.CommandBuffer, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	vk.CmdDrawIndexed(g.cmd(cb), indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}

func (g *GPU) CmdSetViewport(cb driver.CommandBuffer, vp driver.Viewport) {
	vk.CmdSetViewport(g.cmd(cb), 0, 1, []vk.Viewport{toViewport(vp)})
}

func (g *GPU) CmdSetScissor(cb driver.CommandBuffer, r driver.Rect) {
	vk.CmdSetScissor(g.cmd(cb), 0, 1, []vk.Rect2D{toRect(r)})
}

func (g *GPU) queue(q driver.Queue) vk.Queue {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.queues.get(uint64(q))
}

func (g *GPU) QueueSubmit(q driver.Queue, submits []driver.SubmitInfo, fence driver.Fence) error {
	g.mu.Lock()
	infos := make([]vk.SubmitInfo, len(submits))
	for i, s := range submits {
		wait := make([]vk.Semaphore, len(s.Wait))
		stages := make([]vk.PipelineStageFlags, len(s.Wait))
		for j, sem := range s.Wait {
			wait[j] = g.semaphores.get(uint64(sem))
			if j < len(s.WaitStages) {
				stages[j] = toStages(s.WaitStages[j])
			} else {
				stages[j] = vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
			}
		}
		cbs := make([]vk.CommandBuffer, len(s.CommandBuffers))
		for j, cb := range s.CommandBuffers {
			cbs[j] = g.cmds.get(uint64(cb)).cb
		}
		signal := make([]vk.Semaphore, len(s.Signal))
		for j, sem := range s.Signal {
			signal[j] = g.semaphores.get(uint64(sem))
		}
		infos[i] = vk.SubmitInfo{
			SType:                vk.StructureTypeSubmitInfo,
			WaitSemaphoreCount:   uint32(len(wait)),
			PWaitSemaphores:      wait,
			PWaitDstStageMask:    stages,
			CommandBufferCount:   uint32(len(cbs)),
			PCommandBuffers:      cbs,
			SignalSemaphoreCount: uint32(len(signal)),
			PSignalSemaphores:    signal,
		}
	}
	var f vk.Fence = vk.NullFence
	if fence != 0 {
		f = g.fences.get(uint64(fence))
	}
	queue := g.queues.get(uint64(q))
	g.mu.Unlock()
	return newError(vk.QueueSubmit(queue, uint32(len(infos)), infos, f), "submitting to queue")
}

func (g *GPU) QueueWaitIdle(q driver.Queue) error {
	return newError(vk.QueueWaitIdle(g.queue(q)), "waiting for queue idle")
}

func (g *GPU) CreateSemaphore() (driver.Semaphore, error) {
	var sem vk.Semaphore
	ret := vk.CreateSemaphore(g.device, &vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}, nil, &sem)
	if err := newError(ret, "creating semaphore"); err != nil {
		return 0, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return driver.Semaphore(g.semaphores.put(sem)), nil
}

func (g *GPU) DestroySemaphore(s driver.Semaphore) {
	g.mu.Lock()
	sem := g.semaphores.take(uint64(s))
	g.mu.Unlock()
	vk.DestroySemaphore(g.device, sem, nil)
}

func (g *GPU) CreateFence(signaled bool) (driver.Fence, error) {
	var flags vk.FenceCreateFlagBits
	if signaled {
		flags = vk.FenceCreateSignaledBit
	}
	var fence vk.Fence
	ret := vk.CreateFence(g.device, &vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
		Flags: vk.FenceCreateFlags(flags),
	}, nil, &fence)
	if err := newError(ret, "creating fence"); err != nil {
		return 0, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return driver.Fence(g.fences.put(fence)), nil
}

func (g *GPU) DestroyFence(f driver.Fence) {
	g.mu.Lock()
	fence := g.fences.take(uint64(f))
	g.mu.Unlock()
	vk.DestroyFence(g.device, fence, nil)
}

func (g *GPU) fenceList(fences []driver.Fence) []vk.Fence {
	g.mu.Lock()
	defer g.mu.Unlock()
	list := make([]vk.Fence, len(fences))
	for i, f := range fences {
		list[i] = g.fences.get(uint64(f))
	}
	return list
}

//WaitForFences returns a wrapped driver.ErrTimeout when timeout elapses
func (g *GPU) WaitForFences(fences []driver.Fence, waitAll bool, timeout uint64) error {
	list := g.fenceList(fences)
	return newError(vk.WaitForFences(g.device, uint32(len(list)), list, toBool(waitAll), timeout), "waiting for fences")
}

func (g *GPU) ResetFences(fences []driver.Fence) error {
	list := g.fenceList(fences)
	return newError(vk.ResetFences(g.device, uint32(len(list)), list), "resetting fences")
}

func (g *GPU) FenceSignaled(f driver.Fence) bool {
	return vk.GetFenceStatus(g.device, g.fenceList([]driver.Fence{f})[0]) == vk.Success
}
