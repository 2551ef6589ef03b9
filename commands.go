package scopvk

import "github.com/andewx/scopvk/driver"

//CommandBuffer tracks the recording state of one driver command buffer.
//Recording a command outside Begin/End, or a draw outside a render pass,
//is a programming error and panics.
type CommandBuffer struct {
	gpu       driver.GPU
	handle    driver.CommandBuffer
	recording bool
	in_pass   bool
}

func newCommandBuffer(gpu driver.GPU, h driver.CommandBuffer) *CommandBuffer {
	return &CommandBuffer{gpu: gpu, handle: h}
}

func (c *CommandBuffer) Handle() driver.CommandBuffer { return c.handle }
func (c *CommandBuffer) Recording() bool              { return c.recording }
func (c *CommandBuffer) InRenderPass() bool           { return c.in_pass }

//Begin starts recording. one_time marks the buffer for a single submission.
func (c *CommandBuffer) Begin(one_time bool) error {
	assertf(!c.recording, "command buffer %d begun twice", c.handle)
	if err := c.gpu.BeginCommandBuffer(c.handle, one_time); err != nil {
		return err
	}
	c.recording = true
	return nil
}

func (c *CommandBuffer) End() error {
	c.mustRecord("end")
	assertf(!c.in_pass, "command buffer %d ended inside a render pass", c.handle)
	c.recording = false
	return c.gpu.EndCommandBuffer(c.handle)
}

//Reset returns the buffer to the initial state. The buffer must not be pending.
func (c *CommandBuffer) Reset() error {
	c.recording, c.in_pass = false, false
	return c.gpu.ResetCommandBuffer(c.handle)
}

func (c *CommandBuffer) mustRecord(op string) {
	assertf(c.recording, "%s recorded into command buffer %d before Begin", op, c.handle)
}

func (c *CommandBuffer) mustDraw(op string) {
	c.mustRecord(op)
	assertf(c.in_pass, "%s recorded into command buffer %d outside a render pass", op, c.handle)
}

func (c *CommandBuffer) Barrier(src, dst driver.PipelineStage, barriers ...driver.ImageBarrier) {
	c.mustRecord("barrier")
	c.gpu.CmdPipelineBarrier(c.handle, src, dst, barriers)
}

func (c *CommandBuffer) CopyBuffer(src, dst driver.Buffer, regions ...driver.BufferCopy) {
	c.mustRecord("copy buffer")
	c.gpu.CmdCopyBuffer(c.handle, src, dst, regions)
}

func (c *CommandBuffer) CopyBufferToImage(src driver.Buffer, dst driver.Image, layout driver.Layout, regions ...driver.BufferImageCopy) {
	c.mustRecord("copy buffer to image")
	c.gpu.CmdCopyBufferToImage(c.handle, src, dst, layout, regions)
}

func (c *CommandBuffer) CopyImageToBuffer(src driver.Image, layout driver.Layout, dst driver.Buffer, regions ...driver.BufferImageCopy) {
	c.mustRecord("copy image to buffer")
	c.gpu.CmdCopyImageToBuffer(c.handle, src, layout, dst, regions)
}

func (c *CommandBuffer) BeginRenderPass(begin driver.RenderPassBegin) {
	c.mustRecord("begin render pass")
	assertf(!c.in_pass, "render pass begun twice in command buffer %d", c.handle)
	c.gpu.CmdBeginRenderPass(c.handle, begin)
	c.in_pass = true
}

func (c *CommandBuffer) EndRenderPass() {
	c.mustDraw("end render pass")
	c.gpu.CmdEndRenderPass(c.handle)
	c.in_pass = false
}

func (c *CommandBuffer) SetViewport(vp driver.Viewport) {
	c.mustRecord("set viewport")
	c.gpu.CmdSetViewport(c.handle, vp)
}

func (c *CommandBuffer) SetScissor(r driver.Rect) {
	c.mustRecord("set scissor")
	c.gpu.CmdSetScissor(c.handle, r)
}

func (c *CommandBuffer) BindPipeline(p driver.Pipeline) {
	c.mustDraw("bind pipeline")
	c.gpu.CmdBindPipeline(c.handle, p)
}

func (c *CommandBuffer) BindDescriptorSets(layout driver.PipelineLayout, first uint32, sets ...driver.DescriptorSet) {
	c.mustDraw("bind descriptor sets")
	c.gpu.CmdBindDescriptorSets(c.handle, layout, first, sets)
}

func (c *CommandBuffer) PushConstants(layout driver.PipelineLayout, stages driver.ShaderStage, offset uint32, data []byte) {
	c.mustDraw("push constants")
	c.gpu.CmdPushConstants(c.handle, layout, stages, offset, data)
}

func (c *CommandBuffer) BindVertexBuffers(first uint32, buffers []driver.Buffer, offsets []uint64) {
	c.mustDraw("bind vertex buffers")
	c.gpu.CmdBindVertexBuffers(c.handle, first, buffers, offsets)
}

func (c *CommandBuffer) BindIndexBuffer(b driver.Buffer, offset uint64, t driver.IndexType) {
	c.mustDraw("bind index buffer")
	c.gpu.CmdBindIndexBuffer(c.handle, b, offset, t)
}

func (c *CommandBuffer) Draw(vertices, instances, first_vertex, first_instance uint32) {
	c.mustDraw("draw")
	c.gpu.CmdDraw(c.handle, vertices, instances, first_vertex, first_instance)
}

func (c *CommandBuffer) DrawIndexed(indices, instances, first_index uint32, vertex_offset int32, first_instance uint32) {
	c.mustDraw("draw indexed")
	c.gpu.CmdDrawIndexed(c.handle, indices, instances, first_index, vertex_offset, first_instance)
}
