package simdriver

import (
	"time"

	"github.com/cockroachdb/errors"

	"github.com/andewx/scopvk/driver"
)

//Op identifies a recorded command.
type Op int

const (
	OpBarrier Op = iota
	OpCopyBuffer
	OpCopyBufferToImage
	OpCopyImageToBuffer
	OpBeginRenderPass
	OpEndRenderPass
	OpBindPipeline
	OpBindDescriptorSets
	OpPushConstants
	OpBindVertexBuffers
	OpBindIndexBuffer
	OpDraw
	OpDrawIndexed
	OpSetViewport
	OpSetScissor
)

var opNames = [...]string{
	"barrier", "copy-buffer", "copy-buffer-to-image", "copy-image-to-buffer",
	"begin-render-pass", "end-render-pass", "bind-pipeline", "bind-descriptor-sets",
	"push-constants", "bind-vertex-buffers", "bind-index-buffer", "draw",
	"draw-indexed", "set-viewport", "set-scissor",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return "unknown"
}

//Command is one recorded command. Only the fields relevant to Op are set.
type Command struct {
	Op         Op
	Pipeline   driver.Pipeline
	Layout     driver.PipelineLayout
	FirstSet   uint32
	Sets       []driver.DescriptorSet
	Buffers    []driver.Buffer
	Image      driver.Image
	Barriers   []driver.ImageBarrier
	Data       []byte
	Count      uint32
	RenderPass driver.RenderPassBegin
	exec       func(g *GPU)
}

//Submission is a snapshot of one QueueSubmit batch.
type Submission struct {
	Queue          driver.Queue
	CommandBuffers []driver.CommandBuffer
	Commands       [][]Command
	Wait           []driver.Semaphore
	Signal         []driver.Semaphore
	Fence          driver.Fence
}

type cbState int

const (
	cbInitial cbState = iota
	cbRecording
	cbExecutable
	cbPending
)

type commandPool struct {
	family     uint32
	resettable bool
	buffers    map[driver.CommandBuffer]bool
}

type commandBuffer struct {
	pool     driver.CommandPool
	state    cbState
	oneTime  bool
	inPass   bool
	pipeline bool
	cmds     []Command
}

type fence struct {
	signaled bool
}

type semaphore struct {
	signaled bool
}

type pendingSubmit struct {
	cbs   []driver.CommandBuffer
	fence driver.Fence
}

func (g *GPU) CreateCommandPool(family uint32, resettable bool) (driver.CommandPool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if int(family) >= len(g.opts.QueueFamilies) {
		panic(errors.AssertionFailedf("simdriver: queue family %d out of range", family))
	}
	h := driver.CommandPool(g.acquire(kindCommandPool))
	g.pools[h] = &commandPool{family: family, resettable: resettable, buffers: make(map[driver.CommandBuffer]bool)}
	return h, nil
}

func (g *GPU) DestroyCommandPool(p driver.CommandPool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.release(uint64(p), kindCommandPool)
	for cb := range g.pools[p].buffers {
		if g.cmds[cb].state == cbPending {
			panic(errors.AssertionFailedf("simdriver: command pool %d destroyed with pending command buffer %d", p, cb))
		}
		g.release(uint64(cb), kindCommandBuffer)
		delete(g.cmds, cb)
	}
	delete(g.pools, p)
}

func (g *GPU) AllocateCommandBuffers(p driver.CommandPool, n int) ([]driver.CommandBuffer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mustLive(uint64(p), kindCommandPool)
	out := make([]driver.CommandBuffer, n)
	for i := range out {
		h := driver.CommandBuffer(g.acquire(kindCommandBuffer))
		g.cmds[h] = &commandBuffer{pool: p}
		g.pools[p].buffers[h] = true
		out[i] = h
	}
	return out, nil
}

func (g *GPU) FreeCommandBuffers(p driver.CommandPool, cbs []driver.CommandBuffer) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mustLive(uint64(p), kindCommandPool)
	for _, cb := range cbs {
		if g.cmds[cb] != nil && g.cmds[cb].state == cbPending {
			panic(errors.AssertionFailedf("simdriver: freeing pending command buffer %d", cb))
		}
		g.release(uint64(cb), kindCommandBuffer)
		delete(g.cmds, cb)
		delete(g.pools[p].buffers, cb)
	}
}

func (g *GPU) cmd(h driver.CommandBuffer) *commandBuffer {
	g.mustLive(uint64(h), kindCommandBuffer)
	return g.cmds[h]
}

func (g *GPU) BeginCommandBuffer(h driver.CommandBuffer, oneTime bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	cb := g.cmd(h)
	switch cb.state {
	case cbPending:
		panic(errors.AssertionFailedf("simdriver: begin on pending command buffer %d", h))
	case cbRecording:
		panic(errors.AssertionFailedf("simdriver: begin on recording command buffer %d", h))
	case cbExecutable:
		if !g.pools[cb.pool].resettable {
			panic(errors.AssertionFailedf("simdriver: implicit reset of command buffer %d from a non-resettable pool", h))
		}
	}
	*cb = commandBuffer{pool: cb.pool, state: cbRecording, oneTime: oneTime}
	return nil
}

func (g *GPU) EndCommandBuffer(h driver.CommandBuffer) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	cb := g.cmd(h)
	if cb.state != cbRecording {
		panic(errors.AssertionFailedf("simdriver: end on command buffer %d that is not recording", h))
	}
	if cb.inPass {
		panic(errors.AssertionFailedf("simdriver: command buffer %d ended inside a render pass", h))
	}
	cb.state = cbExecutable
	return nil
}

func (g *GPU) ResetCommandBuffer(h driver.CommandBuffer) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	cb := g.cmd(h)
	if cb.state == cbPending {
		panic(errors.AssertionFailedf("simdriver: reset of pending command buffer %d", h))
	}
	if !g.pools[cb.pool].resettable {
		panic(errors.AssertionFailedf("simdriver: reset of command buffer %d from a non-resettable pool", h))
	}
	*cb = commandBuffer{pool: cb.pool}
	return nil
}

//record appends c to a recording command buffer. Callers hold mu.
func (g *GPU) record(h driver.CommandBuffer, c Command) *commandBuffer {
	cb := g.cmd(h)
	if cb.state != cbRecording {
		panic(errors.AssertionFailedf("simdriver: %s recorded into command buffer %d that is not recording", c.Op, h))
	}
	cb.cmds = append(cb.cmds, c)
	return cb
}

func (g *GPU) CmdPipelineBarrier(h driver.CommandBuffer, src, dst driver.PipelineStage, barriers []driver.ImageBarrier) {
	g.mu.Lock()
	defer g.mu.Unlock()
	bs := append([]driver.ImageBarrier(nil), barriers...)
	for _, b := range bs {
		g.mustLive(uint64(b.Image), kindImage)
	}
	g.record(h, Command{Op: OpBarrier, Barriers: bs, exec: func(g *GPU) {
		for _, b := range bs {
			img := g.images[b.Image]
			if b.OldLayout != driver.LayoutUndefined && b.OldLayout != img.layout {
				panic(errors.AssertionFailedf("simdriver: barrier expects %s but image %d is %s", b.OldLayout, b.Image, img.layout))
			}
			img.layout = b.NewLayout
		}
	}})
}

func (g *GPU) CmdCopyBuffer(h driver.CommandBuffer, src, dst driver.Buffer, regions []driver.BufferCopy) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mustLive(uint64(src), kindBuffer)
	g.mustLive(uint64(dst), kindBuffer)
	rs := append([]driver.BufferCopy(nil), regions...)
	g.record(h, Command{Op: OpCopyBuffer, Buffers: []driver.Buffer{src, dst}, exec: func(g *GPU) {
		s, d := g.buffers[src].bytes(), g.buffers[dst].bytes()
		for _, r := range rs {
			copy(d[r.DstOffset:r.DstOffset+r.Size], s[r.SrcOffset:r.SrcOffset+r.Size])
		}
	}})
}

func (g *GPU) CmdCopyBufferToImage(h driver.CommandBuffer, src driver.Buffer, dst driver.Image, layout driver.Layout, regions []driver.BufferImageCopy) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mustLive(uint64(src), kindBuffer)
	g.mustLive(uint64(dst), kindImage)
	if layout != driver.LayoutTransferDst && layout != driver.LayoutGeneral {
		panic(errors.AssertionFailedf("simdriver: copy destination layout %s", layout))
	}
	rs := append([]driver.BufferImageCopy(nil), regions...)
	g.record(h, Command{Op: OpCopyBufferToImage, Buffers: []driver.Buffer{src}, Image: dst, exec: func(g *GPU) {
		img := g.images[dst]
		if img.layout != layout {
			panic(errors.AssertionFailedf("simdriver: image %d is %s, copy expects %s", dst, img.layout, layout))
		}
		s := g.buffers[src].bytes()
		for _, r := range rs {
			n := uint64(r.Width) * uint64(r.Height) * uint64(img.info.Format.Size())
			copy(img.data[:n], s[r.BufferOffset:r.BufferOffset+n])
		}
	}})
}

func (g *GPU) CmdCopyImageToBuffer(h driver.CommandBuffer, src driver.Image, layout driver.Layout, dst driver.Buffer, regions []driver.BufferImageCopy) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mustLive(uint64(src), kindImage)
	g.mustLive(uint64(dst), kindBuffer)
	rs := append([]driver.BufferImageCopy(nil), regions...)
	g.record(h, Command{Op: OpCopyImageToBuffer, Buffers: []driver.Buffer{dst}, Image: src, exec: func(g *GPU) {
		img := g.images[src]
		if img.layout != layout || (layout != driver.LayoutTransferSrc && layout != driver.LayoutGeneral) {
			panic(errors.AssertionFailedf("simdriver: image %d is %s, copy expects %s", src, img.layout, layout))
		}
		d := g.buffers[dst].bytes()
		for _, r := range rs {
			n := uint64(r.Width) * uint64(r.Height) * uint64(img.info.Format.Size())
			copy(d[r.BufferOffset:r.BufferOffset+n], img.data[:n])
		}
	}})
}

func (g *GPU) CmdBeginRenderPass(h driver.CommandBuffer, begin driver.RenderPassBegin) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mustLive(uint64(begin.RenderPass), kindRenderPass)
	g.mustLive(uint64(begin.Framebuffer), kindFramebuffer)
	cb := g.record(h, Command{Op: OpBeginRenderPass, RenderPass: begin})
	if cb.inPass {
		panic(errors.AssertionFailedf("simdriver: nested render pass in command buffer %d", h))
	}
	cb.inPass = true
}

func (g *GPU) CmdEndRenderPass(h driver.CommandBuffer) {
	g.mu.Lock()
	defer g.mu.Unlock()
	cb := g.record(h, Command{Op: OpEndRenderPass})
	if !cb.inPass {
		panic(errors.AssertionFailedf("simdriver: end render pass outside a render pass in command buffer %d", h))
	}
	cb.inPass = false
}

func (g *GPU) CmdBindPipeline(h driver.CommandBuffer, p driver.Pipeline) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mustLive(uint64(p), kindPipeline)
	cb := g.record(h, Command{Op: OpBindPipeline, Pipeline: p})
	cb.pipeline = true
}

func (g *GPU) CmdBindDescriptorSets(h driver.CommandBuffer, layout driver.PipelineLayout, firstSet uint32, sets []driver.DescriptorSet) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mustLive(uint64(layout), kindPipelineLayout)
	for _, s := range sets {
		g.mustLive(uint64(s), kindDescriptorSet)
	}
	info := g.pipeLayouts[layout]
	if int(firstSet)+len(sets) > len(info.SetLayouts) {
		panic(errors.AssertionFailedf("simdriver: binding sets [%d,%d) past pipeline layout with %d sets", firstSet, int(firstSet)+len(sets), len(info.SetLayouts)))
	}
	for i, s := range sets {
		if want := info.SetLayouts[int(firstSet)+i]; g.sets[s].layout != want {
			panic(errors.AssertionFailedf("simdriver: set %d bound at index %d has an incompatible layout", s, int(firstSet)+i))
		}
	}
	g.record(h, Command{Op: OpBindDescriptorSets, Layout: layout, FirstSet: firstSet, Sets: append([]driver.DescriptorSet(nil), sets...)})
}

func (g *GPU) CmdPushConstants(h driver.CommandBuffer, layout driver.PipelineLayout, stages driver.ShaderStage, offset uint32, data []byte) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mustLive(uint64(layout), kindPipelineLayout)
	if uint32(len(data))+offset > g.opts.Limits.MaxPushConstantsSize {
		panic(errors.AssertionFailedf("simdriver: push constants of %d bytes exceed %d", len(data), g.opts.Limits.MaxPushConstantsSize))
	}
	g.record(h, Command{Op: OpPushConstants, Layout: layout, Count: offset, Data: append([]byte(nil), data...)})
}

func (g *GPU) CmdBindVertexBuffers(h driver.CommandBuffer, first uint32, buffers []driver.Buffer, offsets []uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, b := range buffers {
		g.mustLive(uint64(b), kindBuffer)
	}
	g.record(h, Command{Op: OpBindVertexBuffers, Count: first, Buffers: append([]driver.Buffer(nil), buffers...)})
}

func (g *GPU) CmdBindIndexBuffer(h driver.CommandBuffer, b driver.Buffer, offset uint64, t driver.IndexType) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mustLive(uint64(b), kindBuffer)
	g.record(h, Command{Op: OpBindIndexBuffer, Buffers: []driver.Buffer{b}})
}

func (g *GPU) checkDraw(h driver.CommandBuffer, cb *commandBuffer) {
	if !cb.inPass {
		panic(errors.AssertionFailedf("simdriver: draw outside a render pass in command buffer %d", h))
	}
	if !cb.pipeline {
		panic(errors.AssertionFailedf("simdriver: draw without a bound pipeline in command buffer %d", h))
	}
}

func (g *GPU) CmdDraw(h driver.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.checkDraw(h, g.record(h, Command{Op: OpDraw, Count: vertexCount}))
}

func (g *GPU) CmdDrawIndexed(h driver.CommandBuffer, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.checkDraw(h, g.record(h, Command{Op: OpDrawIndexed, Count: indexCount}))
}

func (g *GPU) CmdSetViewport(h driver.CommandBuffer, vp driver.Viewport) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record(h, Command{Op: OpSetViewport})
}

func (g *GPU) CmdSetScissor(h driver.CommandBuffer, r driver.Rect) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record(h, Command{Op: OpSetScissor})
}

//Commands returns a copy of the commands last recorded into cb.
func (g *GPU) Commands(h driver.CommandBuffer) []Command {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Command(nil), g.cmd(h).cmds...)
}

func (g *GPU) QueueSubmit(q driver.Queue, submits []driver.SubmitInfo, f driver.Fence) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if q == 0 {
		panic(errors.AssertionFailedf("simdriver: submit to null queue"))
	}
	if err := g.submitErr; err != nil {
		g.submitErr = nil
		return errors.Wrap(err, "queue submit")
	}
	if f != 0 {
		g.mustLive(uint64(f), kindFence)
		if g.fences[f].signaled {
			panic(errors.AssertionFailedf("simdriver: submit with fence %d still signaled", f))
		}
	}
	p := &pendingSubmit{fence: f}
	for _, s := range submits {
		if len(s.Wait) != len(s.WaitStages) {
			panic(errors.AssertionFailedf("simdriver: %d wait semaphores with %d wait stages", len(s.Wait), len(s.WaitStages)))
		}
		snap := Submission{Queue: q, Wait: s.Wait, Signal: s.Signal, Fence: f}
		for _, sem := range s.Wait {
			g.mustLive(uint64(sem), kindSemaphore)
			if !g.semaphores[sem].signaled {
				panic(errors.AssertionFailedf("simdriver: wait on semaphore %d that has no pending signal", sem))
			}
			g.semaphores[sem].signaled = false
		}
		for _, h := range s.CommandBuffers {
			cb := g.cmd(h)
			if cb.state != cbExecutable {
				panic(errors.AssertionFailedf("simdriver: submit of command buffer %d that is not executable", h))
			}
			for _, c := range cb.cmds {
				if c.exec != nil {
					c.exec(g)
				}
			}
			cb.state = cbPending
			p.cbs = append(p.cbs, h)
			snap.CommandBuffers = append(snap.CommandBuffers, h)
			snap.Commands = append(snap.Commands, append([]Command(nil), cb.cmds...))
		}
		for _, sem := range s.Signal {
			g.signalSemaphore(sem)
		}
		g.submissions = append(g.submissions, snap)
	}
	g.pending = append(g.pending, p)
	if !g.opts.ManualCompletion {
		g.completeAll()
	}
	return nil
}

//FailNextSubmit makes the next QueueSubmit return err without running or
//consuming anything.
func (g *GPU) FailNextSubmit(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.submitErr = err
}

func (g *GPU) signalSemaphore(sem driver.Semaphore) {
	g.mustLive(uint64(sem), kindSemaphore)
	if g.semaphores[sem].signaled {
		panic(errors.AssertionFailedf("simdriver: semaphore %d signaled twice without a wait", sem))
	}
	g.semaphores[sem].signaled = true
}

//complete retires the oldest pending submission. Callers hold mu.
func (g *GPU) complete() bool {
	if len(g.pending) == 0 {
		return false
	}
	p := g.pending[0]
	g.pending = g.pending[1:]
	for _, h := range p.cbs {
		if cb, ok := g.cmds[h]; ok {
			cb.state = cbExecutable
		}
	}
	if p.fence != 0 {
		if f, ok := g.fences[p.fence]; ok {
			f.signaled = true
		}
	}
	close(g.signal)
	g.signal = make(chan struct{})
	return true
}

func (g *GPU) completeAll() {
	for g.complete() {
	}
}

//CompleteNext finishes the oldest pending submission and reports whether
//there was one.
func (g *GPU) CompleteNext() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.complete()
}

//CompleteAll finishes every pending submission.
func (g *GPU) CompleteAll() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.completeAll()
}

//Pending returns the number of submissions that have not completed.
func (g *GPU) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending)
}

//Submissions returns every submission since creation, oldest first.
func (g *GPU) Submissions() []Submission {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Submission(nil), g.submissions...)
}

func (g *GPU) QueueWaitIdle(q driver.Queue) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.completeAll()
	return nil
}

func (g *GPU) WaitIdle() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.completeAll()
	return nil
}

func (g *GPU) CreateSemaphore() (driver.Semaphore, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	h := driver.Semaphore(g.acquire(kindSemaphore))
	g.semaphores[h] = &semaphore{}
	return h, nil
}

func (g *GPU) DestroySemaphore(s driver.Semaphore) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.release(uint64(s), kindSemaphore)
	delete(g.semaphores, s)
}

func (g *GPU) CreateFence(signaled bool) (driver.Fence, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	h := driver.Fence(g.acquire(kindFence))
	g.fences[h] = &fence{signaled: signaled}
	return h, nil
}

func (g *GPU) DestroyFence(f driver.Fence) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, p := range g.pending {
		if p.fence == f {
			panic(errors.AssertionFailedf("simdriver: fence %d destroyed while in use", f))
		}
	}
	g.release(uint64(f), kindFence)
	delete(g.fences, f)
}

func (g *GPU) fencesDone(fences []driver.Fence, waitAll bool) bool {
	for _, f := range fences {
		g.mustLive(uint64(f), kindFence)
		done := g.fences[f].signaled
		if done && !waitAll {
			return true
		}
		if !done && waitAll {
			return false
		}
	}
	return waitAll
}

func (g *GPU) WaitForFences(fences []driver.Fence, waitAll bool, timeout uint64) error {
	var deadline <-chan time.Time
	if timeout != driver.Infinite {
		t := time.NewTimer(time.Duration(timeout))
		defer t.Stop()
		deadline = t.C
	}
	for {
		g.mu.Lock()
		done := g.fencesDone(fences, waitAll)
		changed := g.signal
		g.mu.Unlock()
		if done {
			return nil
		}
		if timeout == 0 {
			return driver.ErrTimeout
		}
		select {
		case <-changed:
		case <-deadline:
			return driver.ErrTimeout
		}
	}
}

func (g *GPU) ResetFences(fences []driver.Fence) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, f := range fences {
		g.mustLive(uint64(f), kindFence)
		g.fences[f].signaled = false
	}
	return nil
}

func (g *GPU) FenceSignaled(f driver.Fence) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mustLive(uint64(f), kindFence)
	return g.fences[f].signaled
}
