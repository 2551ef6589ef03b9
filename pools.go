package scopvk

import (
	"github.com/cockroachdb/errors"

	"github.com/andewx/scopvk/driver"
)

//CorePool owns a command pool bound to one queue family and every command
//buffer allocated from it.
type CorePool struct {
	device  *CoreDevice
	pool    driver.CommandPool
	family  QueueFamily
	queue   driver.Queue
	buffers []*CommandBuffer
}

//NewCorePool creates a pool on family. A resettable pool lets its buffers be
//re-recorded every frame.
func NewCorePool(device *CoreDevice, family QueueFamily, resettable bool) (*CorePool, error) {
	assertf(len(family.Queues) > 0, "queue family %d has no queues", family.Index)
	pool, err := device.gpu.CreateCommandPool(family.Index, resettable)
	if err != nil {
		return nil, setupError(err, "pools", "command pool")
	}
	return &CorePool{device: device, pool: pool, family: family, queue: family.Queues[0]}, nil
}

func (p *CorePool) QueueFamily() QueueFamily { return p.family }
func (p *CorePool) Queue() driver.Queue      { return p.queue }

//Allocate adds n primary command buffers to the pool and returns them
func (p *CorePool) Allocate(n int) ([]*CommandBuffer, error) {
	hs, err := p.device.gpu.AllocateCommandBuffers(p.pool, n)
	if err != nil {
		return nil, errors.Wrapf(err, "allocating %d command buffers", n)
	}
	out := make([]*CommandBuffer, len(hs))
	for i, h := range hs {
		out[i] = newCommandBuffer(p.device.gpu, h)
	}
	p.buffers = append(p.buffers, out...)
	return out, nil
}

//Buffer returns the i-th buffer allocated from the pool
func (p *CorePool) Buffer(i int) *CommandBuffer {
	return p.buffers[i]
}

func (p *CorePool) Len() int { return len(p.buffers) }

//BeginSingleTime allocates a one-shot buffer already recording
func (p *CorePool) BeginSingleTime() (*CommandBuffer, error) {
	hs, err := p.device.gpu.AllocateCommandBuffers(p.pool, 1)
	if err != nil {
		return nil, errors.Wrap(err, "allocating single time command buffer")
	}
	cb := newCommandBuffer(p.device.gpu, hs[0])
	if err := cb.Begin(true); err != nil {
		p.device.gpu.FreeCommandBuffers(p.pool, hs)
		return nil, err
	}
	return cb, nil
}

//EndSingleTime ends cb, submits it, blocks until the queue is idle and frees it.
//The buffer is freed even when submission fails.
func (p *CorePool) EndSingleTime(cb *CommandBuffer) error {
	defer p.device.gpu.FreeCommandBuffers(p.pool, []driver.CommandBuffer{cb.handle})
	if err := cb.End(); err != nil {
		return errors.Wrap(err, "ending single time command buffer")
	}
	err := p.device.gpu.QueueSubmit(p.queue, []driver.SubmitInfo{{CommandBuffers: []driver.CommandBuffer{cb.handle}}}, 0)
	if err != nil {
		return errors.Wrap(err, "submitting single time command buffer")
	}
	return errors.Wrap(p.device.gpu.QueueWaitIdle(p.queue), "waiting for single time command buffer")
}

//SingleTime records fn into a one-shot buffer and runs it to completion
func (p *CorePool) SingleTime(fn func(cb *CommandBuffer) error) error {
	cb, err := p.BeginSingleTime()
	if err != nil {
		return err
	}
	if err := fn(cb); err != nil {
		p.abandon(cb)
		return err
	}
	return p.EndSingleTime(cb)
}

//abandon ends and frees a one-shot buffer without submitting it
func (p *CorePool) abandon(cb *CommandBuffer) {
	if cb.in_pass {
		cb.EndRenderPass()
	}
	_ = cb.End()
	p.device.gpu.FreeCommandBuffers(p.pool, []driver.CommandBuffer{cb.handle})
}

//Submission names the synchronization of one queue submit
type Submission struct {
	Buffers    []*CommandBuffer
	Wait       []driver.Semaphore
	WaitStages []driver.PipelineStage
	Signal     []driver.Semaphore
	Fence      driver.Fence
}

//Submit queues work without blocking. Completion is observed through the fence.
func (p *CorePool) Submit(s Submission) error {
	assertf(len(s.Wait) == len(s.WaitStages), "%d wait semaphores with %d wait stages", len(s.Wait), len(s.WaitStages))
	info := driver.SubmitInfo{Wait: s.Wait, WaitStages: s.WaitStages, Signal: s.Signal}
	for _, cb := range s.Buffers {
		assertf(!cb.recording, "submitting command buffer %d that is still recording", cb.handle)
		info.CommandBuffers = append(info.CommandBuffers, cb.handle)
	}
	return errors.Wrap(p.device.gpu.QueueSubmit(p.queue, []driver.SubmitInfo{info}, s.Fence), "queue submit")
}

//Destroy frees every buffer and the pool itself. No buffer may be pending.
func (p *CorePool) Destroy() {
	if len(p.buffers) > 0 {
		hs := make([]driver.CommandBuffer, len(p.buffers))
		for i, cb := range p.buffers {
			hs[i] = cb.handle
		}
		p.device.gpu.FreeCommandBuffers(p.pool, hs)
		p.buffers = nil
	}
	p.device.gpu.DestroyCommandPool(p.pool)
}
