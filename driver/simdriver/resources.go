package simdriver

import (
	"github.com/cockroachdb/errors"

	"github.com/andewx/scopvk/driver"
)

type memory struct {
	data      []byte
	typeIndex uint32
	mapped    bool
}

type buffer struct {
	size  uint64
	usage driver.BufferUsage
	mem   *memory
	off   uint64
}

func (b *buffer) bytes() []byte {
	if b.mem == nil {
		panic(errors.AssertionFailedf("simdriver: buffer used before memory was bound"))
	}
	return b.mem.data[b.off : b.off+b.size]
}

type image struct {
	info      driver.ImageInfo
	data      []byte
	mem       *memory
	layout    driver.Layout
	swapchain bool
}

func (i *image) size() uint64 {
	return uint64(i.info.Width) * uint64(i.info.Height) * uint64(i.info.Format.Size())
}

func (g *GPU) CreateBuffer(size uint64, usage driver.BufferUsage) (driver.Buffer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if size == 0 {
		panic(errors.AssertionFailedf("simdriver: zero sized buffer"))
	}
	h := driver.Buffer(g.acquire(kindBuffer))
	g.buffers[h] = &buffer{size: size, usage: usage}
	return h, nil
}

func (g *GPU) DestroyBuffer(b driver.Buffer) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.release(uint64(b), kindBuffer)
	delete(g.buffers, b)
}

func (g *GPU) allTypes() uint32 {
	return uint32(1)<<uint(len(g.opts.MemoryTypes)) - 1
}

func (g *GPU) BufferRequirements(b driver.Buffer) driver.MemoryRequirements {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mustLive(uint64(b), kindBuffer)
	return driver.MemoryRequirements{Size: g.buffers[b].size, Alignment: 16, TypeBits: g.allTypes()}
}

func (g *GPU) AllocateMemory(size uint64, memoryType uint32) (driver.Memory, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if int(memoryType) >= len(g.opts.MemoryTypes) {
		panic(errors.AssertionFailedf("simdriver: memory type %d out of range", memoryType))
	}
	if g.opts.MemoryBudget > 0 && g.allocated+size > g.opts.MemoryBudget {
		return 0, errors.Wrapf(driver.ErrOutOfDeviceMemory, "allocate %d bytes", size)
	}
	g.allocated += size
	h := driver.Memory(g.acquire(kindMemory))
	g.memories[h] = &memory{data: make([]byte, size), typeIndex: memoryType}
	return h, nil
}

func (g *GPU) FreeMemory(m driver.Memory) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.release(uint64(m), kindMemory)
	g.allocated -= uint64(len(g.memories[m].data))
	delete(g.memories, m)
}

func (g *GPU) BindBufferMemory(b driver.Buffer, m driver.Memory, offset uint64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mustLive(uint64(b), kindBuffer)
	g.mustLive(uint64(m), kindMemory)
	buf, mem := g.buffers[b], g.memories[m]
	if offset+buf.size > uint64(len(mem.data)) {
		panic(errors.AssertionFailedf("simdriver: buffer of %d bytes does not fit memory at offset %d", buf.size, offset))
	}
	buf.mem, buf.off = mem, offset
	return nil
}

func (g *GPU) MapMemory(m driver.Memory, offset, size uint64) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mustLive(uint64(m), kindMemory)
	mem := g.memories[m]
	if g.opts.MemoryTypes[mem.typeIndex].Flags&driver.MemoryHostVisible == 0 {
		return nil, errors.Wrap(driver.ErrMemoryMapFailed, "memory is not host visible")
	}
	if mem.mapped {
		panic(errors.AssertionFailedf("simdriver: memory %d mapped twice", m))
	}
	if size == driver.WholeSize {
		size = uint64(len(mem.data)) - offset
	}
	mem.mapped = true
	return mem.data[offset : offset+size : offset+size], nil
}

func (g *GPU) UnmapMemory(m driver.Memory) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mustLive(uint64(m), kindMemory)
	mem := g.memories[m]
	if !mem.mapped {
		panic(errors.AssertionFailedf("simdriver: memory %d unmapped while not mapped", m))
	}
	mem.mapped = false
}

func (g *GPU) FlushMemory(m driver.Memory, offset, size uint64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mustLive(uint64(m), kindMemory)
	if atom := g.opts.Limits.NonCoherentAtomSize; atom > 1 {
		if offset%atom != 0 || (size != driver.WholeSize && size%atom != 0 && offset+size != uint64(len(g.memories[m].data))) {
			panic(errors.AssertionFailedf("simdriver: flush range [%d,+%d) not aligned to %d", offset, size, atom))
		}
	}
	g.flushes++
	return nil
}

func (g *GPU) InvalidateMemory(m driver.Memory, offset, size uint64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mustLive(uint64(m), kindMemory)
	g.invalidations++
	return nil
}

func (g *GPU) CreateImage(info driver.ImageInfo) (driver.Image, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if info.Width == 0 || info.Height == 0 {
		panic(errors.AssertionFailedf("simdriver: zero sized image"))
	}
	if info.Format.IsDepth() && !g.formatSupportedLocked(info.Format) {
		return 0, errors.Wrapf(driver.ErrFormatNotSupported, "%s", info.Format)
	}
	h := driver.Image(g.acquire(kindImage))
	img := &image{info: info}
	img.data = make([]byte, img.size())
	g.images[h] = img
	return h, nil
}

func (g *GPU) formatSupportedLocked(f driver.Format) bool {
	for _, d := range g.opts.DepthFormats {
		if d == f {
			return true
		}
	}
	return false
}

func (g *GPU) DestroyImage(i driver.Image) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if img, ok := g.images[i]; ok && img.swapchain {
		panic(errors.AssertionFailedf("simdriver: swapchain image %d destroyed directly", i))
	}
	g.release(uint64(i), kindImage)
	delete(g.images, i)
}

func (g *GPU) ImageRequirements(i driver.Image) driver.MemoryRequirements {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mustLive(uint64(i), kindImage)
	return driver.MemoryRequirements{Size: g.images[i].size(), Alignment: 256, TypeBits: g.allTypes()}
}

func (g *GPU) BindImageMemory(i driver.Image, m driver.Memory, offset uint64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mustLive(uint64(i), kindImage)
	g.mustLive(uint64(m), kindMemory)
	g.images[i].mem = g.memories[m]
	return nil
}

func (g *GPU) CreateImageView(info driver.ImageViewInfo) (driver.ImageView, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mustLive(uint64(info.Image), kindImage)
	h := driver.ImageView(g.acquire(kindImageView))
	g.views[h] = info.Image
	return h, nil
}

func (g *GPU) DestroyImageView(v driver.ImageView) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.release(uint64(v), kindImageView)
	delete(g.views, v)
}

func (g *GPU) CreateSampler(info driver.SamplerInfo) (driver.Sampler, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return driver.Sampler(g.acquire(kindSampler)), nil
}

func (g *GPU) DestroySampler(s driver.Sampler) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.release(uint64(s), kindSampler)
}

//Layout returns the layout the image was left in by executed barriers.
func (g *GPU) Layout(i driver.Image) driver.Layout {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mustLive(uint64(i), kindImage)
	return g.images[i].layout
}

//ImageData returns a copy of the image texels.
func (g *GPU) ImageData(i driver.Image) []byte {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mustLive(uint64(i), kindImage)
	return append([]byte(nil), g.images[i].data...)
}

//BufferData returns a copy of the buffer contents.
func (g *GPU) BufferData(b driver.Buffer) []byte {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mustLive(uint64(b), kindBuffer)
	return append([]byte(nil), g.buffers[b].bytes()...)
}
