package scopvk

import (
	"github.com/cockroachdb/errors"

	"github.com/andewx/scopvk/driver"
)

//MemoryKind picks the memory properties a buffer or image is allocated with
type MemoryKind int

const (
	//MemoryDeviceLocal is fastest for the GPU and invisible to the host
	MemoryDeviceLocal MemoryKind = iota
	//MemoryHostVisible is mappable and coherent, writes need no flush
	MemoryHostVisible
	//MemoryHostCached is mappable and possibly non-coherent, Flush and Invalidate apply
	MemoryHostCached
)

func (k MemoryKind) flags() driver.MemoryFlags {
	switch k {
	case MemoryHostVisible:
		return driver.MemoryHostVisible | driver.MemoryHostCoherent
	case MemoryHostCached:
		return driver.MemoryHostVisible | driver.MemoryHostCached
	}
	return driver.MemoryDeviceLocal
}

//BufferInfo describes a buffer of InstanceCount equally sized records. Each
//record starts on a multiple of MinOffsetAlignment.
type BufferInfo struct {
	InstanceSize       uint64
	InstanceCount      int
	Usage              driver.BufferUsage
	Memory             MemoryKind
	MinOffsetAlignment uint64
}

//CoreBuffer is a device buffer bound to its own memory allocation
type CoreBuffer struct {
	device         *CoreDevice
	buffer         driver.Buffer
	memory         driver.Memory
	usage          driver.BufferUsage
	flags          driver.MemoryFlags
	instance_size  uint64
	instance_count uint64
	alignment_size uint64
	size           uint64
	alloc_size     uint64
	mapped         []byte
	destroyed      bool
}

//alignUp rounds size up to a multiple of align, which must be a power of two or zero
func alignUp(size, align uint64) uint64 {
	if align == 0 {
		return size
	}
	return (size + align - 1) &^ (align - 1)
}

//NewCoreBuffer creates the buffer, allocates memory of the requested kind and binds it
func NewCoreBuffer(device *CoreDevice, info BufferInfo) (*CoreBuffer, error) {
	assertf(info.InstanceSize > 0 && info.InstanceCount > 0, "buffer of %d x %d bytes", info.InstanceCount, info.InstanceSize)
	assertf(info.MinOffsetAlignment&(info.MinOffsetAlignment-1) == 0, "alignment %d is not a power of two", info.MinOffsetAlignment)
	b := &CoreBuffer{
		device:         device,
		usage:          info.Usage,
		instance_size:  info.InstanceSize,
		instance_count: uint64(info.InstanceCount),
		alignment_size: alignUp(info.InstanceSize, info.MinOffsetAlignment),
	}
	b.size = b.alignment_size * b.instance_count
	if limit := device.Limits().MaxAllocationSize; limit > 0 && b.size > limit {
		return nil, errors.Wrapf(ErrBufferTooLarge, "%d bytes requested, limit %d", b.size, limit)
	}

	gpu := device.gpu
	buf, err := gpu.CreateBuffer(b.size, info.Usage)
	if err != nil {
		return nil, memoryError(err, "buffer")
	}
	req := gpu.BufferRequirements(buf)
	want := info.Memory.flags()
	index, err := device.FindMemoryType(req.TypeBits, want)
	if err != nil {
		gpu.DestroyBuffer(buf)
		return nil, err
	}
	mem, err := gpu.AllocateMemory(req.Size, index)
	if err != nil {
		gpu.DestroyBuffer(buf)
		return nil, memoryError(err, "buffer memory")
	}
	if err := gpu.BindBufferMemory(buf, mem, 0); err != nil {
		gpu.FreeMemory(mem)
		gpu.DestroyBuffer(buf)
		return nil, errors.Wrap(err, "binding buffer memory")
	}
	b.buffer, b.memory, b.alloc_size = buf, mem, req.Size
	b.flags = device.memory_types[index].Flags
	return b, nil
}

func (b *CoreBuffer) Handle() driver.Buffer           { return b.buffer }
func (b *CoreBuffer) Size() uint64                    { return b.size }
func (b *CoreBuffer) InstanceSize() uint64            { return b.instance_size }
func (b *CoreBuffer) InstanceCount() int              { return int(b.instance_count) }
func (b *CoreBuffer) AlignmentSize() uint64           { return b.alignment_size }
func (b *CoreBuffer) MemoryFlags() driver.MemoryFlags { return b.flags }
func (b *CoreBuffer) IsMapped() bool                  { return b.mapped != nil }

func (b *CoreBuffer) coherent() bool {
	return b.flags&driver.MemoryHostCoherent != 0
}

//Map exposes the whole buffer to the host. Mapping a mapped buffer panics.
func (b *CoreBuffer) Map() error {
	assertf(!b.destroyed, "map of destroyed buffer")
	assertf(b.mapped == nil, "buffer %d mapped twice", b.buffer)
	data, err := b.device.gpu.MapMemory(b.memory, 0, b.size)
	if err != nil {
		return errors.Wrap(err, "mapping buffer")
	}
	b.mapped = data
	return nil
}

//MapPersistent maps a host coherent buffer for the rest of its life. Memory
//that needs explicit flushes is left unmapped and false is returned.
func (b *CoreBuffer) MapPersistent() (bool, error) {
	if !b.coherent() || b.flags&driver.MemoryHostVisible == 0 {
		return false, nil
	}
	if err := b.Map(); err != nil {
		return false, err
	}
	return true, nil
}

//Unmap ends the host mapping. Unmapping an unmapped buffer panics.
func (b *CoreBuffer) Unmap() {
	assertf(b.mapped != nil, "buffer %d unmapped while not mapped", b.buffer)
	b.device.gpu.UnmapMemory(b.memory)
	b.mapped = nil
}

//WriteAt copies data into the mapped buffer at offset
func (b *CoreBuffer) WriteAt(offset uint64, data []byte) {
	assertf(b.mapped != nil, "write to buffer %d while not mapped", b.buffer)
	assertf(offset+uint64(len(data)) <= b.size, "write of %d bytes at %d overruns buffer of %d", len(data), offset, b.size)
	copy(b.mapped[offset:], data)
}

//WriteIndex copies data into record i
func (b *CoreBuffer) WriteIndex(i int, data []byte) {
	assertf(uint64(len(data)) <= b.instance_size, "record of %d bytes exceeds instance size %d", len(data), b.instance_size)
	b.WriteAt(uint64(i)*b.alignment_size, data)
}

//ReadAt copies n bytes at offset out of the mapped buffer
func (b *CoreBuffer) ReadAt(offset, n uint64) []byte {
	assertf(b.mapped != nil, "read from buffer %d while not mapped", b.buffer)
	assertf(offset+n <= b.size, "read of %d bytes at %d overruns buffer of %d", n, offset, b.size)
	out := make([]byte, n)
	copy(out, b.mapped[offset:offset+n])
	return out
}

//atomRange widens [offset, offset+size) to the non-coherent atom size
func (b *CoreBuffer) atomRange(offset, size uint64) (uint64, uint64) {
	atom := b.device.Limits().NonCoherentAtomSize
	if atom <= 1 {
		return offset, size
	}
	start := offset &^ (atom - 1)
	end := alignUp(offset+size, atom)
	if end > b.alloc_size {
		end = b.alloc_size
	}
	return start, end - start
}

//Flush makes host writes in range visible to the device. Coherent memory needs nothing.
func (b *CoreBuffer) Flush(offset, size uint64) error {
	if b.coherent() {
		return nil
	}
	if size == driver.WholeSize {
		size = b.size - offset
	}
	off, n := b.atomRange(offset, size)
	return errors.Wrap(b.device.gpu.FlushMemory(b.memory, off, n), "flushing buffer")
}

//FlushIndex flushes record i
func (b *CoreBuffer) FlushIndex(i int) error {
	return b.Flush(uint64(i)*b.alignment_size, b.alignment_size)
}

//Invalidate makes device writes in range visible to the host
func (b *CoreBuffer) Invalidate(offset, size uint64) error {
	if b.coherent() {
		return nil
	}
	if size == driver.WholeSize {
		size = b.size - offset
	}
	off, n := b.atomRange(offset, size)
	return errors.Wrap(b.device.gpu.InvalidateMemory(b.memory, off, n), "invalidating buffer")
}

//DescriptorInfo describes record 0 for a descriptor write
func (b *CoreBuffer) DescriptorInfo() driver.DescriptorBufferInfo {
	return b.DescriptorInfoAt(0)
}

//DescriptorInfoAt describes record i for a descriptor write
func (b *CoreBuffer) DescriptorInfoAt(i int) driver.DescriptorBufferInfo {
	return driver.DescriptorBufferInfo{Buffer: b.buffer, Offset: uint64(i) * b.alignment_size, Range: b.instance_size}
}

//CopyToBuffer copies size bytes into dst with a blocking one-shot submission
func (b *CoreBuffer) CopyToBuffer(pool *CorePool, dst *CoreBuffer, size uint64) error {
	assertf(size <= b.size && size <= dst.size, "copy of %d bytes between buffers of %d and %d", size, b.size, dst.size)
	return pool.SingleTime(func(cb *CommandBuffer) error {
		cb.CopyBuffer(b.buffer, dst.buffer, driver.BufferCopy{Size: size})
		return nil
	})
}

//CopyToImage fills dst from the start of the buffer. dst must be in TransferDst layout.
func (b *CoreBuffer) CopyToImage(pool *CorePool, dst *CoreImage) error {
	assertf(dst.layout == driver.LayoutTransferDst, "copy into image in %s layout", dst.layout)
	assertf(b.size >= dst.ByteSize(), "buffer of %d bytes cannot fill image of %d", b.size, dst.ByteSize())
	return pool.SingleTime(func(cb *CommandBuffer) error {
		cb.CopyBufferToImage(b.buffer, dst.image, driver.LayoutTransferDst, driver.BufferImageCopy{
			Aspect: dst.aspect, Width: dst.width, Height: dst.height,
		})
		return nil
	})
}

//NewStagingBuffer creates a mapped-ready host visible transfer source holding data
func NewStagingBuffer(device *CoreDevice, data []byte) (*CoreBuffer, error) {
	staging, err := NewCoreBuffer(device, BufferInfo{
		InstanceSize:  uint64(len(data)),
		InstanceCount: 1,
		Usage:         driver.BufferTransferSrc,
		Memory:        MemoryHostVisible,
	})
	if err != nil {
		return nil, errors.Wrap(err, "staging buffer")
	}
	if err := staging.Map(); err != nil {
		staging.Destroy()
		return nil, err
	}
	staging.WriteAt(0, data)
	staging.Unmap()
	return staging, nil
}

//UploadBuffer stages data into a new device local buffer with the given usage
func UploadBuffer(device *CoreDevice, pool *CorePool, data []byte, usage driver.BufferUsage) (*CoreBuffer, error) {
	staging, err := NewStagingBuffer(device, data)
	if err != nil {
		return nil, err
	}
	defer staging.Destroy()
	dst, err := NewCoreBuffer(device, BufferInfo{
		InstanceSize:  uint64(len(data)),
		InstanceCount: 1,
		Usage:         usage | driver.BufferTransferDst,
		Memory:        MemoryDeviceLocal,
	})
	if err != nil {
		return nil, err
	}
	if err := staging.CopyToBuffer(pool, dst, uint64(len(data))); err != nil {
		dst.Destroy()
		return nil, err
	}
	return dst, nil
}

//DownloadBuffer reads a device buffer back through a staging buffer. src
//must have been created with BufferTransferSrc usage.
func DownloadBuffer(pool *CorePool, src *CoreBuffer) ([]byte, error) {
	assertf(src.usage&driver.BufferTransferSrc != 0, "download from buffer %d without transfer source usage", src.buffer)
	staging, err := NewCoreBuffer(src.device, BufferInfo{
		InstanceSize:  src.size,
		InstanceCount: 1,
		Usage:         driver.BufferTransferDst,
		Memory:        MemoryHostVisible,
	})
	if err != nil {
		return nil, errors.Wrap(err, "readback buffer")
	}
	defer staging.Destroy()
	if err := src.CopyToBuffer(pool, staging, src.size); err != nil {
		return nil, err
	}
	if err := staging.Map(); err != nil {
		return nil, err
	}
	defer staging.Unmap()
	if err := staging.Invalidate(0, driver.WholeSize); err != nil {
		return nil, err
	}
	return staging.ReadAt(0, src.size), nil
}

//Destroy releases the buffer and its memory, unmapping first when mapped
func (b *CoreBuffer) Destroy() {
	assertf(!b.destroyed, "buffer destroyed twice")
	if b.mapped != nil {
		b.Unmap()
	}
	b.device.gpu.DestroyBuffer(b.buffer)
	b.device.gpu.FreeMemory(b.memory)
	b.destroyed = true
}
