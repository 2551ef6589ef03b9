package vkdriver

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/scopvk/driver"
)

type memory struct {
	mem    vk.DeviceMemory
	size   uint64
	mapped bool
}

type image struct {
	img vk.Image
	//swapchain images belong to their swapchain and are never destroyed here
	owner driver.Swapchain
}

func (g *GPU) CreateBuffer(size uint64, usage driver.BufferUsage) (driver.Buffer, error) {
	var buffer vk.Buffer
	ret := vk.CreateBuffer(g.device, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       toBufferUsage(usage),
		SharingMode: vk.SharingModeExclusive,
	}, nil, &buffer)
	if err := newError(ret, "creating buffer"); err != nil {
		return 0, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return driver.Buffer(g.buffers.put(buffer)), nil
}

func (g *GPU) DestroyBuffer(b driver.Buffer) {
	g.mu.Lock()
	buffer := g.buffers.take(uint64(b))
	g.mu.Unlock()
	vk.DestroyBuffer(g.device, buffer, nil)
}

func (g *GPU) buffer(b driver.Buffer) vk.Buffer {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.buffers.get(uint64(b))
}

func (g *GPU) BufferRequirements(b driver.Buffer) driver.MemoryRequirements {
	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(g.device, g.buffer(b), &reqs)
	reqs.Deref()
	return driver.MemoryRequirements{
		Size:      uint64(reqs.Size),
		Alignment: uint64(reqs.Alignment),
		TypeBits:  reqs.MemoryTypeBits,
	}
}

func (g *GPU) AllocateMemory(size uint64, memoryType uint32) (driver.Memory, error) {
	var mem vk.DeviceMemory
	ret := vk.AllocateMemory(g.device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  vk.DeviceSize(size),
		MemoryTypeIndex: memoryType,
	}, nil, &mem)
	if err := newError(ret, "allocating memory"); err != nil {
		return 0, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return driver.Memory(g.memories.put(&memory{mem: mem, size: size})), nil
}

func (g *GPU) FreeMemory(m driver.Memory) {
	g.mu.Lock()
	entry := g.memories.take(uint64(m))
	g.mu.Unlock()
	if entry.mapped {
		vk.UnmapMemory(g.device, entry.mem)
	}
	vk.FreeMemory(g.device, entry.mem, nil)
}

func (g *GPU) memory(m driver.Memory) *memory {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.memories.get(uint64(m))
}

func (g *GPU) BindBufferMemory(b driver.Buffer, m driver.Memory, offset uint64) error {
	ret := vk.BindBufferMemory(g.device, g.buffer(b), g.memory(m).mem, vk.DeviceSize(offset))
	return newError(ret, "binding buffer memory")
}

func (g *GPU) MapMemory(m driver.Memory, offset, size uint64) ([]byte, error) {
	entry := g.memory(m)
	if entry.mapped {
		return nil, errors.Wrap(driver.ErrMemoryMapFailed, "vkdriver: memory is already mapped")
	}
	if size == driver.WholeSize {
		size = entry.size - offset
	}
	var data unsafe.Pointer
	ret := vk.MapMemory(g.device, entry.mem, vk.DeviceSize(offset), vk.DeviceSize(size), 0, &data)
	if err := newError(ret, "mapping memory"); err != nil {
		return nil, err
	}
	entry.mapped = true
	return unsafe.Slice((*byte)(data), size), nil
}

func (g *GPU) UnmapMemory(m driver.Memory) {
	entry := g.memory(m)
	if entry.mapped {
		vk.UnmapMemory(g.device, entry.mem)
		entry.mapped = false
	}
}

func (g *GPU) mappedRange(m driver.Memory, offset, size uint64) []vk.MappedMemoryRange {
	return []vk.MappedMemoryRange{{
		SType:  vk.StructureTypeMappedMemoryRange,
		Memory: g.memory(m).mem,
		Offset: vk.DeviceSize(offset),
		Size:   vk.DeviceSize(size),
	}}
}

func (g *GPU) FlushMemory(m driver.Memory, offset, size uint64) error {
	ret := vk.FlushMappedMemoryRanges(g.device, 1, g.mappedRange(m, offset, size))
	return newError(ret, "flushing mapped memory")
}

func (g *GPU) InvalidateMemory(m driver.Memory, offset, size uint64) error {
	ret := vk.InvalidateMappedMemoryRanges(g.device, 1, g.mappedRange(m, offset, size))
	return newError(ret, "invalidating mapped memory")
}

func (g *GPU) CreateImage(info driver.ImageInfo) (driver.Image, error) {
	mips, layers := info.MipLevels, info.ArrayLayers
	if mips == 0 {
		mips = 1
	}
	if layers == 0 {
		layers = 1
	}
	var img vk.Image
	ret := vk.CreateImage(g.device, &vk.ImageCreateInfo{
		SType:         vk.StructureTypeImageCreateInfo,
		ImageType:     vk.ImageType2d,
		Format:        toFormat(info.Format),
		Extent:        vk.Extent3D{Width: info.Width, Height: info.Height, Depth: 1},
		MipLevels:     mips,
		ArrayLayers:   layers,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         toImageUsage(info.Usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}, nil, &img)
	if err := newError(ret, "creating image"); err != nil {
		return 0, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return driver.Image(g.images.put(&image{img: img})), nil
}

func (g *GPU) DestroyImage(i driver.Image) {
	g.mu.Lock()
	entry := g.images.get(uint64(i))
	if entry.owner != 0 {
		g.mu.Unlock()
		panic(errors.AssertionFailedf("vkdriver: image %d belongs to swapchain %d", i, entry.owner))
	}
	g.images.take(uint64(i))
	g.mu.Unlock()
	vk.DestroyImage(g.device, entry.img, nil)
}

func (g *GPU) image(i driver.Image) vk.Image {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.images.get(uint64(i)).img
}

func (g *GPU) ImageRequirements(i driver.Image) driver.MemoryRequirements {
	var reqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(g.device, g.image(i), &reqs)
	reqs.Deref()
	return driver.MemoryRequirements{
		Size:      uint64(reqs.Size),
		Alignment: uint64(reqs.Alignment),
		TypeBits:  reqs.MemoryTypeBits,
	}
}

func (g *GPU) BindImageMemory(i driver.Image, m driver.Memory, offset uint64) error {
	ret := vk.BindImageMemory(g.device, g.image(i), g.memory(m).mem, vk.DeviceSize(offset))
	return newError(ret, "binding image memory")
}

func (g *GPU) CreateImageView(info driver.ImageViewInfo) (driver.ImageView, error) {
	var view vk.ImageView
	ret := vk.CreateImageView(g.device, &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    g.image(info.Image),
		ViewType: vk.ImageViewType2d,
		Format:   toFormat(info.Format),
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: toAspect(info.Aspect),
			LevelCount: 1,
			LayerCount: 1,
		},
	}, nil, &view)
	if err := newError(ret, "creating image view"); err != nil {
		return 0, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return driver.ImageView(g.views.put(view)), nil
}

func (g *GPU) DestroyImageView(v driver.ImageView) {
	g.mu.Lock()
	view := g.views.take(uint64(v))
	g.mu.Unlock()
	vk.DestroyImageView(g.device, view, nil)
}

func (g *GPU) view(v driver.ImageView) vk.ImageView {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.views.get(uint64(v))
}

func (g *GPU) CreateSampler(info driver.SamplerInfo) (driver.Sampler, error) {
	mode := toAddressMode(info.AddressMode)
	anisotropy := g.anisotropy && info.MaxAnisotropy > 1
	var sampler vk.Sampler
	ret := vk.CreateSampler(g.device, &vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               toFilter(info.MagFilter),
		MinFilter:               toFilter(info.MinFilter),
		AddressModeU:            mode,
		AddressModeV:            mode,
		AddressModeW:            mode,
		AnisotropyEnable:        toBool(anisotropy),
		MaxAnisotropy:           info.MaxAnisotropy,
		UnnormalizedCoordinates: vk.False,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		MipmapMode:              vk.SamplerMipmapModeLinear,
		BorderColor:             vk.BorderColorIntOpaqueBlack,
	}, nil, &sampler)
	if err := newError(ret, "creating sampler"); err != nil {
		return 0, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return driver.Sampler(g.samplers.put(sampler)), nil
}

func (g *GPU) DestroySampler(s driver.Sampler) {
	g.mu.Lock()
	sampler := g.samplers.take(uint64(s))
	g.mu.Unlock()
	vk.DestroySampler(g.device, sampler, nil)
}
