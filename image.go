package scopvk

import (
	"github.com/cockroachdb/errors"

	"github.com/andewx/scopvk/driver"
)

//layoutTransition holds the access masks and stages of one supported layout change
type layoutTransition struct {
	src_access driver.Access
	dst_access driver.Access
	src_stage  driver.PipelineStage
	dst_stage  driver.PipelineStage
}

type layoutPair struct {
	from, to driver.Layout
}

//Supported transitions. Anything missing is rejected before a barrier is recorded.
var layoutTransitions = map[layoutPair]layoutTransition{
	{driver.LayoutUndefined, driver.LayoutTransferDst}: {
		src_access: driver.AccessNone, dst_access: driver.AccessTransferWrite,
		src_stage: driver.StageTopOfPipe, dst_stage: driver.StageTransfer,
	},
	{driver.LayoutTransferDst, driver.LayoutShaderReadOnly}: {
		src_access: driver.AccessTransferWrite, dst_access: driver.AccessShaderRead,
		src_stage: driver.StageTransfer, dst_stage: driver.StageFragmentShader,
	},
	{driver.LayoutUndefined, driver.LayoutDepthStencilAttachment}: {
		src_access: driver.AccessNone, dst_access: driver.AccessDepthStencilRead | driver.AccessDepthStencilWrite,
		src_stage: driver.StageTopOfPipe, dst_stage: driver.StageEarlyFragmentTests,
	},
	{driver.LayoutTransferDst, driver.LayoutTransferSrc}: {
		src_access: driver.AccessTransferWrite, dst_access: driver.AccessTransferRead,
		src_stage: driver.StageTransfer, dst_stage: driver.StageTransfer,
	},
	{driver.LayoutShaderReadOnly, driver.LayoutTransferSrc}: {
		src_access: driver.AccessShaderRead, dst_access: driver.AccessTransferRead,
		src_stage: driver.StageFragmentShader, dst_stage: driver.StageTransfer,
	},
	{driver.LayoutTransferSrc, driver.LayoutShaderReadOnly}: {
		src_access: driver.AccessTransferRead, dst_access: driver.AccessShaderRead,
		src_stage: driver.StageTransfer, dst_stage: driver.StageFragmentShader,
	},
}

//ImageInfo describes a 2D image with one mip level and one layer
type ImageInfo struct {
	Format driver.Format
	Width  uint32
	Height uint32
	Usage  driver.ImageUsage
	Memory MemoryKind
}

//CoreImage is a 2D image bound to its own memory with an explicitly tracked layout.
//The tracked layout changes only through ChangeLayout and RecordLayoutChange.
type CoreImage struct {
	device    *CoreDevice
	image     driver.Image
	memory    driver.Memory
	view      driver.ImageView
	format    driver.Format
	aspect    driver.Aspect
	width     uint32
	height    uint32
	layout    driver.Layout
	destroyed bool
}

//NewCoreImage creates the image in Undefined layout, binds memory and creates a full view
func NewCoreImage(device *CoreDevice, info ImageInfo) (*CoreImage, error) {
	gpu := device.gpu
	img, err := gpu.CreateImage(driver.ImageInfo{
		Format: info.Format, Width: info.Width, Height: info.Height,
		MipLevels: 1, ArrayLayers: 1, Usage: info.Usage,
	})
	if err != nil {
		return nil, memoryError(err, "image")
	}
	req := gpu.ImageRequirements(img)
	index, err := device.FindMemoryType(req.TypeBits, info.Memory.flags())
	if err != nil {
		gpu.DestroyImage(img)
		return nil, err
	}
	mem, err := gpu.AllocateMemory(req.Size, index)
	if err != nil {
		gpu.DestroyImage(img)
		return nil, memoryError(err, "image memory")
	}
	if err := gpu.BindImageMemory(img, mem, 0); err != nil {
		gpu.FreeMemory(mem)
		gpu.DestroyImage(img)
		return nil, errors.Wrap(err, "binding image memory")
	}
	core := &CoreImage{
		device: device, image: img, memory: mem, format: info.Format,
		width: info.Width, height: info.Height, layout: driver.LayoutUndefined,
		aspect: aspectOf(info.Format),
	}
	view, err := gpu.CreateImageView(driver.ImageViewInfo{Image: img, Format: info.Format, Aspect: core.aspect})
	if err != nil {
		gpu.FreeMemory(mem)
		gpu.DestroyImage(img)
		return nil, errors.Wrap(err, "creating image view")
	}
	core.view = view
	return core, nil
}

func aspectOf(f driver.Format) driver.Aspect {
	if !f.IsDepth() {
		return driver.AspectColor
	}
	if f.HasStencil() {
		return driver.AspectDepth | driver.AspectStencil
	}
	return driver.AspectDepth
}

func (i *CoreImage) Handle() driver.Image   { return i.image }
func (i *CoreImage) View() driver.ImageView { return i.view }
func (i *CoreImage) Format() driver.Format  { return i.format }
func (i *CoreImage) Layout() driver.Layout  { return i.layout }
func (i *CoreImage) Extent() driver.Extent  { return driver.Extent{Width: i.width, Height: i.height} }
func (i *CoreImage) ByteSize() uint64 {
	return uint64(i.width) * uint64(i.height) * uint64(i.format.Size())
}

//barrierFor looks up the transition from the current layout. An unsupported
//pair returns ErrUnsupportedLayoutTransition and leaves the image untouched.
func (i *CoreImage) barrierFor(to driver.Layout) (driver.ImageBarrier, layoutTransition, error) {
	t, ok := layoutTransitions[layoutPair{i.layout, to}]
	if !ok {
		return driver.ImageBarrier{}, t, errors.Wrapf(ErrUnsupportedLayoutTransition, "%s -> %s", i.layout, to)
	}
	return driver.ImageBarrier{
		Image: i.image, OldLayout: i.layout, NewLayout: to,
		SrcAccess: t.src_access, DstAccess: t.dst_access,
		Aspect: i.aspect, MipLevels: 1, Layers: 1,
	}, t, nil
}

//RecordLayoutChange records the barrier into cb and updates the tracked layout
func (i *CoreImage) RecordLayoutChange(cb *CommandBuffer, to driver.Layout) error {
	barrier, t, err := i.barrierFor(to)
	if err != nil {
		return err
	}
	cb.Barrier(t.src_stage, t.dst_stage, barrier)
	i.layout = to
	return nil
}

//ChangeLayout transitions the image with a blocking one-shot submission
func (i *CoreImage) ChangeLayout(pool *CorePool, to driver.Layout) error {
	if _, _, err := i.barrierFor(to); err != nil {
		return err
	}
	return pool.SingleTime(func(cb *CommandBuffer) error {
		return i.RecordLayoutChange(cb, to)
	})
}

//DownloadImage reads the texels back through a staging buffer. The image is
//returned to ShaderReadOnly layout afterwards.
func (i *CoreImage) DownloadImage(pool *CorePool) ([]byte, error) {
	staging, err := NewCoreBuffer(i.device, BufferInfo{
		InstanceSize: i.ByteSize(), InstanceCount: 1,
		Usage: driver.BufferTransferDst, Memory: MemoryHostVisible,
	})
	if err != nil {
		return nil, errors.Wrap(err, "readback buffer")
	}
	defer staging.Destroy()
	err = pool.SingleTime(func(cb *CommandBuffer) error {
		if err := i.RecordLayoutChange(cb, driver.LayoutTransferSrc); err != nil {
			return err
		}
		cb.CopyImageToBuffer(i.image, driver.LayoutTransferSrc, staging.buffer, driver.BufferImageCopy{
			Aspect: i.aspect, Width: i.width, Height: i.height,
		})
		return i.RecordLayoutChange(cb, driver.LayoutShaderReadOnly)
	})
	if err != nil {
		return nil, err
	}
	if err := staging.Map(); err != nil {
		return nil, err
	}
	defer staging.Unmap()
	return staging.ReadAt(0, i.ByteSize()), nil
}

//NewTextureImage uploads tightly packed pixels into a sampled device local image:
//staging buffer, Undefined -> TransferDst, copy, TransferDst -> ShaderReadOnly,
//staging released.
func NewTextureImage(device *CoreDevice, pool *CorePool, pixels []byte, width, height uint32, format driver.Format) (*CoreImage, error) {
	want := uint64(width) * uint64(height) * uint64(format.Size())
	if uint64(len(pixels)) != want {
		return nil, errors.Newf("texture: %d bytes of pixels for %dx%d %s, want %d", len(pixels), width, height, format, want)
	}
	staging, err := NewStagingBuffer(device, pixels)
	if err != nil {
		return nil, err
	}
	defer staging.Destroy()

	img, err := NewCoreImage(device, ImageInfo{
		Format: format, Width: width, Height: height,
		Usage:  driver.ImageTransferDst | driver.ImageTransferSrc | driver.ImageSampled,
		Memory: MemoryDeviceLocal,
	})
	if err != nil {
		return nil, err
	}
	if err := img.ChangeLayout(pool, driver.LayoutTransferDst); err != nil {
		img.Destroy()
		return nil, err
	}
	if err := staging.CopyToImage(pool, img); err != nil {
		img.Destroy()
		return nil, err
	}
	if err := img.ChangeLayout(pool, driver.LayoutShaderReadOnly); err != nil {
		img.Destroy()
		return nil, err
	}
	return img, nil
}

//NewDepthImage creates a depth attachment and moves it to DepthStencilAttachment layout
func NewDepthImage(device *CoreDevice, pool *CorePool, format driver.Format, extent driver.Extent) (*CoreImage, error) {
	img, err := NewCoreImage(device, ImageInfo{
		Format: format, Width: extent.Width, Height: extent.Height,
		Usage: driver.ImageDepthStencilAttachment, Memory: MemoryDeviceLocal,
	})
	if err != nil {
		return nil, err
	}
	if err := img.ChangeLayout(pool, driver.LayoutDepthStencilAttachment); err != nil {
		img.Destroy()
		return nil, err
	}
	return img, nil
}

//Destroy releases the view, the image and its memory
func (i *CoreImage) Destroy() {
	assertf(!i.destroyed, "image destroyed twice")
	gpu := i.device.gpu
	gpu.DestroyImageView(i.view)
	gpu.DestroyImage(i.image)
	gpu.FreeMemory(i.memory)
	i.destroyed = true
}
