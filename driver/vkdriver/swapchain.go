package vkdriver

import (
	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/scopvk/driver"
)

type swapchain struct {
	sc     vk.Swapchain
	images []driver.Image
}

func (g *GPU) SurfaceCapabilities() (driver.SurfaceCapabilities, error) {
	var caps vk.SurfaceCapabilities
	ret := vk.GetPhysicalDeviceSurfaceCapabilities(g.gpu, g.surface, &caps)
	if err := newError(ret, "querying surface capabilities"); err != nil {
		return driver.SurfaceCapabilities{}, err
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()
	return driver.SurfaceCapabilities{
		MinImageCount: caps.MinImageCount,
		MaxImageCount: caps.MaxImageCount,
		CurrentExtent: fromExtent(caps.CurrentExtent),
		MinExtent:     fromExtent(caps.MinImageExtent),
		MaxExtent:     fromExtent(caps.MaxImageExtent),
	}, nil
}

//SurfaceFormats drops formats the core has no name for. A single undefined
//entry means the surface takes anything and is reported as BGRA8 sRGB.
func (g *GPU) SurfaceFormats() ([]driver.SurfaceFormat, error) {
	var count uint32
	ret := vk.GetPhysicalDeviceSurfaceFormats(g.gpu, g.surface, &count, nil)
	if err := newError(ret, "querying surface formats"); err != nil {
		return nil, err
	}
	list := make([]vk.SurfaceFormat, count)
	ret = vk.GetPhysicalDeviceSurfaceFormats(g.gpu, g.surface, &count, list)
	if err := newError(ret, "querying surface formats"); err != nil {
		return nil, err
	}
	var out []driver.SurfaceFormat
	for i := range list {
		list[i].Deref()
		if list[i].ColorSpace != vk.ColorSpaceSrgbNonlinear {
			continue
		}
		if count == 1 && list[i].Format == vk.FormatUndefined {
			return []driver.SurfaceFormat{{Format: driver.FormatBGRA8SRGB, ColorSpace: driver.ColorSpaceSRGBNonlinear}}, nil
		}
		if f := fromFormat(list[i].Format); f != driver.FormatUndefined && !f.IsDepth() {
			out = append(out, driver.SurfaceFormat{Format: f, ColorSpace: driver.ColorSpaceSRGBNonlinear})
		}
	}
	return out, nil
}

func (g *GPU) presentModes() []vk.PresentMode {
	var count uint32
	if isError(vk.GetPhysicalDeviceSurfacePresentModes(g.gpu, g.surface, &count, nil)) {
		return nil
	}
	modes := make([]vk.PresentMode, count)
	if isError(vk.GetPhysicalDeviceSurfacePresentModes(g.gpu, g.surface, &count, modes)) {
		return nil
	}
	return modes[:count]
}

//CreateSwapchain falls back to FIFO, which every surface supports, when the
//requested mode is missing.
func (g *GPU) CreateSwapchain(info driver.SwapchainInfo) (driver.Swapchain, error) {
	mode := vk.PresentModeFifo
	want := toPresentMode(info.PresentMode)
	for _, m := range g.presentModes() {
		if m == want {
			mode = want
			break
		}
	}
	if mode != want {
		g.log.Warn("present mode unavailable, using fifo", "requested", info.PresentMode.String())
	}

	var old vk.Swapchain = vk.NullSwapchain
	g.mu.Lock()
	if info.Old != 0 {
		old = g.swapchains.get(uint64(info.Old)).sc
	}
	g.mu.Unlock()

	var sc vk.Swapchain
	ret := vk.CreateSwapchain(g.device, &vk.SwapchainCreateInfo{
		SType:                 vk.StructureTypeSwapchainCreateInfo,
		Surface:               g.surface,
		MinImageCount:         info.MinImageCount,
		ImageFormat:           toFormat(info.Format.Format),
		ImageColorSpace:       vk.ColorSpaceSrgbNonlinear,
		ImageExtent:           toExtent(info.Extent),
		ImageArrayLayers:      1,
		ImageUsage:            vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransferSrcBit),
		ImageSharingMode:      vk.SharingModeExclusive,
		PreTransform:          vk.SurfaceTransformIdentityBit,
		CompositeAlpha:        vk.CompositeAlphaOpaqueBit,
		PresentMode:           mode,
		Clipped:               vk.True,
		OldSwapchain:          old,
	}, nil, &sc)
	if err := newError(ret, "creating swapchain"); err != nil {
		return 0, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return driver.Swapchain(g.swapchains.put(&swapchain{sc: sc})), nil
}

//DestroySwapchain also forgets the handles of its images
func (g *GPU) DestroySwapchain(s driver.Swapchain) {
	g.mu.Lock()
	entry := g.swapchains.take(uint64(s))
	for _, img := range entry.images {
		g.images.take(uint64(img))
	}
	g.mu.Unlock()
	vk.DestroySwapchain(g.device, entry.sc, nil)
}

//SwapchainImages returns the same handles on every call for a swapchain
func (g *GPU) SwapchainImages(s driver.Swapchain) ([]driver.Image, error) {
	g.mu.Lock()
	entry := g.swapchains.get(uint64(s))
	g.mu.Unlock()
	if entry.images != nil {
		return append([]driver.Image(nil), entry.images...), nil
	}

	var count uint32
	ret := vk.GetSwapchainImages(g.device, entry.sc, &count, nil)
	if err := newError(ret, "querying swapchain images"); err != nil {
		return nil, err
	}
	list := make([]vk.Image, count)
	ret = vk.GetSwapchainImages(g.device, entry.sc, &count, list)
	if err := newError(ret, "querying swapchain images"); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	entry.images = make([]driver.Image, count)
	for i := range entry.images {
		entry.images[i] = driver.Image(g.images.put(&image{img: list[i], owner: s}))
	}
	return append([]driver.Image(nil), entry.images...), nil
}

//AcquireNextImage returns the index with a wrapped driver.ErrSuboptimal when
//the image is usable but the swapchain no longer matches the surface.
func (g *GPU) AcquireNextImage(s driver.Swapchain, timeout uint64, sem driver.Semaphore) (uint32, error) {
	g.mu.Lock()
	sc := g.swapchains.get(uint64(s)).sc
	var semaphore vk.Semaphore = vk.NullSemaphore
	if sem != 0 {
		semaphore = g.semaphores.get(uint64(sem))
	}
	g.mu.Unlock()
	var index uint32
	ret := vk.AcquireNextImage(g.device, sc, timeout, semaphore, vk.NullFence, &index)
	return index, newError(ret, "acquiring swapchain image")
}

func (g *GPU) QueuePresent(q driver.Queue, s driver.Swapchain, index uint32, wait []driver.Semaphore) error {
	g.mu.Lock()
	sc := g.swapchains.get(uint64(s)).sc
	sems := make([]vk.Semaphore, len(wait))
	for i, w := range wait {
		sems[i] = g.semaphores.get(uint64(w))
	}
	queue := g.queues.get(uint64(q))
	g.mu.Unlock()
	ret := vk.QueuePresent(queue, &vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: uint32(len(sems)),
		PWaitSemaphores:    sems,
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{sc},
		PImageIndices:      []uint32{index},
	})
	return newError(ret, "presenting")
}
