package simdriver

import (
	"github.com/cockroachdb/errors"

	"github.com/andewx/scopvk/driver"
)

type swapchain struct {
	images   []driver.Image
	acquired []bool
	next     uint32
	info     driver.SwapchainInfo
	//limit is how many images the application may hold at once
	limit int
}

func (sc *swapchain) outstanding() int {
	n := 0
	for _, a := range sc.acquired {
		if a {
			n++
		}
	}
	return n
}

//Present records one QueuePresent call.
type Present struct {
	Swapchain driver.Swapchain
	Index     uint32
}

func (g *GPU) SurfaceCapabilities() (driver.SurfaceCapabilities, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.surface, nil
}

func (g *GPU) SurfaceFormats() ([]driver.SurfaceFormat, error) {
	return append([]driver.SurfaceFormat(nil), g.opts.SurfaceFormats...), nil
}

func (g *GPU) CreateSwapchain(info driver.SwapchainInfo) (driver.Swapchain, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if info.Old != 0 {
		g.mustLive(uint64(info.Old), kindSwapchain)
	}
	n := info.MinImageCount
	if n < g.surface.MinImageCount {
		panic(errors.AssertionFailedf("simdriver: %d swapchain images below surface minimum %d", n, g.surface.MinImageCount))
	}
	if g.surface.MaxImageCount > 0 && n > g.surface.MaxImageCount {
		panic(errors.AssertionFailedf("simdriver: %d swapchain images above surface maximum %d", n, g.surface.MaxImageCount))
	}
	sc := &swapchain{info: info, acquired: make([]bool, n), limit: int(n-g.surface.MinImageCount) + 1}
	for i := uint32(0); i < n; i++ {
		h := driver.Image(g.acquire(kindImage))
		img := &image{
			info: driver.ImageInfo{
				Format: info.Format.Format, Width: info.Extent.Width, Height: info.Extent.Height,
				MipLevels: 1, ArrayLayers: 1, Usage: driver.ImageColorAttachment,
			},
			swapchain: true,
		}
		g.images[h] = img
		sc.images = append(sc.images, h)
	}
	g.outOfDate = false
	h := driver.Swapchain(g.acquire(kindSwapchain))
	g.swapchains[h] = sc
	return h, nil
}

func (g *GPU) DestroySwapchain(h driver.Swapchain) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.release(uint64(h), kindSwapchain)
	for _, img := range g.swapchains[h].images {
		g.release(uint64(img), kindImage)
		delete(g.images, img)
	}
	delete(g.swapchains, h)
}

func (g *GPU) SwapchainImages(h driver.Swapchain) ([]driver.Image, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mustLive(uint64(h), kindSwapchain)
	return append([]driver.Image(nil), g.swapchains[h].images...), nil
}

func (g *GPU) AcquireNextImage(h driver.Swapchain, timeout uint64, sem driver.Semaphore) (uint32, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mustLive(uint64(h), kindSwapchain)
	if g.outOfDate {
		return 0, errors.Wrap(driver.ErrOutOfDate, "acquire")
	}
	sc := g.swapchains[h]
	if held := sc.outstanding(); held >= sc.limit {
		if timeout == driver.Infinite {
			panic(errors.AssertionFailedf("simdriver: acquire with %d of %d images held would never return", held, len(sc.images)))
		}
		return 0, errors.Wrap(driver.ErrTimeout, "acquire")
	}
	for sc.acquired[sc.next] {
		sc.next = (sc.next + 1) % uint32(len(sc.images))
	}
	idx := sc.next
	sc.acquired[idx] = true
	sc.next = (sc.next + 1) % uint32(len(sc.images))
	g.signalSemaphore(sem)
	if g.suboptimal {
		return idx, errors.Wrap(driver.ErrSuboptimal, "acquire")
	}
	return idx, nil
}

func (g *GPU) QueuePresent(q driver.Queue, h driver.Swapchain, index uint32, wait []driver.Semaphore) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mustLive(uint64(h), kindSwapchain)
	sc := g.swapchains[h]
	if int(index) >= len(sc.images) || !sc.acquired[index] {
		panic(errors.AssertionFailedf("simdriver: present of image %d that was not acquired", index))
	}
	sc.acquired[index] = false
	for _, s := range wait {
		g.mustLive(uint64(s), kindSemaphore)
		if !g.semaphores[s].signaled {
			panic(errors.AssertionFailedf("simdriver: present waits on semaphore %d that has no pending signal", s))
		}
		g.semaphores[s].signaled = false
	}
	if g.outOfDate {
		return errors.Wrap(driver.ErrOutOfDate, "present")
	}
	g.presents = append(g.presents, Present{Swapchain: h, Index: index})
	if g.suboptimal {
		return errors.Wrap(driver.ErrSuboptimal, "present")
	}
	return nil
}

//Acquired returns how many images of the swapchain are acquired and not
//yet presented.
func (g *GPU) Acquired(h driver.Swapchain) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mustLive(uint64(h), kindSwapchain)
	return g.swapchains[h].outstanding()
}

//Presents returns every successful present, oldest first.
func (g *GPU) Presents() []Present {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Present(nil), g.presents...)
}

//ResizeSurface changes the surface extent and invalidates the swapchain.
func (g *GPU) ResizeSurface(width, height uint32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.surface.CurrentExtent = driver.Extent{Width: width, Height: height}
	g.outOfDate = true
}

//InvalidateSurface makes acquire and present report out-of-date until the
//next swapchain is created.
func (g *GPU) InvalidateSurface() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.outOfDate = true
}

//SetSuboptimal toggles suboptimal reporting on acquire and present.
func (g *GPU) SetSuboptimal(v bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.suboptimal = v
}
