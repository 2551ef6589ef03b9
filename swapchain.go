package scopvk

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"

	"github.com/andewx/scopvk/driver"
)

//DesiredImageCount is asked of the surface before clamping to its limits
const DesiredImageCount = 3

//SlotState tracks one frame in flight through acquire, submit and present
type SlotState int

const (
	SlotAvailable SlotState = iota
	SlotAcquired
	SlotSubmitted
	SlotPresented
)

func (s SlotState) String() string {
	switch s {
	case SlotAcquired:
		return "acquired"
	case SlotSubmitted:
		return "submitted"
	case SlotPresented:
		return "presented"
	}
	return "available"
}

type frameSlot struct {
	image_available    driver.Semaphore
	rendering_finished driver.Semaphore
	in_flight          driver.Fence
	state              SlotState
}

//FrameSync is everything the renderer needs to record and submit one frame
type FrameSync struct {
	Slot              int
	ImageIndex        uint32
	ImageAvailable    driver.Semaphore
	RenderingFinished driver.Semaphore
	InFlight          driver.Fence
	//MayBeginDrawing is false when no image was acquired
	MayBeginDrawing bool
	//Suboptimal asks for a recreate after this frame is presented
	Suboptimal bool
}

//CoreSwapchain owns the presentable images, their views, the shared depth
//image and the per slot synchronization objects
type CoreSwapchain struct {
	device    *CoreDevice
	display   *CoreDisplay
	pool      *CorePool
	swapchain driver.Swapchain
	images    []driver.Image
	views     []driver.ImageView
	depth     *CoreImage
	extent    driver.Extent
	slots     []frameSlot
	current   int
	log       *slog.Logger
}

//NewCoreSwapchain creates frames sync slots and the first swapchain. pool is
//used for the depth image's layout transition.
func NewCoreSwapchain(device *CoreDevice, display *CoreDisplay, pool *CorePool, frames int) (*CoreSwapchain, error) {
	assertf(frames > 0, "swapchain with %d frames in flight", frames)
	core := &CoreSwapchain{
		device:  device,
		display: display,
		pool:    pool,
		slots:   make([]frameSlot, frames),
		log:     device.log.With(slog.String("component", "swapchain")),
	}
	gpu := device.gpu
	for i := range core.slots {
		var err error
		slot := &core.slots[i]
		if slot.image_available, err = gpu.CreateSemaphore(); err != nil {
			core.destroySync()
			return nil, setupError(err, "swapchain", "image available semaphore")
		}
		if slot.rendering_finished, err = gpu.CreateSemaphore(); err != nil {
			core.destroySync()
			return nil, setupError(err, "swapchain", "rendering finished semaphore")
		}
		//Created signaled so the first wait on each slot returns at once
		if slot.in_flight, err = gpu.CreateFence(true); err != nil {
			core.destroySync()
			return nil, setupError(err, "swapchain", "in flight fence")
		}
	}
	if err := core.build(0); err != nil {
		core.Destroy()
		return nil, err
	}
	return core, nil
}

//build creates the swapchain retiring old, then views and the depth image
func (s *CoreSwapchain) build(old driver.Swapchain) error {
	gpu := s.device.gpu
	caps, err := gpu.SurfaceCapabilities()
	if err != nil {
		return setupError(err, "swapchain", "surface capabilities")
	}
	extent := s.display.chooseExtent(caps)
	count := clamp(DesiredImageCount, caps.MinImageCount, caps.MaxImageCount)

	sc, err := gpu.CreateSwapchain(driver.SwapchainInfo{
		MinImageCount: count,
		Format:        s.display.surface_format,
		Extent:        extent,
		PresentMode:   s.display.present_mode,
		Old:           old,
	})
	if old != 0 {
		gpu.DestroySwapchain(old)
	}
	if err != nil {
		return setupError(err, "swapchain", "swapchain")
	}
	s.swapchain = sc
	s.extent = extent
	s.display.resize(extent)

	if s.images, err = gpu.SwapchainImages(sc); err != nil {
		return setupError(err, "swapchain", "images")
	}
	s.views = make([]driver.ImageView, 0, len(s.images))
	for _, img := range s.images {
		view, err := gpu.CreateImageView(driver.ImageViewInfo{Image: img, Format: s.display.surface_format.Format, Aspect: driver.AspectColor})
		if err != nil {
			return setupError(err, "swapchain", "image view")
		}
		s.views = append(s.views, view)
	}
	if s.depth, err = NewDepthImage(s.device, s.pool, s.display.depth_format, extent); err != nil {
		return setupError(err, "swapchain", "depth image")
	}
	s.log.Debug("swapchain built",
		slog.Int("images", len(s.images)),
		slog.Int("width", int(extent.Width)),
		slog.Int("height", int(extent.Height)),
		slog.String("format", s.display.surface_format.Format.String()))
	return nil
}

func (s *CoreSwapchain) Extent() driver.Extent     { return s.extent }
func (s *CoreSwapchain) ImageCount() int           { return len(s.images) }
func (s *CoreSwapchain) FramesInFlight() int       { return len(s.slots) }
func (s *CoreSwapchain) Depth() *CoreImage         { return s.depth }
func (s *CoreSwapchain) Slot() int                 { return s.current }
func (s *CoreSwapchain) SlotState(i int) SlotState { return s.slots[i].state }

//NextImage waits for the current slot's previous frame, acquires an image
//and only then resets the slot's fence. A transient acquire error is
//returned with MayBeginDrawing false and the fence left signaled.
func (s *CoreSwapchain) NextImage() (FrameSync, error) {
	gpu := s.device.gpu
	slot := &s.slots[s.current]
	sync := FrameSync{
		Slot:              s.current,
		ImageAvailable:    slot.image_available,
		RenderingFinished: slot.rendering_finished,
		InFlight:          slot.in_flight,
	}
	if err := gpu.WaitForFences([]driver.Fence{slot.in_flight}, true, driver.Infinite); err != nil {
		return sync, errors.Wrapf(err, "waiting for frame slot %d", s.current)
	}
	slot.state = SlotAvailable

	index, err := gpu.AcquireNextImage(s.swapchain, driver.Infinite, slot.image_available)
	if err != nil {
		if !errors.Is(err, driver.ErrSuboptimal) {
			return sync, err
		}
		sync.Suboptimal = true
	}
	if err := gpu.ResetFences([]driver.Fence{slot.in_flight}); err != nil {
		return sync, errors.Wrap(err, "resetting in flight fence")
	}
	slot.state = SlotAcquired
	sync.ImageIndex = index
	sync.MayBeginDrawing = true
	return sync, nil
}

//MarkSubmitted records that the slot's work was queued with its fence
func (s *CoreSwapchain) MarkSubmitted(sync FrameSync) {
	slot := &s.slots[sync.Slot]
	assertf(slot.state == SlotAcquired, "slot %d submitted while %s", sync.Slot, slot.state)
	slot.state = SlotSubmitted
}

//PresentImage queues the image for presentation waiting on rendering finished
//and moves to the next slot. Transient errors are returned for the caller to
//recreate.
func (s *CoreSwapchain) PresentImage(queue driver.Queue, sync FrameSync) error {
	slot := &s.slots[sync.Slot]
	assertf(slot.state == SlotSubmitted, "slot %d presented while %s", sync.Slot, slot.state)
	err := s.device.gpu.QueuePresent(queue, s.swapchain, sync.ImageIndex, []driver.Semaphore{slot.rendering_finished})
	slot.state = SlotPresented
	s.advance()
	return err
}

//Abandon releases an acquired slot whose frame could not be recorded or
//submitted. An empty submission consumes the image available semaphore and
//signals the fence so the slot can be waited on again. The acquired image
//stays held until the swapchain is recreated.
func (s *CoreSwapchain) Abandon(queue driver.Queue, sync FrameSync) error {
	slot := &s.slots[sync.Slot]
	assertf(slot.state == SlotAcquired, "slot %d abandoned while %s", sync.Slot, slot.state)
	err := s.device.gpu.QueueSubmit(queue, []driver.SubmitInfo{{
		Wait:       []driver.Semaphore{slot.image_available},
		WaitStages: []driver.PipelineStage{driver.StageColorAttachmentOutput},
	}}, slot.in_flight)
	slot.state = SlotPresented
	s.advance()
	return errors.Wrap(err, "abandoning frame")
}

func (s *CoreSwapchain) advance() {
	s.current = (s.current + 1) % len(s.slots)
}

//Recreate rebuilds the swapchain for the surface's current extent. The device
//is idled first; framebuffers over the old views must already be destroyed.
func (s *CoreSwapchain) Recreate() error {
	if err := s.device.WaitIdle(); err != nil {
		return errors.Wrap(err, "idling before swapchain recreate")
	}
	s.destroyImages()
	old := s.swapchain
	s.swapchain = 0
	if err := s.build(old); err != nil {
		return err
	}
	s.log.Info("swapchain recreated",
		slog.Int("width", int(s.extent.Width)),
		slog.Int("height", int(s.extent.Height)))
	return nil
}

func (s *CoreSwapchain) destroyImages() {
	gpu := s.device.gpu
	if s.depth != nil {
		s.depth.Destroy()
		s.depth = nil
	}
	for _, v := range s.views {
		gpu.DestroyImageView(v)
	}
	s.views = nil
	s.images = nil
}

func (s *CoreSwapchain) destroySync() {
	gpu := s.device.gpu
	for _, slot := range s.slots {
		if slot.in_flight != 0 {
			gpu.DestroyFence(slot.in_flight)
		}
		if slot.rendering_finished != 0 {
			gpu.DestroySemaphore(slot.rendering_finished)
		}
		if slot.image_available != 0 {
			gpu.DestroySemaphore(slot.image_available)
		}
	}
	s.slots = nil
}

//Destroy idles the device then releases images, the swapchain and the sync
//objects in reverse creation order
func (s *CoreSwapchain) Destroy() {
	_ = s.device.WaitIdle()
	s.destroyImages()
	if s.swapchain != 0 {
		s.device.gpu.DestroySwapchain(s.swapchain)
		s.swapchain = 0
	}
	s.destroySync()
}
