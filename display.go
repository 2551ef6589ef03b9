package scopvk

import (
	"github.com/andewx/scopvk/driver"
)

//CoreDisplay carries the presentation parameters shared by the swapchain,
//render pass and pipelines. The extent follows the current swapchain.
type CoreDisplay struct {
	extent         driver.Extent
	surface_format driver.SurfaceFormat
	depth_format   driver.Format
	present_mode   driver.PresentMode
	viewport       driver.Viewport
	scissor        driver.Rect
	requested      driver.Extent
}

//NewCoreDisplay picks the surface and depth formats. requested is used as the
//swapchain extent only when the surface lets the application choose.
func NewCoreDisplay(device *CoreDevice, requested driver.Extent, mode driver.PresentMode) (*CoreDisplay, error) {
	formats, err := device.gpu.SurfaceFormats()
	if err != nil {
		return nil, setupError(err, "display", "surface formats")
	}
	if len(formats) == 0 {
		return nil, setupError(ErrNoSurfaceFormat, "display", "surface formats")
	}
	format := formats[0]
	for _, f := range formats {
		if f.Format == driver.FormatBGRA8SRGB {
			format = f
			break
		}
	}
	depth, err := device.FindDepthFormat()
	if err != nil {
		return nil, setupError(err, "display", "depth format")
	}
	core := &CoreDisplay{surface_format: format, depth_format: depth, present_mode: mode, requested: requested}
	core.resize(requested)
	return core, nil
}

func (d *CoreDisplay) resize(extent driver.Extent) {
	d.extent = extent
	d.viewport = driver.Viewport{Width: float32(extent.Width), Height: float32(extent.Height), MinDepth: 0, MaxDepth: 1}
	d.scissor = driver.Rect{Extent: extent}
}

//chooseExtent honours the surface's current extent unless it defers to us
func (d *CoreDisplay) chooseExtent(caps driver.SurfaceCapabilities) driver.Extent {
	if caps.CurrentExtent.Width != 0xFFFFFFFF {
		return caps.CurrentExtent
	}
	e := d.requested
	e.Width = clamp(e.Width, caps.MinExtent.Width, caps.MaxExtent.Width)
	e.Height = clamp(e.Height, caps.MinExtent.Height, caps.MaxExtent.Height)
	return e
}

func clamp(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if hi > 0 && v > hi {
		return hi
	}
	return v
}

func (d *CoreDisplay) Extent() driver.Extent               { return d.extent }
func (d *CoreDisplay) SurfaceFormat() driver.SurfaceFormat { return d.surface_format }
func (d *CoreDisplay) DepthFormat() driver.Format          { return d.depth_format }
func (d *CoreDisplay) Viewport() driver.Viewport           { return d.viewport }
func (d *CoreDisplay) Scissor() driver.Rect                { return d.scissor }

//Aspect is width over height of the current extent
func (d *CoreDisplay) Aspect() float32 {
	if d.extent.Height == 0 {
		return 1
	}
	return float32(d.extent.Width) / float32(d.extent.Height)
}
