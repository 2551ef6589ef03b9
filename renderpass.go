package scopvk

import (
	"github.com/cockroachdb/errors"

	"github.com/andewx/scopvk/driver"
)

//CoreFramebuffer binds one swapchain image view and the shared depth view
type CoreFramebuffer struct {
	handle driver.Framebuffer
	extent driver.Extent
}

func (f CoreFramebuffer) Handle() driver.Framebuffer { return f.handle }
func (f CoreFramebuffer) Extent() driver.Extent      { return f.extent }

//CoreRenderPass is the default single subpass pass: a cleared color attachment
//ending in PresentSrc and a cleared depth attachment that is not stored
type CoreRenderPass struct {
	device       *CoreDevice
	display      *CoreDisplay
	pass         driver.RenderPass
	framebuffers []CoreFramebuffer
}

//Creates default renderpass with a color and depth attachment, formats come from the display
func NewCoreRenderPass(device *CoreDevice, display *CoreDisplay) (*CoreRenderPass, error) {
	pass, err := device.gpu.CreateRenderPass(driver.RenderPassInfo{
		Color: driver.AttachmentInfo{
			Format:        display.surface_format.Format,
			Load:          driver.LoadClear,
			Store:         driver.StoreStore,
			StencilLoad:   driver.LoadDontCare,
			StencilStore:  driver.StoreDontCare,
			InitialLayout: driver.LayoutUndefined,
			FinalLayout:   driver.LayoutPresentSrc,
		},
		Depth: &driver.AttachmentInfo{
			Format:        display.depth_format,
			Load:          driver.LoadClear,
			Store:         driver.StoreDontCare,
			StencilLoad:   driver.LoadDontCare,
			StencilStore:  driver.StoreDontCare,
			InitialLayout: driver.LayoutUndefined,
			FinalLayout:   driver.LayoutDepthStencilAttachment,
		},
	})
	if err != nil {
		return nil, setupError(err, "renderpass", "render pass")
	}
	return &CoreRenderPass{device: device, display: display, pass: pass}, nil
}

func (r *CoreRenderPass) Handle() driver.RenderPass { return r.pass }

//CreateFramebuffers builds one framebuffer per swapchain image, all sharing
//the swapchain's depth image. Framebuffers are indexed by image index.
func (r *CoreRenderPass) CreateFramebuffers(sc *CoreSwapchain) error {
	assertf(len(r.framebuffers) == 0, "framebuffers created twice without DestroyFramebuffers")
	for i, view := range sc.views {
		fb, err := r.device.gpu.CreateFramebuffer(driver.FramebufferInfo{
			RenderPass:  r.pass,
			Attachments: []driver.ImageView{view, sc.depth.view},
			Extent:      sc.extent,
		})
		if err != nil {
			r.DestroyFramebuffers()
			return setupError(errors.Wrapf(err, "image %d", i), "renderpass", "framebuffer")
		}
		r.framebuffers = append(r.framebuffers, CoreFramebuffer{handle: fb, extent: sc.extent})
	}
	return nil
}

func (r *CoreRenderPass) DestroyFramebuffers() {
	for _, fb := range r.framebuffers {
		r.device.gpu.DestroyFramebuffer(fb.handle)
	}
	r.framebuffers = nil
}

func (r *CoreRenderPass) Framebuffers() int { return len(r.framebuffers) }

//Framebuffer returns the framebuffer for swapchain image i
func (r *CoreRenderPass) Framebuffer(i uint32) CoreFramebuffer {
	assertf(int(i) < len(r.framebuffers), "framebuffer %d of %d", i, len(r.framebuffers))
	return r.framebuffers[i]
}

//Begin starts the pass on the framebuffer of image_index clearing color to
//clear and depth to 1
func (r *CoreRenderPass) Begin(cb *CommandBuffer, image_index uint32, clear [4]float32) {
	fb := r.Framebuffer(image_index)
	cb.BeginRenderPass(driver.RenderPassBegin{
		RenderPass:  r.pass,
		Framebuffer: fb.handle,
		Area:        driver.Rect{Extent: fb.extent},
		Clear:       []driver.ClearValue{{Color: clear}, {Depth: 1.0}},
	})
}

func (r *CoreRenderPass) End(cb *CommandBuffer) {
	cb.EndRenderPass()
}

//Destroy releases framebuffers then the pass
func (r *CoreRenderPass) Destroy() {
	r.DestroyFramebuffers()
	r.device.gpu.DestroyRenderPass(r.pass)
}
