//Package simdriver is an in-memory driver.GPU. It keeps real bytes behind
//buffers and images, records command streams, executes transfers and layout
//barriers on submit, and signals fences either immediately or when the test
//completes a submission by hand.
//
//The simulator plays the role of a validation layer: misuse that a real
//driver would leave undefined (double destroy, recording into a buffer that
//was never begun, copying into an image in the wrong layout) panics.
package simdriver

import (
	"sort"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/andewx/scopvk/driver"
)

const (
	kindBuffer         = "buffer"
	kindMemory         = "memory"
	kindImage          = "image"
	kindImageView      = "image-view"
	kindSampler        = "sampler"
	kindCommandPool    = "command-pool"
	kindCommandBuffer  = "command-buffer"
	kindSemaphore      = "semaphore"
	kindFence          = "fence"
	kindSetLayout      = "descriptor-set-layout"
	kindDescriptorPool = "descriptor-pool"
	kindDescriptorSet  = "descriptor-set"
	kindShader         = "shader-module"
	kindPipelineLayout = "pipeline-layout"
	kindPipeline       = "pipeline"
	kindRenderPass     = "render-pass"
	kindFramebuffer    = "framebuffer"
	kindSwapchain      = "swapchain"
)

//Options configures the simulated device.
type Options struct {
	Name           string
	MemoryTypes    []driver.MemoryType
	Limits         driver.Limits
	QueueFamilies  []driver.QueueFamily
	Surface        driver.SurfaceCapabilities
	SurfaceFormats []driver.SurfaceFormat
	DepthFormats   []driver.Format
	//ManualCompletion keeps submissions pending until CompleteNext or
	//CompleteAll is called. Otherwise work completes inside QueueSubmit.
	ManualCompletion bool
	//MemoryBudget caps the total of live allocations. Zero is unlimited.
	MemoryBudget uint64
	//RejectPipelines makes every CreateGraphicsPipeline fail.
	RejectPipelines bool
}

//DefaultOptions describes a discrete GPU with one graphics+present family,
//a device-local heap, a coherent host-visible heap and an 800x600 surface.
func DefaultOptions() Options {
	return Options{
		Name: "simulated",
		MemoryTypes: []driver.MemoryType{
			{Flags: driver.MemoryDeviceLocal, Heap: 0},
			{Flags: driver.MemoryHostVisible | driver.MemoryHostCoherent, Heap: 1},
			{Flags: driver.MemoryHostVisible | driver.MemoryHostCached, Heap: 1},
		},
		Limits: driver.Limits{
			MinUniformBufferOffsetAlignment: 256,
			NonCoherentAtomSize:             64,
			MaxPushConstantsSize:            128,
			MaxBoundDescriptorSets:          8,
			MaxAllocationSize:               1 << 30,
		},
		QueueFamilies: []driver.QueueFamily{
			{Index: 0, Flags: driver.QueueGraphics | driver.QueueCompute | driver.QueueTransfer, Count: 1, Present: true},
			{Index: 1, Flags: driver.QueueTransfer, Count: 1},
		},
		Surface: driver.SurfaceCapabilities{
			MinImageCount: 2,
			MaxImageCount: 8,
			CurrentExtent: driver.Extent{Width: 800, Height: 600},
			MinExtent:     driver.Extent{Width: 1, Height: 1},
			MaxExtent:     driver.Extent{Width: 4096, Height: 4096},
		},
		SurfaceFormats: []driver.SurfaceFormat{
			{Format: driver.FormatBGRA8SRGB, ColorSpace: driver.ColorSpaceSRGBNonlinear},
			{Format: driver.FormatRGBA8Unorm, ColorSpace: driver.ColorSpaceSRGBNonlinear},
		},
		DepthFormats: []driver.Format{driver.FormatD32Sfloat, driver.FormatD24UnormS8Uint},
	}
}

//GPU implements driver.GPU in memory. It is safe for concurrent use.
type GPU struct {
	mu     sync.Mutex
	opts   Options
	next   uint64
	live   map[uint64]string
	signal chan struct{}

	allocated  uint64
	surface    driver.SurfaceCapabilities
	outOfDate  bool
	suboptimal bool
	destroyed  bool
	submitErr  error

	buffers     map[driver.Buffer]*buffer
	memories    map[driver.Memory]*memory
	images      map[driver.Image]*image
	views       map[driver.ImageView]driver.Image
	pools       map[driver.CommandPool]*commandPool
	cmds        map[driver.CommandBuffer]*commandBuffer
	fences      map[driver.Fence]*fence
	semaphores  map[driver.Semaphore]*semaphore
	setLayouts  map[driver.DescriptorSetLayout][]driver.DescriptorBinding
	descPools   map[driver.DescriptorPool]*descriptorPool
	sets        map[driver.DescriptorSet]*descriptorSet
	pipeLayouts map[driver.PipelineLayout]driver.PipelineLayoutInfo
	pipelines   map[driver.Pipeline]driver.GraphicsPipelineInfo
	swapchains  map[driver.Swapchain]*swapchain

	pending       []*pendingSubmit
	submissions   []Submission
	presents      []Present
	descUpdates   int
	flushes       int
	invalidations int
}

var _ driver.GPU = (*GPU)(nil)

func New(opts Options) *GPU {
	return &GPU{
		opts:        opts,
		live:        make(map[uint64]string),
		signal:      make(chan struct{}),
		surface:     opts.Surface,
		buffers:     make(map[driver.Buffer]*buffer),
		memories:    make(map[driver.Memory]*memory),
		images:      make(map[driver.Image]*image),
		views:       make(map[driver.ImageView]driver.Image),
		pools:       make(map[driver.CommandPool]*commandPool),
		cmds:        make(map[driver.CommandBuffer]*commandBuffer),
		fences:      make(map[driver.Fence]*fence),
		semaphores:  make(map[driver.Semaphore]*semaphore),
		setLayouts:  make(map[driver.DescriptorSetLayout][]driver.DescriptorBinding),
		descPools:   make(map[driver.DescriptorPool]*descriptorPool),
		sets:        make(map[driver.DescriptorSet]*descriptorSet),
		pipeLayouts: make(map[driver.PipelineLayout]driver.PipelineLayoutInfo),
		pipelines:   make(map[driver.Pipeline]driver.GraphicsPipelineInfo),
		swapchains:  make(map[driver.Swapchain]*swapchain),
	}
}

//acquire registers a new live handle of the given kind. Callers hold mu.
func (g *GPU) acquire(kind string) uint64 {
	g.next++
	g.live[g.next] = kind
	return g.next
}

//release retires a live handle. Releasing a handle twice, or as the wrong
//kind, panics. Callers hold mu.
func (g *GPU) release(h uint64, kind string) {
	if got, ok := g.live[h]; !ok || got != kind {
		panic(errors.AssertionFailedf("simdriver: %s %d is not live", kind, h))
	}
	delete(g.live, h)
}

func (g *GPU) mustLive(h uint64, kind string) {
	if got, ok := g.live[h]; !ok || got != kind {
		panic(errors.AssertionFailedf("simdriver: use of dead or unknown %s %d", kind, h))
	}
}

//Live returns the number of live handles per kind.
func (g *GPU) Live() map[string]int {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string]int)
	for _, k := range g.live {
		out[k]++
	}
	return out
}

//LiveTotal returns the number of live handles of any kind.
func (g *GPU) LiveTotal() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.live)
}

//LiveKinds lists the kinds that still have live handles, sorted.
func (g *GPU) LiveKinds() []string {
	seen := g.Live()
	kinds := make([]string, 0, len(seen))
	for k := range seen {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

func (g *GPU) Destroyed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.destroyed
}

func (g *GPU) Properties() driver.Properties {
	name := g.opts.Name
	if name == "" {
		name = "simulated"
	}
	return driver.Properties{Name: name, Kind: driver.DeviceDiscrete, Limits: g.opts.Limits}
}

func (g *GPU) MemoryTypes() []driver.MemoryType {
	return append([]driver.MemoryType(nil), g.opts.MemoryTypes...)
}

func (g *GPU) QueueFamilies() []driver.QueueFamily {
	return append([]driver.QueueFamily(nil), g.opts.QueueFamilies...)
}

func (g *GPU) Queue(family, index uint32) driver.Queue {
	return driver.Queue(uint64(family)<<8 | uint64(index) + 1)
}

func (g *GPU) FormatSupported(f driver.Format, feature driver.FormatFeature) bool {
	if f.IsDepth() {
		if feature&^driver.FeatureDepthStencilAttachment != 0 {
			return false
		}
		for _, d := range g.opts.DepthFormats {
			if d == f {
				return true
			}
		}
		return false
	}
	return feature&driver.FeatureDepthStencilAttachment == 0 && f != driver.FormatUndefined
}

func (g *GPU) Destroy() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.destroyed {
		panic(errors.AssertionFailedf("simdriver: device destroyed twice"))
	}
	g.completeAll()
	g.destroyed = true
}

//Allocated returns the bytes of device memory currently allocated.
func (g *GPU) Allocated() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.allocated
}

//DescriptorUpdates returns the number of UpdateDescriptorSets calls.
func (g *GPU) DescriptorUpdates() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.descUpdates
}

//Flushes returns the number of FlushMemory calls.
func (g *GPU) Flushes() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.flushes
}
