//Package vkdriver implements driver.GPU over Vulkan through vulkan-go, with
//the presentation surface taken from a GLFW window.
//
//Driver handles are indices into per-kind tables; the Vulkan objects never
//leave this package. Results are mapped onto the driver sentinels so the
//core can branch on errors.Is.
package vkdriver

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/vulkan-go/vulkan"
	"golang.org/x/exp/slog"

	"github.com/andewx/scopvk/driver"
)

const validationLayer = "VK_LAYER_KHRONOS_validation"

//Config selects the window and the debug facilities of a GPU.
type Config struct {
	Window  *glfw.Window
	AppName string
	//Validation enables the Khronos validation layer and routes its reports
	//to Logger when both are available.
	Validation bool
	Logger     *slog.Logger
	//DeviceExtensions are enabled when the device offers them.
	DeviceExtensions []string
}

//GPU is a Vulkan instance, surface and logical device.
type GPU struct {
	mu  sync.Mutex
	log *slog.Logger

	window   *glfw.Window
	instance vk.Instance
	debug    vk.DebugReportCallback
	surface  vk.Surface
	gpu      vk.PhysicalDevice
	device   vk.Device

	props    driver.Properties
	memTypes []driver.MemoryType
	families []driver.QueueFamily
	layers   []string

	family     uint32
	anisotropy bool

	queues       table[vk.Queue]
	queueHandles map[[2]uint32]driver.Queue
	buffers      table[vk.Buffer]
	memories     table[*memory]
	images       table[*image]
	views        table[vk.ImageView]
	samplers     table[vk.Sampler]
	cmdPools     table[vk.CommandPool]
	cmds         table[commandBuffer]
	semaphores   table[vk.Semaphore]
	fences       table[vk.Fence]
	setLayouts   table[vk.DescriptorSetLayout]
	descPools    table[vk.DescriptorPool]
	sets         table[descriptorSet]
	shaders      table[vk.ShaderModule]
	pipeLayouts  table[vk.PipelineLayout]
	pipelines    table[vk.Pipeline]
	renderPasses table[vk.RenderPass]
	framebuffers table[vk.Framebuffer]
	swapchains   table[*swapchain]
}

var _ driver.GPU = (*GPU)(nil)

var loader sync.Once
var loaderErr error

//debugLog receives validation reports. The callback has no user pointer on
//the Go side so the logger is process wide.
var debugLog atomic.Pointer[slog.Logger]

//Open creates the instance, the window surface and a logical device on the
//best physical device: a discrete GPU when one has a queue family with both
//graphics and present, otherwise the first device that does. Only that
//family gets a queue.
func Open(config Config) (gpu *GPU, err error) {
	if config.Window == nil {
		return nil, errors.New("vkdriver: a window is required")
	}
	log := config.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "vulkan"))

	loader.Do(func() {
		vk.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
		loaderErr = vk.Init()
	})
	if loaderErr != nil {
		return nil, errors.Mark(errors.Wrap(loaderErr, "vkdriver: loading vulkan"), driver.ErrInitializationFailed)
	}

	g := &GPU{
		log:          log,
		window:       config.Window,
		queues:       newTable[vk.Queue](),
		queueHandles: make(map[[2]uint32]driver.Queue),
		buffers:      newTable[vk.Buffer](),
		memories:     newTable[*memory](),
		images:       newTable[*image](),
		views:        newTable[vk.ImageView](),
		samplers:     newTable[vk.Sampler](),
		cmdPools:     newTable[vk.CommandPool](),
		cmds:         newTable[commandBuffer](),
		semaphores:   newTable[vk.Semaphore](),
		fences:       newTable[vk.Fence](),
		setLayouts:   newTable[vk.DescriptorSetLayout](),
		descPools:    newTable[vk.DescriptorPool](),
		sets:         newTable[descriptorSet](),
		shaders:      newTable[vk.ShaderModule](),
		pipeLayouts:  newTable[vk.PipelineLayout](),
		pipelines:    newTable[vk.Pipeline](),
		renderPasses: newTable[vk.RenderPass](),
		framebuffers: newTable[vk.Framebuffer](),
		swapchains:   newTable[*swapchain](),
	}
	defer func() {
		if err != nil {
			g.Destroy()
			gpu = nil
		}
	}()
	if err = g.createInstance(config); err != nil {
		return nil, err
	}
	surface, err := config.Window.CreateWindowSurface(g.instance, nil)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "vkdriver: creating window surface"), driver.ErrInitializationFailed)
	}
	g.surface = vk.SurfaceFromPointer(surface)
	if err = g.selectDevice(); err != nil {
		return nil, err
	}
	if err = g.createDevice(config); err != nil {
		return nil, err
	}
	log.Info("vulkan device ready",
		slog.String("device", g.props.Name),
		slog.String("kind", g.props.Kind.String()),
		slog.Int("queue_family", int(g.family)))
	return g, nil
}

func (g *GPU) createInstance(config Config) error {
	wanted := []string{}
	if config.Validation {
		wanted = append(wanted, "VK_EXT_debug_report")
	}
	exts, err := NewInstanceExtensions(wanted, config.Window.GetRequiredInstanceExtensions())
	if err != nil {
		return err
	}
	if ok, missing := exts.HasRequired(); !ok {
		return errors.Wrapf(driver.ErrInitializationFailed, "vkdriver: missing instance extensions %v", missing)
	}
	if ok, missing := exts.HasWanted(); !ok {
		g.log.Warn("instance extensions unavailable", slog.Any("missing", missing))
	}
	if config.Validation {
		layers, err := NewLayers([]string{validationLayer})
		if err != nil {
			return err
		}
		if ok, missing := layers.HasWanted(); !ok {
			g.log.Warn("validation layers unavailable", slog.Any("missing", missing))
		}
		g.layers = layers.Enabled()
	}
	enabled := exts.Enabled()
	g.log.Debug("enabling instance extensions", slog.Int("count", len(enabled)), slog.Int("layers", len(g.layers)))

	var instance vk.Instance
	ret := vk.CreateInstance(&vk.InstanceCreateInfo{
		SType: vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &vk.ApplicationInfo{
			SType:              vk.StructureTypeApplicationInfo,
			ApiVersion:         uint32(vk.MakeVersion(1, 0, 0)),
			ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
			PApplicationName:   safeString(config.AppName),
			PEngineName:        safeString("scopvk"),
		},
		EnabledExtensionCount:   uint32(len(enabled)),
		PpEnabledExtensionNames: enabled,
		EnabledLayerCount:       uint32(len(g.layers)),
		PpEnabledLayerNames:     g.layers,
	}, nil, &instance)
	if err := newError(ret, "creating instance"); err != nil {
		return err
	}
	g.instance = instance
	if err := vk.InitInstance(instance); err != nil {
		return errors.Mark(errors.Wrap(err, "vkdriver: loading instance functions"), driver.ErrInitializationFailed)
	}

	if config.Validation && exts.has("VK_EXT_debug_report") {
		debugLog.Store(g.log)
		ret := vk.CreateDebugReportCallback(instance, &vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}, nil, &g.debug)
		if err := newError(ret, "creating debug report callback"); err != nil {
			return err
		}
		g.log.Debug("debug report callback enabled")
	}
	return nil
}

type candidate struct {
	gpu      vk.PhysicalDevice
	props    vk.PhysicalDeviceProperties
	family   uint32
	families []driver.QueueFamily
}

//selectDevice picks the physical device and the first queue family that
//both draws and presents.
func (g *GPU) selectDevice() error {
	var count uint32
	if err := newError(vk.EnumeratePhysicalDevices(g.instance, &count, nil), "enumerating devices"); err != nil {
		return err
	}
	if count == 0 {
		return errors.Wrap(driver.ErrInitializationFailed, "vkdriver: no vulkan devices found")
	}
	list := make([]vk.PhysicalDevice, count)
	if err := newError(vk.EnumeratePhysicalDevices(g.instance, &count, list), "enumerating devices"); err != nil {
		return err
	}

	var best *candidate
	for _, pd := range list {
		c, ok := g.inspect(pd)
		if !ok {
			continue
		}
		if best == nil || (c.props.DeviceType == vk.PhysicalDeviceTypeDiscreteGpu && best.props.DeviceType != vk.PhysicalDeviceTypeDiscreteGpu) {
			best = c
		}
	}
	if best == nil {
		return errors.Wrap(driver.ErrInitializationFailed, "vkdriver: no device supports graphics, present and VK_KHR_swapchain")
	}

	g.gpu = best.gpu
	g.families = best.families
	g.family = best.family
	best.props.Limits.Deref()
	g.props = driver.Properties{
		Name: vk.ToString(best.props.DeviceName[:]),
		Kind: fromDeviceType(best.props.DeviceType),
		Limits: driver.Limits{
			MinUniformBufferOffsetAlignment: uint64(best.props.Limits.MinUniformBufferOffsetAlignment),
			NonCoherentAtomSize:             uint64(best.props.Limits.NonCoherentAtomSize),
			MaxPushConstantsSize:            best.props.Limits.MaxPushConstantsSize,
			MaxBoundDescriptorSets:          best.props.Limits.MaxBoundDescriptorSets,
		},
	}

	var memProps vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(g.gpu, &memProps)
	memProps.Deref()
	g.memTypes = make([]driver.MemoryType, memProps.MemoryTypeCount)
	for i := range g.memTypes {
		memProps.MemoryTypes[i].Deref()
		g.memTypes[i] = driver.MemoryType{
			Flags: fromMemoryFlags(memProps.MemoryTypes[i].PropertyFlags),
			Heap:  memProps.MemoryTypes[i].HeapIndex,
		}
	}
	return nil
}

func (g *GPU) inspect(pd vk.PhysicalDevice) (*candidate, bool) {
	c := &candidate{gpu: pd}
	vk.GetPhysicalDeviceProperties(pd, &c.props)
	c.props.Deref()

	exts, err := NewDeviceExtensions(nil, []string{"VK_KHR_swapchain"}, pd)
	if err != nil {
		return nil, false
	}
	if ok, _ := exts.HasRequired(); !ok {
		return nil, false
	}

	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &count, nil)
	props := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &count, props)
	families := make([]driver.QueueFamily, count)
	family := -1
	for i := range props {
		props[i].Deref()
		var supports vk.Bool32
		vk.GetPhysicalDeviceSurfaceSupport(pd, uint32(i), g.surface, &supports)
		families[i] = driver.QueueFamily{
			Index:   uint32(i),
			Flags:   fromQueueFlags(props[i].QueueFlags),
			Count:   props[i].QueueCount,
			Present: supports.B(),
		}
		if family < 0 && families[i].Present && families[i].Flags&driver.QueueGraphics != 0 {
			family = i
		}
	}
	if family < 0 {
		return nil, false
	}
	c.family = uint32(family)
	c.families = families
	return c, true
}

func (g *GPU) createDevice(config Config) error {
	queueInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: g.family,
		QueueCount:       1,
		PQueuePriorities: []float32{1.0},
	}}
	exts, err := NewDeviceExtensions(config.DeviceExtensions, []string{"VK_KHR_swapchain"}, g.gpu)
	if err != nil {
		return err
	}
	if ok, missing := exts.HasWanted(); !ok {
		g.log.Warn("device extensions unavailable", slog.Any("missing", missing))
	}
	enabled := exts.Enabled()

	var supported vk.PhysicalDeviceFeatures
	vk.GetPhysicalDeviceFeatures(g.gpu, &supported)
	supported.Deref()
	var features []vk.PhysicalDeviceFeatures
	if supported.SamplerAnisotropy.B() {
		g.anisotropy = true
		features = append(features, vk.PhysicalDeviceFeatures{SamplerAnisotropy: vk.True})
	}

	var device vk.Device
	ret := vk.CreateDevice(g.gpu, &vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(enabled)),
		PpEnabledExtensionNames: enabled,
		EnabledLayerCount:       uint32(len(g.layers)),
		PpEnabledLayerNames:     g.layers,
		PEnabledFeatures:        features,
	}, nil, &device)
	if err := newError(ret, "creating device"); err != nil {
		return err
	}
	g.device = device
	return nil
}

func (g *GPU) Properties() driver.Properties { return g.props }

func (g *GPU) MemoryTypes() []driver.MemoryType {
	return append([]driver.MemoryType(nil), g.memTypes...)
}

func (g *GPU) QueueFamilies() []driver.QueueFamily {
	return append([]driver.QueueFamily(nil), g.families...)
}

//Queue returns a stable handle for the queue; repeated calls agree
func (g *GPU) Queue(family, index uint32) driver.Queue {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := [2]uint32{family, index}
	if h, ok := g.queueHandles[key]; ok {
		return h
	}
	var queue vk.Queue
	vk.GetDeviceQueue(g.device, family, index, &queue)
	h := driver.Queue(g.queues.put(queue))
	g.queueHandles[key] = h
	return h
}

func (g *GPU) FormatSupported(f driver.Format, feature driver.FormatFeature) bool {
	var props vk.FormatProperties
	vk.GetPhysicalDeviceFormatProperties(g.gpu, toFormat(f), &props)
	props.Deref()
	want := toFormatFeature(feature)
	return props.OptimalTilingFeatures&want == want
}

func (g *GPU) WaitIdle() error {
	return newError(vk.DeviceWaitIdle(g.device), "waiting for device idle")
}

//Destroy releases the device, the surface, the debug callback and the
//instance in that order. Objects still live are reported, not destroyed.
func (g *GPU) Destroy() {
	if g.device != nil {
		vk.DeviceWaitIdle(g.device)
		if n := g.liveObjects(); n > 0 {
			g.log.Warn("destroying device with live objects", slog.Int("count", n))
		}
		vk.DestroyDevice(g.device, nil)
		g.device = nil
	}
	if g.surface != vk.NullSurface {
		vk.DestroySurface(g.instance, g.surface, nil)
		g.surface = vk.NullSurface
	}
	if g.debug != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(g.instance, g.debug, nil)
		g.debug = vk.NullDebugReportCallback
	}
	if g.instance != nil {
		vk.DestroyInstance(g.instance, nil)
		g.instance = nil
	}
}

func (g *GPU) liveObjects() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.buffers.len() + g.memories.len() + g.images.len() + g.views.len() +
		g.samplers.len() + g.cmdPools.len() + g.semaphores.len() + g.fences.len() +
		g.setLayouts.len() + g.descPools.len() + g.shaders.len() + g.pipeLayouts.len() +
		g.pipelines.len() + g.renderPasses.len() + g.framebuffers.len() + g.swapchains.len()
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType,
	object uint64, location uint, messageCode int32, pLayerPrefix string,
	pMessage string, pUserData unsafe.Pointer) vk.Bool32 {

	log := debugLog.Load()
	if log == nil {
		return vk.Bool32(vk.False)
	}
	attrs := []any{
		slog.String("layer", pLayerPrefix),
		slog.Int("code", int(messageCode)),
	}
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		log.Error(pMessage, attrs...)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		log.Warn(pMessage, attrs...)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		log.Warn(pMessage, append(attrs, slog.Bool("performance", true))...)
	default:
		log.Debug(pMessage, attrs...)
	}
	return vk.Bool32(vk.False)
}
