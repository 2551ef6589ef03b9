package scopvk

import (
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"

	"github.com/andewx/scopvk/driver"
)

//RendererConfig fixes the capacities decided at startup
type RendererConfig struct {
	Width                uint32
	Height               uint32
	FramesInFlight       int
	MaxMaterialInstances int
	BindingsPerInstance  int
	PresentMode          driver.PresentMode
	ClearColor           [4]float32
}

//DefaultRendererConfig is an 800x600 window with three frames in flight
func DefaultRendererConfig() RendererConfig {
	return RendererConfig{
		Width:                800,
		Height:               600,
		FramesInFlight:       3,
		MaxMaterialInstances: 16,
		BindingsPerInstance:  1,
		PresentMode:          driver.PresentFifo,
		ClearColor:           [4]float32{0.02, 0.02, 0.04, 1},
	}
}

//DrawStats counts the state changes of the last recorded frame
type DrawStats struct {
	PipelineBinds   int
	DescriptorBinds int
	MeshBinds       int
	Draws           int
}

//frameResources are owned by one frame in flight slot and only touched after
//that slot's fence has signaled
type frameResources struct {
	pool       *CorePool
	commands   *CommandBuffer
	uniforms   *CoreBuffer
	persistent bool
	global_set driver.DescriptorSet
}

//CoreRenderer drives acquire, record, submit and present for a scene
type CoreRenderer struct {
	device      *CoreDevice
	config      RendererConfig
	log         *slog.Logger
	display     *CoreDisplay
	setup_pool  *CorePool
	swapchain   *CoreSwapchain
	render_pass *CoreRenderPass
	desc_pool   *CoreDescriptorPool
	global      *CoreDescriptorSetLayout
	frames      []frameResources
	materials   *MaterialBank
	meshes      []Mesh
	blend       float32
	frame       uint64
	last        time.Time
	now         func() time.Time
	stats       DrawStats
	drawables   []Drawable
	destroyed   bool
}

//NewCoreRenderer builds every long lived object in creation order. Any
//failure is a setup error and everything built so far is released.
func NewCoreRenderer(device *CoreDevice, config RendererConfig) (r *CoreRenderer, err error) {
	assertf(config.FramesInFlight > 0, "renderer with %d frames in flight", config.FramesInFlight)
	r = &CoreRenderer{
		device: device,
		config: config,
		log:    device.log.With(slog.String("component", "renderer")),
		now:    time.Now,
	}
	defer func() {
		if err != nil {
			r.release()
			r = nil
		}
	}()

	if r.display, err = NewCoreDisplay(device, driver.Extent{Width: config.Width, Height: config.Height}, config.PresentMode); err != nil {
		return r, err
	}
	if r.setup_pool, err = NewCorePool(device, device.GraphicsFamily(), false); err != nil {
		return r, err
	}
	if r.swapchain, err = NewCoreSwapchain(device, r.display, r.setup_pool, config.FramesInFlight); err != nil {
		return r, err
	}
	if r.render_pass, err = NewCoreRenderPass(device, r.display); err != nil {
		return r, err
	}
	if err = r.render_pass.CreateFramebuffers(r.swapchain); err != nil {
		return r, err
	}

	max_sets, sizes := PoolSizesFor(config.FramesInFlight, config.MaxMaterialInstances, config.BindingsPerInstance)
	pb := NewDescriptorPoolBuilder(device).MaxSets(max_sets)
	for _, s := range sizes {
		pb.AddSize(s.Kind, s.Count)
	}
	if r.desc_pool, err = pb.Build(); err != nil {
		return r, err
	}
	if r.global, err = NewDescriptorSetLayoutBuilder(device).AddBufferBinding(0, driver.ShaderVertex|driver.ShaderFragment).Build(); err != nil {
		return r, err
	}

	r.frames = make([]frameResources, 0, config.FramesInFlight)
	for i := 0; i < config.FramesInFlight; i++ {
		f, ferr := r.newFrameResources()
		if ferr != nil {
			return r, setupError(ferr, "renderer", "frame resources")
		}
		r.frames = append(r.frames, f)
	}
	r.materials = NewMaterialBank(device, r.desc_pool, r.render_pass, r.global, config.FramesInFlight)
	r.log.Debug("renderer ready",
		slog.Int("frames_in_flight", config.FramesInFlight),
		slog.Int("swapchain_images", r.swapchain.ImageCount()),
		slog.Int("descriptor_sets", int(max_sets)))
	return r, nil
}

func (r *CoreRenderer) newFrameResources() (frameResources, error) {
	var f frameResources
	pool, err := NewCorePool(r.device, r.device.GraphicsFamily(), true)
	if err != nil {
		return f, err
	}
	f.pool = pool
	cbs, err := pool.Allocate(1)
	if err != nil {
		pool.Destroy()
		return f, err
	}
	f.commands = cbs[0]
	f.uniforms, err = NewCoreBuffer(r.device, BufferInfo{
		InstanceSize:       GlobalUniformSize,
		InstanceCount:      1,
		Usage:              driver.BufferUniform,
		Memory:             MemoryHostVisible,
		MinOffsetAlignment: r.device.Limits().MinUniformBufferOffsetAlignment,
	})
	if err != nil {
		pool.Destroy()
		return f, err
	}
	if f.persistent, err = f.uniforms.MapPersistent(); err != nil {
		f.uniforms.Destroy()
		pool.Destroy()
		return f, err
	}
	if f.global_set, err = r.desc_pool.Allocate(r.global); err != nil {
		f.uniforms.Destroy()
		pool.Destroy()
		return f, err
	}
	if err = NewDescriptorWriter(r.device, r.global, f.global_set).SetBuffer(0, f.uniforms.DescriptorInfo()).Write(); err != nil {
		f.uniforms.Destroy()
		pool.Destroy()
		return f, err
	}
	return f, nil
}

func (r *CoreRenderer) Device() *CoreDevice         { return r.device }
func (r *CoreRenderer) Display() *CoreDisplay       { return r.display }
func (r *CoreRenderer) Swapchain() *CoreSwapchain   { return r.swapchain }
func (r *CoreRenderer) RenderPass() *CoreRenderPass { return r.render_pass }
func (r *CoreRenderer) Materials() *MaterialBank    { return r.materials }
func (r *CoreRenderer) SetupPool() *CorePool        { return r.setup_pool }
func (r *CoreRenderer) LastStats() DrawStats        { return r.stats }
func (r *CoreRenderer) Frame() uint64               { return r.frame }
func (r *CoreRenderer) Blend() float32              { return r.blend }

//SetBlend sets the texture blend factor pushed with every draw, clamped to [0,1]
func (r *CoreRenderer) SetBlend(v float32) {
	switch {
	case v < 0:
		v = 0
	case v > 1:
		v = 1
	}
	r.blend = v
}

//AddMesh hands ownership of m to the renderer
func (r *CoreRenderer) AddMesh(m Mesh) MeshID {
	r.meshes = append(r.meshes, m)
	return MeshID(len(r.meshes))
}

func (r *CoreRenderer) Mesh(id MeshID) Mesh {
	assertf(id > 0 && int(id) <= len(r.meshes) && r.meshes[id-1] != nil, "mesh %d is not live", id)
	return r.meshes[id-1]
}

//RemoveMesh destroys a mesh after the device goes idle
func (r *CoreRenderer) RemoveMesh(id MeshID) error {
	m := r.Mesh(id)
	if err := r.device.WaitIdle(); err != nil {
		return err
	}
	m.Destroy()
	r.meshes[id-1] = nil
	return nil
}

//RenderFrame renders and presents one frame of scene. Out of date and
//suboptimal swapchains are recreated here and never returned.
func (r *CoreRenderer) RenderFrame(scene Scene, input Input) error {
	assertf(!r.destroyed, "render on a destroyed renderer")
	if input == nil {
		input = NoInput{}
	}
	sync, err := r.swapchain.NextImage()
	if err != nil {
		if IsTransient(err) {
			r.log.Info("acquire reported a stale swapchain", slog.String("error", err.Error()))
			return r.RecreateSwapchain()
		}
		return errors.Wrap(err, "acquiring swapchain image")
	}

	now := r.now()
	var delta time.Duration
	if !r.last.IsZero() {
		delta = now.Sub(r.last)
	}
	r.last = now
	ctx := &FrameContext{
		Renderer:   r,
		Slot:       sync.Slot,
		ImageIndex: sync.ImageIndex,
		Frame:      r.frame,
		Delta:      delta,
		Input:      input,
	}
	if err := r.recordFrame(ctx, scene); err != nil {
		return r.dropFrame(sync, err)
	}

	frame := &r.frames[sync.Slot]
	err = frame.pool.Submit(Submission{
		Buffers:    []*CommandBuffer{frame.commands},
		Wait:       []driver.Semaphore{sync.ImageAvailable},
		WaitStages: []driver.PipelineStage{driver.StageColorAttachmentOutput},
		Signal:     []driver.Semaphore{sync.RenderingFinished},
		Fence:      sync.InFlight,
	})
	if err != nil {
		return r.dropFrame(sync, errors.Wrapf(err, "submitting frame %d", r.frame))
	}
	r.swapchain.MarkSubmitted(sync)
	err = r.swapchain.PresentImage(r.device.GraphicsQueue(), sync)
	r.frame++
	if err != nil && !IsTransient(err) {
		return errors.Wrapf(err, "presenting frame %d", r.frame-1)
	}
	if err != nil || sync.Suboptimal {
		return r.RecreateSwapchain()
	}
	return nil
}

//dropFrame gives up on an acquired frame. The slot's fence is signaled by an
//empty submission and the swapchain is recreated, which is the only way to
//hand back an image that will not be presented.
func (r *CoreRenderer) dropFrame(sync FrameSync, cause error) error {
	r.log.Warn("frame dropped", slog.Uint64("frame", r.frame), slog.String("error", cause.Error()))
	if err := r.swapchain.Abandon(r.device.GraphicsQueue(), sync); err != nil {
		return errors.CombineErrors(cause, err)
	}
	if err := r.RecreateSwapchain(); err != nil {
		return errors.CombineErrors(cause, errors.Wrap(err, "releasing abandoned image"))
	}
	return cause
}

//recordFrame runs the scene hook, uploads the global uniforms and records
//the slot's command buffer
func (r *CoreRenderer) recordFrame(ctx *FrameContext, scene Scene) error {
	if err := scene.Update(ctx); err != nil {
		return errors.Wrap(err, "scene update")
	}
	frame := &r.frames[ctx.Slot]
	if err := r.writeUniforms(frame, scene.Camera()); err != nil {
		return err
	}
	r.drawables = scene.Drawables(r.drawables[:0])

	cb := frame.commands
	if err := cb.Reset(); err != nil {
		return errors.Wrap(err, "resetting frame command buffer")
	}
	if err := cb.Begin(true); err != nil {
		return errors.Wrap(err, "beginning frame command buffer")
	}
	r.render_pass.Begin(cb, ctx.ImageIndex, r.config.ClearColor)
	cb.SetViewport(r.display.viewport)
	cb.SetScissor(r.display.scissor)
	r.stats = r.recordDraws(cb, ctx.Slot, r.drawables)
	r.render_pass.End(cb)
	return cb.End()
}

func (r *CoreRenderer) writeUniforms(frame *frameResources, u GlobalUniforms) error {
	data := u.Bytes()
	if frame.persistent {
		frame.uniforms.WriteAt(0, data)
		return nil
	}
	if err := frame.uniforms.Map(); err != nil {
		return err
	}
	defer frame.uniforms.Unmap()
	frame.uniforms.WriteAt(0, data)
	return frame.uniforms.Flush(0, driver.WholeSize)
}

type drawKey struct {
	material MaterialID
	instance InstanceID
	mesh     MeshID
	index    int
}

//recordDraws sorts draws by material, instance and mesh, then binds the
//pipeline only on material change, descriptor sets on instance change and
//vertex buffers on mesh change. Push constants go with every draw.
func (r *CoreRenderer) recordDraws(cb *CommandBuffer, slot int, draws []Drawable) DrawStats {
	var stats DrawStats
	keys := make([]drawKey, len(draws))
	for i, d := range draws {
		keys[i] = drawKey{material: r.materials.Instance(d.Instance).material, instance: d.Instance, mesh: d.Mesh, index: i}
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.material != b.material {
			return a.material < b.material
		}
		if a.instance != b.instance {
			return a.instance < b.instance
		}
		if a.mesh != b.mesh {
			return a.mesh < b.mesh
		}
		return a.index < b.index
	})

	global := r.frames[slot].global_set
	var (
		material MaterialID
		instance InstanceID
		mesh     MeshID
		pipeline *CorePipeline
		current  Mesh
	)
	for _, k := range keys {
		d := draws[k.index]
		if k.material != material {
			pipeline = r.materials.Material(k.material).pipeline
			pipeline.Bind(cb)
			stats.PipelineBinds++
			//Vertex and index buffers are command buffer state and survive the pipeline bind
			material, instance = k.material, 0
		}
		if k.instance != instance {
			//The first bind after a pipeline change also refreshes the global set
			sets := r.materials.Instance(k.instance).sets[slot]
			if instance == 0 {
				pipeline.BindDescriptorSets(cb, 0, append([]driver.DescriptorSet{global}, sets...)...)
				stats.DescriptorBinds++
			} else if len(sets) > 0 {
				pipeline.BindDescriptorSets(cb, 1, sets...)
				stats.DescriptorBinds++
			}
			instance = k.instance
		}
		if k.mesh != mesh {
			current = r.Mesh(k.mesh)
			current.Bind(cb)
			stats.MeshBinds++
			mesh = k.mesh
		}
		pipeline.PushConstants(cb, PushConstants{Model: d.Model, Normal: d.Normal, Blend: r.blend}.Bytes())
		current.Draw(cb)
		stats.Draws++
	}
	return stats
}

//RecreateSwapchain idles the device, destroys the framebuffers, rebuilds the
//swapchain and recreates the framebuffers over the new images
func (r *CoreRenderer) RecreateSwapchain() error {
	if err := r.device.WaitIdle(); err != nil {
		return errors.Wrap(err, "idling before recreate")
	}
	r.render_pass.DestroyFramebuffers()
	if err := r.swapchain.Recreate(); err != nil {
		return err
	}
	return r.render_pass.CreateFramebuffers(r.swapchain)
}

func (r *CoreRenderer) WaitIdle() error { return r.device.WaitIdle() }

//Destroy idles the device and releases everything in reverse creation order.
//The device itself stays alive.
func (r *CoreRenderer) Destroy() {
	assertf(!r.destroyed, "renderer destroyed twice")
	_ = r.device.WaitIdle()
	r.release()
	r.destroyed = true
}

func (r *CoreRenderer) release() {
	for i, m := range r.meshes {
		if m != nil {
			m.Destroy()
			r.meshes[i] = nil
		}
	}
	if r.materials != nil {
		r.materials.Destroy()
	}
	for _, f := range r.frames {
		f.uniforms.Destroy()
		f.pool.Destroy()
	}
	r.frames = nil
	if r.global != nil {
		r.global.Destroy()
	}
	if r.desc_pool != nil {
		r.desc_pool.Destroy()
	}
	if r.render_pass != nil {
		r.render_pass.Destroy()
	}
	if r.swapchain != nil {
		r.swapchain.Destroy()
	}
	if r.setup_pool != nil {
		r.setup_pool.Destroy()
	}
}
