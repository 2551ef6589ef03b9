package scopvk

import (
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/andewx/scopvk/driver"
)

//DescriptorSetLayoutBuilder collects bindings for one set layout
type DescriptorSetLayoutBuilder struct {
	device   *CoreDevice
	bindings []driver.DescriptorBinding
}

func NewDescriptorSetLayoutBuilder(device *CoreDevice) *DescriptorSetLayoutBuilder {
	return &DescriptorSetLayoutBuilder{device: device}
}

//AddBinding declares binding with count descriptors of kind visible to stages
func (b *DescriptorSetLayoutBuilder) AddBinding(binding uint32, kind driver.DescriptorKind, stages driver.ShaderStage, count uint32) *DescriptorSetLayoutBuilder {
	if count == 0 {
		count = 1
	}
	b.bindings = append(b.bindings, driver.DescriptorBinding{Binding: binding, Kind: kind, Count: count, Stages: stages})
	return b
}

func (b *DescriptorSetLayoutBuilder) AddBufferBinding(binding uint32, stages driver.ShaderStage) *DescriptorSetLayoutBuilder {
	return b.AddBinding(binding, driver.DescriptorUniformBuffer, stages, 1)
}

func (b *DescriptorSetLayoutBuilder) AddTextureBinding(binding uint32, stages driver.ShaderStage) *DescriptorSetLayoutBuilder {
	return b.AddBinding(binding, driver.DescriptorCombinedImageSampler, stages, 1)
}

//Build validates binding uniqueness and creates the layout
func (b *DescriptorSetLayoutBuilder) Build() (*CoreDescriptorSetLayout, error) {
	byBinding := make(map[uint32]driver.DescriptorBinding, len(b.bindings))
	for _, d := range b.bindings {
		if _, ok := byBinding[d.Binding]; ok {
			return nil, errors.Wrapf(ErrDuplicateBinding, "binding %d", d.Binding)
		}
		byBinding[d.Binding] = d
	}
	bindings := append([]driver.DescriptorBinding(nil), b.bindings...)
	sort.Slice(bindings, func(i, j int) bool { return bindings[i].Binding < bindings[j].Binding })
	h, err := b.device.gpu.CreateDescriptorSetLayout(bindings)
	if err != nil {
		return nil, setupError(err, "descriptors", "set layout")
	}
	return &CoreDescriptorSetLayout{device: b.device, layout: h, bindings: byBinding, ordered: bindings}, nil
}

//CoreDescriptorSetLayout is immutable once built
type CoreDescriptorSetLayout struct {
	device   *CoreDevice
	layout   driver.DescriptorSetLayout
	bindings map[uint32]driver.DescriptorBinding
	ordered  []driver.DescriptorBinding
}

func (l *CoreDescriptorSetLayout) Handle() driver.DescriptorSetLayout { return l.layout }

//Binding returns the declaration of binding i
func (l *CoreDescriptorSetLayout) Binding(i uint32) (driver.DescriptorBinding, bool) {
	d, ok := l.bindings[i]
	return d, ok
}

//Bindings lists the declarations ordered by binding number
func (l *CoreDescriptorSetLayout) Bindings() []driver.DescriptorBinding {
	return l.ordered
}

func (l *CoreDescriptorSetLayout) Destroy() {
	l.device.gpu.DestroyDescriptorSetLayout(l.layout)
}

//PoolSizesFor sizes a pool for frames in flight x instances x bindings of
//each descriptor kind, plus one global uniform set per frame
func PoolSizesFor(frames, instances, bindings int) (max_sets uint32, sizes []driver.DescriptorPoolSize) {
	per := uint32(frames * instances * bindings)
	max_sets = uint32(frames*instances) + uint32(frames)
	sizes = []driver.DescriptorPoolSize{
		{Kind: driver.DescriptorUniformBuffer, Count: per + uint32(frames)},
		{Kind: driver.DescriptorCombinedImageSampler, Count: per},
	}
	return max_sets, sizes
}

//DescriptorPoolBuilder declares the fixed capacity of a pool
type DescriptorPoolBuilder struct {
	device   *CoreDevice
	max_sets uint32
	sizes    map[driver.DescriptorKind]uint32
}

func NewDescriptorPoolBuilder(device *CoreDevice) *DescriptorPoolBuilder {
	return &DescriptorPoolBuilder{device: device, sizes: make(map[driver.DescriptorKind]uint32)}
}

func (b *DescriptorPoolBuilder) AddSize(kind driver.DescriptorKind, count uint32) *DescriptorPoolBuilder {
	b.sizes[kind] += count
	return b
}

func (b *DescriptorPoolBuilder) MaxSets(n uint32) *DescriptorPoolBuilder {
	b.max_sets = n
	return b
}

func (b *DescriptorPoolBuilder) Build() (*CoreDescriptorPool, error) {
	assertf(b.max_sets > 0, "descriptor pool with no sets")
	sizes := make([]driver.DescriptorPoolSize, 0, len(b.sizes))
	left := make(map[driver.DescriptorKind]uint32, len(b.sizes))
	for k, n := range b.sizes {
		sizes = append(sizes, driver.DescriptorPoolSize{Kind: k, Count: n})
		left[k] = n
	}
	sort.Slice(sizes, func(i, j int) bool { return sizes[i].Kind < sizes[j].Kind })
	h, err := b.device.gpu.CreateDescriptorPool(b.max_sets, sizes)
	if err != nil {
		return nil, setupError(err, "descriptors", "pool")
	}
	return &CoreDescriptorPool{device: b.device, pool: h, sets_left: b.max_sets, left: left}, nil
}

//CoreDescriptorPool hands out sets until its startup capacity runs out.
//Sets are never freed individually; they die with the pool.
type CoreDescriptorPool struct {
	device    *CoreDevice
	pool      driver.DescriptorPool
	sets_left uint32
	left      map[driver.DescriptorKind]uint32
}

//Allocate returns a set for layout or ErrDescriptorPoolExhausted
func (p *CoreDescriptorPool) Allocate(layout *CoreDescriptorSetLayout) (driver.DescriptorSet, error) {
	if p.sets_left == 0 {
		return 0, errors.Wrap(ErrDescriptorPoolExhausted, "no sets left")
	}
	need := make(map[driver.DescriptorKind]uint32, len(layout.ordered))
	for _, d := range layout.ordered {
		need[d.Kind] += d.Count
	}
	for k, n := range need {
		if p.left[k] < n {
			return 0, errors.Wrapf(ErrDescriptorPoolExhausted, "%s: %d left, %d needed", k, p.left[k], n)
		}
	}
	set, err := p.device.gpu.AllocateDescriptorSet(p.pool, layout.layout)
	if err != nil {
		if errors.Is(err, driver.ErrOutOfPoolMemory) {
			return 0, errors.Mark(err, ErrDescriptorPoolExhausted)
		}
		return 0, errors.Wrap(err, "allocating descriptor set")
	}
	p.sets_left--
	for k, n := range need {
		p.left[k] -= n
	}
	return set, nil
}

//Remaining reports how many more sets can be allocated
func (p *CoreDescriptorPool) Remaining() uint32 { return p.sets_left }

//Destroy frees the pool and implicitly every set allocated from it
func (p *CoreDescriptorPool) Destroy() {
	p.device.gpu.DestroyDescriptorPool(p.pool)
}

type pendingWrite struct {
	binding uint32
	kind    driver.DescriptorKind
	buffer  *driver.DescriptorBufferInfo
	image   *driver.DescriptorImageInfo
}

//DescriptorWriter batches binding updates for one or more sets sharing a layout.
//Nothing reaches the driver until Write validates every pending binding.
type DescriptorWriter struct {
	device  *CoreDevice
	layout  *CoreDescriptorSetLayout
	sets    []driver.DescriptorSet
	pending []pendingWrite
}

func NewDescriptorWriter(device *CoreDevice, layout *CoreDescriptorSetLayout, sets ...driver.DescriptorSet) *DescriptorWriter {
	assertf(len(sets) > 0, "descriptor writer without target sets")
	return &DescriptorWriter{device: device, layout: layout, sets: sets}
}

//SetBuffer queues a uniform buffer range for binding
func (w *DescriptorWriter) SetBuffer(binding uint32, info driver.DescriptorBufferInfo) *DescriptorWriter {
	w.pending = append(w.pending, pendingWrite{binding: binding, kind: driver.DescriptorUniformBuffer, buffer: &info})
	return w
}

//SetTexture queues a combined image sampler for binding
func (w *DescriptorWriter) SetTexture(binding uint32, info driver.DescriptorImageInfo) *DescriptorWriter {
	w.pending = append(w.pending, pendingWrite{binding: binding, kind: driver.DescriptorCombinedImageSampler, image: &info})
	return w
}

//Write validates the queued bindings and issues them in one driver update.
//On error nothing is written and the queue is kept for inspection.
func (w *DescriptorWriter) Write() error {
	for _, p := range w.pending {
		d, ok := w.layout.Binding(p.binding)
		if !ok {
			return errors.Wrapf(ErrUnknownBinding, "binding %d", p.binding)
		}
		if compatibleKind(d.Kind) != p.kind {
			return errors.Wrapf(ErrBindingKindMismatch, "binding %d declared %s, written %s", p.binding, d.Kind, p.kind)
		}
	}
	if len(w.pending) == 0 {
		return nil
	}
	writes := make([]driver.DescriptorWrite, 0, len(w.pending)*len(w.sets))
	for _, set := range w.sets {
		for _, p := range w.pending {
			d, _ := w.layout.Binding(p.binding)
			writes = append(writes, driver.DescriptorWrite{Set: set, Binding: p.binding, Kind: d.Kind, Buffer: p.buffer, Image: p.image})
		}
	}
	w.device.gpu.UpdateDescriptorSets(writes)
	w.pending = w.pending[:0]
	return nil
}

//Reset drops queued bindings without writing them
func (w *DescriptorWriter) Reset() { w.pending = w.pending[:0] }

//compatibleKind folds storage buffers onto the buffer write path
func compatibleKind(k driver.DescriptorKind) driver.DescriptorKind {
	if k.IsBuffer() {
		return driver.DescriptorUniformBuffer
	}
	return k
}
