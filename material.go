package scopvk

import (
	"github.com/cockroachdb/errors"

	"github.com/andewx/scopvk/driver"
)

//MaterialID and InstanceID are stable handles into a MaterialBank. Zero is
//never a valid id.
type MaterialID uint32
type InstanceID uint32

//MaterialInfo describes one pipeline. The material takes ownership of
//SetLayouts, which become sets 1.. after the global set 0.
type MaterialInfo struct {
	Name       string
	Vertex     *CoreShader
	Fragment   *CoreShader
	SetLayouts []*CoreDescriptorSetLayout
	Cull       driver.CullMode
	FrontFace  driver.FrontFace
	Blend      bool
}

//CoreMaterial is one pipeline plus the layouts its instances allocate from
type CoreMaterial struct {
	id        MaterialID
	name      string
	pipeline  *CorePipeline
	layouts   []*CoreDescriptorSetLayout
	instances int
	recycled  [][][]driver.DescriptorSet
	//spare holds unused sets per layout left over from a failed Instantiate
	spare [][]driver.DescriptorSet
}

func (m *CoreMaterial) ID() MaterialID          { return m.id }
func (m *CoreMaterial) Name() string            { return m.name }
func (m *CoreMaterial) Pipeline() *CorePipeline { return m.pipeline }
func (m *CoreMaterial) Instances() int          { return m.instances }

//CoreMaterialInstance holds one descriptor set per frame in flight for every
//material layout, indexed [frame][set-1]
type CoreMaterialInstance struct {
	id       InstanceID
	material MaterialID
	sets     [][]driver.DescriptorSet
}

func (i *CoreMaterialInstance) ID() InstanceID       { return i.id }
func (i *CoreMaterialInstance) Material() MaterialID { return i.material }

//Sets returns the instance's sets for one frame slot in set order
func (i *CoreMaterialInstance) Sets(frame int) []driver.DescriptorSet { return i.sets[frame] }

//MaterialBank is the arena owning every material and instance of a renderer
type MaterialBank struct {
	device    *CoreDevice
	pool      *CoreDescriptorPool
	pass      *CoreRenderPass
	global    *CoreDescriptorSetLayout
	frames    int
	materials []*CoreMaterial
	instances []*CoreMaterialInstance
}

func NewMaterialBank(device *CoreDevice, pool *CoreDescriptorPool, pass *CoreRenderPass, global *CoreDescriptorSetLayout, frames int) *MaterialBank {
	return &MaterialBank{device: device, pool: pool, pass: pass, global: global, frames: frames}
}

//NewMaterial builds exactly one pipeline over the global layout followed by
//the material's own layouts
func (b *MaterialBank) NewMaterial(info MaterialInfo) (MaterialID, error) {
	builder := NewPipelineBuilder(b.device).
		RenderPass(b.pass).
		SetLayouts(append([]*CoreDescriptorSetLayout{b.global}, info.SetLayouts...)...).
		Cull(info.Cull, info.FrontFace).
		Blend(info.Blend)
	if info.Vertex != nil {
		builder.Shader(info.Vertex)
	}
	if info.Fragment != nil {
		builder.Shader(info.Fragment)
	}
	pipeline, err := builder.Build()
	if err != nil {
		return 0, errors.Wrapf(err, "material %q", info.Name)
	}
	m := &CoreMaterial{
		id:       MaterialID(len(b.materials) + 1),
		name:     info.Name,
		pipeline: pipeline,
		layouts:  info.SetLayouts,
		spare:    make([][]driver.DescriptorSet, len(info.SetLayouts)),
	}
	b.materials = append(b.materials, m)
	b.device.log.Debug("material created", "name", info.Name, "id", int(m.id), "sets", len(info.SetLayouts)+1)
	return m.id, nil
}

//Material returns a live material; a stale or zero id panics
func (b *MaterialBank) Material(id MaterialID) *CoreMaterial {
	assertf(id > 0 && int(id) <= len(b.materials) && b.materials[id-1] != nil, "material %d is not live", id)
	return b.materials[id-1]
}

//Instance returns a live instance; a stale or zero id panics
func (b *MaterialBank) Instance(id InstanceID) *CoreMaterialInstance {
	assertf(id > 0 && int(id) <= len(b.instances) && b.instances[id-1] != nil, "material instance %d is not live", id)
	return b.instances[id-1]
}

//Instantiate allocates one set per frame in flight for each material layout.
//Sets released by FreeInstance are reused before the pool is touched.
func (b *MaterialBank) Instantiate(id MaterialID) (InstanceID, error) {
	m := b.Material(id)
	var sets [][]driver.DescriptorSet
	if n := len(m.recycled); n > 0 {
		sets, m.recycled = m.recycled[n-1], m.recycled[:n-1]
	} else {
		spare := 0
		for _, s := range m.spare {
			spare += len(s)
		}
		if need := uint32(b.frames*len(m.layouts) - spare); need > b.pool.Remaining() {
			return 0, errors.Wrapf(ErrDescriptorPoolExhausted, "material %q needs %d sets, %d left", m.name, need, b.pool.Remaining())
		}
		sets = make([][]driver.DescriptorSet, b.frames)
		for f := range sets {
			sets[f] = make([]driver.DescriptorSet, len(m.layouts))
			for l := range m.layouts {
				set, err := b.takeSet(m, l)
				if err != nil {
					m.keepSpare(sets)
					return 0, errors.Wrapf(err, "instance of material %q", m.name)
				}
				sets[f][l] = set
			}
		}
	}
	inst := &CoreMaterialInstance{id: InstanceID(len(b.instances) + 1), material: id, sets: sets}
	b.instances = append(b.instances, inst)
	m.instances++
	return inst.id, nil
}

//takeSet reuses a spare set of layout l before allocating from the pool
func (b *MaterialBank) takeSet(m *CoreMaterial, l int) (driver.DescriptorSet, error) {
	if n := len(m.spare[l]); n > 0 {
		set := m.spare[l][n-1]
		m.spare[l] = m.spare[l][:n-1]
		return set, nil
	}
	return b.pool.Allocate(m.layouts[l])
}

//keepSpare holds on to the sets of a partially built instance
func (m *CoreMaterial) keepSpare(sets [][]driver.DescriptorSet) {
	for _, row := range sets {
		for l, set := range row {
			if set != 0 {
				m.spare[l] = append(m.spare[l], set)
			}
		}
	}
}

//Writer targets the instance's set at set_index (1 based, after the global
//set) in every frame slot
func (b *MaterialBank) Writer(id InstanceID, set_index int) *DescriptorWriter {
	inst := b.Instance(id)
	layout := b.layoutFor(inst, set_index)
	targets := make([]driver.DescriptorSet, b.frames)
	for f := range targets {
		targets[f] = inst.sets[f][set_index-1]
	}
	return NewDescriptorWriter(b.device, layout, targets...)
}

//WriterFor targets the instance's set at set_index for one frame slot
func (b *MaterialBank) WriterFor(id InstanceID, set_index, frame int) *DescriptorWriter {
	inst := b.Instance(id)
	layout := b.layoutFor(inst, set_index)
	assertf(frame >= 0 && frame < b.frames, "frame %d of %d", frame, b.frames)
	return NewDescriptorWriter(b.device, layout, inst.sets[frame][set_index-1])
}

func (b *MaterialBank) layoutFor(inst *CoreMaterialInstance, set_index int) *CoreDescriptorSetLayout {
	m := b.Material(inst.material)
	assertf(set_index >= 1 && set_index <= len(m.layouts), "set %d of material %q with %d sets", set_index, m.name, len(m.layouts))
	return m.layouts[set_index-1]
}

//FreeInstance retires the id and keeps its sets for the next instance of
//the same material
func (b *MaterialBank) FreeInstance(id InstanceID) {
	inst := b.Instance(id)
	m := b.Material(inst.material)
	m.recycled = append(m.recycled, inst.sets)
	m.instances--
	b.instances[id-1] = nil
}

//FreeMaterial destroys the pipeline and the material's layouts. Every
//instance must have been freed first.
func (b *MaterialBank) FreeMaterial(id MaterialID) {
	m := b.Material(id)
	assertf(m.instances == 0, "material %q freed with %d live instances", m.name, m.instances)
	m.pipeline.Destroy()
	for _, l := range m.layouts {
		l.Destroy()
	}
	b.materials[id-1] = nil
}

//Each visits live materials in id order
func (b *MaterialBank) Each(fn func(m *CoreMaterial)) {
	for _, m := range b.materials {
		if m != nil {
			fn(m)
		}
	}
}

//Destroy frees instances then materials. Descriptor sets go with the pool.
func (b *MaterialBank) Destroy() {
	for _, inst := range b.instances {
		if inst != nil {
			b.FreeInstance(inst.id)
		}
	}
	for _, m := range b.materials {
		if m != nil {
			b.FreeMaterial(m.id)
		}
	}
}
