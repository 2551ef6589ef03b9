package vkdriver

import (
	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/scopvk/driver"
)

type descriptorSet struct {
	set  vk.DescriptorSet
	pool driver.DescriptorPool
}

func (g *GPU) CreateDescriptorSetLayout(bindings []driver.DescriptorBinding) (driver.DescriptorSetLayout, error) {
	list := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, b := range bindings {
		count := b.Count
		if count == 0 {
			count = 1
		}
		list[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  toDescriptorType(b.Kind),
			DescriptorCount: count,
			StageFlags:      toShaderStages(b.Stages),
		}
	}
	var layout vk.DescriptorSetLayout
	ret := vk.CreateDescriptorSetLayout(g.device, &vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(list)),
		PBindings:    list,
	}, nil, &layout)
	if err := newError(ret, "creating descriptor set layout"); err != nil {
		return 0, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return driver.DescriptorSetLayout(g.setLayouts.put(layout)), nil
}

func (g *GPU) DestroyDescriptorSetLayout(l driver.DescriptorSetLayout) {
	g.mu.Lock()
	layout := g.setLayouts.take(uint64(l))
	g.mu.Unlock()
	vk.DestroyDescriptorSetLayout(g.device, layout, nil)
}

func (g *GPU) CreateDescriptorPool(maxSets uint32, sizes []driver.DescriptorPoolSize) (driver.DescriptorPool, error) {
	list := make([]vk.DescriptorPoolSize, len(sizes))
	for i, s := range sizes {
		list[i] = vk.DescriptorPoolSize{
			Type:            toDescriptorType(s.Kind),
			DescriptorCount: s.Count,
		}
	}
	var pool vk.DescriptorPool
	ret := vk.CreateDescriptorPool(g.device, &vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       maxSets,
		PoolSizeCount: uint32(len(list)),
		PPoolSizes:    list,
	}, nil, &pool)
	if err := newError(ret, "creating descriptor pool"); err != nil {
		return 0, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return driver.DescriptorPool(g.descPools.put(pool)), nil
}

//DestroyDescriptorPool frees every set allocated from p with it
func (g *GPU) DestroyDescriptorPool(p driver.DescriptorPool) {
	g.mu.Lock()
	pool := g.descPools.take(uint64(p))
	g.sets.drop(func(s descriptorSet) bool { return s.pool == p })
	g.mu.Unlock()
	vk.DestroyDescriptorPool(g.device, pool, nil)
}

func (g *GPU) AllocateDescriptorSet(p driver.DescriptorPool, l driver.DescriptorSetLayout) (driver.DescriptorSet, error) {
	g.mu.Lock()
	pool := g.descPools.get(uint64(p))
	layout := g.setLayouts.get(uint64(l))
	g.mu.Unlock()

	var set vk.DescriptorSet
	ret := vk.AllocateDescriptorSets(g.device, &vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout},
	}, &set)
	if err := newError(ret, "allocating descriptor set"); err != nil {
		return 0, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return driver.DescriptorSet(g.sets.put(descriptorSet{set: set, pool: p})), nil
}

//UpdateDescriptorSets issues every write in one call
func (g *GPU) UpdateDescriptorSets(writes []driver.DescriptorWrite) {
	if len(writes) == 0 {
		return
	}
	list := make([]vk.WriteDescriptorSet, len(writes))
	for i, w := range writes {
		g.mu.Lock()
		set := g.sets.get(uint64(w.Set)).set
		g.mu.Unlock()
		list[i] = vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      w.Binding,
			DescriptorCount: 1,
			DescriptorType:  toDescriptorType(w.Kind),
		}
		switch {
		case w.Buffer != nil:
			list[i].PBufferInfo = []vk.DescriptorBufferInfo{{
				Buffer: g.buffer(w.Buffer.Buffer),
				Offset: vk.DeviceSize(w.Buffer.Offset),
				Range:  vk.DeviceSize(w.Buffer.Range),
			}}
		case w.Image != nil:
			g.mu.Lock()
			sampler := g.samplers.get(uint64(w.Image.Sampler))
			g.mu.Unlock()
			list[i].PImageInfo = []vk.DescriptorImageInfo{{
				Sampler:     sampler,
				ImageView:   g.view(w.Image.View),
				ImageLayout: toLayout(w.Image.Layout),
			}}
		}
	}
	vk.UpdateDescriptorSets(g.device, uint32(len(list)), list, 0, nil)
}
