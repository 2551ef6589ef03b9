package simdriver

import (
	"github.com/cockroachdb/errors"

	"github.com/andewx/scopvk/driver"
)

type descriptorPool struct {
	setsLeft uint32
	left     map[driver.DescriptorKind]uint32
	sets     []driver.DescriptorSet
}

type descriptorSet struct {
	pool     driver.DescriptorPool
	layout   driver.DescriptorSetLayout
	bindings map[uint32]driver.DescriptorWrite
}

func (g *GPU) CreateDescriptorSetLayout(bindings []driver.DescriptorBinding) (driver.DescriptorSetLayout, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	seen := make(map[uint32]bool, len(bindings))
	for _, b := range bindings {
		if seen[b.Binding] {
			panic(errors.AssertionFailedf("simdriver: binding %d declared twice", b.Binding))
		}
		seen[b.Binding] = true
	}
	h := driver.DescriptorSetLayout(g.acquire(kindSetLayout))
	g.setLayouts[h] = append([]driver.DescriptorBinding(nil), bindings...)
	return h, nil
}

func (g *GPU) DestroyDescriptorSetLayout(l driver.DescriptorSetLayout) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.release(uint64(l), kindSetLayout)
	delete(g.setLayouts, l)
}

func (g *GPU) CreateDescriptorPool(maxSets uint32, sizes []driver.DescriptorPoolSize) (driver.DescriptorPool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p := &descriptorPool{setsLeft: maxSets, left: make(map[driver.DescriptorKind]uint32)}
	for _, s := range sizes {
		p.left[s.Kind] += s.Count
	}
	h := driver.DescriptorPool(g.acquire(kindDescriptorPool))
	g.descPools[h] = p
	return h, nil
}

func (g *GPU) DestroyDescriptorPool(h driver.DescriptorPool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.release(uint64(h), kindDescriptorPool)
	for _, s := range g.descPools[h].sets {
		g.release(uint64(s), kindDescriptorSet)
		delete(g.sets, s)
	}
	delete(g.descPools, h)
}

func (g *GPU) AllocateDescriptorSet(h driver.DescriptorPool, l driver.DescriptorSetLayout) (driver.DescriptorSet, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mustLive(uint64(h), kindDescriptorPool)
	g.mustLive(uint64(l), kindSetLayout)
	p := g.descPools[h]
	need := make(map[driver.DescriptorKind]uint32)
	for _, b := range g.setLayouts[l] {
		need[b.Kind] += b.Count
	}
	if p.setsLeft == 0 {
		return 0, errors.Wrap(driver.ErrOutOfPoolMemory, "no sets left")
	}
	for k, n := range need {
		if p.left[k] < n {
			return 0, errors.Wrapf(driver.ErrOutOfPoolMemory, "%d %s descriptors left, need %d", p.left[k], k, n)
		}
	}
	for k, n := range need {
		p.left[k] -= n
	}
	p.setsLeft--
	s := driver.DescriptorSet(g.acquire(kindDescriptorSet))
	g.sets[s] = &descriptorSet{pool: h, layout: l, bindings: make(map[uint32]driver.DescriptorWrite)}
	p.sets = append(p.sets, s)
	return s, nil
}

func (g *GPU) UpdateDescriptorSets(writes []driver.DescriptorWrite) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, w := range writes {
		g.mustLive(uint64(w.Set), kindDescriptorSet)
		set := g.sets[w.Set]
		var decl *driver.DescriptorBinding
		for i, b := range g.setLayouts[set.layout] {
			if b.Binding == w.Binding {
				decl = &g.setLayouts[set.layout][i]
			}
		}
		if decl == nil {
			panic(errors.AssertionFailedf("simdriver: write to binding %d absent from the set layout", w.Binding))
		}
		if decl.Kind != w.Kind || (w.Kind.IsBuffer() && w.Buffer == nil) || (!w.Kind.IsBuffer() && w.Image == nil) {
			panic(errors.AssertionFailedf("simdriver: write of %s to binding %d declared %s", w.Kind, w.Binding, decl.Kind))
		}
		set.bindings[w.Binding] = w
	}
	g.descUpdates++
}

//Descriptor returns the last write to binding of set.
func (g *GPU) Descriptor(s driver.DescriptorSet, binding uint32) (driver.DescriptorWrite, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mustLive(uint64(s), kindDescriptorSet)
	w, ok := g.sets[s].bindings[binding]
	return w, ok
}
