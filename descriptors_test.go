package scopvk

import (
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/andewx/scopvk/driver"
	"github.com/andewx/scopvk/driver/simdriver"
)

func TestSetLayoutBuilder(t *testing.T) {
	device, gpu := newTestDevice(t, simdriver.DefaultOptions())

	_, err := NewDescriptorSetLayoutBuilder(device).
		AddBufferBinding(0, driver.ShaderVertex).
		AddTextureBinding(0, driver.ShaderFragment).
		Build()
	if !errors.Is(err, ErrDuplicateBinding) {
		t.Errorf("duplicate binding: %v", err)
	}
	if gpu.Live()["descriptor-set-layout"] != 0 {
		t.Error("rejected layout reached the driver")
	}

	l, err := NewDescriptorSetLayoutBuilder(device).
		AddTextureBinding(2, driver.ShaderFragment).
		AddBufferBinding(0, driver.ShaderVertex).
		Build()
	if err != nil {
		t.Fatal(err)
	}
	defer l.Destroy()
	b := l.Bindings()
	if len(b) != 2 || b[0].Binding != 0 || b[1].Binding != 2 {
		t.Errorf("bindings %+v", b)
	}
	if d, ok := l.Binding(2); !ok || d.Kind != driver.DescriptorCombinedImageSampler || d.Count != 1 {
		t.Errorf("binding 2 = %+v, %v", d, ok)
	}
	if _, ok := l.Binding(1); ok {
		t.Error("binding 1 declared")
	}
}

func TestDescriptorWriter(t *testing.T) {
	device, gpu := newTestDevice(t, simdriver.DefaultOptions())
	layout, err := NewDescriptorSetLayoutBuilder(device).AddBufferBinding(0, driver.ShaderVertex).Build()
	if err != nil {
		t.Fatal(err)
	}
	defer layout.Destroy()
	pool, err := NewDescriptorPoolBuilder(device).MaxSets(2).AddSize(driver.DescriptorUniformBuffer, 2).Build()
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Destroy()
	a, err := pool.Allocate(layout)
	if err != nil {
		t.Fatal(err)
	}
	b, err := pool.Allocate(layout)
	if err != nil {
		t.Fatal(err)
	}
	buf, err := NewCoreBuffer(device, BufferInfo{InstanceSize: 128, InstanceCount: 1, Usage: driver.BufferUniform, Memory: MemoryHostVisible})
	if err != nil {
		t.Fatal(err)
	}
	defer buf.Destroy()

	updates := gpu.DescriptorUpdates()
	err = NewDescriptorWriter(device, layout, a).SetBuffer(0, buf.DescriptorInfo()).SetBuffer(3, buf.DescriptorInfo()).Write()
	if !errors.Is(err, ErrUnknownBinding) {
		t.Errorf("unknown binding: %v", err)
	}
	err = NewDescriptorWriter(device, layout, a).SetTexture(0, driver.DescriptorImageInfo{}).Write()
	if !errors.Is(err, ErrBindingKindMismatch) {
		t.Errorf("texture into a buffer binding: %v", err)
	}
	if gpu.DescriptorUpdates() != updates {
		t.Fatal("a rejected write reached the driver")
	}
	if _, ok := gpu.Descriptor(a, 0); ok {
		t.Fatal("rejected write is visible")
	}

	w := NewDescriptorWriter(device, layout, a, b).SetBuffer(0, buf.DescriptorInfo())
	if err := w.Write(); err != nil {
		t.Fatal(err)
	}
	if gpu.DescriptorUpdates() != updates+1 {
		t.Errorf("%d driver updates for one write", gpu.DescriptorUpdates()-updates)
	}
	for _, set := range []driver.DescriptorSet{a, b} {
		d, ok := gpu.Descriptor(set, 0)
		if !ok || d.Buffer == nil || d.Buffer.Buffer != buf.Handle() || d.Buffer.Range != 128 {
			t.Errorf("set %d binding 0 = %+v, %v", set, d, ok)
		}
	}
	//the queue is drained by a successful write
	if err := w.Write(); err != nil || gpu.DescriptorUpdates() != updates+1 {
		t.Errorf("empty write: %v, %d updates", err, gpu.DescriptorUpdates()-updates)
	}
}

func TestDescriptorPoolExhaustion(t *testing.T) {
	device, _ := newTestDevice(t, simdriver.DefaultOptions())
	tex := textureLayout(t, device)
	defer tex.Destroy()
	ubo, err := NewDescriptorSetLayoutBuilder(device).AddBufferBinding(0, driver.ShaderVertex).Build()
	if err != nil {
		t.Fatal(err)
	}
	defer ubo.Destroy()

	pool, err := NewDescriptorPoolBuilder(device).MaxSets(2).AddSize(driver.DescriptorCombinedImageSampler, 1).Build()
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Destroy()

	if _, err := pool.Allocate(ubo); !errors.Is(err, ErrDescriptorPoolExhausted) {
		t.Errorf("uniform set from a sampler only pool: %v", err)
	}
	if _, err := pool.Allocate(tex); err != nil {
		t.Fatal(err)
	}
	if pool.Remaining() != 1 {
		t.Errorf("%d sets remaining", pool.Remaining())
	}
	_, err = pool.Allocate(tex)
	if !errors.Is(err, ErrDescriptorPoolExhausted) || !IsResourceExhaustion(err) {
		t.Errorf("second sampler set: %v", err)
	}
	if pool.Remaining() != 1 {
		t.Errorf("failed allocation consumed a set, %d remaining", pool.Remaining())
	}
}

func TestPoolSizesFor(t *testing.T) {
	for _, c := range []struct{ frames, instances, bindings int }{
		{3, 16, 1},
		{2, 4, 3},
		{1, 1, 1},
	} {
		max_sets, sizes := PoolSizesFor(c.frames, c.instances, c.bindings)
		if want := uint32(c.frames*c.instances + c.frames); max_sets != want {
			t.Errorf("%+v: max sets %d, want %d", c, max_sets, want)
		}
		got := make(map[driver.DescriptorKind]uint32)
		for _, s := range sizes {
			got[s.Kind] += s.Count
		}
		per := uint32(c.frames * c.instances * c.bindings)
		if got[driver.DescriptorUniformBuffer] != per+uint32(c.frames) {
			t.Errorf("%+v: %d uniform descriptors", c, got[driver.DescriptorUniformBuffer])
		}
		if got[driver.DescriptorCombinedImageSampler] != per {
			t.Errorf("%+v: %d sampler descriptors", c, got[driver.DescriptorCombinedImageSampler])
		}
	}
}
