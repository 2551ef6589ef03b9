package scopvk

import (
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/andewx/scopvk/driver"
	"github.com/andewx/scopvk/driver/simdriver"
)

func newTexturedMaterial(t *testing.T, r *CoreRenderer, name string) MaterialID {
	t.Helper()
	vert, frag := testShaders(t, r.Device())
	id, err := r.Materials().NewMaterial(MaterialInfo{
		Name:       name,
		Vertex:     vert,
		Fragment:   frag,
		SetLayouts: []*CoreDescriptorSetLayout{textureLayout(t, r.Device())},
	})
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func newTestTexture(t *testing.T, r *CoreRenderer) *CoreTexture {
	t.Helper()
	tex, err := NewCoreTexture(r.Device(), r.SetupPool(), gradient(2, 2), 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(tex.Destroy)
	return tex
}

func TestMaterialInstances(t *testing.T) {
	r, _ := newTestRenderer(t, simdriver.DefaultOptions(), DefaultRendererConfig())
	bank := r.Materials()
	mat := newTexturedMaterial(t, r, "checker")

	start := r.desc_pool.Remaining()
	a, err := bank.Instantiate(mat)
	if err != nil {
		t.Fatal(err)
	}
	if used := start - r.desc_pool.Remaining(); used != 3 {
		t.Errorf("instance took %d sets, want one per frame in flight", used)
	}
	if bank.Material(mat).Instances() != 1 || bank.Instance(a).Material() != mat {
		t.Error("instance not linked to its material")
	}
	sets := append([]driver.DescriptorSet(nil), bank.Instance(a).Sets(0)...)
	sets = append(sets, bank.Instance(a).Sets(1)...)
	sets = append(sets, bank.Instance(a).Sets(2)...)

	bank.FreeInstance(a)
	mustPanic(t, "freed instance lookup", func() { bank.Instance(a) })
	b, err := bank.Instantiate(mat)
	if err != nil {
		t.Fatal(err)
	}
	if b == a {
		t.Error("freed id handed out again")
	}
	if used := start - r.desc_pool.Remaining(); used != 3 {
		t.Errorf("reinstantiation allocated from the pool, %d sets used", used)
	}
	for f := 0; f < 3; f++ {
		if got := bank.Instance(b).Sets(f)[0]; got != sets[f] {
			t.Errorf("frame %d set %d not recycled from %d", f, got, sets[f])
		}
	}

	mustPanic(t, "freeing a material with live instances", func() { bank.FreeMaterial(mat) })
	bank.FreeInstance(b)
	bank.FreeMaterial(mat)
	mustPanic(t, "freed material lookup", func() { bank.Material(mat) })
}

func TestMaterialWriters(t *testing.T) {
	r, gpu := newTestRenderer(t, simdriver.DefaultOptions(), DefaultRendererConfig())
	bank := r.Materials()
	mat := newTexturedMaterial(t, r, "checker")
	tex := newTestTexture(t, r)

	a, err := bank.Instantiate(mat)
	if err != nil {
		t.Fatal(err)
	}
	if err := bank.Writer(a, 1).SetTexture(0, tex.DescriptorInfo()).Write(); err != nil {
		t.Fatal(err)
	}
	for f := 0; f < 3; f++ {
		d, ok := gpu.Descriptor(bank.Instance(a).Sets(f)[0], 0)
		if !ok || d.Image == nil || d.Image.View != tex.Image().View() {
			t.Errorf("frame %d binding 0 = %+v, %v", f, d, ok)
		}
	}

	b, err := bank.Instantiate(mat)
	if err != nil {
		t.Fatal(err)
	}
	if err := bank.WriterFor(b, 1, 1).SetTexture(0, tex.DescriptorInfo()).Write(); err != nil {
		t.Fatal(err)
	}
	for f := 0; f < 3; f++ {
		_, ok := gpu.Descriptor(bank.Instance(b).Sets(f)[0], 0)
		if ok != (f == 1) {
			t.Errorf("frame %d written = %v", f, ok)
		}
	}
	if err := bank.Writer(b, 1).SetBuffer(0, driver.DescriptorBufferInfo{}).Write(); !errors.Is(err, ErrBindingKindMismatch) {
		t.Errorf("buffer into a texture binding: %v", err)
	}
	mustPanic(t, "set index past the material", func() { bank.Writer(b, 2) })
	mustPanic(t, "global set through the bank", func() { bank.Writer(b, 0) })
}

func TestMaterialPoolExhaustion(t *testing.T) {
	config := DefaultRendererConfig()
	config.FramesInFlight = 2
	config.MaxMaterialInstances = 1
	r, _ := newTestRenderer(t, simdriver.DefaultOptions(), config)
	mat := newTexturedMaterial(t, r, "checker")

	if _, err := r.Materials().Instantiate(mat); err != nil {
		t.Fatal(err)
	}
	_, err := r.Materials().Instantiate(mat)
	if !errors.Is(err, ErrDescriptorPoolExhausted) || !IsResourceExhaustion(err) {
		t.Errorf("instance past capacity: %v", err)
	}
	if r.desc_pool.Remaining() != 0 {
		t.Errorf("%d sets remaining", r.desc_pool.Remaining())
	}
}

func TestMaterialRejectedPipeline(t *testing.T) {
	opts := simdriver.DefaultOptions()
	opts.RejectPipelines = true
	r, gpu := newTestRenderer(t, opts, DefaultRendererConfig())
	vert, frag := testShaders(t, r.Device())
	layout := textureLayout(t, r.Device())
	defer layout.Destroy()

	_, err := r.Materials().NewMaterial(MaterialInfo{Name: "broken", Vertex: vert, Fragment: frag, SetLayouts: []*CoreDescriptorSetLayout{layout}})
	if !errors.Is(err, ErrPipelineCompilationFailed) {
		t.Errorf("rejected material: %v", err)
	}
	if gpu.Live()["pipeline"] != 0 || gpu.Live()["pipeline-layout"] != 0 {
		t.Errorf("rejected material left %v", gpu.Live())
	}
	count := 0
	r.Materials().Each(func(*CoreMaterial) { count++ })
	if count != 0 {
		t.Errorf("%d materials registered", count)
	}
}

func TestMaterialPartialInstanceKeepsSets(t *testing.T) {
	r, _ := newTestRenderer(t, simdriver.DefaultOptions(), DefaultRendererConfig())
	//sets for two instances but textures for one and a third
	pool, err := NewDescriptorPoolBuilder(r.Device()).
		MaxSets(6).
		AddSize(driver.DescriptorCombinedImageSampler, 4).
		Build()
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Destroy()
	bank := NewMaterialBank(r.Device(), pool, r.RenderPass(), r.global, 3)
	defer bank.Destroy()

	vert, frag := testShaders(t, r.Device())
	mat, err := bank.NewMaterial(MaterialInfo{Name: "tight", Vertex: vert, Fragment: frag, SetLayouts: []*CoreDescriptorSetLayout{textureLayout(t, r.Device())}})
	if err != nil {
		t.Fatal(err)
	}
	a, err := bank.Instantiate(mat)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if _, err := bank.Instantiate(mat); !errors.Is(err, ErrDescriptorPoolExhausted) {
			t.Fatalf("attempt %d: %v", i, err)
		}
		if pool.Remaining() != 2 {
			t.Errorf("attempt %d left %d sets, a partial instance leaked", i, pool.Remaining())
		}
		if n := len(bank.Material(mat).spare[0]); n != 1 {
			t.Errorf("attempt %d kept %d spare sets", i, n)
		}
	}

	bank.FreeInstance(a)
	if _, err := bank.Instantiate(mat); err != nil {
		t.Errorf("recycled instance: %v", err)
	}
}
