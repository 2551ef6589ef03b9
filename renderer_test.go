package scopvk

import (
	"bytes"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/andewx/scopvk/driver"
	"github.com/andewx/scopvk/driver/simdriver"
)

//lastFrame returns the commands of the most recent frame submission
func lastFrame(t *testing.T, gpu *simdriver.GPU) []simdriver.Command {
	t.Helper()
	subs := gpu.Submissions()
	for i := len(subs) - 1; i >= 0; i-- {
		if len(subs[i].Signal) > 0 && len(subs[i].Commands) > 0 {
			return subs[i].Commands[0]
		}
	}
	t.Fatal("no frame submitted")
	return nil
}

func commandsOf(cmds []simdriver.Command, op simdriver.Op) []simdriver.Command {
	var out []simdriver.Command
	for _, c := range cmds {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func newTestCube(t *testing.T, r *CoreRenderer) MeshID {
	t.Helper()
	cube, err := NewCubeMesh(r.Device(), r.SetupPool())
	if err != nil {
		t.Fatal(err)
	}
	return r.AddMesh(cube)
}

func TestDrawSorting(t *testing.T) {
	r, gpu := newTestRenderer(t, simdriver.DefaultOptions(), DefaultRendererConfig())
	bank := r.Materials()
	first, second := newTexturedMaterial(t, r, "first"), newTexturedMaterial(t, r, "second")
	a, err := bank.Instantiate(first)
	if err != nil {
		t.Fatal(err)
	}
	b, err := bank.Instantiate(second)
	if err != nil {
		t.Fatal(err)
	}
	mesh := newTestCube(t, r)

	scene := &scriptedScene{}
	for i := 0; i < 10; i++ {
		inst := a
		if i%2 == 1 {
			inst = b
		}
		scene.draws = append(scene.draws, Drawable{Mesh: mesh, Instance: inst, Model: mgl32.Ident4()})
	}
	if err := r.RenderFrame(scene, nil); err != nil {
		t.Fatal(err)
	}
	stats := r.LastStats()
	if stats.PipelineBinds != 2 || stats.DescriptorBinds != 2 || stats.Draws != 10 || stats.MeshBinds != 1 {
		t.Errorf("stats %+v", stats)
	}
	if !gpu.FenceSignaled(r.swapchain.slots[0].in_flight) {
		t.Error("frame fence not signaled after submission")
	}

	cmds := lastFrame(t, gpu)
	if vb := commandsOf(cmds, simdriver.OpBindVertexBuffers); len(vb) != 1 || vb[0].Buffers[0] != r.Mesh(mesh).(*CoreMesh).vertices.Handle() {
		t.Errorf("vertex buffer binds %+v, want one for the shared mesh", vb)
	}
	if n := len(commandsOf(cmds, simdriver.OpBindIndexBuffer)); n != 1 {
		t.Errorf("%d index buffer binds", n)
	}
	if n := len(commandsOf(cmds, simdriver.OpDrawIndexed)); n != 10 {
		t.Errorf("%d indexed draws recorded", n)
	}
	if n := len(commandsOf(cmds, simdriver.OpPushConstants)); n != 10 {
		t.Errorf("%d push constant updates, want one per draw", n)
	}
	binds := commandsOf(cmds, simdriver.OpBindDescriptorSets)
	if len(binds) != 2 {
		t.Fatalf("%d descriptor binds", len(binds))
	}
	global := r.frames[0].global_set
	for i, inst := range []InstanceID{a, b} {
		c := binds[i]
		if c.FirstSet != 0 || len(c.Sets) != 2 || c.Sets[0] != global || c.Sets[1] != bank.Instance(inst).Sets(0)[0] {
			t.Errorf("bind %d: first %d sets %v", i, c.FirstSet, c.Sets)
		}
	}
	pipes := commandsOf(cmds, simdriver.OpBindPipeline)
	if len(pipes) != 2 || pipes[0].Pipeline != bank.Material(first).Pipeline().Handle() {
		t.Errorf("pipeline binds %+v", pipes)
	}
}

func TestInstanceRebindsFromSetOne(t *testing.T) {
	r, gpu := newTestRenderer(t, simdriver.DefaultOptions(), DefaultRendererConfig())
	bank := r.Materials()
	mat := newTexturedMaterial(t, r, "shared")
	a, err := bank.Instantiate(mat)
	if err != nil {
		t.Fatal(err)
	}
	b, err := bank.Instantiate(mat)
	if err != nil {
		t.Fatal(err)
	}
	mesh := newTestCube(t, r)

	scene := &scriptedScene{draws: []Drawable{
		{Mesh: mesh, Instance: b},
		{Mesh: mesh, Instance: a},
		{Mesh: mesh, Instance: b},
	}}
	if err := r.RenderFrame(scene, nil); err != nil {
		t.Fatal(err)
	}
	if s := r.LastStats(); s.PipelineBinds != 1 || s.DescriptorBinds != 2 || s.MeshBinds != 1 || s.Draws != 3 {
		t.Errorf("stats %+v", s)
	}
	binds := commandsOf(lastFrame(t, gpu), simdriver.OpBindDescriptorSets)
	if len(binds) != 2 {
		t.Fatalf("%d descriptor binds", len(binds))
	}
	if binds[0].FirstSet != 0 || len(binds[0].Sets) != 2 || binds[0].Sets[1] != bank.Instance(a).Sets(0)[0] {
		t.Errorf("first bind %+v", binds[0])
	}
	if binds[1].FirstSet != 1 || len(binds[1].Sets) != 1 || binds[1].Sets[0] != bank.Instance(b).Sets(0)[0] {
		t.Errorf("second bind %+v", binds[1])
	}
}

func TestPushConstantsAndUniforms(t *testing.T) {
	r, gpu := newTestRenderer(t, simdriver.DefaultOptions(), DefaultRendererConfig())
	mat := newTexturedMaterial(t, r, "plain")
	inst, err := r.Materials().Instantiate(mat)
	if err != nil {
		t.Fatal(err)
	}
	mesh := newTestCube(t, r)

	model := mgl32.Translate3D(1, 2, 3).Mul4(mgl32.Scale3D(2, 2, 2))
	camera := GlobalUniforms{
		Projection: VulkanProjectionMat(mgl32.Perspective(mgl32.DegToRad(60), 4.0/3, 0.1, 100)),
		View:       mgl32.LookAtV(mgl32.Vec3{0, 0, -20}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0}),
	}
	scene := &scriptedScene{camera: camera, draws: []Drawable{{Mesh: mesh, Instance: inst, Model: model, Normal: NormalMatrix(model)}}}
	r.SetBlend(0.25)
	if err := r.RenderFrame(scene, nil); err != nil {
		t.Fatal(err)
	}

	push := commandsOf(lastFrame(t, gpu), simdriver.OpPushConstants)
	if len(push) != 1 || len(push[0].Data) != PushConstantSize || push[0].Count != 0 {
		t.Fatalf("push constants %+v", push)
	}
	var got mgl32.Mat4
	getFloats(push[0].Data[pushModelOffset:], got[:])
	if got != model {
		t.Errorf("model pushed as %v", got)
	}
	var blend [1]float32
	getFloats(push[0].Data[pushBlendOffset:], blend[:])
	if blend[0] != 0.25 {
		t.Errorf("blend pushed as %v", blend[0])
	}

	ubo := gpu.BufferData(r.frames[0].uniforms.Handle())
	if !bytes.Equal(ubo[:GlobalUniformSize], camera.Bytes()) {
		t.Error("frame uniforms do not hold the camera")
	}
	d, ok := gpu.Descriptor(r.frames[0].global_set, 0)
	if !ok || d.Buffer == nil || d.Buffer.Buffer != r.frames[0].uniforms.Handle() {
		t.Errorf("global set binding 0 = %+v", d)
	}

	r.SetBlend(3)
	if r.Blend() != 1 {
		t.Errorf("blend %v not clamped", r.Blend())
	}
	r.SetBlend(-1)
	if r.Blend() != 0 {
		t.Errorf("blend %v not clamped", r.Blend())
	}
}

func TestRendererDestroyReleasesEverything(t *testing.T) {
	device, gpu := newTestDevice(t, simdriver.DefaultOptions())
	r, err := NewCoreRenderer(device, DefaultRendererConfig())
	if err != nil {
		t.Fatal(err)
	}
	vert, err := NewCoreShader(device, []byte{1, 2, 3, 4}, driver.ShaderVertex)
	if err != nil {
		t.Fatal(err)
	}
	frag, err := NewCoreShader(device, []byte{1, 2, 3, 4}, driver.ShaderFragment)
	if err != nil {
		t.Fatal(err)
	}
	mat, err := r.Materials().NewMaterial(MaterialInfo{Name: "plain", Vertex: vert, Fragment: frag, SetLayouts: []*CoreDescriptorSetLayout{textureLayout(t, device)}})
	if err != nil {
		t.Fatal(err)
	}
	vert.Destroy()
	frag.Destroy()
	inst, err := r.Materials().Instantiate(mat)
	if err != nil {
		t.Fatal(err)
	}
	mesh := newTestCube(t, r)
	scene := &scriptedScene{draws: []Drawable{{Mesh: mesh, Instance: inst}}}
	for i := 0; i < 5; i++ {
		if err := r.RenderFrame(scene, nil); err != nil {
			t.Fatal(err)
		}
	}

	r.Destroy()
	if n := gpu.LiveTotal(); n != 0 {
		t.Errorf("%d objects outlive the renderer: %v", n, gpu.LiveKinds())
	}
	mustPanic(t, "second destroy", r.Destroy)
	mustPanic(t, "render after destroy", func() { r.RenderFrame(scene, nil) })
}

func TestRendererSetupFailureReleases(t *testing.T) {
	opts := simdriver.DefaultOptions()
	//room for the depth image and one frame's uniforms
	opts.MemoryBudget = 800*600*4 + 256 + 100
	device, gpu := newTestDevice(t, opts)
	_, err := NewCoreRenderer(device, DefaultRendererConfig())
	if !IsSetupError(err) || !IsResourceExhaustion(err) {
		t.Fatalf("renderer over budget: %v", err)
	}
	if n := gpu.LiveTotal(); n != 0 {
		t.Errorf("failed setup left %v", gpu.Live())
	}
	if gpu.Allocated() != 0 {
		t.Errorf("%d bytes still allocated", gpu.Allocated())
	}

	opts = simdriver.DefaultOptions()
	opts.DepthFormats = nil
	device, _ = newTestDevice(t, opts)
	if _, err := NewCoreRenderer(device, DefaultRendererConfig()); !errors.Is(err, ErrNoDepthFormat) {
		t.Errorf("renderer without a depth format: %v", err)
	}
}
