package scene

import (
	"io"
	"math"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/exp/slog"

	"github.com/andewx/scopvk"
	"github.com/andewx/scopvk/driver"
	"github.com/andewx/scopvk/driver/simdriver"
)

type keys struct {
	held    map[string]bool
	pressed map[string]bool
}

func (k keys) KeyHeld(key string) bool    { return k.held[key] }
func (k keys) KeyPressed(key string) bool { return k.pressed[key] }

func near(a, b float32) bool { return math.Abs(float64(a-b)) < 1e-4 }

func newCore(t *testing.T) (*scopvk.BaseCore, *simdriver.GPU) {
	t.Helper()
	gpu := simdriver.New(simdriver.DefaultOptions())
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	core, err := scopvk.NewBaseCoreWithLogger(scopvk.DefaultUsage(), gpu, log, nil)
	if err != nil {
		t.Fatalf("NewBaseCore: %v", err)
	}
	t.Cleanup(core.Destroy)
	return core, gpu
}

func TestRegistryGenerations(t *testing.T) {
	r := NewRegistry()
	a := r.Add(Object{Name: "a"})
	b := r.Add(Object{Name: "b"})
	if r.Len() != 2 {
		t.Fatalf("Len = %d, want 2", r.Len())
	}
	if got := r.Get(a); got == nil || got.Name != "a" {
		t.Fatalf("Get(a) = %v", got)
	}
	if err := r.Remove(a); err != nil {
		t.Fatal(err)
	}
	if r.Get(a) != nil {
		t.Error("removed id still resolves")
	}
	if err := r.Remove(a); err == nil {
		t.Error("second Remove succeeded")
	}

	c := r.Add(Object{Name: "c"})
	if c.index() != a.index() {
		t.Errorf("slot not reused: %d vs %d", c.index(), a.index())
	}
	if c == a || r.Get(a) != nil {
		t.Error("stale id resolves to the new object")
	}
	if r.Get(c).Name != "c" || r.Get(b).Name != "b" {
		t.Error("live objects lost")
	}
	if r.Get(0) != nil {
		t.Error("zero id resolves")
	}

	var names []string
	r.Each(func(_ ID, o *Object) { names = append(names, o.Name) })
	if len(names) != 2 || names[0] != "c" || names[1] != "b" {
		t.Errorf("Each visited %v", names)
	}
}

func TestTransformMatrix(t *testing.T) {
	var zero Transform
	if !zero.Matrix().ApproxEqual(mgl32.Ident4()) {
		t.Errorf("zero transform is not identity: %v", zero.Matrix())
	}

	tr := Transform{
		Translation: mgl32.Vec3{1, 2, 3},
		Scale:       mgl32.Vec3{2, 2, 2},
		Pivot:       mgl32.Vec3{1, 0, 0},
	}
	//the pivot lands on the translation
	p := tr.Matrix().Mul4x1(mgl32.Vec4{1, 0, 0, 1})
	if !p.ApproxEqual(mgl32.Vec4{1, 2, 3, 1}) {
		t.Errorf("pivot maps to %v", p)
	}

	tr = Transform{Rotation: mgl32.Vec3{0, float32(math.Pi / 2), 0}}
	p = tr.Matrix().Mul4x1(mgl32.Vec4{1, 0, 0, 1})
	if !p.ApproxEqualThreshold(mgl32.Vec4{0, 0, -1, 1}, 1e-5) {
		t.Errorf("yaw of +x is %v", p)
	}

	n := Uniform(3).NormalMatrix()
	want := mgl32.Ident3().Mul(1.0 / 3)
	if !n.ApproxEqual(want) {
		t.Errorf("normal matrix %v, want %v", n, want)
	}
}

func TestCameraUniforms(t *testing.T) {
	c := NewCamera()
	c.SetPerspective(60, 4.0/3, 0.1, 100)
	c.SetViewTarget(mgl32.Vec3{0, 0, -20}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
	u := c.Uniforms()
	if u.Projection != c.Projection() || u.View != c.View() {
		t.Fatal("uniforms do not carry the camera matrices")
	}

	//the target sits straight ahead, inside the Vulkan depth range
	clip := u.Projection.Mul4(u.View).Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	ndc := clip.Vec3().Mul(1 / clip.W())
	if !near(ndc.X(), 0) || !near(ndc.Y(), 0) || ndc.Z() < 0 || ndc.Z() > 1 {
		t.Errorf("target in ndc %v", ndc)
	}
	//+y in the world is up on screen, which is -y in Vulkan clip space
	clip = u.Projection.Mul4(u.View).Mul4x1(mgl32.Vec4{0, 1, 0, 1})
	if clip.Y() >= 0 {
		t.Errorf("world up maps to clip y %v", clip.Y())
	}

	before := c.Projection()
	c.SetAspect(2)
	if c.Projection() == before {
		t.Error("SetAspect kept the old projection")
	}
}

func TestFader(t *testing.T) {
	f := Fader{Rate: 2}
	f.Toggle()
	if f.Target != 1 {
		t.Fatalf("target %v after toggle", f.Target)
	}
	if v := f.Step(0.25); !near(v, 0.5) {
		t.Errorf("after 0.25s value %v, want 0.5", v)
	}
	if v := f.Step(10); v != 1 || !f.Done() {
		t.Errorf("value %v overshot or not done", v)
	}
	f.Toggle()
	f.Step(0.1)
	if !near(f.Value, 0.8) {
		t.Errorf("fading out %v, want 0.8", f.Value)
	}
	f.Step(1)
	if f.Value != 0 {
		t.Errorf("value %v below floor", f.Value)
	}
}

func TestBehaviors(t *testing.T) {
	for _, b := range []Behavior{BehaviorNone, BehaviorSpin, BehaviorBob} {
		got, err := ParseBehavior(b.String())
		if err != nil || got != b {
			t.Errorf("ParseBehavior(%q) = %v, %v", b.String(), got, err)
		}
	}
	if _, err := ParseBehavior("orbit"); err == nil {
		t.Error("unknown behavior parsed")
	}

	spin := Object{Behavior: BehaviorSpin}
	spin.Behavior.step(&spin, 0.5, 0.5)
	if !near(spin.Transform.Rotation.Y(), spinRate*0.5) {
		t.Errorf("spin yaw %v", spin.Transform.Rotation.Y())
	}

	//a full period of bobbing returns to the placed height
	bob := Object{Behavior: BehaviorBob, Transform: Transform{Translation: mgl32.Vec3{0, 4, 0}}}
	period := float32(2 * math.Pi / bobFrequency)
	steps := 100
	dt := period / float32(steps)
	var peak float32
	for i := 1; i <= steps; i++ {
		bob.Behavior.step(&bob, float32(i)*dt, dt)
		if y := bob.Transform.Translation.Y(); y > peak {
			peak = y
		}
	}
	if !near(bob.Transform.Translation.Y(), 4) {
		t.Errorf("bob ended at %v", bob.Transform.Translation.Y())
	}
	if !near(peak, 4+bobAmplitude) {
		t.Errorf("bob peak %v", peak)
	}

	defer func() {
		if recover() == nil {
			t.Error("unknown behavior did not panic")
		}
	}()
	odd := Object{Behavior: Behavior(42)}
	odd.Behavior.step(&odd, 1, 1)
}

func TestWorldControls(t *testing.T) {
	core, _ := newCore(t)
	w := NewWorld(1, 800, 600)
	ctx := &scopvk.FrameContext{Renderer: core.Renderer(), Input: keys{}, Delta: 100 * time.Millisecond}

	//idle worlds turn on their own
	if err := w.Update(ctx); err != nil {
		t.Fatal(err)
	}
	if !near(w.Orientation().Y(), turnStep) {
		t.Fatalf("idle yaw %v", w.Orientation().Y())
	}

	ctx.Frame = 1
	ctx.Input = keys{held: map[string]bool{"left": true, "up": true}}
	w.Update(ctx)
	if !near(w.Orientation().Y(), 0) || !near(w.Orientation().Z(), turnStep) {
		t.Fatalf("orientation after left+up %v", w.Orientation())
	}

	//no auto rotation until the idle window passes
	ctx.Input = keys{}
	for ctx.Frame = 2; ctx.Frame <= 1+idleFrames; ctx.Frame++ {
		w.Update(ctx)
	}
	if !near(w.Orientation().Y(), 0) {
		t.Fatalf("yaw moved during idle window: %v", w.Orientation().Y())
	}
	w.Update(ctx)
	if !near(w.Orientation().Y(), turnStep) {
		t.Fatalf("yaw after idle window %v", w.Orientation().Y())
	}

	ctx.Input = keys{pressed: map[string]bool{"t": true}}
	w.Update(ctx)
	if !near(core.Renderer().Blend(), 0.1) {
		t.Errorf("blend after toggle %v, want 0.1", core.Renderer().Blend())
	}
	ctx.Input = keys{}
	for i := 0; i < 20; i++ {
		w.Update(ctx)
	}
	if core.Renderer().Blend() != 1 {
		t.Errorf("blend %v did not settle at 1", core.Renderer().Blend())
	}
}

func TestWorldRenders(t *testing.T) {
	core, gpu := newCore(t)
	r := core.Renderer()
	device := core.Device()

	vert, err := scopvk.NewCoreShader(device, make([]byte, 16), driver.ShaderVertex)
	if err != nil {
		t.Fatal(err)
	}
	defer vert.Destroy()
	frag, err := scopvk.NewCoreShader(device, make([]byte, 16), driver.ShaderFragment)
	if err != nil {
		t.Fatal(err)
	}
	defer frag.Destroy()
	material, err := r.Materials().NewMaterial(scopvk.MaterialInfo{Name: "plain", Vertex: vert, Fragment: frag})
	if err != nil {
		t.Fatal(err)
	}
	instance, err := r.Materials().Instantiate(material)
	if err != nil {
		t.Fatal(err)
	}
	cube, err := scopvk.NewCubeMesh(device, r.SetupPool())
	if err != nil {
		t.Fatal(err)
	}
	mesh := r.AddMesh(cube)

	w := NewWorld(1, 800, 600)
	for i := 0; i < 4; i++ {
		w.Objects.Add(Object{Mesh: mesh, Material: instance, Behavior: BehaviorSpin})
	}
	w.Objects.Add(Object{Name: "marker"})

	before := len(gpu.Submissions())
	if err := core.Frame(w, nil); err != nil {
		t.Fatal(err)
	}
	if got := len(gpu.Submissions()) - before; got != 1 {
		t.Errorf("%d submissions for one frame", got)
	}
	stats := r.LastStats()
	if stats.Draws != 4 || stats.PipelineBinds != 1 || stats.MeshBinds != 1 {
		t.Errorf("stats %+v", stats)
	}
}
