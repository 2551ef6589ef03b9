package scene

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/andewx/scopvk"
)

const (
	//turnStep is the orientation change per frame while an arrow key is held
	turnStep = 0.02
	//idleFrames is how long after the last manual turn auto rotation resumes
	idleFrames = 200
)

//World is a registry plus a camera, driven by the keyboard:
//left and right turn the yaw, up and down the roll, t toggles the texture
//fade. With no input for idleFrames frames the world keeps turning on its own.
type World struct {
	Objects *Registry
	Eye     *Camera
	Fader   Fader

	orientation mgl32.Vec3
	lastMove    uint64
	moved       bool
	elapsed     float32
	extent      [2]uint32
}

var _ scopvk.Scene = (*World)(nil)

//NewWorld returns an empty world looking at the origin from 20 units back
//with a 60 degree field of view. rate is the fade speed in units per second.
func NewWorld(rate float32, width, height uint32) *World {
	w := &World{
		Objects: NewRegistry(),
		Eye:     NewCamera(),
		Fader:   Fader{Rate: rate},
		extent:  [2]uint32{width, height},
	}
	w.Eye.SetPerspective(60, aspect(width, height), 0.1, 100)
	w.Eye.SetViewTarget(mgl32.Vec3{0, 0, -20}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
	return w
}

func aspect(width, height uint32) float32 {
	if height == 0 {
		return 1
	}
	return float32(width) / float32(height)
}

//Orientation is the pitch, yaw and roll applied on top of every object
func (w *World) Orientation() mgl32.Vec3 { return w.orientation }

func (w *World) Update(ctx *scopvk.FrameContext) error {
	if ext := ctx.Renderer.Swapchain().Extent(); ext.Width != w.extent[0] || ext.Height != w.extent[1] {
		w.extent = [2]uint32{ext.Width, ext.Height}
		w.Eye.SetAspect(aspect(ext.Width, ext.Height))
	}

	in := ctx.Input
	turn := func(key string, axis int, by float32) {
		if in.KeyHeld(key) {
			w.orientation[axis] += by
			w.lastMove = ctx.Frame
			w.moved = true
		}
	}
	turn("left", 1, -turnStep)
	turn("right", 1, turnStep)
	turn("up", 2, turnStep)
	turn("down", 2, -turnStep)
	if !w.moved || ctx.Frame-w.lastMove > idleFrames {
		w.orientation[1] += turnStep
	}

	if in.KeyPressed("t") {
		w.Fader.Toggle()
	}
	dt := ctx.Seconds()
	ctx.Renderer.SetBlend(w.Fader.Step(dt))

	w.elapsed += dt
	w.Objects.Each(func(_ ID, o *Object) {
		o.Behavior.step(o, w.elapsed, dt)
	})
	return nil
}

func (w *World) Camera() scopvk.GlobalUniforms {
	return w.Eye.Uniforms()
}

//Drawables emits every object that has both a mesh and a material
func (w *World) Drawables(dst []scopvk.Drawable) []scopvk.Drawable {
	w.Objects.Each(func(_ ID, o *Object) {
		if o.Mesh == 0 || o.Material == 0 {
			return
		}
		t := o.Transform
		t.Rotation = t.Rotation.Add(w.orientation)
		model := t.Matrix()
		dst = append(dst, scopvk.Drawable{
			Mesh:     o.Mesh,
			Instance: o.Material,
			Model:    model,
			Normal:   scopvk.NormalMatrix(model),
		})
	})
	return dst
}
