package scopvk

import (
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

//Input is a snapshot of the keyboard for one frame. Key names follow the
//window system's printable names plus "left", "right", "up", "down".
type Input interface {
	//KeyHeld reports a key that is down this frame
	KeyHeld(key string) bool
	//KeyPressed reports a key that went down since the previous frame
	KeyPressed(key string) bool
}

//NoInput is an Input with no keys down
type NoInput struct{}

func (NoInput) KeyHeld(string) bool    { return false }
func (NoInput) KeyPressed(string) bool { return false }

//FrameContext is handed to the scene once per frame after an image has been
//acquired and before any command is recorded
type FrameContext struct {
	Renderer   *CoreRenderer
	Slot       int
	ImageIndex uint32
	Frame      uint64
	Delta      time.Duration
	Input      Input
}

//Seconds is the frame delta in seconds
func (c *FrameContext) Seconds() float32 { return float32(c.Delta.Seconds()) }

//Scene is the boundary between the frame loop and whatever owns the objects
type Scene interface {
	//Update advances the scene by one frame
	Update(ctx *FrameContext) error
	//Camera returns the uniforms for set 0 binding 0
	Camera() GlobalUniforms
	//Drawables appends this frame's draws to dst
	Drawables(dst []Drawable) []Drawable
}

//MeshID is a handle into the renderer's mesh arena. Zero is never valid.
type MeshID uint32

//Drawable is one draw of a mesh with a material instance
type Drawable struct {
	Mesh     MeshID
	Instance InstanceID
	Model    mgl32.Mat4
	Normal   mgl32.Mat3
}
