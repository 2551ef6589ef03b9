package scene

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/andewx/scopvk"
)

//Camera holds the projection and view written to the global uniform block.
//Projections are already converted to Vulkan clip space.
type Camera struct {
	projection mgl32.Mat4
	view       mgl32.Mat4
	fovy       float32
	near, far  float32
}

func NewCamera() *Camera {
	return &Camera{projection: mgl32.Ident4(), view: mgl32.Ident4()}
}

//SetPerspective takes the vertical field of view in degrees
func (c *Camera) SetPerspective(fovy, aspect, near, far float32) {
	c.fovy, c.near, c.far = fovy, near, far
	c.projection = scopvk.VulkanProjectionMat(mgl32.Perspective(mgl32.DegToRad(fovy), aspect, near, far))
}

//SetAspect rebuilds the projection for a new aspect ratio. It does nothing
//before SetPerspective.
func (c *Camera) SetAspect(aspect float32) {
	if c.fovy == 0 || aspect <= 0 {
		return
	}
	c.SetPerspective(c.fovy, aspect, c.near, c.far)
}

func (c *Camera) SetViewTarget(eye, target, up mgl32.Vec3) {
	c.view = mgl32.LookAtV(eye, target, up)
}

func (c *Camera) SetViewDirection(eye, dir, up mgl32.Vec3) {
	c.view = mgl32.LookAtV(eye, eye.Add(dir), up)
}

func (c *Camera) Projection() mgl32.Mat4 { return c.projection }
func (c *Camera) View() mgl32.Mat4       { return c.view }

func (c *Camera) Uniforms() scopvk.GlobalUniforms {
	return scopvk.GlobalUniforms{Projection: c.projection, View: c.view}
}
