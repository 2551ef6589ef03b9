package scene

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/andewx/scopvk"
)

//Transform places an object. Rotation holds pitch, yaw and roll in radians
//and turns the object around Pivot in model space. A zero Scale is read as
//unit scale so the zero Transform is the identity.
type Transform struct {
	Translation mgl32.Vec3
	Rotation    mgl32.Vec3
	Scale       mgl32.Vec3
	Pivot       mgl32.Vec3
}

//Uniform returns a transform scaled by s on every axis
func Uniform(s float32) Transform {
	return Transform{Scale: mgl32.Vec3{s, s, s}}
}

//Matrix is translate * yaw * pitch * roll * scale * translate(-pivot)
func (t Transform) Matrix() mgl32.Mat4 {
	scale := t.Scale
	if scale == (mgl32.Vec3{}) {
		scale = mgl32.Vec3{1, 1, 1}
	}
	m := mgl32.Translate3D(t.Translation.X(), t.Translation.Y(), t.Translation.Z())
	m = m.Mul4(mgl32.HomogRotate3DY(t.Rotation.Y()))
	m = m.Mul4(mgl32.HomogRotate3DX(t.Rotation.X()))
	m = m.Mul4(mgl32.HomogRotate3DZ(t.Rotation.Z()))
	m = m.Mul4(mgl32.Scale3D(scale.X(), scale.Y(), scale.Z()))
	return m.Mul4(mgl32.Translate3D(-t.Pivot.X(), -t.Pivot.Y(), -t.Pivot.Z()))
}

func (t Transform) NormalMatrix() mgl32.Mat3 {
	return scopvk.NormalMatrix(t.Matrix())
}
