package scopvk

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestPushConstantsLayout(t *testing.T) {
	model := mgl32.Translate3D(1, 2, 3).Mul4(mgl32.Scale3D(2, 2, 2))
	pc := PushConstants{Model: model, Normal: NormalMatrix(model), Blend: 0.75}
	buf := pc.Bytes()
	if len(buf) != PushConstantSize {
		t.Fatalf("%d bytes", len(buf))
	}

	var m mgl32.Mat4
	getFloats(buf[pushModelOffset:], m[:])
	if m != model {
		t.Errorf("model read back as %v", m)
	}
	var n mgl32.Mat3
	getFloats(buf[pushNormalOffset:], n[:])
	if n != pc.Normal {
		t.Errorf("normal read back as %v", n)
	}
	for i := pushNormalOffset + 36; i < pushBlendOffset; i++ {
		if buf[i] != 0 {
			t.Fatalf("byte %d between normal and blend is %#x", i, buf[i])
		}
	}
	blend := make([]float32, 1)
	getFloats(buf[pushBlendOffset:], blend)
	if blend[0] != 0.75 {
		t.Errorf("blend %v", blend[0])
	}
	for i := pushBlendOffset + 4; i < PushConstantSize; i++ {
		if buf[i] != 0 {
			t.Fatalf("padding byte %d is %#x", i, buf[i])
		}
	}
}

func TestGlobalUniformsLayout(t *testing.T) {
	g := GlobalUniforms{
		Projection: mgl32.Perspective(mgl32.DegToRad(45), 4.0/3.0, 0.1, 100),
		View:       mgl32.LookAtV(mgl32.Vec3{0, 0, 5}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0}),
	}
	buf := g.Bytes()
	if len(buf) != GlobalUniformSize {
		t.Fatalf("%d bytes", len(buf))
	}
	var proj, view mgl32.Mat4
	getFloats(buf[0:], proj[:])
	getFloats(buf[64:], view[:])
	if proj != g.Projection || view != g.View {
		t.Error("camera block read back differently")
	}
}

func TestNormalMatrix(t *testing.T) {
	n := NormalMatrix(mgl32.Scale3D(2, 4, 8))
	want := mgl32.Diag3(mgl32.Vec3{0.5, 0.25, 0.125})
	if !n.ApproxEqualThreshold(want, 1e-6) {
		t.Errorf("scale normal matrix %v", n)
	}

	rot := mgl32.HomogRotate3D(0.7, mgl32.Vec3{1, 1, 0}.Normalize())
	if n := NormalMatrix(rot.Mul4(mgl32.Translate3D(4, 5, 6))); !n.ApproxEqualThreshold(rot.Mat3(), 1e-5) {
		t.Errorf("rotation normal matrix %v, want %v", n, rot.Mat3())
	}

	if n := NormalMatrix(mgl32.Scale3D(1, 0, 1)); n != mgl32.Ident3() {
		t.Errorf("singular model gave %v", n)
	}
}

func TestVulkanProjectionMat(t *testing.T) {
	const near, far = 0.1, 10
	gl := mgl32.Perspective(mgl32.DegToRad(60), 1, near, far)
	vk := VulkanProjectionMat(gl)

	depth := func(z float32) float32 {
		c := vk.Mul4x1(mgl32.Vec4{0, 0, z, 1})
		return c.Z() / c.W()
	}
	if d := depth(-near); math.Abs(float64(d)) > 1e-5 {
		t.Errorf("near plane depth %v", d)
	}
	if d := depth(-far); math.Abs(float64(d-1)) > 1e-5 {
		t.Errorf("far plane depth %v", d)
	}

	up := mgl32.Vec4{0, 1, -1, 1}
	if glY, vkY := gl.Mul4x1(up).Y(), vk.Mul4x1(up).Y(); glY <= 0 || vkY != -glY {
		t.Errorf("y not flipped: gl %v vulkan %v", glY, vkY)
	}
}
