package scopvk

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	//PushConstantSize is the byte size of PushConstants on the wire
	PushConstantSize = 128
	//GlobalUniformSize is the byte size of GlobalUniforms on the wire
	GlobalUniformSize = 128

	pushModelOffset  = 0
	pushNormalOffset = 64
	pushBlendOffset  = 112
)

//VulkanProjectionMat converts an OpenGL style projection matrix to Vulkan style.
//Vulkan has a top left clip space with a [0, 1] depth range instead of [-1, 1].
func VulkanProjectionMat(proj mgl32.Mat4) mgl32.Mat4 {
	//Flip Y in clip space, then remap z from [-1, 1] to [0, 1].
	fix := mgl32.Mat4{
		1, 0, 0, 0,
		0, -1, 0, 0,
		0, 0, 0.5, 0,
		0, 0, 0.5, 1,
	}
	return fix.Mul4(proj)
}

//PushConstants is the per draw block pushed to vertex and fragment stages
type PushConstants struct {
	Model  mgl32.Mat4
	Normal mgl32.Mat3
	Blend  float32
}

//Bytes encodes the block: model mat4 at 0, normal mat3 packed at 64,
//three zero floats, blend at 112, zero padding to 128.
func (p PushConstants) Bytes() []byte {
	buf := make([]byte, PushConstantSize)
	putFloats(buf[pushModelOffset:], p.Model[:])
	putFloats(buf[pushNormalOffset:], p.Normal[:])
	binary.LittleEndian.PutUint32(buf[pushBlendOffset:], math.Float32bits(p.Blend))
	return buf
}

//GlobalUniforms is the per frame camera block at set 0 binding 0
type GlobalUniforms struct {
	Projection mgl32.Mat4
	View       mgl32.Mat4
}

func (g GlobalUniforms) Bytes() []byte {
	buf := make([]byte, GlobalUniformSize)
	putFloats(buf[0:], g.Projection[:])
	putFloats(buf[64:], g.View[:])
	return buf
}

func putFloats(dst []byte, src []float32) {
	for i, f := range src {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(f))
	}
}

func getFloats(src []byte, dst []float32) {
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
	}
}

//NormalMatrix is the inverse transpose of the upper 3x3 of model
func NormalMatrix(model mgl32.Mat4) mgl32.Mat3 {
	m := model.Mat3()
	if math.Abs(float64(m.Det())) < 1e-12 {
		return mgl32.Ident3()
	}
	return m.Inv().Transpose()
}
