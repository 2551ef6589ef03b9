package scopvk

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/andewx/scopvk/driver"
)

//Mesh is anything that can bind its vertex data and issue its draw
type Mesh interface {
	Bind(cb *CommandBuffer)
	Draw(cb *CommandBuffer)
	Bounds() BoundingBox
	Destroy()
}

//Vertex is the interleaved layout every pipeline reads from binding 0
type Vertex struct {
	Position mgl32.Vec4
	Color    mgl32.Vec4
	Normal   mgl32.Vec3
	UV       mgl32.Vec2
}

const VertexStride = 52

//VertexBindings describes Vertex for pipeline creation
func VertexBindings() ([]driver.VertexBinding, []driver.VertexAttribute) {
	return []driver.VertexBinding{{Binding: 0, Stride: VertexStride}},
		[]driver.VertexAttribute{
			{Location: 0, Binding: 0, Format: driver.VertexFloat4, Offset: 0},
			{Location: 1, Binding: 0, Format: driver.VertexFloat4, Offset: 16},
			{Location: 2, Binding: 0, Format: driver.VertexFloat3, Offset: 32},
			{Location: 3, Binding: 0, Format: driver.VertexFloat2, Offset: 44},
		}
}

func encodeVertices(vs []Vertex) []byte {
	buf := make([]byte, len(vs)*VertexStride)
	for i, v := range vs {
		off := buf[i*VertexStride:]
		putFloats(off[0:], v.Position[:])
		putFloats(off[16:], v.Color[:])
		putFloats(off[32:], v.Normal[:])
		putFloats(off[44:], v.UV[:])
	}
	return buf
}

func encodeIndices(is []uint32) []byte {
	buf := make([]byte, len(is)*4)
	for i, x := range is {
		binary.LittleEndian.PutUint32(buf[i*4:], x)
	}
	return buf
}

//BoundingBox is the axis aligned extent of a mesh
type BoundingBox struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

//Middle is the center point objects pivot around
func (b BoundingBox) Middle() mgl32.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

func boundsOf(vs []Vertex) BoundingBox {
	if len(vs) == 0 {
		return BoundingBox{}
	}
	b := BoundingBox{Min: vs[0].Position.Vec3(), Max: vs[0].Position.Vec3()}
	for _, v := range vs[1:] {
		p := v.Position.Vec3()
		for i := 0; i < 3; i++ {
			if p[i] < b.Min[i] {
				b.Min[i] = p[i]
			}
			if p[i] > b.Max[i] {
				b.Max[i] = p[i]
			}
		}
	}
	return b
}

//CoreMesh holds device local vertex and optional index buffers
type CoreMesh struct {
	vertices     *CoreBuffer
	indices      *CoreBuffer
	vertex_count uint32
	index_count  uint32
	bounds       BoundingBox
}

//NewCoreMesh uploads vertices and indices through staging buffers. A nil
//index slice draws the vertices in order.
func NewCoreMesh(device *CoreDevice, pool *CorePool, vertices []Vertex, indices []uint32) (*CoreMesh, error) {
	if len(vertices) == 0 {
		return nil, errors.New("mesh has no vertices")
	}
	vb, err := UploadBuffer(device, pool, encodeVertices(vertices), driver.BufferVertex)
	if err != nil {
		return nil, errors.Wrap(err, "vertex buffer")
	}
	m := &CoreMesh{vertices: vb, vertex_count: uint32(len(vertices)), bounds: boundsOf(vertices)}
	if len(indices) > 0 {
		ib, err := UploadBuffer(device, pool, encodeIndices(indices), driver.BufferIndex)
		if err != nil {
			vb.Destroy()
			return nil, errors.Wrap(err, "index buffer")
		}
		m.indices, m.index_count = ib, uint32(len(indices))
	}
	return m, nil
}

func (m *CoreMesh) Bind(cb *CommandBuffer) {
	cb.BindVertexBuffers(0, []driver.Buffer{m.vertices.Handle()}, []uint64{0})
	if m.indices != nil {
		cb.BindIndexBuffer(m.indices.Handle(), 0, driver.IndexUint32)
	}
}

func (m *CoreMesh) Draw(cb *CommandBuffer) {
	if m.indices != nil {
		cb.DrawIndexed(m.index_count, 1, 0, 0, 0)
		return
	}
	cb.Draw(m.vertex_count, 1, 0, 0)
}

func (m *CoreMesh) Bounds() BoundingBox { return m.bounds }

func (m *CoreMesh) Destroy() {
	if m.indices != nil {
		m.indices.Destroy()
	}
	m.vertices.Destroy()
}

//NewCubeMesh builds a unit cube centered on the origin with per face
//normals, UVs and colors
func NewCubeMesh(device *CoreDevice, pool *CorePool) (*CoreMesh, error) {
	vs, is := CubeGeometry()
	return NewCoreMesh(device, pool, vs, is)
}

//CubeGeometry returns the 24 vertices and 36 indices of a unit cube
func CubeGeometry() ([]Vertex, []uint32) {
	faces := []struct {
		normal mgl32.Vec3
		u, v   mgl32.Vec3
		color  mgl32.Vec4
	}{
		{mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}, mgl32.Vec4{1, 0, 0, 1}},
		{mgl32.Vec3{0, 0, -1}, mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 1, 0}, mgl32.Vec4{0, 1, 0, 1}},
		{mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}, mgl32.Vec4{0, 0, 1, 1}},
		{mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0}, mgl32.Vec4{1, 1, 0, 1}},
		{mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec4{1, 0, 1, 1}},
		{mgl32.Vec3{0, -1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec4{0, 1, 1, 1}},
	}
	corners := [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}
	vs := make([]Vertex, 0, 24)
	is := make([]uint32, 0, 36)
	for _, f := range faces {
		base := uint32(len(vs))
		center := f.normal.Mul(0.5)
		for _, c := range corners {
			p := center.Add(f.u.Mul(0.5 * c[0])).Add(f.v.Mul(0.5 * c[1]))
			vs = append(vs, Vertex{
				Position: p.Vec4(1),
				Color:    f.color,
				Normal:   f.normal,
				UV:       mgl32.Vec2{(c[0] + 1) / 2, (1 - c[1]) / 2},
			})
		}
		is = append(is, base, base+1, base+2, base, base+2, base+3)
	}
	return vs, is
}
