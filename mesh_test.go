package scopvk

import (
	"bytes"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/andewx/scopvk/driver/simdriver"
)

func TestCubeGeometry(t *testing.T) {
	vs, is := CubeGeometry()
	if len(vs) != 24 || len(is) != 36 {
		t.Fatalf("%d vertices, %d indices", len(vs), len(is))
	}
	b := boundsOf(vs)
	if b.Min != (mgl32.Vec3{-0.5, -0.5, -0.5}) || b.Max != (mgl32.Vec3{0.5, 0.5, 0.5}) {
		t.Errorf("bounds %+v", b)
	}
	if b.Middle() != (mgl32.Vec3{}) {
		t.Errorf("middle %v", b.Middle())
	}
	for i, v := range vs {
		if v.Normal.Len() != 1 || v.Position.W() != 1 {
			t.Fatalf("vertex %d: %+v", i, v)
		}
		if v.UV.X() < 0 || v.UV.X() > 1 || v.UV.Y() < 0 || v.UV.Y() > 1 {
			t.Fatalf("vertex %d uv %v", i, v.UV)
		}
	}
	for _, x := range is {
		if int(x) >= len(vs) {
			t.Fatalf("index %d past %d vertices", x, len(vs))
		}
	}
}

func TestVertexEncoding(t *testing.T) {
	v := Vertex{
		Position: mgl32.Vec4{1, 2, 3, 1},
		Color:    mgl32.Vec4{0.1, 0.2, 0.3, 0.4},
		Normal:   mgl32.Vec3{0, 1, 0},
		UV:       mgl32.Vec2{0.25, 0.75},
	}
	buf := encodeVertices([]Vertex{v, v})
	if len(buf) != 2*VertexStride {
		t.Fatalf("%d bytes", len(buf))
	}
	_, attributes := VertexBindings()
	var got Vertex
	second := buf[VertexStride:]
	getFloats(second[attributes[0].Offset:], got.Position[:])
	getFloats(second[attributes[1].Offset:], got.Color[:])
	getFloats(second[attributes[2].Offset:], got.Normal[:])
	getFloats(second[attributes[3].Offset:], got.UV[:])
	if got != v {
		t.Errorf("decoded %+v", got)
	}
	if idx := encodeIndices([]uint32{1, 0x01020304}); !bytes.Equal(idx, []byte{1, 0, 0, 0, 4, 3, 2, 1}) {
		t.Errorf("indices encoded as %v", idx)
	}
}

func TestCoreMeshUpload(t *testing.T) {
	device, gpu := newTestDevice(t, simdriver.DefaultOptions())
	pool := newTestPool(t, device)

	if _, err := NewCoreMesh(device, pool, nil, nil); err == nil {
		t.Error("empty mesh accepted")
	}

	vs, is := CubeGeometry()
	cube, err := NewCoreMesh(device, pool, vs, is)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(gpu.BufferData(cube.vertices.Handle()), encodeVertices(vs)) {
		t.Error("vertex buffer differs from the upload")
	}
	if !bytes.Equal(gpu.BufferData(cube.indices.Handle()), encodeIndices(is)) {
		t.Error("index buffer differs from the upload")
	}
	if gpu.Live()["buffer"] != 2 {
		t.Errorf("%d buffers live, staging leaked", gpu.Live()["buffer"])
	}

	tri, err := NewCoreMesh(device, pool, vs[:3], nil)
	if err != nil {
		t.Fatal(err)
	}
	if tri.indices != nil || tri.vertex_count != 3 {
		t.Errorf("unindexed mesh %+v", tri)
	}

	cbs, err := pool.Allocate(1)
	if err != nil {
		t.Fatal(err)
	}
	mustPanic(t, "bind before Begin", func() { cube.Bind(cbs[0]) })
	if err := cbs[0].Begin(true); err != nil {
		t.Fatal(err)
	}
	mustPanic(t, "draw outside a render pass", func() { tri.Draw(cbs[0]) })
	if err := cbs[0].End(); err != nil {
		t.Fatal(err)
	}

	cube.Destroy()
	tri.Destroy()
	if gpu.Live()["buffer"] != 0 {
		t.Errorf("%d buffers left after destroy", gpu.Live()["buffer"])
	}
}
