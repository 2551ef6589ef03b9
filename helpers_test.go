package scopvk

import (
	"io"
	"testing"

	"golang.org/x/exp/slog"

	"github.com/andewx/scopvk/driver"
	"github.com/andewx/scopvk/driver/simdriver"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

//newTestDevice opens a device over a fresh simulated GPU and destroys it when
//the test ends, unless the test already did
func newTestDevice(t *testing.T, opts simdriver.Options) (*CoreDevice, *simdriver.GPU) {
	t.Helper()
	gpu := simdriver.New(opts)
	device, err := NewCoreDevice(gpu, testLogger())
	if err != nil {
		t.Fatalf("NewCoreDevice: %v", err)
	}
	t.Cleanup(func() {
		if !gpu.Destroyed() {
			device.Destroy()
		}
	})
	return device, gpu
}

func newTestPool(t *testing.T, device *CoreDevice) *CorePool {
	t.Helper()
	pool, err := NewCorePool(device, device.GraphicsFamily(), false)
	if err != nil {
		t.Fatalf("NewCorePool: %v", err)
	}
	t.Cleanup(pool.Destroy)
	return pool
}

func newTestRenderer(t *testing.T, opts simdriver.Options, config RendererConfig) (*CoreRenderer, *simdriver.GPU) {
	t.Helper()
	device, gpu := newTestDevice(t, opts)
	r, err := NewCoreRenderer(device, config)
	if err != nil {
		t.Fatalf("NewCoreRenderer: %v", err)
	}
	t.Cleanup(func() {
		if !r.destroyed {
			r.Destroy()
		}
	})
	return r, gpu
}

//testShaders returns a vertex and fragment module over placeholder words
func testShaders(t *testing.T, device *CoreDevice) (*CoreShader, *CoreShader) {
	t.Helper()
	vert, err := NewCoreShader(device, []byte{0x03, 0x02, 0x23, 0x07}, driver.ShaderVertex)
	if err != nil {
		t.Fatal(err)
	}
	frag, err := NewCoreShader(device, []byte{0x03, 0x02, 0x23, 0x07}, driver.ShaderFragment)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		vert.Destroy()
		frag.Destroy()
	})
	return vert, frag
}

//textureLayout is the one binding layout materials in tests use
func textureLayout(t *testing.T, device *CoreDevice) *CoreDescriptorSetLayout {
	t.Helper()
	l, err := NewDescriptorSetLayoutBuilder(device).AddTextureBinding(0, driver.ShaderFragment).Build()
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func mustPanic(t *testing.T, what string, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s did not panic", what)
		}
	}()
	fn()
}

//scriptedScene hands fixed draws and uniforms to the renderer
type scriptedScene struct {
	draws   []Drawable
	camera  GlobalUniforms
	fail    error
	updates int
	last    *FrameContext
}

func (s *scriptedScene) Update(ctx *FrameContext) error {
	s.updates++
	s.last = ctx
	return s.fail
}

func (s *scriptedScene) Camera() GlobalUniforms { return s.camera }

func (s *scriptedScene) Drawables(dst []Drawable) []Drawable {
	return append(dst, s.draws...)
}
