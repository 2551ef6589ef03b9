//Command scopvk opens a window and renders a grid of textured cubes.
//Arrow keys turn the world, t fades between the textures and flat shading,
//escape quits.
package main

import (
	"flag"
	"image"
	"image/color"
	"runtime"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/xlab/closer"
	"golang.org/x/exp/slog"

	"github.com/andewx/scopvk"
	"github.com/andewx/scopvk/driver"
	"github.com/andewx/scopvk/driver/vkdriver"
	"github.com/andewx/scopvk/scene"
)

func init() {
	//glfw and the Vulkan surface live on the main thread
	runtime.LockOSThread()
}

var configPath = flag.String("config", "", "JSON usage file merged over the defaults")

//palettes are the two colors of each checker texture
var palettes = [][2]color.RGBA{
	{{0xc8, 0x5a, 0x32, 0xff}, {0x5a, 0x28, 0x14, 0xff}},
	{{0xf0, 0xa0, 0xd2, 0xff}, {0x64, 0xc8, 0xf0, 0xff}},
	{{0x28, 0x64, 0xc8, 0xff}, {0x32, 0x96, 0x46, 0xff}},
}

func checker(size, cells int, c [2]color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	cell := size / cells
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetRGBA(x, y, c[(x/cell+y/cell)%2])
		}
	}
	return img
}

type app struct {
	window   *glfw.Window
	core     *scopvk.BaseCore
	world    *scene.World
	keys     *keyboard
	shaders  []*scopvk.CoreShader
	textures []*scopvk.CoreTexture
	resized  bool
}

func main() {
	flag.Parse()
	defer closer.Close()

	usage := scopvk.DefaultUsage()
	if *configPath != "" {
		var err error
		if usage, err = scopvk.LoadUsage(*configPath); err != nil {
			scopvk.Fatal(nil, err)
		}
	}

	if err := glfw.Init(); err != nil {
		scopvk.Fatal(nil, errors.Wrap(err, "initializing glfw"))
	}
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	width, height := usage.Int("Width", 800), usage.Int("Height", 600)
	window, err := glfw.CreateWindow(width, height, usage.String("Title", "scopvk"), nil, nil)
	if err != nil {
		scopvk.Fatal(nil, errors.Wrap(err, "creating window"), glfw.Terminate)
	}

	log, logFile, err := scopvk.NewLogger(usage)
	if err != nil {
		scopvk.Fatal(nil, err, window.Destroy, glfw.Terminate)
	}
	gpu, err := vkdriver.Open(vkdriver.Config{
		Window:     window,
		AppName:    usage.String("Title", "scopvk"),
		Validation: usage.Bool("Validation", false),
		Logger:     log,
	})
	if err != nil {
		scopvk.Fatal(log, err, window.Destroy, glfw.Terminate)
	}
	core, err := scopvk.NewBaseCoreWithLogger(usage, gpu, log, logFile)
	if err != nil {
		scopvk.Fatal(log, err, window.Destroy, glfw.Terminate)
	}

	a := &app{window: window, core: core, keys: newKeyboard(window)}
	if err := a.load(); err != nil {
		scopvk.Fatal(log, err, a.destroy)
	}
	window.SetFramebufferSizeCallback(func(*glfw.Window, int, int) {
		a.resized = true
	})

	exitC := make(chan struct{})
	doneC := make(chan struct{})
	closer.Bind(func() {
		close(exitC)
		<-doneC
	})

	err = a.run(exitC)
	a.destroy()
	close(doneC)
	if err != nil {
		scopvk.Fatal(log, err)
	}
}

//load builds the demo content: one textured material with three
//instances over a 3x3 grid of cubes
func (a *app) load() error {
	usage := a.core.Usage()
	device := a.core.Device()
	r := a.core.Renderer()

	vert, err := scopvk.LoadCoreShader(device, usage.String("VertexShader", ""), driver.ShaderVertex)
	if err != nil {
		return err
	}
	a.shaders = append(a.shaders, vert)
	frag, err := scopvk.LoadCoreShader(device, usage.String("FragmentShader", ""), driver.ShaderFragment)
	if err != nil {
		return err
	}
	a.shaders = append(a.shaders, frag)

	layout, err := scopvk.NewDescriptorSetLayoutBuilder(device).AddTextureBinding(0, driver.ShaderFragment).Build()
	if err != nil {
		return err
	}
	material, err := r.Materials().NewMaterial(scopvk.MaterialInfo{
		Name:       "checker",
		Vertex:     vert,
		Fragment:   frag,
		SetLayouts: []*scopvk.CoreDescriptorSetLayout{layout},
		Cull:       driver.CullBack,
		FrontFace:  driver.FrontCounterClockwise,
	})
	if err != nil {
		layout.Destroy()
		return err
	}

	instances := make([]scopvk.InstanceID, len(palettes))
	for i, p := range palettes {
		tex, err := scopvk.NewCoreTextureFromImage(device, r.SetupPool(), checker(256, 8, p))
		if err != nil {
			return err
		}
		a.textures = append(a.textures, tex)
		if instances[i], err = r.Materials().Instantiate(material); err != nil {
			return err
		}
		if err := r.Materials().Writer(instances[i], 1).SetTexture(0, tex.DescriptorInfo()).Write(); err != nil {
			return err
		}
	}

	cube, err := scopvk.NewCubeMesh(device, r.SetupPool())
	if err != nil {
		return err
	}
	mesh := r.AddMesh(cube)

	ext := r.Swapchain().Extent()
	a.world = scene.NewWorld(usage.Float("BlendRate", 1), ext.Width, ext.Height)
	rows := []scene.Behavior{scene.BehaviorNone, scene.BehaviorSpin, scene.BehaviorBob}
	for col, inst := range instances {
		for row, behavior := range rows {
			t := scene.Uniform(2)
			t.Pivot = cube.Bounds().Middle()
			t.Translation = mgl32.Vec3{float32(1-col) * 7, float32(1-row) * 7, 0}
			a.world.Objects.Add(scene.Object{
				Name:      behavior.String(),
				Transform: t,
				Mesh:      mesh,
				Material:  inst,
				Behavior:  behavior,
			})
		}
	}
	a.core.Logger().Info("scene loaded",
		slog.Int("objects", a.world.Objects.Len()),
		slog.Int("textures", len(a.textures)))
	return nil
}

//run renders until the window closes, escape is pressed or exitC closes
func (a *app) run(exitC <-chan struct{}) error {
	r := a.core.Renderer()
	for !a.window.ShouldClose() {
		select {
		case <-exitC:
			return nil
		default:
		}
		glfw.PollEvents()
		if a.keys.KeyPressed("escape") {
			return nil
		}

		//a minimized window has no surface to present to
		for w, h := a.window.GetFramebufferSize(); w == 0 || h == 0; w, h = a.window.GetFramebufferSize() {
			glfw.WaitEvents()
			if a.window.ShouldClose() {
				return nil
			}
		}
		if a.resized {
			a.resized = false
			if err := r.RecreateSwapchain(); err != nil {
				return err
			}
		}

		if err := a.core.Frame(a.world, a.keys); err != nil {
			return err
		}
		a.keys.next()
	}
	return nil
}

//destroy releases everything load created, then the core and the window
func (a *app) destroy() {
	if err := a.core.Renderer().WaitIdle(); err != nil {
		a.core.Logger().Warn("device did not idle", slog.String("error", err.Error()))
	}
	for _, t := range a.textures {
		t.Destroy()
	}
	for _, s := range a.shaders {
		s.Destroy()
	}
	a.core.Destroy()
	a.window.Destroy()
	glfw.Terminate()
}
