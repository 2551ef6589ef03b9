package scopvk

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/andewx/scopvk/driver"
	"github.com/andewx/scopvk/driver/simdriver"
)

func gradient(w, h int) []byte {
	pix := make([]byte, 0, w*h*4)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			pix = append(pix, byte(x*40), byte(y*60), byte(x+y), 0xff)
		}
	}
	return pix
}

func TestTextureUpload(t *testing.T) {
	device, gpu := newTestDevice(t, simdriver.DefaultOptions())
	pool := newTestPool(t, device)

	pix := gradient(4, 3)
	img, err := NewTextureImage(device, pool, pix, 4, 3, driver.FormatRGBA8Unorm)
	if err != nil {
		t.Fatal(err)
	}
	defer img.Destroy()

	if img.Layout() != driver.LayoutShaderReadOnly || gpu.Layout(img.Handle()) != driver.LayoutShaderReadOnly {
		t.Errorf("texture left in %s, device says %s", img.Layout(), gpu.Layout(img.Handle()))
	}
	if !bytes.Equal(gpu.ImageData(img.Handle()), pix) {
		t.Error("image texels differ from the upload")
	}
	if got := gpu.Live()["buffer"]; got != 0 {
		t.Errorf("%d staging buffers leaked", got)
	}

	back, err := img.DownloadImage(pool)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(back, pix) {
		t.Error("download differs from upload")
	}
	if img.Layout() != driver.LayoutShaderReadOnly || gpu.Layout(img.Handle()) != driver.LayoutShaderReadOnly {
		t.Errorf("download left the image in %s", img.Layout())
	}
}

func TestUnsupportedTransition(t *testing.T) {
	device, gpu := newTestDevice(t, simdriver.DefaultOptions())
	pool := newTestPool(t, device)

	img, err := NewTextureImage(device, pool, gradient(2, 2), 2, 2, driver.FormatRGBA8Unorm)
	if err != nil {
		t.Fatal(err)
	}
	defer img.Destroy()

	before := len(gpu.Submissions())
	err = img.ChangeLayout(pool, driver.LayoutDepthStencilAttachment)
	if !errors.Is(err, ErrUnsupportedLayoutTransition) {
		t.Fatalf("ShaderReadOnly -> DepthStencilAttachment: %v", err)
	}
	if img.Layout() != driver.LayoutShaderReadOnly || gpu.Layout(img.Handle()) != driver.LayoutShaderReadOnly {
		t.Errorf("rejected transition moved the image to %s", img.Layout())
	}
	if got := len(gpu.Submissions()); got != before {
		t.Errorf("rejected transition submitted %d batches", got-before)
	}

	fresh, err := NewCoreImage(device, ImageInfo{Format: driver.FormatRGBA8Unorm, Width: 2, Height: 2, Usage: driver.ImageSampled})
	if err != nil {
		t.Fatal(err)
	}
	defer fresh.Destroy()
	if err := fresh.ChangeLayout(pool, driver.LayoutShaderReadOnly); !errors.Is(err, ErrUnsupportedLayoutTransition) {
		t.Errorf("Undefined -> ShaderReadOnly: %v", err)
	}
	if fresh.Layout() != driver.LayoutUndefined {
		t.Errorf("fresh image in %s", fresh.Layout())
	}
	staging, err := NewStagingBuffer(device, gradient(2, 2))
	if err != nil {
		t.Fatal(err)
	}
	defer staging.Destroy()
	mustPanic(t, "copy into an Undefined image", func() { staging.CopyToImage(pool, fresh) })
}

func TestTextureSizeMismatch(t *testing.T) {
	device, gpu := newTestDevice(t, simdriver.DefaultOptions())
	pool := newTestPool(t, device)
	before := gpu.LiveTotal()
	if _, err := NewTextureImage(device, pool, make([]byte, 15), 2, 2, driver.FormatRGBA8Unorm); err == nil {
		t.Fatal("15 bytes accepted for a 2x2 RGBA image")
	}
	if gpu.LiveTotal() != before {
		t.Errorf("failed upload left %v", gpu.Live())
	}
}

func TestTextureFromImage(t *testing.T) {
	device, gpu := newTestDevice(t, simdriver.DefaultOptions())
	pool := newTestPool(t, device)

	src := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			src.SetRGBA(x, y, color.RGBA{uint8(x * 30), uint8(y * 30), 0x80, 0xff})
		}
	}
	sub := src.SubImage(image.Rect(2, 2, 6, 6)).(*image.RGBA)
	var want []byte
	for y := 2; y < 6; y++ {
		off := src.PixOffset(2, y)
		want = append(want, src.Pix[off:off+16]...)
	}

	tex, err := NewCoreTextureFromImage(device, pool, sub)
	if err != nil {
		t.Fatal(err)
	}
	defer tex.Destroy()
	if ext := tex.Image().Extent(); ext.Width != 4 || ext.Height != 4 {
		t.Errorf("extent %+v", ext)
	}
	if !bytes.Equal(gpu.ImageData(tex.Image().Handle()), want) {
		t.Error("sub image texels not repacked")
	}
	info := tex.DescriptorInfo()
	if info.Layout != driver.LayoutShaderReadOnly || info.View != tex.Image().View() || info.Sampler == 0 {
		t.Errorf("descriptor info %+v", info)
	}

	gray := image.NewGray(image.Rect(0, 0, 2, 1))
	gray.SetGray(1, 0, color.Gray{Y: 0x40})
	tex2, err := NewCoreTextureFromImage(device, pool, gray)
	if err != nil {
		t.Fatal(err)
	}
	defer tex2.Destroy()
	if got := gpu.ImageData(tex2.Image().Handle()); !bytes.Equal(got, []byte{0, 0, 0, 0xff, 0x40, 0x40, 0x40, 0xff}) {
		t.Errorf("gray converted to %v", got)
	}
}
