package scopvk

import (
	"image"
	"image/draw"

	"github.com/cockroachdb/errors"

	"github.com/andewx/scopvk/driver"
)

//CoreTexture is a sampled image with its sampler
type CoreTexture struct {
	image   *CoreImage
	sampler driver.Sampler
}

//NewCoreTexture uploads RGBA8 pixels and creates a linear repeating sampler
func NewCoreTexture(device *CoreDevice, pool *CorePool, pixels []byte, width, height uint32) (*CoreTexture, error) {
	img, err := NewTextureImage(device, pool, pixels, width, height, driver.FormatRGBA8SRGB)
	if err != nil {
		return nil, err
	}
	sampler, err := device.gpu.CreateSampler(driver.SamplerInfo{
		MagFilter:     driver.FilterLinear,
		MinFilter:     driver.FilterLinear,
		AddressMode:   driver.AddressRepeat,
		MaxAnisotropy: 1,
	})
	if err != nil {
		img.Destroy()
		return nil, errors.Wrap(err, "creating sampler")
	}
	return &CoreTexture{image: img, sampler: sampler}, nil
}

//NewCoreTextureFromImage converts any decoded image to RGBA8 and uploads it
func NewCoreTextureFromImage(device *CoreDevice, pool *CorePool, src image.Image) (*CoreTexture, error) {
	b := src.Bounds()
	rgba, ok := src.(*image.RGBA)
	if !ok || rgba.Stride != 4*b.Dx() || b.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), src, b.Min, draw.Src)
	}
	return NewCoreTexture(device, pool, rgba.Pix, uint32(b.Dx()), uint32(b.Dy()))
}

func (t *CoreTexture) Image() *CoreImage { return t.image }

//DescriptorInfo describes the texture for a combined image sampler binding
func (t *CoreTexture) DescriptorInfo() driver.DescriptorImageInfo {
	return driver.DescriptorImageInfo{Sampler: t.sampler, View: t.image.view, Layout: driver.LayoutShaderReadOnly}
}

func (t *CoreTexture) Destroy() {
	t.image.device.gpu.DestroySampler(t.sampler)
	t.image.Destroy()
}
