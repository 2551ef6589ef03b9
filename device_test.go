package scopvk

import (
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/andewx/scopvk/driver"
	"github.com/andewx/scopvk/driver/simdriver"
)

func TestDeviceQueues(t *testing.T) {
	device, _ := newTestDevice(t, simdriver.DefaultOptions())
	if device.GraphicsFamily().Index != 0 || device.GraphicsQueue() == 0 {
		t.Errorf("graphics family %+v", device.GraphicsFamily())
	}
	if len(device.QueueFamilies()) != 2 {
		t.Fatalf("%d families", len(device.QueueFamilies()))
	}

	q := device.queues
	if !q.IsBound(0) || q.IsBound(1) {
		t.Error("only the graphics family should be bound")
	}
	if ok, i := q.FindSuitableQueue(driver.QueueTransfer); !ok || i != 0 {
		t.Errorf("transfer family %d, %v", i, ok)
	}
	if ok, i := q.FindSuitableUnboundQueue(driver.QueueTransfer); !ok || i != 1 {
		t.Errorf("unbound transfer family %d, %v", i, ok)
	}
	q.Bind(1)
	if ok, _ := q.FindSuitableUnboundQueue(driver.QueueTransfer); ok {
		t.Error("found a transfer family after binding all of them")
	}
	if !q.IsDeviceSuitable(driver.QueueCompute) {
		t.Error("compute family not found")
	}
	if ok, _ := q.FindSuitableUnboundQueue(driver.QueueCompute); ok {
		t.Error("compute found among unbound families")
	}
}

func TestDeviceWithoutPresentQueue(t *testing.T) {
	opts := simdriver.DefaultOptions()
	opts.QueueFamilies = []driver.QueueFamily{{Index: 0, Flags: driver.QueueGraphics, Count: 1}}
	_, err := NewCoreDevice(simdriver.New(opts), testLogger())
	if !errors.Is(err, ErrNoSuitableQueue) || !IsSetupError(err) {
		t.Errorf("graphics without present: %v", err)
	}
}

func TestFindMemoryType(t *testing.T) {
	device, _ := newTestDevice(t, simdriver.DefaultOptions())
	for _, tc := range []struct {
		bits uint32
		want driver.MemoryFlags
		idx  uint32
	}{
		{0b111, driver.MemoryDeviceLocal, 0},
		{0b111, driver.MemoryHostVisible, 1},
		{0b100, driver.MemoryHostVisible, 2},
		{0b111, driver.MemoryHostVisible | driver.MemoryHostCached, 2},
	} {
		idx, err := device.FindMemoryType(tc.bits, tc.want)
		if err != nil || idx != tc.idx {
			t.Errorf("FindMemoryType(%#b, %#x) = %d, %v; want %d", tc.bits, tc.want, idx, err, tc.idx)
		}
	}
	if _, err := device.FindMemoryType(0b001, driver.MemoryHostVisible); !errors.Is(err, ErrUnsupportedMemoryType) {
		t.Errorf("host visible from a device local mask: %v", err)
	}
}

func TestFindDepthFormat(t *testing.T) {
	device, _ := newTestDevice(t, simdriver.DefaultOptions())
	if f, err := device.FindDepthFormat(); err != nil || f != driver.FormatD32Sfloat {
		t.Errorf("default candidates gave %v, %v", f, err)
	}
	if f, err := device.FindDepthFormat(driver.FormatD32SfloatS8Uint, driver.FormatD24UnormS8Uint); err != nil || f != driver.FormatD24UnormS8Uint {
		t.Errorf("stencil candidates gave %v, %v", f, err)
	}
	if _, err := device.FindDepthFormat(driver.FormatD32SfloatS8Uint); !errors.Is(err, ErrNoDepthFormat) {
		t.Errorf("unsupported candidate: %v", err)
	}
}

func TestDeviceDestroy(t *testing.T) {
	device, gpu := newTestDevice(t, simdriver.DefaultOptions())
	device.Destroy()
	if !gpu.Destroyed() {
		t.Error("device destroy left the gpu open")
	}
	mustPanic(t, "second device destroy", device.Destroy)
}
