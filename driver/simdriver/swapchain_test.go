package simdriver

import (
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/andewx/scopvk/driver"
)

func newSwapchain(t *testing.T, g *GPU, images uint32) driver.Swapchain {
	t.Helper()
	sc, err := g.CreateSwapchain(driver.SwapchainInfo{
		MinImageCount: images,
		Format:        g.opts.SurfaceFormats[0],
		Extent:        g.surface.CurrentExtent,
		PresentMode:   driver.PresentFifo,
	})
	if err != nil {
		t.Fatal(err)
	}
	return sc
}

func newSemaphore(t *testing.T, g *GPU) driver.Semaphore {
	t.Helper()
	s, err := g.CreateSemaphore()
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestAcquireLimit(t *testing.T) {
	g := New(DefaultOptions())
	sc := newSwapchain(t, g, 3)
	q := g.Queue(0, 0)

	//three images over a surface minimum of two leave two for the application
	first, err := g.AcquireNextImage(sc, driver.Infinite, newSemaphore(t, g))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := g.AcquireNextImage(sc, driver.Infinite, newSemaphore(t, g)); err != nil {
		t.Fatal(err)
	}
	if g.Acquired(sc) != 2 {
		t.Fatalf("%d acquired", g.Acquired(sc))
	}
	if _, err := g.AcquireNextImage(sc, 0, newSemaphore(t, g)); !errors.Is(err, driver.ErrTimeout) {
		t.Errorf("third acquire without timeout: %v", err)
	}
	func() {
		defer func() {
			if recover() == nil {
				t.Error("blocking acquire past the limit did not panic")
			}
		}()
		g.AcquireNextImage(sc, driver.Infinite, newSemaphore(t, g))
	}()

	if err := g.QueuePresent(q, sc, first, nil); err != nil {
		t.Fatal(err)
	}
	if g.Acquired(sc) != 1 {
		t.Errorf("%d acquired after present", g.Acquired(sc))
	}
	next, err := g.AcquireNextImage(sc, driver.Infinite, newSemaphore(t, g))
	if err != nil {
		t.Fatal(err)
	}
	if next != first {
		t.Errorf("acquired %d, only %d was free", next, first)
	}
	func() {
		defer func() {
			if recover() == nil {
				t.Error("presenting an image twice did not panic")
			}
		}()
		g.QueuePresent(q, sc, first, nil)
		g.QueuePresent(q, sc, first, nil)
	}()

	//a new swapchain starts with nothing held
	sc2 := newSwapchain(t, g, 3)
	g.DestroySwapchain(sc)
	if g.Acquired(sc2) != 0 {
		t.Errorf("%d acquired on a fresh swapchain", g.Acquired(sc2))
	}
}

func TestFailNextSubmit(t *testing.T) {
	g := New(DefaultOptions())
	q := g.Queue(0, 0)
	f, err := g.CreateFence(false)
	if err != nil {
		t.Fatal(err)
	}
	g.FailNextSubmit(driver.ErrDeviceLost)
	if err := g.QueueSubmit(q, nil, f); !errors.Is(err, driver.ErrDeviceLost) {
		t.Errorf("failed submit returned %v", err)
	}
	if g.FenceSignaled(f) || len(g.Submissions()) != 0 {
		t.Error("failed submit ran")
	}
	if err := g.QueueSubmit(q, nil, f); err != nil {
		t.Fatal(err)
	}
	if !g.FenceSignaled(f) {
		t.Error("second submit did not signal the fence")
	}
}
