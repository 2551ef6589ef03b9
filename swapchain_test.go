package scopvk

import (
	"reflect"
	"testing"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/andewx/scopvk/driver"
	"github.com/andewx/scopvk/driver/simdriver"
)

func TestFramePresented(t *testing.T) {
	r, gpu := newTestRenderer(t, simdriver.DefaultOptions(), DefaultRendererConfig())
	if r.Swapchain().ImageCount() != DesiredImageCount {
		t.Errorf("%d swapchain images", r.Swapchain().ImageCount())
	}
	scene := &scriptedScene{}
	for i := 0; i < 4; i++ {
		if err := r.RenderFrame(scene, nil); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
	}
	if r.Swapchain().SlotState(0) != SlotPresented {
		t.Errorf("slot 0 is %s", r.Swapchain().SlotState(0))
	}
	if r.Swapchain().Slot() != 1 {
		t.Errorf("current slot %d after 4 frames of 3", r.Swapchain().Slot())
	}
	presents := gpu.Presents()
	if len(presents) != 4 || presents[3].Index != 0 || presents[1].Index != 1 {
		t.Errorf("presents %+v", presents)
	}
	if scene.updates != 4 || scene.last.Frame != 3 || scene.last.Slot != 0 {
		t.Errorf("scene saw %d updates, last %+v", scene.updates, scene.last)
	}
	if _, ok := scene.last.Input.(NoInput); !ok {
		t.Errorf("nil input handed over as %T", scene.last.Input)
	}
}

func TestFramesInFlightBackPressure(t *testing.T) {
	opts := simdriver.DefaultOptions()
	opts.ManualCompletion = true
	config := DefaultRendererConfig()
	config.FramesInFlight = 2
	r, gpu := newTestRenderer(t, opts, config)
	scene := &scriptedScene{}

	for i := 0; i < 2; i++ {
		if err := r.RenderFrame(scene, nil); err != nil {
			t.Fatal(err)
		}
	}
	if gpu.Pending() != 2 {
		t.Fatalf("%d submissions pending", gpu.Pending())
	}

	done := make(chan error, 1)
	go func() { done <- r.RenderFrame(scene, nil) }()
	select {
	case err := <-done:
		t.Fatalf("third frame ran with both slots in flight: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	if !gpu.CompleteNext() {
		t.Fatal("nothing to complete")
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("third frame still blocked after slot 0 completed")
	}
	if scene.updates != 3 {
		t.Errorf("%d scene updates", scene.updates)
	}
	gpu.CompleteAll()
}

func TestResizeRecreatesSwapchain(t *testing.T) {
	r, gpu := newTestRenderer(t, simdriver.DefaultOptions(), DefaultRendererConfig())
	scene := &scriptedScene{}
	if err := r.RenderFrame(scene, nil); err != nil {
		t.Fatal(err)
	}
	live := gpu.Live()
	old := r.swapchain.swapchain
	presents := len(gpu.Presents())

	gpu.ResizeSurface(1024, 768)
	if err := r.RenderFrame(scene, nil); err != nil {
		t.Fatalf("out of date frame: %v", err)
	}
	if ext := r.Swapchain().Extent(); ext.Width != 1024 || ext.Height != 768 {
		t.Errorf("extent %+v after resize", ext)
	}
	if r.Display().viewport.Width != 1024 || r.RenderPass().Framebuffer(0).Extent().Height != 768 {
		t.Error("viewport or framebuffers kept the old extent")
	}
	if r.swapchain.swapchain == old {
		t.Error("swapchain handle not replaced")
	}
	if got := gpu.Live(); !reflect.DeepEqual(got, live) {
		t.Errorf("live objects changed across recreate:\n before %v\n after  %v", live, got)
	}
	if len(gpu.Presents()) != presents {
		t.Error("stale frame was presented")
	}
	if scene.updates != 1 {
		t.Errorf("scene updated %d times, the stale frame must not reach it", scene.updates)
	}
	if !gpu.FenceSignaled(r.swapchain.slots[1].in_flight) {
		t.Error("stale acquire left the slot fence unsignaled")
	}

	if err := r.RenderFrame(scene, nil); err != nil {
		t.Fatal(err)
	}
	if len(gpu.Presents()) != presents+1 {
		t.Error("no present after recreate")
	}
}

func TestSuboptimalPresentsThenRecreates(t *testing.T) {
	r, gpu := newTestRenderer(t, simdriver.DefaultOptions(), DefaultRendererConfig())
	scene := &scriptedScene{}
	old := r.swapchain.swapchain

	gpu.SetSuboptimal(true)
	if err := r.RenderFrame(scene, nil); err != nil {
		t.Fatalf("suboptimal frame: %v", err)
	}
	gpu.SetSuboptimal(false)
	if len(gpu.Presents()) != 1 || scene.updates != 1 {
		t.Errorf("suboptimal frame not drawn: %d presents, %d updates", len(gpu.Presents()), scene.updates)
	}
	if r.swapchain.swapchain == old {
		t.Error("suboptimal swapchain kept")
	}
	if err := r.RenderFrame(scene, nil); err != nil {
		t.Fatal(err)
	}
}

func TestAbandonedFrame(t *testing.T) {
	r, gpu := newTestRenderer(t, simdriver.DefaultOptions(), DefaultRendererConfig())
	boom := errors.New("boom")
	scene := &scriptedScene{fail: boom}
	old := r.swapchain.swapchain

	err := r.RenderFrame(scene, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("failed update returned %v", err)
	}
	if IsTransient(err) || IsSetupError(err) {
		t.Errorf("update error misclassified: %v", err)
	}
	if !gpu.FenceSignaled(r.swapchain.slots[0].in_flight) {
		t.Error("abandoned slot fence never signaled")
	}
	if r.Swapchain().Slot() != 1 {
		t.Errorf("abandoned frame did not advance, slot %d", r.Swapchain().Slot())
	}
	if len(gpu.Presents()) != 0 {
		t.Error("abandoned frame presented")
	}
	if r.swapchain.swapchain == old {
		t.Error("abandoned image not released by a recreate")
	}
	if n := gpu.Acquired(r.swapchain.swapchain); n != 0 {
		t.Errorf("%d images held after abandon", n)
	}

	scene.fail = nil
	for i := 0; i < 3; i++ {
		if err := r.RenderFrame(scene, nil); err != nil {
			t.Fatalf("frame %d after abandon: %v", i, err)
		}
	}
	if len(gpu.Presents()) != 3 {
		t.Errorf("%d presents after recovery", len(gpu.Presents()))
	}
}

func TestRepeatedAbandonKeepsImagesAcquirable(t *testing.T) {
	r, gpu := newTestRenderer(t, simdriver.DefaultOptions(), DefaultRendererConfig())
	boom := errors.New("boom")
	scene := &scriptedScene{fail: boom}

	//more drops in a row than the surface lets the application hold
	for i := 0; i < 2*DesiredImageCount; i++ {
		if err := r.RenderFrame(scene, nil); !errors.Is(err, boom) {
			t.Fatalf("drop %d returned %v", i, err)
		}
	}
	scene.fail = nil
	if err := r.RenderFrame(scene, nil); err != nil {
		t.Fatal(err)
	}
	if len(gpu.Presents()) != 1 || gpu.Acquired(r.swapchain.swapchain) != 0 {
		t.Errorf("%d presents, %d images held", len(gpu.Presents()), gpu.Acquired(r.swapchain.swapchain))
	}
}

func TestSubmitFailureAbandonsFrame(t *testing.T) {
	r, gpu := newTestRenderer(t, simdriver.DefaultOptions(), DefaultRendererConfig())
	scene := &scriptedScene{}

	gpu.FailNextSubmit(driver.ErrOutOfHostMemory)
	err := r.RenderFrame(scene, nil)
	if !errors.Is(err, driver.ErrOutOfHostMemory) {
		t.Fatalf("failed submit returned %v", err)
	}
	if !gpu.FenceSignaled(r.swapchain.slots[0].in_flight) {
		t.Error("slot fence left unsignaled after a failed submit")
	}
	if r.Swapchain().Slot() != 1 || r.Swapchain().SlotState(0) != SlotPresented {
		t.Errorf("slot %d, slot 0 %s", r.Swapchain().Slot(), r.Swapchain().SlotState(0))
	}

	for i := 0; i < 4; i++ {
		done := make(chan error, 1)
		go func() { done <- r.RenderFrame(scene, nil) }()
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("frame %d after failed submit: %v", i, err)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("frame %d blocked on the failed slot", i)
		}
	}
	if len(gpu.Presents()) != 4 {
		t.Errorf("%d presents", len(gpu.Presents()))
	}
}
