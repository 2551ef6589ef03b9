package scopvk

import (
	"bytes"
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/andewx/scopvk/driver"
	"github.com/andewx/scopvk/driver/simdriver"
)

func TestUploadDownloadBuffer(t *testing.T) {
	device, gpu := newTestDevice(t, simdriver.DefaultOptions())
	pool := newTestPool(t, device)

	data := make([]byte, 300)
	for i := range data {
		data[i] = byte(i * 7)
	}
	buf, err := UploadBuffer(device, pool, data, driver.BufferVertex|driver.BufferTransferSrc)
	if err != nil {
		t.Fatal(err)
	}
	defer buf.Destroy()

	if got := gpu.Live()["buffer"]; got != 1 {
		t.Errorf("%d live buffers after upload, staging leaked", got)
	}
	if buf.MemoryFlags()&driver.MemoryDeviceLocal == 0 {
		t.Errorf("uploaded buffer in %#x memory", buf.MemoryFlags())
	}
	if !bytes.Equal(gpu.BufferData(buf.Handle()), data) {
		t.Error("device buffer does not hold the uploaded bytes")
	}
	back, err := DownloadBuffer(pool, buf)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(back, data) {
		t.Error("download differs from upload")
	}

	plain, err := UploadBuffer(device, pool, data, driver.BufferIndex)
	if err != nil {
		t.Fatal(err)
	}
	defer plain.Destroy()
	mustPanic(t, "download without transfer source usage", func() { DownloadBuffer(pool, plain) })
}

func TestBufferAlignment(t *testing.T) {
	device, _ := newTestDevice(t, simdriver.DefaultOptions())
	buf, err := NewCoreBuffer(device, BufferInfo{
		InstanceSize:       100,
		InstanceCount:      3,
		Usage:              driver.BufferUniform,
		Memory:             MemoryHostVisible,
		MinOffsetAlignment: device.Limits().MinUniformBufferOffsetAlignment,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer buf.Destroy()

	if buf.AlignmentSize() != 256 || buf.Size() != 768 {
		t.Errorf("alignment %d size %d, want 256 and 768", buf.AlignmentSize(), buf.Size())
	}
	info := buf.DescriptorInfoAt(2)
	if info.Offset != 512 || info.Range != 100 {
		t.Errorf("record 2 at %d range %d", info.Offset, info.Range)
	}

	if err := buf.Map(); err != nil {
		t.Fatal(err)
	}
	buf.WriteIndex(1, []byte{1, 2, 3})
	if got := buf.ReadAt(256, 3); !bytes.Equal(got, []byte{1, 2, 3}) {
		t.Errorf("record 1 reads %v", got)
	}
	mustPanic(t, "oversized record", func() { buf.WriteIndex(0, make([]byte, 101)) })
	mustPanic(t, "write past the end", func() { buf.WriteAt(760, make([]byte, 16)) })
	buf.Unmap()
}

func TestBufferMapMisuse(t *testing.T) {
	device, _ := newTestDevice(t, simdriver.DefaultOptions())
	host, err := NewCoreBuffer(device, BufferInfo{InstanceSize: 64, InstanceCount: 1, Usage: driver.BufferUniform, Memory: MemoryHostVisible})
	if err != nil {
		t.Fatal(err)
	}
	defer host.Destroy()

	mustPanic(t, "unmap while unmapped", host.Unmap)
	mustPanic(t, "write while unmapped", func() { host.WriteAt(0, []byte{1}) })
	if err := host.Map(); err != nil {
		t.Fatal(err)
	}
	mustPanic(t, "double map", func() { host.Map() })
	host.Unmap()

	local, err := NewCoreBuffer(device, BufferInfo{InstanceSize: 64, InstanceCount: 1, Usage: driver.BufferVertex, Memory: MemoryDeviceLocal})
	if err != nil {
		t.Fatal(err)
	}
	defer local.Destroy()
	if err := local.Map(); err == nil {
		t.Error("device local buffer mapped")
	}
	if ok, err := local.MapPersistent(); ok || err != nil {
		t.Errorf("MapPersistent on device local memory = %v, %v", ok, err)
	}
}

func TestBufferFlushAtoms(t *testing.T) {
	device, gpu := newTestDevice(t, simdriver.DefaultOptions())
	cached, err := NewCoreBuffer(device, BufferInfo{InstanceSize: 100, InstanceCount: 1, Usage: driver.BufferUniform, Memory: MemoryHostCached})
	if err != nil {
		t.Fatal(err)
	}
	defer cached.Destroy()
	if ok, _ := cached.MapPersistent(); ok {
		t.Fatal("non-coherent memory mapped persistently")
	}
	if err := cached.Map(); err != nil {
		t.Fatal(err)
	}
	cached.WriteAt(10, make([]byte, 20))
	//the simulator panics on ranges that are not atom aligned
	if err := cached.Flush(10, 20); err != nil {
		t.Fatal(err)
	}
	if err := cached.Flush(70, 20); err != nil {
		t.Fatal(err)
	}
	if err := cached.Invalidate(0, driver.WholeSize); err != nil {
		t.Fatal(err)
	}
	if got := gpu.Flushes(); got != 2 {
		t.Errorf("%d flushes, want 2", got)
	}

	coherent, err := NewCoreBuffer(device, BufferInfo{InstanceSize: 100, InstanceCount: 1, Usage: driver.BufferUniform, Memory: MemoryHostVisible})
	if err != nil {
		t.Fatal(err)
	}
	defer coherent.Destroy()
	if err := coherent.Flush(3, 5); err != nil {
		t.Fatal(err)
	}
	if got := gpu.Flushes(); got != 2 {
		t.Errorf("coherent flush reached the driver, %d flushes", got)
	}
}

func TestBufferLimits(t *testing.T) {
	opts := simdriver.DefaultOptions()
	opts.Limits.MaxAllocationSize = 1024
	opts.MemoryBudget = 1500
	device, gpu := newTestDevice(t, opts)

	_, err := NewCoreBuffer(device, BufferInfo{InstanceSize: 512, InstanceCount: 4, Usage: driver.BufferVertex})
	if !errors.Is(err, ErrBufferTooLarge) {
		t.Errorf("oversized buffer: %v", err)
	}
	if gpu.LiveTotal() != 0 {
		t.Errorf("rejected buffer left %v", gpu.Live())
	}

	first, err := NewCoreBuffer(device, BufferInfo{InstanceSize: 1000, InstanceCount: 1, Usage: driver.BufferVertex})
	if err != nil {
		t.Fatal(err)
	}
	defer first.Destroy()
	_, err = NewCoreBuffer(device, BufferInfo{InstanceSize: 1000, InstanceCount: 1, Usage: driver.BufferVertex})
	if !errors.Is(err, ErrOutOfDeviceMemory) || !IsResourceExhaustion(err) {
		t.Errorf("over budget: %v", err)
	}
	if got := gpu.Live()["buffer"]; got != 1 {
		t.Errorf("%d live buffers after failed allocation", got)
	}
	if gpu.Allocated() != 1000 {
		t.Errorf("%d bytes allocated", gpu.Allocated())
	}
}
