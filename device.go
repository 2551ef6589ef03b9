package scopvk

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"

	"github.com/andewx/scopvk/driver"
)

//CoreDevice owns the logical device and its bound graphics queue. It is the
//root of every other Core object and must be destroyed last.
type CoreDevice struct {
	gpu             driver.GPU
	properties      driver.Properties
	memory_types    []driver.MemoryType
	queues          *CoreQueue
	graphics_family QueueFamily
	graphics_queue  driver.Queue
	log             *slog.Logger
	destroyed       bool
}

//NewCoreDevice binds the first queue family that can both render and present
func NewCoreDevice(gpu driver.GPU, log *slog.Logger) (*CoreDevice, error) {
	if log == nil {
		log = slog.Default()
	}
	d := &CoreDevice{
		gpu:          gpu,
		properties:   gpu.Properties(),
		memory_types: gpu.MemoryTypes(),
		log:          log.With(slog.String("component", "device")),
	}
	d.queues = NewCoreQueue(gpu)
	if d.queues == nil {
		return nil, setupError(ErrNoSuitableQueue, "device", "queue families")
	}
	ok, queue, index := d.queues.BindGraphicsQueue()
	if !ok {
		return nil, setupError(ErrNoSuitableQueue, "device", "graphics queue")
	}
	d.graphics_family = d.queues.Families()[index]
	d.graphics_queue = queue
	d.log.Debug("device ready",
		slog.String("name", d.properties.Name),
		slog.String("kind", d.properties.Kind.String()),
		slog.Int("graphics_family", int(d.graphics_family.Index)),
		slog.Int("memory_types", len(d.memory_types)))
	return d, nil
}

func (d *CoreDevice) GPU() driver.GPU                  { return d.gpu }
func (d *CoreDevice) Properties() driver.Properties    { return d.properties }
func (d *CoreDevice) Limits() driver.Limits            { return d.properties.Limits }
func (d *CoreDevice) GraphicsQueue() driver.Queue      { return d.graphics_queue }
func (d *CoreDevice) GraphicsFamily() QueueFamily      { return d.graphics_family }
func (d *CoreDevice) QueueFamilies() []QueueFamily     { return d.queues.Families() }
func (d *CoreDevice) Logger() *slog.Logger             { return d.log }
func (d *CoreDevice) MemoryTypes() []driver.MemoryType { return d.memory_types }

//FindMemoryType returns the index of the first memory type allowed by
//type_bits that has every property in want
func (d *CoreDevice) FindMemoryType(type_bits uint32, want driver.MemoryFlags) (uint32, error) {
	for i, t := range d.memory_types {
		if type_bits&(1<<uint(i)) != 0 && t.Flags&want == want {
			return uint32(i), nil
		}
	}
	return 0, errors.Wrapf(ErrUnsupportedMemoryType, "type bits %#x, flags %#x", type_bits, want)
}

//Depth formats tried in order when no candidate list is given
var DefaultDepthFormats = []driver.Format{
	driver.FormatD32Sfloat,
	driver.FormatD32SfloatS8Uint,
	driver.FormatD24UnormS8Uint,
}

//FindDepthFormat returns the first candidate usable as a depth attachment
func (d *CoreDevice) FindDepthFormat(candidates ...driver.Format) (driver.Format, error) {
	if len(candidates) == 0 {
		candidates = DefaultDepthFormats
	}
	for _, f := range candidates {
		if d.gpu.FormatSupported(f, driver.FeatureDepthStencilAttachment) {
			return f, nil
		}
	}
	return driver.FormatUndefined, ErrNoDepthFormat
}

//WaitIdle blocks until every queue on the device is idle
func (d *CoreDevice) WaitIdle() error {
	return errors.Wrap(d.gpu.WaitIdle(), "device wait idle")
}

//Destroy waits for idle and releases the device. Every object created from
//the device must already be destroyed.
func (d *CoreDevice) Destroy() {
	assertf(!d.destroyed, "device destroyed twice")
	if err := d.gpu.WaitIdle(); err != nil {
		d.log.Warn("wait idle before destroy", slog.Any("error", err))
	}
	d.gpu.Destroy()
	d.destroyed = true
}
