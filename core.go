package scopvk

import (
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"

	"github.com/andewx/scopvk/driver"
)

//Base core manager. Owns the logger, the device and the renderer for one
//GPU. Core structure properties are private members; everything else is
//reached through the renderer.
type BaseCore struct {
	usage    *Usage
	log      *slog.Logger
	log_file io.Closer
	device   *CoreDevice
	renderer *CoreRenderer
}

//NewLogger builds the process logger from the LogLevel, LogFile and LogFormat
//keys. The returned closer releases the log file, if any.
func NewLogger(usage *Usage) (*slog.Logger, io.Closer, error) {
	var level slog.Level
	switch strings.ToLower(usage.String("LogLevel", "info")) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	case "info", "":
		level = slog.LevelInfo
	default:
		return nil, nil, errors.Newf("unknown log level %q", usage.String("LogLevel", ""))
	}

	var out io.Writer = os.Stderr
	var closer io.Closer = io.NopCloser(nil)
	if path := usage.String("LogFile", ""); path != "" {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "opening log file %s", path)
		}
		out, closer = f, f
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(usage.String("LogFormat", "text")) {
	case "json":
		handler = slog.NewJSONHandler(out, opts)
	case "text", "":
		handler = slog.NewTextHandler(out, opts)
	default:
		closer.Close()
		return nil, nil, errors.Newf("unknown log format %q", usage.String("LogFormat", ""))
	}
	return slog.New(handler).With(slog.String("app", usage.String("Title", "scopvk"))), closer, nil
}

//ParsePresentMode maps fifo, mailbox and immediate to their driver values
func ParsePresentMode(s string) (driver.PresentMode, error) {
	switch strings.ToLower(s) {
	case "fifo", "":
		return driver.PresentFifo, nil
	case "mailbox":
		return driver.PresentMailbox, nil
	case "immediate":
		return driver.PresentImmediate, nil
	}
	return driver.PresentFifo, errors.Newf("unknown present mode %q", s)
}

//RendererConfigFrom derives the renderer capacities from a usage
func RendererConfigFrom(usage *Usage) (RendererConfig, error) {
	c := DefaultRendererConfig()
	mode, err := ParsePresentMode(usage.String("PresentMode", "fifo"))
	if err != nil {
		return c, err
	}
	c.PresentMode = mode
	c.Width = uint32(usage.Int("Width", int(c.Width)))
	c.Height = uint32(usage.Int("Height", int(c.Height)))
	c.FramesInFlight = usage.Int("FramesInFlight", c.FramesInFlight)
	c.MaxMaterialInstances = usage.Int("MaxMaterialInstances", c.MaxMaterialInstances)
	c.BindingsPerInstance = usage.Int("BindingsPerInstance", c.BindingsPerInstance)
	switch {
	case c.FramesInFlight < 1:
		return c, errors.Newf("FramesInFlight must be at least 1, got %d", c.FramesInFlight)
	case c.MaxMaterialInstances < 1:
		return c, errors.Newf("MaxMaterialInstances must be at least 1, got %d", c.MaxMaterialInstances)
	case c.BindingsPerInstance < 1:
		return c, errors.Newf("BindingsPerInstance must be at least 1, got %d", c.BindingsPerInstance)
	case c.Width == 0 || c.Height == 0:
		return c, errors.Newf("window size %dx%d", c.Width, c.Height)
	}
	return c, nil
}

//NewBaseCore creates the logger, the device over gpu and the renderer.
//On error everything created so far, gpu included, is destroyed.
func NewBaseCore(usage *Usage, gpu driver.GPU) (*BaseCore, error) {
	log, closer, err := NewLogger(usage)
	if err != nil {
		gpu.Destroy()
		return nil, setupError(err, "core", "logger")
	}
	return NewBaseCoreWithLogger(usage, gpu, log, closer)
}

//NewBaseCoreWithLogger is NewBaseCore with a caller supplied logger
func NewBaseCoreWithLogger(usage *Usage, gpu driver.GPU, log *slog.Logger, closer io.Closer) (*BaseCore, error) {
	core := &BaseCore{usage: usage, log: log, log_file: closer}
	config, err := RendererConfigFrom(usage)
	if err != nil {
		core.close(gpu)
		return nil, setupError(err, "core", "renderer config")
	}
	if core.device, err = NewCoreDevice(gpu, log); err != nil {
		core.close(gpu)
		return nil, err
	}
	if core.renderer, err = NewCoreRenderer(core.device, config); err != nil {
		core.device.Destroy()
		core.close(nil)
		return nil, err
	}
	log.Info("core ready",
		slog.String("device", core.device.Properties().Name),
		slog.Int("width", int(config.Width)),
		slog.Int("height", int(config.Height)),
		slog.String("present_mode", config.PresentMode.String()))
	return core, nil
}

func (base *BaseCore) close(gpu driver.GPU) {
	if gpu != nil {
		gpu.Destroy()
	}
	if base.log_file != nil {
		base.log_file.Close()
	}
}

func (base *BaseCore) Logger() *slog.Logger    { return base.log }
func (base *BaseCore) Usage() *Usage           { return base.usage }
func (base *BaseCore) Device() *CoreDevice     { return base.device }
func (base *BaseCore) Renderer() *CoreRenderer { return base.renderer }

//Frame renders one frame of scene
func (base *BaseCore) Frame(scene Scene, input Input) error {
	return base.renderer.RenderFrame(scene, input)
}

//Destroy releases the renderer then the device, which must be last
func (base *BaseCore) Destroy() {
	base.renderer.Destroy()
	base.device.Destroy()
	base.close(nil)
}
