package scopvk

import (
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"

	"github.com/andewx/scopvk/driver"
)

//Resource exhaustion and configuration errors surfaced to callers. Programming
//errors (unbalanced map/unmap, recording outside begin/end, destroying in the
//wrong order) panic instead and are never returned.
var (
	ErrOutOfDeviceMemory           = errors.New("out of device memory")
	ErrUnsupportedMemoryType       = errors.New("no memory type satisfies the request")
	ErrUnsupportedLayoutTransition = errors.New("unsupported image layout transition")
	ErrDescriptorPoolExhausted     = errors.New("descriptor pool exhausted")
	ErrUnknownBinding              = errors.New("binding not declared by the set layout")
	ErrBindingKindMismatch         = errors.New("binding declared with a different descriptor kind")
	ErrDuplicateBinding            = errors.New("binding declared twice")
	ErrShaderStageMissing          = errors.New("pipeline is missing a required shader stage")
	ErrPipelineCompilationFailed   = errors.New("pipeline compilation failed")
	ErrBufferTooLarge              = errors.New("buffer exceeds the device allocation limit")
	ErrNoSuitableDevice            = errors.New("no suitable device")
	ErrNoSuitableQueue             = errors.New("no queue family supports graphics and present")
	ErrNoDepthFormat               = errors.New("no supported depth format")
	ErrNoSurfaceFormat             = errors.New("surface reports no formats")
)

//errSetup marks errors raised while building long lived objects. They are
//fatal to the process that hit them.
var errSetup = errors.New("setup failed")

//setupError wraps err with the subsystem and object that failed to build
func setupError(err error, subsystem, object string) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.Wrapf(err, "%s: creating %s", subsystem, object), errSetup)
}

//IsSetupError reports whether err came from building a long lived object
func IsSetupError(err error) bool {
	return errors.Is(err, errSetup)
}

//IsTransient reports whether err describes a swapchain that must be
//recreated. Transient errors never escape the renderer's frame loop.
func IsTransient(err error) bool {
	return errors.Is(err, driver.ErrOutOfDate) || errors.Is(err, driver.ErrSuboptimal)
}

//IsResourceExhaustion reports whether err means a fixed capacity ran out
func IsResourceExhaustion(err error) bool {
	return errors.Is(err, ErrOutOfDeviceMemory) ||
		errors.Is(err, ErrDescriptorPoolExhausted) ||
		errors.Is(err, driver.ErrOutOfDeviceMemory) ||
		errors.Is(err, driver.ErrOutOfHostMemory) ||
		errors.Is(err, driver.ErrOutOfPoolMemory)
}

//memoryError translates driver allocation failures into the core taxonomy
func memoryError(err error, what string) error {
	if errors.Is(err, driver.ErrOutOfDeviceMemory) || errors.Is(err, driver.ErrOutOfHostMemory) {
		return errors.Mark(errors.Wrapf(err, "allocating %s", what), ErrOutOfDeviceMemory)
	}
	return errors.Wrapf(err, "allocating %s", what)
}

func assertf(cond bool, format string, args ...interface{}) {
	if !cond {
		panic(errors.AssertionFailedf(format, args...))
	}
}

//Fatal runs the finalizers, logs err with its full chain and exits
func Fatal(log *slog.Logger, err error, finalizers ...func()) {
	if err == nil {
		return
	}
	for _, fn := range finalizers {
		fn()
	}
	if log != nil {
		log.Error("fatal", slog.String("error", fmt.Sprintf("%+v", err)))
	} else {
		fmt.Fprintf(os.Stderr, "FATAL: %+v\n", err)
	}
	os.Exit(1)
}
