package driver

import "github.com/cockroachdb/errors"

//Result sentinels shared by every implementation. Implementations wrap them
//with context; callers test with errors.Is.
var (
	ErrOutOfDate            = errors.New("swapchain out of date")
	ErrSuboptimal           = errors.New("swapchain suboptimal")
	ErrOutOfDeviceMemory    = errors.New("out of device memory")
	ErrOutOfHostMemory      = errors.New("out of host memory")
	ErrOutOfPoolMemory      = errors.New("out of descriptor pool memory")
	ErrTimeout              = errors.New("timeout")
	ErrDeviceLost           = errors.New("device lost")
	ErrMemoryMapFailed      = errors.New("memory map failed")
	ErrFormatNotSupported   = errors.New("format not supported")
	ErrInitializationFailed = errors.New("initialization failed")
	ErrPipelineRejected     = errors.New("pipeline rejected by driver")
)
