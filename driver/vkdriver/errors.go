package vkdriver

import (
	"fmt"
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/scopvk/driver"
)

func isError(ret vk.Result) bool {
	return ret != vk.Success
}

//newError maps a failed result onto the driver sentinels so callers can test
//with errors.Is. Results without a sentinel keep their Vulkan name only.
func newError(ret vk.Result, op string) error {
	if !isError(ret) {
		return nil
	}
	var sentinel error
	switch ret {
	case vk.ErrorOutOfDate:
		sentinel = driver.ErrOutOfDate
	case vk.Suboptimal:
		sentinel = driver.ErrSuboptimal
	case vk.ErrorOutOfDeviceMemory:
		sentinel = driver.ErrOutOfDeviceMemory
	case vk.ErrorOutOfHostMemory:
		sentinel = driver.ErrOutOfHostMemory
	case vk.ErrorOutOfPoolMemory, vk.ErrorFragmentedPool:
		sentinel = driver.ErrOutOfPoolMemory
	case vk.Timeout:
		sentinel = driver.ErrTimeout
	case vk.ErrorDeviceLost:
		sentinel = driver.ErrDeviceLost
	case vk.ErrorMemoryMapFailed:
		sentinel = driver.ErrMemoryMapFailed
	case vk.ErrorFormatNotSupported:
		sentinel = driver.ErrFormatNotSupported
	case vk.ErrorInitializationFailed:
		sentinel = driver.ErrInitializationFailed
	}
	if sentinel == nil {
		return errors.Newf("vulkan error: %s: %s (%d)", op, vk.Error(ret).Error(), ret)
	}
	return errors.Wrapf(sentinel, "vulkan error: %s: %s (%d)", op, vk.Error(ret).Error(), ret)
}

//orPanic turns an enumeration failure into a panic caught by checkErr
func orPanic(err error) {
	if err != nil {
		panic(err)
	}
}

//checkErr recovers a panic raised while talking to the loader and returns
//it as err.
func checkErr(err *error) {
	if v := recover(); v != nil {
		if e, ok := v.(error); ok {
			*err = e
			return
		}
		*err = errors.Newf("%+v", v)
	}
}

//safeString terminates s for the C side of the binding
func safeString(s string) string {
	if len(s) == 0 {
		return "\x00"
	}
	if s[len(s)-1] != '\x00' {
		return s + "\x00"
	}
	return s
}

func safeStrings(list []string) []string {
	out := make([]string, len(list))
	for i := range list {
		out[i] = safeString(list[i])
	}
	return out
}

//sliceUint32 reinterprets SPIR-V bytes as words. len(data) must be a
//multiple of four.
func sliceUint32(data []byte) []uint32 {
	if len(data) == 0 {
		return nil
	}
	if len(data)%4 != 0 {
		panic(fmt.Sprintf("spir-v code of %d bytes is not word aligned", len(data)))
	}
	return unsafe.Slice((*uint32)(unsafe.Pointer(&data[0])), len(data)/4)
}
