package vkdriver

import (
	vk "github.com/vulkan-go/vulkan"
)

//Extensions splits requested names into those the platform must have and
//those enabled only when present.
type Extensions struct {
	wanted   []string
	required []string
	actual   []string
}

func NewInstanceExtensions(wanted, required []string) (*Extensions, error) {
	actual, err := InstanceExtensions()
	if err != nil {
		return nil, err
	}
	return &Extensions{wanted: wanted, required: required, actual: actual}, nil
}

func NewDeviceExtensions(wanted, required []string, gpu vk.PhysicalDevice) (*Extensions, error) {
	actual, err := DeviceExtensions(gpu)
	if err != nil {
		return nil, err
	}
	return &Extensions{wanted: wanted, required: required, actual: actual}, nil
}

func NewLayers(wanted []string) (*Extensions, error) {
	actual, err := ValidationLayers()
	if err != nil {
		return nil, err
	}
	return &Extensions{wanted: wanted, actual: actual}, nil
}

//HasRequired reports the required names the platform lacks
func (e *Extensions) HasRequired() (bool, []string) {
	missing := e.missing(e.required)
	return len(missing) == 0, missing
}

//HasWanted reports the wanted names the platform lacks
func (e *Extensions) HasWanted() (bool, []string) {
	missing := e.missing(e.wanted)
	return len(missing) == 0, missing
}

//Enabled returns the required names followed by the available wanted ones,
//each terminated for the loader.
func (e *Extensions) Enabled() []string {
	seen := make(map[string]bool, len(e.required)+len(e.wanted))
	out := make([]string, 0, len(e.required)+len(e.wanted))
	for _, name := range e.required {
		if !seen[name] {
			seen[name] = true
			out = append(out, safeString(name))
		}
	}
	for _, name := range e.wanted {
		if !seen[name] && e.has(name) {
			seen[name] = true
			out = append(out, safeString(name))
		}
	}
	return out
}

func (e *Extensions) has(name string) bool {
	for _, act := range e.actual {
		if act == name {
			return true
		}
	}
	return false
}

func (e *Extensions) missing(names []string) []string {
	var out []string
	for _, name := range names {
		if !e.has(name) {
			out = append(out, name)
		}
	}
	return out
}

//InstanceExtensions lists the instance extensions available on the platform
func InstanceExtensions() (names []string, err error) {
	defer checkErr(&err)

	var count uint32
	ret := vk.EnumerateInstanceExtensionProperties("", &count, nil)
	orPanic(newError(ret, "enumerating instance extensions"))
	list := make([]vk.ExtensionProperties, count)
	ret = vk.EnumerateInstanceExtensionProperties("", &count, list)
	orPanic(newError(ret, "enumerating instance extensions"))
	for _, ext := range list {
		ext.Deref()
		names = append(names, vk.ToString(ext.ExtensionName[:]))
	}
	return names, err
}

//DeviceExtensions lists the extensions available on gpu
func DeviceExtensions(gpu vk.PhysicalDevice) (names []string, err error) {
	defer checkErr(&err)

	var count uint32
	ret := vk.EnumerateDeviceExtensionProperties(gpu, "", &count, nil)
	orPanic(newError(ret, "enumerating device extensions"))
	list := make([]vk.ExtensionProperties, count)
	ret = vk.EnumerateDeviceExtensionProperties(gpu, "", &count, list)
	orPanic(newError(ret, "enumerating device extensions"))
	for _, ext := range list {
		ext.Deref()
		names = append(names, vk.ToString(ext.ExtensionName[:]))
	}
	return names, err
}

//ValidationLayers lists the layers available on the platform
func ValidationLayers() (names []string, err error) {
	defer checkErr(&err)

	var count uint32
	ret := vk.EnumerateInstanceLayerProperties(&count, nil)
	orPanic(newError(ret, "enumerating layers"))
	list := make([]vk.LayerProperties, count)
	ret = vk.EnumerateInstanceLayerProperties(&count, list)
	orPanic(newError(ret, "enumerating layers"))
	for _, layer := range list {
		layer.Deref()
		names = append(names, vk.ToString(layer.LayerName[:]))
	}
	return names, err
}
