// Package modelspec turns a "path[@device]" model reference into a typed spec.
package modelspec

import "strings"

// AcceleratorMarker in a model path marks a model compiled for the Edge TPU.
const AcceleratorMarker = "edgetpu"

// DeviceKey is the only option key understood by the accelerator delegate.
const DeviceKey = "device"

// Spec is a resolved model reference. It is either Standard or Accelerated.
type Spec interface {
	// ModelPath is the location of the model artifact.
	ModelPath() string
	// String reconstructs the reference that resolves to this spec.
	String() string

	isSpec()
}

// Standard is a model that runs on the CPU without a delegate.
type Standard struct {
	Path string
}

func (s Standard) ModelPath() string { return s.Path }
func (s Standard) String() string    { return s.Path }
func (Standard) isSpec()             {}

// Accelerated is a model that needs the Edge TPU delegate.
type Accelerated struct {
	Path string
	// Device selects the accelerator, empty for the runtime's default device.
	Device string
}

func (a Accelerated) ModelPath() string { return a.Path }

func (a Accelerated) String() string {
	if a.Device == "" {
		return a.Path
	}
	return a.Path + "@" + a.Device
}

func (Accelerated) isSpec() {}

// Options returns the delegate option map: empty, or {"device": Device}.
func (a Accelerated) Options() map[string]string {
	if a.Device == "" {
		return map[string]string{}
	}
	return map[string]string{DeviceKey: a.Device}
}

// Resolve parses s. Only the first '@' separates the path from the device
// token; a device token on a non-Edge TPU model is ignored.
func Resolve(s string) Spec {
	path, device, _ := strings.Cut(s, "@")
	if !strings.Contains(path, AcceleratorMarker) {
		return Standard{Path: path}
	}
	return Accelerated{Path: path, Device: device}
}

// RequiresAccelerator reports whether spec needs the Edge TPU delegate.
func RequiresAccelerator(spec Spec) bool {
	_, ok := spec.(Accelerated)
	return ok
}
