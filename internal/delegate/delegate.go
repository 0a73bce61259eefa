// Package delegate holds the Edge TPU delegate configuration: which shared
// library provides the delegate on this host and which device it binds to.
package delegate

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
)

// Platform identifies a host operating system family.
type Platform string

const (
	Linux   Platform = "Linux"
	Darwin  Platform = "Darwin"
	Windows Platform = "Windows"
)

// ErrConfiguration is matched by every *ConfigurationError.
var ErrConfiguration = errors.New("accelerator configuration error")

// ConfigurationError reports a host the Edge TPU runtime does not support.
type ConfigurationError struct {
	Platform Platform
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("no Edge TPU shared library known for platform %q", string(e.Platform))
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// PlatformFromGOOS maps a runtime.GOOS value to a Platform. Unknown values are
// passed through unchanged so SharedLibrary can reject them.
func PlatformFromGOOS(goos string) Platform {
	switch goos {
	case "linux":
		return Linux
	case "darwin":
		return Darwin
	case "windows":
		return Windows
	default:
		return Platform(goos)
	}
}

// HostPlatform returns the platform of the running process.
func HostPlatform() Platform {
	return PlatformFromGOOS(runtime.GOOS)
}

// SharedLibrary returns the Edge TPU runtime library name for p.
func SharedLibrary(p Platform) (string, error) {
	switch p {
	case Linux:
		return "libedgetpu.so.1", nil
	case Darwin:
		return "libedgetpu.1.dylib", nil
	case Windows:
		return "edgetpu.dll", nil
	default:
		return "", &ConfigurationError{Platform: p}
	}
}

var hostLibrary = sync.OnceValues(func() (string, error) {
	return SharedLibrary(HostPlatform())
})

// HostLibrary returns the Edge TPU runtime library for this host. The lookup
// runs once per process.
func HostLibrary() (string, error) {
	return hostLibrary()
}
