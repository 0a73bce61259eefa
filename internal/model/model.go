// Package model defines the contract every inference runtime satisfies.
package model

import "errors"

// Channels is the number of colour channels fed to a model.
const Channels = 3

var (
	ErrUnsupportedFormat = errors.New("unsupported model format")
	ErrInputSize         = errors.New("input size does not match model")
	ErrTensorType        = errors.New("unsupported tensor type")
	ErrNotAllocated      = errors.New("tensors not allocated")
)

// Interpreter runs one image classification model.
type Interpreter interface {
	// AllocateTensors prepares input and output buffers. It must be called
	// before SetInput.
	AllocateTensors() error
	// InputSize is the image size the model expects.
	InputSize() (width, height int)
	// SetInput copies an RGB image, laid out row-major with interleaved
	// channels, into the input tensor.
	SetInput(rgb []uint8) error
	Invoke() error
	// Scores returns one dequantized score per class.
	Scores() ([]float32, error)
	Close() error
}

// Options tune the runtime independently of which model is loaded.
type Options struct {
	// Threads is the CPU thread count, 0 leaves the runtime default.
	Threads int
	// ONNXRuntimeLibrary overrides the onnxruntime shared library location.
	ONNXRuntimeLibrary string
}

// Accelerator describes the Edge TPU delegate to attach to a model.
type Accelerator struct {
	// Library is the platform's Edge TPU runtime name. go-tflite links
	// libedgetpu at build time, so the name only labels logs and errors.
	Library string
	// Options is the delegate option map; only "device" is recognised.
	Options map[string]string
}

// InputLen is the byte length SetInput expects for a width x height image.
func InputLen(width, height int) int {
	return width * height * Channels
}
