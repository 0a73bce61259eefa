// Package native wires the cgo-backed TFLite and ONNX Runtime interpreters
// into an engine.Loader.
package native

import (
	"github.com/Brownie44l1/parrot/internal/engine"
	"github.com/Brownie44l1/parrot/internal/model"
	"github.com/Brownie44l1/parrot/internal/model/onnx"
	"github.com/Brownie44l1/parrot/internal/model/tflite"
)

// Loader returns the production runtimes.
func Loader() engine.Loader {
	return engine.Loader{
		TFLite: openTFLite,
		ONNX:   openONNX,
	}
}

// The wrappers keep a failed constructor from returning a typed nil inside
// the interface.

func openTFLite(path string, opts model.Options, accel *model.Accelerator) (model.Interpreter, error) {
	in, err := tflite.New(path, opts, accel)
	if err != nil {
		return nil, err
	}
	return in, nil
}

func openONNX(path string, opts model.Options) (model.Interpreter, error) {
	in, err := onnx.New(path, opts)
	if err != nil {
		return nil, err
	}
	return in, nil
}
