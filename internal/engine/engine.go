// Package engine opens the runtime that matches a resolved model spec.
//
// The runtimes themselves link native libraries and are plugged in through
// Loader, so the dispatch here stays free of cgo.
package engine

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/Brownie44l1/parrot/internal/delegate"
	"github.com/Brownie44l1/parrot/internal/model"
	"github.com/Brownie44l1/parrot/internal/modelspec"
)

// Format is the model serialization, derived from the file extension.
type Format string

const (
	FormatTFLite Format = ".tflite"
	FormatONNX   Format = ".onnx"
)

// FormatOf returns the format of path.
func FormatOf(path string) (Format, error) {
	switch Format(strings.ToLower(filepath.Ext(path))) {
	case FormatTFLite:
		return FormatTFLite, nil
	case FormatONNX:
		return FormatONNX, nil
	default:
		return "", fmt.Errorf("%w: %q", model.ErrUnsupportedFormat, path)
	}
}

// TFLiteOpener loads a TFLite model; accel is nil for CPU execution.
type TFLiteOpener func(path string, opts model.Options, accel *model.Accelerator) (model.Interpreter, error)

// ONNXOpener loads an ONNX model.
type ONNXOpener func(path string, opts model.Options) (model.Interpreter, error)

// Loader binds the runtime constructors used by Open.
type Loader struct {
	TFLite TFLiteOpener
	ONNX   ONNXOpener
}

var hostLibrary = delegate.HostLibrary

// Open builds an interpreter for spec. Edge TPU models get the delegate
// library resolved for this host before anything is loaded.
func (l Loader) Open(spec modelspec.Spec, opts model.Options) (model.Interpreter, error) {
	format, err := FormatOf(spec.ModelPath())
	if err != nil {
		return nil, err
	}

	switch s := spec.(type) {
	case modelspec.Accelerated:
		lib, err := hostLibrary()
		if err != nil {
			return nil, err
		}
		if format != FormatTFLite {
			return nil, fmt.Errorf("%w: Edge TPU models must be %s, got %q",
				model.ErrUnsupportedFormat, FormatTFLite, s.Path)
		}

		slog.Info("Model with Edge TPU; the first inference is slow because it includes loading the model into Edge TPU memory",
			"model", s.Path, "device", deviceLabel(s.Device), "library", lib)

		return l.TFLite(s.Path, opts, &model.Accelerator{Library: lib, Options: s.Options()})

	case modelspec.Standard:
		slog.Info("Model without Edge TPU", "model", s.Path, "format", string(format))

		if format == FormatONNX {
			return l.ONNX(s.Path, opts)
		}
		return l.TFLite(s.Path, opts, nil)

	default:
		return nil, fmt.Errorf("%w: unknown spec %T", model.ErrUnsupportedFormat, spec)
	}
}

func deviceLabel(device string) string {
	if device == "" {
		return "default"
	}
	return device
}
