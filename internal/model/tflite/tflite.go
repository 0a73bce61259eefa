// Package tflite runs TensorFlow Lite classification models, optionally with
// the Edge TPU delegate attached.
package tflite

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/Brownie44l1/parrot/internal/delegate"
	"github.com/Brownie44l1/parrot/internal/model"
	"github.com/Brownie44l1/parrot/internal/modelspec"
	"github.com/mattn/go-tflite"
	"github.com/mattn/go-tflite/delegates"
	"github.com/mattn/go-tflite/delegates/edgetpu"
)

var errStatus = errors.New("tflite call failed")

// Interpreter owns a TFLite model, its interpreter and an optional delegate.
type Interpreter struct {
	path      string
	model     *tflite.Model
	options   *tflite.InterpreterOptions
	interp    *tflite.Interpreter
	delegate  delegates.Delegater
	allocated bool
}

// New loads the model at path. A nil accel runs on the CPU.
func New(path string, opts model.Options, accel *model.Accelerator) (*Interpreter, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to open model: %w", err)
	}

	in := &Interpreter{path: path}

	in.model = tflite.NewModelFromFile(path)
	if in.model == nil {
		return nil, fmt.Errorf("failed to load model %s: %w", path, model.ErrUnsupportedFormat)
	}

	in.options = tflite.NewInterpreterOptions()
	if opts.Threads > 0 {
		in.options.SetNumThread(opts.Threads)
	}
	in.options.SetErrorReporter(func(msg string, _ interface{}) {
		slog.Warn("tflite", "model", path, "message", msg)
	}, nil)

	if accel != nil {
		d, err := loadDelegate(accel)
		if err != nil {
			in.Close()
			return nil, err
		}
		in.delegate = d
		in.options.AddDelegate(d)
	}

	in.interp = tflite.NewInterpreter(in.model, in.options)
	if in.interp == nil {
		in.Close()
		return nil, fmt.Errorf("failed to create interpreter for %s: %w", path, errStatus)
	}

	return in, nil
}

// loadDelegate creates an Edge TPU delegate bound to the selected device.
func loadDelegate(accel *model.Accelerator) (delegates.Delegater, error) {
	sel, err := delegate.ParseSelector(accel.Options[modelspec.DeviceKey])
	if err != nil {
		return nil, fmt.Errorf("failed to load delegate %s: %w", accel.Library, err)
	}

	found, err := edgetpu.DeviceList()
	if err != nil {
		return nil, fmt.Errorf("failed to load delegate %s: %w", accel.Library, err)
	}

	devices := make([]delegate.Device, len(found))
	for i, d := range found {
		devices[i] = delegate.Device{Type: deviceType(d.Type), Path: d.Path}
	}

	chosen, err := sel.Select(devices)
	if err != nil {
		return nil, fmt.Errorf("failed to load delegate %s: %w", accel.Library, err)
	}

	d := edgetpu.New(found[indexOf(devices, chosen)])
	if d == nil {
		return nil, fmt.Errorf("failed to load delegate %s on %s: %w", accel.Library, chosen, errStatus)
	}

	slog.Info("Edge TPU delegate loaded", "library", accel.Library, "device", chosen.String())
	return d, nil
}

func deviceType(t edgetpu.DeviceType) delegate.DeviceType {
	if t == edgetpu.TypeApexUSB {
		return delegate.USB
	}
	return delegate.PCI
}

func indexOf(devices []delegate.Device, d delegate.Device) int {
	for i := range devices {
		if devices[i] == d {
			return i
		}
	}
	return 0
}

func (in *Interpreter) AllocateTensors() error {
	if status := in.interp.AllocateTensors(); status != tflite.OK {
		return fmt.Errorf("failed to allocate tensors: %w", errStatus)
	}
	in.allocated = true
	return nil
}

// InputSize reads the NHWC input tensor's spatial dimensions.
func (in *Interpreter) InputSize() (width, height int) {
	t := in.interp.GetInputTensor(0)
	if t == nil || t.NumDims() != 4 {
		return 0, 0
	}
	return t.Dim(2), t.Dim(1)
}

func (in *Interpreter) SetInput(rgb []uint8) error {
	if !in.allocated {
		return model.ErrNotAllocated
	}
	width, height := in.InputSize()
	if want := model.InputLen(width, height); len(rgb) != want {
		return fmt.Errorf("%w: expected %d values, got %d", model.ErrInputSize, want, len(rgb))
	}

	t := in.interp.GetInputTensor(0)
	var status tflite.Status
	switch t.Type() {
	case tflite.UInt8:
		status = t.CopyFromBuffer(rgb)
	case tflite.Float32:
		data := make([]float32, len(rgb))
		for i, v := range rgb {
			data[i] = float32(v) / 255.0
		}
		status = t.CopyFromBuffer(data)
	default:
		return fmt.Errorf("%w: input %v", model.ErrTensorType, t.Type())
	}
	if status != tflite.OK {
		return fmt.Errorf("failed to copy input: %w", errStatus)
	}
	return nil
}

func (in *Interpreter) Invoke() error {
	if !in.allocated {
		return model.ErrNotAllocated
	}
	if status := in.interp.Invoke(); status != tflite.OK {
		return fmt.Errorf("inference failed: %w", errStatus)
	}
	return nil
}

// Scores dequantizes uint8 outputs with scale * (q - zero_point).
func (in *Interpreter) Scores() ([]float32, error) {
	if !in.allocated {
		return nil, model.ErrNotAllocated
	}

	t := in.interp.GetOutputTensor(0)
	switch t.Type() {
	case tflite.UInt8:
		q := t.QuantizationParams()
		raw := t.UInt8s()
		scores := make([]float32, len(raw))
		for i, v := range raw {
			scores[i] = float32(q.Scale) * (float32(v) - float32(q.ZeroPoint))
		}
		return scores, nil
	case tflite.Float32:
		raw := t.Float32s()
		scores := make([]float32, len(raw))
		copy(scores, raw)
		return scores, nil
	default:
		return nil, fmt.Errorf("%w: output %v", model.ErrTensorType, t.Type())
	}
}

// Close releases the interpreter before the delegate it references.
func (in *Interpreter) Close() error {
	if in.interp != nil {
		in.interp.Delete()
		in.interp = nil
	}
	if in.options != nil {
		in.options.Delete()
		in.options = nil
	}
	if in.delegate != nil {
		in.delegate.Delete()
		in.delegate = nil
	}
	if in.model != nil {
		in.model.Delete()
		in.model = nil
	}
	return nil
}
