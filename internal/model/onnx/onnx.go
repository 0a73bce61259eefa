// Package onnx runs classification models through ONNX Runtime.
package onnx

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/Brownie44l1/parrot/internal/model"
	ort "github.com/yalue/onnxruntime_go"
)

type layout int

const (
	nhwc layout = iota
	nchw
)

// Interpreter wraps an ONNX Runtime session with one float32 input and one
// float32 output.
type Interpreter struct {
	path    string
	threads int

	inputName   string
	outputName  string
	inputShape  ort.Shape
	outputShape ort.Shape
	layout      layout
	width       int
	height      int

	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	ownsEnv      bool
}

// New inspects the model at path. Tensors are created by AllocateTensors.
func New(path string, opts model.Options) (*Interpreter, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to open model: %w", err)
	}

	ownsEnv := false
	if !ort.IsInitialized() {
		if opts.ONNXRuntimeLibrary != "" {
			ort.SetSharedLibraryPath(opts.ONNXRuntimeLibrary)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
		ownsEnv = true
	}

	in := &Interpreter{path: path, threads: opts.Threads, ownsEnv: ownsEnv}
	if err := in.inspect(); err != nil {
		in.Close()
		return nil, err
	}

	slog.Debug("ONNX model inspected",
		"path", path,
		"input", in.inputName, "input_shape", in.inputShape.String(),
		"output", in.outputName, "output_shape", in.outputShape.String())

	return in, nil
}

func (in *Interpreter) inspect() error {
	inputs, outputs, err := ort.GetInputOutputInfo(in.path)
	if err != nil {
		return fmt.Errorf("failed to read model inputs: %w", err)
	}
	if len(inputs) != 1 || len(outputs) < 1 {
		return fmt.Errorf("%w: want 1 input and at least 1 output, got %d and %d",
			model.ErrUnsupportedFormat, len(inputs), len(outputs))
	}

	input, output := inputs[0], outputs[0]
	if input.DataType != ort.TensorElementDataTypeFloat || output.DataType != ort.TensorElementDataTypeFloat {
		return fmt.Errorf("%w: input %v, output %v", model.ErrTensorType, input.DataType, output.DataType)
	}

	dims := fixBatch(input.Dimensions)
	if len(dims) != 4 {
		return fmt.Errorf("%w: input shape %v is not 4-D", model.ErrUnsupportedFormat, dims)
	}
	if dims[1] == model.Channels {
		in.layout = nchw
		in.height, in.width = int(dims[2]), int(dims[3])
	} else if dims[3] == model.Channels {
		in.layout = nhwc
		in.height, in.width = int(dims[1]), int(dims[2])
	} else {
		return fmt.Errorf("%w: input shape %v has no 3-channel axis", model.ErrUnsupportedFormat, dims)
	}
	if in.width <= 0 || in.height <= 0 {
		return fmt.Errorf("%w: dynamic spatial dimensions in %v", model.ErrUnsupportedFormat, dims)
	}

	in.inputName = input.Name
	in.outputName = output.Name
	in.inputShape = dims
	in.outputShape = fixBatch(output.Dimensions)
	return nil
}

// fixBatch pins dynamic (negative) dimensions to 1.
func fixBatch(s ort.Shape) ort.Shape {
	out := make(ort.Shape, len(s))
	for i, d := range s {
		if d < 0 {
			d = 1
		}
		out[i] = d
	}
	return out
}

// AllocateTensors creates the input and output tensors and the session.
func (in *Interpreter) AllocateTensors() error {
	if in.session != nil {
		return nil
	}

	inputTensor, err := ort.NewEmptyTensor[float32](in.inputShape)
	if err != nil {
		return fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](in.outputShape)
	if err != nil {
		inputTensor.Destroy()
		return fmt.Errorf("failed to create output tensor: %w", err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()

	if in.threads > 0 {
		if err := options.SetIntraOpNumThreads(in.threads); err != nil {
			inputTensor.Destroy()
			outputTensor.Destroy()
			return fmt.Errorf("failed to set thread count: %w", err)
		}
	}

	session, err := ort.NewAdvancedSession(in.path,
		[]string{in.inputName}, []string{in.outputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		options)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return fmt.Errorf("failed to create ONNX session: %w", err)
	}

	in.session = session
	in.inputTensor = inputTensor
	in.outputTensor = outputTensor
	return nil
}

func (in *Interpreter) InputSize() (width, height int) {
	return in.width, in.height
}

// SetInput normalizes rgb to [0,1] and writes it in the model's layout.
func (in *Interpreter) SetInput(rgb []uint8) error {
	if in.inputTensor == nil {
		return model.ErrNotAllocated
	}
	want := model.InputLen(in.width, in.height)
	if len(rgb) != want {
		return fmt.Errorf("%w: expected %d values, got %d", model.ErrInputSize, want, len(rgb))
	}

	data := in.inputTensor.GetData()
	plane := in.width * in.height
	for i := 0; i < plane; i++ {
		r := float32(rgb[i*3]) / 255.0
		g := float32(rgb[i*3+1]) / 255.0
		b := float32(rgb[i*3+2]) / 255.0

		if in.layout == nchw {
			data[i] = r
			data[plane+i] = g
			data[2*plane+i] = b
		} else {
			data[i*3] = r
			data[i*3+1] = g
			data[i*3+2] = b
		}
	}
	return nil
}

func (in *Interpreter) Invoke() error {
	if in.session == nil {
		return model.ErrNotAllocated
	}
	if err := in.session.Run(); err != nil {
		return fmt.Errorf("inference failed: %w", err)
	}
	return nil
}

func (in *Interpreter) Scores() ([]float32, error) {
	if in.outputTensor == nil {
		return nil, model.ErrNotAllocated
	}
	out := in.outputTensor.GetData()
	scores := make([]float32, len(out))
	copy(scores, out)
	return scores, nil
}

func (in *Interpreter) Close() error {
	if in.inputTensor != nil {
		in.inputTensor.Destroy()
		in.inputTensor = nil
	}
	if in.outputTensor != nil {
		in.outputTensor.Destroy()
		in.outputTensor = nil
	}
	if in.session != nil {
		in.session.Destroy()
		in.session = nil
	}
	if in.ownsEnv {
		in.ownsEnv = false
		return ort.DestroyEnvironment()
	}
	return nil
}
