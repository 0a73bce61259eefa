package engine

import (
	"errors"
	"testing"

	"github.com/Brownie44l1/parrot/internal/delegate"
	"github.com/Brownie44l1/parrot/internal/model"
	"github.com/Brownie44l1/parrot/internal/modelspec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- Mock types ---

type MockOpeners struct {
	mock.Mock
}

func (m *MockOpeners) TFLite(path string, opts model.Options, accel *model.Accelerator) (model.Interpreter, error) {
	args := m.Called(path, opts, accel)
	if in, ok := args.Get(0).(model.Interpreter); ok {
		return in, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockOpeners) ONNX(path string, opts model.Options) (model.Interpreter, error) {
	args := m.Called(path, opts)
	if in, ok := args.Get(0).(model.Interpreter); ok {
		return in, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockOpeners) Loader() Loader {
	return Loader{TFLite: m.TFLite, ONNX: m.ONNX}
}

type stubInterpreter struct{ model.Interpreter }

func withHostLibrary(t *testing.T, platform delegate.Platform) {
	t.Helper()
	prev := hostLibrary
	hostLibrary = func() (string, error) { return delegate.SharedLibrary(platform) }
	t.Cleanup(func() { hostLibrary = prev })
}

// --- Tests ---

func TestFormatOf(t *testing.T) {
	f, err := FormatOf("models/m_edgetpu.TFLITE")
	require.NoError(t, err)
	assert.Equal(t, FormatTFLite, f)

	f, err = FormatOf("m.onnx")
	require.NoError(t, err)
	assert.Equal(t, FormatONNX, f)

	_, err = FormatOf("m.pb")
	assert.ErrorIs(t, err, model.ErrUnsupportedFormat)
}

func TestOpenStandardTFLite(t *testing.T) {
	openers := new(MockOpeners)
	want := stubInterpreter{}
	opts := model.Options{Threads: 2}
	openers.On("TFLite", "m.tflite", opts, (*model.Accelerator)(nil)).Return(want, nil).Once()

	got, err := openers.Loader().Open(modelspec.Resolve("m.tflite@usb:0"), opts)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	openers.AssertExpectations(t)
}

func TestOpenStandardONNX(t *testing.T) {
	openers := new(MockOpeners)
	openers.On("ONNX", "m.onnx", model.Options{}).Return(stubInterpreter{}, nil).Once()

	_, err := openers.Loader().Open(modelspec.Resolve("m.onnx"), model.Options{})
	require.NoError(t, err)
	openers.AssertExpectations(t)
	openers.AssertNotCalled(t, "TFLite", mock.Anything, mock.Anything, mock.Anything)
}

func TestOpenAccelerated(t *testing.T) {
	withHostLibrary(t, delegate.Linux)

	openers := new(MockOpeners)
	accel := &model.Accelerator{Library: "libedgetpu.so.1", Options: map[string]string{"device": "usb:0"}}
	openers.On("TFLite", "m_edgetpu.tflite", model.Options{}, accel).Return(stubInterpreter{}, nil).Once()

	_, err := openers.Loader().Open(modelspec.Resolve("m_edgetpu.tflite@usb:0"), model.Options{})
	require.NoError(t, err)
	openers.AssertExpectations(t)
}

func TestOpenAcceleratedDefaultDevice(t *testing.T) {
	withHostLibrary(t, delegate.Darwin)

	openers := new(MockOpeners)
	accel := &model.Accelerator{Library: "libedgetpu.1.dylib", Options: map[string]string{}}
	openers.On("TFLite", "m_edgetpu.tflite", model.Options{}, accel).Return(stubInterpreter{}, nil).Once()

	_, err := openers.Loader().Open(modelspec.Resolve("m_edgetpu.tflite"), model.Options{})
	require.NoError(t, err)
	openers.AssertExpectations(t)
}

func TestOpenAcceleratedUnknownPlatformFailsBeforeLoading(t *testing.T) {
	withHostLibrary(t, delegate.Platform("plan9"))

	openers := new(MockOpeners)
	_, err := openers.Loader().Open(modelspec.Resolve("m_edgetpu.tflite"), model.Options{})
	assert.ErrorIs(t, err, delegate.ErrConfiguration)
	openers.AssertNotCalled(t, "TFLite", mock.Anything, mock.Anything, mock.Anything)
}

func TestOpenRejectsUnsupportedFormats(t *testing.T) {
	withHostLibrary(t, delegate.Linux)

	for _, ref := range []string{"m_edgetpu.onnx", "m.pb", "m_edgetpu.pb@usb"} {
		openers := new(MockOpeners)
		_, err := openers.Loader().Open(modelspec.Resolve(ref), model.Options{})
		assert.ErrorIs(t, err, model.ErrUnsupportedFormat, "ref %q", ref)
		openers.AssertNotCalled(t, "TFLite", mock.Anything, mock.Anything, mock.Anything)
		openers.AssertNotCalled(t, "ONNX", mock.Anything, mock.Anything)
	}
}

func TestOpenPropagatesRuntimeErrors(t *testing.T) {
	openers := new(MockOpeners)
	failure := errors.New("model missing")
	openers.On("TFLite", "m.tflite", model.Options{}, (*model.Accelerator)(nil)).Return(nil, failure).Once()

	got, err := openers.Loader().Open(modelspec.Resolve("m.tflite"), model.Options{})
	assert.ErrorIs(t, err, failure)
	assert.Nil(t, got)
}
