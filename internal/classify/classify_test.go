package classify

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/Brownie44l1/parrot/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- Mock types ---

type MockInterpreter struct {
	mock.Mock
}

func (m *MockInterpreter) AllocateTensors() error { return m.Called().Error(0) }

func (m *MockInterpreter) InputSize() (int, int) {
	args := m.Called()
	return args.Int(0), args.Int(1)
}

func (m *MockInterpreter) SetInput(rgb []uint8) error { return m.Called(rgb).Error(0) }

func (m *MockInterpreter) Invoke() error { return m.Called().Error(0) }

func (m *MockInterpreter) Scores() ([]float32, error) {
	args := m.Called()
	if s, ok := args.Get(0).([]float32); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockInterpreter) Close() error { return m.Called().Error(0) }

var _ model.Interpreter = (*MockInterpreter)(nil)

func solidImage(w, h int, c color.RGBA) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// --- Tests ---

func TestPrepare(t *testing.T) {
	img := solidImage(100, 80, color.RGBA{R: 200, G: 30, B: 90, A: 255})

	data, err := Prepare(img, 4, 3)
	require.NoError(t, err)
	require.Len(t, data, model.InputLen(4, 3))

	for i := 0; i < len(data); i += 3 {
		assert.InDelta(t, 200, data[i], 1)
		assert.InDelta(t, 30, data[i+1], 1)
		assert.InDelta(t, 90, data[i+2], 1)
	}
}

func TestPrepareRejectsEmptySize(t *testing.T) {
	_, err := Prepare(solidImage(2, 2, color.RGBA{A: 255}), 0, 224)
	assert.ErrorIs(t, err, model.ErrInputSize)
}

func TestSetInput(t *testing.T) {
	interp := new(MockInterpreter)
	interp.On("InputSize").Return(8, 6)
	interp.On("SetInput", mock.MatchedBy(func(b []uint8) bool {
		return len(b) == 8*6*3
	})).Return(nil).Once()

	require.NoError(t, SetInput(interp, solidImage(32, 32, color.RGBA{G: 255, A: 255})))
	interp.AssertExpectations(t)
}

func TestTop(t *testing.T) {
	scores := []float32{0.1, 0.7, 0.05, 0.7, 0.15}

	tests := []struct {
		name      string
		topK      int
		threshold float32
		want      []Class
	}{
		{name: "top1", topK: 1, want: []Class{{ID: 1, Score: 0.7}}},
		{name: "ties keep lower id first", topK: 3, want: []Class{{1, 0.7}, {3, 0.7}, {4, 0.15}}},
		{name: "threshold filters after ranking", topK: 5, threshold: 0.12, want: []Class{{1, 0.7}, {3, 0.7}, {4, 0.15}}},
		{name: "k larger than classes", topK: 10, want: []Class{{1, 0.7}, {3, 0.7}, {4, 0.15}, {0, 0.1}, {2, 0.05}}},
		{name: "threshold above everything", topK: 2, threshold: 0.9, want: []Class{}},
		{name: "zero k", topK: 0, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Top(scores, tt.topK, tt.threshold))
		})
	}
}

func TestGetOutput(t *testing.T) {
	interp := new(MockInterpreter)
	interp.On("Scores").Return([]float32{0.2, 0.8}, nil).Once()

	classes, err := GetOutput(interp, 1, 0.0)
	require.NoError(t, err)
	assert.Equal(t, []Class{{ID: 1, Score: 0.8}}, classes)

	failure := errors.New("not allocated")
	interp.On("Scores").Return(nil, failure).Once()
	_, err = GetOutput(interp, 1, 0.0)
	assert.ErrorIs(t, err, failure)

	interp.AssertExpectations(t)
}
