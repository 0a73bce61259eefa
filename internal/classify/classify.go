// Package classify feeds images to an interpreter and reads back ranked classes.
package classify

import (
	"fmt"
	"image"
	"sort"

	"github.com/Brownie44l1/parrot/internal/model"
	"github.com/nfnt/resize"
)

// Class is one scored prediction.
type Class struct {
	ID    int
	Score float32
}

// InputSize returns the (width, height) the interpreter expects.
func InputSize(interp model.Interpreter) (int, int) {
	return interp.InputSize()
}

// Prepare resizes img to width x height with a Lanczos filter and packs it as
// interleaved RGB bytes.
func Prepare(img image.Image, width, height int) ([]uint8, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", model.ErrInputSize, width, height)
	}

	resized := resize.Resize(uint(width), uint(height), img, resize.Lanczos3)
	bounds := resized.Bounds()

	data := make([]uint8, 0, model.InputLen(width, height))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := resized.At(x, y).RGBA()
			data = append(data, uint8(r>>8), uint8(g>>8), uint8(b>>8))
		}
	}
	return data, nil
}

// SetInput resizes img to the interpreter's input size and copies it in.
func SetInput(interp model.Interpreter, img image.Image) error {
	width, height := InputSize(interp)
	data, err := Prepare(img, width, height)
	if err != nil {
		return err
	}
	return interp.SetInput(data)
}

// GetOutput returns up to topK classes whose score is at least threshold,
// best first. Equal scores keep the lower class id first.
func GetOutput(interp model.Interpreter, topK int, threshold float32) ([]Class, error) {
	scores, err := interp.Scores()
	if err != nil {
		return nil, err
	}
	return Top(scores, topK, threshold), nil
}

// Top ranks scores. See GetOutput.
func Top(scores []float32, topK int, threshold float32) []Class {
	if topK <= 0 || len(scores) == 0 {
		return nil
	}

	ids := make([]int, len(scores))
	for i := range ids {
		ids[i] = i
	}
	sort.SliceStable(ids, func(a, b int) bool {
		return scores[ids[a]] > scores[ids[b]]
	})
	if topK < len(ids) {
		ids = ids[:topK]
	}

	classes := make([]Class, 0, len(ids))
	for _, id := range ids {
		if scores[id] >= threshold {
			classes = append(classes, Class{ID: id, Score: scores[id]})
		}
	}
	return classes
}
