// Package bench times repeated inference on one image and prints the result.
package bench

import (
	"context"
	"fmt"
	"image"
	"io"
	"time"

	"github.com/Brownie44l1/parrot/internal/classify"
	"github.com/Brownie44l1/parrot/internal/labels"
	"github.com/Brownie44l1/parrot/internal/model"
)

// Params control one benchmark run.
type Params struct {
	Iterations int
	TopK       int
	Threshold  float32
}

// DefaultParams run five invocations and keep the best class only.
func DefaultParams() Params {
	return Params{Iterations: 5, TopK: 1, Threshold: 0.0}
}

// Result holds the timing of every invocation and the classes of the last one.
type Result struct {
	Model   string
	Timings []time.Duration
	Classes []classify.Class
}

// Run allocates the interpreter's tensors, sets img as input and invokes the
// model Iterations times.
func Run(ctx context.Context, name string, interp model.Interpreter, img image.Image, p Params) (*Result, error) {
	if p.Iterations <= 0 {
		return nil, fmt.Errorf("iterations must be positive, got %d", p.Iterations)
	}

	if err := interp.AllocateTensors(); err != nil {
		return nil, err
	}
	if err := classify.SetInput(interp, img); err != nil {
		return nil, fmt.Errorf("failed to set input: %w", err)
	}

	res := &Result{Model: name, Timings: make([]time.Duration, 0, p.Iterations)}
	for i := 0; i < p.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		start := time.Now()
		if err := interp.Invoke(); err != nil {
			return res, err
		}
		res.Timings = append(res.Timings, time.Since(start))

		classes, err := classify.GetOutput(interp, p.TopK, p.Threshold)
		if err != nil {
			return res, fmt.Errorf("failed to read output: %w", err)
		}
		res.Classes = classes
	}
	return res, nil
}

// Mean is the average invocation time, zero when nothing ran.
func (r *Result) Mean() time.Duration {
	if len(r.Timings) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range r.Timings {
		total += d
	}
	return total / time.Duration(len(r.Timings))
}

// Print writes the timing and results sections.
func (r *Result) Print(w io.Writer, table labels.Table) error {
	if _, err := fmt.Fprintln(w, "----INFERENCE TIME----"); err != nil {
		return err
	}
	for _, d := range r.Timings {
		if _, err := fmt.Fprintf(w, "%.1fms\n", float64(d)/float64(time.Millisecond)); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w, "-------RESULTS--------"); err != nil {
		return err
	}
	for _, c := range r.Classes {
		if _, err := fmt.Fprintf(w, "%s: %.5f\n", table.Lookup(c.ID), c.Score); err != nil {
			return err
		}
	}
	return nil
}
