// Package diag holds the loop-side diagnostics: finiteness checks for the
// fatal-divergence policy and the rolling force-balance window that can
// serve as a statistical-convergence trigger for the bootstrap controller.
package diag

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Finite reports whether a tracked diagnostic is still a usable number.
// A non-finite Reynolds average means the run has diverged and the loop
// must stop; there is no retry.
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Window is a fixed-capacity buffer of force-balance ratio samples
// (buoyancy against inertia, Lorentz, viscous terms). Converged applies a
// windowed-RMS test: the rolling means over the most recent half
// min-sample chunk must sit within threshold of the latest rolling mean,
// relatively, in every column. A full buffer converges unconditionally so
// a noisy run cannot stall the schedule forever.
type Window struct {
	capacity   int
	minSamples int
	threshold  float64

	width   int
	samples [][]float64
}

func NewWindow(capacity, minSamples int, threshold float64, width int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	if minSamples < 2 {
		minSamples = 2
	}
	return &Window{
		capacity:   capacity,
		minSamples: minSamples,
		threshold:  threshold,
		width:      width,
		samples:    make([][]float64, 0, capacity),
	}
}

func (w *Window) Record(ratios ...float64) {
	if len(ratios) != w.width || len(w.samples) == w.capacity {
		return
	}
	row := make([]float64, w.width)
	copy(row, ratios)
	w.samples = append(w.samples, row)
}

func (w *Window) Len() int { return len(w.samples) }

func (w *Window) Full() bool { return len(w.samples) == w.capacity }

func (w *Window) Reset() {
	w.samples = w.samples[:0]
}

// rolled is the rolling mean of column col ending at row i, looking back
// at most capacity rows.
func (w *Window) rolled(col, i int) float64 {
	lo := i - w.capacity + 1
	if lo < 0 {
		lo = 0
	}
	vals := make([]float64, 0, i-lo+1)
	for j := lo; j <= i; j++ {
		vals = append(vals, w.samples[j][col])
	}
	return stat.Mean(vals, nil)
}

// Converged returns the decision together with the worst relative RMS
// across columns, for logging.
func (w *Window) Converged() (bool, float64) {
	n := len(w.samples)
	if n < w.minSamples {
		return false, math.Inf(1)
	}
	if w.Full() {
		return true, 0
	}

	chunk := w.minSamples / 2
	worst := 0.0
	for col := 0; col < w.width; col++ {
		latest := w.rolled(col, n-1)
		if latest == 0 {
			return false, math.Inf(1)
		}
		devs := make([]float64, 0, chunk)
		for i := n - chunk; i < n; i++ {
			rel := (w.rolled(col, i) - latest) / latest
			devs = append(devs, rel*rel)
		}
		rms := math.Sqrt(floats.Sum(devs) / float64(len(devs)))
		if rms > worst {
			worst = rms
		}
	}
	return worst < w.threshold, worst
}
