package diag

import (
	"math"
	"testing"
)

func TestFinite(t *testing.T) {
	for _, v := range []float64{0, 1, -1e300} {
		if !Finite(v) {
			t.Errorf("Finite(%g) = false", v)
		}
	}
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if Finite(v) {
			t.Errorf("Finite(%g) = true", v)
		}
	}
}

func TestWindowNeedsMinSamples(t *testing.T) {
	w := NewWindow(100, 10, 0.01, 2)
	for i := 0; i < 9; i++ {
		w.Record(1, 1)
	}
	if ok, _ := w.Converged(); ok {
		t.Error("converged below the minimum sample count")
	}
}

func TestWindowConvergesOnStationarySeries(t *testing.T) {
	w := NewWindow(100, 10, 0.01, 2)
	for i := 0; i < 20; i++ {
		w.Record(0.9, 0.85)
	}
	ok, worst := w.Converged()
	if !ok {
		t.Errorf("constant ratios should converge, worst rms = %g", worst)
	}
}

func TestWindowRejectsDriftingSeries(t *testing.T) {
	w := NewWindow(1000, 10, 0.01, 1)
	for i := 0; i < 40; i++ {
		w.Record(1 + float64(i)*0.5)
	}
	if ok, worst := w.Converged(); ok {
		t.Errorf("strong drift converged with worst rms = %g", worst)
	}
}

func TestWindowFullBufferConverges(t *testing.T) {
	w := NewWindow(20, 10, 1e-9, 1)
	for i := 0; i < 30; i++ {
		w.Record(float64(i)) // drifting hard, but the buffer fills
	}
	if w.Len() != 20 {
		t.Fatalf("len = %d, records past capacity should be dropped", w.Len())
	}
	if !w.Full() {
		t.Fatal("buffer should be full")
	}
	if ok, _ := w.Converged(); !ok {
		t.Error("full buffer must converge unconditionally")
	}
}

func TestWindowIgnoresWrongWidth(t *testing.T) {
	w := NewWindow(10, 2, 0.01, 3)
	w.Record(1, 2)
	w.Record(1, 2, 3, 4)
	if w.Len() != 0 {
		t.Errorf("len = %d, wrong-width rows must be dropped", w.Len())
	}
	w.Record(1, 2, 3)
	if w.Len() != 1 {
		t.Errorf("len = %d", w.Len())
	}
}

func TestWindowReset(t *testing.T) {
	w := NewWindow(10, 2, 0.01, 1)
	for i := 0; i < 5; i++ {
		w.Record(1)
	}
	w.Reset()
	if w.Len() != 0 {
		t.Errorf("len = %d after reset", w.Len())
	}
	if ok, _ := w.Converged(); ok {
		t.Error("empty window cannot be converged")
	}
}
