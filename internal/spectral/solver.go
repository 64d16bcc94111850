// Package spectral is the boundary to the external pseudo-spectral
// framework. The distributed transforms, implicit-explicit timestepping,
// per-mode linear solves and tau boundary elimination all live behind the
// Solver interface; this repository only declares problems, drives the
// loop, and post-processes output.
package spectral

import (
	"errors"
	"time"
)

var (
	// ErrUnknownField reports a field name the solver state does not carry.
	ErrUnknownField = errors.New("spectral: unknown field")

	// ErrUnknownDiagnostic reports a flow property that was never registered.
	ErrUnknownDiagnostic = errors.New("spectral: unknown diagnostic")

	// ErrShapeMismatch reports a value block whose length does not match the
	// local grid block.
	ErrShapeMismatch = errors.New("spectral: value block shape mismatch")
)

// Field is one state variable's locally owned grid block. Scale is
// in place so the bootstrap controller can rescale velocities and the
// uniform Ra/Q fields without rebuilding the solver.
type Field interface {
	Name() string
	Values() []float64
	SetValues(v []float64) error
	Scale(factor float64)
}

// Solver advances the discretized problem in time. Average and Max are
// collective reductions over the whole process group: every rank sees the
// same value, which is what lets the bootstrap controller branch
// identically everywhere without extra synchronization.
type Solver interface {
	Step(dt float64) error
	SimTime() float64
	Iteration() int

	// Ok reports whether the stop criteria (sim time, wall time) still
	// permit stepping.
	Ok() bool
	SetStopSimTime(t float64)
	SetStopWallTime(d time.Duration)

	Field(name string) (Field, error)
	Average(name string) (float64, error)
	Max(name string) (float64, error)

	// AdvectiveTimescale is the minimum grid-crossing time over the local
	// block, reduced across ranks; the CFL controller scales it by the
	// safety factor.
	AdvectiveTimescale() float64

	// Restore rewinds the clock after a checkpoint load.
	Restore(simTime float64, iteration int)

	Rank() int
	Size() int
}

// GridSpacer is implemented by backends that need periodic grid-space
// projection to suppress Hermitian drift in long 3D runs.
type GridSpacer interface {
	RequireGridSpace()
}
