package spectral

import "math"

// CFL adapts the timestep to the advective stability limit. The proposed
// step is safety times the grid-crossing time, clamped to grow by at most
// maxChange and shrink by at most minChange per call, ignored entirely
// when the relative change is below threshold, and always capped at
// maxDt. maxDt is mutable because the bootstrap controller tightens it
// whenever Ra increases.
type CFL struct {
	dt        float64
	safety    float64
	maxChange float64
	minChange float64
	threshold float64
	maxDt     float64
}

// NewCFL uses the clamp settings both production scripts configure:
// growth 1.5x, shrink 0.5x, threshold 0.1.
func NewCFL(initialDt, safety, maxDt float64) *CFL {
	dt := initialDt
	if dt <= 0 || dt > maxDt {
		dt = maxDt
	}
	return &CFL{
		dt:        dt,
		safety:    safety,
		maxChange: 1.5,
		minChange: 0.5,
		threshold: 0.1,
		maxDt:     maxDt,
	}
}

// ComputeDt proposes the next timestep from the solver's advective
// timescale.
func (c *CFL) ComputeDt(s Solver) float64 {
	target := c.safety * s.AdvectiveTimescale()
	if math.IsInf(target, 0) || math.IsNaN(target) {
		target = c.maxDt
	}

	lo := c.minChange * c.dt
	hi := c.maxChange * c.dt
	if target < lo {
		target = lo
	}
	if target > hi {
		target = hi
	}
	if target > c.maxDt {
		target = c.maxDt
	}

	if math.Abs(target-c.dt) > c.threshold*c.dt {
		c.dt = target
	}
	if c.dt > c.maxDt {
		c.dt = c.maxDt
	}
	return c.dt
}

func (c *CFL) Dt() float64    { return c.dt }
func (c *CFL) MaxDt() float64 { return c.maxDt }

// SetMaxDt tightens (or relaxes) the cap; the current dt is clipped
// immediately so the very next step honors the new bound.
func (c *CFL) SetMaxDt(maxDt float64) {
	c.maxDt = maxDt
	if c.dt > maxDt {
		c.dt = maxDt
	}
}
