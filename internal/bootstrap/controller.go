// Package bootstrap implements the adaptive parameter-stepping controller
// that walks one continuous simulation through a sequence of increasing
// Rayleigh and Chandrasekhar numbers, keeping the flow statistically
// stationary at each rung so every new parameter point starts from an
// equilibrated state instead of a cold transient.
package bootstrap

import (
	"fmt"
	"math"

	"github.com/Immie1996/boussinesq-convection/internal/config"
	"github.com/Immie1996/boussinesq-convection/internal/diag"
)

// Phase is the controller's position in its cycle.
type Phase int

const (
	// Running: integrating at fixed parameters, flow above the turbulence
	// floor, dwell timer counting.
	Running Phase = iota
	// Armed: the Reynolds average dropped below 1 and the dwell marker was
	// re-pinned to the current simulation time.
	Armed
	// Ready: the dwell condition is satisfied; the next Apply either fires
	// a step or finishes the schedule.
	Ready
	// Done: the step budget is exhausted.
	Done
)

func (p Phase) String() string {
	switch p {
	case Running:
		return "running"
	case Armed:
		return "armed"
	case Ready:
		return "ready"
	case Done:
		return "done"
	}
	return "unknown"
}

// Step records one applied parameter jump. VelocityFactor must be applied
// to every velocity component field; TimeFactor has already been applied
// to the controller's wait time and max dt, and the caller mirrors it
// onto the CFL cap.
type Step struct {
	RaOld, RaNew   float64
	QOld, QNew     float64
	VelocityFactor float64
	TimeFactor     float64
	BuoyancyTime   float64
}

// Config seeds a controller. WaitTime and MaxDt are in simulation-time
// units at the starting Ra; both shrink with 1/Ra as the walk ascends so
// the dwell stays a fixed number of buoyancy times.
type Config struct {
	Schedule config.Schedule
	Ra       float64
	Q        float64
	Pr       float64
	WaitTime float64
	MaxDt    float64
}

// Controller is deliberately serial: its inputs are globally reduced
// diagnostics, so in a distributed run every rank computes identical
// transitions with no extra synchronization.
type Controller struct {
	alpha, beta float64
	logStep     float64
	maxSteps    int

	ra, q, pr float64
	waitTime  float64
	maxDt     float64

	lastStep float64
	steps    int
	phase    Phase

	window *diag.Window
}

func New(cfg Config) (*Controller, error) {
	if err := cfg.Schedule.Validate(); err != nil {
		return nil, err
	}
	if cfg.Ra <= 0 || cfg.Q <= 0 || cfg.Pr <= 0 {
		return nil, fmt.Errorf("bootstrap: Ra, Q, Pr must be positive (Ra=%g Q=%g Pr=%g)", cfg.Ra, cfg.Q, cfg.Pr)
	}
	if cfg.WaitTime <= 0 {
		return nil, fmt.Errorf("bootstrap: wait time must be positive, got %g", cfg.WaitTime)
	}
	return &Controller{
		alpha:    cfg.Schedule.Alpha,
		beta:     cfg.Schedule.Beta,
		logStep:  cfg.Schedule.LogStep,
		maxSteps: cfg.Schedule.MaxSteps,
		ra:       cfg.Ra,
		q:        cfg.Q,
		pr:       cfg.Pr,
		waitTime: cfg.WaitTime,
		maxDt:    cfg.MaxDt,
	}, nil
}

// SetWindow attaches the statistical-convergence detector. When present
// it replaces the elapsed-time dwell as the step trigger; the low-Re
// rearm behavior is unchanged.
func (c *Controller) SetWindow(w *diag.Window) { c.window = w }

// Window returns the attached detector, or nil.
func (c *Controller) Window() *diag.Window { return c.window }

// Observe feeds one globally averaged Reynolds sample. Below 1 the flow
// is not yet turbulent at the new parameters and the dwell marker resets;
// above 1 the dwell (or the convergence window) decides readiness.
func (c *Controller) Observe(simTime, reAvg float64) Phase {
	if c.phase == Done {
		return Done
	}
	if !diag.Finite(reAvg) {
		// The driver halts the loop on non-finite diagnostics; the
		// controller just refuses to fire into a diverged state.
		c.phase = Running
		return c.phase
	}
	if reAvg < 1 {
		c.lastStep = simTime
		c.phase = Armed
		return c.phase
	}
	if c.window != nil {
		if ok, _ := c.window.Converged(); ok {
			c.phase = Ready
		} else {
			c.phase = Running
		}
		return c.phase
	}
	if simTime-c.lastStep > c.waitTime {
		c.phase = Ready
	} else {
		c.phase = Running
	}
	return c.phase
}

// Apply fires one parameter step. It must only be called in the Ready
// phase; with the budget exhausted it transitions to Done and reports
// ok=false without touching any parameter.
func (c *Controller) Apply(simTime float64) (Step, bool) {
	if c.steps == c.maxSteps {
		c.phase = Done
		return Step{}, false
	}
	c.steps++

	raOld, qOld := c.ra, c.q
	factor := math.Pow(10, c.logStep)
	var raNew, qNew float64
	switch {
	case c.beta == 0:
		raNew = raOld * factor
		qNew = qOld
	case c.alpha == 0:
		qNew = qOld * factor
		raNew = raOld
	default:
		raNew = raOld * factor
		qNew = qOld / math.Pow(factor, c.alpha/c.beta)
	}

	timeFactor := raOld / raNew
	c.ra, c.q = raNew, qNew
	c.waitTime *= timeFactor
	c.maxDt *= timeFactor
	c.lastStep = simTime
	c.phase = Armed
	if c.window != nil {
		c.window.Reset()
	}

	return Step{
		RaOld:          raOld,
		RaNew:          raNew,
		QOld:           qOld,
		QNew:           qNew,
		VelocityFactor: math.Sqrt(raNew / raOld),
		TimeFactor:     timeFactor,
		BuoyancyTime:   math.Sqrt(c.pr / raNew),
	}, true
}

func (c *Controller) Phase() Phase      { return c.phase }
func (c *Controller) Ra() float64       { return c.ra }
func (c *Controller) Q() float64        { return c.q }
func (c *Controller) Steps() int        { return c.steps }
func (c *Controller) WaitTime() float64 { return c.waitTime }
func (c *Controller) MaxDt() float64    { return c.maxDt }
