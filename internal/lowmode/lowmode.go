// Package lowmode is a severely truncated Galerkin model of MHD
// Boussinesq convection implementing the spectral.Solver interface: a
// Lorenz-type triad (velocity, temperature mode, mean-temperature
// correction) coupled to a single magnetic mode damped by the
// Chandrasekhar number. It exists so the drivers and the bootstrap
// controller can be exercised end to end without the external spectral
// framework; it is not a spectral method and makes no claim to resolved
// dynamics.
package lowmode

import (
	"fmt"
	"math"
	"time"

	"github.com/Immie1996/boussinesq-convection/internal/config"
	"github.com/Immie1996/boussinesq-convection/internal/problem"
	"github.com/Immie1996/boussinesq-convection/internal/spectral"
)

// critical Rayleigh number of the free-slip linear problem; the
// truncation is driven by the supercriticality Ra/raCrit.
const raCrit = 657.5

const geomBeta = 8.0 / 3.0

type field struct {
	name string
	vals []float64
}

func (f *field) Name() string      { return f.name }
func (f *field) Values() []float64 { return f.vals }

func (f *field) SetValues(v []float64) error {
	if len(v) != len(f.vals) {
		return fmt.Errorf("%w: field %s wants %d values, got %d", spectral.ErrShapeMismatch, f.name, len(f.vals), len(v))
	}
	copy(f.vals, v)
	return nil
}

func (f *field) Scale(factor float64) {
	for i := range f.vals {
		f.vals[i] *= factor
	}
}

// amp treats the block as a uniform amplitude.
func (f *field) amp() float64 {
	if len(f.vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range f.vals {
		sum += v
	}
	return sum / float64(len(f.vals))
}

func (f *field) setAmp(a float64) {
	for i := range f.vals {
		f.vals[i] = a
	}
}

// Solver holds the truncated model state. Field blocks are length-nz so
// checkpointing and shard merging see realistically shaped data.
type Solver struct {
	pr, pm float64
	aspect float64
	nz     int
	threeD bool

	fields map[string]*field
	order  []string

	t        float64
	iter     int
	stopSim  float64
	deadline time.Time

	// RK4 scratch
	k1, k2, k3, k4, scratch []float64

	rank, size int
}

// Build constructs the truncated solver from a declared problem. The
// problem must carry the state variables and the Ra/Q field parameters
// this model binds to.
func Build(p *problem.Problem, cfg *config.Run) (*Solver, error) {
	for _, name := range []string{"T1", "u", "w"} {
		if !p.HasVariable(name) {
			return nil, fmt.Errorf("%w: problem lacks variable %s", spectral.ErrUnknownField, name)
		}
	}
	ra, ok := p.ParameterValue("Ra")
	if !ok {
		return nil, fmt.Errorf("lowmode: problem lacks Ra parameter")
	}
	q, ok := p.ParameterValue("Q")
	if !ok {
		return nil, fmt.Errorf("lowmode: problem lacks Q parameter")
	}

	s := &Solver{
		pr:      cfg.Pr,
		pm:      cfg.Pm,
		aspect:  cfg.Aspect,
		nz:      cfg.Nz,
		threeD:  cfg.ThreeD,
		fields:  make(map[string]*field),
		stopSim: math.Inf(1),
		size:    1,
	}

	names := []string{"u", "w", "T1", "Tm", "Bx", "Ra", "Q"}
	if cfg.ThreeD {
		names = append(names, "v")
	}
	for _, name := range names {
		f := &field{name: name, vals: make([]float64, cfg.Nz)}
		s.fields[name] = f
		s.order = append(s.order, name)
	}
	s.fields["Ra"].setAmp(ra)
	s.fields["Q"].setAmp(q)

	n := s.stateDim()
	s.k1 = make([]float64, n)
	s.k2 = make([]float64, n)
	s.k3 = make([]float64, n)
	s.k4 = make([]float64, n)
	s.scratch = make([]float64, n)

	return s, nil
}

func (s *Solver) stateDim() int {
	if s.threeD {
		return 6
	}
	return 5
}

// state packs the field amplitudes for the ODE step.
func (s *Solver) state() []float64 {
	y := []float64{
		s.fields["u"].amp(),
		s.fields["w"].amp(),
		s.fields["T1"].amp(),
		s.fields["Tm"].amp(),
		s.fields["Bx"].amp(),
	}
	if s.threeD {
		y = append(y, s.fields["v"].amp())
	}
	return y
}

func (s *Solver) setState(y []float64) {
	s.fields["u"].setAmp(y[0])
	s.fields["w"].setAmp(y[1])
	s.fields["T1"].setAmp(y[2])
	s.fields["Tm"].setAmp(y[3])
	s.fields["Bx"].setAmp(y[4])
	if s.threeD {
		s.fields["v"].setAmp(y[5])
	}
}

// derive is the truncation: every velocity amplitude relaxes toward the
// thermal drive, the temperature mode feeds on the supercriticality, the
// mean correction saturates growth, and the magnetic mode brakes the flow
// with strength Q/Pm.
func (s *Solver) derive(y, dy []float64) {
	r := s.fields["Ra"].amp() / raCrit
	q := s.fields["Q"].amp()

	au, aw, b, cm, m := y[0], y[1], y[2], y[3], y[4]
	brake := (q * s.pr / s.pm) * m * 1e-3

	dy[0] = s.pr*(b-au) - brake
	dy[1] = s.pr*(b-aw) - brake
	dy[2] = aw*(r-cm) - b
	dy[3] = aw*b - geomBeta*cm
	dy[4] = aw - m/s.pm
	if s.threeD {
		dy[5] = s.pr*(b-y[5]) - brake
	}
}

func (s *Solver) Step(dt float64) error {
	if dt <= 0 {
		return fmt.Errorf("lowmode: non-positive dt %g", dt)
	}
	y := s.state()
	n := len(y)

	s.derive(y, s.k1)
	for i := 0; i < n; i++ {
		s.scratch[i] = y[i] + 0.5*dt*s.k1[i]
	}
	s.derive(s.scratch, s.k2)
	for i := 0; i < n; i++ {
		s.scratch[i] = y[i] + 0.5*dt*s.k2[i]
	}
	s.derive(s.scratch, s.k3)
	for i := 0; i < n; i++ {
		s.scratch[i] = y[i] + dt*s.k3[i]
	}
	s.derive(s.scratch, s.k4)

	dt6 := dt / 6.0
	for i := 0; i < n; i++ {
		y[i] += dt6 * (s.k1[i] + 2*s.k2[i] + 2*s.k3[i] + s.k4[i])
		if math.IsNaN(y[i]) || math.IsInf(y[i], 0) {
			return fmt.Errorf("lowmode: non-finite state at t=%.4e", s.t)
		}
	}
	s.setState(y)
	s.t += dt
	s.iter++
	return nil
}

func (s *Solver) SimTime() float64 { return s.t }
func (s *Solver) Iteration() int   { return s.iter }

func (s *Solver) Ok() bool {
	if s.t >= s.stopSim {
		return false
	}
	if !s.deadline.IsZero() && time.Now().After(s.deadline) {
		return false
	}
	return true
}

func (s *Solver) SetStopSimTime(t float64) { s.stopSim = t }

func (s *Solver) SetStopWallTime(d time.Duration) {
	s.deadline = time.Now().Add(d)
}

func (s *Solver) Field(name string) (spectral.Field, error) {
	f, ok := s.fields[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", spectral.ErrUnknownField, name)
	}
	return f, nil
}

// FieldNames lists the state fields in declaration order, for
// checkpointing.
func (s *Solver) FieldNames() []string {
	names := make([]string, len(s.order))
	copy(names, s.order)
	return names
}

// diagnostics evaluates every tracked flow property from the truncation
// amplitudes. The block is spatially uniform, so Max coincides with
// Average.
func (s *Solver) diagnostics() map[string]float64 {
	ra := s.fields["Ra"].amp()
	q := s.fields["Q"].amp()
	r := ra / raCrit

	au := s.fields["u"].amp()
	aw := s.fields["w"].amp()
	b := s.fields["T1"].amp()
	cm := s.fields["Tm"].amp()
	m := s.fields["Bx"].amp()

	velRms := math.Hypot(au, aw)
	if s.threeD {
		av := s.fields["v"].amp()
		velRms = math.Sqrt(au*au + aw*aw + av*av)
	}
	ell := s.aspect / 10

	enth := aw * b
	cond := 1.0 / s.pr
	sB := r * math.Abs(b)
	sI := math.Abs(aw*b) + 1e-16
	sV := math.Abs(aw) + 1e-16
	sML := (q/s.pr)*math.Abs(m) + 1e-16
	sMN := m*m + 1e-16

	d := map[string]float64{
		"Re":          velRms,
		"Pe":          velRms,
		"Re_ver":      math.Abs(aw),
		"Re_hor":      math.Abs(au) * ell,
		"Re_hor_full": velRms * ell,
		"Nu":          1 + math.Abs(cm),
		"delta_T":     1 + b,
		"b_mag":       math.Abs(m),
		"Bz":          0.1 * math.Abs(m),
		"divB":        0,
		"enth_flux":   enth,
		"cond_flux":   cond,
		"tot_flux":    enth + cond,
		"enstrophy":   math.Pi * math.Pi * velRms * velRms,
		"Ra":          ra,
		"Q":           q,
		"s_b_mag":     sB,
		"s_i_mag":     sI,
		"s_v_mag":     sV,
		"s_ml_mag":    sML,
		"s_mn_mag":    sMN,
		"p_b":         0.9 * sB,
		"p_i":         0.9 * sI,
		"p_v":         0.9 * sV,
		"p_ml":        0.9 * sML,
		"p_mn":        0.9 * sMN,
		"p_goodness":  0.05,
	}
	return d
}

func (s *Solver) Average(name string) (float64, error) {
	v, ok := s.diagnostics()[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", spectral.ErrUnknownDiagnostic, name)
	}
	return v, nil
}

func (s *Solver) Max(name string) (float64, error) {
	return s.Average(name)
}

func (s *Solver) AdvectiveTimescale() float64 {
	vmax := math.Max(math.Abs(s.fields["u"].amp()), math.Abs(s.fields["w"].amp()))
	if vmax < 1e-12 {
		return math.Inf(1)
	}
	dz := 1.0 / float64(s.nz)
	return dz / vmax
}

func (s *Solver) Restore(simTime float64, iteration int) {
	s.t = simTime
	s.iter = iteration
}

func (s *Solver) Rank() int { return s.rank }
func (s *Solver) Size() int { return s.size }
