package lowmode

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/Immie1996/boussinesq-convection/internal/config"
	"github.com/Immie1996/boussinesq-convection/internal/problem"
	"github.com/Immie1996/boussinesq-convection/internal/spectral"
)

func testConfig() *config.Run {
	c := config.Default()
	c.Ra = 1e4
	c.Q = 1
	c.Nx, c.Nz = 32, 16
	return c
}

func build(t *testing.T, cfg *config.Run) *Solver {
	t.Helper()
	s, err := Build(problem.MHD(cfg), cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return s
}

// kick perturbs the thermal mode the way the driver's noise IC does.
func kick(t *testing.T, s *Solver) {
	t.Helper()
	f, err := s.Field("T1")
	if err != nil {
		t.Fatal(err)
	}
	vals := make([]float64, len(f.Values()))
	for i := range vals {
		vals[i] = 1e-3
	}
	if err := f.SetValues(vals); err != nil {
		t.Fatal(err)
	}
}

func TestBuildRejectsIncompleteProblem(t *testing.T) {
	cfg := testConfig()
	p := &problem.Problem{Variables: []string{"T1", "u"}}
	if _, err := Build(p, cfg); err == nil {
		t.Fatal("problem without w should be rejected")
	}

	p = problem.MHD(cfg)
	p.Parameters = nil
	if _, err := Build(p, cfg); err == nil {
		t.Fatal("problem without Ra/Q parameters should be rejected")
	}
}

func TestFieldBlocksMatchResolution(t *testing.T) {
	cfg := testConfig()
	s := build(t, cfg)
	for _, name := range s.FieldNames() {
		f, err := s.Field(name)
		if err != nil {
			t.Fatalf("Field(%s): %v", name, err)
		}
		if len(f.Values()) != cfg.Nz {
			t.Errorf("field %s block length %d, want %d", name, len(f.Values()), cfg.Nz)
		}
	}
	if _, err := s.Field("nope"); !errors.Is(err, spectral.ErrUnknownField) {
		t.Errorf("unknown field error = %v", err)
	}
}

func TestSetValuesShapeMismatch(t *testing.T) {
	s := build(t, testConfig())
	f, _ := s.Field("u")
	if err := f.SetValues([]float64{1, 2}); !errors.Is(err, spectral.ErrShapeMismatch) {
		t.Errorf("error = %v, want shape mismatch", err)
	}
}

func TestSupercriticalGrowth(t *testing.T) {
	s := build(t, testConfig()) // Ra = 1e4 >> raCrit
	kick(t, s)
	for i := 0; i < 20000; i++ {
		if err := s.Step(1e-3); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	re, err := s.Average("Re")
	if err != nil {
		t.Fatal(err)
	}
	if re < 1 {
		t.Errorf("Re = %g after spinup at Ra=1e4, expected vigorous convection", re)
	}
	nu, _ := s.Average("Nu")
	if nu <= 1 {
		t.Errorf("Nu = %g, convecting state must transport more than conduction", nu)
	}
}

func TestSubcriticalDecay(t *testing.T) {
	cfg := testConfig()
	cfg.Ra = 100 // below raCrit
	s := build(t, cfg)
	kick(t, s)
	for i := 0; i < 20000; i++ {
		if err := s.Step(1e-3); err != nil {
			t.Fatal(err)
		}
	}
	re, _ := s.Average("Re")
	if re > 1e-3 {
		t.Errorf("Re = %g, subcritical flow should decay", re)
	}
}

func TestScaleFeedsDiagnostics(t *testing.T) {
	s := build(t, testConfig())
	kick(t, s)
	for i := 0; i < 1000; i++ {
		if err := s.Step(1e-3); err != nil {
			t.Fatal(err)
		}
	}
	before, _ := s.Average("Ra")

	f, _ := s.Field("Ra")
	f.Scale(10)
	after, _ := s.Average("Ra")
	if math.Abs(after-10*before) > 1e-9*after {
		t.Errorf("Ra diagnostic %g after scaling, want %g", after, 10*before)
	}

	u, _ := s.Field("u")
	reBefore, _ := s.Average("Re")
	u.Scale(2)
	reAfter, _ := s.Average("Re")
	if reAfter <= reBefore {
		t.Error("scaling u must raise the Reynolds diagnostic")
	}
}

func TestStopCriteria(t *testing.T) {
	s := build(t, testConfig())
	s.SetStopSimTime(4.5e-3)
	for s.Ok() {
		if err := s.Step(1e-3); err != nil {
			t.Fatal(err)
		}
	}
	if s.SimTime() < 4.5e-3 {
		t.Errorf("stopped early at t=%g", s.SimTime())
	}
	if s.Iteration() != 5 {
		t.Errorf("iterations = %d, want 5", s.Iteration())
	}

	s2 := build(t, testConfig())
	s2.SetStopWallTime(-time.Second)
	if s2.Ok() {
		t.Error("expired wall deadline should stop the solver")
	}
}

func TestStepRejectsBadDt(t *testing.T) {
	s := build(t, testConfig())
	if err := s.Step(0); err == nil {
		t.Error("zero dt should error")
	}
	if err := s.Step(-1e-3); err == nil {
		t.Error("negative dt should error")
	}
}

func TestAdvectiveTimescale(t *testing.T) {
	s := build(t, testConfig())
	if !math.IsInf(s.AdvectiveTimescale(), 1) {
		t.Error("quiescent state should report an infinite crossing time")
	}
	f, _ := s.Field("u")
	vals := make([]float64, len(f.Values()))
	for i := range vals {
		vals[i] = 2
	}
	f.SetValues(vals)
	want := (1.0 / 16.0) / 2.0
	if got := s.AdvectiveTimescale(); math.Abs(got-want) > 1e-12 {
		t.Errorf("timescale = %g, want %g", got, want)
	}
}

func TestDiagnosticsCoverScalarTasks(t *testing.T) {
	s := build(t, testConfig())
	for _, name := range problem.ScalarTasks() {
		if _, err := s.Average(name); err != nil {
			t.Errorf("Average(%s): %v", name, err)
		}
	}
	for _, name := range problem.FlowProperties() {
		if _, err := s.Max(name); err != nil {
			t.Errorf("Max(%s): %v", name, err)
		}
	}
	if _, err := s.Average("bogus"); !errors.Is(err, spectral.ErrUnknownDiagnostic) {
		t.Errorf("unknown diagnostic error = %v", err)
	}
}

func TestRestoreRewindsClock(t *testing.T) {
	s := build(t, testConfig())
	for i := 0; i < 10; i++ {
		s.Step(1e-3)
	}
	s.Restore(42.0, 900)
	if s.SimTime() != 42.0 || s.Iteration() != 900 {
		t.Errorf("restored to t=%g iter=%d", s.SimTime(), s.Iteration())
	}
}
