package problem

import (
	"strings"
	"testing"

	"github.com/Immie1996/boussinesq-convection/internal/config"
)

func testConfig() *config.Run {
	c := config.Default()
	c.Nx, c.Nz = 64, 32
	return c
}

func TestVariableCount(t *testing.T) {
	p := MHD(testConfig())
	if got := len(p.Variables); got != 22 {
		t.Errorf("2.5D problem has %d variables, want 22", got)
	}
	for _, name := range []string{"T1", "T1_z", "p", "u", "w", "phi", "Ax", "Ay", "Az", "Bx", "By", "Oy"} {
		if !p.HasVariable(name) {
			t.Errorf("missing variable %s", name)
		}
	}
	if p.HasVariable("v") || p.HasVariable("Ox") {
		t.Error("2.5D problem should not carry v or Ox as variables")
	}

	c := testConfig()
	c.ThreeD = true
	p = MHD(c)
	if got := len(p.Variables); got != 24 {
		t.Errorf("3D problem has %d variables, want 24", got)
	}
	if !p.HasVariable("v") || !p.HasVariable("Ox") {
		t.Error("3D problem must carry v and Ox")
	}
}

func TestForcingParametersAreFields(t *testing.T) {
	p := MHD(testConfig())
	for _, par := range p.Parameters {
		switch par.Name {
		case "Ra", "Q":
			if !par.Field {
				t.Errorf("%s must be a field parameter so it can be rescaled in place", par.Name)
			}
		case "Pr", "Pm":
			if par.Field {
				t.Errorf("%s should be a plain scalar", par.Name)
			}
		}
	}
	if v, ok := p.ParameterValue("Ra"); !ok || v != 1e5 {
		t.Errorf("Ra parameter = %g, %v", v, ok)
	}
}

func TestReducedDimensionSubstitutions(t *testing.T) {
	p := MHD(testConfig())
	subs := make(map[string]string)
	for _, s := range p.Substitutions {
		subs[s.Name] = s.Expr
	}
	if subs["v"] != "0" || subs["Ox"] != "0" {
		t.Error("2.5D problem must zero out v and Ox via substitutions")
	}
	if _, ok := subs["dy(A)"]; !ok {
		t.Error("2.5D problem must zero out y derivatives")
	}

	c := testConfig()
	c.ThreeD = true
	p = MHD(c)
	for _, s := range p.Substitutions {
		if s.Name == "v" && s.Expr == "0" {
			t.Error("3D problem must not zero out v")
		}
	}
}

func TestEquationCount(t *testing.T) {
	p := MHD(testConfig())
	n25 := len(p.Equations)

	c := testConfig()
	c.ThreeD = true
	p3 := MHD(c)
	if len(p3.Equations) != n25+2 {
		t.Errorf("3D adds the v momentum and Ox definition rows: %d vs %d", len(p3.Equations), n25)
	}
}

func TestModeConditions(t *testing.T) {
	zero, other := ModeConditions(false)
	if zero != "(nx == 0)" || other != "(nx != 0)" {
		t.Errorf("2.5D conditions = %q, %q", zero, other)
	}
	zero, other = ModeConditions(true)
	if !strings.Contains(zero, "ny == 0") || !strings.Contains(other, "ny != 0") {
		t.Errorf("3D conditions = %q, %q", zero, other)
	}
}

func TestThermalBoundaryFamilies(t *testing.T) {
	find := func(p *Problem, expr string) bool {
		for _, bc := range p.BCs {
			if bc.Expr == expr {
				return true
			}
		}
		return false
	}

	c := testConfig() // TT
	p := MHD(c)
	if !find(p, "left(T1) = 0") || !find(p, "right(T1) = 0") {
		t.Error("TT should fix temperature at both plates")
	}
	if find(p, "left(T1_z) = 0") {
		t.Error("TT should not fix flux")
	}

	c.Thermal = config.ThermalFT
	p = MHD(c)
	if !find(p, "left(T1_z) = 0") || !find(p, "right(T1) = 0") {
		t.Error("FT should fix flux at the bottom and temperature at the top")
	}

	c.Thermal = config.ThermalFF
	p = MHD(c)
	if !find(p, "left(T1_z) = 0") || !find(p, "right(T1_z) = 0") {
		t.Error("FF should fix flux at both plates")
	}
}

func TestVelocityBoundaryFamilies(t *testing.T) {
	exprs := func(p *Problem) map[string]bool {
		m := make(map[string]bool)
		for _, bc := range p.BCs {
			m[bc.Expr] = true
		}
		return m
	}

	c := testConfig() // NS
	m := exprs(MHD(c))
	if !m["left(u) = 0"] || !m["right(u) = 0"] {
		t.Error("no-slip should pin the horizontal velocity")
	}
	if m["left(Oy) = 0"] {
		t.Error("no-slip should not use the stress-free vorticity conditions")
	}

	c.Velocity = config.VelocityFS
	m = exprs(MHD(c))
	if !m["left(Oy) = 0"] || !m["right(Oy) = 0"] {
		t.Error("free-slip should zero the tangential vorticity")
	}
}

func TestMagneticBoundaryFamilies(t *testing.T) {
	count := func(p *Problem, sub string) int {
		n := 0
		for _, bc := range p.BCs {
			if strings.Contains(bc.Expr, sub) {
				n++
			}
		}
		return n
	}

	c := testConfig() // MC
	p := MHD(c)
	if count(p, "Ax") == 0 || count(p, "Ay") == 0 {
		t.Error("conducting boundaries pin the tangential vector potential")
	}
	if count(p, "left(Bx)") != 0 {
		t.Error("conducting boundaries should not pin the tangential field")
	}

	c.Magnetic = config.MagneticMI
	p = MHD(c)
	if count(p, "left(Bx)") == 0 || count(p, "left(By)") == 0 {
		t.Error("insulating boundaries pin the tangential field")
	}
}

func TestGaugeConditionsSplitOnMode(t *testing.T) {
	p := MHD(testConfig())
	zero, other := ModeConditions(false)
	var sawZero, sawOther bool
	for _, bc := range p.BCs {
		switch bc.Condition {
		case zero:
			sawZero = true
		case other:
			sawOther = true
		}
	}
	if !sawZero || !sawOther {
		t.Error("pressure/gauge closure needs both mode-condition branches")
	}
}

func TestScalarTasksCoverBalances(t *testing.T) {
	tasks := ScalarTasks()
	seen := make(map[string]bool, len(tasks))
	for _, name := range tasks {
		if seen[name] {
			t.Errorf("duplicate task %s", name)
		}
		seen[name] = true
	}
	for _, want := range []string{"Re", "Nu", "Ra", "Q", "divB", "p_goodness", "p_b", "s_b_mag"} {
		if !seen[want] {
			t.Errorf("scalar tasks missing %s", want)
		}
	}
	for _, name := range FlowProperties() {
		if !seen[name] {
			t.Errorf("flow property %s not recorded as a scalar task", name)
		}
	}
}
