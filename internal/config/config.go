package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Boundary-condition families. Thermal and velocity conditions are applied
// at both plates; the magnetic family selects between a perfectly
// conducting and an electrically insulating boundary.
const (
	ThermalTT = "TT" // fixed temperature top and bottom
	ThermalFT = "FT" // fixed flux bottom, fixed temperature top
	ThermalFF = "FF" // fixed flux top and bottom

	VelocityNS = "NS" // no-slip
	VelocityFS = "FS" // free-slip (stress free)

	MagneticMC = "MC" // electrically conducting
	MagneticMI = "MI" // electrically insulating
)

// Timesteppers understood by the solver backend.
const (
	StepperRK443 = "RK443"
	StepperSBDF2 = "SBDF2"
	StepperSBDF4 = "SBDF4"
)

// Schedule holds the bootstrap path through (Ra, Q) space.
type Schedule struct {
	Alpha    float64 `yaml:"alpha"`
	Beta     float64 `yaml:"beta"`
	LogStep  float64 `yaml:"log_step"`
	MaxSteps int     `yaml:"max_steps"`
	BootTime float64 `yaml:"boot_time"` // minimum dwell per step, buoyancy times

	// Converge switches the step trigger from the elapsed-dwell heuristic
	// to the windowed-RMS force-balance detector.
	Converge bool `yaml:"converge"`
}

// Run is the full parameter set for one simulation. Mutable forcing
// parameters (Ra, Q) are only the starting values; the bootstrap
// controller owns them once the loop is running.
type Run struct {
	Ra     float64 `yaml:"ra"`
	Pr     float64 `yaml:"pr"`
	Q      float64 `yaml:"q"`
	Pm     float64 `yaml:"pm"`
	Aspect float64 `yaml:"aspect"`

	Nx     int  `yaml:"nx"`
	Ny     int  `yaml:"ny"`
	Nz     int  `yaml:"nz"`
	ThreeD bool `yaml:"three_d"`

	Thermal  string `yaml:"thermal_bc"`
	Velocity string `yaml:"velocity_bc"`
	Magnetic string `yaml:"magnetic_bc"`

	Timestepper string  `yaml:"timestepper"`
	Safety      float64 `yaml:"safety"`
	Factor      float64 `yaml:"factor"` // caps max dt at factor/Q

	Seed       int64 `yaml:"seed"`
	NoiseModes int   `yaml:"noise_modes"`
	Mesh       []int `yaml:"mesh"`

	RootDir   string  `yaml:"root_dir"`
	Label     string  `yaml:"label"`
	WallHours float64 `yaml:"wall_hours"`

	// Stop time for fixed-parameter runs; at most one is set.
	RunBuoy  float64 `yaml:"run_buoy"`
	RunTherm float64 `yaml:"run_therm"`

	Restart   string `yaml:"restart"`
	Overwrite bool   `yaml:"overwrite"`
	NoJoin    bool   `yaml:"no_join"`

	Bootstrap Schedule `yaml:"bootstrap"`
}

// Default mirrors the fixed-parameter run defaults.
func Default() *Run {
	return &Run{
		Ra:          1e5,
		Pr:          1,
		Q:           1,
		Pm:          1,
		Aspect:      2,
		Nx:          256,
		Ny:          256,
		Nz:          128,
		Thermal:     ThermalTT,
		Velocity:    VelocityNS,
		Magnetic:    MagneticMC,
		Timestepper: StepperRK443,
		Safety:      0.7,
		Factor:      1,
		Seed:        42,
		RootDir:     ".",
		WallHours:   23.5,
		RunTherm:    1,
		Bootstrap: Schedule{
			Alpha:    1,
			Beta:     0,
			LogStep:  0.25,
			MaxSteps: 12,
			BootTime: 100,
		},
	}
}

func (c *Run) Validate() error {
	if c.Ra <= 0 || c.Pr <= 0 || c.Q <= 0 || c.Pm <= 0 {
		return fmt.Errorf("config: Ra, Pr, Q, Pm must be positive (Ra=%g Pr=%g Q=%g Pm=%g)", c.Ra, c.Pr, c.Q, c.Pm)
	}
	if c.Nx <= 0 || c.Nz <= 0 || (c.ThreeD && c.Ny <= 0) {
		return fmt.Errorf("config: resolution must be positive, got %dx%dx%d", c.Nx, c.Ny, c.Nz)
	}
	if c.Aspect <= 0 {
		return fmt.Errorf("config: aspect ratio must be positive, got %g", c.Aspect)
	}
	switch c.Thermal {
	case ThermalTT, ThermalFT, ThermalFF:
	default:
		return fmt.Errorf("config: unknown thermal boundary family %q", c.Thermal)
	}
	switch c.Velocity {
	case VelocityNS, VelocityFS:
	default:
		return fmt.Errorf("config: unknown velocity boundary family %q", c.Velocity)
	}
	switch c.Magnetic {
	case MagneticMC, MagneticMI:
	default:
		return fmt.Errorf("config: unknown magnetic boundary family %q", c.Magnetic)
	}
	switch c.Timestepper {
	case StepperRK443, StepperSBDF2, StepperSBDF4:
	default:
		return fmt.Errorf("config: unknown timestepper %q", c.Timestepper)
	}
	if c.Safety <= 0 || c.Safety > 1 {
		return fmt.Errorf("config: CFL safety must be in (0, 1], got %g", c.Safety)
	}
	if len(c.Mesh) != 0 && len(c.Mesh) != 2 {
		return fmt.Errorf("config: processor mesh wants two entries, got %v", c.Mesh)
	}
	return nil
}

// ValidateSchedule checks the bootstrap path. A path with both exponents
// zero has no direction in (Ra, Q) space and is rejected rather than
// silently treated as a pure-Ra walk.
func (s Schedule) Validate() error {
	if s.Alpha == 0 && s.Beta == 0 {
		return fmt.Errorf("config: bootstrap path needs alpha or beta nonzero")
	}
	if s.LogStep <= 0 {
		return fmt.Errorf("config: bootstrap log step must be positive, got %g", s.LogStep)
	}
	if s.MaxSteps < 0 {
		return fmt.Errorf("config: bootstrap max steps must be non-negative, got %d", s.MaxSteps)
	}
	return nil
}

// BuoyancyTime is the convective overturn timescale sqrt(Pr/Ra) in the
// viscous-time normalization used throughout.
func (c *Run) BuoyancyTime() float64 {
	return math.Sqrt(c.Pr / c.Ra)
}

// MaxDt is the initial cap on the adaptive timestep: half the smaller of
// the buoyancy time and the Alfven-crossing estimate factor/Q.
func (c *Run) MaxDt() float64 {
	return 0.5 * math.Min(c.BuoyancyTime(), c.Factor/c.Q)
}

// ParseFraction reads a flag value that may be a plain float or a
// fraction like "1/4".
func ParseFraction(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
		if err != nil {
			return 0, fmt.Errorf("config: bad fraction %q: %w", s, err)
		}
		d, err := strconv.ParseFloat(strings.TrimSpace(den), 64)
		if err != nil {
			return 0, fmt.Errorf("config: bad fraction %q: %w", s, err)
		}
		if d == 0 {
			return 0, fmt.Errorf("config: zero denominator in %q", s)
		}
		return n / d, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("config: bad value %q: %w", s, err)
	}
	return v, nil
}

// ParseMesh reads a "p1,p2" processor mesh flag.
func ParseMesh(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return nil, fmt.Errorf("config: processor mesh wants \"p1,p2\", got %q", s)
	}
	mesh := make([]int, 2)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("config: bad mesh entry %q: %w", p, err)
		}
		mesh[i] = v
	}
	return mesh, nil
}
