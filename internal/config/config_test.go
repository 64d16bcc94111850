package config

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if err := Default().Bootstrap.Validate(); err != nil {
		t.Fatalf("default schedule should validate: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Run)
	}{
		{"negative Ra", func(c *Run) { c.Ra = -1 }},
		{"zero Q", func(c *Run) { c.Q = 0 }},
		{"zero resolution", func(c *Run) { c.Nx = 0 }},
		{"missing ny in 3D", func(c *Run) { c.ThreeD = true; c.Ny = 0 }},
		{"bad thermal family", func(c *Run) { c.Thermal = "TF" }},
		{"bad velocity family", func(c *Run) { c.Velocity = "SL" }},
		{"bad magnetic family", func(c *Run) { c.Magnetic = "MX" }},
		{"bad timestepper", func(c *Run) { c.Timestepper = "RK222" }},
		{"safety above one", func(c *Run) { c.Safety = 1.5 }},
		{"odd mesh", func(c *Run) { c.Mesh = []int{4} }},
	}
	for _, tc := range cases {
		c := Default()
		tc.mutate(c)
		if err := c.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestScheduleRejectsDirectionless(t *testing.T) {
	s := Schedule{Alpha: 0, Beta: 0, LogStep: 0.25, MaxSteps: 10}
	if err := s.Validate(); err == nil {
		t.Fatal("alpha=beta=0 should be rejected")
	}
}

func TestBuoyancyTime(t *testing.T) {
	c := Default()
	c.Ra, c.Pr = 1e6, 4
	want := math.Sqrt(4.0 / 1e6)
	if got := c.BuoyancyTime(); math.Abs(got-want) > 1e-15 {
		t.Errorf("buoyancy time = %g, want %g", got, want)
	}
}

func TestMaxDtTracksQ(t *testing.T) {
	c := Default()
	c.Ra, c.Pr, c.Q, c.Factor = 1e4, 1, 1e4, 1
	// factor/Q is far below the buoyancy time here.
	want := 0.5 / 1e4
	if got := c.MaxDt(); math.Abs(got-want) > 1e-15 {
		t.Errorf("max dt = %g, want %g", got, want)
	}
}

func TestParseFraction(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"0.25", 0.25},
		{"1/4", 0.25},
		{" 1 / 2 ", 0.5},
		{"3", 3},
	}
	for _, tc := range cases {
		got, err := ParseFraction(tc.in)
		if err != nil {
			t.Errorf("ParseFraction(%q): %v", tc.in, err)
			continue
		}
		if math.Abs(got-tc.want) > 1e-15 {
			t.Errorf("ParseFraction(%q) = %g, want %g", tc.in, got, tc.want)
		}
	}
	for _, bad := range []string{"", "1/0", "a/b", "x"} {
		if _, err := ParseFraction(bad); err == nil {
			t.Errorf("ParseFraction(%q): expected error", bad)
		}
	}
}

func TestParseMesh(t *testing.T) {
	mesh, err := ParseMesh("4,8")
	if err != nil {
		t.Fatalf("ParseMesh: %v", err)
	}
	if mesh[0] != 4 || mesh[1] != 8 {
		t.Errorf("mesh = %v, want [4 8]", mesh)
	}
	if _, err := ParseMesh("4"); err == nil {
		t.Error("single-entry mesh should be rejected")
	}
	if _, err := ParseMesh("4,x"); err == nil {
		t.Error("non-numeric mesh should be rejected")
	}
}

func TestOutDirEncodesParameters(t *testing.T) {
	c := Default()
	c.RootDir = "/data"
	c.Label = "test"
	dir := c.OutDir("bootstrap_mhd_rbc")

	name := filepath.Base(dir)
	for _, want := range []string{
		"bootstrap_mhd_rbc", "TT", "NS", "MC", "2.5D",
		"Ra1.00e+05", "Q1.00e+00", "alpha1", "beta0", "step0.25", "N12",
		"256x128", "test",
	} {
		if !strings.Contains(name, want) {
			t.Errorf("dir name %q missing %q", name, want)
		}
	}
	if !strings.HasPrefix(dir, "/data/") {
		t.Errorf("dir %q not rooted under /data", dir)
	}

	c.ThreeD = true
	if !strings.Contains(c.OutDir("mhd_rbc"), "256x256x128") {
		t.Error("3D dir name should carry the full resolution")
	}
}

func TestApplyOverlaysNonZero(t *testing.T) {
	c := Default()
	c.Apply(&Run{Ra: 1e7, Velocity: VelocityFS})
	if c.Ra != 1e7 {
		t.Errorf("Ra = %g, want 1e7", c.Ra)
	}
	if c.Velocity != VelocityFS {
		t.Errorf("velocity = %q, want FS", c.Velocity)
	}
	// untouched fields keep their defaults
	if c.Pr != 1 || c.Nz != 128 {
		t.Error("overlay clobbered unset fields")
	}
}

func TestGetPreset(t *testing.T) {
	if GetPreset("bootstrap-ra") == nil {
		t.Fatal("bootstrap-ra preset missing")
	}
	if GetPreset("nope") != nil {
		t.Fatal("unknown preset should be nil")
	}
	names := ListPresets()
	if len(names) == 0 {
		t.Fatal("no presets listed")
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Fatalf("presets not sorted: %v", names)
		}
	}
}

func TestLoadPresetFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.yaml")
	body := "mine:\n  ra: 3.0e+06\n  q: 10\n  velocity_bc: FS\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	presets, err := LoadPresetFile(path)
	if err != nil {
		t.Fatalf("LoadPresetFile: %v", err)
	}
	p := presets["mine"]
	if p == nil {
		t.Fatal("preset 'mine' missing")
	}
	if p.Ra != 3e6 || p.Q != 10 || p.Velocity != VelocityFS {
		t.Errorf("preset = %+v", p)
	}
}

func TestApplyINIPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.cfg")
	body := "[parameters]\nRA = 1e8\nnz = 64\nSafety = 0.5\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	c := Default()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Float64Var(&c.Ra, "Ra", c.Ra, "")
	fs.IntVar(&c.Nz, "nz", c.Nz, "")
	fs.Float64Var(&c.Safety, "safety", c.Safety, "")
	if err := fs.Parse([]string{"--nz", "512"}); err != nil {
		t.Fatal(err)
	}

	if err := ApplyINI(path, fs); err != nil {
		t.Fatalf("ApplyINI: %v", err)
	}
	if c.Ra != 1e8 {
		t.Errorf("Ra = %g, want file value 1e8 (case-insensitive key)", c.Ra)
	}
	if c.Safety != 0.5 {
		t.Errorf("safety = %g, want file value 0.5", c.Safety)
	}
	if c.Nz != 512 {
		t.Errorf("nz = %d, explicit flag must beat the file", c.Nz)
	}
}

func TestApplyINIBadValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.cfg")
	if err := os.WriteFile(path, []byte("[parameters]\nRa = banana\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	var ra float64
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Float64Var(&ra, "Ra", 1e5, "")
	if err := ApplyINI(path, fs); err == nil {
		t.Fatal("non-numeric value should error")
	}
}
