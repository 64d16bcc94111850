package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// OutDir builds the run directory path under RootDir. The name encodes
// the boundary families, dimensionality, forcing parameters, resolution
// and any label, so a directory listing doubles as a run index.
// kind distinguishes the drivers ("mhd_rbc", "bootstrap_mhd_rbc").
func (c *Run) OutDir(kind string) string {
	parts := []string{kind, c.Thermal, c.Velocity, c.Magnetic}
	if c.ThreeD {
		parts = append(parts, "3D")
	} else {
		parts = append(parts, "2.5D")
	}
	parts = append(parts,
		"Q"+compact(c.Q),
		"Ra"+compact(c.Ra),
		"Pr"+trimFloat(c.Pr),
		"Pm"+trimFloat(c.Pm),
		"a"+trimFloat(c.Aspect),
	)
	if kind == "bootstrap_mhd_rbc" {
		parts = append(parts,
			"alpha"+trimFloat(c.Bootstrap.Alpha),
			"beta"+trimFloat(c.Bootstrap.Beta),
			"step"+trimFloat(c.Bootstrap.LogStep),
			fmt.Sprintf("N%d", c.Bootstrap.MaxSteps),
		)
	}
	if c.NoiseModes > 0 {
		parts = append(parts, fmt.Sprintf("modes%d", c.NoiseModes))
	}
	if c.ThreeD {
		parts = append(parts, fmt.Sprintf("%dx%dx%d", c.Nx, c.Ny, c.Nz))
	} else {
		parts = append(parts, fmt.Sprintf("%dx%d", c.Nx, c.Nz))
	}
	if c.Label != "" {
		parts = append(parts, c.Label)
	}
	return filepath.Join(c.RootDir, strings.Join(parts, "_"))
}

// compact renders large dimensionless numbers as 1.00e+05 style.
func compact(v float64) string {
	return fmt.Sprintf("%.2e", v)
}

// trimFloat renders small parameters without trailing zeros.
func trimFloat(v float64) string {
	s := fmt.Sprintf("%g", v)
	return strings.ReplaceAll(s, "/", "-")
}
