package problem

import (
	"math"

	"github.com/Immie1996/boussinesq-convection/internal/config"
)

// MHD builds the Boussinesq magnetohydrodynamic Rayleigh-Benard problem:
// Fourier bases in the horizontal, Chebyshev in the vertical, scaled in
// viscous diffusion time units, with a uniform vertical background field.
// The 2.5D reduction keeps the y components of B and the vector potential
// but drops v and Ox, replacing y derivatives with zero.
func MHD(cfg *config.Run) *Problem {
	p := &Problem{NCCCutoff: 1e-10}

	p.Variables = []string{
		"T1", "T1_z", "p", "u", "w", "phi",
		"Ax", "Ay", "Az", "Bx", "By", "Oy",
		"p_ml", "p_ml_z", "p_mn", "p_mn_z",
		"p_i", "p_i_z", "p_b", "p_b_z", "p_v", "p_v_z",
	}
	if cfg.ThreeD {
		p.Variables = append(p.Variables, "v", "Ox")
	}

	p.AddParameter("Ra", cfg.Ra, true)
	p.AddParameter("Q", cfg.Q, true)
	p.AddParameter("Pr", cfg.Pr, false)
	p.AddParameter("Pm", cfg.Pm, false)
	p.AddParameter("pi", math.Pi, false)
	p.AddParameter("Lx", cfg.Aspect, false)
	p.AddParameter("Ly", cfg.Aspect, false)
	p.AddParameter("Lz", 1, false)
	p.AddParameter("aspect", cfg.Aspect, false)

	addSubstitutions(p, cfg.ThreeD)
	addEquations(p, cfg.ThreeD)
	addBCs(p, cfg)

	return p
}

func addSubstitutions(p *Problem, threeD bool) {
	if !threeD {
		p.AddSubstitution("v", "0")
		p.AddSubstitution("dy(A)", "0")
		p.AddSubstitution("Ox", "0")
	}

	p.AddSubstitution("T0", "(-z + 0.5)")
	p.AddSubstitution("T0_z", "-1")
	p.AddSubstitution("Lap(A, A_z)", "(dx(dx(A)) + dy(dy(A)) + dz(A_z))")
	p.AddSubstitution("UdotGrad(A, A_z)", "(u*dx(A) + v*dy(A) + w*A_z)")
	p.AddSubstitution("Div(Ax, Ay, Az)", "(dx(Ax) + dy(Ay) + dz(Az))")
	p.AddSubstitution("Bz", "dx(Ay)-dy(Ax)")
	p.AddSubstitution("Jx", "dy(Bz)-dz(By)")
	p.AddSubstitution("Jy", "dz(Bx)-dx(Bz)")
	p.AddSubstitution("Jz", "dx(By)-dy(Bx)")
	p.AddSubstitution("Kz", "dx(Oy)-dy(Ox)")
	p.AddSubstitution("Oz", "dx(v)-dy(u)")
	p.AddSubstitution("Ky", "dz(Ox)-dx(Oz)")
	p.AddSubstitution("Kx", "dy(Oz)-dz(Oy)")

	// dimensionless groups
	p.AddSubstitution("inv_Re_ff", "(Pr/Ra)**(1./2.)")
	p.AddSubstitution("inv_Rem_ff", "(inv_Re_ff / Pm)")
	p.AddSubstitution("M_alfven", "sqrt((Ra*Pm)/(Q*Pr))")
	p.AddSubstitution("inv_Pe_ff", "(Ra*Pr)**(-1./2.)")

	if threeD {
		p.AddSubstitution("plane_avg(A)", `integ(A, "x", "y")/Lx/Ly`)
		p.AddSubstitution("vol_avg(A)", "integ(A)/Lx/Ly/Lz")
	} else {
		p.AddSubstitution("plane_avg(A)", `integ(A, "x")/Lx`)
		p.AddSubstitution("vol_avg(A)", "integ(A)/Lx/Lz")
	}
	p.AddSubstitution("plane_std(A)", "sqrt(plane_avg((A - plane_avg(A))**2))")

	p.AddSubstitution("enstrophy", "(Ox**2 + Oy**2 + Oz**2)")
	p.AddSubstitution("enth_flux", "(w*(T1+T0))")
	p.AddSubstitution("cond_flux", "(-(T1_z+T0_z)/Pr)")
	p.AddSubstitution("tot_flux", "(cond_flux+enth_flux)")
	p.AddSubstitution("Nu", "((enth_flux + cond_flux)/vol_avg(cond_flux))")
	p.AddSubstitution("delta_T", "(left(T1+T0)-right(T1+T0))")
	p.AddSubstitution("vel_rms", "sqrt(u**2 + v**2 + w**2)")
	p.AddSubstitution("vel_rms_hor", "sqrt(u**2 + v**2)")
	p.AddSubstitution("ell", "aspect/10")

	p.AddSubstitution("Ex", "dx(phi) + (1/Pm)*Jx + w*By       - v*(1 + Bz)")
	p.AddSubstitution("Ey", "dy(phi) + (1/Pm)*Jy + u*(1 + Bz) - w*Bx")
	p.AddSubstitution("Ez", "dz(phi) + (1/Pm)*Jz + v*Bx       - u*By")

	// force components for the balance diagnostics
	p.AddSubstitution("f_v_x", "Kx")
	p.AddSubstitution("f_v_y", "0")
	p.AddSubstitution("f_v_z", "Kz")
	p.AddSubstitution("f_i_x", "v*Oz - w*Oy")
	p.AddSubstitution("f_i_y", "0")
	p.AddSubstitution("f_i_z", "u*Oy - v*Ox")
	p.AddSubstitution("f_ml_x", "(Q/Pr)*Jy")
	p.AddSubstitution("f_ml_y", "0")
	p.AddSubstitution("f_mn_x", "(Q/Pr)*(Jy*Bz - Jz*By)")
	p.AddSubstitution("f_mn_y", "0")
	p.AddSubstitution("f_mn_z", "(Q/Pr)*(Jx*By - Jy*Bx)")
	p.AddSubstitution("f_b", "(Ra/Pr)*T1")

	p.AddSubstitution("f_v_mag", "sqrt(f_v_x**2 + f_v_z**2)")
	p.AddSubstitution("f_ml_mag", "sqrt(f_ml_x**2)")
	p.AddSubstitution("f_i_mag", "sqrt(f_i_x**2 + f_i_z**2)")
	p.AddSubstitution("f_mn_mag", "sqrt(f_mn_x**2 + f_mn_z**2)")
	p.AddSubstitution("f_b_mag", "sqrt(f_b**2)")

	// solenoidal residuals against the force potentials
	p.AddSubstitution("s_v_mag", "sqrt((f_v_x  - dx(p_v) )**2 + (f_v_z  - dz(p_v) )**2)")
	p.AddSubstitution("s_ml_mag", "sqrt((f_ml_x - dx(p_ml))**2 +          (dz(p_ml))**2)")
	p.AddSubstitution("s_i_mag", "sqrt((f_i_x  - dx(p_i) )**2 + (f_i_z  - dz(p_i) )**2)")
	p.AddSubstitution("s_mn_mag", "sqrt((f_mn_x - dx(p_mn))**2 + (f_mn_z - dz(p_mn))**2)")
	p.AddSubstitution("s_b_mag", "sqrt(         (dx(p_b) )**2 + (f_b    - dz(p_b) )**2)")

	p.AddSubstitution("Re", "( vel_rms )")
	p.AddSubstitution("Pe", "( vel_rms )")
	p.AddSubstitution("Re_ver", "( sqrt(w**2) )")
	p.AddSubstitution("Re_hor", "( vel_rms_hor * ell)")
	p.AddSubstitution("Re_hor_full", "(vel_rms * ell)")
	p.AddSubstitution("b_mag", "sqrt(Bx**2 + By**2 + Bz**2)")
	p.AddSubstitution("b_perp", "sqrt(Bx**2 + By**2)")
	p.AddSubstitution("gp_mag", "sqrt(dx(p)**2 + dz(p)**2)")
	p.AddSubstitution("divB", "dx(Bx) + dy(By) + dz(Bz)")
}

func addEquations(p *Problem, threeD bool) {
	rows := []struct {
		enabled bool
		expr    string
	}{
		{true, "dt(T1) + w*T0_z   - (1/Pr)*Lap(T1, T1_z) = -UdotGrad(T1, T1_z)"},
		{true, "dt(u)  + dx(p)   + f_v_x  =       f_i_x + f_ml_x + f_mn_x"},
		{threeD, "dt(v)  + dy(p)   + f_v_y  =       f_i_y + f_ml_y + f_mn_y"},
		{true, "dt(w)  + dz(p)   + f_v_z  = f_b + f_i_z +          f_mn_z"},
		{true, "dt(Ax) + dx(phi) + (1/Pm)*Jx - v             = v*Bz - w*By"},
		{true, "dt(Ay) + dy(phi) + (1/Pm)*Jy + u             = w*Bx - u*Bz"},
		{true, "dt(Az) + dz(phi) + (1/Pm)*Jz                 = u*By - v*Bx"},
		{true, "dx(u)  + dy(v)  + dz(w)  = 0"},
		{true, "dx(Ax) + dy(Ay) + dz(Az) = 0"},
		{true, "Bx - (dy(Az) - dz(Ay)) = 0"},
		{true, "By - (dz(Ax) - dx(Az)) = 0"},
		{threeD, "Ox - (dy(w) - dz(v)) = 0"},
		{true, "Oy - (dz(u) - dx(w)) = 0"},
		{true, "T1_z - dz(T1) = 0"},
		{true, "Lap(p_b,  p_b_z)  = Div(0,      0,      f_b)"},
		{true, "Lap(p_ml, p_ml_z) = Div(f_ml_x, f_ml_y, 0)"},
		{true, "Lap(p_mn, p_mn_z) = Div(f_mn_x, f_mn_y, f_mn_z)"},
		{true, "Lap(p_i,  p_i_z)  = Div(f_i_x,  f_i_y,  f_i_z)"},
		{true, "Lap(p_v,  p_v_z)  = 0"},
		{true, "p_b_z -  dz(p_b) = 0"},
		{true, "p_ml_z - dz(p_ml) = 0"},
		{true, "p_mn_z - dz(p_mn) = 0"},
		{true, "p_i_z -  dz(p_i) = 0"},
		{true, "p_v_z -  dz(p_v) = 0"},
	}
	for _, row := range rows {
		if row.enabled {
			p.AddEquation(row.expr)
		}
	}
}

// ModeConditions gives the per-mode condition pair used to close the
// pressure gauge and the Coulomb gauge: the zero mode pins the scalar,
// every other mode keeps the impenetrability/potential condition.
func ModeConditions(threeD bool) (zero, other string) {
	if threeD {
		return "(nx == 0) and (ny == 0)", "(nx != 0) or (ny != 0)"
	}
	return "(nx == 0)", "(nx != 0)"
}

func addBCs(p *Problem, cfg *config.Run) {
	threeD := cfg.ThreeD
	zero, other := ModeConditions(threeD)

	rows := []struct {
		enabled   bool
		expr      string
		condition string
	}{
		{cfg.Thermal == config.ThermalFF, "left(T1_z) = 0", ""},
		{cfg.Thermal == config.ThermalFF, "right(T1_z) = 0", ""},
		{cfg.Thermal == config.ThermalFT, "left(T1_z) = 0", ""},
		{cfg.Thermal == config.ThermalFT, "right(T1) = 0", ""},
		{cfg.Thermal == config.ThermalTT, "left(T1) = 0", ""},
		{cfg.Thermal == config.ThermalTT, "right(T1) = 0", ""},

		{cfg.Velocity == config.VelocityFS, "left(Oy) = 0", ""},
		{cfg.Velocity == config.VelocityFS, "right(Oy) = 0", ""},
		{cfg.Velocity == config.VelocityFS && threeD, "left(Ox) = 0", ""},
		{cfg.Velocity == config.VelocityFS && threeD, "right(Ox) = 0", ""},
		{cfg.Velocity == config.VelocityNS, "left(u) = 0", ""},
		{cfg.Velocity == config.VelocityNS, "right(u) = 0", ""},
		{cfg.Velocity == config.VelocityNS && threeD, "left(v) = 0", ""},
		{cfg.Velocity == config.VelocityNS && threeD, "right(v) = 0", ""},

		{true, "left(w) = 0", ""},
		{true, "right(p) = 0", zero},
		{true, "right(w) = 0", other},

		{cfg.Magnetic == config.MagneticMI, "left(Bx) = 0", ""},
		{cfg.Magnetic == config.MagneticMI, "right(Bx) = 0", ""},
		{cfg.Magnetic == config.MagneticMI, "left(By) = 0", ""},
		{cfg.Magnetic == config.MagneticMI, "right(By) = 0", ""},
		{cfg.Magnetic == config.MagneticMI, "left(Az) = 0", ""},
		{cfg.Magnetic == config.MagneticMI, "right(Az) = 0", other},
		{cfg.Magnetic == config.MagneticMI, "right(phi) = 0", zero},

		{cfg.Magnetic == config.MagneticMC, "left(Ax) = 0", ""},
		{cfg.Magnetic == config.MagneticMC, "right(Ax) = 0", ""},
		{cfg.Magnetic == config.MagneticMC, "left(Ay) = 0", ""},
		{cfg.Magnetic == config.MagneticMC, "right(Ay) = 0", ""},
		{cfg.Magnetic == config.MagneticMC, "left(phi) = 0", ""},
		{cfg.Magnetic == config.MagneticMC, "right(phi) = 0", other},
		{cfg.Magnetic == config.MagneticMC, "right(Az) = 0", zero},

		{true, "left(dz(p_b))  =  left(f_b)", ""},
		{true, "right(dz(p_b))  = right(f_b)", other},
		{true, "right(p_b)      = 0", zero},
		{true, "left(dz(p_i))  =  left(f_i_z)", ""},
		{true, "right(dz(p_i))  = right(f_i_z)", other},
		{true, "right(p_i)      = 0", zero},
		{true, "left(dz(p_ml)) = 0", ""},
		{true, "right(dz(p_ml)) = 0", other},
		{true, "right(p_ml)     = 0", zero},
		{true, "left(dz(p_mn)) =  left(f_mn_z)", ""},
		{true, "right(dz(p_mn)) = right(f_mn_z)", other},
		{true, "right(p_mn)     = 0", zero},
		{true, "left(dz(p_v))  =  left(f_v_z)", ""},
		{true, "right(dz(p_v))  = right(f_v_z)", other},
		{true, "right(p_v)      = 0", zero},
	}
	for _, row := range rows {
		if row.enabled {
			p.AddModalBC(row.expr, row.condition)
		}
	}
}

// ScalarTasks lists the volume-averaged quantities the scalar output task
// records every cadence interval.
func ScalarTasks() []string {
	return []string{
		"Re", "Re_ver", "Re_hor", "Re_hor_full",
		"Nu", "delta_T", "b_mag", "Bz", "divB",
		"enth_flux", "cond_flux", "tot_flux", "enstrophy",
		"Ra", "Q",
		"p_goodness", "p_i", "p_b", "p_v", "p_ml", "p_mn",
		"s_v_mag", "s_i_mag", "s_b_mag", "s_mn_mag", "s_ml_mag",
	}
}

// FlowProperties lists the globally reduced diagnostics the driver tracks
// every iteration for logging and the bootstrap trigger.
func FlowProperties() []string {
	return []string{
		"Re", "Re_ver", "Re_hor", "Re_hor_full",
		"b_mag", "Bz", "divB", "Nu",
		"s_b_mag", "s_i_mag", "s_v_mag", "s_mn_mag", "s_ml_mag",
	}
}
