package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Immie1996/boussinesq-convection/internal/checkpoint"
	"github.com/Immie1996/boussinesq-convection/internal/config"
	"github.com/Immie1996/boussinesq-convection/internal/lowmode"
	"github.com/Immie1996/boussinesq-convection/internal/output"
	"github.com/Immie1996/boussinesq-convection/internal/problem"
	"github.com/Immie1996/boussinesq-convection/internal/run"
	"github.com/Immie1996/boussinesq-convection/internal/server"
	"github.com/Immie1996/boussinesq-convection/internal/spectral"
	"github.com/Immie1996/boussinesq-convection/internal/viz"
)

var (
	cfg = config.Default()

	// family and stepper selectors, resolved onto cfg after parsing
	fixedTemp  bool
	fixedFlux  bool
	freeSlip   bool
	insulating bool
	sbdf2      bool
	sbdf4      bool

	meshStr    string
	logStepStr string

	presetName string
	presetFile string
	configFile string

	frameRate int
	addr      string
	plotTask  string
	verbose   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mhdrbc",
		Short: "magnetohydrodynamic Rayleigh-Benard convection driver",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}
		},
	}
	rootCmd.PersistentFlags().StringVar(&cfg.RootDir, "root-dir", ".", "directory that holds run outputs")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run at fixed Ra and Q",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := resolveConfig(cmd.Flags()); err != nil {
				return err
			}
			return run.Single(signalContext(), driverOptions(nil))
		},
	}
	bindPhysicsFlags(runCmd.Flags())

	bootstrapCmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "step Ra and Q upward as the flow equilibrates",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := resolveConfig(cmd.Flags()); err != nil {
				return err
			}
			return run.Bootstrap(signalContext(), driverOptions(nil))
		},
	}
	bindPhysicsFlags(bootstrapCmd.Flags())
	bindBootstrapFlags(bootstrapCmd.Flags())

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "bootstrap run with a live terminal monitor",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := resolveConfig(cmd.Flags()); err != nil {
				return err
			}
			return runLive(cmd)
		},
	}
	bindPhysicsFlags(liveCmd.Flags())
	bindBootstrapFlags(liveCmd.Flags())
	liveCmd.Flags().IntVar(&frameRate, "fps", 10, "monitor refresh rate")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "bootstrap run that streams diagnostics over a websocket",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := resolveConfig(cmd.Flags()); err != nil {
				return err
			}
			hub := server.NewHub()
			go func() {
				if err := hub.ListenAndServe(addr); err != nil {
					logrus.WithError(err).Error("websocket server stopped")
				}
			}()
			return run.Bootstrap(signalContext(), driverOptions(hub))
		},
	}
	bindPhysicsFlags(serveCmd.Flags())
	bindBootstrapFlags(serveCmd.Flags())
	serveCmd.Flags().StringVar(&addr, "addr", "localhost:8757", "listen address")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list recorded runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listRuns()
		},
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_dir]",
		Short: "plot a recorded scalar series",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			chart, err := viz.PlotScalar(args[0], plotTask, 70, 12)
			if err != nil {
				return err
			}
			fmt.Println(chart)
			return nil
		},
	}
	plotCmd.Flags().StringVar(&plotTask, "task", "Re", "scalar column to plot")

	mergeCmd := &cobra.Command{
		Use:   "merge [run_dir]",
		Short: "merge per-process output shards",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, dir := range []string{"checkpoint", "final_checkpoint"} {
				path := filepath.Join(args[0], dir)
				if _, err := os.Stat(path); err != nil {
					continue
				}
				if err := checkpoint.Merge(path, true); err != nil {
					return err
				}
			}
			return output.MergeAll(args[0], true)
		},
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list canned run configurations",
		RunE: func(cmd *cobra.Command, args []string) error {
			names := config.ListPresets()
			if presetFile != "" {
				extra, err := config.LoadPresetFile(presetFile)
				if err != nil {
					return err
				}
				for name := range extra {
					names = append(names, name+" (file)")
				}
			}
			for _, name := range names {
				fmt.Println(name)
			}
			return nil
		},
	}
	presetsCmd.Flags().StringVar(&presetFile, "preset-file", "", "extra presets (yaml)")

	rootCmd.AddCommand(runCmd, bootstrapCmd, liveCmd, serveCmd, listCmd, plotCmd, mergeCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		logrus.WithError(err).Error("command failed")
		os.Exit(1)
	}
}

// bindPhysicsFlags registers the flags shared by every driver command,
// bound straight onto the run configuration.
func bindPhysicsFlags(fs *pflag.FlagSet) {
	fs.Float64Var(&cfg.Ra, "Ra", cfg.Ra, "Rayleigh number")
	fs.Float64Var(&cfg.Pr, "Pr", cfg.Pr, "Prandtl number")
	fs.Float64Var(&cfg.Q, "Q", cfg.Q, "Chandrasekhar number")
	fs.Float64Var(&cfg.Pm, "Pm", cfg.Pm, "magnetic Prandtl number")
	fs.Float64Var(&cfg.Aspect, "a", cfg.Aspect, "aspect ratio")
	fs.BoolVar(&cfg.ThreeD, "3D", cfg.ThreeD, "solve in three dimensions")
	fs.IntVar(&cfg.Nx, "nx", cfg.Nx, "horizontal resolution")
	fs.IntVar(&cfg.Ny, "ny", cfg.Ny, "second horizontal resolution (3D)")
	fs.IntVar(&cfg.Nz, "nz", cfg.Nz, "vertical resolution")
	fs.StringVar(&meshStr, "mesh", "", "processor mesh, e.g. 4,8")

	fs.BoolVar(&fixedFlux, "FF", false, "fixed-flux thermal boundaries")
	fs.BoolVar(&fixedTemp, "FT", false, "fixed-flux bottom, fixed-temperature top")
	fs.BoolVar(&freeSlip, "FS", false, "free-slip velocity boundaries")
	fs.BoolVar(&insulating, "MI", false, "insulating magnetic boundaries")
	fs.BoolVar(&sbdf2, "SBDF2", false, "2nd-order semi-implicit BDF timestepper")
	fs.BoolVar(&sbdf4, "SBDF4", false, "4th-order semi-implicit BDF timestepper")

	fs.Float64Var(&cfg.Safety, "safety", cfg.Safety, "CFL safety factor")
	fs.Float64Var(&cfg.Factor, "factor", cfg.Factor, "timestep cap factor over 1/Q")
	fs.Int64Var(&cfg.Seed, "seed", cfg.Seed, "noise seed")
	fs.IntVar(&cfg.NoiseModes, "noise-modes", cfg.NoiseModes, "band-limit initial noise to this many modes")

	fs.Float64Var(&cfg.WallHours, "run-time-wall", cfg.WallHours, "wall-clock budget in hours")
	fs.Float64Var(&cfg.RunBuoy, "run-time-buoy", cfg.RunBuoy, "simulation budget in buoyancy times")
	fs.Float64Var(&cfg.RunTherm, "run-time-therm", cfg.RunTherm, "simulation budget in thermal times")

	fs.StringVar(&cfg.Restart, "restart", "", "checkpoint directory to resume from")
	fs.BoolVar(&cfg.Overwrite, "overwrite", false, "restart output sets at 1 even when resuming")
	fs.BoolVar(&cfg.NoJoin, "no-join", false, "leave output shards unmerged")
	fs.StringVar(&cfg.Label, "label", "", "suffix for the output directory name")

	fs.StringVar(&configFile, "config", "", "INI parameter file")
	fs.StringVar(&presetName, "preset", "", "canned configuration name")
	fs.StringVar(&presetFile, "preset-file", "", "extra presets (yaml)")
}

func bindBootstrapFlags(fs *pflag.FlagSet) {
	fs.Float64Var(&cfg.Bootstrap.Alpha, "alpha", cfg.Bootstrap.Alpha, "Q-direction exponent of the bootstrap path")
	fs.Float64Var(&cfg.Bootstrap.Beta, "beta", cfg.Bootstrap.Beta, "Ra-direction exponent of the bootstrap path")
	fs.StringVar(&logStepStr, "log-step", "1/4", "log10 increment per step, fractions allowed")
	fs.IntVar(&cfg.Bootstrap.MaxSteps, "nboots", cfg.Bootstrap.MaxSteps, "maximum number of parameter steps")
	fs.Float64Var(&cfg.Bootstrap.BootTime, "boot-time", cfg.Bootstrap.BootTime, "minimum dwell per step, buoyancy times")
	fs.BoolVar(&cfg.Bootstrap.Converge, "converge-window", cfg.Bootstrap.Converge, "trigger steps on force-balance convergence")
}

// resolveConfig finishes the layered configuration: preset values fill in
// flags the user left untouched, the INI file overlays the rest, and the
// selector booleans collapse onto the enum fields. Precedence is
// flag > INI file > preset > default.
func resolveConfig(fs *pflag.FlagSet) error {
	if presetName != "" {
		p, err := lookupPreset(presetName)
		if err != nil {
			return err
		}
		cfg.Apply(maskChanged(fs, p))
	}
	if configFile != "" {
		if err := config.ApplyINI(configFile, fs); err != nil {
			return err
		}
	}

	if fixedFlux {
		cfg.Thermal = config.ThermalFF
	} else if fixedTemp {
		cfg.Thermal = config.ThermalFT
	}
	if freeSlip {
		cfg.Velocity = config.VelocityFS
	}
	if insulating {
		cfg.Magnetic = config.MagneticMI
	}
	if sbdf4 {
		cfg.Timestepper = config.StepperSBDF4
	} else if sbdf2 {
		cfg.Timestepper = config.StepperSBDF2
	}

	if meshStr != "" {
		mesh, err := config.ParseMesh(meshStr)
		if err != nil {
			return err
		}
		cfg.Mesh = mesh
	}
	if fs.Lookup("log-step") != nil && fs.Changed("log-step") {
		step, err := config.ParseFraction(logStepStr)
		if err != nil {
			return err
		}
		cfg.Bootstrap.LogStep = step
	}
	return nil
}

func lookupPreset(name string) (*config.Run, error) {
	if presetFile != "" {
		extra, err := config.LoadPresetFile(presetFile)
		if err != nil {
			return nil, err
		}
		if p, ok := extra[name]; ok {
			return p, nil
		}
	}
	if p := config.GetPreset(name); p != nil {
		return p, nil
	}
	return nil, fmt.Errorf("unknown preset %q (available: %v)", name, config.ListPresets())
}

// maskChanged zeroes the preset fields whose flags were set explicitly,
// so Apply cannot override a command-line choice.
func maskChanged(fs *pflag.FlagSet, p *config.Run) *config.Run {
	masked := *p
	changed := func(name string) bool {
		return fs.Lookup(name) != nil && fs.Changed(name)
	}
	if changed("Ra") {
		masked.Ra = 0
	}
	if changed("Pr") {
		masked.Pr = 0
	}
	if changed("Q") {
		masked.Q = 0
	}
	if changed("Pm") {
		masked.Pm = 0
	}
	if changed("a") {
		masked.Aspect = 0
	}
	if changed("nx") {
		masked.Nx = 0
	}
	if changed("ny") {
		masked.Ny = 0
	}
	if changed("nz") {
		masked.Nz = 0
	}
	if changed("3D") {
		masked.ThreeD = false
	}
	if changed("FF") || changed("FT") {
		masked.Thermal = ""
	}
	if changed("FS") {
		masked.Velocity = ""
	}
	if changed("MI") {
		masked.Magnetic = ""
	}
	if changed("SBDF2") || changed("SBDF4") {
		masked.Timestepper = ""
	}
	if changed("safety") {
		masked.Safety = 0
	}
	if changed("run-time-wall") {
		masked.WallHours = 0
	}
	if changed("run-time-buoy") {
		masked.RunBuoy = 0
	}
	if changed("run-time-therm") {
		masked.RunTherm = 0
	}
	if changed("alpha") || changed("beta") || changed("log-step") ||
		changed("nboots") || changed("boot-time") {
		masked.Bootstrap = config.Schedule{}
	}
	return &masked
}

func driverOptions(obs run.Observer) run.Options {
	return run.Options{
		Config:   cfg,
		Build:    buildSolver,
		Observer: obs,
	}
}

func buildSolver(p *problem.Problem, c *config.Run) (spectral.Solver, error) {
	return lowmode.Build(p, c)
}

func signalContext() context.Context {
	ctx, _ := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return ctx
}

func runLive(cmd *cobra.Command) error {
	mon := viz.NewMonitor()
	program := tea.NewProgram(viz.NewModel(mon, "mhd rayleigh-benard bootstrap", frameRate))

	go func() {
		err := run.Bootstrap(signalContext(), driverOptions(mon))
		mon.Finish(err)
		program.Send(viz.DoneMsg{Err: err})
	}()

	_, err := program.Run()
	return err
}

func listRuns() error {
	runs, err := output.ListRuns(cfg.RootDir)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tRA\tQ\tPR\tPM\tRESOLUTION\tDATE")
	for _, r := range runs {
		res := fmt.Sprintf("%dx%d", r.Nx, r.Nz)
		if r.ThreeD {
			res = fmt.Sprintf("%dx%dx%d", r.Nx, r.Ny, r.Nz)
		}
		fmt.Fprintf(w, "%s\t%s\t%.2e\t%.2e\t%g\t%g\t%s\t%s\n",
			r.ID, r.Kind, r.Ra, r.Q, r.Pr, r.Pm, res,
			r.Timestamp.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}
