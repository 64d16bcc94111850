package run

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Immie1996/boussinesq-convection/internal/checkpoint"
	"github.com/Immie1996/boussinesq-convection/internal/config"
	"github.com/Immie1996/boussinesq-convection/internal/diag"
	"github.com/Immie1996/boussinesq-convection/internal/output"
	"github.com/Immie1996/boussinesq-convection/internal/problem"
	"github.com/Immie1996/boussinesq-convection/internal/spectral"
)

const (
	defaultLogEvery  = 10
	hermitianEvery   = 100
	checkpointWall   = 30 * time.Minute
	checkpointIters  = 5000
	scalarCadenceFac = 0.1
	sliceCadenceFac  = 0.25
)

// Builder constructs a solver backend for an assembled problem.
type Builder func(p *problem.Problem, cfg *config.Run) (spectral.Solver, error)

// Sample is one diagnostic snapshot of the running simulation, emitted
// every logging interval.
type Sample struct {
	Iteration int
	SimTime   float64
	BuoyTime  float64
	Dt        float64
	Re        float64
	ReMax     float64
	ReVer     float64
	Nu        float64
	BMag      float64
	Bz        float64
	DivB      float64
	Ra        float64
	Q         float64
	Phase     string
}

// Observer receives diagnostic samples as the run progresses. Implementations
// must not block; slow consumers should drop samples.
type Observer interface {
	OnSample(Sample)
}

// Options collects everything a driver needs beyond the run configuration.
type Options struct {
	Config   *config.Run
	Build    Builder
	Observer Observer
	LogEvery int
}

type loop struct {
	cfg     *config.Run
	s       spectral.Solver
	cfl     *spectral.CFL
	chk     *checkpoint.Checkpoint
	scalars *output.ScalarTask
	slices  *output.SliceTask

	runDir   string
	tBuoy    float64
	reAvg    float64
	logEvery int
	obs      Observer
	log      *logrus.Entry
	last     Sample

	// phase, when set, labels samples with the controller state.
	phase func() string
}

func prepare(opts Options, kind string) (*loop, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Build == nil {
		return nil, fmt.Errorf("run: no solver builder supplied")
	}

	runDir := cfg.OutDir(kind)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, err
	}
	if err := output.WriteRunMeta(runDir, kind, cfg); err != nil {
		return nil, err
	}

	p := problem.MHD(cfg)
	s, err := opts.Build(p, cfg)
	if err != nil {
		return nil, err
	}

	dt := cfg.MaxDt()
	if cfg.Restart != "" {
		restored, err := checkpoint.Restart(cfg.Restart, s)
		if err != nil {
			return nil, fmt.Errorf("restart from %s: %w", cfg.Restart, err)
		}
		if restored > 0 {
			dt = math.Min(dt, restored)
		}
	} else if err := seedTemperature(s, cfg.Seed, cfg.NoiseModes); err != nil {
		return nil, err
	}

	overwrite := cfg.Restart == "" || cfg.Overwrite
	tBuoy := cfg.BuoyancyTime()

	scalars, err := output.NewScalarTask(runDir, s.Rank(), problem.ScalarTasks(), scalarCadenceFac*tBuoy, overwrite)
	if err != nil {
		return nil, err
	}
	slices, err := output.NewSliceTask(runDir, s.Rank(), sliceFields(cfg), sliceCadenceFac*tBuoy, overwrite)
	if err != nil {
		return nil, err
	}

	chk := checkpoint.New(runDir)
	chk.Configure(checkpointWall, checkpointIters)

	s.SetStopWallTime(time.Duration(cfg.WallHours * float64(time.Hour)))

	logEvery := opts.LogEvery
	if logEvery <= 0 {
		logEvery = defaultLogEvery
	}

	return &loop{
		cfg:      cfg,
		s:        s,
		cfl:      spectral.NewCFL(dt, cfg.Safety, cfg.MaxDt()),
		chk:      chk,
		scalars:  scalars,
		slices:   slices,
		runDir:   runDir,
		tBuoy:    tBuoy,
		logEvery: logEvery,
		obs:      opts.Observer,
		log:      logrus.WithField("run", kind),
	}, nil
}

func sliceFields(cfg *config.Run) []string {
	fields := []string{"T1", "u", "w", "Bx"}
	if cfg.ThreeD {
		fields = append(fields, "v")
	}
	return fields
}

// Single runs the simulation at fixed Ra and Q until the simulation-time
// budget or the wall clock runs out.
func Single(ctx context.Context, opts Options) (err error) {
	l, err := prepare(opts, "mhd_rbc")
	if err != nil {
		return err
	}
	defer l.finalize(&err)

	budget := opts.Config.RunTherm * math.Sqrt(opts.Config.Ra) * l.tBuoy
	if opts.Config.RunBuoy > 0 {
		budget = opts.Config.RunBuoy * l.tBuoy
	}
	l.s.SetStopSimTime(l.s.SimTime() + budget)

	return l.run(ctx, nil)
}

// run drives the timestepping loop. The optional hook is invoked once per
// iteration after outputs and diagnostics, with the loop state current.
func (l *loop) run(ctx context.Context, hook func() error) error {
	start := time.Now()
	startIter := l.s.Iteration()
	gs, _ := l.s.(spectral.GridSpacer)

	l.log.WithFields(logrus.Fields{
		"Ra": l.cfg.Ra, "Q": l.cfg.Q, "Pr": l.cfg.Pr, "Pm": l.cfg.Pm,
		"dir": l.runDir,
	}).Info("starting main loop")

	for l.s.Ok() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		dt := l.cfl.ComputeDt(l.s)
		if err := l.s.Step(dt); err != nil {
			return err
		}
		iter := l.s.Iteration()
		t := l.s.SimTime()

		if gs != nil && l.cfg.ThreeD && iter%hermitianEvery == 0 {
			gs.RequireGridSpace()
		}

		if l.scalars.Due(t) {
			if err := l.scalars.Write(t, l.scalarValues()); err != nil {
				return err
			}
		}
		if l.slices.Due(t) {
			if err := l.slices.Write(t, l.s); err != nil {
				return err
			}
		}
		if err := l.chk.Maybe(l.s, dt); err != nil {
			l.log.WithError(err).Warn("checkpoint write failed")
		}

		if iter%l.logEvery == 0 {
			l.sample(dt)
			if !diag.Finite(l.reAvg) {
				return fmt.Errorf("non-finite Reynolds number at iteration %d, t=%g", iter, t)
			}
		}

		if hook != nil {
			if err := hook(); err != nil {
				return err
			}
		}
	}

	elapsed := time.Since(start)
	iters := l.s.Iteration() - startIter
	rate := 0.0
	if elapsed > 0 {
		rate = float64(iters) / elapsed.Seconds()
	}
	l.log.WithFields(logrus.Fields{
		"iterations": iters,
		"sim_time":   l.s.SimTime(),
		"wall":       elapsed.Round(time.Second).String(),
		"iter_per_s": rate,
	}).Info("main loop finished")
	return nil
}

// sample gathers the flow diagnostics, logs one status line, and notifies
// the observer.
func (l *loop) sample(dt float64) {
	avg := func(name string) float64 {
		v, err := l.s.Average(name)
		if err != nil {
			return math.NaN()
		}
		return v
	}
	reMax, err := l.s.Max("Re")
	if err != nil {
		reMax = math.NaN()
	}

	l.reAvg = avg("Re")
	ra, q := avg("Ra"), avg("Q")
	l.last = Sample{
		Iteration: l.s.Iteration(),
		SimTime:   l.s.SimTime(),
		BuoyTime:  l.s.SimTime() / l.tBuoy,
		Dt:        dt,
		Re:        l.reAvg,
		ReMax:     reMax,
		ReVer:     avg("Re_ver"),
		Nu:        avg("Nu"),
		BMag:      avg("b_mag"),
		Bz:        avg("Bz"),
		DivB:      avg("divB"),
		Ra:        ra,
		Q:         q,
	}
	if l.phase != nil {
		l.last.Phase = l.phase()
	}

	l.log.WithFields(logrus.Fields{
		"iter":   l.last.Iteration,
		"t":      fmt.Sprintf("%.4e", l.last.SimTime),
		"t_buoy": fmt.Sprintf("%.2f", l.last.BuoyTime),
		"dt":     fmt.Sprintf("%.2e", dt),
		"Re":     fmt.Sprintf("%.4e/%.4e", l.reAvg, reMax),
		"Nu":     fmt.Sprintf("%.4g", l.last.Nu),
		"b_mag":  fmt.Sprintf("%.2e", l.last.BMag),
		"divB":   fmt.Sprintf("%.2e", l.last.DivB),
	}).Info("iteration")

	if l.obs != nil {
		l.obs.OnSample(l.last)
	}
}

func (l *loop) scalarValues() map[string]float64 {
	values := make(map[string]float64, len(l.scalars.Names()))
	for _, name := range l.scalars.Names() {
		v, err := l.s.Average(name)
		if err != nil {
			continue
		}
		values[name] = v
	}
	return values
}

// finalize flushes outputs, writes a terminal checkpoint, and merges the
// per-rank shards unless joining is disabled.
func (l *loop) finalize(errp *error) {
	if cerr := l.scalars.Close(); cerr != nil && *errp == nil {
		*errp = cerr
	}
	if cerr := l.slices.Close(); cerr != nil && *errp == nil {
		*errp = cerr
	}

	final := checkpoint.Named(l.runDir, "final_checkpoint")
	if cerr := final.Write(l.s, l.cfl.Dt()); cerr != nil {
		l.log.WithError(cerr).Error("final checkpoint write failed")
		if *errp == nil {
			*errp = cerr
		}
	}

	if l.cfg.NoJoin {
		return
	}
	for _, dir := range []string{"checkpoint", "final_checkpoint"} {
		cerr := checkpoint.Merge(filepath.Join(l.runDir, dir), true)
		if cerr != nil && !errors.Is(cerr, fs.ErrNotExist) {
			l.log.WithError(cerr).WithField("dir", dir).Warn("checkpoint merge failed")
		}
	}
	if cerr := output.MergeAll(l.runDir, true); cerr != nil {
		l.log.WithError(cerr).Warn("output merge failed")
		if *errp == nil {
			*errp = cerr
		}
	}
}
