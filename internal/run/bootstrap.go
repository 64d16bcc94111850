package run

import (
	"context"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/Immie1996/boussinesq-convection/internal/bootstrap"
	"github.com/Immie1996/boussinesq-convection/internal/diag"
)

const (
	// windowCapacity caps the force-balance history; a full buffer is
	// treated as converged so a noisy balance cannot stall a step forever.
	windowCapacity = 4000
	// windowThreshold is the relative RMS below which the rolled balance
	// ratios count as stationary.
	windowThreshold = 0.01
	// balanceCadence spaces balance samples in buoyancy times.
	balanceCadence = 0.5
)

// balanceRatios are the force-potential fractions fed to the convergence
// window, ordered to match its column width.
var balanceRatios = [][2]string{
	{"p_b", "s_b_mag"},
	{"p_v", "s_v_mag"},
	{"p_ml", "s_ml_mag"},
	{"p_mn", "s_mn_mag"},
}

// Bootstrap runs the adaptive parameter-stepping driver: the flow evolves
// at the current Ra and Q until the controller judges it settled, then Ra
// and Q jump by the configured logarithmic increment and the run continues,
// out to the step limit or the wall clock.
func Bootstrap(ctx context.Context, opts Options) (err error) {
	cfg := opts.Config
	if err := cfg.Bootstrap.Validate(); err != nil {
		return err
	}

	l, err := prepare(opts, "bootstrap_mhd_rbc")
	if err != nil {
		return err
	}
	defer l.finalize(&err)

	ctrl, err := bootstrap.New(bootstrap.Config{
		Schedule: cfg.Bootstrap,
		Ra:       cfg.Ra,
		Q:        cfg.Q,
		Pr:       cfg.Pr,
		WaitTime: 20 * l.tBuoy,
		MaxDt:    cfg.MaxDt(),
	})
	if err != nil {
		return err
	}

	if cfg.Bootstrap.Converge {
		minSamples := int(2 * (cfg.Bootstrap.BootTime - 50))
		if minSamples < 2 {
			minSamples = 2
		}
		ctrl.SetWindow(diag.NewWindow(windowCapacity, minSamples, windowThreshold, len(balanceRatios)))
	}

	// The bootstrap run has no simulation-time budget; only the wall
	// clock and the step limit end it.
	l.s.SetStopSimTime(math.Inf(1))
	l.phase = func() string { return ctrl.Phase().String() }

	var lastBalance float64
	return l.run(ctx, func() error {
		t := l.s.SimTime()

		if w := ctrl.Window(); w != nil && l.reAvg >= 1 && t-lastBalance >= balanceCadence*l.tBuoy {
			w.Record(l.balances()...)
			lastBalance = t
		}

		if ctrl.Observe(t, l.reAvg) != bootstrap.Ready {
			return nil
		}
		step, ok := ctrl.Apply(t)
		if !ok {
			l.log.WithField("steps", ctrl.Steps()).Info("finished bootstrap run")
			l.s.SetStopSimTime(t)
			return nil
		}

		scale := func(name, kind string, factor float64) {
			f, err := l.s.Field(name)
			if err != nil {
				l.log.WithError(err).WithField("field", name).Warnf("cannot rescale %s", kind)
				return
			}
			f.Scale(factor)
		}
		scale("Ra", "parameter", step.RaNew/step.RaOld)
		scale("Q", "parameter", step.QNew/step.QOld)
		for _, name := range []string{"u", "w"} {
			scale(name, "velocity", step.VelocityFactor)
		}
		if cfg.ThreeD {
			scale("v", "velocity", step.VelocityFactor)
		}

		l.cfl.SetMaxDt(ctrl.MaxDt())
		l.tBuoy = step.BuoyancyTime
		lastBalance = t

		l.log.WithFields(logrus.Fields{
			"step":     ctrl.Steps(),
			"Ra_old":   step.RaOld,
			"Ra_new":   step.RaNew,
			"Q_old":    step.QOld,
			"Q_new":    step.QNew,
			"vel_fac":  step.VelocityFactor,
			"time_fac": step.TimeFactor,
		}).Info("bootstrapping parameters")
		return nil
	})
}

// balances evaluates the current force-potential fractions. A vanishing
// residual maps to a unit ratio so the window sees a settled balance.
func (l *loop) balances() []float64 {
	out := make([]float64, len(balanceRatios))
	for i, pair := range balanceRatios {
		num, err := l.s.Average(pair[0])
		if err != nil {
			out[i] = math.NaN()
			continue
		}
		den, err := l.s.Average(pair[1])
		if err != nil || den == 0 {
			out[i] = 1
			continue
		}
		out[i] = num / den
	}
	return out
}
