package run

import (
	"math"
	"math/rand"

	"github.com/Immie1996/boussinesq-convection/internal/spectral"
)

// noiseAmplitude is the size of the random temperature perturbation used
// to seed convection from a conductive state.
const noiseAmplitude = 1e-6

// seedTemperature fills the T1 field with a small random perturbation
// shaped by the sin(pi*(z+1/2)) envelope so the walls stay unperturbed.
// With modes > 0 the noise is band-limited to that many vertical modes,
// which keeps restarts at higher resolution well conditioned.
func seedTemperature(s spectral.Solver, seed int64, modes int) error {
	f, err := s.Field("T1")
	if err != nil {
		return err
	}
	vals := f.Values()
	n := len(vals)
	rng := rand.New(rand.NewSource(seed + int64(s.Rank())))

	noise := make([]float64, n)
	if modes > 0 {
		phases := make([]float64, modes)
		amps := make([]float64, modes)
		for k := range phases {
			phases[k] = 2 * math.Pi * rng.Float64()
			amps[k] = 2*rng.Float64() - 1
		}
		for j := 0; j < n; j++ {
			x := float64(j) / float64(n)
			var sum float64
			for k := 0; k < modes; k++ {
				sum += amps[k] * math.Sin(2*math.Pi*float64(k+1)*x+phases[k])
			}
			noise[j] = sum / float64(modes)
		}
	} else {
		for j := range noise {
			noise[j] = 2*rng.Float64() - 1
		}
	}

	out := make([]float64, n)
	for j := 0; j < n; j++ {
		// Cell-centered grid on z in [-1/2, 1/2].
		z := -0.5 + (float64(j)+0.5)/float64(n)
		out[j] = noiseAmplitude * noise[j] * math.Sin(math.Pi*(z+0.5))
	}
	return f.SetValues(out)
}
