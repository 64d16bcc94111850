package viz

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/guptarohit/asciigraph"
)

// LoadScalarSeries reads one named column from every scalar CSV under
// runDir/scalar, merged files and shards alike, and returns the values in
// time order.
func LoadScalarSeries(runDir, name string) ([]float64, error) {
	dir := filepath.Join(runDir, "scalar")
	paths, err := filepath.Glob(filepath.Join(dir, "scalar_s*.csv"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no scalar output under %s", dir)
	}

	type point struct{ t, v float64 }
	var points []point
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		rows, err := csv.NewReader(f).ReadAll()
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if len(rows) < 2 {
			continue
		}
		col := -1
		for i, h := range rows[0] {
			if h == name {
				col = i
				break
			}
		}
		if col < 0 {
			return nil, fmt.Errorf("%s: no column %q", path, name)
		}
		for _, row := range rows[1:] {
			t, err := strconv.ParseFloat(row[0], 64)
			if err != nil {
				continue
			}
			v, err := strconv.ParseFloat(row[col], 64)
			if err != nil {
				continue
			}
			points = append(points, point{t, v})
		}
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("no %q samples under %s", name, dir)
	}

	sort.Slice(points, func(i, j int) bool { return points[i].t < points[j].t })
	series := make([]float64, 0, len(points))
	lastT := points[0].t - 1
	for _, p := range points {
		// Shards overlap merged files; skip duplicate timestamps.
		if p.t == lastT {
			continue
		}
		series = append(series, p.v)
		lastT = p.t
	}
	return series, nil
}

// PlotScalar renders a recorded scalar series as an ASCII chart.
func PlotScalar(runDir, name string, width, height int) (string, error) {
	series, err := LoadScalarSeries(runDir, name)
	if err != nil {
		return "", err
	}
	if len(series) < 2 {
		return "", fmt.Errorf("need at least two %q samples to plot", name)
	}
	if width <= 0 {
		width = 70
	}
	if height <= 0 {
		height = 12
	}
	return asciigraph.Plot(series,
		asciigraph.Width(width),
		asciigraph.Height(height),
		asciigraph.Caption(name),
	), nil
}
