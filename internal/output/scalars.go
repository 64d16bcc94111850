// Package output writes the per-process analysis shards (scalar time
// series, profile slices) during a run and merges them into single files
// afterwards. Shards are named {task}_s{set}_p{rank}.csv: the set index
// advances on restart in append mode so a resumed run never clobbers
// earlier output.
package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
)

var (
	shardRe  = regexp.MustCompile(`^([a-z_]+)_s(\d+)_p(\d+)\.csv$`)
	mergedRe = regexp.MustCompile(`^([a-z_]+)_s(\d+)\.csv$`)
)

// ScalarTask appends one row of volume-averaged diagnostics per cadence
// interval of simulation time.
type ScalarTask struct {
	names    []string
	cadence  float64
	lastSeen float64
	wrote    bool

	file *os.File
	w    *csv.Writer
}

// NewScalarTask opens the shard for this rank under dir/scalar. In append
// mode the set index follows the highest already on disk; overwrite mode
// restarts at set 1.
func NewScalarTask(runDir string, rank int, names []string, cadence float64, overwrite bool) (*ScalarTask, error) {
	dir := filepath.Join(runDir, "scalar")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	set := 1
	if !overwrite {
		set = nextSet(dir, "scalar")
	}
	path := filepath.Join(dir, fmt.Sprintf("scalar_s%d_p%d.csv", set, rank))
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	t := &ScalarTask{
		names:   names,
		cadence: cadence,
		file:    f,
		w:       csv.NewWriter(f),
	}
	header := append([]string{"sim_time"}, names...)
	if err := t.w.Write(header); err != nil {
		f.Close()
		return nil, err
	}
	return t, nil
}

// Names returns the tracked quantities in column order.
func (t *ScalarTask) Names() []string { return t.names }

// Due reports whether the cadence interval has elapsed.
func (t *ScalarTask) Due(simTime float64) bool {
	return !t.wrote || simTime-t.lastSeen >= t.cadence
}

func (t *ScalarTask) Write(simTime float64, values map[string]float64) error {
	if !t.Due(simTime) {
		return nil
	}
	row := make([]string, 0, len(t.names)+1)
	row = append(row, strconv.FormatFloat(simTime, 'e', 8, 64))
	for _, name := range t.names {
		row = append(row, strconv.FormatFloat(values[name], 'e', 8, 64))
	}
	if err := t.w.Write(row); err != nil {
		return err
	}
	t.lastSeen = simTime
	t.wrote = true
	return nil
}

func (t *ScalarTask) Close() error {
	t.w.Flush()
	if err := t.w.Error(); err != nil {
		t.file.Close()
		return err
	}
	return t.file.Close()
}

// nextSet scans a task dir for existing shards and merged files and
// returns one past the highest set index, so an appending restart never
// clobbers earlier output.
func nextSet(dir, task string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 1
	}
	max := 0
	for _, e := range entries {
		m := shardRe.FindStringSubmatch(e.Name())
		if m == nil {
			m = mergedRe.FindStringSubmatch(e.Name())
		}
		if m == nil || m[1] != task {
			continue
		}
		if set, err := strconv.Atoi(m[2]); err == nil && set > max {
			max = set
		}
	}
	return max + 1
}
