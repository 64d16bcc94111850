package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/Immie1996/boussinesq-convection/internal/spectral"
)

// SliceTask periodically dumps the local vertical profile of selected
// fields, one row per sample: sim_time, field name, then the block
// values. Slices are coarser than scalars, so they get their own cadence.
type SliceTask struct {
	fields   []string
	cadence  float64
	lastSeen float64
	wrote    bool

	file *os.File
	w    *csv.Writer
}

func NewSliceTask(runDir string, rank int, fields []string, cadence float64, overwrite bool) (*SliceTask, error) {
	dir := filepath.Join(runDir, "slices")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	set := 1
	if !overwrite {
		set = nextSet(dir, "slices")
	}
	path := filepath.Join(dir, fmt.Sprintf("slices_s%d_p%d.csv", set, rank))
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &SliceTask{
		fields:  fields,
		cadence: cadence,
		file:    f,
		w:       csv.NewWriter(f),
	}, nil
}

func (t *SliceTask) Due(simTime float64) bool {
	return !t.wrote || simTime-t.lastSeen >= t.cadence
}

func (t *SliceTask) Write(simTime float64, s spectral.Solver) error {
	if !t.Due(simTime) {
		return nil
	}
	for _, name := range t.fields {
		f, err := s.Field(name)
		if err != nil {
			return err
		}
		vals := f.Values()
		row := make([]string, 0, len(vals)+2)
		row = append(row, strconv.FormatFloat(simTime, 'e', 8, 64), name)
		for _, v := range vals {
			row = append(row, strconv.FormatFloat(v, 'e', 8, 64))
		}
		if err := t.w.Write(row); err != nil {
			return err
		}
	}
	t.lastSeen = simTime
	t.wrote = true
	return nil
}

func (t *SliceTask) Close() error {
	t.w.Flush()
	if err := t.w.Error(); err != nil {
		t.file.Close()
		return err
	}
	return t.file.Close()
}
