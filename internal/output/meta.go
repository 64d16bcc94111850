package output

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/Immie1996/boussinesq-convection/internal/config"
)

// RunMeta indexes one run directory for the list/plot commands.
type RunMeta struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	Ra        float64   `json:"ra"`
	Pr        float64   `json:"pr"`
	Q         float64   `json:"q"`
	Pm        float64   `json:"pm"`
	ThreeD    bool      `json:"three_d"`
	Nx        int       `json:"nx"`
	Ny        int       `json:"ny"`
	Nz        int       `json:"nz"`
	Seed      int64     `json:"seed"`
}

func WriteRunMeta(runDir, kind string, cfg *config.Run) error {
	meta := RunMeta{
		ID:        filepath.Base(runDir),
		Kind:      kind,
		Timestamp: time.Now(),
		Ra:        cfg.Ra,
		Pr:        cfg.Pr,
		Q:         cfg.Q,
		Pm:        cfg.Pm,
		ThreeD:    cfg.ThreeD,
		Nx:        cfg.Nx,
		Ny:        cfg.Ny,
		Nz:        cfg.Nz,
		Seed:      cfg.Seed,
	}
	f, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func ReadRunMeta(runDir string) (*RunMeta, error) {
	data, err := os.ReadFile(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return nil, err
	}
	var meta RunMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// ListRuns collects metadata from every run directory under root.
func ListRuns(root string) ([]RunMeta, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMeta{}, nil
		}
		return nil, err
	}
	runs := make([]RunMeta, 0)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		meta, err := ReadRunMeta(filepath.Join(root, e.Name()))
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	return runs, nil
}
