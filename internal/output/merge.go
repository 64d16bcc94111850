package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	log "github.com/sirupsen/logrus"
)

// MergeTask joins the per-rank shards in one task directory into a single
// file per set, rows ordered by simulation time. With cleanup the shards
// are removed after a successful merge.
func MergeTask(dir string, cleanup bool) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("output: cannot read task dir %s: %w", dir, err)
	}

	// group shards by task and set index
	type key struct {
		task string
		set  int
	}
	groups := make(map[key][]string)
	for _, e := range entries {
		m := shardRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		set, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		k := key{task: m[1], set: set}
		groups[k] = append(groups[k], filepath.Join(dir, e.Name()))
	}

	for k, shards := range groups {
		sort.Strings(shards)
		if err := mergeShards(shards, filepath.Join(dir, fmt.Sprintf("%s_s%d.csv", k.task, k.set))); err != nil {
			return err
		}
		if cleanup {
			for _, shard := range shards {
				if err := os.Remove(shard); err != nil {
					log.WithError(err).WithField("shard", shard).Warn("cannot remove merged shard")
				}
			}
		}
	}
	return nil
}

func mergeShards(shards []string, out string) error {
	var header []string
	var rows [][]string
	for _, shard := range shards {
		f, err := os.Open(shard)
		if err != nil {
			return err
		}
		r := csv.NewReader(f)
		r.FieldsPerRecord = -1
		records, err := r.ReadAll()
		f.Close()
		if err != nil {
			return fmt.Errorf("output: bad shard %s: %w", shard, err)
		}
		for i, rec := range records {
			if len(rec) == 0 {
				continue
			}
			if i == 0 {
				if _, err := strconv.ParseFloat(rec[0], 64); err != nil {
					// header row; keep the first one seen
					if header == nil {
						header = rec
					}
					continue
				}
			}
			rows = append(rows, rec)
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		ti, _ := strconv.ParseFloat(rows[i][0], 64)
		tj, _ := strconv.ParseFloat(rows[j][0], 64)
		return ti < tj
	})

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if header != nil {
		if err := w.Write(header); err != nil {
			f.Close()
			return err
		}
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			f.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// MergeAll walks the known task directories under a run directory.
// Missing directories are fine: a run that never reached its first slice
// cadence simply has nothing to join there.
func MergeAll(runDir string, cleanup bool) error {
	for _, task := range []string{"scalar", "slices"} {
		dir := filepath.Join(runDir, task)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			continue
		}
		log.WithField("dir", dir).Info("joining task files")
		if err := MergeTask(dir, cleanup); err != nil {
			return err
		}
	}
	return nil
}
