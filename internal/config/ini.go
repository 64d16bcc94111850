package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"gopkg.in/ini.v1"
)

// ApplyINI overlays values from the [parameters] section of an INI file
// onto a flag set. Keys are matched against flag names case-insensitively.
// Flags set explicitly on the command line keep their values; everything
// else takes the file's value, so precedence is flag > file > default.
func ApplyINI(path string, fs *pflag.FlagSet) error {
	file, err := ini.Load(path)
	if err != nil {
		return fmt.Errorf("config: cannot read %s: %w", path, err)
	}
	section := file.Section("parameters")
	var applyErr error
	for _, key := range section.Keys() {
		matched := false
		fs.VisitAll(func(fl *pflag.Flag) {
			if matched || fl.Changed || !strings.EqualFold(fl.Name, key.Name()) {
				return
			}
			matched = true
			if err := fs.Set(fl.Name, key.String()); err != nil && applyErr == nil {
				applyErr = fmt.Errorf("config: bad value %q for %s: %w", key.String(), fl.Name, err)
			}
		})
	}
	return applyErr
}
