package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/specialistvlad/cipipe/internal/ctxlog"
	"github.com/specialistvlad/cipipe/internal/failure"
)

// Loader reads module configuration files from a list of directories.
type Loader struct {
	dirs []string
}

// NewLoader creates a Loader reading dirs in order; later directories win.
func NewLoader(dirs ...string) *Loader {
	return &Loader{dirs: dirs}
}

// DefaultDirs returns the standard configuration directories: system-wide,
// per user and per project.
func DefaultDirs() []string {
	dirs := []string{"/etc/cipipe.d/config"}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".cipipe.d", "config"))
	}
	return append(dirs, filepath.Join(".", ".cipipe.d", "config"))
}

// Dirs returns the directories the loader reads.
func (l *Loader) Dirs() []string {
	return append([]string(nil), l.dirs...)
}

type fileParser func(path string) (Values, error)

var parsers = []struct {
	ext   string
	parse fileParser
}{
	{ext: ".hcl", parse: parseHCLFile},
	{ext: ".yaml", parse: parseYAMLFile},
	{ext: ".yml", parse: parseYAMLFile},
}

// ModuleConfig implements Source.
func (l *Loader) ModuleConfig(ctx context.Context, module string) (Values, error) {
	logger := ctxlog.FromContext(ctx).With("module", module)
	merged := make(Values)

	for _, dir := range l.dirs {
		for _, p := range parsers {
			path := filepath.Join(dir, module+p.ext)
			if _, err := os.Stat(path); err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					continue
				}
				return nil, failure.Wrap(failure.KindConfig, err, "failed to access configuration file '%s'", path)
			}

			values, err := p.parse(path)
			if err != nil {
				return nil, failure.Wrap(failure.KindConfig, err, "failed to load configuration file '%s'", path)
			}
			logger.Debug("Loaded module configuration file.", "path", path, "options", len(values))

			for k, v := range values {
				merged[k] = v
			}
		}
	}
	return merged, nil
}

// Static is a Source backed by an in-memory map, keyed by module name.
type Static map[string]Values

// ModuleConfig implements Source.
func (s Static) ModuleConfig(_ context.Context, module string) (Values, error) {
	out := make(Values, len(s[module]))
	for k, v := range s[module] {
		out[k] = v
	}
	return out, nil
}

func stringify(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case bool, int, int64, uint64, float64:
		return fmt.Sprint(val), nil
	default:
		return "", fmt.Errorf("unsupported value of type %T", v)
	}
}
