package fileset

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/matrix-org/batesian/pkg/filesystem"
	"github.com/matrix-org/batesian/pkg/logger"
)

// UnitLoader reads every data file under Dir as one unit. A unit is named
// by its slash path relative to Dir without the extension, so
// units/events/m.room.message.yaml becomes "events/m.room.message".
type UnitLoader struct {
	Dir string
	Log logger.Logger
}

func (l *UnitLoader) Units(ctx context.Context, debug bool) (map[string]any, error) {
	log := l.logger()
	files, err := filesystem.ListFiles(l.Dir, filesystem.WalkOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing units in %s: %w", l.Dir, err)
	}

	units := make(map[string]any, len(files))
	sources := make(map[string]string, len(files))
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ext := strings.ToLower(path.Ext(rel))
		decode, ok := decoders[ext]
		if !ok {
			log.Debug("skipping unsupported unit file", logger.F("file", rel))
			continue
		}

		name := strings.TrimSuffix(rel, path.Ext(rel))
		if prev, dup := sources[name]; dup {
			return nil, fmt.Errorf("unit %q is defined by both %s and %s", name, prev, rel)
		}

		data, err := os.ReadFile(filepath.Join(l.Dir, filepath.FromSlash(rel)))
		if err != nil {
			return nil, fmt.Errorf("reading unit %s: %w", rel, err)
		}
		value, err := decode(rel, data)
		if err != nil {
			return nil, err
		}

		units[name] = value
		sources[name] = rel
		if debug {
			log.Debug("unit loaded", logger.F("unit", name), logger.F("file", rel))
		}
	}
	return units, nil
}

func (l *UnitLoader) logger() logger.Logger {
	if l.Log == nil {
		return logger.NewSilentLogger()
	}
	return l.Log
}
