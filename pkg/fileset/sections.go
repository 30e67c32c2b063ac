package fileset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/matrix-org/batesian/pkg/filesystem"
	"github.com/matrix-org/batesian/pkg/logger"
	"github.com/matrix-org/batesian/pkg/renderer"
	"github.com/matrix-org/batesian/pkg/store"
)

// SectionExt marks section template files.
const SectionExt = ".tmpl"

// SectionTemplates renders every *.tmpl file under Dir into one section.
// The key is the relative path without the extension, with "/" replaced by
// "_": sections/events/room.tmpl becomes "events_room".
//
// Section templates read units through these functions:
//
//	unit "name"            the unit value; marks it used, fails if absent
//	hasUnit "name"         whether the unit exists; does not mark it used
//	unitsWithPrefix "p/"   map of every unit under the prefix, all marked used
//	unitNames              sorted names of all units
//
// The template data is {"Debug": bool}.
type SectionTemplates struct {
	Dir string
	Log logger.Logger
}

func (s *SectionTemplates) Sections(ctx context.Context, env *renderer.Environment, units *store.Store, debug bool) (map[string]string, error) {
	log := s.Log
	if log == nil {
		log = logger.NewSilentLogger()
	}

	if err := registerUnitFuncs(env, units); err != nil {
		return nil, err
	}

	files, err := filesystem.ListFiles(s.Dir, filesystem.WalkOptions{Extensions: []string{SectionExt}})
	if err != nil {
		return nil, fmt.Errorf("listing sections in %s: %w", s.Dir, err)
	}

	sections := make(map[string]string, len(files))
	sources := make(map[string]string, len(files))
	data := map[string]any{"Debug": debug}
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		key := SectionKey(rel)
		if prev, dup := sources[key]; dup {
			return nil, fmt.Errorf("section %q is produced by both %s and %s", key, prev, rel)
		}

		src, err := os.ReadFile(filepath.Join(s.Dir, filepath.FromSlash(rel)))
		if err != nil {
			return nil, fmt.Errorf("reading section %s: %w", rel, err)
		}
		name := "sections/" + rel
		if err := env.Define(name, string(src)); err != nil {
			return nil, err
		}
		text, err := env.Execute(name, data)
		if err != nil {
			return nil, fmt.Errorf("section %q: %w", key, err)
		}

		sections[key] = strings.TrimSuffix(text, "\n")
		sources[key] = rel
		log.Debug("section built", logger.F("section", key), logger.F("chars", len(text)))
	}
	return sections, nil
}

// SectionKey derives the section key for a template path relative to the
// sections directory.
func SectionKey(rel string) string {
	rel = filepath.ToSlash(rel)
	return strings.ReplaceAll(strings.TrimSuffix(rel, SectionExt), "/", "_")
}

func registerUnitFuncs(env *renderer.Environment, units *store.Store) error {
	funcs := map[string]any{
		"unit": units.Get,
		"hasUnit": func(name string) bool {
			return units.Has(name)
		},
		"unitsWithPrefix": func(prefix string) (map[string]any, error) {
			out := make(map[string]any)
			for _, k := range units.KeysWithPrefix(prefix) {
				v, err := units.Get(k)
				if err != nil {
					return nil, err
				}
				out[k] = v
			}
			return out, nil
		},
		"unitNames": units.Keys,
	}
	for name, fn := range funcs {
		if err := env.AddFilter(name, fn); err != nil {
			return err
		}
	}
	return nil
}
