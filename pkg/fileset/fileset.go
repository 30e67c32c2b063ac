// Package fileset provides an input backed by a directory: structured data
// files under units/ become units, templates under sections/ become
// sections, and templates/ holds partials shared by both sections and the
// input document.
package fileset

import (
	"fmt"
	"path/filepath"

	"github.com/matrix-org/batesian/pkg/filesystem"
	"github.com/matrix-org/batesian/pkg/logger"
	"github.com/matrix-org/batesian/pkg/pipeline"
)

// Conventional directory names under an input root.
const (
	DefaultUnitsDir     = "units"
	DefaultSectionsDir  = "sections"
	DefaultTemplatesDir = "templates"
)

// Factory returns a pipeline.Factory building file-set inputs that log to log.
func Factory(log logger.Logger) pipeline.Factory {
	return func(cfg pipeline.InputConfig) (*pipeline.Input, error) {
		return New(cfg, log)
	}
}

// New builds a file-set input. Units and sections directories must exist;
// the templates directory is optional.
func New(cfg pipeline.InputConfig, log logger.Logger) (*pipeline.Input, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("input %q has no root directory", cfg.Name)
	}
	if log == nil {
		log = logger.NewSilentLogger()
	}
	log = log.WithFields(logger.F("input", inputName(cfg)))

	unitsDir := resolve(cfg.Root, cfg.Units, DefaultUnitsDir)
	sectionsDir := resolve(cfg.Root, cfg.Sections, DefaultSectionsDir)
	templatesDir := resolve(cfg.Root, cfg.Templates, DefaultTemplatesDir)

	for _, dir := range []string{unitsDir, sectionsDir} {
		ok, err := filesystem.DirExists(dir)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("input %q: directory %s does not exist", inputName(cfg), dir)
		}
	}

	ok, err := filesystem.DirExists(templatesDir)
	if err != nil {
		return nil, err
	}
	if !ok {
		templatesDir = ""
	}

	return &pipeline.Input{
		Name:        inputName(cfg),
		Units:       &UnitLoader{Dir: unitsDir, Log: log},
		Sections:    &SectionTemplates{Dir: sectionsDir, Log: log},
		TemplateDir: templatesDir,
	}, nil
}

func inputName(cfg pipeline.InputConfig) string {
	if cfg.Name != "" {
		return cfg.Name
	}
	return filepath.Base(cfg.Root)
}

func resolve(root, dir, fallback string) string {
	if dir == "" {
		dir = fallback
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(root, dir)
}
