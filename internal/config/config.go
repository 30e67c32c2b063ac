// Package config loads batesian.yml, BATESIAN_* environment variables and
// command-line flags into one Config. Flags win over the environment, which
// wins over the file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/matrix-org/batesian/pkg/pipeline"
)

// DefaultFile is the config file looked for when none is given.
const DefaultFile = "batesian.yml"

// EnvPrefix prefixes every environment override, e.g. BATESIAN_RELEASE_LABEL.
const EnvPrefix = "BATESIAN"

// Config holds the settings for one invocation.
type Config struct {
	Input        string                 `mapstructure:"input"`
	OutDirectory string                 `mapstructure:"out_directory"`
	ReleaseLabel string                 `mapstructure:"release_label"`
	Verbose      bool                   `mapstructure:"verbose"`
	Inputs       map[string]InputConfig `mapstructure:"inputs"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

// InputConfig declares a file-set input. Relative paths are resolved
// against the directory holding the config file.
type InputConfig struct {
	Root      string `mapstructure:"root"`
	Units     string `mapstructure:"units"`
	Sections  string `mapstructure:"sections"`
	Templates string `mapstructure:"templates"`
}

// flag name for each config key
var flagKeys = map[string]string{
	"input":         "input",
	"out_directory": "out-directory",
	"release_label": "release_label",
	"verbose":       "verbose",
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		OutDirectory: "out",
		Inputs:       map[string]InputConfig{},
	}
}

// Load reads the config file at path (DefaultFile when empty). A missing
// file is only an error when the --config flag was set explicitly. flags
// may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	if path == "" {
		path = DefaultFile
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetDefault("out_directory", "out")

	// Enable environment variable overrides
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for key := range flagKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("binding env for %s: %w", key, err)
		}
	}

	if flags != nil {
		for key, name := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag --%s: %w", name, err)
				}
			}
		}
	}

	file := ""
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		file = path
	} else if !errors.Is(err, fs.ErrNotExist) || explicitConfig(flags) {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	cfg.File = file
	if cfg.Inputs == nil {
		cfg.Inputs = map[string]InputConfig{}
	}
	// Unmarshal drops inputs declared with no settings, e.g. "events: {}".
	for name := range v.GetStringMap("inputs") {
		if _, ok := cfg.Inputs[name]; !ok {
			cfg.Inputs[name] = InputConfig{}
		}
	}
	return cfg, nil
}

func explicitConfig(flags *pflag.FlagSet) bool {
	if flags == nil {
		return false
	}
	f := flags.Lookup("config")
	return f != nil && f.Changed
}

// InputNames returns the declared input names, sorted.
func (c *Config) InputNames() []string {
	names := make([]string, 0, len(c.Inputs))
	for name := range c.Inputs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PipelineInput returns the declared input called name, with relative
// paths resolved against the config file's directory.
func (c *Config) PipelineInput(name string) (pipeline.InputConfig, bool) {
	// viper lower-cases map keys
	ic, ok := c.Inputs[strings.ToLower(name)]
	if !ok {
		return pipeline.InputConfig{}, false
	}

	base := "."
	if c.File != "" {
		base = filepath.Dir(c.File)
	}
	root := ic.Root
	if root == "" {
		root = name
	}
	if !filepath.IsAbs(root) {
		root = filepath.Join(base, root)
	}

	return pipeline.InputConfig{
		Name:      name,
		Root:      root,
		Units:     ic.Units,
		Sections:  ic.Sections,
		Templates: ic.Templates,
	}, true
}
