package commands

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matrix-org/batesian/internal/config"
	"github.com/matrix-org/batesian/internal/output"
	"github.com/matrix-org/batesian/pkg/fileset"
	"github.com/matrix-org/batesian/pkg/filesystem"
	"github.com/matrix-org/batesian/pkg/logger"
	"github.com/matrix-org/batesian/pkg/pipeline"
)

var (
	ErrMissingInput        = errors.New("missing input (use --input)")
	ErrMissingReleaseLabel = errors.New("missing release label (use --release_label)")
	ErrNoFile              = errors.New("no file supplied")
)

func runBuild(cmd *cobra.Command, args []string, configPath string) error {
	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return err
	}

	level := logger.LevelInfo
	if cfg.Verbose {
		level = logger.LevelDebug
	}
	log := logger.NewLoggerWithOptions(level, cmd.ErrOrStderr(), logger.Options{Prefix: "batesian"})

	printer := output.New(cmd.OutOrStdout())
	printer.SetVerbose(cfg.Verbose)

	showVars, err := cmd.Flags().GetBool("show-template-vars")
	if err != nil {
		return err
	}
	dryRun, err := cmd.Flags().GetBool("dry-run")
	if err != nil {
		return err
	}

	if cfg.Input == "" {
		return ErrMissingInput
	}
	if !showVars {
		if cfg.ReleaseLabel == "" {
			return ErrMissingReleaseLabel
		}
		if len(args) == 0 {
			log.Info("No file supplied.")
			_ = cmd.Usage()
			return ErrNoFile
		}
	}

	input, err := resolveInput(cfg, cfg.Input, log)
	if err != nil {
		return err
	}
	printer.Verbose(fmt.Sprintf("Using input %s", input.Name))

	req := pipeline.Request{OutDir: cfg.OutDirectory, DryRun: dryRun}
	if !showVars {
		req.TemplatePath = args[0]
		req.Substitutions = ReleaseSubstitutions(cfg.ReleaseLabel)
	}

	var report io.Writer = io.Discard
	if dryRun {
		report = cmd.OutOrStdout()
	}
	orch := pipeline.New(input,
		pipeline.WithLogger(log),
		pipeline.WithDebug(cfg.Verbose),
		pipeline.WithOutput(report),
	)

	res, err := orch.Run(cmd.Context(), req)
	if err != nil {
		return err
	}

	if res.Discovery {
		if len(res.Variables) == 0 {
			printer.Info("Input built no sections.")
			return nil
		}
		printer.Variables(res.Variables)
		return nil
	}
	if res.DryRun {
		return nil
	}
	printer.Success(fmt.Sprintf("Generated %s (%d bytes)", res.OutputPath, res.Bytes))
	for _, key := range res.UnusedUnits {
		printer.Step("unused unit " + key)
	}
	return nil
}

// resolveInput finds the input called name: first among the inputs declared
// in the config file, then among the inputs compiled into the binary, and
// finally as a file-set directory path.
func resolveInput(cfg *config.Config, name string, log logger.Logger) (*pipeline.Input, error) {
	declared := pipeline.NewRegistry()
	for _, n := range cfg.InputNames() {
		if err := declared.Register(n, fileset.Factory(log)); err != nil {
			return nil, err
		}
	}

	if ic, ok := cfg.PipelineInput(name); ok {
		return declared.Resolve(strings.ToLower(name), ic)
	}
	if _, ok := pipeline.DefaultRegistry.Lookup(name); ok {
		return pipeline.DefaultRegistry.Resolve(name, pipeline.InputConfig{Name: name})
	}

	isDir, err := filesystem.DirExists(name)
	if err != nil {
		return nil, err
	}
	if isDir {
		return fileset.New(pipeline.InputConfig{Root: name}, log)
	}

	known := append(declared.Names(), pipeline.DefaultRegistry.Names()...)
	sort.Strings(known)
	if len(known) == 0 {
		return nil, fmt.Errorf("%w %q: not a declared input or a directory", pipeline.ErrUnknownInput, name)
	}
	return nil, fmt.Errorf("%w %q: not a directory (known: %s)", pipeline.ErrUnknownInput, name, strings.Join(known, ", "))
}
