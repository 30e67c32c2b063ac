// Package pipeline runs a build: units are loaded, turned into sections,
// checked against the input template and rendered into one output document.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/matrix-org/batesian/pkg/logger"
	"github.com/matrix-org/batesian/pkg/renderer"
	"github.com/matrix-org/batesian/pkg/store"
	"github.com/matrix-org/batesian/pkg/writer"
)

// PreviewLimit is the longest section value shown in full by discovery.
const PreviewLimit = 75

// Stage identifies a step of the build.
type Stage int

const (
	StageLoadUnits Stage = iota
	StageBuildSections
	StageResolveInput
	StageValidate
	StageRender
	StagePostSubstitute
	StageWrite
	StageReportUnused
)

func (s Stage) String() string {
	switch s {
	case StageLoadUnits:
		return "load-units"
	case StageBuildSections:
		return "build-sections"
	case StageResolveInput:
		return "resolve-input"
	case StageValidate:
		return "validate"
	case StageRender:
		return "render"
	case StagePostSubstitute:
		return "post-substitute"
	case StageWrite:
		return "write"
	case StageReportUnused:
		return "report-unused"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Substitution is a literal replacement applied to the rendered document.
type Substitution struct {
	Old string
	New string
}

// Request describes one build. An empty TemplatePath asks for discovery:
// the available template variables are returned and nothing is written.
type Request struct {
	TemplatePath  string
	OutDir        string
	Substitutions []Substitution // applied in order
	DryRun        bool
}

// VariableInfo describes one section as a template variable.
type VariableInfo struct {
	Key     string
	Chars   int
	Lines   int     // number of newline characters
	Preview *string // full value, only when it is at most PreviewLimit characters
}

// Result reports what a build did.
type Result struct {
	Discovery   bool
	Variables   []VariableInfo
	OutputPath  string
	Bytes       int
	DryRun      bool
	UnusedUnits []string
}

// Orchestrator drives the build stages for one input.
type Orchestrator struct {
	input *Input
	log   logger.Logger
	debug bool
	env   *renderer.Environment
	out   io.Writer
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger for build progress and diagnostics.
func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

// WithDebug is passed through to the input's providers.
func WithDebug(debug bool) Option {
	return func(o *Orchestrator) { o.debug = debug }
}

// WithEnvironment supplies the renderer environment instead of a fresh one
// per run.
func WithEnvironment(env *renderer.Environment) Option {
	return func(o *Orchestrator) { o.env = env }
}

// WithOutput sets where write operations are reported.
func WithOutput(w io.Writer) Option {
	return func(o *Orchestrator) {
		if w != nil {
			o.out = w
		}
	}
}

// New creates an orchestrator for input.
func New(input *Input, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		input: input,
		log:   logger.NewSilentLogger(),
		out:   io.Discard,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes the build. Any error aborts the build with nothing written.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	if err := o.input.validate(); err != nil {
		return nil, err
	}
	env := o.env
	if env == nil {
		env = renderer.NewEnvironment(renderer.WithLogger(o.log))
	}

	if err := o.enter(ctx, StageLoadUnits); err != nil {
		return nil, err
	}
	units, err := o.input.Units.Units(ctx, o.debug)
	if err != nil {
		return nil, fmt.Errorf("%w: loading units for %q: %w", ErrProvider, o.input.Name, err)
	}
	st := store.New(units, o.log)
	o.log.Debug("units loaded", logger.F("count", st.Len()))

	if err := o.enter(ctx, StageBuildSections); err != nil {
		return nil, err
	}
	if o.input.TemplateDir != "" {
		if err := env.LoadDir(o.input.TemplateDir); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrProvider, err)
		}
	}
	sections, err := o.input.Sections.Sections(ctx, env, st, o.debug)
	if err != nil {
		return nil, fmt.Errorf("%w: building sections for %q: %w", ErrProvider, o.input.Name, err)
	}
	o.log.Debug("sections built", logger.F("count", len(sections)))
	if shadowed := env.Shadowed(sections); len(shadowed) > 0 {
		o.log.Warn("Sections named like template functions are only reachable as {{ .name }}.", logger.F("sections", shadowed))
	}

	if err := o.enter(ctx, StageResolveInput); err != nil {
		return nil, err
	}
	if req.TemplatePath == "" {
		return &Result{Discovery: true, Variables: DescribeSections(sections)}, nil
	}

	if err := o.enter(ctx, StageValidate); err != nil {
		return nil, err
	}
	o.log.Info("Parsing input template: " + req.TemplatePath)
	raw, err := os.ReadFile(req.TemplatePath)
	if err != nil {
		return nil, fmt.Errorf("reading template: %w", err)
	}
	if !utf8.Valid(raw) {
		return nil, fmt.Errorf("template %s is not valid UTF-8", req.TemplatePath)
	}
	name := filepath.Base(req.TemplatePath)
	source := string(raw)
	if err := ValidateTemplateVars(env, name, source, sections); err != nil {
		return nil, err
	}

	if err := o.enter(ctx, StageRender); err != nil {
		return nil, err
	}
	o.log.Info("Creating output for: " + req.TemplatePath)
	output, err := env.Render(name, source, sections)
	if err != nil {
		return nil, err
	}

	if err := o.enter(ctx, StagePostSubstitute); err != nil {
		return nil, err
	}
	output = applySubstitutions(output, req.Substitutions)

	if err := o.enter(ctx, StageWrite); err != nil {
		return nil, err
	}
	path := filepath.Join(req.OutDir, name)
	op := &writer.WriteFileOp{Path: path, Content: []byte(output)}
	if err := writer.Execute(ctx, []writer.Operation{op}, writer.ExecuteOptions{DryRun: req.DryRun, Writer: o.out}); err != nil {
		return nil, fmt.Errorf("writing %s: %w", path, err)
	}
	if !req.DryRun {
		o.log.Info("Output file for: " + req.TemplatePath)
	}

	res := &Result{OutputPath: path, Bytes: len(output), DryRun: req.DryRun}

	o.log.Debug("entering stage", logger.F("stage", StageReportUnused))
	res.UnusedUnits = st.UnaccessedKeys()
	if n := len(res.UnusedUnits); n > 0 {
		o.log.Warn(fmt.Sprintf("Found %d unused units keys.", n), logger.F("keys", res.UnusedUnits))
	}
	return res, nil
}

func (o *Orchestrator) enter(ctx context.Context, stage Stage) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("build cancelled before %s: %w", stage, err)
	}
	o.log.Debug("entering stage", logger.F("stage", stage))
	return nil
}

// DescribeSections lists sections sorted by key, as shown by discovery.
func DescribeSections(sections map[string]string) []VariableInfo {
	keys := make([]string, 0, len(sections))
	for k := range sections {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	infos := make([]VariableInfo, 0, len(keys))
	for _, k := range keys {
		v := sections[k]
		info := VariableInfo{
			Key:   k,
			Chars: utf8.RuneCountInString(v),
			Lines: strings.Count(v, "\n"),
		}
		if info.Chars <= PreviewLimit {
			preview := v
			info.Preview = &preview
		}
		infos = append(infos, info)
	}
	return infos
}

func applySubstitutions(s string, subs []Substitution) string {
	for _, sub := range subs {
		if sub.Old == "" {
			continue
		}
		s = strings.ReplaceAll(s, sub.Old, sub.New)
	}
	return s
}
