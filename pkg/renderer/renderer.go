// Package renderer wraps text/template into the environment that section
// builders and the document render share: a registry of filters, a loader
// for partial templates, strict rendering, and static extraction of the
// variables a template expects to be given.
package renderer

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"text/template"

	"github.com/matrix-org/batesian/pkg/filesystem"
	"github.com/matrix-org/batesian/pkg/filters"
	"github.com/matrix-org/batesian/pkg/logger"
)

// ErrUndefinedVariable is returned when a template references a variable
// that was not supplied at render time.
var ErrUndefinedVariable = errors.New("undefined template variable")

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Environment holds the filters and loaded templates for one build. It is
// not safe for concurrent use.
type Environment struct {
	base  *template.Template
	funcs template.FuncMap
	log   logger.Logger
}

// Option configures an Environment.
type Option func(*Environment)

// WithLogger sets the logger used for loader diagnostics.
func WithLogger(l logger.Logger) Option {
	return func(e *Environment) {
		if l != nil {
			e.log = l
		}
	}
}

// WithFuncs registers extra functions alongside the built-in filters.
func WithFuncs(funcs template.FuncMap) Option {
	return func(e *Environment) {
		for name, fn := range funcs {
			e.funcs[name] = fn
		}
	}
}

// NewEnvironment creates an environment with the formatting filters
// registered. Rendering is strict: a missing map key is an error rather than
// "<no value>".
func NewEnvironment(opts ...Option) *Environment {
	e := &Environment{
		funcs: filters.FuncMap(),
		log:   logger.NewSilentLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.base = template.New("batesian").Option("missingkey=error").Funcs(e.funcs)
	return e
}

// AddFilter registers fn under name for every template parsed afterwards.
// Registering an existing name replaces it.
func (e *Environment) AddFilter(name string, fn any) error {
	if !identRe.MatchString(name) {
		return fmt.Errorf("invalid filter name %q", name)
	}
	if err := checkFunc(fn); err != nil {
		return fmt.Errorf("filter %q: %w", name, err)
	}
	e.funcs[name] = fn
	e.base.Funcs(template.FuncMap{name: fn})
	return nil
}

// IsFunc reports whether name resolves to a filter or a text/template builtin.
func (e *Environment) IsFunc(name string) bool {
	if _, ok := e.funcs[name]; ok {
		return true
	}
	_, ok := builtinFuncs[name]
	return ok
}

// LoadDir parses every template file below dir. Each one is registered
// under its slash-separated path relative to dir, so other templates can
// include it with {{ template "partials/table.tmpl" . }}.
func (e *Environment) LoadDir(dir string) error {
	names, err := filesystem.ListFiles(dir, filesystem.WalkOptions{})
	if err != nil {
		return fmt.Errorf("loading templates from %s: %w", dir, err)
	}
	for _, name := range names {
		src, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(name)))
		if err != nil {
			return fmt.Errorf("failed to read template file '%s': %w", name, err)
		}
		if err := e.Define(name, string(src)); err != nil {
			return err
		}
	}
	e.log.Debug("templates loaded", logger.F("dir", dir), logger.F("count", len(names)))
	return nil
}

// Define parses src and registers it as the named template.
func (e *Environment) Define(name, src string) error {
	if _, err := e.base.New(name).Parse(src); err != nil {
		return fmt.Errorf("failed to parse template '%s': %w", name, err)
	}
	return nil
}

// Templates returns the names of every loaded template, sorted.
func (e *Environment) Templates() []string {
	var names []string
	for _, t := range e.base.Templates() {
		if t.Name() != e.base.Name() && t.Tree != nil {
			names = append(names, t.Name())
		}
	}
	sort.Strings(names)
	return names
}

// Execute runs a loaded template against data.
func (e *Environment) Execute(name string, data any) (string, error) {
	tmpl := e.base.Lookup(name)
	if tmpl == nil || tmpl.Tree == nil {
		return "", fmt.Errorf("template '%s' is not defined", name)
	}
	return executeTemplate(tmpl, data)
}

// Render parses src and executes it with vars as its bindings. Each
// variable is reachable as a field ({{ .name }}) and, when its name is a
// plain identifier that no filter claims, as a bare name ({{ name }}).
// A variable the template needs but vars lacks fails with
// ErrUndefinedVariable before anything is executed.
func (e *Environment) Render(name, src string, vars map[string]string) (string, error) {
	free, err := e.FreeVariables(name, src)
	if err != nil {
		return "", err
	}
	var missing []string
	for _, v := range free {
		if _, ok := vars[v]; !ok {
			missing = append(missing, v)
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("rendering '%s': %w: %s", name, ErrUndefinedVariable, strings.Join(missing, ", "))
	}

	set, err := e.base.Clone()
	if err != nil {
		return "", fmt.Errorf("failed to prepare template '%s': %w", name, err)
	}
	set.Funcs(e.variableFuncs(vars))

	tmpl, err := set.New(name).Parse(src)
	if err != nil {
		return "", fmt.Errorf("failed to parse template '%s': %w", name, err)
	}
	return executeTemplate(tmpl, vars)
}

// Shadowed returns, sorted, the identifier-safe names in vars that a bare
// {{ name }} cannot reach because a function or keyword of the same name
// wins. They are still reachable as {{ .name }}.
func (e *Environment) Shadowed(vars map[string]string) []string {
	var names []string
	for k := range vars {
		if identRe.MatchString(k) && (e.IsFunc(k) || isKeyword(k)) {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return names
}

// variableFuncs exposes identifier-safe variables as zero-argument functions.
func (e *Environment) variableFuncs(vars map[string]string) template.FuncMap {
	funcs := template.FuncMap{}
	for k, v := range vars {
		if !identRe.MatchString(k) || e.IsFunc(k) || isKeyword(k) {
			continue
		}
		value := v
		funcs[k] = func() string { return value }
	}
	return funcs
}

func executeTemplate(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		if strings.Contains(err.Error(), "map has no entry for key") {
			return "", fmt.Errorf("failed to render template '%s': %w: %w", tmpl.Name(), ErrUndefinedVariable, err)
		}
		return "", fmt.Errorf("failed to render template '%s': %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// checkFunc mirrors the rules text/template enforces in Funcs, which
// panics instead of returning an error.
func checkFunc(fn any) error {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return fmt.Errorf("value is a %T, not a function", fn)
	}
	t := v.Type()
	switch {
	case t.NumOut() == 1:
		return nil
	case t.NumOut() == 2 && t.Out(1) == errorType:
		return nil
	}
	return fmt.Errorf("function must return one value, or a value and an error")
}

func isKeyword(name string) bool {
	switch name {
	case "block", "break", "continue", "define", "else", "end", "if",
		"range", "nil", "template", "with", "true", "false":
		return true
	}
	return false
}
