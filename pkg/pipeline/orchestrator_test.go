package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matrix-org/batesian/pkg/logger"
	"github.com/matrix-org/batesian/pkg/renderer"
	"github.com/matrix-org/batesian/pkg/store"
)

func staticUnits(units map[string]any) UnitProvider {
	return UnitProviderFunc(func(context.Context, bool) (map[string]any, error) {
		return units, nil
	})
}

// titleSections reads the "title" unit and leaves every other unit alone.
func titleSections() SectionBuilder {
	return SectionBuilderFunc(func(_ context.Context, _ *renderer.Environment, units *store.Store, _ bool) (map[string]string, error) {
		v, err := units.Get("title")
		if err != nil {
			return nil, err
		}
		return map[string]string{"title": v.(string), "body": "B"}, nil
	})
}

func writeTemplate(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0644))
	return path
}

func TestRun_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	tmpl := writeTemplate(t, dir, "index.rst", "Title: {{ .title }}\n{{ body }}\nrelease %RELEASE_LABEL% (%MAJOR_VERSION%)\n")
	outDir := filepath.Join(dir, "out")

	var logs bytes.Buffer
	in := &Input{Name: "test", Units: staticUnits(map[string]any{"title": "T", "extra": 1}), Sections: titleSections()}
	o := New(in, WithLogger(logger.NewLogger(logger.LevelInfo, &logs)))

	res, err := o.Run(context.Background(), Request{
		TemplatePath: tmpl,
		OutDir:       outDir,
		Substitutions: []Substitution{
			{Old: "%RELEASE_LABEL%", New: "r5.2"},
			{Old: "%MAJOR_VERSION%", New: "r5"},
		},
	})
	require.NoError(t, err)

	expected := "Title: T\nB\nrelease r5.2 (r5)\n"
	got, err := os.ReadFile(filepath.Join(outDir, "index.rst"))
	require.NoError(t, err)
	assert.Equal(t, expected, string(got))

	assert.False(t, res.Discovery)
	assert.Equal(t, filepath.Join(outDir, "index.rst"), res.OutputPath)
	assert.Equal(t, len(expected), res.Bytes)
	assert.Equal(t, []string{"extra"}, res.UnusedUnits)
	assert.Contains(t, logs.String(), "[WARN] Found 1 unused units keys. | keys=[extra]")
	assert.Contains(t, logs.String(), "Parsing input template: "+tmpl)
}

func TestRun_NoUnusedWarningWhenEverythingIsRead(t *testing.T) {
	dir := t.TempDir()
	tmpl := writeTemplate(t, dir, "doc.rst", "{{ .title }}")

	var logs bytes.Buffer
	in := &Input{Units: staticUnits(map[string]any{"title": "T"}), Sections: titleSections()}
	res, err := New(in, WithLogger(logger.NewLogger(logger.LevelInfo, &logs))).Run(context.Background(), Request{TemplatePath: tmpl, OutDir: dir})
	require.NoError(t, err)

	assert.Empty(t, res.UnusedUnits)
	assert.NotContains(t, logs.String(), "unused")
}

func TestRun_WarnsAboutShadowedSections(t *testing.T) {
	dir := t.TempDir()
	tmpl := writeTemplate(t, dir, "doc.rst", "{{ .title }}|{{ body }}")

	var logs bytes.Buffer
	in := &Input{Name: "test", Units: staticUnits(map[string]any{"title": "T"}), Sections: titleSections()}
	o := New(in, WithLogger(logger.NewLogger(logger.LevelInfo, &logs)))

	_, err := o.Run(context.Background(), Request{TemplatePath: tmpl, OutDir: filepath.Join(dir, "out")})
	require.NoError(t, err)

	assert.Contains(t, logs.String(), "[WARN] Sections named like template functions are only reachable as {{ .name }}. | sections=[title]")
	got, err := os.ReadFile(filepath.Join(dir, "out", "doc.rst"))
	require.NoError(t, err)
	assert.Equal(t, "T|B", string(got))
}

func TestRun_Discovery(t *testing.T) {
	long := strings.Repeat("x", 80)
	sections := map[string]string{"short": "hi", "multi": "a\nb\nc", "long": long}
	in := &Input{
		Units: staticUnits(nil),
		Sections: SectionBuilderFunc(func(context.Context, *renderer.Environment, *store.Store, bool) (map[string]string, error) {
			return sections, nil
		}),
	}

	outDir := filepath.Join(t.TempDir(), "out")
	res, err := New(in).Run(context.Background(), Request{OutDir: outDir})
	require.NoError(t, err)

	assert.True(t, res.Discovery)
	require.Len(t, res.Variables, 3)
	assert.Equal(t, "long", res.Variables[0].Key)
	assert.Equal(t, 80, res.Variables[0].Chars)
	assert.Nil(t, res.Variables[0].Preview)

	assert.Equal(t, "multi", res.Variables[1].Key)
	assert.Equal(t, 2, res.Variables[1].Lines)
	require.NotNil(t, res.Variables[1].Preview)
	assert.Equal(t, "a\nb\nc", *res.Variables[1].Preview)

	assert.Equal(t, "short", res.Variables[2].Key)
	assert.Equal(t, 2, res.Variables[2].Chars)

	_, statErr := os.Stat(outDir)
	assert.True(t, os.IsNotExist(statErr), "discovery writes nothing")
}

func TestRun_ProviderFailures(t *testing.T) {
	boom := errors.New("boom")

	t.Run("unit provider", func(t *testing.T) {
		in := &Input{
			Units: UnitProviderFunc(func(context.Context, bool) (map[string]any, error) { return nil, boom }),
			Sections: SectionBuilderFunc(func(context.Context, *renderer.Environment, *store.Store, bool) (map[string]string, error) {
				t.Fatal("sections must not be built when units fail")
				return nil, nil
			}),
		}
		_, err := New(in).Run(context.Background(), Request{})
		assert.ErrorIs(t, err, ErrProvider)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("missing unit", func(t *testing.T) {
		in := &Input{Units: staticUnits(map[string]any{}), Sections: titleSections()}
		_, err := New(in).Run(context.Background(), Request{})
		assert.ErrorIs(t, err, ErrProvider)
		assert.ErrorIs(t, err, store.ErrKeyNotFound)
	})
}

func TestRun_ValidationFailureWritesNothing(t *testing.T) {
	dir := t.TempDir()
	tmpl := writeTemplate(t, dir, "doc.rst", "{{ .title }} {{ .nope }}")
	outDir := filepath.Join(dir, "out")

	in := &Input{Units: staticUnits(map[string]any{"title": "T"}), Sections: titleSections()}
	_, err := New(in).Run(context.Background(), Request{TemplatePath: tmpl, OutDir: outDir})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingTemplateVariables)
	assert.Contains(t, err.Error(), "nope")

	_, statErr := os.Stat(filepath.Join(outDir, "doc.rst"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRun_MissingTemplateFile(t *testing.T) {
	in := &Input{Units: staticUnits(map[string]any{"title": "T"}), Sections: titleSections()}
	_, err := New(in).Run(context.Background(), Request{TemplatePath: filepath.Join(t.TempDir(), "absent.rst")})
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRun_RejectsInvalidUTF8(t *testing.T) {
	dir := t.TempDir()
	tmpl := writeTemplate(t, dir, "bad.rst", "\xff\xfe")

	in := &Input{Units: staticUnits(map[string]any{"title": "T"}), Sections: titleSections()}
	_, err := New(in).Run(context.Background(), Request{TemplatePath: tmpl, OutDir: dir})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid UTF-8")
}

func TestRun_DryRun(t *testing.T) {
	dir := t.TempDir()
	tmpl := writeTemplate(t, dir, "doc.rst", "{{ .title }}")
	outDir := filepath.Join(dir, "out")

	var report bytes.Buffer
	in := &Input{Units: staticUnits(map[string]any{"title": "T"}), Sections: titleSections()}
	res, err := New(in, WithOutput(&report)).Run(context.Background(), Request{TemplatePath: tmpl, OutDir: outDir, DryRun: true})
	require.NoError(t, err)

	assert.True(t, res.DryRun)
	assert.Equal(t, 1, res.Bytes)
	assert.Contains(t, report.String(), "[DRY RUN] Write")
	_, statErr := os.Stat(outDir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRun_LoadsTemplateDirBeforeSections(t *testing.T) {
	dir := t.TempDir()
	partials := filepath.Join(dir, "templates")
	require.NoError(t, os.MkdirAll(partials, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(partials, "heading.tmpl"), []byte("== {{ .text }} =="), 0644))
	tmpl := writeTemplate(t, dir, "doc.rst", "{{ .heading }}")

	in := &Input{
		Units:       staticUnits(map[string]any{}),
		TemplateDir: partials,
		Sections: SectionBuilderFunc(func(_ context.Context, env *renderer.Environment, _ *store.Store, _ bool) (map[string]string, error) {
			h, err := env.Execute("heading.tmpl", map[string]any{"text": "Intro"})
			if err != nil {
				return nil, err
			}
			return map[string]string{"heading": h}, nil
		}),
	}

	outDir := filepath.Join(dir, "out")
	_, err := New(in).Run(context.Background(), Request{TemplatePath: tmpl, OutDir: outDir})
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(outDir, "doc.rst"))
	require.NoError(t, err)
	assert.Equal(t, "== Intro ==", string(got))
}

func TestRun_UsesSuppliedEnvironment(t *testing.T) {
	env := renderer.NewEnvironment()
	require.NoError(t, env.AddFilter("shout", strings.ToUpper))

	dir := t.TempDir()
	tmpl := writeTemplate(t, dir, "doc.rst", "{{ .title | shout }}")
	in := &Input{Units: staticUnits(map[string]any{"title": "quiet"}), Sections: titleSections()}

	_, err := New(in, WithEnvironment(env)).Run(context.Background(), Request{TemplatePath: tmpl, OutDir: dir})
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(dir, "doc.rst"))
	require.NoError(t, err)
	assert.Equal(t, "QUIET", string(got))
}

func TestRun_DebugFlagReachesProviders(t *testing.T) {
	var sawDebug bool
	in := &Input{
		Units: UnitProviderFunc(func(_ context.Context, debug bool) (map[string]any, error) {
			sawDebug = debug
			return nil, nil
		}),
		Sections: SectionBuilderFunc(func(context.Context, *renderer.Environment, *store.Store, bool) (map[string]string, error) {
			return nil, nil
		}),
	}
	_, err := New(in, WithDebug(true)).Run(context.Background(), Request{})
	require.NoError(t, err)
	assert.True(t, sawDebug)
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	in := &Input{
		Units: UnitProviderFunc(func(context.Context, bool) (map[string]any, error) {
			called = true
			return nil, nil
		}),
		Sections: titleSections(),
	}
	_, err := New(in).Run(ctx, Request{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestRun_InvalidInput(t *testing.T) {
	_, err := New(&Input{Name: "empty"}).Run(context.Background(), Request{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no unit provider")
}

func TestApplySubstitutions(t *testing.T) {
	subs := []Substitution{{Old: "%A%", New: "%B%"}, {Old: "%B%", New: "z"}, {Old: "", New: "ignored"}}
	assert.Equal(t, "z-z", applySubstitutions("%A%-%B%", subs))
	assert.Equal(t, "plain", applySubstitutions("plain", nil))
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "load-units", StageLoadUnits.String())
	assert.Equal(t, "report-unused", StageReportUnused.String())
	assert.Equal(t, "stage(42)", Stage(42).String())
}
