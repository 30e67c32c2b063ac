package fileset

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matrix-org/batesian/internal/testutil"
	"github.com/matrix-org/batesian/pkg/pipeline"
	"github.com/matrix-org/batesian/pkg/renderer"
	"github.com/matrix-org/batesian/pkg/store"
)

func TestUnitLoader(t *testing.T) {
	in := testutil.NewTestInput(t)
	in.WriteUnit("events/m.room.member.json", `{"type": "m.room.member"}`)
	in.WriteUnit("meta.yaml", "title: Docs\n")
	in.WriteUnit("limits.hcl", "max = 10\n")
	in.WriteUnit("README.md", "ignored")

	units, err := (&UnitLoader{Dir: in.Path("units")}).Units(context.Background(), true)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"events/m.room.member": map[string]any{"type": "m.room.member"},
		"meta":                 map[string]any{"title": "Docs"},
		"limits":               map[string]any{"max": int64(10)},
	}, units)
}

func TestUnitLoader_Errors(t *testing.T) {
	t.Run("duplicate names", func(t *testing.T) {
		in := testutil.NewTestInput(t)
		in.WriteUnit("a.json", `{}`)
		in.WriteUnit("a.yaml", "{}\n")

		_, err := (&UnitLoader{Dir: in.Path("units")}).Units(context.Background(), false)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unit "a" is defined by both a.json and a.yaml`)
	})

	t.Run("bad file", func(t *testing.T) {
		in := testutil.NewTestInput(t)
		in.WriteUnit("broken.json", `{`)

		_, err := (&UnitLoader{Dir: in.Path("units")}).Units(context.Background(), false)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "broken.json")
	})

	t.Run("missing directory", func(t *testing.T) {
		_, err := (&UnitLoader{Dir: filepath.Join(t.TempDir(), "units")}).Units(context.Background(), false)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestSectionKey(t *testing.T) {
	assert.Equal(t, "intro", SectionKey("intro.tmpl"))
	assert.Equal(t, "events_room", SectionKey("events/room.tmpl"))
	assert.Equal(t, "a_b_c", SectionKey("a/b/c.tmpl"))
}

func TestSectionTemplates(t *testing.T) {
	in := testutil.NewTestInput(t)
	in.WriteSection("title.tmpl", "{{ unit \"meta\" | jsonify }}\n")
	in.WriteSection("events/list.tmpl", `{{ range $k, $v := unitsWithPrefix "events/" }}{{ $k }};{{ end }}`)
	in.WriteSection("flags.tmpl", `{{ if hasUnit "optional" }}yes{{ else }}no{{ end }}|{{ len unitNames }}|{{ .Debug }}`)
	in.WriteSection("notes.txt", "not a section")

	units := store.New(map[string]any{
		"meta":         map[string]any{"title": "Docs"},
		"events/a":     1,
		"events/b":     2,
		"never_looked": 3,
	}, nil)

	sections, err := (&SectionTemplates{Dir: in.Path("sections")}).Sections(context.Background(), renderer.NewEnvironment(), units, true)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"title":       `{"title": "Docs"}`,
		"events_list": "events/a;events/b;",
		"flags":       "no|4|true",
	}, sections)
	assert.Equal(t, []string{"events/a", "events/b", "meta"}, units.AccessedKeys())
	assert.Equal(t, []string{"never_looked"}, units.UnaccessedKeys())
}

func TestSectionTemplates_MissingUnit(t *testing.T) {
	in := testutil.NewTestInput(t)
	in.WriteSection("broken.tmpl", `{{ unit "absent" }}`)

	_, err := (&SectionTemplates{Dir: in.Path("sections")}).Sections(context.Background(), renderer.NewEnvironment(), store.New(nil, nil), false)
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrKeyNotFound)
	assert.Contains(t, err.Error(), `section "broken"`)
}

func TestSectionTemplates_DuplicateKeys(t *testing.T) {
	in := testutil.NewTestInput(t)
	in.WriteSection("a/b.tmpl", "one")
	in.WriteSection("a_b.tmpl", "two")

	_, err := (&SectionTemplates{Dir: in.Path("sections")}).Sections(context.Background(), renderer.NewEnvironment(), store.New(nil, nil), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `section "a_b" is produced by both`)
}

func TestNew(t *testing.T) {
	in := testutil.NewTestInput(t)
	in.WriteUnit("a.json", "{}")
	in.WriteSection("s.tmpl", "x")

	input, err := New(pipeline.InputConfig{Root: in.Root}, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(in.Root), input.Name)
	assert.Empty(t, input.TemplateDir, "templates directory is optional")

	in.WriteTemplate("p.tmpl", "partial")
	input, err = New(pipeline.InputConfig{Name: "docs", Root: in.Root}, nil)
	require.NoError(t, err)
	assert.Equal(t, "docs", input.Name)
	assert.Equal(t, in.Path("templates"), input.TemplateDir)
}

func TestNew_CustomDirectories(t *testing.T) {
	in := testutil.NewTestInput(t)
	require.NoError(t, os.MkdirAll(in.Path("data"), 0755))
	require.NoError(t, os.MkdirAll(in.Path("frags"), 0755))

	input, err := New(pipeline.InputConfig{Root: in.Root, Units: "data", Sections: "frags", Templates: in.Path("absent")}, nil)
	require.NoError(t, err)
	assert.Equal(t, in.Path("data"), input.Units.(*UnitLoader).Dir)
	assert.Equal(t, in.Path("frags"), input.Sections.(*SectionTemplates).Dir)
	assert.Empty(t, input.TemplateDir)
}

func TestNew_Errors(t *testing.T) {
	_, err := New(pipeline.InputConfig{Name: "x"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no root directory")

	in := testutil.NewTestInput(t)
	in.WriteUnit("a.json", "{}")
	_, err = New(pipeline.InputConfig{Root: in.Root}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestFactory_ThroughRegistry(t *testing.T) {
	reg := pipeline.NewRegistry()
	require.NoError(t, reg.Register("events", Factory(nil)))

	input, err := reg.Resolve("events", pipeline.InputConfig{Root: filepath.Join("testdata", "events")})
	require.NoError(t, err)
	assert.Equal(t, "events", input.Name)
}

func TestBuild_EventsFixture(t *testing.T) {
	root := filepath.Join("testdata", "events")
	input, err := New(pipeline.InputConfig{Name: "events", Root: root}, nil)
	require.NoError(t, err)

	outDir := t.TempDir()
	res, err := pipeline.New(input).Run(context.Background(), pipeline.Request{
		TemplatePath: filepath.Join(root, "docs", "events.rst"),
		OutDir:       outDir,
		Substitutions: []pipeline.Substitution{
			{Old: "%RELEASE_LABEL%", New: "r5.2"},
			{Old: "%MAJOR_VERSION%", New: "r5"},
		},
	})
	require.NoError(t, err)

	expected, err := os.ReadFile(filepath.Join(root, "expected", "events.rst"))
	require.NoError(t, err)
	got, err := os.ReadFile(filepath.Join(outDir, "events.rst"))
	require.NoError(t, err)

	assert.Equal(t, string(expected), string(got))
	assert.Equal(t, []string{"unused"}, res.UnusedUnits)
}

func TestBuild_EventsFixtureDiscovery(t *testing.T) {
	input, err := New(pipeline.InputConfig{Root: filepath.Join("testdata", "events")}, nil)
	require.NoError(t, err)

	res, err := pipeline.New(input).Run(context.Background(), pipeline.Request{})
	require.NoError(t, err)
	require.True(t, res.Discovery)

	keys := make([]string, len(res.Variables))
	for i, v := range res.Variables {
		keys[i] = v.Key
	}
	assert.Equal(t, []string{"events", "release_header"}, keys)
	require.NotNil(t, res.Variables[1].Preview)
	assert.Equal(t, "Room Events (v2)\n====================", *res.Variables[1].Preview)
}
