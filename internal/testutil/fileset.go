package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// TestInput is a temporary file-set input laid out as units/, sections/ and
// templates/ under Root, plus a docs/ directory for input documents.
type TestInput struct {
	Root string
	t    *testing.T
}

// NewTestInput creates an empty input directory
func NewTestInput(t *testing.T) *TestInput {
	t.Helper()

	return &TestInput{
		Root: t.TempDir(),
		t:    t,
	}
}

// WriteUnit writes a unit data file, e.g. WriteUnit("events/m.room.json", `{...}`)
func (in *TestInput) WriteUnit(name, content string) string {
	in.t.Helper()
	return in.write(filepath.Join("units", name), content)
}

// WriteSection writes a section template, e.g. WriteSection("intro.tmpl", "...")
func (in *TestInput) WriteSection(name, content string) string {
	in.t.Helper()
	return in.write(filepath.Join("sections", name), content)
}

// WriteTemplate writes a shared partial template
func (in *TestInput) WriteTemplate(name, content string) string {
	in.t.Helper()
	return in.write(filepath.Join("templates", name), content)
}

// WriteDocument writes an input document and returns its path
func (in *TestInput) WriteDocument(name, content string) string {
	in.t.Helper()
	return in.write(filepath.Join("docs", name), content)
}

// Path joins elements onto the input root
func (in *TestInput) Path(elem ...string) string {
	return filepath.Join(append([]string{in.Root}, elem...)...)
}

// ReadFile reads a file relative to the input root
func (in *TestInput) ReadFile(path string) string {
	in.t.Helper()

	content, err := os.ReadFile(in.Path(path))
	if err != nil {
		in.t.Fatalf("reading %s: %v", path, err)
	}
	return string(content)
}

// FileExists checks if a file exists relative to the input root
func (in *TestInput) FileExists(path string) bool {
	in.t.Helper()

	_, err := os.Stat(in.Path(path))
	return err == nil
}

func (in *TestInput) write(rel, content string) string {
	in.t.Helper()

	path := in.Path(rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		in.t.Fatalf("creating directory for %s: %v", rel, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		in.t.Fatalf("writing %s: %v", rel, err)
	}
	return path
}
