// Package output provides styled terminal output for the batesian CLI.
//
// Styles come from lipgloss and are resolved against the destination
// writer, so output piped to a file or captured in tests is plain text.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/matrix-org/batesian/pkg/pipeline"
)

// Printer writes user-facing messages. It is separate from the logger,
// which carries build diagnostics.
type Printer struct {
	w       io.Writer
	verbose bool

	successStyle lipgloss.Style
	errorStyle   lipgloss.Style
	infoStyle    lipgloss.Style
	stepStyle    lipgloss.Style
	keyStyle     lipgloss.Style
}

// New creates a printer writing to w (os.Stdout when nil).
func New(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	r := lipgloss.NewRenderer(w)
	return &Printer{
		w:            w,
		successStyle: r.NewStyle().Foreground(lipgloss.Color("green")).Bold(true),
		errorStyle:   r.NewStyle().Foreground(lipgloss.Color("red")).Bold(true),
		infoStyle:    r.NewStyle().Foreground(lipgloss.Color("cyan")),
		stepStyle:    r.NewStyle().Foreground(lipgloss.Color("240")),
		keyStyle:     r.NewStyle().Bold(true),
	}
}

// SetVerbose enables or disables Verbose messages.
func (p *Printer) SetVerbose(v bool) {
	p.verbose = v
}

// Success prints a completed operation.
//
// Example:
//
//	p.Success("Generated out/index.rst (5120 bytes)")
func (p *Printer) Success(msg string) {
	fmt.Fprintln(p.w, p.successStyle.Render("✓ "+msg))
}

// Error prints a failure that needs user attention.
func (p *Printer) Error(msg string) {
	fmt.Fprintln(p.w, p.errorStyle.Render("✗ "+msg))
}

// Info prints a status update.
func (p *Printer) Info(msg string) {
	fmt.Fprintln(p.w, p.infoStyle.Render(msg))
}

// Step prints an indented sub-item in gray.
func (p *Printer) Step(msg string) {
	fmt.Fprintln(p.w, p.stepStyle.Render("   "+msg))
}

// Verbose prints msg only in verbose mode.
func (p *Printer) Verbose(msg string) {
	if p.verbose {
		fmt.Fprintln(p.w, p.stepStyle.Render("· "+msg))
	}
}

// Variables lists the template variables found by discovery:
//
//	Valid template variables:
//	  room_events
//	      1532 characters, 48 lines
//	  version
//	      2 characters (Value: 'r0')
func (p *Printer) Variables(vars []pipeline.VariableInfo) {
	fmt.Fprintln(p.w)
	fmt.Fprintln(p.w, p.infoStyle.Render("Valid template variables:"))
	for _, v := range vars {
		fmt.Fprintln(p.w, "  "+p.keyStyle.Render(v.Key))
		fmt.Fprintln(p.w, p.stepStyle.Render("      "+DescribeVariable(v)))
	}
}

// DescribeVariable formats the size line shown under each variable.
func DescribeVariable(v pipeline.VariableInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d characters", v.Chars)
	if v.Lines > 0 {
		fmt.Fprintf(&b, ", %d lines", v.Lines)
	}
	if v.Preview != nil {
		fmt.Fprintf(&b, " (Value: '%s')", *v.Preview)
	}
	return b.String()
}
