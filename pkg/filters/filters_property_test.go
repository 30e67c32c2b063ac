package filters

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestFilterProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	// Property: plain paragraphs never exceed the width
	properties.Property("wrapped lines fit the width", prop.ForAll(
		func(words []string, width int) bool {
			out := Wrap(strings.Join(words, " "), width, "")
			for _, line := range strings.Split(out, "\n") {
				if utf8.RuneCountInString(line) > width {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.AlphaString()),
		gen.IntRange(1, 60),
	))

	// Property: wrapping only moves whitespace around
	properties.Property("wrap keeps every non-space character", prop.ForAll(
		func(words []string, width int) bool {
			in := strings.Join(words, " ")
			out := Wrap(in, width, "")
			return strings.Join(strings.Fields(out), "") == strings.Join(strings.Fields(in), "")
		},
		gen.SliceOf(gen.AlphaString()),
		gen.IntRange(1, 60),
	))

	// Property: indent_block never changes the number of lines
	properties.Property("indent_block keeps line count", prop.ForAll(
		func(lines []string, n int) bool {
			in := strings.Join(lines, "\n")
			return strings.Count(IndentBlock(in, n), "\n") == strings.Count(in, "\n")
		},
		gen.SliceOf(gen.AlphaString()),
		gen.IntRange(0, 12),
	))

	// Property: widths are floored at the default and cover every value
	properties.Property("fieldwidths bounds", prop.ForAll(
		func(values []string, defaultWidth int) bool {
			rows := make([]map[string]any, len(values))
			for i, v := range values {
				rows[i] = map[string]any{"col": v}
			}
			w := FieldWidths(rows, []string{"col"}, nil, defaultWidth)[0]
			if w < defaultWidth {
				return false
			}
			for _, v := range values {
				if utf8.RuneCountInString(v) > w {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.AlphaString()),
		gen.IntRange(0, 20),
	))

	properties.TestingRun(t)
}
