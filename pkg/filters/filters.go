// Package filters implements the text formatting helpers available to
// section and document templates: JSON pretty-printing, indentation,
// paragraph-preserving wrapping and column width computation for
// fixed-width tables.
//
// Every filter is a pure function. FuncMap exposes them to text/template
// with the piped value as the last argument, so templates read naturally:
//
//	{{ unit "m.room.message" | jsonify 4 8 }}
//	{{ .description | wrap 72 "   " }}
//	{{ $widths := fieldwidths $rows (list "key" "type") (list 10 8) }}
package filters

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// NoIndent asks JSONify for compact single-line output.
const NoIndent = -1

// DefaultFieldWidth is the minimum column width fieldwidths uses when no
// per-column default is given.
const DefaultFieldWidth = 15

// JSONify serialises value as JSON with map keys in sorted order and
// non-ASCII characters escaped. Single-line output separates items with
// ", " and keys with ": ". A non-negative indent selects multi-line output
// indented by that many spaces per level. With preWhitespace > 0 every
// newline is followed by that many spaces so the block can be embedded at a
// column offset.
func JSONify(value any, indent, preWhitespace int) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(value); err != nil {
		return "", fmt.Errorf("jsonify: %w", err)
	}
	compact := escapeNonASCII(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))

	code := spaceSeparators(compact)
	if indent >= 0 {
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, compact, "", strings.Repeat(" ", indent)); err != nil {
			return "", fmt.Errorf("jsonify: %w", err)
		}
		code = pretty.String()
	}

	if preWhitespace > 0 {
		code = strings.ReplaceAll(code, "\n", "\n"+strings.Repeat(" ", preWhitespace))
	}
	return code, nil
}

// spaceSeparators renders compact JSON with a space after every "," and ":"
// outside strings, so single-line output reads {"a": [1, 2], "b": 2}.
func spaceSeparators(compact []byte) string {
	var b strings.Builder
	b.Grow(len(compact) + len(compact)/4)
	inString, escaped := false, false
	for _, c := range compact {
		b.WriteByte(c)
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case !inString && (c == ',' || c == ':'):
			b.WriteByte(' ')
		}
	}
	return b.String()
}

// escapeNonASCII rewrites every non-ASCII character as a \uXXXX escape,
// using a surrogate pair outside the basic multilingual plane.
func escapeNonASCII(data []byte) []byte {
	var out []byte
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r < utf8.RuneSelf {
			out = append(out, data[i])
			i++
			continue
		}
		if r1, r2 := utf16.EncodeRune(r); r1 != utf8.RuneError {
			out = fmt.Appendf(out, `\u%04x\u%04x`, r1, r2)
		} else {
			out = fmt.Appendf(out, `\u%04x`, r)
		}
		i += size
	}
	return out
}

// IndentBlock indents every line after the first by n spaces.
func IndentBlock(text string, n int) string {
	return strings.ReplaceAll(text, "\n", "\n"+spaces(n))
}

// Indent prefixes only the first line with n spaces.
func Indent(text string, n int) string {
	return spaces(n) + text
}

// FieldWidths returns, for each key, the longest rendered value of that
// column across rows. Column i is never narrower than defaults[i], or
// defaultWidth when defaults has no entry for it. A row without the key
// contributes nothing.
func FieldWidths(rows []map[string]any, keys []string, defaults []int, defaultWidth int) []int {
	widths := make([]int, len(keys))
	for i, key := range keys {
		w := defaultWidth
		if i < len(defaults) {
			w = defaults[i]
		}
		for _, row := range rows {
			v, ok := row[key]
			if !ok {
				continue
			}
			if l := utf8.RuneCountInString(stringify(v)); l > w {
				w = l
			}
		}
		widths[i] = w
	}
	return widths
}

// Pad left-justifies s in a field of width runes. Longer strings are
// returned unchanged.
func Pad(s string, width int) string {
	n := width - utf8.RuneCountInString(s)
	if n <= 0 {
		return s
	}
	return s + strings.Repeat(" ", n)
}

// Title upper-cases the first letter of each word and lower-cases the rest.
func Title(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		r, size := utf8.DecodeRuneInString(word)
		words[i] = strings.ToUpper(string(r)) + strings.ToLower(word[size:])
	}
	return strings.Join(words, " ")
}

// Default returns defaultVal when val is nil, "" or an empty list or map.
// Zero numbers are kept: 0 is often a meaningful value in API data.
func Default(defaultVal, val any) any {
	switch v := val.(type) {
	case nil:
		return defaultVal
	case string:
		if v == "" {
			return defaultVal
		}
	case []any:
		if len(v) == 0 {
			return defaultVal
		}
	case map[string]any:
		if len(v) == 0 {
			return defaultVal
		}
	}
	return val
}

func spaces(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat(" ", n)
}

func stringify(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(v)
	}
}
