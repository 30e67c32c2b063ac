package filters

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"text/template"
)

// FuncMap returns the template functions backed by this package.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		// Formatting filters
		"jsonify":      jsonifyFunc,     // value | jsonify [indent [preWhitespace]]
		"indent":       indentFunc,      // text | indent 4
		"indent_block": indentBlockFunc, // text | indent_block 4
		"wrap":         wrapFunc,        // text | wrap [width [initialIndent]]
		"fieldwidths":  fieldWidthsFunc, // fieldwidths rows keys [defaults [defaultWidth]]
		"pad":          padFunc,         // text | pad 12

		// String manipulation
		"upper":     strings.ToUpper,
		"lower":     strings.ToLower,
		"title":     Title,
		"trim":      strings.TrimSpace,
		"join":      joinFunc,
		"split":     splitFunc,
		"replace":   replaceFunc,
		"contains":  containsFunc,
		"hasPrefix": hasPrefixFunc,
		"hasSuffix": hasSuffixFunc,
		"quote":     func(s string) string { return fmt.Sprintf("%q", s) },
		"repeat":    repeatFunc,

		// Utilities
		"dict":    Dict,
		"list":    func(values ...any) []any { return values },
		"default": Default,
	}
}

func jsonifyFunc(args ...any) (string, error) {
	if len(args) == 0 || len(args) > 3 {
		return "", fmt.Errorf("jsonify: expected 1 to 3 arguments, got %d", len(args))
	}
	value := args[len(args)-1]
	indent, pre := NoIndent, 0

	var err error
	if len(args) >= 2 {
		if indent, err = toInt(args[0]); err != nil {
			return "", fmt.Errorf("jsonify: indent: %w", err)
		}
	}
	if len(args) == 3 {
		if pre, err = toInt(args[1]); err != nil {
			return "", fmt.Errorf("jsonify: pre_whitespace: %w", err)
		}
	}
	return JSONify(value, indent, pre)
}

func indentFunc(n int, text string) string { return Indent(text, n) }

func indentBlockFunc(n int, text string) string { return IndentBlock(text, n) }

func padFunc(width int, text string) string { return Pad(text, width) }

func repeatFunc(n int, s string) string { return strings.Repeat(s, max(n, 0)) }

func wrapFunc(args ...any) (string, error) {
	if len(args) == 0 || len(args) > 3 {
		return "", fmt.Errorf("wrap: expected 1 to 3 arguments, got %d", len(args))
	}
	text, ok := args[len(args)-1].(string)
	if !ok {
		return "", fmt.Errorf("wrap: text must be a string, got %T", args[len(args)-1])
	}

	width, initialIndent := DefaultWrapWidth, ""
	if len(args) >= 2 {
		w, err := toInt(args[0])
		if err != nil {
			return "", fmt.Errorf("wrap: width: %w", err)
		}
		width = w
	}
	if len(args) == 3 {
		s, ok := args[1].(string)
		if !ok {
			return "", fmt.Errorf("wrap: initial indent must be a string, got %T", args[1])
		}
		initialIndent = s
	}
	return Wrap(text, width, initialIndent), nil
}

func fieldWidthsFunc(rows, keys any, opts ...any) ([]int, error) {
	if len(opts) > 2 {
		return nil, fmt.Errorf("fieldwidths: expected at most 4 arguments, got %d", len(opts)+2)
	}
	rowMaps, err := toRows(rows)
	if err != nil {
		return nil, fmt.Errorf("fieldwidths: %w", err)
	}
	keyList, err := toStrings(keys)
	if err != nil {
		return nil, fmt.Errorf("fieldwidths: keys: %w", err)
	}

	var defaults []int
	defaultWidth := DefaultFieldWidth
	if len(opts) >= 1 && opts[0] != nil {
		if defaults, err = toInts(opts[0]); err != nil {
			return nil, fmt.Errorf("fieldwidths: defaults: %w", err)
		}
	}
	if len(opts) == 2 {
		if defaultWidth, err = toInt(opts[1]); err != nil {
			return nil, fmt.Errorf("fieldwidths: default width: %w", err)
		}
	}
	return FieldWidths(rowMaps, keyList, defaults, defaultWidth), nil
}

// Argument orders put the piped value last.
func joinFunc(sep string, items any) (string, error) {
	parts, err := toStrings(items)
	if err != nil {
		return "", fmt.Errorf("join: %w", err)
	}
	return strings.Join(parts, sep), nil
}

func splitFunc(sep, s string) []string { return strings.Split(s, sep) }

func replaceFunc(old, repl, s string) string { return strings.ReplaceAll(s, old, repl) }

func containsFunc(substr, s string) bool { return strings.Contains(s, substr) }

func hasPrefixFunc(prefix, s string) bool { return strings.HasPrefix(s, prefix) }

func hasSuffixFunc(suffix, s string) bool { return strings.HasSuffix(s, suffix) }

// Dict creates a map from alternating key-value pairs
// Usage in template: {{ template "partial" (dict "key1" val1 "key2" val2) }}
func Dict(values ...any) (map[string]any, error) {
	if len(values)%2 != 0 {
		return nil, fmt.Errorf("dict requires an even number of arguments")
	}

	result := make(map[string]any, len(values)/2)
	for i := 0; i < len(values); i += 2 {
		key, ok := values[i].(string)
		if !ok {
			return nil, fmt.Errorf("dict keys must be strings, got %T at position %d", values[i], i)
		}
		result[key] = values[i+1]
	}
	return result, nil
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case int32:
		return int(n), nil
	case uint64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%v is not a whole number", n)
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, err
		}
		return int(i), nil
	}
	return 0, fmt.Errorf("expected a number, got %T", v)
}

func toInts(v any) ([]int, error) {
	switch list := v.(type) {
	case []int:
		return list, nil
	case []any:
		out := make([]int, len(list))
		for i, item := range list {
			n, err := toInt(item)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out[i] = n
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected a list of numbers, got %T", v)
}

func toStrings(v any) ([]string, error) {
	switch list := v.(type) {
	case []string:
		return list, nil
	case []any:
		out := make([]string, len(list))
		for i, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("element %d: expected a string, got %T", i, item)
			}
			out[i] = s
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected a list of strings, got %T", v)
}

func toRows(v any) ([]map[string]any, error) {
	switch rows := v.(type) {
	case []map[string]any:
		return rows, nil
	case []map[string]string:
		out := make([]map[string]any, len(rows))
		for i, row := range rows {
			out[i] = stringRow(row)
		}
		return out, nil
	case []any:
		out := make([]map[string]any, len(rows))
		for i, item := range rows {
			switch row := item.(type) {
			case map[string]any:
				out[i] = row
			case map[string]string:
				out[i] = stringRow(row)
			default:
				return nil, fmt.Errorf("row %d: expected a map, got %T", i, item)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("rows must be a list of maps, got %T", v)
}

func stringRow(row map[string]string) map[string]any {
	m := make(map[string]any, len(row))
	for k, v := range row {
		m[k] = v
	}
	return m
}
