package filters

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultWrapWidth is the column width used by the wrap filter when none is given.
const DefaultWrapWidth = 80

const tabSize = 8

// Wrap word-wraps text to width columns while keeping intentional paragraph
// breaks. Each "\n\n"-separated paragraph is filled on its own; the first
// line of every paragraph starts with initialIndent and later lines carry no
// indent, except in paragraphs that start with a "- " bullet, whose
// continuation lines are indented by two spaces plus initialIndent so they
// sit under the bullet text.
//
// Empty text yields initialIndent rather than "".
func Wrap(text string, width int, initialIndent string) string {
	if len(text) == 0 {
		return initialIndent
	}
	if width < 1 {
		width = 1
	}

	paragraphs := strings.Split(text, "\n\n")
	for i, p := range paragraphs {
		filled := fill(p, width, initialIndent)
		if strings.HasPrefix(filled, "- ") {
			filled = strings.ReplaceAll(filled, "\n", "\n  "+initialIndent)
		}
		paragraphs[i] = filled
	}
	return strings.Join(paragraphs, "\n\n")
}

// fill wraps a single paragraph. Whitespace is normalised to spaces first, so
// single newlines inside a paragraph become ordinary word breaks.
func fill(text string, width int, initialIndent string) string {
	chunks := splitChunks(normalizeWhitespace(expandTabs(text)))
	return strings.Join(wrapChunks(chunks, width, initialIndent), "\n")
}

// wrapChunks packs chunks greedily into lines of at most width runes.
// Whitespace chunks are dropped at the start of every line but the first and
// at the end of every line. Words longer than a line are split, after a
// hyphen when one falls inside the line.
func wrapChunks(chunks []string, width int, initialIndent string) []string {
	var lines []string

	i := 0
	for i < len(chunks) {
		indent := ""
		if len(lines) == 0 {
			indent = initialIndent
		}
		avail := width - utf8.RuneCountInString(indent)

		if chunks[i] == "" || (len(lines) > 0 && isBlank(chunks[i])) {
			i++
			continue
		}

		var cur []string
		curLen := 0
		for i < len(chunks) {
			l := utf8.RuneCountInString(chunks[i])
			if curLen+l > avail {
				break
			}
			cur = append(cur, chunks[i])
			curLen += l
			i++
		}

		if i < len(chunks) && utf8.RuneCountInString(chunks[i]) > avail {
			r := []rune(chunks[i])
			end := longWordBreak(r, avail, curLen)
			cur = append(cur, string(r[:end]))
			chunks[i] = string(r[end:])
			if chunks[i] == "" {
				i++
			}
		}

		if len(cur) > 0 && isBlank(cur[len(cur)-1]) {
			cur = cur[:len(cur)-1]
		}

		if len(cur) > 0 {
			lines = append(lines, indent+strings.Join(cur, ""))
		}
	}
	return lines
}

// longWordBreak returns how many runes of r fit on a line with avail columns
// of which curLen are used. At least one rune is always taken.
func longWordBreak(r []rune, avail, curLen int) int {
	end := avail - curLen
	if avail < 1 {
		end = 1
	}
	if end >= len(r) {
		return len(r)
	}
	for h := end - 1; h > 0; h-- {
		if r[h] == '-' {
			if strings.Trim(string(r[:h]), "-") != "" {
				return h + 1
			}
			break
		}
	}
	return end
}

// splitChunks splits s into runs of spaces and words. Words are split
// further after hyphens that join letters ("end-to-end" becomes "end-",
// "to-", "end") and around dashes of two or more hyphens between words.
func splitChunks(s string) []string {
	if s == "" {
		return nil
	}
	var chunks []string
	start := 0
	for i := 1; i <= len(s); i++ {
		if i == len(s) || (s[i] == ' ') != (s[start] == ' ') {
			if s[start] == ' ' {
				chunks = append(chunks, s[start:i])
			} else {
				chunks = append(chunks, splitWord([]rune(s[start:i]))...)
			}
			start = i
		}
	}
	return chunks
}

func splitWord(r []rune) []string {
	var parts []string
	start := 0
	for j := 0; j < len(r); j++ {
		if r[j] != '-' {
			continue
		}
		k := j
		for k < len(r) && r[k] == '-' {
			k++
		}
		if k-j >= 2 {
			if j > start && isWordPunct(r[j-1]) && k < len(r) && isWordRune(r[k]) {
				parts = append(parts, string(r[start:j]), string(r[j:k]))
				start = k
			}
			j = k - 1
			continue
		}
		if j > start && hyphenBreak(r, j) {
			parts = append(parts, string(r[start:j+1]))
			start = j + 1
		}
	}
	if start < len(r) {
		parts = append(parts, string(r[start:]))
	}
	return parts
}

// hyphenBreak reports whether a line may break after the hyphen at r[j]: it
// follows two letters, or a letter-hyphen-letter run, and is followed by a
// letter, an optional hyphen and another letter.
func hyphenBreak(r []rune, j int) bool {
	before := (j >= 2 && isLetter(r[j-2]) && isLetter(r[j-1])) ||
		(j >= 3 && isLetter(r[j-3]) && r[j-2] == '-' && isLetter(r[j-1]))
	if !before || j+2 >= len(r) || !isLetter(r[j+1]) {
		return false
	}
	if isLetter(r[j+2]) {
		return true
	}
	return r[j+2] == '-' && j+3 < len(r) && isLetter(r[j+3])
}

func isLetter(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isWordRune(r rune) bool {
	return isLetter(r) || unicode.IsDigit(r)
}

func isWordPunct(r rune) bool {
	return isWordRune(r) || strings.ContainsRune(`!"'&.,?`, r)
}

// expandTabs replaces tabs with spaces up to the next tab stop. The column
// resets after a newline or carriage return.
func expandTabs(s string) string {
	if !strings.Contains(s, "\t") {
		return s
	}
	var b strings.Builder
	col := 0
	for _, r := range s {
		switch r {
		case '\t':
			n := tabSize - col%tabSize
			b.WriteString(strings.Repeat(" ", n))
			col += n
		case '\n', '\r':
			b.WriteRune(r)
			col = 0
		default:
			b.WriteRune(r)
			col++
		}
	}
	return b.String()
}

func normalizeWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\t', '\n', '\v', '\f', '\r':
			return ' '
		}
		return r
	}, s)
}

func isBlank(s string) bool {
	return strings.Trim(s, " ") == ""
}
