// Package compare implements the text comparison modes used to turn program
// output into a verdict.
package compare

import "strings"

// Strict reports byte equality after stripping at most one trailing newline
// from each side.
func Strict(expected, actual string) bool {
	return stripOneTrailingNewline(expected) == stripOneTrailingNewline(actual)
}

// Standard reports equality ignoring trailing whitespace: each line is
// right-trimmed, then the whole text is right-trimmed.
func Standard(expected, actual string) bool {
	return Normalize(expected) == Normalize(actual)
}

// Normalize right-trims every line and the overall text. Exported because
// the special-judge fallback path reuses it.
func Normalize(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t\r\v\f")
	}
	return strings.TrimRight(strings.Join(lines, "\n"), " \t\r\n\v\f")
}

func stripOneTrailingNewline(s string) string {
	s = strings.TrimSuffix(s, "\n")
	return s
}
