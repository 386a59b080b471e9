package extractor

import (
	"fmt"
	"strings"
)

// Truncate keeps the head and tail of content when it has more than
// maxLines lines, joined by a marker line. The second result reports
// whether anything was cut.
func Truncate(content string, maxLines int) (string, bool) {
	if maxLines <= 0 {
		return content, false
	}
	lines := strings.Split(content, "\n")
	if len(lines) <= maxLines {
		return content, false
	}
	head := (maxLines + 1) / 2
	tail := maxLines - head
	out := make([]string, 0, maxLines+1)
	out = append(out, lines[:head]...)
	out = append(out, fmt.Sprintf("... [%d lines truncated] ...", len(lines)-head-tail))
	out = append(out, lines[len(lines)-tail:]...)
	return strings.Join(out, "\n"), true
}

// TruncateChars is the character-based variant used for prompts. Two
// thirds of the budget go to the head.
func TruncateChars(s string, maxChars int) string {
	runes := []rune(s)
	if maxChars <= 0 || len(runes) <= maxChars {
		return s
	}
	head := maxChars * 2 / 3
	tail := maxChars - head
	return string(runes[:head]) +
		fmt.Sprintf("\n... [%d chars truncated] ...\n", len(runes)-head-tail) +
		string(runes[len(runes)-tail:])
}
