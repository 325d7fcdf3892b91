package chunking

import (
	"regexp"
	"strings"
)

var (
	blankRun = regexp.MustCompile(`\n{3,}`)
	spaceRun = regexp.MustCompile(` {2,}`)
)

// Clean normalises extracted text for chunking.
// Lines are trimmed, runs of spaces collapse to one and three or more newlines
// collapse to a single blank line, which is the paragraph separator Chunk splits on.
func Clean(text string) string {
	if text == "" {
		return ""
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")

	text = blankRun.ReplaceAllString(text, "\n\n")
	text = spaceRun.ReplaceAllString(text, " ")

	return strings.TrimSpace(text)
}
