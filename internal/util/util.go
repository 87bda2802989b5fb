package util

import (
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
)

// WriteFile writes data to a file with 0o644 permissions, creating the
// parent directory first.
func WriteFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// TruncateRunes truncates a string to a maximum number of runes,
// appending an ellipsis if truncated.
func TruncateRunes(text string, maxRunes int) string {
	if utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxRunes]) + "…"
}

// TruncateToWidth cuts every line to at most width terminal cells. A cut line
// ends with an ellipsis that takes the last cell.
func TruncateToWidth(text string, width int) string {
	if width <= 0 {
		return text
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if runewidth.StringWidth(line) > width {
			lines[i] = runewidth.Truncate(line, width-1, "") + "…"
		}
	}
	return strings.Join(lines, "\n")
}

// WrapToWidth wraps text at word boundaries so no line exceeds width terminal
// cells. Words wider than a line are split. Blank lines are kept.
func WrapToWidth(text string, width int) string {
	if width <= 0 {
		return text
	}
	var out []string
	for _, line := range strings.Split(text, "\n") {
		words := strings.Fields(line)
		if len(words) == 0 {
			out = append(out, "")
			continue
		}
		var cur strings.Builder
		used := 0
		flush := func() {
			if used > 0 {
				out = append(out, cur.String())
				cur.Reset()
				used = 0
			}
		}
		for _, w := range words {
			ww := runewidth.StringWidth(w)
			switch {
			case used > 0 && used+1+ww <= width:
				cur.WriteByte(' ')
				cur.WriteString(w)
				used += 1 + ww
			case ww <= width:
				flush()
				cur.WriteString(w)
				used = ww
			default:
				flush()
				for _, r := range w {
					rw := runewidth.RuneWidth(r)
					if used+rw > width {
						flush()
					}
					cur.WriteRune(r)
					used += rw
				}
			}
		}
		flush()
	}
	return strings.Join(out, "\n")
}
