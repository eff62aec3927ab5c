package textutil

import "strings"

// SanitizeFileName makes a capture title safe to use as an on-disk file or
// directory name. Path separators and drive punctuation become dashes so
// visually distinct titles stay distinct on disk; shell-noise characters
// are dropped outright. The result is trimmed of surrounding whitespace
// and may be empty for fully-noise input.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch r {
		case '/', '\\', ':', '*':
			b.WriteRune('-')
		case '?', '"', '<', '>', '|':
			// dropped
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
