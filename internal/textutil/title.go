package textutil

import (
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DeriveTitle builds a human-friendly capture title from a source file path.
// Separators become spaces, noise characters are dropped, and the result is
// title-cased. Empty or fully-noise input yields "Untitled Capture".
func DeriveTitle(sourcePath string) string {
	if sourcePath == "" {
		return "Untitled Capture"
	}
	base := filepath.Base(sourcePath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	cleaned := strings.Builder{}
	prevSpace := false
	for _, r := range base {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			cleaned.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '.':
			if !prevSpace {
				cleaned.WriteRune(' ')
				prevSpace = true
			}
		}
	}
	title := strings.TrimSpace(cleaned.String())
	if title == "" {
		return "Untitled Capture"
	}
	return cases.Title(language.Und).String(title)
}
