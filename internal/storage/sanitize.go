// Package storage writes transcripts, channel listings and run reports to
// the output directory, and finds duplicate transcripts in it.
package storage

import (
	"regexp"
	"strings"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// SanitizedFilename is a filesystem-safe base name. Base is never empty and
// never longer than the sanitizer's limit, counted in runes.
type SanitizedFilename struct {
	Base      string
	Truncated bool
}

// Sanitizer turns video and channel titles into file base names.
type Sanitizer struct {
	maxLen     int
	disallowed *regexp.Regexp
}

// NewSanitizer returns a Sanitizer removing every match of disallowed and
// keeping at most maxLen runes.
func NewSanitizer(maxLen int, disallowed *regexp.Regexp) *Sanitizer {
	return &Sanitizer{maxLen: maxLen, disallowed: disallowed}
}

// Sanitize strips disallowed characters from title, collapses whitespace and
// truncates to the limit. When nothing survives, the result is fallbackID.
func (s *Sanitizer) Sanitize(title, fallbackID string) SanitizedFilename {
	cleaned := s.disallowed.ReplaceAllString(title, "")
	cleaned = strings.TrimSpace(whitespaceRun.ReplaceAllString(cleaned, " "))
	if cleaned == "" {
		return SanitizedFilename{Base: fallbackID}
	}

	runes := []rune(cleaned)
	if s.maxLen > 0 && len(runes) > s.maxLen {
		return SanitizedFilename{Base: string(runes[:s.maxLen]), Truncated: true}
	}
	return SanitizedFilename{Base: cleaned}
}
