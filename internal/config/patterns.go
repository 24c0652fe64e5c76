package config

import (
	"fmt"
	"regexp"
)

// Patterns are the compiled forms of PatternConfig. They are built once at
// startup and handed to the components that need them.
type Patterns struct {
	SanitizeFilename *regexp.Regexp
	VideoID          *regexp.Regexp
	Channel          *regexp.Regexp
	ISODuration      *regexp.Regexp
}

// PatternError reports a configured pattern that does not compile or lacks
// the capture group its consumer needs.
type PatternError struct {
	Key     string
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("patterns.%s %q: %v", e.Key, e.Pattern, e.Err)
}

func (e *PatternError) Unwrap() error {
	return e.Err
}

// Compile compiles every configured pattern.
func (c *Config) Compile() (*Patterns, error) {
	var p Patterns
	specs := []struct {
		key     string
		pattern string
		groups  int
		dst     **regexp.Regexp
	}{
		{"sanitize_filename", c.Patterns.SanitizeFilename, 0, &p.SanitizeFilename},
		{"youtube_video_id", c.Patterns.VideoID, 1, &p.VideoID},
		{"youtube_channel", c.Patterns.Channel, 1, &p.Channel},
		{"iso_duration", c.Patterns.ISODuration, 3, &p.ISODuration},
	}

	for _, s := range specs {
		if s.pattern == "" {
			return nil, &PatternError{Key: s.key, Pattern: s.pattern, Err: fmt.Errorf("empty pattern")}
		}
		re, err := regexp.Compile(s.pattern)
		if err != nil {
			return nil, &PatternError{Key: s.key, Pattern: s.pattern, Err: err}
		}
		if re.NumSubexp() < s.groups {
			return nil, &PatternError{
				Key:     s.key,
				Pattern: s.pattern,
				Err:     fmt.Errorf("needs at least %d capture group(s), has %d", s.groups, re.NumSubexp()),
			}
		}
		*s.dst = re
	}
	return &p, nil
}
