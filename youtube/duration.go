package youtube

import (
	"regexp"
	"strconv"
)

var defaultDurationPattern = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// DurationParser converts ISO 8601 durations of the form PT#H#M#S to seconds.
type DurationParser struct {
	re *regexp.Regexp
}

// NewDurationParser uses re, whose first three groups capture hours, minutes
// and seconds. A nil re selects the default pattern.
func NewDurationParser(re *regexp.Regexp) *DurationParser {
	if re == nil {
		re = defaultDurationPattern
	}
	return &DurationParser{re: re}
}

// Parse returns the total number of seconds. Absent components count as
// zero, so "PT" is 0.
func (p *DurationParser) Parse(s string) (int, error) {
	m := p.re.FindStringSubmatch(s)
	if m == nil || len(m) < 4 {
		return 0, &ParseError{Input: s}
	}

	total := 0
	for i, unit := range []int{3600, 60, 1} {
		g := m[i+1]
		if g == "" {
			continue
		}
		n, err := strconv.Atoi(g)
		if err != nil {
			return 0, &ParseError{Input: s, Err: err}
		}
		total += n * unit
	}
	return total, nil
}

// ParseISODuration parses s with the default pattern.
func ParseISODuration(s string) (int, error) {
	return NewDurationParser(nil).Parse(s)
}

// FormatClock renders seconds as MM:SS, or HH:MM:SS from one hour up.
func FormatClock(seconds float64) string {
	total := int(seconds)
	if total < 0 {
		total = 0
	}
	h, rem := total/3600, total%3600
	m, s := rem/60, rem%60
	if h > 0 {
		return pad2(h) + ":" + pad2(m) + ":" + pad2(s)
	}
	return pad2(m) + ":" + pad2(s)
}

func pad2(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
