package bundler

import (
	"regexp"
	"strconv"
)

var (
	ansiPattern     = regexp.MustCompile(`\x1b\[[0-9;]*[A-Za-z]`)
	summaryPattern  = regexp.MustCompile(`\bcompiled\s+(successfully|with\s+.+?)(?:\s+in\s+[\d.,]+\s*m?s)?\s*$`)
	errorsPattern   = regexp.MustCompile(`(\d+)\s+errors?\b`)
	warningsPattern = regexp.MustCompile(`\bwarnings?\b`)
)

// Summary is the result of one compile, as reported by webpack.
type Summary struct {
	Errors   int
	Warnings bool
}

func (s Summary) Failed() bool { return s.Errors > 0 }

// ParseSummary reports whether line is a webpack compile summary such as
// "webpack 5.88.2 compiled with 2 errors in 1234 ms", and what it says.
func ParseSummary(line string) (Summary, bool) {
	line = ansiPattern.ReplaceAllString(line, "")
	m := summaryPattern.FindStringSubmatch(line)
	if m == nil {
		return Summary{}, false
	}
	if m[1] == "successfully" {
		return Summary{}, true
	}

	var s Summary
	if em := errorsPattern.FindStringSubmatch(m[1]); em != nil {
		s.Errors, _ = strconv.Atoi(em[1])
	}
	s.Warnings = warningsPattern.MatchString(m[1])
	return s, true
}
