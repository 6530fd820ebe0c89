// Package pattern compiles key patterns and destination templates.
//
// A Pattern is an anchored regular expression whose capture groups feed a
// Template. Templates reference groups as $N or ${N}; $$ is a literal dollar.
package pattern

import (
	"regexp"

	s3errors "github.com/input-output-hk/catalyst-forge-libs/s3utils/errors"
)

// Pattern is a compiled, anchored key pattern.
type Pattern struct {
	source string
	re     *regexp.Regexp
}

// Compile compiles text as a regular expression anchored at both ends.
func Compile(text string) (*Pattern, error) {
	if text == "" {
		return nil, s3errors.Configurationf("empty source pattern")
	}
	re, err := regexp.Compile("^(?:" + text + ")$")
	if err != nil {
		return nil, s3errors.Configurationf("source pattern %q: %v", text, err)
	}
	return &Pattern{source: text, re: re}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(text string) *Pattern {
	p, err := Compile(text)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the pattern as given by the caller.
func (p *Pattern) String() string {
	return p.source
}

// Groups returns the number of capture groups.
func (p *Pattern) Groups() int {
	return p.re.NumSubexp()
}

// Match reports whether key matches the whole pattern and returns its captures.
func (p *Pattern) Match(key string) (Captures, bool) {
	idx := p.re.FindStringSubmatchIndex(key)
	if idx == nil {
		return Captures{}, false
	}

	c := Captures{values: make([]capture, len(idx)/2)}
	for i := range c.values {
		start, end := idx[2*i], idx[2*i+1]
		if start < 0 {
			continue
		}
		c.values[i] = capture{value: key[start:end], ok: true}
	}
	return c, true
}

// Captures holds the whole match at index 0 and each group at 1..N.
// A group that did not participate keeps its index and reports absent.
type Captures struct {
	values []capture
}

type capture struct {
	value string
	ok    bool
}

// NewCaptures builds Captures from present values. Index 0 is the whole match.
func NewCaptures(values ...string) Captures {
	c := Captures{values: make([]capture, len(values))}
	for i, v := range values {
		c.values[i] = capture{value: v, ok: true}
	}
	return c
}

// Len returns the number of slots, including the whole match.
func (c Captures) Len() int {
	return len(c.values)
}

// Get returns capture i and whether it participated in the match.
func (c Captures) Get(i int) (string, bool) {
	if i < 0 || i >= len(c.values) {
		return "", false
	}
	return c.values[i].value, c.values[i].ok
}

// Values returns the captures with absent groups as empty strings.
func (c Captures) Values() []string {
	out := make([]string, len(c.values))
	for i, v := range c.values {
		out[i] = v.value
	}
	return out
}
