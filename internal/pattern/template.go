package pattern

import (
	"fmt"
	"strconv"
	"strings"

	s3errors "github.com/input-output-hk/catalyst-forge-libs/s3utils/errors"
)

// Segment is one piece of a Template: literal text or a capture reference.
type Segment struct {
	Literal string
	Ref     int
	IsRef   bool
}

// Template is a parsed destination key template.
type Template struct {
	source   string
	segments []Segment
	maxRef   int
}

// ParseTemplate parses $N, ${N} and $$ in text.
func ParseTemplate(text string) (*Template, error) {
	if text == "" {
		return nil, s3errors.Configurationf("empty target template")
	}

	t := &Template{source: text}
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			t.segments = append(t.segments, Segment{Literal: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(text); i++ {
		if text[i] != '$' {
			lit.WriteByte(text[i])
			continue
		}
		if i+1 >= len(text) {
			return nil, s3errors.Configurationf("target template %q: trailing $", text)
		}

		var digits string
		switch next := text[i+1]; {
		case next == '$':
			lit.WriteByte('$')
			i++
			continue
		case next == '{':
			end := strings.IndexByte(text[i+2:], '}')
			if end < 0 {
				return nil, s3errors.Configurationf("target template %q: unterminated ${ at offset %d", text, i)
			}
			digits = text[i+2 : i+2+end]
			i += end + 2
		case next >= '0' && next <= '9':
			j := i + 1
			for j < len(text) && text[j] >= '0' && text[j] <= '9' {
				j++
			}
			digits = text[i+1 : j]
			i = j - 1
		default:
			return nil, s3errors.Configurationf("target template %q: $ must be followed by a group number, {N} or $", text)
		}

		n, err := strconv.Atoi(digits)
		if err != nil || n < 0 {
			return nil, s3errors.Configurationf("target template %q: invalid group reference %q", text, digits)
		}
		flush()
		t.segments = append(t.segments, Segment{Ref: n, IsRef: true})
		t.maxRef = max(t.maxRef, n)
	}
	flush()

	return t, nil
}

// MustParseTemplate is like ParseTemplate but panics on error.
func MustParseTemplate(text string) *Template {
	t, err := ParseTemplate(text)
	if err != nil {
		panic(err)
	}
	return t
}

// String returns the template text.
func (t *Template) String() string {
	return t.source
}

// Segments returns a copy of the parsed segments.
func (t *Template) Segments() []Segment {
	return append([]Segment(nil), t.segments...)
}

// IsFixed reports whether the template contains no references.
func (t *Template) IsFixed() bool {
	for _, s := range t.segments {
		if s.IsRef {
			return false
		}
	}
	return true
}

// Bind checks every reference against the pattern's group count.
func (t *Template) Bind(p *Pattern) error {
	if t.maxRef > p.Groups() {
		return s3errors.Configurationf("target template %q references group %d but pattern %q has %d group(s)",
			t.source, t.maxRef, p.String(), p.Groups())
	}
	return nil
}

// Resolve substitutes captures into the template. Absent groups resolve to
// the empty string.
func (t *Template) Resolve(c Captures) (string, error) {
	var b strings.Builder
	for _, s := range t.segments {
		if !s.IsRef {
			b.WriteString(s.Literal)
			continue
		}
		if s.Ref >= c.Len() {
			return "", fmt.Errorf("%w: template %q references group %d, only %d available",
				s3errors.ErrResolution, t.source, s.Ref, max(c.Len()-1, 0))
		}
		v, _ := c.Get(s.Ref)
		b.WriteString(v)
	}
	return b.String(), nil
}
