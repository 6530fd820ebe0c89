package pattern

import (
	"regexp"
	"strings"

	s3errors "github.com/input-output-hk/catalyst-forge-libs/s3utils/errors"
)

// CompileGlob translates a shell-style glob into an anchored Pattern.
// "**" matches across slashes, "*" within one path segment and "?" one
// non-slash character. Every wildcard becomes a capture group in order.
func CompileGlob(glob string) (*Pattern, error) {
	if glob == "" {
		return nil, s3errors.Configurationf("empty glob")
	}

	var b strings.Builder
	for i := 0; i < len(glob); {
		switch {
		case strings.HasPrefix(glob[i:], "**"):
			b.WriteString("(.*)")
			i += 2
		case glob[i] == '*':
			b.WriteString("([^/]*)")
			i++
		case glob[i] == '?':
			b.WriteString("([^/])")
			i++
		default:
			j := i
			for j < len(glob) && glob[j] != '*' && glob[j] != '?' {
				j++
			}
			b.WriteString(regexp.QuoteMeta(glob[i:j]))
			i = j
		}
	}

	p, err := Compile(b.String())
	if err != nil {
		return nil, err
	}
	p.source = glob
	return p, nil
}
