package concat

import (
	"errors"
	"fmt"

	s3errors "github.com/input-output-hk/catalyst-forge-libs/s3utils/errors"
	"github.com/input-output-hk/catalyst-forge-libs/s3utils/internal/plan"
	"github.com/input-output-hk/catalyst-forge-libs/s3utils/internal/validation"
	"github.com/input-output-hk/catalyst-forge-libs/s3utils/s3types"
)

// Validate checks every target group of p against the multipart limits and
// returns the groups in execution order. It makes no store calls.
func Validate(p *plan.Plan, allowSingle bool) ([]plan.Group, error) {
	if p.Len() == 0 {
		return nil, fmt.Errorf("%w: no object under s3://%s/%s matches %q",
			s3errors.ErrNothingToConcat, p.Bucket, p.Prefix, p.Pattern)
	}

	sources := make(map[string]struct{}, p.Len())
	for _, m := range p.Matches {
		sources[m.Object.Key] = struct{}{}
	}

	groups := p.GroupByTarget()
	var errs []error
	for _, g := range groups {
		if err := validateGroup(g, sources, allowSingle); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return groups, nil
}

func validateGroup(g plan.Group, sources map[string]struct{}, allowSingle bool) error {
	if len(g.Matches) < 2 && !allowSingle {
		return fmt.Errorf("%w: only %d object(s) resolve to %s", s3errors.ErrNothingToConcat, len(g.Matches), g.Target)
	}
	if err := validation.ValidateObjectKey(g.Target); err != nil {
		return err
	}
	if _, ok := sources[g.Target]; ok {
		return fmt.Errorf("%w: %s", s3errors.ErrTargetIsSource, g.Target)
	}

	var errs []error
	if len(g.Matches) > s3types.MaxParts {
		errs = append(errs, &s3errors.SizeConstraintError{
			Rule:  "maximum part count for " + g.Target,
			Limit: s3types.MaxParts,
			Keys:  []string{g.Target},
		})
	}

	var small, large []string
	for i, m := range g.Matches {
		if i < len(g.Matches)-1 && m.Object.Size < s3types.MinPartSize {
			small = append(small, m.Object.Key)
		}
		if m.Object.Size > s3types.MaxCopySize {
			large = append(large, m.Object.Key)
		}
	}
	if len(small) > 0 {
		errs = append(errs, &s3errors.SizeConstraintError{
			Rule:  "minimum part size",
			Limit: s3types.MinPartSize,
			Keys:  small,
		})
	}
	if len(large) > 0 {
		errs = append(errs, &s3errors.SizeConstraintError{
			Rule:  "maximum part copy size",
			Limit: s3types.MaxCopySize,
			Keys:  large,
		})
	}
	if total := g.TotalSize(); total > s3types.MaxObjectSize {
		errs = append(errs, &s3errors.SizeConstraintError{
			Rule:  "maximum object size for " + g.Target,
			Limit: s3types.MaxObjectSize,
			Keys:  []string{g.Target},
		})
	}
	return errors.Join(errs...)
}
