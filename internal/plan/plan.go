// Package plan builds the transform plan shared by concat and rename.
//
// A Plan is computed once from a full listing, before any mutating call,
// and drives both the dry-run preview and the live run.
package plan

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/input-output-hk/catalyst-forge-libs/s3utils/internal/pattern"
	"github.com/input-output-hk/catalyst-forge-libs/s3utils/s3types"
)

// Match is a listed object that matched the source pattern.
type Match struct {
	Object   s3types.ObjectMetadata
	Captures pattern.Captures
	Target   string
}

// Plan is the ordered set of matches for one run.
type Plan struct {
	Bucket   string
	Prefix   string
	Pattern  string
	Template string
	Matches  []Match
}

// Group is the set of matches that resolve to one target key.
type Group struct {
	Target  string
	Matches []Match
}

// Build drains objects, keeps those whose key matches p and resolves each
// target with t. The template is bound to the pattern before listing so that
// a bad reference fails without any store call. Matches are sorted by key.
func Build(
	ctx context.Context,
	objects iter.Seq2[s3types.ObjectMetadata, error],
	bucket, prefix string,
	p *pattern.Pattern,
	t *pattern.Template,
) (*Plan, error) {
	if err := t.Bind(p); err != nil {
		return nil, err
	}

	pl := &Plan{
		Bucket:   bucket,
		Prefix:   prefix,
		Pattern:  p.String(),
		Template: t.String(),
	}

	for obj, err := range objects {
		if err != nil {
			return nil, fmt.Errorf("list s3://%s/%s: %w", bucket, prefix, err)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		captures, ok := p.Match(obj.Key)
		if !ok {
			continue
		}
		target, err := t.Resolve(captures)
		if err != nil {
			return nil, fmt.Errorf("resolve target for %s: %w", obj.Key, err)
		}
		pl.Matches = append(pl.Matches, Match{Object: obj, Captures: captures, Target: target})
	}

	slices.SortStableFunc(pl.Matches, func(a, b Match) int {
		return strings.Compare(a.Object.Key, b.Object.Key)
	})
	return pl, nil
}

// Len returns the number of matches.
func (p *Plan) Len() int {
	return len(p.Matches)
}

// TotalSize returns the summed size of every matched object.
func (p *Plan) TotalSize() int64 {
	var total int64
	for _, m := range p.Matches {
		total += m.Object.Size
	}
	return total
}

// Keys returns the matched source keys in plan order.
func (p *Plan) Keys() []string {
	keys := make([]string, len(p.Matches))
	for i, m := range p.Matches {
		keys[i] = m.Object.Key
	}
	return keys
}

// GroupByTarget splits the plan by resolved target key. Groups appear in the
// order their first match appears; matches keep plan order within a group.
func (p *Plan) GroupByTarget() []Group {
	var groups []Group
	index := make(map[string]int)
	for _, m := range p.Matches {
		i, ok := index[m.Target]
		if !ok {
			i = len(groups)
			index[m.Target] = i
			groups = append(groups, Group{Target: m.Target})
		}
		groups[i].Matches = append(groups[i].Matches, m)
	}
	return groups
}

// TotalSize returns the summed size of the group's matches.
func (g Group) TotalSize() int64 {
	var total int64
	for _, m := range g.Matches {
		total += m.Object.Size
	}
	return total
}

// Keys returns the group's source keys in order.
func (g Group) Keys() []string {
	keys := make([]string, len(g.Matches))
	for i, m := range g.Matches {
		keys[i] = m.Object.Key
	}
	return keys
}
