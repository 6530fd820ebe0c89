package rename

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	s3errors "github.com/input-output-hk/catalyst-forge-libs/s3utils/errors"
	"github.com/input-output-hk/catalyst-forge-libs/s3utils/internal/metrics"
	"github.com/input-output-hk/catalyst-forge-libs/s3utils/internal/operations/list"
	"github.com/input-output-hk/catalyst-forge-libs/s3utils/internal/pattern"
	"github.com/input-output-hk/catalyst-forge-libs/s3utils/internal/plan"
	tu "github.com/input-output-hk/catalyst-forge-libs/s3utils/internal/testutil"
	"github.com/input-output-hk/catalyst-forge-libs/s3utils/s3types"
)

const bucket = "bucket"

func buildPlan(t *testing.T, store *tu.MemStore, source, target string) *plan.Plan {
	t.Helper()
	ctx := context.Background()
	pl, err := plan.Build(ctx, list.New(store, nil).All(ctx, bucket, ""), bucket, "",
		pattern.MustCompile(source), pattern.MustParseTemplate(target))
	require.NoError(t, err)
	return pl
}

func statuses(r *Report) map[string]s3types.RenameStatus {
	out := make(map[string]s3types.RenameStatus, len(r.Outcomes))
	for _, o := range r.Outcomes {
		out[o.Source] = o.Status
	}
	return out
}

// TestRun_DatePathsFlattened renames 2018/01/01/f.gz style keys into dashed names.
func TestRun_DatePathsFlattened(t *testing.T) {
	store := tu.NewMemStore()
	store.Put(bucket, "2018/01/01/f.gz", []byte("one"))
	store.Put(bucket, "2018/01/02/f.gz", []byte("two"))

	r := New(store, Options{}).Run(context.Background(),
		buildPlan(t, store, "(.*)/(.*)/(.*)/(.*)", "$1-$2-$3-$4"))
	require.NoError(t, r.Err())

	assert.Equal(t, []string{"2018-01-01-f.gz", "2018-01-02-f.gz"}, store.Keys(bucket))
	got, _ := store.Get(bucket, "2018-01-01-f.gz")
	assert.Equal(t, []byte("one"), got)
	assert.Equal(t, 2, r.Count(s3types.RenameRenamed))
}

// TestRun_SameKeySkipped checks a no-op rename makes no store call.
func TestRun_SameKeySkipped(t *testing.T) {
	store := tu.NewMemStore()
	store.Put(bucket, "a.txt", []byte("a"))
	pl := buildPlan(t, store, `(.*)\.txt`, "$1.txt")
	before := store.TotalCalls()

	r := New(store, Options{}).Run(context.Background(), pl)
	require.NoError(t, r.Err())
	assert.Equal(t, s3types.RenameSkipped, r.Outcomes[0].Status)
	assert.Equal(t, before, store.TotalCalls())
}

// TestRun_OneFailureIsolated renames N keys with one forced copy failure.
func TestRun_OneFailureIsolated(t *testing.T) {
	const n = 6
	store := tu.NewMemStore()
	for i := range n {
		store.Put(bucket, fmt.Sprintf("in/%d", i), []byte{byte(i)})
	}
	store.FailCopy = func(src, _ string) error {
		if src == "in/3" {
			return s3errors.NewObjectError("CopyObject", bucket, src, s3errors.ErrAccessDenied)
		}
		return nil
	}

	m := metrics.New()
	r := New(store, Options{Concurrency: 3, Metrics: m}).Run(context.Background(), buildPlan(t, store, `in/(\d)`, "out/$1"))

	assert.Equal(t, n-1, r.Count(s3types.RenameRenamed))
	assert.Equal(t, 1, r.Count(s3types.RenameFailed))
	assert.Equal(t, s3types.RenameFailed, statuses(r)["in/3"])

	err := r.Err()
	require.Error(t, err)
	var partial *s3errors.PartialRenameError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, []string{"in/3"}, partial.Failed)
	assert.Equal(t, n-1, partial.Renamed)

	_, ok := store.Get(bucket, "in/3")
	assert.True(t, ok, "failed source must stay in place")
	assert.Equal(t, float64(n-1), testutil.ToFloat64(m.Renames.WithLabelValues("renamed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Renames.WithLabelValues("failed")))
}

func TestRun_DeleteFailureIsPartial(t *testing.T) {
	store := tu.NewMemStore()
	store.Put(bucket, "a", []byte("a"))
	store.Put(bucket, "b", []byte("b"))
	store.FailDelete = func(key string) error {
		if key == "b" {
			return s3errors.NewObjectError("DeleteObject", bucket, key, s3errors.ErrServiceUnavailable)
		}
		return nil
	}

	r := New(store, Options{}).Run(context.Background(), buildPlan(t, store, "(.)", "moved/$1"))
	assert.Equal(t, s3types.RenameRenamed, statuses(r)["a"])
	assert.Equal(t, s3types.RenamePartial, statuses(r)["b"])
	assert.Equal(t, []string{"b", "moved/a", "moved/b"}, store.Keys(bucket))

	var partial *s3errors.PartialRenameError
	require.ErrorAs(t, r.Err(), &partial)
	assert.Equal(t, []string{"b"}, partial.Partial)
	assert.Empty(t, partial.Failed)
}

func TestRun_PreflightFailures(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(*tu.MemStore)
		source  string
		target  string
		failed  string
		wantErr error
	}{
		{
			name: "duplicate target",
			setup: func(s *tu.MemStore) {
				s.Put(bucket, "x/a", nil)
				s.Put(bucket, "y/a", nil)
			},
			source:  "./(.)",
			target:  "$1",
			failed:  "x/a",
			wantErr: s3errors.ErrTargetConflict,
		},
		{
			name: "target is another source",
			setup: func(s *tu.MemStore) {
				s.Put(bucket, "1", nil)
				s.Put(bucket, "2", nil)
			},
			source:  `(\d)`,
			target:  "2",
			failed:  "1",
			wantErr: s3errors.ErrTargetConflict,
		},
		{
			name: "invalid target",
			setup: func(s *tu.MemStore) {
				s.Put(bucket, "a", nil)
			},
			source:  "(a)",
			target:  "../$1",
			failed:  "a",
			wantErr: s3errors.ErrInvalidObjectKey,
		},
		{
			name: "above single copy limit",
			setup: func(s *tu.MemStore) {
				s.PutSized(bucket, "big", 6*1024*tu.MiB)
			},
			source:  "big",
			target:  "bigger",
			failed:  "big",
			wantErr: s3errors.ErrSizeConstraint,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := tu.NewMemStore()
			tt.setup(store)

			r := New(store, Options{}).Run(context.Background(), buildPlan(t, store, tt.source, tt.target))
			var found bool
			for _, o := range r.Outcomes {
				if o.Source == tt.failed {
					found = true
					assert.Equal(t, s3types.RenameFailed, o.Status)
					assert.ErrorIs(t, o.Err, tt.wantErr)
				}
			}
			assert.True(t, found)
			assert.Error(t, r.Err())
			_, ok := store.Get(bucket, tt.failed)
			assert.True(t, ok)
		})
	}
}

func TestRun_TargetConflictMakesNoCopy(t *testing.T) {
	store := tu.NewMemStore()
	store.Put(bucket, "x/a", nil)
	store.Put(bucket, "y/a", nil)

	New(store, Options{}).Run(context.Background(), buildPlan(t, store, "./(.)", "$1"))
	assert.Equal(t, 0, store.Calls("CopyObject"))
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	store := tu.NewMemStore()
	store.Put(bucket, "a", nil)
	store.Put(bucket, "b", nil)
	pl := buildPlan(t, store, "(.)", "moved/$1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := New(store, Options{}).Run(ctx, pl)
	assert.Equal(t, 2, r.Count(s3types.RenameFailed))
	for _, o := range r.Outcomes {
		assert.ErrorIs(t, o.Err, s3errors.ErrCanceled)
	}
	assert.Equal(t, 0, store.MutatingCalls())
}

func TestPreview(t *testing.T) {
	store := tu.NewMemStore()
	store.Put(bucket, "a.txt", nil)
	store.Put(bucket, "b.log", nil)
	pl := buildPlan(t, store, `(.)\.(txt|log)`, "$1.txt")
	before := store.TotalCalls()

	r := New(store, Options{}).Preview(pl)
	require.NoError(t, r.Err())
	assert.Equal(t, before, store.TotalCalls())
	assert.Equal(t, s3types.RenameSkipped, statuses(r)["a.txt"])
	assert.Equal(t, s3types.RenamePlanned, statuses(r)["b.log"])

	var buf bytes.Buffer
	require.NoError(t, r.Write(&buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "skipped  a.txt -> a.txt", lines[0])
	assert.Equal(t, "planned  b.log -> b.txt", lines[1])
	assert.Equal(t, "1 planned, 1 skipped, 0 failed", lines[2])
}

func TestReport_Write(t *testing.T) {
	r := &Report{Bucket: bucket, Outcomes: []s3types.RenameOutcome{
		{Source: "a", Target: "b", Status: s3types.RenameRenamed},
		{Source: "c", Target: "d", Status: s3types.RenameFailed, Err: fmt.Errorf("denied")},
	}}

	var buf bytes.Buffer
	require.NoError(t, r.Write(&buf))
	assert.Equal(t,
		"renamed  a -> b\n"+
			"failed   c -> d (denied)\n"+
			"1 renamed, 0 skipped, 1 failed, 0 partial\n",
		buf.String())
}
