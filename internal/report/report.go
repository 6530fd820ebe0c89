// Package report computes aggregate statistics over a bucket listing.
package report

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"iter"
	"path"
	"strings"
	"time"

	"github.com/docker/go-units"

	"github.com/input-output-hk/catalyst-forge-libs/s3utils/s3types"
)

// Bound tracks an extreme value, the first key holding it and how many keys
// share it.
type Bound[T any] struct {
	Key   string
	Value T
	Count int
}

// IsSet reports whether any value has been recorded.
func (b Bound[T]) IsSet() bool {
	return b.Count > 0
}

// apply records v for key. A value replaces the bound when compare(v, bound)
// equals better; equal values add to the count.
func (b *Bound[T]) apply(key string, v T, compare func(a, b T) int, better int) {
	if !b.IsSet() {
		*b = Bound[T]{Key: key, Value: v, Count: 1}
		return
	}
	switch c := compare(v, b.Value); {
	case c == 0:
		b.Count++
	case c == better:
		*b = Bound[T]{Key: key, Value: v, Count: 1}
	}
}

// Summary holds the statistics for one bucket prefix.
type Summary struct {
	Bucket  string
	Prefix  string
	Elapsed time.Duration

	Files      int
	Folders    int
	TotalBytes int64

	Largest  Bound[int64]
	Smallest Bound[int64]

	// Extensions counts keys per extension, without the leading dot.
	Extensions map[string]int

	Earliest Bound[time.Time]
	Latest   Bound[time.Time]
}

// Aggregator accumulates objects into a Summary.
type Aggregator struct {
	summary Summary
	folders map[string]struct{}
	prefix  string
}

// NewAggregator creates an Aggregator for keys under prefix. Folders are
// counted relative to the prefix.
func NewAggregator(bucket, prefix string) *Aggregator {
	return &Aggregator{
		summary: Summary{
			Bucket:     bucket,
			Prefix:     prefix,
			Extensions: make(map[string]int),
		},
		folders: make(map[string]struct{}),
		prefix:  prefix,
	}
}

// Add records one object.
func (a *Aggregator) Add(obj s3types.ObjectMetadata) {
	s := &a.summary
	s.Files++
	s.TotalBytes += obj.Size

	s.Smallest.apply(obj.Key, obj.Size, cmp.Compare[int64], -1)
	s.Largest.apply(obj.Key, obj.Size, cmp.Compare[int64], 1)
	s.Earliest.apply(obj.Key, obj.LastModified, time.Time.Compare, -1)
	s.Latest.apply(obj.Key, obj.LastModified, time.Time.Compare, 1)

	if ext := extension(obj.Key); ext != "" {
		s.Extensions[ext]++
	}

	rel := a.relative(obj.Key)
	for dir := path.Dir(rel); dir != "." && dir != "/"; dir = path.Dir(dir) {
		a.folders[dir] = struct{}{}
	}
}

// relative strips the prefix from key when the prefix ends on a folder
// boundary. Otherwise only the prefix's folder is stripped, so "logs/20"
// counts "2024" and a bare "logs" that also lists "logs2/x" counts "logs2".
func (a *Aggregator) relative(key string) string {
	switch {
	case a.prefix == "":
	case strings.HasSuffix(a.prefix, "/") && strings.HasPrefix(key, a.prefix):
		key = key[len(a.prefix):]
	case strings.HasPrefix(key, a.prefix+"/"):
		key = key[len(a.prefix)+1:]
	default:
		if i := strings.LastIndex(a.prefix, "/"); i >= 0 && strings.HasPrefix(key, a.prefix[:i+1]) {
			key = key[i+1:]
		}
	}
	return strings.TrimPrefix(key, "/")
}

// Summary returns the statistics gathered so far.
func (a *Aggregator) Summary() *Summary {
	s := a.summary
	s.Folders = len(a.folders)
	return &s
}

// Build drains objects into a Summary.
func Build(
	ctx context.Context,
	objects iter.Seq2[s3types.ObjectMetadata, error],
	bucket, prefix string,
	now func() time.Time,
) (*Summary, error) {
	if now == nil {
		now = time.Now
	}
	start := now()

	agg := NewAggregator(bucket, prefix)
	for obj, err := range objects {
		if err != nil {
			return nil, fmt.Errorf("list s3://%s/%s: %w", bucket, prefix, err)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		agg.Add(obj)
	}

	s := agg.Summary()
	s.Elapsed = now().Sub(start)
	return s, nil
}

// AverageSize returns the mean object size, or zero for an empty listing.
func (s *Summary) AverageSize() int64 {
	if s.Files == 0 {
		return 0
	}
	return s.TotalBytes / int64(s.Files)
}

// PopularExtension returns the most frequent extension and its count. Ties
// go to the lexically smallest extension.
func (s *Summary) PopularExtension() (string, int) {
	var (
		best  string
		count int
	)
	for ext, n := range s.Extensions {
		if n > count || (n == count && ext < best) {
			best, count = ext, n
		}
	}
	return best, count
}

// Write prints the summary as sections of key=value lines.
func (s *Summary) Write(w io.Writer) error {
	pw := &pairWriter{w: w}

	pw.head("general")
	pw.pair("total_time", s.Elapsed.Truncate(time.Second))
	pw.pair("total_files", s.Files)
	pw.pair("total_folders", s.Folders)
	pw.pair("total_storage", humanSize(s.TotalBytes))

	pw.head("file_size")
	avg := s.AverageSize()
	pw.pair("average_file_size", humanSize(avg))
	pw.pair("average_file_bytes", avg)
	pw.bound("largest_file", s.Largest.Key, s.Largest.Count, func() {
		pw.pair("largest_file_size", humanSize(s.Largest.Value))
		pw.pair("largest_file_bytes", s.Largest.Value)
	})
	pw.bound("smallest_file", s.Smallest.Key, s.Smallest.Count, func() {
		pw.pair("smallest_file_size", humanSize(s.Smallest.Value))
		pw.pair("smallest_file_bytes", s.Smallest.Value)
	})

	pw.head("extensions")
	pw.pair("unique_extensions", len(s.Extensions))
	if ext, n := s.PopularExtension(); n > 0 {
		pw.pair("most_popular_extension", ext)
		pw.pair("most_popular_extension_count", n)
	}

	pw.head("modification")
	pw.bound("earliest_file", s.Earliest.Key, s.Earliest.Count, func() {
		pw.pair("earliest_file_date", s.Earliest.Value.UTC().Format(time.RFC3339))
	})
	pw.bound("latest_file", s.Latest.Key, s.Latest.Count, func() {
		pw.pair("latest_file_date", s.Latest.Value.UTC().Format(time.RFC3339))
	})

	return pw.err
}

type pairWriter struct {
	w       io.Writer
	err     error
	started bool
}

func (p *pairWriter) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *pairWriter) head(label string) {
	if p.started {
		p.printf("\n")
	}
	p.started = true
	p.printf("[%s]\n", label)
}

func (p *pairWriter) pair(label string, v any) {
	p.printf("%s=%v\n", label, v)
}

func (p *pairWriter) bound(label, key string, count int, values func()) {
	if count == 0 {
		return
	}
	values()
	p.pair(label+"_name", key)
	if count > 1 {
		p.pair(label+"_others", count)
	}
}

func extension(key string) string {
	base := path.Base(key)
	ext := path.Ext(base)
	if ext == "" || ext == base {
		return ""
	}
	return ext[1:]
}

func humanSize(n int64) string {
	return units.HumanSizeWithPrecision(float64(n), 3)
}
