// Package list handles object listing operations.
//
// A Paginator walks a bucket prefix one page at a time using continuation
// tokens. Lister.All exposes the same walk as a lazy, restartable iterator
// in key order, which the plan builder drains before any mutation begins.
package list
