// Package rename moves objects to new keys with server-side copy then delete.
//
// Each key is handled independently: a failure on one key never stops the
// batch. The outcome of every key is collected into a Report in plan order.
package rename
