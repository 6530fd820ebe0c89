package rename

import (
	"fmt"
	"io"

	s3errors "github.com/input-output-hk/catalyst-forge-libs/s3utils/errors"
	"github.com/input-output-hk/catalyst-forge-libs/s3utils/s3types"
)

// Report aggregates per-key rename outcomes in plan order.
type Report struct {
	Bucket   string
	DryRun   bool
	Outcomes []s3types.RenameOutcome
}

// Count returns the number of outcomes with status.
func (r *Report) Count(status s3types.RenameStatus) int {
	n := 0
	for _, out := range r.Outcomes {
		if out.Status == status {
			n++
		}
	}
	return n
}

// Err returns nil when every key was renamed, skipped or planned, and a
// *PartialRenameError otherwise.
func (r *Report) Err() error {
	e := &s3errors.PartialRenameError{
		Renamed: r.Count(s3types.RenameRenamed),
		Skipped: r.Count(s3types.RenameSkipped),
	}
	for _, out := range r.Outcomes {
		switch out.Status {
		case s3types.RenameFailed:
			e.Failed = append(e.Failed, out.Source)
		case s3types.RenamePartial:
			e.Partial = append(e.Partial, out.Source)
		}
	}
	if len(e.Failed) == 0 && len(e.Partial) == 0 {
		return nil
	}
	return e
}

// Write prints one line per key followed by a summary line.
func (r *Report) Write(w io.Writer) error {
	for _, out := range r.Outcomes {
		line := fmt.Sprintf("%-8s %s -> %s", out.Status, out.Source, out.Target)
		if out.Err != nil {
			line += fmt.Sprintf(" (%v)", out.Err)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}

	if r.DryRun {
		_, err := fmt.Fprintf(w, "%d planned, %d skipped, %d failed\n",
			r.Count(s3types.RenamePlanned), r.Count(s3types.RenameSkipped), r.Count(s3types.RenameFailed))
		return err
	}
	_, err := fmt.Fprintf(w, "%d renamed, %d skipped, %d failed, %d partial\n",
		r.Count(s3types.RenameRenamed), r.Count(s3types.RenameSkipped),
		r.Count(s3types.RenameFailed), r.Count(s3types.RenamePartial))
	return err
}
