package plan

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/docker/go-units"
	"github.com/go-git/go-billy/v5"
)

type exportedMatch struct {
	Source       string    `json:"source"`
	Size         int64     `json:"size"`
	ETag         string    `json:"etag,omitempty"`
	LastModified time.Time `json:"last_modified"`
	Captures     []string  `json:"captures"`
	Target       string    `json:"target"`
}

type exportedPlan struct {
	Operation string          `json:"operation"`
	DryRun    bool            `json:"dry_run"`
	Bucket    string          `json:"bucket"`
	Prefix    string          `json:"prefix,omitempty"`
	Pattern   string          `json:"pattern"`
	Template  string          `json:"template"`
	Objects   int             `json:"objects"`
	TotalSize int64           `json:"total_size"`
	Matches   []exportedMatch `json:"matches"`
}

// Export writes the plan as indented JSON to path on fs, creating parent
// directories as needed.
func Export(fs billy.Filesystem, path, operation string, dryRun bool, p *Plan) error {
	out := exportedPlan{
		Operation: operation,
		DryRun:    dryRun,
		Bucket:    p.Bucket,
		Prefix:    p.Prefix,
		Pattern:   p.Pattern,
		Template:  p.Template,
		Objects:   p.Len(),
		TotalSize: p.TotalSize(),
		Matches:   make([]exportedMatch, len(p.Matches)),
	}
	for i, m := range p.Matches {
		out.Matches[i] = exportedMatch{
			Source:       m.Object.Key,
			Size:         m.Object.Size,
			ETag:         m.Object.ETag,
			LastModified: m.Object.LastModified,
			Captures:     m.Captures.Values(),
			Target:       m.Target,
		}
	}

	if dir := filepath.Dir(path); dir != "." && dir != "/" {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create plan directory %s: %w", dir, err)
		}
	}

	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create plan file %s: %w", path, err)
	}

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(out); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to encode plan: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close plan file %s: %w", path, err)
	}
	return nil
}

// WritePreview prints one line per match: source, size and target.
func WritePreview(w io.Writer, p *Plan) error {
	for _, m := range p.Matches {
		if _, err := fmt.Fprintf(w, "%s (%s) -> %s\n", m.Object.Key, HumanSize(m.Object.Size), m.Target); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%d object(s), %s total\n", p.Len(), HumanSize(p.TotalSize()))
	return err
}

// HumanSize formats bytes with decimal units, e.g. "5.24MB".
func HumanSize(n int64) string {
	return units.HumanSizeWithPrecision(float64(n), 3)
}
