package policies

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// maxPatchBytes bounds the patch text stored in audit details
const maxPatchBytes = 16 << 10

// DiffSummary describes a policy content change
type DiffSummary struct {
	LinesAdded   int    `json:"lines_added"`
	LinesRemoved int    `json:"lines_removed"`
	Patch        string `json:"patch"`
	Truncated    bool   `json:"truncated,omitempty"`
}

// Changed reports whether the contents differ
func (d DiffSummary) Changed() bool {
	return d.LinesAdded > 0 || d.LinesRemoved > 0
}

// Summarize diffs two markdown documents line by line
func Summarize(before, after string) DiffSummary {
	dmp := diffmatchpatch.New()

	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var summary DiffSummary
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			summary.LinesAdded += countLines(d.Text)
		case diffmatchpatch.DiffDelete:
			summary.LinesRemoved += countLines(d.Text)
		}
	}
	if !summary.Changed() {
		return summary
	}

	patch := dmp.PatchToText(dmp.PatchMake(before, diffs))
	if len(patch) > maxPatchBytes {
		patch = patch[:maxPatchBytes]
		summary.Truncated = true
	}
	summary.Patch = patch
	return summary
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}
