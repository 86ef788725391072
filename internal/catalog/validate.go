package catalog

import (
	"fmt"
	"math"

	"github.com/kozaktomas/marker-scanner/internal/constants"
	"github.com/kozaktomas/marker-scanner/internal/vector"
)

// nearDuplicateSimilarity flags marker pairs the scanner can hardly tell apart.
const nearDuplicateSimilarity = 0.95

// Issue is a problem found by Validate. Fatal issues prevent the catalog from loading.
type Issue struct {
	Fatal   bool
	Message string
}

// Validate inspects raw entries, as returned by ReadEntries. expectedDim of 0
// takes the dimension of the first entry.
func Validate(entries []Entry, expectedDim int) []Issue {
	var issues []Issue
	ids := map[int]bool{}
	names := map[string]int{}

	if expectedDim == 0 && len(entries) > 0 {
		expectedDim = len(entries[0].Vector)
	}

	for i, e := range entries {
		label := fmt.Sprintf("entry %d (id %d, %q)", i+1, e.ID, e.Name)
		if ids[e.ID] {
			issues = append(issues, Issue{true, label + ": duplicate id"})
		}
		ids[e.ID] = true

		switch {
		case len(e.Vector) == 0:
			issues = append(issues, Issue{true, label + ": empty vector"})
		case len(e.Vector) != expectedDim:
			issues = append(issues, Issue{true, fmt.Sprintf("%s: dimension %d, expected %d", label, len(e.Vector), expectedDim)})
		default:
			if n := vector.Norm(e.Vector); n == 0 {
				issues = append(issues, Issue{true, label + ": zero vector"})
			} else if math.Abs(n-1) > constants.UnitTolerance {
				issues = append(issues, Issue{false, fmt.Sprintf("%s: norm %.4f, normalized on load", label, n)})
			}
		}

		folded := FoldName(e.Name)
		switch prev, dup := names[folded]; {
		case folded == "":
			issues = append(issues, Issue{false, label + ": missing name"})
		case dup:
			issues = append(issues, Issue{false, fmt.Sprintf("%s: same name as entry %d", label, prev)})
		default:
			names[folded] = i + 1
		}
		if e.VideoURL == "" {
			issues = append(issues, Issue{false, label + ": no video_url"})
		}
	}
	return append(issues, nearDuplicates(entries, expectedDim)...)
}

// nearDuplicates warns about pairs of usable entries whose vectors point the same way.
func nearDuplicates(entries []Entry, dim int) []Issue {
	var issues []Issue
	for i := range entries {
		for j := i + 1; j < len(entries); j++ {
			a, b := entries[i], entries[j]
			if len(a.Vector) != dim || len(b.Vector) != dim {
				continue
			}
			sim, err := vector.Cosine(a.Vector, b.Vector)
			if err != nil || sim < nearDuplicateSimilarity {
				continue
			}
			issues = append(issues, Issue{false, fmt.Sprintf("entries %d and %d (ids %d, %d) are %.3f similar",
				i+1, j+1, a.ID, b.ID, sim)})
		}
	}
	return issues
}

// HasFatal reports whether any issue prevents loading.
func HasFatal(issues []Issue) bool {
	for _, is := range issues {
		if is.Fatal {
			return true
		}
	}
	return false
}
