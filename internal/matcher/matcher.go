// Package matcher scores a live embedding against the catalog and decides whether
// the best-scoring marker is close enough to count as a match.
package matcher

import (
	"fmt"

	"github.com/kozaktomas/marker-scanner/internal/catalog"
	"github.com/kozaktomas/marker-scanner/internal/vector"
)

// DefaultThreshold is the minimum similarity (exclusive) for reporting a match.
const DefaultThreshold = 0.7

// Result is the best-scoring catalog entry for one query.
type Result struct {
	EntryID    int     `json:"id"`
	Name       string  `json:"name"`
	Similarity float64 `json:"similarity"`
	VideoURL   string  `json:"video_url"`
}

// Score is the similarity of the query to a single catalog entry.
type Score struct {
	EntryID    int     `json:"id"`
	Similarity float64 `json:"similarity"`
}

// Matcher compares query vectors against a fixed catalog.
type Matcher struct {
	catalog   *catalog.Catalog
	threshold float64
}

// New creates a matcher. The threshold must be in (-1, 1].
func New(c *catalog.Catalog, threshold float64) (*Matcher, error) {
	if threshold <= -1 || threshold > 1 {
		return nil, fmt.Errorf("match threshold %.3f out of range (-1, 1]", threshold)
	}
	return &Matcher{catalog: c, threshold: threshold}, nil
}

// Threshold returns the acceptance threshold.
func (m *Matcher) Threshold() float64 {
	return m.threshold
}

// Catalog returns the catalog being matched against.
func (m *Matcher) Catalog() *catalog.Catalog {
	return m.catalog
}

// prepare normalizes the query and checks it against the catalog dimension.
func (m *Matcher) prepare(query []float32) ([]float32, error) {
	if dim := m.catalog.Dim(); dim != 0 && len(query) != dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, catalog has %d",
			vector.ErrDimensionMismatch, len(query), dim)
	}
	normalized, err := vector.Normalize(query)
	if err != nil {
		return nil, fmt.Errorf("normalizing query: %w", err)
	}
	return normalized, nil
}

// Score returns the similarity of the query to every entry, in catalog order.
// An empty catalog has nothing to score, so the query is not checked.
func (m *Matcher) Score(query []float32) ([]Score, error) {
	if m.catalog.Len() == 0 {
		return nil, nil
	}
	q, err := m.prepare(query)
	if err != nil {
		return nil, err
	}

	scores := make([]Score, m.catalog.Len())
	for i := range m.catalog.Len() {
		e := m.catalog.At(i)
		sim, err := vector.Dot(q, e.Vector)
		if err != nil {
			return nil, fmt.Errorf("scoring entry %d: %w", e.ID, err)
		}
		scores[i] = Score{EntryID: e.ID, Similarity: sim}
	}
	return scores, nil
}

// Best returns the entry with the highest similarity regardless of the threshold,
// or nil when the catalog is empty. On ties the earliest entry wins.
func (m *Matcher) Best(query []float32) (*Result, error) {
	scores, err := m.Score(query)
	if err != nil {
		return nil, err
	}

	best := -1
	for i, s := range scores {
		if best < 0 || s.Similarity > scores[best].Similarity {
			best = i
		}
	}
	if best < 0 {
		return nil, nil
	}

	e := m.catalog.At(best)
	return &Result{
		EntryID:    e.ID,
		Name:       e.Name,
		Similarity: scores[best].Similarity,
		VideoURL:   e.VideoURL,
	}, nil
}

// Match returns the best entry and whether its similarity exceeds the threshold.
// The best result is returned even when it is not a match so callers can report it.
func (m *Matcher) Match(query []float32) (*Result, bool, error) {
	best, err := m.Best(query)
	if err != nil {
		return nil, false, err
	}
	if best == nil {
		return nil, false, nil
	}
	return best, m.Accepts(best.Similarity), nil
}

// Accepts reports whether a similarity clears the threshold.
func (m *Matcher) Accepts(similarity float64) bool {
	return similarity > m.threshold
}
