package matcher

import (
	"errors"
	"math"
	"testing"

	"github.com/kozaktomas/marker-scanner/internal/catalog"
	"github.com/kozaktomas/marker-scanner/internal/vector"
)

func mustCatalog(t *testing.T, entries ...catalog.Entry) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New(entries)
	if err != nil {
		t.Fatalf("failed to build catalog: %v", err)
	}
	return c
}

func mustMatcher(t *testing.T, c *catalog.Catalog, threshold float64) *Matcher {
	t.Helper()
	m, err := New(c, threshold)
	if err != nil {
		t.Fatalf("failed to create matcher: %v", err)
	}
	return m
}

func axisCatalog(t *testing.T) *catalog.Catalog {
	return mustCatalog(t,
		catalog.Entry{ID: 1, Name: "x", Vector: []float32{1, 0}, VideoURL: "x.mp4"},
		catalog.Entry{ID: 2, Name: "y", Vector: []float32{0, 1}, VideoURL: "y.mp4"},
	)
}

func TestBest_EmptyCatalog(t *testing.T) {
	m := mustMatcher(t, mustCatalog(t), DefaultThreshold)

	best, err := m.Best([]float32{1, 2, 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if best != nil {
		t.Errorf("expected no result for empty catalog, got %+v", best)
	}

	_, ok, err := m.Match([]float32{1, 2, 3})
	if err != nil || ok {
		t.Errorf("expected no match without error, got ok=%v err=%v", ok, err)
	}
}

func TestBest_EmptyCatalogIgnoresUnusableQuery(t *testing.T) {
	m := mustMatcher(t, mustCatalog(t), DefaultThreshold)

	for _, query := range [][]float32{{0, 0}, {}, nil} {
		best, ok, err := m.Match(query)
		if err != nil {
			t.Errorf("Match(%v) error = %v; want nil", query, err)
		}
		if best != nil || ok {
			t.Errorf("Match(%v) = %+v, %v; want nil, false", query, best, ok)
		}
	}
}

func TestBest_SingleIdenticalEntry(t *testing.T) {
	raw := []float32{0.2, -0.4, 0.9, 0.1}
	unit, err := vector.Normalize(raw)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	m := mustMatcher(t, mustCatalog(t, catalog.Entry{ID: 5, Name: "only", Vector: unit}), DefaultThreshold)

	best, ok, err := m.Match(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if best == nil || best.EntryID != 5 {
		t.Fatalf("expected entry 5, got %+v", best)
	}
	if math.Abs(best.Similarity-1) > 1e-6 {
		t.Errorf("expected similarity ~1, got %f", best.Similarity)
	}
	if !ok {
		t.Error("expected identical vector to be a match")
	}
}

func TestMatch_NearAxis(t *testing.T) {
	m := mustMatcher(t, axisCatalog(t), 0.7)

	best, ok, err := m.Match([]float32{0.99, 0.10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if best.EntryID != 1 {
		t.Errorf("expected entry 1, got %d", best.EntryID)
	}
	if math.Abs(best.Similarity-0.995) > 1e-3 {
		t.Errorf("expected similarity ~0.995, got %f", best.Similarity)
	}
	if !ok {
		t.Error("expected a match above threshold 0.7")
	}
	if best.VideoURL != "x.mp4" || best.Name != "x" {
		t.Errorf("unexpected result fields: %+v", best)
	}
}

func TestMatch_OppositeQueryNeverMatches(t *testing.T) {
	for _, threshold := range []float64{0.01, 0.5, 0.6, 0.7, 1} {
		m := mustMatcher(t, axisCatalog(t), threshold)

		scores, err := m.Score([]float32{0, -1})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, s := range scores {
			if s.Similarity > 0 {
				t.Errorf("expected non-positive similarity for entry %d, got %f", s.EntryID, s.Similarity)
			}
		}

		_, ok, err := m.Match([]float32{0, -1})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ok {
			t.Errorf("threshold %.2f: expected no match", threshold)
		}
	}
}

func TestBest_TieFirstEntryWins(t *testing.T) {
	c := mustCatalog(t,
		catalog.Entry{ID: 10, Name: "first", Vector: []float32{1, 0}},
		catalog.Entry{ID: 20, Name: "second", Vector: []float32{0, 1}},
		catalog.Entry{ID: 30, Name: "third", Vector: []float32{1, 0}},
	)
	m := mustMatcher(t, c, DefaultThreshold)

	best, err := m.Best([]float32{1, 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if best.EntryID != 10 {
		t.Errorf("expected first-seen entry 10 to win the tie, got %d", best.EntryID)
	}
}

func TestMatch_ThresholdIsExclusive(t *testing.T) {
	m := mustMatcher(t, axisCatalog(t), 1)
	_, ok, err := m.Match([]float32{1, 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("similarity equal to threshold must not be reported as a match")
	}
}

func TestScore_Errors(t *testing.T) {
	m := mustMatcher(t, axisCatalog(t), DefaultThreshold)

	if _, err := m.Score([]float32{1, 0, 0}); !errors.Is(err, vector.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
	if _, err := m.Score([]float32{0, 0}); !errors.Is(err, vector.ErrZeroNorm) {
		t.Errorf("expected ErrZeroNorm, got %v", err)
	}
}

func TestNew_ThresholdRange(t *testing.T) {
	c := axisCatalog(t)
	for _, th := range []float64{-1, -2, 1.01} {
		if _, err := New(c, th); err == nil {
			t.Errorf("expected error for threshold %f", th)
		}
	}
	for _, th := range []float64{-0.5, 0, 0.5, 0.7, 1} {
		if _, err := New(c, th); err != nil {
			t.Errorf("unexpected error for threshold %f: %v", th, err)
		}
	}
}
