// Package catalog holds the reference markers the scanner matches against.
// A catalog is loaded once and never mutated afterwards; all vectors in a catalog
// share one dimension and are stored unit-normalized.
package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kozaktomas/marker-scanner/internal/constants"
	"github.com/kozaktomas/marker-scanner/internal/vector"
)

var (
	// ErrNotFound is returned when a marker is not present in the catalog.
	ErrNotFound = errors.New("marker not found")

	// ErrInvalidEntry is returned when a catalog entry fails validation.
	ErrInvalidEntry = errors.New("invalid catalog entry")
)

// Entry is a single reference marker.
type Entry struct {
	ID       int       `json:"id"`
	Name     string    `json:"name"`
	Vector   []float32 `json:"vector"`
	VideoURL string    `json:"video_url"`
}

// Catalog is an immutable, validated list of entries kept in load order.
type Catalog struct {
	entries []Entry
	byID    map[int]int // entry ID -> index in entries
	dim     int
}

// New validates entries and builds a catalog. Entries keep their order, which decides
// tie-breaks during matching. Vectors that are not unit length are normalized.
func New(entries []Entry) (*Catalog, error) {
	c := &Catalog{
		entries: make([]Entry, 0, len(entries)),
		byID:    make(map[int]int, len(entries)),
	}

	for i, e := range entries {
		if len(e.Vector) == 0 {
			return nil, fmt.Errorf("%w: entry %d (%q) has an empty vector", ErrInvalidEntry, e.ID, e.Name)
		}
		if i == 0 {
			c.dim = len(e.Vector)
		} else if len(e.Vector) != c.dim {
			return nil, fmt.Errorf("%w: entry %d (%q) has dimension %d, catalog dimension is %d",
				ErrInvalidEntry, e.ID, e.Name, len(e.Vector), c.dim)
		}
		if _, dup := c.byID[e.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %d", ErrInvalidEntry, e.ID)
		}

		vec := e.Vector
		if !vector.IsUnit(vec, constants.UnitTolerance) {
			normalized, err := vector.Normalize(vec)
			if err != nil {
				return nil, fmt.Errorf("%w: entry %d (%q): %w", ErrInvalidEntry, e.ID, e.Name, err)
			}
			vec = normalized
		} else {
			vec = append([]float32(nil), vec...)
		}

		c.byID[e.ID] = len(c.entries)
		c.entries = append(c.entries, Entry{
			ID:       e.ID,
			Name:     strings.TrimSpace(e.Name),
			Vector:   vec,
			VideoURL: e.VideoURL,
		})
	}

	return c, nil
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Dim returns the shared vector dimension, or 0 for an empty catalog.
func (c *Catalog) Dim() int {
	return c.dim
}

// At returns the entry at position i in load order. The returned vector must not be modified.
func (c *Catalog) At(i int) Entry {
	return c.entries[i]
}

// Entries returns a copy of all entries in load order.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	for i, e := range c.entries {
		e.Vector = append([]float32(nil), e.Vector...)
		out[i] = e
	}
	return out
}

// Get returns the entry with the given ID.
func (c *Catalog) Get(id int) (Entry, error) {
	idx, ok := c.byID[id]
	if !ok {
		return Entry{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return c.entries[idx], nil
}

// FindByName returns the first entry whose name matches, ignoring case and diacritics.
func (c *Catalog) FindByName(name string) (Entry, error) {
	want := FoldName(name)
	for _, e := range c.entries {
		if FoldName(e.Name) == want {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("%w: name %q", ErrNotFound, name)
}

// NextID returns an ID one greater than the largest ID in the catalog.
func (c *Catalog) NextID() int {
	next := 1
	for _, e := range c.entries {
		if e.ID >= next {
			next = e.ID + 1
		}
	}
	return next
}
