package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// fileFormat is the on-disk YAML layout of a catalog.
type fileFormat struct {
	Markers []fileEntry `yaml:"markers"`
}

type fileEntry struct {
	ID       int        `yaml:"id"`
	Name     string     `yaml:"name"`
	VideoURL string     `yaml:"video_url"`
	Vector   flowVector `yaml:"vector"`
}

// flowVector marshals as a single-line YAML sequence so 1280-d vectors stay readable.
type flowVector []float32

// MarshalYAML implements yaml.Marshaler.
func (v flowVector) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	for _, x := range v {
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: formatFloat(x)})
	}
	return node, nil
}

func formatFloat(x float32) string {
	return strconv.FormatFloat(float64(x), 'g', -1, 32)
}

// decodeEntries decodes YAML catalog entries without validating them.
func decodeEntries(data []byte) ([]Entry, error) {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog YAML: %w", err)
	}

	entries := make([]Entry, len(f.Markers))
	for i, m := range f.Markers {
		entries[i] = Entry{
			ID:       m.ID,
			Name:     m.Name,
			Vector:   []float32(m.Vector),
			VideoURL: m.VideoURL,
		}
	}
	return entries, nil
}

// Parse decodes a YAML catalog and validates it.
func Parse(data []byte) (*Catalog, error) {
	entries, err := decodeEntries(data)
	if err != nil {
		return nil, err
	}
	return New(entries)
}

// ReadEntries reads a catalog file as written, without validation or
// normalization. Use it to inspect a catalog that may not load.
func ReadEntries(path string) ([]Entry, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is from trusted config
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	entries, err := decodeEntries(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return entries, nil
}

// LoadFile reads and validates a YAML catalog from disk.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is from trusted config
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// Marshal encodes catalog entries as YAML.
func Marshal(entries []Entry) ([]byte, error) {
	f := fileFormat{Markers: make([]fileEntry, len(entries))}
	for i, e := range entries {
		f.Markers[i] = fileEntry{
			ID:       e.ID,
			Name:     e.Name,
			VideoURL: e.VideoURL,
			Vector:   flowVector(e.Vector),
		}
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return nil, fmt.Errorf("failed to encode catalog: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode catalog: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile writes entries to path, replacing the file atomically.
// The entries are validated first so an invalid catalog is never written.
func WriteFile(path string, entries []Entry) error {
	if _, err := New(entries); err != nil {
		return err
	}
	data, err := Marshal(entries)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".catalog-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp catalog file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write catalog: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write catalog: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace catalog %s: %w", path, err)
	}
	return nil
}

// AppendToFile adds an entry to the catalog file at path, creating the file if needed.
// An entry with ID 0 gets the next free ID. Names must be unique, ignoring
// case and diacritics. The stored entry is returned.
func AppendToFile(path string, entry Entry) (Entry, error) {
	existing := &Catalog{}
	if _, err := os.Stat(path); err == nil {
		existing, err = LoadFile(path)
		if err != nil {
			return Entry{}, err
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return Entry{}, fmt.Errorf("failed to stat catalog %s: %w", path, err)
	}

	if entry.Name != "" {
		if dup, err := existing.FindByName(entry.Name); err == nil {
			return Entry{}, fmt.Errorf("%w: name %q is already used by marker %d", ErrInvalidEntry, entry.Name, dup.ID)
		}
	}
	if entry.ID == 0 {
		entry.ID = existing.NextID()
	}

	entries := append(existing.Entries(), entry)
	if err := WriteFile(path, entries); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// Snippet renders a vector the way it is pasted into a catalog entry: "vector: [a, b, ...],".
func Snippet(v []float32) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = formatFloat(x)
	}
	return "vector: [" + strings.Join(parts, ", ") + "],"
}
