package catalog

import (
	"context"
	_ "embed"
)

//go:embed catalog.yaml
var embeddedYAML []byte

// Source loads a catalog from some backing store.
type Source interface {
	Load(ctx context.Context) (*Catalog, error)
}

// FileSource loads a YAML catalog file.
type FileSource struct {
	Path string
}

// Load implements Source.
func (s FileSource) Load(ctx context.Context) (*Catalog, error) {
	return LoadFile(s.Path)
}

// EmbeddedSource loads the catalog compiled into the binary.
type EmbeddedSource struct{}

// Load implements Source.
func (EmbeddedSource) Load(ctx context.Context) (*Catalog, error) {
	return Parse(embeddedYAML)
}
