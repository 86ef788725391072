package capture

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".webp", ".bmp"}

// IsImageFile reports whether the file name has a supported image extension.
func IsImageFile(name string) bool {
	return slices.Contains(imageExtensions, strings.ToLower(filepath.Ext(name)))
}

// ListImages returns the image files in dir sorted by name.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !IsImageFile(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	slices.Sort(files)
	return files, nil
}

// DirSource serves the images of a directory in name order. With Loop set it
// starts over after the last image, otherwise it returns io.EOF.
type DirSource struct {
	files []string
	loop  bool

	mu     sync.Mutex
	next   int
	closed bool
}

// NewDirSource lists the images in dir. A directory without images is an error.
func NewDirSource(dir string, loop bool) (*DirSource, error) {
	files, err := ListImages(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%s: %w", dir, ErrNoFrame)
	}
	return &DirSource{files: files, loop: loop}, nil
}

// Next implements Source.
func (s *DirSource) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if s.next >= len(s.files) {
		if !s.loop {
			s.mu.Unlock()
			return nil, io.EOF
		}
		s.next = 0
	}
	path := s.files[s.next]
	s.next++
	s.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading frame %s: %w", path, err)
	}
	return data, nil
}

// Close implements Source.
func (s *DirSource) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Len returns the number of images in the directory.
func (s *DirSource) Len() int {
	return len(s.files)
}
