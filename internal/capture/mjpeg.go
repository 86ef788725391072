package capture

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
)

var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

// maxFrameBytes caps a single buffered JPEG frame.
const maxFrameBytes = 16 << 20

// SplitJPEG is a bufio.SplitFunc that yields complete JPEG images from a
// concatenated MJPEG stream (ffmpeg image2pipe output). Bytes before the start
// marker are discarded.
func SplitJPEG(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := bytes.Index(data, jpegSOI)
	if start < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		// keep a trailing 0xFF that may begin a marker
		if n := len(data); n > 0 && data[n-1] == 0xFF {
			return n - 1, nil, nil
		}
		return len(data), nil, nil
	}

	end := bytes.Index(data[start+len(jpegSOI):], jpegEOI)
	if end < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		return start, nil, nil
	}

	stop := start + len(jpegSOI) + end + len(jpegEOI)
	return stop, data[start:stop], nil
}

// StreamSource turns an MJPEG byte stream into a Source that keeps only the
// most recent frame. Frames that arrive between two Next calls are dropped.
type StreamSource struct {
	rc io.ReadCloser

	mu      sync.Mutex
	frame   []byte
	seq     uint64
	served  uint64
	err     error
	updated chan struct{}
	closed  bool
}

// NewStreamSource starts reading frames from rc in the background.
func NewStreamSource(rc io.ReadCloser) *StreamSource {
	s := &StreamSource{
		rc:      rc,
		updated: make(chan struct{}),
	}
	go s.read()
	return s
}

func (s *StreamSource) read() {
	scanner := bufio.NewScanner(s.rc)
	scanner.Buffer(make([]byte, 0, 256<<10), maxFrameBytes)
	scanner.Split(SplitJPEG)

	for scanner.Scan() {
		frame := bytes.Clone(scanner.Bytes())
		s.mu.Lock()
		s.frame = frame
		s.seq++
		s.notifyLocked()
		s.mu.Unlock()
	}

	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.notifyLocked()
	s.mu.Unlock()
}

func (s *StreamSource) notifyLocked() {
	close(s.updated)
	s.updated = make(chan struct{})
}

// Next implements Source.
func (s *StreamSource) Next(ctx context.Context) ([]byte, error) {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return nil, ErrClosed
		}
		if s.seq > s.served {
			s.served = s.seq
			frame := s.frame
			s.mu.Unlock()
			return frame, nil
		}
		if s.err != nil {
			err := s.err
			s.mu.Unlock()
			return nil, err
		}
		wait := s.updated
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wait:
		}
	}
}

// waitReady blocks until the first frame arrives without consuming it.
func (s *StreamSource) waitReady(ctx context.Context) error {
	for {
		s.mu.Lock()
		if s.seq > 0 {
			s.mu.Unlock()
			return nil
		}
		if s.err != nil {
			err := s.err
			s.mu.Unlock()
			if errors.Is(err, io.EOF) {
				return ErrNoFrame
			}
			return err
		}
		wait := s.updated
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return ErrNoFrame
		case <-wait:
		}
	}
}

// Close implements Source.
func (s *StreamSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.notifyLocked()
	s.mu.Unlock()
	return s.rc.Close()
}
