// Package scanner runs the periodic scan loop: grab the latest camera frame,
// embed it, match it against the catalog and publish the outcome on a Session.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kozaktomas/marker-scanner/internal/capture"
	"github.com/kozaktomas/marker-scanner/internal/constants"
	"github.com/kozaktomas/marker-scanner/internal/fingerprint"
	"github.com/kozaktomas/marker-scanner/internal/matcher"
	"github.com/kozaktomas/marker-scanner/internal/vector"
)

// DefaultInterval is the time between scan attempts.
const DefaultInterval = 500 * time.Millisecond

// HealthChecker is implemented by extractors that can report readiness.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Options tunes the scan loop.
type Options struct {
	Interval          time.Duration // defaults to DefaultInterval
	MaxImageSize      int           // frames are shrunk to this longest edge before embedding, 0 keeps them
	FrameHashDistance int           // reuse the previous result when frames are this close, 0 disables
	ScanTimeout       time.Duration // per-attempt deadline, defaults to constants.ScanTimeout
}

// Scanner drives one Session from one frame source.
type Scanner struct {
	source    capture.Source
	extractor fingerprint.Extractor
	matcher   *matcher.Matcher
	session   *Session
	opts      Options
	logger    *slog.Logger

	busy atomic.Bool

	gateMu     sync.Mutex
	lastHash   uint64
	hasHash    bool
	lastBest   *matcher.Result
	lastAccept bool

	stopMu sync.Mutex
	stop   context.CancelFunc
}

// New creates a scanner. It takes ownership of source and closes it when Run returns.
func New(source capture.Source, extractor fingerprint.Extractor, m *matcher.Matcher, session *Session, opts Options) *Scanner {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.ScanTimeout <= 0 {
		opts.ScanTimeout = constants.ScanTimeout
	}
	return &Scanner{
		source:    source,
		extractor: extractor,
		matcher:   m,
		session:   session,
		opts:      opts,
		logger:    slog.Default().With("session", session.ID()),
	}
}

// Session returns the session the scanner publishes to.
func (s *Scanner) Session() *Session {
	return s.session
}

// Run checks the embedding backend once, then scans on every tick until ctx
// is cancelled, Stop is called, the source ends, or a fatal error occurs.
// A tick that fires while a scan is running is skipped.
func (s *Scanner) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.stopMu.Lock()
	s.stop = cancel
	s.stopMu.Unlock()
	defer cancel()

	defer func() {
		if err := s.source.Close(); err != nil {
			s.logger.Warn("closing frame source", "error", err)
		}
	}()

	if err := s.checkReady(ctx); err != nil {
		s.session.Fail(err)
		return err
	}
	s.session.ModelReady()
	s.logger.Info("scanner started", "interval", s.opts.Interval, "markers", s.matcher.Catalog().Len())

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	done := make(chan error, 1)

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			s.session.Stop()
			s.logger.Info("scanner stopped", "stats", s.session.Snapshot().Stats)
			return nil

		case err := <-done:
			cancel()
			wg.Wait()
			if errors.Is(err, io.EOF) {
				s.session.Stop()
				s.logger.Info("frame source finished")
				return nil
			}
			s.session.Fail(err)
			s.logger.Error("scanner failed", "error", err)
			return err

		case <-ticker.C:
			if !s.busy.CompareAndSwap(false, true) {
				s.session.RecordSkip()
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer s.busy.Store(false)
				if err := s.scan(ctx); err != nil {
					select {
					case done <- err:
					default:
					}
				}
			}()
		}
	}
}

// Stop cancels a running Run. The in-flight scan is cancelled and the source closed.
func (s *Scanner) Stop() {
	s.stopMu.Lock()
	defer s.stopMu.Unlock()
	if s.stop != nil {
		s.stop()
	}
}

func (s *Scanner) checkReady(ctx context.Context) error {
	hc, ok := s.extractor.(HealthChecker)
	if !ok {
		return nil
	}
	checkCtx, cancel := context.WithTimeout(ctx, constants.HealthCheckTimeout)
	defer cancel()
	if err := hc.Health(checkCtx); err != nil {
		return fmt.Errorf("embedding backend not ready: %w", err)
	}
	return nil
}

// scan runs one attempt. It returns an error only when scanning must stop:
// the source ended or the model produces vectors the catalog cannot compare.
func (s *Scanner) scan(ctx context.Context) error {
	_, _, err := s.ScanOnce(ctx)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF), errors.Is(err, capture.ErrClosed):
		return io.EOF
	case errors.Is(err, vector.ErrDimensionMismatch):
		return err
	default:
		// already counted on the session; keep scanning
		return nil
	}
}

// ScanOnce grabs one frame, matches it and applies the result to the session.
func (s *Scanner) ScanOnce(ctx context.Context) (*matcher.Result, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.ScanTimeout)
	defer cancel()

	frame, err := s.source.Next(ctx)
	if err != nil {
		if !errors.Is(err, io.EOF) && !errors.Is(err, capture.ErrClosed) {
			s.recordError(ctx, fmt.Errorf("reading frame: %w", err))
		}
		return nil, false, err
	}

	hash, hashed := s.frameHash(frame)
	if hashed {
		if best, accepted, ok := s.reuse(hash); ok {
			s.session.RecordReuse()
			return best, accepted, nil
		}
	}

	if s.opts.MaxImageSize > 0 {
		if resized, err := fingerprint.ResizeImage(frame, s.opts.MaxImageSize); err == nil {
			frame = resized
		} else {
			s.logger.Debug("frame resize failed, sending original", "error", err)
		}
	}

	embedding, err := s.extractor.ComputeEmbedding(ctx, frame)
	if err != nil {
		s.recordError(ctx, fmt.Errorf("computing embedding: %w", err))
		return nil, false, err
	}

	best, accepted, err := s.matcher.Match(embedding)
	switch {
	case errors.Is(err, vector.ErrZeroNorm):
		s.session.RecordZeroNorm()
		s.session.ApplyResult(nil, false)
		s.remember(hash, hashed, nil, false)
		return nil, false, nil
	case err != nil:
		s.session.RecordError(err)
		return nil, false, err
	}

	s.session.ApplyResult(best, accepted)
	s.remember(hash, hashed, best, accepted)
	if accepted {
		s.logger.Debug("marker matched", "id", best.EntryID, "name", best.Name, "similarity", best.Similarity)
	}
	return best, accepted, nil
}

// recordError counts a failed attempt unless the scanner is shutting down.
func (s *Scanner) recordError(ctx context.Context, err error) {
	if errors.Is(ctx.Err(), context.Canceled) {
		return
	}
	s.logger.Warn("scan failed", "error", err)
	s.session.RecordError(err)
}

// frameHash returns the frame's dHash when the frame-change gate is enabled.
func (s *Scanner) frameHash(frame []byte) (uint64, bool) {
	if s.opts.FrameHashDistance <= 0 {
		return 0, false
	}
	hash, err := fingerprint.ComputeDHash(frame)
	if err != nil {
		return 0, false
	}
	return hash, true
}

// reuse returns the stored result when hash is close to the hash of the last
// frame that was actually matched.
func (s *Scanner) reuse(hash uint64) (*matcher.Result, bool, bool) {
	s.gateMu.Lock()
	defer s.gateMu.Unlock()
	if !s.hasHash || fingerprint.HammingDistance(s.lastHash, hash) > s.opts.FrameHashDistance {
		return nil, false, false
	}
	return s.lastBest, s.lastAccept, true
}

// remember stores the result of a frame that was embedded and matched. Frames
// that failed never replace the stored hash.
func (s *Scanner) remember(hash uint64, hashed bool, best *matcher.Result, accepted bool) {
	s.gateMu.Lock()
	defer s.gateMu.Unlock()
	s.lastHash = hash
	s.hasHash = hashed
	s.lastBest = best
	s.lastAccept = accepted
}
