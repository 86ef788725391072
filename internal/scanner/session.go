package scanner

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/marker-scanner/internal/matcher"
)

// State is the lifecycle state of a scanning session.
type State string

// Session states. Failed and stopped are terminal.
const (
	StateLoading  State = "loading"
	StateScanning State = "scanning"
	StateMatched  State = "matched"
	StateFailed   State = "failed"
	StateStopped  State = "stopped"
)

// IsTerminal reports whether no further transitions are possible.
func (s State) IsTerminal() bool {
	return s == StateFailed || s == StateStopped
}

// Stats counts what happened during a session.
type Stats struct {
	Scans    int `json:"scans"`     // completed scan attempts, including reused frames
	Matches  int `json:"matches"`   // attempts that cleared the threshold
	Misses   int `json:"misses"`    // attempts below the threshold or with an empty catalog
	ZeroNorm int `json:"zero_norm"` // live vectors that could not be normalized
	Reused   int `json:"reused"`    // attempts answered from the previous frame
	Skipped  int `json:"skipped"`   // ticks dropped because a scan was still running
	Errors   int `json:"errors"`    // attempts that failed (frame, model or match error)
}

// Snapshot is a read-only copy of the session.
type Snapshot struct {
	ID        string          `json:"id"`
	State     State           `json:"state"`
	Device    string          `json:"device,omitempty"`
	Match     *matcher.Result `json:"match,omitempty"`
	Best      *matcher.Result `json:"best,omitempty"` // last best candidate, matched or not
	Error     string          `json:"error,omitempty"`
	Stats     Stats           `json:"stats"`
	StartedAt time.Time       `json:"started_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Session owns the observable state of one scanner. All changes go through
// its transition methods; each change is broadcast to listeners.
type Session struct {
	EventBroadcaster

	id        string
	startedAt time.Time

	mu        sync.Mutex
	state     State
	device    string
	match     *matcher.Result
	best      *matcher.Result
	lastErr   error
	stats     Stats
	updatedAt time.Time
}

// NewSession creates a session in the loading state.
func NewSession() *Session {
	now := time.Now()
	return &Session{
		id:        uuid.NewString(),
		startedAt: now,
		updatedAt: now,
		state:     StateLoading,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetDevice records the capture device in use.
func (s *Session) SetDevice(device string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.device = device
}

// setStateLocked changes state and broadcasts it. Caller holds mu.
func (s *Session) setStateLocked(state State) {
	if s.state == state {
		return
	}
	prev := s.state
	s.state = state
	s.updatedAt = time.Now()
	s.SendEvent(Event{
		Type: EventState,
		Data: map[string]any{"from": prev, "to": state},
	})
}

// ModelReady moves a loading session to scanning. It returns false if the
// session was not loading.
func (s *Session) ModelReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateLoading {
		return false
	}
	s.setStateLocked(StateScanning)
	return true
}

// ApplyResult records the outcome of one scan attempt. best may be nil (empty
// catalog or unusable vector). It returns false when the session is not
// accepting results.
func (s *Session) ApplyResult(best *matcher.Result, matched bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateLoading || s.state.IsTerminal() {
		return false
	}

	s.stats.Scans++
	s.best = best
	s.updatedAt = time.Now()

	if matched && best != nil {
		s.stats.Matches++
		changed := s.match == nil || s.match.EntryID != best.EntryID
		s.match = best
		s.setStateLocked(StateMatched)
		if changed {
			s.SendEvent(Event{Type: EventMatch, Message: best.Name, Data: best})
		}
		return true
	}

	s.stats.Misses++
	if s.match != nil {
		lost := s.match
		s.match = nil
		s.SendEvent(Event{Type: EventNoMatch, Message: lost.Name, Data: lost})
	}
	s.setStateLocked(StateScanning)
	return true
}

// RecordZeroNorm counts a live vector that had no direction.
func (s *Session) RecordZeroNorm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.ZeroNorm++
}

// RecordReuse counts an attempt answered from the previous frame.
func (s *Session) RecordReuse() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Scans++
	s.stats.Reused++
}

// RecordSkip counts a tick dropped because a scan was still running.
func (s *Session) RecordSkip() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Skipped++
}

// RecordError counts a failed scan attempt without leaving the scanning state.
func (s *Session) RecordError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Errors++
	s.lastErr = err
	s.SendEvent(Event{Type: EventError, Message: err.Error()})
}

// Fail moves the session to the failed state. A stopped session stays stopped.
func (s *Session) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.IsTerminal() {
		return
	}
	s.lastErr = err
	s.match = nil
	s.setStateLocked(StateFailed)
}

// Stop moves the session to the stopped state and clears the match.
// A failed session keeps its failure.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.IsTerminal() {
		return
	}
	s.match = nil
	s.setStateLocked(StateStopped)
}

// Snapshot returns a copy of the current session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:        s.id,
		State:     s.state,
		Device:    s.device,
		Stats:     s.stats,
		StartedAt: s.startedAt,
		UpdatedAt: s.updatedAt,
	}
	if s.match != nil {
		m := *s.match
		snap.Match = &m
	}
	if s.best != nil {
		b := *s.best
		snap.Best = &b
	}
	if s.lastErr != nil {
		snap.Error = s.lastErr.Error()
	}
	return snap
}
