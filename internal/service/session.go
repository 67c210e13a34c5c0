package service

import (
	"context"
	"errors"
	"sync"

	"github.com/deploy-doctor/internal/domain"
)

// ErrSubmissionPending is returned when a session already has a call in flight.
var ErrSubmissionPending = errors.New("an analysis is already in progress")

// Status is the caller-visible state of a session.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusAnalyzing Status = "analyzing"
	StatusSuccess   Status = "success"
	StatusError     Status = "error"
)

// Runner is the part of Analyzer a Session drives.
type Runner interface {
	Analyze(ctx context.Context, req domain.AnalysisRequest) (*domain.AnalysisResult, error)
}

// Snapshot is a copy of the session state.
type Snapshot struct {
	Status Status
	Result *domain.AnalysisResult
	Err    error
}

// Session tracks what one user sees: at most one submission in flight,
// the last successful result, or the last error.
type Session struct {
	runner Runner

	mu      sync.Mutex
	pending bool
	status  Status
	result  *domain.AnalysisResult
	err     error
}

// NewSession creates an idle session.
func NewSession(runner Runner) *Session {
	return &Session{
		runner: runner,
		status: StatusIdle,
	}
}

// Submit runs one analysis. It rejects the call with ErrSubmissionPending
// while another is in flight. On failure the previous result is cleared.
func (s *Session) Submit(ctx context.Context, req domain.AnalysisRequest) (*domain.AnalysisResult, error) {
	s.mu.Lock()
	if s.pending {
		s.mu.Unlock()
		return nil, ErrSubmissionPending
	}
	s.pending = true
	s.status = StatusAnalyzing
	s.err = nil
	s.mu.Unlock()

	result, err := s.runner.Analyze(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = false
	if err != nil {
		s.status = StatusError
		s.result = nil
		s.err = err
		return nil, err
	}
	s.status = StatusSuccess
	s.result = result
	return result, nil
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Status: s.status,
		Result: s.result,
		Err:    s.err,
	}
}

// Reset returns an idle session to its initial state. It is a no-op while a call is in flight.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending {
		return
	}
	s.status = StatusIdle
	s.result = nil
	s.err = nil
}
