package concat

import (
	"fmt"
	"sync"

	"github.com/input-output-hk/catalyst-forge-libs/s3utils/s3types"
)

// State is the lifecycle stage of a multipart session.
type State int

const (
	StateValidating State = iota
	StateInitiated
	StateCopying
	StateCompleting
	StateCompleted
	StateAborted
	StateFailed
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateValidating:
		return "validating"
	case StateInitiated:
		return "initiated"
	case StateCopying:
		return "copying"
	case StateCompleting:
		return "completing"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session is one multipart upload owned by a single orchestrator run.
// Parts are recorded by index so their order never depends on which copy
// finished first.
type Session struct {
	bucket   string
	key      string
	uploadID string

	mu      sync.Mutex
	state   State
	parts   []s3types.CompletedPart
	aborted bool
}

func newSession(bucket, key, uploadID string, parts int) *Session {
	return &Session{
		bucket:   bucket,
		key:      key,
		uploadID: uploadID,
		state:    StateInitiated,
		parts:    make([]s3types.CompletedPart, parts),
	}
}

// Bucket returns the bucket of the target object.
func (s *Session) Bucket() string { return s.bucket }

// Key returns the target key.
func (s *Session) Key() string { return s.key }

// UploadID returns the store-issued upload identifier.
func (s *Session) UploadID() string { return s.uploadID }

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

func (s *Session) record(i int, part s3types.CompletedPart) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parts[i] = part
}

// Parts returns the recorded parts in part-number order. It fails if any
// slot was never filled.
func (s *Session) Parts() ([]s3types.CompletedPart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]s3types.CompletedPart, len(s.parts))
	for i, p := range s.parts {
		if p.PartNumber != int32(i+1) || p.ETag == "" {
			return nil, fmt.Errorf("part %d of upload %s was not recorded", i+1, s.uploadID)
		}
		out[i] = p
	}
	return out, nil
}

// TotalBytes returns the summed size of the recorded parts.
func (s *Session) TotalBytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int64
	for _, p := range s.parts {
		total += p.Size
	}
	return total
}

// markAborted reports whether this is the first abort of the session.
func (s *Session) markAborted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.aborted || s.state == StateCompleted {
		return false
	}
	s.aborted = true
	return true
}
