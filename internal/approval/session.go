// Package approval implements the out-of-band login approval exchange: a
// request carrying a one-time correlation token goes out through the
// messaging transport, and the matching yes/no callback resolves it. The
// pending session is an explicit object shared by the waiter and the
// callback router; at most one may be outstanding at a time.
package approval

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// State is the resolution state of one approval request.
type State int32

const (
	StatePending State = iota
	StateApproved
	StateDenied
	StateExpired
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateApproved:
		return "approved"
	case StateDenied:
		return "denied"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Session is one outstanding approval request. Resolution is idempotent:
// only the first transition away from Pending wins, later callbacks are
// no-ops.
type Session struct {
	token     string
	createdAt time.Time
	deadline  time.Time
	state     atomic.Int32
}

// NewSession mints a session with a fresh correlation token, never reused.
func NewSession(timeout time.Duration) *Session {
	now := time.Now()
	return &Session{
		token:     uuid.NewString(),
		createdAt: now,
		deadline:  now.Add(timeout),
	}
}

func (s *Session) Token() string        { return s.token }
func (s *Session) CreatedAt() time.Time { return s.createdAt }
func (s *Session) Deadline() time.Time  { return s.deadline }

func (s *Session) State() State {
	return State(s.state.Load())
}

// Resolve moves Pending to Approved/Denied. Returns false if the session was
// already resolved or expired.
func (s *Session) Resolve(approved bool) bool {
	next := StateDenied
	if approved {
		next = StateApproved
	}
	return s.state.CompareAndSwap(int32(StatePending), int32(next))
}

// Expire invalidates the token. Callbacks arriving afterwards are ignored.
func (s *Session) Expire() bool {
	return s.state.CompareAndSwap(int32(StatePending), int32(StateExpired))
}

// Slot holds the single outstanding session. Creating a second session while
// one is pending is rejected by Put; the slot frees itself only through
// Clear after the waiter observed a terminal state.
type Slot struct {
	mu      sync.Mutex
	current *Session
}

func NewSlot() *Slot {
	return &Slot{}
}

// Put installs a session, failing if one is still outstanding.
func (s *Slot) Put(sess *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil && s.current.State() == StatePending {
		return false
	}
	s.current = sess
	return true
}

// Current returns the installed session, resolved or not, or nil.
func (s *Slot) Current() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Clear releases the slot if it still holds the given session.
func (s *Slot) Clear(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == sess {
		s.current = nil
	}
}
