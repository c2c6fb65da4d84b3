package whatsapp

import (
	"fmt"
	"sync"
)

// LinkPhase is the position of a tenant in the link workflow.
type LinkPhase int

const (
	PhaseIdle LinkPhase = iota
	PhaseLinking
	PhaseAwaitingPin
	PhaseLinked
)

func (p LinkPhase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLinking:
		return "linking"
	case PhaseAwaitingPin:
		return "awaiting-pin"
	case PhaseLinked:
		return "linked"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

func (p LinkPhase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// PendingLink is a candidate waiting on the platform, or on a PIN.
// It only lives in memory.
type PendingLink struct {
	Candidate Candidate `json:"candidate"`
	Via       string    `json:"via"`
}

// LinkState is the tagged state of one tenant. Pending is set only while
// Linking or AwaitingPin.
type LinkState struct {
	Phase   LinkPhase    `json:"phase"`
	Pending *PendingLink `json:"pending,omitempty"`
}

type linkSlot struct {
	state     LinkState
	gen       uint64
	sessionID string
	delivered bool
}

// StateHolder keeps one link slot per tenant. Every new attempt bumps the slot
// generation, so a late answer for a superseded attempt cannot move the state.
type StateHolder struct {
	mu    sync.Mutex
	slots map[int64]*linkSlot
}

func NewStateHolder() *StateHolder {
	return &StateHolder{slots: map[int64]*linkSlot{}}
}

func (h *StateHolder) slot(tenantID int64) *linkSlot {
	s, ok := h.slots[tenantID]
	if !ok {
		s = &linkSlot{}
		h.slots[tenantID] = s
	}
	return s
}

// Get returns a copy of the tenant's state.
func (h *StateHolder) Get(tenantID int64) LinkState {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.slots[tenantID]
	if !ok {
		return LinkState{Phase: PhaseIdle}
	}
	out := s.state
	if out.Pending != nil {
		p := *out.Pending
		out.Pending = &p
	}
	return out
}

// beginLink starts a new attempt, silently replacing any held candidate.
func (h *StateHolder) beginLink(tenantID int64, pending PendingLink) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.slot(tenantID)
	s.gen++
	s.state = LinkState{Phase: PhaseLinking, Pending: &pending}
	return s.gen
}

func (h *StateHolder) awaitPin(tenantID int64, gen uint64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.slot(tenantID)
	if s.gen != gen || s.state.Pending == nil {
		return false
	}
	s.state.Phase = PhaseAwaitingPin
	return true
}

func (h *StateHolder) markLinked(tenantID int64, gen uint64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.slot(tenantID)
	if s.gen != gen {
		return false
	}
	s.state = LinkState{Phase: PhaseLinked}
	return true
}

// forceLinked is used by writes that do not go through a link attempt (test mode).
func (h *StateHolder) forceLinked(tenantID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.slot(tenantID)
	s.gen++
	s.state = LinkState{Phase: PhaseLinked}
}

func (h *StateHolder) resetIf(tenantID int64, gen uint64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.slot(tenantID)
	if s.gen != gen {
		return false
	}
	s.state = LinkState{Phase: PhaseIdle}
	return true
}

// reset drops any held candidate and invalidates in-flight attempts.
func (h *StateHolder) reset(tenantID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.slot(tenantID)
	s.gen++
	s.state = LinkState{Phase: PhaseIdle}
}

// held returns the candidate waiting on a PIN.
func (h *StateHolder) held(tenantID int64) (PendingLink, uint64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.slots[tenantID]
	if !ok || s.state.Phase != PhaseAwaitingPin || s.state.Pending == nil {
		return PendingLink{}, 0, false
	}
	return *s.state.Pending, s.gen, true
}

func (h *StateHolder) startSession(tenantID int64, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.slot(tenantID)
	s.sessionID = sessionID
	s.delivered = false
}

func (h *StateHolder) markDelivered(tenantID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.slot(tenantID).delivered = true
}

// deliveredFor reports whether a signup result already arrived for the session.
// An empty sessionID matches the current session.
func (h *StateHolder) deliveredFor(tenantID int64, sessionID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.slots[tenantID]
	if !ok {
		return false
	}
	if sessionID != "" && sessionID != s.sessionID {
		return false
	}
	return s.delivered
}
