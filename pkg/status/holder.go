package status

import "sync"

// Holder stores the latest observed lifecycle state in a thread-safe way.
// it is the single source of truth for watcher, dashboard and lifecycle endpoint.
type Holder struct {
	mu       sync.RWMutex
	state    State
	reason   string
	onChange func(old, cur State, reason string)
}

// OnChange registers a callback that fires when the state kind or raw value changes.
// only one callback is supported; subsequent calls replace the previous one.
func (h *Holder) OnChange(fn func(old, cur State, reason string)) {
	h.mu.Lock()
	h.onChange = fn
	h.mu.Unlock()
}

// Set updates the current state and reason. the callback fires only when the state itself
// changed, a new reason alone is stored silently.
func (h *Holder) Set(s State, reason string) {
	h.mu.Lock()
	old := h.state
	h.state = s
	h.reason = reason
	cb := h.onChange
	h.mu.Unlock()

	if old != s && cb != nil {
		cb(old, s, reason)
	}
}

// Get returns the current state and reason.
func (h *Holder) Get() (State, string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state, h.reason
}

// Status returns the current value as it would appear on the wire.
func (h *Holder) Status() LifecycleStatus {
	s, reason := h.Get()
	return LifecycleStatus{State: s.String(), Reason: reason}
}
