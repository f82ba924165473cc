package service

import (
	"sync"
	"time"
)

// NotificationKind distinguishes the two notification slots
type NotificationKind int

const (
	NotificationError NotificationKind = iota
	NotificationSuccess
)

func (k NotificationKind) String() string {
	if k == NotificationError {
		return "error"
	}
	return "success"
}

// Notification is a user-facing signal
type Notification struct {
	Kind      NotificationKind
	Message   string
	ExpiresAt time.Time
}

type slot struct {
	current *Notification
	gen     uint64
	timer   *time.Timer
}

// NotificationHub holds at most one pending error and one pending success.
// A new signal replaces the pending one of the same kind; each clears itself
// once its duration elapses.
type NotificationHub struct {
	mu        sync.Mutex
	slots     [2]slot
	durations [2]time.Duration
	now       func() time.Time
	onChange  func()
}

// NewNotificationHub creates a hub with per-kind display durations
func NewNotificationHub(errorDuration, successDuration time.Duration) *NotificationHub {
	return &NotificationHub{
		durations: [2]time.Duration{errorDuration, successDuration},
		now:       time.Now,
	}
}

// OnChange sets a callback invoked whenever a slot is set or cleared
func (h *NotificationHub) OnChange(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onChange = fn
}

// Error posts an error signal
func (h *NotificationHub) Error(message string) {
	h.post(NotificationError, message)
}

// Success posts a success signal
func (h *NotificationHub) Success(message string) {
	h.post(NotificationSuccess, message)
}

// Pending returns the live error and success signals, either may be nil
func (h *NotificationHub) Pending() (errSignal, okSignal *Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.liveLocked(NotificationError), h.liveLocked(NotificationSuccess)
}

// Dismiss clears a slot early
func (h *NotificationHub) Dismiss(kind NotificationKind) {
	h.mu.Lock()
	s := &h.slots[kind]
	if s.timer != nil {
		s.timer.Stop()
	}
	changed := s.current != nil
	s.current = nil
	s.gen++
	fn := h.onChange
	h.mu.Unlock()
	if changed && fn != nil {
		fn()
	}
}

func (h *NotificationHub) post(kind NotificationKind, message string) {
	h.mu.Lock()
	s := &h.slots[kind]
	d := h.durations[kind]
	s.gen++
	gen := s.gen
	s.current = &Notification{Kind: kind, Message: message, ExpiresAt: h.now().Add(d)}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(d, func() { h.expire(kind, gen) })
	fn := h.onChange
	h.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (h *NotificationHub) expire(kind NotificationKind, gen uint64) {
	h.mu.Lock()
	s := &h.slots[kind]
	if s.gen != gen {
		h.mu.Unlock()
		return
	}
	s.current = nil
	fn := h.onChange
	h.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (h *NotificationHub) liveLocked(kind NotificationKind) *Notification {
	n := h.slots[kind].current
	if n == nil || !h.now().Before(n.ExpiresAt) {
		return nil
	}
	cp := *n
	return &cp
}
