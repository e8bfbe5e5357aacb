// Package badge turns lifecycle status into a rendered status badge.
// a Badge is computed once per fetch and pushed into a Sink, the rendering collaborator
// that owns the actual output (terminal, html fragment, dashboard).
package badge

import (
	"sync"
	"time"

	"github.com/umputun/lifebadge/pkg/status"
)

// Badge is the resolved presentation of a lifecycle status.
type Badge struct {
	Target    string       `json:"target" yaml:"target"`
	State     string       `json:"state" yaml:"state"`   // label text
	Reason    string       `json:"reason" yaml:"reason"` // free text, may be empty
	Kind      string       `json:"kind" yaml:"kind"`     // canonical variant name
	Style     status.Style `json:"style" yaml:"style"`
	Class     string       `json:"class" yaml:"class"` // css class, label-<style>
	CheckedAt time.Time    `json:"checked_at" yaml:"checked_at"`
}

// Failed reports whether the badge shows a failed or unreachable service.
func (b Badge) Failed() bool {
	return b.Kind == status.KindFailed.String() || b.Kind == status.KindUnreachable.String()
}

// Builder makes badges with a given resolver. the resolver can be replaced while
// badges are being built, e.g. on config reload.
type Builder struct {
	mu       sync.RWMutex
	resolver status.Resolver
	now      func() time.Time
}

// NewBuilder makes a builder using the given resolver.
func NewBuilder(r status.Resolver) *Builder {
	return &Builder{resolver: r, now: time.Now}
}

// SetResolver replaces the resolver used for subsequent badges.
func (b *Builder) SetResolver(r status.Resolver) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resolver = r
}

// FromStatus builds a badge for a successfully fetched status.
func (b *Builder) FromStatus(target string, st status.LifecycleStatus) Badge {
	return b.build(target, status.ParseState(st.State), st.Reason)
}

// FromError builds an Unreachable badge for a failed fetch, the error becomes the reason.
func (b *Builder) FromError(target string, err error) Badge {
	reason := ""
	if err != nil {
		reason = err.Error()
	}
	return b.build(target, status.Unreachable(), reason)
}

// FromState builds a badge for an already parsed state.
func (b *Builder) FromState(target string, s status.State, reason string) Badge {
	return b.build(target, s, reason)
}

func (b *Builder) build(target string, s status.State, reason string) Badge {
	now := time.Now
	if b.now != nil {
		now = b.now
	}
	b.mu.RLock()
	style := b.resolver.StyleOf(s)
	b.mu.RUnlock()
	return Badge{
		Target:    target,
		State:     s.String(),
		Reason:    reason,
		Kind:      s.Kind().String(),
		Style:     style,
		Class:     style.Class(),
		CheckedAt: now(),
	}
}

// FromStatus builds a badge with the default resolver.
func FromStatus(target string, st status.LifecycleStatus) Badge {
	return NewBuilder(status.DefaultResolver).FromStatus(target, st)
}

// FromError builds an Unreachable badge with the default resolver.
func FromError(target string, err error) Badge {
	return NewBuilder(status.DefaultResolver).FromError(target, err)
}
