// Package status defines lifecycle states, badge styles and the resolver mapping one to the other.
// it is shared by the lifecycle client, badge renderers, watcher and web packages.
package status

// Kind enumerates lifecycle state variants.
type Kind int

// Kind constants. KindUnknown covers any remote value outside the known set,
// KindUnreachable is local only and means the fetch itself failed.
const (
	KindUnknown Kind = iota
	KindStarting
	KindStarted
	KindStopped
	KindFailed
	KindUnreachable
)

// known state names as reported by the lifecycle endpoint, case-sensitive.
const (
	NameStarting    = "Starting"
	NameStarted     = "Started"
	NameStopped     = "Stopped"
	NameFailed      = "Failed"
	NameUnknown     = "Unknown"
	NameUnreachable = "Unreachable"
)

var kindNames = map[Kind]string{
	KindUnknown:     NameUnknown,
	KindStarting:    NameStarting,
	KindStarted:     NameStarted,
	KindStopped:     NameStopped,
	KindFailed:      NameFailed,
	KindUnreachable: NameUnreachable,
}

// String returns the canonical name of the kind.
func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return NameUnknown
}

// LifecycleStatus is the payload returned by the remote lifecycle endpoint.
type LifecycleStatus struct {
	State  string `json:"state" yaml:"state"`
	Reason string `json:"reason" yaml:"reason"`
}

// State is a parsed lifecycle state. the zero value is Unknown("").
type State struct {
	kind Kind
	raw  string
}

// ParseState maps a remote state string to a State. matching is exact,
// everything outside the known set becomes Unknown(raw).
func ParseState(raw string) State {
	switch raw {
	case NameStarting:
		return State{kind: KindStarting, raw: raw}
	case NameStarted:
		return State{kind: KindStarted, raw: raw}
	case NameStopped:
		return State{kind: KindStopped, raw: raw}
	case NameFailed:
		return State{kind: KindFailed, raw: raw}
	default:
		return State{kind: KindUnknown, raw: raw}
	}
}

// Unreachable returns the state used when the lifecycle endpoint could not be read.
func Unreachable() State {
	return State{kind: KindUnreachable}
}

// Kind returns the variant tag.
func (s State) Kind() Kind { return s.kind }

// Raw returns the string received from the endpoint, empty for Unreachable.
func (s State) Raw() string { return s.raw }

// IsFailure reports whether the state represents a failed or unreachable service.
func (s State) IsFailure() bool {
	return s.kind == KindFailed || s.kind == KindUnreachable
}

// String returns the display label. unknown states keep their raw value so
// the operator sees what the service actually reported.
func (s State) String() string {
	switch s.kind {
	case KindUnreachable:
		return NameUnreachable
	case KindUnknown:
		if s.raw == "" {
			return NameUnknown
		}
		return s.raw
	default:
		return s.raw
	}
}

// Style returns the default style for the state.
func (s State) Style() Style {
	return DefaultResolver.StyleOf(s)
}
