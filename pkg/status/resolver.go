package status

import "fmt"

// Style is a presentational style identifier, matching bootstrap label variants.
type Style string

// Style constants.
const (
	StylePrimary Style = "primary" // starting
	StyleSuccess Style = "success" // started
	StyleDefault Style = "default" // stopped
	StyleDanger  Style = "danger"  // failed, unreachable
	StyleWarning Style = "warning" // anything not recognized
)

// StyleUnknown is the fallback style for states outside the known set.
const StyleUnknown = StyleWarning

// Styles lists all valid styles in display order.
var Styles = []Style{StylePrimary, StyleSuccess, StyleDefault, StyleDanger, StyleWarning}

// Class returns the CSS class applied to the state label.
func (s Style) Class() string {
	return "label-" + string(s)
}

// ParseStyle validates a style name.
func ParseStyle(v string) (Style, error) {
	for _, s := range Styles {
		if string(s) == v {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown style %q", v)
}

// Resolver maps lifecycle states to styles. the zero value uses the default mapping.
// a Resolver is immutable after construction and safe for concurrent use.
type Resolver struct {
	overrides map[Kind]Style
}

// DefaultResolver uses the built-in mapping with no overrides.
var DefaultResolver = Resolver{}

// NewResolver makes a resolver with per-kind style overrides. empty styles are ignored,
// so no kind can ever resolve to an empty style.
func NewResolver(overrides map[Kind]Style) Resolver {
	r := Resolver{overrides: make(map[Kind]Style, len(overrides))}
	for k, s := range overrides {
		if s == "" {
			continue
		}
		r.overrides[k] = s
	}
	return r
}

// Resolve maps a raw state string to its style.
func (r Resolver) Resolve(state string) Style {
	return r.StyleOf(ParseState(state))
}

// StyleOf maps a parsed state to its style.
func (r Resolver) StyleOf(s State) Style {
	if st, ok := r.overrides[s.kind]; ok {
		return st
	}
	switch s.kind {
	case KindStarting:
		return StylePrimary
	case KindStarted:
		return StyleSuccess
	case KindStopped:
		return StyleDefault
	case KindFailed, KindUnreachable:
		return StyleDanger
	case KindUnknown:
		return StyleUnknown
	}
	return StyleUnknown
}

// Resolve maps a raw state string to its style using the default mapping.
func Resolve(state string) Style {
	return DefaultResolver.Resolve(state)
}
