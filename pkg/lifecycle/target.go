// Package lifecycle fetches lifecycle status from remote services and publishes a local lifecycle endpoint.
package lifecycle

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// DefaultPort is the admin port lifecycle endpoints listen on.
const DefaultPort = 8077

// Path is the lifecycle endpoint path.
const Path = "/lifecycle"

// Target addresses a single lifecycle endpoint.
type Target struct {
	Host string
	Port int
	Tab  string // admin console tab from fragment addressing, carried but not used
}

// NewTarget makes a validated target. port 0 means DefaultPort.
func NewTarget(host string, port int) (Target, error) {
	if port == 0 {
		port = DefaultPort
	}
	t := Target{Host: strings.TrimSpace(host), Port: port}
	if err := t.Validate(); err != nil {
		return Target{}, fmt.Errorf("invalid target: %w", err)
	}
	return t, nil
}

// ParseFragment extracts a target from admin console addressing, e.g. "http://admin/#/host/tab".
// everything up to the first '#' is dropped, the rest is split on '/',
// segment 1 is the host and segment 2 the tab.
func ParseFragment(loc string) (Target, error) {
	frag := loc
	if i := strings.Index(loc, "#"); i >= 0 {
		frag = loc[i+1:]
	}
	parts := strings.Split(frag, "/")

	t := Target{Port: DefaultPort}
	if len(parts) > 1 {
		t.Host = strings.TrimSpace(parts[1])
	}
	if len(parts) > 2 {
		t.Tab = parts[2]
	}
	if err := t.Validate(); err != nil {
		return Target{}, fmt.Errorf("invalid fragment %q: %w", loc, err)
	}
	return t, nil
}

// Validate checks the host is a DNS name or IP and the port is in range.
func (t Target) Validate() error {
	return validation.ValidateStruct(&t, //nolint:wrapcheck // validation errors are user facing as-is
		validation.Field(&t.Host, validation.Required, is.Host),
		validation.Field(&t.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// Addr returns host:port.
func (t Target) Addr() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// URL returns the lifecycle endpoint url.
func (t Target) URL() string {
	return "http://" + t.Addr() + Path
}

// String implements fmt.Stringer.
func (t Target) String() string {
	return t.Addr()
}
