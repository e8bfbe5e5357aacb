package web

import (
	"time"

	"github.com/umputun/lifebadge/pkg/badge"
	"github.com/umputun/lifebadge/pkg/status"
)

// testBadge builds a badge for the given raw state with a fixed check time.
func testBadge(state, reason string) badge.Badge {
	b := badge.NewBuilder(status.DefaultResolver).FromState("app:8077", status.ParseState(state), reason)
	b.CheckedAt = time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)
	return b
}
