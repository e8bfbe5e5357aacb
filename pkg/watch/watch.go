// Package watch polls a lifecycle endpoint and reports badges and state transitions.
package watch

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/lifebadge/pkg/badge"
	"github.com/umputun/lifebadge/pkg/lifecycle"
	"github.com/umputun/lifebadge/pkg/notify"
	"github.com/umputun/lifebadge/pkg/status"
)

// DefaultInterval is used when no poll interval is configured.
const DefaultInterval = 10 * time.Second

//go:generate moq -out mocks/fetcher.go -pkg mocks -skip-ensure -fmt goimports . Fetcher

// Fetcher reads the lifecycle status of a target.
type Fetcher interface {
	Fetch(ctx context.Context, t lifecycle.Target) (status.LifecycleStatus, error)
}

// Publisher receives every computed badge and every state transition, e.g. the dashboard.
type Publisher interface {
	Publish(b badge.Badge)
	PublishTransition(from string, b badge.Badge)
}

// Notifier sends out-of-band notifications for transitions.
type Notifier interface {
	Send(ctx context.Context, tr notify.Transition)
}

// Config holds the watcher dependencies and settings.
type Config struct {
	Target    lifecycle.Target
	Interval  time.Duration  // poll interval, DefaultInterval if zero
	Fetcher   Fetcher        // required
	Builder   *badge.Builder // default resolver if nil
	Publisher Publisher      // optional
	Notifier  Notifier       // optional
	OnBadge   func(badge.Badge)
	Logger    lgr.L
}

// Watcher polls the target, keeps the latest state in a status.Holder and reports
// transitions between state kinds. a change of reason alone, or between two unknown
// state names, is not a transition.
type Watcher struct {
	cfg    Config
	holder *status.Holder
	checks atomic.Int64
	last   atomic.Pointer[badge.Badge]

	// set by check before updating the holder, read by the holder callback on the same goroutine
	pending badge.Badge
	ctx     context.Context //nolint:containedctx // scoped to a single check
}

// New makes a watcher. it returns an error if no fetcher is given.
func New(cfg Config) (*Watcher, error) {
	if cfg.Fetcher == nil {
		return nil, errors.New("watch: fetcher is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Builder == nil {
		cfg.Builder = badge.NewBuilder(status.DefaultResolver)
	}
	if cfg.Logger == nil {
		cfg.Logger = lgr.Default()
	}

	w := &Watcher{cfg: cfg, holder: &status.Holder{}}
	w.holder.OnChange(w.onChange)
	return w, nil
}

// Holder exposes the latest observed state.
func (w *Watcher) Holder() *status.Holder { return w.holder }

// Checks returns the number of completed checks.
func (w *Watcher) Checks() int64 { return w.checks.Load() }

// Last returns the badge of the latest completed check.
func (w *Watcher) Last() (badge.Badge, bool) {
	b := w.last.Load()
	if b == nil {
		return badge.Badge{}, false
	}
	return *b, true
}

// Run checks the target immediately and then on every interval until ctx is canceled.
// fetch failures never stop the loop, they show up as Unreachable badges.
func (w *Watcher) Run(ctx context.Context) error {
	w.cfg.Logger.Logf("[INFO] watching %s every %s", w.cfg.Target, w.cfg.Interval)
	w.Check(ctx)

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.Check(ctx)
		}
	}
}

// Check performs a single fetch, updates the holder and publishes the resulting badge.
// not safe for concurrent use, Run calls it from a single goroutine.
func (w *Watcher) Check(ctx context.Context) badge.Badge {
	target := w.cfg.Target.String()

	var b badge.Badge
	var state status.State
	st, err := w.cfg.Fetcher.Fetch(ctx, w.cfg.Target)
	if err != nil {
		if ctx.Err() != nil {
			// shutting down, the failure says nothing about the target
			if last, ok := w.Last(); ok {
				return last
			}
		}
		w.cfg.Logger.Logf("[DEBUG] check of %s failed: %v", target, err)
		b = w.cfg.Builder.FromError(target, err)
		state = status.Unreachable()
	} else {
		state = status.ParseState(st.State)
		b = w.cfg.Builder.FromState(target, state, st.Reason)
	}

	w.pending, w.ctx = b, ctx
	w.holder.Set(state, b.Reason)
	w.pending, w.ctx = badge.Badge{}, nil

	w.last.Store(&b)
	w.checks.Add(1)
	if w.cfg.Publisher != nil {
		w.cfg.Publisher.Publish(b)
	}
	if w.cfg.OnBadge != nil {
		w.cfg.OnBadge(b)
	}
	return b
}

// onChange is the holder callback, it filters out changes that keep the same kind.
func (w *Watcher) onChange(old, cur status.State, reason string) {
	if old.Kind() == cur.Kind() {
		return
	}
	w.cfg.Logger.Logf("[INFO] %s changed %s -> %s", w.cfg.Target, old, cur)

	b := w.pending
	if w.cfg.Publisher != nil {
		w.cfg.Publisher.PublishTransition(old.String(), b)
	}
	if w.cfg.Notifier != nil {
		ctx := w.ctx
		if ctx == nil {
			ctx = context.Background()
		}
		w.cfg.Notifier.Send(ctx, notify.NewTransition(w.cfg.Target.String(), old, cur, reason, b.CheckedAt))
	}
}
