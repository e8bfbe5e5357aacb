package watch

import (
	"context"
	"errors"
	"net"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/lifebadge/pkg/badge"
	"github.com/umputun/lifebadge/pkg/lifecycle"
	"github.com/umputun/lifebadge/pkg/notify"
	"github.com/umputun/lifebadge/pkg/status"
	"github.com/umputun/lifebadge/pkg/watch/mocks"
	"github.com/umputun/lifebadge/pkg/web"
)

type transition struct {
	from  string
	badge badge.Badge
}

type publisherRecorder struct {
	mu          sync.Mutex
	badges      []badge.Badge
	transitions []transition
}

func (p *publisherRecorder) Publish(b badge.Badge) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.badges = append(p.badges, b)
}

func (p *publisherRecorder) PublishTransition(from string, b badge.Badge) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transitions = append(p.transitions, transition{from: from, badge: b})
}

type notifierRecorder struct {
	mu   sync.Mutex
	sent []notify.Transition
}

func (n *notifierRecorder) Send(_ context.Context, tr notify.Transition) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, tr)
}

func (n *notifierRecorder) get() []notify.Transition {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Transition(nil), n.sent...)
}

// scripted returns a fetcher mock replaying the given results, repeating the last one.
func scripted(results ...any) *mocks.FetcherMock {
	var mu sync.Mutex
	i := 0
	return &mocks.FetcherMock{
		FetchFunc: func(context.Context, lifecycle.Target) (status.LifecycleStatus, error) {
			mu.Lock()
			defer mu.Unlock()
			r := results[min(i, len(results)-1)]
			i++
			if err, ok := r.(error); ok {
				return status.LifecycleStatus{}, err
			}
			return r.(status.LifecycleStatus), nil
		},
	}
}

func testTarget(t *testing.T) lifecycle.Target {
	t.Helper()
	tg, err := lifecycle.NewTarget("app1", 0)
	require.NoError(t, err)
	return tg
}

func TestNew(t *testing.T) {
	t.Run("fetcher required", func(t *testing.T) {
		_, err := New(Config{})
		require.Error(t, err)
	})

	t.Run("defaults", func(t *testing.T) {
		w, err := New(Config{Fetcher: scripted(status.LifecycleStatus{State: "Started"})})
		require.NoError(t, err)
		assert.Equal(t, DefaultInterval, w.cfg.Interval)
		assert.NotNil(t, w.cfg.Builder)
		assert.NotNil(t, w.cfg.Logger)
		_, ok := w.Last()
		assert.False(t, ok)
	})
}

func TestWatcher_Check(t *testing.T) {
	pub := &publisherRecorder{}
	ntf := &notifierRecorder{}
	fetcher := scripted(
		status.LifecycleStatus{State: "Starting"},
		status.LifecycleStatus{State: "Started"},
		status.LifecycleStatus{State: "Started", Reason: "warm"},
		errors.New("connection refused"),
		status.LifecycleStatus{State: "Failed", Reason: "OOM"},
		status.LifecycleStatus{State: "Started"},
	)

	var onBadge []string
	w, err := New(Config{
		Target:    testTarget(t),
		Fetcher:   fetcher,
		Publisher: pub,
		Notifier:  ntf,
		OnBadge:   func(b badge.Badge) { onBadge = append(onBadge, b.State) },
		Logger:    lgr.NoOp,
	})
	require.NoError(t, err)

	ctx := context.Background()

	b := w.Check(ctx)
	assert.Equal(t, "Starting", b.State)
	assert.Equal(t, "label-primary", b.Class)

	b = w.Check(ctx)
	assert.Equal(t, "label-success", b.Class)

	b = w.Check(ctx) // reason change only
	assert.Equal(t, "warm", b.Reason)

	b = w.Check(ctx)
	assert.Equal(t, "Unreachable", b.State)
	assert.Equal(t, "label-danger", b.Class)
	assert.Contains(t, b.Reason, "connection refused")

	b = w.Check(ctx)
	assert.Equal(t, "Failed", b.State)

	b = w.Check(ctx)
	assert.Equal(t, "Started", b.State)

	assert.Equal(t, int64(6), w.Checks())
	assert.Len(t, fetcher.FetchCalls(), 6)
	assert.Equal(t, "app1", fetcher.FetchCalls()[0].T.Host)
	assert.Equal(t, []string{"Starting", "Started", "Started", "Unreachable", "Failed", "Started"}, onBadge)

	last, ok := w.Last()
	require.True(t, ok)
	assert.Equal(t, "Started", last.State)

	state, reason := w.Holder().Get()
	assert.Equal(t, status.KindStarted, state.Kind())
	assert.Empty(t, reason)

	// every check is published, only kind changes are transitions
	assert.Len(t, pub.badges, 6)
	require.Len(t, pub.transitions, 5)
	assert.Equal(t, "Unknown", pub.transitions[0].from)
	assert.Equal(t, "Starting", pub.transitions[0].badge.State)
	assert.Equal(t, "Started", pub.transitions[2].from)
	assert.Equal(t, "Unreachable", pub.transitions[2].badge.State)
	assert.Equal(t, "Unreachable", pub.transitions[3].from)
	assert.Equal(t, "Failed", pub.transitions[3].badge.State)

	sent := ntf.get()
	require.Len(t, sent, 5)
	assert.Equal(t, "app1:8077", sent[2].Target)
	assert.True(t, sent[2].IsFailure())
	assert.True(t, sent[3].IsFailure())
	assert.Equal(t, "OOM", sent[3].Reason)
	assert.True(t, sent[4].IsRecovery())
	assert.False(t, sent[1].IsFailure() || sent[1].IsRecovery())
}

func TestWatcher_Check_UnknownNamesAreOneKind(t *testing.T) {
	pub := &publisherRecorder{}
	w, err := New(Config{
		Target:    testTarget(t),
		Fetcher:   scripted(status.LifecycleStatus{State: "Degraded"}, status.LifecycleStatus{State: "Paused"}),
		Publisher: pub,
		Logger:    lgr.NoOp,
	})
	require.NoError(t, err)

	b := w.Check(context.Background())
	assert.Equal(t, "label-warning", b.Class)
	b = w.Check(context.Background())
	assert.Equal(t, "Paused", b.State)
	assert.Equal(t, "label-warning", b.Class)

	assert.Empty(t, pub.transitions, "initial zero state and unknown names share a kind")
	assert.Len(t, pub.badges, 2)
}

func TestWatcher_Check_CanceledContextKeepsLastBadge(t *testing.T) {
	w, err := New(Config{
		Target:  testTarget(t),
		Fetcher: scripted(status.LifecycleStatus{State: "Started"}, context.Canceled),
		Logger:  lgr.NoOp,
	})
	require.NoError(t, err)

	w.Check(context.Background())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := w.Check(ctx)
	assert.Equal(t, "Started", b.State)
	assert.Equal(t, int64(1), w.Checks())
}

func TestWatcher_Run(t *testing.T) {
	fetcher := scripted(status.LifecycleStatus{State: "Started"})
	w, err := New(Config{Target: testTarget(t), Fetcher: fetcher, Interval: 10 * time.Millisecond, Logger: lgr.NoOp})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return w.Checks() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcher_WithManagerAndDashboard(t *testing.T) {
	mgr := lifecycle.NewManager(lgr.NoOp)
	ts := httptest.NewServer(mgr.Handler())
	defer ts.Close()

	host, portStr, err := net.SplitHostPort(ts.Listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	target, err := lifecycle.NewTarget(host, port)
	require.NoError(t, err)

	dash, err := web.NewServer(web.ServerConfig{Target: target.String()}, web.NewHub(), web.NewBuffer(0), lgr.NoOp)
	require.NoError(t, err)

	ntf := &notifierRecorder{}
	w, err := New(Config{
		Target:    target,
		Fetcher:   lifecycle.NewClient(lifecycle.ClientOpts{Timeout: time.Second, Logger: lgr.NoOp}),
		Publisher: dash,
		Notifier:  ntf,
		Logger:    lgr.NoOp,
	})
	require.NoError(t, err)

	ctx := context.Background()
	assert.Equal(t, "Starting", w.Check(ctx).State)

	mgr.NotifyStarted()
	assert.Equal(t, "Started", w.Check(ctx).State)

	mgr.NotifyStartFailed(errors.New("db migration failed"))
	b := w.Check(ctx)
	assert.Equal(t, "Failed", b.State)
	assert.Equal(t, "db migration failed", b.Reason)
	assert.Equal(t, "label-danger", b.Class)

	cur, ok := dash.Current()
	require.True(t, ok)
	assert.Equal(t, "Failed", cur.State)
	assert.Len(t, dash.Buffer().ByType(web.EventTypeTransition), 3)

	sent := ntf.get()
	require.Len(t, sent, 3)
	assert.Equal(t, "Started", sent[2].From)
	assert.Equal(t, "Failed", sent[2].To)
	assert.True(t, sent[2].IsFailure())
}
