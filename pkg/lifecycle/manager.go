package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/lifebadge/pkg/status"
)

// Manager tracks the lifecycle of the local process and serves it on the lifecycle endpoint.
// a new manager starts in the Starting state.
type Manager struct {
	holder *status.Holder
	log    lgr.L
	srv    *http.Server
}

// NewManager makes a manager in the Starting state.
func NewManager(log lgr.L) *Manager {
	if log == nil {
		log = lgr.Default()
	}
	m := &Manager{holder: &status.Holder{}, log: log}
	m.holder.Set(status.ParseState(status.NameStarting), "")
	return m
}

// Holder exposes the underlying state holder.
func (m *Manager) Holder() *status.Holder { return m.holder }

// NotifyStarting moves back into the Starting state.
func (m *Manager) NotifyStarting() {
	m.set(status.NameStarting, "")
}

// NotifyStarted marks the process as started.
func (m *Manager) NotifyStarted() {
	m.set(status.NameStarted, "")
}

// NotifyStopped marks the process as stopped with an optional reason.
func (m *Manager) NotifyStopped(reason string) {
	m.set(status.NameStopped, reason)
}

// NotifyStartFailed marks the process as failed, the error message becomes the reason.
func (m *Manager) NotifyStartFailed(err error) {
	reason := ""
	if err != nil {
		reason = err.Error()
	}
	m.set(status.NameFailed, reason)
}

// Set publishes an arbitrary state, including values outside the known set.
func (m *Manager) Set(state, reason string) {
	m.set(state, reason)
}

func (m *Manager) set(state, reason string) {
	m.holder.Set(status.ParseState(state), reason)
	m.log.Logf("[INFO] lifecycle state %s %s", state, reason)
}

// ServeHTTP serves the current status as json. only GET is allowed.
func (m *Manager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data, err := json.Marshal(m.holder.Status())
	if err != nil {
		m.log.Logf("[WARN] failed to encode lifecycle status: %v", err)
		http.Error(w, "unable to encode lifecycle", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*") // admin console fetches cross-origin
	_, _ = w.Write(data)
}

// Handler returns a mux with the lifecycle endpoint registered at Path.
func (m *Manager) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(Path, m)
	return mux
}

// Serve listens on the given port until ctx is canceled.
func (m *Manager) Serve(ctx context.Context, port int) error {
	m.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           m.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = m.srv.Shutdown(shutdownCtx)
	}()

	err := m.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return fmt.Errorf("lifecycle server: %w", err)
}
