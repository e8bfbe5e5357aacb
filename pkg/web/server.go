package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/tmaxmax/go-sse"

	"github.com/umputun/lifebadge/pkg/badge"
)

//go:embed templates static
var content embed.FS

// ServerConfig holds configuration for the web server.
type ServerConfig struct {
	Port   int    // port to listen on
	Title  string // page title, defaults to "lifebadge"
	Target string // watched target, shown in the header
}

// Server provides HTTP server for the live status dashboard.
type Server struct {
	cfg    ServerConfig
	hub    *Hub
	buffer *Buffer
	log    lgr.L
	tmpl   *template.Template
	srv    *http.Server
	seq    atomic.Int64
}

// NewServer creates a new web server. the index template is parsed once here.
func NewServer(cfg ServerConfig, hub *Hub, buffer *Buffer, log lgr.L) (*Server, error) {
	if cfg.Title == "" {
		cfg.Title = "lifebadge"
	}
	if log == nil {
		log = lgr.Default()
	}
	tmpl, err := template.ParseFS(content, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Server{cfg: cfg, hub: hub, buffer: buffer, log: log, tmpl: tmpl}, nil
}

// Publish records a freshly computed badge and pushes it to connected clients.
func (s *Server) Publish(b badge.Badge) {
	s.publish(NewBadgeEvent(b))
}

// PublishTransition records a state change and pushes it to connected clients.
func (s *Server) PublishTransition(from string, b badge.Badge) {
	s.publish(NewTransitionEvent(from, b))
}

func (s *Server) publish(e Event) {
	e.Seq = s.seq.Add(1)
	s.buffer.Add(e)
	s.hub.Broadcast(e)
}

// Current returns the latest published badge.
func (s *Server) Current() (badge.Badge, bool) {
	e, ok := s.buffer.Last(EventTypeBadge)
	return e.Badge, ok
}

// Handler returns the dashboard routes.
func (s *Server) Handler() (http.Handler, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/events", s.handleEvents)
	mux.HandleFunc("/api/badge", s.handleBadge)
	mux.HandleFunc("/api/history", s.handleHistory)

	staticFS, err := fs.Sub(content, "static")
	if err != nil {
		return nil, fmt.Errorf("static filesystem: %w", err)
	}
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))
	return mux, nil
}

// Start begins listening for HTTP requests.
// blocks until the context is canceled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	handler, err := s.Handler()
	if err != nil {
		return err
	}

	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.hub.Close() // ends open SSE streams so shutdown does not wait for them
		_ = s.srv.Shutdown(shutdownCtx)
	}()

	s.log.Logf("[INFO] dashboard listening on http://localhost:%d", s.cfg.Port)
	err = s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return fmt.Errorf("http server: %w", err)
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.hub.Close()
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	return nil
}

// Hub returns the server's event hub.
func (s *Server) Hub() *Hub { return s.hub }

// Buffer returns the server's event buffer.
func (s *Server) Buffer() *Buffer { return s.buffer }

// templateData holds data for the dashboard template.
type templateData struct {
	Title       string
	Target      string
	State       string
	Reason      string
	Class       string
	Transitions []Event
}

// handleIndex serves the dashboard page pre-rendered with the latest badge.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	data := templateData{Title: s.cfg.Title, Target: s.cfg.Target, State: "Checking"}
	if b, ok := s.Current(); ok {
		data.State, data.Reason, data.Class = b.State, b.Reason, b.Class
	}
	data.Transitions = s.buffer.ByType(EventTypeTransition)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.Execute(w, data); err != nil {
		s.log.Logf("[WARN] failed to render dashboard: %v", err)
		http.Error(w, "template execution error", http.StatusInternalServerError)
	}
}

// handleBadge serves the latest badge as JSON, 404 until the first check completes.
func (s *Server) handleBadge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	b, ok := s.Current()
	if !ok {
		http.Error(w, "no status yet", http.StatusNotFound)
		return
	}

	data, err := b.JSON()
	if err != nil {
		s.log.Logf("[WARN] failed to encode badge: %v", err)
		http.Error(w, "unable to encode badge", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

// handleHistory serves buffered events as a JSON array.
// ?type=transition narrows to one event type, ?limit=N keeps only the last N.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var events []Event
	switch typ := EventType(r.URL.Query().Get("type")); typ {
	case "":
		events = s.buffer.All()
	case EventTypeBadge, EventTypeTransition:
		events = s.buffer.ByType(typ)
	default:
		http.Error(w, "unknown event type", http.StatusBadRequest)
		return
	}

	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		if limit < len(events) {
			events = events[len(events)-limit:]
		}
	}
	if events == nil {
		events = []Event{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := writeJSON(w, events); err != nil {
		s.log.Logf("[WARN] failed to encode history: %v", err)
	}
}

// handleEvents serves the SSE stream: buffered transitions and the latest badge first,
// then live events until the client goes away or the hub closes.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sess, err := sse.Upgrade(w, r)
	if err != nil {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no") // disable nginx buffering

	eventCh := s.hub.Subscribe()
	defer s.hub.Unsubscribe(eventCh)

	s.streamEvents(r.Context(), sess, eventCh)
}

// streamEvents replays buffered transitions and the latest badge, then forwards live events.
// the subscription is taken before the snapshot, so live events already covered by the
// replay (seq not above the last replayed one) are skipped.
func (s *Server) streamEvents(ctx context.Context, sess *sse.Session, eventCh <-chan Event) {
	history := s.buffer.ByType(EventTypeTransition)
	if last, ok := s.buffer.Last(EventTypeBadge); ok {
		history = append(history, last)
	}
	var replayed int64
	for _, e := range history {
		replayed = max(replayed, e.Seq)
		if err := sendEvent(sess, e); err != nil {
			return
		}
	}
	if err := sess.Flush(); err != nil {
		return
	}

	for {
		select {
		case e, ok := <-eventCh:
			if !ok {
				return // hub closed
			}
			if e.Seq != 0 && e.Seq <= replayed {
				continue
			}
			if err := sendEvent(sess, e); err != nil {
				return
			}
			if err := sess.Flush(); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// sendEvent writes a single event as an SSE message, typed by the event type.
func sendEvent(sess *sse.Session, e Event) error {
	data, err := e.JSON()
	if err != nil {
		return err
	}
	msg := &sse.Message{Type: sse.Type(string(e.Type))}
	msg.AppendData(string(data))
	if err := sess.Send(msg); err != nil {
		return fmt.Errorf("send event: %w", err)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}
