package badge

import (
	"fmt"
	"html/template"
	"io"
	"strings"
	"sync"

	"github.com/umputun/lifebadge/pkg/config"
)

// Sink receives a rendered badge. implementations own the actual output.
type Sink interface {
	SetStateText(text string)
	SetReasonText(text string)
	AddClass(class string)
}

// Render pushes the badge into the sink: state text, reason text, then the style class.
func Render(sink Sink, b Badge) {
	sink.SetStateText(b.State)
	sink.SetReasonText(b.Reason)
	sink.AddClass(b.Class)
}

// Recorder is an in-memory sink, safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	state   string
	reason  string
	classes []string
}

// SetStateText implements Sink.
func (r *Recorder) SetStateText(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = text
}

// SetReasonText implements Sink.
func (r *Recorder) SetReasonText(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reason = text
}

// AddClass implements Sink. duplicate classes are kept once.
func (r *Recorder) AddClass(class string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.classes {
		if c == class {
			return
		}
	}
	r.classes = append(r.classes, class)
}

// State returns the recorded state text.
func (r *Recorder) State() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Reason returns the recorded reason text.
func (r *Recorder) Reason() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reason
}

// Classes returns a copy of the recorded classes.
func (r *Recorder) Classes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]string, len(r.classes))
	copy(res, r.classes)
	return res
}

// TerminalSink prints the badge as a colored line, e.g. "[ Started ] ok".
// the line is written on Flush once all three parts are set.
type TerminalSink struct {
	w      io.Writer
	colors *Colors
	state  string
	reason string
	class  string
}

// NewTerminalSink makes a terminal sink writing to w.
func NewTerminalSink(w io.Writer, colors *Colors) *TerminalSink {
	if colors == nil {
		colors = NewColors(config.ColorConfig{})
	}
	return &TerminalSink{w: w, colors: colors}
}

// SetStateText implements Sink.
func (s *TerminalSink) SetStateText(text string) { s.state = text }

// SetReasonText implements Sink.
func (s *TerminalSink) SetReasonText(text string) { s.reason = text }

// AddClass implements Sink.
func (s *TerminalSink) AddClass(class string) { s.class = class }

// Flush writes the badge line.
func (s *TerminalSink) Flush() error {
	label := s.colors.ForClass(s.class).Sprintf("[ %s ]", s.state)
	line := label
	if s.reason != "" {
		line += " " + s.colors.Reason().Sprint(s.reason)
	}
	if _, err := fmt.Fprintln(s.w, line); err != nil {
		return fmt.Errorf("write badge: %w", err)
	}
	return nil
}

var fragmentTmpl = template.Must(template.New("badge").Parse(
	`<span id="lifecycle-state" class="label {{.Class}}">{{.State}}</span> <span id="lifecycle-reason">{{.Reason}}</span>`))

// HTMLSink renders the badge as an html fragment with the admin console element ids.
type HTMLSink struct {
	w       io.Writer
	state   string
	reason  string
	classes []string
}

// NewHTMLSink makes an html sink writing to w.
func NewHTMLSink(w io.Writer) *HTMLSink {
	return &HTMLSink{w: w}
}

// SetStateText implements Sink.
func (s *HTMLSink) SetStateText(text string) { s.state = text }

// SetReasonText implements Sink.
func (s *HTMLSink) SetReasonText(text string) { s.reason = text }

// AddClass implements Sink.
func (s *HTMLSink) AddClass(class string) { s.classes = append(s.classes, class) }

// Flush writes the html fragment. text is escaped by html/template.
func (s *HTMLSink) Flush() error {
	data := struct{ State, Reason, Class string }{s.state, s.reason, strings.Join(s.classes, " ")}
	if err := fragmentTmpl.Execute(s.w, data); err != nil {
		return fmt.Errorf("render html badge: %w", err)
	}
	if _, err := io.WriteString(s.w, "\n"); err != nil {
		return fmt.Errorf("write html badge: %w", err)
	}
	return nil
}
