package badge

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Format is an output format for a badge.
type Format string

// Format constants.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatHTML Format = "html"
)

// ParseFormat validates a format name, empty means text.
func ParseFormat(v string) (Format, error) {
	switch Format(v) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON, FormatYAML, FormatHTML:
		return Format(v), nil
	default:
		return "", fmt.Errorf("unknown format %q, expected text, json, yaml or html", v)
	}
}

// JSON returns the badge as JSON bytes.
func (b Badge) JSON() ([]byte, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("marshal badge: %w", err)
	}
	return data, nil
}

// Write renders the badge to w in the given format.
func Write(w io.Writer, f Format, b Badge, colors *Colors) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(b); err != nil {
			return fmt.Errorf("encode json badge: %w", err)
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(b); err != nil {
			return fmt.Errorf("encode yaml badge: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("close yaml encoder: %w", err)
		}
		return nil
	case FormatHTML:
		sink := NewHTMLSink(w)
		Render(sink, b)
		return sink.Flush()
	default:
		sink := NewTerminalSink(w, colors)
		Render(sink, b)
		return sink.Flush()
	}
}
