package badge

import (
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/umputun/lifebadge/pkg/config"
	"github.com/umputun/lifebadge/pkg/status"
)

// default colors used when config leaves a style empty.
var defaultColors = map[status.Style]*color.Color{
	status.StylePrimary: color.New(color.FgBlue, color.Bold),
	status.StyleSuccess: color.New(color.FgGreen, color.Bold),
	status.StyleDefault: color.New(color.FgWhite),
	status.StyleDanger:  color.New(color.FgRed, color.Bold),
	status.StyleWarning: color.New(color.FgYellow, color.Bold),
}

// Colors holds terminal colors per badge style.
type Colors struct {
	byClass map[string]*color.Color
	reason  *color.Color
	plain   *color.Color
}

// NewColors makes Colors from config, each value is "r,g,b" as produced by the config loader.
// malformed or empty values fall back to the built-in colors.
func NewColors(cfg config.ColorConfig) *Colors {
	c := &Colors{
		byClass: make(map[string]*color.Color, len(status.Styles)),
		reason:  parseColorOrDefault(cfg.Reason, color.New(color.FgHiBlack)),
		plain:   color.New(),
	}
	configured := map[status.Style]string{
		status.StylePrimary: cfg.Primary,
		status.StyleSuccess: cfg.Success,
		status.StyleDefault: cfg.Default,
		status.StyleDanger:  cfg.Danger,
		status.StyleWarning: cfg.Warning,
	}
	for _, st := range status.Styles {
		c.byClass[st.Class()] = parseColorOrDefault(configured[st], defaultColors[st])
	}
	return c
}

// ForClass returns the color for a css class, uncolored for classes it does not know.
func (c *Colors) ForClass(class string) *color.Color {
	if col, ok := c.byClass[class]; ok {
		return col
	}
	return c.plain
}

// ForStyle returns the color for a style.
func (c *Colors) ForStyle(s status.Style) *color.Color {
	return c.ForClass(s.Class())
}

// Reason returns the color for the reason text.
func (c *Colors) Reason() *color.Color { return c.reason }

// parseColorOrDefault parses "r,g,b" into a bold rgb color.
func parseColorOrDefault(rgb string, def *color.Color) *color.Color {
	parts := strings.Split(rgb, ",")
	if len(parts) != 3 {
		return def
	}
	vals := make([]int, 3)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || v < 0 || v > 255 {
			return def
		}
		vals[i] = v
	}
	return color.RGB(vals[0], vals[1], vals[2]).Add(color.Bold)
}
