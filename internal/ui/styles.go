package ui

import "fmt"

// ANSI256 color codes matching the Ayu palette.
const (
	colorAccent = 74  // blue
	colorMuted  = 245 // medium gray
	colorOK     = 114 // green
	colorWarn   = 179 // amber
	colorError  = 203 // red
)

// Palette renders terminal text, with or without ANSI colors.
type Palette struct {
	color bool
}

// NewPalette returns a palette. Pass ShouldUseColor() for stdout.
func NewPalette(color bool) Palette {
	return Palette{color: color}
}

// Plain is a palette that never emits escape codes.
var Plain = Palette{}

func (p Palette) render(code int, s string) string {
	if !p.color {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// Accent returns s in the accent (blue) color.
func (p Palette) Accent(s string) string { return p.render(colorAccent, s) }

// Muted returns s in the muted (gray) color.
func (p Palette) Muted(s string) string { return p.render(colorMuted, s) }

// OK returns s in green.
func (p Palette) OK(s string) string { return p.render(colorOK, s) }

// Warn returns s in amber.
func (p Palette) Warn(s string) string { return p.render(colorWarn, s) }

// Error returns s in red.
func (p Palette) Error(s string) string { return p.render(colorError, s) }

// State colors a session state name: active is green, transitional states
// amber, idle muted.
func (p Palette) State(state string) string {
	switch state {
	case "active":
		return p.OK(state)
	case "acquiring", "stopping":
		return p.Warn(state)
	default:
		return p.Muted(state)
	}
}
