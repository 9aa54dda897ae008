package output

import (
	"github.com/fatih/color"
)

// ColorScheme defines the colors used for different elements in the output
type ColorScheme struct {
	Title       *color.Color
	Rule        *color.Color
	Label       *color.Color
	Value       *color.Color
	StatusOK    *color.Color
	StatusWarn  *color.Color
	StatusError *color.Color
	Dim         *color.Color
}

// DefaultColorScheme returns the default color scheme
func DefaultColorScheme() *ColorScheme {
	return &ColorScheme{
		Title:       color.New(color.Bold),
		Rule:        color.New(color.FgCyan),
		Label:       color.New(color.FgYellow),
		Value:       color.New(color.FgCyan),
		StatusOK:    color.New(color.FgGreen, color.Bold),
		StatusWarn:  color.New(color.FgYellow, color.Bold),
		StatusError: color.New(color.FgRed, color.Bold),
		Dim:         color.New(color.Faint),
	}
}

// NoColorScheme returns a color scheme with all colors disabled
func NoColorScheme() *ColorScheme {
	scheme := DefaultColorScheme()

	for _, c := range scheme.all() {
		c.DisableColor()
	}

	return scheme
}

func (s *ColorScheme) all() []*color.Color {
	return []*color.Color{
		s.Title, s.Rule, s.Label, s.Value,
		s.StatusOK, s.StatusWarn, s.StatusError, s.Dim,
	}
}

// Status returns the color for an HTTP status code.
func (s *ColorScheme) Status(code int) *color.Color {
	switch {
	case code >= 200 && code < 300:
		return s.StatusOK
	case code >= 300 && code < 500:
		return s.StatusWarn
	default:
		return s.StatusError
	}
}

// Rate returns the color for an error rate between 0 and 1.
func (s *ColorScheme) Rate(errorRate float64) *color.Color {
	switch {
	case errorRate > 0.05:
		return s.StatusError
	case errorRate > 0.01:
		return s.StatusWarn
	default:
		return s.StatusOK
	}
}
