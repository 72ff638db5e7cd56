package theme

import (
	"github.com/pterm/pterm"
)

// Theme defines the colours used by the terminal log handler and the route table
type Theme struct {
	Debug *pterm.Style
	Info  *pterm.Style
	Warn  *pterm.Style
	Error *pterm.Style

	Muted    *pterm.Style
	Counts   *pterm.Style
	Endpoint *pterm.Style
	Resource *pterm.Style

	// status colours for proxied responses
	Good    *pterm.Style
	Warning *pterm.Style
	Danger  *pterm.Style
}

// Default returns the default application theme
func Default() *Theme {
	return &Theme{
		Debug: pterm.NewStyle(pterm.FgLightBlue),
		Info:  pterm.NewStyle(pterm.FgGreen),
		Warn:  pterm.NewStyle(pterm.FgYellow, pterm.Bold),
		Error: pterm.NewStyle(pterm.FgRed, pterm.Bold),

		Muted:    pterm.NewStyle(pterm.FgGray),
		Counts:   pterm.NewStyle(pterm.FgLightMagenta),
		Endpoint: pterm.NewStyle(pterm.FgCyan, pterm.Bold),
		Resource: pterm.NewStyle(pterm.FgLightBlue),

		Good:    pterm.NewStyle(pterm.FgGreen),
		Warning: pterm.NewStyle(pterm.FgYellow),
		Danger:  pterm.NewStyle(pterm.FgRed),
	}
}

// Light returns a theme readable on light terminals
func Light() *Theme {
	return &Theme{
		Debug: pterm.NewStyle(pterm.FgBlue),
		Info:  pterm.NewStyle(pterm.FgBlack),
		Warn:  pterm.NewStyle(pterm.FgRed, pterm.Bold),
		Error: pterm.NewStyle(pterm.FgRed, pterm.Bold),

		Muted:    pterm.NewStyle(pterm.FgGray),
		Counts:   pterm.NewStyle(pterm.FgMagenta),
		Endpoint: pterm.NewStyle(pterm.FgBlue, pterm.Bold),
		Resource: pterm.NewStyle(pterm.FgBlue),

		Good:    pterm.NewStyle(pterm.FgGreen),
		Warning: pterm.NewStyle(pterm.FgRed),
		Danger:  pterm.NewStyle(pterm.FgRed, pterm.Bold),
	}
}

// GetTheme returns the theme by name, falling back to the default
func GetTheme(name string) *Theme {
	switch name {
	case "light":
		return Light()
	default:
		return Default()
	}
}

// ColourStatus picks the style for an HTTP status code
func (t *Theme) ColourStatus(status int) *pterm.Style {
	switch {
	case status >= 500:
		return t.Danger
	case status >= 400:
		return t.Warning
	default:
		return t.Good
	}
}

// ColourSplash Colours for the splash screen
func ColourSplash(message ...any) string {
	return pterm.LightCyan(message...)
}

// ColourVersion Colours Version numbers, used for the splash screen
func ColourVersion(message ...any) string {
	return pterm.LightYellow(message...)
}
