// Package tui renders terminal output for autocompose.
//
// Colors use AdaptiveColor for light/dark terminal support. Call
// CheckNoColor at the start of a command to honor NO_COLOR and TERM=dumb.
package tui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//nolint:gochecknoglobals // Intentional package-level constants for styling
var (
	// ColorPrimary is blue, used for headings and the published slot.
	ColorPrimary = lipgloss.AdaptiveColor{Light: "#0087AF", Dark: "#00D7FF"}

	// ColorSuccess is green, used for successful cycles.
	ColorSuccess = lipgloss.AdaptiveColor{Light: "#008700", Dark: "#00FF87"}

	// ColorWarning is yellow, used for unchanged cycles.
	ColorWarning = lipgloss.AdaptiveColor{Light: "#AF8700", Dark: "#FFD700"}

	// ColorError is red, used for failed cycles.
	ColorError = lipgloss.AdaptiveColor{Light: "#AF0000", Dark: "#FF5F5F"}

	// ColorMuted is gray, used for secondary text.
	ColorMuted = lipgloss.AdaptiveColor{Light: "#585858", Dark: "#6C6C6C"}

	// StyleBold applies bold formatting to text.
	StyleBold = lipgloss.NewStyle().Bold(true)

	// StyleDim applies dim formatting to text.
	StyleDim = lipgloss.NewStyle().Faint(true)
)

// Result icons.
const (
	IconSuccess = "✓"
	IconFailed  = "✗"
	IconNone    = "·"
)

// TableStyles holds the styles used by Table.
type TableStyles struct {
	Header lipgloss.Style
	Cell   lipgloss.Style
	Dim    lipgloss.Style
}

// NewTableStyles creates styles for table rendering.
func NewTableStyles() *TableStyles {
	return &TableStyles{
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#333333", Dark: "#DDDDDD"}),
		Cell: lipgloss.NewStyle(),
		Dim:  lipgloss.NewStyle().Foreground(ColorMuted),
	}
}

// OutputStyles holds common output styles.
type OutputStyles struct {
	Title   lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Dim     lipgloss.Style
}

// NewOutputStyles creates common output styles.
func NewOutputStyles() *OutputStyles {
	return &OutputStyles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary),
		Success: lipgloss.NewStyle().Foreground(ColorSuccess),
		Error:   lipgloss.NewStyle().Foreground(ColorError),
		Warning: lipgloss.NewStyle().Foreground(ColorWarning),
		Dim:     lipgloss.NewStyle().Foreground(ColorMuted),
	}
}

// ResultCell returns the styled and plain renderings of a cycle result.
func ResultCell(success bool) (styled, plain string) {
	s := NewOutputStyles()
	if success {
		plain = IconSuccess + " success"
		return s.Success.Render(plain), plain
	}
	plain = IconFailed + " failed"
	return s.Error.Render(plain), plain
}

// Title returns s in title case, e.g. "treecompose" → "Treecompose".
func Title(s string) string {
	return cases.Title(language.English).String(s)
}

// CheckNoColor disables colors when the terminal does not want them.
func CheckNoColor() {
	if !HasColorSupport() {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// HasColorSupport returns false if NO_COLOR is set (to any value) or
// TERM=dumb.
func HasColorSupport() bool {
	if _, exists := os.LookupEnv("NO_COLOR"); exists {
		return false
	}
	return os.Getenv("TERM") != "dumb"
}
