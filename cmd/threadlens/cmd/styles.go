package cmd

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Palette for terminal status output.
var (
	colorSuccess = lipgloss.Color("#10B981")
	colorWarning = lipgloss.Color("#F59E0B")
	colorError   = lipgloss.Color("#EF4444")
	colorMuted   = lipgloss.Color("#9CA3AF")
	colorAccent  = lipgloss.Color("#06B6D4")
)

// styles renders status lines for one writer. Colors are dropped when the
// writer is not a terminal or --no-color is set.
type styles struct {
	ok     lipgloss.Style
	warn   lipgloss.Style
	fail   lipgloss.Style
	muted  lipgloss.Style
	accent lipgloss.Style
	header lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	if noColor {
		plain := r.NewStyle()
		return styles{ok: plain, warn: plain, fail: plain, muted: plain, accent: plain, header: plain}
	}
	return styles{
		ok:     r.NewStyle().Foreground(colorSuccess).Bold(true),
		warn:   r.NewStyle().Foreground(colorWarning).Bold(true),
		fail:   r.NewStyle().Foreground(colorError).Bold(true),
		muted:  r.NewStyle().Foreground(colorMuted),
		accent: r.NewStyle().Foreground(colorAccent),
		header: r.NewStyle().Bold(true).Foreground(colorAccent),
	}
}
