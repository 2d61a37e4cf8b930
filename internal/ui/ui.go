// Package ui provides the terminal styling helpers used by the CLI
// output paths.
package ui

import "github.com/charmbracelet/lipgloss"

var (
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")) // green
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11")) // yellow
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))  // red
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("14")) // cyan
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	boldStyle   = lipgloss.NewStyle().Bold(true)
)

// RenderPass styles text for successful outcomes.
func RenderPass(s string) string {
	return passStyle.Render(s)
}

// RenderWarn styles text for degraded-but-working states, like pending
// uploads or rejected records.
func RenderWarn(s string) string {
	return warnStyle.Render(s)
}

// RenderFail styles text for failures.
func RenderFail(s string) string {
	return failStyle.Render(s)
}

// RenderAccent styles identifiers and counts.
func RenderAccent(s string) string {
	return accentStyle.Render(s)
}

// RenderDim styles secondary detail.
func RenderDim(s string) string {
	return dimStyle.Render(s)
}

// RenderHeader styles section headers.
func RenderHeader(s string) string {
	return boldStyle.Render(s)
}

// RenderPassIcon returns the standard success marker.
func RenderPassIcon() string {
	return RenderPass("✓")
}

// RenderFailIcon returns the standard failure marker.
func RenderFailIcon() string {
	return RenderFail("✗")
}

// RenderWarnIcon returns the standard warning marker.
func RenderWarnIcon() string {
	return RenderWarn("!")
}
