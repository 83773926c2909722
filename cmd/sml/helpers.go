package main

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

var (
	styleSuccess = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleError   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	styleWarn    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	styleMuted   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleHeading = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
)

// colorEnabled returns true if colored output should be used (respects --no-color and NO_COLOR env).
// NO_COLOR: if set (any value), color is disabled per https://no-color.org
func colorEnabled() bool {
	if noColor {
		return false
	}
	return os.Getenv("NO_COLOR") == ""
}

func paint(style lipgloss.Style, s string) string {
	if !colorEnabled() {
		return s
	}
	return style.Render(s)
}

func colorGreen(s string) string  { return paint(styleSuccess, s) }
func colorRed(s string) string    { return paint(styleError, s) }
func colorYellow(s string) string { return paint(styleWarn, s) }
func colorMuted(s string) string  { return paint(styleMuted, s) }
func heading(s string) string     { return paint(styleHeading, s) }

// enabledMark renders a mod or plugin state for tables
func enabledMark(enabled bool) string {
	if enabled {
		return colorGreen("enabled")
	}
	return colorMuted("disabled")
}

// formatSize renders a byte count like "12 MB"
func formatSize(bytes int64) string {
	if bytes < 0 {
		return "-"
	}
	return humanize.Bytes(uint64(bytes))
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
