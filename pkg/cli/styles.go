package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"alongc/pkg/compiler"
)

var (
	colorError = lipgloss.Color("#EF4444") // Red
	colorMuted = lipgloss.Color("#6B7280") // Gray
	colorOK    = lipgloss.Color("#10B981") // Emerald
)

var (
	errorLabelStyle = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true)

	lineStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	successStyle = lipgloss.NewStyle().
			Foreground(colorOK)
)

// renderDiagnostic formats e as "Line N: Kind: msg" with the kind highlighted.
// Without a color terminal lipgloss renders plain text.
func renderDiagnostic(e *compiler.Error) string {
	return fmt.Sprintf("%s %s %s",
		lineStyle.Render(fmt.Sprintf("Line %d:", e.Line)),
		errorLabelStyle.Render(e.Kind.String()+":"),
		e.Msg)
}
