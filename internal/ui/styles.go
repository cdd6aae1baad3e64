package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	Primary    = lipgloss.Color("#22d3ee") // Cyan accent
	Secondary  = lipgloss.Color("#7C3AED") // Violet
	Success    = lipgloss.Color("#10B981") // Emerald
	Warning    = lipgloss.Color("#F59E0B") // Amber
	Error      = lipgloss.Color("#EF4444") // Red
	Muted      = lipgloss.Color("#6B7280") // Gray
	Foreground = lipgloss.Color("#F9FAFB") // Light gray
	Background = lipgloss.Color("#111827") // Dark gray
)

// Text styles
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Primary).
			MarginBottom(1)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(Success).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(Warning)

	MutedStyle = lipgloss.NewStyle().
			Foreground(Muted)

	BoldStyle = lipgloss.NewStyle().
			Bold(true)

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(Primary)

	StatusBarStyle = lipgloss.NewStyle().
			Foreground(Foreground).
			Background(Background).
			Padding(0, 1)
)

// Icons
const (
	IconSuccess = "✓"
	IconError   = "✗"
	IconInfo    = "ℹ"
	IconUser    = "●"
)

func PrintError(message string) {
	fmt.Printf("%s %s\n", ErrorStyle.Render(IconError), message)
}

func PrintSuccess(message string) {
	fmt.Printf("%s %s\n", SuccessStyle.Render(IconSuccess), message)
}

func PrintInfo(message string) {
	fmt.Printf("%s %s\n", MutedStyle.Render(IconInfo), message)
}
