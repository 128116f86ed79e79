// Package style holds the garden palette used by every command.
package style

import "github.com/charmbracelet/lipgloss"

// Palette.
var (
	Primary = lipgloss.Color("#16A34A") // leaf
	Sprout  = lipgloss.Color("#86EFAC")
	Soil    = lipgloss.Color("#A16207")
	Bloom   = lipgloss.Color("#EAB308")
	Blight  = lipgloss.Color("#EF4444")
	Cyan    = lipgloss.Color("#06B6D4")
	Stone   = lipgloss.Color("#6B7280")
	Chalk   = lipgloss.Color("#F9FAFB")
)

func fg(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }

func box(c lipgloss.Color) lipgloss.Style {
	return fg(c).Border(lipgloss.RoundedBorder()).BorderForeground(c).Padding(0, 1).MarginTop(1)
}

var (
	Banner   = fg(Primary).Bold(true).MarginBottom(1)
	Subtitle = fg(Stone).Italic(true)
	Bold     = fg(Chalk).Bold(true)
	DimText  = fg(Stone)
	Hint     = DimText.MarginTop(1)

	Healthy   = fg(Sprout).Bold(true)
	Unhealthy = fg(Blight).Bold(true)
	Warning   = fg(Bloom)

	StrategyBadge = fg(Cyan).Bold(true).Padding(0, 1)

	// console timeline
	StepRunning = fg(Bloom).Bold(true)
	StepDone    = fg(Sprout)
	StepFailed  = fg(Blight).Bold(true)

	AgentLine = fg(Primary)
	UserLine  = fg(Soil).Bold(true)

	TableHeader = fg(Primary).Bold(true).PaddingRight(2).
			BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).BorderForeground(Stone)

	ErrorBox   = box(Blight)
	SuccessBox = box(Sprout)

	Key = DimText.Width(14)
	Val = fg(Chalk)
)

// ServiceDot colours a dashboard service status.
func ServiceDot(status string) string {
	switch status {
	case "healthy", "up":
		return Healthy.Render("●")
	case "warning":
		return Warning.Render("●")
	case "down", "failed":
		return Unhealthy.Render("●")
	}
	return DimText.Render("●")
}

// PhaseStyle picks the text style for a deployment phase.
func PhaseStyle(phase string) lipgloss.Style {
	switch phase {
	case "succeeded", "promoted":
		return StepDone
	case "failed":
		return StepFailed
	case "running":
		return StepRunning
	}
	return DimText
}
