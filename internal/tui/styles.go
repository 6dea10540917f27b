package tui

import "github.com/charmbracelet/lipgloss"

// Color constants.
const (
	primaryColor = "#7C3AED" // Purple
	onlineColor  = "#10B981" // Green
	warningColor = "#F59E0B" // Amber
	errorColor   = "#EF4444" // Red
	dimColor     = "#6B7280" // Gray
)

// Style variables for consistent TUI rendering.
var (
	// TitleStyle renders view titles.
	TitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(primaryColor)).
			Bold(true)

	// SelectedStyle highlights the cursor row.
	SelectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(primaryColor)).
			Bold(true)

	// OnlineStyle marks sessions modified in the last ten minutes.
	OnlineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(onlineColor))

	// DimStyle renders dim/muted text.
	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(dimColor))

	// ErrorStyle renders error messages.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(errorColor))

	// WarningStyle renders the footer warning counter.
	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(warningColor))

	// FooterStyle renders the status footer.
	FooterStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#1F2937")).
			Foreground(lipgloss.Color("#9CA3AF")).
			Padding(0, 1)

	// DialogStyle frames the confirmation dialog.
	DialogStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(primaryColor)).
			Padding(1, 2)

	// ButtonStyle and ActiveButtonStyle render dialog buttons.
	ButtonStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(dimColor)).
			Padding(0, 2)
	ActiveButtonStyle = lipgloss.NewStyle().
				Background(lipgloss.Color(primaryColor)).
				Foreground(lipgloss.Color("#FFFFFF")).
				Padding(0, 2)
)
