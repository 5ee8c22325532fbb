package tui

import "github.com/charmbracelet/lipgloss"

// Palette shared by the run view and the variant picker.
var (
	accent = lipgloss.Color("#bd93f9")
	muted  = lipgloss.Color("#6272a4")
	text   = lipgloss.Color("#f8f8f2")
	frame  = lipgloss.Color("#44475a")
)

var (
	AppStyle   = lipgloss.NewStyle().Padding(DefaultPaddingY, 2).Foreground(text)
	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(frame).
			Padding(DefaultPaddingY, DefaultPaddingX)

	TitleStyle = lipgloss.NewStyle().Foreground(accent).Bold(true)
	LabelStyle = lipgloss.NewStyle().Foreground(muted).Width(10)
	StatsStyle = lipgloss.NewStyle().Foreground(muted)
	HelpStyle  = lipgloss.NewStyle().Foreground(muted).Italic(true)

	ItemStyle         = lipgloss.NewStyle().Foreground(text)
	SelectedItemStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff79c6")).Bold(true)

	// Run phase banners
	WarningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffb86c"))
	SuccessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#50fa7b")).Bold(true)
	ErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5555")).Bold(true)
)
