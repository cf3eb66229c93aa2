package main

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary = lipgloss.Color("#7C3AED")
	colorAccent  = lipgloss.Color("#10B981")
	colorBorder  = lipgloss.Color("#3F3F46")
	colorText    = lipgloss.Color("#E4E4E7")
	colorTextDim = lipgloss.Color("#A1A1AA")
	colorWarning = lipgloss.Color("#F59E0B")
)

var (
	headerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(colorTextDim)

	userLabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent)

	userBubbleStyle = lipgloss.NewStyle().
			Foreground(colorText).
			PaddingLeft(2)

	assistantLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorPrimary)

	messagesAreaStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colorBorder)

	inputPanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorPrimary).
			Padding(0, 1)

	noticeStyle = lipgloss.NewStyle().
			Foreground(colorWarning).
			Padding(1, 2)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(colorTextDim)

	loadingStyle = lipgloss.NewStyle().
			Foreground(colorPrimary)
)
