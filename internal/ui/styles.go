package ui

import "github.com/charmbracelet/lipgloss"

var (
	ColorAmber  = lipgloss.Color("214")
	ColorGreen  = lipgloss.Color("77")
	ColorRed    = lipgloss.Color("203")
	ColorDim    = lipgloss.Color("241")
	ColorBright = lipgloss.Color("255")

	StyleTitle  = lipgloss.NewStyle().Foreground(ColorAmber).Bold(true)
	StyleLabel  = lipgloss.NewStyle().Foreground(ColorDim)
	StyleValue  = lipgloss.NewStyle().Foreground(ColorBright).Bold(true)
	StyleMode   = lipgloss.NewStyle().Foreground(ColorGreen).Bold(true)
	StyleSettle = lipgloss.NewStyle().Foreground(ColorAmber)
	StyleError  = lipgloss.NewStyle().Foreground(ColorRed)
	StyleHelp   = lipgloss.NewStyle().Foreground(ColorDim)
	StyleLog    = lipgloss.NewStyle().Foreground(ColorDim)
)
