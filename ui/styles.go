package ui

import "github.com/charmbracelet/lipgloss"

// Styles holds the lipgloss styles for the inspector.
type Styles struct {
	Title  lipgloss.Style
	Char   lipgloss.Style
	ESC    lipgloss.Style
	CSI    lipgloss.Style
	IAC    lipgloss.Style
	Flag   lipgloss.Style
	Dim    lipgloss.Style
	Prompt lipgloss.Style
}

// DefaultStyles returns the inspector's color scheme.
func DefaultStyles() Styles {
	return Styles{
		Title:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Char:   lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		ESC:    lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		CSI:    lipgloss.NewStyle().Foreground(lipgloss.Color("14")),
		IAC:    lipgloss.NewStyle().Foreground(lipgloss.Color("13")),
		Flag:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		Dim:    lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		Prompt: lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
	}
}
