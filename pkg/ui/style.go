package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/palaver/pkg/conversation"
)

type Style struct {
	Header       lipgloss.Style
	UserMessage  lipgloss.Style
	Assistant    lipgloss.Style
	SystemPrompt lipgloss.Style
	Role         lipgloss.Style
	Input        lipgloss.Style
	Error        lipgloss.Style
	Info         lipgloss.Style
}

type BorderColors struct {
	Unselected string
	Selected   string
	Focused    string
	Error      string
}

func DefaultStyles() *Style {
	lightModeColors := BorderColors{
		Unselected: "#CCCCCC",
		Selected:   "#FFB6C1", // Light pink
		Focused:    "#FFFF99", // Light yellow
		Error:      "#D70000",
	}

	darkModeColors := BorderColors{
		Unselected: "#444444",
		Selected:   "#DD7090", // Desaturated pink for dark mode
		Focused:    "#DDDD77", // Desaturated yellow for dark mode
		Error:      "#FF5F5F",
	}

	border := func(light, dark string) lipgloss.Style {
		return lipgloss.NewStyle().Border(lipgloss.NormalBorder()).
			Padding(0, 1).
			BorderForeground(lipgloss.AdaptiveColor{Light: light, Dark: dark})
	}

	return &Style{
		Header:       lipgloss.NewStyle().Bold(true).Padding(0, 1),
		UserMessage:  border(lightModeColors.Unselected, darkModeColors.Unselected),
		Assistant:    border(lightModeColors.Selected, darkModeColors.Selected),
		SystemPrompt: border(lightModeColors.Unselected, darkModeColors.Unselected).Faint(true),
		Role:         lipgloss.NewStyle().Bold(true),
		Input:        border(lightModeColors.Focused, darkModeColors.Focused),
		Error: lipgloss.NewStyle().Padding(0, 1).
			Foreground(lipgloss.AdaptiveColor{Light: lightModeColors.Error, Dark: darkModeColors.Error}),
		Info: lipgloss.NewStyle().Padding(0, 1).Faint(true),
	}
}

func (s *Style) messageStyle(role conversation.Role) lipgloss.Style {
	switch role {
	case conversation.RoleUser:
		return s.UserMessage
	case conversation.RoleSystem:
		return s.SystemPrompt
	default:
		return s.Assistant
	}
}
