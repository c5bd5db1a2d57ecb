package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/brensch/teamgrid/game"
)

type styles struct {
	header lipgloss.Style
	panel  lipgloss.Style
	title  lipgloss.Style
	status lipgloss.Style
	errMsg lipgloss.Style
	help   lipgloss.Style
	free   lipgloss.Style
	wall   lipgloss.Style
	coin   lipgloss.Style
	self   lipgloss.Style
	other  lipgloss.Style
}

func defaultStyles() styles {
	gold := lipgloss.Color("#ffd166")
	teal := lipgloss.Color("#06d6a0")
	rose := lipgloss.Color("#ef476f")
	muted := lipgloss.Color("#8d99ae")
	return styles{
		header: lipgloss.NewStyle().Bold(true).Foreground(teal).
			BorderStyle(lipgloss.RoundedBorder()).BorderForeground(teal).Padding(0, 1),
		panel:  lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(muted).Padding(0, 1),
		title:  lipgloss.NewStyle().Bold(true).Foreground(gold),
		status: lipgloss.NewStyle().Foreground(teal),
		errMsg: lipgloss.NewStyle().Foreground(rose).Bold(true),
		help:   lipgloss.NewStyle().Foreground(muted),
		free:   lipgloss.NewStyle().Foreground(muted),
		wall:   lipgloss.NewStyle().Foreground(lipgloss.Color("#5c677d")),
		coin:   lipgloss.NewStyle().Foreground(gold).Bold(true),
		self:   lipgloss.NewStyle().Foreground(teal).Bold(true),
		other:  lipgloss.NewStyle().Foreground(rose),
	}
}

// renderMap draws a local map as a fixed-width grid.
func (s styles) renderMap(m game.LocalMap, owner string) string {
	var b strings.Builder
	for i := 0; i < game.ViewSize; i++ {
		for j := 0; j < game.ViewSize; j++ {
			label := m[i][j]
			var cell string
			switch {
			case label == game.LabelFree:
				cell = s.free.Width(9).Render(label)
			case label == game.LabelWall:
				cell = s.wall.Width(9).Render(label)
			case strings.Contains(label, game.CoinMarker):
				cell = s.coin.Width(9).Render(label)
			case label == owner:
				cell = s.self.Width(9).Render(label)
			default:
				cell = s.other.Width(9).Render(label)
			}
			b.WriteString(cell)
		}
		if i < game.ViewSize-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}
