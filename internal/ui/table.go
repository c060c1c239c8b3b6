package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/GZancewicz/web-conference/internal/roster"
)

// RenderRoster renders the current participants as a table. selfName is
// shown first so the user always sees their own row.
func RenderRoster(selfName string, audioOn, videoOn bool, entries []roster.Entry) string {
	rows := [][]string{
		{SelfStyle.Render(selfName + " (you)"), flag(audioOn), flag(videoOn)},
	}
	for _, e := range entries {
		rows = append(rows, []string{e.DisplayName, flag(e.AudioEnabled), flag(e.VideoEnabled)})
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers("Participant", "Mic", "Cam").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return TableHeaderStyle
			}
			return TableRowStyle
		})

	return tbl.Render()
}

func flag(on bool) string {
	if on {
		return SuccessStyle.Render("on")
	}
	return MutedStyle.Render("off")
}
