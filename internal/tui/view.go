package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/surge-downloader/m3u8dl/internal/tui/components"
	"github.com/surge-downloader/m3u8dl/internal/utils"
)

func (m RunModel) View() string {
	width := m.width
	if width <= 0 {
		width = DefaultWidth
	}
	inner := width - ProgressBarWidthOffset*2
	if inner < 10 {
		inner = 10
	}

	rows := []string{
		TitleStyle.Render("m3u8dl"),
		lipgloss.JoinHorizontal(lipgloss.Left, LabelStyle.Render("URL"), truncate(m.URL, inner-10)),
	}
	if m.CacheDir != "" {
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Left, LabelStyle.Render("Cache"), truncate(m.CacheDir, inner-10)))
	}
	if m.Output != "" {
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Left, LabelStyle.Render("Output"), truncate(m.Output, inner-10)))
	}
	rows = append(rows, "")

	fraction := 0.0
	if m.state != nil {
		fraction = m.state.Fraction()
	}
	if m.phase == PhaseDone {
		fraction = 1
	}
	bar := m.progress
	bar.Width = inner
	rows = append(rows, bar.ViewAs(fraction), StatsStyle.Render(m.statsLine()))

	if len(m.segments) > 0 {
		grid := components.NewSegmentMapModel(m.segments, inner, m.height/4)
		grid.MinRows, grid.MaxRows = MapMinRows, MapMaxRows
		rows = append(rows, "", grid.View())
	}

	rows = append(rows, "", m.statusLine())
	for _, l := range m.logs {
		rows = append(rows, StatsStyle.Render(l))
	}
	rows = append(rows, "", HelpStyle.Render("q: quit"))

	return AppStyle.Render(PanelStyle.Width(width - 2).Render(strings.Join(rows, "\n")))
}

func (m RunModel) statsLine() string {
	if m.state == nil {
		return "loading playlist..."
	}
	elapsed := time.Since(m.state.StartTime)
	bytes := m.state.Bytes.Load()
	speed := 0.0
	if secs := elapsed.Seconds(); secs > 0 {
		speed = float64(bytes) / secs
	}
	return fmt.Sprintf("%d/%d segments · %d cached · %s · %s/s · %s",
		m.state.Completed(), m.state.Total.Load(), m.state.Skipped.Load(),
		utils.ConvertBytesToHumanReadable(bytes),
		utils.ConvertBytesToHumanReadable(int64(speed)),
		elapsed.Round(time.Second))
}

func (m RunModel) statusLine() string {
	switch m.phase {
	case PhaseLoading:
		return WarningStyle.Render("Loading playlist...")
	case PhaseFetching:
		return ItemStyle.Render("Fetching segments...")
	case PhaseMerging:
		return ItemStyle.Render("Merging segments...")
	case PhaseTranscoding:
		return ItemStyle.Render("Transcoding...")
	case PhaseDone:
		return SuccessStyle.Render("Done")
	case PhaseFailed:
		if m.err != nil {
			return ErrorStyle.Render("Error: " + m.err.Error())
		}
		return ErrorStyle.Render("Stopped")
	}
	return ""
}

func truncate(s string, limit int) string {
	if limit <= 3 || len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
