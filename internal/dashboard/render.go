package dashboard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"shalyse/internal/domain"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	gainStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	lossStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	barStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// RenderSummary renders the summary statistics as a bordered table, one row
// per statistic in display order.
func RenderSummary(title string, summary domain.DistributionSummary) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(title))
	b.WriteByte('\n')
	for _, name := range domain.StatNames {
		st, ok := summary[name]
		if !ok {
			continue
		}
		style := gainStyle
		if st.Absolute < 0 {
			style = lossStyle
		}
		fmt.Fprintf(&b, "%s %s\n",
			labelStyle.Render(fmt.Sprintf("%-7s", name)),
			style.Render(st.Display))
	}
	return boxStyle.Render(strings.TrimRight(b.String(), "\n"))
}

// RenderHistogram renders bins as horizontal bars scaled to width cells.
func RenderHistogram(bins []Bin, width int) string {
	if len(bins) == 0 || width <= 0 {
		return ""
	}
	peak := 0
	for _, bin := range bins {
		peak = max(peak, bin.Count)
	}

	var b strings.Builder
	for _, bin := range bins {
		n := 0
		if peak > 0 {
			n = bin.Count * width / peak
		}
		fmt.Fprintf(&b, "%9s %s %d\n",
			FormatCompact(bin.Lo),
			barStyle.Render(strings.Repeat("█", n)),
			bin.Count)
	}
	return strings.TrimRight(b.String(), "\n")
}
