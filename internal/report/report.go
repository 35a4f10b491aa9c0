// Package report renders the end-of-run import summary
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/dyuri/shpimport/internal/drawing"
	"github.com/dyuri/shpimport/internal/importer"
)

// Styles
var (
	accentFg  = lipgloss.Color("#7C3AED")
	warnFg    = lipgloss.Color("#D97706")
	failFg    = lipgloss.Color("#DC2626")
	okFg      = lipgloss.Color("#059669")
	baseDimFg = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#6B7280"}
	borderCol = lipgloss.Color("#243141")

	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(borderCol).Padding(0, 1)
	titleStyle = lipgloss.NewStyle().Foreground(accentFg).Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(baseDimFg).Width(10)
	warnStyle  = lipgloss.NewStyle().Foreground(warnFg)
	dimStyle   = lipgloss.NewStyle().Foreground(baseDimFg)
)

func statusStyle(s importer.Status) lipgloss.Style {
	switch s {
	case importer.StatusSucceeded:
		return lipgloss.NewStyle().Foreground(okFg).Bold(true)
	case importer.StatusCanceled:
		return warnStyle.Bold(true)
	}
	return lipgloss.NewStyle().Foreground(failFg).Bold(true)
}

func row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), value)
}

// Render formats the result as a boxed summary listing at most maxWarnings
// warnings
func Render(res *importer.Result, maxWarnings int) string {
	kinds := make([]drawing.Kind, 0, len(res.ByKind))
	for k := range res.ByKind {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	var byKind []string
	for _, k := range kinds {
		byKind = append(byKind, fmt.Sprintf("%d %s", res.ByKind[k], k))
	}
	entities := fmt.Sprintf("%d", res.Entities)
	if len(byKind) > 0 {
		entities += dimStyle.Render(" (" + strings.Join(byKind, ", ") + ")")
	}

	lines := []string{
		titleStyle.Render(res.File),
		row("status", statusStyle(res.Status).Render(res.Status.String())),
		row("records", fmt.Sprintf("%d", res.Records)),
		row("entities", entities),
		row("skipped", fmt.Sprintf("%d", res.Skipped)),
		row("warned", fmt.Sprintf("%d", res.Warned)),
		row("elapsed", res.Elapsed.Round(time.Millisecond).String()),
	}

	if n := len(res.Warnings); n > 0 {
		lines = append(lines, "", warnStyle.Render(fmt.Sprintf("%d warnings", n)))
		for i, w := range res.Warnings {
			if i == maxWarnings {
				lines = append(lines, dimStyle.Render(fmt.Sprintf("… %d more", n-maxWarnings)))
				break
			}
			lines = append(lines, "  "+w.String())
		}
	}
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}
