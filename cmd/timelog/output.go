package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/entrhq/timelog/pkg/browser"
	"github.com/entrhq/timelog/pkg/config"
	"github.com/entrhq/timelog/pkg/metadata"
	"github.com/entrhq/timelog/pkg/types"
)

// Color palette
var (
	salmonPink = lipgloss.Color("#FFB3BA") // headers
	mintGreen  = lipgloss.Color("#A8E6CF") // submitted rows
	mutedGray  = lipgloss.Color("#6B7280") // secondary text
	errorRed   = lipgloss.Color("203")
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(salmonPink)
	okStyle     = lipgloss.NewStyle().Foreground(mintGreen)
	mutedStyle  = lipgloss.NewStyle().Foreground(mutedGray)
	errorStyle  = lipgloss.NewStyle().Foreground(errorRed)
	boxStyle    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(salmonPink).
			Padding(0, 1)
)

// renderTable lays out rows in left aligned columns. The first row is the
// header.
func renderTable(rows [][]string, styleRow func(i int) lipgloss.Style) string {
	if len(rows) == 0 {
		return ""
	}

	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			if w := lipgloss.Width(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	for r, row := range rows {
		style := headerStyle
		if r > 0 {
			style = styleRow(r - 1)
		}
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = style.Width(widths[i]).Render(cell)
		}
		b.WriteString(strings.Join(cells, "  "))
		if r < len(rows)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func renderResults(results []types.TaskResult) string {
	rows := [][]string{{"ID", "CODE", "ACTIVITY", "HOURS", "STATUS"}}
	for _, r := range results {
		hours := "-"
		if r.Time > 0 {
			hours = strconv.FormatFloat(float64(r.Time), 'f', -1, 64)
		}
		rows = append(rows, []string{r.ID, r.Code, r.Activity, hours, r.Status})
	}

	submitted := 0
	for _, r := range results {
		if r.Matched {
			submitted++
		}
	}

	table := renderTable(rows, func(i int) lipgloss.Style {
		if results[i].Matched {
			return okStyle
		}
		return mutedStyle
	})
	summary := fmt.Sprintf("%d of %d tasks submitted", submitted, len(results))
	return boxStyle.Render(table + "\n\n" + mutedStyle.Render(summary))
}

func renderMetadata(meta *metadata.FormMetadata) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", headerStyle.Render("token:"), meta.Token)
	fmt.Fprintf(&b, "%s %s\n\n", headerStyle.Render("user:"), meta.UserID)

	tasks := [][]string{{"OPTION", "CODE"}}
	for _, t := range meta.AssignedTasks {
		code := t.Code
		if !t.HasCode {
			code = "-"
		}
		tasks = append(tasks, []string{t.OptionID, code})
	}
	b.WriteString(renderTable(tasks, func(i int) lipgloss.Style {
		if meta.AssignedTasks[i].HasCode {
			return okStyle
		}
		return mutedStyle
	}))
	b.WriteString("\n\n")

	activities := [][]string{{"VALUE", "LABEL"}}
	for _, a := range meta.Activities {
		activities = append(activities, []string{a.Value, a.Label})
	}
	b.WriteString(renderTable(activities, func(int) lipgloss.Style { return lipgloss.NewStyle() }))

	return boxStyle.Render(b.String())
}

func renderError(err error) string {
	out := errorStyle.Render("error: ") + err.Error()
	if browser.IsAuthenticationError(err) {
		out += "\n" + mutedStyle.Render("hint: check "+config.EnvOperatorUser+" and "+config.EnvOperatorPass+", then retry with -clear-session")
	}
	var extractionErr *metadata.ExtractionError
	if errors.As(err, &extractionErr) {
		out += "\n" + mutedStyle.Render("hint: open the saved <run>-form.html from the log directory with -inspect")
	}
	return out
}
