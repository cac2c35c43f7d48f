package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/httping/internal/probe"
)

var baseHeader = []string{"Location", "IP", "Status", "Total", "Redirect", "Redirect cost"}

type viewKind int

const (
	viewTable viewKind = iota
	viewTotal
	viewChart
)

// DisplayStyle selects how the response area shows the selected task.
type DisplayStyle struct {
	kind  viewKind
	phase int // only for viewChart
}

// next returns the style after s, given how many phases the records carry.
func (s DisplayStyle) next(phases int) DisplayStyle {
	switch s.kind {
	case viewTable:
		return DisplayStyle{kind: viewTotal}
	case viewTotal:
		if phases > 0 {
			return DisplayStyle{kind: viewChart}
		}
	case viewChart:
		if s.phase+1 < phases {
			return DisplayStyle{kind: viewChart, phase: s.phase + 1}
		}
	}
	return DisplayStyle{kind: viewTable}
}

func (s DisplayStyle) String() string {
	switch s.kind {
	case viewTable:
		return "Table"
	case viewTotal:
		return "Total"
	default:
		return fmt.Sprintf("Chart(%d)", s.phase)
	}
}

const (
	titleHeight  = 3
	footerHeight = 3
	inputHeight  = 3
)

func (a App) leftWidth() int {
	return a.width * 30 / 100
}

func (a App) mainHeight() int {
	h := a.height - titleHeight - footerHeight
	if h < 6 {
		h = 6
	}
	return h
}

// responseSize is the size of the response panel below its title line.
func (a App) responseSize() (int, int) {
	w := a.width - a.leftWidth() - 2
	h := a.mainHeight() - 3
	if w < 10 {
		w = 10
	}
	if h < 2 {
		h = 2
	}
	return w, h
}

func (a App) View() string {
	if !a.ready {
		return "Loading..."
	}

	title := a.panel("", a.width, titleHeight, false,
		lipgloss.PlaceHorizontal(a.width-2, lipgloss.Center, a.styles.Title.Render("httping")))

	leftW := a.leftWidth()
	mainH := a.mainHeight()
	tasksH := mainH * 70 / 100
	backendsH := mainH - tasksH - inputHeight

	left := lipgloss.JoinVertical(lipgloss.Left,
		a.panel("Tasks", leftW, tasksH, a.filtering, a.renderTasks(leftW-2, tasksH-3)),
		a.panel("Backends", leftW, backendsH, false, a.renderBackends(leftW-2, backendsH-3)),
		a.panel("", leftW, inputHeight, a.editing, a.input.View()),
	)

	rw, rh := a.responseSize()
	right := a.panel(a.responseTitle(), a.width-leftW, mainH, !a.editing && !a.filtering, a.renderResponse(rw, rh))
	main := lipgloss.JoinHorizontal(lipgloss.Top, left, right)

	statusW := a.width * 30 / 100
	footer := lipgloss.JoinHorizontal(lipgloss.Top,
		a.panel("", statusW, footerHeight, false, a.statusLine()),
		a.panel("", a.width-statusW, footerHeight, false, a.helpLine()),
	)

	return lipgloss.JoinVertical(lipgloss.Left, title, main, footer)
}

// panel draws a bordered box of the given outer size.
func (a App) panel(title string, w, h int, focused bool, content string) string {
	style := a.styles.UnfocusedBorder
	if focused {
		style = a.styles.FocusedBorder
	}
	if w < 2 {
		w = 2
	}
	if h < 2 {
		h = 2
	}
	if title != "" {
		content = a.styles.Muted.Render(title) + "\n" + content
	}
	return style.
		Width(w - 2).
		Height(h - 2).
		MaxHeight(h).
		Render(content)
}

func (a App) renderTasks(w, h int) string {
	var lines []string
	if a.filtering || a.filter.Value() != "" {
		lines = append(lines, a.filter.View())
	}
	tasks := a.coord.Tasks()
	for i, idx := range a.visibleTasks() {
		t := tasks[idx]
		status := t.Status().String()
		label := fmt.Sprintf("%s %d", truncate(t.Host(), w-14), len(t.Records()))
		line := lipgloss.NewStyle().Foreground(a.theme.TaskColor(status)).Render(fmt.Sprintf("%-9s", status)) + " " + label
		if i == a.taskIndex {
			line = a.styles.Selected.Render(fmt.Sprintf("%-9s %s", status, label))
		}
		lines = append(lines, line)
	}
	if len(tasks) == 0 {
		lines = append(lines, a.styles.Hint.Render("press e to enter a host"))
	}
	return clipLines(lines, h)
}

func (a App) renderBackends(w, h int) string {
	var lines []string
	for i, name := range a.coord.Backends().Names() {
		name = truncate(name, w)
		if i == a.backendIndex {
			lines = append(lines, a.styles.Selected.Render(name))
		} else {
			lines = append(lines, a.styles.Normal.Render(name))
		}
	}
	return clipLines(lines, h)
}

func (a App) responseTitle() string {
	t := a.selectedTask()
	if t == nil || len(t.Records()) == 0 {
		return "Response"
	}
	switch a.style.kind {
	case viewTable:
		return "Response"
	case viewTotal:
		return "Total time"
	default:
		names := t.Records()[0].PhaseNames()
		if a.style.phase < len(names) {
			return names[a.style.phase]
		}
		return a.style.String()
	}
}

func (a App) renderResponse(w, h int) string {
	t := a.selectedTask()
	if t == nil {
		return ""
	}
	records := t.Records()
	if len(records) == 0 {
		if err := t.Err(); err != nil {
			return a.styles.Error.Render(err.Error())
		}
		return a.styles.Hint.Render("waiting for measurements...")
	}

	switch a.style.kind {
	case viewTable:
		return a.table.View()
	case viewTotal:
		values := make([]int64, len(records))
		for i, r := range records {
			values[i] = r.TotalUnits()
		}
		return a.renderBars(records, values, w, h)
	default:
		values := make([]int64, len(records))
		for i, r := range records {
			values[i] = r.PhaseUnits(a.style.phase)
		}
		return a.renderBars(records, values, w, h)
	}
}

// renderBars draws one horizontal bar per record starting at the page
// offset. Bars are scaled so the mean value fills the width; only records
// that answered 200 get a bar.
func (a App) renderBars(records []probe.Record, values []int64, w, h int) string {
	var sum int64
	for _, v := range values {
		sum += v
	}
	scale := sum / int64(len(values))
	if scale <= 0 {
		scale = 1
	}

	const labelWidth = 24
	barWidth := w - labelWidth - 1
	if barWidth < 1 {
		barWidth = 1
	}

	var lines []string
	for i := a.offset; i < len(records) && len(lines) < h; i++ {
		r := records[i]
		label := fmt.Sprintf("%ss %s", r.TotalCost(), r.Loc())
		label = fmt.Sprintf("%-*s", labelWidth, truncate(label, labelWidth))

		n := 0
		if r.OK() {
			n = int(values[i] * int64(barWidth) / scale)
			if n > barWidth {
				n = barWidth
			}
		}
		bar := a.styles.Bar.Render(strings.Repeat("█", n))
		statusStyle := lipgloss.NewStyle().Foreground(a.theme.StatusColor(r.Status()))
		lines = append(lines, statusStyle.Render(label)+" "+bar)
	}
	return strings.Join(lines, "\n")
}

func (a App) statusLine() string {
	tasks := a.coord.Tasks()
	done := 0
	for _, t := range tasks {
		if t.Ended() {
			done++
		}
	}
	line := fmt.Sprintf("tasks %d/%d", done, len(tasks))
	if t := a.selectedTask(); t != nil {
		if ok := t.OKCount(); ok > 0 {
			line += fmt.Sprintf(" | 200 %d/%d", ok, len(t.Records()))
		}
	}
	if a.message != "" {
		line += " | " + a.message
	}
	return a.styles.Normal.Render(line)
}

func (a App) helpLine() string {
	var parts []string
	for _, b := range a.keys.ShortHelp() {
		h := b.Help()
		parts = append(parts, a.styles.Title.Render(h.Key)+" "+a.styles.Muted.Render(h.Desc))
	}
	return strings.Join(parts, " | ")
}

func clipLines(lines []string, h int) string {
	if h > 0 && len(lines) > h {
		lines = lines[:h]
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
