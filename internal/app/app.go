package app

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sahilm/fuzzy"

	"github.com/sadopc/httping/internal/hostutil"
	"github.com/sadopc/httping/internal/probe"
	"github.com/sadopc/httping/internal/ui/theme"
)

// DefaultTick is how often the UI polls the coordinator.
const DefaultTick = 30 * time.Millisecond

// pageStep is how far pgup/pgdown move the response view.
const pageStep = 5

type tickMsg time.Time

// Options configures the App.
type Options struct {
	Theme theme.Theme
	Tick  time.Duration
	// Clipboard receives copied records. Nil means the system clipboard.
	Clipboard func(string) error
}

// App is the root Bubble Tea model.
type App struct {
	coord *probe.Coordinator

	input     textinput.Model
	filter    textinput.Model
	table     table.Model
	editing   bool
	filtering bool

	style        DisplayStyle
	taskIndex    int // index into visibleTasks
	backendIndex int
	offset       int // first bar shown in the Total and Chart views
	message      string

	keys      KeyMap
	theme     theme.Theme
	styles    theme.Styles
	tick      time.Duration
	clipboard func(string) error

	width  int
	height int
	ready  bool
}

// New creates the App around coord. Backends must already be registered.
func New(coord *probe.Coordinator, opts Options) App {
	t := opts.Theme
	if t.Name == "" {
		t = theme.Default()
	}
	s := theme.NewStyles(t)

	tick := opts.Tick
	if tick <= 0 {
		tick = DefaultTick
	}
	clip := opts.Clipboard
	if clip == nil {
		clip = clipboard.WriteAll
	}

	input := textinput.New()
	input.Placeholder = "host or URL"
	input.Prompt = ""
	input.CharLimit = 253

	filter := textinput.New()
	filter.Placeholder = "filter tasks"
	filter.Prompt = "/"
	filter.CharLimit = 64

	tbl := table.New(table.WithFocused(true))
	ts := table.DefaultStyles()
	ts.Header = s.TableHeader
	ts.Selected = s.TableSelected
	tbl.SetStyles(ts)

	return App{
		coord:     coord,
		input:     input,
		filter:    filter,
		table:     tbl,
		style:     DisplayStyle{kind: viewTotal},
		keys:      DefaultKeyMap(),
		theme:     t,
		styles:    s,
		tick:      tick,
		clipboard: clip,
	}
}

func (a App) Init() tea.Cmd {
	return a.tickCmd()
}

func (a App) tickCmd() tea.Cmd {
	return tea.Tick(a.tick, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.ready = true
		a.syncTable()
		return a, nil

	case tickMsg:
		if a.coord.Poll() {
			a.syncTable()
		}
		return a, a.tickCmd()

	case tea.KeyMsg:
		if key.Matches(msg, a.keys.Quit) {
			return a, tea.Quit
		}
		if a.editing {
			return a.updateEditing(msg)
		}
		if a.filtering {
			return a.updateFiltering(msg)
		}
		return a.handleKey(msg)
	}
	return a, nil
}

func (a App) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, a.keys.Back):
		a.editing = false
		a.input.Blur()
		return a, nil
	case key.Matches(msg, a.keys.Start):
		a.startProbe()
		return a, nil
	}
	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

func (a *App) startProbe() {
	host, err := hostutil.Normalize(a.input.Value())
	if err != nil {
		a.message = err.Error()
		return
	}
	t, err := a.coord.Start(a.backendIndex, host)
	if err != nil {
		a.message = err.Error()
		return
	}
	a.message = fmt.Sprintf("started %s on %s", t.Host(), t.Backend())
	a.input.Reset()
	a.input.Blur()
	a.editing = false

	// Select the new task when it is visible.
	visible := a.visibleTasks()
	for i, idx := range visible {
		if a.coord.Tasks()[idx] == t {
			a.selectTask(i)
			break
		}
	}
}

func (a App) updateFiltering(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, a.keys.Back):
		a.filtering = false
		a.filter.Reset()
		a.filter.Blur()
		a.selectTask(0)
		return a, nil
	case key.Matches(msg, a.keys.Start):
		a.filtering = false
		a.filter.Blur()
		return a, nil
	}
	var cmd tea.Cmd
	a.filter, cmd = a.filter.Update(msg)
	a.selectTask(0)
	return a, cmd
}

func (a App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, a.keys.Back):
		return a, tea.Quit
	case key.Matches(msg, a.keys.Edit):
		a.editing = true
		return a, a.input.Focus()
	case key.Matches(msg, a.keys.Filter):
		a.filtering = true
		return a, a.filter.Focus()
	case key.Matches(msg, a.keys.CycleView):
		a.cycleStyle()
	case key.Matches(msg, a.keys.TaskUp):
		a.selectTask(a.taskIndex - 1)
	case key.Matches(msg, a.keys.TaskDown):
		a.selectTask(a.taskIndex + 1)
	case key.Matches(msg, a.keys.BackendPrev):
		if a.backendIndex > 0 {
			a.backendIndex--
		}
	case key.Matches(msg, a.keys.BackendNext):
		if a.backendIndex < a.coord.Backends().Len()-1 {
			a.backendIndex++
		}
	case key.Matches(msg, a.keys.PageUp):
		a.page(-pageStep)
	case key.Matches(msg, a.keys.PageDown):
		a.page(pageStep)
	case key.Matches(msg, a.keys.Cancel):
		if i, ok := a.selectedIndex(); ok {
			if a.coord.Cancel(i) {
				a.message = "cancel requested"
			}
		}
	case key.Matches(msg, a.keys.Discard):
		if i, ok := a.selectedIndex(); ok {
			if t, ok := a.coord.Discard(i); ok {
				a.message = "discarded " + t.Host()
			}
			a.selectTask(a.taskIndex)
		}
	case key.Matches(msg, a.keys.Copy):
		a.copyRecords()
	}
	return a, nil
}

// visibleTasks returns coordinator indexes of the tasks that pass the filter,
// in launch order.
func (a App) visibleTasks() []int {
	tasks := a.coord.Tasks()
	query := strings.TrimSpace(a.filter.Value())
	idx := make([]int, 0, len(tasks))
	if query == "" {
		for i := range tasks {
			idx = append(idx, i)
		}
		return idx
	}
	hosts := make([]string, len(tasks))
	for i, t := range tasks {
		hosts[i] = t.Host()
	}
	for _, m := range fuzzy.Find(query, hosts) {
		idx = append(idx, m.Index)
	}
	sort.Ints(idx)
	return idx
}

// selectedIndex returns the coordinator index of the selected task.
func (a App) selectedIndex() (int, bool) {
	visible := a.visibleTasks()
	if a.taskIndex < 0 || a.taskIndex >= len(visible) {
		return 0, false
	}
	return visible[a.taskIndex], true
}

func (a App) selectedTask() *probe.Task {
	i, ok := a.selectedIndex()
	if !ok {
		return nil
	}
	return a.coord.Tasks()[i]
}

// selectTask moves the selection, clamped to the visible tasks, and resets
// the response view.
func (a *App) selectTask(i int) {
	n := len(a.visibleTasks())
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	a.taskIndex = i
	a.offset = 0
	a.table.GotoTop()
	a.syncTable()
}

func (a *App) page(delta int) {
	t := a.selectedTask()
	if t == nil {
		return
	}
	if a.style.kind == viewTable {
		if delta < 0 {
			a.table.MoveUp(-delta)
		} else {
			a.table.MoveDown(delta)
		}
		return
	}
	switch next := a.offset + delta; {
	case next < 0:
		a.offset = 0
	case next < len(t.Records()):
		a.offset = next
	}
}

// cycleStyle advances Table -> Total -> Chart(0) -> ... -> Chart(n-1) -> Table.
// Chart views are skipped when the selected task has no phases.
func (a *App) cycleStyle() {
	phases := 0
	if t := a.selectedTask(); t != nil && len(t.Records()) > 0 {
		phases = len(t.Records()[0].Phases())
	}
	a.style = a.style.next(phases)
	a.offset = 0
	a.table.GotoTop()
	a.syncTable()
}

func (a *App) copyRecords() {
	t := a.selectedTask()
	if t == nil || len(t.Records()) == 0 {
		a.message = "nothing to copy"
		return
	}
	if err := a.clipboard(recordsTSV(t.Records())); err != nil {
		a.message = "copy failed: " + err.Error()
		return
	}
	a.message = fmt.Sprintf("copied %d records", len(t.Records()))
}

// recordsTSV renders records as tab separated values with a header row.
func recordsTSV(records []probe.Record) string {
	var b strings.Builder
	header := append([]string{}, baseHeader...)
	if len(records) > 0 {
		header = append(header, records[0].PhaseNames()...)
	}
	b.WriteString(strings.Join(header, "\t"))
	b.WriteByte('\n')
	for _, r := range records {
		b.WriteString(strings.Join(r.Row(), "\t"))
		b.WriteByte('\n')
	}
	return b.String()
}

// syncTable rebuilds the table for the selected task.
func (a *App) syncTable() {
	t := a.selectedTask()
	var records []probe.Record
	if t != nil {
		records = t.Records()
	}

	cols := []table.Column{
		{Title: baseHeader[0], Width: 14},
		{Title: baseHeader[1], Width: 16},
		{Title: baseHeader[2], Width: 6},
		{Title: baseHeader[3], Width: 8},
		{Title: baseHeader[4], Width: 8},
		{Title: baseHeader[5], Width: 12},
	}
	if len(records) > 0 {
		for _, name := range records[0].PhaseNames() {
			cols = append(cols, table.Column{Title: name, Width: 10})
		}
	}

	rows := make([]table.Row, 0, len(records))
	for _, r := range records {
		row := r.Row()
		if len(row) > len(cols) {
			row = row[:len(cols)]
		}
		rows = append(rows, table.Row(row))
	}

	// Clear rows first so no row is ever rendered against fewer columns.
	cursor := a.table.Cursor()
	a.table.SetRows(nil)
	a.table.SetColumns(cols)
	a.table.SetRows(rows)
	if cursor < len(rows) {
		a.table.SetCursor(cursor)
	}

	if a.ready {
		w, h := a.responseSize()
		a.table.SetWidth(w)
		a.table.SetHeight(h)
	}
}
