package update

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	domainmodel "github.com/sandeepkv93/ghostd/internal/model"
	"github.com/sandeepkv93/ghostd/internal/plan"
	"github.com/sandeepkv93/ghostd/internal/views"
)

type mutationResultMsg struct {
	err error
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case mutationResultMsg:
		m.refreshAgenda()
		if msg.err != nil {
			m.status = StatusBar{Text: fmt.Sprintf("error: %v (kept in memory, press w to retry)", msg.err), IsError: true}
		} else {
			m.status = StatusBar{Text: "saved"}
		}
		return m, nil
	case tea.KeyMsg:
		switch m.mode {
		case ModeAgenda:
			return m.handleAgendaKey(msg)
		case ModeAdd, ModeEditTitle:
			return m.handleInputKey(msg)
		case ModeScopeEdit:
			return m.handleScopeEditKey(msg)
		case ModeScopeDelete:
			return m.handleScopeDeleteKey(msg)
		case ModeHelp:
			m.mode = ModeAgenda
			return m, nil
		}
	}
	return m, nil
}

func (m Model) handleAgendaKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		m.quitting = true
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}
	case " ", "x":
		return m.applyIntent(plan.IntentToggle, plan.Edit{})
	case "a":
		m.mode = ModeAdd
		m.input.SetValue("")
		m.input.Focus()
	case "e":
		if occ, ok := m.selected(); ok {
			m.mode = ModeEditTitle
			m.input.SetValue(occ.Title)
			m.input.Focus()
		}
	case "d":
		if occ, ok := m.selected(); ok {
			if occ.Recurring {
				m.mode = ModeScopeDelete
			} else {
				return m.applyIntent(plan.IntentDeleteInstance, plan.Edit{})
			}
		}
	case "]":
		m.windowStart = m.windowStart.AddDate(0, 0, m.cfg.WindowDays)
		m.refreshAgenda()
	case "[":
		m.windowStart = m.windowStart.AddDate(0, 0, -m.cfg.WindowDays)
		m.refreshAgenda()
	case "t":
		m.windowStart = todayUTC()
		m.refreshAgenda()
	case "w":
		if m.ctrl.Dirty() {
			return m, m.flushCmd()
		}
		m.status = StatusBar{Text: "nothing to save"}
	case "?":
		m.mode = ModeHelp
	}
	return m, nil
}

func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = ModeAgenda
		m.input.Blur()
		return m, nil
	case "enter":
		value := strings.TrimSpace(m.input.Value())
		m.input.Blur()
		if m.mode == ModeAdd {
			m.mode = ModeAgenda
			return m, m.addCmd(value)
		}
		if value == "" {
			m.mode = ModeAgenda
			m.status = StatusBar{Text: "error: a title is required", IsError: true}
			return m, nil
		}
		// Edited title: a single applies directly, a recurring
		// instance needs a scope decision first.
		occ, ok := m.selected()
		if !ok {
			m.mode = ModeAgenda
			return m, nil
		}
		if !occ.Recurring {
			m.mode = ModeAgenda
			return m.applyIntent(plan.IntentEditSeries, plan.Edit{Title: &value})
		}
		m.pendingTitle = value
		m.mode = ModeScopeEdit
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleScopeEditKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	title := m.pendingTitle
	switch msg.String() {
	case "esc":
		m.mode = ModeAgenda
	case "i":
		m.mode = ModeAgenda
		return m.applyIntent(plan.IntentEditInstance, plan.Edit{Title: &title})
	case "s":
		m.mode = ModeAgenda
		return m.applyIntent(plan.IntentEditSeries, plan.Edit{Title: &title})
	case "f":
		m.mode = ModeAgenda
		return m.applyIntent(plan.IntentEditFuture, plan.Edit{Title: &title})
	}
	return m, nil
}

func (m Model) handleScopeDeleteKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = ModeAgenda
	case "i":
		m.mode = ModeAgenda
		return m.applyIntent(plan.IntentDeleteInstance, plan.Edit{})
	case "f":
		m.mode = ModeAgenda
		return m.applyIntent(plan.IntentDeleteFuture, plan.Edit{})
	case "a":
		m.mode = ModeAgenda
		return m.applyIntent(plan.IntentDeleteAll, plan.Edit{})
	}
	return m, nil
}

func (m Model) applyIntent(intent plan.Intent, edit plan.Edit) (tea.Model, tea.Cmd) {
	occ, ok := m.selected()
	if !ok {
		return m, nil
	}
	task, ok := m.ctrl.Task(occ.TaskID)
	if !ok {
		m.status = StatusBar{Text: fmt.Sprintf("error: task %s vanished", occ.TaskID), IsError: true}
		return m, nil
	}
	p, err := plan.Build(occ, task, intent, edit)
	if err != nil {
		m.status = StatusBar{Text: "error: " + err.Error(), IsError: true}
		return m, nil
	}
	ctrl := m.ctrl
	return m, func() tea.Msg {
		return mutationResultMsg{err: ctrl.Apply(context.Background(), p)}
	}
}

func (m Model) addCmd(value string) tea.Cmd {
	ctrl := m.ctrl
	start := m.windowStart
	return func() tea.Msg {
		task, err := ParseQuickAdd(value, start)
		if err != nil {
			return mutationResultMsg{err: err}
		}
		return mutationResultMsg{err: ctrl.Add(context.Background(), task)}
	}
}

func (m Model) flushCmd() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		return mutationResultMsg{err: ctrl.Flush(context.Background())}
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.mode == ModeHelp {
		return views.RenderMarkdown(helpText)
	}

	data := views.AppData{
		Header:     m.headerLine(),
		Agenda:     m.agendaPane(),
		Detail:     m.detailPane(),
		StatusLine: m.status.Text,
		Footer:     m.footerLine(),
	}
	if m.status.IsError {
		data.StatusLine = "error " + strings.TrimPrefix(data.StatusLine, "error")
	}
	switch m.mode {
	case ModeAdd:
		data.Prompt = "add> " + m.input.View()
	case ModeEditTitle:
		data.Prompt = "title> " + m.input.View()
	case ModeScopeEdit:
		data.Prompt = "apply edit to: [i]nstance  [s]eries  [f]uture  (esc cancels)"
	case ModeScopeDelete:
		data.Prompt = "delete: [i]nstance  [f]uture  [a]ll  (esc cancels)"
	}
	return views.RenderApp(data)
}

func (m Model) headerLine() string {
	end := m.windowStart.AddDate(0, 0, m.cfg.WindowDays-1)
	header := fmt.Sprintf("ghostd  %s .. %s", domainmodel.FormatDate(m.windowStart), domainmodel.FormatDate(end))
	if m.ctrl.Dirty() {
		header += "  [unsaved]"
	}
	return header
}

func (m Model) agendaPane() string {
	if len(m.items) == 0 {
		return "no tasks in window"
	}
	var b strings.Builder
	for i, occ := range m.items {
		marker := "  "
		if i == m.cursor {
			marker = "> "
		}
		kind := " "
		if occ.Recurring {
			kind = "~"
		}
		fmt.Fprintf(&b, "%s%s %s %s\n", marker, occ.Date, kind, occ.Title)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) detailPane() string {
	occ, ok := m.selected()
	if !ok {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n%s", occ.Title, occ.Date)
	if occ.Recurring {
		b.WriteString("  (recurring)")
	}
	if occ.Deadline != "" {
		fmt.Fprintf(&b, "\ndeadline: %s", occ.Deadline)
	}
	if occ.EstimatedMins > 0 {
		fmt.Fprintf(&b, "\nestimate: %dm", occ.EstimatedMins)
	}
	if occ.Notes != "" {
		fmt.Fprintf(&b, "\n\n%s", occ.Notes)
	}
	for _, st := range occ.Subtasks {
		box := "[ ]"
		if st.Completed {
			box = "[x]"
		}
		fmt.Fprintf(&b, "\n  %s %s", box, st.Title)
	}
	return b.String()
}

func (m Model) footerLine() string {
	return "j/k move  space toggle  a add  e edit  d delete  [/] window  t today  w save  ? help  q quit"
}

const helpText = `# ghostd

Recurring-task agenda. Every line is one dated occurrence; recurring
masters are expanded into ghosts (~) that only exist on screen.

## Keys

- **j / k** move the cursor
- **space** toggle completion for the selected occurrence
- **a** quick add: ` + "`title [@YYYY-MM-DD] [every day|week|month|year|2 weeks|mon,thu]`" + `
- **e** edit title (recurring tasks then ask instance / series / future)
- **d** delete (recurring tasks then ask instance / future / all)
- **[ / ]** page the window, **t** jump back to today
- **w** retry a failed save
- **q** quit

Press any key to close help.
`
