package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/alexanderramin/milestones/internal/cli/formatter"
	"github.com/alexanderramin/milestones/internal/domain"
	"github.com/alexanderramin/milestones/internal/service"
)

type editorKeyMap struct {
	Up        key.Binding
	Down      key.Binding
	NextStage key.Binding
	PrevStage key.Binding
	Edit      key.Binding
	Add       key.Binding
	Status    key.Binding
	Remove    key.Binding
	Submit    key.Binding
	Quit      key.Binding
	Confirm   key.Binding
	Cancel    key.Binding
}

func defaultEditorKeys() editorKeyMap {
	return editorKeyMap{
		Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		NextStage: key.NewBinding(key.WithKeys("tab", "right", "l"), key.WithHelp("tab", "next stage")),
		PrevStage: key.NewBinding(key.WithKeys("shift+tab", "left", "h"), key.WithHelp("shift+tab", "prev stage")),
		Edit:      key.NewBinding(key.WithKeys("enter", "e"), key.WithHelp("enter", "edit")),
		Add:       key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add row")),
		Status:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "status")),
		Remove:    key.NewBinding(key.WithKeys("d", "x"), key.WithHelp("d", "remove")),
		Submit:    key.NewBinding(key.WithKeys("ctrl+s", "S"), key.WithHelp("ctrl+s", "submit")),
		Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Confirm:   key.NewBinding(key.WithKeys("enter")),
		Cancel:    key.NewBinding(key.WithKeys("esc")),
	}
}

func (k editorKeyMap) help() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.NextStage, k.Edit, k.Add, k.Status, k.Remove, k.Submit, k.Quit}
}

// opDoneMsg reports the end of a backend call started from the editor.
type opDoneMsg struct {
	message string
	err     error
}

// editorModel is the interactive stage editor behind `milestones edit`.
type editorModel struct {
	ws    service.EntryWorkspace
	ctx   context.Context
	today domain.Date
	keys  editorKeyMap

	stage   domain.Stage
	cursor  int
	editing string // LocalID being edited, "" when browsing
	input   textinput.Model

	busy     bool
	message  string
	err      error
	width    int
	quitting bool
}

func newEditorModel(ctx context.Context, ws service.EntryWorkspace, today domain.Date) *editorModel {
	ti := textinput.New()
	ti.Prompt = "› "
	ti.CharLimit = 2000
	return &editorModel{
		ws:    ws,
		ctx:   ctx,
		today: today,
		keys:  defaultEditorKeys(),
		stage: domain.StageD1,
		input: ti,
	}
}

func (m *editorModel) Init() tea.Cmd { return nil }

// rows returns the entries of the active stage in display order.
func (m *editorModel) rows() []domain.Entry {
	var out []domain.Entry
	for _, e := range m.ws.Entries() {
		if e.Stage == m.stage {
			out = append(out, e)
		}
	}
	return out
}

func (m *editorModel) selected() (domain.Entry, bool) {
	rows := m.rows()
	if len(rows) == 0 {
		return domain.Entry{}, false
	}
	m.cursor = min(max(m.cursor, 0), len(rows)-1)
	return rows[m.cursor], true
}

func (m *editorModel) setResult(msg string, err error) {
	m.message, m.err = msg, err
}

func (m *editorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(msg.Width-20, 20)
		return m, nil

	case opDoneMsg:
		m.busy = false
		m.setResult(msg.message, msg.err)
		return m, nil

	case tea.KeyMsg:
		if m.editing != "" {
			return m.updateEditing(msg)
		}
		return m.updateBrowsing(msg)
	}
	return m, nil
}

func (m *editorModel) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyCtrlC:
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Confirm):
		id := m.editing
		m.editing = ""
		m.input.Blur()
		if _, err := m.ws.EditContent(m.ctx, id, m.input.Value()); err != nil {
			m.setResult("", err)
		} else {
			m.setResult("Saved locally; autosave will send it.", nil)
		}
		return m, nil
	case key.Matches(msg, m.keys.Cancel):
		m.editing = ""
		m.input.Blur()
		m.setResult("Edit cancelled.", nil)
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *editorModel) updateBrowsing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.rows())-1 {
			m.cursor++
		}

	case key.Matches(msg, m.keys.NextStage):
		m.switchStage(1)

	case key.Matches(msg, m.keys.PrevStage):
		m.switchStage(-1)

	case key.Matches(msg, m.keys.Add):
		e, err := m.ws.AddEntry(m.ctx, m.stage, m.today)
		if err != nil {
			m.setResult("", err)
			break
		}
		for i, r := range m.rows() {
			if r.LocalID == e.LocalID {
				m.cursor = i
			}
		}
		m.setResult(fmt.Sprintf("Added a %s row for %s.", m.stage, m.today), nil)

	case key.Matches(msg, m.keys.Edit):
		e, ok := m.selected()
		if !ok {
			m.setResult("", fmt.Errorf("no row selected; press a to add one"))
			break
		}
		if !m.ws.Editable(e.Date, e.Stage) {
			m.setResult("", lockReason(m.ws, e.Date, e.Stage))
			break
		}
		m.editing = e.LocalID
		m.input.SetValue(e.Content)
		m.input.CursorEnd()
		m.setResult("", nil)
		return m, m.input.Focus()

	case key.Matches(msg, m.keys.Remove):
		e, ok := m.selected()
		if !ok {
			break
		}
		if err := m.ws.RemoveEntry(m.ctx, e.LocalID); err != nil {
			m.setResult("", err)
			break
		}
		m.setResult(fmt.Sprintf("Removed the %s row for %s.", e.Stage, e.Date), nil)

	case key.Matches(msg, m.keys.Status):
		e, ok := m.selected()
		if !ok || m.busy {
			break
		}
		next := nextStatus(e.EffectiveStatus())
		m.busy = true
		m.setResult("Changing status…", nil)
		ws, ctx, id := m.ws, m.ctx, e.LocalID
		ref := fmt.Sprintf("%s %s", e.Date, e.Stage)
		return m, func() tea.Msg {
			if err := ws.ChangeStatus(ctx, id, next); err != nil {
				return opDoneMsg{err: statusChangeError(ref, err)}
			}
			return opDoneMsg{message: "Status is now " + next.Label() + "."}
		}

	case key.Matches(msg, m.keys.Submit):
		if m.busy {
			break
		}
		m.busy = true
		m.setResult("Submitting…", nil)
		ws, ctx := m.ws, m.ctx
		return m, func() tea.Msg {
			res, err := ws.Submit(ctx)
			if err != nil {
				return opDoneMsg{err: err}
			}
			if res.Writes() == 0 {
				return opDoneMsg{message: "Nothing to submit."}
			}
			return opDoneMsg{message: fmt.Sprintf("Submitted %d %s.", res.Writes(), plural(res.Writes(), "day", "days"))}
		}
	}
	return m, nil
}

func (m *editorModel) switchStage(step int) {
	i := m.stage.Index() + step
	if i < 0 || i >= len(domain.Stages) {
		return
	}
	target := domain.Stages[i]
	p := m.ws.Progress()
	if !p.StageUnlocked(target) {
		prev, _ := target.Previous()
		m.setResult("", fmt.Errorf("%s is locked: %s needs %d more filled days", target, prev, p.Remaining(prev)))
		return
	}
	m.stage = target
	m.cursor = 0
	m.setResult("", nil)
}

func nextStatus(s domain.EntryStatus) domain.EntryStatus {
	for i, st := range domain.Statuses {
		if st == s {
			return domain.Statuses[(i+1)%len(domain.Statuses)]
		}
	}
	return domain.StatusPending
}

var (
	tabActive   = lipgloss.NewStyle().Foreground(formatter.ColorHeader).Bold(true).Underline(true)
	tabInactive = lipgloss.NewStyle().Foreground(formatter.ColorFg)
)

func (m *editorModel) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder

	title := "MILESTONES  " + m.ws.Owner()
	if s := m.ws.Schedule(); s != nil {
		title += "  " + s.QuarterParam() + " " + formatter.MonthName(s.Month)
	}
	b.WriteString(formatter.StyleHeader.Render(title))
	if m.ws.Supervisory() {
		b.WriteString(formatter.Dim("  viewed by " + m.ws.Caller()))
	}
	b.WriteString("\n\n")

	p := m.ws.Progress()
	tmpl := m.ws.Template()
	tabs := make([]string, 0, len(domain.Stages))
	for _, s := range domain.Stages {
		label := fmt.Sprintf("%s %s", s, tmpl.StageHeading(s))
		switch {
		case s == m.stage:
			tabs = append(tabs, tabActive.Render(label))
		case !p.StageUnlocked(s):
			tabs = append(tabs, formatter.Dim(label+" (locked)"))
		default:
			tabs = append(tabs, tabInactive.Render(label))
		}
	}
	b.WriteString(strings.Join(tabs, "   "))
	b.WriteString("\n\n")

	rows := m.rows()
	if len(rows) == 0 {
		b.WriteString(formatter.Dim("  no rows yet; press a to add one"))
		b.WriteString("\n")
	}
	for i, e := range rows {
		marker := "  "
		if i == m.cursor {
			marker = formatter.StyleHeader.Render("› ")
		}
		var content string
		switch {
		case e.LocalID == m.editing:
			content = m.input.View()
		case e.HasContent():
			content = formatter.Truncate(formatter.OneLine(e.Content), max(m.width-36, 30))
		case !p.Editable(e.Date, e.Stage):
			content = formatter.Dim("(locked)")
		default:
			content = formatter.Dim("(empty)")
		}
		st := e.EffectiveStatus()
		status := formatter.StatusStyle(st).Render(fmt.Sprintf("%-11s", st.Label()))
		fmt.Fprintf(&b, "%s%s  %s  %s\n", marker, e.Date, status, content)
	}

	b.WriteString("\n")
	switch {
	case m.err != nil:
		b.WriteString(formatter.StyleRed.Render(m.err.Error()))
	case m.message != "":
		b.WriteString(m.message)
	}
	if m.ws.Dirty() {
		b.WriteString(formatter.StyleYellow.Render("  ● unsent changes"))
	}
	b.WriteString("\n")

	help := make([]string, 0, len(m.keys.help()))
	for _, k := range m.keys.help() {
		h := k.Help()
		help = append(help, h.Key+" "+h.Desc)
	}
	b.WriteString(formatter.Dim(strings.Join(help, "  ")))
	b.WriteString("\n")
	return b.String()
}
