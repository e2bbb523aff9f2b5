// Package tui is the interactive list and detail screens for `todo ls`.
package tui

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/paginator"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/idilsaglam/tada/internal/model"
	"github.com/idilsaglam/tada/internal/syncer"
	"github.com/idilsaglam/tada/internal/ui"
	"github.com/idilsaglam/tada/internal/view"
)

// Syncer is what the screens need from the synchronizer.
type Syncer interface {
	State() syncer.State
	Changes() <-chan struct{}
	Refresh(ctx context.Context) error
	Add(ctx context.Context, title string) (model.Todo, error)
	Edit(ctx context.Context, id int, title string) (model.Todo, error)
	Toggle(ctx context.Context, id int) (model.Todo, error)
	Delete(ctx context.Context, id int) error
	Lookup(ctx context.Context, id int) (model.Todo, error)
}

type mode int

const (
	modeList mode = iota
	modeAdd
	modeEdit
	modeSearch
	modeDetail
)

type (
	changedMsg   struct{}
	refreshedMsg struct{ err error }
	mutationMsg  struct {
		op  syncer.Op
		id  int
		err error
	}
	lookupMsg struct {
		id   int
		todo model.Todo
		err  error
	}
)

const emptyTitleMsg = "Title cannot be empty"

// Model is the Bubble Tea model for both screens.
type Model struct {
	ctx  context.Context
	sync Syncer

	keys    keyMap
	help    help.Model
	spinner spinner.Model
	pager   paginator.Model
	input   textinput.Model

	st     syncer.State
	view   view.State
	cursor int
	mode   mode

	editID   int
	inputErr string
	flash    string // last failed operation

	detailID  int
	detail    *model.Todo // looked up when not in the collection
	detailErr string
	editFrom  mode

	width, height int
}

func New(ctx context.Context, s Syncer) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = 200

	pg := paginator.New()
	pg.Type = paginator.Arabic
	pg.ArabicFormat = "Page %d of %d"
	pg.PerPage = view.PageSize

	hp := help.New()
	th := ui.Current()
	hp.Styles.ShortKey = th.Accent
	hp.Styles.FullKey = th.Accent
	hp.Styles.ShortDesc = th.Help
	hp.Styles.FullDesc = th.Help
	hp.Styles.ShortSeparator = th.Help
	hp.Styles.FullSeparator = th.Help

	return Model{
		ctx:     ctx,
		sync:    s,
		keys:    defaultKeys(),
		help:    hp,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		pager:   pg,
		input:   ti,
		st:      s.State(),
		view:    view.NewState(),
		width:   80,
		height:  24,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.refreshCmd(), waitForChange(m.sync.Changes()))
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return changedMsg{}
	}
}

func (m Model) refreshCmd() tea.Cmd {
	return func() tea.Msg { return refreshedMsg{err: m.sync.Refresh(m.ctx)} }
}

func (m Model) mutate(op syncer.Op, id int, run func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg { return mutationMsg{op: op, id: id, err: run(ctx)} }
}

func (m Model) lookupCmd(id int) tea.Cmd {
	return func() tea.Msg {
		t, err := m.sync.Lookup(m.ctx, id)
		return lookupMsg{id: id, todo: t, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		return m, nil

	case changedMsg:
		m.st = m.sync.State()
		m.clampCursor()
		return m, waitForChange(m.sync.Changes())

	case refreshedMsg:
		m.st = m.sync.State()
		m.clampCursor()
		if msg.err != nil {
			m.flash = "Offline: showing cached todos (" + msg.err.Error() + ")"
		} else {
			m.flash = ""
		}
		return m, nil

	case mutationMsg:
		m.st = m.sync.State()
		m.clampCursor()
		if msg.err != nil {
			text := failureText(msg.op, msg.id, msg.err)
			if m.mode == modeDetail && msg.id == m.detailID {
				m.detailErr = text
			} else {
				m.flash = text
			}
		}
		return m, nil

	case lookupMsg:
		if msg.id != m.detailID {
			return m, nil
		}
		if msg.err != nil {
			m.detailErr = lookupText(msg.err)
			return m, nil
		}
		t := msg.todo
		m.detail = &t
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch m.mode {
		case modeAdd, modeEdit:
			return m.updateInput(msg)
		case modeSearch:
			return m.updateSearch(msg)
		case modeDetail:
			return m.updateDetail(msg)
		}
		return m.updateList(msg)
	}
	return m, nil
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	page := m.view.Apply(m.st.Todos)
	sel, hasSel := m.selected(page)

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(page.Items)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Prev):
		m.view.PrevPage(m.st.Todos)
		m.cursor = 0
	case key.Matches(msg, m.keys.Next):
		m.view.NextPage(m.st.Todos)
		m.cursor = 0
	case key.Matches(msg, m.keys.Status):
		m.view.SetStatus(m.view.Status.Next())
		m.cursor = 0
	case key.Matches(msg, m.keys.Search):
		m.mode = modeSearch
		m.input.SetValue(m.view.Search)
		m.input.Placeholder = "Search titles..."
		m.input.CursorEnd()
		cmd := m.input.Focus()
		return m, cmd
	case key.Matches(msg, m.keys.Refresh):
		return m, m.refreshCmd()
	case key.Matches(msg, m.keys.Add):
		m.mode = modeAdd
		m.inputErr = ""
		m.input.SetValue("")
		m.input.Placeholder = "New todo title..."
		cmd := m.input.Focus()
		return m, cmd
	case !hasSel:
		return m, nil
	case key.Matches(msg, m.keys.Toggle):
		m.flash = ""
		return m, m.mutate(syncer.OpToggle, sel.ID, func(ctx context.Context) error {
			_, err := m.sync.Toggle(ctx, sel.ID)
			return err
		})
	case key.Matches(msg, m.keys.Edit):
		m.startEdit(sel)
		cmd := m.input.Focus()
		return m, cmd
	case key.Matches(msg, m.keys.Delete):
		m.flash = ""
		return m, m.mutate(syncer.OpDelete, sel.ID, func(ctx context.Context) error {
			return m.sync.Delete(ctx, sel.ID)
		})
	case key.Matches(msg, m.keys.Open):
		return m.openDetail(sel.ID)
	}
	return m, nil
}

func (m *Model) startEdit(t model.Todo) {
	m.editFrom = m.mode
	m.mode = modeEdit
	m.editID = t.ID
	m.inputErr = ""
	m.input.SetValue(t.Title)
	m.input.Placeholder = "Edit todo title..."
	m.input.CursorEnd()
}

func (m Model) openDetail(id int) (tea.Model, tea.Cmd) {
	m.mode = modeDetail
	m.detailID = id
	m.detail = nil
	m.detailErr = ""
	if model.IndexOf(m.st.Todos, id) >= 0 {
		return m, nil
	}
	return m, m.lookupCmd(id)
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return m.closeInput(), nil
	case "enter":
		title, err := model.ValidateTitle(m.input.Value())
		if err != nil {
			m.inputErr = emptyTitleMsg
			return m, nil
		}
		op, id := syncer.OpAdd, 0
		run := func(ctx context.Context) error {
			_, err := m.sync.Add(ctx, title)
			return err
		}
		if m.mode == modeEdit {
			op, id = syncer.OpEdit, m.editID
			run = func(ctx context.Context) error {
				_, err := m.sync.Edit(ctx, id, title)
				return err
			}
		}
		if op == syncer.OpAdd {
			// the new record lands at the head of the unfiltered list
			m.view.SetPage(1, m.st.Todos)
			m.cursor = 0
		}
		m.flash = ""
		m = m.closeInput()
		return m, m.mutate(op, id, run)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.inputErr != "" && m.input.Value() != "" {
		m.inputErr = ""
	}
	return m, cmd
}

func (m Model) closeInput() Model {
	if m.mode == modeEdit && m.editFrom == modeDetail {
		m.mode = modeDetail
	} else {
		m.mode = modeList
	}
	m.input.SetValue("")
	m.input.Blur()
	m.inputErr = ""
	return m
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.view.SetSearch("")
		fallthrough
	case "enter":
		m.mode = modeList
		m.input.Blur()
		m.cursor = 0
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.view.SetSearch(m.input.Value())
	m.cursor = 0
	return m, cmd
}

func (m Model) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	t, ok := m.detailTodo()
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Back):
		m.mode = modeList
		m.detailErr = ""
		m.clampCursor()
		return m, nil
	case !ok:
		return m, nil
	case key.Matches(msg, m.keys.Toggle):
		if m.st.IsPending(t.ID) {
			return m, nil
		}
		m.detailErr = ""
		return m, m.mutate(syncer.OpToggle, t.ID, func(ctx context.Context) error {
			_, err := m.sync.Toggle(ctx, t.ID)
			return err
		})
	case key.Matches(msg, m.keys.Edit):
		m.startEdit(t)
		cmd := m.input.Focus()
		return m, cmd
	case key.Matches(msg, m.keys.Delete):
		m.mode = modeList
		return m, m.mutate(syncer.OpDelete, t.ID, func(ctx context.Context) error {
			return m.sync.Delete(ctx, t.ID)
		})
	}
	return m, nil
}

// detailTodo prefers the live collection so optimistic changes show at once.
func (m Model) detailTodo() (model.Todo, bool) {
	if i := model.IndexOf(m.st.Todos, m.detailID); i >= 0 {
		return m.st.Todos[i], true
	}
	if m.detail != nil {
		return *m.detail, true
	}
	return model.Todo{}, false
}

func (m *Model) selected(page view.Page) (model.Todo, bool) {
	if m.cursor < 0 || m.cursor >= len(page.Items) {
		return model.Todo{}, false
	}
	return page.Items[m.cursor], true
}

func (m *Model) clampCursor() {
	n := len(m.view.Apply(m.st.Todos).Items)
	m.cursor = max(0, min(m.cursor, n-1))
}

func failureText(op syncer.Op, id int, err error) string {
	if model.IsValidation(err) {
		return err.Error()
	}
	if op == syncer.OpAdd {
		return "Error adding todo: " + err.Error()
	}
	if errors.Is(err, model.ErrNotFound) {
		return fmt.Sprintf("Todo %d no longer exists", id)
	}
	return fmt.Sprintf("Error updating todo %d: %s", id, err)
}

func lookupText(err error) string {
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		return "Invalid Todo ID"
	}
	if errors.Is(err, model.ErrNotFound) {
		return "Todo not found"
	}
	return "Error: " + err.Error()
}

// Run starts the program on the alternate screen and blocks until quit.
func Run(ctx context.Context, s Syncer) error {
	p := tea.NewProgram(New(ctx, s), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
