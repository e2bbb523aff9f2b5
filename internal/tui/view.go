package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/idilsaglam/tada/internal/model"
	"github.com/idilsaglam/tada/internal/syncer"
	"github.com/idilsaglam/tada/internal/ui"
)

func (m Model) View() string {
	if m.mode == modeDetail || (m.mode == modeEdit && m.editFrom == modeDetail) {
		return ui.Panel(strings.Split(m.detailView(), "\n"))
	}
	return ui.Panel(strings.Split(m.listView(), "\n"))
}

func (m Model) header() string {
	th := ui.Current()
	done, pending := model.Stats(m.st.Todos)
	h := fmt.Sprintf("%s   %s %d  %s %d  %s %d",
		th.Title.Render("Todos"),
		th.Success.Render(th.SymDone), done,
		th.Pending.Render(th.SymUnchecked), pending,
		th.Accent.Render("Total"), len(m.st.Todos),
	)
	if m.st.Source == syncer.SourceCache {
		h += "  " + th.Pending.Render("[cached]")
	}
	if m.st.Loading || len(m.st.Pending) > 0 {
		h += "  " + m.spinner.View()
	}
	return h
}

func (m Model) listView() string {
	th := ui.Current()
	v := m.view
	page := v.Apply(m.st.Todos)

	var b strings.Builder
	b.WriteString(m.header() + "\n")

	filter := "Status: " + th.Accent.Render(v.Status.Label())
	if v.Search != "" {
		filter += "   Search: " + th.Accent.Render(v.Search)
	}
	done, _ := model.Stats(m.st.Todos)
	b.WriteString(th.Muted.Render(ui.ProgressBar(done, len(m.st.Todos), 28)) + "\n")
	b.WriteString(filter + "\n\n")

	switch {
	case m.st.Loading && len(m.st.Todos) == 0:
		b.WriteString(m.spinner.View() + " Loading…\n")
	case len(page.Items) == 0:
		b.WriteString(th.Muted.Render("no todos") + "\n")
	}
	for i, t := range page.Items {
		b.WriteString(m.row(t, i == m.cursor) + "\n")
	}

	pg := m.pager
	pg.TotalPages = page.TotalPages
	pg.Page = page.Page - 1
	b.WriteString("\n" + th.Muted.Render(pg.View()) + "\n")

	switch m.mode {
	case modeAdd, modeEdit, modeSearch:
		b.WriteString(m.inputBox() + "\n")
	}
	if m.flash != "" {
		b.WriteString(th.Error.Render(m.flash) + "\n")
	}
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) row(t model.Todo, selected bool) string {
	th := ui.Current()
	title := ui.Truncate(t.Title, max(m.width-14, 20))
	if t.Completed {
		title = th.Done.Render(title)
	}
	prefix := "  "
	if selected {
		prefix = th.Selected.Render("> ")
	}
	line := prefix + ui.Box(t) + " " + title
	if m.st.IsPending(t.ID) {
		line += " " + th.Muted.Render(m.spinner.View())
	}
	return line
}

func (m Model) inputBox() string {
	th := ui.Current()
	var title string
	switch m.mode {
	case modeAdd:
		title = "Add new todo"
	case modeEdit:
		title = "Edit todo"
	default:
		title = "Search"
	}
	if m.inputErr != "" {
		title += "  " + th.Error.Render(m.inputErr)
	}
	box := lipgloss.NewStyle().
		Border(th.Border).
		BorderForeground(th.BorderColor).
		Padding(0, 1)
	return box.Render(title + "\n" + m.input.View())
}

func (m Model) detailView() string {
	th := ui.Current()
	var b strings.Builder
	b.WriteString(th.Title.Render("Todo Details") + "\n\n")

	t, ok := m.detailTodo()
	switch {
	case ok:
		b.WriteString(th.Title.Render(t.Title) + "\n\n")
		b.WriteString("Status:  " + ui.Badge(t) + "\n")
		b.WriteString(th.Muted.Render(fmt.Sprintf("ID:      %d", t.ID)) + "\n")
		b.WriteString(th.Muted.Render(fmt.Sprintf("User ID: %d", t.UserID)) + "\n\n")
		action := "[space] Toggle Status"
		if m.st.IsPending(t.ID) {
			action = m.spinner.View() + " Updating..."
		}
		b.WriteString(th.Accent.Render(action) + "\n")
	case m.detailErr == "":
		b.WriteString(m.spinner.View() + " Loading…\n")
	}
	if m.mode == modeEdit {
		b.WriteString(m.inputBox() + "\n")
	}
	if m.detailErr != "" {
		b.WriteString("\n" + th.Error.Render(m.detailErr) + "\n")
	}
	b.WriteString("\n" + m.help.View(detailKeys{m.keys}))
	return b.String()
}
