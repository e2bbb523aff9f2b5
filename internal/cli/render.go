package cli

import (
	"fmt"

	"github.com/idilsaglam/tada/internal/model"
	"github.com/idilsaglam/tada/internal/syncer"
	"github.com/idilsaglam/tada/internal/ui"
	"github.com/idilsaglam/tada/internal/view"
)

func renderList(st syncer.State, page view.Page, vs view.State, group bool) string {
	th := ui.Current()
	done, pending := model.Stats(st.Todos)

	header := fmt.Sprintf("%s  %s %d  %s %d  %s %d",
		th.Title.Render("Todos"),
		th.Success.Render(th.SymDone), done,
		th.Pending.Render(th.SymUnchecked), pending,
		th.Accent.Render("Total"), len(st.Todos),
	)
	if st.Source == syncer.SourceCache {
		header += "  " + th.Pending.Render("[cached]")
	}

	var lines []string
	lines = append(lines, header)
	lines = append(lines, th.Muted.Render(ui.ProgressBar(done, len(st.Todos), 28)))
	filter := "Status: " + vs.Status.Label()
	if vs.Search != "" {
		filter += fmt.Sprintf("   Search: %q", vs.Search)
	}
	lines = append(lines, th.Muted.Render(filter))
	lines = append(lines, "")

	if group {
		lines = append(lines, groupLines(page.Items)...)
	} else {
		lines = append(lines, flatLines(page.Items)...)
	}
	lines = append(lines, "")
	lines = append(lines, th.Muted.Render(fmt.Sprintf("Page %d of %d  (%d matching)", page.Page, page.TotalPages, page.Total)))
	lines = append(lines, th.Muted.Render("Tip: add with `todo add \"Buy milk\"`"))
	return ui.Panel(lines)
}

func flatLines(todos []model.Todo) []string {
	th := ui.Current()
	if len(todos) == 0 {
		return []string{th.Muted.Render("no todos")}
	}
	out := make([]string, 0, len(todos))
	for _, t := range todos {
		title := ui.Truncate(t.Title, 80)
		if t.Completed {
			title = th.Done.Render(title)
		}
		out = append(out, fmt.Sprintf("%s %s %s", th.Muted.Render(fmt.Sprintf("%5d", t.ID)), ui.Box(t), title))
	}
	return out
}

func groupLines(todos []model.Todo) []string {
	th := ui.Current()
	var pend, done []model.Todo
	for _, t := range todos {
		if t.Completed {
			done = append(done, t)
		} else {
			pend = append(pend, t)
		}
	}
	section := func(name string, items []model.Todo) []string {
		lines := []string{th.Accent.Render(name)}
		if len(items) == 0 {
			return append(lines, th.Muted.Render("(none)"))
		}
		return append(lines, flatLines(items)...)
	}
	lines := section("Pending", pend)
	lines = append(lines, "")
	return append(lines, section("Done", done)...)
}

func renderDetail(t model.Todo) string {
	th := ui.Current()
	return ui.Panel([]string{
		th.Title.Render(t.Title),
		"",
		"Status:  " + ui.Badge(t),
		th.Muted.Render(fmt.Sprintf("ID:      %d", t.ID)),
		th.Muted.Render(fmt.Sprintf("User ID: %d", t.UserID)),
	})
}
