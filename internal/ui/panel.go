package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/idilsaglam/tada/internal/model"
)

// ProgressBar renders a bar with a done/total count.
func ProgressBar(done, total, width int) string {
	if total <= 0 {
		total = 1
	}
	if width <= 0 {
		width = 28
	}
	filled := min(done*width/total, width)
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + fmt.Sprintf("] %d/%d", done, total)
}

// Panel frames lines with the current theme's border.
func Panel(lines []string) string {
	t := Current()
	return lipgloss.NewStyle().
		Border(t.Border).
		BorderForeground(t.BorderColor).
		Padding(0, 1).
		Render(strings.Join(lines, "\n"))
}

// Box is the checkbox for a todo, colored by status.
func Box(t model.Todo) string {
	th := Current()
	if t.Completed {
		return th.Success.Render(th.BoxChecked)
	}
	return th.Muted.Render(th.BoxUnchecked)
}

// Badge renders a todo's status the way the detail views show it.
func Badge(t model.Todo) string {
	th := Current()
	if t.Completed {
		return th.Success.Render(th.SymDone + " Completed")
	}
	return th.Pending.Render(th.SymUnchecked + " Incomplete")
}

// Truncate shortens s to n runes with an ellipsis.
func Truncate(s string, n int) string {
	r := []rune(s)
	if n <= 3 || len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func OK(w io.Writer, msg string) {
	th := Current()
	fmt.Fprintln(w, th.Success.Render(th.SymOK+" "+msg))
}

func Fail(w io.Writer, msg string) {
	th := Current()
	fmt.Fprintln(w, th.Error.Render(th.SymFail+" "+msg))
}

// Notice is a warning that does not fail the command, such as offline mode.
func Notice(w io.Writer, msg string) {
	fmt.Fprintln(w, Current().Pending.Render("! "+msg))
}
