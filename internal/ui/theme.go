// Package ui holds the lipgloss styles shared by the CLI panels and the TUI.
package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme bundles palette, symbols and box borders.
// All UI helpers pull from current.
type Theme struct {
	Name string

	Title, Muted, Accent, Success, Error, Pending lipgloss.Style
	Selected, Done, Help                          lipgloss.Style

	Border      lipgloss.Border
	BorderColor lipgloss.TerminalColor

	BoxUnchecked, BoxChecked string
	SymOK, SymFail           string
	SymDone, SymUnchecked    string
}

// Themes lists the names SetTheme understands.
var Themes = []string{"neon", "mono", "classic"}

var current = themeFor("classic")

// SetTheme switches the active theme. Unknown names fall back to classic.
func SetTheme(name string) { current = themeFor(name) }

func Current() Theme { return current }

func themeFor(name string) Theme {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "neon":
		return Theme{
			Name:         "neon",
			Title:        lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13")),
			Muted:        lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
			Accent:       lipgloss.NewStyle().Foreground(lipgloss.Color("14")),
			Success:      lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
			Error:        lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
			Pending:      lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
			Selected:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13")),
			Done:         lipgloss.NewStyle().Faint(true).Strikethrough(true),
			Help:         lipgloss.NewStyle().Faint(true),
			Border:       lipgloss.RoundedBorder(),
			BorderColor:  lipgloss.Color("13"),
			BoxUnchecked: "◻", BoxChecked: "◼",
			SymOK: "✔", SymFail: "✖",
			SymDone: "✔", SymUnchecked: "•",
		}
	case "mono":
		plain := lipgloss.NewStyle()
		return Theme{
			Name:  "mono",
			Title: plain.Bold(true), Muted: plain, Accent: plain,
			Success: plain, Error: plain, Pending: plain,
			Selected: plain.Reverse(true), Done: plain, Help: plain,
			Border:       lipgloss.ASCIIBorder(),
			BorderColor:  lipgloss.NoColor{},
			BoxUnchecked: "[ ]", BoxChecked: "[x]",
			SymOK: "ok", SymFail: "error:",
			SymDone: "x", SymUnchecked: "-",
		}
	default:
		return Theme{
			Name:         "classic",
			Title:        lipgloss.NewStyle().Bold(true),
			Muted:        lipgloss.NewStyle().Faint(true),
			Accent:       lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
			Success:      lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
			Error:        lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
			Pending:      lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
			Selected:     lipgloss.NewStyle().Bold(true).Reverse(true),
			Done:         lipgloss.NewStyle().Faint(true).Strikethrough(true),
			Help:         lipgloss.NewStyle().Faint(true),
			Border:       lipgloss.NormalBorder(),
			BorderColor:  lipgloss.Color("8"),
			BoxUnchecked: "☐", BoxChecked: "☑",
			SymOK: "✔", SymFail: "✖",
			SymDone: "✔", SymUnchecked: "•",
		}
	}
}
