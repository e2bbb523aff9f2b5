// Package view derives the paged, filtered list a screen shows from the full
// todo collection. Everything here is pure.
package view

import (
	"strings"

	"github.com/idilsaglam/tada/internal/model"
)

const PageSize = 10

// Filter keeps todos whose title contains search (case-insensitive) and whose
// status matches. Order is preserved.
func Filter(todos []model.Todo, search string, status model.Status) []model.Todo {
	needle := strings.ToLower(search)
	out := make([]model.Todo, 0, len(todos))
	for _, t := range todos {
		if !status.Match(t) {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(t.Title), needle) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// TotalPages is ceil(n/PageSize), never less than 1.
func TotalPages(n int) int {
	if n <= 0 {
		return 1
	}
	return (n + PageSize - 1) / PageSize
}

// ClampPage keeps page within [1, TotalPages(n)].
func ClampPage(page, n int) int {
	if page < 1 {
		return 1
	}
	if tp := TotalPages(n); page > tp {
		return tp
	}
	return page
}

// State is the user-controlled part of the list view.
type State struct {
	Search string
	Status model.Status
	Page   int
}

func NewState() State {
	return State{Status: model.StatusAll, Page: 1}
}

// SetSearch changes the search string; a change resets the page.
func (s *State) SetSearch(search string) {
	if search != s.Search {
		s.Page = 1
	}
	s.Search = search
}

// SetStatus changes the status filter; a change resets the page.
func (s *State) SetStatus(status model.Status) {
	if status == "" {
		status = model.StatusAll
	}
	if status != s.Status {
		s.Page = 1
	}
	s.Status = status
}

// SetPage moves to page n, clamped against the filtered size of todos.
func (s *State) SetPage(n int, todos []model.Todo) {
	s.Page = ClampPage(n, len(Filter(todos, s.Search, s.Status)))
}

func (s *State) NextPage(todos []model.Todo) { s.SetPage(s.Page+1, todos) }

func (s *State) PrevPage(todos []model.Todo) { s.SetPage(s.Page-1, todos) }

// Page is one rendered page of the filtered collection.
type Page struct {
	Items      []model.Todo
	Page       int
	TotalPages int
	Total      int // filtered count
}

// Apply filters and paginates todos. The stored page is clamped too, so a
// shrinking collection never leaves the view past its last page.
func (s *State) Apply(todos []model.Todo) Page {
	filtered := Filter(todos, s.Search, s.Status)
	s.Page = ClampPage(s.Page, len(filtered))

	start := (s.Page - 1) * PageSize
	end := min(start+PageSize, len(filtered))
	return Page{
		Items:      filtered[start:end],
		Page:       s.Page,
		TotalPages: TotalPages(len(filtered)),
		Total:      len(filtered),
	}
}
