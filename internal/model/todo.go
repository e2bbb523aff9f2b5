package model

import "strings"

// Todo is the domain model for a todo entry, shaped like the remote API's JSON.
type Todo struct {
	ID        int    `json:"id"`
	UserID    int    `json:"userId"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// Patch carries a partial update. Nil fields are left unchanged.
type Patch struct {
	Title     *string `json:"title,omitempty"`
	Completed *bool   `json:"completed,omitempty"`
	UserID    *int    `json:"userId,omitempty"`
}

// Apply returns t with the patch's fields set.
func (p Patch) Apply(t Todo) Todo {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	if p.UserID != nil {
		t.UserID = *p.UserID
	}
	return t
}

func TitlePatch(title string) Patch { return Patch{Title: &title} }

func CompletedPatch(done bool) Patch { return Patch{Completed: &done} }

// Status selects todos by their completed flag.
type Status string

const (
	StatusAll        Status = "all"
	StatusCompleted  Status = "completed"
	StatusIncomplete Status = "incomplete"
)

// Statuses lists filters in the order the views cycle through them.
var Statuses = []Status{StatusAll, StatusCompleted, StatusIncomplete}

// ParseStatus accepts the canonical names plus done/pending aliases.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return StatusAll, nil
	case "completed", "done":
		return StatusCompleted, nil
	case "incomplete", "pending", "todo":
		return StatusIncomplete, nil
	}
	return "", &ValidationError{Field: "status", Msg: "unknown status " + strings.TrimSpace(s)}
}

// Match reports whether t passes the status predicate.
func (s Status) Match(t Todo) bool {
	switch s {
	case StatusCompleted:
		return t.Completed
	case StatusIncomplete:
		return !t.Completed
	}
	return true
}

// Next cycles all -> completed -> incomplete -> all.
func (s Status) Next() Status {
	for i, st := range Statuses {
		if st == s {
			return Statuses[(i+1)%len(Statuses)]
		}
	}
	return StatusAll
}

// Label is the capitalized name shown by views.
func (s Status) Label() string {
	if s == "" {
		return "All"
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

// ValidateTitle trims the title and rejects empty input.
func ValidateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", &ValidationError{Field: "title", Msg: "title cannot be empty"}
	}
	return title, nil
}

func ValidateID(id int) error {
	if id <= 0 {
		return &ValidationError{Field: "id", Msg: "invalid todo id"}
	}
	return nil
}

// Stats counts done and pending todos.
func Stats(todos []Todo) (done, pending int) {
	for _, t := range todos {
		if t.Completed {
			done++
		} else {
			pending++
		}
	}
	return
}

// IndexOf returns the position of id in todos, or -1.
func IndexOf(todos []Todo, id int) int {
	for i, t := range todos {
		if t.ID == id {
			return i
		}
	}
	return -1
}
