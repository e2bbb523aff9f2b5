package syncer

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/idilsaglam/tada/internal/model"
)

// Op names a user intent that changes the collection.
type Op string

const (
	OpAdd    Op = "add"
	OpEdit   Op = "edit"
	OpToggle Op = "toggle"
	OpDelete Op = "delete"
)

// Phase is where a mutation is in its lifecycle:
// Idle -> Pending(snapshot) -> Committed | RolledBack.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePending
	PhaseCommitted
	PhaseRolledBack
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePending:
		return "pending"
	case PhaseCommitted:
		return "committed"
	case PhaseRolledBack:
		return "rolled_back"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Mutation tracks one optimistic change. The snapshot is the record as it was
// before the change (absent for adds) and lives until the remote call settles.
type Mutation struct {
	ID     string
	Op     Op
	TodoID int
	Phase  Phase

	snapshot *model.Todo
	index    int
}

func newMutation(op Op, todoID int) *Mutation {
	return &Mutation{ID: uuid.NewString(), Op: op, TodoID: todoID, Phase: PhaseIdle}
}

// begin moves Idle -> Pending, holding the pre-change record and its position.
func (m *Mutation) begin(snapshot *model.Todo, index int) {
	if m.Phase != PhaseIdle {
		panic(fmt.Sprintf("syncer: begin %s mutation in phase %s", m.Op, m.Phase))
	}
	m.snapshot = snapshot
	m.index = index
	m.Phase = PhasePending
}

func (m *Mutation) settle(to Phase) {
	if m.Phase != PhasePending {
		panic(fmt.Sprintf("syncer: settle %s mutation in phase %s", m.Op, m.Phase))
	}
	m.Phase = to
	m.snapshot = nil
}

func (m *Mutation) commit() { m.settle(PhaseCommitted) }

func (m *Mutation) rollback() { m.settle(PhaseRolledBack) }
