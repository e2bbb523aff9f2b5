// Package syncer keeps the in-memory todo collection in step with the remote
// API and the local cache.
//
// Every mutation is applied to memory first and then confirmed remotely. A
// failed confirmation restores the pre-mutation snapshot, so memory either
// matches a successful remote call or the state before the call. At most one
// mutation per todo id is in flight; mutations on different ids run
// concurrently. Refresh waits for in-flight mutations and holds new ones back
// until it has replaced the collection.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/idilsaglam/tada/internal/logging"
	"github.com/idilsaglam/tada/internal/metrics"
	"github.com/idilsaglam/tada/internal/model"
)

// Remote is the authoritative todo API.
type Remote interface {
	List(ctx context.Context) ([]model.Todo, error)
	Get(ctx context.Context, id int) (model.Todo, error)
	Create(ctx context.Context, fields model.Patch) (model.Todo, error)
	Update(ctx context.Context, id int, fields model.Patch) (model.Todo, error)
	Delete(ctx context.Context, id int) error
}

// Cache is the best-effort local mirror.
type Cache interface {
	LoadAll(ctx context.Context) []model.Todo
	SaveAll(ctx context.Context, todos []model.Todo)
	Upsert(ctx context.Context, t model.Todo)
	Remove(ctx context.Context, id int)
}

// Source says where the current collection came from.
type Source int

const (
	SourceNone Source = iota
	SourceRemote
	SourceCache
)

func (s Source) String() string {
	switch s {
	case SourceRemote:
		return "remote"
	case SourceCache:
		return "cache"
	}
	return "none"
}

// State is a copy of everything a view renders.
type State struct {
	Todos   []model.Todo
	Source  Source
	Loading bool
	Err     error // last refresh failure; data is the cached fallback
	Pending []Mutation
}

// IsPending reports whether a mutation on id is waiting on the remote API.
func (s State) IsPending(id int) bool {
	for _, m := range s.Pending {
		if m.TodoID == id {
			return true
		}
	}
	return false
}

type Synchronizer struct {
	remote  Remote
	cache   Cache
	logger  *log.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	userID  int

	mu      sync.Mutex
	todos   []model.Todo
	source  Source
	loading bool
	lastErr error
	pending map[string]*Mutation
	aliases map[int]int // temporary id -> server id, once an add commits

	// gate: mutations hold it shared, Refresh exclusively.
	gate    sync.RWMutex
	locks   *keyLock
	group   singleflight.Group
	changes chan struct{}
}

type Option func(*Synchronizer)

func WithLogger(l *log.Logger) Option { return func(s *Synchronizer) { s.logger = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *Synchronizer) { s.metrics = m } }

// WithClock sets the time source used for temporary ids.
func WithClock(now func() time.Time) Option { return func(s *Synchronizer) { s.now = now } }

// WithUserID sets the owner stamped on added todos.
func WithUserID(id int) Option { return func(s *Synchronizer) { s.userID = id } }

func New(remote Remote, cache Cache, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		remote:  remote,
		cache:   cache,
		now:     time.Now,
		userID:  1,
		todos:   []model.Todo{},
		pending: make(map[string]*Mutation),
		aliases: make(map[int]int),
		locks:   newKeyLock(),
		changes: make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(s)
	}
	s.logger = logging.OrDiscard(s.logger)
	return s
}

// Changes signals after state changes. Signals coalesce; read State for the
// latest picture.
func (s *Synchronizer) Changes() <-chan struct{} { return s.changes }

func (s *Synchronizer) notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		Todos:   append([]model.Todo(nil), s.todos...),
		Source:  s.source,
		Loading: s.loading,
		Err:     s.lastErr,
	}
	for _, m := range s.pending {
		st.Pending = append(st.Pending, *m)
	}
	sort.Slice(st.Pending, func(i, j int) bool { return st.Pending[i].TodoID < st.Pending[j].TodoID })
	return st
}

// Todos returns a copy of the collection.
func (s *Synchronizer) Todos() []model.Todo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Todo(nil), s.todos...)
}

// Refresh replaces the collection with the remote list. When the remote call
// fails the cached collection is shown instead and the error is returned as a
// notice; the synchronizer stays usable. Concurrent calls share one request.
//
// The shared request ignores any single caller's cancellation and is bounded by
// the remote client's timeout; a caller whose ctx ends stops waiting for it.
func (s *Synchronizer) Refresh(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan("refresh", func() (any, error) {
		return nil, s.refresh(shared)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return fmt.Errorf("refresh: %w", ctx.Err())
	}
}

func (s *Synchronizer) refresh(ctx context.Context) error {
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()
	s.notify()

	s.gate.Lock()
	defer s.gate.Unlock()

	todos, err := s.remote.List(ctx)
	if err == nil {
		todos = dedupe(todos)
		s.mu.Lock()
		s.todos = todos
		s.source = SourceRemote
		s.lastErr = nil
		s.loading = false
		s.mu.Unlock()

		s.cache.SaveAll(ctx, todos)
		s.metrics.Refresh(SourceRemote.String())
		s.logger.Info("refreshed from remote", "count", len(todos))
		s.notify()
		return nil
	}

	cached := dedupe(s.cache.LoadAll(ctx))
	s.mu.Lock()
	s.todos = cached
	s.source = SourceCache
	s.lastErr = err
	s.loading = false
	s.mu.Unlock()

	s.metrics.Refresh(SourceCache.String())
	s.logger.Warn("refresh failed, showing cached todos", "count", len(cached), "err", err)
	s.notify()
	return fmt.Errorf("refresh: %w", err)
}

// Add inserts a todo at the head of the collection under a temporary id, then
// creates it remotely. On success the server id replaces the temporary one;
// on failure the record is removed again.
func (s *Synchronizer) Add(ctx context.Context, title string) (model.Todo, error) {
	title, err := model.ValidateTitle(title)
	if err != nil {
		s.metrics.Mutation(string(OpAdd), metrics.OutcomeRejected)
		return model.Todo{}, err
	}

	s.gate.RLock()
	defer s.gate.RUnlock()

	s.mu.Lock()
	todo := model.Todo{ID: s.tempID(), UserID: s.userID, Title: title}
	unlock, ok := s.locks.TryLock(todo.ID)
	for !ok {
		todo.ID++
		for s.taken(todo.ID) {
			todo.ID++
		}
		unlock, ok = s.locks.TryLock(todo.ID)
	}
	defer unlock()

	m := newMutation(OpAdd, todo.ID)
	m.begin(nil, 0)
	s.todos = append([]model.Todo{todo}, s.todos...)
	s.pending[m.ID] = m
	s.mu.Unlock()
	s.notify()

	logger := s.logger.With("op", m.Op, "op_id", m.ID, "temp_id", todo.ID)
	s.metrics.PendingAdd(1)
	completed := false
	created, err := s.remote.Create(ctx, model.Patch{Title: &todo.Title, Completed: &completed, UserID: &todo.UserID})
	s.metrics.PendingAdd(-1)

	s.mu.Lock()
	delete(s.pending, m.ID)
	if err != nil {
		if i := model.IndexOf(s.todos, todo.ID); i >= 0 {
			s.todos = append(s.todos[:i], s.todos[i+1:]...)
		}
		m.rollback()
		s.mu.Unlock()
		s.notify()

		s.metrics.Mutation(string(m.Op), metrics.OutcomeRolledBack)
		logger.Warn("add rolled back", "err", err)
		return model.Todo{}, fmt.Errorf("add %q: %w", title, err)
	}

	final := todo
	switch {
	case created.ID == 0 || created.ID == todo.ID:
	case s.taken(created.ID):
		logger.Warn("confirmed id already in use, keeping temporary id", "confirmed_id", created.ID)
	default:
		final.ID = created.ID
		// mutations queued on the temporary id follow the record
		s.aliases[todo.ID] = final.ID
	}
	if i := model.IndexOf(s.todos, todo.ID); i >= 0 {
		s.todos[i] = final
	}
	m.commit()
	s.mu.Unlock()
	s.notify()

	s.cache.Upsert(context.WithoutCancel(ctx), final)
	s.metrics.Mutation(string(m.Op), metrics.OutcomeCommitted)
	logger.Info("add committed", "id", final.ID)
	return final, nil
}

// Edit changes a todo's title.
func (s *Synchronizer) Edit(ctx context.Context, id int, title string) (model.Todo, error) {
	title, err := model.ValidateTitle(title)
	if err != nil {
		s.metrics.Mutation(string(OpEdit), metrics.OutcomeRejected)
		return model.Todo{}, err
	}
	return s.update(ctx, OpEdit, id, func(model.Todo) model.Patch {
		return model.TitlePatch(title)
	})
}

// Toggle flips a todo's completed flag.
func (s *Synchronizer) Toggle(ctx context.Context, id int) (model.Todo, error) {
	return s.update(ctx, OpToggle, id, func(t model.Todo) model.Patch {
		return model.CompletedPatch(!t.Completed)
	})
}

func (s *Synchronizer) update(ctx context.Context, op Op, id int, patchFor func(model.Todo) model.Patch) (model.Todo, error) {
	id, release, err := s.acquire(ctx, op, id)
	if err != nil {
		return model.Todo{}, err
	}
	defer release()

	m := newMutation(op, id)
	s.mu.Lock()
	idx := model.IndexOf(s.todos, id)
	if idx < 0 {
		s.mu.Unlock()
		s.metrics.Mutation(string(op), metrics.OutcomeRejected)
		return model.Todo{}, fmt.Errorf("%s: %w", op, &model.NotFoundError{ID: id})
	}
	snapshot := s.todos[idx]
	patch := patchFor(snapshot)
	updated := patch.Apply(snapshot)
	s.todos[idx] = updated
	m.begin(&snapshot, idx)
	s.pending[m.ID] = m
	s.mu.Unlock()
	s.notify()

	logger := s.logger.With("op", op, "op_id", m.ID, "id", id)
	s.metrics.PendingAdd(1)
	_, err = s.remote.Update(ctx, id, patch)
	s.metrics.PendingAdd(-1)

	s.mu.Lock()
	delete(s.pending, m.ID)
	if err != nil {
		s.restore(m)
		m.rollback()
	} else {
		m.commit()
	}
	s.mu.Unlock()
	s.notify()

	if err != nil {
		s.metrics.Mutation(string(op), metrics.OutcomeRolledBack)
		logger.Warn("rolled back", "err", err)
		return model.Todo{}, fmt.Errorf("%s todo %d: %w", op, id, err)
	}
	s.cache.Upsert(context.WithoutCancel(ctx), updated)
	s.metrics.Mutation(string(op), metrics.OutcomeCommitted)
	logger.Info("committed")
	return updated, nil
}

// Delete removes a todo, putting it back at its old position if the remote
// delete fails.
func (s *Synchronizer) Delete(ctx context.Context, id int) error {
	id, release, err := s.acquire(ctx, OpDelete, id)
	if err != nil {
		return err
	}
	defer release()

	m := newMutation(OpDelete, id)
	s.mu.Lock()
	idx := model.IndexOf(s.todos, id)
	if idx < 0 {
		s.mu.Unlock()
		s.metrics.Mutation(string(OpDelete), metrics.OutcomeRejected)
		return fmt.Errorf("%s: %w", OpDelete, &model.NotFoundError{ID: id})
	}
	snapshot := s.todos[idx]
	s.todos = append(s.todos[:idx:idx], s.todos[idx+1:]...)
	m.begin(&snapshot, idx)
	s.pending[m.ID] = m
	s.mu.Unlock()
	s.notify()

	logger := s.logger.With("op", OpDelete, "op_id", m.ID, "id", id)
	s.metrics.PendingAdd(1)
	err = s.remote.Delete(ctx, id)
	s.metrics.PendingAdd(-1)

	s.mu.Lock()
	delete(s.pending, m.ID)
	if err != nil {
		s.restore(m)
		m.rollback()
	} else {
		m.commit()
	}
	s.mu.Unlock()
	s.notify()

	if err != nil {
		s.metrics.Mutation(string(OpDelete), metrics.OutcomeRolledBack)
		logger.Warn("rolled back", "err", err)
		return fmt.Errorf("delete todo %d: %w", id, err)
	}
	s.cache.Remove(context.WithoutCancel(ctx), id)
	s.metrics.Mutation(string(OpDelete), metrics.OutcomeCommitted)
	logger.Info("committed")
	return nil
}

// Lookup resolves one todo: memory first, then the remote API, then the cache.
func (s *Synchronizer) Lookup(ctx context.Context, id int) (model.Todo, error) {
	if err := model.ValidateID(id); err != nil {
		return model.Todo{}, err
	}

	s.mu.Lock()
	if i := model.IndexOf(s.todos, id); i >= 0 {
		t := s.todos[i]
		s.mu.Unlock()
		return t, nil
	}
	s.mu.Unlock()

	t, err := s.remote.Get(ctx, id)
	if err == nil {
		return t, nil
	}
	for _, c := range s.cache.LoadAll(context.WithoutCancel(ctx)) {
		if c.ID == id {
			s.logger.Debug("lookup served from cache", "id", id, "err", err)
			return c, nil
		}
	}
	if errors.Is(err, model.ErrNotFound) {
		return model.Todo{}, &model.NotFoundError{ID: id}
	}
	return model.Todo{}, fmt.Errorf("lookup todo %d: %w", id, err)
}

// acquire serializes mutations per id and keeps them out of a running Refresh.
// When the id turned out to be a temporary one whose add has committed, the
// lock moves to the server id, which is returned.
func (s *Synchronizer) acquire(ctx context.Context, op Op, id int) (int, func(), error) {
	if err := model.ValidateID(id); err != nil {
		s.metrics.Mutation(string(op), metrics.OutcomeRejected)
		return 0, nil, err
	}
	requested := id
	for {
		unlock, err := s.locks.Lock(ctx, id)
		if err != nil {
			return 0, nil, fmt.Errorf("%s todo %d: waiting for earlier change: %w", op, requested, err)
		}
		s.mu.Lock()
		next, moved := s.aliases[id]
		s.mu.Unlock()
		if !moved {
			s.gate.RLock()
			return id, func() {
				s.gate.RUnlock()
				unlock()
			}, nil
		}
		unlock()
		id = next
	}
}

// restore puts a snapshot back. Caller holds s.mu.
func (s *Synchronizer) restore(m *Mutation) {
	if m.snapshot == nil {
		return
	}
	if i := model.IndexOf(s.todos, m.snapshot.ID); i >= 0 {
		s.todos[i] = *m.snapshot
		return
	}
	at := min(m.index, len(s.todos))
	s.todos = append(s.todos[:at], append([]model.Todo{*m.snapshot}, s.todos[at:]...)...)
}

// tempID picks a clock-based id no record or pending mutation uses.
// Caller holds s.mu.
func (s *Synchronizer) tempID() int {
	id := int(s.now().UnixMilli())
	for s.taken(id) {
		id++
	}
	return id
}

// taken reports whether id is used in memory or reserved by an in-flight
// mutation (a pending delete still owns its id). Caller holds s.mu.
func (s *Synchronizer) taken(id int) bool {
	if model.IndexOf(s.todos, id) >= 0 {
		return true
	}
	if _, ok := s.aliases[id]; ok {
		return true
	}
	for _, m := range s.pending {
		if m.TodoID == id {
			return true
		}
	}
	return false
}

// dedupe keeps the first record for each id.
func dedupe(todos []model.Todo) []model.Todo {
	seen := make(map[int]bool, len(todos))
	out := make([]model.Todo, 0, len(todos))
	for _, t := range todos {
		if seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		out = append(out, t)
	}
	return out
}
