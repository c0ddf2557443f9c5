package library

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrNotFound  = errors.New("library: task not found")
	ErrDuplicate = errors.New("library: task already exists")
)

// Store keeps tasks in memory, newest first. Every write replaces the task
// slice instead of mutating it, so snapshots returned by List stay valid.
type Store struct {
	lck   sync.Mutex
	tasks []Task
}

func NewStore() *Store {
	return &Store{}
}

// Add inserts a task at the front of the list.
func (s *Store) Add(t Task) error {
	if t.ID == "" {
		return fmt.Errorf("library: task without id")
	}
	s.lck.Lock()
	defer s.lck.Unlock()
	if s.index(t.ID) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicate, t.ID)
	}
	tasks := make([]Task, 0, len(s.tasks)+1)
	tasks = append(tasks, t)
	tasks = append(tasks, s.tasks...)
	s.tasks = tasks
	return nil
}

func (s *Store) Get(id string) (Task, bool) {
	s.lck.Lock()
	defer s.lck.Unlock()
	i := s.index(id)
	if i < 0 {
		return Task{}, false
	}
	return s.tasks[i], true
}

// List returns every task, newest first. The returned slice must not be
// modified.
func (s *Store) List() []Task {
	s.lck.Lock()
	defer s.lck.Unlock()
	return s.tasks
}

// Pending returns the tasks that are not settled yet.
func (s *Store) Pending() []Task {
	s.lck.Lock()
	defer s.lck.Unlock()
	var pending []Task
	for _, t := range s.tasks {
		if !t.Status.Settled() {
			pending = append(pending, t)
		}
	}
	return pending
}

// Update replaces the task with the given id by fn applied to its current
// value. Updates to different tasks never interfere with each other.
func (s *Store) Update(id string, fn func(Task) Task) (Task, error) {
	s.lck.Lock()
	defer s.lck.Unlock()
	i := s.index(id)
	if i < 0 {
		return Task{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	t := fn(s.tasks[i])
	t.ID = id
	tasks := make([]Task, len(s.tasks))
	copy(tasks, s.tasks)
	tasks[i] = t
	s.tasks = tasks
	return t, nil
}

func (s *Store) index(id string) int {
	for i, t := range s.tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}
