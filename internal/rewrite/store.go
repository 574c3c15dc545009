package rewrite

import (
	"sort"
	"sync"
	"time"
)

// Store is the in-memory registry of active rewrite tasks. Status
// transitions go through Claim/Complete/Fail so that at most one
// worker ever holds a task in the processing state.
type Store struct {
	mu        sync.Mutex
	tasks     map[string]*Task
	byArticle map[string]string
	clock     Clock
}

// NewStore builds an empty Store.
func NewStore(clock Clock) *Store {
	return &Store{
		tasks:     make(map[string]*Task),
		byArticle: make(map[string]string),
		clock:     clock,
	}
}

// Add registers a task in the pending state. Re-adding an existing ID,
// or an article that already has a live task, is a no-op so a repeated
// feed pull cannot duplicate work.
func (s *Store) Add(task Task) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[task.ID]; ok {
		return false
	}
	if task.ArticleID != "" {
		if _, ok := s.byArticle[task.ArticleID]; ok {
			return false
		}
	}
	now := s.clock.Now()
	task.Status = TaskStatusPending
	task.CreatedAt = now
	task.UpdatedAt = now
	s.tasks[task.ID] = &task
	if task.ArticleID != "" {
		s.byArticle[task.ArticleID] = task.ID
	}
	return true
}

// Claim atomically moves a task from pending to processing. The losing
// claimant gets ok=false and must walk away without side effects.
func (s *Store) Claim(id string) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok || task.Status != TaskStatusPending {
		return Task{}, false
	}
	task.Status = TaskStatusProcessing
	task.UpdatedAt = s.clock.Now()
	return *task, true
}

// Complete records a successful rewrite on a processing task.
func (s *Store) Complete(id string, result TaskResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok || task.Status != TaskStatusProcessing {
		return false
	}
	task.Status = TaskStatusCompleted
	task.Result = result
	task.UpdatedAt = s.clock.Now()
	return true
}

// Fail marks a task failed with the cause attached. Pending tasks may
// also be failed directly (feed-level rejections).
func (s *Store) Fail(id string, errText string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok || task.Status == TaskStatusCompleted || task.Status == TaskStatusFailed {
		return false
	}
	task.Status = TaskStatusFailed
	task.ErrorText = errText
	task.UpdatedAt = s.clock.Now()
	return true
}

// Get returns a snapshot of one task.
func (s *Store) Get(id string) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *task, true
}

// Remove evicts a terminal task once its result has been consumed,
// releasing its article for a future task.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return
	}
	if task.ArticleID != "" && s.byArticle[task.ArticleID] == id {
		delete(s.byArticle, task.ArticleID)
	}
	delete(s.tasks, id)
}

// Pending returns up to limit pending task snapshots, oldest first.
func (s *Store) Pending(limit int) []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Task, 0, limit)
	for _, task := range s.tasks {
		if task.Status == TaskStatusPending {
			out = append(out, *task)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// StaleProcessing returns tasks stuck in processing longer than maxAge.
// The watchdog sweep force-fails these.
func (s *Store) StaleProcessing(maxAge time.Duration) []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.clock.Now().Add(-maxAge)
	var out []Task
	for _, task := range s.tasks {
		if task.Status == TaskStatusProcessing && task.UpdatedAt.Before(cutoff) {
			out = append(out, *task)
		}
	}
	return out
}

// List returns snapshots of every task, newest first.
func (s *Store) List() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		out = append(out, *task)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Len reports the number of active tasks.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}
