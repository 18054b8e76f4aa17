package storage

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/mistakeknot/stride/internal/core"
)

// Store is the single owner of the tasks table and the deletion archive.
// Not-found is reported as a false bool, never as an error; errors are
// reserved for storage I/O failures.
type Store interface {
	Add(ctx context.Context, title, description string) (core.Task, error)
	InsertAt(ctx context.Context, id int, title, description string) (core.Task, error)
	List(ctx context.Context) ([]core.Task, error)
	Search(ctx context.Context, keyword string) ([]core.Task, error)
	Complete(ctx context.Context, id int) (bool, error)
	Uncomplete(ctx context.Context, id int) (bool, error)
	Edit(ctx context.Context, id int, title, description *string) (bool, error)
	Delete(ctx context.Context, id int) (bool, error)
	ListDeleted(ctx context.Context, limit int) ([]core.DeletedTask, error)
	Restore(ctx context.Context, archiveID int) (bool, error)
	Renumber(ctx context.Context) error
	Counts(ctx context.Context) (core.Counts, error)
	Close() error
}

// InMemory is a minimal in-memory store for tests. It mirrors the sqlite
// store's id policy: next id is max live id + 1, resetting when empty.
type InMemory struct {
	tasks         []core.Task
	deleted       []core.DeletedTask
	nextArchiveID int
}

func NewInMemory() *InMemory {
	return &InMemory{nextArchiveID: 1}
}

func (m *InMemory) Add(ctx context.Context, title, description string) (core.Task, error) {
	t := core.Task{
		ID:          len(m.tasks) + 1,
		Title:       title,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	m.tasks = append(m.tasks, t)
	return t, nil
}

func (m *InMemory) InsertAt(ctx context.Context, id int, title, description string) (core.Task, error) {
	if id < 1 || id > len(m.tasks) {
		return m.Add(ctx, title, description)
	}
	t := core.Task{ID: id, Title: title, Description: description, CreatedAt: time.Now().UTC()}
	m.tasks = append(m.tasks, core.Task{})
	copy(m.tasks[id:], m.tasks[id-1:])
	m.tasks[id-1] = t
	for i := id; i < len(m.tasks); i++ {
		m.tasks[i].ID = i + 1
	}
	return t, nil
}

func (m *InMemory) List(ctx context.Context) ([]core.Task, error) {
	out := make([]core.Task, len(m.tasks))
	copy(out, m.tasks)
	return out, nil
}

func (m *InMemory) Search(ctx context.Context, keyword string) ([]core.Task, error) {
	kw := strings.ToLower(keyword)
	var out []core.Task
	for _, t := range m.tasks {
		if strings.Contains(strings.ToLower(t.Title), kw) || strings.Contains(strings.ToLower(t.Description), kw) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *InMemory) setCompleted(id int, completed bool) bool {
	for i := range m.tasks {
		if m.tasks[i].ID == id {
			m.tasks[i].Completed = completed
			return true
		}
	}
	return false
}

func (m *InMemory) Complete(ctx context.Context, id int) (bool, error) {
	return m.setCompleted(id, true), nil
}

func (m *InMemory) Uncomplete(ctx context.Context, id int) (bool, error) {
	return m.setCompleted(id, false), nil
}

func (m *InMemory) Edit(ctx context.Context, id int, title, description *string) (bool, error) {
	if title == nil && description == nil {
		return false, nil
	}
	for i := range m.tasks {
		if m.tasks[i].ID == id {
			if title != nil {
				m.tasks[i].Title = *title
			}
			if description != nil {
				m.tasks[i].Description = *description
			}
			return true, nil
		}
	}
	return false, nil
}

func (m *InMemory) Delete(ctx context.Context, id int) (bool, error) {
	for i := range m.tasks {
		if m.tasks[i].ID != id {
			continue
		}
		t := m.tasks[i]
		m.deleted = append([]core.DeletedTask{{
			ArchiveID:   m.nextArchiveID,
			OriginalID:  t.ID,
			Title:       t.Title,
			Description: t.Description,
			Completed:   t.Completed,
			CreatedAt:   t.CreatedAt,
			DeletedAt:   time.Now().UTC(),
		}}, m.deleted...)
		m.nextArchiveID++
		m.tasks = append(m.tasks[:i], m.tasks[i+1:]...)
		for j := i; j < len(m.tasks); j++ {
			m.tasks[j].ID = j + 1
		}
		return true, nil
	}
	return false, nil
}

func (m *InMemory) ListDeleted(ctx context.Context, limit int) ([]core.DeletedTask, error) {
	out := make([]core.DeletedTask, len(m.deleted))
	copy(out, m.deleted)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *InMemory) Restore(ctx context.Context, archiveID int) (bool, error) {
	for i, d := range m.deleted {
		if d.ArchiveID != archiveID {
			continue
		}
		m.tasks = append(m.tasks, core.Task{
			ID:          len(m.tasks) + 1,
			Title:       d.Title,
			Description: d.Description,
			Completed:   d.Completed,
			CreatedAt:   d.CreatedAt,
		})
		m.deleted = append(m.deleted[:i], m.deleted[i+1:]...)
		return true, nil
	}
	return false, nil
}

func (m *InMemory) Renumber(ctx context.Context) error {
	sort.Slice(m.tasks, func(i, j int) bool { return m.tasks[i].ID < m.tasks[j].ID })
	for i := range m.tasks {
		m.tasks[i].ID = i + 1
	}
	return nil
}

func (m *InMemory) Counts(ctx context.Context) (core.Counts, error) {
	c := core.Counts{Total: len(m.tasks)}
	for _, t := range m.tasks {
		if t.Completed {
			c.Completed++
		}
	}
	c.Pending = c.Total - c.Completed
	return c, nil
}

func (m *InMemory) Close() error { return nil }
