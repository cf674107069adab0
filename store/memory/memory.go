// Package memory provides an in-memory project.Store for tests and dev.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/warp/cashflow-engine/generic"
	"github.com/warp/cashflow-engine/project"
	"github.com/warp/cashflow-engine/schedule"
	"github.com/warp/cashflow-engine/terms"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Store struct {
	mu        sync.RWMutex
	projects  map[project.ID]project.Project
	documents map[project.ID][]project.Document
	now       func() time.Time
}

var _ project.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		projects:  make(map[project.ID]project.Project),
		documents: make(map[project.ID][]project.Document),
		now:       time.Now,
	}
}

func (m *Store) CreateProject(_ context.Context, p project.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[p.ID]; ok {
		return fmt.Errorf("%w: project %s", generic.ErrDuplicateID, p.ID)
	}
	sched := schedule.New()
	for _, a := range p.Activities {
		if err := sched.Add(a); err != nil {
			return err
		}
	}
	p.Activities = sched.Snapshot()
	m.projects[p.ID] = p
	return nil
}

func (m *Store) GetProject(_ context.Context, id project.ID) (project.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[id]
	if !ok {
		return project.Project{}, fmt.Errorf("%w: %s", generic.ErrProjectNotFound, id)
	}
	return clone(p), nil
}

// ListProjects returns projects oldest first.
func (m *Store) ListProjects(_ context.Context) ([]project.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]project.Project, 0, len(m.projects))
	for _, p := range m.projects {
		out = append(out, clone(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Store) DeleteProject(_ context.Context, id project.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[id]; !ok {
		return fmt.Errorf("%w: %s", generic.ErrProjectNotFound, id)
	}
	delete(m.projects, id)
	delete(m.documents, id)
	return nil
}

func (m *Store) AddActivity(_ context.Context, id project.ID, a schedule.Activity) error {
	return m.editSchedule(id, func(s *schedule.Schedule) error { return s.Add(a) })
}

func (m *Store) UpdateActivity(_ context.Context, id project.ID, a schedule.Activity) error {
	return m.editSchedule(id, func(s *schedule.Schedule) error { return s.Update(a) })
}

func (m *Store) DeleteActivity(_ context.Context, id project.ID, activityID schedule.ActivityID) error {
	return m.editSchedule(id, func(s *schedule.Schedule) error { return s.Remove(activityID) })
}

// editSchedule applies fn to a working copy and commits only on success.
func (m *Store) editSchedule(id project.ID, fn func(*schedule.Schedule) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return fmt.Errorf("%w: %s", generic.ErrProjectNotFound, id)
	}
	sched := p.Schedule()
	if err := fn(sched); err != nil {
		return err
	}
	p.Activities = sched.Snapshot()
	p.UpdatedAt = m.now()
	m.projects[id] = p
	return nil
}

func (m *Store) SetTerms(_ context.Context, id project.ID, t terms.CommercialTerms, source terms.Source) error {
	if err := t.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return fmt.Errorf("%w: %s", generic.ErrProjectNotFound, id)
	}
	p.Terms = t
	p.TermsSource = source
	p.UpdatedAt = m.now()
	m.projects[id] = p
	return nil
}

func (m *Store) SaveDocument(_ context.Context, d project.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[d.ProjectID]; !ok {
		return fmt.Errorf("%w: %s", generic.ErrProjectNotFound, d.ProjectID)
	}
	m.documents[d.ProjectID] = append(m.documents[d.ProjectID], d)
	return nil
}

// ListDocuments returns a project's documents in save order.
func (m *Store) ListDocuments(_ context.Context, id project.ID) ([]project.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.projects[id]; !ok {
		return nil, fmt.Errorf("%w: %s", generic.ErrProjectNotFound, id)
	}
	out := make([]project.Document, len(m.documents[id]))
	copy(out, m.documents[id])
	return out, nil
}

func clone(p project.Project) project.Project {
	p.Activities = append([]schedule.Activity(nil), p.Activities...)
	return p
}
