// Package mock provides an in-memory store implementing the repository
// contracts for tests. Transactions are copy-on-write: fn runs against a
// clone of the state and the clone replaces the state only when fn returns
// nil, which gives real rollback semantics without a database.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/garnizeh/resource/pkg/models"
	"github.com/garnizeh/resource/pkg/repository"
)

type pairKey struct {
	engineerID int64
	projectID  int64
}

type state struct {
	engineers   map[int64]models.Engineer
	projects    map[int64]models.Project
	assignments map[pairKey]models.Assignment
	nextID      int64
}

func (s *state) clone() *state {
	c := &state{
		engineers:   make(map[int64]models.Engineer, len(s.engineers)),
		projects:    make(map[int64]models.Project, len(s.projects)),
		assignments: make(map[pairKey]models.Assignment, len(s.assignments)),
		nextID:      s.nextID,
	}
	for k, v := range s.engineers {
		c.engineers[k] = v
	}
	for k, v := range s.projects {
		c.projects[k] = v
	}
	for k, v := range s.assignments {
		c.assignments[k] = v
	}
	return c
}

// Store is the in-memory repository. The zero value is not usable; call New.
type Store struct {
	mu sync.Mutex
	s  *state

	// Injectable faults for exercising rollback paths.
	FailCreateAssignment error
	FailTouchProject     error
	FailDeleteProject    error
}

var _ repository.EngineerRepo = (*Store)(nil)
var _ repository.ProjectRepo = (*Store)(nil)
var _ repository.AssignmentRepo = (*Store)(nil)
var _ repository.TxRunner = (*Store)(nil)

func New() *Store {
	return &Store{s: &state{
		engineers:   make(map[int64]models.Engineer),
		projects:    make(map[int64]models.Project),
		assignments: make(map[pairKey]models.Assignment),
		nextID:      1,
	}}
}

// InTx serializes transactions with the store mutex, mirroring the
// single-writer behavior of SQLite.
func (m *Store) InTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.s.clone()
	if err := fn(&tx{store: m, s: work}); err != nil {
		return err
	}

	m.s = work
	return nil
}

func (m *Store) CreateEngineer(ctx context.Context, e *models.Engineer) (int64, error) {
	if e == nil {
		return 0, fmt.Errorf("engineer is nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.s.nextID
	m.s.nextID++
	cp := *e
	cp.ID = id
	if cp.Version == 0 {
		cp.Version = 1
	}
	m.s.engineers[id] = cp
	return id, nil
}

func (m *Store) GetEngineer(ctx context.Context, id int64) (*models.Engineer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.s.engineers[id]; ok {
		cp := e
		return &cp, nil
	}
	return nil, nil
}

func (m *Store) GetEngineerByEmail(ctx context.Context, email string) (*models.Engineer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.s.engineers {
		if e.Email == email {
			cp := e
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *Store) ListEngineers(ctx context.Context, skill string, limit, offset int) ([]models.Engineer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Engineer
	for id := int64(1); id < m.s.nextID; id++ {
		e, ok := m.s.engineers[id]
		if !ok {
			continue
		}
		if skill != "" && !contains(e.Skills, skill) {
			continue
		}
		out = append(out, e)
	}
	return page(out, limit, offset), nil
}

// UpdateEngineer writes the profile fields only, matching the sqlite
// implementation; max_capacity and active change through the coordinator.
func (m *Store) UpdateEngineer(ctx context.Context, e *models.Engineer) error {
	if e == nil {
		return fmt.Errorf("engineer is nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.s.engineers[e.ID]
	if !ok {
		return fmt.Errorf("engineer %d does not exist", e.ID)
	}
	cur.Name = e.Name
	cur.Seniority = e.Seniority
	cur.Skills = append([]string(nil), e.Skills...)
	m.s.engineers[e.ID] = cur
	return nil
}

func (m *Store) CreateProject(ctx context.Context, p *models.Project) (int64, error) {
	if p == nil {
		return 0, fmt.Errorf("project is nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.s.nextID
	m.s.nextID++
	cp := *p
	cp.ID = id
	m.s.projects[id] = cp
	return id, nil
}

func (m *Store) GetProject(ctx context.Context, id int64) (*models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.s.projects[id]; ok {
		cp := p
		return &cp, nil
	}
	return nil, nil
}

func (m *Store) ListProjects(ctx context.Context, status models.ProjectStatus, managerID int64, limit, offset int) ([]models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Project
	for id := int64(1); id < m.s.nextID; id++ {
		p, ok := m.s.projects[id]
		if !ok {
			continue
		}
		if status != "" && p.Status != status {
			continue
		}
		if managerID > 0 && p.ManagerID != managerID {
			continue
		}
		out = append(out, p)
	}
	return page(out, limit, offset), nil
}

func (m *Store) UpdateProject(ctx context.Context, p *models.Project) error {
	if p == nil {
		return fmt.Errorf("project is nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.s.projects[p.ID]; !ok {
		return fmt.Errorf("project %d does not exist", p.ID)
	}
	m.s.projects[p.ID] = *p
	return nil
}

func (m *Store) GetAssignment(ctx context.Context, engineerID, projectID int64) (*models.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return getAssignment(m.s, engineerID, projectID), nil
}

func (m *Store) ListAssignmentsByEngineer(ctx context.Context, engineerID int64) ([]models.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return listAssignments(m.s, engineerID, 0), nil
}

func (m *Store) ListAssignmentsByProject(ctx context.Context, projectID int64) ([]models.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return listAssignments(m.s, 0, projectID), nil
}

// CountOrphanAssignments satisfies the auditor's store contract.
func (m *Store) CountOrphanAssignments(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.s.assignments {
		if _, ok := m.s.engineers[k.engineerID]; !ok {
			n++
			continue
		}
		if _, ok := m.s.projects[k.projectID]; !ok {
			n++
		}
	}
	return n, nil
}

// tx applies writes to a cloned state; the clone is discarded on error.
type tx struct {
	store *Store
	s     *state
}

var _ repository.Tx = (*tx)(nil)

func (t *tx) GetEngineer(ctx context.Context, id int64) (*models.Engineer, error) {
	if e, ok := t.s.engineers[id]; ok {
		cp := e
		return &cp, nil
	}
	return nil, nil
}

func (t *tx) GetProject(ctx context.Context, id int64) (*models.Project, error) {
	if p, ok := t.s.projects[id]; ok {
		cp := p
		return &cp, nil
	}
	return nil, nil
}

func (t *tx) GetAssignment(ctx context.Context, engineerID, projectID int64) (*models.Assignment, error) {
	return getAssignment(t.s, engineerID, projectID), nil
}

func (t *tx) ListAssignmentsByEngineer(ctx context.Context, engineerID int64) ([]models.Assignment, error) {
	return listAssignments(t.s, engineerID, 0), nil
}

func (t *tx) ListAssignmentsByProject(ctx context.Context, projectID int64) ([]models.Assignment, error) {
	return listAssignments(t.s, 0, projectID), nil
}

func (t *tx) CreateAssignment(ctx context.Context, a *models.Assignment) (int64, error) {
	if t.store.FailCreateAssignment != nil {
		return 0, t.store.FailCreateAssignment
	}
	if a == nil {
		return 0, fmt.Errorf("assignment is nil")
	}
	key := pairKey{a.EngineerID, a.ProjectID}
	if _, ok := t.s.assignments[key]; ok {
		return 0, fmt.Errorf("assignment already exists")
	}
	id := t.s.nextID
	t.s.nextID++
	cp := *a
	cp.ID = id
	t.s.assignments[key] = cp
	return id, nil
}

func (t *tx) UpdateAssignment(ctx context.Context, a *models.Assignment) error {
	if a == nil {
		return fmt.Errorf("assignment is nil")
	}
	key := pairKey{a.EngineerID, a.ProjectID}
	if _, ok := t.s.assignments[key]; !ok {
		return fmt.Errorf("assignment does not exist")
	}
	t.s.assignments[key] = *a
	return nil
}

func (t *tx) DeleteAssignment(ctx context.Context, engineerID, projectID int64) error {
	delete(t.s.assignments, pairKey{engineerID, projectID})
	return nil
}

func (t *tx) DeleteAssignmentsByProject(ctx context.Context, projectID int64) error {
	for k := range t.s.assignments {
		if k.projectID == projectID {
			delete(t.s.assignments, k)
		}
	}
	return nil
}

func (t *tx) DeleteProject(ctx context.Context, id int64) error {
	if t.store.FailDeleteProject != nil {
		return t.store.FailDeleteProject
	}
	delete(t.s.projects, id)
	return nil
}

func (t *tx) SetEngineerActive(ctx context.Context, id int64, active bool) error {
	e, ok := t.s.engineers[id]
	if !ok {
		return fmt.Errorf("engineer %d does not exist", id)
	}
	e.Active = active
	t.s.engineers[id] = e
	return nil
}

func (t *tx) SetEngineerMaxCapacity(ctx context.Context, id int64, maxCapacity int) error {
	e, ok := t.s.engineers[id]
	if !ok {
		return fmt.Errorf("engineer %d does not exist", id)
	}
	e.MaxCapacity = maxCapacity
	t.s.engineers[id] = e
	return nil
}

func (t *tx) BumpEngineerVersion(ctx context.Context, id, version int64) (bool, error) {
	e, ok := t.s.engineers[id]
	if !ok {
		return false, nil
	}
	if e.Version != version {
		return false, nil
	}
	e.Version++
	t.s.engineers[id] = e
	return true, nil
}

func (t *tx) TouchProject(ctx context.Context, id int64) error {
	if t.store.FailTouchProject != nil {
		return t.store.FailTouchProject
	}
	return nil
}

func getAssignment(s *state, engineerID, projectID int64) *models.Assignment {
	if a, ok := s.assignments[pairKey{engineerID, projectID}]; ok {
		cp := a
		return &cp
	}
	return nil
}

func listAssignments(s *state, engineerID, projectID int64) []models.Assignment {
	var out []models.Assignment
	for id := int64(1); id < s.nextID; id++ {
		for k, a := range s.assignments {
			if a.ID != id {
				continue
			}
			if engineerID != 0 && k.engineerID != engineerID {
				continue
			}
			if projectID != 0 && k.projectID != projectID {
				continue
			}
			out = append(out, a)
		}
	}
	return out
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func page[T any](in []T, limit, offset int) []T {
	if offset >= len(in) {
		return nil
	}
	in = in[offset:]
	if limit > 0 && limit < len(in) {
		in = in[:limit]
	}
	return in
}
