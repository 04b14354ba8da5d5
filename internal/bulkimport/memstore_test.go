package bulkimport

import (
	"context"
	"strings"
	"sync"

	"cargamasiva-backend-go/internal/models"
)

type memState struct {
	persons     map[string]models.Person
	credentials map[string]models.Credential
	assignments []models.RoleAssignment
	nextID      int64
}

func (s memState) clone() memState {
	out := memState{
		persons:     make(map[string]models.Person, len(s.persons)),
		credentials: make(map[string]models.Credential, len(s.credentials)),
		assignments: append([]models.RoleAssignment(nil), s.assignments...),
		nextID:      s.nextID,
	}
	for k, v := range s.persons {
		out.persons[k] = v
	}
	for k, v := range s.credentials {
		out.credentials[k] = v
	}
	return out
}

// memStore commits a transaction by swapping in the working copy, so a
// failed row leaves no trace.
type memStore struct {
	mu       sync.Mutex
	state    memState
	roles    *memRoles
	courses  map[int64]bool
	commits  int
	rollback int
}

func newMemStore() *memStore {
	return &memStore{
		state: memState{
			persons:     map[string]models.Person{},
			credentials: map[string]models.Credential{},
		},
		roles:   newMemRoles(),
		courses: map[int64]bool{1: true, 7: true, 8: true},
	}
}

func (m *memStore) WithinTx(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	work := m.state.clone()
	if err := fn(&memTx{state: &work, store: m}); err != nil {
		m.rollback++
		return err
	}
	m.state = work
	m.commits++
	return nil
}

func (m *memStore) person(rut string) (models.Person, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.state.persons[rut]
	return p, ok
}

func (m *memStore) credential(rut string) (models.Credential, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.state.credentials[rut]
	return c, ok
}

func (m *memStore) assignmentsOf(rut string) []models.RoleAssignment {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.RoleAssignment
	for _, a := range m.state.assignments {
		if a.RUT == rut {
			out = append(out, a)
		}
	}
	return out
}

func (m *memStore) personCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.persons)
}

type memTx struct {
	state *memState
	store *memStore
}

func (t *memTx) PersonByRUT(_ context.Context, rut string) (*models.Person, error) {
	p, ok := t.state.persons[rut]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (t *memTx) EmailOwner(_ context.Context, email string) (string, bool, error) {
	for rut, p := range t.state.persons {
		if strings.EqualFold(p.Email, email) {
			return rut, true, nil
		}
	}
	return "", false, nil
}

func (t *memTx) InsertPerson(_ context.Context, p *models.Person) error {
	t.state.persons[p.RUT] = *p
	return nil
}

func (t *memTx) UpdatePerson(_ context.Context, p *models.Person) error {
	t.state.persons[p.RUT] = *p
	return nil
}

func (t *memTx) CredentialExists(_ context.Context, rut string) (bool, error) {
	_, ok := t.state.credentials[rut]
	return ok, nil
}

func (t *memTx) InsertCredential(_ context.Context, c *models.Credential) error {
	t.state.credentials[c.RUT] = *c
	return nil
}

func (t *memTx) CourseExists(_ context.Context, courseID int64) (bool, error) {
	return t.store.courses[courseID], nil
}

func (t *memTx) LockCourse(context.Context, int64) error {
	return nil
}

func (t *memTx) ActiveAssignments(_ context.Context, rut string) ([]models.AssignmentView, error) {
	var out []models.AssignmentView
	for _, a := range t.state.assignments {
		if a.RUT == rut && a.Active {
			out = append(out, models.AssignmentView{RoleAssignment: a, Role: t.store.roles.byID[a.RoleID]})
		}
	}
	return out, nil
}

func (t *memTx) CourseRoleHolder(_ context.Context, roleID, courseID int64) (string, bool, error) {
	for _, a := range t.state.assignments {
		if a.Active && a.RoleID == roleID && a.CourseID != nil && *a.CourseID == courseID {
			return a.RUT, true, nil
		}
	}
	return "", false, nil
}

func (t *memTx) InsertAssignment(_ context.Context, a *models.RoleAssignment) error {
	t.state.nextID++
	a.ID = t.state.nextID
	t.state.assignments = append(t.state.assignments, *a)
	return nil
}

type memRoles struct {
	byCode map[string]models.Role
	byID   map[int64]models.Role
}

func newMemRoles() *memRoles {
	roles := []models.Role{
		{ID: 1, Code: "ADMINISTRADOR", Name: "Administrador", Category: "ADMINISTRATIVO", Active: true},
		{ID: 2, Code: "APODERADO", Name: "Apoderado", Category: "FAMILIA", Active: true},
		{ID: 3, Code: "PROFESOR", Name: "Profesor", Category: "DOCENTE", Active: true},
		{ID: 4, Code: "TESORERO", Name: "Tesorero", Category: "FINANZAS", RequiresCourse: true, UniquePerCourse: true, Active: true},
		{ID: 5, Code: "ALUMNO", Name: "Alumno", Category: models.CategoryStudent, IsStudent: true, Active: true},
	}
	m := &memRoles{byCode: map[string]models.Role{}, byID: map[int64]models.Role{}}
	for _, r := range roles {
		m.byCode[strings.ToLower(r.Code)] = r
		m.byID[r.ID] = r
	}
	return m
}

func (m *memRoles) RoleByCode(_ context.Context, code string) (models.Role, bool, error) {
	r, ok := m.byCode[strings.ToLower(code)]
	return r, ok, nil
}

type plainHasher struct{}

func (plainHasher) Hash(raw string) (string, error) {
	return "plain:" + raw, nil
}
