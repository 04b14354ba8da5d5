package services

import (
	"context"
	"sort"
	"strings"
	"sync"

	"cargamasiva-backend-go/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const RoleAdmin = "ADMINISTRADOR"

// DefaultRoles is the catalog seeded on startup.
var DefaultRoles = []models.Role{
	{Code: RoleAdmin, Name: "Administrador", Category: "ADMINISTRATIVO", Active: true},
	{Code: "APODERADO", Name: "Apoderado", Category: "FAMILIA", Active: true},
	{Code: "PROFESOR", Name: "Profesor", Category: "DOCENTE", Active: true},
	{Code: "TESORERO", Name: "Tesorero", Category: "FINANZAS", RequiresCourse: true, UniquePerCourse: true, Active: true},
	{Code: "ALUMNO", Name: "Alumno", Category: models.CategoryStudent, IsStudent: true, Active: true},
}

// EnsureRoles inserts the default roles that are missing. Existing rows are
// left untouched.
func EnsureRoles(ctx context.Context, db *sqlx.DB) error {
	codes := make([]string, 0, len(DefaultRoles))
	for _, r := range DefaultRoles {
		codes = append(codes, r.Code)
	}
	existing := []string{}
	if err := db.SelectContext(ctx, &existing, `SELECT codigo FROM roles WHERE codigo = ANY($1)`, pq.Array(codes)); err != nil {
		return WrapError(err, "roles existentes")
	}
	have := map[string]bool{}
	for _, code := range existing {
		have[code] = true
	}
	for _, r := range DefaultRoles {
		if have[r.Code] {
			continue
		}
		if _, err := db.NamedExecContext(ctx, `
INSERT INTO roles (codigo, nombre, categoria, es_alumno, requiere_curso, es_unico_por_curso, activo)
VALUES (:codigo, :nombre, :categoria, :es_alumno, :requiere_curso, :es_unico_por_curso, :activo)
ON CONFLICT (codigo) DO NOTHING`, r); err != nil {
			return WrapError(err, "sembrar rol "+r.Code)
		}
	}
	return nil
}

// RoleCatalog is an in-memory view of the active roles, keyed by upper-case
// code. It implements bulkimport.RoleLookup.
type RoleCatalog struct {
	mu     sync.RWMutex
	byCode map[string]models.Role
}

func NewRoleCatalog(roles []models.Role) *RoleCatalog {
	c := &RoleCatalog{}
	c.replace(roles)
	return c
}

func LoadRoleCatalog(ctx context.Context, db *sqlx.DB) (*RoleCatalog, error) {
	c := &RoleCatalog{}
	if err := c.Reload(ctx, db); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *RoleCatalog) Reload(ctx context.Context, db *sqlx.DB) error {
	roles := []models.Role{}
	if err := db.SelectContext(ctx, &roles, `
SELECT id, codigo, nombre, categoria, es_alumno, requiere_curso, es_unico_por_curso, activo
FROM roles
WHERE activo
ORDER BY id`); err != nil {
		return WrapError(err, "cargar roles")
	}
	c.replace(roles)
	return nil
}

func (c *RoleCatalog) replace(roles []models.Role) {
	byCode := make(map[string]models.Role, len(roles))
	for _, r := range roles {
		byCode[strings.ToUpper(r.Code)] = r
	}
	c.mu.Lock()
	c.byCode = byCode
	c.mu.Unlock()
}

func (c *RoleCatalog) RoleByCode(_ context.Context, code string) (models.Role, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.byCode[strings.ToUpper(strings.TrimSpace(code))]
	return r, ok, nil
}

// All returns the catalog ordered by id.
func (c *RoleCatalog) All() []models.Role {
	c.mu.RLock()
	out := make([]models.Role, 0, len(c.byCode))
	for _, r := range c.byCode {
		out = append(out, r)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Codes returns the lower-case codes accepted in the rol column.
func (c *RoleCatalog) Codes() []string {
	roles := c.All()
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		out = append(out, strings.ToLower(r.Code))
	}
	return out
}

// FetchRoleCodes returns the codes of the roles rut holds today.
func FetchRoleCodes(ctx context.Context, db *sqlx.DB, rut string) ([]string, error) {
	roles := []string{}
	err := db.SelectContext(ctx, &roles, `
SELECT DISTINCT r.codigo
FROM roles r
JOIN persona_roles pr ON pr.rol_id = r.id
WHERE pr.rut_persona = $1
  AND pr.activo
  AND pr.fecha_eliminacion IS NULL
  AND (pr.fecha_fin IS NULL OR pr.fecha_fin > CURRENT_DATE)
ORDER BY r.codigo
`, rut)
	return roles, err
}

func HasRole(roles []string, want string) bool {
	for _, r := range roles {
		if strings.EqualFold(r, want) {
			return true
		}
	}
	return false
}
