package db

import (
	"context"
	"database/sql"
	"errors"

	"cargamasiva-backend-go/internal/bulkimport"
	"cargamasiva-backend-go/internal/models"

	"github.com/jmoiron/sqlx"
)

// courseLockSpace namespaces the advisory locks taken per course.
const courseLockSpace = 4210

const personColumns = `rut, rut_formateado, nombres, apellido_paterno, apellido_materno,
  fecha_nacimiento, genero, email, telefono, direccion, codigo_region, codigo_provincia,
  codigo_comuna, activo, es_dato_prueba, creado_por, fecha_creacion, actualizado_por,
  fecha_actualizacion, eliminado_por, fecha_eliminacion`

type Store struct {
	DB *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{DB: db}
}

func (s *Store) WithinTx(ctx context.Context, fn func(bulkimport.Tx) error) error {
	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(&Tx{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Tx implements bulkimport.Tx on top of one database transaction.
type Tx struct {
	tx *sqlx.Tx
}

func (t *Tx) PersonByRUT(ctx context.Context, rut string) (*models.Person, error) {
	var p models.Person
	err := t.tx.GetContext(ctx, &p, `SELECT `+personColumns+` FROM personas WHERE rut = $1`, rut)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (t *Tx) EmailOwner(ctx context.Context, email string) (string, bool, error) {
	var rut string
	err := t.tx.GetContext(ctx, &rut, `SELECT rut FROM personas WHERE lower(email) = lower($1) LIMIT 1`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return rut, true, nil
}

func (t *Tx) InsertPerson(ctx context.Context, p *models.Person) error {
	_, err := t.tx.NamedExecContext(ctx, `
INSERT INTO personas (`+personColumns+`)
VALUES (:rut, :rut_formateado, :nombres, :apellido_paterno, :apellido_materno,
  :fecha_nacimiento, :genero, :email, :telefono, :direccion, :codigo_region, :codigo_provincia,
  :codigo_comuna, :activo, :es_dato_prueba, :creado_por, :fecha_creacion, :actualizado_por,
  :fecha_actualizacion, :eliminado_por, :fecha_eliminacion)`, p)
	return err
}

func (t *Tx) UpdatePerson(ctx context.Context, p *models.Person) error {
	_, err := t.tx.NamedExecContext(ctx, `
UPDATE personas SET
  rut_formateado = :rut_formateado,
  nombres = :nombres,
  apellido_paterno = :apellido_paterno,
  apellido_materno = :apellido_materno,
  fecha_nacimiento = :fecha_nacimiento,
  genero = :genero,
  email = :email,
  telefono = :telefono,
  direccion = :direccion,
  codigo_region = :codigo_region,
  codigo_provincia = :codigo_provincia,
  codigo_comuna = :codigo_comuna,
  activo = :activo,
  es_dato_prueba = :es_dato_prueba,
  actualizado_por = :actualizado_por,
  fecha_actualizacion = :fecha_actualizacion,
  eliminado_por = :eliminado_por,
  fecha_eliminacion = :fecha_eliminacion
WHERE rut = :rut`, p)
	return err
}

func (t *Tx) CredentialExists(ctx context.Context, rut string) (bool, error) {
	var exists bool
	err := t.tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM usuarios_auth WHERE rut_persona = $1)`, rut)
	return exists, err
}

func (t *Tx) InsertCredential(ctx context.Context, c *models.Credential) error {
	_, err := t.tx.NamedExecContext(ctx, `
INSERT INTO usuarios_auth (rut_persona, password_hash, intentos_fallidos, debe_cambiar_password,
  sesiones_activas, activo, es_dato_prueba, creado_por, fecha_creacion, actualizado_por, fecha_actualizacion)
VALUES (:rut_persona, :password_hash, :intentos_fallidos, :debe_cambiar_password,
  :sesiones_activas, :activo, :es_dato_prueba, :creado_por, :fecha_creacion, :actualizado_por, :fecha_actualizacion)`, c)
	return err
}

func (t *Tx) CourseExists(ctx context.Context, courseID int64) (bool, error) {
	var exists bool
	err := t.tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM cursos WHERE id = $1 AND activo)`, courseID)
	return exists, err
}

// LockCourse serializes per-course uniqueness checks until the transaction
// ends.
func (t *Tx) LockCourse(ctx context.Context, courseID int64) error {
	_, err := t.tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1, $2::int)`, courseLockSpace, courseID)
	return err
}

func (t *Tx) ActiveAssignments(ctx context.Context, rut string) ([]models.AssignmentView, error) {
	items := []models.AssignmentView{}
	err := t.tx.SelectContext(ctx, &items, `
SELECT pr.id, pr.rut_persona, pr.rol_id, pr.curso_id, pr.fecha_inicio, pr.fecha_fin, pr.activo,
  pr.observaciones, pr.es_dato_prueba, pr.creado_por, pr.fecha_creacion, pr.actualizado_por,
  pr.fecha_actualizacion, pr.eliminado_por, pr.fecha_eliminacion,
  r.id AS "rol.id", r.codigo AS "rol.codigo", r.nombre AS "rol.nombre", r.categoria AS "rol.categoria",
  r.es_alumno AS "rol.es_alumno", r.requiere_curso AS "rol.requiere_curso",
  r.es_unico_por_curso AS "rol.es_unico_por_curso", r.activo AS "rol.activo"
FROM persona_roles pr
JOIN roles r ON r.id = pr.rol_id
WHERE pr.rut_persona = $1
  AND pr.activo
  AND pr.fecha_eliminacion IS NULL
  AND (pr.fecha_fin IS NULL OR pr.fecha_fin > CURRENT_DATE)
ORDER BY pr.id`, rut)
	return items, err
}

func (t *Tx) CourseRoleHolder(ctx context.Context, roleID, courseID int64) (string, bool, error) {
	var rut string
	err := t.tx.GetContext(ctx, &rut, `
SELECT rut_persona FROM persona_roles
WHERE rol_id = $1 AND curso_id = $2 AND activo AND fecha_eliminacion IS NULL
  AND (fecha_fin IS NULL OR fecha_fin > CURRENT_DATE)
LIMIT 1`, roleID, courseID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return rut, true, nil
}

func (t *Tx) InsertAssignment(ctx context.Context, a *models.RoleAssignment) error {
	stmt, err := t.tx.PrepareNamedContext(ctx, `
INSERT INTO persona_roles (rut_persona, rol_id, curso_id, fecha_inicio, fecha_fin, activo,
  observaciones, es_dato_prueba, creado_por, fecha_creacion, actualizado_por, fecha_actualizacion)
VALUES (:rut_persona, :rol_id, :curso_id, :fecha_inicio, :fecha_fin, :activo,
  :observaciones, :es_dato_prueba, :creado_por, :fecha_creacion, :actualizado_por, :fecha_actualizacion)
RETURNING id`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	return stmt.GetContext(ctx, &a.ID, a)
}
