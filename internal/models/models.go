package models

import (
	"errors"
	"strings"
	"time"
)

const (
	GenderMale   = "M"
	GenderFemale = "F"
	GenderOther  = "O"

	CategoryStudent = "ALUMNO"
)

type Audit struct {
	CreatedBy *string    `db:"creado_por"`
	CreatedAt time.Time  `db:"fecha_creacion"`
	UpdatedBy *string    `db:"actualizado_por"`
	UpdatedAt *time.Time `db:"fecha_actualizacion"`
	DeletedBy *string    `db:"eliminado_por"`
	DeletedAt *time.Time `db:"fecha_eliminacion"`
}

// StampCreate fills creation and update fields. An empty actor leaves the
// *_por columns null.
func (a *Audit) StampCreate(actor string, now time.Time) {
	a.CreatedAt = now
	a.CreatedBy = actorPtr(actor)
	a.StampUpdate(actor, now)
}

func (a *Audit) StampUpdate(actor string, now time.Time) {
	a.UpdatedAt = &now
	a.UpdatedBy = actorPtr(actor)
}

func actorPtr(actor string) *string {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return nil
	}
	return &actor
}

type Person struct {
	RUT             string     `db:"rut"`
	RUTFormatted    string     `db:"rut_formateado"`
	GivenNames      string     `db:"nombres"`
	PaternalSurname string     `db:"apellido_paterno"`
	MaternalSurname *string    `db:"apellido_materno"`
	BirthDate       *time.Time `db:"fecha_nacimiento"`
	Gender          *string    `db:"genero"`
	Email           string     `db:"email"`
	Phone           *string    `db:"telefono"`
	Address         *string    `db:"direccion"`
	RegionCode      *int       `db:"codigo_region"`
	ProvinceCode    *int       `db:"codigo_provincia"`
	CommuneCode     *int       `db:"codigo_comuna"`
	Active          bool       `db:"activo"`
	TestData        bool       `db:"es_dato_prueba"`
	Audit
}

func (p Person) FullName() string {
	parts := []string{p.GivenNames, p.PaternalSurname}
	if p.MaternalSurname != nil {
		parts = append(parts, *p.MaternalSurname)
	}
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

type Role struct {
	ID              int64  `db:"id"`
	Code            string `db:"codigo"`
	Name            string `db:"nombre"`
	Category        string `db:"categoria"`
	IsStudent       bool   `db:"es_alumno"`
	RequiresCourse  bool   `db:"requiere_curso"`
	UniquePerCourse bool   `db:"es_unico_por_curso"`
	Active          bool   `db:"activo"`
}

// IsAdult reports whether the role belongs to the adult set. Roles in the
// student category that are not student roles themselves belong to neither.
func (r Role) IsAdult() bool {
	return !r.IsStudent && r.Category != CategoryStudent
}

type Course struct {
	ID     int64  `db:"id"`
	Name   string `db:"nombre"`
	Active bool   `db:"activo"`
}

var ErrInvalidWindow = errors.New("la fecha de fin debe ser posterior a la fecha de inicio")

type RoleAssignment struct {
	ID        int64      `db:"id"`
	RUT       string     `db:"rut_persona"`
	RoleID    int64      `db:"rol_id"`
	CourseID  *int64     `db:"curso_id"`
	StartDate time.Time  `db:"fecha_inicio"`
	EndDate   *time.Time `db:"fecha_fin"`
	Active    bool       `db:"activo"`
	Notes     *string    `db:"observaciones"`
	TestData  bool       `db:"es_dato_prueba"`
	Audit
}

func (a RoleAssignment) ValidateWindow() error {
	if a.EndDate != nil && !a.EndDate.After(a.StartDate) {
		return ErrInvalidWindow
	}
	return nil
}

// InForce reports whether the assignment is active and now falls inside its
// validity window.
func (a RoleAssignment) InForce(now time.Time) bool {
	if !a.Active || now.Before(a.StartDate) {
		return false
	}
	return a.EndDate == nil || now.Before(*a.EndDate)
}

// Deactivate closes the assignment at end and records the reason.
func (a *RoleAssignment) Deactivate(end time.Time, reason string) error {
	prev := a.EndDate
	a.EndDate = &end
	if err := a.ValidateWindow(); err != nil {
		a.EndDate = prev
		return err
	}
	a.Active = false
	if reason = strings.TrimSpace(reason); reason != "" {
		a.Notes = &reason
	}
	return nil
}

// AssignmentView joins an assignment with the role it grants.
type AssignmentView struct {
	RoleAssignment
	Role Role `db:"rol"`
}
