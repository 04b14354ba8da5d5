package bulkimport

import (
	"context"
	"strings"
	"time"

	"cargamasiva-backend-go/internal/models"
	"cargamasiva-backend-go/internal/rut"
)

type Options struct {
	UpdateExisting  bool   `json:"updateExisting"`
	MarkAsTestData  bool   `json:"markAsTestData"`
	DefaultPassword string `json:"-"`
	Actor           string `json:"actor,omitempty"`
	FileName        string `json:"fileName,omitempty"`
}

// Composer writes the person, credential and role assignments of one row.
// Every write goes through the caller's transaction.
type Composer struct {
	Roles          RoleLookup
	Hasher         PasswordHasher
	PasswordLength int
	Now            func() time.Time
}

type Composition struct {
	Person            models.Person
	Roles             []models.Role
	CredentialCreated bool
	TemporaryPassword string
}

func (c *Composer) Create(ctx context.Context, tx Tx, rec Record, opts Options) (Composition, error) {
	roles, err := c.resolveRoles(ctx, rec)
	if err != nil {
		return Composition{}, err
	}
	if err := checkEmail(ctx, tx, rec); err != nil {
		return Composition{}, err
	}
	now := c.now()
	person := models.Person{
		RUT:             rec.RUT,
		RUTFormatted:    rec.RUTFormatted,
		GivenNames:      rec.GivenNames,
		PaternalSurname: rec.PaternalSurname,
		MaternalSurname: rec.MaternalSurname,
		BirthDate:       rec.BirthDate,
		Gender:          rec.Gender,
		Email:           rec.Email,
		Phone:           rec.Phone,
		Address:         rec.Address,
		RegionCode:      rec.RegionCode,
		ProvinceCode:    rec.ProvinceCode,
		CommuneCode:     rec.CommuneCode,
		Active:          true,
		TestData:        opts.MarkAsTestData,
	}
	person.StampCreate(opts.Actor, now)
	if err := tx.InsertPerson(ctx, &person); err != nil {
		return Composition{}, err
	}
	password, err := c.createCredential(ctx, tx, rec, opts, now)
	if err != nil {
		return Composition{}, err
	}
	if err := c.assignRoles(ctx, tx, rec, roles, opts, now, false); err != nil {
		return Composition{}, err
	}
	return Composition{Person: person, Roles: roles, CredentialCreated: true, TemporaryPassword: password}, nil
}

// Update overwrites the mutable fields of existing. Optional columns left
// blank keep their stored value. Roles the person already holds are skipped.
func (c *Composer) Update(ctx context.Context, tx Tx, existing *models.Person, rec Record, opts Options) (Composition, error) {
	roles, err := c.resolveRoles(ctx, rec)
	if err != nil {
		return Composition{}, err
	}
	if err := checkEmail(ctx, tx, rec); err != nil {
		return Composition{}, err
	}
	now := c.now()
	person := *existing
	person.RUTFormatted = rec.RUTFormatted
	person.GivenNames = rec.GivenNames
	person.PaternalSurname = rec.PaternalSurname
	person.Email = rec.Email
	person.MaternalSurname = keep(person.MaternalSurname, rec.MaternalSurname)
	person.Phone = keep(person.Phone, rec.Phone)
	person.Address = keep(person.Address, rec.Address)
	person.Gender = keep(person.Gender, rec.Gender)
	if rec.BirthDate != nil {
		person.BirthDate = rec.BirthDate
	}
	if rec.RegionCode != nil {
		person.RegionCode = rec.RegionCode
	}
	if rec.ProvinceCode != nil {
		person.ProvinceCode = rec.ProvinceCode
	}
	if rec.CommuneCode != nil {
		person.CommuneCode = rec.CommuneCode
	}
	if person.DeletedAt != nil {
		person.DeletedAt = nil
		person.DeletedBy = nil
		person.Active = true
	}
	person.StampUpdate(opts.Actor, now)
	if err := tx.UpdatePerson(ctx, &person); err != nil {
		return Composition{}, err
	}

	out := Composition{Person: person, Roles: roles}
	hasCredential, err := tx.CredentialExists(ctx, person.RUT)
	if err != nil {
		return Composition{}, err
	}
	if !hasCredential {
		password, err := c.createCredential(ctx, tx, rec, opts, now)
		if err != nil {
			return Composition{}, err
		}
		out.CredentialCreated = true
		out.TemporaryPassword = password
	}
	if err := c.assignRoles(ctx, tx, rec, roles, opts, now, true); err != nil {
		return Composition{}, err
	}
	return out, nil
}

func (c *Composer) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now().UTC()
}

func (c *Composer) resolveRoles(ctx context.Context, rec Record) ([]models.Role, error) {
	roles := make([]models.Role, 0, len(rec.RoleCodes))
	for _, code := range rec.RoleCodes {
		role, ok, err := c.Roles.RoleByCode(ctx, code)
		if err != nil {
			return nil, err
		}
		if !ok || !role.Active {
			return nil, rowError(ColRole, "Rol '%s' no encontrado", code)
		}
		roles = append(roles, role)
	}
	return roles, nil
}

func checkEmail(ctx context.Context, tx Tx, rec Record) error {
	owner, found, err := tx.EmailOwner(ctx, rec.Email)
	if err != nil {
		return err
	}
	if found && owner != rec.RUT {
		return rowError(ColEmail, "El email %s ya está registrado para el RUT %s", rec.Email, rut.Format(owner))
	}
	return nil
}

// createCredential stores a hashed password and returns the plaintext.
// A password column wins over the batch default, which wins over a
// generated one.
func (c *Composer) createCredential(ctx context.Context, tx Tx, rec Record, opts Options, now time.Time) (string, error) {
	password := rec.Password
	if password == "" {
		password = opts.DefaultPassword
	}
	if password == "" {
		generated, err := GeneratePassword(c.PasswordLength)
		if err != nil {
			return "", err
		}
		password = generated
	}
	hash, err := c.Hasher.Hash(password)
	if err != nil {
		return "", err
	}
	cred := models.NewCredential(rec.RUT, hash)
	cred.TestData = opts.MarkAsTestData
	cred.StampCreate(opts.Actor, now)
	if err := tx.InsertCredential(ctx, &cred); err != nil {
		return "", err
	}
	return password, nil
}

// assignRoles grants every role of the row. With several roles the course
// only goes to the roles that take one.
func (c *Composer) assignRoles(ctx context.Context, tx Tx, rec Record, roles []models.Role, opts Options, now time.Time, skipHeld bool) error {
	multi := len(roles) > 1
	if multi && rec.CourseID != nil {
		takesCourse := false
		for _, role := range roles {
			takesCourse = takesCourse || role.RequiresCourse
		}
		if !takesCourse {
			return rowError(ColCourseID, "Ninguno de los roles %s admite curso asignado", strings.Join(rec.RoleCodes, ", "))
		}
	}
	for _, role := range roles {
		courseID := rec.CourseID
		if multi && !role.RequiresCourse {
			courseID = nil
		}
		if err := c.assign(ctx, tx, rec.RUT, role, courseID, opts, now, skipHeld); err != nil {
			return err
		}
	}
	return nil
}

func (c *Composer) assign(ctx context.Context, tx Tx, personRUT string, role models.Role, courseID *int64, opts Options, now time.Time, skipHeld bool) error {
	if role.RequiresCourse && courseID == nil {
		return rowError(ColCourseID, "El rol %s requiere asignación a un curso", role.Name)
	}
	if !role.RequiresCourse && courseID != nil {
		return rowError(ColCourseID, "El rol %s no debe tener curso asignado", role.Name)
	}
	if courseID != nil {
		exists, err := tx.CourseExists(ctx, *courseID)
		if err != nil {
			return err
		}
		if !exists {
			return rowError(ColCourseID, "El curso %d no existe", *courseID)
		}
	}

	held, err := tx.ActiveAssignments(ctx, personRUT)
	if err != nil {
		return err
	}
	for _, h := range held {
		if h.RoleID == role.ID && sameCourse(h.CourseID, courseID) {
			if skipHeld {
				return nil
			}
			return rowError(ColRole, "La persona ya tiene el rol %s asignado", role.Name)
		}
	}
	for _, h := range held {
		if role.IsStudent && h.Role.IsAdult() {
			return rowError(ColRole, "No se puede asignar rol de alumno a persona con roles de adulto (%s)", h.Role.Name)
		}
		if role.IsAdult() && h.Role.IsStudent {
			return rowError(ColRole, "No se puede asignar rol de adulto (%s) a persona con rol de alumno", role.Name)
		}
	}

	if role.UniquePerCourse && courseID != nil {
		if err := tx.LockCourse(ctx, *courseID); err != nil {
			return err
		}
		holder, found, err := tx.CourseRoleHolder(ctx, role.ID, *courseID)
		if err != nil {
			return err
		}
		if found && holder != personRUT {
			return rowError(ColCourseID, "Ya existe un %s asignado al curso %d", role.Name, *courseID)
		}
	}

	assignment := models.RoleAssignment{
		RUT:       personRUT,
		RoleID:    role.ID,
		CourseID:  courseID,
		StartDate: time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()),
		Active:    true,
		TestData:  opts.MarkAsTestData,
	}
	if err := assignment.ValidateWindow(); err != nil {
		return rowError("fecha_fin", "%s", err.Error())
	}
	assignment.StampCreate(opts.Actor, now)
	return tx.InsertAssignment(ctx, &assignment)
}

func sameCourse(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func keep(current, incoming *string) *string {
	if incoming != nil {
		return incoming
	}
	return current
}
