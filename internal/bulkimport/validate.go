package bulkimport

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"cargamasiva-backend-go/internal/models"
	"cargamasiva-backend-go/internal/rut"

	"github.com/go-playground/validator/v10"
)

// DefaultRoleCodes are the role codes accepted in the rol column.
var DefaultRoleCodes = []string{"administrador", "apoderado", "profesor", "tesorero", "alumno"}

var birthDateLayouts = []string{"2006-01-02", "02-01-2006", "02/01/2006", "2006/01/02"}

var emailShape = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Record is a validated row ready for the store.
type Record struct {
	Row             int
	RUT             string
	RUTFormatted    string
	GivenNames      string
	PaternalSurname string
	MaternalSurname *string
	Email           string
	Phone           *string
	Address         *string
	BirthDate       *time.Time
	Gender          *string
	RoleCodes       []string
	CourseID        *int64
	RegionCode      *int
	ProvinceCode    *int
	CommuneCode     *int
	Password        string
}

func (r Record) DisplayName() string {
	p := models.Person{GivenNames: r.GivenNames, PaternalSurname: r.PaternalSurname, MaternalSurname: r.MaternalSurname}
	return p.FullName()
}

type rowInput struct {
	RUT             string   `col:"rut" validate:"required,rut"`
	GivenNames      string   `col:"nombres" validate:"required,max=100"`
	PaternalSurname string   `col:"apellido_paterno" validate:"required,max=50"`
	MaternalSurname string   `col:"apellido_materno" validate:"max=50"`
	Email           string   `col:"email" validate:"required,max=150,email_shape"`
	Roles           []string `col:"rol" validate:"required,min=1,dive,role_code"`
	Phone           string   `col:"telefono" validate:"max=20"`
	Address         string   `col:"direccion" validate:"max=255"`
	BirthDate       string   `col:"fecha_nacimiento" validate:"omitempty,fecha"`
	Gender          string   `col:"genero" validate:"omitempty,genero"`
	CourseID        string   `col:"curso_id" validate:"omitempty,id"`
	RegionCode      string   `col:"codigo_region" validate:"omitempty,id"`
	ProvinceCode    string   `col:"codigo_provincia" validate:"omitempty,id"`
	CommuneCode     string   `col:"codigo_comuna" validate:"omitempty,id"`
	Password        string   `col:"password" validate:"omitempty,min=6,max=100"`
}

// Validator checks raw rows without touching the store.
type Validator struct {
	validate  *validator.Validate
	roleCodes map[string]bool
	roleList  string
}

func NewValidator(roleCodes []string) *Validator {
	if len(roleCodes) == 0 {
		roleCodes = DefaultRoleCodes
	}
	v := &Validator{validate: validator.New(), roleCodes: map[string]bool{}}
	names := make([]string, 0, len(roleCodes))
	for _, code := range roleCodes {
		code = strings.ToLower(strings.TrimSpace(code))
		v.roleCodes[code] = true
		names = append(names, code)
	}
	v.roleList = strings.Join(names, ", ")

	v.validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return fld.Tag.Get("col")
	})
	_ = v.validate.RegisterValidation("rut", func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		return rut.Validate(value) && !rut.Repeated(value)
	})
	_ = v.validate.RegisterValidation("email_shape", func(fl validator.FieldLevel) bool {
		return emailShape.MatchString(fl.Field().String())
	})
	_ = v.validate.RegisterValidation("role_code", func(fl validator.FieldLevel) bool {
		return v.roleCodes[fl.Field().String()]
	})
	_ = v.validate.RegisterValidation("fecha", func(fl validator.FieldLevel) bool {
		_, ok := parseBirthDate(fl.Field().String())
		return ok
	})
	_ = v.validate.RegisterValidation("genero", func(fl validator.FieldLevel) bool {
		_, ok := parseGender(fl.Field().String())
		return ok
	})
	_ = v.validate.RegisterValidation("id", func(fl validator.FieldLevel) bool {
		n, err := strconv.ParseInt(fl.Field().String(), 10, 64)
		return err == nil && n > 0
	})
	return v
}

// Validate returns the normalized record or every problem found in the row.
func (v *Validator) Validate(row Row) (Record, FieldErrors) {
	in := rowInput{
		RUT:             row.Get(ColRUT),
		GivenNames:      row.Get(ColGivenNames),
		PaternalSurname: row.Get(ColPaternalSurname),
		MaternalSurname: row.Get(ColMaternalSurname),
		Email:           strings.ToLower(row.Get(ColEmail)),
		Roles:           SplitRoles(row.Get(ColRole)),
		Phone:           row.Get(ColPhone),
		Address:         row.Get(ColAddress),
		BirthDate:       row.Get(ColBirthDate),
		Gender:          row.Get(ColGender),
		CourseID:        row.Get(ColCourseID),
		RegionCode:      row.Get(ColRegion),
		ProvinceCode:    row.Get(ColProvince),
		CommuneCode:     row.Get(ColCommune),
		Password:        row.Get(ColPassword),
	}
	if err := v.validate.Struct(in); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return Record{}, FieldErrors{{Field: ColRUT, Message: err.Error()}}
		}
		return Record{}, v.translate(verrs)
	}

	rec := Record{
		Row:             row.Number,
		RUT:             rut.Clean(in.RUT),
		RUTFormatted:    rut.Format(in.RUT),
		GivenNames:      in.GivenNames,
		PaternalSurname: in.PaternalSurname,
		MaternalSurname: optional(in.MaternalSurname),
		Email:           in.Email,
		Phone:           optional(in.Phone),
		Address:         optional(in.Address),
		RoleCodes:       in.Roles,
		Password:        in.Password,
	}
	if t, ok := parseBirthDate(in.BirthDate); ok && in.BirthDate != "" {
		rec.BirthDate = &t
	}
	if g, ok := parseGender(in.Gender); ok && g != "" {
		rec.Gender = &g
	}
	if in.CourseID != "" {
		id, _ := strconv.ParseInt(in.CourseID, 10, 64)
		rec.CourseID = &id
	}
	rec.RegionCode = optionalInt(in.RegionCode)
	rec.ProvinceCode = optionalInt(in.ProvinceCode)
	rec.CommuneCode = optionalInt(in.CommuneCode)
	return rec, nil
}

func (v *Validator) translate(verrs validator.ValidationErrors) FieldErrors {
	out := make(FieldErrors, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		if i := strings.IndexByte(field, '['); i >= 0 {
			field = field[:i]
		}
		var msg string
		switch fe.Tag() {
		case "required":
			msg = fmt.Sprintf("El campo %s es obligatorio", field)
		case "min":
			if field == ColRole {
				msg = fmt.Sprintf("El campo %s es obligatorio", field)
			} else {
				msg = fmt.Sprintf("El campo %s debe tener al menos %s caracteres", field, fe.Param())
			}
		case "max":
			msg = fmt.Sprintf("El campo %s no puede superar %s caracteres", field, fe.Param())
		case "rut":
			msg = fmt.Sprintf("RUT '%v' no es válido", fe.Value())
		case "email_shape":
			msg = fmt.Sprintf("Email '%v' no es válido", fe.Value())
		case "role_code":
			msg = fmt.Sprintf("Rol '%v' no reconocido (válidos: %s)", fe.Value(), v.roleList)
		case "fecha":
			msg = fmt.Sprintf("Fecha de nacimiento '%v' no es válida (use AAAA-MM-DD o DD-MM-AAAA)", fe.Value())
		case "genero":
			msg = fmt.Sprintf("Género '%v' no es válido (use M, F u O)", fe.Value())
		case "id":
			msg = fmt.Sprintf("El campo %s debe ser un número entero positivo", field)
		default:
			msg = fmt.Sprintf("El campo %s no es válido", field)
		}
		out = append(out, FieldError{Field: field, Message: msg})
	}
	return out
}

// SplitRoles parses a rol cell into lower-case unique role codes. Both
// commas and semicolons separate roles.
func SplitRoles(cell string) []string {
	var out []string
	seen := map[string]bool{}
	for _, part := range strings.FieldsFunc(cell, func(r rune) bool { return r == ',' || r == ';' }) {
		code := strings.ToLower(strings.TrimSpace(part))
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		out = append(out, code)
	}
	return out
}

func parseBirthDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, true
	}
	for _, layout := range birthDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseGender(value string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "":
		return "", true
	case "m", "masculino", "hombre":
		return models.GenderMale, true
	case "f", "femenino", "mujer":
		return models.GenderFemale, true
	case "o", "otro":
		return models.GenderOther, true
	}
	return "", false
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func optionalInt(value string) *int {
	if value == "" {
		return nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return nil
	}
	return &n
}
