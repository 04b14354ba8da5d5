package bulkimport

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	ColRUT             = "rut"
	ColGivenNames      = "nombres"
	ColPaternalSurname = "apellido_paterno"
	ColMaternalSurname = "apellido_materno"
	ColEmail           = "email"
	ColPhone           = "telefono"
	ColAddress         = "direccion"
	ColBirthDate       = "fecha_nacimiento"
	ColGender          = "genero"
	ColRole            = "rol"
	ColCourseID        = "curso_id"
	ColPassword        = "password"
	ColRegion          = "codigo_region"
	ColProvince        = "codigo_provincia"
	ColCommune         = "codigo_comuna"
)

var RequiredColumns = []string{ColRUT, ColGivenNames, ColPaternalSurname, ColEmail, ColRole}

// TemplateColumns is the column order of generated templates.
var TemplateColumns = []string{
	ColRUT, ColGivenNames, ColPaternalSurname, ColMaternalSurname, ColEmail, ColPhone,
	ColAddress, ColBirthDate, ColGender, ColRole, ColCourseID, ColPassword,
}

var headerAliases = map[string]string{
	"roles":     ColRole,
	"curso":     ColCourseID,
	"correo":    ColEmail,
	"mail":      ColEmail,
	"nombre":    ColGivenNames,
	"fono":      ColPhone,
	"sexo":      ColGender,
	"region":    ColRegion,
	"provincia": ColProvince,
	"comuna":    ColCommune,
}

// NormalizeHeader lower-cases and trims a header cell, folds accents and
// maps spaces and hyphens to underscores, so "Apellido Paterno" and
// "apellido_paterno" name the same column.
func NormalizeHeader(raw string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), raw)
	if err != nil {
		folded = raw
	}
	folded = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(folded, "\ufeff")))
	folded = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '.':
			return '_'
		}
		return r
	}, folded)
	for strings.Contains(folded, "__") {
		folded = strings.ReplaceAll(folded, "__", "_")
	}
	folded = strings.Trim(folded, "_")
	if alias, ok := headerAliases[folded]; ok {
		return alias
	}
	return folded
}

// MissingColumns returns the required columns absent from header.
func MissingColumns(header []string) []string {
	present := map[string]bool{}
	for _, h := range header {
		present[h] = true
	}
	missing := []string{}
	for _, col := range RequiredColumns {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	return missing
}
