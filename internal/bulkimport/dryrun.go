package bulkimport

import (
	"context"
	"fmt"
	"io"
	"strings"
)

type ValidationResult struct {
	Valid         bool           `json:"valid"`
	Headers       []string       `json:"headers"`
	RowsTotal     int            `json:"rows_total"`
	ValidRows     int            `json:"valid_rows"`
	ErrorCount    int            `json:"error_count"`
	Errors        []RowMessage   `json:"errors"`
	ErrorsOmitted int            `json:"errors_omitted"`
	RoleCounts    map[string]int `json:"role_counts"`
}

func (v *ValidationResult) fail(row int, limit int, messages ...string) {
	v.ErrorCount++
	if len(v.Errors) < limit {
		v.Errors = append(v.Errors, RowMessage{Row: row, Message: strings.Join(messages, "; ")})
	} else {
		v.ErrorsOmitted++
	}
}

// ValidateFile checks a file without writing anything: structure, every
// row's fields, role codes against the catalog and RUT or email repeated
// inside the file.
func (im *Importer) ValidateFile(ctx context.Context, path, ext string) (*ValidationResult, error) {
	reader, err := Open(path, ext)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	result := &ValidationResult{Headers: reader.Header(), Errors: []RowMessage{}, RoleCounts: map[string]int{}}
	seenRUT := map[string]int{}
	seenEmail := map[string]int{}
	courses := courseCache{store: im.store, known: map[int64]bool{}}
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		row, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return result, err
		}
		result.RowsTotal++
		rec, ferrs := im.validator.Validate(row)
		if len(ferrs) > 0 {
			result.fail(row.Number, im.errorLimit, ferrs.Messages()...)
			continue
		}
		var problems []string
		if first, ok := seenRUT[rec.RUT]; ok {
			problems = append(problems, fmt.Sprintf("RUT %s repetido (fila %d)", rec.RUTFormatted, first))
		} else {
			seenRUT[rec.RUT] = row.Number
		}
		if first, ok := seenEmail[rec.Email]; ok {
			problems = append(problems, fmt.Sprintf("Email %s repetido (fila %d)", rec.Email, first))
		} else {
			seenEmail[rec.Email] = row.Number
		}
		takesCourse := false
		for _, code := range rec.RoleCodes {
			role, found, err := im.roles.RoleByCode(ctx, code)
			if err != nil {
				return result, err
			}
			if !found || !role.Active {
				problems = append(problems, fmt.Sprintf("Rol '%s' no encontrado", code))
				continue
			}
			takesCourse = takesCourse || role.RequiresCourse
			if role.RequiresCourse && rec.CourseID == nil {
				problems = append(problems, fmt.Sprintf("El rol %s requiere asignación a un curso", role.Name))
			}
		}
		if rec.CourseID != nil && len(problems) == 0 {
			if !takesCourse {
				problems = append(problems, fmt.Sprintf("Ninguno de los roles %s admite curso asignado", strings.Join(rec.RoleCodes, ", ")))
			} else {
				exists, err := courses.exists(ctx, *rec.CourseID)
				if err != nil {
					return result, err
				}
				if !exists {
					problems = append(problems, fmt.Sprintf("El curso %d no existe", *rec.CourseID))
				}
			}
		}
		if len(problems) > 0 {
			result.fail(row.Number, im.errorLimit, problems...)
			continue
		}
		result.ValidRows++
		for _, code := range rec.RoleCodes {
			result.RoleCounts[code]++
		}
	}
	result.Valid = result.ErrorCount == 0
	return result, nil
}

// courseCache answers course lookups through short read-only transactions
// and remembers the answers for the rest of the file.
type courseCache struct {
	store Store
	known map[int64]bool
}

func (c courseCache) exists(ctx context.Context, id int64) (bool, error) {
	if found, ok := c.known[id]; ok {
		return found, nil
	}
	var found bool
	err := c.store.WithinTx(ctx, func(tx Tx) error {
		var err error
		found, err = tx.CourseExists(ctx, id)
		return err
	})
	if err != nil {
		return false, err
	}
	c.known[id] = found
	return found, nil
}
