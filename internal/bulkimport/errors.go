package bulkimport

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnsupportedExtension = errors.New("extensión de archivo no soportada (use .csv, .xlsx o .xls)")
	ErrUnreadableFile       = errors.New("no se pudo leer el archivo")
	ErrLegacyXLS            = errors.New("formato Excel 97-2003 no soportado, guarde el archivo como .xlsx")
	ErrNoSheets             = errors.New("el libro no contiene hojas")
	ErrNoDataRows           = errors.New("el archivo no contiene filas de datos")
	ErrMissingHeaders       = errors.New("faltan columnas obligatorias")
)

// FileError aborts a whole batch before any row is persisted.
type FileError struct {
	Reason error
	Detail string
	Err    error
}

func (e *FileError) Error() string {
	msg := e.Reason.Error()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += " (" + e.Err.Error() + ")"
	}
	return msg
}

func (e *FileError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Reason}
	}
	return []error{e.Reason, e.Err}
}

func fileError(reason error, err error, detail string, args ...interface{}) error {
	if len(args) > 0 {
		detail = fmt.Sprintf(detail, args...)
	}
	return &FileError{Reason: reason, Detail: detail, Err: err}
}

// FieldError is a single validation problem in a row.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type FieldErrors []FieldError

func (e FieldErrors) Error() string {
	return strings.Join(e.Messages(), "; ")
}

func (e FieldErrors) Messages() []string {
	out := make([]string, 0, len(e))
	for _, fe := range e {
		out = append(out, fe.Message)
	}
	return out
}

// HasField reports whether any error targets field.
func (e FieldErrors) HasField(field string) bool {
	for _, fe := range e {
		if fe.Field == field {
			return true
		}
	}
	return false
}

// RowError is a business rule violation detected while composing a row.
// Returning it from a transaction rolls back every write of that row.
type RowError struct {
	Field   string
	Message string
}

func (e *RowError) Error() string {
	return e.Message
}

func rowError(field, format string, args ...interface{}) *RowError {
	return &RowError{Field: field, Message: fmt.Sprintf(format, args...)}
}
