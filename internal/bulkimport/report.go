package bulkimport

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	sheetSummary    = "Resumen"
	sheetCreated    = "Usuarios Creados"
	sheetErrors     = "Errores"
	sheetDuplicates = "Duplicados"
)

// BuildWorkbook renders the downloadable report. Temporary passwords are
// never part of it.
func BuildWorkbook(result *BatchResult) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheetSummary); err != nil {
		return nil, err
	}
	for _, name := range []string{sheetCreated, sheetErrors, sheetDuplicates} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
	}

	sheets := map[string][][]string{
		sheetSummary:    summaryRows(result),
		sheetCreated:    {{"Fila", "RUT", "Nombre Completo", "Rol", "Resultado"}},
		sheetErrors:     {{"Fila", "Error"}},
		sheetDuplicates: {{"Fila", "RUT", "Nombre Completo"}},
	}
	for _, o := range result.Outcomes {
		row := strconv.Itoa(o.Row)
		switch o.Kind {
		case OutcomeCreated, OutcomeUpdated:
			sheets[sheetCreated] = append(sheets[sheetCreated], []string{row, o.RUT, o.DisplayName, strings.Join(o.Roles, ", "), kindLabel(o.Kind)})
		case OutcomeDuplicate:
			sheets[sheetDuplicates] = append(sheets[sheetDuplicates], []string{row, o.RUT, o.DisplayName})
		}
	}
	for _, e := range result.Errors {
		sheets[sheetErrors] = append(sheets[sheetErrors], []string{strconv.Itoa(e.Row), e.Message})
	}
	if result.ErrorsOmitted > 0 {
		sheets[sheetErrors] = append(sheets[sheetErrors], []string{"", fmt.Sprintf("... y %d errores más", result.ErrorsOmitted)})
	}

	for name, rows := range sheets {
		if err := writeRows(f, name, rows); err != nil {
			return nil, err
		}
		if err := boldHeader(f, name, len(rows[0])); err != nil {
			return nil, err
		}
	}
	if err := f.SetColWidth(sheetSummary, "A", "B", 28); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(sheetCreated, "C", "C", 36); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(sheetErrors, "B", "B", 80); err != nil {
		return nil, err
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildCSVReport renders one line per reported row.
func BuildCSVReport(result *BatchResult) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	records := [][]string{{"fila", "resultado", "rut", "nombre", "roles", "mensaje"}}
	for _, o := range result.Outcomes {
		if o.Kind == OutcomeError {
			continue
		}
		records = append(records, []string{strconv.Itoa(o.Row), kindLabel(o.Kind), o.RUT, o.DisplayName, strings.Join(o.Roles, ","), strings.Join(o.Messages, "; ")})
	}
	for _, e := range result.Errors {
		records = append(records, []string{strconv.Itoa(e.Row), kindLabel(OutcomeError), "", "", "", e.Message})
	}
	if result.ErrorsOmitted > 0 {
		records = append(records, []string{"", kindLabel(OutcomeError), "", "", "", fmt.Sprintf("... y %d errores más", result.ErrorsOmitted)})
	}
	if err := w.WriteAll(records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func summaryRows(result *BatchResult) [][]string {
	return [][]string{
		{"Campo", "Valor"},
		{"Lote", result.ID},
		{"Archivo", result.FileName},
		{"Inicio", result.StartedAt.Format(time.RFC3339)},
		{"Fin", result.FinishedAt.Format(time.RFC3339)},
		{"Estado", result.Status()},
		{"Filas procesadas", strconv.Itoa(result.RowsTotal)},
		{"Creados", strconv.Itoa(result.Created)},
		{"Actualizados", strconv.Itoa(result.Updated)},
		{"Duplicados", strconv.Itoa(result.Duplicates)},
		{"Errores", strconv.Itoa(result.ErrorCount)},
		{"Errores no detallados", strconv.Itoa(result.ErrorsOmitted)},
		{"Datos de prueba", strconv.FormatBool(result.TestData)},
	}
}

func kindLabel(kind OutcomeKind) string {
	switch kind {
	case OutcomeCreated:
		return "creado"
	case OutcomeUpdated:
		return "actualizado"
	case OutcomeDuplicate:
		return "duplicado"
	default:
		return "error"
	}
}
