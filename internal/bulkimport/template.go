package bulkimport

import (
	"bytes"
	"encoding/csv"

	"github.com/xuri/excelize/v2"
)

const TemplateSheet = "Usuarios"

// TemplateExamples are the sample rows shipped with templates, in
// TemplateColumns order.
var TemplateExamples = [][]string{
	{"12.345.678-5", "Juan Carlos", "Pérez", "González", "juan.perez@ejemplo.cl", "+56912345678",
		"Av. Principal 123, Santiago", "1985-03-15", "M", "apoderado", "", ""},
	{"98.765.432-5", "María Elena", "Silva", "Rodríguez", "maria.silva@ejemplo.cl", "+56987654321",
		"Calle Secundaria 456, Santiago", "1990-07-22", "F", "profesor", "", ""},
}

func TemplateCSV() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(TemplateColumns); err != nil {
		return nil, err
	}
	if err := w.WriteAll(TemplateExamples); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func TemplateWorkbook() ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", TemplateSheet); err != nil {
		return nil, err
	}
	rows := append([][]string{TemplateColumns}, TemplateExamples...)
	if err := writeRows(f, TemplateSheet, rows); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(TemplateSheet, "A", "L", 20); err != nil {
		return nil, err
	}
	if err := boldHeader(f, TemplateSheet, len(TemplateColumns)); err != nil {
		return nil, err
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeRows(f *excelize.File, sheet string, rows [][]string) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}
	return nil
}

func boldHeader(f *excelize.File, sheet string, columns int) error {
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(columns, 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, style)
}
