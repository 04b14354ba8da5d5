package bulkimport

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

func readAll(t *testing.T, path, ext string) []Row {
	t.Helper()
	r, err := Open(path, ext)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer r.Close()
	var rows []Row
	for {
		row, err := r.Next()
		if err == io.EOF {
			return rows
		}
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		rows = append(rows, row)
	}
}

func TestReaderNormalizesHeadersAndSkipsBlankRows(t *testing.T) {
	path := writeFile(t, "h.csv",
		" RUT ;Nombres;Apellido Paterno;Correo;Rol;Teléfono",
		"12345678-5; Ana ;Lopez;ana@x.cl;alumno;",
		";;;;;",
		"",
		"98765432-5;Juan;Soto;juan@x.cl;profesor;+569",
	)
	rows := readAll(t, path, "csv")
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Number != 2 || rows[1].Number != 5 {
		t.Fatalf("expected file row numbers 2 and 5, got %d and %d", rows[0].Number, rows[1].Number)
	}
	if rows[0].Get(ColGivenNames) != "Ana" || rows[0].Get(ColEmail) != "ana@x.cl" {
		t.Fatalf("unexpected fields %+v", rows[0].Fields)
	}
	if rows[1].Get(ColPhone) != "+569" || rows[1].Get(ColPaternalSurname) != "Soto" {
		t.Fatalf("unexpected fields %+v", rows[1].Fields)
	}
}

func TestReaderDecodesBOMAndWindows1252(t *testing.T) {
	dir := t.TempDir()
	bom := filepath.Join(dir, "bom.csv")
	content := append([]byte{0xEF, 0xBB, 0xBF}, []byte(csvHeader+"\n12345678-5,Ana,Núñez,ana@x.cl,alumno,\n")...)
	if err := os.WriteFile(bom, content, 0o644); err != nil {
		t.Fatal(err)
	}
	rows := readAll(t, bom, ".csv")
	if len(rows) != 1 || rows[0].Get(ColRUT) != "12345678-5" || rows[0].Get(ColPaternalSurname) != "Núñez" {
		t.Fatalf("unexpected rows %+v", rows)
	}

	latin := filepath.Join(dir, "latin.csv")
	raw := []byte(csvHeader + "\n12345678-5,Ana,N\xfa\xf1ez,ana@x.cl,alumno,\n")
	if err := os.WriteFile(latin, raw, 0o644); err != nil {
		t.Fatal(err)
	}
	rows = readAll(t, latin, ".csv")
	if len(rows) != 1 || rows[0].Get(ColPaternalSurname) != "Núñez" {
		t.Fatalf("expected Windows-1252 decoding, got %+v", rows)
	}
}

func TestReaderSpreadsheet(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	header := []interface{}{"rut", "nombres", "apellido_paterno", "email", "rol", "fecha_nacimiento", "curso_id"}
	if err := f.SetSheetRow("Sheet1", "A1", &header); err != nil {
		t.Fatal(err)
	}
	first := []interface{}{"12345678-5", "Ana", "Lopez", "ana@x.cl", "tesorero", 31121, 7}
	if err := f.SetSheetRow("Sheet1", "A2", &first); err != nil {
		t.Fatal(err)
	}
	second := []interface{}{"98765432-5", "Juan", "Soto", "juan@x.cl", "profesor", "1990-07-22"}
	if err := f.SetSheetRow("Sheet1", "A4", &second); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "u.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}

	rows := readAll(t, path, ".xlsx")
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Number != 2 || rows[1].Number != 4 {
		t.Fatalf("unexpected row numbers %d %d", rows[0].Number, rows[1].Number)
	}
	if got := rows[0].Get(ColBirthDate); got != "1985-03-15" {
		t.Fatalf("expected date serial converted, got %q", got)
	}
	if rows[0].Get(ColCourseID) != "7" || rows[1].Get(ColBirthDate) != "1990-07-22" {
		t.Fatalf("unexpected fields %+v / %+v", rows[0].Fields, rows[1].Fields)
	}
}

func TestReaderXLSRoutedByContent(t *testing.T) {
	path := writeFile(t, "export.xls", csvHeader, "12345678-5,Ana,Lopez,ana@x.cl,alumno,")
	rows := readAll(t, path, ".xls")
	if len(rows) != 1 || rows[0].Get(ColRole) != "alumno" {
		t.Fatalf("expected text .xls to be read as CSV, got %+v", rows)
	}
}

func TestOpenErrorsAreFileErrors(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.csv"), ".csv")
	var fe *FileError
	if !errors.As(err, &fe) || !errors.Is(err, ErrUnreadableFile) {
		t.Fatalf("expected unreadable file error, got %v", err)
	}
}

func TestNormalizeHeader(t *testing.T) {
	cases := map[string]string{
		"Apellido Paterno": ColPaternalSurname,
		"APELLIDO-MATERNO": ColMaternalSurname,
		"Teléfono":         ColPhone,
		"Dirección":        ColAddress,
		"Género":           ColGender,
		"Roles":            ColRole,
		"\ufeffrut":        ColRUT,
		"fecha nacimiento": "fecha_nacimiento",
	}
	for raw, want := range cases {
		if got := NormalizeHeader(raw); got != want {
			t.Fatalf("%q: expected %q, got %q", raw, want, got)
		}
	}
}
