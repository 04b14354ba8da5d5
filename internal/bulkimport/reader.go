package bulkimport

import (
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	textunicode "golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var SupportedExtensions = map[string]bool{".csv": true, ".xlsx": true, ".xls": true}

// Row is one non-empty data row. Number is the 1-based row in the file,
// so the first data row under the header is 2.
type Row struct {
	Number int
	Fields map[string]string
}

func (r Row) Get(col string) string {
	return r.Fields[col]
}

type rowSource interface {
	next() ([]string, int, error)
	close() error
}

// Reader yields the data rows of a CSV or spreadsheet file in file order.
type Reader struct {
	src     rowSource
	header  []string
	pending *Row
}

func NormalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// Open validates the declared extension, detects the real content type,
// reads the header and peeks the first data row. Every error it returns is
// a *FileError.
func Open(path, ext string) (*Reader, error) {
	ext = NormalizeExtension(ext)
	if ext == "" {
		ext = NormalizeExtension(filepath.Ext(path))
	}
	if !SupportedExtensions[ext] {
		return nil, fileError(ErrUnsupportedExtension, nil, "%q", ext)
	}
	src, err := openSource(path, ext)
	if err != nil {
		return nil, err
	}
	r := &Reader{src: src}
	if err := r.readHeader(); err != nil {
		_ = src.close()
		return nil, err
	}
	first, err := r.advance()
	if err == io.EOF {
		_ = src.close()
		return nil, fileError(ErrNoDataRows, nil, "")
	}
	if err != nil {
		_ = src.close()
		return nil, err
	}
	r.pending = &first
	return r, nil
}

func (r *Reader) Header() []string {
	return append([]string(nil), r.header...)
}

// Next returns the next non-empty row, or io.EOF after the last one.
func (r *Reader) Next() (Row, error) {
	if r.pending != nil {
		row := *r.pending
		r.pending = nil
		return row, nil
	}
	return r.advance()
}

func (r *Reader) Close() error {
	return r.src.close()
}

func (r *Reader) readHeader() error {
	cells, _, err := r.src.next()
	if err == io.EOF {
		return fileError(ErrNoDataRows, nil, "")
	}
	if err != nil {
		return err
	}
	r.header = make([]string, len(cells))
	for i, cell := range cells {
		r.header[i] = NormalizeHeader(cell)
	}
	if missing := MissingColumns(r.header); len(missing) > 0 {
		return fileError(ErrMissingHeaders, nil, strings.Join(missing, ", "))
	}
	return nil
}

func (r *Reader) advance() (Row, error) {
	_, spreadsheet := r.src.(*xlsxSource)
	for {
		cells, number, err := r.src.next()
		if err != nil {
			return Row{}, err
		}
		fields := make(map[string]string, len(r.header))
		empty := true
		for i, name := range r.header {
			if name == "" {
				continue
			}
			if _, seen := fields[name]; seen {
				continue
			}
			value := ""
			if i < len(cells) {
				value = strings.TrimSpace(cells[i])
			}
			if value != "" {
				empty = false
			}
			fields[name] = value
		}
		if empty {
			continue
		}
		if spreadsheet {
			fields[ColBirthDate] = serialToDate(fields[ColBirthDate])
		}
		return Row{Number: number, Fields: fields}, nil
	}
}

// serialToDate converts an Excel date serial to YYYY-MM-DD and leaves any
// other value as is.
func serialToDate(value string) string {
	serial, err := strconv.ParseFloat(value, 64)
	if err != nil || serial < 1 || serial > 2958465 {
		return value
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return value
	}
	return t.Format("2006-01-02")
}

func openSource(path, ext string) (rowSource, error) {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, fileError(ErrUnreadableFile, err, "")
	}
	switch {
	case mimeIs(mt, "application/zip"):
		return openXLSX(path)
	case mimeIs(mt, "application/x-ole-storage"), mimeIs(mt, "application/vnd.ms-excel"):
		return nil, fileError(ErrLegacyXLS, nil, "")
	case ext == ".csv", mimeIs(mt, "text/plain"):
		return openCSV(path)
	}
	return nil, fileError(ErrUnreadableFile, nil, "contenido %s", mt.String())
}

func mimeIs(mt *mimetype.MIME, want string) bool {
	for m := mt; m != nil; m = m.Parent() {
		if m.Is(want) {
			return true
		}
	}
	return false
}

type csvSource struct {
	r *csv.Reader
}

func openCSV(path string) (rowSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fileError(ErrUnreadableFile, err, "")
	}
	text, err := decodeText(data)
	if err != nil {
		return nil, fileError(ErrUnreadableFile, err, "codificación desconocida")
	}
	rd := csv.NewReader(strings.NewReader(text))
	rd.Comma = sniffDelimiter(text)
	rd.FieldsPerRecord = -1
	rd.LazyQuotes = true
	return &csvSource{r: rd}, nil
}

func (s *csvSource) next() ([]string, int, error) {
	record, err := s.r.Read()
	if err == io.EOF {
		return nil, 0, io.EOF
	}
	if err != nil {
		return nil, 0, fileError(ErrUnreadableFile, err, "")
	}
	line, _ := s.r.FieldPos(0)
	return record, line, nil
}

func (s *csvSource) close() error {
	return nil
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decodeText honours a byte order mark, keeps valid UTF-8 as is and reads
// anything else as Windows-1252, the encoding Excel uses for CSV exports.
func decodeText(data []byte) (string, error) {
	var fallback transform.Transformer = textunicode.UTF8.NewDecoder()
	if !bytes.HasPrefix(data, utf8BOM) && !utf8.Valid(data) {
		fallback = charmap.Windows1252.NewDecoder()
	}
	out, _, err := transform.Bytes(textunicode.BOMOverride(fallback), data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func sniffDelimiter(text string) rune {
	line := text
	if i := strings.IndexAny(text, "\r\n"); i >= 0 {
		line = text[:i]
	}
	best, bestCount := ',', strings.Count(line, ",")
	for _, candidate := range []rune{';', '\t'} {
		if n := strings.Count(line, string(candidate)); n > bestCount {
			best, bestCount = candidate, n
		}
	}
	return best
}

type xlsxSource struct {
	f    *excelize.File
	rows *excelize.Rows
	n    int
}

func openXLSX(path string) (rowSource, error) {
	f, err := excelize.OpenFile(path, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fileError(ErrUnreadableFile, err, "")
	}
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		_ = f.Close()
		return nil, fileError(ErrNoSheets, nil, "")
	}
	rows, err := f.Rows(sheets[0])
	if err != nil {
		_ = f.Close()
		return nil, fileError(ErrUnreadableFile, err, "hoja %q", sheets[0])
	}
	return &xlsxSource{f: f, rows: rows}, nil
}

func (s *xlsxSource) next() ([]string, int, error) {
	if !s.rows.Next() {
		if err := s.rows.Error(); err != nil {
			return nil, 0, fileError(ErrUnreadableFile, err, "")
		}
		return nil, 0, io.EOF
	}
	s.n++
	cols, err := s.rows.Columns()
	if err != nil {
		return nil, 0, fileError(ErrUnreadableFile, err, "fila %d", s.n)
	}
	return cols, s.n, nil
}

func (s *xlsxSource) close() error {
	_ = s.rows.Close()
	return s.f.Close()
}
