package view

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"fmt"
	"html/template"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/go-pdf/fpdf"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/johnwards/dealerhub/internal/format"
)

// Format is an export format.
type Format string

// Export formats.
const (
	FormatCSV   Format = "csv"
	FormatExcel Format = "excel"
	FormatPDF   Format = "pdf"
	FormatPrint Format = "print"
	FormatCopy  Format = "copy"
)

// Formats lists every export format in menu order.
var Formats = []Format{FormatCSV, FormatExcel, FormatPDF, FormatPrint, FormatCopy}

// ParseFormat validates an export format name.
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats {
		if string(f) == s {
			return f, nil
		}
	}
	return "", &ValidationError{Field: "format", Message: fmt.Sprintf("Unsupported export format %q", s)}
}

// ServerSide reports whether f can be produced by a server export endpoint.
func (f Format) ServerSide() bool {
	return f == FormatCSV || f == FormatExcel || f == FormatPDF
}

// Table is the exported form of a filtered row set.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// TableOf builds the export table from rendered rows. The cells are the
// ones the screen displays.
func TableOf(cfg *Config, rows []Row) Table {
	t := Table{Title: cfg.Title, Headers: make([]string, len(cfg.Columns)), Rows: make([][]string, len(rows))}
	for i, col := range cfg.Columns {
		t.Headers[i] = col.Label
	}
	for i, row := range rows {
		t.Rows[i] = row.Cells
	}
	return t
}

// Download is a file ready to hand to the browser.
type Download struct {
	Filename    string
	ContentType string
	// Inline downloads open in the browser instead of saving.
	Inline bool
	Body   []byte
}

// ServeHTTP writes the download and releases its body.
func (d *Download) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	disposition := "attachment"
	if d.Inline {
		disposition = "inline"
	}
	w.Header().Set("Content-Type", d.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": d.Filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(d.Body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(d.Body)
	d.Body = nil
}

const (
	contentTypeCSV   = "text/csv; charset=utf-8"
	contentTypeExcel = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypePDF   = "application/pdf"
	contentTypeHTML  = "text/html; charset=utf-8"
	contentTypeText  = "text/plain; charset=utf-8"
)

// Export renders t in format f. name prefixes the file name, which is
// dated with now.
func Export(f Format, name string, t Table, now time.Time) (*Download, error) {
	stem := fmt.Sprintf("%s-%s", name, now.In(format.Location).Format("20060102"))

	var (
		d   = &Download{}
		err error
	)
	switch f {
	case FormatCSV:
		d.Filename, d.ContentType = stem+".csv", contentTypeCSV
		d.Body, err = exportCSV(t)
	case FormatExcel:
		d.Filename, d.ContentType = stem+".xlsx", contentTypeExcel
		d.Body, err = exportExcel(t)
	case FormatPDF:
		d.Filename, d.ContentType = stem+".pdf", contentTypePDF
		d.Body, err = exportPDF(t, now)
	case FormatPrint:
		d.Filename, d.ContentType, d.Inline = stem+".html", contentTypeHTML, true
		d.Body, err = exportPrint(t, now)
	case FormatCopy:
		d.Filename, d.ContentType, d.Inline = stem+".txt", contentTypeText, true
		d.Body = exportCopy(t)
	default:
		_, err = ParseFormat(string(f))
	}
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", f, err)
	}
	return d, nil
}

// utf8BOM makes spreadsheet tools read the file as UTF-8.
const utf8BOM = "\ufeff"

func exportCSV(t Table) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(utf8BOM)

	cw := csv.NewWriter(&buf)
	if err := cw.Write(t.Headers); err != nil {
		return nil, err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

const excelSheet = "Data"

func exportExcel(t Table) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", excelSheet); err != nil {
		return nil, err
	}

	header := make([]any, len(t.Headers))
	for i, h := range t.Headers {
		header[i] = h
	}
	if err := f.SetSheetRow(excelSheet, "A1", &header); err != nil {
		return nil, err
	}

	for i, row := range t.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		values := make([]any, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(excelSheet, cell, &values); err != nil {
			return nil, err
		}
	}

	if len(t.Headers) > 0 {
		bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return nil, err
		}
		last, err := excelize.CoordinatesToCellName(len(t.Headers), 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(excelSheet, "A1", last, bold); err != nil {
			return nil, err
		}
		lastCol, err := excelize.ColumnNumberToName(len(t.Headers))
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(excelSheet, "A", lastCol, 20); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

const (
	pdfRowHeight = 7.0
	pdfFontSize  = 9.0
)

func exportPDF(t Table, now time.Time) ([]byte, error) {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetTitle(t.Title, true)
	pdf.AddPage()

	// Core fonts cover cp1252 only, so Vietnamese marks are folded away.
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	text := func(s string) string { return tr(foldMarks(s)) }

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 10, text(t.Title), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", pdfFontSize)
	pdf.CellFormat(0, 6, "Exported "+now.In(format.Location).Format("02/01/2006 15:04"), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	if len(t.Headers) > 0 {
		pageW, _ := pdf.GetPageSize()
		left, _, right, _ := pdf.GetMargins()
		colW := (pageW - left - right) / float64(len(t.Headers))

		pdf.SetFont("Helvetica", "B", pdfFontSize)
		pdf.SetFillColor(230, 230, 230)
		for _, h := range t.Headers {
			pdf.CellFormat(colW, pdfRowHeight, fit(pdf, text(h), colW), "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)

		pdf.SetFont("Helvetica", "", pdfFontSize)
		for _, row := range t.Rows {
			for _, cell := range row {
				pdf.CellFormat(colW, pdfRowHeight, fit(pdf, text(cell), colW), "1", 0, "L", false, 0, "")
			}
			pdf.Ln(-1)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// fit truncates s with an ellipsis so it fits a cell of width w.
func fit(pdf *fpdf.Fpdf, s string, w float64) string {
	const padding = 2.0
	if pdf.GetStringWidth(s) <= w-padding {
		return s
	}
	// s is single-byte encoded by now.
	for len(s) > 0 && pdf.GetStringWidth(s+"...") > w-padding {
		s = s[:len(s)-1]
	}
	return s + "..."
}

// foldMarks strips combining marks: "Hà Nội" becomes "Ha Noi".
func foldMarks(s string) string {
	folder := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(folder, s)
	if err != nil {
		return s
	}
	return strings.NewReplacer("đ", "d", "Đ", "D").Replace(out)
}

//go:embed print.html
var printHTML string

var printTemplate = template.Must(template.New("print").Parse(printHTML))

func exportPrint(t Table, now time.Time) ([]byte, error) {
	var buf bytes.Buffer
	err := printTemplate.Execute(&buf, struct {
		Table
		Printed string
	}{t, now.In(format.Location).Format("02/01/2006 15:04")})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// exportCopy renders tab-separated text for the clipboard.
func exportCopy(t Table) []byte {
	clean := strings.NewReplacer("\t", " ", "\r\n", " ", "\n", " ", "\r", " ")

	var buf bytes.Buffer
	line := func(cells []string) {
		for i, c := range cells {
			if i > 0 {
				buf.WriteByte('\t')
			}
			buf.WriteString(clean.Replace(c))
		}
		buf.WriteByte('\n')
	}
	line(t.Headers)
	for _, row := range t.Rows {
		line(row)
	}
	return buf.Bytes()
}
