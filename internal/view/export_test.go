package view_test

import (
	"bytes"
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/johnwards/dealerhub/internal/view"
)

func sampleTable() view.Table {
	return view.Table{
		Title:   "Dealers",
		Headers: []string{"Name", "Region"},
		Rows: [][]string{
			{`Acme, Inc. "EV"`, "North"},
			{"VinEV Sài Gòn", "South\nDistrict 1"},
		},
	}
}

func parseCSV(t *testing.T, body []byte) [][]string {
	t.Helper()
	require.True(t, bytes.HasPrefix(body, []byte("\xef\xbb\xbf")), "csv starts with a UTF-8 BOM")
	recs, err := csv.NewReader(bytes.NewReader(body[3:])).ReadAll()
	require.NoError(t, err)
	return recs
}

func TestExportCSVRoundTrip(t *testing.T) {
	d, err := view.Export(view.FormatCSV, "dealers", sampleTable(), fixedNow)
	require.NoError(t, err)

	assert.Equal(t, "dealers-20261018.csv", d.Filename)
	assert.Equal(t, "text/csv; charset=utf-8", d.ContentType)
	assert.Contains(t, string(d.Body), `"Acme, Inc. ""EV"""`)

	recs := parseCSV(t, d.Body)
	assert.Equal(t, [][]string{
		{"Name", "Region"},
		{`Acme, Inc. "EV"`, "North"},
		{"VinEV Sài Gòn", "South\nDistrict 1"},
	}, recs)
}

func TestExportExcel(t *testing.T) {
	d, err := view.Export(view.FormatExcel, "dealers", sampleTable(), fixedNow)
	require.NoError(t, err)
	assert.Equal(t, "dealers-20261018.xlsx", d.Filename)

	f, err := excelize.OpenReader(bytes.NewReader(d.Body))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows("Data")
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Name", "Region"},
		{`Acme, Inc. "EV"`, "North"},
		{"VinEV Sài Gòn", "South\nDistrict 1"},
	}, rows)
}

func TestExportPDF(t *testing.T) {
	d, err := view.Export(view.FormatPDF, "dealers", sampleTable(), fixedNow)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", d.ContentType)
	assert.True(t, bytes.HasPrefix(d.Body, []byte("%PDF-")))
}

func TestExportPrint(t *testing.T) {
	tbl := sampleTable()
	tbl.Rows = append(tbl.Rows, []string{"<script>", "x"})

	d, err := view.Export(view.FormatPrint, "dealers", tbl, fixedNow)
	require.NoError(t, err)
	assert.True(t, d.Inline)

	page := string(d.Body)
	assert.Contains(t, page, "<title>Dealers</title>")
	assert.Contains(t, page, "@media print")
	assert.Contains(t, page, `nav, .actions { display: none; }`)
	assert.Contains(t, page, "window.print()")
	assert.Contains(t, page, "&lt;script&gt;")
	assert.Contains(t, page, "Printed 18/10/2026 16:00")
}

func TestExportCopy(t *testing.T) {
	d, err := view.Export(view.FormatCopy, "dealers", sampleTable(), fixedNow)
	require.NoError(t, err)
	assert.Equal(t, "Name\tRegion\nAcme, Inc. \"EV\"\tNorth\nVinEV Sài Gòn\tSouth District 1\n", string(d.Body))
}

func TestExportUnknownFormat(t *testing.T) {
	_, err := view.Export("docx", "dealers", sampleTable(), fixedNow)
	var vErr *view.ValidationError
	require.ErrorAs(t, err, &vErr)

	_, err = view.ParseFormat("docx")
	require.ErrorAs(t, err, &vErr)

	f, err := view.ParseFormat("excel")
	require.NoError(t, err)
	assert.Equal(t, view.FormatExcel, f)
}

func TestDownloadServeHTTP(t *testing.T) {
	d := &view.Download{Filename: "payments-20261018.csv", ContentType: "text/csv; charset=utf-8", Body: []byte("a,b\n")}

	rec := httptest.NewRecorder()
	d.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename=payments-20261018.csv`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "4", rec.Header().Get("Content-Length"))
	assert.Equal(t, "a,b\n", rec.Body.String())
	assert.Nil(t, d.Body, "body is released after serving")
}

func TestDownloadInline(t *testing.T) {
	d := &view.Download{Filename: "p.html", ContentType: "text/html; charset=utf-8", Inline: true}
	rec := httptest.NewRecorder()
	d.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Disposition"), "inline"))
}
