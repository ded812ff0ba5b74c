// Package report renders equipment reports as PDF documents.
package report

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"

	"github.com/JonMunkholm/chemequip/internal/core"
	"github.com/go-pdf/fpdf"
)

// Filename is the attachment name used when serving a report.
const Filename = "equipment_report.pdf"

// MaxEquipmentRows caps the equipment table so the report stays readable.
const MaxEquipmentRows = 50

// rgb is a fill, text or border colour.
type rgb struct{ r, g, b int }

var (
	colorTitle   = rgb{0x1a, 0x36, 0x5d}
	colorHeading = rgb{0x2c, 0x52, 0x82}
	colorWhite   = rgb{0xff, 0xff, 0xff}
	colorText    = rgb{0x1a, 0x20, 0x2c}
	colorMuted   = rgb{0x71, 0x80, 0x96}
)

// tableStyle holds the colours and widths of one table.
type tableStyle struct {
	header rgb
	body   rgb
	grid   rgb
	widths []float64
}

var (
	summaryStyle = tableStyle{
		header: rgb{0x2c, 0x52, 0x82},
		body:   rgb{0xed, 0xf2, 0xf7},
		grid:   rgb{0xcb, 0xd5, 0xe0},
		widths: []float64{70, 70},
	}
	typeStyle = tableStyle{
		header: rgb{0x38, 0xa1, 0x69},
		body:   rgb{0xf0, 0xff, 0xf4},
		grid:   rgb{0x9a, 0xe6, 0xb4},
		widths: []float64{70, 35},
	}
	equipmentStyle = tableStyle{
		header: rgb{0x80, 0x5a, 0xd5},
		body:   rgb{0xfa, 0xf5, 0xff},
		grid:   rgb{0xd6, 0xbc, 0xfa},
		widths: []float64{45, 35, 25, 25, 25},
	}
)

// Render writes a PDF report for data to w.
func Render(w io.Writer, data core.ReportData) error {
	return render(w, data, true)
}

func render(w io.Writer, data core.ReportData, compress bool) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(compress)
	pdf.SetMargins(18, 18, 18)
	pdf.SetAutoPageBreak(true, 18)
	pdf.SetTitle("Chemical Equipment Analysis Report", true)
	pdf.SetCreator("chemequip", true)
	pdf.AddPage()

	tr := pdf.UnicodeTranslatorFromDescriptor("")

	setText(pdf, colorTitle)
	pdf.SetFont("Helvetica", "B", 22)
	pdf.CellFormat(0, 12, "Chemical Equipment Analysis Report", "", 1, "C", false, 0, "")

	setText(pdf, colorMuted)
	pdf.SetFont("Helvetica", "", 9)
	info := fmt.Sprintf("File: %s  |  Uploaded: %s  |  Generated: %s",
		data.Upload.Filename,
		data.Upload.UploadedAt.UTC().Format("2006-01-02 15:04 MST"),
		data.GeneratedAt.UTC().Format("2006-01-02 15:04 MST"),
	)
	pdf.CellFormat(0, 6, tr(info), "", 1, "C", false, 0, "")
	pdf.Ln(6)

	heading(pdf, "Summary Statistics")
	table(pdf, tr, summaryStyle, []string{"Metric", "Value"}, summaryRows(data.Summary))

	heading(pdf, "Equipment Type Distribution")
	if rows := typeRows(data.Summary.TypeDistribution); len(rows) > 0 {
		table(pdf, tr, typeStyle, []string{"Equipment Type", "Count"}, rows)
	}

	heading(pdf, "Equipment Data")
	table(pdf, tr, equipmentStyle,
		[]string{"Name", "Type", "Flowrate", "Pressure", "Temp (°C)"},
		equipmentRows(data.Equipment))

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}

func setText(pdf *fpdf.Fpdf, c rgb) {
	pdf.SetTextColor(c.r, c.g, c.b)
}

func heading(pdf *fpdf.Fpdf, title string) {
	pdf.Ln(4)
	setText(pdf, colorHeading)
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 9, title, "", 1, "L", false, 0, "")
	pdf.Ln(1)
}

// table draws a centred grid with a filled header row.
func table(pdf *fpdf.Fpdf, tr func(string) string, style tableStyle, header []string, rows [][]string) {
	pageW, _ := pdf.GetPageSize()
	var total float64
	for _, w := range style.widths {
		total += w
	}
	left := (pageW - total) / 2

	pdf.SetDrawColor(style.grid.r, style.grid.g, style.grid.b)
	pdf.SetLineWidth(0.3)

	pdf.SetX(left)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(style.header.r, style.header.g, style.header.b)
	setText(pdf, colorWhite)
	for i, h := range header {
		pdf.CellFormat(style.widths[i], 8, tr(h), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	pdf.SetFillColor(style.body.r, style.body.g, style.body.b)
	setText(pdf, colorText)
	for _, row := range rows {
		pdf.SetX(left)
		for i, cell := range row {
			pdf.CellFormat(style.widths[i], 7, tr(cell), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
	}
}

func fixed(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}

func summaryRows(s core.SummaryStatistics) [][]string {
	return [][]string{
		{"Total Equipment Count", strconv.Itoa(s.TotalCount)},
		{"Average Flowrate", fixed(s.AvgFlowrate, 2)},
		{"Average Pressure", fixed(s.AvgPressure, 2) + " bar"},
		{"Average Temperature", fixed(s.AvgTemperature, 2) + " °C"},
		{"Flowrate Range", fixed(s.MinFlowrate, 2) + " - " + fixed(s.MaxFlowrate, 2)},
		{"Pressure Range", fixed(s.MinPressure, 2) + " - " + fixed(s.MaxPressure, 2) + " bar"},
		{"Temperature Range", fixed(s.MinTemperature, 2) + " - " + fixed(s.MaxTemperature, 2) + " °C"},
	}
}

// typeRows lists the distribution sorted by type name.
func typeRows(dist map[string]int) [][]string {
	rows := make([][]string, 0, len(dist))
	for _, t := range slices.Sorted(maps.Keys(dist)) {
		rows = append(rows, []string{t, strconv.Itoa(dist[t])})
	}
	return rows
}

func equipmentRows(items []core.Equipment) [][]string {
	if len(items) > MaxEquipmentRows {
		items = items[:MaxEquipmentRows]
	}
	rows := make([][]string, 0, len(items))
	for _, eq := range items {
		rows = append(rows, []string{
			eq.Name,
			eq.Type,
			fixed(eq.Flowrate, 1),
			fixed(eq.Pressure, 1),
			fixed(eq.Temperature, 1),
		})
	}
	return rows
}
