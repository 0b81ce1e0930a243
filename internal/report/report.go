// Package report exports a crawl's pages table to CSV, XLSX, or JSON.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/polite-crawler/polite/internal/storage"
)

// ExportFormat defines the export file format.
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatXLSX ExportFormat = "xlsx"
	FormatJSON ExportFormat = "json"
)

// ParseFormat maps a user-supplied format name to an ExportFormat.
func ParseFormat(s string) (ExportFormat, error) {
	switch ExportFormat(strings.ToLower(s)) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported export format: %s", s)
	}
}

// Columns is the exported column order.
var Columns = []string{"url", "status", "content_type", "title", "description", "depth", "crawled_at"}

// Report holds the pages loaded for export.
type Report struct {
	Rows []storage.PageRow
}

// Build loads all crawled pages from the store, ordered by crawl time.
func Build(store *storage.Store) (*Report, error) {
	rows, err := store.LoadPages()
	if err != nil {
		return nil, fmt.Errorf("failed to load pages: %w", err)
	}
	return &Report{Rows: rows}, nil
}

func rowValues(p storage.PageRow) []any {
	return []any{p.URL, p.Status, p.ContentType, p.Title, p.Description, p.Depth, p.CrawledAt}
}

// ExportOptions defines export configuration.
type ExportOptions struct {
	Format    ExportFormat
	FilePath  string
	MaxRows   int  // 0 = unlimited
	Delimiter rune // For CSV, default is comma
}

// Exporter writes a Report to disk in the configured format.
type Exporter struct {
	options *ExportOptions
}

// NewExporter creates a new exporter.
func NewExporter(options *ExportOptions) *Exporter {
	if options.Delimiter == 0 {
		options.Delimiter = ','
	}
	return &Exporter{options: options}
}

// Export writes the report to the configured path.
func (e *Exporter) Export(report *Report) error {
	switch e.options.Format {
	case FormatCSV:
		return e.exportCSV(report)
	case FormatXLSX:
		return e.exportXLSX(report)
	case FormatJSON:
		return e.exportJSON(report)
	default:
		return fmt.Errorf("unsupported export format: %s", e.options.Format)
	}
}

func (e *Exporter) limit(report *Report) []storage.PageRow {
	rows := report.Rows
	if e.options.MaxRows > 0 && len(rows) > e.options.MaxRows {
		rows = rows[:e.options.MaxRows]
	}
	return rows
}

func (e *Exporter) exportCSV(report *Report) error {
	file, err := os.Create(e.options.FilePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	// UTF-8 BOM for Excel compatibility.
	file.Write([]byte{0xEF, 0xBB, 0xBF})

	writer := csv.NewWriter(file)
	writer.Comma = e.options.Delimiter
	defer writer.Flush()

	if err := writer.Write(Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, row := range e.limit(report) {
		values := make([]string, len(Columns))
		for i, v := range rowValues(row) {
			values[i] = formatValue(v)
		}
		if err := writer.Write(values); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func (e *Exporter) exportXLSX(report *Report) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheetName = "Pages"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"00C853"}},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	for i, col := range Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, col)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)

		colName, _ := excelize.ColumnNumberToName(i + 1)
		width := float64(len(col) + 5)
		if width < 15 {
			width = 15
		}
		f.SetColWidth(sheetName, colName, colName, width)
	}

	rows := e.limit(report)
	for rowIdx, row := range rows {
		for i, v := range rowValues(row) {
			cell, _ := excelize.CoordinatesToCellName(i+1, rowIdx+2)
			if ts, ok := v.(time.Time); ok {
				v = ts.Format(time.RFC3339)
			}
			f.SetCellValue(sheetName, cell, v)
		}
	}

	lastCol, _ := excelize.ColumnNumberToName(len(Columns))
	filterRange := fmt.Sprintf("A1:%s%d", lastCol, len(rows)+1)
	f.AutoFilter(sheetName, filterRange, nil)

	f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})

	e.addMetadataSheet(f, len(rows))
	return f.SaveAs(e.options.FilePath)
}

func (e *Exporter) addMetadataSheet(f *excelize.File, total int) {
	const sheetName = "Metadata"
	f.NewSheet(sheetName)

	metadata := [][]string{
		{"Report", "Crawled Pages"},
		{"Total Rows", fmt.Sprintf("%d", total)},
		{"Generated", time.Now().Format(time.RFC3339)},
	}
	for i, row := range metadata {
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", i+1), row[0])
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", i+1), row[1])
	}
	f.SetColWidth(sheetName, "A", "A", 20)
	f.SetColWidth(sheetName, "B", "B", 50)
}

// JSONReport is the JSON export structure.
type JSONReport struct {
	Metadata JSONMetadata     `json:"metadata"`
	Rows     []map[string]any `json:"rows"`
}

// JSONMetadata describes the exported data set.
type JSONMetadata struct {
	TotalCount int      `json:"total_count"`
	Generated  string   `json:"generated"`
	Columns    []string `json:"columns"`
}

func (e *Exporter) exportJSON(report *Report) error {
	rows := e.limit(report)
	data := &JSONReport{
		Metadata: JSONMetadata{
			TotalCount: len(rows),
			Generated:  time.Now().Format(time.RFC3339),
			Columns:    Columns,
		},
		Rows: make([]map[string]any, 0, len(rows)),
	}
	for _, row := range rows {
		m := make(map[string]any, len(Columns))
		for i, v := range rowValues(row) {
			if ts, ok := v.(time.Time); ok {
				v = ts.Format(time.RFC3339)
			}
			m[Columns[i]] = v
		}
		data.Rows = append(data.Rows, m)
	}

	file, err := os.Create(e.options.FilePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return encoder.Encode(data)
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case int:
		return fmt.Sprintf("%d", val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", val)
	}
}
