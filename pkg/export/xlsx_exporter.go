package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

const defaultSheet = "Sheet1"

// XLSXExporter renders datasets into a single sheet workbook with a bold,
// filterable header row.
type XLSXExporter struct{}

// NewXLSXExporter constructs an XLSX exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

// Render produces the workbook bytes.
func (e *XLSXExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("xlsx requires at least one header")
	}
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := defaultSheet
	if data.Title != "" {
		if err := f.SetSheetName(defaultSheet, sheetName(data.Title)); err != nil {
			return nil, fmt.Errorf("rename sheet: %w", err)
		}
		sheet = sheetName(data.Title)
	}

	for col, header := range data.Headers {
		cell := fmt.Sprintf("%s1", columnName(col+1))
		if err := f.SetCellStr(sheet, cell, header); err != nil {
			return nil, fmt.Errorf("set cell %s: %w", cell, err)
		}
	}
	for r, row := range data.Rows {
		for c, value := range padRow(row, len(data.Headers)) {
			cell := fmt.Sprintf("%s%d", columnName(c+1), r+2)
			if err := f.SetCellStr(sheet, cell, value); err != nil {
				return nil, fmt.Errorf("set cell %s: %w", cell, err)
			}
		}
	}

	last := columnName(len(data.Headers)) + "1"
	if bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetCellStyle(sheet, "A1", last, bold)
	}
	_ = f.AutoFilter(sheet, "A1:"+last, nil)
	for c := 1; c <= len(data.Headers); c++ {
		_ = f.SetColWidth(sheet, columnName(c), columnName(c), columnWidth(data, c-1))
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return bytes.Clone(buf.Bytes()), nil
}

// columnWidth approximates a width from the header and the first rows.
func columnWidth(data Dataset, col int) float64 {
	longest := len([]rune(data.Headers[col]))
	for r := 0; r < len(data.Rows) && r < 50; r++ {
		if col < len(data.Rows[r]) {
			if l := len([]rune(data.Rows[r][col])); l > longest {
				longest = l
			}
		}
	}
	w := float64(longest) * 1.1
	if w < 10 {
		w = 10
	}
	if w > 50 {
		w = 50
	}
	return w
}

// columnName maps 1 -> A, 27 -> AA.
func columnName(n int) string {
	s := ""
	for n > 0 {
		n--
		s = string(rune('A'+(n%26))) + s
		n /= 26
	}
	return s
}

// sheetName trims to the 31 rune limit excel imposes.
func sheetName(title string) string {
	runes := []rune(title)
	if len(runes) > 31 {
		runes = runes[:31]
	}
	return string(runes)
}
