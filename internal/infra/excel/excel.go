// Package excel adapts xlsx workbooks to the collection domain: template
// header extraction, template generation, reply parsing and summary export.
package excel

import (
	"bytes"
	"fmt"

	"data_collector/internal/domain/task"

	"github.com/xuri/excelize/v2"
)

// ErrTemplateParse marks a template that cannot be opened as tabular data
// or carries no columns. Terminal for task creation.
var ErrTemplateParse = fmt.Errorf("template parse failed")

// Parser bundles the workbook operations services depend on, so they can
// swap it for a stub in tests.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// ParseTemplate extracts the ordered field list from a template's single
// header row. Column order is preserved; duplicate header names pass
// through untouched (the caller validates them).
func (p *Parser) ParseTemplate(path string) ([]task.Field, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateParse, err)
	}
	defer f.Close()

	rows, err := firstSheetRows(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateParse, err)
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("%w: template has no header columns", ErrTemplateParse)
	}

	fields := make([]task.Field, 0, len(rows[0]))
	for _, name := range rows[0] {
		if name == "" {
			continue
		}
		fields = append(fields, task.Field{Name: name, Type: task.FieldTypeText, Required: false})
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: template has no header columns", ErrTemplateParse)
	}
	return fields, nil
}

// ParseReply extracts the first data row of a reply attachment as a flat
// name -> value map. Only columns whose header exactly matches an expected
// field survive; blank cells are omitted rather than emitted as empty
// strings so re-ingestion of a corrected resend never blanks out captured
// values. No data rows is not an error: the caller keeps scanning.
func (p *Parser) ParseReply(data []byte, expected []task.Field) (map[string]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open reply attachment: %w", err)
	}
	defer f.Close()

	rows, err := firstSheetRows(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read reply attachment: %w", err)
	}
	if len(rows) < 2 {
		return map[string]string{}, nil
	}

	expectedNames := make(map[string]bool, len(expected))
	for _, field := range expected {
		expectedNames[field.Name] = true
	}

	header := rows[0]
	dataRow := rows[1]
	values := make(map[string]string)
	for i, name := range header {
		if !expectedNames[name] {
			continue
		}
		if i >= len(dataRow) || dataRow[i] == "" {
			continue
		}
		values[name] = dataRow[i]
	}
	return values, nil
}

// CreateTemplate writes an empty template workbook with the field names as
// its header row, for outbound distribution.
func (p *Parser) CreateTemplate(fields []task.Field, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"
	for i, field := range fields {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return fmt.Errorf("failed to build template header: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, field.Name); err != nil {
			return fmt.Errorf("failed to build template header: %w", err)
		}
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(sheet, col, col, 15)
	}
	if err := f.SaveAs(outputPath); err != nil {
		return fmt.Errorf("failed to save template %s: %w", outputPath, err)
	}
	return nil
}

func (p *Parser) WriteSummary(headers []string, rows [][]string, outputPath string) error {
	return WriteSummary(headers, rows, outputPath)
}

// WriteSummary renders a header row plus data rows to a workbook, for the
// summary export.
func WriteSummary(headers []string, rows [][]string, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return fmt.Errorf("failed to write summary header: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("failed to write summary header: %w", err)
		}
	}
	for r, row := range rows {
		for c, value := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return fmt.Errorf("failed to write summary row: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("failed to write summary row: %w", err)
			}
		}
	}
	if err := f.SaveAs(outputPath); err != nil {
		return fmt.Errorf("failed to save summary %s: %w", outputPath, err)
	}
	return nil
}

func firstSheetRows(f *excelize.File) ([][]string, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	return f.GetRows(sheets[0])
}
