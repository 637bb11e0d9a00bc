// Package export renders loaded tables to spreadsheet files. XLSX is the
// primary format (one sheet per table); CSV is a single-table fallback.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kolobok/dbadmin/internal/models"
)

// sheetNameLimit is the hard cap spreadsheet applications put on sheet names.
const sheetNameLimit = 31

// TableData is one table ready for export: the discovered schema plus the
// working rows, with an optional display title used as the sheet name.
type TableData struct {
	Name   string
	Title  string
	Schema *models.TableSchema
	Rows   []*models.RowSnapshot
}

func (t TableData) sheetName() string {
	name := t.Title
	if name == "" {
		name = t.Name
	}
	return sanitizeSheetName(name)
}

// sanitizeSheetName replaces characters sheet names cannot contain and
// truncates to the 31-rune limit.
func sanitizeSheetName(name string) string {
	replacer := strings.NewReplacer(`\`, "_", "/", "_", "?", "_", "*", "_", "[", "_", "]", "_", ":", "_")
	name = replacer.Replace(name)
	runes := []rune(name)
	if len(runes) > sheetNameLimit {
		name = string(runes[:sheetNameLimit])
	}
	if name == "" {
		name = "Sheet1"
	}
	return name
}

// DefaultFilename builds a timestamped filename like dbadmin_2026-08-30_17-45.xlsx.
func DefaultFilename(prefix, ext string) string {
	return fmt.Sprintf("%s_%s.%s", prefix, time.Now().Format("2006-01-02_15-04"), ext)
}

// WriteXLSX writes one sheet per table to path. Rows marked Deleted are
// skipped; cell values render with fmt defaults except nil, which stays an
// empty cell.
func WriteXLSX(path string, tables []TableData) error {
	if len(tables) == 0 {
		return fmt.Errorf("nothing to export")
	}

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}

	for i, table := range tables {
		sheet := table.sheetName()
		if i == 0 {
			f.SetSheetName(f.GetSheetName(0), sheet)
		} else if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("creating sheet %s: %w", sheet, err)
		}

		widths := make([]int, len(table.Schema.Columns))
		for col, spec := range table.Schema.Columns {
			cell, err := excelize.CoordinatesToCellName(col+1, 1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, spec.Name); err != nil {
				return err
			}
			widths[col] = len([]rune(spec.Name))
		}

		lastHeader, err := excelize.CoordinatesToCellName(len(table.Schema.Columns), 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, "A1", lastHeader, headerStyle); err != nil {
			return err
		}

		rowNum := 2
		for _, row := range table.Rows {
			if row.State == models.RowDeleted {
				continue
			}
			for col, spec := range table.Schema.Columns {
				cell, err := excelize.CoordinatesToCellName(col+1, rowNum)
				if err != nil {
					return err
				}
				v := row.Get(spec.Name)
				if v == nil {
					continue
				}
				if err := f.SetCellValue(sheet, cell, cellValue(v)); err != nil {
					return err
				}
				if w := len([]rune(formatCell(v))); w > widths[col] {
					widths[col] = w
				}
			}
			rowNum++
		}

		for col, w := range widths {
			name, err := excelize.ColumnNumberToName(col + 1)
			if err != nil {
				return err
			}
			if err := f.SetColWidth(sheet, name, name, float64(min(w+2, 60))); err != nil {
				return err
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving workbook: %w", err)
	}
	return nil
}

// WriteCSV writes a single table to path with a header row.
func WriteCSV(path string, table TableData) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating csv file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)

	header := make([]string, len(table.Schema.Columns))
	for i, spec := range table.Schema.Columns {
		header[i] = spec.Name
	}
	if err := w.Write(header); err != nil {
		return err
	}

	record := make([]string, len(table.Schema.Columns))
	for _, row := range table.Rows {
		if row.State == models.RowDeleted {
			continue
		}
		for i, spec := range table.Schema.Columns {
			record[i] = formatCell(row.Get(spec.Name))
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// cellValue keeps types excelize renders natively and stringifies the rest.
func cellValue(v any) any {
	switch v.(type) {
	case string, int, int32, int64, float32, float64, bool, time.Time:
		return v
	case []byte:
		return fmt.Sprintf("%x", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func formatCell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case time.Time:
		return t.Format("2006-01-02 15:04:05")
	case []byte:
		return fmt.Sprintf("%x", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
