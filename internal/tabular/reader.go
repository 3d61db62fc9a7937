// Package tabular reads input records from spreadsheet files and writes the
// reconciled result table back out. XLSX and CSV are supported, dispatched
// on file extension.
package tabular

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/classify-cli/internal/model"
)

// DefaultTextColumn is the header of the free-text column when none is
// configured.
const DefaultTextColumn = "abstract"

// ReadRecords loads input records from an XLSX or CSV file. The first row is
// a header; textColumn selects the free-text column (case-insensitive).
// Records are assigned 0-based indices in file order, counting every data
// row including blank ones.
func ReadRecords(path, textColumn string) ([]model.InputRecord, error) {
	if textColumn == "" {
		textColumn = DefaultTextColumn
	}

	rows, err := readRows(path)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, eris.Errorf("tabular: %s has no header row", path)
	}

	header := rows[0]
	col := -1
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), textColumn) {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, eris.Errorf("tabular: column %q not found in %s (headers: %s)",
			textColumn, path, strings.Join(header, ", "))
	}

	records := make([]model.InputRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		text := ""
		if col < len(row) {
			text = row[col]
		}
		records = append(records, model.InputRecord{Index: i, Text: text})
	}
	return records, nil
}

func readRows(path string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xls":
		return readXLSXRows(path)
	case ".csv":
		return readCSVRows(path)
	default:
		return nil, eris.Errorf("tabular: unsupported file type %q", filepath.Ext(path))
	}
}

func readXLSXRows(path string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "tabular: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("tabular: %s has no sheets", path)
	}

	sheet := f.Sheets[0]
	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

func readCSVRows(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "tabular: open csv")
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "tabular: read csv")
	}
	return rows, nil
}
