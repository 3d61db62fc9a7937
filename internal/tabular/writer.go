package tabular

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/classify-cli/internal/model"
)

// WriteResults writes the result table as XLSX or CSV, one row per original
// input record. Columns: index, text, then category/confidence/reason per
// level up to the deepest path in the table, then summary and status.
func WriteResults(path string, table model.ResultTable) error {
	rows := resultRows(table)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xls":
		return writeXLSXRows(path, rows)
	case ".csv":
		return writeCSVRows(path, rows)
	default:
		return eris.Errorf("tabular: unsupported output type %q", filepath.Ext(path))
	}
}

func resultRows(table model.ResultTable) [][]string {
	levels := table.MaxLevels()

	header := []string{"index", "text"}
	for l := 1; l <= levels; l++ {
		n := strconv.Itoa(l)
		header = append(header, "level"+n+"_category", "level"+n+"_confidence", "level"+n+"_reason")
	}
	header = append(header, "summary", "status")

	rows := [][]string{header}
	for _, row := range table {
		cells := []string{strconv.Itoa(row.Index), row.Text}
		for l := 1; l <= levels; l++ {
			var step *model.ClassificationStep
			if row.Result != nil {
				step = row.Result.StepAt(l)
			}
			if step == nil {
				cells = append(cells, "", "", "")
				continue
			}
			cells = append(cells,
				step.Category,
				strconv.FormatFloat(step.Confidence, 'f', -1, 64),
				step.Reason,
			)
		}

		summary := ""
		if row.Result != nil {
			summary = row.Result.Summary
		}
		cells = append(cells, summary, string(row.Status))
		rows = append(rows, cells)
	}
	return rows
}

func writeXLSXRows(path string, rows [][]string) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Results")
	if err != nil {
		return eris.Wrap(err, "tabular: add sheet")
	}
	for _, cells := range rows {
		row := sheet.AddRow()
		for _, cell := range cells {
			row.AddCell().SetString(cell)
		}
	}
	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "tabular: save xlsx")
	}
	return nil
}

func writeCSVRows(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "tabular: create csv")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return eris.Wrap(err, "tabular: write csv")
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrap(err, "tabular: flush csv")
	}
	return nil
}
