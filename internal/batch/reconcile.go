package batch

import (
	"go.uber.org/zap"

	"github.com/sells-group/classify-cli/internal/model"
)

// Reconcile restores original row order over an unordered, possibly
// incomplete result set. The returned table has exactly one entry per
// original record: skipped rows get a `skipped` placeholder, submitted rows
// whose custom_id never came back get `missing`. Duplicate result lines for
// the same custom_id keep the first occurrence. Result lines with unknown
// custom_ids are logged and dropped.
func Reconcile(index *RequestIndex, results []model.ClassificationResult, records []model.InputRecord) model.ResultTable {
	byCustomID := make(map[string]*model.ClassificationResult, len(results))
	for i := range results {
		r := &results[i]
		if r.CustomID == "" {
			zap.L().Warn("dropping result line without custom_id", zap.String("parse_error", r.ParseError))
			continue
		}
		if _, ok := index.IndexFor(r.CustomID); !ok {
			zap.L().Warn("dropping result with unknown custom_id", zap.String("custom_id", r.CustomID))
			continue
		}
		if _, dup := byCustomID[r.CustomID]; dup {
			zap.L().Warn("duplicate result line, keeping first", zap.String("custom_id", r.CustomID))
			continue
		}
		byCustomID[r.CustomID] = r
	}

	table := make(model.ResultTable, 0, len(records))
	for i, rec := range records {
		row := model.ResultRow{Index: rec.Index, Text: rec.Text}

		entry, ok := index.Entry(i)
		switch {
		case !ok:
			// Row was never seen by the builder; treat it like a missing
			// submission rather than inventing a result.
			row.Status = model.RowMissing
		case entry.Skipped:
			row.Status = model.RowSkipped
		default:
			result, found := byCustomID[entry.CustomID]
			switch {
			case !found:
				row.Status = model.RowMissing
			case result.ParseError != "":
				row.Status = model.RowParseError
				row.Result = result
			default:
				row.Status = model.RowOK
				row.Result = result
			}
		}

		table = append(table, row)
	}

	counts := table.Counts()
	zap.L().Info("reconciled results",
		zap.Int("rows", len(table)),
		zap.Int("ok", counts[model.RowOK]),
		zap.Int("skipped", counts[model.RowSkipped]),
		zap.Int("missing", counts[model.RowMissing]),
		zap.Int("parse_errors", counts[model.RowParseError]),
	)
	return table
}
