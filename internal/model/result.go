package model

// ClassificationStep is one level of a top-down classification path.
type ClassificationStep struct {
	Level      int     `json:"level"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// ClassificationResult is the parsed outcome for one submitted record.
// When the model's content could not be parsed, ParseError describes the
// failure and Raw retains the original content for diagnostics; Path and
// Summary are left empty in that case.
type ClassificationResult struct {
	CustomID   string               `json:"custom_id"`
	Path       []ClassificationStep `json:"classification_path,omitempty"`
	Summary    string               `json:"summary,omitempty"`
	ParseError string               `json:"parse_error,omitempty"`
	Raw        string               `json:"raw,omitempty"`
}

// StepAt returns the step for the given 1-based level, or nil when the path
// terminated above that level.
func (r *ClassificationResult) StepAt(level int) *ClassificationStep {
	for i := range r.Path {
		if r.Path[i].Level == level {
			return &r.Path[i]
		}
	}
	return nil
}

// RowStatus marks how a ResultTable row was resolved.
type RowStatus string

const (
	// RowOK means a result line for the row parsed cleanly.
	RowOK RowStatus = "ok"
	// RowSkipped means the row was blank and never submitted.
	RowSkipped RowStatus = "skipped"
	// RowMissing means the row was submitted but the remote output had no
	// line for its custom_id.
	RowMissing RowStatus = "missing"
	// RowParseError means a result line arrived but its content did not
	// match the classification schema.
	RowParseError RowStatus = "parse_error"
)

// ResultRow pairs an original input record with its reconciled outcome.
// Result is nil for skipped and missing rows.
type ResultRow struct {
	Index  int                   `json:"index"`
	Text   string                `json:"text"`
	Status RowStatus             `json:"status"`
	Result *ClassificationResult `json:"result,omitempty"`
}

// ResultTable holds exactly one row per original input record, in original
// order, regardless of what the remote job returned.
type ResultTable []ResultRow

// MaxLevels returns the deepest classification path length in the table.
func (t ResultTable) MaxLevels() int {
	maxLevels := 0
	for _, row := range t {
		if row.Result == nil {
			continue
		}
		for _, step := range row.Result.Path {
			if step.Level > maxLevels {
				maxLevels = step.Level
			}
		}
	}
	return maxLevels
}

// Counts tallies rows by status.
func (t ResultTable) Counts() map[RowStatus]int {
	counts := make(map[RowStatus]int, 4)
	for _, row := range t {
		counts[row.Status]++
	}
	return counts
}
