package model

import "strings"

// InputRecord is a single free-text row from the input table. Index is the
// 0-based position in the original sequence and is never reassigned, even
// when the record is filtered out before submission.
type InputRecord struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// IsBlank reports whether the record carries no classifiable text.
func (r InputRecord) IsBlank() bool {
	return strings.TrimSpace(r.Text) == ""
}
