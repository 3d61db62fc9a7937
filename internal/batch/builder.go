// Package batch builds, submits, and reconciles asynchronous classification
// batches. Identity travels via custom_id derived from the original row
// index, never via position, so results can be reordered or dropped by the
// remote service without losing row correspondence.
package batch

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/classify-cli/internal/model"
	"github.com/sells-group/classify-cli/internal/prompt"
	"github.com/sells-group/classify-cli/internal/taxonomy"
	"github.com/sells-group/classify-cli/pkg/zhipu"
)

// ModelConfig selects the target model and sampling temperature. The
// temperature stays low (0.1 by default) for reproducible classifications.
type ModelConfig struct {
	Name        string
	Temperature float64
}

// CustomID derives the stable request identifier for an original row index.
func CustomID(index int) string {
	return fmt.Sprintf("request-%d", index)
}

// IndexEntry records how one original row was handled at build time.
type IndexEntry struct {
	Index    int
	CustomID string // empty when skipped
	Skipped  bool
}

// RequestIndex maps between original row indices and custom_ids, including
// rows that were skipped rather than submitted.
type RequestIndex struct {
	entries    []IndexEntry
	byCustomID map[string]int
}

// Entry returns the index entry for the i-th original row.
func (x *RequestIndex) Entry(i int) (IndexEntry, bool) {
	if i < 0 || i >= len(x.entries) {
		return IndexEntry{}, false
	}
	return x.entries[i], true
}

// IndexFor resolves a custom_id back to its original row index.
func (x *RequestIndex) IndexFor(customID string) (int, bool) {
	i, ok := x.byCustomID[customID]
	return i, ok
}

// Len is the number of original rows covered by the index.
func (x *RequestIndex) Len() int { return len(x.entries) }

// Sent counts rows that produced a request line.
func (x *RequestIndex) Sent() int { return len(x.byCustomID) }

// SkippedCount counts rows recorded as skipped.
func (x *RequestIndex) SkippedCount() int { return len(x.entries) - len(x.byCustomID) }

// RequestBatch is a built, ready-to-submit request payload.
type RequestBatch struct {
	// Payload is the line-delimited request document, one JSON object per
	// non-skipped record.
	Payload []byte
	// Lines is the number of request lines in Payload.
	Lines int
	// Index maps custom_ids to original row indices for reconciliation.
	Index *RequestIndex
}

// requestLine is one entry of the batch input document.
type requestLine struct {
	CustomID string      `json:"custom_id"`
	Method   string      `json:"method"`
	URL      string      `json:"url"`
	Body     requestBody `json:"body"`
}

type requestBody struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// BuildRequests turns the full ordered record sequence into a request batch.
// custom_id is "request-<originalIndex>" where originalIndex is the record's
// position in the full input, not the post-filter position; that invariant
// is what makes reconciliation exact even though blank rows are never sent.
// Blank rows are recorded as skipped in the index, never silently dropped.
// The taxonomy is frozen here: request text has been derived from it, so
// later mutation would desynchronize prompts from the tree.
func BuildRequests(records []model.InputRecord, tree *taxonomy.Tree, cfg ModelConfig) (*RequestBatch, error) {
	if tree == nil || tree.Empty() {
		return nil, eris.New("batch: taxonomy has no categories")
	}
	if cfg.Name == "" {
		return nil, eris.New("batch: model name is required")
	}
	tree.Freeze()

	index := &RequestIndex{
		entries:    make([]IndexEntry, 0, len(records)),
		byCustomID: make(map[string]int),
	}

	var payload bytes.Buffer
	lines := 0
	for _, rec := range records {
		if rec.IsBlank() {
			index.entries = append(index.entries, IndexEntry{Index: rec.Index, Skipped: true})
			continue
		}

		rec.Text = norm.NFC.String(rec.Text)
		system, user := prompt.Render(tree, rec)

		customID := CustomID(rec.Index)
		line, err := json.Marshal(requestLine{
			CustomID: customID,
			Method:   "POST",
			URL:      zhipu.BatchEndpoint,
			Body: requestBody{
				Model: cfg.Name,
				Messages: []message{
					{Role: "system", Content: system},
					{Role: "user", Content: user},
				},
				Temperature: cfg.Temperature,
			},
		})
		if err != nil {
			return nil, eris.Wrap(err, fmt.Sprintf("batch: marshal request for row %d", rec.Index))
		}
		payload.Write(line)
		payload.WriteByte('\n')
		lines++

		index.entries = append(index.entries, IndexEntry{Index: rec.Index, CustomID: customID})
		index.byCustomID[customID] = rec.Index
	}

	zap.L().Info("built request batch",
		zap.Int("records", len(records)),
		zap.Int("requests", lines),
		zap.Int("skipped", index.SkippedCount()),
	)

	return &RequestBatch{Payload: payload.Bytes(), Lines: lines, Index: index}, nil
}
