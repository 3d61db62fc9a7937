package batch

import (
	"context"
	"encoding/json"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/sells-group/classify-cli/internal/model"
)

// maxParseConcurrency bounds parallel result-line parsing. Lines are
// independent and identity travels via custom_id, so processing order does
// not matter.
const maxParseConcurrency = 8

// resultLine is the wire shape of one batch output line.
type resultLine struct {
	CustomID string `json:"custom_id"`
	Response struct {
		Body struct {
			Choices []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			} `json:"choices"`
		} `json:"body"`
	} `json:"response"`
}

// classificationPayload is the canonical schema expected inside the model's
// content. Legacy flat per-level fields (level1_category, ...) are not
// accepted.
type classificationPayload struct {
	Path    []model.ClassificationStep `json:"classification_path"`
	Summary string                     `json:"summary"`
}

// ParseResultLine converts one raw output line into a ClassificationResult.
// It never fails: any malformed content yields a result with ParseError set
// and the raw content preserved, so one bad row cannot abort the batch.
func ParseResultLine(line []byte) model.ClassificationResult {
	var raw resultLine
	if err := json.Unmarshal(line, &raw); err != nil {
		return model.ClassificationResult{
			ParseError: "invalid result line: " + err.Error(),
			Raw:        string(line),
		}
	}

	result := model.ClassificationResult{CustomID: raw.CustomID}
	if raw.CustomID == "" {
		result.ParseError = "result line missing custom_id"
		result.Raw = string(line)
		return result
	}
	if len(raw.Response.Body.Choices) == 0 {
		result.ParseError = "response has no choices"
		result.Raw = string(line)
		return result
	}

	content := raw.Response.Body.Choices[0].Message.Content
	cleaned := cleanContent(content)

	var payload classificationPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		result.ParseError = "content is not valid classification JSON: " + err.Error()
		result.Raw = content
		return result
	}
	if len(payload.Path) == 0 {
		result.ParseError = "content missing classification_path"
		result.Raw = content
		return result
	}
	for i, step := range payload.Path {
		if strings.TrimSpace(step.Category) == "" {
			result.ParseError = "classification_path has an empty category"
			result.Raw = content
			return result
		}
		// Confidence outside [0,1] is clamped rather than rejected.
		if step.Confidence < 0 {
			payload.Path[i].Confidence = 0
		} else if step.Confidence > 1 {
			payload.Path[i].Confidence = 1
		}
	}

	result.Path = payload.Path
	result.Summary = payload.Summary
	return result
}

// ParseResultLines parses all output lines with bounded parallelism.
// The returned slice matches the input line order; routing still happens by
// custom_id downstream.
func ParseResultLines(ctx context.Context, lines [][]byte) []model.ClassificationResult {
	results := make([]model.ClassificationResult, len(lines))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(maxParseConcurrency)
	for i, line := range lines {
		i, line := i, line
		g.Go(func() error {
			results[i] = ParseResultLine(line)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// cleanContent strips an optional markdown code fence (with or without a
// language tag) and any text surrounding the outermost JSON object.
func cleanContent(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		// Drop a language tag like "json" on the fence line.
		if idx := strings.IndexByte(text, '\n'); idx >= 0 && !strings.ContainsAny(text[:idx], "{}") {
			text = text[idx+1:]
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
