// Package prompt renders model-ready instruction text from a taxonomy and a
// single input record. Rendering is pure: identical taxonomy and record
// always yield byte-identical output, which keeps tests reproducible and
// makes prompt text safe to cache.
package prompt

import (
	"strings"

	"github.com/sells-group/classify-cli/internal/model"
	"github.com/sells-group/classify-cli/internal/taxonomy"
)

// SystemPrompt is the fixed classifier persona sent with every request.
const SystemPrompt = "You are an expert at classifying technical document " +
	"abstracts against a multi-level category taxonomy. You match the main " +
	"technical content of each abstract to the best-fitting label at every " +
	"level of the taxonomy."

const userTemplate = `Classify the following text against the multi-level taxonomy below.

Rules:
1. Classify top-down, starting at level 1.
2. Give a reason for the chosen category at every level.
3. Stop at an intermediate level when no child category fits; do not force a deeper match.
4. Confidence is a number between 0 and 1.

Taxonomy:
{{taxonomy}}

Text:
{{text}}

Respond with a single JSON object and nothing else:
{"classification_path": [{"level": 1, "category": "...", "confidence": 0.0, "reason": "..."}, ...], "summary": "..."}`

// Render produces the (system, user) prompt pair for one record.
func Render(tree *taxonomy.Tree, record model.InputRecord) (string, string) {
	taxonomyBlock := strings.Join(tree.Render(), "\n")
	user := strings.ReplaceAll(userTemplate, "{{taxonomy}}", taxonomyBlock)
	user = strings.ReplaceAll(user, "{{text}}", strings.TrimSpace(record.Text))
	return SystemPrompt, user
}
