package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/classify-cli/internal/model"
	"github.com/sells-group/classify-cli/internal/taxonomy"
)

func reconcileFixture(t *testing.T, records []model.InputRecord) *RequestIndex {
	t.Helper()
	tree := taxonomy.New(0)
	require.NoError(t, tree.AddNode(nil, "Saws", "cutting tools"))
	require.NoError(t, tree.AddNode([]string{"Saws"}, "Circular Saw", "rotating blade"))

	batch, err := BuildRequests(records, tree, ModelConfig{Name: "glm-4", Temperature: 0.1})
	require.NoError(t, err)
	return batch.Index
}

func okResult(customID string) model.ClassificationResult {
	return model.ClassificationResult{
		CustomID: customID,
		Path: []model.ClassificationStep{
			{Level: 1, Category: "Saws", Confidence: 0.95, Reason: "cuts"},
		},
		Summary: "summary for " + customID,
	}
}

func TestReconcile_OneRowPerInput(t *testing.T) {
	records := []model.InputRecord{
		{Index: 0, Text: "a rotating saw"},
		{Index: 1, Text: "   "},
		{Index: 2, Text: "a drill"},
	}
	index := reconcileFixture(t, records)

	// Results arrive out of order; request-2 never comes back.
	results := []model.ClassificationResult{okResult("request-0")}

	table := Reconcile(index, results, records)
	require.Len(t, table, 3)

	assert.Equal(t, model.RowOK, table[0].Status)
	assert.Equal(t, 0, table[0].Index)
	assert.Equal(t, model.RowSkipped, table[1].Status)
	assert.Nil(t, table[1].Result)
	assert.Equal(t, model.RowMissing, table[2].Status)
	assert.Nil(t, table[2].Result)
}

func TestReconcile_RestoresInputOrder(t *testing.T) {
	records := []model.InputRecord{
		{Index: 0, Text: "first"},
		{Index: 1, Text: "second"},
		{Index: 2, Text: "third"},
	}
	index := reconcileFixture(t, records)

	results := []model.ClassificationResult{
		okResult("request-2"),
		okResult("request-0"),
		okResult("request-1"),
	}

	table := Reconcile(index, results, records)
	require.Len(t, table, 3)
	for i, row := range table {
		assert.Equal(t, i, row.Index)
		assert.Equal(t, model.RowOK, row.Status)
		assert.Equal(t, CustomID(i), row.Result.CustomID)
	}
}

func TestReconcile_ParseErrorRowsKeepRaw(t *testing.T) {
	records := []model.InputRecord{{Index: 0, Text: "something"}}
	index := reconcileFixture(t, records)

	results := []model.ClassificationResult{{
		CustomID:   "request-0",
		ParseError: "content is not valid classification JSON",
		Raw:        "I refuse",
	}}

	table := Reconcile(index, results, records)
	require.Len(t, table, 1)
	assert.Equal(t, model.RowParseError, table[0].Status)
	require.NotNil(t, table[0].Result)
	assert.Equal(t, "I refuse", table[0].Result.Raw)
}

func TestReconcile_DuplicateKeepsFirst(t *testing.T) {
	records := []model.InputRecord{{Index: 0, Text: "something"}}
	index := reconcileFixture(t, records)

	first := okResult("request-0")
	second := okResult("request-0")
	second.Summary = "second copy"

	table := Reconcile(index, []model.ClassificationResult{first, second}, records)
	require.Len(t, table, 1)
	assert.Equal(t, first.Summary, table[0].Result.Summary)
}

func TestReconcile_UnknownCustomIDDropped(t *testing.T) {
	records := []model.InputRecord{{Index: 0, Text: "something"}}
	index := reconcileFixture(t, records)

	results := []model.ClassificationResult{
		okResult("request-99"),
		{ParseError: "result line missing custom_id", Raw: "junk"},
	}

	table := Reconcile(index, results, records)
	require.Len(t, table, 1)
	assert.Equal(t, model.RowMissing, table[0].Status)
}

func TestReconcile_NoResults(t *testing.T) {
	records := []model.InputRecord{
		{Index: 0, Text: ""},
		{Index: 1, Text: ""},
	}
	index := reconcileFixture(t, records)

	table := Reconcile(index, nil, records)
	require.Len(t, table, 2)
	for _, row := range table {
		assert.Equal(t, model.RowSkipped, row.Status)
	}
}
