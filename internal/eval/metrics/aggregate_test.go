package metrics

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareKeywords(t *testing.T) {
	tests := []struct {
		name      string
		expected  []string
		proposed  []string
		precision float64
		recall    float64
		f1        float64
	}{
		{"perfect", []string{"no helmet", "trip hazard"}, []string{"Trip Hazard ", "no helmet"}, 1, 1, 1},
		{"half", []string{"no helmet", "trip hazard"}, []string{"no helmet", "no vest"}, 0.5, 0.5, 0.5},
		{"nothing proposed", []string{"no helmet"}, []string{}, 0, 0, 0},
		{"nothing expected", []string{}, []string{"no helmet"}, 0, 0, 0},
		{"both empty", nil, nil, 1, 1, 1},
		{"precise but incomplete", []string{"a", "b", "c", "d"}, []string{"a"}, 1, 0.25, 0.4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := CompareKeywords(tt.expected, tt.proposed)
			assert.InDelta(t, tt.precision, c.Precision, 1e-9)
			assert.InDelta(t, tt.recall, c.Recall, 1e-9)
			assert.InDelta(t, tt.f1, c.F1, 1e-9)
		})
	}
}

func TestCompareKeywordsBuckets(t *testing.T) {
	c := CompareKeywords([]string{"No Helmet", "trip hazard", "no helmet"}, []string{"no helmet", "no vest"})
	assert.Equal(t, []string{"no helmet", "trip hazard"}, c.Expected)
	assert.Equal(t, []string{"no helmet"}, c.Matched)
	assert.Equal(t, []string{"trip hazard"}, c.Missing)
	assert.Equal(t, []string{"no vest"}, c.Extra)
}

func TestAggregateEvaluationResults(t *testing.T) {
	results := []EvaluationResult{
		{
			ID:             "a",
			Comparison:     CompareKeywords([]string{"no helmet", "trip hazard"}, []string{"no helmet", "trip hazard"}),
			ProcessingTime: 4 * time.Second,
		},
		{
			ID:             "b",
			Comparison:     CompareKeywords([]string{"no helmet", "blocked exit"}, []string{"no helmet", "no vest"}),
			ProcessingTime: 2 * time.Second,
		},
		{
			ID:             "c",
			Error:          "generation failed",
			ProcessingTime: 1 * time.Second,
		},
	}

	agg := AggregateEvaluationResults(results, "openai", "gpt-4o")

	assert.Equal(t, 3, agg.TotalRecords)
	assert.Equal(t, 2, agg.SuccessCount)
	assert.Equal(t, 1, agg.FailureCount)
	assert.Equal(t, "openai", agg.Provider)
	assert.Equal(t, "gpt-4o", agg.Model)

	assert.InDelta(t, 0.75, agg.MeanPrecision, 1e-9)
	assert.InDelta(t, 0.75, agg.MeanRecall, 1e-9)
	assert.InDelta(t, 0.75, agg.MeanF1, 1e-9)
	assert.InDelta(t, 0.75, agg.MedianF1, 1e-9)
	assert.Equal(t, 3*time.Second, agg.AverageProcessingTime)
	assert.Equal(t, 7*time.Second, agg.TotalProcessingTime)

	require.Contains(t, agg.Keywords, "no helmet")
	assert.Equal(t, KeywordStats{Expected: 2, Hits: 2, Proposed: 2}, *agg.Keywords["no helmet"])
	assert.Equal(t, KeywordStats{Expected: 1, Hits: 0, Proposed: 0}, *agg.Keywords["blocked exit"])
	assert.Equal(t, KeywordStats{Expected: 0, Hits: 0, Proposed: 1}, *agg.Keywords["no vest"])
	assert.InDelta(t, 1.0, agg.Keywords["no helmet"].HitRate(), 1e-9)

	assert.Equal(t, []string{"no helmet", "blocked exit", "trip hazard", "no vest"}, agg.SortedKeywords())
}

func TestAggregateEmpty(t *testing.T) {
	agg := AggregateEvaluationResults(nil, "ollama", "llava")
	assert.Equal(t, 0, agg.TotalRecords)
	assert.Zero(t, agg.MeanF1)

	var buf bytes.Buffer
	agg.PrintSummary(&buf)
	assert.Contains(t, buf.String(), "Total Records: 0")
}

func TestPrintSummary(t *testing.T) {
	agg := AggregateEvaluationResults([]EvaluationResult{
		{ID: "a", Comparison: CompareKeywords([]string{"no helmet"}, []string{"no helmet"})},
	}, "openai", "gpt-4o")

	var buf bytes.Buffer
	agg.PrintSummary(&buf)
	out := buf.String()
	assert.Contains(t, out, "Model: gpt-4o")
	assert.Contains(t, out, "Mean F1:        100.00%")
	assert.Contains(t, out, "no helmet")
}
