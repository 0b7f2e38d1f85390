package metrics

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

// EvaluationResult is the outcome for one dataset record
type EvaluationResult struct {
	ID             string
	ImagePath      string
	Description    string
	Comparison     *KeywordComparison
	ProcessingTime time.Duration
	Error          string // If analysis failed
}

// KeywordStats counts how a single expected keyword fared across the run
type KeywordStats struct {
	Expected int
	Hits     int
	Proposed int
}

// HitRate is the share of records expecting the keyword that proposed it
func (k KeywordStats) HitRate() float64 {
	if k.Expected == 0 {
		return 0
	}
	return float64(k.Hits) / float64(k.Expected)
}

// AggregateResults represents aggregated evaluation metrics
type AggregateResults struct {
	TotalRecords int
	SuccessCount int
	FailureCount int

	MeanPrecision float64
	MeanRecall    float64
	MeanF1        float64
	MedianF1      float64

	Keywords map[string]*KeywordStats

	AverageProcessingTime time.Duration
	TotalProcessingTime   time.Duration

	Results []EvaluationResult

	EvaluationDate time.Time
	Provider       string
	Model          string
}

// AggregateEvaluationResults aggregates multiple evaluation results
func AggregateEvaluationResults(results []EvaluationResult, provider, model string) *AggregateResults {
	agg := &AggregateResults{
		TotalRecords:   len(results),
		Keywords:       make(map[string]*KeywordStats),
		Results:        results,
		EvaluationDate: time.Now(),
		Provider:       provider,
		Model:          model,
	}

	var precision, recall float64
	var f1s []float64
	var successDuration time.Duration

	for _, result := range results {
		agg.TotalProcessingTime += result.ProcessingTime

		if result.Error != "" || result.Comparison == nil {
			agg.FailureCount++
			continue
		}

		agg.SuccessCount++
		successDuration += result.ProcessingTime

		c := result.Comparison
		precision += c.Precision
		recall += c.Recall
		f1s = append(f1s, c.F1)

		for _, kw := range c.Expected {
			agg.keyword(kw).Expected++
		}
		for _, kw := range c.Matched {
			agg.keyword(kw).Hits++
		}
		for _, kw := range c.Proposed {
			agg.keyword(kw).Proposed++
		}
	}

	if agg.SuccessCount > 0 {
		n := float64(agg.SuccessCount)
		agg.MeanPrecision = precision / n
		agg.MeanRecall = recall / n
		agg.MeanF1 = calculateAverage(f1s)
		agg.MedianF1 = calculateMedian(f1s)
		agg.AverageProcessingTime = successDuration / time.Duration(agg.SuccessCount)
	}

	return agg
}

func (a *AggregateResults) keyword(kw string) *KeywordStats {
	stats, ok := a.Keywords[kw]
	if !ok {
		stats = &KeywordStats{}
		a.Keywords[kw] = stats
	}
	return stats
}

func calculateAverage(scores []float64) float64 {
	if len(scores) == 0 {
		return 0.0
	}

	sum := 0.0
	for _, score := range scores {
		sum += score
	}

	return sum / float64(len(scores))
}

func calculateMedian(scores []float64) float64 {
	if len(scores) == 0 {
		return 0.0
	}
	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// SortedKeywords lists every keyword seen, most expected first
func (a *AggregateResults) SortedKeywords() []string {
	keywords := make([]string, 0, len(a.Keywords))
	for kw := range a.Keywords {
		keywords = append(keywords, kw)
	}
	sort.Slice(keywords, func(i, j int) bool {
		ki, kj := a.Keywords[keywords[i]], a.Keywords[keywords[j]]
		if ki.Expected != kj.Expected {
			return ki.Expected > kj.Expected
		}
		return keywords[i] < keywords[j]
	})
	return keywords
}

// PrintSummary writes a human-readable summary of the evaluation
func (a *AggregateResults) PrintSummary(w io.Writer) {
	fmt.Fprintln(w, "\n"+strings.Repeat("=", 70))
	fmt.Fprintln(w, "KEYWORD PROPOSAL EVALUATION SUMMARY")
	fmt.Fprintln(w, strings.Repeat("=", 70))
	fmt.Fprintf(w, "Evaluation Date: %s\n", a.EvaluationDate.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Provider: %s\n", a.Provider)
	fmt.Fprintf(w, "Model: %s\n", a.Model)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "PROCESSING STATISTICS")
	fmt.Fprintln(w, strings.Repeat("-", 70))
	fmt.Fprintf(w, "Total Records: %d\n", a.TotalRecords)
	if a.TotalRecords > 0 {
		fmt.Fprintf(w, "Successful: %d (%.1f%%)\n", a.SuccessCount, float64(a.SuccessCount)/float64(a.TotalRecords)*100)
		fmt.Fprintf(w, "Failed: %d (%.1f%%)\n", a.FailureCount, float64(a.FailureCount)/float64(a.TotalRecords)*100)
	}
	fmt.Fprintf(w, "Average Processing Time: %s\n", a.AverageProcessingTime)
	fmt.Fprintf(w, "Total Processing Time: %s\n", a.TotalProcessingTime)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "KEYWORD ACCURACY")
	fmt.Fprintln(w, strings.Repeat("-", 70))
	fmt.Fprintf(w, "Mean Precision: %.2f%%\n", a.MeanPrecision*100)
	fmt.Fprintf(w, "Mean Recall:    %.2f%%\n", a.MeanRecall*100)
	fmt.Fprintf(w, "Mean F1:        %.2f%%\n", a.MeanF1*100)
	fmt.Fprintf(w, "Median F1:      %.2f%%\n", a.MedianF1*100)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "PER KEYWORD")
	fmt.Fprintln(w, strings.Repeat("-", 70))
	for _, kw := range a.SortedKeywords() {
		stats := a.Keywords[kw]
		if stats.Expected == 0 {
			continue
		}
		fmt.Fprintf(w, "  %-30s %d/%d (%.0f%%)\n", kw, stats.Hits, stats.Expected, stats.HitRate()*100)
	}
	fmt.Fprintln(w, strings.Repeat("=", 70))
}
