package evalcmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lehigh-university-libraries/siteobserver/internal/analysis"
	"github.com/lehigh-university-libraries/siteobserver/internal/eval/dataset"
	"github.com/lehigh-university-libraries/siteobserver/internal/eval/metrics"
	"github.com/lehigh-university-libraries/siteobserver/internal/eval/results"
	"github.com/lehigh-university-libraries/siteobserver/internal/models"
	"golang.org/x/sync/errgroup"
)

// Analyzer is the slice of analysis.Service an evaluation needs
type Analyzer interface {
	Analyze(ctx context.Context, in analysis.AnalyzeInput) (*models.AnalysisResponse, error)
	Delete(sessionID string) error
}

// Options controls one evaluation run
type Options struct {
	DatasetPath string
	Sample      int
	Concurrency int
	OutputDir   string
	Provider    string
	Model       string
	Temperature float64
}

// Run sends every dataset image through keyword proposal, scores the result
// against the expected keywords and writes the YAML report. Per-record
// failures are recorded, not returned.
func Run(ctx context.Context, analyzer Analyzer, opts Options, out io.Writer) (*metrics.AggregateResults, string, error) {
	slog.Info("Starting evaluation run", "dataset", opts.DatasetPath, "provider", opts.Provider, "model", opts.Model)

	loader := dataset.NewLoader(opts.DatasetPath)
	records, err := loader.LoadSample(opts.Sample)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load dataset: %w", err)
	}
	slog.Info("Dataset loaded", "records", len(records))

	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	evalResults := make([]metrics.EvaluationResult, len(records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, record := range records {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			slog.Info("Processing record", "id", record.ID, "progress", fmt.Sprintf("%d/%d", i+1, len(records)))
			evalResults[i] = processRecord(gctx, analyzer, loader.Path(), record)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, "", fmt.Errorf("evaluation interrupted: %w", err)
	}

	agg := metrics.AggregateEvaluationResults(evalResults, opts.Provider, opts.Model)

	path, err := results.SaveToYAML(opts.OutputDir, results.EvalConfig{
		Provider:    opts.Provider,
		Model:       opts.Model,
		Temperature: opts.Temperature,
		DatasetPath: opts.DatasetPath,
		SampleSize:  len(records),
	}, agg)
	if err != nil {
		return nil, "", err
	}

	agg.PrintSummary(out)
	absPath, _ := filepath.Abs(path)
	fmt.Fprintf(out, "\nEvaluation results saved to: %s\n", absPath)

	return agg, path, nil
}

func processRecord(ctx context.Context, analyzer Analyzer, datasetPath string, record dataset.Record) metrics.EvaluationResult {
	start := time.Now()
	imagePath := record.ResolveImagePath(datasetPath)
	result := metrics.EvaluationResult{
		ID:        record.ID,
		ImagePath: imagePath,
	}

	data, err := os.ReadFile(imagePath)
	if err != nil {
		result.Error = fmt.Sprintf("failed to read image: %v", err)
		return finish(result, start)
	}

	resp, err := analyzer.Analyze(ctx, analysis.AnalyzeInput{
		Data:        data,
		ContentType: record.GetContentType(),
		Filename:    filepath.Base(imagePath),
	})
	if err != nil {
		result.Error = fmt.Sprintf("failed to analyze image: %v", err)
		slog.Warn("Record failed", "id", record.ID, "err", err)
		return finish(result, start)
	}

	if err := analyzer.Delete(resp.SessionID); err != nil {
		slog.Warn("Unable to delete evaluation session", "session_id", resp.SessionID, "err", err)
	}

	result.Description = resp.Description
	result.Comparison = metrics.CompareKeywords(record.ExpectedKeywords, resp.Keywords)
	return finish(result, start)
}

func finish(result metrics.EvaluationResult, start time.Time) metrics.EvaluationResult {
	result.ProcessingTime = time.Since(start)
	return result
}
