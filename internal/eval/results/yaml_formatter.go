package results

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/siteobserver/internal/eval/metrics"
	"gopkg.in/yaml.v3"
)

// EvalConfig represents the configuration section of the eval YAML
type EvalConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	DatasetPath string  `yaml:"datasetpath"`
	SampleSize  int     `yaml:"samplesize"`
	Timestamp   string  `yaml:"timestamp"`
}

// EvalSummary mirrors the aggregate scores
type EvalSummary struct {
	Total         int                `yaml:"total"`
	Failures      int                `yaml:"failures"`
	MeanPrecision float64            `yaml:"meanprecision"`
	MeanRecall    float64            `yaml:"meanrecall"`
	MeanF1        float64            `yaml:"meanf1"`
	MedianF1      float64            `yaml:"medianf1"`
	KeywordHits   map[string]float64 `yaml:"keywordhits,omitempty"`
}

// EvalResult represents a single evaluation result
type EvalResult struct {
	Identifier  string   `yaml:"identifier"`
	ImagePath   string   `yaml:"imagepath"`
	Expected    []string `yaml:"expected"`
	Proposed    []string `yaml:"proposed"`
	Missing     []string `yaml:"missing,omitempty"`
	Extra       []string `yaml:"extra,omitempty"`
	Precision   float64  `yaml:"precision"`
	Recall      float64  `yaml:"recall"`
	F1          float64  `yaml:"f1"`
	Description string   `yaml:"description,omitempty"`
	Error       string   `yaml:"error,omitempty"`
}

// EvalSpec represents the complete evaluation specification
type EvalSpec struct {
	Config  EvalConfig   `yaml:"config"`
	Summary EvalSummary  `yaml:"summary"`
	Results []EvalResult `yaml:"results"`
}

// Build turns aggregate results into the YAML document
func Build(cfg EvalConfig, agg *metrics.AggregateResults) EvalSpec {
	spec := EvalSpec{
		Config: cfg,
		Summary: EvalSummary{
			Total:         agg.TotalRecords,
			Failures:      agg.FailureCount,
			MeanPrecision: agg.MeanPrecision,
			MeanRecall:    agg.MeanRecall,
			MeanF1:        agg.MeanF1,
			MedianF1:      agg.MedianF1,
			KeywordHits:   make(map[string]float64),
		},
		Results: make([]EvalResult, 0, len(agg.Results)),
	}

	for kw, stats := range agg.Keywords {
		if stats.Expected > 0 {
			spec.Summary.KeywordHits[kw] = stats.HitRate()
		}
	}

	for _, r := range agg.Results {
		result := EvalResult{
			Identifier:  r.ID,
			ImagePath:   r.ImagePath,
			Description: r.Description,
			Error:       r.Error,
		}
		if c := r.Comparison; c != nil {
			result.Expected = c.Expected
			result.Proposed = c.Proposed
			result.Missing = c.Missing
			result.Extra = c.Extra
			result.Precision = c.Precision
			result.Recall = c.Recall
			result.F1 = c.F1
		}
		spec.Results = append(spec.Results, result)
	}

	return spec
}

// SaveToYAML writes the results to <outputDir>/<model>-<timestamp>.yaml and
// returns the path written.
func SaveToYAML(outputDir string, cfg EvalConfig, agg *metrics.AggregateResults) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s directory: %w", outputDir, err)
	}

	if cfg.Timestamp == "" {
		cfg.Timestamp = time.Now().Format("2006-01-02_15-04-05")
	}

	data, err := yaml.Marshal(Build(cfg, agg))
	if err != nil {
		return "", fmt.Errorf("failed to marshal YAML: %w", err)
	}

	// Model names like llava:13b or org/model are not safe in filenames.
	safeModel := strings.NewReplacer("/", "_", ":", "_").Replace(cfg.Model)
	filename := filepath.Join(outputDir, fmt.Sprintf("%s-%s.yaml", safeModel, cfg.Timestamp))
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write YAML file: %w", err)
	}

	return filename, nil
}
