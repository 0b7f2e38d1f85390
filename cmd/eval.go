package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/lehigh-university-libraries/siteobserver/internal/config"
	"github.com/lehigh-university-libraries/siteobserver/internal/evalcmd"
	"github.com/spf13/cobra"
)

func newEvalCmd(configPath *string) *cobra.Command {
	var datasetPath string
	var sampleSize int
	var concurrency int
	var outputDir string
	var provider string
	var model string

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Evaluate keyword proposal against a labelled dataset",
		Long: `Runs every image in a labelled dataset through keyword proposal and scores
the proposed keywords against the expected ones (precision, recall, F1).

The dataset is a JSONL or Parquet file whose rows carry id, image_path,
content_type (optional) and expected_keywords. Relative image paths are
resolved against the dataset's directory. Results are written as YAML to
<output-dir>/<model>-<timestamp>.yaml.`,
		Example: `  # Evaluate 10 images with the configured provider
  siteobserver eval --dataset ./data/site-photos.jsonl --sample 10

  # Evaluate a Parquet dataset with a local model
  siteobserver eval --dataset ./data/site-photos.parquet --provider ollama --model llava:13b --concurrency 4`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(datasetPath); os.IsNotExist(err) {
				return fmt.Errorf("dataset file not found: %s", datasetPath)
			}

			cfg, err := loadConfig(*configPath, func(c *config.Config) {
				if provider != "" && provider != c.Provider {
					c.Provider = provider
					c.Model = ""
				}
				if model != "" {
					c.Model = model
				}
			})
			if err != nil {
				return err
			}

			// Eval sessions never outlive the run.
			cfg.TempDir = filepath.Join(os.TempDir(), "siteobserver-eval")

			svc, gw, err := newService(cfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			_, _, err = evalcmd.Run(cmd.Context(), svc, evalcmd.Options{
				DatasetPath: datasetPath,
				Sample:      sampleSize,
				Concurrency: concurrency,
				OutputDir:   outputDir,
				Provider:    gw.Provider(),
				Model:       gw.Model(),
				Temperature: cfg.Temperature,
			}, cmd.OutOrStdout())
			return err
		},
	}

	cmd.Flags().StringVar(&datasetPath, "dataset", "", "Path to a JSONL or Parquet dataset (required)")
	cmd.Flags().IntVar(&sampleSize, "sample", 0, "Number of records to evaluate (0 for all)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 1, "Number of images analyzed in parallel")
	cmd.Flags().StringVar(&outputDir, "output-dir", "evals", "Directory for YAML results")
	cmd.Flags().StringVar(&provider, "provider", "", "Vision provider (openai, ollama or gemini); overrides VISION_PROVIDER")
	cmd.Flags().StringVar(&model, "model", "", "Model name (defaults to the provider's default)")

	_ = cmd.MarkFlagRequired("dataset")
	return cmd
}
