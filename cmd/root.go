package cmd

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/lehigh-university-libraries/siteobserver/internal/config"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "siteobserver",
		Short: "Construction-site safety image analysis with vision LLMs",
		Long: `SiteObserver analyzes construction-site photos with a vision-capable LLM.

It proposes safety keywords, writes a short audit-friendly observation and
answers follow-up questions about the same image.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")

	// Add subcommands
	cmd.AddCommand(newServeCmd(&configPath))
	cmd.AddCommand(newEvalCmd(&configPath))

	return cmd
}

// loadConfig resolves the configuration and installs the configured logger
func loadConfig(path string, overrides ...func(*config.Config)) (*config.Config, error) {
	cfg, err := config.Load(path, overrides...)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(config.NewLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr))
	return cfg, nil
}
