package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/attacklens/attacklens/internal/config"
	"github.com/attacklens/attacklens/internal/logger"
)

var (
	cfgFile  string
	logLevel string

	cfg *config.Config
	log *logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "attacklens",
	Short: "Viewer backend for pre-generated attack-path analysis artifacts",
	Long: `Attacklens - Attack-Path Artifact Viewer

Loads the static JSON artifacts produced by an upstream security-analysis
pipeline (comprehensive analyses, attack paths, initial-access vectors),
reconciles their divergent shapes into one technique matrix, and serves
interactive drill-down views to a browser front end.

Examples:
  attacklens serve --port 8080
  attacklens inspect payments-portal --base-url https://artifacts.example.org/data
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Logger.Level = logLevel
		}
		log, err = logger.New(cfg.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (default is .attacklens.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}
