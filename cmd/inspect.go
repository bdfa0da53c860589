package cmd

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/attacklens/attacklens/internal/artifact"
	"github.com/attacklens/attacklens/internal/reconcile"
	"github.com/attacklens/attacklens/internal/telemetry"
)

var inspectBaseURL string

var inspectCmd = &cobra.Command{
	Use:   "inspect <application>",
	Short: "Load an application's artifacts and print its technique matrix",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().StringVar(&inspectBaseURL, "base-url", "", "artifact base URL (overrides config)")
}

func runInspect(cmd *cobra.Command, args []string) error {
	app := args[0]
	if inspectBaseURL != "" {
		cfg.Artifacts.BaseURL = inspectBaseURL
	}

	ctx := context.Background()
	tel, err := telemetry.New(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer tel.Close()

	loader := artifact.NewLoader(cfg.Artifacts, log, tel)
	ds, err := loader.Load(ctx, app)
	if err != nil {
		if artifact.IsDataUnavailable(err) {
			color.Yellow("No analysis data available for %q", app)
			return nil
		}
		return err
	}

	ix := reconcile.BuildIndexes(ds)

	header := color.New(color.FgCyan, color.Bold)
	header.Printf("%s: %d findings (shape: %s", app, len(ds.AttackPaths), ds.Shape)
	if ds.Dialect != "" {
		header.Printf(", dialect: %s", ds.Dialect)
	}
	header.Println(")")

	tacticColor := color.New(color.FgGreen, color.Bold)
	for _, tactic := range ix.TacticOrder {
		tacticColor.Printf("\n%s\n", tactic)
		for _, key := range ix.TechniqueOrder[tactic] {
			tech := ix.Techniques[tactic][key]
			count := len(ix.FindingsFor(tactic, key))
			name := tech.Name
			if name == "" {
				name = key
			}
			if tech.StixID != "" {
				fmt.Printf("  %-12s %-50s %d finding(s)\n", tech.StixID, name, count)
			} else {
				fmt.Printf("  %-12s %-50s %d finding(s)\n", "-", name, count)
			}
		}
	}
	return nil
}
