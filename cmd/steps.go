package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/sitepipe/internal/config"
	"github.com/conneroisu/sitepipe/internal/pipeline"
	"github.com/conneroisu/sitepipe/internal/scheduler"
)

var stepsCmd = &cobra.Command{
	Use:     "steps",
	Aliases: []string{"graph", "ls"},
	Short:   "List the registered steps and their levels",
	Long: `List every step of the configured pipeline variant with its dependencies,
input patterns and the level it runs in. Steps in the same level run
concurrently.

Examples:
  sitepipe steps                  # Table
  sitepipe steps -o yaml          # YAML
  SITEPIPE_BUILD_VARIANT=icons sitepipe steps`,
	Args: cobra.NoArgs,
	RunE: runSteps,
}

var stepsOutput string

func init() {
	rootCmd.AddCommand(stepsCmd)

	addOutputFlag(stepsCmd, &stepsOutput)
}

func runSteps(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	pl, err := pipeline.Build(cfg)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}

	report, err := describeGraph(pl)
	if err != nil {
		return err
	}
	return writeGraphReport(cmd.OutOrStdout(), stepsOutput, report)
}

func describeGraph(pl *pipeline.Pipeline) (graphReport, error) {
	levels, err := scheduler.Levels(pl.Registry, nil)
	if err != nil {
		return graphReport{}, err
	}

	levelOf := make(map[string]int)
	for i, level := range levels {
		for _, id := range level {
			levelOf[id] = i
		}
	}

	report := graphReport{
		Variant: pl.Variant,
		Levels:  levels,
	}
	for _, step := range pl.Registry.Steps() {
		report.Steps = append(report.Steps, stepInfo{
			ID:          step.ID,
			Description: step.Description,
			DependsOn:   step.DependsOn,
			Inputs:      step.Inputs,
			Level:       levelOf[step.ID],
		})
	}
	return report, nil
}
