package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/sitepipe/internal/scheduler"
)

var titleCaser = cases.Title(language.English)

// encode writes v in one of the structured formats.
func encode(w io.Writer, format string, v interface{}) error {
	switch format {
	case formatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(v)
	case formatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(v); err != nil {
			return err
		}
		return encoder.Close()
	case formatTOML:
		return toml.NewEncoder(w).Encode(v)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// writeRunReport prints the outcome of a run.
func writeRunReport(w io.Writer, format string, summary scheduler.Summary) error {
	if format != formatTable {
		return encode(w, format, summary)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STEP\tSTATUS\tLEVEL\tDURATION\tDETAIL")

	counts := make(map[scheduler.Status]int)
	for _, step := range summary.Steps {
		counts[step.Status]++

		detail := step.Error
		if step.SkipReason != "" {
			detail = step.SkipReason
		} else if detail == "" && len(step.Outputs) > 0 {
			detail = fmt.Sprintf("%d file(s)", len(step.Outputs))
		}

		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			step.ID,
			titleCaser.String(string(step.Status)),
			step.Level,
			formatDuration(step.DurationMS),
			detail,
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	status := titleCaser.String(summary.Status)
	if summary.Cancelled {
		status += " (cancelled)"
	}
	_, err := fmt.Fprintf(w, "\n%s %s in %s: %d succeeded, %d failed, %d skipped\n",
		summary.ID,
		status,
		formatDuration(summary.DurationMS),
		counts[scheduler.StatusSucceeded],
		counts[scheduler.StatusFailed],
		counts[scheduler.StatusSkipped],
	)
	return err
}

// stepInfo describes one registered step.
type stepInfo struct {
	ID          string   `json:"id" yaml:"id" toml:"id"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
	DependsOn   []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty" toml:"depends_on,omitempty"`
	Inputs      []string `json:"inputs,omitempty" yaml:"inputs,omitempty" toml:"inputs,omitempty"`
	Level       int      `json:"level" yaml:"level" toml:"level"`
}

// graphReport is the output of the steps command.
type graphReport struct {
	Variant string     `json:"variant" yaml:"variant" toml:"variant"`
	Steps   []stepInfo `json:"steps" yaml:"steps" toml:"steps"`
	Levels  [][]string `json:"levels" yaml:"levels" toml:"levels"`
}

func writeGraphReport(w io.Writer, format string, report graphReport) error {
	if format != formatTable {
		return encode(w, format, report)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STEP\tLEVEL\tDEPENDS ON\tDESCRIPTION")
	for _, step := range report.Steps {
		deps := strings.Join(step.DependsOn, ", ")
		if deps == "" {
			deps = "-"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", step.ID, step.Level, deps, step.Description)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nVariant: %s\n", report.Variant)
	for i, level := range report.Levels {
		fmt.Fprintf(w, "Level %d: %s\n", i, strings.Join(level, ", "))
	}
	return nil
}

func formatDuration(ms int64) string {
	return (time.Duration(ms) * time.Millisecond).String()
}
