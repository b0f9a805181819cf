package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Report formats accepted by --output.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
	formatTOML  = "toml"
)

var outputFormats = []string{formatTable, formatJSON, formatYAML, formatTOML}

// addOutputFlag registers a validated --output/-o flag on cmd.
func addOutputFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVarP(target, "output", "o", formatTable, "Output format ("+strings.Join(outputFormats, "|")+")")
	AddFlagValidation(cmd, "output", func(format string) error {
		return ValidateFormatWithSuggestion(format, outputFormats)
	})
}

// AddFlagValidation adds validation for a specific flag
func AddFlagValidation(cmd *cobra.Command, flagName string, validator func(string) error) {
	flag := cmd.Flags().Lookup(flagName)
	if flag == nil {
		return
	}

	flag.Value = &validatingValue{
		Value:     flag.Value,
		validator: validator,
	}
}

type validatingValue struct {
	pflag.Value
	validator func(string) error
}

func (v *validatingValue) Set(val string) error {
	if v.validator != nil {
		if err := v.validator(val); err != nil {
			return err
		}
	}
	return v.Value.Set(val)
}

// ValidateFormatWithSuggestion rejects formats outside valid and suggests
// the closest one by prefix.
func ValidateFormatWithSuggestion(format string, valid []string) error {
	for _, v := range valid {
		if format == v {
			return nil
		}
	}

	lower := strings.ToLower(format)
	for _, v := range valid {
		if lower != "" && strings.HasPrefix(v, lower) {
			return fmt.Errorf("invalid format %q, did you mean %q? (valid: %s)", format, v, strings.Join(valid, ", "))
		}
	}
	return fmt.Errorf("invalid format %q (valid: %s)", format, strings.Join(valid, ", "))
}
