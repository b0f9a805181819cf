package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/sitepipe/internal/version"
)

var (
	versionOutput string
	versionShort  bool
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display version information for sitepipe including the version, git
commit, build time, Go version and target platform.

Examples:
  sitepipe version                # Detailed version info
  sitepipe version --short        # Version only
  sitepipe version -o json        # Output as JSON`,
	Args: cobra.NoArgs,
	RunE: runVersionCommand,
}

func init() {
	rootCmd.AddCommand(versionCmd)

	addOutputFlag(versionCmd, &versionOutput)
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Show short version only")
}

func runVersionCommand(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if versionOutput != formatTable {
		return encode(out, versionOutput, version.GetBuildInfo())
	}

	if versionShort {
		_, err := fmt.Fprintln(out, version.GetShortVersion())
		return err
	}

	_, err := fmt.Fprintln(out, "sitepipe\n"+version.GetDetailedVersion())
	return err
}
