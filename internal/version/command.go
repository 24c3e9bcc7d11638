package version

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// AttachCobraVersionCommand attaches a `version` subcommand to the provided root command.
func AttachCobraVersionCommand(root *cobra.Command) {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information.",
		Long: "Print the tool version with commit hash, build timestamp and platform. " +
			"Candidates are only applied by builds sharing the same major.minor version.",
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			if short {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), Short())
				return
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s, platform: %s/%s\n", Full(), runtime.GOOS, runtime.GOARCH)
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "print only the semantic version")

	root.AddCommand(cmd)
}
