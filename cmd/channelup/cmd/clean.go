package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/oshokin/channelup/internal/service/cleanup"
)

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove leftovers of interrupted runs.",
		Long: `Removes staging directories whose process is gone or which are older than
stale_staging_age. With --dir, an installation left mid-swap is restored as well.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir := installDir
			if dir != "" {
				abs, err := filepath.Abs(dir)
				if err != nil {
					return err
				}

				dir = abs
			}

			result, err := cleanup.Run(cmd.Context(), &cleanup.Options{Env: environment(), InstallDir: dir})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			for _, path := range result.Removed {
				_, _ = fmt.Fprintf(out, "Removed %s\n", path)
			}

			if result.Restored {
				_, _ = fmt.Fprintf(out, "Restored %s from its backup\n", dir)
			}

			return nil
		},
	}
}
