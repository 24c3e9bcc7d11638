package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/oshokin/channelup/internal/service/update"
)

func newUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Find and apply updates offered by the channels.",
	}

	cmd.AddCommand(newUpdateListCmd(), newUpdatePerformCmd(), newUpdatePrepareCmd(), newUpdateApplyCmd())

	return cmd
}

// updateOptions reads the flags shared by the update subcommands.
func updateOptions(repositories []string) (*update.Options, error) {
	dir, err := existingInstallation()
	if err != nil {
		return nil, err
	}

	repos, err := parseRepositories(repositories)
	if err != nil {
		return nil, err
	}

	return &update.Options{Env: environment(), InstallDir: dir, Repositories: repos}, nil
}

func addRepositoriesFlag(cmd *cobra.Command, repositories *[]string) {
	cmd.Flags().StringSliceVar(repositories, "repositories", nil, "replace channel repositories, as <id>::<url>")
}

func newUpdateListCmd() *cobra.Command {
	var repositories []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List available updates without changing anything.",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := updateOptions(repositories)
			if err != nil {
				return err
			}

			result, err := update.List(cmd.Context(), opts)
			if err != nil {
				return err
			}

			printChanges(cmd.OutOrStdout(), result.Changes)

			return nil
		},
	}

	addRepositoriesFlag(cmd, &repositories)

	return cmd
}

func newUpdatePerformCmd() *cobra.Command {
	var (
		repositories []string
		dryRun       bool
	)

	cmd := &cobra.Command{
		Use:   "perform",
		Short: "Update the installation.",
		Long: `Builds a candidate from the recorded provisioning configuration and channels,
then swaps it into place. Files changed by the user are kept; when the update
brings a different version of such a file it is written next to it with a
` + "`.glnew`" + ` suffix.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := updateOptions(repositories)
			if err != nil {
				return err
			}

			opts.DryRun = dryRun

			result, err := update.Perform(cmd.Context(), opts)
			if err != nil {
				return err
			}

			if result.Applied != nil {
				printApplied(cmd.OutOrStdout(), result.Applied)
			} else {
				printChanges(cmd.OutOrStdout(), result.Changes)
			}

			return nil
		},
	}

	addRepositoriesFlag(cmd, &repositories)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list the changes only")

	return cmd
}

func newUpdatePrepareCmd() *cobra.Command {
	var repositories []string

	cmd := &cobra.Command{
		Use:   "prepare <candidate-dir>",
		Short: "Build an update candidate to apply later.",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := updateOptions(repositories)
			if err != nil {
				return err
			}

			opts.CandidateDir = args[0]

			result, err := update.Prepare(cmd.Context(), opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			printChanges(out, result.Changes)

			if result.CandidateDir != "" {
				_, _ = fmt.Fprintln(out, color.GreenString("Candidate written to %s", result.CandidateDir))
			}

			return nil
		},
	}

	addRepositoriesFlag(cmd, &repositories)

	return cmd
}

func newUpdateApplyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply <candidate-dir>",
		Short: "Apply a candidate built by \"update prepare\".",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := updateOptions(nil)
			if err != nil {
				return err
			}

			opts.CandidateDir = args[0]

			result, err := update.Apply(cmd.Context(), opts)
			if err != nil {
				return err
			}

			printApplied(cmd.OutOrStdout(), result.Applied)

			return nil
		},
	}
}
