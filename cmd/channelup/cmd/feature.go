package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/oshokin/channelup/internal/service/featureadd"
)

func newFeatureCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feature",
		Short: "Manage the feature packs of an installation.",
	}

	cmd.AddCommand(newFeatureAddCmd(), newFeatureAvailableCmd())

	return cmd
}

func newFeatureAddCmd() *cobra.Command {
	var (
		opts         featureadd.Options
		repositories []string
	)

	cmd := &cobra.Command{
		Use:   "add <groupId:artifactId>",
		Short: "Add a feature pack to an installation.",
		Long: `Adds a feature pack resolved through the recorded channels.

Layers are included into the config of the selected model. Artifacts already
installed keep their versions; only the new feature pack and its
dependencies are resolved.`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := existingInstallation()
			if err != nil {
				return err
			}

			if opts.Repositories, err = parseRepositories(repositories); err != nil {
				return err
			}

			opts.Env = environment()
			opts.InstallDir = dir
			opts.FeaturePack = args[0]

			result, err := featureadd.Run(cmd.Context(), &opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			if opts.DryRun {
				return printConfigDiff(out, result.Previous, result.Next)
			}

			printApplied(out, result.Applied)

			return nil
		},
	}

	cmd.Flags().StringSliceVar(&opts.Layers, "layers", nil, "layers to include")
	cmd.Flags().StringVar(&opts.Model, "model", "", "layer model, required when the feature pack defines several")
	cmd.Flags().StringVar(&opts.ConfigName, "config-name", "", "config name (default: <model>.xml)")
	cmd.Flags().StringSliceVar(&repositories, "repositories", nil, "replace channel repositories, as <id>::<url>")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "print the configuration change only")

	return cmd
}

func newFeatureAvailableCmd() *cobra.Command {
	var repositories []string

	cmd := &cobra.Command{
		Use:   "available <groupId:artifactId>",
		Short: "Check whether the channels provide a feature pack.",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := existingInstallation()
			if err != nil {
				return err
			}

			repos, err := parseRepositories(repositories)
			if err != nil {
				return err
			}

			ok, err := featureadd.IsAvailable(cmd.Context(), &featureadd.AvailableOptions{
				Env:          environment(),
				InstallDir:   dir,
				FeaturePack:  args[0],
				Repositories: repos,
			})
			if err != nil {
				return err
			}

			if ok {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("%s is available", args[0]))
			} else {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), color.YellowString("%s is not available", args[0]))
			}

			return nil
		},
	}

	cmd.Flags().StringSliceVar(&repositories, "repositories", nil, "replace channel repositories, as <id>::<url>")

	return cmd
}
