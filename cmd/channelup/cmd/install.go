package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oshokin/channelup/internal/service/provision"
)

var errNoTarget = errors.New("--dir is required")

func newInstallCmd() *cobra.Command {
	var (
		channels   channelFlags
		definition string
		packages   []string
	)

	cmd := &cobra.Command{
		Use:   "install [groupId:artifactId[:version]]",
		Short: "Provision a new installation.",
		Long: `Provisions a new installation into --dir, which must not exist yet.

The installation is described either by a feature pack coordinate or by a
provisioning definition file. Versions are resolved through the channels,
which are recorded in the installation for later updates.`,
		Example: `  channelup install org.example:server --dir /opt/server \
      --manifest https://example.org/main.yaml --repositories central::https://repo.example.org/maven2`,
		Args: usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if installDir == "" {
				return &usageError{err: errNoTarget}
			}

			list, err := channels.channels()
			if err != nil {
				return err
			}

			opts := &provision.InstallOptions{
				Env:              environment(),
				InstallDir:       installDir,
				IncludedPackages: packages,
				Definition:       definition,
				Channels:         list,
			}

			if len(args) > 0 {
				opts.FeaturePack = args[0]
			}

			result, err := provision.Install(cmd.Context(), opts)
			if err != nil {
				return err
			}

			printApplied(cmd.OutOrStdout(), result)

			return nil
		},
	}

	addChannelFlags(cmd, &channels)
	cmd.Flags().StringVar(&definition, "definition", "", "provisioning definition file used instead of a feature pack")
	cmd.Flags().StringSliceVar(&packages, "package", nil, "optional feature pack package to install (repeatable)")

	return cmd
}

func addChannelFlags(cmd *cobra.Command, f *channelFlags) {
	cmd.Flags().StringVar(&f.file, "channels", "", "channel list file")
	cmd.Flags().StringVar(&f.manifest, "manifest", "", "channel manifest URL or groupId:artifactId[:version]")
	cmd.Flags().StringSliceVar(&f.repositories, "repositories", nil, "repositories as <id>::<url> (repeatable)")
}

func newRestoreCmd() *cobra.Command {
	var repositories []string

	cmd := &cobra.Command{
		Use:   "restore <bundle>",
		Short: "Recreate an installation from an exported bundle.",
		Long: `Recreates the installation recorded in a bundle written by "export" into --dir.

Every artifact is installed at its recorded version, whatever the channels
offer today.`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if installDir == "" {
				return &usageError{err: errNoTarget}
			}

			repos, err := parseRepositories(repositories)
			if err != nil {
				return err
			}

			result, err := provision.Restore(cmd.Context(), &provision.RestoreOptions{
				Env:          environment(),
				InstallDir:   installDir,
				Bundle:       args[0],
				Repositories: repos,
			})
			if err != nil {
				return err
			}

			printApplied(cmd.OutOrStdout(), result)

			return nil
		},
	}

	cmd.Flags().StringSliceVar(&repositories, "repositories", nil, "replace channel repositories, as <id>::<url>")

	return cmd
}

func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <bundle>",
		Short: "Write the restorable state of an installation to a bundle.",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := existingInstallation()
			if err != nil {
				return err
			}

			if err = provision.Export(cmd.Context(), &provision.ExportOptions{
				Env:        environment(),
				InstallDir: dir,
				Output:     args[0],
			}); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Exported %s to %s\n", dir, args[0])

			return nil
		},
	}
}
