package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/channelup/internal/service/channel"
)

func newChannelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channel",
		Short: "Manage the channels recorded in an installation.",
	}

	cmd.AddCommand(newChannelListCmd(), newChannelAddCmd(), newChannelRemoveCmd())

	return cmd
}

func newChannelListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List channels in priority order.",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := existingInstallation()
			if err != nil {
				return err
			}

			channels, err := channel.List(cmd.Context(), &channel.Options{Env: environment(), InstallDir: dir})
			if err != nil {
				return err
			}

			printChannels(cmd.OutOrStdout(), channels)

			return nil
		},
	}
}

func newChannelAddCmd() *cobra.Command {
	var (
		manifest     string
		repositories []string
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Append a channel with the lowest priority.",
		Example: `  channelup channel add updates --manifest org.example:updates-channel \
      --repositories updates::https://repo.example.org/updates`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := existingInstallation()
			if err != nil {
				return err
			}

			ch, err := buildChannel(args[0], manifest, repositories)
			if err != nil {
				return err
			}

			channels, err := channel.Add(cmd.Context(), &channel.Options{
				Env:        environment(),
				InstallDir: dir,
				Channel:    ch,
			})
			if err != nil {
				return err
			}

			printChannels(cmd.OutOrStdout(), channels)

			return nil
		},
	}

	cmd.Flags().StringVar(&manifest, "manifest", "", "channel manifest URL or groupId:artifactId[:version]")
	cmd.Flags().StringSliceVar(&repositories, "repositories", nil, "repositories as <id>::<url> (repeatable)")

	if err := cmd.MarkFlagRequired("manifest"); err != nil {
		panic(err)
	}

	return cmd
}

func newChannelRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a channel.",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := existingInstallation()
			if err != nil {
				return err
			}

			channels, err := channel.Remove(cmd.Context(), &channel.Options{
				Env:        environment(),
				InstallDir: dir,
				Name:       args[0],
			})
			if err != nil {
				return err
			}

			printChannels(cmd.OutOrStdout(), channels)

			return nil
		},
	}
}
