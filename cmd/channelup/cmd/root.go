package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/oshokin/channelup/internal/config"
	"github.com/oshokin/channelup/internal/domain/installation"
	"github.com/oshokin/channelup/internal/logger"
	"github.com/oshokin/channelup/internal/service/common"
	"github.com/oshokin/channelup/internal/service/operation"
	"github.com/oshokin/channelup/internal/staging"
	"github.com/oshokin/channelup/internal/version"
)

// Exit codes.
const (
	exitOK = iota
	exitFailure
	exitInternal
)

var (
	// configPath to the settings YAML file.
	configPath string
	// installDir is the installation directory; detected from the working directory when empty.
	installDir string
	// logLevel overrides the configured log level.
	logLevel string

	// settings are loaded before any subcommand runs.
	settings *config.Config

	errUnknownLogLevel = errors.New("unknown log level")

	// rootCmd represents the base command.
	rootCmd = &cobra.Command{
		Use:   "channelup",
		Short: "Provision and update feature-pack server installations from channels.",
		Long: `Provisions server installations from feature packs and keeps them current.

Versions come from channels: prioritized manifests of version rules plus the
repositories their artifacts are downloaded from. Every change is staged in a
complete candidate directory and swapped into place only after it was built
and verified, so a failure never leaves a half-updated installation.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			level := cfg.LogLevel
			if logLevel != "" {
				level = logLevel
			}

			parsed, ok := logger.ParseLogLevel(level)
			if !ok {
				return fmt.Errorf("%w: %q", errUnknownLogLevel, level)
			}

			logger.SetLevel(parsed)

			settings = cfg

			return nil
		},
	}
)

// Execute runs the channelup CLI and exits with 1 on operation failures and
// 2 on unexpected ones.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	// Setup graceful shutdown handling.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)

	err := rootCmd.ExecuteContext(ctx)

	stop()

	if releaseErr := staging.ReleaseAll(); releaseErr != nil {
		logger.WarnKV(ctx, "Failed to remove staging directories", "error", releaseErr)
	}

	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}

	kind := installation.KindOf(err)

	_, _ = fmt.Fprintln(os.Stderr, color.RedString("Error:"), err)

	var usage *usageError
	if kind == installation.KindInternal && !errors.As(err, &usage) {
		return exitInternal
	}

	return exitFailure
}

// usageError marks command line mistakes, which are operation failures.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }

func (e *usageError) Unwrap() error { return e.err }

func environment() *operation.Environment {
	return operation.New(settings)
}

// existingInstallation returns the --dir value or the installation
// containing the working directory.
func existingInstallation() (string, error) {
	dir, err := common.ResolveInstallDir(installDir)
	if err != nil {
		return "", &usageError{err: err}
	}

	return dir, nil
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().
		StringVarP(&installDir, "dir", "d", "", "installation directory (default: detected from the working directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")

	rootCmd.AddCommand(
		newInstallCmd(),
		newRestoreCmd(),
		newExportCmd(),
		newFeatureCmd(),
		newUpdateCmd(),
		newChannelCmd(),
		newCleanCmd(),
	)
}

// usageArgs reports positional argument mistakes as usage errors.
func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return &usageError{err: err}
		}

		return nil
	}
}
