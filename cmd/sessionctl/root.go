package main

import (
	"os"

	"github.com/jrsteele09/go-auth-session/internal/config"
	"github.com/jrsteele09/go-auth-session/internal/logging"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	envFiles []string
	logLevel string
	config   config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "sessionctl",
		Short:         "Manage authenticated sessions against a remote auth service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(opts.envFiles...); err != nil {
				return err
			}
			opts.config = config.New()

			level := opts.config.GetLogLevel()
			if opts.logLevel != "" {
				level = opts.logLevel
			}
			logging.Setup(level, opts.config.GetEnv(), os.Stderr)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringSliceVar(&opts.envFiles, "env-file", nil, ".env files to load (default .env)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level, overrides LOG_LEVEL")

	rootCmd.AddCommand(
		newLoginCmd(opts),
		newLogoutCmd(opts),
		newListCmd(opts),
		newRefreshCmd(opts),
		newSweepCmd(opts),
		newWatchCmd(opts),
	)
	return rootCmd
}
