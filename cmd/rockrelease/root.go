package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	BUILD      = "development"
	debug      bool
	version    bool
	loggerMode string
)

var rootCmd = &cobra.Command{
	Use:          "rockrelease",
	Short:        "build, fix up and publish multi-arch rock images",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if version {
			fmt.Fprintf(os.Stderr, "%s\n", BUILD)
			return nil
		}
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&debug, "x", "x", false, "logs at debug level")
	rootCmd.PersistentFlags().BoolVar(&version, "version", false, "print build version and exit")
	rootCmd.PersistentFlags().StringVar(&loggerMode, "logger", "dev", "log format: dev|plain")

	rootCmd.AddCommand(newReleaseCmd())
	rootCmd.AddCommand(newInjectVariantCmd())
	rootCmd.AddCommand(newVerifyCmd())
}

// withLogger installs the global logger for the duration of a subcommand
func withLogger(run func() error) error {
	if version {
		fmt.Fprintf(os.Stderr, "%s\n", BUILD)
		return nil
	}
	logger := newLogger()
	defer logger.Sync()
	undo := zap.ReplaceGlobals(logger)
	defer undo()
	err := run()
	if err != nil {
		zap.L().Error("failed", zap.Error(err))
	}
	return err
}
