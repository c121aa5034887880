package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

type rootOptions struct {
	configPath string
	envFile    string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "lemmylink",
		Short: "Bridge Reddit threads to Lemmy and keep their comments in sync",
		Example: `lemmylink run --config config.json
lemmylink status
lemmylink reset-db`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "config.json", "Path to configuration file")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Path to an optional .env file with credentials")
	root.PersistentFlags().BoolVar(&opts.verbose, "verbose", false, "Enable debug logging including comment bodies")

	root.AddCommand(
		newRunCmd(opts),
		newStatusCmd(opts),
		newMigrateCmd(opts),
		newResetCmd(opts),
		newVersionCmd(),
	)
	root.CompletionOptions.HiddenDefaultCmd = true

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "LemmyLink %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logrus.Errorf("Application error: %v", err)
		os.Exit(1)
	}
}

// newLogger returns the JSON logger shared by every component
func newLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	return logger
}

// applyLogLevel sets the configured level. Debug is only reachable through --verbose.
func applyLogLevel(logger *logrus.Logger, configured string, verbose bool) {
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
		return
	}
	if configured == "" {
		logger.SetLevel(logrus.InfoLevel)
		return
	}

	level, err := logrus.ParseLevel(configured)
	if err != nil {
		logger.Warnf("Invalid log level %q, defaulting to info", configured)
		logger.SetLevel(logrus.InfoLevel)
		return
	}
	if level > logrus.InfoLevel {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
}
