package main

import (
	"fmt"

	"github.com/dhawalhost/sociallogin/internal/config"
	"github.com/dhawalhost/sociallogin/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "dev"

type rootOptions struct {
	configPath string
	envFile    string
	output     string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:          "sociallogin",
		Short:        "Sign in with Facebook or Google from the command line",
		SilenceUsage: true,
		Version:      version,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return checkFormat(opts.output)
		},
	}
	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "YAML config file")
	flags.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the environment")
	flags.StringVarP(&opts.output, "output", "o", formatJSON, "output format: json or yaml")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level written to stderr")

	cmd.AddCommand(
		newLoginCmd(opts),
		newProvidersCmd(opts),
		newMigrateCmd(opts),
	)
	return cmd
}

func (o *rootOptions) load() (*config.Config, error) {
	return config.Load(o.envFile, o.configPath)
}

func (o *rootOptions) logger() (*zap.Logger, error) {
	log, err := logger.New(logger.Config{Level: o.logLevel, Format: "console"})
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return log, nil
}
