package main

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/songzhibin97/mailregistry/internal/config"
	"github.com/songzhibin97/mailregistry/internal/log/driver/stdout"
	"github.com/songzhibin97/mailregistry/pkg/log"
)

type rootOptions struct {
	configFile string
	envFile    string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "mailregistry",
		Short:         "Municipal mail registry backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "configuration file path")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the configuration, ignored when missing")

	cmd.AddCommand(
		newServeCommand(opts),
		newMigrateCommand(opts),
		newAdminCommand(opts),
		newVersionCommand(),
	)
	return cmd
}

// load reads the dotenv file and the configuration, then installs the
// process logger
func (o *rootOptions) load() (*config.Config, error) {
	if o.envFile != "" {
		// A missing file is fine, variables may come from the environment.
		_ = godotenv.Load(o.envFile)
	}

	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, err
	}

	level, err := log.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	logger, err := stdout.New(&stdout.Config{
		Level:            level,
		EnableCaller:     cfg.Logging.EnableCaller,
		EnableStacktrace: true,
		Development:      cfg.Logging.Development,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	log.SetDefault(logger.With(log.String(log.FieldVersion, Version)))

	return cfg, nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "mailregistry %s\n", Version)
			fmt.Fprintf(out, "Build Time: %s\n", BuildTime)
			fmt.Fprintf(out, "Git Commit: %s\n", GitCommit)
		},
	}
}
